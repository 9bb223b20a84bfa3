package etl

import (
	"errors"
	"fmt"
)

// ErrDestinationRequired is returned when Load is called without a destination.
var ErrDestinationRequired = errors.New("destination required")

// ParseError reports content that could not be decoded per its format.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NoArtifactsFoundError is returned when a directory holds no recognized files.
type NoArtifactsFoundError struct {
	Dir string
}

func (e *NoArtifactsFoundError) Error() string {
	return fmt.Sprintf("no artifacts files found in %s", e.Dir)
}

// CollectionError wraps the first failure met while collecting artifact files.
type CollectionError struct {
	File string
	Err  error
}

func (e *CollectionError) Error() string {
	if e.File == "" {
		return fmt.Sprintf("collect artifacts: %v", e.Err)
	}
	return fmt.Sprintf("collect artifacts: %s: %v", e.File, e.Err)
}

func (e *CollectionError) Unwrap() error { return e.Err }

// ConnectionError reports a store connection that could not be established.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect %s: %v", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// WriteError reports a single document that failed to persist.
// The loader logs it and moves on.
type WriteError struct {
	Collection string
	Err        error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Collection, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
