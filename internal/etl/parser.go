package etl

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ── Parser ──────────────────────────────────────────────────
// A Parser turns the raw text of one artifact file into Records.
// Implementations live in etl/parsers/, one file per format.

// Parser is the interface every artifact format must implement.
type Parser interface {
	// Extensions lists the file extensions handled, lower-case with the dot.
	Extensions() []string

	// Parse decodes content read from fileName. Malformed content must be
	// reported as a *ParseError.
	Parse(content, fileName string) ([]Record, error)
}

// ── Parser Registry ────────────────────────────────────────
// Compile-time registration via init() in each parser file.

var (
	registryMu sync.RWMutex
	registry   = map[string]Parser{}
)

// RegisterParser registers a parser for each of its extensions.
// Called from init() in each parser implementation file.
func RegisterParser(p Parser) {
	registryMu.Lock()
	defer registryMu.Unlock()
	for _, ext := range p.Extensions() {
		registry[strings.ToLower(ext)] = p
	}
}

// ParserFor returns the parser registered for fileName's extension.
// Extensions match case-insensitively.
func ParserFor(fileName string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[ext]
	if !ok {
		return nil, fmt.Errorf("no parser for %q", fileName)
	}
	return p, nil
}

// Extensions returns the sorted list of registered extensions.
func Extensions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	exts := make([]string, 0, len(registry))
	for ext := range registry {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Recognized reports whether a parser is registered for fileName.
func Recognized(fileName string) bool {
	_, err := ParserFor(fileName)
	return err == nil
}
