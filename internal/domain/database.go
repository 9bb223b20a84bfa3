package domain

import (
	"errors"
	"fmt"
)

// DatabaseDriver represents the type of store the job loads into.
type DatabaseDriver string

const (
	DatabaseDriverMySQL    DatabaseDriver = "mysql"
	DatabaseDriverPostgres DatabaseDriver = "postgres"
	DatabaseDriverMongoDB  DatabaseDriver = "mongodb"
	DatabaseDriverSQLite   DatabaseDriver = "sqlite"
)

var (
	// ErrHostRequired is returned when a connection has no host (or file path).
	ErrHostRequired = errors.New("database host required")

	// ErrUnsupportedDriver is returned for an unknown driver name.
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// ParseDriver maps a driver name to a DatabaseDriver. An empty name means MongoDB.
func ParseDriver(name string) (DatabaseDriver, error) {
	switch d := DatabaseDriver(name); d {
	case "":
		return DatabaseDriverMongoDB, nil
	case DatabaseDriverMongoDB, DatabaseDriverMySQL, DatabaseDriverPostgres, DatabaseDriverSQLite:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedDriver, name)
	}
}

// DatabaseConnection holds the metadata for connecting to the target store.
// The password is kept apart so the struct can be logged.
type DatabaseConnection struct {
	Driver       DatabaseDriver    `json:"driver"`
	Host         string            `json:"host"`         // hostname, connection URI (mongodb) or file path (sqlite)
	Port         int               `json:"port"`         // 0 uses the driver default
	Database     string            `json:"database"`     // db name or empty for sqlite
	Username     string            `json:"username"`
	AuthDatabase string            `json:"authDatabase"` // mongodb authSource
	SSLMode      string            `json:"sslMode"`
	Extra        map[string]string `json:"extra,omitempty"` // driver-specific options
}

// Validate checks the fields every driver needs.
func (c *DatabaseConnection) Validate() error {
	if _, err := ParseDriver(string(c.Driver)); err != nil {
		return err
	}
	if c.Host == "" {
		return ErrHostRequired
	}
	return nil
}
