package dbclient

import (
	"fmt"
	"log/slog"
	"time"

	"mongogen/internal/domain"
	"mongogen/internal/etl"
)

// Options tunes how destinations connect and declare collections.
type Options struct {
	// ValidateSchema attaches each group's inferred schema as a
	// store-side validator (mongodb only; SQL tables always use it).
	ValidateSchema bool
	// ConnectTimeout bounds connection establishment and the initial ping.
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

const defaultConnectTimeout = 10 * time.Second

func (o Options) withDefaults() Options {
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = defaultConnectTimeout
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// NewDestination creates an etl.Destination for the given connection.
// The password must be provided separately.
func NewDestination(conn *domain.DatabaseConnection, password string, opts Options) (etl.Destination, error) {
	if err := conn.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	driver, _ := domain.ParseDriver(string(conn.Driver))
	switch driver {
	case domain.DatabaseDriverSQLite:
		return newSQLDestination("sqlite", buildSQLiteDSN(conn), sqliteDialect, opts), nil
	case domain.DatabaseDriverMySQL:
		return newSQLDestination("mysql", buildMySQLDSN(conn, password), mysqlDialect, opts), nil
	case domain.DatabaseDriverPostgres:
		return newSQLDestination("postgres", buildPostgresDSN(conn, password), postgresDialect, opts), nil
	case domain.DatabaseDriverMongoDB:
		return newMongoDestination(conn, password, opts), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedDriver, conn.Driver)
	}
}
