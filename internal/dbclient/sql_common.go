package dbclient

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"mongogen/internal/etl"
)

// surrogateColumn is the only column of a table declared from an empty schema.
const surrogateColumn = "_row"

// dialect captures the SQL differences between the supported drivers.
type dialect struct {
	quote       func(ident string) string
	placeholder func(n int) string // n is 1-based
	emptyInsert string             // INSERT suffix for a row without values
	maxConns    int
}

var (
	sqliteDialect = dialect{
		quote:       doubleQuote,
		placeholder: func(int) string { return "?" },
		emptyInsert: "DEFAULT VALUES",
		maxConns:    1,
	}
	postgresDialect = dialect{
		quote:       doubleQuote,
		placeholder: func(n int) string { return "$" + strconv.Itoa(n) },
		emptyInsert: "DEFAULT VALUES",
		maxConns:    5,
	}
	mysqlDialect = dialect{
		quote:       backtickQuote,
		placeholder: func(int) string { return "?" },
		emptyInsert: "() VALUES ()",
		maxConns:    5,
	}
)

func doubleQuote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func backtickQuote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// sqlDestination loads groups into tables of a SQL database. Every schema
// field becomes a TEXT column; record fields outside the schema are dropped.
type sqlDestination struct {
	driverName string
	dsn        string
	dialect    dialect
	opts       Options
	logger     *slog.Logger
}

func newSQLDestination(driverName, dsn string, d dialect, opts Options) *sqlDestination {
	return &sqlDestination{
		driverName: driverName,
		dsn:        dsn,
		dialect:    d,
		opts:       opts,
		logger:     opts.Logger.With("component", "sql", "driver", driverName),
	}
}

func (d *sqlDestination) Connect(ctx context.Context) (etl.Session, error) {
	db, err := sql.Open(d.driverName, d.dsn)
	if err != nil {
		return nil, &etl.ConnectionError{Driver: d.driverName, Err: err}
	}
	db.SetMaxOpenConns(d.dialect.maxConns)
	db.SetMaxIdleConns(d.dialect.maxConns)
	db.SetConnMaxLifetime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, d.opts.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, &etl.ConnectionError{Driver: d.driverName, Err: err}
	}
	d.logger.Info("connected")
	return &sqlSession{db: db, dialect: d.dialect, logger: d.logger}, nil
}

type sqlSession struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

func (s *sqlSession) DeclareCollection(ctx context.Context, name string, schema *etl.Schema) (etl.CollectionRef, error) {
	ddl := createTableSQL(s.dialect, name, schema)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return etl.CollectionRef{}, fmt.Errorf("create table %s: %w", name, err)
	}
	s.logger.Debug("table declared", "table", name, "columns", len(schema.Fields))
	return etl.CollectionRef{Name: name, Schema: schema}, nil
}

func (s *sqlSession) Insert(ctx context.Context, ref etl.CollectionRef, rec etl.Record) error {
	query, args := insertSQL(s.dialect, ref, rec)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	return nil
}

func (s *sqlSession) Disconnect(_ context.Context) error {
	return s.db.Close()
}

func createTableSQL(d dialect, name string, schema *etl.Schema) string {
	cols := make([]string, 0, len(schema.Fields))
	for _, f := range schema.Fields {
		cols = append(cols, d.quote(f.Name)+" TEXT")
	}
	if len(cols) == 0 {
		cols = append(cols, d.quote(surrogateColumn)+" TEXT")
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", d.quote(name), strings.Join(cols, ", "))
}

// insertSQL builds an INSERT for the record's values of the schema's columns.
// Schema fields missing from the record are left NULL.
func insertSQL(d dialect, ref etl.CollectionRef, rec etl.Record) (string, []any) {
	var (
		cols  []string
		marks []string
		args  []any
	)
	if ref.Schema != nil {
		for _, f := range ref.Schema.Fields {
			v, ok := rec.Data[f.Name]
			if !ok {
				continue
			}
			cols = append(cols, d.quote(f.Name))
			args = append(args, v)
			marks = append(marks, d.placeholder(len(args)))
		}
	}
	if len(cols) == 0 {
		return fmt.Sprintf("INSERT INTO %s %s", d.quote(ref.Name), d.emptyInsert), nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.quote(ref.Name), strings.Join(cols, ", "), strings.Join(marks, ", ")), args
}
