package dbclient

import (
	"mongogen/internal/domain"

	_ "modernc.org/sqlite"
)

// buildSQLiteDSN opens the file named by Host in WAL mode with a busy
// timeout, so concurrent inserts wait for the write lock.
func buildSQLiteDSN(conn *domain.DatabaseConnection) string {
	return "file:" + conn.Host + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}
