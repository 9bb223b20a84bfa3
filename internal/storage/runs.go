package storage

import (
	"time"
)

// RunLog is one finished job run.
type RunLog struct {
	ID          string    `json:"id"` // run id
	JobID       string    `json:"jobId"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
	Status      string    `json:"status"` // "success" | "error"
	RowsRead    int       `json:"rowsRead"`
	RowsWritten int       `json:"rowsWritten"`
	RowsFailed  int       `json:"rowsFailed"`
	Driver      string    `json:"driver"`
	Error       string    `json:"error,omitempty"`
}

// RunStore persists run logs.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// ── Run Logs ───────────────────────────────────────────────

func (s *RunStore) CreateRunLog(log *RunLog) error {
	_, err := s.db.conn.Exec(
		`INSERT INTO run_logs (id, job_id, started_at, finished_at, status,
		 rows_read, rows_written, rows_failed, driver, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID, log.JobID, log.StartedAt.UTC(), log.FinishedAt.UTC(), log.Status,
		log.RowsRead, log.RowsWritten, log.RowsFailed, log.Driver, log.Error,
	)
	return err
}

// ListRunLogs returns the latest runs, newest first. An empty jobID lists
// every job.
func (s *RunStore) ListRunLogs(jobID string, limit int) ([]RunLog, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, job_id, started_at, finished_at, status,
		 rows_read, rows_written, rows_failed, driver, error
		 FROM run_logs WHERE (? = '' OR job_id = ?) ORDER BY started_at DESC LIMIT ?`,
		jobID, jobID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []RunLog
	for rows.Next() {
		var l RunLog
		if err := rows.Scan(&l.ID, &l.JobID, &l.StartedAt, &l.FinishedAt, &l.Status,
			&l.RowsRead, &l.RowsWritten, &l.RowsFailed, &l.Driver, &l.Error); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
