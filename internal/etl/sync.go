package etl

import (
	"context"
	"log/slog"
	"time"
)

// ── Engine ─────────────────────────────────────────────────
// Orchestrates: collect → group → infer schema → load.

// SyncResult is the outcome of running one job's load.
type SyncResult struct {
	JobID       string        `json:"jobId"`
	RunID       string        `json:"runId,omitempty"`
	Status      string        `json:"status"` // "success" | "error"
	RowsRead    int           `json:"rowsRead"`
	RowsWritten int           `json:"rowsWritten"`
	RowsFailed  int           `json:"rowsFailed"`
	Groups      []GroupResult `json:"groups,omitempty"`
	Duration    time.Duration `json:"duration"`
	Error       string        `json:"error,omitempty"`
}

// Engine runs the collect and load steps for an artifact directory.
type Engine struct {
	Collector *Collector
	Loader    *Loader
	Logger    *slog.Logger
}

// NewEngine returns an Engine with a default collector and a loader bounded
// to workers concurrent writes.
func NewEngine(workers int, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Collector: NewCollector(logger),
		Loader:    NewLoader(workers, logger),
		Logger:    logger,
	}
}

// Run collects every artifact of dir and loads it into dest. A collection
// failure returns before any store connection is attempted.
func (e *Engine) Run(ctx context.Context, jobID, dir string, dest Destination) (*SyncResult, error) {
	start := time.Now()
	result := &SyncResult{JobID: jobID}

	records, err := e.Collector.Collect(ctx, dir)
	if err != nil {
		return failed(result, start, err)
	}
	result.RowsRead = len(records)

	groups := GroupRecords(records)
	e.logger().Info("records grouped", "records", groups.Total(), "groups", groups.Len())

	loaded, err := e.Loader.Load(ctx, groups, dest)
	if loaded != nil {
		result.RowsWritten = loaded.Inserted
		result.RowsFailed = loaded.Failed
		result.Groups = loaded.Groups
	}
	if err != nil {
		return failed(result, start, err)
	}

	result.Status = "success"
	result.Duration = time.Since(start)
	return result, nil
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

func failed(result *SyncResult, start time.Time, err error) (*SyncResult, error) {
	result.Status = "error"
	result.Error = err.Error()
	result.Duration = time.Since(start)
	return result, err
}
