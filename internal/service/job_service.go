package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mongogen/internal/bundle"
	"mongogen/internal/dbclient"
	"mongogen/internal/domain"
	"mongogen/internal/etl"
	_ "mongogen/internal/etl/parsers"
	"mongogen/internal/storage"
)

// ─────────────────────────────────────────────────────────────
// Job Service: runs one artifact load job end to end
// ─────────────────────────────────────────────────────────────

const defaultDownloadTimeout = 5 * time.Minute

// DestinationFactory builds the store a job loads into.
type DestinationFactory func(job *domain.Job, logger *slog.Logger) (etl.Destination, error)

// RunRecorder keeps the history of finished runs.
type RunRecorder interface {
	CreateRunLog(log *storage.RunLog) error
}

// JobService prepares the working directory, retrieves and extracts the
// artifact bundle, then collects and loads the artifacts.
type JobService struct {
	// TempDir is the parent of job working directories without an explicit WorkDir.
	TempDir string
	// NewDestination defaults to the dbclient destinations, or an
	// in-memory destination for dry runs.
	NewDestination DestinationFactory
	// NewHTTPClient defaults to bundle.NewClient.
	NewHTTPClient func(job *domain.Job) *http.Client
	// History, when set, receives one log per run, failed runs included.
	History RunRecorder

	running runningJobs
	logger  *slog.Logger
}

// NewJobService creates a JobService ready for use.
func NewJobService(logger *slog.Logger) *JobService {
	if logger == nil {
		logger = slog.Default()
	}
	return &JobService{
		TempDir:        os.TempDir(),
		NewDestination: defaultDestination,
		NewHTTPClient:  defaultHTTPClient,
		logger:         logger,
	}
}

func defaultDestination(job *domain.Job, logger *slog.Logger) (etl.Destination, error) {
	if job.DryRun {
		return &etl.MemoryDestination{}, nil
	}
	return dbclient.NewDestination(&job.Connection, job.Password, dbclient.Options{
		ValidateSchema: job.ValidateSchema,
		Logger:         logger,
	})
}

func defaultHTTPClient(job *domain.Job) *http.Client {
	timeout := job.DownloadTimeout
	if timeout <= 0 {
		timeout = defaultDownloadTimeout
	}
	return bundle.NewClient(timeout, job.Insecure)
}

// Run executes the whole job: working directory, download, unzip, load.
func (s *JobService) Run(ctx context.Context, job *domain.Job) (result *etl.SyncResult, err error) {
	if err := job.Validate(); err != nil {
		return nil, err
	}
	runID, release, err := s.acquire(job.ID)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	defer func() { s.record(job, runID, start, result, err) }()

	logger := s.logger.With("jobId", job.ID, "runId", runID)
	logger.Info("job starting", "job", *job)

	dir := job.Dir(s.TempDir)
	if err := bundle.PrepareWorkDir(dir); err != nil {
		logger.Error("failed to prepare working directory", "dir", dir, "error", err)
		return nil, err
	}

	zipPath := filepath.Join(dir, domain.BundleFileName)
	logger.Info("downloading artifacts file", "url", job.BundleURL())
	size, err := bundle.Download(ctx, s.NewHTTPClient(job), bundle.Request{
		URL:   job.BundleURL(),
		Token: job.Token,
	}, zipPath)
	if err != nil {
		return nil, err
	}

	logger.Info("unzipping artifacts file", "file", zipPath, "bytes", size)
	files, err := bundle.Unzip(zipPath, dir)
	if err != nil {
		return nil, fmt.Errorf("unzip %s: %w", zipPath, err)
	}
	logger.Debug("artifacts extracted", "files", files)

	return s.load(ctx, logger, job, runID, dir)
}

// LoadDir loads the artifacts already present in dir, skipping retrieval.
func (s *JobService) LoadDir(ctx context.Context, job *domain.Job, dir string) (result *etl.SyncResult, err error) {
	if err := job.ValidateLoad(); err != nil {
		return nil, err
	}
	key := job.ID
	if key == "" {
		key = dir
	}
	runID, release, err := s.acquire(key)
	if err != nil {
		return nil, err
	}
	defer release()

	start := time.Now()
	defer func() { s.record(job, runID, start, result, err) }()

	logger := s.logger.With("jobId", job.ID, "runId", runID)
	return s.load(ctx, logger, job, runID, dir)
}

func (s *JobService) acquire(jobID string) (string, func(), error) {
	runID := uuid.New().String()
	if holder, ok := s.running.tryAcquire(jobID, runID); !ok {
		return "", nil, fmt.Errorf("job %s is already running (run %s)", jobID, holder)
	}
	return runID, func() { s.running.release(jobID) }, nil
}

func (s *JobService) load(ctx context.Context, logger *slog.Logger, job *domain.Job, runID, dir string) (*etl.SyncResult, error) {
	dest, err := s.NewDestination(job, logger)
	if err != nil {
		return nil, err
	}

	result, err := etl.NewEngine(job.Workers, logger).Run(ctx, job.ID, dir, dest)
	if result != nil {
		result.RunID = runID
	}
	if err != nil {
		logger.Error("job failed", "error", err)
		return result, err
	}
	logger.Info("job completed",
		"inserted", result.RowsWritten,
		"failed", result.RowsFailed,
		"duration", result.Duration)
	return result, nil
}

// record writes the run to History. A history failure is logged and never
// changes the run's outcome.
func (s *JobService) record(job *domain.Job, runID string, start time.Time, result *etl.SyncResult, runErr error) {
	if s.History == nil {
		return
	}
	log := &storage.RunLog{
		ID:         runID,
		JobID:      job.ID,
		StartedAt:  start,
		FinishedAt: time.Now(),
		Status:     "success",
		Driver:     string(job.Connection.Driver),
	}
	if job.DryRun {
		log.Driver = "memory"
	}
	if result != nil {
		log.RowsRead = result.RowsRead
		log.RowsWritten = result.RowsWritten
		log.RowsFailed = result.RowsFailed
	}
	if runErr != nil {
		log.Status = "error"
		log.Error = runErr.Error()
	}
	if err := s.History.CreateRunLog(log); err != nil {
		s.logger.Warn("failed to record run history", "runId", runID, "error", err)
	}
}
