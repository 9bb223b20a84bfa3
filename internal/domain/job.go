package domain

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrJobIDRequired is returned when a job has no identifier.
	ErrJobIDRequired = errors.New("job id required")

	// ErrServiceURLRequired is returned when a job has no service URL to download from.
	ErrServiceURLRequired = errors.New("service url required")
)

// BundleFileName is the name the downloaded artifact bundle is stored under.
const BundleFileName = "out.zip"

// Job is the full configuration of one run. It is built once at startup
// and passed down; nothing below the entrypoint reads the environment.
type Job struct {
	ID         string `json:"id"`
	ServiceURL string `json:"serviceUrl"`
	Token      string `json:"-"`
	// WorkDir defaults to <tmp>/<ID>.
	WorkDir string `json:"workDir"`
	// Insecure skips TLS certificate verification on download.
	Insecure        bool          `json:"insecure"`
	DownloadTimeout time.Duration `json:"downloadTimeout"`

	Connection DatabaseConnection `json:"connection"`
	Password   string             `json:"-"`

	// Workers bounds concurrent document writes.
	Workers int `json:"workers"`
	// ValidateSchema attaches the inferred schema as a store-side validator.
	ValidateSchema bool `json:"validateSchema"`
	// DryRun loads into memory instead of the store.
	DryRun bool `json:"dryRun"`
}

// Validate checks the fields a full run (download included) needs.
func (j *Job) Validate() error {
	if j.ID == "" {
		return ErrJobIDRequired
	}
	if j.ServiceURL == "" {
		return ErrServiceURLRequired
	}
	return j.ValidateLoad()
}

// ValidateLoad checks the fields loading an existing directory needs.
func (j *Job) ValidateLoad() error {
	if j.DryRun {
		return nil
	}
	return j.Connection.Validate()
}

// Dir returns the job's working directory.
func (j *Job) Dir(tmp string) string {
	if j.WorkDir != "" {
		return j.WorkDir
	}
	return filepath.Join(tmp, j.ID)
}

// BundleURL returns the endpoint serving the job's artifact bundle.
func (j *Job) BundleURL() string {
	return fmt.Sprintf("%s/TDMJobService/api/ca/v1/jobs/%s/actions/downloadArtifact/",
		strings.TrimRight(j.ServiceURL, "/"), j.ID)
}

// LogValue renders the job for logging with secrets masked.
func (j Job) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("jobId", j.ID),
		slog.String("serviceUrl", j.ServiceURL),
		slog.String("token", mask(j.Token)),
		slog.String("driver", string(j.Connection.Driver)),
		slog.String("host", j.Connection.Host),
		slog.String("user", j.Connection.Username),
		slog.String("password", mask(j.Password)),
		slog.String("database", j.Connection.Database),
		slog.String("authDatabase", j.Connection.AuthDatabase),
		slog.Int("workers", j.Workers),
		slog.Bool("dryRun", j.DryRun),
	)
}

func mask(secret string) string {
	if secret == "" {
		return "undefined"
	}
	return "***"
}
