package domain

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJob_Validate(t *testing.T) {
	job := Job{
		ID:         "42",
		ServiceURL: "https://tdm.example.com",
		Connection: DatabaseConnection{Host: "mongo"},
	}
	assert.NoError(t, job.Validate())

	noID := job
	noID.ID = ""
	assert.ErrorIs(t, noID.Validate(), ErrJobIDRequired)

	noURL := job
	noURL.ServiceURL = ""
	assert.ErrorIs(t, noURL.Validate(), ErrServiceURLRequired)

	noHost := job
	noHost.Connection.Host = ""
	assert.ErrorIs(t, noHost.Validate(), ErrHostRequired)

	dry := noHost
	dry.DryRun = true
	assert.NoError(t, dry.Validate())

	badDriver := job
	badDriver.Connection.Driver = "cassandra"
	assert.ErrorIs(t, badDriver.Validate(), ErrUnsupportedDriver)
}

func TestJob_BundleURL(t *testing.T) {
	job := Job{ID: "abc", ServiceURL: "https://tdm.example.com/"}
	assert.Equal(t,
		"https://tdm.example.com/TDMJobService/api/ca/v1/jobs/abc/actions/downloadArtifact/",
		job.BundleURL())
}

func TestJob_Dir(t *testing.T) {
	job := Job{ID: "abc"}
	assert.Equal(t, filepath.Join("/tmp", "abc"), job.Dir("/tmp"))
	job.WorkDir = "/data/run"
	assert.Equal(t, "/data/run", job.Dir("/tmp"))
}

func TestJob_LogValueMasksSecrets(t *testing.T) {
	job := Job{ID: "abc", Token: "t0ken", Password: "s3cret"}

	attrs := map[string]string{}
	for _, a := range job.LogValue().Group() {
		attrs[a.Key] = a.Value.String()
	}

	assert.Equal(t, "***", attrs["token"])
	assert.Equal(t, "***", attrs["password"])
	assert.Equal(t, "abc", attrs["jobId"])

	job.Password = ""
	for _, a := range job.LogValue().Group() {
		if a.Key == "password" {
			assert.Equal(t, "undefined", a.Value.String())
		}
	}
}

func TestParseDriver(t *testing.T) {
	d, err := ParseDriver("")
	assert.NoError(t, err)
	assert.Equal(t, DatabaseDriverMongoDB, d)

	d, err = ParseDriver("sqlite")
	assert.NoError(t, err)
	assert.Equal(t, DatabaseDriverSQLite, d)

	_, err = ParseDriver("oracle")
	assert.ErrorIs(t, err, ErrUnsupportedDriver)
}
