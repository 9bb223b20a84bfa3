package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"mongogen/internal/domain"
	"mongogen/internal/etl"
	"mongogen/internal/service"
	"mongogen/internal/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newApp().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		fmt.Fprintln(os.Stderr, "Exiting...")
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "mongogen",
		Usage: "Load a job's CSV/XML artifact bundle into a document store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"MONGOGEN_LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "history",
				Usage:   "SQLite file recording every run (disabled when empty)",
				EnvVars: []string{"MONGOGEN_HISTORY"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Download, extract and load the artifact bundle of a job",
				Action: runCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "job-id",
						Usage:    "Job identifier",
						EnvVars:  []string{"jobId", "MONGOGEN_JOB_ID"},
						Required: true,
					},
					&cli.StringFlag{
						Name:     "service-url",
						Usage:    "Base URL of the job service serving the bundle",
						EnvVars:  []string{"tdmUrl", "MONGOGEN_SERVICE_URL"},
						Required: true,
					},
					&cli.StringFlag{
						Name:    "token",
						Usage:   "Bearer token for the bundle download",
						EnvVars: []string{"token", "MONGOGEN_TOKEN"},
					},
					&cli.StringFlag{
						Name:    "work-dir",
						Usage:   "Working directory (defaults to <tmp>/<job-id>)",
						EnvVars: []string{"MONGOGEN_WORK_DIR"},
					},
					&cli.BoolFlag{
						Name:    "insecure",
						Usage:   "Skip TLS certificate verification on download",
						Value:   true,
						EnvVars: []string{"MONGOGEN_INSECURE"},
					},
					&cli.DurationFlag{
						Name:    "download-timeout",
						Usage:   "Timeout for the bundle download",
						Value:   5 * time.Minute,
						EnvVars: []string{"MONGOGEN_DOWNLOAD_TIMEOUT"},
					},
				}, storeFlags()...),
			},
			{
				Name:   "load",
				Usage:  "Load the artifacts of a local directory",
				Action: loadCommand,
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:     "dir",
						Aliases:  []string{"d"},
						Usage:    "Directory holding the CSV/XML artifacts",
						Required: true,
					},
					&cli.StringFlag{
						Name:    "job-id",
						Usage:   "Job identifier used in logs",
						EnvVars: []string{"jobId", "MONGOGEN_JOB_ID"},
					},
				}, storeFlags()...),
			},
			{
				Name:   "history",
				Usage:  "List recorded runs, newest first",
				Action: historyCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "job-id",
						Usage:   "Only list runs of this job",
						EnvVars: []string{"jobId", "MONGOGEN_JOB_ID"},
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of runs to list",
						Value: 20,
					},
				},
			},
		},
	}
}

// storeFlags are the destination flags shared by every command.
func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "driver",
			Usage:   "Destination driver (mongodb, sqlite, postgres, mysql)",
			Value:   string(domain.DatabaseDriverMongoDB),
			EnvVars: []string{"MONGOGEN_DRIVER"},
		},
		&cli.StringFlag{
			Name:    "host",
			Usage:   "Store host, connection URI (mongodb) or file path (sqlite)",
			EnvVars: []string{"mongoHost", "MONGOGEN_HOST"},
		},
		&cli.IntFlag{
			Name:    "port",
			Usage:   "Store port (0 uses the driver default)",
			EnvVars: []string{"MONGOGEN_PORT"},
		},
		&cli.StringFlag{
			Name:    "user",
			Usage:   "Store user",
			EnvVars: []string{"mongoUser", "MONGOGEN_USER"},
		},
		&cli.StringFlag{
			Name:    "password",
			Usage:   "Store password",
			EnvVars: []string{"mongoPassword", "MONGOGEN_PASSWORD"},
		},
		&cli.StringFlag{
			Name:    "database",
			Usage:   "Database to load into",
			EnvVars: []string{"mongoDbName", "MONGOGEN_DATABASE"},
		},
		&cli.StringFlag{
			Name:    "auth-database",
			Usage:   "Authentication database (mongodb authSource)",
			EnvVars: []string{"mongoAuthDb", "MONGOGEN_AUTH_DATABASE"},
		},
		&cli.StringFlag{
			Name:    "ssl-mode",
			Usage:   "SSL mode (postgres sslmode, mysql tls)",
			EnvVars: []string{"MONGOGEN_SSL_MODE"},
		},
		&cli.IntFlag{
			Name:    "workers",
			Usage:   "Maximum concurrent document writes",
			Value:   etl.DefaultWorkers,
			EnvVars: []string{"MONGOGEN_WORKERS"},
		},
		&cli.BoolFlag{
			Name:    "validate-schema",
			Usage:   "Attach the inferred schema as a collection validator",
			EnvVars: []string{"MONGOGEN_VALIDATE_SCHEMA"},
		},
		&cli.BoolFlag{
			Name:    "dry-run",
			Usage:   "Collect and load into memory without touching the store",
			EnvVars: []string{"MONGOGEN_DRY_RUN"},
		},
	}
}

func runCommand(c *cli.Context) error {
	job, err := jobFromFlags(c)
	if err != nil {
		return err
	}
	printConfiguration(c, job)

	svc, closeHistory, err := newJobService(c)
	if err != nil {
		return err
	}
	defer closeHistory()

	result, err := svc.Run(c.Context, job)
	if err != nil {
		return err
	}
	return reportSuccess(c, result)
}

func loadCommand(c *cli.Context) error {
	job, err := jobFromFlags(c)
	if err != nil {
		return err
	}
	printConfiguration(c, job)

	svc, closeHistory, err := newJobService(c)
	if err != nil {
		return err
	}
	defer closeHistory()

	result, err := svc.LoadDir(c.Context, job, c.String("dir"))
	if err != nil {
		return err
	}
	return reportSuccess(c, result)
}

func historyCommand(c *cli.Context) error {
	path := c.String("history")
	if path == "" {
		return fmt.Errorf("--history is required to list runs")
	}
	db, err := storage.New(path)
	if err != nil {
		return err
	}
	defer db.Close()

	logs, err := storage.NewRunStore(db).ListRunLogs(c.String("job-id"), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tJOB\tSTARTED\tSTATUS\tREAD\tWRITTEN\tFAILED\tDRIVER\tERROR")
	for _, l := range logs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			l.ID, l.JobID, l.StartedAt.Format(time.RFC3339), l.Status,
			l.RowsRead, l.RowsWritten, l.RowsFailed, l.Driver, l.Error)
	}
	return w.Flush()
}

// newJobService returns the service for this invocation, recording runs
// when --history is set. The returned func closes the history database.
func newJobService(c *cli.Context) (*service.JobService, func(), error) {
	svc := service.NewJobService(slog.Default())
	path := c.String("history")
	if path == "" {
		return svc, func() {}, nil
	}
	db, err := storage.New(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open run history: %w", err)
	}
	svc.History = storage.NewRunStore(db)
	return svc, func() { db.Close() }, nil
}

// jobFromFlags builds the job configuration from the command's flags.
// Flags a command does not define read as their zero value.
func jobFromFlags(c *cli.Context) (*domain.Job, error) {
	driver, err := domain.ParseDriver(c.String("driver"))
	if err != nil {
		return nil, err
	}
	return &domain.Job{
		ID:              c.String("job-id"),
		ServiceURL:      c.String("service-url"),
		Token:           c.String("token"),
		WorkDir:         c.String("work-dir"),
		Insecure:        c.Bool("insecure"),
		DownloadTimeout: c.Duration("download-timeout"),
		Connection: domain.DatabaseConnection{
			Driver:       driver,
			Host:         c.String("host"),
			Port:         c.Int("port"),
			Database:     c.String("database"),
			Username:     c.String("user"),
			AuthDatabase: c.String("auth-database"),
			SSLMode:      c.String("ssl-mode"),
		},
		Password:       c.String("password"),
		Workers:        c.Int("workers"),
		ValidateSchema: c.Bool("validate-schema"),
		DryRun:         c.Bool("dry-run"),
	}, nil
}

func printConfiguration(c *cli.Context, job *domain.Job) {
	slog.Info("using configuration", "job", *job)
	if job.DryRun {
		fmt.Fprintln(c.App.Writer, "Dry run: records are loaded into memory only.")
	}
}

func reportSuccess(c *cli.Context, result *etl.SyncResult) error {
	if result.RowsFailed > 0 {
		slog.Warn("some records were not inserted", "failed", result.RowsFailed)
	}
	fmt.Fprintf(c.App.Writer, "Successfully inserted %d records.\n", result.RowsWritten)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}
