package etl

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"
)

// ── Destination ────────────────────────────────────────────
// A Destination persists grouped records into a target store.
// Implementations live in dbclient/.

// CollectionRef identifies a declared store collection (or table).
type CollectionRef struct {
	Name   string
	Schema *Schema
}

// Destination opens sessions against a store.
type Destination interface {
	// Connect establishes a session. Failures are connection-level and fatal.
	Connect(ctx context.Context) (Session, error)
}

// Session is one live connection to a store. Insert may be called
// concurrently from several goroutines.
type Session interface {
	// DeclareCollection ensures a collection shaped by schema exists.
	DeclareCollection(ctx context.Context, name string, schema *Schema) (CollectionRef, error)

	// Insert persists one record as an independent document.
	Insert(ctx context.Context, ref CollectionRef, rec Record) error

	// Disconnect closes the session.
	Disconnect(ctx context.Context) error
}

// LoadState is a step of the load state machine.
type LoadState int

const (
	StateConnecting LoadState = iota
	StateLoading
	StateClosing
	StateCompleted
	StateFailed
)

func (s LoadState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateLoading:
		return "loading"
	case StateClosing:
		return "closing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// GroupResult summarizes the writes of one group.
type GroupResult struct {
	Name      string `json:"name"`
	Attempted int    `json:"attempted"`
	Inserted  int    `json:"inserted"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"` // collection declaration failure
}

// LoadResult is the outcome of a load.
type LoadResult struct {
	State    LoadState     `json:"state"`
	Inserted int           `json:"inserted"`
	Failed   int           `json:"failed"`
	Groups   []GroupResult `json:"groups"`
}

// DefaultWorkers bounds concurrent writes when Loader.Workers is unset.
const DefaultWorkers = 16

// Loader writes grouped records into a Destination.
type Loader struct {
	// Workers bounds the number of writes in flight.
	Workers int
	Logger  *slog.Logger
}

// NewLoader returns a Loader with the given write concurrency.
func NewLoader(workers int, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{Workers: workers, Logger: logger.With("component", "loader")}
}

type groupCounter struct {
	name     string
	total    int
	inserted atomic.Int64
	failed   atomic.Int64
	skipped  atomic.Int64 // never written: declaration failed or connection lost
	declErr  error
}

// connectionLoss keeps the first ConnectionError a session reports after
// Connect succeeded.
type connectionLoss struct {
	mu   sync.Mutex
	err  error
	lost atomic.Bool
}

// record reports whether err signals a lost connection, keeping the first one.
func (c *connectionLoss) record(err error) bool {
	var ce *ConnectionError
	if !errors.As(err, &ce) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
	c.lost.Store(true)
	return true
}

func (c *connectionLoss) happened() bool { return c.lost.Load() }

func (c *connectionLoss) first() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Load connects to dest and writes every record of every group as its own
// document. Each group's collection is declared from the schema of its
// first record. A failed write is logged and not counted; it never aborts
// the group or the load. A failed connection, at Connect or reported later
// by the session as a *ConnectionError, fails the load: writes not yet
// started are skipped and the ConnectionError is returned.
func (l *Loader) Load(ctx context.Context, groups *Groups, dest Destination) (*LoadResult, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	result := &LoadResult{State: StateConnecting}
	if dest == nil {
		result.State = StateFailed
		return result, ErrDestinationRequired
	}

	session, err := dest.Connect(ctx)
	if err != nil {
		result.State = StateFailed
		var ce *ConnectionError
		if !errors.As(err, &ce) {
			err = &ConnectionError{Err: err}
		}
		logger.Error("connection failed", "error", err)
		return result, err
	}
	logger.Info("connected to store")

	workers := l.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		result.State = StateFailed
		l.disconnect(session, logger)
		return result, err
	}
	defer pool.Release()

	result.State = StateLoading
	var (
		wg       sync.WaitGroup
		counters []*groupCounter
		loss     connectionLoss
	)
	groups.Each(func(grp *Group) {
		gc := &groupCounter{name: grp.Name, total: grp.Len()}
		counters = append(counters, gc)
		if loss.happened() {
			gc.skipped.Add(int64(grp.Len()))
			return
		}

		rep, _ := grp.First()
		schema := InferSchema(rep)
		logger.Info("creating schema", "group", grp.Name, "fields", len(schema.Fields))

		ref, err := session.DeclareCollection(ctx, grp.Name, schema)
		if err != nil {
			gc.skipped.Add(int64(grp.Len()))
			if loss.record(err) {
				logger.Error("connection lost", "group", grp.Name, "error", err)
				return
			}
			gc.declErr = err
			logger.Error("declare collection failed", "group", grp.Name, "error", err)
			return
		}

		for _, rec := range grp.Records {
			if loss.happened() {
				gc.skipped.Add(1)
				continue
			}
			wg.Add(1)
			task := func() {
				defer wg.Done()
				if err := session.Insert(ctx, ref, rec); err != nil {
					if loss.record(err) {
						gc.failed.Add(1)
						logger.Error("connection lost", "collection", ref.Name, "error", err)
						return
					}
					gc.failed.Add(1)
					logger.Warn("record insert failed", "error", &WriteError{Collection: ref.Name, Err: err})
					return
				}
				gc.inserted.Add(1)
				logger.Debug("record inserted", "collection", ref.Name)
			}
			if err := pool.Submit(task); err != nil {
				wg.Done()
				gc.failed.Add(1)
				logger.Warn("record insert failed", "error", &WriteError{Collection: ref.Name, Err: err})
			}
		}
	})
	wg.Wait()

	result.State = StateClosing
	l.disconnect(session, logger)

	for _, gc := range counters {
		skipped := int(gc.skipped.Load())
		gr := GroupResult{
			Name:      gc.name,
			Attempted: gc.total - skipped,
			Inserted:  int(gc.inserted.Load()),
			Failed:    int(gc.failed.Load()) + skipped,
		}
		if gc.declErr != nil {
			gr.Error = gc.declErr.Error()
		}
		result.Inserted += gr.Inserted
		result.Failed += gr.Failed
		result.Groups = append(result.Groups, gr)
	}

	if err := loss.first(); err != nil {
		result.State = StateFailed
		logger.Error("load failed", "inserted", result.Inserted, "error", err)
		return result, err
	}
	result.State = StateCompleted
	logger.Info("load completed", "inserted", result.Inserted, "failed", result.Failed)
	return result, nil
}

func (l *Loader) disconnect(session Session, logger *slog.Logger) {
	// The load context may already be done; closing must still happen.
	if err := session.Disconnect(context.Background()); err != nil {
		logger.Warn("disconnect failed", "error", err)
	}
}
