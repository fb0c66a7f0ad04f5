package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/yndnr/pathnet-go/internal/core/domain"
	"github.com/yndnr/pathnet-go/internal/telemetry/logger"
	"github.com/yndnr/pathnet-go/internal/telemetry/metric"
	"github.com/yndnr/pathnet-go/pkg/cmap"
)

// RunIDPrefix is the prefix for run IDs.
const RunIDPrefix = "pnr-"

// RunConfig carries the per-run registry policies.
type RunConfig struct {
	AddressInUse       AddressInUseMode
	StrictTerminate    bool
	TerminateOnRelease bool
	HostResolver       HostResolver
}

// ArchiveFactory opens the state archive for a new run.
type ArchiveFactory func(runID string) (StateArchive, error)

// Run is one verification run: a registry plus everything that keeps it in
// step with the search exploring it.
type Run struct {
	ID        string
	StartedAt time.Time

	Registry  *Registry
	Snapshots *SnapshotStore
	Observer  *TerminationObserver
	Listener  *SearchListener

	archive StateArchive
}

// Context returns ctx tagged with the run ID for logging.
func (r *Run) Context(ctx context.Context) context.Context {
	return logger.WithRunID(ctx, r.ID)
}

// RunManager creates and tears down runs. It is safe for concurrent use;
// each Run is not.
type RunManager struct {
	runs       *cmap.Map[string, *Run]
	cfg        RunConfig
	newArchive ArchiveFactory
	logger     *slog.Logger
	metrics    *metric.Registry

	mu         sync.Mutex
	lastCounts map[string]int
}

// ManagerOption configures a RunManager.
type ManagerOption func(*RunManager)

// WithManagerLogger sets the logger handed to every run's registry.
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(m *RunManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithManagerMetrics sets the metrics registry handed to every run.
func WithManagerMetrics(reg *metric.Registry) ManagerOption {
	return func(m *RunManager) {
		m.metrics = reg
	}
}

// NewRunManager creates a manager that opens archives with newArchive.
func NewRunManager(cfg RunConfig, newArchive ArchiveFactory, opts ...ManagerOption) *RunManager {
	m := &RunManager{
		runs:       cmap.New[string, *Run](),
		cfg:        cfg,
		newArchive: newArchive,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start creates a run, opens its archive and archives the empty registry as
// the root state.
func (m *RunManager) Start(ctx context.Context) (*Run, error) {
	if m.newArchive == nil {
		return nil, domain.ErrInternal.WithDetails("run manager has no archive factory")
	}

	id := RunIDPrefix + strings.ToLower(ulid.Make().String())
	archive, err := m.newArchive(id)
	if err != nil {
		return nil, fmt.Errorf("service: open archive for %s: %w", id, err)
	}

	runLogger := m.logger.With("run_id", id)
	registry := NewRegistry(
		WithLogger(runLogger),
		WithMetrics(m.metrics),
		WithAddressInUseMode(m.cfg.AddressInUse),
		WithStrictTerminate(m.cfg.StrictTerminate),
		WithHostResolver(m.cfg.HostResolver),
	)
	store := NewSnapshotStore(registry)
	run := &Run{
		ID:        id,
		StartedAt: time.Now(),
		Registry:  registry,
		Snapshots: store,
		Observer:  NewTerminationObserver(registry, m.cfg.TerminateOnRelease),
		Listener:  NewSearchListener(store, archive),
		archive:   archive,
	}

	if err := run.Listener.SearchStarted(run.Context(ctx)); err != nil {
		_ = archive.Close()
		return nil, err
	}

	if !m.runs.SetIfAbsent(id, run) {
		_ = archive.Close()
		return nil, domain.ErrInternal.WithDetailsf("duplicate run id %s", id)
	}
	runLogger.Info("run started")
	return run, nil
}

// Get returns the run with the given ID.
func (m *RunManager) Get(id string) (*Run, error) {
	run, ok := m.runs.Get(id)
	if !ok {
		return nil, domain.ErrRunNotFound.WithDetails(id)
	}
	return run, nil
}

// IDs returns the IDs of all active runs.
func (m *RunManager) IDs() []string {
	return m.runs.Keys()
}

// End tears down a run: it finishes the search, closes the archive and
// forgets the run.
func (m *RunManager) End(ctx context.Context, id string) error {
	run, ok := m.runs.Pop(id)
	if !ok {
		return domain.ErrRunNotFound.WithDetails(id)
	}

	var errs []error
	if err := run.Listener.SearchFinished(run.Context(ctx)); err != nil {
		errs = append(errs, err)
	}
	if err := run.archive.Close(); err != nil {
		errs = append(errs, fmt.Errorf("service: close archive: %w", err))
	}

	m.mu.Lock()
	m.lastCounts = run.Registry.StateCounts()
	m.mu.Unlock()

	m.logger.Info("run ended",
		"run_id", id,
		"connections", run.Registry.Len(),
		"duration", time.Since(run.StartedAt),
	)
	return errors.Join(errs...)
}

// StateCounts returns the per-state connection counts of the most recently
// ended run, or nil before any run ended. Active registries are not read,
// so it is safe to call from a metrics scrape.
func (m *RunManager) StateCounts() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.lastCounts)
}

// Shutdown ends every active run.
func (m *RunManager) Shutdown(ctx context.Context) error {
	var errs []error
	for _, id := range m.IDs() {
		if err := m.End(ctx, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
