// Package trace loads and replays scripted connection traces.
package trace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yndnr/pathnet-go/internal/core/domain"
	"github.com/yndnr/pathnet-go/internal/core/service"
	"github.com/yndnr/pathnet-go/internal/storage/snapshot"
)

// ErrExpectation is wrapped by StepError when an expect step or an
// expected error did not hold.
var ErrExpectation = errors.New("trace: expectation failed")

// StepError reports the step a replay stopped at.
type StepError struct {
	Index int // 1-based
	Op    Op
	Err   error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s): %v", e.Index, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Checkpointer persists registry snapshots. *snapshot.Manager satisfies it.
type Checkpointer interface {
	Create(snap *domain.Snapshot, runID string, stateID uint64) (*snapshot.Info, error)
}

// Result summarises a finished replay.
type Result struct {
	Trace       string                    `json:"trace" yaml:"trace"`
	RunID       string                    `json:"run_id" yaml:"run_id"`
	Steps       int                       `json:"steps" yaml:"steps"`
	States      map[string]int            `json:"states" yaml:"states"`
	Fingerprint string                    `json:"fingerprint" yaml:"fingerprint"`
	Archived    int                       `json:"archived" yaml:"archived"`
	Checkpoints []string                  `json:"checkpoints,omitempty" yaml:"checkpoints,omitempty"`
	Connections []domain.ConnectionRecord `json:"connections" yaml:"connections"`
}

// Runner replays traces against fresh runs.
type Runner struct {
	runs        *service.RunManager
	checkpoints Checkpointer
	logger      *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithCheckpointer enables the checkpoint op.
func WithCheckpointer(c Checkpointer) RunnerOption {
	return func(r *Runner) {
		r.checkpoints = c
	}
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a runner that starts its runs on runs.
func NewRunner(runs *service.RunManager, opts ...RunnerOption) *Runner {
	r := &Runner{
		runs:   runs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run replays t on a new run and ends the run afterwards. The result is
// returned even when a step fails, describing the registry at that point.
func (r *Runner) Run(ctx context.Context, t *Trace) (*Result, error) {
	run, err := r.runs.Start(ctx)
	if err != nil {
		return nil, err
	}
	ctx = run.Context(ctx)
	log := r.logger.With("run_id", run.ID)

	res := &Result{Trace: t.Name, RunID: run.ID}
	var stepErr error
	for i, step := range t.Steps {
		if err := ctx.Err(); err != nil {
			stepErr = err
			break
		}
		if err := r.step(ctx, run, step, res); err != nil {
			stepErr = &StepError{Index: i + 1, Op: step.Op, Err: err}
			break
		}
		res.Steps++
		log.Debug("trace step applied", "step", i+1, "op", string(step.Op))
	}

	snap := run.Snapshots.Save()
	res.States = run.Registry.StateCounts()
	res.Fingerprint = fmt.Sprintf("%016x", service.Fingerprint(snap))
	res.Archived = run.Listener.Archived()
	res.Connections = snap.Records()

	endErr := r.runs.End(ctx, run.ID)
	if stepErr != nil {
		log.Warn("trace stopped", "trace", t.Name, "error", stepErr)
		return res, stepErr
	}
	if endErr != nil {
		return res, endErr
	}
	log.Info("trace replayed", "trace", t.Name, "steps", res.Steps, "connections", len(res.Connections))
	return res, nil
}

// step applies one step and checks its expected error, if any.
func (r *Runner) step(ctx context.Context, run *service.Run, s Step, res *Result) error {
	err := r.apply(ctx, run, s, res)
	if s.Error == "" {
		return err
	}
	if err == nil {
		return fmt.Errorf("%w: want error %s, got success", ErrExpectation, s.Error)
	}
	if code := domain.GetErrorCode(err); code != s.Error {
		return fmt.Errorf("%w: want error %s, got %v", ErrExpectation, s.Error, err)
	}
	return nil
}

func (r *Runner) apply(ctx context.Context, run *service.Run, s Step, res *Result) error {
	reg := run.Registry
	h := domain.Endpoint(s.Endpoint)

	switch s.Op {
	case OpAddPendingServer:
		reg.AddPendingServer(h, s.Port, s.Host)
		return nil

	case OpAddPendingClient:
		reg.AddPendingClient(h, s.Port, s.Host)
		return nil

	case OpBindServer:
		conn := reg.FindPendingClient(s.Port, s.Host)
		if conn == nil {
			return domain.ErrConnectionNotFound.WithDetailsf("no pending client for port %d host %q", s.Port, s.Host)
		}
		return reg.BindServer(conn, h, domain.Endpoint(s.Data), s.Host)

	case OpBindClient:
		conn := reg.FindPendingServer(s.Port, s.Host)
		if conn == nil {
			return domain.ErrConnectionNotFound.WithDetailsf("no pending server for port %d host %q", s.Port, s.Host)
		}
		return reg.BindClient(conn, h, s.Host, domain.Endpoint(s.Data))

	case OpWrite:
		payload, err := s.Payload()
		if err != nil {
			return err
		}
		return reg.Write(h, payload...)

	case OpRead:
		return r.read(reg, h, s)

	case OpClose:
		return reg.Close(h)

	case OpTerminate:
		return reg.Terminate(h)

	case OpRelease:
		run.Observer.ObjectReleased(h)
		return nil

	case OpAdvance:
		return run.Listener.StateAdvanced(ctx, s.State)

	case OpBacktrack:
		return run.Listener.StateBacktracked(ctx, s.State)

	case OpRestore:
		return run.Listener.StateRestored(ctx, s.State)

	case OpProcessed:
		return run.Listener.StateProcessed(ctx, s.State)

	case OpCheckpoint:
		if r.checkpoints == nil {
			return errors.New("checkpoints are not configured")
		}
		info, err := r.checkpoints.Create(run.Snapshots.Save(), run.ID, s.State)
		if err != nil {
			return err
		}
		res.Checkpoints = append(res.Checkpoints, info.ID)
		return nil

	case OpExpect:
		return checkExpect(reg, s.Expect)

	default:
		return fmt.Errorf("%w: unknown op %q", ErrInvalidTrace, s.Op)
	}
}

// read pops Count bytes, or as many as the expected payload holds, and
// compares them with the payload when one is given.
func (r *Runner) read(reg *service.Registry, h domain.Endpoint, s Step) error {
	want, err := s.Payload()
	if err != nil {
		return err
	}
	n := s.Count
	if n == 0 {
		n = len(want)
	}
	if n == 0 {
		n = 1
	}

	got := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		b, err := reg.Read(h)
		if err != nil {
			return err
		}
		got = append(got, b)
	}
	if len(want) > 0 && !bytes.Equal(got, want) {
		return fmt.Errorf("%w: read %v, want %v", ErrExpectation, got, want)
	}
	return nil
}

func checkExpect(reg *service.Registry, e *Expect) error {
	if e == nil {
		return nil
	}
	if e.Connections != nil {
		if got := reg.Len(); got != *e.Connections {
			return fmt.Errorf("%w: %d connections, want %d", ErrExpectation, got, *e.Connections)
		}
	}
	if len(e.States) > 0 {
		counts := reg.StateCounts()
		for name, want := range e.States {
			state, err := domain.ParseState(name)
			if err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidTrace, err)
			}
			if got := counts[state.String()]; got != want {
				return fmt.Errorf("%w: %d %s connections, want %d (have %v)",
					ErrExpectation, got, state, want, counts)
			}
		}
	}
	if c := e.AddressInUse; c != nil {
		if got := reg.IsAddressInUse(c.Host, c.Port); got != c.Want {
			return fmt.Errorf("%w: address in use %s:%d = %t, want %t", ErrExpectation, c.Host, c.Port, got, c.Want)
		}
	}
	if c := e.HasServer; c != nil {
		if got := reg.HasServer(c.Port, c.Host); got != c.Want {
			return fmt.Errorf("%w: has server %s:%d = %t, want %t", ErrExpectation, c.Host, c.Port, got, c.Want)
		}
	}
	if a := e.Available; a != nil {
		got, err := reg.Available(domain.Endpoint(a.Endpoint))
		if err != nil {
			return err
		}
		if got != a.Want {
			return fmt.Errorf("%w: %d bytes available on %s, want %d",
				ErrExpectation, got, domain.Endpoint(a.Endpoint), a.Want)
		}
	}
	return nil
}
