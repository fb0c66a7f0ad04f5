package command

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/pathnet-go/internal/cli/output"
	"github.com/yndnr/pathnet-go/internal/cli/trace"
	"github.com/yndnr/pathnet-go/internal/config"
	"github.com/yndnr/pathnet-go/internal/core/service"
	"github.com/yndnr/pathnet-go/internal/infra/confloader"
	"github.com/yndnr/pathnet-go/internal/infra/shutdown"
	"github.com/yndnr/pathnet-go/internal/server/httpserver"
	"github.com/yndnr/pathnet-go/internal/storage"
	"github.com/yndnr/pathnet-go/internal/storage/memory"
	"github.com/yndnr/pathnet-go/internal/storage/snapshot"
	"github.com/yndnr/pathnet-go/internal/telemetry/logger"
	"github.com/yndnr/pathnet-go/internal/telemetry/metric"
)

// replayInterval is the minimum gap between watch-mode replays.
const replayInterval = 500 * time.Millisecond

// ReplayCommand returns the replay command.
func ReplayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Run a trace against a fresh connection registry",
		ArgsUsage: "<trace.yaml>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "checkpoint-dir",
				Usage: "Directory for checkpoint steps (default: checkpoint.dir when the trace checkpoints)",
			},
			&cli.StringFlag{
				Name:  "archive",
				Usage: "State archive backend: memory, badger (overrides archive.backend)",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Re-run the trace whenever it or the config file changes",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "Print metrics in Prometheus text format after each run",
			},
		},
		Action: replayAction,
	}
}

func replayAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("replay: trace file is required", 2)
	}

	st := state(c)
	if c.IsSet("archive") {
		st.cfg.Archive.Backend = c.String("archive")
		if err := config.Verify(st.cfg); err != nil {
			return cli.Exit(err.Error(), 2)
		}
	}

	env, err := newReplayEnv(st, c.String("checkpoint-dir"), c.Bool("metrics"))
	if err != nil {
		return err
	}
	defer env.Close()

	if !c.Bool("watch") {
		return env.replayFile(c, path)
	}
	return watchReplay(c, st, env, path)
}

// replayEnv holds the components shared by every replay of one invocation.
type replayEnv struct {
	cfg         *config.Config
	logger      *slog.Logger
	metrics     *metric.Registry
	printMetric bool
	runs        *service.RunManager
	engine      *storage.BadgerEngine
	checkDir    string
	checkpoints *snapshot.Manager

	mu   sync.Mutex
	last *replayStatus
}

// replayStatus is what the status endpoint reports about the latest replay.
type replayStatus struct {
	Trace       string         `json:"trace"`
	RunID       string         `json:"run_id"`
	Steps       int            `json:"steps"`
	States      map[string]int `json:"states"`
	Fingerprint string         `json:"fingerprint"`
	Error       string         `json:"error,omitempty"`
	FinishedAt  time.Time      `json:"finished_at"`
}

func newReplayEnv(st *appState, checkpointDir string, printMetrics bool) (*replayEnv, error) {
	env := &replayEnv{
		cfg:         st.cfg,
		logger:      st.slogger(),
		printMetric: printMetrics,
		checkDir:    checkpointDir,
	}
	if st.cfg.Metrics.Enabled || printMetrics {
		env.metrics = metric.NewRegistry()
	}

	factory, err := env.archiveFactory()
	if err != nil {
		return nil, err
	}

	mode, err := service.ParseAddressInUseMode(st.cfg.Registry.AddressInUse)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.runs = service.NewRunManager(service.RunConfig{
		AddressInUse:       mode,
		StrictTerminate:    st.cfg.Registry.StrictTerminate,
		TerminateOnRelease: st.cfg.Registry.TerminateOnRelease,
	}, factory,
		service.WithManagerLogger(env.logger),
		service.WithManagerMetrics(env.metrics),
	)
	if err := env.metrics.Register(metric.NewCollector(env.runs)); err != nil {
		env.Close()
		return nil, fmt.Errorf("register collector: %w", err)
	}
	return env, nil
}

// archiveFactory returns the per-run archive constructor. The badger
// backend shares one engine across runs; runs are sequential and each one
// clears its states when it ends.
func (e *replayEnv) archiveFactory() (service.ArchiveFactory, error) {
	cfg := e.cfg.Archive
	if cfg.Backend != "badger" {
		return func(string) (service.StateArchive, error) {
			return memory.NewArchive(), nil
		}, nil
	}

	kvCfg := storage.DefaultKVConfig(cfg.Dir)
	kvCfg.InMemory = cfg.InMemory
	if cfg.GCInterval > 0 {
		kvCfg.Badger.GCInterval = cfg.GCInterval
	}
	if cfg.CacheSize > 0 {
		kvCfg.Badger.CacheSize = cfg.CacheSize
	}
	engine, err := storage.NewBadgerEngine(kvCfg, e.logger)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if e.metrics != nil {
		if _, err := engine.RegisterMetrics(e.metrics.Prometheus()); err != nil {
			_ = engine.Close()
			return nil, err
		}
	}
	e.engine = engine

	return func(runID string) (service.StateArchive, error) {
		return storage.NewKVArchive(engine, runID, false, e.logger), nil
	}, nil
}

// checkpointer opens the checkpoint manager on first use.
func (e *replayEnv) checkpointer(t *trace.Trace) (*snapshot.Manager, error) {
	if e.checkpoints != nil {
		return e.checkpoints, nil
	}
	dir := e.checkDir
	if dir == "" {
		if !hasCheckpointStep(t) {
			return nil, nil
		}
		dir = e.cfg.Checkpoint.Dir
	}
	mgr, err := openCheckpoints(e.cfg.Checkpoint, dir)
	if err != nil {
		return nil, err
	}
	e.checkpoints = mgr
	return mgr, nil
}

func hasCheckpointStep(t *trace.Trace) bool {
	for _, s := range t.Steps {
		if s.Op == trace.OpCheckpoint {
			return true
		}
	}
	return false
}

// Run replays t once and prunes old checkpoints.
func (e *replayEnv) Run(ctx context.Context, t *trace.Trace) (*trace.Result, error) {
	opts := []trace.RunnerOption{trace.WithRunnerLogger(e.logger)}
	mgr, err := e.checkpointer(t)
	if err != nil {
		return nil, err
	}
	if mgr != nil {
		opts = append(opts, trace.WithCheckpointer(mgr))
	}

	res, runErr := trace.NewRunner(e.runs, opts...).Run(ctx, t)
	e.record(res, runErr)
	if mgr != nil && res != nil && len(res.Checkpoints) > 0 {
		if n, err := mgr.Prune(); err != nil {
			e.logger.Warn("checkpoint prune failed", "error", err)
		} else if n > 0 {
			e.logger.Debug("checkpoints pruned", "removed", n)
		}
	}
	return res, runErr
}

func (e *replayEnv) record(res *trace.Result, err error) {
	st := &replayStatus{FinishedAt: time.Now().UTC()}
	if res != nil {
		st.Trace = res.Trace
		st.RunID = res.RunID
		st.Steps = res.Steps
		st.States = res.States
		st.Fingerprint = res.Fingerprint
	}
	if err != nil {
		st.Error = err.Error()
	}
	e.mu.Lock()
	e.last = st
	e.mu.Unlock()
}

// status returns the latest replay outcome, or nil before the first one.
func (e *replayEnv) status() any {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.last == nil {
		return map[string]string{"status": "waiting"}
	}
	return e.last
}

// replayFile loads the trace at path, runs it and prints the outcome.
func (e *replayEnv) replayFile(c *cli.Context, path string) error {
	t, err := trace.Load(path)
	if err != nil {
		return err
	}

	res, runErr := e.Run(c.Context, t)
	if res != nil {
		var view any = res
		if state(c).format == output.FormatTable {
			view = resultView{res}
		}
		if err := render(c, view); err != nil {
			return err
		}
	}
	if e.printMetric {
		if err := e.metrics.WriteText(writer(c)); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if runErr != nil {
		return cli.Exit(fmt.Sprintf("replay %s: %v", path, runErr), 1)
	}
	return nil
}

// Close releases the shared archive engine.
func (e *replayEnv) Close() {
	if e.engine != nil {
		if err := e.engine.Close(); err != nil {
			e.logger.Warn("close archive engine", "error", err)
		}
		e.engine = nil
	}
}

// watchReplay replays the trace, then again on every change to the trace
// or config file, until interrupted.
func watchReplay(c *cli.Context, st *appState, env *replayEnv, path string) error {
	log := env.logger

	watcher, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	if err := watcher.Watch(path); err != nil {
		_ = watcher.Stop()
		return fmt.Errorf("watch %s: %w", path, err)
	}
	if cfgPath := st.loader.FilePath(); cfgPath != "" {
		if err := watcher.Watch(cfgPath); err != nil {
			_ = watcher.Stop()
			return fmt.Errorf("watch %s: %w", cfgPath, err)
		}
	}

	handler := shutdown.NewHandler(10*time.Second, log)
	handler.OnShutdown("watcher", func(context.Context) error {
		return watcher.Stop()
	})

	if addr := st.cfg.Metrics.Addr; addr != "" {
		cfg := httpserver.DefaultRouterConfig()
		cfg.Logger = log
		cfg.Status = env.status
		if env.metrics != nil {
			cfg.Metrics = env.metrics.Handler()
		}
		srv := httpserver.New(addr, httpserver.NewRouter(cfg), log)
		if _, err := srv.Start(); err != nil {
			_ = watcher.Stop()
			return fmt.Errorf("start status server: %w", err)
		}
		handler.OnShutdown("http", srv.Shutdown)
	}

	changes := make(chan string, 1)
	watcher.OnChange(func(changed string) {
		select {
		case changes <- changed:
		default:
		}
	})
	watcher.StartAsync()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	// Editors often emit several events per save; coalesce them.
	limiter := rate.NewLimiter(rate.Every(replayInterval), 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		replayOnce(c, env, path)
		for {
			select {
			case changed := <-changes:
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				drain(changes)
				if st.loader.FilePath() != "" {
					reloadConfig(st, log)
				}
				log.Info("change detected, replaying", "file", changed)
				replayOnce(c, env, path)
			case <-ctx.Done():
				return
			}
		}
	}()

	err = handler.WaitContext(ctx)
	cancel()
	<-done
	return err
}

func drain(ch <-chan string) {
	for {
		select {
		case <-ch:
		default:
			return
		}
	}
}

// replayOnce is replayFile for watch mode: failures are logged, not fatal.
func replayOnce(c *cli.Context, env *replayEnv, path string) {
	if err := env.replayFile(c, path); err != nil {
		env.logger.Error("replay failed", "trace", path, "error", err)
	}
}

// reloadConfig re-reads the config file and applies the log level. Other
// settings need a restart.
func reloadConfig(st *appState, log *slog.Logger) {
	next := config.Default()
	if err := st.loader.Reload(next); err != nil {
		log.Error("config reload failed", "error", err)
		return
	}
	if err := config.Verify(next); err != nil {
		log.Error("config reload rejected", "error", err)
		return
	}
	if next.Log.Level != st.cfg.Log.Level {
		st.log.Info("log level changed", "from", st.cfg.Log.Level, "to", next.Log.Level)
		st.cfg.Log.Level = next.Log.Level
		logger.SetLevel(next.Log.Level)
	}
}

// resultView lays a replay result out as a connection table.
type resultView struct {
	*trace.Result
}

// Table implements output.Tabular.
func (v resultView) Table(wide bool) *output.Table {
	t := &output.Table{}
	headers := []string{"PORT", "STATE", "SERVER_HOST", "PASSIVE", "SERVER_END", "CLIENT_END", "C>S", "S>C"}
	if wide {
		headers = append([]string{"ID"}, append(headers, "CLIENT_HOST")...)
	}
	t.SetHeaders(headers...)
	for _, r := range v.Connections {
		cells := []string{
			strconv.Itoa(r.Port),
			r.State,
			dash(r.ServerHost),
			r.ServerPassive.String(),
			r.ServerData.String(),
			r.ClientData.String(),
			strconv.Itoa(len(r.ClientToServer)),
			strconv.Itoa(len(r.ServerToClient)),
		}
		if wide {
			cells = append([]string{r.ID}, append(cells, dash(r.ClientHost))...)
		}
		t.AddRow(cells...)
	}
	return t
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
