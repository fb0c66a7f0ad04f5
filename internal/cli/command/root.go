// Package command provides CLI command definitions for pathnet.
//
// It uses urfave/cli/v2 for command parsing. Global flags are resolved into
// a configuration and logger once, in the app's Before hook.
package command

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pathnet-go/internal/cli/output"
	"github.com/yndnr/pathnet-go/internal/config"
	"github.com/yndnr/pathnet-go/internal/infra/buildinfo"
	"github.com/yndnr/pathnet-go/internal/infra/confloader"
	"github.com/yndnr/pathnet-go/internal/telemetry/logger"
)

const metaState = "pathnet.state"

// appState is what Before resolved from the global flags.
type appState struct {
	cfg    *config.Config
	loader *confloader.Loader
	log    logger.Logger
	format output.Format
	wide   bool
}

// slogger returns the structured logger handed to services.
func (s *appState) slogger() *slog.Logger {
	return s.log.Slog()
}

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "pathnet",
		Usage:   "Replay and inspect simulated network connection traces",
		Version: buildinfo.Version,
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ReplayCommand(),
			InspectCommand(),
			CheckpointCommand(),
			ConfigCommand(),
			VersionCommand(),
		},
		Before: setup,
	}
}

// globalFlags returns the global CLI flags.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Path to a YAML configuration file",
			EnvVars: []string{"PATHNET_CONFIG"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   string(output.FormatTable),
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error (overrides log.level)",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: text, json (overrides log.format)",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// setup loads configuration, applying flag overrides, and installs the
// default logger.
func setup(c *cli.Context) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	overrides := map[string]any{}
	if c.IsSet("log-level") {
		overrides["log.level"] = c.String("log-level")
	}
	if c.IsSet("log-format") {
		overrides["log.format"] = c.String("log-format")
	}

	loader := confloader.NewLoader(
		confloader.WithConfigFile(c.String("config")),
		confloader.WithOverrides(overrides),
	)
	cfg := config.Default()
	if err := loader.Load(cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := config.Verify(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := initLogger(cfg, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[metaState] = &appState{
		cfg:    cfg,
		loader: loader,
		log:    log,
		format: format,
		wide:   c.Bool("wide"),
	}
	return nil
}

func initLogger(cfg *config.Config, w io.Writer) (logger.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: w,
	})
	if err != nil {
		return nil, err
	}
	logger.SetDefault(log)
	return log, nil
}

// state returns what setup resolved. Commands invoked without the app's
// Before hook get the default configuration.
func state(c *cli.Context) *appState {
	if c.App != nil {
		if st, ok := c.App.Metadata[metaState].(*appState); ok {
			return st
		}
	}
	return &appState{
		cfg:    config.Default(),
		loader: confloader.NewLoader(),
		log:    logger.Default(),
		format: output.FormatTable,
	}
}

// render writes data to the app's writer in the selected format.
func render(c *cli.Context, data any) error {
	st := state(c)
	return output.NewFormatter(st.format, st.wide).Format(writer(c), data)
}

func writer(c *cli.Context) io.Writer {
	if c.App != nil && c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}
