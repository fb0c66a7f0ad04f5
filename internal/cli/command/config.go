package command

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pathnet-go/internal/cli/output"
	"github.com/yndnr/pathnet-go/internal/config"
)

// ConfigCommand returns the config command.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show or validate the effective configuration",
		Subcommands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Print the effective configuration with secrets masked",
				Action: configShow,
			},
			{
				Name:   "validate",
				Usage:  "Check the configuration file and environment",
				Action: configValidate,
			},
		},
	}
}

// configShow prints the sanitized configuration. Sections do not fit table
// cells, so table output falls back to YAML.
func configShow(c *cli.Context) error {
	st := state(c)
	format := st.format
	if format == output.FormatTable {
		format = output.FormatYAML
	}
	return output.NewFormatter(format, st.wide).Format(writer(c), config.Sanitize(st.cfg))
}

// configValidate reports success: setup already rejected an invalid
// configuration before any command ran.
func configValidate(c *cli.Context) error {
	st := state(c)
	if err := config.Verify(st.cfg); err != nil {
		return cli.Exit(fmt.Sprintf("invalid configuration: %v", err), 1)
	}
	source := st.loader.FilePath()
	if source == "" {
		source = "defaults and environment"
	}
	_, err := fmt.Fprintf(writer(c), "Configuration OK (%s)\n", source)
	return err
}
