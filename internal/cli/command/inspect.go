package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pathnet-go/internal/cli/output"
	"github.com/yndnr/pathnet-go/internal/core/domain"
	"github.com/yndnr/pathnet-go/internal/storage/snapshot"
)

// InspectCommand returns the inspect command.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Show the metadata and connections of a checkpoint file",
		ArgsUsage: "<checkpoint-file>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "key",
				Usage:   "Decryption key (default: checkpoint.encryption_key)",
				EnvVars: []string{"PATHNET_CHECKPOINT_KEY"},
			},
		},
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("inspect: checkpoint file is required", 2)
	}

	st := state(c)
	key := st.cfg.Checkpoint.EncryptionKey
	if c.IsSet("key") {
		key = c.String("key")
	}
	sealer, err := sealerFor(key, st.cfg.Checkpoint.Algorithm)
	if err != nil {
		return cli.Exit(fmt.Sprintf("inspect: %v", err), 2)
	}

	snap, info, err := snapshot.ReadFile(path, sealer)
	if err != nil {
		return fmt.Errorf("read checkpoint %s: %w", path, err)
	}
	return render(c, checkpointView{
		Info:        *info,
		TakenAt:     snap.TakenAt(),
		Connections: snap.Records(),
	})
}

// checkpointView is the decoded content of one checkpoint file.
type checkpointView struct {
	snapshot.Info `yaml:",inline"`
	TakenAt       int64                     `json:"taken_at" yaml:"taken_at"`
	Connections   []domain.ConnectionRecord `json:"connections" yaml:"connections"`
}

// Table implements output.Tabular with one row per connection.
func (v checkpointView) Table(wide bool) *output.Table {
	t := &output.Table{}
	t.SetHeaders("PORT", "STATE", "SERVER_HOST", "CLIENT_HOST", "C>S", "S>C")
	for _, r := range v.Connections {
		t.AddRow(
			strconv.Itoa(r.Port),
			r.State,
			dash(r.ServerHost),
			dash(r.ClientHost),
			bufferCell(r.ClientToServer, wide),
			bufferCell(r.ServerToClient, wide),
		)
	}
	return t
}

// bufferCell prints the buffered byte count, or the bytes themselves in
// wide mode.
func bufferCell(b []byte, wide bool) string {
	if !wide {
		return strconv.Itoa(len(b))
	}
	if len(b) == 0 {
		return "-"
	}
	return fmt.Sprint(b)
}
