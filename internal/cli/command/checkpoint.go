package command

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pathnet-go/internal/cli/output"
	"github.com/yndnr/pathnet-go/internal/config"
	"github.com/yndnr/pathnet-go/internal/storage/snapshot"
)

// CheckpointCommand returns the checkpoint command.
func CheckpointCommand() *cli.Command {
	dirFlag := &cli.StringFlag{
		Name:    "dir",
		Aliases: []string{"d"},
		Usage:   "Checkpoint directory (default: checkpoint.dir)",
	}
	return &cli.Command{
		Name:  "checkpoint",
		Usage: "Manage checkpoint files",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List checkpoints, oldest first",
				Flags:  []cli.Flag{dirFlag},
				Action: checkpointList,
			},
			{
				Name:  "prune",
				Usage: "Delete all but the newest checkpoints",
				Flags: []cli.Flag{
					dirFlag,
					&cli.IntFlag{
						Name:  "keep",
						Usage: "Number of checkpoints to keep (default: checkpoint.retention_count)",
					},
				},
				Action: checkpointPrune,
			},
			{
				Name:   "keygen",
				Usage:  "Generate a checkpoint encryption key",
				Action: checkpointKeygen,
			},
		},
	}
}

func checkpointList(c *cli.Context) error {
	st := state(c)
	mgr, err := openCheckpoints(st.cfg.Checkpoint, c.String("dir"))
	if err != nil {
		return err
	}
	infos, err := mgr.List()
	if err != nil {
		return fmt.Errorf("list checkpoints: %w", err)
	}
	return render(c, checkpointTable(infos))
}

func checkpointPrune(c *cli.Context) error {
	st := state(c)
	cfg := st.cfg.Checkpoint
	if c.IsSet("keep") {
		if c.Int("keep") < 1 {
			return cli.Exit("checkpoint prune: --keep must be at least 1", 2)
		}
		cfg.RetentionCount = c.Int("keep")
	}
	mgr, err := openCheckpoints(cfg, c.String("dir"))
	if err != nil {
		return err
	}
	removed, err := mgr.Prune()
	if err != nil {
		return fmt.Errorf("prune checkpoints: %w", err)
	}
	_, err = fmt.Fprintf(writer(c), "Removed %d checkpoint(s)\n", removed)
	return err
}

func checkpointKeygen(c *cli.Context) error {
	key, err := snapshot.GenerateKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(writer(c), key)
	return err
}

// openCheckpoints opens the checkpoint manager for dir, or cfg.Dir when dir
// is empty, with the configured sealer.
func openCheckpoints(cfg config.CheckpointSection, dir string) (*snapshot.Manager, error) {
	if dir == "" {
		dir = cfg.Dir
	}
	sealer, err := sealerFor(cfg.EncryptionKey, cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return snapshot.NewManager(snapshot.Config{
		Dir:            dir,
		RetentionCount: cfg.RetentionCount,
		Sealer:         sealer,
	})
}

// sealerFor builds the sealer for an encoded key. No key means plaintext
// checkpoints.
func sealerFor(encoded, algo string) (*snapshot.Sealer, error) {
	key, err := snapshot.ParseKey(encoded)
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, nil
	}
	return snapshot.NewSealer(key, snapshot.Algorithm(algo))
}

// checkpointTable lays checkpoint metadata out as a table.
type checkpointTable []*snapshot.Info

// Table implements output.Tabular.
func (l checkpointTable) Table(wide bool) *output.Table {
	t := &output.Table{}
	if wide {
		t.SetHeaders("ID", "CREATED", "SIZE", "PATH")
	} else {
		t.SetHeaders("ID", "CREATED", "SIZE")
	}
	for _, info := range l {
		cells := []string{
			info.ID,
			formatMillis(info.CreatedAt),
			strconv.FormatInt(info.Size, 10),
		}
		if wide {
			cells = append(cells, info.Path)
		}
		t.AddRow(cells...)
	}
	return t
}

// formatMillis formats a Unix millisecond timestamp.
func formatMillis(ms int64) string {
	if ms == 0 {
		return "-"
	}
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
