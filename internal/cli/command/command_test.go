package command

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/urfave/cli/v2"
)

// runApp runs the pathnet app with args and returns what it wrote to its
// output writer.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runAppContext(t, context.Background(), args...)
}

func runAppContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.RunContext(ctx, append([]string{"pathnet"}, args...))
	return stdout.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestApp_Commands(t *testing.T) {
	app := App()
	if app.Name != "pathnet" {
		t.Errorf("Name = %q, want %q", app.Name, "pathnet")
	}

	names := make(map[string]bool)
	for _, cmd := range app.Commands {
		names[cmd.Name] = true
	}
	for _, name := range []string{"replay", "inspect", "checkpoint", "config", "version"} {
		if !names[name] {
			t.Errorf("missing command: %s", name)
		}
	}
}

func TestApp_GlobalFlags(t *testing.T) {
	names := make(map[string]bool)
	for _, f := range globalFlags() {
		for _, n := range f.Names() {
			names[n] = true
		}
	}
	for _, name := range []string{"config", "c", "output", "o", "log-level", "log-format", "wide", "w"} {
		if !names[name] {
			t.Errorf("missing global flag: %s", name)
		}
	}
}

func TestApp_InvalidOutputFormat(t *testing.T) {
	if _, err := runApp(t, "-o", "xml", "version"); err == nil {
		t.Error("expected error for unknown output format")
	}
}

func TestApp_InvalidConfig(t *testing.T) {
	path := writeFile(t, t.TempDir(), "pathnet.yaml", "registry:\n  address_in_use: fuzzy\n")
	if _, err := runApp(t, "-c", path, "version"); err == nil {
		t.Error("expected error for invalid configuration")
	}
}

func TestApp_MissingConfigFile(t *testing.T) {
	if _, err := runApp(t, "-c", filepath.Join(t.TempDir(), "missing.yaml"), "version"); err == nil {
		t.Error("expected error for missing config file")
	}
}
