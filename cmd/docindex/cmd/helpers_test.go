package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// cli runs commands against an isolated home, config and data directory.
type cli struct {
	t       *testing.T
	dataDir string
	docs    string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")

	return &cli{
		t:       t,
		dataDir: filepath.Join(home, "data"),
		docs:    t.TempDir(),
	}
}

func (c *cli) run(args ...string) (string, error) {
	c.t.Helper()
	return c.runContext(context.Background(), args...)
}

func (c *cli) runContext(ctx context.Context, args ...string) (string, error) {
	c.t.Helper()
	cmd, g := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append([]string{"--data-dir", c.dataDir}, args...))

	err := cmd.ExecuteContext(ctx)
	require.NoError(c.t, g.shutdown())
	return buf.String(), err
}

// mustRun runs a command that is expected to succeed.
func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, err := c.run(args...)
	require.NoError(c.t, err, out)
	return out
}

func (c *cli) write(name, body string) string {
	c.t.Helper()
	path := filepath.Join(c.docs, name)
	require.NoError(c.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(c.t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// seed writes three documents, two of them mentioning "kestrel", and
// indexes them into the default library.
func (c *cli) seed() {
	c.t.Helper()
	c.write("alpha.md", "# Alpha\nA kestrel hovered over the field.")
	c.write("notes.txt", "meeting notes: kestrel survey next week")
	c.write("recipe.md", "# Soup\nonions, stock, salt")
	c.mustRun("index", c.docs, "--plain")
}
