package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const windFarmID = "4a8c759aaa122f9d7c4e3bad88f4841ed8baf5b47867176d36a5a6906c775c45"

var windFarmFlags = []string{
	"--project", "Wind Farm",
	"--registry", "Verra",
	"--vintage", "2024",
	"--quantity", "500",
	"--serial", "VCS-WIND-001",
}

// response is CLIResponse with a typed payload.
type response[T any] struct {
	Status string    `json:"status"`
	Data   T         `json:"data"`
	Error  *CLIError `json:"error"`
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), err
}

// dbArgs points a command at a SQLite database in a fresh temp dir.
func dbArgs(t *testing.T) []string {
	t.Helper()
	return []string{"--driver", "sqlite", "--db", filepath.Join(t.TempDir(), "offset.db")}
}

func with(base []string, args ...string) []string {
	out := append([]string{}, base...)
	return append(out, args...)
}

func decodeResponse[T any](t *testing.T, out string) response[T] {
	t.Helper()
	var resp response[T]
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}
