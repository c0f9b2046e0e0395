package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

func TestTestCommand_MissingArgs(t *testing.T) {
	_, err := execute(t, "--driver", "memory", "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommand_NonExistentDir(t *testing.T) {
	_, err := execute(t, "--driver", "memory", "test", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommand_EmptyDir(t *testing.T) {
	out, err := execute(t, "--driver", "memory", "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found")
}

func TestTestCommand_HarnessScenarios(t *testing.T) {
	out, err := execute(t, "--driver", "memory", "test", harnessScenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ retire-once")
	assert.Contains(t, out, "✓ separator-conflict")
	assert.Contains(t, out, "All scenarios passed")
}

func TestTestCommand_Filter(t *testing.T) {
	out, err := execute(t, "--driver", "memory", "--format", "json", "test", harnessScenarios, "--filter", "retire-*")
	require.NoError(t, err)
	resp := decodeResponse[TestResult](t, out)
	assert.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "retire-once", resp.Data.Scenarios[0].Name)
}

func TestTestCommand_InvalidFilter(t *testing.T) {
	_, err := execute(t, "--driver", "memory", "test", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "wrong.yaml", `
name: wrong
description: expects the wrong outcome
flow:
  - action: list
    expect:
      count: 5
`)
	writeFile(t, dir, "broken.yaml", "name: broken\n")

	out, err := execute(t, "--driver", "memory", "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeResponse[TestResult](t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 2, resp.Data.Failed)
}

func TestTestCommand_UpdateThenCompareGolden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "list.yaml", `
name: list
description: create then list
flow:
  - action: create
    record: {project_name: Wind Farm, registry: Verra, vintage: 2024, quantity: "500", serial_number: VCS-WIND-001}
  - action: list
    expect:
      count: 1
`)

	_, err := execute(t, "--driver", "memory", "test", dir, "--update")
	require.NoError(t, err)
	golden := filepath.Join(dir, "golden", "list.golden")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), windFarmID)

	_, err = execute(t, "--driver", "memory", "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte("{}\n"), 0o644))
	out, err := execute(t, "--driver", "memory", "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}
