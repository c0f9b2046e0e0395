package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/offset/internal/api"
)

const seedJSON = `[
  {"project_name": "Wind Farm", "registry": "Verra", "vintage": 2024, "quantity": "500", "serial_number": "VCS-WIND-001"},
  {"project_name": "Solar Park", "registry": "Gold Standard", "vintage": 2023, "quantity": 1250.5, "serial_number": "GS-SOL-042"},
  {"project_name": "wind farm", "registry": "VERRA", "vintage": 2024, "quantity": "500.0000", "serial_number": "vcs-wind-001"}
]`

func TestSeed_LoadsAndSkipsDuplicates(t *testing.T) {
	db := dbArgs(t)
	path := writeFile(t, t.TempDir(), "registry.json", seedJSON)

	out, err := execute(t, with(db, "--format", "json", "seed", path, "--workers", "2")...)
	require.NoError(t, err)
	resp := decodeResponse[SeedReportView](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Created)
	assert.Equal(t, 1, resp.Data.Skipped)
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, windFarmID, resp.Data.Items[0].RecordID)

	out, err = execute(t, with(db, "seed", path)...)
	require.NoError(t, err)
	assert.Contains(t, out, "3 items, 0 created, 3 skipped")

	out, err = execute(t, with(db, "--format", "json", "list")...)
	require.NoError(t, err)
	assert.Len(t, decodeResponse[[]api.RecordView](t, out).Data, 2)
}

func TestSeed_ReportsInvalidAndConflicts(t *testing.T) {
	db := dbArgs(t)
	path := writeFile(t, t.TempDir(), "bad.yaml", `
- {project_name: "a|b", registry: c, vintage: 2024, quantity: "1", serial_number: s}
- {project_name: a, registry: "b|c", vintage: 2024, quantity: "1", serial_number: s}
- {project_name: x, registry: y, vintage: 2024, quantity: "-5", serial_number: z}
`)

	out, err := execute(t, with(db, "seed", path)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))
	assert.Contains(t, out, "3 items, 1 created, 0 skipped, 1 invalid, 1 conflicts, 0 errors")
	assert.Contains(t, out, "conflict")
	assert.Contains(t, out, "invalid")

	out, err = execute(t, with(db, "--format", "json", "seed", path)...)
	require.Error(t, err)
	resp := decodeResponse[SeedReportView](t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "SEED_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Skipped)
}

func TestSeed_CheckDoesNotWrite(t *testing.T) {
	db := dbArgs(t)
	path := writeFile(t, t.TempDir(), "registry.json", seedJSON)

	out, err := execute(t, with(db, "seed", "--check", path)...)
	require.NoError(t, err)
	assert.Contains(t, out, "3 items, 2 valid, 1 skipped")

	out, err = execute(t, with(db, "list")...)
	require.NoError(t, err)
	assert.Contains(t, out, "No records.")
}

func TestSeed_UnreadableFile(t *testing.T) {
	_, err := execute(t, "--driver", "memory", "seed", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	path := writeFile(t, t.TempDir(), "registry.txt", "nope")
	_, err = execute(t, "--driver", "memory", "seed", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestExport_RoundTrip(t *testing.T) {
	db := dbArgs(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "registry.json", seedJSON)
	out := filepath.Join(dir, "records.xlsx")

	_, err := execute(t, with(db, "seed", path)...)
	require.NoError(t, err)
	_, err = execute(t, with(db, "retire", windFarmID)...)
	require.NoError(t, err)

	stdout, err := execute(t, with(db, "export", out)...)
	require.NoError(t, err)
	assert.Contains(t, stdout, "exported 2 records")

	stdout, err = execute(t, with(db, "--format", "json", "seed", out)...)
	require.NoError(t, err)
	resp := decodeResponse[SeedReportView](t, stdout)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Skipped)
	assert.Equal(t, 0, resp.Data.Created)
}
