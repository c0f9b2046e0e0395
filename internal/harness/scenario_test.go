package harness

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_Testdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		s, err := LoadScenario(path)
		require.NoError(t, err, path)
		assert.NotEmpty(t, s.Flow)
	}
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: list-empty
description: empty store lists nothing
flow:
  - action: list
    expect:
      count: 0
`), 0o644))

	s, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "list-empty", s.Name)
	require.Len(t, s.Flow, 1)
	require.NotNil(t, s.Flow[0].Expect.Count)
	assert.Equal(t, 0, *s.Flow[0].Expect.Count)
}

func TestParseScenario_RecordNumbersKeepDigits(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: exact
description: quantity digits survive parsing
flow:
  - action: create
    record:
      project_name: Wind Farm
      registry: Verra
      vintage: 2024
      quantity: 12345678901234.56789
      serial_number: VCS-WIND-001
`))
	require.NoError(t, err)
	require.Len(t, s.Flow, 1)

	rec := s.Flow[0].Record
	assert.Equal(t, json.Number("12345678901234.56789"), rec["quantity"])
	assert.Equal(t, json.Number("2024"), rec["vintage"])
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown field",
			yaml:    "name: x\ndescription: y\nflows: []\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "missing name",
			yaml:    "description: y\nflow: [{action: list}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: x\nflow: [{action: list}]\n",
			wantErr: "description is required",
		},
		{
			name:    "empty flow",
			yaml:    "name: x\ndescription: y\n",
			wantErr: "flow list is required",
		},
		{
			name:    "unknown action",
			yaml:    "name: x\ndescription: y\nflow: [{action: burn}]\n",
			wantErr: `unknown action "burn"`,
		},
		{
			name:    "create without record",
			yaml:    "name: x\ndescription: y\nflow: [{action: create}]\n",
			wantErr: "record is required",
		},
		{
			name:    "retire without target",
			yaml:    "name: x\ndescription: y\nflow: [{action: retire}]\n",
			wantErr: "id or ref is required",
		},
		{
			name:    "unknown ref",
			yaml:    "name: x\ndescription: y\nflow: [{action: get, ref: wind}]\n",
			wantErr: `unknown ref "wind"`,
		},
		{
			name:    "id and ref",
			yaml:    "name: x\ndescription: y\nsetup: [{action: create, as: w, record: {a: 1}}]\nflow: [{action: get, id: abc, ref: w}]\n",
			wantErr: "mutually exclusive",
		},
		{
			name:    "retire in setup",
			yaml:    "name: x\ndescription: y\nsetup: [{action: retire, id: abc}]\nflow: [{action: list}]\n",
			wantErr: "only create is allowed",
		},
		{
			name:    "duplicate name",
			yaml:    "name: x\ndescription: y\nflow: [{action: create, as: w, record: {a: 1}}, {action: create, as: w, record: {a: 2}}]\n",
			wantErr: `duplicate name "w"`,
		},
		{
			name:    "outcome on retire",
			yaml:    "name: x\ndescription: y\nflow: [{action: retire, id: abc, expect: {outcome: created}}]\n",
			wantErr: "outcome is only valid on create",
		},
		{
			name:    "error with status",
			yaml:    "name: x\ndescription: y\nflow: [{action: get, id: abc, expect: {error: NOT_FOUND, status: ACTIVE}}]\n",
			wantErr: "error excludes outcome and status",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: x\ndescription: y\nflow: [{action: list}]\nassertions: [{type: final_state}]\n",
			wantErr: `unknown assertion type "final_state"`,
		},
		{
			name:    "event_order without events",
			yaml:    "name: x\ndescription: y\nflow: [{action: get, id: abc}]\nassertions: [{type: event_order, id: abc}]\n",
			wantErr: "events list is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
