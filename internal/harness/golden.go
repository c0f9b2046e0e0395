package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the golden form of a scenario run.
type Snapshot struct {
	Scenario string        `json:"scenario"`
	Trace    []TraceEntry  `json:"trace"`
	Final    []RecordState `json:"final"`
}

// MarshalSnapshot renders the golden bytes for a result: indented JSON with
// a trailing newline.
func MarshalSnapshot(scenario *Scenario, result *Result) ([]byte, error) {
	data, err := json.MarshalIndent(Snapshot{
		Scenario: scenario.Name,
		Trace:    result.Trace,
		Final:    result.Final,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// AssertGolden compares the result against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, scenario *Scenario, result *Result) {
	t.Helper()

	data, err := MarshalSnapshot(scenario, result)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, data)
}
