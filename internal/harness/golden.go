package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the shape of a scenario trace: which actions ran,
// with which args, and how each completed. Results are left out so a
// snapshot survives changes to result payloads that leave behavior intact.
type TraceSnapshot struct {
	ScenarioName string          `json:"scenario_name"`
	Trace        []SnapshotEvent `json:"trace"`
}

// SnapshotEvent is one trace event in a TraceSnapshot.
type SnapshotEvent struct {
	Seq        int64                  `json:"seq"`
	Type       string                 `json:"type"`
	Action     string                 `json:"action"`
	Args       map[string]interface{} `json:"args,omitempty"`
	OutputCase string                 `json:"output_case,omitempty"`
}

// NewTraceSnapshot builds the snapshot of a result's trace.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	events := make([]SnapshotEvent, len(result.Trace))
	for i, event := range result.Trace {
		events[i] = SnapshotEvent{
			Seq:        event.Seq,
			Type:       event.Type,
			Action:     event.Action,
			Args:       event.Args,
			OutputCase: event.OutputCase,
		}
	}
	return TraceSnapshot{ScenarioName: name, Trace: events}
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
// Map keys are sorted by encoding/json, so output is stable.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := NewTraceSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
