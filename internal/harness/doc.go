// Package harness runs mnemo scenarios end to end.
//
// A scenario drives a fresh engine through setup and flow steps, records
// every call as an invocation and a completion, and then checks assertions
// against the trace and the final database state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	now: "2024-03-10T21:00:00Z"
//	rules: rules.yaml
//	setup:
//	  - action: ingest
//	    args: { raw: "todo call the bank", day: "2024-03-10" }
//	flow:
//	  - invoke: close_day
//	    args: { day: "2024-03-10" }
//	    expect:
//	      case: ok
//	      result: { already_closed: false }
//	assertions:
//	  - type: trace_contains
//	    action: close_day
//	    case: ok
//	  - type: final_state
//	    table: daily_logs
//	    where: { day: "2024-03-10" }
//	    expect: { closed: 1, entry_count: 1 }
//
// An action completes with case "ok" or with the code of the error it
// returned (VALIDATION_ERROR, NOT_FOUND, STATE_TRANSITION_ERROR, ...).
// ActionNames lists the supported actions.
//
// # Assertion Types
//
//   - trace_contains: an action appears in the trace with matching args,
//     optionally completing with a given case
//   - trace_order: actions appear in the specified order
//   - trace_count: an action appears exactly N times
//   - final_state: a table holds one row matching expect, or N rows
//
// # Deterministic Testing
//
// Every run uses an in-memory SQLite database, a fixed clock starting at the
// scenario's now (DefaultNow when unset) and sequential request ids
// (req-1, req-2, ...). Two runs of a scenario produce identical traces,
// which RunWithGolden compares against testdata/golden.
package harness
