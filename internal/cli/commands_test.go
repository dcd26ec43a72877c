package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/clock"
	"github.com/roach88/mnemo/internal/ingest"
	"github.com/roach88/mnemo/internal/testutil"
)

// cliEnv runs commands against one database with a fixed clock and
// sequential request ids shared across invocations.
type cliEnv struct {
	t      *testing.T
	dbPath string
	config string
	clock  *clock.Fixed
	ids    *ingest.SequenceGenerator
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	return &cliEnv{
		t:      t,
		dbPath: testutil.DBPath(t),
		config: filepath.Join(t.TempDir(), "absent.yaml"),
		clock:  testutil.FixedClock(),
		ids:    ingest.NewSequenceGenerator("req"),
	}
}

// run executes the root command with args and returns stdout and the
// command error.
func (e *cliEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()
	opts := &RootOptions{
		logger: zap.NewNop(),
		clock:  e.clock,
		ids:    e.ids,
	}
	cmd := newRootCommand(opts)

	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(append([]string{"--db", e.dbPath, "--config", e.config}, args...))

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// mustRun is run for commands expected to succeed.
func (e *cliEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run("", args...)
	require.NoError(e.t, err, out)
	return out
}

func decodeResponse(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

func dataMap(t *testing.T, resp CLIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func TestIngestCommand_Text(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun("ingest", "TODO:", "pagar", "luz")
	assert.Equal(t, "✓ Entry 1 on 2024-03-10 routed to tasks (task) by task_prefix\n  task 1: pagar luz [pending]\n", out)

	out = env.mustRun("ingest", "--day", "2024-03-09", "random thought")
	assert.Equal(t, "✓ Entry 2 on 2024-03-09 routed to facts (note) by fallback\n  fact 1: random thought\n", out)
}

func TestIngestCommand_JSON(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun("--format", "json", "ingest", "--source", "slack", "gasté $12.50 en café")
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "req-1", resp.TraceID)

	data := dataMap(t, resp)
	entry := data["entry"].(map[string]interface{})
	assert.Equal(t, "transactions", entry["routed_to"])
	assert.Equal(t, "expense_keyword", entry["rule_matched"])
	assert.Equal(t, "slack", entry["source"])

	routed := data["routed_entity"].(map[string]interface{})
	assert.Equal(t, "transactions", routed["category"])
}

func TestIngestCommand_Stdin(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("PROJECT: mudanza\n", "ingest")
	require.NoError(t, err)
	assert.Contains(t, out, "routed to projects (project) by project_keyword")
	assert.Contains(t, out, "project 1: mudanza [active]")
}

func TestIngestCommand_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"blank_text", []string{"ingest", "   "}, "VALIDATION_ERROR"},
		{"bad_source", []string{"ingest", "--source", "telegram", "hola"}, "VALIDATION_ERROR"},
		{"bad_day", []string{"ingest", "--day", "2024-02-30", "hola"}, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newCLIEnv(t)
			out, err := env.run("", append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			resp := decodeResponse(t, out)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestBatchCommand_StdinLines(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run("TODO: a\n\n   \ngasté 5\nrandom\n", "batch")
	require.NoError(t, err)
	assert.Contains(t, out, "3/3 created, 0 failed")
	assert.Contains(t, out, "✓ #0 entry 1 routed to tasks")
	assert.Contains(t, out, "✓ #2 entry 3 routed to facts")
}

func TestBatchCommand_FileWithFailures(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "week.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`source: cli
day: 2024-03-04
items:
  - raw: TODO call the bank
  - raw: "   "
  - raw: spent 40 on groceries
    day: 2024-03-05
`), 0644))

	// Failed items are reported but do not fail the command.
	out := env.mustRun("--format", "json", "batch", path)
	resp := decodeResponse(t, out)
	assert.Equal(t, "ok", resp.Status)

	data := dataMap(t, resp)
	assert.Equal(t, float64(3), data["total"])
	assert.Equal(t, float64(2), data["succeeded"])
	assert.Equal(t, float64(1), data["failed"])
}

func TestBatchCommand_MissingFile(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.run("", "batch", filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStateAndCloseCommands_Golden(t *testing.T) {
	env := newCLIEnv(t)
	var transcript strings.Builder

	for _, args := range [][]string{
		{"ingest", "TODO: pagar luz"},
		{"ingest", "gasté 20"},
		{"ingest", "random thought"},
		{"state", "day"},
		{"close", "--summary", "buen día"},
		{"close"},
		{"state", "day", "--day", "2024-03-10"},
	} {
		transcript.WriteString("$ mnemo " + strings.Join(args, " ") + "\n")
		transcript.WriteString(env.mustRun(args...))
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "state_close", []byte(transcript.String()))
}

func TestStateActiveCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("ingest", "TODO: a")
	env.mustRun("ingest", "PROJECT: casa")

	out := env.mustRun("state", "active")
	assert.Contains(t, out, "Open tasks: 1\n  1 2024-03-10 [pending] a\n")
	assert.Contains(t, out, "Active projects: 1\n  1 2024-03-10 casa\n")
	assert.Contains(t, out, "Open days: 1\n  2024-03-10 (2 entries)\n")
}

func TestTaskCommand_Transitions(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("ingest", "TODO: pagar luz")

	out := env.mustRun("task", "set-status", "1", "in_progress")
	assert.Equal(t, "✓ Task 1 is in_progress: pagar luz\n", out)

	out = env.mustRun("task", "set-status", "1", "done")
	assert.Equal(t, "✓ Task 1 is done: pagar luz\n", out)

	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"final_status", []string{"task", "set-status", "1", "pending"}, "STATE_TRANSITION_ERROR"},
		{"unknown_status", []string{"task", "set-status", "1", "bogus"}, "VALIDATION_ERROR"},
		{"unknown_task", []string{"task", "set-status", "99", "done"}, "NOT_FOUND"},
		{"bad_id", []string{"task", "set-status", "abc", "done"}, "VALIDATION_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := env.run("", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))
			assert.Contains(t, out, "Error ["+tt.wantCode+"]")
		})
	}
}

func TestProjectCommand_Transitions(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("ingest", "PROJECT: mudanza")

	out := env.mustRun("project", "set-status", "1", "paused")
	assert.Equal(t, "✓ Project 1 is paused: mudanza\n", out)

	_, err := env.run("", "project", "set-status", "1", "bogus")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRulesCommands(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun("rules", "list")
	assert.True(t, strings.HasPrefix(out, "Rules: 6\n"), out)
	assert.Contains(t, out, "task_prefix")

	out = env.mustRun("rules", "add", "--name", "gym", "--pattern", `\bgym\b`,
		"--priority", "75", "--target", "metrics", "--entry-type", "metric")
	assert.Equal(t, "✓ Rule gym added (priority 75, metrics/metric)\n", out)

	out = env.mustRun("ingest", "gym session")
	assert.Contains(t, out, "by gym")

	out = env.mustRun("rules", "disable", "gym")
	assert.Equal(t, "✓ Rule gym disabled\n", out)

	out = env.mustRun("ingest", "gym again")
	assert.Contains(t, out, "by fallback")

	out = env.mustRun("rules", "enable", "gym")
	assert.Equal(t, "✓ Rule gym enabled\n", out)

	_, err := env.run("", "rules", "disable", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	_, err = env.run("", "rules", "add", "--name", "broken", "--pattern", "(",
		"--target", "facts", "--entry-type", "fact")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestRulesImportCommand(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`rules:
  - name: shopping
    pattern: "^buy "
    priority: 20
    target: tasks
    entry_type: task
`), 0644))

	out := env.mustRun("rules", "import", path)
	assert.True(t, strings.HasPrefix(out, "Rules: 1\n"), out)

	out = env.mustRun("ingest", "buy milk")
	assert.Contains(t, out, "by shopping")

	_, err := env.run("", "rules", "import", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestRulesImportEmptyTableIsNotReseeded(t *testing.T) {
	env := newCLIEnv(t)
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules: []\n"), 0644))

	out := env.mustRun("rules", "import", path)
	assert.True(t, strings.HasPrefix(out, "Rules: 0\n"), out)

	out = env.mustRun("rules", "list")
	assert.True(t, strings.HasPrefix(out, "Rules: 0\n"), out)

	out = env.mustRun("ingest", "TODO: pagar luz")
	assert.Contains(t, out, "routed to facts (note) by fallback")
}

func TestNorthStarCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("ingest", "TODO: a")

	out := env.mustRun("northstar")
	assert.Contains(t, out, "Clarity 2024-03-10: 0.0000 (0/7 complete days)")
	assert.Contains(t, out, "✗ 2024-03-10 open   entries=1 tasks_done=0 transactions=0")
	assert.Contains(t, out, "reset_day_protocol")
	assert.Contains(t, out, "Remediation task: 2")

	// Reactions fire at most once per day.
	out = env.mustRun("--format", "json", "northstar")
	data := dataMap(t, decodeResponse(t, out))
	reactions := data["reactions"].(map[string]interface{})
	assert.Nil(t, reactions["remediation_task_id"])

	out = env.mustRun("northstar", "day", "--day", "2024-03-10")
	assert.Equal(t, "✗ 2024-03-10 open   entries=1 tasks_done=0 transactions=0\n", out)

	out = env.mustRun("events", "--kind", "reset_day_protocol")
	assert.True(t, strings.HasPrefix(out, "Behavior events: 1 of 1\n"), out)

	_, err := env.run("", "events", "--kind", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestMemoryCommands(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("ingest", "TODO: a")
	env.mustRun("ingest", "gasté 5")

	out := env.mustRun("memory", "day")
	assert.True(t, strings.HasPrefix(out, "Daily narrative for 2024-03-10\n"), out)

	out = env.mustRun("memory", "week", "--start", "2024-03-04")
	assert.True(t, strings.HasPrefix(out, "Weekly narrative for 2024-03-04\n"), out)

	out = env.mustRun("memory", "list")
	assert.True(t, strings.HasPrefix(out, "Narratives: "), out)

	out = env.mustRun("--format", "json", "memory", "list", "--period", "weekly")
	data := dataMap(t, decodeResponse(t, out))
	assert.Equal(t, float64(1), data["total"])
}

func TestMemoryShowCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("ingest", "TODO: a")

	out := env.mustRun("--format", "json", "memory", "day")
	id := dataMap(t, decodeResponse(t, out))["id"].(float64)
	ref := strconv.FormatInt(int64(id), 10)

	out = env.mustRun("memory", "list")
	assert.Contains(t, out, "  #"+ref+" 2024-03-10 daily ")

	out = env.mustRun("memory", "show", ref)
	assert.True(t, strings.HasPrefix(out, "Daily narrative for 2024-03-10\n"), out)

	out, err := env.run("", "--format", "json", "memory", "show", "99")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)

	_, err = env.run("", "memory", "show", "abc")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestHealthCommand(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun("ingest", "hola")

	out := env.mustRun("health")
	assert.Equal(t, "Status: ok\nToday: 2024-03-10\nEntries: 1\nRules: 6\n", out)
}

func TestCommand_BadConfigIsCommandError(t *testing.T) {
	env := newCLIEnv(t)
	require.NoError(t, os.WriteFile(env.config, []byte("database: [\n"), 0644))

	out, err := env.run("", "--format", "json", "health")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "COMMAND_ERROR", resp.Error.Code)
}
