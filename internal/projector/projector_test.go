package projector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mnemo/internal/model"
)

var capturedAt = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func entry(id int64, raw string, typ model.EntryType, cat model.Category) model.Entry {
	rule := "test_rule"
	return model.Entry{
		ID:          id,
		Raw:         raw,
		EntryType:   typ,
		Category:    cat,
		RuleMatched: &rule,
		Day:         "2024-03-04",
		CreatedAt:   capturedAt,
	}
}

func TestApplyEntry_Task(t *testing.T) {
	row := ApplyEntry(entry(1, "TODO: call the bank", model.EntryTask, model.CategoryTasks))

	require.NotNil(t, row.Task)
	assert.Equal(t, model.CategoryTasks, row.Category)
	assert.Equal(t, "call the bank", row.Task.Title)
	assert.Equal(t, model.TaskPending, row.Task.Status)
	assert.Equal(t, model.OriginEntry, row.Task.Origin)
	assert.Equal(t, int64(1), *row.EntryID())
	assert.Equal(t, model.Day("2024-03-04"), row.Task.Day)
}

func TestApplyEntry_Transaction(t *testing.T) {
	row := ApplyEntry(entry(2, "gasté 35 en comida", model.EntryTransaction, model.CategoryTransactions))

	require.NotNil(t, row.Transaction)
	assert.Equal(t, int64(3500), row.Transaction.AmountCents)
	assert.Equal(t, model.TxExpense, row.Transaction.Kind)
	assert.Equal(t, "USD", row.Transaction.Currency)
	assert.Equal(t, "gasté 35 en comida", row.Transaction.Description)
	assert.False(t, row.Transaction.Uncertain)
}

func TestApplyEntry_TransactionWithoutAmountIsKept(t *testing.T) {
	row := ApplyEntry(entry(3, "pagué la luz", model.EntryTransaction, model.CategoryTransactions))

	require.NotNil(t, row.Transaction)
	assert.Equal(t, int64(0), row.Transaction.AmountCents)
	assert.True(t, row.Transaction.Uncertain)
}

func TestApplyEntry_Metric(t *testing.T) {
	row := ApplyEntry(entry(4, "METRIC: weight=80 kg", model.EntryMetric, model.CategoryMetrics))
	require.NotNil(t, row.Metric)
	assert.Equal(t, "weight", row.Metric.Name)
	assert.Equal(t, 80.0, row.Metric.Value)
	assert.Equal(t, "kg", row.Metric.Unit)

	row = ApplyEntry(entry(5, "METRIC: ???", model.EntryMetric, model.CategoryMetrics))
	require.NotNil(t, row.Metric)
	assert.Equal(t, "unknown", row.Metric.Name)
	assert.True(t, row.Metric.Uncertain)
}

func TestApplyEntry_FactAndProject(t *testing.T) {
	row := ApplyEntry(entry(6, "random free text", model.EntryNote, model.CategoryFacts))
	require.NotNil(t, row.Fact)
	assert.Equal(t, "random free text", row.Fact.Content)
	assert.Equal(t, model.EntryNote, row.Fact.Kind)

	row = ApplyEntry(entry(7, "PROJECT: mnemo", model.EntryProject, model.CategoryProjects))
	require.NotNil(t, row.Project)
	assert.Equal(t, "mnemo", row.Project.Name)
	assert.Equal(t, model.ProjectActive, row.Project.Status)
}

func TestApplyEntry_Deterministic(t *testing.T) {
	e := entry(8, "cobré $1,200.50 del cliente", model.EntryTransaction, model.CategoryTransactions)
	assert.Equal(t, ApplyEntry(e), ApplyEntry(e))
}

func TestRemediationTask(t *testing.T) {
	task := RemediationTask("2024-03-10", "three incomplete days", capturedAt)
	assert.Nil(t, task.EntryID)
	assert.Equal(t, RemediationTitle, task.Title)
	assert.Equal(t, model.TaskPending, task.Status)
	assert.Equal(t, model.OriginBehavior, task.Origin)
	assert.Equal(t, "three incomplete days", task.Description)
}

func TestCheckTaskTransition(t *testing.T) {
	tests := []struct {
		from, to model.TaskStatus
		ok       bool
	}{
		{model.TaskPending, model.TaskInProgress, true},
		{model.TaskPending, model.TaskDone, true},
		{model.TaskPending, model.TaskCancelled, true},
		{model.TaskInProgress, model.TaskPending, true},
		{model.TaskInProgress, model.TaskDone, true},
		{model.TaskInProgress, model.TaskCancelled, true},
		{model.TaskInProgress, model.TaskInProgress, false},
		{model.TaskPending, model.TaskPending, false},
		{model.TaskDone, model.TaskPending, false},
		{model.TaskDone, model.TaskCancelled, false},
		{model.TaskCancelled, model.TaskInProgress, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := CheckTaskTransition(1, tt.from, tt.to)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, model.IsStateTransitionError(err))
		})
	}
}

func TestCheckProjectTransition(t *testing.T) {
	assert.NoError(t, CheckProjectTransition(1, model.ProjectActive, model.ProjectPaused))
	assert.NoError(t, CheckProjectTransition(1, model.ProjectPaused, model.ProjectActive))
	assert.NoError(t, CheckProjectTransition(1, model.ProjectDone, model.ProjectArchived))
	assert.True(t, model.IsStateTransitionError(CheckProjectTransition(1, model.ProjectDone, model.ProjectActive)))
	assert.True(t, model.IsStateTransitionError(CheckProjectTransition(1, model.ProjectArchived, model.ProjectActive)))
}

func TestParseStatus(t *testing.T) {
	st, err := ParseTaskStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, model.TaskInProgress, st)

	_, err = ParseTaskStatus("blocked")
	assert.True(t, model.IsValidationError(err))

	_, err = ParseProjectStatus("shelved")
	assert.True(t, model.IsValidationError(err))
}

func TestSummarize(t *testing.T) {
	rows := []model.ProjectionRow{
		ApplyEntry(entry(1, "TODO: a", model.EntryTask, model.CategoryTasks)),
		ApplyEntry(entry(2, "gasté 5", model.EntryTransaction, model.CategoryTransactions)),
		{Category: model.CategoryTasks, Task: &model.Task{Title: RemediationTitle}},
	}

	s := Summarize(rows)
	assert.Equal(t, map[model.Category]int{model.CategoryTasks: 1, model.CategoryTransactions: 1}, s.Counts)
	assert.Equal(t, []int64{1, 2}, s.EntryIDs())

	// Status changes after capture do not break equivalence.
	done := ApplyEntry(entry(1, "TODO: a", model.EntryTask, model.CategoryTasks))
	done.Task.Status = model.TaskDone
	done.Task.ID = 99
	again := Summarize([]model.ProjectionRow{done, rows[1]})
	assert.Equal(t, s, again)
}
