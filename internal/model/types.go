package model

import "time"

// Category is the domain projection a routed entry fans out to.
type Category string

const (
	CategoryTasks        Category = "tasks"
	CategoryTransactions Category = "transactions"
	CategoryFacts        Category = "facts"
	CategoryMetrics      Category = "metrics"
	CategoryProjects     Category = "projects"
)

// Categories lists every category in fan-out order.
func Categories() []Category {
	return []Category{CategoryTasks, CategoryTransactions, CategoryFacts, CategoryMetrics, CategoryProjects}
}

// IsValid reports whether c is a known category.
func (c Category) IsValid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// EntryType is the semantic type the router assigns to an entry.
type EntryType string

const (
	EntryNote        EntryType = "note"
	EntryTask        EntryType = "task"
	EntryTransaction EntryType = "transaction"
	EntryFact        EntryType = "fact"
	EntryEvent       EntryType = "event"
	EntryMetric      EntryType = "metric"
	EntryProject     EntryType = "project"
	EntryUnknown     EntryType = "unknown"
)

// IsValid reports whether t is a known entry type.
func (t EntryType) IsValid() bool {
	switch t {
	case EntryNote, EntryTask, EntryTransaction, EntryFact, EntryEvent, EntryMetric, EntryProject, EntryUnknown:
		return true
	}
	return false
}

// Source is the channel an entry was captured from. Empty means unspecified.
type Source string

const (
	SourceVoice   Source = "voice"
	SourceText    Source = "text"
	SourceCLI     Source = "cli"
	SourceAPI     Source = "api"
	SourceSlack   Source = "slack"
	SourceWebhook Source = "webhook"
)

// ParseSource validates s. The empty string is accepted as "unspecified".
func ParseSource(s string) (Source, error) {
	switch src := Source(s); src {
	case "", SourceVoice, SourceText, SourceCLI, SourceAPI, SourceSlack, SourceWebhook:
		return src, nil
	}
	return "", NewValidationError("source", "unknown source "+quote(s))
}

// Rule is one row of the routing table.
//
// Rules are evaluated by descending Priority; ties are broken by ascending
// Position (insertion order).
type Rule struct {
	ID          int64     `json:"id,omitempty" yaml:"-"`
	Name        string    `json:"name" yaml:"name"`
	Pattern     string    `json:"pattern" yaml:"pattern"`
	Priority    int       `json:"priority" yaml:"priority"`
	Target      Category  `json:"target" yaml:"target"`
	EntryType   EntryType `json:"entry_type" yaml:"entry_type"`
	Active      bool      `json:"active" yaml:"active"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Position    int64     `json:"position" yaml:"-"`
}

// RuleSet is an immutable snapshot of the routing table.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet copies rules into a snapshot. Later changes to the argument
// slice do not affect the snapshot.
func NewRuleSet(rules []Rule) RuleSet {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return RuleSet{rules: cp}
}

// Rules returns a copy of the snapshot's rules in their stored order.
func (rs RuleSet) Rules() []Rule {
	cp := make([]Rule, len(rs.rules))
	copy(cp, rs.rules)
	return cp
}

// Len returns the number of rules in the snapshot.
func (rs RuleSet) Len() int { return len(rs.rules) }

// RoutingDecision is the output of the router.
type RoutingDecision struct {
	EntryType EntryType `json:"entry_type"`
	Category  Category  `json:"category"`
	RuleName  *string   `json:"rule_name"`
}

// Entry is a ledger record. It is never updated or deleted once appended.
type Entry struct {
	ID          int64     `json:"id"`
	Raw         string    `json:"raw"`
	EntryType   EntryType `json:"entry_type"`
	Category    Category  `json:"routed_to"`
	RuleMatched *string   `json:"rule_matched"`
	Day         Day       `json:"day"`
	Source      Source    `json:"source,omitempty"`
	RequestID   string    `json:"request_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// TaskStatus is the lifecycle state of a task projection row.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
	TaskCancelled  TaskStatus = "cancelled"
)

// IsOpen reports whether the task still needs attention.
func (s TaskStatus) IsOpen() bool { return s != TaskDone && s != TaskCancelled }

// TaskOrigin records what created a task row.
type TaskOrigin string

const (
	OriginEntry    TaskOrigin = "entry"
	OriginBehavior TaskOrigin = "behavior"
)

// Task is a task projection row.
type Task struct {
	ID          int64      `json:"id"`
	EntryID     *int64     `json:"entry_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      TaskStatus `json:"status"`
	Origin      TaskOrigin `json:"origin"`
	Day         Day        `json:"day"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TransactionKind is the direction of money movement.
type TransactionKind string

const (
	TxIncome   TransactionKind = "income"
	TxExpense  TransactionKind = "expense"
	TxTransfer TransactionKind = "transfer"
)

// DefaultCurrency is assigned to every transaction.
const DefaultCurrency = "USD"

// Transaction is a transaction projection row.
// Uncertain is set when no amount could be extracted and AmountCents defaulted to zero.
type Transaction struct {
	ID          int64           `json:"id"`
	EntryID     *int64          `json:"entry_id"`
	AmountCents int64           `json:"amount_cents"`
	Currency    string          `json:"currency"`
	Kind        TransactionKind `json:"kind"`
	Description string          `json:"description"`
	Uncertain   bool            `json:"uncertain"`
	Day         Day             `json:"day"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Fact is a fact/note projection row.
type Fact struct {
	ID        int64     `json:"id"`
	EntryID   *int64    `json:"entry_id"`
	Content   string    `json:"content"`
	Kind      EntryType `json:"kind"`
	Day       Day       `json:"day"`
	CreatedAt time.Time `json:"created_at"`
}

// Metric is a metric projection row.
// Uncertain is set when the text did not follow the METRIC: name=value form.
type Metric struct {
	ID        int64     `json:"id"`
	EntryID   *int64    `json:"entry_id"`
	Name      string    `json:"name"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit,omitempty"`
	Uncertain bool      `json:"uncertain"`
	Day       Day       `json:"day"`
	CreatedAt time.Time `json:"created_at"`
}

// ProjectStatus is the lifecycle state of a project projection row.
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectPaused   ProjectStatus = "paused"
	ProjectDone     ProjectStatus = "done"
	ProjectArchived ProjectStatus = "archived"
)

// Project is a project projection row.
type Project struct {
	ID        int64         `json:"id"`
	EntryID   *int64        `json:"entry_id"`
	Name      string        `json:"name"`
	Status    ProjectStatus `json:"status"`
	Day       Day           `json:"day"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ProjectionRow holds exactly one projection row, selected by Category.
type ProjectionRow struct {
	Category    Category     `json:"category"`
	Task        *Task        `json:"task,omitempty"`
	Transaction *Transaction `json:"transaction,omitempty"`
	Fact        *Fact        `json:"fact,omitempty"`
	Metric      *Metric      `json:"metric,omitempty"`
	Project     *Project     `json:"project,omitempty"`
}

// EntryID returns the back-reference of the held row, or nil.
func (r ProjectionRow) EntryID() *int64 {
	switch {
	case r.Task != nil:
		return r.Task.EntryID
	case r.Transaction != nil:
		return r.Transaction.EntryID
	case r.Fact != nil:
		return r.Fact.EntryID
	case r.Metric != nil:
		return r.Metric.EntryID
	case r.Project != nil:
		return r.Project.EntryID
	}
	return nil
}

// RowID returns the projection-table id of the held row.
func (r ProjectionRow) RowID() int64 {
	switch {
	case r.Task != nil:
		return r.Task.ID
	case r.Transaction != nil:
		return r.Transaction.ID
	case r.Fact != nil:
		return r.Fact.ID
	case r.Metric != nil:
		return r.Metric.ID
	case r.Project != nil:
		return r.Project.ID
	}
	return 0
}

// DayCounts are the aggregate counts of one day, derived from the ledger and projections.
type DayCounts struct {
	Entries      int `json:"entries"`
	Tasks        int `json:"tasks"`
	TasksDone    int `json:"tasks_done"`
	Transactions int `json:"transactions"`
	Facts        int `json:"facts"`
	Metrics      int `json:"metrics"`
	Projects     int `json:"projects"`
}

// DailyLog is the per-day aggregate. Once Closed it is frozen.
type DailyLog struct {
	Day              Day        `json:"day"`
	EntryCount       int        `json:"entry_count"`
	TaskCount        int        `json:"task_count"`
	TaskDoneCount    int        `json:"task_done_count"`
	TransactionCount int        `json:"transaction_count"`
	FactCount        int        `json:"fact_count"`
	MetricCount      int        `json:"metric_count"`
	ProjectCount     int        `json:"project_count"`
	Summary          string     `json:"summary,omitempty"`
	Closed           bool       `json:"closed"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`
}

// Counts returns the aggregate counts frozen in the log.
func (l DailyLog) Counts() DayCounts {
	return DayCounts{
		Entries:      l.EntryCount,
		Tasks:        l.TaskCount,
		TasksDone:    l.TaskDoneCount,
		Transactions: l.TransactionCount,
		Facts:        l.FactCount,
		Metrics:      l.MetricCount,
		Projects:     l.ProjectCount,
	}
}

// SnapshotKindDailyClose is the kind of the snapshot written by day-close.
const SnapshotKindDailyClose = "daily_close"

// MemorySnapshot is the narrative record produced exactly once per day-close.
type MemorySnapshot struct {
	ID          int64     `json:"id"`
	Day         Day       `json:"day"`
	Kind        string    `json:"kind"`
	SummaryText string    `json:"summary_text"`
	Counts      DayCounts `json:"aggregate_counts"`
	CreatedAt   time.Time `json:"created_at"`
}

// Period selects daily or weekly narrative memory.
type Period string

const (
	PeriodDaily  Period = "daily"
	PeriodWeekly Period = "weekly"
)

// NarrativeMemory is a deterministic human-readable projection of a day or week.
// For weekly memory Date is the first day of the week.
type NarrativeMemory struct {
	ID             int64     `json:"id"`
	Date           Day       `json:"date"`
	Period         Period    `json:"period"`
	Summary        string    `json:"summary"`
	KeyEvents      []string  `json:"key_events"`
	EmotionalState string    `json:"emotional_state"`
	Decisions      []string  `json:"decisions"`
	Lessons        []string  `json:"lessons"`
	Tags           []string  `json:"tags"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ClarityWindowSnapshot caches one rolling-window computation.
// It is an optimization only; the score is always recomputed when read.
type ClarityWindowSnapshot struct {
	WindowEnd    Day       `json:"window_end_day"`
	Score        float64   `json:"score"`
	CompleteDays int       `json:"complete_day_count"`
	TotalDays    int       `json:"total_days"`
	ComputedAt   time.Time `json:"computed_at"`
}

// BehaviorKind names an automatic reaction.
type BehaviorKind string

const (
	KindClarityWarning   BehaviorKind = "clarity_warning"
	KindResetDayProtocol BehaviorKind = "reset_day_protocol"
	KindPerfectWeek      BehaviorKind = "perfect_week"
)

// BehaviorEvent is an append-only reaction record, unique per (Kind, Day).
type BehaviorEvent struct {
	ID        int64        `json:"id"`
	Kind      BehaviorKind `json:"kind"`
	Day       Day          `json:"day"`
	Payload   string       `json:"payload"`
	CreatedAt time.Time    `json:"created_at"`
}
