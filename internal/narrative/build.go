// Package narrative compiles deterministic day and week narratives from the
// ledger and projections. No generative model is involved: every sentence,
// label and list is derived from counts and keyword matches.
package narrative

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/roach88/mnemo/internal/model"
)

// Caps on the derived lists.
const (
	maxDayEvents      = 10
	maxWeekEvents     = 15
	maxDecisions      = 10
	maxLessons        = 10
	maxDoneTaskEvents = 3
	maxProjectEvents  = 2
	maxTxEvents       = 3
	maxMetricEvents   = 2
	maxSummaryNames   = 3
	decisionRunes     = 200
	lessonRunes       = 300
)

// Emotional state labels.
const (
	StateQuiet               = "quiet"
	StateNeutral             = "neutral"
	StateProductive          = "productive"
	StateProgressing         = "progressing"
	StateBacklogged          = "backlogged"
	StateFinanciallyPositive = "financially_positive"
	StateFinanciallyCautious = "financially_cautious"
	StateKnowledgeRich       = "knowledge_rich"
	StateDataRich            = "data_rich"
)

const noEntries = "No entries recorded."

var (
	decisionRe = regexp.MustCompile(`(?i)(decid[íi]|decided|chose|elegí|eleg[íi]|opt[oó]|opted|resolv)`)
	lessonRe   = regexp.MustCompile(`(?i)^(FACT|DATO|aprendí|learned|lesson|aprendizaje|nota|note)\s*:`)
)

// DayInput is everything recorded for one day.
type DayInput struct {
	Entries      []model.Entry
	Tasks        []model.Task
	Transactions []model.Transaction
	Facts        []model.Fact
	Metrics      []model.Metric
	Projects     []model.Project
}

// Fields are the compiled narrative fields of one day or week.
type Fields struct {
	Summary        string   `json:"summary"`
	KeyEvents      []string `json:"key_events"`
	EmotionalState string   `json:"emotional_state"`
	Decisions      []string `json:"decisions"`
	Lessons        []string `json:"lessons"`
	Tags           []string `json:"tags"`
}

// FieldsOf extracts the compiled fields of a stored narrative.
func FieldsOf(n model.NarrativeMemory) Fields {
	return Fields{
		Summary:        n.Summary,
		KeyEvents:      n.KeyEvents,
		EmotionalState: n.EmotionalState,
		Decisions:      n.Decisions,
		Lessons:        n.Lessons,
		Tags:           n.Tags,
	}
}

// BuildDay compiles the narrative of one day. It is pure.
func BuildDay(day model.Day, in DayInput) Fields {
	done := 0
	for _, t := range in.Tasks {
		if t.Status == model.TaskDone {
			done++
		}
	}

	var income, expense int64
	for _, tx := range in.Transactions {
		switch tx.Kind {
		case model.TxIncome:
			income = addCents(income, tx.AmountCents)
		case model.TxExpense:
			expense = addCents(expense, tx.AmountCents)
		}
	}
	net := income - expense

	parts := []string{fmt.Sprintf("Day %s:", day)}
	if len(in.Entries) == 0 {
		parts = append(parts, noEntries)
	} else {
		parts = append(parts, fmt.Sprintf("%d entries captured.", len(in.Entries)))
	}
	if len(in.Tasks) > 0 {
		parts = append(parts, fmt.Sprintf("Tasks: %d/%d completed.", done, len(in.Tasks)))
	}
	if len(in.Transactions) > 0 {
		sign := ""
		if net >= 0 {
			sign = "+"
		}
		parts = append(parts, fmt.Sprintf("Net cashflow: %s%s %s.", sign, formatCents(net), model.DefaultCurrency))
	}
	if len(in.Metrics) > 0 {
		parts = append(parts, fmt.Sprintf("%d metric(s) tracked.", len(in.Metrics)))
	}
	if len(in.Projects) > 0 {
		names := make([]string, 0, maxSummaryNames)
		for _, p := range head(in.Projects, maxSummaryNames) {
			names = append(names, p.Name)
		}
		parts = append(parts, fmt.Sprintf("Projects: %s.", strings.Join(names, ", ")))
	}

	types := make([]string, 0, len(in.Entries)+4)
	for _, e := range in.Entries {
		types = append(types, string(e.EntryType))
	}
	if income > 0 {
		types = append(types, "income")
	}
	if expense > 0 {
		types = append(types, "expense")
	}
	if len(in.Projects) > 0 {
		types = append(types, "projects")
	}
	if len(in.Metrics) > 0 {
		types = append(types, "metrics")
	}

	return Fields{
		Summary:        strings.Join(parts, " "),
		KeyEvents:      keyEvents(in),
		EmotionalState: emotionalState(len(in.Entries), done, len(in.Tasks), net, len(in.Facts)),
		Decisions:      decisions(in.Entries, in.Tasks),
		Lessons:        lessons(in.Facts, in.Entries),
		Tags:           sortedSet(types),
	}
}

// BuildWeek aggregates the seven daily narratives of the week starting at
// weekStart. days must be oldest first. It is pure.
func BuildWeek(weekStart model.Day, days []Fields) Fields {
	var (
		events, decs, less, tags []string
		labels                   []string
		active                   int
	)
	for _, d := range days {
		events = append(events, d.KeyEvents...)
		decs = append(decs, d.Decisions...)
		less = append(less, d.Lessons...)
		tags = append(tags, d.Tags...)
		if d.EmotionalState != "" {
			labels = append(labels, strings.Split(d.EmotionalState, "+")...)
		}
		if !strings.Contains(d.Summary, noEntries) {
			active++
		}
	}

	events = head(dedupe(events), maxWeekEvents)
	decs = head(dedupe(decs), maxDecisions)
	less = head(dedupe(less), maxLessons)
	state := dominant(labels, 2)

	parts := []string{
		fmt.Sprintf("Week %s to %s:", weekStart, weekStart.AddDays(6)),
		fmt.Sprintf("%d/7 active days.", active),
	}
	if len(events) > 0 {
		parts = append(parts, fmt.Sprintf("%d notable event(s) across the week.", len(events)))
	}
	if len(decs) > 0 {
		parts = append(parts, fmt.Sprintf("%d decision(s) recorded.", len(decs)))
	}
	if len(less) > 0 {
		parts = append(parts, fmt.Sprintf("%d lesson(s) captured.", len(less)))
	}
	parts = append(parts, fmt.Sprintf("Dominant state: %s.", state))

	return Fields{
		Summary:        strings.Join(parts, " "),
		KeyEvents:      events,
		EmotionalState: state,
		Decisions:      decs,
		Lessons:        less,
		Tags:           sortedSet(tags),
	}
}

func keyEvents(in DayInput) []string {
	events := []string{}

	n := 0
	for _, t := range in.Tasks {
		if t.Status != model.TaskDone {
			continue
		}
		if n == maxDoneTaskEvents {
			break
		}
		events = append(events, "Task completed: "+t.Title)
		n++
	}

	for _, p := range head(in.Projects, maxProjectEvents) {
		events = append(events, "Project created: "+p.Name)
	}

	txs := make([]model.Transaction, len(in.Transactions))
	copy(txs, in.Transactions)
	sort.SliceStable(txs, func(i, j int) bool {
		return abs(txs[i].AmountCents) > abs(txs[j].AmountCents)
	})
	for _, tx := range head(txs, maxTxEvents) {
		desc := tx.Description
		if desc == "" {
			desc = "-"
		}
		events = append(events, fmt.Sprintf("Transaction (%s): %s %s - %s", tx.Kind, tx.Currency, formatCents(tx.AmountCents), desc))
	}

	for _, m := range head(in.Metrics, maxMetricEvents) {
		unit := ""
		if m.Unit != "" {
			unit = " " + m.Unit
		}
		events = append(events, fmt.Sprintf("Metric: %s = %s%s", m.Name, strconv.FormatFloat(m.Value, 'f', -1, 64), unit))
	}

	return head(events, maxDayEvents)
}

func decisions(entries []model.Entry, tasks []model.Task) []string {
	out := []string{}
	for _, e := range entries {
		if decisionRe.MatchString(e.Raw) {
			out = append(out, truncate(e.Raw, decisionRunes))
		}
	}
	for _, t := range tasks {
		if decisionRe.MatchString(t.Title) {
			out = append(out, "Task: "+truncate(t.Title, decisionRunes))
		}
	}
	return head(dedupe(out), maxDecisions)
}

func lessons(facts []model.Fact, entries []model.Entry) []string {
	out := []string{}
	for _, f := range facts {
		if lessonRe.MatchString(f.Content) {
			out = append(out, truncate(f.Content, lessonRunes))
		}
	}
	for _, e := range entries {
		if e.EntryType == model.EntryFact && lessonRe.MatchString(e.Raw) {
			out = append(out, truncate(e.Raw, lessonRunes))
		}
	}
	return head(dedupe(out), maxLessons)
}

func emotionalState(entries, done, total int, net int64, facts int) string {
	if entries == 0 {
		return StateQuiet
	}

	var labels []string
	if total > 0 {
		ratio := float64(done) / float64(total)
		switch {
		case ratio >= 0.7:
			labels = append(labels, StateProductive)
		case ratio >= 0.3:
			labels = append(labels, StateProgressing)
		default:
			labels = append(labels, StateBacklogged)
		}
	}
	switch {
	case net > 0:
		labels = append(labels, StateFinanciallyPositive)
	case net < 0:
		labels = append(labels, StateFinanciallyCautious)
	}
	if facts >= 3 {
		labels = append(labels, StateKnowledgeRich)
	}
	if entries >= 15 {
		labels = append(labels, StateDataRich)
	}

	if len(labels) == 0 {
		return StateNeutral
	}
	return strings.Join(labels, "+")
}

// dominant joins the n most frequent labels. Ties keep first-seen order.
func dominant(labels []string, n int) string {
	if len(labels) == 0 {
		return StateNeutral
	}
	counts := map[string]int{}
	order := []string{}
	for _, l := range labels {
		if _, ok := counts[l]; !ok {
			order = append(order, l)
		}
		counts[l]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	return strings.Join(head(order, n), "+")
}

// addCents sums non-negative amounts, saturating at math.MaxInt64 so the
// net of two sums always fits in an int64.
func addCents(sum, c int64) int64 {
	if c > math.MaxInt64-sum {
		return math.MaxInt64
	}
	return sum + c
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if seen[it] {
			continue
		}
		seen[it] = true
		out = append(out, it)
	}
	return out
}

func sortedSet(items []string) []string {
	out := dedupe(items)
	sort.Strings(out)
	return out
}

func head[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}

func abs(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
