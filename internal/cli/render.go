package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/mnemo/internal/behavior"
	"github.com/roach88/mnemo/internal/clarity"
	"github.com/roach88/mnemo/internal/engine"
	"github.com/roach88/mnemo/internal/ingest"
	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/narrative"
	"github.com/roach88/mnemo/internal/state"
)

// Text renderers. Output never includes wall-clock timestamps so it can be
// compared against golden files.

var titleCase = cases.Title(language.English)

func describeRow(row model.ProjectionRow) string {
	switch {
	case row.Task != nil:
		return fmt.Sprintf("task %d: %s [%s]", row.Task.ID, row.Task.Title, row.Task.Status)
	case row.Transaction != nil:
		tx := row.Transaction
		s := fmt.Sprintf("transaction %d: %s %s %s", tx.ID, tx.Kind, tx.Currency, cents(tx.AmountCents))
		if tx.Description != "" {
			s += " " + strconv.Quote(tx.Description)
		}
		if tx.Uncertain {
			s += " (uncertain)"
		}
		return s
	case row.Fact != nil:
		return fmt.Sprintf("fact %d: %s", row.Fact.ID, row.Fact.Content)
	case row.Metric != nil:
		m := row.Metric
		s := fmt.Sprintf("metric %d: %s = %s", m.ID, m.Name, strconv.FormatFloat(m.Value, 'f', -1, 64))
		if m.Unit != "" {
			s += " " + m.Unit
		}
		if m.Uncertain {
			s += " (uncertain)"
		}
		return s
	case row.Project != nil:
		return fmt.Sprintf("project %d: %s [%s]", row.Project.ID, row.Project.Name, row.Project.Status)
	}
	return "no projection"
}

func cents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s%d.%02d", sign, c/100, c%100)
}

func ruleName(p *string) string {
	if p == nil {
		return "fallback"
	}
	return *p
}

func writeIngestResult(w io.Writer, res ingest.Result) {
	e := res.Entry
	fmt.Fprintf(w, "✓ Entry %d on %s routed to %s (%s) by %s\n",
		e.ID, e.Day, e.Category, e.EntryType, ruleName(e.RuleMatched))
	fmt.Fprintf(w, "  %s\n", describeRow(res.Projection))
}

func writeBatchResult(w io.Writer, res ingest.BatchResult) {
	fmt.Fprintf(w, "Batch %s: %d/%d created, %d failed\n", res.BatchID, res.Succeeded, res.Total, res.Failed)
	for _, item := range res.Items {
		if item.Status == ingest.ItemFailed {
			fmt.Fprintf(w, "✗ #%d %s: %s\n", item.Index, item.Error.Code, item.Error.Message)
			continue
		}
		e := item.Result.Entry
		fmt.Fprintf(w, "✓ #%d entry %d routed to %s: %s\n", item.Index, e.ID, e.Category, describeRow(item.Result.Projection))
	}
}

func writeCounts(w io.Writer, c model.DayCounts) {
	fmt.Fprintf(w, "  entries: %d\n", c.Entries)
	fmt.Fprintf(w, "  tasks: %d (%d done)\n", c.Tasks, c.TasksDone)
	fmt.Fprintf(w, "  transactions: %d\n", c.Transactions)
	fmt.Fprintf(w, "  facts: %d\n", c.Facts)
	fmt.Fprintf(w, "  metrics: %d\n", c.Metrics)
	fmt.Fprintf(w, "  projects: %d\n", c.Projects)
}

func writeDaySnapshot(w io.Writer, snap state.DaySnapshot) {
	status := "open"
	if snap.Closed {
		status = "closed"
	}
	fmt.Fprintf(w, "Day %s (%s)\n", snap.Day, status)
	writeCounts(w, snap.Totals)
	if len(snap.Entries) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Entries:")
	for _, e := range snap.Entries {
		fmt.Fprintf(w, "  %d [%s] %s\n", e.ID, e.Category, e.Raw)
	}
}

func writeActiveSnapshot(w io.Writer, snap state.ActiveSnapshot) {
	fmt.Fprintf(w, "Open tasks: %d\n", len(snap.OpenTasks))
	for _, t := range snap.OpenTasks {
		fmt.Fprintf(w, "  %d %s [%s] %s\n", t.ID, t.Day, t.Status, t.Title)
	}
	fmt.Fprintf(w, "Active projects: %d\n", len(snap.ActiveProjects))
	for _, p := range snap.ActiveProjects {
		fmt.Fprintf(w, "  %d %s %s\n", p.ID, p.Day, p.Name)
	}
	fmt.Fprintf(w, "Open days: %d\n", len(snap.OpenDays))
	for _, d := range snap.OpenDays {
		fmt.Fprintf(w, "  %s (%d entries)\n", d.Day, d.Entries)
	}
}

func writeCloseResult(w io.Writer, res state.CloseResult) {
	if res.AlreadyClosed {
		fmt.Fprintf(w, "Day %s was already closed\n", res.Log.Day)
	} else {
		fmt.Fprintf(w, "✓ Day %s closed\n", res.Log.Day)
	}
	writeCounts(w, res.Log.Counts())
	fmt.Fprintf(w, "Snapshot: %s\n", res.Snapshot.SummaryText)
}

func writeNarrative(w io.Writer, n model.NarrativeMemory) {
	fmt.Fprintf(w, "%s narrative for %s\n", titleCase.String(string(n.Period)), n.Date)
	fmt.Fprint(w, narrative.Render(narrative.FieldsOf(n)))
}

func writeNarrativePage(w io.Writer, page narrative.Page) {
	fmt.Fprintf(w, "Narratives: %d of %d\n", len(page.Items), page.Total)
	for _, n := range page.Items {
		fmt.Fprintf(w, "  #%d %s %-6s %s\n", n.ID, n.Date, n.Period, n.EmotionalState)
	}
}

func writeClarity(w io.Writer, res clarity.Result) {
	fmt.Fprintf(w, "Clarity %s: %.4f (%d/%d complete days)\n", res.AsOf, res.Score, res.CompleteDays, res.TotalDays)
	for _, d := range res.Days {
		writeBreakdownLine(w, d)
	}
}

func writeBreakdownLine(w io.Writer, d clarity.DayBreakdown) {
	mark := "✗"
	if d.Complete {
		mark = "✓"
	}
	closed := "open"
	if d.Closed {
		closed = "closed"
	}
	fmt.Fprintf(w, "%s %s %-6s entries=%d tasks_done=%d transactions=%d\n",
		mark, d.Day, closed, d.Entries, d.TasksDone, d.Transactions)
}

func writeReactions(w io.Writer, r behavior.Report) {
	if len(r.Created) == 0 {
		fmt.Fprintln(w, "Reactions: none")
	} else {
		names := make([]string, 0, len(r.Created))
		for _, k := range r.Created {
			names = append(names, string(k))
		}
		fmt.Fprintf(w, "Reactions: %s\n", strings.Join(names, ", "))
	}
	if r.RemediationTaskID != nil {
		fmt.Fprintf(w, "Remediation task: %d\n", *r.RemediationTaskID)
	}
}

func writeNorthStar(w io.Writer, ns engine.NorthStar) {
	writeClarity(w, ns.Clarity)
	writeReactions(w, ns.Reactions)
}

func writeEventPage(w io.Writer, page engine.EventPage) {
	fmt.Fprintf(w, "Behavior events: %d of %d\n", len(page.Items), page.Total)
	for _, ev := range page.Items {
		fmt.Fprintf(w, "  %d %s %s %s\n", ev.ID, ev.Day, ev.Kind, ev.Payload)
	}
}

func writeRules(w io.Writer, rules []model.Rule) {
	fmt.Fprintf(w, "Rules: %d\n", len(rules))
	for _, r := range rules {
		active := "on"
		if !r.Active {
			active = "off"
		}
		fmt.Fprintf(w, "  %-3s %4d %-16s %s/%s %s\n", active, r.Priority, r.Name, r.Target, r.EntryType, r.Pattern)
	}
}

func writeReplay(w io.Writer, rep ingest.ReplayReport, verbose bool) {
	mark := "✓"
	if !rep.Equivalent {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s Day %s: %d entries, %d stored rows, %d derived rows\n",
		mark, rep.Day, rep.Entries, len(rep.Before.Rows), len(rep.After.Rows))
	if rep.Repaired {
		fmt.Fprintf(w, "  Rebuilt projections (%d rows replaced)\n", rep.Removed)
	}
	if !rep.Equivalent && rep.Diff != "" && verbose {
		fmt.Fprintln(w, rep.Diff)
	}
}

func writeHealth(w io.Writer, h engine.Health) {
	fmt.Fprintf(w, "Status: %s\n", h.Status)
	fmt.Fprintf(w, "Today: %s\n", h.Today)
	fmt.Fprintf(w, "Entries: %d\n", h.Entries)
	fmt.Fprintf(w, "Rules: %d\n", h.Rules)
}
