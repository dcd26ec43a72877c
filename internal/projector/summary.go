package projector

import (
	"sort"

	"github.com/roach88/mnemo/internal/model"
)

// Summary describes a set of entry-derived projection rows independent of
// their row ids, so rows produced on different runs can be compared.
type Summary struct {
	Counts map[model.Category]int `json:"counts"`
	// Rows maps each backing entry id to the comparable content of its row.
	Rows map[int64]RowKey `json:"rows"`
}

// RowKey is the id-free content of one projection row.
type RowKey struct {
	Category    model.Category `json:"category"`
	Title       string         `json:"title,omitempty"`
	Content     string         `json:"content,omitempty"`
	Kind        string         `json:"kind,omitempty"`
	AmountCents int64          `json:"amount_cents,omitempty"`
	Name        string         `json:"name,omitempty"`
	Value       float64        `json:"value,omitempty"`
	Unit        string         `json:"unit,omitempty"`
	Uncertain   bool           `json:"uncertain,omitempty"`
	Day         model.Day      `json:"day"`
}

// Summarize builds the summary of rows. Rows without a backing entry are
// excluded. Mutable status fields are excluded too: a task moved to done
// after capture is still an equivalent projection of its entry.
func Summarize(rows []model.ProjectionRow) Summary {
	s := Summary{
		Counts: make(map[model.Category]int),
		Rows:   make(map[int64]RowKey),
	}
	for _, row := range rows {
		entryID := row.EntryID()
		if entryID == nil {
			continue
		}
		s.Counts[row.Category]++
		s.Rows[*entryID] = keyOf(row)
	}
	return s
}

func keyOf(row model.ProjectionRow) RowKey {
	k := RowKey{Category: row.Category}
	switch {
	case row.Task != nil:
		k.Title = row.Task.Title
		k.Day = row.Task.Day
	case row.Transaction != nil:
		k.AmountCents = row.Transaction.AmountCents
		k.Kind = string(row.Transaction.Kind)
		k.Content = row.Transaction.Description
		k.Uncertain = row.Transaction.Uncertain
		k.Day = row.Transaction.Day
	case row.Fact != nil:
		k.Content = row.Fact.Content
		k.Kind = string(row.Fact.Kind)
		k.Day = row.Fact.Day
	case row.Metric != nil:
		k.Name = row.Metric.Name
		k.Value = row.Metric.Value
		k.Unit = row.Metric.Unit
		k.Uncertain = row.Metric.Uncertain
		k.Day = row.Metric.Day
	case row.Project != nil:
		k.Name = row.Project.Name
		k.Day = row.Project.Day
	}
	return k
}

// EntryIDs returns the summarized entry ids in ascending order.
func (s Summary) EntryIDs() []int64 {
	ids := make([]int64, 0, len(s.Rows))
	for id := range s.Rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
