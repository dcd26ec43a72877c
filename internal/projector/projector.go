// Package projector turns ledger entries into domain projection rows.
//
// Apply is the only way an entry-derived row is built. Ingestion and day
// replay both call it, which is what makes projections rebuildable from the
// ledger alone.
package projector

import (
	"time"

	"github.com/roach88/mnemo/internal/extract"
	"github.com/roach88/mnemo/internal/model"
)

// Apply builds the projection row for entry. A row is always produced:
// unparsable transactions and metrics are kept with Uncertain set.
//
// The returned row has no ID; the store assigns it on insert.
func Apply(entry model.Entry, fields extract.Fields) model.ProjectionRow {
	id := entry.ID
	entryID := &id
	at := entry.CreatedAt

	switch entry.Category {
	case model.CategoryTasks:
		return model.ProjectionRow{
			Category: model.CategoryTasks,
			Task: &model.Task{
				EntryID:   entryID,
				Title:     fields.Title,
				Status:    model.TaskPending,
				Origin:    model.OriginEntry,
				Day:       entry.Day,
				CreatedAt: at,
				UpdatedAt: at,
			},
		}

	case model.CategoryTransactions:
		return model.ProjectionRow{
			Category: model.CategoryTransactions,
			Transaction: &model.Transaction{
				EntryID:     entryID,
				AmountCents: fields.AmountCents,
				Currency:    model.DefaultCurrency,
				Kind:        fields.TxKind,
				Description: entry.Raw,
				Uncertain:   fields.Uncertain,
				Day:         entry.Day,
				CreatedAt:   at,
			},
		}

	case model.CategoryMetrics:
		return model.ProjectionRow{
			Category: model.CategoryMetrics,
			Metric: &model.Metric{
				EntryID:   entryID,
				Name:      fields.Metric.Name,
				Value:     fields.Metric.Value,
				Unit:      fields.Metric.Unit,
				Uncertain: fields.Uncertain,
				Day:       entry.Day,
				CreatedAt: at,
			},
		}

	case model.CategoryProjects:
		return model.ProjectionRow{
			Category: model.CategoryProjects,
			Project: &model.Project{
				EntryID:   entryID,
				Name:      fields.ProjectName,
				Status:    model.ProjectActive,
				Day:       entry.Day,
				CreatedAt: at,
				UpdatedAt: at,
			},
		}
	}

	// facts, and any category the router could not have produced.
	return model.ProjectionRow{
		Category: model.CategoryFacts,
		Fact: &model.Fact{
			EntryID:   entryID,
			Content:   entry.Raw,
			Kind:      entry.EntryType,
			Day:       entry.Day,
			CreatedAt: at,
		},
	}
}

// ApplyEntry extracts fields from entry and applies them.
func ApplyEntry(entry model.Entry) model.ProjectionRow {
	return Apply(entry, extract.FieldsFor(entry.Category, entry.Raw))
}

// RemediationTitle is the title of the task created by the reset-day protocol.
const RemediationTitle = "Reset Day Protocol"

// RemediationTask builds the task the behavioral reactor creates. It has no
// backing entry, so day replay never touches it.
func RemediationTask(day model.Day, reason string, at time.Time) model.Task {
	return model.Task{
		Title:       RemediationTitle,
		Description: reason,
		Status:      model.TaskPending,
		Origin:      model.OriginBehavior,
		Day:         day,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}
