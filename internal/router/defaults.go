package router

import "github.com/roach88/mnemo/internal/model"

// DefaultRules returns the routing table seeded into an empty store.
//
// There is no catch-all rule: unmatched text takes the structural fallback
// so the "no rule matched" case stays observable (RuleName == nil).
func DefaultRules() []model.Rule {
	return []model.Rule{
		{
			Name:        "task_prefix",
			Pattern:     `^(TODO|TASK|tarea|hacer)`,
			Priority:    100,
			Target:      model.CategoryTasks,
			EntryType:   model.EntryTask,
			Active:      true,
			Description: "Lines starting with TODO/TASK/tarea/hacer",
			Position:    1,
		},
		{
			Name:        "income_keyword",
			Pattern:     `(ingreso|income|cobré|cobr)`,
			Priority:    90,
			Target:      model.CategoryTransactions,
			EntryType:   model.EntryTransaction,
			Active:      true,
			Description: "Income transactions",
			Position:    2,
		},
		{
			Name:        "expense_keyword",
			Pattern:     `(gast|pagué|pague|compré|compre|expense|paid)`,
			Priority:    80,
			Target:      model.CategoryTransactions,
			EntryType:   model.EntryTransaction,
			Active:      true,
			Description: "Expense transactions",
			Position:    3,
		},
		{
			Name:        "fact_keyword",
			Pattern:     `^(FACT|DATO|nota|note):`,
			Priority:    70,
			Target:      model.CategoryFacts,
			EntryType:   model.EntryFact,
			Active:      true,
			Description: "Explicit fact entries",
			Position:    4,
		},
		{
			Name:        "metric_keyword",
			Pattern:     `^(METRIC|METRICA|KPI):`,
			Priority:    60,
			Target:      model.CategoryMetrics,
			EntryType:   model.EntryMetric,
			Active:      true,
			Description: "Metric entries",
			Position:    5,
		},
		{
			Name:        "project_keyword",
			Pattern:     `^(PROJECT|PROYECTO):`,
			Priority:    50,
			Target:      model.CategoryProjects,
			EntryType:   model.EntryProject,
			Active:      true,
			Description: "Project entries",
			Position:    6,
		},
	}
}
