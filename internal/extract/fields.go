package extract

import "github.com/roach88/mnemo/internal/model"

// Fields are the category-specific values extracted from one entry.
// Only the members relevant to Category are set.
type Fields struct {
	Category model.Category

	// tasks
	Title string

	// transactions
	AmountCents int64
	TxKind      model.TransactionKind

	// metrics
	Metric MetricReading

	// projects
	ProjectName string

	// Uncertain is true when a transaction amount or metric could not be parsed.
	Uncertain bool
}

// FieldsFor dispatches on category. Facts carry no extracted fields.
func FieldsFor(category model.Category, raw string) Fields {
	f := Fields{Category: category}
	switch category {
	case model.CategoryTasks:
		f.Title = TaskTitle(raw)
	case model.CategoryTransactions:
		cents, ok := Amount(raw)
		f.AmountCents = cents
		f.TxKind = TransactionKind(raw)
		f.Uncertain = !ok
	case model.CategoryMetrics:
		reading, ok := Metric(raw)
		f.Metric = reading
		f.Uncertain = !ok
	case model.CategoryProjects:
		f.ProjectName = ProjectName(raw)
	}
	return f
}
