package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/roach88/mnemo/internal/model"
)

// InsertProjection writes the single row held by row and returns it with
// its assigned id.
func (c conn) InsertProjection(ctx context.Context, row model.ProjectionRow) (model.ProjectionRow, error) {
	switch {
	case row.Task != nil:
		t, err := c.InsertTask(ctx, *row.Task)
		row.Task = &t
		return row, err
	case row.Transaction != nil:
		return c.insertTransaction(ctx, row)
	case row.Fact != nil:
		return c.insertFact(ctx, row)
	case row.Metric != nil:
		return c.insertMetric(ctx, row)
	case row.Project != nil:
		return c.insertProject(ctx, row)
	}
	return row, fmt.Errorf("insert projection: empty %s row", row.Category)
}

// InsertTask writes a task row. Reactor tasks have a nil EntryID.
func (c conn) InsertTask(ctx context.Context, t model.Task) (model.Task, error) {
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO tasks (entry_id, title, description, status, origin, day, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullInt64(t.EntryID),
		t.Title,
		t.Description,
		string(t.Status),
		string(t.Origin),
		string(t.Day),
		formatTime(t.CreatedAt),
		formatTime(t.UpdatedAt),
	)
	if err != nil {
		return t, fmt.Errorf("insert task: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return t, fmt.Errorf("insert task: last insert id: %w", err)
	}
	return t, nil
}

func (c conn) insertTransaction(ctx context.Context, row model.ProjectionRow) (model.ProjectionRow, error) {
	tx := *row.Transaction
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO transactions (entry_id, amount_cents, currency, kind, description, uncertain, day, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullInt64(tx.EntryID),
		tx.AmountCents,
		tx.Currency,
		string(tx.Kind),
		tx.Description,
		boolInt(tx.Uncertain),
		string(tx.Day),
		formatTime(tx.CreatedAt),
	)
	if err != nil {
		return row, fmt.Errorf("insert transaction: %w", err)
	}
	if tx.ID, err = res.LastInsertId(); err != nil {
		return row, fmt.Errorf("insert transaction: last insert id: %w", err)
	}
	row.Transaction = &tx
	return row, nil
}

func (c conn) insertFact(ctx context.Context, row model.ProjectionRow) (model.ProjectionRow, error) {
	f := *row.Fact
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO facts (entry_id, content, kind, day, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		nullInt64(f.EntryID),
		f.Content,
		string(f.Kind),
		string(f.Day),
		formatTime(f.CreatedAt),
	)
	if err != nil {
		return row, fmt.Errorf("insert fact: %w", err)
	}
	if f.ID, err = res.LastInsertId(); err != nil {
		return row, fmt.Errorf("insert fact: last insert id: %w", err)
	}
	row.Fact = &f
	return row, nil
}

func (c conn) insertMetric(ctx context.Context, row model.ProjectionRow) (model.ProjectionRow, error) {
	m := *row.Metric
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO metrics (entry_id, name, value, unit, uncertain, day, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		nullInt64(m.EntryID),
		m.Name,
		m.Value,
		m.Unit,
		boolInt(m.Uncertain),
		string(m.Day),
		formatTime(m.CreatedAt),
	)
	if err != nil {
		return row, fmt.Errorf("insert metric: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return row, fmt.Errorf("insert metric: last insert id: %w", err)
	}
	row.Metric = &m
	return row, nil
}

func (c conn) insertProject(ctx context.Context, row model.ProjectionRow) (model.ProjectionRow, error) {
	p := *row.Project
	res, err := c.q.ExecContext(ctx, `
		INSERT INTO projects (entry_id, name, status, day, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		nullInt64(p.EntryID),
		p.Name,
		string(p.Status),
		string(p.Day),
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	)
	if err != nil {
		return row, fmt.Errorf("insert project: %w", err)
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return row, fmt.Errorf("insert project: last insert id: %w", err)
	}
	row.Project = &p
	return row, nil
}

// DeleteEntryProjections removes the entry-derived projection rows of day.
// Ledger rows and reactor-created tasks are untouched. Returns the number
// of rows removed.
func (tx *Tx) DeleteEntryProjections(ctx context.Context, day model.Day) (int64, error) {
	var total int64
	for _, table := range []string{"tasks", "transactions", "facts", "metrics", "projects"} {
		res, err := tx.q.ExecContext(ctx, `DELETE FROM `+table+` WHERE day = ? AND entry_id IS NOT NULL`, string(day))
		if err != nil {
			return 0, fmt.Errorf("delete %s projections: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("delete %s projections: rows affected: %w", table, err)
		}
		total += n
	}
	return total, nil
}

// ProjectionsForDay returns every projection row of day, grouped by
// category in fan-out order and by id within a category.
func (c conn) ProjectionsForDay(ctx context.Context, day model.Day) ([]model.ProjectionRow, error) {
	var rows []model.ProjectionRow

	tasks, err := c.TasksForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	for i := range tasks {
		rows = append(rows, model.ProjectionRow{Category: model.CategoryTasks, Task: &tasks[i]})
	}

	txs, err := c.TransactionsForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	for i := range txs {
		rows = append(rows, model.ProjectionRow{Category: model.CategoryTransactions, Transaction: &txs[i]})
	}

	facts, err := c.FactsForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	for i := range facts {
		rows = append(rows, model.ProjectionRow{Category: model.CategoryFacts, Fact: &facts[i]})
	}

	metrics, err := c.MetricsForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	for i := range metrics {
		rows = append(rows, model.ProjectionRow{Category: model.CategoryMetrics, Metric: &metrics[i]})
	}

	projects, err := c.ProjectsForDay(ctx, day)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		rows = append(rows, model.ProjectionRow{Category: model.CategoryProjects, Project: &projects[i]})
	}

	if rows == nil {
		rows = []model.ProjectionRow{}
	}
	return rows, nil
}

// --- tasks ---

const taskColumns = `id, entry_id, title, description, status, origin, day, created_at, updated_at`

// TasksForDay returns the day's tasks in creation order.
func (c conn) TasksForDay(ctx context.Context, day model.Day) ([]model.Task, error) {
	return c.queryTasks(ctx, `WHERE day = ? ORDER BY id ASC`, string(day))
}

// OpenTasks returns tasks that are pending or in progress, oldest first.
func (c conn) OpenTasks(ctx context.Context) ([]model.Task, error) {
	return c.queryTasks(ctx, `WHERE status IN (?, ?) ORDER BY day ASC, id ASC`,
		string(model.TaskPending), string(model.TaskInProgress))
}

// GetTask retrieves a task by id. Returns NOT_FOUND when absent.
func (c conn) GetTask(ctx context.Context, id int64) (model.Task, error) {
	tasks, err := c.queryTasks(ctx, `WHERE id = ?`, id)
	if err != nil {
		return model.Task{}, err
	}
	if len(tasks) == 0 {
		return model.Task{}, model.NewNotFoundError("task", id)
	}
	return tasks[0], nil
}

// UpdateTaskStatus sets a task's status. The transition is checked by the caller.
func (c conn) UpdateTaskStatus(ctx context.Context, id int64, status model.TaskStatus, at time.Time) error {
	res, err := c.q.ExecContext(ctx, `UPDATE tasks SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update task status: %w", err)
	}
	return requireRow(res, "task", id)
}

func (c conn) queryTasks(ctx context.Context, where string, args ...any) ([]model.Task, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		var (
			t                    model.Task
			entryID              sql.NullInt64
			status, origin, day  string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&t.ID, &entryID, &t.Title, &t.Description, &status, &origin, &day, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		t.EntryID = int64Ptr(entryID)
		t.Status = model.TaskStatus(status)
		t.Origin = model.TaskOrigin(origin)
		t.Day = model.Day(day)
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

// --- transactions ---

// TransactionsForDay returns the day's transactions in creation order.
func (c conn) TransactionsForDay(ctx context.Context, day model.Day) ([]model.Transaction, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, entry_id, amount_cents, currency, kind, description, uncertain, day, created_at
		FROM transactions
		WHERE day = ?
		ORDER BY id ASC
	`, string(day))
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	txs := []model.Transaction{}
	for rows.Next() {
		var (
			t            model.Transaction
			entryID      sql.NullInt64
			kind, dayStr string
			uncertain    int
			createdAt    string
		)
		if err := rows.Scan(&t.ID, &entryID, &t.AmountCents, &t.Currency, &kind, &t.Description, &uncertain, &dayStr, &createdAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.EntryID = int64Ptr(entryID)
		t.Kind = model.TransactionKind(kind)
		t.Uncertain = uncertain != 0
		t.Day = model.Day(dayStr)
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return txs, nil
}

// --- facts ---

// FactsForDay returns the day's facts in creation order.
func (c conn) FactsForDay(ctx context.Context, day model.Day) ([]model.Fact, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, entry_id, content, kind, day, created_at
		FROM facts
		WHERE day = ?
		ORDER BY id ASC
	`, string(day))
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	facts := []model.Fact{}
	for rows.Next() {
		var (
			f                       model.Fact
			entryID                 sql.NullInt64
			kind, dayStr, createdAt string
		)
		if err := rows.Scan(&f.ID, &entryID, &f.Content, &kind, &dayStr, &createdAt); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		f.EntryID = int64Ptr(entryID)
		f.Kind = model.EntryType(kind)
		f.Day = model.Day(dayStr)
		if f.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		facts = append(facts, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}
	return facts, nil
}

// --- metrics ---

// MetricsForDay returns the day's metrics in creation order.
func (c conn) MetricsForDay(ctx context.Context, day model.Day) ([]model.Metric, error) {
	rows, err := c.q.QueryContext(ctx, `
		SELECT id, entry_id, name, value, unit, uncertain, day, created_at
		FROM metrics
		WHERE day = ?
		ORDER BY id ASC
	`, string(day))
	if err != nil {
		return nil, fmt.Errorf("query metrics: %w", err)
	}
	defer rows.Close()

	metrics := []model.Metric{}
	for rows.Next() {
		var (
			m                 model.Metric
			entryID           sql.NullInt64
			uncertain         int
			dayStr, createdAt string
		)
		if err := rows.Scan(&m.ID, &entryID, &m.Name, &m.Value, &m.Unit, &uncertain, &dayStr, &createdAt); err != nil {
			return nil, fmt.Errorf("scan metric: %w", err)
		}
		m.EntryID = int64Ptr(entryID)
		m.Uncertain = uncertain != 0
		m.Day = model.Day(dayStr)
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate metrics: %w", err)
	}
	return metrics, nil
}

// --- projects ---

const projectColumns = `id, entry_id, name, status, day, created_at, updated_at`

// ProjectsForDay returns the projects captured on day in creation order.
func (c conn) ProjectsForDay(ctx context.Context, day model.Day) ([]model.Project, error) {
	return c.queryProjects(ctx, `WHERE day = ? ORDER BY id ASC`, string(day))
}

// ActiveProjects returns projects with status active, oldest first.
func (c conn) ActiveProjects(ctx context.Context) ([]model.Project, error) {
	return c.queryProjects(ctx, `WHERE status = ? ORDER BY day ASC, id ASC`, string(model.ProjectActive))
}

// GetProject retrieves a project by id. Returns NOT_FOUND when absent.
func (c conn) GetProject(ctx context.Context, id int64) (model.Project, error) {
	projects, err := c.queryProjects(ctx, `WHERE id = ?`, id)
	if err != nil {
		return model.Project{}, err
	}
	if len(projects) == 0 {
		return model.Project{}, model.NewNotFoundError("project", id)
	}
	return projects[0], nil
}

// UpdateProjectStatus sets a project's status. The transition is checked by the caller.
func (c conn) UpdateProjectStatus(ctx context.Context, id int64, status model.ProjectStatus, at time.Time) error {
	res, err := c.q.ExecContext(ctx, `UPDATE projects SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update project status: %w", err)
	}
	return requireRow(res, "project", id)
}

func (c conn) queryProjects(ctx context.Context, where string, args ...any) ([]model.Project, error) {
	rows, err := c.q.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	projects := []model.Project{}
	for rows.Next() {
		var (
			p                    model.Project
			entryID              sql.NullInt64
			status, day          string
			createdAt, updatedAt string
		)
		if err := rows.Scan(&p.ID, &entryID, &p.Name, &status, &day, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.EntryID = int64Ptr(entryID)
		p.Status = model.ProjectStatus(status)
		p.Day = model.Day(day)
		if p.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return projects, nil
}

func requireRow(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: rows affected: %w", kind, err)
	}
	if n == 0 {
		return model.NewNotFoundError(kind, id)
	}
	return nil
}
