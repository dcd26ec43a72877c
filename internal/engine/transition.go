package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/roach88/mnemo/internal/model"
	"github.com/roach88/mnemo/internal/projector"
	"github.com/roach88/mnemo/internal/store"
)

// TransitionTask moves a task to status. An illegal move returns
// STATE_TRANSITION_ERROR and leaves the row unchanged.
func (e *Engine) TransitionTask(ctx context.Context, id int64, status string) (model.Task, error) {
	to, err := projector.ParseTaskStatus(status)
	if err != nil {
		return model.Task{}, err
	}

	var task model.Task
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		current, err := tx.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if err := projector.CheckTaskTransition(id, current.Status, to); err != nil {
			return err
		}
		if err := tx.UpdateTaskStatus(ctx, id, to, e.clock.Now()); err != nil {
			return err
		}
		task, err = tx.GetTask(ctx, id)
		return err
	})
	if err != nil {
		return model.Task{}, e.fail("transition task", err)
	}

	e.log.Info("task transitioned", zap.Int64("task_id", id), zap.String("status", string(to)))
	return task, nil
}

// TransitionProject moves a project to status.
func (e *Engine) TransitionProject(ctx context.Context, id int64, status string) (model.Project, error) {
	to, err := projector.ParseProjectStatus(status)
	if err != nil {
		return model.Project{}, err
	}

	var project model.Project
	err = e.store.InTx(ctx, func(tx *store.Tx) error {
		current, err := tx.GetProject(ctx, id)
		if err != nil {
			return err
		}
		if err := projector.CheckProjectTransition(id, current.Status, to); err != nil {
			return err
		}
		if err := tx.UpdateProjectStatus(ctx, id, to, e.clock.Now()); err != nil {
			return err
		}
		project, err = tx.GetProject(ctx, id)
		return err
	})
	if err != nil {
		return model.Project{}, e.fail("transition project", err)
	}

	e.log.Info("project transitioned", zap.Int64("project_id", id), zap.String("status", string(to)))
	return project, nil
}
