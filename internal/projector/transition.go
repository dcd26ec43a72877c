package projector

import "github.com/roach88/mnemo/internal/model"

var taskTransitions = map[model.TaskStatus][]model.TaskStatus{
	model.TaskPending:    {model.TaskInProgress, model.TaskDone, model.TaskCancelled},
	model.TaskInProgress: {model.TaskPending, model.TaskDone, model.TaskCancelled},
	model.TaskDone:       nil,
	model.TaskCancelled:  nil,
}

var projectTransitions = map[model.ProjectStatus][]model.ProjectStatus{
	model.ProjectActive:   {model.ProjectPaused, model.ProjectDone, model.ProjectArchived},
	model.ProjectPaused:   {model.ProjectActive, model.ProjectDone, model.ProjectArchived},
	model.ProjectDone:     {model.ProjectArchived},
	model.ProjectArchived: nil,
}

// ParseTaskStatus validates s as a task status.
func ParseTaskStatus(s string) (model.TaskStatus, error) {
	st := model.TaskStatus(s)
	if _, ok := taskTransitions[st]; !ok {
		return "", model.NewValidationError("status", "unknown task status "+`"`+s+`"`)
	}
	return st, nil
}

// ParseProjectStatus validates s as a project status.
func ParseProjectStatus(s string) (model.ProjectStatus, error) {
	st := model.ProjectStatus(s)
	if _, ok := projectTransitions[st]; !ok {
		return "", model.NewValidationError("status", "unknown project status "+`"`+s+`"`)
	}
	return st, nil
}

// CheckTaskTransition returns a StateTransitionError unless from -> to is allowed.
// Setting the current status again is not a transition.
func CheckTaskTransition(id int64, from, to model.TaskStatus) error {
	for _, next := range taskTransitions[from] {
		if next == to {
			return nil
		}
	}
	return model.NewStateTransitionError("task", id, string(from), string(to))
}

// CheckProjectTransition returns a StateTransitionError unless from -> to is allowed.
func CheckProjectTransition(id int64, from, to model.ProjectStatus) error {
	for _, next := range projectTransitions[from] {
		if next == to {
			return nil
		}
	}
	return model.NewStateTransitionError("project", id, string(from), string(to))
}
