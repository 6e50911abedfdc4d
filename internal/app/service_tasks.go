package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasktrack/api/internal/rbac"
	"tasktrack/api/internal/store"
)

type TaskInput struct {
	Title       Optional[string]           `json:"title"`
	Description Optional[string]           `json:"description"`
	ProjectID   Optional[int64]            `json:"projectId"`
	AssigneeID  Optional[int64]            `json:"assigneeId"`
	DueDate     Optional[string]           `json:"dueDate"`
	Status      Optional[store.TaskStatus] `json:"status"`
}

// taskFields holds the optional task fields after parsing.
type taskFields struct {
	status  store.TaskStatus
	dueDate *time.Time
}

func parseTaskFields(input TaskInput) (taskFields, error) {
	var fields taskFields
	if input.Status.Set {
		if input.Status.Null || !input.Status.Value.Valid() {
			return fields, validationError("Status must be one of pending, in-progress, completed")
		}
		fields.status = input.Status.Value
	}
	if input.DueDate.Present() {
		due, err := parseDueDate(input.DueDate.Value)
		if err != nil {
			return fields, validationError("Due date must be an RFC 3339 timestamp or YYYY-MM-DD")
		}
		fields.dueDate = &due
	}
	return fields, nil
}

func parseRFC3339(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t, err = time.Parse(time.RFC3339Nano, s)
	}
	return t, err
}

func parseDueDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := parseRFC3339(value); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, value)
}

func (s *Service) ListTasksByProject(_ context.Context, session Session, projectID int64) ([]store.Task, error) {
	var tasks []store.Task
	err := s.entities.View(func(r store.Reader) error {
		project, ok := r.Project(projectID)
		if !ok {
			return notFoundError("Project")
		}
		if !rbac.Can(rbac.ResourceTask, rbac.ActionRead, session.UserID, rbac.Facts{Project: &project}) {
			return forbiddenError("Not authorized to access tasks for this project")
		}
		tasks = r.TasksByProject(projectID)
		return nil
	})
	return tasks, err
}

func (s *Service) GetTask(_ context.Context, session Session, taskID int64) (store.Task, error) {
	var task store.Task
	err := s.entities.View(func(r store.Reader) error {
		found, ok := r.Task(taskID)
		if !ok {
			return notFoundError("Task")
		}
		project, _ := r.Project(found.ProjectID)
		if !rbac.Can(rbac.ResourceTask, rbac.ActionRead, session.UserID, rbac.Facts{Project: projectFact(project), Task: &found}) {
			return forbiddenError("Not authorized to view this task")
		}
		task = found
		return nil
	})
	return task, err
}

func (s *Service) CreateTask(_ context.Context, session Session, input TaskInput) (store.Task, error) {
	if !input.Title.Present() || strings.TrimSpace(input.Title.Value) == "" || !input.ProjectID.Present() || input.ProjectID.Value <= 0 {
		return store.Task{}, validationError("Title and project ID are required")
	}
	fields, err := parseTaskFields(input)
	if err != nil {
		return store.Task{}, err
	}
	if fields.status == "" {
		fields.status = store.TaskPending
	}

	var created store.Task
	var sent []store.Notification
	err = s.entities.Update(func(tx *store.Tx) error {
		project, ok := tx.Project(input.ProjectID.Value)
		if !ok {
			return notFoundError("Project")
		}
		if !rbac.Can(rbac.ResourceTask, rbac.ActionCreate, session.UserID, rbac.Facts{Project: &project}) {
			return forbiddenError("Not authorized to create tasks for this project")
		}
		var assignee *int64
		if input.AssigneeID.Present() {
			if !project.HasMember(input.AssigneeID.Value) {
				return validationError("Assignee must be a member of the project")
			}
			id := input.AssigneeID.Value
			assignee = &id
		}

		now := s.timestamp()
		created = tx.InsertTask(store.Task{
			Title:       strings.TrimSpace(input.Title.Value),
			Description: input.Description.Value,
			ProjectID:   project.ID,
			AssigneeID:  assignee,
			Status:      fields.status,
			DueDate:     fields.dueDate,
			CreatedBy:   session.UserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		sent = s.notify.taskCreated(tx, project, created, session.UserID)
		return nil
	})
	if err != nil {
		return store.Task{}, err
	}
	s.deliver(sent)
	return created, nil
}

func (s *Service) UpdateTask(_ context.Context, session Session, taskID int64, input TaskInput) (store.Task, error) {
	fields, fieldErr := parseTaskFields(input)
	if fieldErr == nil && input.Title.Set && (input.Title.Null || strings.TrimSpace(input.Title.Value) == "") {
		fieldErr = validationError("Title cannot be empty")
	}

	var updated store.Task
	var sent []store.Notification
	err := s.entities.Update(func(tx *store.Tx) error {
		before, ok := tx.Task(taskID)
		if !ok {
			return notFoundError("Task")
		}
		project, _ := tx.Project(before.ProjectID)
		if !rbac.Can(rbac.ResourceTask, rbac.ActionUpdate, session.UserID, rbac.Facts{Project: projectFact(project), Task: &before}) {
			return forbiddenError("Not authorized to update this task")
		}
		if fieldErr != nil {
			return fieldErr
		}
		if input.AssigneeID.Present() && !project.HasMember(input.AssigneeID.Value) {
			return validationError("Assignee must be a member of the project")
		}

		after := before
		if input.Title.Set {
			after.Title = strings.TrimSpace(input.Title.Value)
		}
		if input.Description.Set {
			after.Description = input.Description.Value
		}
		if input.AssigneeID.Set {
			after.AssigneeID = nil
			if !input.AssigneeID.Null {
				id := input.AssigneeID.Value
				after.AssigneeID = &id
			}
		}
		if input.DueDate.Set {
			after.DueDate = fields.dueDate
		}
		if input.Status.Set {
			after.Status = fields.status
		}
		after.UpdatedAt = s.timestamp()
		if err := tx.PutTask(after); err != nil {
			return err
		}
		sent = s.notify.taskUpdated(tx, before, after, session.UserID)
		updated = after
		return nil
	})
	if err != nil {
		return store.Task{}, err
	}
	s.deliver(sent)
	return updated, nil
}

func (s *Service) DeleteTask(_ context.Context, session Session, taskID int64) (Removal, error) {
	var sent []store.Notification
	err := s.entities.Update(func(tx *store.Tx) error {
		task, ok := tx.Task(taskID)
		if !ok {
			return notFoundError("Task")
		}
		project, _ := tx.Project(task.ProjectID)
		if !rbac.Can(rbac.ResourceTask, rbac.ActionDelete, session.UserID, rbac.Facts{Project: projectFact(project), Task: &task}) {
			return forbiddenError("Not authorized to delete this task")
		}
		tx.DeleteTask(taskID)
		sent = s.notify.taskDeleted(tx, task, session.UserID)
		return nil
	})
	if err != nil {
		return Removal{}, err
	}
	s.log.Debug("task deleted", zap.Int64("task_id", taskID), zap.Int64("user_id", session.UserID))
	s.deliver(sent)
	return Removal{Message: "Task removed"}, nil
}

// projectFact returns nil for the zero Project so rbac treats a dangling
// reference as "no project".
func projectFact(project store.Project) *store.Project {
	if project.ID == 0 {
		return nil
	}
	return &project
}
