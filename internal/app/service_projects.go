package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"tasktrack/api/internal/rbac"
	"tasktrack/api/internal/store"
)

type ProjectInput struct {
	Name        Optional[string]      `json:"name"`
	Description Optional[string]      `json:"description"`
	Members     Optional[[]MemberRef] `json:"members"`
}

// Removal acknowledges a delete.
type Removal struct {
	Message string `json:"message"`
}

func (s *Service) ListProjects(_ context.Context, session Session) ([]store.Project, error) {
	projects := []store.Project{}
	err := s.entities.View(func(r store.Reader) error {
		for _, project := range r.Projects() {
			if rbac.Can(rbac.ResourceProject, rbac.ActionRead, session.UserID, rbac.Facts{Project: &project}) {
				projects = append(projects, project)
			}
		}
		return nil
	})
	return projects, err
}

func (s *Service) GetProject(_ context.Context, session Session, projectID int64) (store.Project, error) {
	var project store.Project
	err := s.entities.View(func(r store.Reader) error {
		found, ok := r.Project(projectID)
		if !ok {
			return notFoundError("Project")
		}
		if !rbac.Can(rbac.ResourceProject, rbac.ActionRead, session.UserID, rbac.Facts{Project: &found}) {
			return forbiddenError("Not authorized to view this project")
		}
		project = found
		return nil
	})
	return project, err
}

func (s *Service) CreateProject(ctx context.Context, session Session, input ProjectInput) (store.Project, error) {
	if !input.Name.Present() || strings.TrimSpace(input.Name.Value) == "" {
		return store.Project{}, validationError("Project name is required")
	}
	if !rbac.Can(rbac.ResourceProject, rbac.ActionCreate, session.UserID, rbac.Facts{}) {
		return store.Project{}, forbiddenError("Not authorized to create projects")
	}
	members, err := s.resolveMembers(ctx, input.Members.Value)
	if err != nil {
		return store.Project{}, err
	}

	now := s.timestamp()
	var created store.Project
	err = s.entities.Update(func(tx *store.Tx) error {
		created = tx.InsertProject(store.Project{
			Name:        strings.TrimSpace(input.Name.Value),
			Description: input.Description.Value,
			CreatedBy:   session.UserID,
			Members:     withCreator(members, session.UserID),
			CreatedAt:   now,
			UpdatedAt:   now,
		})
		return nil
	})
	if err != nil {
		return store.Project{}, err
	}
	s.log.Debug("project created", zap.Int64("project_id", created.ID), zap.Int64("user_id", session.UserID))
	return created, nil
}

func (s *Service) UpdateProject(ctx context.Context, session Session, projectID int64, input ProjectInput) (store.Project, error) {
	var nameErr error
	if input.Name.Set && (input.Name.Null || strings.TrimSpace(input.Name.Value) == "") {
		nameErr = validationError("Project name cannot be empty")
	}
	var members []int64
	if input.Members.Set {
		resolved, err := s.resolveMembers(ctx, input.Members.Value)
		if err != nil {
			return store.Project{}, err
		}
		members = resolved
	}

	var updated store.Project
	unassigned := 0
	err := s.entities.Update(func(tx *store.Tx) error {
		project, ok := tx.Project(projectID)
		if !ok {
			return notFoundError("Project")
		}
		if !rbac.Can(rbac.ResourceProject, rbac.ActionUpdate, session.UserID, rbac.Facts{Project: &project}) {
			return forbiddenError("Not authorized to update this project")
		}
		if nameErr != nil {
			return nameErr
		}

		if input.Name.Set {
			project.Name = strings.TrimSpace(input.Name.Value)
		}
		if input.Description.Set {
			project.Description = input.Description.Value
		}
		if input.Members.Set {
			project.Members = withCreator(members, project.CreatedBy)
		}
		project.UpdatedAt = s.timestamp()
		if err := tx.PutProject(project); err != nil {
			return err
		}
		if input.Members.Set {
			n, err := unassignNonMembers(tx, project, project.UpdatedAt)
			if err != nil {
				return err
			}
			unassigned = n
		}
		updated = project
		return nil
	})
	if err != nil {
		return store.Project{}, err
	}
	if unassigned > 0 {
		s.log.Info("tasks unassigned after member removal",
			zap.Int64("project_id", projectID), zap.Int("tasks", unassigned))
	}
	return updated, nil
}

// DeleteProject removes the project together with its tasks, its comments and
// every notification that points at one of those tasks. No notifications are
// emitted.
func (s *Service) DeleteProject(_ context.Context, session Session, projectID int64) (Removal, error) {
	var tasks, comments, notifications int
	err := s.entities.Update(func(tx *store.Tx) error {
		project, ok := tx.Project(projectID)
		if !ok {
			return notFoundError("Project")
		}
		if !rbac.Can(rbac.ResourceProject, rbac.ActionDelete, session.UserID, rbac.Facts{Project: &project}) {
			return forbiddenError("Not authorized to delete this project")
		}

		removedTasks := map[int64]struct{}{}
		for _, task := range tx.TasksByProject(projectID) {
			if tx.DeleteTask(task.ID) {
				removedTasks[task.ID] = struct{}{}
			}
		}
		for _, comment := range tx.CommentsByProject(projectID) {
			if tx.DeleteComment(comment.ID) {
				comments++
			}
		}
		tasks = len(removedTasks)
		notifications = tx.DeleteNotificationsRelatedTo(removedTasks)
		tx.DeleteProject(projectID)
		return nil
	})
	if err != nil {
		return Removal{}, err
	}
	s.log.Info("project deleted",
		zap.Int64("project_id", projectID),
		zap.Int("tasks", tasks),
		zap.Int("comments", comments),
		zap.Int("notifications", notifications),
	)
	return Removal{Message: "Project removed"}, nil
}

// resolveMembers turns member references into user ids. Emails nobody is
// registered under are dropped without error.
func (s *Service) resolveMembers(ctx context.Context, refs []MemberRef) ([]int64, error) {
	ids := make([]int64, 0, len(refs))
	for _, ref := range refs {
		switch {
		case ref.ID > 0:
			ids = append(ids, ref.ID)
		case strings.TrimSpace(ref.Email) != "":
			if s.directory == nil {
				continue
			}
			id, found, err := s.directory.LookupEmail(ctx, ref.Email)
			if err != nil {
				return nil, internalError(err)
			}
			if found {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// withCreator de-duplicates ids keeping first-seen order and appends creator
// if it is missing.
func withCreator(ids []int64, creator int64) []int64 {
	seen := make(map[int64]struct{}, len(ids)+1)
	out := make([]int64, 0, len(ids)+1)
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if _, ok := seen[creator]; !ok {
		out = append(out, creator)
	}
	return out
}

// unassignNonMembers clears the assignee of any task in project whose assignee
// is no longer a member.
func unassignNonMembers(tx *store.Tx, project store.Project, now time.Time) (int, error) {
	count := 0
	for _, task := range tx.TasksByProject(project.ID) {
		if task.AssigneeID == nil || project.HasMember(*task.AssigneeID) {
			continue
		}
		task.AssigneeID = nil
		task.UpdatedAt = now
		if err := tx.PutTask(task); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
