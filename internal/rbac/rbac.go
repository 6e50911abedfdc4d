// Package rbac decides who may do what to which tracker entity. Every entry
// point asks Can, so rules (and their asymmetries) live in one place.
package rbac

import "tasktrack/api/internal/store"

type Resource string
type Action string

const (
	ResourceProject      Resource = "project"
	ResourceTask         Resource = "task"
	ResourceComment      Resource = "comment"
	ResourceNotification Resource = "notification"
)

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Facts are the records a decision depends on. Callers fill in what they
// looked up; a nil field the rule needs means "deny".
type Facts struct {
	Project      *store.Project
	Task         *store.Task
	Comment      *store.Comment
	Notification *store.Notification
}

// HasProjectAccess is true iff the project exists and userID created it or is a member.
func HasProjectAccess(project *store.Project, userID int64) bool {
	if project == nil {
		return false
	}
	return project.CreatedBy == userID || project.HasMember(userID)
}

func isProjectCreator(project *store.Project, userID int64) bool {
	return project != nil && project.CreatedBy == userID
}

// Can reports whether actor may perform action on resource given facts.
func Can(resource Resource, action Action, actor int64, facts Facts) bool {
	switch resource {
	case ResourceProject:
		switch action {
		case ActionRead:
			return HasProjectAccess(facts.Project, actor)
		case ActionUpdate, ActionDelete:
			return isProjectCreator(facts.Project, actor)
		case ActionCreate:
			return actor > 0
		}
	case ResourceTask:
		switch action {
		case ActionRead, ActionCreate, ActionUpdate:
			return HasProjectAccess(facts.Project, actor)
		case ActionDelete:
			// Deliberately narrower than update: any member may edit a task,
			// only the project creator or the task creator may remove it.
			if facts.Task == nil || facts.Project == nil {
				return false
			}
			return isProjectCreator(facts.Project, actor) || facts.Task.CreatedBy == actor
		}
	case ResourceComment:
		switch action {
		case ActionRead, ActionCreate:
			return HasProjectAccess(facts.Project, actor)
		case ActionUpdate, ActionDelete:
			return facts.Comment != nil && facts.Comment.UserID == actor
		}
	case ResourceNotification:
		return facts.Notification != nil && facts.Notification.UserID == actor
	}
	return false
}
