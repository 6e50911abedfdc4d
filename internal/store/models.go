package store

import (
	"slices"
	"time"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedBy   int64     `json:"createdBy"`
	Members     []int64   `json:"members"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasMember reports whether userID is listed in the project's member set.
func (p Project) HasMember(userID int64) bool {
	return slices.Contains(p.Members, userID)
}

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
)

func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted:
		return true
	default:
		return false
	}
}

type Task struct {
	ID          int64      `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ProjectID   int64      `json:"projectId"`
	AssigneeID  *int64     `json:"assigneeId"`
	Status      TaskStatus `json:"status"`
	DueDate     *time.Time `json:"dueDate"`
	CreatedBy   int64      `json:"createdBy"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

type Comment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	ProjectID int64     `json:"projectId"`
	UserID    int64     `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type NotificationType string

const (
	NotifyTaskAssigned      NotificationType = "task-assigned"
	NotifyTaskCreated       NotificationType = "task-created"
	NotifyTaskStatusChanged NotificationType = "task-status-changed"
	NotifyTaskDeleted       NotificationType = "task-deleted"
)

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"userId"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	RelatedID *int64           `json:"relatedId"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"createdAt"`
}

func cloneProject(p Project) Project {
	p.Members = slices.Clone(p.Members)
	if p.Members == nil {
		p.Members = []int64{}
	}
	return p
}

func cloneTask(t Task) Task {
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		t.AssigneeID = &id
	}
	if t.DueDate != nil {
		due := *t.DueDate
		t.DueDate = &due
	}
	return t
}

func cloneNotification(n Notification) Notification {
	if n.RelatedID != nil {
		id := *n.RelatedID
		n.RelatedID = &id
	}
	return n
}
