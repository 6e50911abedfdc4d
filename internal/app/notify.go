package app

import (
	"fmt"
	"time"

	"tasktrack/api/internal/store"
)

// dispatcher appends task-lifecycle notifications. It only runs inside an
// EntityStore.Update callback, so records commit or roll back with the
// mutation that triggered them.
type dispatcher struct {
	now func() time.Time
}

// recipients collects user ids for one trigger in order, skipping the actor
// and unset ids. Repeats are kept: every listed role gets its own record.
type recipients struct {
	actor int64
	ids   []int64
}

func newRecipients(actor int64) *recipients {
	return &recipients{actor: actor}
}

func (r *recipients) add(userID int64) {
	if userID <= 0 || userID == r.actor {
		return
	}
	r.ids = append(r.ids, userID)
}

func (d dispatcher) emit(tx *store.Tx, to *recipients, kind store.NotificationType, taskID int64, message string) []store.Notification {
	out := make([]store.Notification, 0, len(to.ids))
	createdAt := d.now().UTC()
	for _, userID := range to.ids {
		related := taskID
		out = append(out, tx.InsertNotification(store.Notification{
			UserID:    userID,
			Message:   message,
			Type:      kind,
			RelatedID: &related,
			CreatedAt: createdAt,
		}))
	}
	return out
}

func (d dispatcher) taskCreated(tx *store.Tx, project store.Project, task store.Task, actor int64) []store.Notification {
	var out []store.Notification

	if task.AssigneeID != nil {
		assignee := newRecipients(actor)
		assignee.add(*task.AssigneeID)
		out = append(out, d.emit(tx, assignee, store.NotifyTaskAssigned, task.ID,
			fmt.Sprintf("You have been assigned to task %q", task.Title))...)
	}

	members := newRecipients(actor)
	for _, id := range project.Members {
		members.add(id)
	}
	out = append(out, d.emit(tx, members, store.NotifyTaskCreated, task.ID,
		fmt.Sprintf("New task %q was created in project %q", task.Title, project.Name))...)
	return out
}

func (d dispatcher) taskUpdated(tx *store.Tx, before, after store.Task, actor int64) []store.Notification {
	var out []store.Notification

	if after.AssigneeID != nil && !sameID(before.AssigneeID, after.AssigneeID) {
		assignee := newRecipients(actor)
		assignee.add(*after.AssigneeID)
		out = append(out, d.emit(tx, assignee, store.NotifyTaskAssigned, after.ID,
			fmt.Sprintf("You have been assigned to task %q", after.Title))...)
	}

	if before.Status != after.Status {
		watchers := newRecipients(actor)
		watchers.add(after.CreatedBy)
		if after.AssigneeID != nil {
			watchers.add(*after.AssigneeID)
		}
		out = append(out, d.emit(tx, watchers, store.NotifyTaskStatusChanged, after.ID,
			fmt.Sprintf("Task %q status changed to %s", after.Title, after.Status))...)
	}
	return out
}

func (d dispatcher) taskDeleted(tx *store.Tx, task store.Task, actor int64) []store.Notification {
	if task.AssigneeID == nil {
		return nil
	}
	assignee := newRecipients(actor)
	assignee.add(*task.AssigneeID)
	return d.emit(tx, assignee, store.NotifyTaskDeleted, task.ID,
		fmt.Sprintf("Task %q was deleted", task.Title))
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
