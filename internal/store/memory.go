package store

import (
	"errors"
	"sort"
	"sync"
)

var ErrNotFound = errors.New("record not found")

// Reader is the read-only view of the entity collections handed to View callbacks.
type Reader interface {
	Project(id int64) (Project, bool)
	Projects() []Project
	Task(id int64) (Task, bool)
	TasksByProject(projectID int64) []Task
	Comment(id int64) (Comment, bool)
	CommentsByProject(projectID int64) []Comment
	Notification(id int64) (Notification, bool)
	NotificationsForUser(userID int64) []Notification
	Counts() Counts
}

// Counts reports the size of each collection.
type Counts struct {
	Projects      int
	Tasks         int
	Comments      int
	Notifications int
}

type entityState struct {
	projects      map[int64]Project
	tasks         map[int64]Task
	comments      map[int64]Comment
	notifications map[int64]Notification
}

func newEntityState() entityState {
	return entityState{
		projects:      map[int64]Project{},
		tasks:         map[int64]Task{},
		comments:      map[int64]Comment{},
		notifications: map[int64]Notification{},
	}
}

// EntityStore owns the Projects, Tasks, Comments and Notifications collections.
// All writes go through Update, which holds the single write lock for the whole
// callback so id allocation, referential checks and inserts cannot interleave.
type EntityStore struct {
	mu    sync.RWMutex
	state entityState
}

func NewEntityStore() *EntityStore {
	return &EntityStore{state: newEntityState()}
}

// Reset drops every record. Intended for test isolation.
func (s *EntityStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = newEntityState()
}

// Update runs fn as one critical section. If fn returns an error every write it
// made is rolled back before the lock is released.
func (s *EntityStore) Update(fn func(*Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{state: &s.state}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// View runs fn under the read lock. Concurrent View calls may overlap; none
// overlaps an Update.
func (s *EntityStore) View(fn func(Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(&Tx{state: &s.state})
}

// Tx is the handle passed to Update callbacks. It is only valid inside the callback.
type Tx struct {
	state *entityState
	undo  []func()
}

func (tx *Tx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *Tx) Counts() Counts {
	return Counts{
		Projects:      len(tx.state.projects),
		Tasks:         len(tx.state.tasks),
		Comments:      len(tx.state.comments),
		Notifications: len(tx.state.notifications),
	}
}

// nextID returns max(existing)+1, or 1 for an empty collection.
func nextID[T any](items map[int64]T) int64 {
	var maxID int64
	for id := range items {
		if id > maxID {
			maxID = id
		}
	}
	return maxID + 1
}

// put stores value under id and records how to restore the previous state.
func put[T any](tx *Tx, items map[int64]T, id int64, value T) {
	prev, existed := items[id]
	items[id] = value
	tx.undo = append(tx.undo, func() {
		if existed {
			items[id] = prev
			return
		}
		delete(items, id)
	})
}

func remove[T any](tx *Tx, items map[int64]T, id int64) bool {
	prev, existed := items[id]
	if !existed {
		return false
	}
	delete(items, id)
	tx.undo = append(tx.undo, func() { items[id] = prev })
	return true
}

// Projects

func (tx *Tx) Project(id int64) (Project, bool) {
	p, ok := tx.state.projects[id]
	if !ok {
		return Project{}, false
	}
	return cloneProject(p), true
}

func (tx *Tx) Projects() []Project {
	out := make([]Project, 0, len(tx.state.projects))
	for _, p := range tx.state.projects {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *Tx) InsertProject(p Project) Project {
	p.ID = nextID(tx.state.projects)
	p = cloneProject(p)
	put(tx, tx.state.projects, p.ID, p)
	return cloneProject(p)
}

func (tx *Tx) PutProject(p Project) error {
	if _, ok := tx.state.projects[p.ID]; !ok {
		return ErrNotFound
	}
	put(tx, tx.state.projects, p.ID, cloneProject(p))
	return nil
}

func (tx *Tx) DeleteProject(id int64) bool {
	return remove(tx, tx.state.projects, id)
}

// Tasks

func (tx *Tx) Task(id int64) (Task, bool) {
	t, ok := tx.state.tasks[id]
	if !ok {
		return Task{}, false
	}
	return cloneTask(t), true
}

// TasksByProject returns the project's tasks oldest first.
func (tx *Tx) TasksByProject(projectID int64) []Task {
	out := []Task{}
	for _, t := range tx.state.tasks {
		if t.ProjectID == projectID {
			out = append(out, cloneTask(t))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (tx *Tx) InsertTask(t Task) Task {
	t.ID = nextID(tx.state.tasks)
	put(tx, tx.state.tasks, t.ID, cloneTask(t))
	return cloneTask(t)
}

func (tx *Tx) PutTask(t Task) error {
	if _, ok := tx.state.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	put(tx, tx.state.tasks, t.ID, cloneTask(t))
	return nil
}

func (tx *Tx) DeleteTask(id int64) bool {
	return remove(tx, tx.state.tasks, id)
}

// Comments

func (tx *Tx) Comment(id int64) (Comment, bool) {
	c, ok := tx.state.comments[id]
	return c, ok
}

// CommentsByProject returns the project's discussion thread oldest first.
func (tx *Tx) CommentsByProject(projectID int64) []Comment {
	out := []Comment{}
	for _, c := range tx.state.comments {
		if c.ProjectID == projectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (tx *Tx) InsertComment(c Comment) Comment {
	c.ID = nextID(tx.state.comments)
	put(tx, tx.state.comments, c.ID, c)
	return c
}

func (tx *Tx) PutComment(c Comment) error {
	if _, ok := tx.state.comments[c.ID]; !ok {
		return ErrNotFound
	}
	put(tx, tx.state.comments, c.ID, c)
	return nil
}

func (tx *Tx) DeleteComment(id int64) bool {
	return remove(tx, tx.state.comments, id)
}

// Notifications

func (tx *Tx) Notification(id int64) (Notification, bool) {
	n, ok := tx.state.notifications[id]
	if !ok {
		return Notification{}, false
	}
	return cloneNotification(n), true
}

// NotificationsForUser returns the recipient's notifications newest first.
func (tx *Tx) NotificationsForUser(userID int64) []Notification {
	out := []Notification{}
	for _, n := range tx.state.notifications {
		if n.UserID == userID {
			out = append(out, cloneNotification(n))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (tx *Tx) InsertNotification(n Notification) Notification {
	n.ID = nextID(tx.state.notifications)
	put(tx, tx.state.notifications, n.ID, cloneNotification(n))
	return cloneNotification(n)
}

// MarkNotificationRead sets the read flag, the only mutable notification field.
func (tx *Tx) MarkNotificationRead(id int64) (Notification, error) {
	n, ok := tx.state.notifications[id]
	if !ok {
		return Notification{}, ErrNotFound
	}
	n.Read = true
	put(tx, tx.state.notifications, id, n)
	return cloneNotification(n), nil
}

// DeleteNotificationsRelatedTo removes every notification whose RelatedID is one
// of taskIDs and returns how many were removed.
func (tx *Tx) DeleteNotificationsRelatedTo(taskIDs map[int64]struct{}) int {
	removed := 0
	for id, n := range tx.state.notifications {
		if n.RelatedID == nil {
			continue
		}
		if _, ok := taskIDs[*n.RelatedID]; ok && remove(tx, tx.state.notifications, id) {
			removed++
		}
	}
	return removed
}
