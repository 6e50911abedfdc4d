package app

import (
	"context"

	"tasktrack/api/internal/rbac"
	"tasktrack/api/internal/store"
)

type UnreadCount struct {
	Count int `json:"count"`
}

// ListNotifications returns the caller's notifications newest first.
func (s *Service) ListNotifications(_ context.Context, session Session) ([]store.Notification, error) {
	var notifications []store.Notification
	err := s.entities.View(func(r store.Reader) error {
		notifications = r.NotificationsForUser(session.UserID)
		return nil
	})
	return notifications, err
}

func (s *Service) UnreadNotifications(_ context.Context, session Session) (UnreadCount, error) {
	var count UnreadCount
	err := s.entities.View(func(r store.Reader) error {
		for _, n := range r.NotificationsForUser(session.UserID) {
			if !n.Read {
				count.Count++
			}
		}
		return nil
	})
	return count, err
}

func (s *Service) MarkNotificationRead(_ context.Context, session Session, notificationID int64) (store.Notification, error) {
	var marked store.Notification
	err := s.entities.Update(func(tx *store.Tx) error {
		n, ok := tx.Notification(notificationID)
		if !ok {
			return notFoundError("Notification")
		}
		if !rbac.Can(rbac.ResourceNotification, rbac.ActionUpdate, session.UserID, rbac.Facts{Notification: &n}) {
			return forbiddenError("Not authorized to update this notification")
		}
		updated, err := tx.MarkNotificationRead(notificationID)
		if err != nil {
			return err
		}
		marked = updated
		return nil
	})
	return marked, err
}

// MarkAllNotificationsRead sets read on every notification the caller owns
// and returns them newest first. Repeating the call changes nothing.
func (s *Service) MarkAllNotificationsRead(_ context.Context, session Session) ([]store.Notification, error) {
	var notifications []store.Notification
	err := s.entities.Update(func(tx *store.Tx) error {
		for _, n := range tx.NotificationsForUser(session.UserID) {
			if _, err := tx.MarkNotificationRead(n.ID); err != nil {
				return err
			}
		}
		notifications = tx.NotificationsForUser(session.UserID)
		return nil
	})
	return notifications, err
}
