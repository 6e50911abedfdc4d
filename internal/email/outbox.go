package email

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"tasktrack/api/internal/store"
)

// Sender delivers one notification to its recipient.
type Sender interface {
	SendNotification(user store.User, n store.Notification) error
}

// Recipients looks up the account a notification is addressed to.
type Recipients interface {
	GetUserByID(ctx context.Context, id int64) (store.User, error)
}

// Outbox mails committed notifications on a background worker. Enqueue never
// blocks; when the buffer is full the notification is dropped and counted.
type Outbox struct {
	queue   chan store.Notification
	sender  Sender
	users   Recipients
	log     *zap.Logger
	dropped atomic.Int64
}

func NewOutbox(sender Sender, users Recipients, size int, logger *zap.Logger) *Outbox {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Outbox{
		queue:  make(chan store.Notification, size),
		sender: sender,
		users:  users,
		log:    logger,
	}
}

func (o *Outbox) Enqueue(notifications ...store.Notification) {
	for _, n := range notifications {
		select {
		case o.queue <- n:
		default:
			o.dropped.Add(1)
			o.log.Warn("email outbox full, dropping notification",
				zap.Int64("notification_id", n.ID),
				zap.Int64("user_id", n.UserID),
			)
		}
	}
}

// Dropped reports how many notifications were discarded because the queue was full.
func (o *Outbox) Dropped() int64 {
	return o.dropped.Load()
}

// Run delivers queued notifications until ctx is cancelled. Whatever is still
// buffered at that point is sent before Run returns.
func (o *Outbox) Run(ctx context.Context) {
	for {
		select {
		case n := <-o.queue:
			o.deliver(context.WithoutCancel(ctx), n)
		case <-ctx.Done():
			o.drain()
			return
		}
	}
}

func (o *Outbox) drain() {
	for {
		select {
		case n := <-o.queue:
			o.deliver(context.Background(), n)
		default:
			return
		}
	}
}

func (o *Outbox) deliver(ctx context.Context, n store.Notification) {
	user, err := o.users.GetUserByID(ctx, n.UserID)
	if err != nil {
		o.log.Warn("email recipient lookup failed",
			zap.Int64("notification_id", n.ID),
			zap.Int64("user_id", n.UserID),
			zap.Error(err),
		)
		return
	}
	if err := o.sender.SendNotification(user, n); err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return
		}
		o.log.Error("notification email failed",
			zap.Int64("notification_id", n.ID),
			zap.String("to", user.Email),
			zap.Error(err),
		)
		return
	}
	o.log.Debug("notification emailed", zap.Int64("notification_id", n.ID), zap.String("to", user.Email))
}
