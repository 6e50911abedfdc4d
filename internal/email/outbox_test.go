package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"tasktrack/api/internal/store"
)

type fakeSender struct {
	sent chan store.Notification
	err  error
}

func (f *fakeSender) SendNotification(_ store.User, n store.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent <- n
	return nil
}

type fakeRecipients map[int64]store.User

func (f fakeRecipients) GetUserByID(_ context.Context, id int64) (store.User, error) {
	user, ok := f[id]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return user, nil
}

func TestOutboxDeliversInOrder(t *testing.T) {
	sender := &fakeSender{sent: make(chan store.Notification, 4)}
	users := fakeRecipients{2: {ID: 2, Email: "grace@example.com"}}
	outbox := NewOutbox(sender, users, 4, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go outbox.Run(ctx)

	outbox.Enqueue(
		store.Notification{ID: 1, UserID: 2},
		store.Notification{ID: 2, UserID: 2},
	)

	for _, want := range []int64{1, 2} {
		select {
		case got := <-sender.sent:
			if got.ID != want {
				t.Fatalf("expected notification %d, got %d", want, got.ID)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for notification %d", want)
		}
	}
}

func TestOutboxSkipsUnknownRecipients(t *testing.T) {
	sender := &fakeSender{sent: make(chan store.Notification, 1)}
	outbox := NewOutbox(sender, fakeRecipients{}, 1, nil)

	outbox.Enqueue(store.Notification{ID: 1, UserID: 99})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outbox.Run(ctx)

	if len(sender.sent) != 0 {
		t.Fatalf("expected nothing sent, got %d", len(sender.sent))
	}
}

func TestOutboxDropsWhenFull(t *testing.T) {
	sender := &fakeSender{sent: make(chan store.Notification, 4)}
	outbox := NewOutbox(sender, fakeRecipients{}, 1, nil)

	outbox.Enqueue(
		store.Notification{ID: 1, UserID: 2},
		store.Notification{ID: 2, UserID: 2},
		store.Notification{ID: 3, UserID: 2},
	)
	if got := outbox.Dropped(); got != 2 {
		t.Fatalf("expected 2 dropped, got %d", got)
	}
}

func TestOutboxDrainsOnShutdown(t *testing.T) {
	sender := &fakeSender{sent: make(chan store.Notification, 4)}
	users := fakeRecipients{2: {ID: 2, Email: "grace@example.com"}}
	outbox := NewOutbox(sender, users, 4, nil)

	outbox.Enqueue(store.Notification{ID: 1, UserID: 2}, store.Notification{ID: 2, UserID: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outbox.Run(ctx)

	if len(sender.sent) != 2 {
		t.Fatalf("expected 2 delivered on drain, got %d", len(sender.sent))
	}
}

func TestOutboxToleratesSendErrors(t *testing.T) {
	sender := &fakeSender{err: errors.New("smtp down")}
	users := fakeRecipients{2: {ID: 2, Email: "grace@example.com"}}
	outbox := NewOutbox(sender, users, 2, nil)

	outbox.Enqueue(store.Notification{ID: 1, UserID: 2})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outbox.Run(ctx)
}
