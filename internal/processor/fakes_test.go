package processor

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ShopNotifier/internal/config"
	"ShopNotifier/internal/deadletter"
	"ShopNotifier/internal/notification"
)

type fakeStore struct {
	mu              sync.Mutex
	created         []*notification.Notification
	failures        int
	createCalls     int
	markedSent      []primitive.ObjectID
	markedProcessed []primitive.ObjectID
}

func (f *fakeStore) CreateNotification(_ context.Context, n *notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.createCalls <= f.failures {
		return errors.New("persistence unavailable")
	}
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	f.created = append(f.created, n)
	return nil
}

func (f *fakeStore) MarkEmailSent(_ context.Context, id primitive.ObjectID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedSent = append(f.markedSent, id)
	return true, nil
}

func (f *fakeStore) MarkProcessed(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markedProcessed = append(f.markedProcessed, id)
	return nil
}

func (f *fakeStore) notifications() []*notification.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*notification.Notification(nil), f.created...)
}

type emailCall struct {
	userID  string
	subject string
	kind    string
}

type fakeEmail struct {
	mu   sync.Mutex
	sent []emailCall
	err  error
}

func (f *fakeEmail) SendEmail(_ context.Context, userID, subject, emailType string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, emailCall{userID: userID, subject: subject, kind: emailType})
	return nil
}

func (f *fakeEmail) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeUsers struct {
	byID    map[string]*config.User
	listing []config.User
	getErr  error
	listErr error
}

func (f *fakeUsers) GetUser(_ context.Context, userID string) (*config.User, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.byID[userID], nil
}

func (f *fakeUsers) ListUsers(_ context.Context) ([]config.User, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listing, nil
}

type recordedDeadLetter struct {
	topic   string
	payload []byte
	fc      deadletter.FailureContext
}

type fakeSink struct {
	mu      sync.Mutex
	records []recordedDeadLetter
}

func (f *fakeSink) Record(_ context.Context, topic string, payload []byte, fc deadletter.FailureContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, recordedDeadLetter{topic: topic, payload: payload, fc: fc})
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

func boolPtr(v bool) *bool { return &v }

func floatPtr(v float64) *float64 { return &v }
