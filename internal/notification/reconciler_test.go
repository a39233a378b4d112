package notification

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeSource struct {
	pending []*Notification
	err     error
	calls   int
}

func (f *fakeSource) FindPendingRecommendations(_ context.Context, limit int) ([]*Notification, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.pending) > limit {
		return f.pending[:limit], nil
	}
	return f.pending, nil
}

type fakeFlusher struct {
	mu            sync.Mutex
	flushed       []primitive.ObjectID
	inFlight      int
	maxInFlight   int
	perFlushDelay time.Duration
}

func (f *fakeFlusher) FlushNotification(_ context.Context, n *Notification) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()

	time.Sleep(f.perFlushDelay)

	f.mu.Lock()
	f.inFlight--
	f.flushed = append(f.flushed, n.ID)
	f.mu.Unlock()
}

func pendingNotifications(n int) []*Notification {
	out := make([]*Notification, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, &Notification{ID: primitive.NewObjectID(), Type: TypeRecommendation})
	}
	return out
}

func TestProcessPendingNotificationsFlushesWholePage(t *testing.T) {
	source := &fakeSource{pending: pendingNotifications(7)}
	flusher := &fakeFlusher{}
	r := NewReconciler(source, flusher)

	r.ProcessPendingNotifications(context.Background())

	if len(flusher.flushed) != 7 {
		t.Fatalf("expected all 7 pending notifications flushed, got %d", len(flusher.flushed))
	}
}

func TestProcessPendingNotificationsBoundsConcurrency(t *testing.T) {
	source := &fakeSource{pending: pendingNotifications(pendingPageSize)}
	flusher := &fakeFlusher{perFlushDelay: 20 * time.Millisecond}
	r := NewReconciler(source, flusher)

	r.ProcessPendingNotifications(context.Background())

	if len(flusher.flushed) != pendingPageSize {
		t.Fatalf("expected %d flushes, got %d", pendingPageSize, len(flusher.flushed))
	}
	if flusher.maxInFlight > flushBatchSize {
		t.Errorf("expected at most %d concurrent flushes, observed %d", flushBatchSize, flusher.maxInFlight)
	}
	if flusher.maxInFlight < 2 {
		t.Errorf("expected batch members to run concurrently, observed max %d", flusher.maxInFlight)
	}
}

func TestProcessPendingNotificationsRespectsPageSize(t *testing.T) {
	source := &fakeSource{pending: pendingNotifications(30)}
	flusher := &fakeFlusher{}
	r := NewReconciler(source, flusher)

	r.ProcessPendingNotifications(context.Background())

	if len(flusher.flushed) != pendingPageSize {
		t.Errorf("expected a single page of %d, got %d", pendingPageSize, len(flusher.flushed))
	}
}

func TestProcessPendingNotificationsSourceFailure(t *testing.T) {
	source := &fakeSource{err: errors.New("mongo down")}
	flusher := &fakeFlusher{}
	r := NewReconciler(source, flusher)

	r.ProcessPendingNotifications(context.Background())

	if len(flusher.flushed) != 0 {
		t.Errorf("expected no flushes when the query fails, got %d", len(flusher.flushed))
	}
}

func TestProcessPendingNotificationsEmptyPage(t *testing.T) {
	source := &fakeSource{}
	flusher := &fakeFlusher{}
	r := NewReconciler(source, flusher)

	r.ProcessPendingNotifications(context.Background())

	if len(flusher.flushed) != 0 {
		t.Errorf("expected nothing flushed for an empty page, got %d", len(flusher.flushed))
	}
}
