package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ShopNotifier/internal/config"
	"ShopNotifier/internal/events"
	"ShopNotifier/internal/notification"
)

func newRecommendationProcessor(store *fakeStore, email *fakeEmail, users *fakeUsers, sink *fakeSink) (*RecommendationEventProcessor, *[]time.Duration) {
	p := NewRecommendationEventProcessor(store, email, users, sink)
	var delays []time.Duration
	p.sleep = func(d time.Duration) { delays = append(delays, d) }
	return p, &delays
}

func optedInUser() *config.User {
	return &config.User{
		ID:    "u1",
		Email: "u1@example.com",
		Name:  "Ada",
		Preferences: config.UserPreferences{
			Recommendations: boolPtr(true),
		},
	}
}

func recommendationEvent() events.RecommendationEvent {
	return events.RecommendationEvent{
		Type:   "collaborative-filter",
		UserID: "u1",
		Recommendations: []events.RecommendationItem{
			{ID: "p1", Name: "Widget", Price: floatPtr(9.99), Category: "tools"},
			{ID: "p2", Name: "Gadget", Price: floatPtr(19.99), Category: "tools"},
		},
	}
}

func TestProcessRecommendationEventCreatesNotification(t *testing.T) {
	store := &fakeStore{}
	email := &fakeEmail{}
	users := &fakeUsers{byID: map[string]*config.User{"u1": optedInUser()}}
	sink := &fakeSink{}
	p, _ := newRecommendationProcessor(store, email, users, sink)

	event := recommendationEvent()
	handled, err := p.ProcessRecommendationEvent(context.Background(), event, msgContext("recommendation-events"))
	if err != nil || !handled {
		t.Fatalf("expected handled, got handled=%v err=%v", handled, err)
	}

	created := store.notifications()
	if len(created) != 1 {
		t.Fatalf("expected exactly one notification, got %d", len(created))
	}
	n := created[0]
	if n.Type != notification.TypeRecommendation {
		t.Errorf("expected RECOMMENDATION type, got %s", n.Type)
	}
	if len(n.Content.Recommendations) != 2 {
		t.Fatalf("expected 2 recommendations, got %d", len(n.Content.Recommendations))
	}
	for i, item := range event.Recommendations {
		if n.Content.Recommendations[i].ID != item.ID {
			t.Errorf("recommendation order not preserved at %d: expected %s, got %s", i, item.ID, n.Content.Recommendations[i].ID)
		}
	}

	// The event path flushes immediately: email attempted and record marked.
	if email.count() != 1 {
		t.Errorf("expected one email, got %d", email.count())
	}
	if len(store.markedSent) != 1 {
		t.Errorf("expected notification marked sent, got %d marks", len(store.markedSent))
	}
	if sink.count() != 0 {
		t.Errorf("expected no dead letters, got %d", sink.count())
	}
}

func TestProcessRecommendationEventRejectsInvalidItems(t *testing.T) {
	tests := []struct {
		name  string
		event events.RecommendationEvent
	}{
		{
			name: "item missing name",
			event: events.RecommendationEvent{
				Type:   "collaborative-filter",
				UserID: "u1",
				Recommendations: []events.RecommendationItem{
					{ID: "p1", Name: "Widget", Price: floatPtr(9.99), Category: "tools"},
					{ID: "p2", Price: floatPtr(19.99), Category: "tools"},
				},
			},
		},
		{
			name: "item missing price",
			event: events.RecommendationEvent{
				Type:   "collaborative-filter",
				UserID: "u1",
				Recommendations: []events.RecommendationItem{
					{ID: "p1", Name: "Widget", Category: "tools"},
				},
			},
		},
		{
			name:  "no items",
			event: events.RecommendationEvent{Type: "collaborative-filter", UserID: "u1"},
		},
		{
			name:  "missing user id",
			event: events.RecommendationEvent{Type: "collaborative-filter", Recommendations: recommendationEvent().Recommendations},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			users := &fakeUsers{byID: map[string]*config.User{"u1": optedInUser()}}
			p, _ := newRecommendationProcessor(store, &fakeEmail{}, users, &fakeSink{})

			handled, err := p.ProcessRecommendationEvent(context.Background(), tt.event, msgContext("recommendation-events"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if handled {
				t.Error("expected rejection so the dispatcher dead-letters the event")
			}
			if len(store.notifications()) != 0 {
				t.Errorf("expected zero notifications for a rejected event, got %d", len(store.notifications()))
			}
		})
	}
}

func TestProcessRecommendationEventOptOut(t *testing.T) {
	user := optedInUser()
	user.Preferences.Recommendations = boolPtr(false)
	store := &fakeStore{}
	email := &fakeEmail{}
	p, _ := newRecommendationProcessor(store, email, &fakeUsers{byID: map[string]*config.User{"u1": user}}, &fakeSink{})

	handled, err := p.ProcessRecommendationEvent(context.Background(), recommendationEvent(), msgContext("recommendation-events"))
	if err != nil || !handled {
		t.Fatalf("expected opt-out to count as handled, got handled=%v err=%v", handled, err)
	}
	if len(store.notifications()) != 0 {
		t.Errorf("expected zero notifications for opted-out user, got %d", len(store.notifications()))
	}
	if email.count() != 0 {
		t.Errorf("expected zero emails for opted-out user, got %d", email.count())
	}
}

func TestProcessRecommendationEventRetriesThenDeadLetters(t *testing.T) {
	store := &fakeStore{}
	users := &fakeUsers{getErr: errors.New("users service timeout")}
	sink := &fakeSink{}
	p, delays := newRecommendationProcessor(store, &fakeEmail{}, users, sink)

	handled, err := p.ProcessRecommendationEvent(context.Background(), recommendationEvent(), msgContext("recommendation-events"))
	if err != nil || !handled {
		t.Fatalf("expected handled (dead-lettered), got handled=%v err=%v", handled, err)
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second}
	if len(*delays) != len(want) {
		t.Fatalf("expected %d backoff sleeps, got %v", len(want), *delays)
	}
	for i, d := range *delays {
		if d != want[i] {
			t.Errorf("backoff %d: expected %s, got %s", i, want[i], d)
		}
	}
	if sink.count() != 1 {
		t.Fatalf("expected one dead letter after exhausted retries, got %d", sink.count())
	}
	if sink.records[0].fc.Reason != "users service timeout" {
		t.Errorf("expected last error as reason, got %q", sink.records[0].fc.Reason)
	}
}

func TestFlushNotificationIdempotent(t *testing.T) {
	store := &fakeStore{}
	email := &fakeEmail{}
	p, _ := newRecommendationProcessor(store, email, &fakeUsers{byID: map[string]*config.User{"u1": optedInUser()}}, &fakeSink{})

	n := &notification.Notification{
		ID:        primitive.NewObjectID(),
		UserID:    "u1",
		Type:      notification.TypeRecommendation,
		EmailSent: true,
	}
	p.FlushNotification(context.Background(), n)
	p.FlushNotification(context.Background(), n)

	if email.count() != 0 {
		t.Errorf("expected no re-send for an already-sent notification, got %d emails", email.count())
	}
	if len(store.markedSent) != 0 || len(store.markedProcessed) != 0 {
		t.Error("expected no store mutations for an already-sent notification")
	}
}

func TestFlushNotificationVanishedUser(t *testing.T) {
	store := &fakeStore{}
	email := &fakeEmail{}
	p, _ := newRecommendationProcessor(store, email, &fakeUsers{byID: map[string]*config.User{}}, &fakeSink{})

	n := &notification.Notification{ID: primitive.NewObjectID(), UserID: "gone", Type: notification.TypeRecommendation}
	p.FlushNotification(context.Background(), n)

	if email.count() != 0 {
		t.Errorf("expected no email for vanished user, got %d", email.count())
	}
	if len(store.markedProcessed) != 1 {
		t.Errorf("expected notification parked via MarkProcessed, got %d marks", len(store.markedProcessed))
	}
	if len(store.markedSent) != 0 {
		t.Error("expected email_sent untouched for vanished user")
	}
}

func TestFlushNotificationEmailFailureLeavesRecordPending(t *testing.T) {
	store := &fakeStore{}
	email := &fakeEmail{err: errors.New("provider 502")}
	p, _ := newRecommendationProcessor(store, email, &fakeUsers{byID: map[string]*config.User{"u1": optedInUser()}}, &fakeSink{})

	n := &notification.Notification{ID: primitive.NewObjectID(), UserID: "u1", Type: notification.TypeRecommendation}
	p.FlushNotification(context.Background(), n)

	if len(store.markedSent) != 0 {
		t.Error("expected email_sent not marked on provider failure")
	}
	if len(store.markedProcessed) != 0 {
		t.Error("expected record left pending for the next scheduled pass")
	}
	if n.EmailSent {
		t.Error("expected in-memory record still pending")
	}
}

func TestFlushNotificationTransientLookupFailure(t *testing.T) {
	store := &fakeStore{}
	p, _ := newRecommendationProcessor(store, &fakeEmail{}, &fakeUsers{getErr: errors.New("connection refused")}, &fakeSink{})

	n := &notification.Notification{ID: primitive.NewObjectID(), UserID: "u1", Type: notification.TypeRecommendation}
	p.FlushNotification(context.Background(), n)

	if len(store.markedProcessed) != 0 || len(store.markedSent) != 0 {
		t.Error("expected no store mutation on transient lookup failure")
	}
}
