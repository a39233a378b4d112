package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ShopNotifier/internal/deadletter"
	"ShopNotifier/internal/events"
	"ShopNotifier/internal/notification"
)

// UserUpdateEventProcessor turns user account events into USER_UPDATE
// notifications on the high-priority path.
type UserUpdateEventProcessor struct {
	store NotificationStore
	dlq   DeadLetterSink
	sleep func(time.Duration)
}

func NewUserUpdateEventProcessor(store NotificationStore, dlq DeadLetterSink) *UserUpdateEventProcessor {
	return &UserUpdateEventProcessor{store: store, dlq: dlq, sleep: time.Sleep}
}

func (p *UserUpdateEventProcessor) ProcessUserUpdateEvent(ctx context.Context, event events.UserEvent, mc events.MessageContext) (bool, error) {
	if !events.ValidEmail(event.Email) {
		p.deadLetter(ctx, event, mc, fmt.Sprintf("invalid email address for user %s", event.UserID))
		return true, nil
	}

	err := retryWithBackoff(maxAttempts, baseDelay, p.sleep, func(attempt int) error {
		if attempt > 0 {
			log.Printf("[UserUpdateEventProcessor] Retrying user event for user %s (attempt %d)", event.UserID, attempt+1)
		}
		return p.createNotification(ctx, event, attempt)
	})
	if err != nil {
		p.deadLetter(ctx, event, mc, err.Error())
		return true, nil
	}
	return true, nil
}

func (p *UserUpdateEventProcessor) createNotification(ctx context.Context, event events.UserEvent, attempt int) error {
	message := "Your account has been updated"
	name := "Valued Customer"
	if event.Details != nil {
		if event.Details.Message != "" {
			message = event.Details.Message
		}
		if event.Details.Name != "" {
			name = event.Details.Name
		}
	}

	return p.store.CreateNotification(ctx, &notification.Notification{
		UserID:   event.UserID,
		Email:    event.Email,
		Type:     notification.TypeUserUpdate,
		Content:  notification.Content{Message: message, EventType: event.EventType, Name: name},
		Priority: notification.PriorityHigh,
		Metadata: map[string]any{
			"isAutomated": true,
			"retryCount":  attempt,
		},
	})
}

func (p *UserUpdateEventProcessor) deadLetter(ctx context.Context, event events.UserEvent, mc events.MessageContext, reason string) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[UserUpdateEventProcessor] Failed to serialize event for dead letter: %v", err)
	}
	log.Printf("[UserUpdateEventProcessor] Dead-lettering event from %s: %s", mc.Topic, reason)
	p.dlq.Record(ctx, mc.Topic, payload, deadletter.FailureContext{
		Partition: mc.Partition,
		Offset:    mc.Offset,
		Reason:    reason,
	})
}
