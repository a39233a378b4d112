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

// OrderUpdateEventProcessor turns order events into ORDER_UPDATE
// notifications. Order events arrive on the high-priority consumer group, so
// the notifications carry HIGH priority; no email side effect is attempted.
type OrderUpdateEventProcessor struct {
	store NotificationStore
	dlq   DeadLetterSink
	sleep func(time.Duration)
}

func NewOrderUpdateEventProcessor(store NotificationStore, dlq DeadLetterSink) *OrderUpdateEventProcessor {
	return &OrderUpdateEventProcessor{store: store, dlq: dlq, sleep: time.Sleep}
}

func (p *OrderUpdateEventProcessor) ProcessOrderUpdateEvent(ctx context.Context, event events.OrderEvent, mc events.MessageContext) (bool, error) {
	if !events.ValidEmail(event.Email) {
		p.deadLetter(ctx, event, mc, fmt.Sprintf("invalid email address for user %s", event.UserID))
		return true, nil
	}

	err := retryWithBackoff(maxAttempts, baseDelay, p.sleep, func(attempt int) error {
		if attempt > 0 {
			log.Printf("[OrderUpdateEventProcessor] Retrying order event for user %s (attempt %d)", event.UserID, attempt+1)
		}
		return p.createNotification(ctx, event, attempt)
	})
	if err != nil {
		p.deadLetter(ctx, event, mc, err.Error())
		return true, nil
	}
	return true, nil
}

func (p *OrderUpdateEventProcessor) createNotification(ctx context.Context, event events.OrderEvent, attempt int) error {
	message := "Your order has been updated"
	name := "Valued Customer"
	if event.Details != nil {
		if event.Details.Message != "" {
			message = event.Details.Message
		}
		if event.Details.Name != "" {
			name = event.Details.Name
		}
	}

	metadata := map[string]any{
		"isAutomated": true,
		"retryCount":  attempt,
	}
	if event.OrderID != "" {
		metadata["orderId"] = event.OrderID
	}
	if event.Metadata != nil && event.Metadata.BatchID != "" {
		metadata["batchId"] = event.Metadata.BatchID
	}

	return p.store.CreateNotification(ctx, &notification.Notification{
		UserID:   event.UserID,
		Email:    event.Email,
		Type:     notification.TypeOrderUpdate,
		Content:  notification.Content{Message: message, EventType: event.EventType, Name: name},
		Priority: notification.PriorityHigh,
		Metadata: metadata,
	})
}

func (p *OrderUpdateEventProcessor) deadLetter(ctx context.Context, event events.OrderEvent, mc events.MessageContext, reason string) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[OrderUpdateEventProcessor] Failed to serialize event for dead letter: %v", err)
	}
	log.Printf("[OrderUpdateEventProcessor] Dead-lettering event from %s: %s", mc.Topic, reason)
	p.dlq.Record(ctx, mc.Topic, payload, deadletter.FailureContext{
		Partition: mc.Partition,
		Offset:    mc.Offset,
		Reason:    reason,
	})
}
