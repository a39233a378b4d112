package processor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"ShopNotifier/internal/config"
	"ShopNotifier/internal/deadletter"
	"ShopNotifier/internal/events"
	"ShopNotifier/internal/notification"
)

const randomUsersCount = 10

// ProductEventProcessor turns product events into PROMOTION notifications and
// fans promotional batches out to a sampled set of users.
type ProductEventProcessor struct {
	store NotificationStore
	email EmailSender
	users UserDirectory
	dlq   DeadLetterSink
	sleep func(time.Duration)
}

func NewProductEventProcessor(store NotificationStore, email EmailSender, users UserDirectory, dlq DeadLetterSink) *ProductEventProcessor {
	return &ProductEventProcessor{
		store: store,
		email: email,
		users: users,
		dlq:   dlq,
		sleep: time.Sleep,
	}
}

// ProcessProductEvent creates a promotional notification for a single user,
// retrying with exponential backoff. The returned bool means disposition is
// complete: either the notification exists or the event was dead-lettered.
func (p *ProductEventProcessor) ProcessProductEvent(ctx context.Context, event events.ProductEvent, mc events.MessageContext) (bool, error) {
	if !events.ValidEmail(event.Email) {
		// Bad data cannot be fixed by retrying.
		p.deadLetter(ctx, event, mc, fmt.Sprintf("invalid email address for user %s", event.UserID))
		return true, nil
	}

	err := retryWithBackoff(maxAttempts, baseDelay, p.sleep, func(attempt int) error {
		if attempt > 0 {
			log.Printf("[ProductEventProcessor] Retrying product event for user %s (attempt %d)", event.UserID, attempt+1)
		}
		return p.createNotificationForEvent(ctx, event, attempt)
	})
	if err != nil {
		p.deadLetter(ctx, event, mc, err.Error())
		return true, nil
	}
	return true, nil
}

// ProcessPromotionalEvent fans a promotional batch out to a random sample of
// opted-in users. Per-user email failures are swallowed; a batch-level error
// dead-letters the whole event.
func (p *ProductEventProcessor) ProcessPromotionalEvent(ctx context.Context, event events.PromotionalBatchEvent, mc events.MessageContext) (bool, error) {
	log.Printf("[ProductEventProcessor] Processing promotional event: Batch ID %s", event.Metadata.BatchID)

	eligible, err := p.randomEligibleUsers(ctx, randomUsersCount)
	if err != nil {
		p.deadLetter(ctx, event, mc, fmt.Sprintf("Failed to retrieve users: %v", err))
		return true, nil
	}
	if len(eligible) == 0 {
		log.Println("[ProductEventProcessor] No users found to send promotional event to.")
		return true, nil
	}

	message := fmt.Sprintf("Exciting offers on our latest products! Check out: %s...", truncatedProductNames(event.Products))
	log.Printf("[ProductEventProcessor] Sending notifications for promo event to %d users.", len(eligible))

	g, gctx := errgroup.WithContext(ctx)
	for _, user := range eligible {
		user := user
		g.Go(func() error {
			return p.createNotificationForEvent(gctx, events.ProductEvent{
				UserID:    user.ID,
				Email:     user.Email,
				EventType: event.EventType,
				Details:   &events.EventDetails{Message: message, Name: user.Name},
				Metadata:  &events.EventMetadata{BatchID: event.Metadata.BatchID},
			}, 0)
		})
	}
	if err := g.Wait(); err != nil {
		p.deadLetter(ctx, event, mc, err.Error())
		return true, nil
	}

	log.Printf("[ProductEventProcessor] Successfully processed promotional event: Batch ID %s", event.Metadata.BatchID)
	return true, nil
}

// createNotificationForEvent persists the notification and attempts the
// promotional email as a best-effort side effect.
func (p *ProductEventProcessor) createNotificationForEvent(ctx context.Context, event events.ProductEvent, attempt int) error {
	message := "Product event processed"
	name := "Valued Customer"
	if event.Details != nil {
		if event.Details.Message != "" {
			message = event.Details.Message
		}
		if event.Details.Name != "" {
			name = event.Details.Name
		}
	}
	batchID := fmt.Sprintf("RETRY_%s", uuid.NewString())
	if event.Metadata != nil && event.Metadata.BatchID != "" {
		batchID = event.Metadata.BatchID
	}

	now := time.Now()
	n := &notification.Notification{
		UserID:   event.UserID,
		Email:    event.Email,
		Type:     notification.TypePromotion,
		Content:  notification.Content{Message: message, EventType: event.EventType, Name: name},
		Priority: notification.PriorityStandard,
		Metadata: map[string]any{
			"batchId":     batchID,
			"isAutomated": true,
			"retryCount":  attempt,
		},
		SentAt: &now,
	}
	if err := p.store.CreateNotification(ctx, n); err != nil {
		log.Printf("[ProductEventProcessor] Notification Processing Error: %v", err)
		return err
	}

	subject := fmt.Sprintf("Special Promotion Just for You, %s!", name)
	content := map[string]any{"subject": subject, "message": message, "name": name}
	if err := p.email.SendEmail(ctx, event.UserID, subject, string(notification.TypePromotion), content); err != nil {
		// The notification record is the durable outcome; email is best-effort.
		log.Printf("[ProductEventProcessor] Email Sending Failed for %s: %v", event.Email, err)
	}
	return nil
}

// randomEligibleUsers samples up to count users with a syntactically valid
// email who have not explicitly opted out of promotions.
func (p *ProductEventProcessor) randomEligibleUsers(ctx context.Context, count int) ([]config.User, error) {
	users, err := p.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	eligible := make([]config.User, 0, len(users))
	for _, user := range users {
		if events.ValidEmail(user.Email) && user.Preferences.WantsPromotions() {
			eligible = append(eligible, user)
		}
	}
	rand.Shuffle(len(eligible), func(i, j int) {
		eligible[i], eligible[j] = eligible[j], eligible[i]
	})
	if len(eligible) > count {
		eligible = eligible[:count]
	}
	return eligible, nil
}

func truncatedProductNames(products []events.ProductSummary) string {
	names := make([]string, 0, len(products))
	for _, product := range products {
		names = append(names, product.Name)
	}
	joined := strings.Join(names, ", ")
	if len(joined) > 100 {
		joined = joined[:100]
	}
	return joined
}

func (p *ProductEventProcessor) deadLetter(ctx context.Context, event any, mc events.MessageContext, reason string) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[ProductEventProcessor] Failed to serialize event for dead letter: %v", err)
	}
	log.Printf("[ProductEventProcessor] Dead-lettering event from %s: %s", mc.Topic, reason)
	p.dlq.Record(ctx, mc.Topic, payload, deadletter.FailureContext{
		Partition: mc.Partition,
		Offset:    mc.Offset,
		Reason:    reason,
	})
}
