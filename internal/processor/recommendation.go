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

const (
	recommendationMaxAttempts = 3
	recommendationBaseDelay   = time.Second
	recommendationSubject     = "Curated Product Recommendations Just for You!"
)

// RecommendationEventProcessor creates RECOMMENDATION notifications and
// flushes their email either immediately on the event path or later from the
// reconciler's scheduled sweep.
type RecommendationEventProcessor struct {
	store NotificationStore
	email EmailSender
	users UserDirectory
	dlq   DeadLetterSink
	sleep func(time.Duration)
}

func NewRecommendationEventProcessor(store NotificationStore, email EmailSender, users UserDirectory, dlq DeadLetterSink) *RecommendationEventProcessor {
	return &RecommendationEventProcessor{
		store: store,
		email: email,
		users: users,
		dlq:   dlq,
		sleep: time.Sleep,
	}
}

// ProcessRecommendationEvent validates the event wholesale, then creates the
// notification with up to three attempts (2s, 4s backoff). Returning
// (false, nil) leaves dead-lettering to the dispatcher; after exhausted
// retries the processor dead-letters the event itself.
func (p *RecommendationEventProcessor) ProcessRecommendationEvent(ctx context.Context, event events.RecommendationEvent, mc events.MessageContext) (bool, error) {
	if !event.Valid() {
		log.Printf("[RecommendationEventProcessor] Rejecting invalid recommendation event for user %s", event.UserID)
		return false, nil
	}

	var lastErr error
	for attempt := 0; attempt < recommendationMaxAttempts; attempt++ {
		if attempt > 0 {
			p.sleep(recommendationBaseDelay << attempt)
		}
		created, err := p.processOnce(ctx, event)
		if err != nil {
			lastErr = err
			log.Printf("[RecommendationEventProcessor] Attempt %d failed for user %s: %v", attempt+1, event.UserID, err)
			continue
		}
		if created != nil {
			p.FlushNotification(ctx, created)
		}
		return true, nil
	}

	p.deadLetter(ctx, event, mc, lastErr.Error())
	return true, nil
}

// processOnce returns the created notification, or nil when the user opted
// out (a handled no-op).
func (p *RecommendationEventProcessor) processOnce(ctx context.Context, event events.RecommendationEvent) (*notification.Notification, error) {
	user, err := p.users.GetUser(ctx, event.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user data not found for userId %s", event.UserID)
	}
	if !user.Preferences.WantsRecommendations() {
		log.Printf("[RecommendationEventProcessor] User %s has opted out of recommendations.", user.Email)
		return nil, nil
	}

	now := time.Now().UTC().Format(time.RFC3339)
	n := &notification.Notification{
		UserID: user.ID,
		Email:  user.Email,
		Type:   notification.TypeRecommendation,
		Content: notification.Content{
			Recommendations: event.Recommendations,
			Timestamp:       now,
		},
		Priority: notification.PriorityStandard,
		Metadata: map[string]any{
			"recommendationSource": event.Type,
			"generatedAt":          now,
			"userPreferences":      user.Preferences,
		},
		EmailSent: false,
	}
	if err := p.store.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

// FlushNotification attempts the email for a pending recommendation
// notification. email_sent is marked only after the email service accepted
// the request; on transport failure the record is left untouched so the next
// scheduled sweep retries it. Unfixable records (vanished user, invalid
// address, opt-out) are parked via MarkProcessed so they are not retried
// forever.
func (p *RecommendationEventProcessor) FlushNotification(ctx context.Context, n *notification.Notification) {
	if n.EmailSent {
		return
	}

	user, err := p.users.GetUser(ctx, n.UserID)
	if err != nil {
		// Transient lookup failure: leave the record pending.
		log.Printf("[RecommendationEventProcessor] Failed to fetch user %s: %v", n.UserID, err)
		return
	}
	if user == nil || !events.ValidEmail(user.Email) {
		log.Printf("[RecommendationEventProcessor] Invalid or missing email for user %s", n.UserID)
		p.park(ctx, n)
		return
	}
	if !user.Preferences.WantsRecommendations() {
		log.Printf("[RecommendationEventProcessor] User %s has opted out of recommendations.", user.Email)
		p.park(ctx, n)
		return
	}

	content := map[string]any{
		"recommendations": n.Content.Recommendations,
		"itemCount":       len(n.Content.Recommendations),
	}
	if err := p.email.SendEmail(ctx, user.ID, recommendationSubject, string(notification.TypeRecommendation), content); err != nil {
		log.Printf("[RecommendationEventProcessor] Email sending failed for user %s: %v", n.UserID, err)
		return
	}

	flipped, err := p.store.MarkEmailSent(ctx, n.ID)
	if err != nil {
		log.Printf("[RecommendationEventProcessor] Failed to mark notification %s as sent: %v", n.ID.Hex(), err)
		return
	}
	if flipped {
		n.EmailSent = true
		log.Printf("[RecommendationEventProcessor] Email sent successfully to %s", user.Email)
	}
}

func (p *RecommendationEventProcessor) park(ctx context.Context, n *notification.Notification) {
	if err := p.store.MarkProcessed(ctx, n.ID); err != nil {
		log.Printf("[RecommendationEventProcessor] Failed to mark notification %s processed: %v", n.ID.Hex(), err)
	}
}

func (p *RecommendationEventProcessor) deadLetter(ctx context.Context, event events.RecommendationEvent, mc events.MessageContext, reason string) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[RecommendationEventProcessor] Failed to serialize event for dead letter: %v", err)
	}
	log.Printf("[RecommendationEventProcessor] Dead-lettering event from %s: %s", mc.Topic, reason)
	p.dlq.Record(ctx, mc.Topic, payload, deadletter.FailureContext{
		Partition: mc.Partition,
		Offset:    mc.Offset,
		Reason:    reason,
	})
}
