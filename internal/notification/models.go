package notification

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ShopNotifier/internal/events"
)

// NotificationType classifies a notification by the event that produced it.
type NotificationType string

const (
	TypePromotion      NotificationType = "PROMOTION"
	TypeRecommendation NotificationType = "RECOMMENDATION"
	TypeOrderUpdate    NotificationType = "ORDER_UPDATE"
	TypeUserUpdate     NotificationType = "USER_UPDATE"
)

// NotificationPriority mirrors the consumer-group tier the event arrived on.
type NotificationPriority string

const (
	PriorityStandard NotificationPriority = "STANDARD"
	PriorityHigh     NotificationPriority = "HIGH"
)

// Content is the type-specific payload of a notification. Promotional and
// update notifications fill the message fields; recommendation notifications
// fill the recommendations list.
type Content struct {
	Message         string                      `bson:"message,omitempty" json:"message,omitempty"`
	EventType       string                      `bson:"event_type,omitempty" json:"eventType,omitempty"`
	Name            string                      `bson:"name,omitempty" json:"name,omitempty"`
	Recommendations []events.RecommendationItem `bson:"recommendations,omitempty" json:"recommendations,omitempty"`
	Timestamp       string                      `bson:"timestamp,omitempty" json:"timestamp,omitempty"`
}

// Notification is the durable unit of work produced by the event pipeline.
// Records are never deleted by the pipeline; email_sent flips false to true
// at most once.
type Notification struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	UserID    string               `bson:"user_id" json:"userId"`
	Email     string               `bson:"email" json:"email"`
	Type      NotificationType     `bson:"type" json:"type"`
	Content   Content              `bson:"content" json:"content"`
	Priority  NotificationPriority `bson:"priority" json:"priority"`
	Metadata  map[string]any       `bson:"metadata,omitempty" json:"metadata,omitempty"`
	EmailSent bool                 `bson:"email_sent" json:"emailSent"`
	SentAt    *time.Time           `bson:"sent_at,omitempty" json:"sentAt,omitempty"`
	Read      bool                 `bson:"read" json:"read"`
	CreatedAt time.Time            `bson:"created_at" json:"createdAt"`
}
