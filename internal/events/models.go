package events

import (
	"regexp"
	"time"
)

// MessageContext identifies the source position of a consumed message. It is
// carried into dead-letter records for replay and audit.
type MessageContext struct {
	Topic     string
	Partition int32
	Offset    int64
}

// EventDetails is the optional human-readable portion of a direct per-user
// event.
type EventDetails struct {
	Message string `json:"message,omitempty"`
	Name    string `json:"name,omitempty"`
}

// EventMetadata carries correlation fields attached by upstream producers.
type EventMetadata struct {
	BatchID string `json:"batchId,omitempty"`
	Source  string `json:"source,omitempty"`
}

// UserEvent is published on the user-events topic.
type UserEvent struct {
	UserID    string         `json:"userId"`
	Email     string         `json:"email"`
	EventType string         `json:"eventType"`
	Details   *EventDetails  `json:"details,omitempty"`
	Metadata  *EventMetadata `json:"metadata,omitempty"`
}

// OrderEvent is published on the order-events topic.
type OrderEvent struct {
	UserID    string         `json:"userId"`
	Email     string         `json:"email"`
	OrderID   string         `json:"orderId,omitempty"`
	EventType string         `json:"eventType"`
	Details   *EventDetails  `json:"details,omitempty"`
	Metadata  *EventMetadata `json:"metadata,omitempty"`
}

// ProductEvent is published on the product-events topic.
type ProductEvent struct {
	UserID    string         `json:"userId"`
	Email     string         `json:"email"`
	EventType string         `json:"eventType"`
	Details   *EventDetails  `json:"details,omitempty"`
	Metadata  *EventMetadata `json:"metadata,omitempty"`
}

// ProductSummary is one product inside a promotional batch.
type ProductSummary struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price,omitempty"`
	Quantity int     `json:"quantity,omitempty"`
	Category string  `json:"category,omitempty"`
}

// PromotionalBatchEvent is published on the promotional-events topic and
// fans out to a sampled set of users.
type PromotionalBatchEvent struct {
	Timestamp time.Time        `json:"timestamp"`
	Products  []ProductSummary `json:"products"`
	EventType string           `json:"eventType"`
	Metadata  EventMetadata    `json:"metadata"`
}

// RecommendationItem is a single recommended product. Price is a pointer so
// a missing field is distinguishable from a zero price.
type RecommendationItem struct {
	ID       string   `json:"_id" bson:"_id"`
	Name     string   `json:"name" bson:"name"`
	Price    *float64 `json:"price" bson:"price"`
	Category string   `json:"category" bson:"category"`
}

// Valid reports whether the item carries every required field.
func (r RecommendationItem) Valid() bool {
	return r.ID != "" && r.Name != "" && r.Price != nil && r.Category != ""
}

// RecommendationEvent is published on the recommendation-events topic.
type RecommendationEvent struct {
	Type            string               `json:"type"`
	UserID          string               `json:"userId"`
	Recommendations []RecommendationItem `json:"recommendations"`
}

// Valid rejects an event wholesale if any item is malformed: a partially
// processed recommendation list must never reach a notification.
func (e RecommendationEvent) Valid() bool {
	if e.UserID == "" || e.Type == "" || len(e.Recommendations) == 0 {
		return false
	}
	for _, item := range e.Recommendations {
		if !item.Valid() {
			return false
		}
	}
	return true
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail performs the syntactic local-part@domain check used across the
// pipeline.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
