package processor

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"ShopNotifier/internal/config"
	"ShopNotifier/internal/deadletter"
	"ShopNotifier/internal/notification"
)

// NotificationStore is the slice of the notification repository the
// processors write through.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n *notification.Notification) error
	MarkEmailSent(ctx context.Context, id primitive.ObjectID) (bool, error)
	MarkProcessed(ctx context.Context, id primitive.ObjectID) error
}

// EmailSender delivers best-effort email through the email service.
type EmailSender interface {
	SendEmail(ctx context.Context, userID, subject, emailType string, content any) error
}

// UserDirectory serves read-only user profile snapshots.
type UserDirectory interface {
	GetUser(ctx context.Context, userID string) (*config.User, error)
	ListUsers(ctx context.Context) ([]config.User, error)
}

// DeadLetterSink receives messages the processors gave up on.
type DeadLetterSink interface {
	Record(ctx context.Context, topic string, payload []byte, fc deadletter.FailureContext)
}
