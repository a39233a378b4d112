package notification

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NotificationRepository handles DB operations for notifications.
type NotificationRepository struct {
	collection *mongo.Collection
}

// NewNotificationRepository creates a new repository for notifications.
func NewNotificationRepository(db *mongo.Database) *NotificationRepository {
	return &NotificationRepository{collection: db.Collection("notifications")}
}

// CreateNotification inserts a new notification into the DB.
func (r *NotificationRepository) CreateNotification(ctx context.Context, n *Notification) error {
	if n.ID.IsZero() {
		n.ID = primitive.NewObjectID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, n)
	return err
}

// FindPendingRecommendations fetches recommendation notifications whose email
// was never sent and that no pass has touched yet (sent_at unset). The limit
// caps the blast radius of a single reconciler run.
func (r *NotificationRepository) FindPendingRecommendations(ctx context.Context, limit int) ([]*Notification, error) {
	filter := bson.M{
		"type":       TypeRecommendation,
		"email_sent": false,
		"sent_at":    bson.M{"$exists": false},
	}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	var notifications []*Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkEmailSent flips email_sent and stamps sent_at. The filter includes
// email_sent=false so the transition happens at most once per record; a
// second call is a no-op and reports flipped=false.
func (r *NotificationRepository) MarkEmailSent(ctx context.Context, id primitive.ObjectID) (bool, error) {
	filter := bson.M{"_id": id, "email_sent": false}
	update := bson.M{"$set": bson.M{"email_sent": true, "sent_at": time.Now()}}
	res, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// MarkProcessed stamps sent_at without setting email_sent, parking a
// notification whose email can never be delivered (vanished user, invalid
// address, opt-out) so the reconciler does not pick it up forever.
func (r *NotificationRepository) MarkProcessed(ctx context.Context, id primitive.ObjectID) error {
	update := bson.M{"$set": bson.M{"sent_at": time.Now()}}
	res, err := r.collection.UpdateByID(ctx, id, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errors.New("notification not found")
	}
	return nil
}

// ListByUser fetches the notifications for one user, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string) ([]*Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	var notifications []*Notification
	if err := cursor.All(ctx, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead flags a notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.UpdateByID(ctx, id, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errors.New("notification not found")
	}
	return nil
}
