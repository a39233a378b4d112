package deadletter

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// inserter is the slice of *mongo.Collection the recorder writes through.
type inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// Recorder is the append-only sink for messages the pipeline gave up on.
type Recorder struct {
	sink       inserter
	collection *mongo.Collection
}

// NewRecorder creates a recorder backed by the dead_letters collection.
func NewRecorder(db *mongo.Database) *Recorder {
	collection := db.Collection("dead_letters")
	return &Recorder{sink: collection, collection: collection}
}

// Record persists a failed message with its failure context. It must never
// take down the caller's consume loop: a failure to record is logged as a
// last resort and swallowed.
func (r *Recorder) Record(ctx context.Context, topic string, payload []byte, fc FailureContext) {
	record := DeadLetterRecord{
		Topic:     topic,
		Payload:   payload,
		Partition: fc.Partition,
		Offset:    fc.Offset,
		Reason:    fc.Reason,
		CreatedAt: time.Now(),
	}

	if _, err := r.sink.InsertOne(ctx, record); err != nil {
		log.Printf("[DeadLetterQueue] Failed to record dead letter for topic %s (partition %d, offset %d, reason %q): %v",
			topic, fc.Partition, fc.Offset, fc.Reason, err)
		return
	}

	log.Printf("[DeadLetterQueue] Recorded dead letter for topic %s (partition %d, offset %d): %s",
		topic, fc.Partition, fc.Offset, fc.Reason)
}

// List fetches the most recent dead letters for the admin read surface.
func (r *Recorder) List(ctx context.Context, limit int) ([]*DeadLetterRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var records []*DeadLetterRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}
