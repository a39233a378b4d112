package deadletter

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FailureContext pins a failed message to its source position and records
// why processing gave up on it.
type FailureContext struct {
	Partition int32
	Offset    int64
	Reason    string
}

// DeadLetterRecord is the persisted artifact for a message the pipeline could
// not process. Records are append-only; replay is an offline concern.
type DeadLetterRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Topic     string             `bson:"topic" json:"topic"`
	Payload   []byte             `bson:"payload" json:"payload"`
	Partition int32              `bson:"partition" json:"partition"`
	Offset    int64              `bson:"offset" json:"offset"`
	Reason    string             `bson:"reason" json:"reason"`
	CreatedAt time.Time          `bson:"created_at" json:"createdAt"`
}
