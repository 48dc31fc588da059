package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Flag is a user's report that an issue is inappropriate or spam.
// A user may flag a given issue only once.
type Flag struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IssueID   primitive.ObjectID `bson:"issueId" json:"issueId"`
	FlaggedBy primitive.ObjectID `bson:"flaggedBy" json:"flaggedBy"`
	Reason    *string            `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
