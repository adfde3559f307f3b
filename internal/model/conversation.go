package model

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Conversation represents a two-party chat room in MongoDB. There is exactly
// one document per unordered user pair, enforced by a unique index on room_id.
type Conversation struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserAID       int64              `json:"userAId" bson:"user_a_id"`
	UserBID       int64              `json:"userBId" bson:"user_b_id"`
	RoomID        string             `json:"roomId" bson:"room_id"`
	CreatedAt     time.Time          `json:"createdAt" bson:"created_at"`
	LastMessageAt time.Time          `json:"lastMessageAt" bson:"last_message_at"`
}

// RoomID derives the deterministic room identity for a user pair: smaller id
// first, so both orderings of the same pair map to the same room. Every place
// that needs a room id must go through this function.
func RoomID(userA, userB int64) string {
	lo, hi := userA, userB
	if lo > hi {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%d_%d", lo, hi)
}
