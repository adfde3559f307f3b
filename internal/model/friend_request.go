package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Friend request statuses. PENDING is the only non-terminal state.
const (
	FriendRequestPending  = "PENDING"
	FriendRequestAccepted = "ACCEPTED"
	FriendRequestRejected = "REJECTED"
)

// FriendRequest represents a friend-request document in MongoDB. PairKey is
// the unordered-pair key (same derivation as RoomID) backing the uniqueness
// guarantee of at most one live request per pair.
type FriendRequest struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	SenderID   int64              `json:"senderId" bson:"sender_id"`
	ReceiverID int64              `json:"receiverId" bson:"receiver_id"`
	PairKey    string             `json:"-" bson:"pair_key"`
	Status     string             `json:"status" bson:"status"`
	CreatedAt  time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt  time.Time          `json:"updatedAt" bson:"updated_at"`
}

// Terminal reports whether the request can no longer transition.
func (fr *FriendRequest) Terminal() bool {
	return fr.Status != FriendRequestPending
}
