package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents a user document in MongoDB. UserID is the stable numeric
// identity assigned at registration; the ObjectID is storage-internal.
type User struct {
	ID              primitive.ObjectID `json:"-" bson:"_id,omitempty"`
	UserID          int64              `json:"id" bson:"user_id"`
	Username        string             `json:"username" bson:"username"`
	Email           string             `json:"email" bson:"email"`
	PasswordHash    string             `json:"-" bson:"password_hash"`
	ProfileImageURL string             `json:"profileImageUrl,omitempty" bson:"profile_image_url,omitempty"`
	CreatedAt       time.Time          `json:"createdAt" bson:"created_at"`
	UpdatedAt       *time.Time         `json:"updatedAt,omitempty" bson:"updated_at,omitempty"`
}
