package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message type discriminator for the durable record.
const (
	MessageTypeText = "TEXT"
)

// Message represents a chat message document in MongoDB. The body is stored
// encrypted; plaintext only ever travels over the live channel. Immutable
// after insert except the is_read flag, which moves false -> true only.
type Message struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Nonce            string             `json:"nonce" bson:"nonce"`
	SenderID         int64              `json:"senderId" bson:"sender_id"`
	ReceiverID       int64              `json:"receiverId" bson:"receiver_id"`
	EncryptedContent string             `json:"-" bson:"encrypted_content"`
	MessageType      string             `json:"messageType" bson:"message_type"`
	CreatedAt        time.Time          `json:"createdAt" bson:"created_at"`
	IsRead           bool               `json:"isRead" bson:"is_read"`
}
