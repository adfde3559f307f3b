package event

import (
	"encoding/json"
	"time"
)

// Inbound frame destinations, one per client-initiated action.
const (
	DestSendMessage = "chat.send"
	DestAddUser     = "chat.join"
	DestTyping      = "chat.typing"
	DestPing        = "ping"
)

// Outbound topics. Every connected client owns a private mailbox; topics
// partition what lands in it.
const (
	TopicMessages      = "messages"
	TopicMessageUpdate = "message-update"
	TopicErrors        = "errors"
	TopicTyping        = "typing"
	TopicPublic        = "public"
)

// Type discriminates message events on the live channel.
type Type string

const (
	TypeChat       Type = "CHAT"
	TypeJoin       Type = "JOIN"
	TypeLeave      Type = "LEAVE"
	TypeTyping     Type = "TYPING"
	TypeStopTyping Type = "STOP_TYPING"
	TypeError      Type = "ERROR"
)

// Frame is the raw websocket envelope read from a client. The body is decoded
// per destination by the dispatcher.
type Frame struct {
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body"`
}

// Envelope is the raw websocket envelope written to a client.
type Envelope struct {
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

// MessageEvent is the transient wire representation of a chat message. It is
// never persisted as-is: the durable record it becomes is model.Message.
// Nonce is assigned by the client (or by the server during the instant path)
// and repeated on the confirmation so clients can merge the two deliveries.
type MessageEvent struct {
	ID               string    `json:"id,omitempty"`
	Nonce            string    `json:"nonce,omitempty"`
	Content          string    `json:"content"`
	SenderID         int64     `json:"senderId"`
	ReceiverID       int64     `json:"receiverId"`
	SenderUsername   string    `json:"senderUsername,omitempty"`
	ReceiverUsername string    `json:"receiverUsername,omitempty"`
	SenderImageURL   string    `json:"senderProfileImageUrl,omitempty"`
	ReceiverImageURL string    `json:"receiverProfileImageUrl,omitempty"`
	MessageType      string    `json:"messageType,omitempty"`
	Type             Type      `json:"type,omitempty"`
	Timestamp        time.Time `json:"timestamp,omitempty"`
	IsRead           bool      `json:"isRead"`
	RoomID           string    `json:"roomId,omitempty"`
}

// ErrorEvent reports a failed operation to the originating sender only.
type ErrorEvent struct {
	Type    Type   `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Nonce   string `json:"nonce,omitempty"`
}
