package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"playchat/internal/crypto"
	"playchat/internal/event"
	"playchat/internal/model"
	"playchat/internal/repo"
)

// LiveChannel is the pipeline's capability on the live substrate: an
// addressable mailbox per authenticated identity, plus a shared broadcast
// topic. Delivery is at-least-once, best-effort, with no confirmation back.
type LiveChannel interface {
	PublishToUser(userID int64, topic string, payload any)
	PublishBroadcast(topic string, payload any)
}

const (
	defaultPersistWorkers   = 4
	defaultPersistQueueSize = 256
	persistTimeout          = 10 * time.Second
)

// ChatService is the message delivery and persistence pipeline plus the
// CRUD-style history/read-state operations around it.
type ChatService interface {
	// Submit runs the dual-path delivery for one inbound message event:
	// instant republish to both parties, then asynchronous encrypted
	// persistence with a confirmation publish. Fire-and-forget.
	Submit(ev *event.MessageEvent)
	Join(ev *event.MessageEvent)
	Typing(ev *event.MessageEvent)
	Dispatch(userID int64, frame event.Frame)

	History(ctx context.Context, userA, userB, page, size int64) ([]event.MessageEvent, error)
	MarkRead(ctx context.Context, senderID, receiverID int64) (int64, error)
	UnreadCount(ctx context.Context, userID int64) (int64, error)
	UnreadCountFrom(ctx context.Context, receiverID, senderID int64) (int64, error)
	Conversations(ctx context.Context, userID int64) ([]model.Conversation, error)

	Close()
}

type chatService struct {
	users         repo.UserRepository
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	codec         crypto.Codec
	live          LiveChannel
	logger        *zap.Logger

	persistQueue chan *event.MessageEvent
	wg           sync.WaitGroup
	closeOnce    sync.Once
}

// NewChatService starts the durable-path worker pool. workers and queueSize
// fall back to defaults when non-positive.
func NewChatService(
	users repo.UserRepository,
	conversations repo.ConversationRepository,
	messages repo.MessageRepository,
	codec crypto.Codec,
	live LiveChannel,
	logger *zap.Logger,
	workers, queueSize int,
) ChatService {
	if workers <= 0 {
		workers = defaultPersistWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultPersistQueueSize
	}

	s := &chatService{
		users:         users,
		conversations: conversations,
		messages:      messages,
		codec:         codec,
		live:          live,
		logger:        logger,
		persistQueue:  make(chan *event.MessageEvent, queueSize),
	}

	for i := 0; i < workers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for ev := range s.persistQueue {
				s.persist(ev)
			}
		}()
	}

	return s
}

// Close drains the durable path and stops the workers.
func (s *chatService) Close() {
	s.closeOnce.Do(func() {
		close(s.persistQueue)
		s.wg.Wait()
	})
}

// -----------------------------------------------------------------------------
// Inbound dispatch
// -----------------------------------------------------------------------------

// Dispatch routes one inbound frame from an authenticated connection. The
// sender identity always comes from the connection, never from the frame body.
func (s *chatService) Dispatch(userID int64, frame event.Frame) {
	switch frame.Destination {
	case event.DestSendMessage, event.DestAddUser, event.DestTyping:
		var ev event.MessageEvent
		if err := json.Unmarshal(frame.Body, &ev); err != nil {
			s.logger.Warn("malformed inbound frame", zap.Int64("user_id", userID), zap.Error(err))
			s.publishError(userID, CodeValidation, "malformed message payload", "")
			return
		}
		ev.SenderID = userID

		switch frame.Destination {
		case event.DestSendMessage:
			s.Submit(&ev)
		case event.DestAddUser:
			s.Join(&ev)
		case event.DestTyping:
			s.Typing(&ev)
		}
	case event.DestPing:
		// keep-alive, nothing to do
	default:
		s.logger.Warn("unknown destination", zap.String("destination", frame.Destination))
	}
}

// -----------------------------------------------------------------------------
// Delivery pipeline
// -----------------------------------------------------------------------------

func (s *chatService) Submit(ev *event.MessageEvent) {
	ev.Content = strings.TrimSpace(ev.Content)
	if err := validateMessageEvent(ev); err != nil {
		s.publishError(ev.SenderID, CodeValidation, err.Error(), ev.Nonce)
		return
	}

	// Instant path: stamp defaults and republish verbatim to both mailboxes.
	// Never touches storage.
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.Type == "" {
		ev.Type = event.TypeChat
	}
	if ev.MessageType == "" {
		ev.MessageType = model.MessageTypeText
	}
	if ev.Nonce == "" {
		ev.Nonce = uuid.NewString()
	}

	s.live.PublishToUser(ev.ReceiverID, event.TopicMessages, ev)
	s.live.PublishToUser(ev.SenderID, event.TopicMessages, ev)

	// Durable path: bounded queue; a saturated queue rejects the task rather
	// than blocking the instant path.
	select {
	case s.persistQueue <- ev:
	default:
		s.logger.Warn("persist queue saturated, durable path rejected",
			zap.Int64("sender_id", ev.SenderID),
			zap.String("nonce", ev.Nonce),
		)
		s.publishError(ev.SenderID, CodePersistence, "message could not be saved: server busy", ev.Nonce)
	}
}

// persist is the durable path for one message: resolve identities, resolve or
// create the room, encrypt, insert, then confirm to both mailboxes. Any
// failure ends with a single ERROR event to the sender; the instant-path
// delivery is never retracted.
func (s *chatService) persist(ev *event.MessageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	sender, err := s.users.FindByID(ctx, ev.SenderID)
	if err == nil && sender == nil {
		err = fmt.Errorf("%w: sender %d", ErrNotFound, ev.SenderID)
	}
	if err != nil {
		s.failDurable(ev, CodeNotFound, "sender not found", err)
		return
	}

	receiver, err := s.users.FindByID(ctx, ev.ReceiverID)
	if err == nil && receiver == nil {
		err = fmt.Errorf("%w: receiver %d", ErrNotFound, ev.ReceiverID)
	}
	if err != nil {
		s.failDurable(ev, CodeNotFound, "receiver not found", err)
		return
	}

	conversation, err := s.conversations.GetOrCreate(ctx, sender.UserID, receiver.UserID)
	if err != nil {
		s.failDurable(ev, CodePersistence, "message could not be saved", err)
		return
	}

	encrypted, err := s.codec.Encrypt(ev.Content)
	if err != nil {
		s.failDurable(ev, CodePersistence, "message could not be saved", err)
		return
	}

	msg := &model.Message{
		Nonce:            ev.Nonce,
		SenderID:         sender.UserID,
		ReceiverID:       receiver.UserID,
		EncryptedContent: encrypted,
		MessageType:      ev.MessageType,
		CreatedAt:        ev.Timestamp,
		IsRead:           false,
	}
	if _, err := s.messages.Insert(ctx, msg); err != nil {
		s.failDurable(ev, CodePersistence, "message could not be saved", err)
		return
	}

	// Best-effort: the room's recency marker must not fail the path.
	if err := s.conversations.TouchLastMessage(ctx, conversation.RoomID, msg.CreatedAt); err != nil {
		s.logger.Warn("failed to touch conversation",
			zap.String("room_id", conversation.RoomID),
			zap.Error(err),
		)
	}

	confirmed := *ev
	confirmed.ID = msg.ID.Hex()
	confirmed.RoomID = conversation.RoomID
	confirmed.SenderUsername = sender.Username
	confirmed.ReceiverUsername = receiver.Username
	confirmed.SenderImageURL = sender.ProfileImageURL
	confirmed.ReceiverImageURL = receiver.ProfileImageURL

	s.live.PublishToUser(receiver.UserID, event.TopicMessageUpdate, &confirmed)
	s.live.PublishToUser(sender.UserID, event.TopicMessageUpdate, &confirmed)
}

func (s *chatService) failDurable(ev *event.MessageEvent, code, message string, err error) {
	s.logger.Error("durable path failed",
		zap.Int64("sender_id", ev.SenderID),
		zap.Int64("receiver_id", ev.ReceiverID),
		zap.String("nonce", ev.Nonce),
		zap.Error(err),
	)
	s.publishError(ev.SenderID, code, message, ev.Nonce)
}

func (s *chatService) publishError(userID int64, code, message, nonce string) {
	s.live.PublishToUser(userID, event.TopicErrors, &event.ErrorEvent{
		Type:    event.TypeError,
		Code:    code,
		Message: message,
		Nonce:   nonce,
	})
}

func validateMessageEvent(ev *event.MessageEvent) error {
	if ev.Content == "" {
		return fmt.Errorf("%w: message content cannot be empty", ErrValidation)
	}
	if ev.SenderID <= 0 || ev.ReceiverID <= 0 {
		return fmt.Errorf("%w: sender and receiver ids are required", ErrValidation)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Presence and typing
// -----------------------------------------------------------------------------

// Join announces a user on the shared public topic.
func (s *chatService) Join(ev *event.MessageEvent) {
	if ev.Type == "" {
		ev.Type = event.TypeJoin
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	s.live.PublishBroadcast(event.TopicPublic, ev)
}

// Typing forwards a typing indicator to the receiver only. No persistence.
func (s *chatService) Typing(ev *event.MessageEvent) {
	if ev.ReceiverID <= 0 {
		return
	}
	if ev.Type != event.TypeStopTyping {
		ev.Type = event.TypeTyping
	}
	s.live.PublishToUser(ev.ReceiverID, event.TopicTyping, ev)
}

// -----------------------------------------------------------------------------
// History and read state
// -----------------------------------------------------------------------------

// History returns one page of the pair's conversation, newest first, with
// bodies decrypted and display identities attached.
func (s *chatService) History(ctx context.Context, userA, userB, page, size int64) ([]event.MessageEvent, error) {
	a, err := s.users.FindByID(ctx, userA)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userA)
	}

	b, err := s.users.FindByID(ctx, userB)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if b == nil {
		return nil, fmt.Errorf("%w: user %d", ErrNotFound, userB)
	}

	messages, err := s.messages.FindBetween(ctx, userA, userB, page, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	byID := map[int64]*model.User{a.UserID: a, b.UserID: b}

	events := make([]event.MessageEvent, 0, len(messages))
	for _, msg := range messages {
		plaintext, err := s.codec.Decrypt(msg.EncryptedContent)
		if err != nil {
			s.logger.Error("failed to decrypt stored message",
				zap.String("message_id", msg.ID.Hex()),
				zap.Error(err),
			)
			return nil, fmt.Errorf("%w: corrupt message %s", ErrPersistence, msg.ID.Hex())
		}

		sender, receiver := byID[msg.SenderID], byID[msg.ReceiverID]
		events = append(events, event.MessageEvent{
			ID:               msg.ID.Hex(),
			Nonce:            msg.Nonce,
			Content:          plaintext,
			SenderID:         msg.SenderID,
			ReceiverID:       msg.ReceiverID,
			SenderUsername:   sender.Username,
			ReceiverUsername: receiver.Username,
			SenderImageURL:   sender.ProfileImageURL,
			ReceiverImageURL: receiver.ProfileImageURL,
			MessageType:      msg.MessageType,
			Type:             event.TypeChat,
			Timestamp:        msg.CreatedAt,
			IsRead:           msg.IsRead,
			RoomID:           model.RoomID(msg.SenderID, msg.ReceiverID),
		})
	}
	return events, nil
}

func (s *chatService) MarkRead(ctx context.Context, senderID, receiverID int64) (int64, error) {
	count, err := s.messages.MarkRead(ctx, senderID, receiverID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return count, nil
}

func (s *chatService) UnreadCount(ctx context.Context, userID int64) (int64, error) {
	count, err := s.messages.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return count, nil
}

func (s *chatService) UnreadCountFrom(ctx context.Context, receiverID, senderID int64) (int64, error) {
	count, err := s.messages.CountUnreadFrom(ctx, receiverID, senderID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return count, nil
}

func (s *chatService) Conversations(ctx context.Context, userID int64) ([]model.Conversation, error) {
	conversations, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return conversations, nil
}
