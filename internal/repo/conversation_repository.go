package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"playchat/internal/db"
	"playchat/internal/model"
)

// ConversationRepository owns the conversation lifecycle: exactly one room per
// unordered user pair, keyed deterministically by model.RoomID.
type ConversationRepository interface {
	GetOrCreate(ctx context.Context, userA, userB int64) (*model.Conversation, error)
	FindByRoomID(ctx context.Context, roomID string) (*model.Conversation, error)
	TouchLastMessage(ctx context.Context, roomID string, at time.Time) error
	ListForUser(ctx context.Context, userID int64) ([]model.Conversation, error)
}

type conversationRepository struct {
	mongoRepo *db.Repository[model.Conversation]
	logger    *zap.Logger
}

func NewConversationRepository(mongoRepo *db.Repository[model.Conversation], logger *zap.Logger) ConversationRepository {
	return &conversationRepository{
		mongoRepo: mongoRepo,
		logger:    logger,
	}
}

// GetOrCreate resolves the room for a user pair, creating it on first
// contact. The lookup matches both orderings of the pair; the insert is
// guarded by the unique room_id index, so when both members race on first
// contact the loser re-fetches the row the winner created.
func (r *conversationRepository) GetOrCreate(ctx context.Context, userA, userB int64) (*model.Conversation, error) {
	if userA <= 0 || userB <= 0 {
		return nil, ErrInvalidUserID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	existing, err := r.mongoRepo.FindOne(ctx, db.Pair("user_a_id", "user_b_id", userA, userB))
	if err == nil {
		return existing, nil
	}
	if err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to look up conversation: %w", err)
	}

	now := time.Now().UTC()
	conversation := model.Conversation{
		UserAID:       userA,
		UserBID:       userB,
		RoomID:        model.RoomID(userA, userB),
		CreatedAt:     now,
		LastMessageAt: now,
	}

	result, err := r.mongoRepo.Create(ctx, conversation)
	if err != nil {
		if db.IsDuplicateKey(err) {
			// Concurrent first contact from the other direction won the
			// insert; the room now exists under the same room_id.
			r.logger.Debug("conversation insert lost race, refetching",
				zap.String("room_id", conversation.RoomID),
			)
			return r.FindByRoomID(ctx, conversation.RoomID)
		}
		r.logger.Error("conversation insert failed",
			zap.String("room_id", conversation.RoomID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	if oid, ok := result.InsertedID.(interface{ Hex() string }); ok {
		r.logger.Info("conversation created",
			zap.String("room_id", conversation.RoomID),
			zap.String("inserted_id", oid.Hex()),
		)
	}
	return &conversation, nil
}

func (r *conversationRepository) FindByRoomID(ctx context.Context, roomID string) (*model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	conversation, err := r.mongoRepo.FindOne(ctx, db.NewFilter().Eq("room_id", roomID).Build())
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	return conversation, nil
}

// TouchLastMessage bumps last_message_at. Best-effort: callers log and
// continue when it fails.
func (r *conversationRepository) TouchLastMessage(ctx context.Context, roomID string, at time.Time) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.mongoRepo.Update(ctx,
		db.NewFilter().Eq("room_id", roomID).Build(),
		bson.M{"last_message_at": at},
	)
	if err != nil {
		return fmt.Errorf("failed to touch conversation %s: %w", roomID, err)
	}
	return nil
}

// ListForUser returns the user's conversations, most recently active first.
func (r *conversationRepository) ListForUser(ctx context.Context, userID int64) ([]model.Conversation, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Or(
		bson.M{"user_a_id": userID},
		bson.M{"user_b_id": userID},
	).Build()

	opts := options.Find().SetSort(bson.M{"last_message_at": -1})
	conversations, err := r.mongoRepo.FindAll(ctx, filter, opts)
	if err != nil {
		r.logger.Error("failed to list conversations", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return conversations, nil
}
