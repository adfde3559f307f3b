package repo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"playchat/internal/db"
	"playchat/internal/model"
)

// MessageRepository owns the durable message lifecycle: ordered, paginated
// persistence keyed by the user pair, with read-state tracking.
type MessageRepository interface {
	Insert(ctx context.Context, msg *model.Message) (*model.Message, error)
	FindBetween(ctx context.Context, userA, userB, page, size int64) ([]model.Message, error)
	MarkRead(ctx context.Context, senderID, receiverID int64) (int64, error)
	CountUnread(ctx context.Context, receiverID int64) (int64, error)
	CountUnreadFrom(ctx context.Context, receiverID, senderID int64) (int64, error)
}

type messageRepository struct {
	mongoRepo *db.Repository[model.Message]
	logger    *zap.Logger
}

func NewMessageRepository(mongoRepo *db.Repository[model.Message], logger *zap.Logger) MessageRepository {
	return &messageRepository{
		mongoRepo: mongoRepo,
		logger:    logger,
	}
}

// -----------------------------------------------------------------------------
// Insert
// -----------------------------------------------------------------------------

// Insert persists a message, retrying transient Mongo failures with
// exponential backoff. The inserted ObjectID is written back into msg.
func (r *messageRepository) Insert(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if msg == nil {
		return nil, ErrInvalidMessage
	}
	if msg.SenderID <= 0 || msg.ReceiverID <= 0 {
		return nil, ErrInvalidUserID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			if err := waitForRetry(ctx, attempt); err != nil {
				return nil, err
			}
			r.logger.Warn("retrying message insert",
				zap.Int64("sender_id", msg.SenderID),
				zap.Int("attempt", attempt+1),
			)
		}

		result, err := r.mongoRepo.Create(ctx, *msg)
		if err == nil {
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				msg.ID = oid
			}
			r.logger.Info("message inserted",
				zap.String("inserted_id", msg.ID.Hex()),
				zap.Int64("sender_id", msg.SenderID),
				zap.Int64("receiver_id", msg.ReceiverID),
				zap.Int("attempt", attempt+1),
			)
			return msg, nil
		}

		lastErr = err
		if !isRetryableError(err) {
			break
		}
	}

	r.logger.Error("failed to insert message after all retries",
		zap.Error(lastErr),
		zap.Int64("sender_id", msg.SenderID),
	)
	return nil, fmt.Errorf("insert message failed: %w", lastErr)
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// FindBetween returns one page of the pair's messages, newest first.
func (r *messageRepository) FindBetween(ctx context.Context, userA, userB, page, size int64) ([]model.Message, error) {
	if userA <= 0 || userB <= 0 {
		return nil, ErrInvalidUserID
	}

	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	result, err := r.mongoRepo.FindWithPagination(ctx,
		db.Pair("sender_id", "receiver_id", userA, userB),
		db.PaginationParams{
			Page:     page,
			PageSize: size,
			SortBy:   "created_at",
			SortDesc: true,
		})
	if err != nil {
		return nil, r.handleReadError(err, userA, userB)
	}

	r.logger.Debug("messages fetched",
		zap.Int64("user_a", userA),
		zap.Int64("user_b", userB),
		zap.Int("count", len(result.Data)),
		zap.Int64("total", result.Total),
	)
	return result.Data, nil
}

// MarkRead flips is_read on every unread message from senderID to receiverID
// in one batch command. Idempotent: already-read messages are untouched and a
// repeat call reports zero transitions.
func (r *messageRepository) MarkRead(ctx context.Context, senderID, receiverID int64) (int64, error) {
	if senderID <= 0 || receiverID <= 0 {
		return 0, ErrInvalidUserID
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("sender_id", senderID).
		Eq("receiver_id", receiverID).
		Eq("is_read", false).
		Build()

	result, err := r.mongoRepo.UpdateMany(ctx, filter, bson.M{"is_read": true})
	if err != nil {
		r.logger.Error("mark read failed",
			zap.Int64("sender_id", senderID),
			zap.Int64("receiver_id", receiverID),
			zap.Error(err),
		)
		return 0, fmt.Errorf("mark read failed: %w", err)
	}

	return result.ModifiedCount, nil
}

func (r *messageRepository) CountUnread(ctx context.Context, receiverID int64) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	return r.mongoRepo.Count(ctx, db.NewFilter().
		Eq("receiver_id", receiverID).
		Eq("is_read", false).
		Build())
}

func (r *messageRepository) CountUnreadFrom(ctx context.Context, receiverID, senderID int64) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	return r.mongoRepo.Count(ctx, db.NewFilter().
		Eq("receiver_id", receiverID).
		Eq("sender_id", senderID).
		Eq("is_read", false).
		Build())
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}
	if db.IsDuplicateKey(err) {
		return false
	}
	return mongo.IsTimeout(err) || mongo.IsNetworkError(err)
}

func (r *messageRepository) handleReadError(err error, userA, userB int64) error {
	if errors.Is(err, context.DeadlineExceeded) {
		r.logger.Error("read timeout", zap.Int64("user_a", userA), zap.Int64("user_b", userB))
		return ErrOperationTimeout
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil
	}
	r.logger.Error("read failed", zap.Error(err), zap.Int64("user_a", userA), zap.Int64("user_b", userB))
	return fmt.Errorf("fetch messages failed: %w", err)
}
