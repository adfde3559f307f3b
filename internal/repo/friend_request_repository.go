package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"playchat/internal/db"
	"playchat/internal/model"
)

// FriendRequestRepository owns friend-request documents. The partial unique
// index on pair_key keeps at most one live (PENDING/ACCEPTED) request per
// unordered pair.
type FriendRequestRepository interface {
	Insert(ctx context.Context, fr *model.FriendRequest) (*model.FriendRequest, error)
	FindByID(ctx context.Context, id string) (*model.FriendRequest, error)
	FindLiveBetween(ctx context.Context, userA, userB int64) (*model.FriendRequest, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error
	ListByReceiverAndStatus(ctx context.Context, receiverID int64, status string) ([]model.FriendRequest, error)
	ListBySender(ctx context.Context, senderID int64) ([]model.FriendRequest, error)
	ListByUserAndStatus(ctx context.Context, userID int64, status string) ([]model.FriendRequest, error)
}

type friendRequestRepository struct {
	mongoRepo *db.Repository[model.FriendRequest]
	logger    *zap.Logger
}

func NewFriendRequestRepository(mongoRepo *db.Repository[model.FriendRequest], logger *zap.Logger) FriendRequestRepository {
	return &friendRequestRepository{
		mongoRepo: mongoRepo,
		logger:    logger,
	}
}

func (r *friendRequestRepository) Insert(ctx context.Context, fr *model.FriendRequest) (*model.FriendRequest, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	fr.PairKey = model.RoomID(fr.SenderID, fr.ReceiverID)
	fr.Status = model.FriendRequestPending
	fr.CreatedAt = now
	fr.UpdatedAt = now

	result, err := r.mongoRepo.Create(ctx, *fr)
	if err != nil {
		// Duplicate pair_key means a live request already exists; the caller
		// maps this to its duplicate-request error.
		return nil, err
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		fr.ID = oid
	}
	r.logger.Info("friend request created",
		zap.Int64("sender_id", fr.SenderID),
		zap.Int64("receiver_id", fr.ReceiverID),
	)
	return fr, nil
}

func (r *friendRequestRepository) FindByID(ctx context.Context, id string) (*model.FriendRequest, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	fr, err := r.mongoRepo.FindByID(ctx, id)
	if err != nil {
		if err == mongo.ErrNoDocuments || err == primitive.ErrInvalidHex {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch friend request: %w", err)
	}
	return fr, nil
}

// FindLiveBetween returns the PENDING or ACCEPTED request between the pair,
// in either direction, or nil.
func (r *friendRequestRepository) FindLiveBetween(ctx context.Context, userA, userB int64) (*model.FriendRequest, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("pair_key", model.RoomID(userA, userB)).
		In("status", []string{model.FriendRequestPending, model.FriendRequestAccepted}).
		Build()

	fr, err := r.mongoRepo.FindOne(ctx, filter)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to look up friend request: %w", err)
	}
	return fr, nil
}

func (r *friendRequestRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	_, err := r.mongoRepo.Update(ctx,
		bson.M{"_id": id},
		bson.M{"status": status, "updated_at": time.Now().UTC()},
	)
	if err != nil {
		r.logger.Error("friend request status update failed",
			zap.String("request_id", id.Hex()),
			zap.String("status", status),
			zap.Error(err),
		)
		return fmt.Errorf("failed to update friend request: %w", err)
	}
	return nil
}

func (r *friendRequestRepository) ListByReceiverAndStatus(ctx context.Context, receiverID int64, status string) ([]model.FriendRequest, error) {
	return r.list(ctx, db.NewFilter().Eq("receiver_id", receiverID).Eq("status", status).Build())
}

func (r *friendRequestRepository) ListBySender(ctx context.Context, senderID int64) ([]model.FriendRequest, error) {
	return r.list(ctx, db.NewFilter().Eq("sender_id", senderID).Build())
}

// ListByUserAndStatus matches requests in either direction.
func (r *friendRequestRepository) ListByUserAndStatus(ctx context.Context, userID int64, status string) ([]model.FriendRequest, error) {
	filter := db.NewFilter().
		Or(bson.M{"sender_id": userID}, bson.M{"receiver_id": userID}).
		Eq("status", status).
		Build()
	return r.list(ctx, filter)
}

func (r *friendRequestRepository) list(ctx context.Context, filter bson.M) ([]model.FriendRequest, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	requests, err := r.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}
	return requests, nil
}
