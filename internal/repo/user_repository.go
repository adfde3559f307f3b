package repo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"playchat/internal/db"
	"playchat/internal/model"
)

// UserRepository is the identity directory: it resolves numeric ids, emails
// and usernames to full user records. Lookups return (nil, nil) when no user
// matches.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) (*model.User, error)
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByUsername(ctx context.Context, username string) (*model.User, error)
	Search(ctx context.Context, query string) ([]model.User, error)
	UpdateProfileImage(ctx context.Context, userID int64, imageURL string) error
}

type userRepository struct {
	con       *mongo.Database
	mongoRepo *db.Repository[model.User]
	logger    *zap.Logger
}

func NewUserRepository(con *mongo.Database, mongoRepo *db.Repository[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{
		con:       con,
		mongoRepo: mongoRepo,
		logger:    logger,
	}
}

// Create assigns the next numeric user id and inserts the document. A unique
// index violation on username or email surfaces as a duplicate-key error.
func (r *userRepository) Create(ctx context.Context, user *model.User) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	userID, err := db.NextSequence(ctx, r.con, "user_id")
	if err != nil {
		return nil, fmt.Errorf("failed to allocate user id: %w", err)
	}

	user.UserID = userID
	user.CreatedAt = time.Now().UTC()

	if _, err := r.mongoRepo.Create(ctx, *user); err != nil {
		r.logger.Warn("user insert failed", zap.String("username", user.Username), zap.Error(err))
		return nil, err
	}

	r.logger.Info("user created",
		zap.Int64("user_id", user.UserID),
		zap.String("username", user.Username),
	)
	return user, nil
}

func (r *userRepository) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	if userID <= 0 {
		return nil, ErrInvalidUserID
	}
	return r.findOne(ctx, db.NewFilter().Eq("user_id", userID).Build())
}

func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, db.NewFilter().Eq("email", email).Build())
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.findOne(ctx, db.NewFilter().Eq("username", username).Build())
}

// Search matches the query case-insensitively against username and email.
func (r *userRepository) Search(ctx context.Context, query string) ([]model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Or(
		db.NewFilter().Contains("username", query).Build(),
		db.NewFilter().Contains("email", query).Build(),
	).Build()

	users, err := r.mongoRepo.FindAll(ctx, filter)
	if err != nil {
		r.logger.Error("user search failed", zap.String("query", query), zap.Error(err))
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	return users, nil
}

func (r *userRepository) UpdateProfileImage(ctx context.Context, userID int64, imageURL string) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	_, err := r.mongoRepo.Update(ctx,
		db.NewFilter().Eq("user_id", userID).Build(),
		bson.M{"profile_image_url": imageURL, "updated_at": now},
	)
	if err != nil {
		r.logger.Error("profile image update failed", zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("failed to update profile image: %w", err)
	}
	return nil
}

func (r *userRepository) findOne(ctx context.Context, filter bson.M) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.mongoRepo.FindOne(ctx, filter)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return user, nil
}
