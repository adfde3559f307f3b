package service

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"playchat/internal/db"
	"playchat/internal/model"
	"playchat/internal/repo"
)

const maxProfileImageSize = 5 * 1024 * 1024

// UserService covers registration, login, user search and profile images.
type UserService interface {
	Register(ctx context.Context, username, email, password string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Search(ctx context.Context, query, requesterEmail string) ([]UserSummary, error)
	UploadProfileImage(ctx context.Context, email string, data []byte, contentType string) (string, error)
	RemoveProfileImage(ctx context.Context, email string) error
	ServeProfileImage(ctx context.Context, imageURL string, w io.Writer) (string, error)
}

type userService struct {
	users    repo.UserRepository
	blobs    db.BlobStore
	notifier Notifier
	tokens   *TokenManager
	logger   *zap.Logger
}

func NewUserService(users repo.UserRepository, blobs db.BlobStore, notifier Notifier, tokens *TokenManager, logger *zap.Logger) UserService {
	return &userService{
		users:    users,
		blobs:    blobs,
		notifier: notifier,
		tokens:   tokens,
		logger:   logger,
	}
}

func (s *userService) Register(ctx context.Context, username, email, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if username == "" || email == "" || len(password) < 8 {
		return nil, fmt.Errorf("%w: username, email and a password of at least 8 characters are required", ErrValidation)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	}
	if _, err := s.users.Create(ctx, user); err != nil {
		if db.IsDuplicateKey(err) {
			return nil, fmt.Errorf("%w: username or email already taken", ErrValidation)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Welcome email is best-effort; registration never fails on it.
	go func() {
		if err := s.notifier.NotifyWelcome(user.Email, user.Username); err != nil {
			s.logger.Warn("welcome email failed", zap.String("to", user.Email), zap.Error(err))
		}
	}()

	return user, nil
}

func (s *userService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if user == nil {
		return nil, "", ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", ErrUnauthorized
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *userService) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	return user, nil
}

// Search matches username/email and always filters the requester out of the
// results.
func (s *userService) Search(ctx context.Context, query, requesterEmail string) ([]UserSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: search query cannot be empty", ErrValidation)
	}

	users, err := s.users.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	users = Filter(users, func(u model.User) bool {
		return u.Email != requesterEmail
	})

	summaries := make([]UserSummary, 0, len(users))
	for i := range users {
		summaries = append(summaries, summarize(&users[i]))
	}
	return summaries, nil
}

// UploadProfileImage validates, stores the blob and persists the new URL. The
// previous image, if any, is deleted best-effort.
func (s *userService) UploadProfileImage(ctx context.Context, email string, data []byte, contentType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: image file is empty", ErrValidation)
	}
	if len(data) > maxProfileImageSize {
		return "", fmt.Errorf("%w: image size must be less than 5MB", ErrValidation)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", fmt.Errorf("%w: file must be an image", ErrValidation)
	}

	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if user.ProfileImageURL != "" {
		if err := s.blobs.Delete(ctx, user.ProfileImageURL); err != nil {
			s.logger.Warn("failed to delete old profile image",
				zap.Int64("user_id", user.UserID),
				zap.Error(err),
			)
		}
	}

	url, err := s.blobs.Upload(ctx, data, user.Username, contentType)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if err := s.users.UpdateProfileImage(ctx, user.UserID, url); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return url, nil
}

// RemoveProfileImage clears the user's image URL and deletes the stored blob.
func (s *userService) RemoveProfileImage(ctx context.Context, email string) error {
	user, err := s.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.ProfileImageURL == "" {
		return nil
	}

	if err := s.blobs.Delete(ctx, user.ProfileImageURL); err != nil {
		s.logger.Warn("failed to delete profile image blob",
			zap.Int64("user_id", user.UserID),
			zap.Error(err),
		)
	}
	if err := s.users.UpdateProfileImage(ctx, user.UserID, ""); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (s *userService) ServeProfileImage(ctx context.Context, imageURL string, w io.Writer) (string, error) {
	contentType, err := s.blobs.Download(ctx, imageURL, w)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return contentType, nil
}
