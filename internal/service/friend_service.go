package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"playchat/internal/db"
	"playchat/internal/model"
	"playchat/internal/repo"
)

// UserSummary is the public projection of a user attached to friend-request
// views and search results.
type UserSummary struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	Email           string `json:"email"`
	ProfileImageURL string `json:"profileImageUrl,omitempty"`
}

// FriendRequestView is the API projection of a friend request with both
// parties resolved to display identities.
type FriendRequestView struct {
	ID        string      `json:"id"`
	Status    string      `json:"status"`
	Sender    UserSummary `json:"sender"`
	Receiver  UserSummary `json:"receiver"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// FriendService is the friend-request state machine: PENDING is the only
// non-terminal state; ACCEPTED and REJECTED never transition again.
type FriendService interface {
	Send(ctx context.Context, senderEmail string, receiverID int64) (*FriendRequestView, error)
	Respond(ctx context.Context, requestID, responderEmail string, accept bool) (*FriendRequestView, error)
	ListPending(ctx context.Context, userEmail string) ([]FriendRequestView, error)
	ListSent(ctx context.Context, userEmail string) ([]FriendRequestView, error)
	ListFriends(ctx context.Context, userEmail string) ([]FriendRequestView, error)
}

type friendService struct {
	requests repo.FriendRequestRepository
	users    repo.UserRepository
	notifier Notifier
	logger   *zap.Logger
}

func NewFriendService(requests repo.FriendRequestRepository, users repo.UserRepository, notifier Notifier, logger *zap.Logger) FriendService {
	return &friendService{
		requests: requests,
		users:    users,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *friendService) Send(ctx context.Context, senderEmail string, receiverID int64) (*FriendRequestView, error) {
	sender, err := s.users.FindByEmail(ctx, senderEmail)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if sender == nil {
		return nil, fmt.Errorf("%w: sender", ErrNotFound)
	}

	receiver, err := s.users.FindByID(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if receiver == nil {
		return nil, fmt.Errorf("%w: receiver", ErrNotFound)
	}

	if sender.UserID == receiver.UserID {
		return nil, ErrSelfRequest
	}

	existing, err := s.requests.FindLiveBetween(ctx, sender.UserID, receiver.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if existing != nil {
		if existing.Status == model.FriendRequestAccepted {
			return nil, fmt.Errorf("%w: you are already friends", ErrDuplicateRequest)
		}
		return nil, fmt.Errorf("%w: friend request already pending", ErrDuplicateRequest)
	}

	request := &model.FriendRequest{
		SenderID:   sender.UserID,
		ReceiverID: receiver.UserID,
	}
	if _, err := s.requests.Insert(ctx, request); err != nil {
		if db.IsDuplicateKey(err) {
			// Lost a race against a concurrent request between the same pair.
			return nil, fmt.Errorf("%w: friend request already pending", ErrDuplicateRequest)
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	// Best-effort notification; its failure never fails the request.
	go func() {
		if err := s.notifier.NotifyFriendRequest(receiver.Email, receiver.Username, sender.Username, sender.Email); err != nil {
			s.logger.Warn("friend request notification failed",
				zap.String("to", receiver.Email),
				zap.Error(err),
			)
		}
	}()

	return s.view(request, sender, receiver), nil
}

func (s *friendService) Respond(ctx context.Context, requestID, responderEmail string, accept bool) (*FriendRequestView, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if request == nil {
		return nil, fmt.Errorf("%w: friend request %s", ErrNotFound, requestID)
	}

	responder, err := s.users.FindByEmail(ctx, responderEmail)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if responder == nil {
		return nil, fmt.Errorf("%w: responder", ErrNotFound)
	}

	if responder.UserID != request.ReceiverID {
		return nil, fmt.Errorf("%w: only the receiver may respond", ErrForbidden)
	}
	if request.Terminal() {
		return nil, ErrAlreadyResponded
	}

	status := model.FriendRequestRejected
	if accept {
		status = model.FriendRequestAccepted
	}
	if err := s.requests.UpdateStatus(ctx, request.ID, status); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	request.Status = status
	request.UpdatedAt = time.Now().UTC()

	return s.resolveView(ctx, request)
}

func (s *friendService) ListPending(ctx context.Context, userEmail string) ([]FriendRequestView, error) {
	user, err := s.requireUser(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	requests, err := s.requests.ListByReceiverAndStatus(ctx, user.UserID, model.FriendRequestPending)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s.resolveViews(ctx, requests)
}

func (s *friendService) ListSent(ctx context.Context, userEmail string) ([]FriendRequestView, error) {
	user, err := s.requireUser(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	requests, err := s.requests.ListBySender(ctx, user.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s.resolveViews(ctx, requests)
}

// ListFriends returns the ACCEPTED relationships in either direction.
func (s *friendService) ListFriends(ctx context.Context, userEmail string) ([]FriendRequestView, error) {
	user, err := s.requireUser(ctx, userEmail)
	if err != nil {
		return nil, err
	}
	requests, err := s.requests.ListByUserAndStatus(ctx, user.UserID, model.FriendRequestAccepted)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s.resolveViews(ctx, requests)
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func (s *friendService) requireUser(ctx context.Context, email string) (*model.User, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, email)
	}
	return user, nil
}

func (s *friendService) resolveView(ctx context.Context, request *model.FriendRequest) (*FriendRequestView, error) {
	sender, err := s.users.FindByID(ctx, request.SenderID)
	if err != nil || sender == nil {
		return nil, fmt.Errorf("%w: sender of request %s", ErrNotFound, request.ID.Hex())
	}
	receiver, err := s.users.FindByID(ctx, request.ReceiverID)
	if err != nil || receiver == nil {
		return nil, fmt.Errorf("%w: receiver of request %s", ErrNotFound, request.ID.Hex())
	}
	return s.view(request, sender, receiver), nil
}

func (s *friendService) resolveViews(ctx context.Context, requests []model.FriendRequest) ([]FriendRequestView, error) {
	views := make([]FriendRequestView, 0, len(requests))
	for i := range requests {
		view, err := s.resolveView(ctx, &requests[i])
		if err != nil {
			s.logger.Warn("skipping friend request with missing party",
				zap.String("request_id", requests[i].ID.Hex()),
				zap.Error(err),
			)
			continue
		}
		views = append(views, *view)
	}
	return views, nil
}

func (s *friendService) view(request *model.FriendRequest, sender, receiver *model.User) *FriendRequestView {
	return &FriendRequestView{
		ID:        request.ID.Hex(),
		Status:    request.Status,
		Sender:    summarize(sender),
		Receiver:  summarize(receiver),
		CreatedAt: request.CreatedAt,
		UpdatedAt: request.UpdatedAt,
	}
}

func summarize(user *model.User) UserSummary {
	return UserSummary{
		ID:              user.UserID,
		Username:        user.Username,
		Email:           user.Email,
		ProfileImageURL: user.ProfileImageURL,
	}
}
