package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"playchat/internal/model"
)

func newFriendServiceForTest(users ...*model.User) (FriendService, *fakeFriendRequestRepo, *fakeNotifier) {
	requests := newFakeFriendRequestRepo()
	notifier := &fakeNotifier{}
	svc := NewFriendService(requests, newFakeUserRepo(users...), notifier, zap.NewNop())
	return svc, requests, notifier
}

func TestSendFriendRequest(t *testing.T) {
	alice, bob := testUsers()
	svc, _, notifier := newFriendServiceForTest(alice, bob)
	ctx := context.Background()

	view, err := svc.Send(ctx, alice.Email, bob.UserID)
	require.NoError(t, err)

	assert.Equal(t, model.FriendRequestPending, view.Status)
	assert.Equal(t, alice.UserID, view.Sender.ID)
	assert.Equal(t, bob.UserID, view.Receiver.ID)
	assert.NotEmpty(t, view.ID)

	// Notification goes out asynchronously.
	require.Eventually(t, func() bool {
		notifier.mu.Lock()
		defer notifier.mu.Unlock()
		return len(notifier.friendRequests) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSendFriendRequestToSelf(t *testing.T) {
	alice, bob := testUsers()
	svc, _, _ := newFriendServiceForTest(alice, bob)

	_, err := svc.Send(context.Background(), alice.Email, alice.UserID)
	assert.ErrorIs(t, err, ErrSelfRequest)
}

func TestSendFriendRequestToUnknownReceiver(t *testing.T) {
	alice, _ := testUsers()
	svc, _, _ := newFriendServiceForTest(alice)

	_, err := svc.Send(context.Background(), alice.Email, 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDuplicateFriendRequestEitherDirection(t *testing.T) {
	alice, bob := testUsers()
	svc, _, _ := newFriendServiceForTest(alice, bob)
	ctx := context.Background()

	_, err := svc.Send(ctx, alice.Email, bob.UserID)
	require.NoError(t, err)

	_, err = svc.Send(ctx, alice.Email, bob.UserID)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	// The pair is unordered: the reverse direction is the same request.
	_, err = svc.Send(ctx, bob.Email, alice.UserID)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestRespondAcceptAndReject(t *testing.T) {
	alice, bob := testUsers()
	svc, _, _ := newFriendServiceForTest(alice, bob)
	ctx := context.Background()

	sent, err := svc.Send(ctx, alice.Email, bob.UserID)
	require.NoError(t, err)

	accepted, err := svc.Respond(ctx, sent.ID, bob.Email, true)
	require.NoError(t, err)
	assert.Equal(t, model.FriendRequestAccepted, accepted.Status)

	// Terminal states never transition again.
	_, err = svc.Respond(ctx, sent.ID, bob.Email, false)
	assert.ErrorIs(t, err, ErrAlreadyResponded)
}

func TestRespondOnlyByReceiver(t *testing.T) {
	alice, bob := testUsers()
	svc, _, _ := newFriendServiceForTest(alice, bob)
	ctx := context.Background()

	sent, err := svc.Send(ctx, alice.Email, bob.UserID)
	require.NoError(t, err)

	_, err = svc.Respond(ctx, sent.ID, alice.Email, true)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRespondUnknownRequest(t *testing.T) {
	alice, bob := testUsers()
	svc, _, _ := newFriendServiceForTest(alice, bob)

	_, err := svc.Respond(context.Background(), "64f000000000000000000000", bob.Email, true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRejectedPairCanRequestAgain(t *testing.T) {
	alice, bob := testUsers()
	svc, _, _ := newFriendServiceForTest(alice, bob)
	ctx := context.Background()

	sent, err := svc.Send(ctx, alice.Email, bob.UserID)
	require.NoError(t, err)

	_, err = svc.Respond(ctx, sent.ID, bob.Email, false)
	require.NoError(t, err)

	// A rejection frees the pair for a fresh request.
	_, err = svc.Send(ctx, bob.Email, alice.UserID)
	assert.NoError(t, err)
}

func TestFriendRequestLists(t *testing.T) {
	alice, bob := testUsers()
	carol := &model.User{UserID: 99, Username: "carol", Email: "carol@example.com"}
	svc, _, _ := newFriendServiceForTest(alice, bob, carol)
	ctx := context.Background()

	toBob, err := svc.Send(ctx, alice.Email, bob.UserID)
	require.NoError(t, err)
	_, err = svc.Send(ctx, carol.Email, alice.UserID)
	require.NoError(t, err)

	pending, err := svc.ListPending(ctx, alice.Email)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, carol.UserID, pending[0].Sender.ID)

	sentList, err := svc.ListSent(ctx, alice.Email)
	require.NoError(t, err)
	require.Len(t, sentList, 1)
	assert.Equal(t, bob.UserID, sentList[0].Receiver.ID)

	_, err = svc.Respond(ctx, toBob.ID, bob.Email, true)
	require.NoError(t, err)

	friends, err := svc.ListFriends(ctx, alice.Email)
	require.NoError(t, err)
	require.Len(t, friends, 1)
	assert.Equal(t, model.FriendRequestAccepted, friends[0].Status)
}

func TestNotifierFailureDoesNotFailSend(t *testing.T) {
	alice, bob := testUsers()
	requests := newFakeFriendRequestRepo()
	notifier := &fakeNotifier{err: assert.AnError}
	svc := NewFriendService(requests, newFakeUserRepo(alice, bob), notifier, zap.NewNop())

	_, err := svc.Send(context.Background(), alice.Email, bob.UserID)
	assert.NoError(t, err)
}
