package service

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"playchat/internal/crypto"
	"playchat/internal/event"
	"playchat/internal/model"
)

func newTestCodec(t *testing.T) crypto.Codec {
	t.Helper()
	codec, err := crypto.NewAESCodec(bytes.Repeat([]byte("k"), 32))
	require.NoError(t, err)
	return codec
}

func testUsers() (*model.User, *model.User) {
	alice := &model.User{UserID: 7, Username: "alice", Email: "alice@example.com"}
	bob := &model.User{UserID: 42, Username: "bob", Email: "bob@example.com"}
	return alice, bob
}

func TestSubmitDeliversInstantlyThenConfirms(t *testing.T) {
	alice, bob := testUsers()
	users := newFakeUserRepo(alice, bob)
	conversations := newFakeConversationRepo()
	messages := &fakeMessageRepo{}
	live := newFakeLiveChannel()
	codec := newTestCodec(t)

	svc := NewChatService(users, conversations, messages, codec, live, zap.NewNop(), 1, 16)

	svc.Submit(&event.MessageEvent{Content: "hello bob", SenderID: 7, ReceiverID: 42})
	svc.Close()

	for _, userID := range []int64{7, 42} {
		published := live.published(userID)
		require.Len(t, published, 2, "user %d", userID)

		assert.Equal(t, event.TopicMessages, published[0].Topic)
		instant := published[0].Payload.(*event.MessageEvent)
		assert.Equal(t, "hello bob", instant.Content)
		assert.Empty(t, instant.ID, "instant delivery carries no durable id")
		assert.NotEmpty(t, instant.Nonce)

		assert.Equal(t, event.TopicMessageUpdate, published[1].Topic)
		confirmed := published[1].Payload.(*event.MessageEvent)
		assert.NotEmpty(t, confirmed.ID)
		assert.Equal(t, "7_42", confirmed.RoomID)
		assert.Equal(t, instant.Nonce, confirmed.Nonce)
		assert.Equal(t, "alice", confirmed.SenderUsername)
		assert.Equal(t, "bob", confirmed.ReceiverUsername)
	}

	stored := messages.stored()
	require.Len(t, stored, 1)
	assert.NotEqual(t, "hello bob", stored[0].EncryptedContent, "stored body must be encrypted")

	plaintext, err := codec.Decrypt(stored[0].EncryptedContent)
	require.NoError(t, err)
	assert.Equal(t, "hello bob", plaintext)
}

func TestSubmitRejectsBlankContent(t *testing.T) {
	alice, bob := testUsers()
	users := newFakeUserRepo(alice, bob)
	messages := &fakeMessageRepo{}
	live := newFakeLiveChannel()

	svc := NewChatService(users, newFakeConversationRepo(), messages, newTestCodec(t), live, zap.NewNop(), 1, 16)

	svc.Submit(&event.MessageEvent{Content: "   ", SenderID: 7, ReceiverID: 42})
	svc.Close()

	errs := live.onTopic(7, event.TopicErrors)
	require.Len(t, errs, 1)
	errEvent := errs[0].Payload.(*event.ErrorEvent)
	assert.Equal(t, CodeValidation, errEvent.Code)

	assert.Empty(t, live.published(42), "receiver must see nothing")
	assert.Empty(t, messages.stored())
}

func TestSubmitUnknownReceiverFailsDurablePathOnly(t *testing.T) {
	alice, _ := testUsers()
	users := newFakeUserRepo(alice)
	messages := &fakeMessageRepo{}
	live := newFakeLiveChannel()

	svc := NewChatService(users, newFakeConversationRepo(), messages, newTestCodec(t), live, zap.NewNop(), 1, 16)

	svc.Submit(&event.MessageEvent{Content: "hello?", SenderID: 7, ReceiverID: 42})
	svc.Close()

	// The instant path fired before the durable path noticed the receiver is
	// unknown.
	assert.Len(t, live.onTopic(7, event.TopicMessages), 1)

	errs := live.onTopic(7, event.TopicErrors)
	require.Len(t, errs, 1)
	assert.Equal(t, CodeNotFound, errs[0].Payload.(*event.ErrorEvent).Code)

	assert.Empty(t, live.onTopic(7, event.TopicMessageUpdate))
	assert.Empty(t, messages.stored())
}

func TestSubmitStoreFailureReportsSenderOnly(t *testing.T) {
	alice, bob := testUsers()
	users := newFakeUserRepo(alice, bob)
	messages := &fakeMessageRepo{insertErr: context.DeadlineExceeded}
	live := newFakeLiveChannel()

	svc := NewChatService(users, newFakeConversationRepo(), messages, newTestCodec(t), live, zap.NewNop(), 1, 16)

	svc.Submit(&event.MessageEvent{Content: "will not persist", SenderID: 7, ReceiverID: 42})
	svc.Close()

	senderErrs := live.onTopic(7, event.TopicErrors)
	require.Len(t, senderErrs, 1)
	assert.Equal(t, CodePersistence, senderErrs[0].Payload.(*event.ErrorEvent).Code)

	// Receiver keeps the instant delivery but never hears about the failure.
	assert.Len(t, live.published(42), 1)
	assert.Equal(t, event.TopicMessages, live.published(42)[0].Topic)
	assert.Empty(t, live.onTopic(42, event.TopicErrors))
}

func TestSubmitBackpressureRejectsWhenQueueFull(t *testing.T) {
	alice, bob := testUsers()
	users := newFakeUserRepo(alice, bob)
	users.blockFind = make(chan struct{})
	users.findEntered = make(chan struct{}, 1)
	live := newFakeLiveChannel()

	svc := NewChatService(users, newFakeConversationRepo(), &fakeMessageRepo{}, newTestCodec(t), live, zap.NewNop(), 1, 1)

	// First submission occupies the single worker inside the user lookup.
	svc.Submit(&event.MessageEvent{Content: "one", SenderID: 7, ReceiverID: 42})
	select {
	case <-users.findEntered:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never started the durable path")
	}

	// Second fills the queue, third must be rejected.
	svc.Submit(&event.MessageEvent{Content: "two", SenderID: 7, ReceiverID: 42})
	svc.Submit(&event.MessageEvent{Content: "three", SenderID: 7, ReceiverID: 42})

	errs := live.onTopic(7, event.TopicErrors)
	require.Len(t, errs, 1)
	assert.Equal(t, CodePersistence, errs[0].Payload.(*event.ErrorEvent).Code)

	// All three still went out instantly to both parties.
	assert.Len(t, live.onTopic(7, event.TopicMessages), 3)
	assert.Len(t, live.onTopic(42, event.TopicMessages), 3)

	close(users.blockFind)
	svc.Close()
}

func TestDispatchOverridesSenderIdentity(t *testing.T) {
	alice, bob := testUsers()
	users := newFakeUserRepo(alice, bob)
	live := newFakeLiveChannel()

	svc := NewChatService(users, newFakeConversationRepo(), &fakeMessageRepo{}, newTestCodec(t), live, zap.NewNop(), 1, 16)

	body, err := json.Marshal(map[string]any{
		"content":    "spoofed",
		"senderId":   9999,
		"receiverId": 42,
	})
	require.NoError(t, err)

	svc.Dispatch(7, event.Frame{Destination: event.DestSendMessage, Body: body})
	svc.Close()

	instant := live.onTopic(42, event.TopicMessages)
	require.Len(t, instant, 1)
	assert.Equal(t, int64(7), instant[0].Payload.(*event.MessageEvent).SenderID,
		"sender identity must come from the connection")
}

func TestTypingIsUnicastAndTransient(t *testing.T) {
	alice, bob := testUsers()
	users := newFakeUserRepo(alice, bob)
	messages := &fakeMessageRepo{}
	live := newFakeLiveChannel()

	svc := NewChatService(users, newFakeConversationRepo(), messages, newTestCodec(t), live, zap.NewNop(), 1, 16)
	defer svc.Close()

	svc.Typing(&event.MessageEvent{SenderID: 7, ReceiverID: 42})
	svc.Typing(&event.MessageEvent{SenderID: 7, ReceiverID: 42, Type: event.TypeStopTyping})

	typing := live.onTopic(42, event.TopicTyping)
	require.Len(t, typing, 2)
	assert.Equal(t, event.TypeTyping, typing[0].Payload.(*event.MessageEvent).Type)
	assert.Equal(t, event.TypeStopTyping, typing[1].Payload.(*event.MessageEvent).Type)

	assert.Empty(t, live.published(7), "typing is never echoed to the sender")
	assert.Empty(t, messages.stored())
}

func TestHistoryDecryptsAndRebuildsRoom(t *testing.T) {
	alice, bob := testUsers()
	users := newFakeUserRepo(alice, bob)
	conversations := newFakeConversationRepo()
	messages := &fakeMessageRepo{}
	live := newFakeLiveChannel()
	codec := newTestCodec(t)

	svc := NewChatService(users, conversations, messages, codec, live, zap.NewNop(), 1, 16)
	defer svc.Close()

	encrypted, err := codec.Encrypt("how are you")
	require.NoError(t, err)
	_, err = messages.Insert(context.Background(), &model.Message{
		SenderID:         42,
		ReceiverID:       7,
		EncryptedContent: encrypted,
		MessageType:      model.MessageTypeText,
		CreatedAt:        time.Now().UTC(),
	})
	require.NoError(t, err)

	history, err := svc.History(context.Background(), 7, 42, 1, 50)
	require.NoError(t, err)
	require.Len(t, history, 1)

	assert.Equal(t, "how are you", history[0].Content)
	assert.Equal(t, "7_42", history[0].RoomID)
	assert.Equal(t, "bob", history[0].SenderUsername)
	assert.Equal(t, "alice", history[0].ReceiverUsername)
}

func TestMarkReadFlipsOnlyTargetedMessages(t *testing.T) {
	alice, bob := testUsers()
	users := newFakeUserRepo(alice, bob)
	messages := &fakeMessageRepo{}

	svc := NewChatService(users, newFakeConversationRepo(), messages, newTestCodec(t), newFakeLiveChannel(), zap.NewNop(), 1, 16)
	defer svc.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := messages.Insert(ctx, &model.Message{SenderID: 42, ReceiverID: 7, EncryptedContent: "x"})
		require.NoError(t, err)
	}
	_, err := messages.Insert(ctx, &model.Message{SenderID: 7, ReceiverID: 42, EncryptedContent: "x"})
	require.NoError(t, err)

	count, err := svc.MarkRead(ctx, 42, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	unread, err := svc.UnreadCount(ctx, 7)
	require.NoError(t, err)
	assert.Zero(t, unread)

	// Bob's side is untouched.
	unread, err = svc.UnreadCountFrom(ctx, 42, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)
}
