package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"playchat/internal/model"
)

// errDuplicateKey mimics the server error the driver reports on a unique
// index violation, so db.IsDuplicateKey recognizes it.
var errDuplicateKey = mongo.WriteException{
	WriteErrors: []mongo.WriteError{{Code: 11000}},
}

// recordedPublish is one delivery captured by the fake live channel.
type recordedPublish struct {
	Topic   string
	Payload any
}

type fakeLiveChannel struct {
	mu         sync.Mutex
	perUser    map[int64][]recordedPublish
	broadcasts []recordedPublish
}

func newFakeLiveChannel() *fakeLiveChannel {
	return &fakeLiveChannel{perUser: make(map[int64][]recordedPublish)}
}

func (f *fakeLiveChannel) PublishToUser(userID int64, topic string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.perUser[userID] = append(f.perUser[userID], recordedPublish{Topic: topic, Payload: payload})
}

func (f *fakeLiveChannel) PublishBroadcast(topic string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broadcasts = append(f.broadcasts, recordedPublish{Topic: topic, Payload: payload})
}

func (f *fakeLiveChannel) published(userID int64) []recordedPublish {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedPublish, len(f.perUser[userID]))
	copy(out, f.perUser[userID])
	return out
}

func (f *fakeLiveChannel) onTopic(userID int64, topic string) []recordedPublish {
	var out []recordedPublish
	for _, p := range f.published(userID) {
		if p.Topic == topic {
			out = append(out, p)
		}
	}
	return out
}

type fakeUserRepo struct {
	mu      sync.Mutex
	byID    map[int64]*model.User
	findErr error

	// blockFind, when set, stalls every FindByID until the channel closes.
	// findEntered gets a non-blocking signal as each lookup starts.
	blockFind   chan struct{}
	findEntered chan struct{}
}

func newFakeUserRepo(users ...*model.User) *fakeUserRepo {
	r := &fakeUserRepo{byID: make(map[int64]*model.User)}
	for _, u := range users {
		r.byID[u.UserID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, existing := range r.byID {
		if existing.Email == user.Email || existing.Username == user.Username {
			return nil, errDuplicateKey
		}
	}
	user.ID = primitive.NewObjectID()
	user.UserID = int64(len(r.byID) + 1)
	user.CreatedAt = time.Now().UTC()
	r.byID[user.UserID] = user
	return user, nil
}

func (r *fakeUserRepo) FindByID(_ context.Context, userID int64) (*model.User, error) {
	if r.findEntered != nil {
		select {
		case r.findEntered <- struct{}{}:
		default:
		}
	}
	if r.blockFind != nil {
		<-r.blockFind
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	return r.byID[userID], nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.byID {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (r *fakeUserRepo) Search(_ context.Context, query string) ([]model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.User
	for _, u := range r.byID {
		if strings.Contains(u.Username, query) || strings.Contains(u.Email, query) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (r *fakeUserRepo) UpdateProfileImage(_ context.Context, userID int64, imageURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.byID[userID]; ok {
		u.ProfileImageURL = imageURL
	}
	return nil
}

type fakeConversationRepo struct {
	mu        sync.Mutex
	byRoom    map[string]*model.Conversation
	createErr error
	touched   map[string]time.Time
	touchErr  error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{
		byRoom:  make(map[string]*model.Conversation),
		touched: make(map[string]time.Time),
	}
}

func (r *fakeConversationRepo) GetOrCreate(_ context.Context, userA, userB int64) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	roomID := model.RoomID(userA, userB)
	if c, ok := r.byRoom[roomID]; ok {
		return c, nil
	}
	c := &model.Conversation{
		ID:        primitive.NewObjectID(),
		UserAID:   min64(userA, userB),
		UserBID:   max64(userA, userB),
		RoomID:    roomID,
		CreatedAt: time.Now().UTC(),
	}
	r.byRoom[roomID] = c
	return c, nil
}

func (r *fakeConversationRepo) FindByRoomID(_ context.Context, roomID string) (*model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byRoom[roomID], nil
}

func (r *fakeConversationRepo) TouchLastMessage(_ context.Context, roomID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.touchErr != nil {
		return r.touchErr
	}
	r.touched[roomID] = at
	return nil
}

func (r *fakeConversationRepo) ListForUser(_ context.Context, userID int64) ([]model.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Conversation
	for _, c := range r.byRoom {
		if c.UserAID == userID || c.UserBID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  []model.Message
	insertErr error
}

func (r *fakeMessageRepo) Insert(_ context.Context, msg *model.Message) (*model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return nil, r.insertErr
	}
	msg.ID = primitive.NewObjectID()
	r.messages = append(r.messages, *msg)
	return msg, nil
}

func (r *fakeMessageRepo) FindBetween(_ context.Context, userA, userB, page, size int64) ([]model.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Message
	for i := len(r.messages) - 1; i >= 0; i-- {
		m := r.messages[i]
		if (m.SenderID == userA && m.ReceiverID == userB) || (m.SenderID == userB && m.ReceiverID == userA) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, senderID, receiverID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for i := range r.messages {
		m := &r.messages[i]
		if m.SenderID == senderID && m.ReceiverID == receiverID && !m.IsRead {
			m.IsRead = true
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) CountUnread(_ context.Context, receiverID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, m := range r.messages {
		if m.ReceiverID == receiverID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) CountUnreadFrom(_ context.Context, receiverID, senderID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, m := range r.messages {
		if m.ReceiverID == receiverID && m.SenderID == senderID && !m.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *fakeMessageRepo) stored() []model.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

type fakeFriendRequestRepo struct {
	mu       sync.Mutex
	requests map[string]*model.FriendRequest
}

func newFakeFriendRequestRepo() *fakeFriendRequestRepo {
	return &fakeFriendRequestRepo{requests: make(map[string]*model.FriendRequest)}
}

func (r *fakeFriendRequestRepo) Insert(_ context.Context, fr *model.FriendRequest) (*model.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pairKey := model.RoomID(fr.SenderID, fr.ReceiverID)
	for _, existing := range r.requests {
		if existing.PairKey == pairKey && !strings.EqualFold(existing.Status, model.FriendRequestRejected) {
			return nil, errDuplicateKey
		}
	}
	fr.ID = primitive.NewObjectID()
	fr.PairKey = pairKey
	fr.Status = model.FriendRequestPending
	fr.CreatedAt = time.Now().UTC()
	fr.UpdatedAt = fr.CreatedAt
	r.requests[fr.ID.Hex()] = fr
	return fr, nil
}

func (r *fakeFriendRequestRepo) FindByID(_ context.Context, id string) (*model.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requests[id], nil
}

func (r *fakeFriendRequestRepo) FindLiveBetween(_ context.Context, userA, userB int64) (*model.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	pairKey := model.RoomID(userA, userB)
	for _, fr := range r.requests {
		if fr.PairKey == pairKey && fr.Status != model.FriendRequestRejected {
			return fr, nil
		}
	}
	return nil, nil
}

func (r *fakeFriendRequestRepo) UpdateStatus(_ context.Context, id primitive.ObjectID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if fr, ok := r.requests[id.Hex()]; ok {
		fr.Status = status
		fr.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *fakeFriendRequestRepo) ListByReceiverAndStatus(_ context.Context, receiverID int64, status string) ([]model.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FriendRequest
	for _, fr := range r.requests {
		if fr.ReceiverID == receiverID && fr.Status == status {
			out = append(out, *fr)
		}
	}
	return out, nil
}

func (r *fakeFriendRequestRepo) ListBySender(_ context.Context, senderID int64) ([]model.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FriendRequest
	for _, fr := range r.requests {
		if fr.SenderID == senderID {
			out = append(out, *fr)
		}
	}
	return out, nil
}

func (r *fakeFriendRequestRepo) ListByUserAndStatus(_ context.Context, userID int64, status string) ([]model.FriendRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.FriendRequest
	for _, fr := range r.requests {
		if (fr.SenderID == userID || fr.ReceiverID == userID) && fr.Status == status {
			out = append(out, *fr)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu             sync.Mutex
	welcomes       []string
	friendRequests []string
	err            error
}

func (n *fakeNotifier) NotifyWelcome(email, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.welcomes = append(n.welcomes, email)
	return n.err
}

func (n *fakeNotifier) NotifyFriendRequest(receiverEmail, _, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.friendRequests = append(n.friendRequests, receiverEmail)
	return n.err
}

type fakeBlobStore struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	types   map[string]string
	deleted []string
	seq     int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte), types: make(map[string]string)}
}

func (b *fakeBlobStore) Upload(_ context.Context, data []byte, ownerKey, contentType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.seq++
	url := fmt.Sprintf("/api/profile/image/%s-%d", ownerKey, b.seq)
	b.blobs[url] = data
	b.types[url] = contentType
	return url, nil
}

func (b *fakeBlobStore) Download(_ context.Context, url string, w io.Writer) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[url]
	if !ok {
		return "", fmt.Errorf("blob %s not found", url)
	}
	if _, err := w.Write(data); err != nil {
		return "", err
	}
	return b.types[url], nil
}

func (b *fakeBlobStore) Delete(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, url)
	b.deleted = append(b.deleted, url)
	return nil
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
