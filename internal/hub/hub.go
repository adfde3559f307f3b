package hub

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"playchat/internal/event"
)

const (
	shardCount = 64 // tune: 16/64/128 depending on load
)

// Dispatcher consumes inbound frames from authenticated connections. The hub
// only moves bytes; all chat semantics live behind this interface.
type Dispatcher interface {
	Dispatch(userID int64, frame event.Frame)
}

type inboundMessage struct {
	frame  event.Frame
	client *Client
}

type clientBucket struct {
	sync.RWMutex
	mailboxes map[int64]map[string]*Client // userID -> clientID -> client
}

// Hub is the live-channel substrate: every authenticated identity owns an
// addressable mailbox, fanned out over all of that user's connections.
type Hub struct {
	shards     [shardCount]*clientBucket
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundMessage

	dispatcher   Dispatcher
	dispatcherMu sync.RWMutex

	logger    *zap.Logger
	startedAt time.Time
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	stopOnce  sync.Once
}

func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		register:   make(chan *Client, 1024),
		unregister: make(chan *Client, 1024),
		// inbound stays open for the hub's lifetime; shutdown is signalled
		// through ctx only, so a still-draining reader can never hit a
		// closed channel.
		inbound: make(chan inboundMessage, 4096), // buffer for burst handling
		logger:     logger,
		startedAt:  time.Now(),
		ctx:        ctx,
		cancel:     cancel,
	}

	for i := 0; i < shardCount; i++ {
		h.shards[i] = &clientBucket{
			mailboxes: make(map[int64]map[string]*Client),
		}
	}

	// run manager loop
	go h.run()

	// start worker loop
	for i := 0; i < workerPoolSize; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in := <-h.inbound:
					h.handleFrame(in)
				}
			}
		}()
	}

	return h
}

// SetDispatcher wires the frame consumer. Must be called before clients
// connect; frames arriving earlier are dropped.
func (h *Hub) SetDispatcher(d Dispatcher) {
	h.dispatcherMu.Lock()
	h.dispatcher = d
	h.dispatcherMu.Unlock()
}

func (h *Hub) handleFrame(in inboundMessage) {
	h.dispatcherMu.RLock()
	d := h.dispatcher
	h.dispatcherMu.RUnlock()

	if d == nil {
		h.logger.Warn("no dispatcher wired, dropping frame",
			zap.String("destination", in.frame.Destination),
		)
		return
	}
	d.Dispatch(in.client.userID, in.frame)
}

// -----------------------------------------------------------------------------
// LiveChannel implementation
// -----------------------------------------------------------------------------

// PublishToUser delivers the payload to every connection in the user's
// mailbox. Slow consumers are dropped per the egress policy, never waited on.
func (h *Hub) PublishToUser(userID int64, topic string, payload any) {
	b := h.shards[getShard(userID)]

	// collect clients while holding RLock
	b.RLock()
	mailbox, ok := b.mailboxes[userID]
	if !ok || len(mailbox) == 0 {
		b.RUnlock()
		return
	}
	clients := make([]*Client, 0, len(mailbox))
	for _, c := range mailbox {
		clients = append(clients, c)
	}
	b.RUnlock()

	env := event.Envelope{Topic: topic, Payload: payload}

	// deliver without holding the lock
	for _, c := range clients {
		if !c.SafeSend(env, sendTimeout) {
			h.logger.Warn("egress full, disconnecting client",
				zap.String("client_id", c.ID),
				zap.Int64("user_id", userID),
			)
			if kickOnFull {
				select {
				case h.unregister <- c:
				default:
				}
			}
		}
	}
}

// PublishBroadcast delivers the payload to every connected client.
func (h *Hub) PublishBroadcast(topic string, payload any) {
	env := event.Envelope{Topic: topic, Payload: payload}

	for _, b := range h.shards {
		b.RLock()
		clients := make([]*Client, 0)
		for _, mailbox := range b.mailboxes {
			for _, c := range mailbox {
				clients = append(clients, c)
			}
		}
		b.RUnlock()

		for _, c := range clients {
			_ = c.SafeSend(env, sendTimeout)
		}
	}
}

func getShard(userID int64) uint64 {
	return uint64(userID) % shardCount
}

// -----------------------------------------------------------------------------
// Registry
// -----------------------------------------------------------------------------

func (h *Hub) addClient(c *Client) {
	sh := getShard(c.userID)
	b := h.shards[sh]
	b.Lock()
	defer b.Unlock()

	mailbox, ok := b.mailboxes[c.userID]
	if !ok {
		mailbox = make(map[string]*Client)
		b.mailboxes[c.userID] = mailbox
	}

	mailbox[c.ID] = c
	h.logger.Info("client registered",
		zap.String("client_id", c.ID),
		zap.Int64("user_id", c.userID),
		zap.Uint64("shard", sh),
	)
}

func (h *Hub) removeClient(c *Client) {
	sh := getShard(c.userID)
	b := h.shards[sh]
	b.Lock()
	defer b.Unlock()

	if mailbox, ok := b.mailboxes[c.userID]; ok {
		if _, exists := mailbox[c.ID]; exists {
			delete(mailbox, c.ID)
		}
		if len(mailbox) == 0 {
			delete(b.mailboxes, c.userID)
		}

		c.Close()
		h.logger.Info("client removed",
			zap.String("client_id", c.ID),
			zap.Int64("user_id", c.userID),
			zap.Uint64("shard", sh),
		)
	}
}

func (h *Hub) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case c := <-h.register:
			h.addClient(c)
		case c := <-h.unregister:
			h.removeClient(c)
		}
	}
}

// Stop shuts the hub down: cancels the workers, closes every client and waits
// for the worker pool to drain. Safe to call more than once; the shutdown path
// reaches it from both the server loop and the container teardown.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		h.cancel()

		// Close all client connections
		for _, shard := range h.shards {
			shard.RLock()
			for _, mailbox := range shard.mailboxes {
				for _, client := range mailbox {
					client.Close()
				}
			}
			shard.RUnlock()
		}

		h.wg.Wait()
	})
}

// -----------------------------------------------------------------------------
// Stats
// -----------------------------------------------------------------------------

// Stats is a point-in-time snapshot of the hub for the status endpoint.
type Stats struct {
	ConnectedClients int       `json:"connectedClients"`
	OnlineUsers      int       `json:"onlineUsers"`
	StartedAt        time.Time `json:"startedAt"`
}

func (h *Hub) Stats() Stats {
	stats := Stats{StartedAt: h.startedAt}
	for _, b := range h.shards {
		b.RLock()
		stats.OnlineUsers += len(b.mailboxes)
		for _, mailbox := range b.mailboxes {
			stats.ConnectedClients += len(mailbox)
		}
		b.RUnlock()
	}
	return stats
}

// -----------------------------------------------------------------------------
// WebSocket upgrade
// -----------------------------------------------------------------------------

var websocketUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and registers a connection for the
// authenticated user. Authentication happens before this is called.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	RegisterClient(userID, conn, h)
}
