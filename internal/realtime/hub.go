package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dwarvesf/paylink-backend/internal/monitoring"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

// Client is a session authenticated as a seller.
type Client struct {
	ID       string
	SellerID string
	session  Session

	mu   sync.Mutex
	subs map[string]struct{}
}

// Subscriptions lists the payment links this client joined on this process.
func (c *Client) Subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subs))
	for id := range c.subs {
		out = append(out, id)
	}
	return out
}

func (c *Client) emit(event string, payload interface{}) error {
	return c.session.Emit(event, payload)
}

// Hub owns the sessions of this process and the rooms they joined. Writes
// to the shared registry are best effort: failures are logged and never
// reach the client.
type Hub struct {
	registry *Registry
	limiter  *RateLimiter
	auth     Authenticator
	owners   OwnershipChecker
	metrics  *monitoring.RealtimeMetrics
	logger   *logger.Logger

	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

func NewHub(
	registry *Registry,
	limiter *RateLimiter,
	auth Authenticator,
	owners OwnershipChecker,
	metrics *monitoring.RealtimeMetrics,
	logger *logger.Logger,
) *Hub {
	return &Hub{
		registry: registry,
		limiter:  limiter,
		auth:     auth,
		owners:   owners,
		metrics:  metrics,
		logger:   logger.With(map[string]string{"component": "realtime"}),
		clients:  make(map[string]*Client),
		rooms:    make(map[string]map[string]*Client),
	}
}

// Connect authenticates a new session and joins it to its seller room.
func (h *Hub) Connect(ctx context.Context, session Session, credential string, meta ConnMeta) (*Client, error) {
	sellerID, err := h.auth.Authenticate(ctx, credential)
	if err != nil {
		h.logger.Info("[Hub][Connect] rejected credential", map[string]string{
			"session_id": session.ID(),
			"addr":       meta.RemoteAddr,
			"error":      err.Error(),
		})
		return nil, err
	}

	banned, err := h.registry.IsBanned(ctx, sellerID)
	if err != nil {
		h.logger.Error("[Hub][Connect][IsBanned]", map[string]string{
			"seller_id": sellerID,
			"error":     err.Error(),
		})
		return nil, fmt.Errorf("check ban list: %w", err)
	}
	if banned {
		h.logger.Warn("[Hub][Connect] banned seller", map[string]string{"seller_id": sellerID})
		return nil, ErrBanned
	}

	client := &Client{
		ID:       session.ID(),
		SellerID: sellerID,
		session:  session,
		subs:     make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[client.ID] = client
	h.joinLocked(client, sellerRoom(sellerID))
	h.mu.Unlock()

	h.metrics.ConnectionOpened()

	err = h.registry.AddConnection(ctx, Connection{
		ID:          client.ID,
		SellerID:    sellerID,
		RemoteAddr:  meta.RemoteAddr,
		UserAgent:   meta.UserAgent,
		ConnectedAt: time.Now(),
	})
	if err != nil {
		h.logger.Error("[Hub][Connect][AddConnection]", map[string]string{
			"connection_id": client.ID,
			"error":         err.Error(),
		})
	}

	h.logger.Info("[Hub][Connect] client connected", map[string]string{
		"connection_id": client.ID,
		"seller_id":     sellerID,
	})
	h.send(client, EventConnected, map[string]interface{}{
		"connectionId": client.ID,
		"sellerId":     sellerID,
	})
	return client, nil
}

// HandleMessage processes one raw client message.
func (h *Hub) HandleMessage(ctx context.Context, client *Client, raw []byte) {
	allowed, err := h.limiter.Allow(ctx, client.ID)
	if err != nil {
		h.logger.Warn("[Hub][HandleMessage][RateLimit]", map[string]string{
			"connection_id": client.ID,
			"error":         err.Error(),
		})
	}
	if !allowed {
		h.metrics.RecordRateLimited()
		h.send(client, EventRateLimited, map[string]interface{}{
			"message":       "too many messages, slow down",
			"limit":         h.limiter.limit,
			"windowSeconds": int(h.limiter.window / time.Second),
		})
		return
	}

	if err := h.registry.Heartbeat(ctx, client.ID, client.SellerID); err != nil {
		h.logger.Warn("[Hub][HandleMessage][Heartbeat]", map[string]string{
			"connection_id": client.ID,
			"error":         err.Error(),
		})
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(client, "invalid_message", "message is not valid JSON")
		return
	}

	switch msg.Type {
	case MessageSubscribe:
		h.subscribe(ctx, client, msg.PaymentLinkID)
	case MessageUnsubscribe:
		h.unsubscribe(ctx, client, msg.PaymentLinkID)
	case MessagePing:
		h.send(client, EventPong, map[string]interface{}{"timestamp": time.Now().UTC()})
	default:
		h.sendError(client, "unknown_message", fmt.Sprintf("unknown message type %q", msg.Type))
	}
}

func (h *Hub) subscribe(ctx context.Context, client *Client, linkID string) {
	if linkID == "" {
		h.sendError(client, "invalid_message", "paymentLinkId is required")
		return
	}

	if err := h.checkOwner(ctx, client, linkID); err != nil {
		switch {
		case errors.Is(err, ErrNotOwner), errors.Is(err, ErrLinkNotFound):
			h.sendError(client, "forbidden", "payment link not found")
		default:
			h.logger.Error("[Hub][Subscribe][CheckOwner]", map[string]string{
				"connection_id":   client.ID,
				"payment_link_id": linkID,
				"error":           err.Error(),
			})
			h.sendError(client, "unavailable", "could not verify payment link, try again")
		}
		return
	}

	h.mu.Lock()
	h.joinLocked(client, paymentRoom(linkID))
	h.mu.Unlock()

	client.mu.Lock()
	client.subs[linkID] = struct{}{}
	client.mu.Unlock()

	if err := h.registry.Subscribe(ctx, client.ID, linkID); err != nil {
		h.logger.Error("[Hub][Subscribe][Registry]", map[string]string{
			"connection_id":   client.ID,
			"payment_link_id": linkID,
			"error":           err.Error(),
		})
	}
	h.send(client, EventSubscribed, map[string]interface{}{"paymentLinkId": linkID})
}

// checkOwner consults the shared owner cache before the database.
func (h *Hub) checkOwner(ctx context.Context, client *Client, linkID string) error {
	owner, ok, err := h.registry.CachedOwner(ctx, linkID)
	if err != nil {
		h.logger.Warn("[Hub][CheckOwner][CachedOwner]", map[string]string{
			"payment_link_id": linkID,
			"error":           err.Error(),
		})
	}

	if !ok {
		owner, err = h.owners.Owner(ctx, linkID)
		if err != nil {
			return err
		}
		if err := h.registry.CacheOwner(ctx, linkID, owner); err != nil {
			h.logger.Warn("[Hub][CheckOwner][CacheOwner]", map[string]string{
				"payment_link_id": linkID,
				"error":           err.Error(),
			})
		}
	}

	if owner != client.SellerID {
		return ErrNotOwner
	}
	return nil
}

func (h *Hub) unsubscribe(ctx context.Context, client *Client, linkID string) {
	if linkID == "" {
		h.sendError(client, "invalid_message", "paymentLinkId is required")
		return
	}

	h.mu.Lock()
	h.leaveLocked(client, paymentRoom(linkID))
	h.mu.Unlock()

	client.mu.Lock()
	delete(client.subs, linkID)
	client.mu.Unlock()

	if err := h.registry.Unsubscribe(ctx, client.ID, linkID); err != nil {
		h.logger.Error("[Hub][Unsubscribe][Registry]", map[string]string{
			"connection_id":   client.ID,
			"payment_link_id": linkID,
			"error":           err.Error(),
		})
	}
	h.send(client, EventUnsubscribed, map[string]interface{}{"paymentLinkId": linkID})
}

// Disconnect drops the client from every room and from the registry. It is
// safe to call more than once.
func (h *Hub) Disconnect(ctx context.Context, client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client.ID)
	for room, members := range h.rooms {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	h.mu.Unlock()

	h.metrics.ConnectionClosed()

	if err := h.registry.RemoveConnection(ctx, client.ID, client.SellerID); err != nil {
		h.logger.Error("[Hub][Disconnect][RemoveConnection]", map[string]string{
			"connection_id": client.ID,
			"error":         err.Error(),
		})
	}
	h.logger.Info("[Hub][Disconnect] client disconnected", map[string]string{
		"connection_id": client.ID,
		"seller_id":     client.SellerID,
	})
}

// Dispatch delivers event to the sessions of this process it addresses and
// returns the route taken and how many sessions received it.
func (h *Hub) Dispatch(event Event) (string, int) {
	route := event.route()

	h.mu.RLock()
	var targets []*Client
	switch route {
	case routeBroadcast:
		for _, c := range h.clients {
			targets = append(targets, c)
		}
	case routeConnection:
		if c, ok := h.clients[event.ConnectionID]; ok {
			targets = append(targets, c)
		}
	case routePayment:
		for _, c := range h.rooms[paymentRoom(event.PaymentLinkID)] {
			targets = append(targets, c)
		}
	case routeSeller:
		for _, c := range h.rooms[sellerRoom(event.SellerID)] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	payload := event.Payload()
	delivered := 0
	for _, c := range targets {
		if err := c.emit(event.Type, payload); err != nil {
			h.logger.Debug("[Hub][Dispatch] emit failed", map[string]string{
				"connection_id": c.ID,
				"type":          event.Type,
				"error":         err.Error(),
			})
			continue
		}
		delivered++
	}
	return route, delivered
}

// Count is the number of sessions on this process.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) joinLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	members[client.ID] = client
}

func (h *Hub) leaveLocked(client *Client, room string) {
	members, ok := h.rooms[room]
	if !ok {
		return
	}
	delete(members, client.ID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
}

func (h *Hub) send(client *Client, event string, payload interface{}) {
	if err := client.emit(event, payload); err != nil {
		h.logger.Debug("[Hub][Send] emit failed", map[string]string{
			"connection_id": client.ID,
			"event":         event,
			"error":         err.Error(),
		})
	}
}

func (h *Hub) sendError(client *Client, code, message string) {
	h.send(client, EventError, map[string]interface{}{
		"code":    code,
		"message": message,
	})
}
