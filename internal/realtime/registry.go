package realtime

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dwarvesf/paylink-backend/internal/utils/config"
)

// Connection is the shared record of a live connection.
type Connection struct {
	ID          string
	SellerID    string
	RemoteAddr  string
	UserAgent   string
	ConnectedAt time.Time
}

// Registry keeps connections and subscriptions in Redis so every process
// can see them. All keys expire, so entries of a crashed process age out.
type Registry struct {
	rdb      redis.UniversalClient
	prefix   string
	ttl      time.Duration
	ownerTTL time.Duration
}

func NewRegistry(rdb redis.UniversalClient, cfg config.RealtimeConfig) *Registry {
	return &Registry{
		rdb:      rdb,
		prefix:   cfg.KeyPrefix,
		ttl:      cfg.ConnectionTTL,
		ownerTTL: cfg.OwnershipTTL,
	}
}

func (r *Registry) connKey(connID string) string {
	return r.prefix + "conn:" + connID
}

func (r *Registry) connSubsKey(connID string) string {
	return r.prefix + "conn:" + connID + ":subs"
}

func (r *Registry) sellerConnsKey(sellerID string) string {
	return r.prefix + "seller:" + sellerID + ":conns"
}

func (r *Registry) linkSubsKey(linkID string) string {
	return r.prefix + "link:" + linkID + ":subs"
}

func (r *Registry) ownerKey(linkID string) string {
	return r.prefix + "owner:" + linkID
}

func (r *Registry) bannedKey() string {
	return r.prefix + "banned:sellers"
}

func (r *Registry) AddConnection(ctx context.Context, conn Connection) error {
	now := time.Now().UTC().Format(time.RFC3339)
	connectedAt := conn.ConnectedAt.UTC().Format(time.RFC3339)

	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.connKey(conn.ID), map[string]interface{}{
			"session":       conn.ID,
			"seller":        conn.SellerID,
			"addr":          conn.RemoteAddr,
			"agent":         conn.UserAgent,
			"connectedAt":   connectedAt,
			"lastHeartbeat": now,
			"messages":      0,
		})
		pipe.Expire(ctx, r.connKey(conn.ID), r.ttl)
		pipe.SAdd(ctx, r.sellerConnsKey(conn.SellerID), conn.ID)
		pipe.Expire(ctx, r.sellerConnsKey(conn.SellerID), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("add connection %s: %w", conn.ID, err)
	}
	return nil
}

// Heartbeat records client activity and extends the TTL of the connection
// and of every index entry pointing at it.
func (r *Registry) Heartbeat(ctx context.Context, connID, sellerID string) error {
	links, err := r.rdb.SMembers(ctx, r.connSubsKey(connID)).Result()
	if err != nil {
		return fmt.Errorf("list subscriptions of %s: %w", connID, err)
	}

	_, err = r.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.connKey(connID), "lastHeartbeat", time.Now().UTC().Format(time.RFC3339))
		pipe.HIncrBy(ctx, r.connKey(connID), "messages", 1)
		pipe.Expire(ctx, r.connKey(connID), r.ttl)
		pipe.Expire(ctx, r.connSubsKey(connID), r.ttl)
		if sellerID != "" {
			pipe.Expire(ctx, r.sellerConnsKey(sellerID), r.ttl)
		}
		for _, linkID := range links {
			pipe.Expire(ctx, r.linkSubsKey(linkID), r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("heartbeat %s: %w", connID, err)
	}
	return nil
}

// GetConnection returns the stored record, or redis.Nil when it is gone.
func (r *Registry) GetConnection(ctx context.Context, connID string) (*Connection, error) {
	fields, err := r.rdb.HGetAll(ctx, r.connKey(connID)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, redis.Nil
	}

	conn := &Connection{
		ID:         connID,
		SellerID:   fields["seller"],
		RemoteAddr: fields["addr"],
		UserAgent:  fields["agent"],
	}
	if t, err := time.Parse(time.RFC3339, fields["connectedAt"]); err == nil {
		conn.ConnectedAt = t
	}
	return conn, nil
}

// MessageCount is the number of messages recorded by Heartbeat.
func (r *Registry) MessageCount(ctx context.Context, connID string) (int64, error) {
	raw, err := r.rdb.HGet(ctx, r.connKey(connID), "messages").Result()
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// RemoveConnection deletes the connection record and every index entry
// pointing at it in one MULTI/EXEC batch.
func (r *Registry) RemoveConnection(ctx context.Context, connID, sellerID string) error {
	links, err := r.rdb.SMembers(ctx, r.connSubsKey(connID)).Result()
	if err != nil {
		return fmt.Errorf("list subscriptions of %s: %w", connID, err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.connKey(connID))
		if sellerID != "" {
			pipe.SRem(ctx, r.sellerConnsKey(sellerID), connID)
		}
		for _, linkID := range links {
			pipe.SRem(ctx, r.linkSubsKey(linkID), connID)
		}
		pipe.Del(ctx, r.connSubsKey(connID))
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove connection %s: %w", connID, err)
	}
	return nil
}

func (r *Registry) Subscribe(ctx context.Context, connID, linkID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, r.linkSubsKey(linkID), connID)
		pipe.Expire(ctx, r.linkSubsKey(linkID), r.ttl)
		pipe.SAdd(ctx, r.connSubsKey(connID), linkID)
		pipe.Expire(ctx, r.connSubsKey(connID), r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe %s to %s: %w", connID, linkID, err)
	}
	return nil
}

func (r *Registry) Unsubscribe(ctx context.Context, connID, linkID string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SRem(ctx, r.linkSubsKey(linkID), connID)
		pipe.SRem(ctx, r.connSubsKey(connID), linkID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("unsubscribe %s from %s: %w", connID, linkID, err)
	}
	return nil
}

func (r *Registry) Subscribers(ctx context.Context, linkID string) ([]string, error) {
	return r.rdb.SMembers(ctx, r.linkSubsKey(linkID)).Result()
}

func (r *Registry) ConnectionSubscriptions(ctx context.Context, connID string) ([]string, error) {
	return r.rdb.SMembers(ctx, r.connSubsKey(connID)).Result()
}

func (r *Registry) SellerConnections(ctx context.Context, sellerID string) ([]string, error) {
	return r.rdb.SMembers(ctx, r.sellerConnsKey(sellerID)).Result()
}

// CachedOwner returns the cached owner of a payment link; ok is false on a
// cache miss.
func (r *Registry) CachedOwner(ctx context.Context, linkID string) (sellerID string, ok bool, err error) {
	sellerID, err = r.rdb.Get(ctx, r.ownerKey(linkID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return sellerID, true, nil
}

func (r *Registry) CacheOwner(ctx context.Context, linkID, sellerID string) error {
	return r.rdb.Set(ctx, r.ownerKey(linkID), sellerID, r.ownerTTL).Err()
}

func (r *Registry) IsBanned(ctx context.Context, sellerID string) (bool, error) {
	return r.rdb.SIsMember(ctx, r.bannedKey(), sellerID).Result()
}

func (r *Registry) Ban(ctx context.Context, sellerIDs ...string) error {
	if len(sellerIDs) == 0 {
		return nil
	}
	members := make([]interface{}, len(sellerIDs))
	for i, id := range sellerIDs {
		members[i] = id
	}
	return r.rdb.SAdd(ctx, r.bannedKey(), members...).Err()
}

func (r *Registry) Unban(ctx context.Context, sellerID string) error {
	return r.rdb.SRem(ctx, r.bannedKey(), sellerID).Err()
}
