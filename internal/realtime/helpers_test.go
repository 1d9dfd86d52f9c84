package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/dwarvesf/paylink-backend/internal/types/environments"
	"github.com/dwarvesf/paylink-backend/internal/utils/config"
	"github.com/dwarvesf/paylink-backend/internal/utils/logger"
)

const testSecret = "realtime-test-secret"

func testRealtimeConfig() config.RealtimeConfig {
	return config.RealtimeConfig{
		JWTSecret:     testSecret,
		KeyPrefix:     "realtime:",
		Channel:       "realtime:events",
		ConnectionTTL: 24 * time.Hour,
		OwnershipTTL:  time.Hour,
		RateLimit:     60,
		RateWindow:    60 * time.Second,
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

type emitted struct {
	event   string
	payload interface{}
}

type fakeSession struct {
	id string

	mu     sync.Mutex
	events []emitted
	closed bool
}

func newFakeSession(id string) *fakeSession {
	return &fakeSession{id: id}
}

func (s *fakeSession) ID() string { return s.id }

func (s *fakeSession) Emit(event string, payload interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, emitted{event: event, payload: payload})
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) named(event string) []emitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []emitted
	for _, e := range s.events {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

func (s *fakeSession) last() emitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return emitted{}
	}
	return s.events[len(s.events)-1]
}

// mapOwners is an OwnershipChecker backed by a map that counts lookups.
type mapOwners struct {
	mu     sync.Mutex
	owners map[string]string
	calls  int
}

func (o *mapOwners) Owner(ctx context.Context, linkID string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	owner, ok := o.owners[linkID]
	if !ok {
		return "", ErrLinkNotFound
	}
	return owner, nil
}

func (o *mapOwners) lookups() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func token(t *testing.T, sellerID string) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   sellerID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

type hubFixture struct {
	hub      *Hub
	registry *Registry
	owners   *mapOwners
	mr       *miniredis.Miniredis
	rdb      *redis.Client
}

func newHubFixture(t *testing.T) *hubFixture {
	t.Helper()
	mr, rdb := newRedis(t)
	cfg := testRealtimeConfig()

	registry := NewRegistry(rdb, cfg)
	owners := &mapOwners{owners: map[string]string{
		"link-a": "seller-a",
		"link-b": "seller-b",
	}}
	hub := NewHub(registry, NewRateLimiter(rdb, cfg), NewJWTAuthenticator(testSecret), owners, nil, logger.New(environments.Test))

	return &hubFixture{hub: hub, registry: registry, owners: owners, mr: mr, rdb: rdb}
}

func (f *hubFixture) connect(t *testing.T, sessionID, sellerID string) (*Client, *fakeSession) {
	t.Helper()
	session := newFakeSession(sessionID)
	client, err := f.hub.Connect(context.Background(), session, token(t, sellerID), ConnMeta{RemoteAddr: "10.0.0.1:5000", UserAgent: "test"})
	require.NoError(t, err)
	return client, session
}
