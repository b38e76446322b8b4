package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/checkout-bridge/internal/domain/cart"
)

const redisKeyPrefix = "checkout:session:"

// RedisStore is a Store backed by redis, for deployments where intake and
// checkout-page traffic may land on different processes. The one-time
// property comes from GETDEL: the read and the delete are a single redis
// command. Redis also enforces the TTL itself, so a token whose key already
// expired is indistinguishable from one that never existed and surfaces as
// ErrNotFound; ErrExpired is only reported for entries redis still holds but
// whose recorded age exceeds the TTL (clock drift between writers).
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore creates a RedisStore with the given TTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

type redisEntry struct {
	Cart      cart.Cart `json:"cart"`
	CreatedAt time.Time `json:"createdAt"`
}

// Create stores the cart under a fresh random token with a redis EX TTL.
func (s *RedisStore) Create(ctx context.Context, c cart.Cart) (string, error) {
	token, err := NewToken()
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(redisEntry{Cart: c, CreatedAt: s.now()})
	if err != nil {
		return "", errors.Wrap(err, "marshal session")
	}

	if err := s.client.Set(ctx, redisKeyPrefix+token, data, s.ttl).Err(); err != nil {
		return "", errors.Wrap(err, "redis set")
	}
	return token, nil
}

// Consume atomically reads and deletes the entry via GETDEL.
func (s *RedisStore) Consume(ctx context.Context, token string) (cart.Cart, error) {
	data, err := s.client.GetDel(ctx, redisKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return cart.Cart{}, ErrNotFound
	}
	if err != nil {
		return cart.Cart{}, errors.Wrap(err, "redis getdel")
	}

	var e redisEntry
	if err := json.Unmarshal(data, &e); err != nil {
		return cart.Cart{}, errors.Wrap(err, "unmarshal session")
	}
	if s.now().Sub(e.CreatedAt) > s.ttl {
		return cart.Cart{}, ErrExpired
	}
	return e.Cart, nil
}

// Ping reports backend reachability for readiness checks.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
