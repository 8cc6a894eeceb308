package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quickdash/order-api/internal/cart"
	"github.com/redis/go-redis/v9"
)

// RedisCartStore keeps cart snapshots as JSON blobs keyed by customer.
// A missing key loads as a fresh empty cart.
type RedisCartStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCartStore(rdb *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{rdb: rdb, ttl: ttl}
}

func cartKey(customerID string) string { return "cart:" + customerID }

func (s *RedisCartStore) Load(ctx context.Context, customerID string) (*cart.Cart, error) {
	raw, err := s.rdb.Get(ctx, cartKey(customerID)).Bytes()
	if err == redis.Nil {
		return cart.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("cart load: %w", err)
	}
	var c cart.Cart
	if err := json.Unmarshal(raw, &c); err != nil {
		// A corrupt snapshot is not worth failing checkout over; start over.
		return cart.New(), nil
	}
	return &c, nil
}

// Conflict retries before Update gives up. Contention on one customer's
// cart is two devices tapping at once; five attempts is plenty.
const cartUpdateRetries = 5

// Update runs fn against the stored snapshot under optimistic concurrency:
// the key is WATCHed, so another write to the same cart between the read
// and the Set aborts the transaction and the whole read-modify-write runs
// again against the fresh snapshot.
func (s *RedisCartStore) Update(ctx context.Context, customerID string, fn func(*cart.Cart) error) (*cart.Cart, error) {
	key := cartKey(customerID)
	var (
		c     *cart.Cart
		fnErr error
	)
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
			c = cart.New()
		case err != nil:
			return err
		default:
			c = cart.New()
			if uerr := json.Unmarshal(raw, c); uerr != nil {
				c = cart.New()
			}
		}
		if fnErr = fn(c); fnErr != nil {
			// No write; the caller gets fn's error with the loaded cart.
			return nil
		}
		buf, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("cart marshal: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, buf, s.ttl)
			return nil
		})
		return err
	}

	for i := 0; i < cartUpdateRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			fnErr = nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("cart update: %w", err)
		}
		return c, fnErr
	}
	return nil, fmt.Errorf("cart update: %w", redis.TxFailedErr)
}

func (s *RedisCartStore) Save(ctx context.Context, customerID string, c *cart.Cart) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("cart marshal: %w", err)
	}
	return s.rdb.Set(ctx, cartKey(customerID), raw, s.ttl).Err()
}

func (s *RedisCartStore) Delete(ctx context.Context, customerID string) error {
	return s.rdb.Del(ctx, cartKey(customerID)).Err()
}

var _ cart.Store = (*RedisCartStore)(nil)
