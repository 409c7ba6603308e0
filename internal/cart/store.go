package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store persists carts and the proposal a session is editing.
type Store interface {
	Load(ctx context.Context, session string) (Cart, error)
	Update(ctx context.Context, session string, fn func(*Cart) error) (Cart, error)
	Delete(ctx context.Context, session string) error
	SetEditing(ctx context.Context, session, proposalID string) error
	Editing(ctx context.Context, session string) (string, bool, error)
	ClearEditing(ctx context.Context, session string) error
}

const maxUpdateAttempts = 5

// RedisStore keeps each cart as a JSON document with a sliding TTL.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore constructs a store. A non-positive ttl defaults to 30 days.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

func cartKey(session string) string {
	return "eppo_cart:" + session
}

func editingKey(session string) string {
	return "editing_proposal:" + session
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, g getter, session string) (Cart, error) {
	data, err := g.Get(ctx, cartKey(session)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Cart{Session: session, Items: []LineItem{}}, nil
	}
	if err != nil {
		return Cart{}, fmt.Errorf("load cart: %w", err)
	}
	var c Cart
	if err := json.Unmarshal(data, &c); err != nil {
		return Cart{}, fmt.Errorf("decode cart: %w", err)
	}
	c.Session = session
	if c.Items == nil {
		c.Items = []LineItem{}
	}
	return c, nil
}

// Load returns the cart for session, or an empty cart when none is stored.
func (s *RedisStore) Load(ctx context.Context, session string) (Cart, error) {
	return load(ctx, s.client, session)
}

// Update applies fn to the stored cart under an optimistic WATCH transaction
// and retries when another writer commits first.
func (s *RedisStore) Update(ctx context.Context, session string, fn func(*Cart) error) (Cart, error) {
	key := cartKey(session)
	var out Cart
	txf := func(tx *redis.Tx) error {
		c, err := load(ctx, tx, session)
		if err != nil {
			return err
		}
		if err := fn(&c); err != nil {
			return err
		}
		c.UpdatedAt = s.now().UTC()
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode cart: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			pipe.Expire(ctx, editingKey(session), s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		out = c
		return nil
	}
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Cart{}, err
		}
		return out, nil
	}
	return Cart{}, ErrConflict
}

// Delete removes the cart.
func (s *RedisStore) Delete(ctx context.Context, session string) error {
	return s.client.Del(ctx, cartKey(session)).Err()
}

// SetEditing records that session is editing proposalID.
func (s *RedisStore) SetEditing(ctx context.Context, session, proposalID string) error {
	return s.client.Set(ctx, editingKey(session), proposalID, s.ttl).Err()
}

// Editing returns the proposal the session is editing, if any.
func (s *RedisStore) Editing(ctx context.Context, session string) (string, bool, error) {
	id, err := s.client.Get(ctx, editingKey(session)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load editing proposal: %w", err)
	}
	return id, id != "", nil
}

// ClearEditing forgets the proposal being edited.
func (s *RedisStore) ClearEditing(ctx context.Context, session string) error {
	return s.client.Del(ctx, editingKey(session)).Err()
}
