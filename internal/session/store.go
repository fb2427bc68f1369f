package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ordervox/ordervox/internal/dialog"
	"github.com/ordervox/ordervox/internal/order"
)

const (
	// currentKey points at the active session id for the lane.
	currentKey = "current:session"
	// sessionKeyPrefix prefixes per-session blobs.
	sessionKeyPrefix = "session:"
)

var (
	// ErrNoCurrent is returned when no session is active on the lane.
	ErrNoCurrent = errors.New("session: no current session")
	// ErrNotCurrent is returned by Update when the target session is not the
	// lane's current one. The HTTP layer maps it to 409.
	ErrNotCurrent = errors.New("session: not the current session")
	// ErrNotFound is returned when a session blob does not exist.
	ErrNotFound = errors.New("session: not found")
)

// kv is the narrow key-value surface the store needs. Implemented by
// [redisKV] in production and by an in-memory fake in tests.
type kv interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// errKeyMissing signals an absent key from kv.Get.
var errKeyMissing = errors.New("session: key missing")

// redisKV adapts a go-redis client to the kv interface.
type redisKV struct {
	rdb *redis.Client
}

func (r redisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", errKeyMissing
	}
	return v, err
}

func (r redisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r redisKV) Del(ctx context.Context, keys ...string) error {
	return r.rdb.Del(ctx, keys...).Err()
}

func (r redisKV) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.rdb.Expire(ctx, key, ttl).Err()
}

// Archiver receives completed sessions for relational persistence.
type Archiver interface {
	ArchiveOrder(ctx context.Context, sess *Session) error
}

// Store manages session lifecycle on Redis. All operations are safe for
// concurrent use; Redis serializes single-key operations.
type Store struct {
	kv       kv
	ttl      time.Duration
	archiver Archiver
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// NewStore builds a Store over a Redis client. archiver may be nil, in which
// case COMPLETED sessions are deleted without archiving.
func NewStore(rdb *redis.Client, ttl time.Duration, archiver Archiver, logger *slog.Logger) *Store {
	return newStore(redisKV{rdb: rdb}, ttl, archiver, logger)
}

func newStore(kv kv, ttl time.Duration, archiver Archiver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		kv:       kv,
		ttl:      ttl,
		archiver: archiver,
		logger:   logger,
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

// NewCar cancels any current session and creates a fresh one for the lane.
// The new session starts with an empty order in the FSM's initial state.
func (s *Store) NewCar(ctx context.Context, restaurantID int) (*Session, error) {
	if err := s.cancelCurrent(ctx); err != nil {
		return nil, err
	}

	now := s.now()
	sess := &Session{
		ID:           s.newID(),
		RestaurantID: restaurantID,
		State:        dialog.InitialState,
		Status:       StatusActive,
		Order:        order.NewState(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	sess.OrderID = sess.ID

	if err := s.write(ctx, sess); err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, currentKey, sess.ID, s.ttl); err != nil {
		return nil, fmt.Errorf("session: set current pointer: %w", err)
	}
	s.logger.Info("new car session created", "session_id", sess.ID, "restaurant_id", restaurantID)
	return sess, nil
}

// NextCar cancels and clears the current session, if any.
func (s *Store) NextCar(ctx context.Context) error {
	return s.cancelCurrent(ctx)
}

// cancelCurrent deletes the current session's blob and the lane pointer.
// Cancelled sessions are never archived, so deletion is the whole of
// cancellation. A missing pointer is not an error.
func (s *Store) cancelCurrent(ctx context.Context) error {
	id, err := s.kv.Get(ctx, currentKey)
	if errors.Is(err, errKeyMissing) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("session: read current pointer: %w", err)
	}

	if err := s.kv.Del(ctx, sessionKey(id), currentKey); err != nil {
		return fmt.Errorf("session: clear session %s: %w", id, err)
	}
	s.logger.Info("session cancelled", "session_id", id)
	return nil
}

// Current returns the lane's active session, or [ErrNoCurrent].
func (s *Store) Current(ctx context.Context) (*Session, error) {
	id, err := s.kv.Get(ctx, currentKey)
	if errors.Is(err, errKeyMissing) {
		return nil, ErrNoCurrent
	}
	if err != nil {
		return nil, fmt.Errorf("session: read current pointer: %w", err)
	}
	sess, err := s.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		// Dangling pointer: the blob expired first. Self-heal.
		_ = s.kv.Del(ctx, currentKey)
		return nil, ErrNoCurrent
	}
	return sess, err
}

// Get loads one session blob by id.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.kv.Get(ctx, sessionKey(id))
	if errors.Is(err, errKeyMissing) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("session: read %s: %w", id, err)
	}
	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("session: decode %s: %w", id, err)
	}
	return &sess, nil
}

// Update persists sess. It fails with [ErrNotCurrent] when sess is not the
// lane's current session. A transition to COMPLETED archives the order and
// deletes both keys; CANCELLED deletes without archiving. Otherwise the blob
// is rewritten and both TTLs refresh.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	current, err := s.kv.Get(ctx, currentKey)
	if errors.Is(err, errKeyMissing) || (err == nil && current != sess.ID) {
		return fmt.Errorf("%w: %s", ErrNotCurrent, sess.ID)
	}
	if err != nil {
		return fmt.Errorf("session: read current pointer: %w", err)
	}

	sess.UpdatedAt = s.now()

	switch sess.Status {
	case StatusCompleted:
		if s.archiver != nil {
			if err := s.archiver.ArchiveOrder(ctx, sess); err != nil {
				return fmt.Errorf("session: archive completed order %s: %w", sess.OrderID, err)
			}
		}
		if err := s.kv.Del(ctx, sessionKey(sess.ID), currentKey); err != nil {
			return fmt.Errorf("session: clear completed session %s: %w", sess.ID, err)
		}
		s.logger.Info("session completed and archived", "session_id", sess.ID, "order_total", orderTotal(sess))
		return nil
	case StatusCancelled:
		if err := s.kv.Del(ctx, sessionKey(sess.ID), currentKey); err != nil {
			return fmt.Errorf("session: clear cancelled session %s: %w", sess.ID, err)
		}
		return nil
	}

	if err := s.write(ctx, sess); err != nil {
		return err
	}
	if err := s.kv.Expire(ctx, currentKey, s.ttl); err != nil {
		return fmt.Errorf("session: refresh current pointer ttl: %w", err)
	}
	return nil
}

// Patch shallow-merges fields into the stored blob for session id and
// persists through [Update]. Unknown fields are rejected by re-decoding into
// the Session schema.
func (s *Store) Patch(ctx context.Context, id string, fields map[string]any) (*Session, error) {
	sess, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	blob, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("session: encode for patch: %w", err)
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(blob, &merged); err != nil {
		return nil, fmt.Errorf("session: decode for patch: %w", err)
	}
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("session: encode patch field %q: %w", k, err)
		}
		merged[k] = raw
	}
	remarshaled, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("session: encode merged patch: %w", err)
	}
	var patched Session
	if err := json.Unmarshal(remarshaled, &patched); err != nil {
		return nil, fmt.Errorf("session: patch does not fit schema: %w", err)
	}

	if err := s.Update(ctx, &patched); err != nil {
		return nil, err
	}
	return &patched, nil
}

// write stores the session blob with a fresh TTL.
func (s *Store) write(ctx context.Context, sess *Session) error {
	blob, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: encode %s: %w", sess.ID, err)
	}
	if err := s.kv.Set(ctx, sessionKey(sess.ID), string(blob), s.ttl); err != nil {
		return fmt.Errorf("session: write %s: %w", sess.ID, err)
	}
	return nil
}

func orderTotal(sess *Session) float64 {
	if sess.Order == nil {
		return 0
	}
	return sess.Order.Total
}
