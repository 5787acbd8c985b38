package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

type idempotencyQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// IdempotencyStore persists processed keys together with the produced result.
// It is bound to the caller's transaction so the key and the business rows
// commit or roll back together.
type IdempotencyStore struct {
	q idempotencyQuerier
}

// NewIdempotencyStore constructs the store on a transaction or pool.
func NewIdempotencyStore(q idempotencyQuerier) *IdempotencyStore {
	return &IdempotencyStore{q: q}
}

// LookupIdempotent returns the stored result for key, if any.
func (s *IdempotencyStore) LookupIdempotent(ctx context.Context, orgID uuid.UUID, module, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, errors.New("idempotency store not initialised")
	}
	var result []byte
	err := s.q.QueryRow(ctx, `SELECT result FROM idempotency_keys WHERE org_id=$1 AND module=$2 AND key=$3`, orgID, module, key).Scan(&result)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return result, true, nil
}

// SaveIdempotent records key with its result. A concurrent writer of the same
// key yields ErrIdempotencyConflict.
func (s *IdempotencyStore) SaveIdempotent(ctx context.Context, orgID uuid.UUID, module, key string, result []byte) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	_, err := s.q.Exec(ctx, `INSERT INTO idempotency_keys (org_id, module, key, result, created_at) VALUES ($1, $2, $3, $4, NOW())`, orgID, module, key, result)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrIdempotencyConflict
		}
		return err
	}
	return nil
}

// Cleanup removes entries older than retention and reports how many went.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-olderThan)
	tag, err := s.q.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ResultCache keeps recently produced results in Redis so replays skip the
// database entirely.
type ResultCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewResultCache constructs a cache. A nil client disables it.
func NewResultCache(client redis.Cmdable, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ResultCache{client: client, ttl: ttl}
}

func (c *ResultCache) key(orgID uuid.UUID, module, key string) string {
	return fmt.Sprintf("pharmadist:idem:%s:%s:%s", orgID, module, key)
}

// Get loads a cached result into dest.
func (c *ResultCache) Get(ctx context.Context, orgID uuid.UUID, module, key string, dest any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	raw, err := c.client.Get(ctx, c.key(orgID, module, key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Put stores value under key.
func (c *ResultCache) Put(ctx context.Context, orgID uuid.UUID, module, key string, value any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(orgID, module, key), raw, c.ttl).Err()
}
