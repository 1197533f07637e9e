package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aussiebroadwan/projectx/pkg/cryptox"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultRedisPrefix namespaces challenge keys.
	DefaultRedisPrefix = "projectx:2fa"

	// maxRetries bounds optimistic-lock retries when two verifies race.
	maxRetries = 4
)

// redisRecord is the stored value. Code is a fingerprint, never the code.
type redisRecord struct {
	Code      string `json:"code"`
	ExpiresAt int64  `json:"exp"` // unix milliseconds
}

// RedisStore keeps codes in Redis so every instance behind a load balancer
// sees the same pending code. Keys outlive the code by one extra ttl so an
// expired code is still reported as expired rather than missing.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore returns a store backed by client. Empty prefix and
// non-positive ttl fall back to the defaults.
func NewRedisStore(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{
		redis:  client,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + ":" + userID
}

func (s *RedisStore) Issue(ctx context.Context, userID string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}

	data, err := json.Marshal(redisRecord{
		Code:      cryptox.FingerprintToken(code),
		ExpiresAt: s.now().Add(s.ttl).UnixMilli(),
	})
	if err != nil {
		return "", err
	}

	// SET replaces any pending code atomically.
	if err := s.redis.Set(ctx, s.key(userID), data, 2*s.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBackend, err)
	}
	return code, nil
}

func (s *RedisStore) Verify(ctx context.Context, userID, candidate string) error {
	key := s.key(userID)

	for range maxRetries {
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			var rec redisRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return err
			}

			if s.now().UnixMilli() > rec.ExpiresAt {
				if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				}); err != nil {
					return err
				}
				return ErrExpired
			}

			if !cryptox.MatchFingerprint(candidate, rec.Code) {
				return ErrMismatch
			}

			// Consume inside MULTI so a concurrent verify of the same code
			// aborts with TxFailedErr instead of succeeding twice.
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			return err
		}, key)

		switch {
		case errors.Is(err, redis.TxFailedErr):
			continue
		case err == nil:
			return nil
		case errors.Is(err, redis.Nil):
			return ErrNotFound
		case errors.Is(err, ErrExpired), errors.Is(err, ErrMismatch):
			return err
		default:
			return fmt.Errorf("%w: %v", ErrBackend, err)
		}
	}

	// Lost every race: someone else kept rewriting or consuming the key.
	return ErrNotFound
}

// Ping checks the Redis connection; used by readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.redis.Ping(ctx).Err()
}
