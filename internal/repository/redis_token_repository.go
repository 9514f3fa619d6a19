package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/academy-auth/internal/model"
)

// RedisTokenRepo is a Redis-backed refresh token store. Each record is
// stored as JSON under refresh:<token>, and the token strings owned by
// a user are tracked in a set under refresh:user:<id> so a logout can
// revoke them in bulk without scanning.
//
// Values are given a TTL of the record expiry plus a grace window. The
// grace keeps an expired record readable long enough for the refresh
// path to report it as expired (and clean it up) instead of unknown;
// Redis eviction is only the backstop.
type RedisTokenRepo struct {
	RDB *redis.Client
}

func NewRedisTokenRepo(rdb *redis.Client) *RedisTokenRepo { return &RedisTokenRepo{RDB: rdb} }

const redisExpiryGrace = 24 * time.Hour

func tokenKey(token string) string { return "refresh:" + token }
func userSetKey(uid uint64) string { return "refresh:user:" + strconv.FormatUint(uid, 10) }

// Store writes the record and registers it under the owner's set.
func (r *RedisTokenRepo) Store(ctx context.Context, t *model.RefreshToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(t)
	if err != nil {
		return err
	}
	ttl := time.Until(t.ExpiresAt) + redisExpiryGrace
	pipe := r.RDB.TxPipeline()
	pipe.Set(ctx, tokenKey(t.Token), body, ttl)
	pipe.SAdd(ctx, userSetKey(t.UserID), t.Token)
	pipe.Expire(ctx, userSetKey(t.UserID), ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// FindByToken loads the record for the exact token string.
func (r *RedisTokenRepo) FindByToken(ctx context.Context, token string) (model.RefreshToken, error) {
	body, err := r.RDB.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.RefreshToken{}, ErrTokenNotFound
		}
		return model.RefreshToken{}, err
	}
	var t model.RefreshToken
	if err := json.Unmarshal(body, &t); err != nil {
		return model.RefreshToken{}, err
	}
	return t, nil
}

// Delete removes a single record and its set membership.
func (r *RedisTokenRepo) Delete(ctx context.Context, token string) error {
	t, err := r.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return nil
		}
		return err
	}
	pipe := r.RDB.TxPipeline()
	pipe.Del(ctx, tokenKey(token))
	pipe.SRem(ctx, userSetKey(t.UserID), token)
	_, err = pipe.Exec(ctx)
	return err
}

// DeleteByUser removes every record owned by the user.
func (r *RedisTokenRepo) DeleteByUser(ctx context.Context, userID uint64) error {
	tokens, err := r.RDB.SMembers(ctx, userSetKey(userID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	pipe := r.RDB.TxPipeline()
	for _, tok := range tokens {
		pipe.Del(ctx, tokenKey(tok))
	}
	pipe.Del(ctx, userSetKey(userID))
	_, err = pipe.Exec(ctx)
	return err
}
