package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/auth-session-api/internal/models"
)

const (
	refreshTokenKeyPrefix = "refresh:token:"
	refreshUserKeyPrefix  = "refresh:user:"
)

// Records are keyed by the SHA-256 digest of the token. Each user keeps a set of digests so
// login can replace a whole lineage in one step.

const rotateRefreshScript = `
local owner = redis.call("HGET", KEYS[1], "user_id")
if owner == ARGV[1] then
  local id = redis.call("HGET", KEYS[1], "id")
  local created = redis.call("HGET", KEYS[1], "created_at")
  redis.call("DEL", KEYS[1])
  redis.call("HSET", KEYS[2], "id", id, "user_id", owner, "created_at", created)
  redis.call("PEXPIRE", KEYS[2], ARGV[2])
  redis.call("SREM", KEYS[3], ARGV[3])
  redis.call("SADD", KEYS[3], ARGV[4])
  redis.call("PEXPIRE", KEYS[3], ARGV[2])
  return 1
end
if redis.call("HGET", KEYS[2], "user_id") == ARGV[1] then
  return 1
end
return 0
`

// The owner scripts derive token keys from the digests stored in the owner set, so they only run
// against a standalone Redis (or a single shard), never a Redis Cluster.
const replaceOwnerScript = `
local members = redis.call("SMEMBERS", KEYS[1])
for _, digest in ipairs(members) do
  redis.call("DEL", ARGV[5] .. digest)
end
redis.call("DEL", KEYS[1])
redis.call("HSET", KEYS[2], "id", ARGV[3], "user_id", ARGV[1], "created_at", ARGV[4])
redis.call("PEXPIRE", KEYS[2], ARGV[2])
redis.call("SADD", KEYS[1], ARGV[6])
redis.call("PEXPIRE", KEYS[1], ARGV[2])
return 1
`

const deleteOwnerScript = `
local members = redis.call("SMEMBERS", KEYS[1])
for _, digest in ipairs(members) do
  redis.call("DEL", ARGV[1] .. digest)
end
redis.call("DEL", KEYS[1])
return #members
`

const deleteRefreshScript = `
if redis.call("HGET", KEYS[1], "user_id") ~= ARGV[1] then
  return 0
end
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[2])
return 1
`

var (
	rotateRefreshLua = redis.NewScript(rotateRefreshScript)
	replaceOwnerLua  = redis.NewScript(replaceOwnerScript)
	deleteOwnerLua   = redis.NewScript(deleteOwnerScript)
	deleteRefreshLua = redis.NewScript(deleteRefreshScript)
)

// RedisRefreshTokenRepository persists refresh records in a standalone Redis. Entries expire with the
// refresh TTL. Cluster deployments are not supported: the owner scripts touch token keys that are
// not declared up front.
type RedisRefreshTokenRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRefreshTokenRepository creates a Redis backed refresh store.
func NewRedisRefreshTokenRepository(client *redis.Client, ttl time.Duration) *RedisRefreshTokenRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisRefreshTokenRepository{client: client, ttl: ttl}
}

// Insert creates a new refresh record.
func (r *RedisRefreshTokenRepository) Insert(ctx context.Context, record *models.RefreshRecord) error {
	prepareRecord(record)
	digest := tokenDigest(record.Token)
	tokenKey := refreshTokenKeyPrefix + digest
	userKey := refreshUserKeyPrefix + record.UserID

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, tokenKey, "id", record.ID, "user_id", record.UserID, "created_at", record.CreatedAt.Format(time.RFC3339Nano))
		pipe.PExpire(ctx, tokenKey, r.ttl)
		pipe.SAdd(ctx, userKey, digest)
		pipe.PExpire(ctx, userKey, r.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis insert refresh token: %w", err)
	}
	return nil
}

// ReplaceForOwner drops every record of the owner and stores newToken as its only record.
func (r *RedisRefreshTokenRepository) ReplaceForOwner(ctx context.Context, ownerID, newToken string) error {
	digest := tokenDigest(newToken)
	err := replaceOwnerLua.Run(ctx, r.client,
		[]string{refreshUserKeyPrefix + ownerID, refreshTokenKeyPrefix + digest},
		ownerID, r.ttl.Milliseconds(), uuid.NewString(), time.Now().UTC().Format(time.RFC3339Nano), refreshTokenKeyPrefix, digest,
	).Err()
	if err != nil {
		return fmt.Errorf("redis replace refresh tokens: %w", err)
	}
	return nil
}

// Rotate swaps oldToken for newToken atomically when the record still holds oldToken for ownerID.
func (r *RedisRefreshTokenRepository) Rotate(ctx context.Context, oldToken, newToken, ownerID string) error {
	oldDigest := tokenDigest(oldToken)
	newDigest := tokenDigest(newToken)
	rotated, err := rotateRefreshLua.Run(ctx, r.client,
		[]string{refreshTokenKeyPrefix + oldDigest, refreshTokenKeyPrefix + newDigest, refreshUserKeyPrefix + ownerID},
		ownerID, r.ttl.Milliseconds(), oldDigest, newDigest,
	).Int64()
	if err != nil {
		return fmt.Errorf("redis rotate refresh token: %w", err)
	}
	if rotated == 0 {
		return ErrRefreshRecordNotFound
	}
	return nil
}

// FindByTokenAndOwner returns the matching record or nil when there is none.
func (r *RedisRefreshTokenRepository) FindByTokenAndOwner(ctx context.Context, token, ownerID string) (*models.RefreshRecord, error) {
	fields, err := r.client.HGetAll(ctx, refreshTokenKeyPrefix+tokenDigest(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis find refresh token: %w", err)
	}
	if len(fields) == 0 || fields["user_id"] != ownerID {
		return nil, nil
	}
	record := &models.RefreshRecord{ID: fields["id"], Token: token, UserID: ownerID}
	if created, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		record.CreatedAt = created
	}
	return record, nil
}

// Delete removes the record holding token. Missing tokens are ignored.
func (r *RedisRefreshTokenRepository) Delete(ctx context.Context, token string) error {
	digest := tokenDigest(token)
	tokenKey := refreshTokenKeyPrefix + digest
	owner, err := r.client.HGet(ctx, tokenKey, "user_id").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("redis delete refresh token: %w", err)
	}
	// The script re-checks the owner, so a record removed in between is left alone.
	err = deleteRefreshLua.Run(ctx, r.client, []string{tokenKey, refreshUserKeyPrefix + owner}, owner, digest).Err()
	if err != nil {
		return fmt.Errorf("redis delete refresh token: %w", err)
	}
	return nil
}

// DeleteByOwner removes every record of the owner.
func (r *RedisRefreshTokenRepository) DeleteByOwner(ctx context.Context, ownerID string) error {
	err := deleteOwnerLua.Run(ctx, r.client, []string{refreshUserKeyPrefix + ownerID}, refreshTokenKeyPrefix).Err()
	if err != nil {
		return fmt.Errorf("redis delete owner refresh tokens: %w", err)
	}
	return nil
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
