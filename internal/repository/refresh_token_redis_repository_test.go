package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/auth-session-api/internal/models"
)

func newRedisRepo(t *testing.T) (*RedisRefreshTokenRepository, *miniredis.Miniredis) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRefreshTokenRepository(client, time.Hour), srv
}

func TestRedisInsertAndFind(t *testing.T) {
	repo, srv := newRedisRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "tok", UserID: "u1"}))

	record, err := repo.FindByTokenAndOwner(ctx, "tok", "u1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "u1", record.UserID)
	assert.NotEmpty(t, record.ID)
	assert.False(t, record.CreatedAt.IsZero())

	mismatch, err := repo.FindByTokenAndOwner(ctx, "tok", "u2")
	require.NoError(t, err)
	assert.Nil(t, mismatch)

	assert.Equal(t, time.Hour, srv.TTL(refreshTokenKeyPrefix+tokenDigest("tok")))
}

func TestRedisRotate(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "old", UserID: "u1"}))

	require.NoError(t, repo.Rotate(ctx, "old", "new", "u1"))

	stale, err := repo.FindByTokenAndOwner(ctx, "old", "u1")
	require.NoError(t, err)
	assert.Nil(t, stale)

	current, err := repo.FindByTokenAndOwner(ctx, "new", "u1")
	require.NoError(t, err)
	assert.NotNil(t, current)

	// retry of a committed rotation
	assert.NoError(t, repo.Rotate(ctx, "old", "new", "u1"))
	// a second caller presenting the stale token loses
	assert.ErrorIs(t, repo.Rotate(ctx, "old", "other", "u1"), ErrRefreshRecordNotFound)
}

func TestRedisRotateOwnerMismatch(t *testing.T) {
	repo, _ := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "old", UserID: "u1"}))

	assert.ErrorIs(t, repo.Rotate(ctx, "old", "new", "intruder"), ErrRefreshRecordNotFound)

	still, err := repo.FindByTokenAndOwner(ctx, "old", "u1")
	require.NoError(t, err)
	assert.NotNil(t, still)
}

func TestRedisReplaceForOwner(t *testing.T) {
	repo, srv := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "a", UserID: "u1"}))
	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "b", UserID: "u1"}))
	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "c", UserID: "u2"}))

	require.NoError(t, repo.ReplaceForOwner(ctx, "u1", "fresh"))

	members, err := srv.Members(refreshUserKeyPrefix + "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{tokenDigest("fresh")}, members)

	for _, tok := range []string{"a", "b"} {
		rec, err := repo.FindByTokenAndOwner(ctx, tok, "u1")
		require.NoError(t, err)
		assert.Nil(t, rec)
	}
	other, err := repo.FindByTokenAndOwner(ctx, "c", "u2")
	require.NoError(t, err)
	assert.NotNil(t, other)
}

func TestRedisDeleteIsIdempotent(t *testing.T) {
	repo, srv := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "tok", UserID: "u1"}))

	require.NoError(t, repo.Delete(ctx, "tok"))
	require.NoError(t, repo.Delete(ctx, "tok"))
	require.NoError(t, repo.Delete(ctx, "never-issued"))

	assert.False(t, srv.Exists(refreshTokenKeyPrefix+tokenDigest("tok")))
}

func TestRedisDeleteRemovesOwnerIndexEntry(t *testing.T) {
	repo, srv := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "a", UserID: "u1"}))
	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "b", UserID: "u1"}))

	require.NoError(t, repo.Delete(ctx, "a"))

	members, err := srv.Members(refreshUserKeyPrefix + "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{tokenDigest("b")}, members)
}

func TestRedisDeleteByOwner(t *testing.T) {
	repo, srv := newRedisRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "a", UserID: "u1"}))
	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "b", UserID: "u1"}))
	require.NoError(t, repo.Insert(ctx, &models.RefreshRecord{Token: "c", UserID: "u2"}))

	require.NoError(t, repo.DeleteByOwner(ctx, "u1"))
	require.NoError(t, repo.DeleteByOwner(ctx, "u1"))

	for _, tok := range []string{"a", "b"} {
		rec, err := repo.FindByTokenAndOwner(ctx, tok, "u1")
		require.NoError(t, err)
		assert.Nil(t, rec)
	}
	assert.False(t, srv.Exists(refreshUserKeyPrefix+"u1"))
	assert.False(t, srv.Exists(refreshTokenKeyPrefix))

	other, err := repo.FindByTokenAndOwner(ctx, "c", "u2")
	require.NoError(t, err)
	assert.NotNil(t, other)
}
