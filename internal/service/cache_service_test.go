package service

import (
	"context"
	"encoding/json"
	"errors"
	"path"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/auth-session-api/internal/dto"
	"github.com/noah-isme/auth-session-api/internal/models"
	appErrors "github.com/noah-isme/auth-session-api/pkg/errors"
)

type memoryCache struct {
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) error {
	if m.getErr != nil {
		return m.getErr
	}
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *memoryCache) DeleteByPattern(_ context.Context, pattern string) error {
	for k := range m.data {
		if ok, _ := path.Match(pattern, k); ok {
			delete(m.data, k)
		}
	}
	return nil
}

func TestCacheServiceDisabled(t *testing.T) {
	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())

	svc := NewCacheService(nil, nil, 0, nil)
	assert.False(t, svc.Enabled())

	var dest string
	assert.False(t, svc.Get(context.Background(), "k", &dest))
	svc.Set(context.Background(), "k", "v", 0)
	svc.Invalidate(context.Background(), []string{"k"}, "*")
}

func TestCacheServiceHitMissMetrics(t *testing.T) {
	store := newMemoryCache()
	metrics := NewMetricsService()
	svc := NewCacheService(store, metrics, time.Minute, zap.NewNop())
	ctx := context.Background()

	var dest string
	assert.False(t, svc.Get(ctx, "k", &dest))

	svc.Set(ctx, "k", "v", 0)
	assert.Equal(t, time.Minute, store.ttls["k"])

	assert.True(t, svc.Get(ctx, "k", &dest))
	assert.Equal(t, "v", dest)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheRequests.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.cacheRequests.WithLabelValues("miss")))
}

func TestCacheServiceReadErrorIsMiss(t *testing.T) {
	store := newMemoryCache()
	store.getErr = errors.New("connection refused")
	svc := NewCacheService(store, nil, 0, zap.NewNop())

	var dest string
	assert.False(t, svc.Get(context.Background(), "k", &dest))
}

func TestBlogReadsAreCached(t *testing.T) {
	repo := newMockBlogRepo()
	repo.blogs["b1"] = &models.Blog{ID: "b1", UserID: "u1", Title: "first"}
	store := newMemoryCache()
	svc := NewBlogService(repo, NewValidator(), nil, zap.NewNop(), WithBlogCache(NewCacheService(store, nil, time.Minute, zap.NewNop())))
	ctx := context.Background()

	item, err := svc.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Contains(t, store.data, blogItemKey("b1"))

	repo.blogs["b1"].Title = "changed underneath"
	again, err := svc.Get(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, item, again)

	items, page, err := svc.ListByUser(ctx, dto.BlogFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Contains(t, store.data, blogListKey(dto.BlogFilter{UserID: "u1", Page: 1, PageSize: 20}))

	repo.listErr = errors.New("db down")
	cachedItems, cachedPage, err := svc.ListByUser(ctx, dto.BlogFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, items, cachedItems)
	assert.Equal(t, page, cachedPage)
}

func TestBlogWritesInvalidateCache(t *testing.T) {
	repo := newMockBlogRepo()
	store := newMemoryCache()
	svc := NewBlogService(repo, NewValidator(), nil, zap.NewNop(), WithBlogCache(NewCacheService(store, nil, time.Minute, zap.NewNop())))
	ctx := context.Background()

	items, _, err := svc.ListByUser(ctx, dto.BlogFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, items)

	created, isNew, err := svc.Create(ctx, "u1", sampleBlog(), models.RequestMeta{})
	require.NoError(t, err)
	require.True(t, isNew)

	items, _, err = svc.ListByUser(ctx, dto.BlogFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, items, 1)

	_, err = svc.Get(ctx, created.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID, "u1", models.RequestMeta{}))
	assert.NotContains(t, store.data, blogItemKey(created.ID))

	_, err = svc.Get(ctx, created.ID)
	requireAppError(t, err, appErrors.ErrNotFound)

	items, _, err = svc.ListByUser(ctx, dto.BlogFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Empty(t, items)
}
