package delta_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/core/metrics"
	"github.com/syncline/syncline/pkg/sync/engine/delta"
	"github.com/syncline/syncline/pkg/sync/infrastructure/commerce/memory"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
)

func newTestEngine(opts delta.Options) (*delta.Engine, *memory.MemoryCommerceClient, *memory.MemoryLocalStore) {
	client := memory.NewMemoryCommerceClient()
	store := memory.NewMemoryLocalStore()
	engine := delta.NewEngine(client, store, metrics.NewNoOpMetricRecorder(), opts)
	return engine, client, store
}

func externalRecord(id, email, segment string) model.ExternalRecord {
	return model.ExternalRecord{ID: id, Email: email, Segment: segment, Status: "active", UpdatedAt: time.Now()}
}

func TestComputeDelta_Classification(t *testing.T) {
	engine, client, store := newTestEngine(delta.Options{})

	// Three external records: one brand new, one matching its local copy,
	// one with a drifted segment.
	client.Seed([]model.ExternalRecord{
		externalRecord("ext-new", "new@x.com", "retail"),
		externalRecord("ext-same", "same@x.com", "retail"),
		externalRecord("ext-drift", "drift@x.com", "wholesale"),
	})
	store.SeedLocal("org-1", model.LocalRecord{EntityID: "e1", ExternalID: "ext-same", Email: "same@x.com", Segment: "retail", Status: "active"})
	store.SeedLocal("org-1", model.LocalRecord{EntityID: "e2", ExternalID: "ext-drift", Email: "drift@x.com", Segment: "retail", Status: "active"})
	// A local record whose external counterpart is gone.
	store.SeedLocal("org-1", model.LocalRecord{EntityID: "e3", ExternalID: "ext-gone", Email: "gone@x.com", Segment: "retail", Status: "active"})

	result, err := engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, false)
	require.NoError(t, err)

	assert.Equal(t, 1, result.NewCount)
	assert.Equal(t, 1, result.UpdatedCount)
	assert.Equal(t, 1, result.DeletedCount)
	assert.Equal(t, 3, result.ExternalTotal)
	assert.Equal(t, 3, result.TotalChanges())
	assert.InDelta(t, 100.0, result.PercentageChange, 1e-9)
	assert.False(t, result.Cached)

	require.Len(t, result.NewSamples, 1)
	assert.Equal(t, "ext-new", result.NewSamples[0].ID)
	require.Len(t, result.UpdatedSamples, 1)
	assert.Equal(t, "ext-drift", result.UpdatedSamples[0].ID)
	require.Len(t, result.DeletedSamples, 1)
	assert.Equal(t, "ext-gone", result.DeletedSamples[0].ExternalID)
}

func TestComputeDelta_CacheHitAndSkip(t *testing.T) {
	engine, client, _ := newTestEngine(delta.Options{})
	client.Seed([]model.ExternalRecord{externalRecord("ext-1", "a@x.com", "retail")})

	first, err := engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, false)
	require.NoError(t, err)
	assert.False(t, first.Cached)

	// Second call is served from the cache and ignores upstream changes.
	client.Seed(nil)
	second, err := engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, false)
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, second.NewCount)

	// skipCache forces a recomputation against the emptied upstream.
	third, err := engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, true)
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Equal(t, 0, third.NewCount)
}

func TestComputeDelta_CacheKeyedByFilter(t *testing.T) {
	engine, client, _ := newTestEngine(delta.Options{})
	client.Seed([]model.ExternalRecord{
		externalRecord("ext-1", "a@x.com", "retail"),
		externalRecord("ext-2", "b@x.com", "wholesale"),
	})

	all, err := engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, all.NewCount)

	retail, err := engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{Segments: []string{"retail"}}, false)
	require.NoError(t, err)
	assert.False(t, retail.Cached)
	assert.Equal(t, 1, retail.NewCount)

	assert.Equal(t, 2, engine.Stats().Size)
}

func TestComputeDelta_TTLExpiry(t *testing.T) {
	engine, client, _ := newTestEngine(delta.Options{CacheTTL: 20 * time.Millisecond})
	client.Seed([]model.ExternalRecord{externalRecord("ext-1", "a@x.com", "retail")})

	_, err := engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, false)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	result, err := engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, false)
	require.NoError(t, err)
	assert.False(t, result.Cached)
}

func TestComputeDelta_SampleLimitBoundsFetch(t *testing.T) {
	engine, client, _ := newTestEngine(delta.Options{SampleLimit: 10})

	records := make([]model.ExternalRecord, 0, 200)
	for i := 0; i < 200; i++ {
		records = append(records, externalRecord(model.NewID(), "bulk@x.com", "retail"))
	}
	client.Seed(records)

	result, err := engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, false)
	require.NoError(t, err)
	assert.Equal(t, 10, result.ExternalTotal)
	assert.Len(t, result.NewSamples, 10)
}

func TestComputeDelta_Validation(t *testing.T) {
	engine, _, _ := newTestEngine(delta.Options{})

	_, err := engine.ComputeDelta(context.Background(), "", "woocommerce", model.SyncFilter{}, false)
	assert.True(t, errors.Is(err, exception.ErrValidation))

	_, err = engine.ComputeDelta(context.Background(), "org-1", "", model.SyncFilter{}, false)
	assert.True(t, errors.Is(err, exception.ErrValidation))
}

func TestComputeDelta_UpstreamFailure(t *testing.T) {
	engine, client, store := newTestEngine(delta.Options{})

	client.FailWith(errors.New("connection refused"))
	_, err := engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrUpstream))
	assert.True(t, exception.IsTemporary(err))

	client.FailWith(nil)
	store.FailWith(errors.New("db down"))
	_, err = engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrUpstream))
}

func TestInvalidateEntryAndClearCache(t *testing.T) {
	engine, client, _ := newTestEngine(delta.Options{})
	client.Seed([]model.ExternalRecord{externalRecord("ext-1", "a@x.com", "retail")})

	_, err := engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, false)
	require.NoError(t, err)
	require.Equal(t, 1, engine.Stats().Size)

	engine.InvalidateEntry("org-1", "woocommerce", model.SyncFilter{})
	assert.Equal(t, 0, engine.Stats().Size)

	_, err = engine.ComputeDelta(context.Background(), "org-1", "woocommerce", model.SyncFilter{}, false)
	require.NoError(t, err)
	engine.ClearCache()
	assert.Equal(t, 0, engine.Stats().Size)
}
