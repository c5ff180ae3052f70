// Package delta computes the difference between the external commerce system
// and the local system of record for one (org, source, filter) triple, and
// memoizes results in a TTL cache so repeated previews do not hammer the
// upstream API.
package delta

import (
	"context"
	"fmt"
	"time"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/core/metrics"
	"github.com/syncline/syncline/pkg/sync/core/port"
	"github.com/syncline/syncline/pkg/sync/support/util/exception"
	logger "github.com/syncline/syncline/pkg/sync/support/util/logger"
)

const moduleName = "delta"

// Options tunes the Delta Engine.
type Options struct {
	// CacheTTL is the time-to-live of memoized delta results.
	CacheTTL time.Duration
	// SampleLimit bounds both the number of external records fetched per
	// computation and the number of examples each change category carries.
	SampleLimit int
}

// Engine computes and caches delta results. Safe for concurrent use.
type Engine struct {
	commerce    port.CommerceClient
	local       port.LocalStore
	recorder    metrics.MetricRecorder
	cache       *ttlCache
	sampleLimit int
}

// NewEngine creates a Delta Engine backed by the given commerce client and
// local store.
func NewEngine(commerce port.CommerceClient, local port.LocalStore, recorder metrics.MetricRecorder, opts Options) *Engine {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.SampleLimit <= 0 {
		opts.SampleLimit = 100
	}
	return &Engine{
		commerce:    commerce,
		local:       local,
		recorder:    recorder,
		cache:       newTTLCache(opts.CacheTTL),
		sampleLimit: opts.SampleLimit,
	}
}

// ComputeDelta returns the delta for (orgID, source, filter). Results are
// served from the cache when a fresh entry exists and skipCache is false;
// a fresh computation always overwrites the cached entry. The returned
// result's Cached flag reports which path served it.
func (e *Engine) ComputeDelta(ctx context.Context, orgID, source string, filter model.SyncFilter, skipCache bool) (*model.DeltaResult, error) {
	if orgID == "" {
		return nil, exception.NewSyncErrorf(moduleName, "organization id is required", exception.ErrValidation)
	}
	if source == "" {
		return nil, exception.NewSyncErrorf(moduleName, "source is required", exception.ErrValidation)
	}

	key := model.CacheKey(orgID, source, filter)
	if !skipCache {
		if cached, ok := e.cache.get(key); ok {
			e.recorder.RecordCacheLookup(ctx, source, true)
			logger.Debugf("Delta cache hit for key '%s'.", key)
			cached.Cached = true
			return &cached, nil
		}
		e.recorder.RecordCacheLookup(ctx, source, false)
	}

	start := time.Now()
	result, err := e.compute(ctx, orgID, source, filter)
	if err != nil {
		return nil, err
	}
	e.recorder.RecordDuration(ctx, "delta_compute", time.Since(start), map[string]string{"source": source})

	e.cache.put(key, *result)
	logger.Debugf("Delta computed for key '%s': %d new, %d updated, %d deleted (%.1f%% change).",
		key, result.NewCount, result.UpdatedCount, result.DeletedCount, result.PercentageChange)
	return result, nil
}

// InvalidateEntry drops the cached result for one (org, source, filter) triple.
func (e *Engine) InvalidateEntry(orgID, source string, filter model.SyncFilter) {
	e.cache.invalidate(model.CacheKey(orgID, source, filter))
}

// ClearCache drops every cached delta result.
func (e *Engine) ClearCache() {
	e.cache.clear()
	logger.Infof("Delta cache cleared.")
}

// Stats returns the live size and keys of the delta cache.
func (e *Engine) Stats() CacheStats {
	return e.cache.stats()
}

// compute fetches the sampled external population and the local state, then
// classifies each record as new, updated, or unchanged, and each local record
// with no external counterpart as deleted.
func (e *Engine) compute(ctx context.Context, orgID, source string, filter model.SyncFilter) (*model.DeltaResult, error) {
	external, err := e.fetchExternal(ctx, filter)
	if err != nil {
		return nil, err
	}

	locals, err := e.local.Query(ctx, orgID, filter)
	if err != nil {
		return nil, exception.NewSyncErrorf(moduleName, "local store query failed: %v", err,
			false, true, fmt.Errorf("%w: %v", exception.ErrUpstream, err))
	}

	localByExternalID := make(map[string]model.LocalRecord, len(locals))
	for _, l := range locals {
		localByExternalID[l.ExternalID] = l
	}

	result := &model.DeltaResult{
		OrgID:         orgID,
		Source:        source,
		Filter:        filter,
		ExternalTotal: len(external),
		ComputedAt:    time.Now(),
	}

	seen := make(map[string]bool, len(external))
	for _, rec := range external {
		seen[rec.ID] = true
		local, exists := localByExternalID[rec.ID]
		switch {
		case !exists:
			result.NewCount++
			if len(result.NewSamples) < e.sampleLimit {
				result.NewSamples = append(result.NewSamples, rec)
			}
		case local.Differs(rec):
			result.UpdatedCount++
			if len(result.UpdatedSamples) < e.sampleLimit {
				result.UpdatedSamples = append(result.UpdatedSamples, rec)
			}
		}
	}

	for _, l := range locals {
		if !seen[l.ExternalID] {
			result.DeletedCount++
			if len(result.DeletedSamples) < e.sampleLimit {
				result.DeletedSamples = append(result.DeletedSamples, l)
			}
		}
	}

	if result.ExternalTotal > 0 {
		result.PercentageChange = float64(result.TotalChanges()) / float64(result.ExternalTotal) * 100
	}
	return result, nil
}

// fetchExternal pages through the commerce API until the sample limit is
// reached or a short page signals the end of the collection.
func (e *Engine) fetchExternal(ctx context.Context, filter model.SyncFilter) ([]model.ExternalRecord, error) {
	var records []model.ExternalRecord
	pageSize := model.DefaultBatchSize
	for page := 0; len(records) < e.sampleLimit; page++ {
		batch, err := e.commerce.ListRecords(ctx, filter, page, pageSize)
		if err != nil {
			return nil, exception.NewSyncErrorf(moduleName, "commerce fetch failed on page %d: %v", page, err,
				false, true, fmt.Errorf("%w: %v", exception.ErrUpstream, err))
		}
		records = append(records, batch...)
		if len(batch) < pageSize {
			break
		}
	}
	if len(records) > e.sampleLimit {
		records = records[:e.sampleLimit]
	}
	return records, nil
}
