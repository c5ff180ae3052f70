// Package memory provides in-memory implementations of the commerce client
// and local store ports, suitable for testing and for running the engine
// without real external systems.
package memory

import (
	"context"
	"fmt"
	"sync"

	model "github.com/syncline/syncline/pkg/sync/core/domain/model"
	"github.com/syncline/syncline/pkg/sync/core/port"
)

// MemoryCommerceClient is an in-memory implementation of the CommerceClient
// interface backed by a seeded record list.
type MemoryCommerceClient struct {
	mu      sync.RWMutex
	records []model.ExternalRecord
	failure error
}

// NewMemoryCommerceClient creates an empty client.
func NewMemoryCommerceClient() *MemoryCommerceClient {
	return &MemoryCommerceClient{}
}

// Seed replaces the backing record set.
func (c *MemoryCommerceClient) Seed(records []model.ExternalRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append([]model.ExternalRecord(nil), records...)
}

// FailWith makes every subsequent call fail with err, simulating an
// unreachable upstream. Pass nil to heal.
func (c *MemoryCommerceClient) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failure = err
}

// ListRecords returns one page of records matching the filter.
func (c *MemoryCommerceClient) ListRecords(ctx context.Context, filter model.SyncFilter, page, pageSize int) ([]model.ExternalRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.failure != nil {
		return nil, c.failure
	}
	if page < 0 || pageSize <= 0 {
		return nil, fmt.Errorf("invalid pagination: page %d, size %d", page, pageSize)
	}

	matched := make([]model.ExternalRecord, 0)
	for _, rec := range c.records {
		if filter.Matches(rec) {
			matched = append(matched, rec)
		}
	}

	start := page * pageSize
	if start >= len(matched) {
		return []model.ExternalRecord{}, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return append([]model.ExternalRecord(nil), matched[start:end]...), nil
}

// GetRecord fetches a single record by its id.
func (c *MemoryCommerceClient) GetRecord(ctx context.Context, id string) (model.ExternalRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.failure != nil {
		return model.ExternalRecord{}, c.failure
	}
	for _, rec := range c.records {
		if rec.ID == id {
			return rec, nil
		}
	}
	return model.ExternalRecord{}, fmt.Errorf("external record '%s' not found", id)
}

var _ port.CommerceClient = (*MemoryCommerceClient)(nil)

// ConflictRule inspects an incoming record and returns a ConflictError when
// the write should be treated as an item-level conflict, nil otherwise.
type ConflictRule func(orgID string, rec model.ExternalRecord) *port.ConflictError

// MemoryLocalStore is an in-memory implementation of the LocalStore
// interface, keyed by organization and external id.
type MemoryLocalStore struct {
	mu      sync.RWMutex
	records map[string]map[string]model.LocalRecord
	rules   []ConflictRule
	failure error
}

// NewMemoryLocalStore creates an empty store.
func NewMemoryLocalStore() *MemoryLocalStore {
	return &MemoryLocalStore{
		records: make(map[string]map[string]model.LocalRecord),
	}
}

// AddConflictRule installs a rule consulted before every upsert.
func (s *MemoryLocalStore) AddConflictRule(rule ConflictRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, rule)
}

// FailWith makes every subsequent call fail with err. Pass nil to heal.
func (s *MemoryLocalStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// SeedLocal inserts a local record directly, bypassing conflict rules.
func (s *MemoryLocalStore) SeedLocal(orgID string, rec model.LocalRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.records[orgID] == nil {
		s.records[orgID] = make(map[string]model.LocalRecord)
	}
	s.records[orgID][rec.ExternalID] = rec
}

// Query returns the local records of an organization matching the filter.
func (s *MemoryLocalStore) Query(ctx context.Context, orgID string, filter model.SyncFilter) ([]model.LocalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}

	out := make([]model.LocalRecord, 0)
	for _, rec := range s.records[orgID] {
		if filter.Matches(model.ExternalRecord{
			ID:      rec.ExternalID,
			Email:   rec.Email,
			Segment: rec.Segment,
			Status:  rec.Status,
		}) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Upsert inserts or updates one local record from its external counterpart.
func (s *MemoryLocalStore) Upsert(ctx context.Context, orgID string, rec model.ExternalRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return false, s.failure
	}
	for _, rule := range s.rules {
		if ce := rule(orgID, rec); ce != nil {
			return false, ce
		}
	}

	if s.records[orgID] == nil {
		s.records[orgID] = make(map[string]model.LocalRecord)
	}
	existing, ok := s.records[orgID][rec.ID]

	entityID := existing.EntityID
	if !ok {
		entityID = model.NewID()
	}
	s.records[orgID][rec.ID] = model.LocalRecord{
		EntityID:   entityID,
		ExternalID: rec.ID,
		Email:      rec.Email,
		Segment:    rec.Segment,
		Status:     rec.Status,
		Attributes: rec.Attributes,
		UpdatedAt:  rec.UpdatedAt,
	}
	return !ok, nil
}

// Count returns the number of local records held for an organization.
func (s *MemoryLocalStore) Count(orgID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[orgID])
}

var _ port.LocalStore = (*MemoryLocalStore)(nil)
