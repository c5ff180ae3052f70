package model

import (
	"fmt"
	"time"
)

// ExternalRecord is one record fetched from the external commerce system.
type ExternalRecord struct {
	ID         string            `json:"id"`
	Email      string            `json:"email"`
	Segment    string            `json:"segment"`
	Status     string            `json:"status"`
	Attributes map[string]string `json:"attributes,omitempty"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// LocalRecord is one record held in the local system of record.
type LocalRecord struct {
	EntityID   string            `json:"entityId"`
	ExternalID string            `json:"externalId"`
	Email      string            `json:"email"`
	Segment    string            `json:"segment"`
	Status     string            `json:"status"`
	Attributes map[string]string `json:"attributes,omitempty"`
	UpdatedAt  time.Time         `json:"updatedAt"`
}

// Differs reports whether the local record disagrees with the external one
// on any compared field.
func (l LocalRecord) Differs(e ExternalRecord) bool {
	if l.Email != e.Email || l.Segment != e.Segment || l.Status != e.Status {
		return true
	}
	if len(l.Attributes) != len(e.Attributes) {
		return true
	}
	for k, v := range e.Attributes {
		if l.Attributes[k] != v {
			return true
		}
	}
	return false
}

// DeltaResult is the computed difference between the external source and the
// local state for one (org, source, filter) triple.
type DeltaResult struct {
	OrgID  string
	Source string
	Filter SyncFilter

	// Counts over the sampled external population.
	NewCount      int
	UpdatedCount  int
	DeletedCount  int
	ExternalTotal int

	// Bounded examples of each category.
	NewSamples     []ExternalRecord
	UpdatedSamples []ExternalRecord
	DeletedSamples []LocalRecord

	// PercentageChange is (new+updated+deleted)/externalTotal*100.
	PercentageChange float64

	ComputedAt time.Time
	// Cached reports whether this result was served from the delta cache.
	Cached bool
}

// TotalChanges returns the sum of new, updated, and deleted counts.
func (d DeltaResult) TotalChanges() int {
	return d.NewCount + d.UpdatedCount + d.DeletedCount
}

// CacheKey builds the delta-cache key for an (org, source, filter) triple.
func CacheKey(orgID, source string, filter SyncFilter) string {
	return fmt.Sprintf("%s/%s/%s", orgID, source, filter.CanonicalKey())
}
