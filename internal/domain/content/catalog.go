// Package content defines the contract with the external content layer.
// The progress engine only needs to resolve content descriptors by ID in
// order to validate catalog-backed content and to stamp XP at completion
// time; everything else about content is out of scope.
package content

import (
	"context"
	"strings"
	"sync"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
)

// Category classifies catalog content.
type Category string

const (
	CategoryAcademic       Category = "academic"
	CategorySoftSkills     Category = "soft-skills"
	CategoryCareerGuidance Category = "career-guidance"
	CategoryCurrentAffairs Category = "current-affairs"
)

// IsValid checks that the category is one of the known values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryAcademic, CategorySoftSkills, CategoryCareerGuidance, CategoryCurrentAffairs:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (c Category) String() string {
	return string(c)
}

// DefaultXPReward is used when a descriptor does not specify a reward.
const DefaultXPReward = 10

// Descriptor describes a piece of catalog content as far as the progress
// engine is concerned: its identity, the XP reward granted on completion,
// and its category (used by the new-category challenge).
type Descriptor struct {
	// ID - content identifier.
	ID string

	// Title - human-readable title.
	Title string

	// Category - content category.
	Category Category

	// XPReward - XP granted when a learner completes this content.
	// The reward is stamped onto the progress entry at completion time;
	// later catalog changes never alter already-earned XP.
	XPReward int
}

// Catalog resolves content descriptors by ID.
// AI-session content IDs (prefix "ai-") are never resolved through the
// catalog; callers must check shared.ContentID.IsAISession first.
type Catalog interface {
	// Resolve returns the descriptor for the given content ID.
	// Returns shared.ErrContentNotFound if the ID is unknown.
	Resolve(ctx context.Context, id shared.ContentID) (*Descriptor, error)
}

// ═══════════════════════════════════════════════════════════════════════════
// STATIC CATALOG
// ═══════════════════════════════════════════════════════════════════════════

// StaticCatalog is an in-memory Catalog backed by a fixed set of
// descriptors. Used in tests and in deployments where the catalog is
// seeded at startup by the surrounding application.
type StaticCatalog struct {
	mu      sync.RWMutex
	entries map[string]Descriptor
}

// NewStaticCatalog creates a StaticCatalog with the given descriptors.
func NewStaticCatalog(descriptors ...Descriptor) *StaticCatalog {
	entries := make(map[string]Descriptor, len(descriptors))
	for _, d := range descriptors {
		if d.XPReward <= 0 {
			d.XPReward = DefaultXPReward
		}
		entries[d.ID] = d
	}
	return &StaticCatalog{entries: entries}
}

// Resolve implements Catalog.
func (c *StaticCatalog) Resolve(_ context.Context, id shared.ContentID) (*Descriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	d, ok := c.entries[strings.TrimSpace(id.String())]
	if !ok {
		return nil, shared.ErrContentNotFound
	}
	return &d, nil
}

// Add registers a descriptor, replacing any existing one with the same ID.
func (c *StaticCatalog) Add(d Descriptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if d.XPReward <= 0 {
		d.XPReward = DefaultXPReward
	}
	c.entries[d.ID] = d
}

// Len returns the number of descriptors in the catalog.
func (c *StaticCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
