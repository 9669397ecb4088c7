// Package memory provides an in-memory implementation of all repository
// interfaces. It backs single-node deployments without a database and the
// test suites; semantics (uniqueness, optimistic concurrency, batch
// atomicity) match the PostgreSQL implementation.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/badge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/challenge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/timeutil"
)

// Store holds all in-memory state behind one lock. The typed repositories
// returned by Learners, Progress, Badges and Challenges are views over the
// same state.
type Store struct {
	mu sync.RWMutex

	learners map[shared.LearnerID]*learner.Learner
	emails   map[string]shared.LearnerID

	// progress entries keyed by learner, then content.
	progress map[shared.LearnerID]map[shared.ContentID]*learner.ProgressEntry

	// earned badges keyed by learner; insertion order preserved.
	earned map[shared.LearnerID][]badge.EarnedBadge

	// challenges keyed by learner + day.
	challenges map[string]*challenge.Challenge
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		learners:   make(map[shared.LearnerID]*learner.Learner),
		emails:     make(map[string]shared.LearnerID),
		progress:   make(map[shared.LearnerID]map[shared.ContentID]*learner.ProgressEntry),
		earned:     make(map[shared.LearnerID][]badge.EarnedBadge),
		challenges: make(map[string]*challenge.Challenge),
	}
}

// Learners returns the learner repository view.
func (s *Store) Learners() learner.Repository { return &learnerRepo{s} }

// Progress returns the progress repository view.
func (s *Store) Progress() learner.ProgressRepository { return &progressRepo{s} }

// Badges returns the earned-badge repository view.
func (s *Store) Badges() badge.EarnedRepository { return &badgeRepo{s} }

// Challenges returns the challenge repository view.
func (s *Store) Challenges() challenge.Repository { return &challengeRepo{s} }

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type learnerRepo struct{ s *Store }

func (r *learnerRepo) Create(_ context.Context, l *learner.Learner) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.learners[l.ID]; ok {
		return shared.ErrLearnerAlreadyExists
	}
	email := strings.ToLower(l.Email)
	if _, ok := r.s.emails[email]; ok {
		return shared.ErrLearnerAlreadyExists
	}

	r.s.learners[l.ID] = cloneLearner(l)
	r.s.emails[email] = l.ID
	return nil
}

func (r *learnerRepo) GetByID(_ context.Context, id shared.LearnerID) (*learner.Learner, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	l, ok := r.s.learners[id]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	return cloneLearner(l), nil
}

func (r *learnerRepo) GetByEmail(_ context.Context, email string) (*learner.Learner, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	id, ok := r.s.emails[strings.ToLower(email)]
	if !ok {
		return nil, shared.ErrLearnerNotFound
	}
	return cloneLearner(r.s.learners[id]), nil
}

func (r *learnerRepo) Update(_ context.Context, l *learner.Learner) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.learners[l.ID]; !ok {
		return shared.ErrLearnerNotFound
	}
	r.s.learners[l.ID] = cloneLearner(l)
	return nil
}

func (r *learnerRepo) List(_ context.Context, opts learner.ListOptions) ([]*learner.Learner, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := make([]*learner.Learner, 0, len(r.s.learners))
	for _, l := range r.s.learners {
		if !l.Active && !opts.IncludeInactive {
			continue
		}
		all = append(all, cloneLearner(l))
	}

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(all) {
			return nil, nil
		}
		all = all[opts.Offset:]
	}
	if opts.Limit > 0 && len(all) > opts.Limit {
		all = all[:opts.Limit]
	}
	return all, nil
}

func (r *learnerRepo) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.learners), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type progressRepo struct{ s *Store }

func (r *progressRepo) Get(_ context.Context, learnerID shared.LearnerID, contentID shared.ContentID) (*learner.ProgressEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byContent, ok := r.s.progress[learnerID]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	e, ok := byContent[contentID]
	if !ok {
		return nil, shared.ErrProgressNotFound
	}
	return cloneEntry(e), nil
}

// Save inserts or updates the entry under optimistic concurrency. The
// entry's Version must match the stored one (0 for inserts); on success
// both the stored and the caller's Version are incremented.
func (r *progressRepo) Save(_ context.Context, learnerID shared.LearnerID, entry *learner.ProgressEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	byContent, ok := r.s.progress[learnerID]
	if !ok {
		byContent = make(map[shared.ContentID]*learner.ProgressEntry)
		r.s.progress[learnerID] = byContent
	}

	var storedVersion int64
	if stored, ok := byContent[entry.ContentID]; ok {
		storedVersion = stored.Version
	}
	if entry.Version != storedVersion {
		return shared.ErrProgressConflict
	}

	entry.Version++
	byContent[entry.ContentID] = cloneEntry(entry)
	return nil
}

func (r *progressRepo) ListByLearner(_ context.Context, learnerID shared.LearnerID) ([]*learner.ProgressEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	byContent := r.s.progress[learnerID]
	entries := make([]*learner.ProgressEntry, 0, len(byContent))
	for _, e := range byContent {
		entries = append(entries, cloneEntry(e))
	}

	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ContentID < entries[j].ContentID
	})
	return entries, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EARNED BADGE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type badgeRepo struct{ s *Store }

func (r *badgeRepo) ListByLearner(_ context.Context, learnerID shared.LearnerID) ([]badge.EarnedBadge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]badge.EarnedBadge, len(r.s.earned[learnerID]))
	copy(out, r.s.earned[learnerID])
	return out, nil
}

func (r *badgeRepo) EarnedSet(_ context.Context, learnerID shared.LearnerID) (map[string]bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	set := make(map[string]bool, len(r.s.earned[learnerID]))
	for _, e := range r.s.earned[learnerID] {
		set[e.BadgeID] = true
	}
	return set, nil
}

// RecordBatch records newly earned badges as one atomic batch; badges the
// learner already has are skipped silently.
func (r *badgeRepo) RecordBatch(_ context.Context, learnerID shared.LearnerID, earned []badge.EarnedBadge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	have := make(map[string]bool, len(r.s.earned[learnerID]))
	for _, e := range r.s.earned[learnerID] {
		have[e.BadgeID] = true
	}

	for _, e := range earned {
		if have[e.BadgeID] {
			continue
		}
		have[e.BadgeID] = true
		r.s.earned[learnerID] = append(r.s.earned[learnerID], e)
	}
	return nil
}

func (r *badgeRepo) SumXP(_ context.Context, learnerID shared.LearnerID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	total := 0
	for _, e := range r.s.earned[learnerID] {
		if b, ok := badge.Find(e.BadgeID); ok {
			total += b.XPReward
		}
	}
	return total, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

type challengeRepo struct{ s *Store }

func challengeKey(learnerID shared.LearnerID, day time.Time) string {
	return learnerID.String() + "/" + timeutil.DayKey(day)
}

func (r *challengeRepo) GetForDay(_ context.Context, learnerID shared.LearnerID, day time.Time) (*challenge.Challenge, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ch, ok := r.s.challenges[challengeKey(learnerID, timeutil.StartOfDay(day))]
	if !ok {
		return nil, shared.ErrChallengeNotFound
	}
	c := *ch
	return &c, nil
}

func (r *challengeRepo) Save(_ context.Context, c *challenge.Challenge) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored := *c
	r.s.challenges[challengeKey(c.LearnerID, c.Day)] = &stored
	return nil
}

func (r *challengeRepo) SumCompletedRewards(_ context.Context, learnerID shared.LearnerID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	prefix := learnerID.String() + "/"
	total := 0
	for key, ch := range r.s.challenges {
		if ch.Completed && strings.HasPrefix(key, prefix) {
			total += ch.XPReward
		}
	}
	return total, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CLONE HELPERS
// The store hands out copies so callers never alias stored state.
// ══════════════════════════════════════════════════════════════════════════════

func cloneLearner(l *learner.Learner) *learner.Learner {
	c := *l
	if l.AIInteractions != nil {
		c.AIInteractions = make([]learner.AIInteraction, len(l.AIInteractions))
		copy(c.AIInteractions, l.AIInteractions)
	}
	if l.Counters.SeenCategories != nil {
		c.Counters.SeenCategories = make([]string, len(l.Counters.SeenCategories))
		copy(c.Counters.SeenCategories, l.Counters.SeenCategories)
	}
	return &c
}

func cloneEntry(e *learner.ProgressEntry) *learner.ProgressEntry {
	c := *e
	if e.CompletedAt != nil {
		at := *e.CompletedAt
		c.CompletedAt = &at
	}
	if e.AIResourcesData != nil {
		c.AIResourcesData = make(map[string]interface{}, len(e.AIResourcesData))
		for k, v := range e.AIResourcesData {
			c.AIResourcesData[k] = v
		}
	}
	return &c
}
