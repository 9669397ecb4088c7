package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/badge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/challenge"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
	"github.com/vidya-hub/vidya-progress-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// EARNED BADGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// EarnedBadgeRepository implements badge.EarnedRepository for PostgreSQL.
type EarnedBadgeRepository struct {
	conn *Connection
}

// NewEarnedBadgeRepository creates a new EarnedBadgeRepository.
func NewEarnedBadgeRepository(conn *Connection) *EarnedBadgeRepository {
	return &EarnedBadgeRepository{conn: conn}
}

// ListByLearner returns the learner's earned badges, earliest first.
func (r *EarnedBadgeRepository) ListByLearner(ctx context.Context, learnerID shared.LearnerID) ([]badge.EarnedBadge, error) {
	query := `
		SELECT learner_id, badge_id, earned_at
		FROM earned_badges
		WHERE learner_id = $1
		ORDER BY earned_at, badge_id
	`

	rows, err := r.conn.Query(ctx, query, learnerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list earned badges: %w", err)
	}
	defer rows.Close()

	var earned []badge.EarnedBadge
	for rows.Next() {
		var e badge.EarnedBadge
		if err := rows.Scan(&e.LearnerID, &e.BadgeID, &e.EarnedAt); err != nil {
			return nil, fmt.Errorf("failed to scan earned badge: %w", err)
		}
		earned = append(earned, e)
	}
	return earned, rows.Err()
}

// EarnedSet returns the learner's earned badge IDs as a set.
func (r *EarnedBadgeRepository) EarnedSet(ctx context.Context, learnerID shared.LearnerID) (map[string]bool, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT badge_id FROM earned_badges WHERE learner_id = $1`, learnerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query earned badges: %w", err)
	}
	defer rows.Close()

	set := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan badge id: %w", err)
		}
		set[id] = true
	}
	return set, rows.Err()
}

// RecordBatch records newly earned badges inside one transaction, so all
// badges from one event land together or not at all. ON CONFLICT DO
// NOTHING on (learner_id, badge_id) makes re-recording under retry a
// no-op instead of a duplicate.
func (r *EarnedBadgeRepository) RecordBatch(ctx context.Context, learnerID shared.LearnerID, earned []badge.EarnedBadge) error {
	if len(earned) == 0 {
		return nil
	}

	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `
			INSERT INTO earned_badges (learner_id, badge_id, xp_reward, earned_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (learner_id, badge_id) DO NOTHING
		`
		for _, e := range earned {
			xp := 0
			if b, ok := badge.Find(e.BadgeID); ok {
				xp = b.XPReward
			}
			if _, err := tx.Exec(ctx, query, learnerID.String(), e.BadgeID, xp, e.EarnedAt); err != nil {
				return fmt.Errorf("failed to record badge %s: %w", e.BadgeID, err)
			}
		}
		return nil
	})
}

// SumXP returns the total XP reward over the learner's earned badges.
func (r *EarnedBadgeRepository) SumXP(ctx context.Context, learnerID shared.LearnerID) (int, error) {
	var total int
	err := r.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(xp_reward), 0) FROM earned_badges WHERE learner_id = $1`,
		learnerID.String(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum badge XP: %w", err)
	}
	return total, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CHALLENGE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// ChallengeRepository implements challenge.Repository for PostgreSQL.
type ChallengeRepository struct {
	conn *Connection
}

// NewChallengeRepository creates a new ChallengeRepository.
func NewChallengeRepository(conn *Connection) *ChallengeRepository {
	return &ChallengeRepository{conn: conn}
}

// GetForDay returns the learner's challenge for the given day.
func (r *ChallengeRepository) GetForDay(ctx context.Context, learnerID shared.LearnerID, day time.Time) (*challenge.Challenge, error) {
	query := `
		SELECT learner_id, day, template_id, title, description, kind,
			   target, progress, completed, xp_reward, completed_at,
			   created_at, updated_at
		FROM daily_challenges
		WHERE learner_id = $1 AND day = $2
	`

	row := r.conn.QueryRow(ctx, query, learnerID.String(), timeutil.StartOfDay(day))

	var (
		c          challenge.Challenge
		learnerID2 string
		kind       string
	)
	err := row.Scan(
		&learnerID2, &c.Day, &c.TemplateID, &c.Title, &c.Description, &kind,
		&c.Target, &c.Progress, &c.Completed, &c.XPReward, &c.CompletedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("failed to scan challenge: %w", err)
	}

	c.LearnerID = shared.LearnerID(learnerID2)
	c.Kind = challenge.Kind(kind)
	c.Day = timeutil.StartOfDay(c.Day)
	return &c, nil
}

// Save inserts or updates the challenge for its (learner, day) key. The
// upsert keeps the day's instance unique even when materialization races
// between a read and the gamification flow.
func (r *ChallengeRepository) Save(ctx context.Context, c *challenge.Challenge) error {
	query := `
		INSERT INTO daily_challenges (
			learner_id, day, template_id, title, description, kind,
			target, progress, completed, xp_reward, completed_at,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (learner_id, day) DO UPDATE SET
			progress = EXCLUDED.progress,
			completed = EXCLUDED.completed,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.conn.Exec(ctx, query,
		c.LearnerID.String(),
		c.Day,
		c.TemplateID,
		c.Title,
		c.Description,
		string(c.Kind),
		c.Target,
		c.Progress,
		c.Completed,
		c.XPReward,
		c.CompletedAt,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save challenge: %w", err)
	}
	return nil
}

// SumCompletedRewards returns the total XP over completed challenges.
func (r *ChallengeRepository) SumCompletedRewards(ctx context.Context, learnerID shared.LearnerID) (int, error) {
	var total int
	err := r.conn.QueryRow(ctx,
		`SELECT COALESCE(SUM(xp_reward), 0) FROM daily_challenges WHERE learner_id = $1 AND completed`,
		learnerID.String(),
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum challenge rewards: %w", err)
	}
	return total, nil
}
