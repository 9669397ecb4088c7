package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS REPOSITORY IMPLEMENTATION
// Optimistic concurrency: the version column gates every write. An insert
// races the unique (learner_id, content_id) constraint; an update races
// the version predicate. Either loss surfaces as ErrProgressConflict and
// the caller's retry loop re-reads and re-merges.
// ══════════════════════════════════════════════════════════════════════════════

// ProgressRepository implements learner.ProgressRepository for PostgreSQL.
type ProgressRepository struct {
	conn *Connection
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(conn *Connection) *ProgressRepository {
	return &ProgressRepository{conn: conn}
}

const progressColumns = `
	content_id, status, completion_percentage, time_spent_minutes,
	score, has_score, xp_earned, ai_resources_generated, ai_resources_data,
	last_accessed_at, completed_at, created_at, updated_at, version
`

// Get returns the entry for the (learner, content) pair.
func (r *ProgressRepository) Get(ctx context.Context, learnerID shared.LearnerID, contentID shared.ContentID) (*learner.ProgressEntry, error) {
	query := `SELECT ` + progressColumns + `
		FROM progress_entries
		WHERE learner_id = $1 AND content_id = $2`

	return r.scanEntry(r.conn.QueryRow(ctx, query, learnerID.String(), contentID.String()))
}

// Save inserts or updates the entry. A Version of 0 means insert; anything
// else updates and must match the stored version. On success the caller's
// Version is advanced to the stored one.
func (r *ProgressRepository) Save(ctx context.Context, learnerID shared.LearnerID, entry *learner.ProgressEntry) error {
	aiJSON, err := marshalAIData(entry.AIResourcesData)
	if err != nil {
		return err
	}

	if entry.Version == 0 {
		query := `
			INSERT INTO progress_entries (
				learner_id, content_id, status, completion_percentage,
				time_spent_minutes, score, has_score, xp_earned,
				ai_resources_generated, ai_resources_data,
				last_accessed_at, completed_at, created_at, updated_at, version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)
			ON CONFLICT (learner_id, content_id) DO NOTHING
		`
		result, err := r.conn.Exec(ctx, query,
			learnerID.String(),
			entry.ContentID.String(),
			string(entry.Status),
			entry.CompletionPercentage.Int(),
			entry.TimeSpentMinutes,
			entry.Score,
			entry.HasScore,
			entry.XPEarned,
			entry.AIResourcesGenerated,
			aiJSON,
			entry.LastAccessedAt,
			entry.CompletedAt,
			entry.CreatedAt,
			entry.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert progress entry: %w", err)
		}
		if result.RowsAffected() == 0 {
			// A concurrent insert won the unique constraint race.
			return shared.ErrProgressConflict
		}
		entry.Version = 1
		return nil
	}

	query := `
		UPDATE progress_entries SET
			status = $1,
			completion_percentage = $2,
			time_spent_minutes = $3,
			score = $4,
			has_score = $5,
			xp_earned = $6,
			ai_resources_generated = $7,
			ai_resources_data = $8,
			last_accessed_at = $9,
			completed_at = $10,
			updated_at = $11,
			version = version + 1
		WHERE learner_id = $12 AND content_id = $13 AND version = $14
	`
	result, err := r.conn.Exec(ctx, query,
		string(entry.Status),
		entry.CompletionPercentage.Int(),
		entry.TimeSpentMinutes,
		entry.Score,
		entry.HasScore,
		entry.XPEarned,
		entry.AIResourcesGenerated,
		aiJSON,
		entry.LastAccessedAt,
		entry.CompletedAt,
		entry.UpdatedAt,
		learnerID.String(),
		entry.ContentID.String(),
		entry.Version,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress entry: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrProgressConflict
	}
	entry.Version++
	return nil
}

// ListByLearner returns all entries for a learner, oldest first.
func (r *ProgressRepository) ListByLearner(ctx context.Context, learnerID shared.LearnerID) ([]*learner.ProgressEntry, error) {
	query := `SELECT ` + progressColumns + `
		FROM progress_entries
		WHERE learner_id = $1
		ORDER BY created_at, content_id`

	rows, err := r.conn.Query(ctx, query, learnerID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to list progress entries: %w", err)
	}
	defer rows.Close()

	var entries []*learner.ProgressEntry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func marshalAIData(data map[string]interface{}) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal AI data: %w", err)
	}
	return b, nil
}

func (r *ProgressRepository) scanEntry(row pgx.Row) (*learner.ProgressEntry, error) {
	var (
		e          learner.ProgressEntry
		contentID  string
		status     string
		percentage int
		aiJSON     []byte
	)

	err := row.Scan(
		&contentID, &status, &percentage, &e.TimeSpentMinutes,
		&e.Score, &e.HasScore, &e.XPEarned, &e.AIResourcesGenerated, &aiJSON,
		&e.LastAccessedAt, &e.CompletedAt, &e.CreatedAt, &e.UpdatedAt, &e.Version,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrProgressNotFound
		}
		return nil, fmt.Errorf("failed to scan progress entry: %w", err)
	}

	e.ContentID = shared.ContentID(contentID)
	e.Status = learner.Status(status)
	e.CompletionPercentage = shared.Percentage(percentage)

	if len(aiJSON) > 0 {
		if err := json.Unmarshal(aiJSON, &e.AIResourcesData); err != nil {
			return nil, fmt.Errorf("failed to unmarshal AI data: %w", err)
		}
	}

	return &e, nil
}
