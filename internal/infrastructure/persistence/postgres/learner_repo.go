package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vidya-hub/vidya-progress-hub/internal/domain/learner"
	"github.com/vidya-hub/vidya-progress-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER REPOSITORY IMPLEMENTATION
// The statistics snapshot, engagement counters and AI interaction history
// are stored as JSONB documents: they are derived or append-only data the
// relational layer never queries field-by-field, except the total_xp key
// the leaderboard index reads.
// ══════════════════════════════════════════════════════════════════════════════

// LearnerRepository implements learner.Repository for PostgreSQL.
type LearnerRepository struct {
	conn *Connection
}

// NewLearnerRepository creates a new LearnerRepository.
func NewLearnerRepository(conn *Connection) *LearnerRepository {
	return &LearnerRepository{conn: conn}
}

const learnerColumns = `
	id, email, name, password_hash, grade, stream, role, active,
	stats, counters, ai_interactions, created_at, updated_at, last_login_at
`

// Create creates a new learner.
func (r *LearnerRepository) Create(ctx context.Context, l *learner.Learner) error {
	query := `
		INSERT INTO learners (
			id, email, name, password_hash, grade, stream, role, active,
			stats, counters, ai_interactions, created_at, updated_at, last_login_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	statsJSON, countersJSON, aiJSON, err := marshalLearnerDocs(l)
	if err != nil {
		return err
	}

	_, err = r.conn.Exec(ctx, query,
		l.ID.String(),
		l.Email,
		l.Name,
		l.PasswordHash,
		string(l.Grade),
		string(l.Stream),
		string(l.Role),
		l.Active,
		statsJSON,
		countersJSON,
		aiJSON,
		l.CreatedAt,
		l.UpdatedAt,
		l.LastLoginAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return shared.ErrLearnerAlreadyExists
		}
		return fmt.Errorf("failed to create learner: %w", err)
	}

	return nil
}

// GetByID returns a learner by internal ID.
func (r *LearnerRepository) GetByID(ctx context.Context, id shared.LearnerID) (*learner.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners WHERE id = $1`
	return r.scanLearner(r.conn.QueryRow(ctx, query, id.String()))
}

// GetByEmail returns a learner by email.
func (r *LearnerRepository) GetByEmail(ctx context.Context, email string) (*learner.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners WHERE email = lower($1)`
	return r.scanLearner(r.conn.QueryRow(ctx, query, email))
}

// Update persists changes to a learner.
func (r *LearnerRepository) Update(ctx context.Context, l *learner.Learner) error {
	query := `
		UPDATE learners SET
			email = $1,
			name = $2,
			password_hash = $3,
			grade = $4,
			stream = $5,
			role = $6,
			active = $7,
			stats = $8,
			counters = $9,
			ai_interactions = $10,
			updated_at = $11,
			last_login_at = $12
		WHERE id = $13
	`

	statsJSON, countersJSON, aiJSON, err := marshalLearnerDocs(l)
	if err != nil {
		return err
	}

	result, err := r.conn.Exec(ctx, query,
		l.Email,
		l.Name,
		l.PasswordHash,
		string(l.Grade),
		string(l.Stream),
		string(l.Role),
		l.Active,
		statsJSON,
		countersJSON,
		aiJSON,
		l.UpdatedAt,
		l.LastLoginAt,
		l.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update learner: %w", err)
	}
	if result.RowsAffected() == 0 {
		return shared.ErrLearnerNotFound
	}

	return nil
}

// List returns learners ordered by creation time, oldest first.
func (r *LearnerRepository) List(ctx context.Context, opts learner.ListOptions) ([]*learner.Learner, error) {
	query := `SELECT ` + learnerColumns + ` FROM learners`
	if !opts.IncludeInactive {
		query += ` WHERE active`
	}
	query += ` ORDER BY created_at, id`

	args := []interface{}{}
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, opts.Limit)
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, opts.Offset)
	}

	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list learners: %w", err)
	}
	defer rows.Close()

	var learners []*learner.Learner
	for rows.Next() {
		l, err := r.scanLearner(rows)
		if err != nil {
			return nil, err
		}
		learners = append(learners, l)
	}
	return learners, rows.Err()
}

// Count returns the total number of learners.
func (r *LearnerRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM learners`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count learners: %w", err)
	}
	return count, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning & JSONB documents
// ─────────────────────────────────────────────────────────────────────────────

// statsDoc mirrors learner.StatisticsSnapshot in JSONB. The total_xp key is
// load-bearing: the leaderboard index expression reads it.
type statsDoc struct {
	TotalXP               int       `json:"total_xp"`
	ModulesCompleted      int       `json:"modules_completed"`
	CurrentStreak         int       `json:"current_streak"`
	LongestStreak         int       `json:"longest_streak"`
	TotalStudyTimeMinutes int       `json:"total_study_time_minutes"`
	AverageScore          float64   `json:"average_score"`
	LastActiveAt          time.Time `json:"last_active_at"`
}

type countersDoc struct {
	PerfectQuizzes     int       `json:"perfect_quizzes"`
	PerfectCourses     int       `json:"perfect_courses"`
	NightCompletions   int       `json:"night_completions"`
	MorningCompletions int       `json:"morning_completions"`
	CompletionsToday   int       `json:"completions_today"`
	TodayDate          time.Time `json:"today_date"`
	SeenCategories     []string  `json:"seen_categories,omitempty"`
	LastActivityAt     time.Time `json:"last_activity_at"`
}

type aiInteractionDoc struct {
	Topic       string    `json:"topic"`
	Subject     string    `json:"subject,omitempty"`
	Difficulty  string    `json:"difficulty,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	Rating      int       `json:"rating,omitempty"`
	Feedback    string    `json:"feedback,omitempty"`
}

func marshalLearnerDocs(l *learner.Learner) (stats, counters, ai []byte, err error) {
	stats, err = json.Marshal(statsDoc{
		TotalXP:               l.Stats.TotalXP.Int(),
		ModulesCompleted:      l.Stats.ModulesCompleted,
		CurrentStreak:         l.Stats.CurrentStreak,
		LongestStreak:         l.Stats.LongestStreak,
		TotalStudyTimeMinutes: l.Stats.TotalStudyTimeMinutes,
		AverageScore:          l.Stats.AverageScore,
		LastActiveAt:          l.Stats.LastActiveAt,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal stats: %w", err)
	}

	counters, err = json.Marshal(countersDoc{
		PerfectQuizzes:     l.Counters.PerfectQuizzes,
		PerfectCourses:     l.Counters.PerfectCourses,
		NightCompletions:   l.Counters.NightCompletions,
		MorningCompletions: l.Counters.MorningCompletions,
		CompletionsToday:   l.Counters.CompletionsToday,
		TodayDate:          l.Counters.TodayDate,
		SeenCategories:     l.Counters.SeenCategories,
		LastActivityAt:     l.Counters.LastActivityAt,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal counters: %w", err)
	}

	docs := make([]aiInteractionDoc, 0, len(l.AIInteractions))
	for _, in := range l.AIInteractions {
		docs = append(docs, aiInteractionDoc{
			Topic:       in.Topic,
			Subject:     in.Subject,
			Difficulty:  in.Difficulty,
			GeneratedAt: in.GeneratedAt,
			Rating:      in.Rating,
			Feedback:    in.Feedback,
		})
	}
	ai, err = json.Marshal(docs)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal AI interactions: %w", err)
	}

	return stats, counters, ai, nil
}

func (r *LearnerRepository) scanLearner(row pgx.Row) (*learner.Learner, error) {
	var (
		l            learner.Learner
		id           string
		grade        string
		stream       string
		role         string
		statsJSON    []byte
		countersJSON []byte
		aiJSON       []byte
	)

	err := row.Scan(
		&id, &l.Email, &l.Name, &l.PasswordHash, &grade, &stream, &role, &l.Active,
		&statsJSON, &countersJSON, &aiJSON, &l.CreatedAt, &l.UpdatedAt, &l.LastLoginAt,
	)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrLearnerNotFound
		}
		return nil, fmt.Errorf("failed to scan learner: %w", err)
	}

	l.ID = shared.LearnerID(id)
	l.Grade = learner.Grade(grade)
	l.Stream = learner.Stream(stream)
	l.Role = learner.Role(role)

	var stats statsDoc
	if len(statsJSON) > 0 {
		if err := json.Unmarshal(statsJSON, &stats); err != nil {
			return nil, fmt.Errorf("failed to unmarshal stats: %w", err)
		}
	}
	l.Stats = learner.StatisticsSnapshot{
		TotalXP:               shared.XP(stats.TotalXP),
		ModulesCompleted:      stats.ModulesCompleted,
		CurrentStreak:         stats.CurrentStreak,
		LongestStreak:         stats.LongestStreak,
		TotalStudyTimeMinutes: stats.TotalStudyTimeMinutes,
		AverageScore:          stats.AverageScore,
		LastActiveAt:          stats.LastActiveAt,
	}

	var counters countersDoc
	if len(countersJSON) > 0 {
		if err := json.Unmarshal(countersJSON, &counters); err != nil {
			return nil, fmt.Errorf("failed to unmarshal counters: %w", err)
		}
	}
	l.Counters = learner.EngagementCounters{
		PerfectQuizzes:     counters.PerfectQuizzes,
		PerfectCourses:     counters.PerfectCourses,
		NightCompletions:   counters.NightCompletions,
		MorningCompletions: counters.MorningCompletions,
		CompletionsToday:   counters.CompletionsToday,
		TodayDate:          counters.TodayDate,
		SeenCategories:     counters.SeenCategories,
		LastActivityAt:     counters.LastActivityAt,
	}

	var docs []aiInteractionDoc
	if len(aiJSON) > 0 {
		if err := json.Unmarshal(aiJSON, &docs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal AI interactions: %w", err)
		}
	}
	for _, d := range docs {
		l.AIInteractions = append(l.AIInteractions, learner.AIInteraction{
			Topic:       d.Topic,
			Subject:     d.Subject,
			Difficulty:  d.Difficulty,
			GeneratedAt: d.GeneratedAt,
			Rating:      d.Rating,
			Feedback:    d.Feedback,
		})
	}

	return &l, nil
}
