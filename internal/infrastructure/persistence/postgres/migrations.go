package postgres

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE LEARNERS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create learners table
-- Version: 001

CREATE TABLE IF NOT EXISTS learners (
    id UUID PRIMARY KEY,
    email VARCHAR(255) NOT NULL UNIQUE,
    name VARCHAR(100) NOT NULL,
    password_hash VARCHAR(100) NOT NULL DEFAULT '',
    grade VARCHAR(20) NOT NULL DEFAULT 'all',
    stream VARCHAR(20) NOT NULL DEFAULT 'all',
    role VARCHAR(20) NOT NULL DEFAULT 'student',
    active BOOLEAN NOT NULL DEFAULT TRUE,

    -- Derived statistics snapshot (cache of the recompute; re-derivable
    -- from progress_entries + earned_badges + daily_challenges)
    stats JSONB NOT NULL DEFAULT '{}'::jsonb,

    -- Incrementally maintained engagement counters
    counters JSONB NOT NULL DEFAULT '{}'::jsonb,

    -- AI interaction history, newest last, capped in the application
    ai_interactions JSONB NOT NULL DEFAULT '[]'::jsonb,

    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    last_login_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_grade CHECK (grade IN ('10th', '11th', '12th', 'graduate', 'all')),
    CONSTRAINT valid_stream CHECK (stream IN ('science', 'commerce', 'arts', 'all')),
    CONSTRAINT valid_role CHECK (role IN ('student', 'teacher', 'admin'))
);

CREATE INDEX IF NOT EXISTS idx_learners_email ON learners(email);
CREATE INDEX IF NOT EXISTS idx_learners_active ON learners(active) WHERE active;
CREATE INDEX IF NOT EXISTS idx_learners_created_at ON learners(created_at);

-- Leaderboard scan: total XP lives inside the stats snapshot
CREATE INDEX IF NOT EXISTS idx_learners_total_xp
    ON learners (((stats->>'total_xp')::int) DESC, created_at ASC)
    WHERE active;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE PROGRESS ENTRIES
// The UNIQUE (learner_id, content_id) constraint plus the version column
// are what make the ledger's upsert-merge race-safe.
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create progress_entries table
-- Version: 002

CREATE TABLE IF NOT EXISTS progress_entries (
    id BIGSERIAL PRIMARY KEY,
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    content_id VARCHAR(100) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'not_started',
    completion_percentage INTEGER NOT NULL DEFAULT 0,
    time_spent_minutes INTEGER NOT NULL DEFAULT 0,
    score INTEGER NOT NULL DEFAULT 0,
    has_score BOOLEAN NOT NULL DEFAULT FALSE,
    xp_earned INTEGER NOT NULL DEFAULT 0,
    ai_resources_generated BOOLEAN NOT NULL DEFAULT FALSE,
    ai_resources_data JSONB,
    last_accessed_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    version BIGINT NOT NULL DEFAULT 1,

    CONSTRAINT uq_progress_learner_content UNIQUE (learner_id, content_id),
    CONSTRAINT valid_progress_status CHECK (status IN ('not_started', 'in_progress', 'completed')),
    CONSTRAINT valid_percentage CHECK (completion_percentage BETWEEN 0 AND 100),
    CONSTRAINT valid_time_spent CHECK (time_spent_minutes >= 0)
);

CREATE INDEX IF NOT EXISTS idx_progress_learner ON progress_entries(learner_id, created_at);
CREATE INDEX IF NOT EXISTS idx_progress_completed
    ON progress_entries(learner_id, completed_at)
    WHERE status = 'completed';
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE GAMIFICATION TABLES
// earned_badges carries the (learner, badge) uniqueness that makes badge
// recording idempotent under retry; daily_challenges is keyed by
// (learner, day) so a day's instance is never re-rolled.
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create earned_badges and daily_challenges tables
-- Version: 003

CREATE TABLE IF NOT EXISTS earned_badges (
    id BIGSERIAL PRIMARY KEY,
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    badge_id VARCHAR(50) NOT NULL,
    xp_reward INTEGER NOT NULL DEFAULT 0,
    earned_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_earned_learner_badge UNIQUE (learner_id, badge_id)
);

CREATE INDEX IF NOT EXISTS idx_earned_badges_learner ON earned_badges(learner_id, earned_at);

CREATE TABLE IF NOT EXISTS daily_challenges (
    id BIGSERIAL PRIMARY KEY,
    learner_id UUID NOT NULL REFERENCES learners(id) ON DELETE CASCADE,
    day DATE NOT NULL,
    template_id VARCHAR(50) NOT NULL,
    title VARCHAR(100) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    kind VARCHAR(30) NOT NULL,
    target INTEGER NOT NULL,
    progress INTEGER NOT NULL DEFAULT 0,
    completed BOOLEAN NOT NULL DEFAULT FALSE,
    xp_reward INTEGER NOT NULL DEFAULT 0,
    completed_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT uq_challenge_learner_day UNIQUE (learner_id, day),
    CONSTRAINT valid_challenge_kind CHECK (kind IN ('courses', 'quiz_score', 'study_time', 'perfect_quiz', 'new_category')),
    CONSTRAINT valid_challenge_progress CHECK (progress >= 0 AND progress <= target)
);

CREATE INDEX IF NOT EXISTS idx_challenges_learner_completed
    ON daily_challenges(learner_id)
    WHERE completed;
`
