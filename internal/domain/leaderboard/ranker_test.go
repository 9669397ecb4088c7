package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRank_OrdersByXPThenTieBreakers(t *testing.T) {
	early := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	ranked := Rank([]Entry{
		{LearnerID: "c", TotalXP: 150, CreatedAt: early},
		{LearnerID: "b", TotalXP: 300, CreatedAt: late},
		{LearnerID: "a", TotalXP: 300, CreatedAt: early},
	})

	require.Len(t, ranked, 3)
	assert.Equal(t, "a", ranked[0].LearnerID)
	assert.Equal(t, "b", ranked[1].LearnerID)
	assert.Equal(t, "c", ranked[2].LearnerID)
	assert.Equal(t, 1, ranked[0].Rank)
	assert.Equal(t, 2, ranked[1].Rank)
	assert.Equal(t, 3, ranked[2].Rank)
}

func TestRank_IdentityTieBreaksByLearnerID(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ranked := Rank([]Entry{
		{LearnerID: "zoe", TotalXP: 100, CreatedAt: at},
		{LearnerID: "amy", TotalXP: 100, CreatedAt: at},
	})

	assert.Equal(t, "amy", ranked[0].LearnerID)
	assert.Equal(t, "zoe", ranked[1].LearnerID)
}

func TestRank_EmptyInputYieldsEmptyNonNil(t *testing.T) {
	ranked := Rank(nil)
	assert.NotNil(t, ranked)
	assert.Empty(t, ranked)
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	input := []Entry{
		{LearnerID: "b", TotalXP: 10},
		{LearnerID: "a", TotalXP: 20},
	}
	_ = Rank(input)
	assert.Equal(t, "b", input[0].LearnerID)
}

func TestRankOf(t *testing.T) {
	ranked := Rank([]Entry{
		{LearnerID: "a", TotalXP: 200},
		{LearnerID: "b", TotalXP: 100},
	})

	assert.Equal(t, 1, RankOf(ranked, "a"))
	assert.Equal(t, 2, RankOf(ranked, "b"))
	assert.Zero(t, RankOf(ranked, "missing"))
}

func TestTop(t *testing.T) {
	ranked := Rank([]Entry{
		{LearnerID: "a", TotalXP: 300},
		{LearnerID: "b", TotalXP: 200},
		{LearnerID: "c", TotalXP: 100},
	})

	top := Top(ranked, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "a", top[0].LearnerID)

	assert.Len(t, Top(ranked, 10), 3)
	// Non-positive n means no limit.
	assert.Len(t, Top(ranked, 0), 3)
}
