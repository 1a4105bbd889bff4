package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderboardAddScoresAccumulates(t *testing.T) {
	lb := NewLeaderboard()

	alice, bob := NewId(), NewId()

	lb.AddScores([]ScoreEntry{{Id: alice, Points: 500}, {Id: bob, Points: 200}})
	lb.AddScores([]ScoreEntry{{Id: alice, Points: 100}})

	current, previous := lb.LastTwoScoresDescending()

	require.Len(t, current.Items, 2)
	assert.Equal(t, alice, current.Items[0].Id)
	assert.Equal(t, 600, current.Items[0].Points)
	assert.Equal(t, bob, current.Items[1].Id)
	assert.Equal(t, 200, current.Items[1].Points)

	require.Len(t, previous.Items, 2)
	assert.Equal(t, 500, previous.Items[0].Points)
}

func TestLeaderboardScoreReflectsRank(t *testing.T) {
	lb := NewLeaderboard()

	alice, bob := NewId(), NewId()
	lb.AddScores([]ScoreEntry{{Id: alice, Points: 100}, {Id: bob, Points: 300}})

	posBob, ok := lb.Score(bob)
	require.True(t, ok)
	assert.Equal(t, 0, posBob.Position)
	assert.Equal(t, 300, posBob.Points)

	posAlice, ok := lb.Score(alice)
	require.True(t, ok)
	assert.Equal(t, 1, posAlice.Position)

	_, ok = lb.Score(NewId())
	assert.False(t, ok)
}

func TestLeaderboardTieBrokenById(t *testing.T) {
	lb := NewLeaderboard()

	a, b := NewId(), NewId()
	lb.AddScores([]ScoreEntry{{Id: a, Points: 100}, {Id: b, Points: 100}})

	current, _ := lb.LastTwoScoresDescending()
	require.Len(t, current.Items, 2)

	if a.String() < b.String() {
		assert.Equal(t, a, current.Items[0].Id)
	} else {
		assert.Equal(t, b, current.Items[0].Id)
	}
}

func TestLeaderboardSummaryMemoizesFirstCall(t *testing.T) {
	lb := NewLeaderboard()

	alice := NewId()
	lb.AddScores([]ScoreEntry{{Id: alice, Points: 500}})
	lb.AddScores([]ScoreEntry{{Id: alice, Points: 0}})

	count, results := lb.HostSummary(true)
	assert.Equal(t, 1, count)
	require.Len(t, results, 2)
	assert.Equal(t, SlideResult{Correct: 1}, results[0])
	assert.Equal(t, SlideResult{Wrong: 1}, results[1])

	// Calling with a different showReal after memoization is ignored: the
	// cached summary's ShowReal sticks.
	_, resultsAgain := lb.HostSummary(false)
	assert.Equal(t, results, resultsAgain)

	history := lb.PlayerSummary(alice, true)
	assert.Equal(t, []int{500, 0}, history)
}

func TestLeaderboardPlayerSummaryBinarizesWhenHidden(t *testing.T) {
	lb := NewLeaderboard()

	alice := NewId()
	lb.AddScores([]ScoreEntry{{Id: alice, Points: 733}})

	history := lb.PlayerSummary(alice, false)
	assert.Equal(t, []int{1}, history)
}

func TestLeaderboardPlayerSummaryUnknownPlayerIsZeroed(t *testing.T) {
	lb := NewLeaderboard()

	lb.AddScores([]ScoreEntry{{Id: NewId(), Points: 100}})

	history := lb.PlayerSummary(NewId(), true)
	assert.Equal(t, []int{0}, history)
}
