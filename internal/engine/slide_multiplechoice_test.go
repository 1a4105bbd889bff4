package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock is a Clock whose time only moves when advance is called,
// giving scoring tests exact control over elapsed duration.
type manualClock struct {
	t time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time { return c.t }

func (c *manualClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func twoAnswerMCConfig() MultipleChoiceConfig {
	return MultipleChoiceConfig{
		Title:         "Q1",
		TimeLimit:     10 * time.Second,
		PointsAwarded: 1000,
		Answers: []MultipleChoiceAnswer{
			{Correct: true, Content: TextOrMedia{Text: "A"}},
			{Correct: false, Content: TextOrMedia{Text: "B"}},
		},
	}
}

func submitIndex(t *testing.T, s *MultipleChoiceState, ctx *SlideContext, playerId Id, index int) bool {
	t.Helper()

	payload, err := json.Marshal(IndexPayload{Index: index})
	require.NoError(t, err)

	return s.ReceiveMessage(ctx, playerId, IncomingMessage{Kind: KindPlayerIndexAnswer, Payload: payload})
}

// TestMultipleChoiceSoloCorrectAnswerDecaysScore reproduces spec scenario
// S1: a solo player answering correctly at the halfway point of the time
// limit is credited the linearly-decayed score.
func TestMultipleChoiceSoloCorrectAnswerDecaysScore(t *testing.T) {
	player := NewId()
	watchers := NewWatchers(NewId())
	require.NoError(t, watchers.Add(player, IndividualValue("alice")))

	tunnel := newMemTunnel()
	clock := newManualClock()

	ctx := &SlideContext{
		Watchers:     watchers,
		Leaderboard:  NewLeaderboard(),
		TunnelFinder: registryFinder(map[Id]Tunnel{player: tunnel}),
		Schedule:     noopSchedule,
		Clock:        clock,
	}

	s := NewMultipleChoiceState(twoAnswerMCConfig())

	require.False(t, s.Play(ctx), "nothing submitted yet")
	assert.Equal(t, PhaseAnswers, s.Phase, "introduce_question=0 skips straight to Answers")

	clock.advance(5 * time.Second)

	done := submitIndex(t, s, ctx, player, 0)
	assert.True(t, done, "the only alive player has submitted")
	assert.Equal(t, PhaseAnswersResults, s.Phase)

	pos, ok := ctx.Leaderboard.Score(player)
	require.True(t, ok)
	assert.Equal(t, 750, pos.Points, "floor(1000 * (1 - 5000/10000/2)) = 750")

	var results UpdateMessage
	require.NoError(t, json.Unmarshal([]byte(tunnel.lastMessage()), &results))
	assert.Equal(t, "MultipleChoiceAnswersResults", results.Kind)

	var payload struct {
		Stats []struct {
			Correct bool `json:"correct"`
			Count   int  `json:"count"`
		} `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(results.Payload, &payload))
	require.Len(t, payload.Stats, 2)
	assert.Equal(t, 1, payload.Stats[0].Count, "the correct answer was chosen once")
	assert.Equal(t, 0, payload.Stats[1].Count)
}

// TestMultipleChoiceTeamCreditsMinimumMemberScore reproduces spec scenario
// S4: a two-player team is credited the minimum of its members' scores,
// not the sum or the maximum.
func TestMultipleChoiceTeamCreditsMinimumMemberScore(t *testing.T) {
	p1, p2 := NewId(), NewId()
	watchers := NewWatchers(NewId())
	require.NoError(t, watchers.Add(p1, UnassignedValue()))
	require.NoError(t, watchers.Add(p2, UnassignedValue()))

	names := NewNames(nil)
	teams := NewTeamManager(2)
	teams.Finalize([]Id{p1, p2}, newTestRand(), names, nil)

	teamId, ok := teams.GetTeam(p1)
	require.True(t, ok)

	tunnels := map[Id]Tunnel{p1: newMemTunnel(), p2: newMemTunnel()}
	// aliveSubmitted counts KindPlayer watchers; register both as players
	// now that their team assignment is known, mirroring the Game's own
	// Unassigned->Player transition on team finalize.
	watchers.UpdateValue(p1, TeamValue("Team", "p1", teamId, 0))
	watchers.UpdateValue(p2, TeamValue("Team", "p2", teamId, 1))

	clock := newManualClock()
	ctx := &SlideContext{
		Watchers:     watchers,
		Leaderboard:  NewLeaderboard(),
		Teams:        teams,
		TeamsEnabled: true,
		TunnelFinder: registryFinder(tunnels),
		Schedule:     noopSchedule,
		Clock:        clock,
	}

	s := NewMultipleChoiceState(MultipleChoiceConfig{
		Title: "Q1", TimeLimit: 10 * time.Second, PointsAwarded: 1000,
		Answers: []MultipleChoiceAnswer{{Correct: true, Content: TextOrMedia{Text: "A"}}},
	})

	require.False(t, s.Play(ctx))

	clock.advance(2 * time.Second)
	require.False(t, submitIndex(t, s, ctx, p1, 0), "p2 hasn't answered yet")

	clock.advance(6 * time.Second) // total elapsed for p2: 8s
	done := submitIndex(t, s, ctx, p2, 0)
	assert.True(t, done)

	pos, ok := ctx.Leaderboard.Score(teamId)
	require.True(t, ok)
	assert.Equal(t, 600, pos.Points, "team credited the minimum of 900 (p1@2s) and 600 (p2@8s)")
}

func TestMultipleChoiceEmptyAnswersAllScoreZero(t *testing.T) {
	player := NewId()
	watchers := NewWatchers(NewId())
	require.NoError(t, watchers.Add(player, IndividualValue("alice")))

	ctx := &SlideContext{
		Watchers:     watchers,
		Leaderboard:  NewLeaderboard(),
		TunnelFinder: registryFinder(map[Id]Tunnel{player: newMemTunnel()}),
		Schedule:     noopSchedule,
		Clock:        newManualClock(),
	}

	s := NewMultipleChoiceState(MultipleChoiceConfig{Title: "Q1", TimeLimit: 10 * time.Second, PointsAwarded: 1000})

	done := s.Play(ctx)
	assert.True(t, done, "no answers configured, nothing for the lone player to submit")

	pos, ok := ctx.Leaderboard.Score(player)
	require.True(t, ok)
	assert.Equal(t, 0, pos.Points)
}

func TestMultipleChoiceReceiveAlarmIgnoresStaleSlideIndex(t *testing.T) {
	ctx := &SlideContext{
		Watchers:     NewWatchers(NewId()),
		Leaderboard:  NewLeaderboard(),
		TunnelFinder: registryFinder(map[Id]Tunnel{}),
		Schedule:     noopSchedule,
		Clock:        newManualClock(),
		SlideIndex:   0,
	}

	s := NewMultipleChoiceState(twoAnswerMCConfig())
	require.False(t, s.Play(ctx))

	done := s.ReceiveAlarm(ctx, AlarmMessage{Kind: EngineMultipleChoice, SlideIndex: 1, TargetPhase: PhaseAnswersResults})
	assert.False(t, done)
	assert.Equal(t, PhaseAnswers, s.Phase)
}

func TestMultipleChoiceStateMessageReflectsPhase(t *testing.T) {
	ctx := &SlideContext{
		Watchers:     NewWatchers(NewId()),
		Leaderboard:  NewLeaderboard(),
		TunnelFinder: registryFinder(map[Id]Tunnel{}),
		Schedule:     noopSchedule,
		Clock:        newManualClock(),
	}

	cfg := twoAnswerMCConfig()
	cfg.IntroduceQuestion = 5 * time.Second
	s := NewMultipleChoiceState(cfg)

	msg := s.StateMessage(ctx, NewId(), KindUnassigned)
	assert.Equal(t, "MultipleChoiceUnstarted", msg.Kind)

	require.False(t, s.Play(ctx))
	msg = s.StateMessage(ctx, NewId(), KindUnassigned)
	assert.Equal(t, "MultipleChoiceQuestion", msg.Kind)
}
