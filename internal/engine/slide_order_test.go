package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrderTestContext(players ...Id) (*SlideContext, map[Id]Tunnel) {
	watchers := NewWatchers(NewId())
	reg := make(map[Id]Tunnel)

	for _, p := range players {
		_ = watchers.Add(p, IndividualValue("Player"))
		reg[p] = newMemTunnel()
	}

	return &SlideContext{
		Watchers:     watchers,
		Leaderboard:  NewLeaderboard(),
		TunnelFinder: registryFinder(reg),
		Schedule:     noopSchedule,
		Clock:        SystemClock,
		SlideIndex:   0,
	}, reg
}

func TestOrderStatePlayIntroduceZeroEntersAnswersAndShuffles(t *testing.T) {
	s := NewOrderState(OrderConfig{
		Title: "Rank them", Answers: []string{"a", "b", "c"}, TimeLimit: 10,
	})
	ctx, _ := newOrderTestContext()

	done := s.Play(ctx)

	assert.False(t, done, "no players registered, nothing to finish yet")
	assert.Equal(t, PhaseAnswers, s.Phase)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, s.ShuffledAnswers, "shuffle must preserve the same element set")
}

func TestOrderStatePlayWithIntroduceQuestionEntersQuestionPhase(t *testing.T) {
	s := NewOrderState(OrderConfig{
		Title: "Rank them", Answers: []string{"a", "b"}, IntroduceQuestion: 5, TimeLimit: 10,
	})
	ctx, _ := newOrderTestContext()

	done := s.Play(ctx)

	assert.False(t, done)
	assert.Equal(t, PhaseQuestion, s.Phase)
	assert.Nil(t, s.ShuffledAnswers, "answers aren't shuffled until Answers phase starts")
}

func TestOrderStateReceiveMessageCorrectOrderFinishesAndScores(t *testing.T) {
	player := NewId()
	s := NewOrderState(OrderConfig{
		Title: "Rank them", Answers: []string{"a", "b", "c"}, TimeLimit: 10, PointsAwarded: 1000,
	})
	ctx, _ := newOrderTestContext(player)
	ctx.Clock = newManualClock() // submitted at zero elapsed time: full points

	require.False(t, s.Play(ctx))

	payload, err := json.Marshal(StringArrayAnswerPayload{Answers: []string{"a", "b", "c"}})
	require.NoError(t, err)

	done := s.ReceiveMessage(ctx, player, IncomingMessage{Kind: KindPlayerStringArrayAnswer, Payload: payload})

	assert.True(t, done, "the only alive player has submitted")
	assert.Equal(t, PhaseAnswersResults, s.Phase)

	pos, ok := ctx.Leaderboard.Score(player)
	require.True(t, ok)
	assert.Equal(t, 1000, pos.Points)
}

func TestOrderStateReceiveMessageWrongOrderScoresZero(t *testing.T) {
	player := NewId()
	s := NewOrderState(OrderConfig{
		Title: "Rank them", Answers: []string{"a", "b", "c"}, TimeLimit: 10, PointsAwarded: 1000,
	})
	ctx, _ := newOrderTestContext(player)
	require.False(t, s.Play(ctx))

	payload, err := json.Marshal(StringArrayAnswerPayload{Answers: []string{"c", "b", "a"}})
	require.NoError(t, err)

	done := s.ReceiveMessage(ctx, player, IncomingMessage{Kind: KindPlayerStringArrayAnswer, Payload: payload})

	assert.True(t, done)

	pos, ok := ctx.Leaderboard.Score(player)
	require.True(t, ok)
	assert.Equal(t, 0, pos.Points)
}

func TestOrderStateWaitsForAllAlivePlayers(t *testing.T) {
	a, b := NewId(), NewId()
	s := NewOrderState(OrderConfig{Title: "Rank them", Answers: []string{"a", "b"}, TimeLimit: 10})
	ctx, _ := newOrderTestContext(a, b)
	require.False(t, s.Play(ctx))

	payload, err := json.Marshal(StringArrayAnswerPayload{Answers: s.ShuffledAnswers})
	require.NoError(t, err)

	done := s.ReceiveMessage(ctx, a, IncomingMessage{Kind: KindPlayerStringArrayAnswer, Payload: payload})

	assert.False(t, done, "b has not submitted yet")
	assert.Equal(t, PhaseAnswers, s.Phase)
}

func TestOrderStateReceiveAlarmFinishesOnAnswersResults(t *testing.T) {
	s := NewOrderState(OrderConfig{Title: "Rank them", Answers: []string{"a", "b"}, TimeLimit: 10})
	ctx, _ := newOrderTestContext()
	require.False(t, s.Play(ctx))

	done := s.ReceiveAlarm(ctx, AlarmMessage{Kind: EngineOrder, SlideIndex: 0, TargetPhase: PhaseAnswersResults})

	assert.True(t, done)
	assert.Equal(t, PhaseAnswersResults, s.Phase)
}

func TestOrderStateReceiveAlarmIgnoresStaleSlideIndex(t *testing.T) {
	s := NewOrderState(OrderConfig{Title: "Rank them", Answers: []string{"a", "b"}, TimeLimit: 10})
	ctx, _ := newOrderTestContext()
	require.False(t, s.Play(ctx))

	done := s.ReceiveAlarm(ctx, AlarmMessage{Kind: EngineOrder, SlideIndex: 1, TargetPhase: PhaseAnswersResults})

	assert.False(t, done)
	assert.Equal(t, PhaseAnswers, s.Phase)
}

func TestOrderStateStateMessageReflectsPhase(t *testing.T) {
	s := NewOrderState(OrderConfig{Title: "Rank them", Answers: []string{"a", "b"}, IntroduceQuestion: 5, TimeLimit: 10})
	ctx, _ := newOrderTestContext()

	msg := s.StateMessage(ctx, NewId(), KindUnassigned)
	assert.Equal(t, "OrderUnstarted", msg.Kind)

	require.False(t, s.Play(ctx))
	msg = s.StateMessage(ctx, NewId(), KindUnassigned)
	assert.Equal(t, "OrderQuestion", msg.Kind)
}
