/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"math/rand"
	"time"
)

// AxisLabels are the optional presentation labels for an Order slide's
// ranking axis (spec §4.5.3).
type AxisLabels struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// OrderConfig is the immutable slide configuration (spec §4.5.3).
type OrderConfig struct {
	Title             string        `json:"title"`
	Media             *TextOrMedia  `json:"media,omitempty"`
	IntroduceQuestion time.Duration `json:"introduce_question"`
	TimeLimit         time.Duration `json:"time_limit"`
	PointsAwarded     int           `json:"points_awarded"`
	AxisLabels        AxisLabels    `json:"axis_labels"`
	Answers           []string      `json:"answers"`
}

type orderSubmission struct {
	Answers     []string
	SubmittedAt time.Time
}

// OrderState is the mutable runtime projection of an OrderConfig.
type OrderState struct {
	Config          OrderConfig
	Phase           Phase
	AnswerStart     time.Time
	Submissions     map[Id]orderSubmission
	ShuffledAnswers []string
}

// NewOrderState constructs a slide in the Unstarted phase.
func NewOrderState(config OrderConfig) *OrderState {
	return &OrderState{
		Config:      config,
		Phase:       PhaseUnstarted,
		Submissions: make(map[Id]orderSubmission),
	}
}

// shuffle produces a per-slide deterministic shuffle of the answers (spec
// §9 Open Question (2): seed choice is implementation-defined; only the
// reverse-permutation equality is a testable invariant).
func (s *OrderState) shuffle(seed int64) {
	s.ShuffledAnswers = make([]string, len(s.Config.Answers))
	copy(s.ShuffledAnswers, s.Config.Answers)

	rnd := rand.New(rand.NewSource(seed))
	rnd.Shuffle(len(s.ShuffledAnswers), func(i, j int) {
		s.ShuffledAnswers[i], s.ShuffledAnswers[j] = s.ShuffledAnswers[j], s.ShuffledAnswers[i]
	})
}

type orderQuestionPayload struct {
	Title      string        `json:"title"`
	Media      *TextOrMedia  `json:"media,omitempty"`
	AxisLabels AxisLabels    `json:"axis_labels,omitempty"`
	Answers    []string      `json:"answers,omitempty"`
	Duration   time.Duration `json:"duration"`
	Accepting  bool          `json:"accept_answers"`
}

func (s *OrderState) announcement(duration time.Duration, accepting bool) UpdateMessage {
	return NewUpdateMessage("OrderQuestion", orderQuestionPayload{
		Title: s.Config.Title, Media: s.Config.Media,
		AxisLabels: s.Config.AxisLabels, Answers: s.ShuffledAnswers,
		Duration: duration, Accepting: accepting,
	})
}

// Play enters the slide, shuffling the answer list on entering Answers
// (spec §4.5.3 "On entering Answers").
func (s *OrderState) Play(ctx *SlideContext) bool {
	if s.Config.IntroduceQuestion <= 0 {
		changeState(&s.Phase, PhaseUnstarted, PhaseAnswers)
		s.AnswerStart = ctx.Clock.Now()
		s.shuffle(int64(ctx.SlideIndex)*31 + s.AnswerStart.UnixNano())

		ctx.Watchers.Announce(s.announcement(s.Config.TimeLimit, true).String(), ctx.TunnelFinder)
		ctx.Schedule(AlarmMessage{Kind: EngineOrder, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswersResults}, s.Config.TimeLimit)

		return false
	}

	changeState(&s.Phase, PhaseUnstarted, PhaseQuestion)
	ctx.Watchers.Announce(NewUpdateMessage("OrderQuestion", orderQuestionPayload{
		Title: s.Config.Title, Media: s.Config.Media, AxisLabels: s.Config.AxisLabels,
		Duration: s.Config.IntroduceQuestion, Accepting: false,
	}).String(), ctx.TunnelFinder)
	ctx.Schedule(AlarmMessage{Kind: EngineOrder, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswers}, s.Config.IntroduceQuestion)

	return false
}

func (s *OrderState) maybeFinish(ctx *SlideContext) bool {
	submitted := make(map[Id]struct{}, len(s.Submissions))
	for id := range s.Submissions {
		submitted[id] = struct{}{}
	}

	if !aliveSubmitted(ctx, submitted) {
		return false
	}

	return s.finish(ctx)
}

func sameOrder(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}

func (s *OrderState) finish(ctx *SlideContext) bool {
	if !changeState(&s.Phase, PhaseAnswers, PhaseAnswersResults) {
		return false
	}

	correctCount, wrongCount := 0, 0

	deltas := scoreDeltas(ctx, func(id Id) int {
		sub, ok := s.Submissions[id]
		if !ok {
			wrongCount++

			return 0
		}

		if !sameOrder(sub.Answers, s.Config.Answers) {
			wrongCount++

			return 0
		}

		correctCount++

		return computeScore(s.Config.TimeLimit, elapsedBetween(s.AnswerStart, sub.SubmittedAt), s.Config.PointsAwarded)
	})

	ctx.Leaderboard.AddScores(deltas)

	payload := struct {
		Answers      []string `json:"answers"`
		CorrectCount int      `json:"correct_count"`
		WrongCount   int      `json:"wrong_count"`
	}{Answers: s.Config.Answers, CorrectCount: correctCount, WrongCount: wrongCount}

	ctx.Watchers.Announce(NewUpdateMessage("OrderAnswersResults", payload).String(), ctx.TunnelFinder)

	return true
}

// ReceiveMessage handles Host.Next and StringArrayAnswer submissions (spec
// §4.5.3).
func (s *OrderState) ReceiveMessage(ctx *SlideContext, playerId Id, msg IncomingMessage) bool {
	switch msg.Category() {
	case CategoryHost:
		if msg.Kind != KindHostNext {
			return false
		}

		if changeState(&s.Phase, PhaseQuestion, PhaseAnswers) {
			s.AnswerStart = ctx.Clock.Now()
			s.shuffle(int64(ctx.SlideIndex)*31 + s.AnswerStart.UnixNano())
			ctx.Watchers.Announce(s.announcement(s.Config.TimeLimit, true).String(), ctx.TunnelFinder)
			ctx.Schedule(AlarmMessage{Kind: EngineOrder, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswersResults}, s.Config.TimeLimit)

			return false
		}

		if s.Phase == PhaseAnswers {
			return s.finish(ctx)
		}

		return false

	case CategoryPlayer:
		if msg.Kind != KindPlayerStringArrayAnswer || s.Phase != PhaseAnswers {
			return false
		}

		var payload StringArrayAnswerPayload
		if decodePayload(msg, &payload) != nil {
			return false
		}

		s.Submissions[playerId] = orderSubmission{Answers: payload.Answers, SubmittedAt: ctx.Clock.Now()}

		if s.maybeFinish(ctx) {
			return true
		}

		ctx.Watchers.AnnounceSpecific(KindHost, NewUpdateMessage("OrderAnswersCount", len(s.Submissions)).String(), ctx.TunnelFinder)

		return false

	default:
		return false
	}
}

// ReceiveAlarm applies a matching alarm.
func (s *OrderState) ReceiveAlarm(ctx *SlideContext, alarm AlarmMessage) bool {
	if alarm.Kind != EngineOrder || alarm.SlideIndex != ctx.SlideIndex {
		return false
	}

	switch alarm.TargetPhase {
	case PhaseAnswers:
		if changeState(&s.Phase, PhaseQuestion, PhaseAnswers) {
			s.AnswerStart = ctx.Clock.Now()
			s.shuffle(int64(ctx.SlideIndex)*31 + s.AnswerStart.UnixNano())
			ctx.Watchers.Announce(s.announcement(s.Config.TimeLimit, true).String(), ctx.TunnelFinder)
			ctx.Schedule(AlarmMessage{Kind: EngineOrder, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswersResults}, s.Config.TimeLimit)
		}

		return false
	case PhaseAnswersResults:
		return s.finish(ctx)
	default:
		return false
	}
}

// StateMessage synthesizes a Sync frame reflecting the current phase.
func (s *OrderState) StateMessage(ctx *SlideContext, watcherId Id, kind Kind) SyncMessage {
	switch s.Phase {
	case PhaseUnstarted:
		return NewSyncMessage("OrderUnstarted", nil)
	case PhaseQuestion:
		return NewSyncMessage("OrderQuestion", orderQuestionPayload{
			Title: s.Config.Title, Media: s.Config.Media, AxisLabels: s.Config.AxisLabels,
			Duration: s.Config.IntroduceQuestion, Accepting: false,
		})
	case PhaseAnswers:
		remaining := s.Config.TimeLimit - elapsedSince(ctx.Clock, s.AnswerStart)
		if remaining < 0 {
			remaining = 0
		}

		return NewSyncMessage("OrderQuestion", orderQuestionPayload{
			Title: s.Config.Title, Media: s.Config.Media, AxisLabels: s.Config.AxisLabels,
			Answers: s.ShuffledAnswers, Duration: remaining, Accepting: true,
		})
	default:
		return NewSyncMessage("OrderAnswersResults", s.Config.Answers)
	}
}
