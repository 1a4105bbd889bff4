/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import "time"

// TextOrMedia is a question/answer body: plain text, optionally
// accompanied by a media reference. Media content itself is out of scope
// (spec.md never names a media subsystem); the field is carried so the
// config shape matches the original and a future media store can be
// plugged in without a wire-format break.
type TextOrMedia struct {
	Text  string `json:"text"`
	Media string `json:"media,omitempty"`
}

// MultipleChoiceAnswer is one answer option (spec §4.5.1).
type MultipleChoiceAnswer struct {
	Correct bool        `json:"correct"`
	Content TextOrMedia `json:"content"`
}

// MultipleChoiceConfig is the immutable slide configuration (spec §4.5.1).
type MultipleChoiceConfig struct {
	Title             string                 `json:"title"`
	Media             *TextOrMedia           `json:"media,omitempty"`
	IntroduceQuestion time.Duration          `json:"introduce_question"`
	TimeLimit         time.Duration          `json:"time_limit"`
	PointsAwarded     int                    `json:"points_awarded"`
	Answers           []MultipleChoiceAnswer `json:"answers"`
}

type mcSubmission struct {
	Index       int
	SubmittedAt time.Time
}

// MultipleChoiceState is the mutable runtime projection of a
// MultipleChoiceConfig (spec §3, §4.5.1).
type MultipleChoiceState struct {
	Config      MultipleChoiceConfig
	Phase       Phase
	AnswerStart time.Time
	Submissions map[Id]mcSubmission
}

// NewMultipleChoiceState constructs a slide in the Unstarted phase.
func NewMultipleChoiceState(config MultipleChoiceConfig) *MultipleChoiceState {
	return &MultipleChoiceState{
		Config:      config,
		Phase:       PhaseUnstarted,
		Submissions: make(map[Id]mcSubmission),
	}
}

func mcVisibleIndices(ctx *SlideContext, id Id, kind Kind, answerCount int) []int {
	if answerCount == 0 {
		return nil
	}

	if !ctx.TeamsEnabled {
		return allIndices(answerCount)
	}

	if kind != KindPlayer {
		return nil
	}

	s := ctx.Teams.TeamSize(id)
	divisor := s
	if answerCount < divisor {
		divisor = answerCount
	}

	if divisor == 0 {
		return nil
	}

	t := ctx.Teams.TeamIndex(id, func(pid Id) bool {
		_, ok := ctx.TunnelFinder(pid)

		return ok
	})
	target := t % answerCount

	visible := make([]int, 0, answerCount)

	for a := 0; a < answerCount; a++ {
		if a%divisor == target {
			visible = append(visible, a)
		}
	}

	return visible
}

func allIndices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}

	return out
}

type mcAnswerView struct {
	Index   int          `json:"index"`
	Content *TextOrMedia `json:"content,omitempty"`
}

func mcAnswerViews(cfg MultipleChoiceConfig, visible []int) []mcAnswerView {
	set := make(map[int]struct{}, len(visible))
	for _, i := range visible {
		set[i] = struct{}{}
	}

	views := make([]mcAnswerView, len(cfg.Answers))

	for i, a := range cfg.Answers {
		views[i] = mcAnswerView{Index: i}

		if _, ok := set[i]; ok {
			content := a.Content
			views[i].Content = &content
		}
	}

	return views
}

type mcQuestionPayload struct {
	Title     string         `json:"title"`
	Media     *TextOrMedia   `json:"media,omitempty"`
	Answers   []mcAnswerView `json:"answers"`
	Duration  time.Duration  `json:"duration"`
	Accepting bool           `json:"accept_answers"`
}

func (s *MultipleChoiceState) questionAnnouncement(ctx *SlideContext, duration time.Duration, accepting bool) func(id Id, kind Kind) (string, bool) {
	return func(id Id, kind Kind) (string, bool) {
		visible := mcVisibleIndices(ctx, id, kind, len(s.Config.Answers))
		payload := mcQuestionPayload{
			Title:     s.Config.Title,
			Media:     s.Config.Media,
			Answers:   mcAnswerViews(s.Config, visible),
			Duration:  duration,
			Accepting: accepting,
		}

		return NewUpdateMessage("MultipleChoiceQuestion", payload).String(), true
	}
}

// Play enters the slide (spec §4.5 "play").
func (s *MultipleChoiceState) Play(ctx *SlideContext) bool {
	if s.Config.IntroduceQuestion <= 0 {
		changeState(&s.Phase, PhaseUnstarted, PhaseAnswers)
		s.AnswerStart = ctx.Clock.Now()

		ctx.Watchers.AnnounceWith(s.questionAnnouncement(ctx, s.Config.TimeLimit, true), ctx.TunnelFinder)
		ctx.Schedule(AlarmMessage{Kind: EngineMultipleChoice, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswersResults}, s.Config.TimeLimit)

		if len(s.Config.Answers) == 0 {
			return s.finish(ctx)
		}

		return false
	}

	changeState(&s.Phase, PhaseUnstarted, PhaseQuestion)
	ctx.Watchers.AnnounceWith(s.questionAnnouncement(ctx, s.Config.IntroduceQuestion, false), ctx.TunnelFinder)
	ctx.Schedule(AlarmMessage{Kind: EngineMultipleChoice, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswers}, s.Config.IntroduceQuestion)

	return false
}

func (s *MultipleChoiceState) maybeFinish(ctx *SlideContext) bool {
	submitted := make(map[Id]struct{}, len(s.Submissions))
	for id := range s.Submissions {
		submitted[id] = struct{}{}
	}

	if !aliveSubmitted(ctx, submitted) {
		return false
	}

	return s.finish(ctx)
}

func (s *MultipleChoiceState) finish(ctx *SlideContext) bool {
	if !changeState(&s.Phase, PhaseAnswers, PhaseAnswersResults) {
		return false
	}

	counts := make([]int, len(s.Config.Answers))

	deltas := scoreDeltas(ctx, func(id Id) int {
		sub, ok := s.Submissions[id]
		if !ok {
			return 0
		}

		if sub.Index < 0 || sub.Index >= len(s.Config.Answers) {
			return 0
		}

		counts[sub.Index]++

		if !s.Config.Answers[sub.Index].Correct {
			return 0
		}

		return computeScore(s.Config.TimeLimit, elapsedBetween(s.AnswerStart, sub.SubmittedAt), s.Config.PointsAwarded)
	})

	ctx.Leaderboard.AddScores(deltas)

	type resultStat struct {
		Correct bool `json:"correct"`
		Count   int  `json:"count"`
	}

	stats := make([]resultStat, len(s.Config.Answers))
	for i, a := range s.Config.Answers {
		stats[i] = resultStat{Correct: a.Correct, Count: counts[i]}
	}

	payload := struct {
		Answers []MultipleChoiceAnswer `json:"answers"`
		Stats   []resultStat           `json:"stats"`
	}{Answers: s.Config.Answers, Stats: stats}

	ctx.Watchers.Announce(NewUpdateMessage("MultipleChoiceAnswersResults", payload).String(), ctx.TunnelFinder)

	return true
}

// ReceiveMessage handles Host.Next and IndexAnswer submissions (spec
// §4.5.1).
func (s *MultipleChoiceState) ReceiveMessage(ctx *SlideContext, playerId Id, msg IncomingMessage) bool {
	switch msg.Category() {
	case CategoryHost:
		if msg.Kind != KindHostNext {
			return false
		}

		if changeState(&s.Phase, PhaseQuestion, PhaseAnswers) {
			s.AnswerStart = ctx.Clock.Now()
			ctx.Watchers.AnnounceWith(s.questionAnnouncement(ctx, s.Config.TimeLimit, true), ctx.TunnelFinder)
			ctx.Schedule(AlarmMessage{Kind: EngineMultipleChoice, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswersResults}, s.Config.TimeLimit)

			return false
		}

		if s.Phase == PhaseAnswers {
			return s.finish(ctx)
		}

		return false

	case CategoryPlayer:
		if msg.Kind != KindPlayerIndexAnswer || s.Phase != PhaseAnswers {
			return false
		}

		var payload IndexPayload
		if decodePayload(msg, &payload) != nil {
			return false
		}

		if payload.Index < 0 || payload.Index >= len(s.Config.Answers) {
			return false
		}

		s.Submissions[playerId] = mcSubmission{Index: payload.Index, SubmittedAt: ctx.Clock.Now()}

		if s.maybeFinish(ctx) {
			return true
		}

		count := len(s.Submissions)
		ctx.Watchers.AnnounceSpecific(KindHost, NewUpdateMessage("MultipleChoiceAnswersCount", count).String(), ctx.TunnelFinder)

		return false

	default:
		return false
	}
}

// ReceiveAlarm applies a matching alarm (spec §4.5 "receive_alarm").
func (s *MultipleChoiceState) ReceiveAlarm(ctx *SlideContext, alarm AlarmMessage) bool {
	if alarm.Kind != EngineMultipleChoice || alarm.SlideIndex != ctx.SlideIndex {
		return false
	}

	switch alarm.TargetPhase {
	case PhaseAnswers:
		if changeState(&s.Phase, PhaseQuestion, PhaseAnswers) {
			s.AnswerStart = ctx.Clock.Now()
			ctx.Watchers.AnnounceWith(s.questionAnnouncement(ctx, s.Config.TimeLimit, true), ctx.TunnelFinder)
			ctx.Schedule(AlarmMessage{Kind: EngineMultipleChoice, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswersResults}, s.Config.TimeLimit)
		}

		return false
	case PhaseAnswersResults:
		return s.finish(ctx)
	default:
		return false
	}
}

// StateMessage synthesizes a Sync frame for a late joiner or reconnect
// (spec §4.5 "state_message").
func (s *MultipleChoiceState) StateMessage(ctx *SlideContext, watcherId Id, kind Kind) SyncMessage {
	switch s.Phase {
	case PhaseUnstarted:
		return NewSyncMessage("MultipleChoiceUnstarted", nil)
	case PhaseQuestion:
		visible := mcVisibleIndices(ctx, watcherId, kind, len(s.Config.Answers))
		payload := mcQuestionPayload{
			Title:     s.Config.Title,
			Media:     s.Config.Media,
			Answers:   mcAnswerViews(s.Config, visible),
			Duration:  s.Config.IntroduceQuestion,
			Accepting: false,
		}

		return NewSyncMessage("MultipleChoiceQuestion", payload)
	case PhaseAnswers:
		visible := mcVisibleIndices(ctx, watcherId, kind, len(s.Config.Answers))
		remaining := s.Config.TimeLimit - elapsedSince(ctx.Clock, s.AnswerStart)

		if remaining < 0 {
			remaining = 0
		}

		payload := mcQuestionPayload{
			Title:     s.Config.Title,
			Media:     s.Config.Media,
			Answers:   mcAnswerViews(s.Config, visible),
			Duration:  remaining,
			Accepting: true,
		}

		return NewSyncMessage("MultipleChoiceQuestion", payload)
	default:
		return NewSyncMessage("MultipleChoiceAnswersResults", s.Config.Answers)
	}
}
