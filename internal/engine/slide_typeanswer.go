/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"sort"
	"strings"
	"time"
)

// TypeAnswerConfig is the immutable slide configuration (spec §4.5.2).
type TypeAnswerConfig struct {
	Title             string        `json:"title"`
	Media             *TextOrMedia  `json:"media,omitempty"`
	IntroduceQuestion time.Duration `json:"introduce_question"`
	TimeLimit         time.Duration `json:"time_limit"`
	PointsAwarded     int           `json:"points_awarded"`
	Answers           []string      `json:"answers"`
	CaseSensitive     bool          `json:"case_sensitive"`
}

// cleanAnswer trims whitespace and, unless caseSensitive, lowercases s
// (spec §4.5.2 "Comparison").
func cleanAnswer(s string, caseSensitive bool) string {
	s = strings.TrimSpace(s)

	if !caseSensitive {
		s = strings.ToLower(s)
	}

	return s
}

type taSubmission struct {
	Answer      string
	SubmittedAt time.Time
}

// TypeAnswerState is the mutable runtime projection of a TypeAnswerConfig.
type TypeAnswerState struct {
	Config      TypeAnswerConfig
	Phase       Phase
	AnswerStart time.Time
	Submissions map[Id]taSubmission
	accepted    map[string]struct{}
}

// NewTypeAnswerState constructs a slide in the Unstarted phase.
func NewTypeAnswerState(config TypeAnswerConfig) *TypeAnswerState {
	accepted := make(map[string]struct{}, len(config.Answers))
	for _, a := range config.Answers {
		accepted[cleanAnswer(a, config.CaseSensitive)] = struct{}{}
	}

	return &TypeAnswerState{
		Config:      config,
		Phase:       PhaseUnstarted,
		Submissions: make(map[Id]taSubmission),
		accepted:    accepted,
	}
}

type taQuestionPayload struct {
	Title     string        `json:"title"`
	Media     *TextOrMedia  `json:"media,omitempty"`
	Duration  time.Duration `json:"duration"`
	Accepting bool          `json:"accept_answers"`
}

func (s *TypeAnswerState) announcement(duration time.Duration, accepting bool) UpdateMessage {
	return NewUpdateMessage("TypeAnswerQuestion", taQuestionPayload{
		Title:     s.Config.Title,
		Media:     s.Config.Media,
		Duration:  duration,
		Accepting: accepting,
	})
}

// Play enters the slide; introduce_question == 0 short-circuits directly
// into Answers with accept_answers=true (spec §4.5.2).
func (s *TypeAnswerState) Play(ctx *SlideContext) bool {
	if s.Config.IntroduceQuestion <= 0 {
		changeState(&s.Phase, PhaseUnstarted, PhaseAnswers)
		s.AnswerStart = ctx.Clock.Now()

		ctx.Watchers.Announce(s.announcement(s.Config.TimeLimit, true).String(), ctx.TunnelFinder)
		ctx.Schedule(AlarmMessage{Kind: EngineTypeAnswer, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswersResults}, s.Config.TimeLimit)

		return false
	}

	changeState(&s.Phase, PhaseUnstarted, PhaseQuestion)
	ctx.Watchers.Announce(s.announcement(s.Config.IntroduceQuestion, false).String(), ctx.TunnelFinder)
	ctx.Schedule(AlarmMessage{Kind: EngineTypeAnswer, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswers}, s.Config.IntroduceQuestion)

	return false
}

func (s *TypeAnswerState) maybeFinish(ctx *SlideContext) bool {
	submitted := make(map[Id]struct{}, len(s.Submissions))
	for id := range s.Submissions {
		submitted[id] = struct{}{}
	}

	if !aliveSubmitted(ctx, submitted) {
		return false
	}

	return s.finish(ctx)
}

func (s *TypeAnswerState) isCorrect(answer string) bool {
	_, ok := s.accepted[cleanAnswer(answer, s.Config.CaseSensitive)]

	return ok
}

func (s *TypeAnswerState) finish(ctx *SlideContext) bool {
	if !changeState(&s.Phase, PhaseAnswers, PhaseAnswersResults) {
		return false
	}

	counts := make(map[string]int)

	deltas := scoreDeltas(ctx, func(id Id) int {
		sub, ok := s.Submissions[id]
		if !ok {
			return 0
		}

		cleaned := cleanAnswer(sub.Answer, s.Config.CaseSensitive)
		counts[cleaned]++

		if !s.isCorrect(sub.Answer) {
			return 0
		}

		return computeScore(s.Config.TimeLimit, elapsedBetween(s.AnswerStart, sub.SubmittedAt), s.Config.PointsAwarded)
	})

	ctx.Leaderboard.AddScores(deltas)

	type countPair struct {
		Answer string `json:"answer"`
		Count  int    `json:"count"`
	}

	results := make([]countPair, 0, len(counts))
	for answer, count := range counts {
		results = append(results, countPair{Answer: answer, Count: count})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}

		return results[i].Answer < results[j].Answer
	})

	accepted := make([]string, 0, len(s.accepted))
	for a := range s.accepted {
		accepted = append(accepted, a)
	}

	sort.Strings(accepted)

	payload := struct {
		Results  []countPair `json:"results"`
		Accepted []string    `json:"accepted"`
	}{Results: results, Accepted: accepted}

	ctx.Watchers.Announce(NewUpdateMessage("TypeAnswerAnswersResults", payload).String(), ctx.TunnelFinder)

	return true
}

// ReceiveMessage handles Host.Next and StringAnswer submissions (spec
// §4.5.2).
func (s *TypeAnswerState) ReceiveMessage(ctx *SlideContext, playerId Id, msg IncomingMessage) bool {
	switch msg.Category() {
	case CategoryHost:
		if msg.Kind != KindHostNext {
			return false
		}

		if changeState(&s.Phase, PhaseQuestion, PhaseAnswers) {
			s.AnswerStart = ctx.Clock.Now()
			ctx.Watchers.Announce(s.announcement(s.Config.TimeLimit, true).String(), ctx.TunnelFinder)
			ctx.Schedule(AlarmMessage{Kind: EngineTypeAnswer, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswersResults}, s.Config.TimeLimit)

			return false
		}

		if s.Phase == PhaseAnswers {
			return s.finish(ctx)
		}

		return false

	case CategoryPlayer:
		if msg.Kind != KindPlayerStringAnswer || s.Phase != PhaseAnswers {
			return false
		}

		var payload StringAnswerPayload
		if decodePayload(msg, &payload) != nil {
			return false
		}

		s.Submissions[playerId] = taSubmission{Answer: payload.Answer, SubmittedAt: ctx.Clock.Now()}

		if s.maybeFinish(ctx) {
			return true
		}

		ctx.Watchers.AnnounceSpecific(KindHost, NewUpdateMessage("TypeAnswerAnswersCount", len(s.Submissions)).String(), ctx.TunnelFinder)

		return false

	default:
		return false
	}
}

// ReceiveAlarm applies a matching alarm.
func (s *TypeAnswerState) ReceiveAlarm(ctx *SlideContext, alarm AlarmMessage) bool {
	if alarm.Kind != EngineTypeAnswer || alarm.SlideIndex != ctx.SlideIndex {
		return false
	}

	switch alarm.TargetPhase {
	case PhaseAnswers:
		if changeState(&s.Phase, PhaseQuestion, PhaseAnswers) {
			s.AnswerStart = ctx.Clock.Now()
			ctx.Watchers.Announce(s.announcement(s.Config.TimeLimit, true).String(), ctx.TunnelFinder)
			ctx.Schedule(AlarmMessage{Kind: EngineTypeAnswer, SlideIndex: ctx.SlideIndex, TargetPhase: PhaseAnswersResults}, s.Config.TimeLimit)
		}

		return false
	case PhaseAnswersResults:
		return s.finish(ctx)
	default:
		return false
	}
}

// StateMessage synthesizes a Sync frame reflecting the current phase.
func (s *TypeAnswerState) StateMessage(ctx *SlideContext, watcherId Id, kind Kind) SyncMessage {
	switch s.Phase {
	case PhaseUnstarted:
		return NewSyncMessage("TypeAnswerUnstarted", nil)
	case PhaseQuestion:
		return NewSyncMessage("TypeAnswerQuestion", taQuestionPayload{
			Title: s.Config.Title, Media: s.Config.Media,
			Duration: s.Config.IntroduceQuestion, Accepting: false,
		})
	case PhaseAnswers:
		remaining := s.Config.TimeLimit - elapsedSince(ctx.Clock, s.AnswerStart)
		if remaining < 0 {
			remaining = 0
		}

		return NewSyncMessage("TypeAnswerQuestion", taQuestionPayload{
			Title: s.Config.Title, Media: s.Config.Media,
			Duration: remaining, Accepting: true,
		})
	default:
		return NewSyncMessage("TypeAnswerAnswersResults", s.Config.Answers)
	}
}
