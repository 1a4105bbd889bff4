/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"math"
	"time"
)

// Phase is a slide's position in its four-phase sub-state-machine (spec
// §3, §8 invariant 3). Values are ordered; transitions are monotonic
// forward only.
type Phase int

const (
	PhaseUnstarted Phase = iota
	PhaseQuestion
	PhaseAnswers
	PhaseAnswersResults
)

func (p Phase) String() string {
	switch p {
	case PhaseUnstarted:
		return "Unstarted"
	case PhaseQuestion:
		return "Question"
	case PhaseAnswers:
		return "Answers"
	case PhaseAnswersResults:
		return "AnswersResults"
	default:
		return "Unknown"
	}
}

// changeState performs the CAS transition described in spec §3: it
// succeeds, mutating *current, iff *current == before. Both Host.Next and
// a racing alarm call this under the Game's single writer lock, so the
// check also protects against a second call in the same dispatch, not only
// concurrent dispatches.
func changeState(current *Phase, before, after Phase) bool {
	if *current != before {
		return false
	}

	*current = after

	return true
}

// computeScore implements the shared scoring law (spec §4.5):
//
//	score(full, taken, max) = floor(max * (1 - taken/full/2))
//
// decaying linearly from max at t=0 to max/2 at t=full. Clamped to
// [0, max] to absorb a late answer arriving after the nominal deadline.
func computeScore(full, taken time.Duration, maxPoints int) int {
	if full <= 0 || maxPoints <= 0 {
		return 0
	}

	ratio := float64(taken) / float64(full) / 2

	if ratio < 0 {
		ratio = 0
	}

	if ratio > 0.5 {
		ratio = 0.5
	}

	score := int(math.Floor(float64(maxPoints) * (1 - ratio)))
	if score < 0 {
		return 0
	}

	return score
}

// SlideContext carries the shared collaborators every slide engine needs,
// injected per call rather than stored (spec §9 "Alarm scheduling": keeps
// slide state serializable and test-mockable).
type SlideContext struct {
	Watchers     *Watchers
	Names        *Names
	Teams        *TeamManager
	Leaderboard  *Leaderboard
	TunnelFinder TunnelFinder
	Schedule     Scheduler
	Clock        Clock
	TeamsEnabled bool
	SlideIndex   int
}

// Slide is the shared contract every slide engine implements (spec §9
// "Sub-state-machine polymorphism"). Adding an engine means adding a type
// satisfying this interface and extending the Fuiz Sequencer's dispatch.
type Slide interface {
	// Play enters the slide. Returns true if the slide is already
	// complete (e.g. zero configured answers / immediate finish).
	Play(ctx *SlideContext) bool
	// ReceiveMessage handles one incoming frame already known to be from
	// playerId with msg.Category() == CategoryHost or CategoryPlayer.
	// Returns true iff the slide is now complete.
	ReceiveMessage(ctx *SlideContext, playerId Id, msg IncomingMessage) bool
	// ReceiveAlarm applies alarm if it still matches current phase.
	// Returns true iff the slide is now complete.
	ReceiveAlarm(ctx *SlideContext, alarm AlarmMessage) bool
	// StateMessage synthesizes a Sync message for watcherId, reflecting
	// the slide's current phase.
	StateMessage(ctx *SlideContext, watcherId Id, kind Kind) SyncMessage
}

// aliveSubmitted reports whether every alive player (live tunnel) has an
// entry in submitted (spec §4.5.1 "players ⊆ submitters").
func aliveSubmitted(ctx *SlideContext, submitted map[Id]struct{}) bool {
	for _, entry := range ctx.Watchers.SpecificVec(KindPlayer, ctx.TunnelFinder) {
		if _, ok := submitted[entry.Id]; !ok {
			return false
		}
	}

	return true
}

// scoreDeltas builds the per-slide score delta vector credited to the
// leaderboard: one entry per player in solo mode, or one entry per team
// (keyed by team id, credited the minimum member score) in team mode.
// Absent or incorrect participants contribute an explicit zero entry so
// cumulative totals and host/wrong tallies stay accurate (spec §4.5.1).
func scoreDeltas(ctx *SlideContext, individualScore func(id Id) int) []ScoreEntry {
	if !ctx.TeamsEnabled {
		ids := ctx.Watchers.PlayerIds()
		deltas := make([]ScoreEntry, len(ids))

		for i, id := range ids {
			deltas[i] = ScoreEntry{Id: id, Points: individualScore(id)}
		}

		return deltas
	}

	teamIds := ctx.Teams.AllIds()
	deltas := make([]ScoreEntry, 0, len(teamIds))

	for _, teamId := range teamIds {
		members := ctx.Teams.TeamMembers(teamId)
		if len(members) == 0 {
			continue
		}

		min := individualScore(members[0])

		for _, member := range members[1:] {
			if s := individualScore(member); s < min {
				min = s
			}
		}

		deltas = append(deltas, ScoreEntry{Id: teamId, Points: min})
	}

	return deltas
}

// scoreAndCreditId returns the id a player's score is credited under:
// their own id in solo mode, their team's id in team mode (spec §4.5.1,
// §4.7 "Score" message).
func scoreAndCreditId(ctx *SlideContext, playerId Id) Id {
	if !ctx.TeamsEnabled {
		return playerId
	}

	if v, ok := ctx.Watchers.Get(playerId); ok && v.Kind == KindPlayer && v.Player.Kind == PlayerTeam {
		return v.Player.TeamId
	}

	return playerId
}
