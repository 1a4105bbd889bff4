/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"sort"
	"sync"
)

// ScoreEntry is one (watcher, points) pair within a score delta or a
// cumulative ranking.
type ScoreEntry struct {
	Id     Id
	Points int
}

// Position is a cached (points, rank) pair (spec §4.4, invariant 5).
type Position struct {
	Points   int
	Position int
}

// SlideResult is the per-slide (correct, wrong) tally used by HostSummary.
type SlideResult struct {
	Correct int
	Wrong   int
}

// FinalSummary is memoized on first request to either HostSummary or
// PlayerSummary; ShowReal is captured at that time and later calls with a
// different value are ignored (spec §4.4 "memoized on first request").
type FinalSummary struct {
	ShowReal        bool
	PlayerCount     int
	SlideResults    []SlideResult
	PlayerHistories map[Id][]int
}

// Leaderboard is the append-only per-slide score history plus cached
// cumulative projections (spec §4.4).
type Leaderboard struct {
	mu sync.Mutex

	history    [][]ScoreEntry // one entry per AddScores call
	cumulative map[Id]int

	scoresDescending         []ScoreEntry
	previousScoresDescending []ScoreEntry
	scoreAndPosition         map[Id]Position

	finalSummary *FinalSummary
}

// NewLeaderboard constructs an empty leaderboard.
func NewLeaderboard() *Leaderboard {
	return &Leaderboard{
		cumulative:       make(map[Id]int),
		scoreAndPosition: make(map[Id]Position),
	}
}

func sortedDescending(cumulative map[Id]int) []ScoreEntry {
	entries := make([]ScoreEntry, 0, len(cumulative))
	for id, points := range cumulative {
		entries = append(entries, ScoreEntry{Id: id, Points: points})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Points != entries[j].Points {
			return entries[i].Points > entries[j].Points
		}

		return entries[i].Id.String() < entries[j].Id.String()
	})

	return entries
}

// AddScores pushes deltas to the append-only history, recomputes the
// cumulative map by additive merge, and rotates previous<-current (spec
// §4.4).
func (lb *Leaderboard) AddScores(deltas []ScoreEntry) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	lb.history = append(lb.history, deltas)

	for _, d := range deltas {
		lb.cumulative[d.Id] += d.Points
	}

	next := sortedDescending(lb.cumulative)

	lb.previousScoresDescending = lb.scoresDescending
	lb.scoresDescending = next

	lb.scoreAndPosition = make(map[Id]Position, len(next))
	for i, e := range next {
		lb.scoreAndPosition[e.Id] = Position{Points: e.Points, Position: i}
	}
}

const leaderboardTruncation = 50

// LastTwoScoresDescending returns the current and prior cumulative
// rankings, each truncated to 50 entries with the exact count preserved.
func (lb *Leaderboard) LastTwoScoresDescending() (current, previous TruncatedVec[ScoreEntry]) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	current = NewTruncatedVec(lb.scoresDescending, leaderboardTruncation)
	previous = NewTruncatedVec(lb.previousScoresDescending, leaderboardTruncation)

	return current, previous
}

// Score returns id's cached cumulative (points, position).
func (lb *Leaderboard) Score(id Id) (Position, bool) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	p, ok := lb.scoreAndPosition[id]

	return p, ok
}

func (lb *Leaderboard) memoize(showReal bool) *FinalSummary {
	if lb.finalSummary != nil {
		return lb.finalSummary
	}

	playerSet := make(map[Id]struct{})
	slideResults := make([]SlideResult, len(lb.history))
	histories := make(map[Id][]int)

	for i, deltas := range lb.history {
		var result SlideResult

		for _, d := range deltas {
			playerSet[d.Id] = struct{}{}

			if d.Points > 0 {
				result.Correct++
			} else {
				result.Wrong++
			}
		}

		slideResults[i] = result
	}

	for id := range playerSet {
		history := make([]int, len(lb.history))

		for i, deltas := range lb.history {
			for _, d := range deltas {
				if d.Id != id {
					continue
				}

				if showReal {
					history[i] = d.Points
				} else if d.Points > 0 {
					history[i] = 1
				}
			}
		}

		histories[id] = history
	}

	lb.finalSummary = &FinalSummary{
		ShowReal:        showReal,
		PlayerCount:     len(playerSet),
		SlideResults:    slideResults,
		PlayerHistories: histories,
	}

	return lb.finalSummary
}

// PlayerSummary returns id's per-slide point history, length equal to the
// number of slides played so far. Entries are binarized to {0,1} unless
// showReal.
func (lb *Leaderboard) PlayerSummary(id Id, showReal bool) []int {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	summary := lb.memoize(showReal)

	if history, ok := summary.PlayerHistories[id]; ok {
		return history
	}

	return make([]int, len(summary.SlideResults))
}

// HostSummary returns the player count and the per-slide (correct, wrong)
// tally.
func (lb *Leaderboard) HostSummary(showReal bool) (int, []SlideResult) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	summary := lb.memoize(showReal)

	return summary.PlayerCount, summary.SlideResults
}
