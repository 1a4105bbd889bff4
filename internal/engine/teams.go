/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"math/rand"
	"sort"
	"sync"
)

// TeamManager partitions players into named teams, honoring mutual
// preferences at finalize time and round-robin assigning late joiners
// afterward (spec §4.3).
type TeamManager struct {
	mu sync.Mutex

	targetSize int
	preferred  map[Id][]Id

	finalized   bool
	teamOrder   []Id
	teamMembers map[Id][]Id
	playerTeam  map[Id]Id
	nextRound   int
}

// NewTeamManager constructs a manager targeting teams of targetSize.
func NewTeamManager(targetSize int) *TeamManager {
	if targetSize < 1 {
		targetSize = 1
	}

	return &TeamManager{
		targetSize:  targetSize,
		preferred:   make(map[Id][]Id),
		teamMembers: make(map[Id][]Id),
		playerTeam:  make(map[Id]Id),
	}
}

// AddPreference records a player's preferred teammates, collected during
// the open phase (spec §3 "Team manager").
func (tm *TeamManager) AddPreference(id Id, preferred []Id) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	tm.preferred[id] = preferred
}

func idLess(a, b Id) bool {
	return a.String() < b.String()
}

func containsId(list []Id, target Id) bool {
	for _, id := range list {
		if id == target {
			return true
		}
	}

	return false
}

func mutualAnchor(p Id, prefs map[Id][]Id) Id {
	best := p

	for _, q := range prefs[p] {
		if containsId(prefs[q], p) && idLess(q, best) {
			best = q
		}
	}

	return best
}

type teamGroup struct {
	members []Id
}

func groupSize(g teamGroup) int { return len(g.members) }

// encodedKey is a deterministic string used to tie-break merges by
// membership, per spec step 3 "tie-broken by encoded membership".
func encodedKey(members []Id) string {
	sorted := make([]Id, len(members))
	copy(sorted, members)
	sort.Slice(sorted, func(i, j int) bool { return idLess(sorted[i], sorted[j]) })

	key := ""
	for _, id := range sorted {
		key += id.String()
	}

	return key
}

// Finalize computes the team partition for players, using the collected
// preferences and rnd for shuffling (spec §4.3 "Finalize algorithm").
// petnameGen and names supply unique team display names. Calling Finalize
// a second time is a programmer error and panics (spec §7 "internal
// invariant violations").
func (tm *TeamManager) Finalize(players []Id, rnd *rand.Rand, names *Names, petnameGen PetnameGenerator) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.finalized {
		panic("engine: TeamManager.Finalize called twice")
	}

	if petnameGen == nil {
		petnameGen = DefaultPetnameGenerator
	}

	k := tm.targetSize
	targetCount := 1
	if k > 0 {
		targetCount = (len(players) + k - 1) / k
	}
	if targetCount < 1 {
		targetCount = 1
	}

	groupsByAnchor := make(map[Id][]Id)

	for _, p := range players {
		anchor := mutualAnchor(p, tm.preferred)
		groupsByAnchor[anchor] = append(groupsByAnchor[anchor], p)
	}

	groups := make([]teamGroup, 0, len(groupsByAnchor))

	for _, members := range groupsByAnchor {
		shuffled := make([]Id, len(members))
		copy(shuffled, members)
		rnd.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		groups = append(groups, teamGroup{members: shuffled})
	}

	sortGroupsDescending(groups)

	for len(groups) > targetCount && len(groups) > 1 {
		smallestIdx := len(groups) - 1
		smallest := groups[smallestIdx]

		targetIdx := -1

		for i, g := range groups {
			if i == smallestIdx {
				continue
			}

			if groupSize(g)+len(smallest.members) <= k {
				if targetIdx == -1 || groupSize(g) > groupSize(groups[targetIdx]) {
					targetIdx = i
				}
			}
		}

		if targetIdx == -1 {
			// No group fits within the team-size cap; fall back to the
			// overall largest group so the merge always terminates.
			targetIdx = 0
			for i, g := range groups {
				if i != smallestIdx && groupSize(g) > groupSize(groups[targetIdx]) {
					targetIdx = i
				}
			}
		}

		groups[targetIdx].members = append(groups[targetIdx].members, smallest.members...)
		groups = append(groups[:smallestIdx], groups[smallestIdx+1:]...)

		sortGroupsDescending(groups)
	}

	tm.teamOrder = make([]Id, 0, len(groups))

	for _, g := range groups {
		teamId := NewId()

		for attempt := 0; ; attempt++ {
			candidate := petnameGen(rnd, attempt)

			if _, err := names.SetName(teamId, candidate); err == nil {
				break
			} else if err != ErrNameUsed {
				panic("engine: team petname rejected: " + err.Error())
			}
		}

		tm.teamOrder = append(tm.teamOrder, teamId)
		tm.teamMembers[teamId] = g.members

		for _, member := range g.members {
			tm.playerTeam[member] = teamId
		}
	}

	tm.finalized = true
}

func sortGroupsDescending(groups []teamGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		if len(groups[i].members) != len(groups[j].members) {
			return len(groups[i].members) > len(groups[j].members)
		}

		return encodedKey(groups[i].members) < encodedKey(groups[j].members)
	})
}

// AddPlayer round-robin assigns id to an existing team once finalized. If
// id is already mapped, returns its team name idempotently (spec §4.3
// "Late join").
func (tm *TeamManager) AddPlayer(id Id, names *Names) (teamId Id, teamName string) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if existing, ok := tm.playerTeam[id]; ok {
		name, _ := names.GetName(existing)

		return existing, name
	}

	teamId = tm.teamOrder[tm.nextRound%len(tm.teamOrder)]
	tm.nextRound++

	tm.teamMembers[teamId] = append(tm.teamMembers[teamId], id)
	tm.playerTeam[id] = teamId

	teamName, _ = names.GetName(teamId)

	return teamId, teamName
}

// GetTeam returns the team id id was assigned to, if any.
func (tm *TeamManager) GetTeam(id Id) (Id, bool) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	teamId, ok := tm.playerTeam[id]

	return teamId, ok
}

// TeamMembers returns the current player ids on teamId.
func (tm *TeamManager) TeamMembers(teamId Id) []Id {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	members := tm.teamMembers[teamId]
	out := make([]Id, len(members))
	copy(out, members)

	return out
}

// TeamIndex returns id's position among its alive teammates (as reported
// by alive), used for MultipleChoice answer-visibility rotation (spec
// §4.3 "Queries").
func (tm *TeamManager) TeamIndex(id Id, alive func(Id) bool) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	teamId, ok := tm.playerTeam[id]
	if !ok {
		return 0
	}

	index := 0

	for _, member := range tm.teamMembers[teamId] {
		if member == id {
			return index
		}

		if alive(member) {
			index++
		}
	}

	return index
}

// TeamSize returns the number of current members of id's team.
func (tm *TeamManager) TeamSize(id Id) int {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	teamId, ok := tm.playerTeam[id]
	if !ok {
		return 1
	}

	return len(tm.teamMembers[teamId])
}

// AllIds returns every team id, for leaderboard grouping (spec §4.3
// "Queries").
func (tm *TeamManager) AllIds() []Id {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	out := make([]Id, len(tm.teamOrder))
	copy(out, tm.teamOrder)

	return out
}

// Finalized reports whether Finalize has run.
func (tm *TeamManager) Finalized() bool {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	return tm.finalized
}
