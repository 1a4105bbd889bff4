/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Stage is the Game's top-level position (spec §4.7).
type Stage int

const (
	StageWaitingScreen Stage = iota
	StageTeamDisplay
	StageSlide
	StageLeaderboard
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageWaitingScreen:
		return "WaitingScreen"
	case StageTeamDisplay:
		return "TeamDisplay"
	case StageSlide:
		return "Slide"
	case StageLeaderboard:
		return "Leaderboard"
	case StageDone:
		return "Done"
	default:
		return "Unknown"
	}
}

type gameState struct {
	Stage Stage
	Index int
}

// TeamOptions configures team play (spec §6 "Options").
type TeamOptions struct {
	Size         int  `json:"size"`
	AssignRandom bool `json:"assign_random"`
}

// Options configures a Game for its whole lifetime (spec §6 "Options").
type Options struct {
	RandomNames   bool         `json:"random_names"`
	ShowAnswers   bool         `json:"show_answers"`
	NoLeaderboard bool         `json:"no_leaderboard"`
	Teams         *TeamOptions `json:"teams,omitempty"`
}

// Team size bounds (spec §3 "teams?: {size ∈ [1,5], assign_random: bool}").
const (
	MinTeamSize = 1
	MaxTeamSize = 5
)

// Validate checks Options' bounds, returning an error describing the first
// violation (spec §7 "Validation errors ... returned to the caller that
// submitted the data").
func (o Options) Validate() error {
	if o.Teams == nil {
		return nil
	}

	if o.Teams.Size < MinTeamSize || o.Teams.Size > MaxTeamSize {
		return fmt.Errorf("teams.size %d is outside bounds [%d,%d]", o.Teams.Size, MinTeamSize, MaxTeamSize)
	}

	return nil
}

// ErrGameDone is returned by operations attempted after the Game has
// reached the Done stage (spec §4.7 "mark_as_done ... subsequent messages
// are rejected").
var ErrGameDone = errors.New("game is done")

// Game is the top-level state machine composing every other component
// (spec §4.7). One Game is guarded by a single RWMutex; every mutating
// call holds the writer lock for its whole dispatch (spec §5).
type Game struct {
	mu sync.RWMutex

	fuiz    *Sequencer
	options Options

	watchers    *Watchers
	names       *Names
	teams       *TeamManager
	leaderboard *Leaderboard

	clock      Clock
	rnd        *rand.Rand
	petnameGen PetnameGenerator

	state     gameState
	locked    bool
	updatedAt time.Time
}

// New constructs a Game with hostId pre-reserved as the single Host (spec
// §4.8 "add_game").
func New(fuiz *Sequencer, options Options, hostId Id, clock Clock) *Game {
	if clock == nil {
		clock = SystemClock
	}

	var teams *TeamManager
	if options.Teams != nil {
		teams = NewTeamManager(options.Teams.Size)
	}

	return &Game{
		fuiz:        fuiz,
		options:     options,
		watchers:    NewWatchers(hostId),
		names:       NewNames(nil),
		teams:       teams,
		leaderboard: NewLeaderboard(),
		clock:       clock,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		petnameGen:  DefaultPetnameGenerator,
		state:       gameState{Stage: StageWaitingScreen},
		updatedAt:   clock.Now(),
	}
}

func (g *Game) touch() {
	g.updatedAt = g.clock.Now()
}

func (g *Game) teamsEnabled() bool {
	return g.options.Teams != nil
}

func (g *Game) slideContext(tunnelFinder TunnelFinder, schedule Scheduler) *SlideContext {
	return &SlideContext{
		Watchers:     g.watchers,
		Names:        g.names,
		Teams:        g.teams,
		Leaderboard:  g.leaderboard,
		TunnelFinder: tunnelFinder,
		Schedule:     schedule,
		Clock:        g.clock,
		TeamsEnabled: g.teamsEnabled(),
		SlideIndex:   g.state.Index,
	}
}

// Stage returns the Game's current stage and, for Slide/Leaderboard, the
// active slide index.
func (g *Game) Stage() (Stage, int) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.state.Stage, g.state.Index
}

// IsDone reports whether the Game has reached StageDone.
func (g *Game) IsDone() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.state.Stage == StageDone
}

// Updated returns the timestamp of the Game's last mutation, used by an
// external stale-game sweeper (spec §4.8 "alive_check").
func (g *Game) Updated() time.Time {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.updatedAt
}

// HasWatcher reports whether watcherId is a known watcher of this game.
func (g *Game) HasWatcher(id Id) bool {
	return g.watchers.Has(id)
}

// AddUnassigned registers a fresh watcher id as Unassigned. If the game is
// locked, the watcher is stored but not prompted (spec §4.7 "Lock").
func (g *Game) AddUnassigned(watcherId Id, tunnelFinder TunnelFinder) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Stage == StageDone {
		return ErrGameDone
	}

	if err := g.watchers.Add(watcherId, UnassignedValue()); err != nil {
		return err
	}

	if !g.locked {
		g.watchers.SendMessage(NewUpdateMessage("NameChoose", nil).String(), watcherId, tunnelFinder)
	}

	g.touch()

	return nil
}

// closeAllTunnels tears down every live tunnel (spec §4.7
// "mark_as_done").
func (g *Game) closeAllTunnels(tunnelFinder TunnelFinder) {
	for _, entry := range g.watchers.Vec(tunnelFinder) {
		entry.Tunnel.Close()
	}
}

// MarkAsDone forcibly ends the game without broadcasting a summary, used
// by an external lifecycle sweeper (spec §4.8 "remove_game").
func (g *Game) MarkAsDone(tunnelFinder TunnelFinder) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.state = gameState{Stage: StageDone}
	g.touch()
	g.closeAllTunnels(tunnelFinder)
}

// Play implements the two-call WaitingScreen/TeamDisplay progression
// (spec §4.7 "play").
func (g *Game) Play(tunnelFinder TunnelFinder, schedule Scheduler) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.playLocked(tunnelFinder, schedule)
}

func (g *Game) playLocked(tunnelFinder TunnelFinder, schedule Scheduler) {
	switch g.state.Stage {
	case StageWaitingScreen:
		if g.teamsEnabled() && !g.teams.Finalized() {
			g.finalizeTeams(tunnelFinder)
			g.state = gameState{Stage: StageTeamDisplay}
			g.touch()
			g.broadcastTeamDisplay(tunnelFinder)

			return
		}

		g.enterSlide(0, tunnelFinder, schedule)
	case StageTeamDisplay:
		g.enterSlide(0, tunnelFinder, schedule)
	default:
		// Already progressed past the lobby; Play is a no-op.
	}
}

func (g *Game) finalizeTeams(tunnelFinder TunnelFinder) {
	players := g.watchers.PlayerIds()
	g.teams.Finalize(players, g.rnd, g.names, g.petnameGen)

	for _, id := range players {
		teamId, ok := g.teams.GetTeam(id)
		if !ok {
			continue
		}

		teamName, _ := g.names.GetName(teamId)
		individualName, _ := g.names.GetName(id)
		idx := g.teams.TeamIndex(id, func(pid Id) bool {
			_, ok := tunnelFinder(pid)

			return ok
		})

		g.watchers.UpdateValue(id, TeamValue(teamName, individualName, teamId, idx))
	}
}

func (g *Game) broadcastTeamDisplay(tunnelFinder TunnelFinder) {
	teamIds := g.teams.AllIds()
	names := make([]string, 0, len(teamIds))

	for _, id := range teamIds {
		name, _ := g.names.GetName(id)
		names = append(names, name)
	}

	hostMsg := NewUpdateMessage("TeamDisplay", names).String()
	g.watchers.AnnounceSpecific(KindHost, hostMsg, tunnelFinder)
	g.watchers.AnnounceSpecific(KindUnassigned, hostMsg, tunnelFinder)

	g.watchers.AnnounceWith(func(id Id, kind Kind) (string, bool) {
		if kind != KindPlayer {
			return "", false
		}

		v, ok := g.watchers.Get(id)
		if !ok || v.Player.Kind != PlayerTeam {
			return "", false
		}

		return NewUpdateMessage("FindTeam", v.Player.TeamName).String(), true
	}, tunnelFinder)
}

// enterSlide transitions into Slide(index), or finishes the game if index
// is past the end (spec §4.7 "With zero slides configured, jump directly
// to summary").
func (g *Game) enterSlide(index int, tunnelFinder TunnelFinder, schedule Scheduler) {
	if index >= g.fuiz.Len() {
		g.finishGame(tunnelFinder)

		return
	}

	g.state = gameState{Stage: StageSlide, Index: index}
	g.touch()

	ctx := g.slideContext(tunnelFinder, schedule)
	if g.fuiz.PlaySlide(ctx, index) {
		g.finishSlide(tunnelFinder, schedule)
	}
}

// finishSlide is called when the active engine reports completion (spec
// §4.7 "finish_slide").
func (g *Game) finishSlide(tunnelFinder TunnelFinder, schedule Scheduler) {
	idx := g.state.Index

	if g.options.NoLeaderboard {
		g.enterSlide(idx+1, tunnelFinder, schedule)

		return
	}

	g.state = gameState{Stage: StageLeaderboard, Index: idx}
	g.touch()
	g.broadcastLeaderboard(tunnelFinder)
}

func (g *Game) broadcastLeaderboard(tunnelFinder TunnelFinder) {
	current, previous := g.leaderboard.LastTwoScoresDescending()

	payload := struct {
		Current TruncatedVec[ScoreEntry] `json:"current"`
		Prior   TruncatedVec[ScoreEntry] `json:"prior"`
	}{Current: current, Prior: previous}

	msg := NewUpdateMessage("Leaderboard", payload).String()
	g.watchers.AnnounceSpecific(KindHost, msg, tunnelFinder)
	g.watchers.AnnounceSpecific(KindUnassigned, msg, tunnelFinder)

	ctx := g.slideContext(tunnelFinder, nil)

	for _, entry := range g.watchers.SpecificVec(KindPlayer, tunnelFinder) {
		pos, ok := g.leaderboard.Score(scoreAndCreditId(ctx, entry.Id))
		if !ok {
			continue
		}

		scoreMsg := NewUpdateMessage("Score", struct {
			Points   int `json:"points"`
			Position int `json:"position"`
		}{Points: pos.Points, Position: pos.Position}).String()

		g.watchers.SendMessage(scoreMsg, entry.Id, tunnelFinder)
	}
}

// finishGame broadcasts the final summary and marks the game Done (spec
// §4.7 "if no slides remain, summarize").
func (g *Game) finishGame(tunnelFinder TunnelFinder) {
	g.announceSummary(tunnelFinder)
	g.state = gameState{Stage: StageDone}
	g.touch()
	g.closeAllTunnels(tunnelFinder)
}

func (g *Game) announceSummary(tunnelFinder TunnelFinder) {
	showReal := g.options.ShowAnswers

	playerCount, slideResults := g.leaderboard.HostSummary(showReal)

	hostPayload := struct {
		PlayerCount int           `json:"player_count"`
		Slides      []SlideResult `json:"slides"`
	}{PlayerCount: playerCount, Slides: slideResults}

	hostMsg := NewUpdateMessage("Summary", hostPayload).String()
	g.watchers.AnnounceSpecific(KindHost, hostMsg, tunnelFinder)
	g.watchers.AnnounceSpecific(KindUnassigned, hostMsg, tunnelFinder)

	ctx := g.slideContext(tunnelFinder, nil)

	for _, entry := range g.watchers.SpecificVec(KindPlayer, tunnelFinder) {
		creditId := scoreAndCreditId(ctx, entry.Id)
		history := g.leaderboard.PlayerSummary(creditId, showReal)
		pos, _ := g.leaderboard.Score(creditId)

		payload := struct {
			History  []int `json:"history"`
			Points   int   `json:"points"`
			Position int   `json:"position"`
		}{History: history, Points: pos.Points, Position: pos.Position}

		g.watchers.SendMessage(NewUpdateMessage("Summary", payload).String(), entry.Id, tunnelFinder)
	}
}

// ReceiveMessage dispatches an Incoming frame already resolved to
// watcherId. Role-mismatched frames and frames arriving after Done are
// silently dropped (spec §6, §7 "Protocol-mismatch").
func (g *Game) ReceiveMessage(watcherId Id, msg IncomingMessage, tunnelFinder TunnelFinder, schedule Scheduler) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Stage == StageDone {
		return
	}

	value, ok := g.watchers.Get(watcherId)
	if !ok {
		return
	}

	switch msg.Category() {
	case CategoryHost:
		if value.Kind != KindHost {
			return
		}

		g.handleHostMessage(msg, tunnelFinder, schedule)
	case CategoryUnassigned:
		if value.Kind != KindUnassigned {
			return
		}

		g.handleUnassignedMessage(watcherId, msg, tunnelFinder)
	case CategoryPlayer:
		if value.Kind != KindPlayer {
			return
		}

		g.handlePlayerMessage(watcherId, msg, tunnelFinder, schedule)
	}
}

func (g *Game) handleHostMessage(msg IncomingMessage, tunnelFinder TunnelFinder, schedule Scheduler) {
	switch msg.Kind {
	case KindHostLock:
		var payload LockPayload
		if decodePayload(msg, &payload) != nil {
			return
		}

		g.locked = payload.Lock
		g.touch()
	case KindHostNext:
		g.hostNext(tunnelFinder, schedule)
	case KindHostIndex:
		var payload IndexPayload
		if decodePayload(msg, &payload) != nil {
			return
		}

		g.enterSlide(payload.Index, tunnelFinder, schedule)
	}
}

func (g *Game) hostNext(tunnelFinder TunnelFinder, schedule Scheduler) {
	switch g.state.Stage {
	case StageWaitingScreen, StageTeamDisplay:
		g.playLocked(tunnelFinder, schedule)
	case StageSlide:
		ctx := g.slideContext(tunnelFinder, schedule)
		if g.fuiz.ReceiveMessage(ctx, g.state.Index, NilId, IncomingMessage{Kind: KindHostNext}) {
			g.finishSlide(tunnelFinder, schedule)
		}
	case StageLeaderboard:
		g.enterSlide(g.state.Index+1, tunnelFinder, schedule)
	}
}

func (g *Game) handleUnassignedMessage(watcherId Id, msg IncomingMessage, tunnelFinder TunnelFinder) {
	if msg.Kind != KindUnassignedNameRequest {
		return
	}

	var payload NamePayload
	if decodePayload(msg, &payload) != nil {
		return
	}

	g.assignPlayerName(watcherId, payload.Name, tunnelFinder)
}

// assignPlayerName implements the Name Registry handshake and, for a late
// joiner into an already-finalized team game, immediate round-robin team
// assignment (spec §4.2, §4.3 "Late join").
func (g *Game) assignPlayerName(watcherId Id, raw string, tunnelFinder TunnelFinder) {
	name, err := g.names.SetName(watcherId, raw)
	if err != nil {
		g.watchers.SendMessage(NewUpdateMessage("NameError", err.Error()).String(), watcherId, tunnelFinder)

		return
	}

	g.watchers.UpdateValue(watcherId, IndividualValue(name))
	g.watchers.SendMessage(NewUpdateMessage("NameAssign", name).String(), watcherId, tunnelFinder)

	if g.teamsEnabled() && g.teams.Finalized() {
		teamId, teamName := g.teams.AddPlayer(watcherId, g.names)
		idx := g.teams.TeamIndex(watcherId, func(pid Id) bool {
			_, ok := tunnelFinder(pid)

			return ok
		})

		g.watchers.UpdateValue(watcherId, TeamValue(teamName, name, teamId, idx))
		g.watchers.SendMessage(NewUpdateMessage("FindTeam", teamName).String(), watcherId, tunnelFinder)
	}
}

func (g *Game) handlePlayerMessage(watcherId Id, msg IncomingMessage, tunnelFinder TunnelFinder, schedule Scheduler) {
	if msg.Kind == KindPlayerChooseTeammates {
		var payload TeammatesPayload
		if decodePayload(msg, &payload) != nil {
			return
		}

		ids := make([]Id, 0, len(payload.Names))

		for _, name := range payload.Names {
			if id, ok := g.names.GetId(name); ok {
				ids = append(ids, id)
			}
		}

		g.teams.AddPreference(watcherId, ids)

		return
	}

	if g.state.Stage != StageSlide {
		return
	}

	ctx := g.slideContext(tunnelFinder, schedule)
	if g.fuiz.ReceiveMessage(ctx, g.state.Index, watcherId, msg) {
		g.finishSlide(tunnelFinder, schedule)
	}
}

// ReceiveAlarm routes alarm to the active slide engine iff it still
// matches the current slide (spec §4.8 "receive_alarm").
func (g *Game) ReceiveAlarm(alarm AlarmMessage, tunnelFinder TunnelFinder, schedule Scheduler) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state.Stage != StageSlide || g.state.Index != alarm.SlideIndex {
		return
	}

	ctx := g.slideContext(tunnelFinder, schedule)
	if g.fuiz.ReceiveAlarm(ctx, g.state.Index, alarm) {
		g.finishSlide(tunnelFinder, schedule)
	}
}

type metainfoPayload struct {
	Title      string  `json:"title"`
	SlideCount int     `json:"slide_count"`
	Options    Options `json:"options"`
}

func (g *Game) metainfo() metainfoPayload {
	return metainfoPayload{Title: g.fuiz.Title(), SlideCount: g.fuiz.Len(), Options: g.options}
}

func (g *Game) currentStateMessage(watcherId Id, kind Kind, tunnelFinder TunnelFinder) SyncMessage {
	switch g.state.Stage {
	case StageWaitingScreen:
		return NewSyncMessage("WaitingScreen", nil)
	case StageTeamDisplay:
		return NewSyncMessage("TeamDisplay", nil)
	case StageSlide:
		ctx := g.slideContext(tunnelFinder, nil)

		return g.fuiz.StateMessage(ctx, g.state.Index, watcherId, kind)
	case StageLeaderboard:
		current, previous := g.leaderboard.LastTwoScoresDescending()

		return NewSyncMessage("Leaderboard", struct {
			Current TruncatedVec[ScoreEntry] `json:"current"`
			Prior   TruncatedVec[ScoreEntry] `json:"prior"`
		}{Current: current, Prior: previous})
	default:
		return NewSyncMessage("Done", nil)
	}
}

// UpdateSession replays name assignment, metainfo, and the current state
// message to a reconnecting watcher (spec §4.8 "update_session"). It also
// replays the TeamDisplay/FindTeam message when applicable, so a
// reconnect mid team-display does not see a blank screen (SPEC_FULL.md
// "Reconnect replay detail").
func (g *Game) UpdateSession(watcherId Id, tunnelFinder TunnelFinder) {
	g.mu.Lock()
	defer g.mu.Unlock()

	value, ok := g.watchers.Get(watcherId)
	if !ok {
		return
	}

	switch value.Kind {
	case KindHost:
		g.watchers.SendMessage(NewUpdateMessage("Metainfo", g.metainfo()).String(), watcherId, tunnelFinder)
	case KindPlayer:
		if value.Player.Kind == PlayerIndividual {
			g.watchers.SendMessage(NewUpdateMessage("NameAssign", value.Player.Name).String(), watcherId, tunnelFinder)
		} else {
			g.watchers.SendMessage(NewUpdateMessage("NameAssign", value.Player.IndividualName).String(), watcherId, tunnelFinder)
			g.watchers.SendMessage(NewUpdateMessage("FindTeam", value.Player.TeamName).String(), watcherId, tunnelFinder)
		}
	case KindUnassigned:
		if !g.locked {
			g.watchers.SendMessage(NewUpdateMessage("NameChoose", nil).String(), watcherId, tunnelFinder)
		}
	}

	sync := g.currentStateMessage(watcherId, value.Kind, tunnelFinder)
	g.watchers.SendState(sync.String(), watcherId, tunnelFinder)
}

// RemoveWatcherSession closes watcherId's tunnel without removing the
// registry entry, so a later reconnect can reclaim it (spec §4.1
// "remove_session").
func (g *Game) RemoveWatcherSession(watcherId Id, tunnelFinder TunnelFinder) {
	g.watchers.RemoveSession(watcherId, tunnelFinder)
}
