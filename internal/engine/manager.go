/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"errors"
	"math/rand"
	"sync"
)

// tunnelShardCount is the shard count for the Manager's tunnel registry
// (spec §5 "hash-sharded concurrent map").
const tunnelShardCount = 16

type tunnelShard struct {
	mu sync.RWMutex
	m  map[Id]Tunnel
}

// tunnelRegistry is the (watcher_id -> tunnel) map the Manager owns.
// Lookups never take the Game lock (spec §5 "Tunnel registry").
type tunnelRegistry struct {
	shards [tunnelShardCount]*tunnelShard
}

func newTunnelRegistry() *tunnelRegistry {
	r := &tunnelRegistry{}
	for i := range r.shards {
		r.shards[i] = &tunnelShard{m: make(map[Id]Tunnel)}
	}

	return r
}

func (r *tunnelRegistry) shard(id Id) *tunnelShard {
	return r.shards[id.ShardIndex(tunnelShardCount)]
}

func (r *tunnelRegistry) set(id Id, tunnel Tunnel) {
	s := r.shard(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[id] = tunnel
}

func (r *tunnelRegistry) remove(id Id) {
	s := r.shard(id)

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.m, id)
}

func (r *tunnelRegistry) find(id Id) (Tunnel, bool) {
	s := r.shard(id)

	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.m[id]

	return t, ok
}

// Errors returned by GameManager operations.
var (
	ErrGameNotFound = errors.New("game not found")
	ErrNoGameIdSlot = errors.New("no game id slot available")
)

const maxGameIdAttempts = 2000

func randomGameId() GameId {
	span := int(MaxGameId - MinGameId)

	return MinGameId + GameId(rand.Intn(span))
}

// StatsSaver persists the process-wide (current, all_time) game counters.
// It is called synchronously after every counter change, while the
// counters' lock is held, and reports no error back to the Manager (spec §5
// "Shared resources").
type StatsSaver func(current, allTime int64)

// GameManager owns GameId allocation, the GameId->Game map, the tunnel
// registry, and process-wide statistics (spec §4.8).
type GameManager struct {
	mu    sync.RWMutex
	games map[GameId]*Game

	tunnels *tunnelRegistry
	clock   Clock

	statsMu sync.Mutex
	current int64
	allTime int64
	saver   StatsSaver
}

// NewGameManager constructs an empty Manager. clock defaults to
// SystemClock; saver may be nil to skip persistence.
func NewGameManager(clock Clock, saver StatsSaver) *GameManager {
	if clock == nil {
		clock = SystemClock
	}

	return &GameManager{
		games:   make(map[GameId]*Game),
		tunnels: newTunnelRegistry(),
		clock:   clock,
		saver:   saver,
	}
}

// SeedStats initializes the counters from a previously persisted value,
// e.g. after process restart. Call before serving any traffic.
func (m *GameManager) SeedStats(current, allTime int64) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	m.current = current
	m.allTime = allTime
}

func (m *GameManager) get(gameId GameId) (*Game, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	game, ok := m.games[gameId]

	return game, ok
}

func (m *GameManager) saveStatsLocked() {
	current, allTime := m.current, m.allTime

	if m.saver != nil {
		m.saver(current, allTime)
	}
}

// AddGame validates fuiz, allocates a GameId by rejection sampling, and
// constructs a Game with hostId pre-reserved (spec §4.8 "add_game").
func (m *GameManager) AddGame(fuiz Fuiz, options Options, hostId Id) (GameId, *Game, error) {
	if err := options.Validate(); err != nil {
		return 0, nil, err
	}

	seq, err := NewSequencer(fuiz)
	if err != nil {
		return 0, nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var id GameId

	found := false

	for attempt := 0; attempt < maxGameIdAttempts; attempt++ {
		candidate := randomGameId()
		if _, taken := m.games[candidate]; !taken {
			id = candidate
			found = true

			break
		}
	}

	if !found {
		return 0, nil, ErrNoGameIdSlot
	}

	game := New(seq, options, hostId, m.clock)
	m.games[id] = game

	m.statsMu.Lock()
	m.current++
	m.allTime++
	m.saveStatsLocked()
	m.statsMu.Unlock()

	return id, game, nil
}

// RegisterTunnel binds watcherId's live tunnel, for a fresh connection or
// a reconnect, ahead of AddUnassigned/UpdateSession.
func (m *GameManager) RegisterTunnel(watcherId Id, tunnel Tunnel) {
	m.tunnels.set(watcherId, tunnel)
}

// RemoveTunnel unbinds watcherId's tunnel entry entirely. Used only when
// the watcher itself, not merely its session, is being discarded.
func (m *GameManager) RemoveTunnel(watcherId Id) {
	m.tunnels.remove(watcherId)
}

// TunnelFinder exposes the registry's read path for callers (e.g. tests)
// that need to hand it to a Game directly.
func (m *GameManager) TunnelFinder() TunnelFinder {
	return m.tunnels.find
}

// HasGame reports whether gameId is registered. A game marked Done by
// RemoveGame stays registered; AliveCheck tells the two apart.
func (m *GameManager) HasGame(gameId GameId) bool {
	_, ok := m.get(gameId)

	return ok
}

// HasWatcher reports whether watcherId is registered on gameId.
func (m *GameManager) HasWatcher(gameId GameId, watcherId Id) bool {
	game, ok := m.get(gameId)
	if !ok {
		return false
	}

	return game.HasWatcher(watcherId)
}

// AddUnassigned resolves gameId and forwards (spec §4.8 "add_unassigned").
func (m *GameManager) AddUnassigned(gameId GameId, watcherId Id) error {
	game, ok := m.get(gameId)
	if !ok {
		return ErrGameNotFound
	}

	return game.AddUnassigned(watcherId, m.tunnels.find)
}

// ReceiveMessage resolves gameId and forwards, injecting schedule (spec
// §4.8 "receive_message").
func (m *GameManager) ReceiveMessage(gameId GameId, watcherId Id, msg IncomingMessage, schedule Scheduler) error {
	game, ok := m.get(gameId)
	if !ok {
		return ErrGameNotFound
	}

	game.ReceiveMessage(watcherId, msg, m.tunnels.find, schedule)

	return nil
}

// ReceiveAlarm resolves gameId and forwards to Game.ReceiveAlarm, which
// drops alarms for a slide the game has since advanced past (spec §4.8
// "receive_alarm").
func (m *GameManager) ReceiveAlarm(gameId GameId, alarm AlarmMessage, schedule Scheduler) error {
	game, ok := m.get(gameId)
	if !ok {
		return ErrGameNotFound
	}

	game.ReceiveAlarm(alarm, m.tunnels.find, schedule)

	return nil
}

// UpdateSession binds tunnel for watcherId and replays name assignment,
// metainfo, and the current state message (spec §4.8 "update_session").
func (m *GameManager) UpdateSession(gameId GameId, watcherId Id, tunnel Tunnel) error {
	game, ok := m.get(gameId)
	if !ok {
		return ErrGameNotFound
	}

	m.tunnels.set(watcherId, tunnel)
	game.UpdateSession(watcherId, m.tunnels.find)

	return nil
}

// RemoveGame marks gameId Done and decrements the current-game counter
// (spec §4.8 "remove_game").
func (m *GameManager) RemoveGame(gameId GameId) {
	game, ok := m.get(gameId)
	if !ok {
		return
	}

	game.MarkAsDone(m.tunnels.find)

	m.statsMu.Lock()
	m.current--
	m.saveStatsLocked()
	m.statsMu.Unlock()
}

// AliveCheck reports whether gameId is still progressable, i.e. known and
// not Done (spec §4.8 "alive_check").
func (m *GameManager) AliveCheck(gameId GameId) bool {
	game, ok := m.get(gameId)
	if !ok {
		return false
	}

	return !game.IsDone()
}

// Count returns the live process-wide statistics pair.
func (m *GameManager) Count() (current, allTime int64) {
	m.statsMu.Lock()
	defer m.statsMu.Unlock()

	return m.current, m.allTime
}
