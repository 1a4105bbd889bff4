/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package engine

import (
	"errors"
	"sync"
)

// Kind classifies a Watcher's role.
type Kind int

const (
	KindUnassigned Kind = iota
	KindHost
	KindPlayer
)

// PlayerKind distinguishes solo from team play for a Player watcher.
type PlayerKind int

const (
	PlayerIndividual PlayerKind = iota
	PlayerTeam
)

// PlayerValue is the Player-kind payload (spec §3 "Watcher").
type PlayerValue struct {
	Kind PlayerKind

	// Individual
	Name string

	// Team
	TeamName          string
	IndividualName    string
	TeamId            Id
	PlayerIndexInTeam int
}

// Value is the tagged payload a Watcher carries.
type Value struct {
	Kind   Kind
	Player PlayerValue
}

func UnassignedValue() Value { return Value{Kind: KindUnassigned} }
func HostValue() Value       { return Value{Kind: KindHost} }

func IndividualValue(name string) Value {
	return Value{Kind: KindPlayer, Player: PlayerValue{Kind: PlayerIndividual, Name: name}}
}

func TeamValue(teamName, individualName string, teamId Id, indexInTeam int) Value {
	return Value{Kind: KindPlayer, Player: PlayerValue{
		Kind:              PlayerTeam,
		TeamName:          teamName,
		IndividualName:    individualName,
		TeamId:            teamId,
		PlayerIndexInTeam: indexInTeam,
	}}
}

// Name returns the display name carried by a Value, regardless of
// individual/team mode.
func (v Value) Name() string {
	switch v.Kind {
	case KindPlayer:
		if v.Player.Kind == PlayerTeam {
			return v.Player.IndividualName
		}

		return v.Player.Name
	default:
		return ""
	}
}

// ErrMaximumPlayers is returned by Add when the registry is at
// capacity (spec §4.1, §7 "Capacity").
var ErrMaximumPlayers = errors.New("maximum players reached")

// MaxPlayers bounds total watchers in a single game.
const MaxPlayers = 1000

// Watchers is the Watcher Registry: id->Value plus a kind-bucketed reverse
// index (spec §4.1). Tunnels are NOT stored here; callers supply a
// TunnelFinder.
type Watchers struct {
	mu      sync.RWMutex
	mapping map[Id]Value
	reverse map[Kind]map[Id]struct{}
}

// NewWatchers constructs a registry with hostId pre-seeded as the single
// Host (spec §3 invariant (a)).
func NewWatchers(hostId Id) *Watchers {
	w := &Watchers{
		mapping: make(map[Id]Value),
		reverse: map[Kind]map[Id]struct{}{
			KindUnassigned: make(map[Id]struct{}),
			KindHost:       make(map[Id]struct{}),
			KindPlayer:     make(map[Id]struct{}),
		},
	}

	w.mapping[hostId] = HostValue()
	w.reverse[KindHost][hostId] = struct{}{}

	return w
}

// Add registers a new watcher id with an initial value.
func (w *Watchers) Add(id Id, value Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.mapping) >= MaxPlayers {
		return ErrMaximumPlayers
	}

	w.mapping[id] = value
	w.reverse[value.Kind][id] = struct{}{}

	return nil
}

// UpdateValue rewires kind-bucket membership atomically when id's role
// changes (e.g. Unassigned -> Player).
func (w *Watchers) UpdateValue(id Id, value Value) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if old, ok := w.mapping[id]; ok {
		delete(w.reverse[old.Kind], id)
	}

	w.mapping[id] = value
	w.reverse[value.Kind][id] = struct{}{}
}

// Has reports whether id is a registered watcher.
func (w *Watchers) Has(id Id) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()

	_, ok := w.mapping[id]

	return ok
}

// Get returns id's current Value.
func (w *Watchers) Get(id Id) (Value, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	v, ok := w.mapping[id]

	return v, ok
}

// WatcherEntry is one (id, tunnel, value) snapshot row.
type WatcherEntry struct {
	Id     Id
	Tunnel Tunnel
	Value  Value
}

// Vec snapshots all watchers with a live tunnel, joined with their value.
func (w *Watchers) Vec(tunnelFinder TunnelFinder) []WatcherEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	entries := make([]WatcherEntry, 0, len(w.mapping))

	for id, value := range w.mapping {
		tunnel, ok := tunnelFinder(id)
		if !ok {
			continue
		}

		entries = append(entries, WatcherEntry{Id: id, Tunnel: tunnel, Value: value})
	}

	return entries
}

// SpecificVec is Vec filtered to a single Kind.
func (w *Watchers) SpecificVec(kind Kind, tunnelFinder TunnelFinder) []WatcherEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := w.reverse[kind]
	entries := make([]WatcherEntry, 0, len(ids))

	for id := range ids {
		tunnel, ok := tunnelFinder(id)
		if !ok {
			continue
		}

		entries = append(entries, WatcherEntry{Id: id, Tunnel: tunnel, Value: w.mapping[id]})
	}

	return entries
}

// SpecificCount returns the number of watchers of a given Kind (alive or
// not -- matches the Rust source, which counts membership not liveness).
func (w *Watchers) SpecificCount(kind Kind) int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return len(w.reverse[kind])
}

// PlayerIds returns every watcher id currently in the Player kind-bucket,
// regardless of tunnel liveness.
func (w *Watchers) PlayerIds() []Id {
	w.mu.RLock()
	defer w.mu.RUnlock()

	ids := make([]Id, 0, len(w.reverse[KindPlayer]))
	for id := range w.reverse[KindPlayer] {
		ids = append(ids, id)
	}

	return ids
}

// IsAlive reports whether id has a live tunnel.
func (w *Watchers) IsAlive(id Id, tunnelFinder TunnelFinder) bool {
	_, ok := tunnelFinder(id)

	return ok
}

// RemoveSession closes id's tunnel without removing the registry entry, so
// a later reconnect (ClaimId) can reclaim the id.
func (w *Watchers) RemoveSession(id Id, tunnelFinder TunnelFinder) {
	if tunnel, ok := tunnelFinder(id); ok {
		tunnel.Close()
	}
}

// GetName returns id's display name, if id is a Player.
func (w *Watchers) GetName(id Id) (string, bool) {
	v, ok := w.Get(id)
	if !ok || v.Kind != KindPlayer {
		return "", false
	}

	return v.Name(), true
}

// SendMessage delivers msg to a single watcher's tunnel, if live. Transport
// failures evict the tunnel (spec §7 "Transport failure") but never
// propagate to the caller or affect game state.
func (w *Watchers) SendMessage(msg string, id Id, tunnelFinder TunnelFinder) {
	tunnel, ok := tunnelFinder(id)
	if !ok {
		return
	}

	if err := tunnel.SendMessage(msg); err != nil {
		tunnel.Close()
	}
}

// SendState delivers a Sync frame to a single watcher's tunnel.
func (w *Watchers) SendState(msg string, id Id, tunnelFinder TunnelFinder) {
	tunnel, ok := tunnelFinder(id)
	if !ok {
		return
	}

	if err := tunnel.SendState(msg); err != nil {
		tunnel.Close()
	}
}

// Announce fans msg out to every live watcher. Ordering to any single
// recipient preserves call order; ordering between recipients is
// unspecified (spec §4.1 invariant).
func (w *Watchers) Announce(msg string, tunnelFinder TunnelFinder) {
	for _, entry := range w.Vec(tunnelFinder) {
		if err := entry.Tunnel.SendMessage(msg); err != nil {
			entry.Tunnel.Close()
		}
	}
}

// AnnounceSpecific is Announce filtered to one Kind.
func (w *Watchers) AnnounceSpecific(kind Kind, msg string, tunnelFinder TunnelFinder) {
	for _, entry := range w.SpecificVec(kind, tunnelFinder) {
		if err := entry.Tunnel.SendMessage(msg); err != nil {
			entry.Tunnel.Close()
		}
	}
}

// AnnounceWith synthesizes a per-recipient message. sender returning ("",
// false) skips that recipient.
func (w *Watchers) AnnounceWith(sender func(id Id, kind Kind) (string, bool), tunnelFinder TunnelFinder) {
	for _, entry := range w.Vec(tunnelFinder) {
		msg, ok := sender(entry.Id, entry.Value.Kind)
		if !ok {
			continue
		}

		if err := entry.Tunnel.SendMessage(msg); err != nil {
			entry.Tunnel.Close()
		}
	}
}
