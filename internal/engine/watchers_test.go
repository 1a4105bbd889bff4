package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatchersPreSeedsHost(t *testing.T) {
	hostId := NewId()
	w := NewWatchers(hostId)

	v, ok := w.Get(hostId)
	require.True(t, ok)
	assert.Equal(t, KindHost, v.Kind)
	assert.Equal(t, 1, w.SpecificCount(KindHost))
}

func TestWatchersAddEnforcesCapacity(t *testing.T) {
	w := NewWatchers(NewId())

	for i := 0; i < MaxPlayers-1; i++ {
		require.NoError(t, w.Add(NewId(), UnassignedValue()))
	}

	err := w.Add(NewId(), UnassignedValue())
	assert.ErrorIs(t, err, ErrMaximumPlayers)
}

func TestWatchersUpdateValueMovesKindBucket(t *testing.T) {
	w := NewWatchers(NewId())

	id := NewId()
	require.NoError(t, w.Add(id, UnassignedValue()))
	assert.Equal(t, 1, w.SpecificCount(KindUnassigned))

	w.UpdateValue(id, IndividualValue("Alice"))

	assert.Equal(t, 0, w.SpecificCount(KindUnassigned))
	assert.Equal(t, 1, w.SpecificCount(KindPlayer))

	name, ok := w.GetName(id)
	require.True(t, ok)
	assert.Equal(t, "Alice", name)
}

func TestWatchersAnnounceSkipsDeadTunnels(t *testing.T) {
	w := NewWatchers(NewId())

	live, dead := NewId(), NewId()
	require.NoError(t, w.Add(live, IndividualValue("Live")))
	require.NoError(t, w.Add(dead, IndividualValue("Dead")))

	liveTunnel := newMemTunnel()
	finder := registryFinder(map[Id]Tunnel{live: liveTunnel})

	w.Announce("hello", finder)

	assert.Equal(t, "hello", liveTunnel.lastMessage())
}

func TestWatchersAnnounceEvictsOnTransportFailure(t *testing.T) {
	w := NewWatchers(NewId())

	id := NewId()
	require.NoError(t, w.Add(id, IndividualValue("Alice")))

	tunnel := newMemTunnel()
	tunnel.failNext = true
	finder := registryFinder(map[Id]Tunnel{id: tunnel})

	w.Announce("hello", finder)

	assert.True(t, tunnel.isClosed())
	assert.Equal(t, 0, tunnel.messageCount())
}

func TestWatchersAnnounceWithSkipsRecipientsOnFalse(t *testing.T) {
	w := NewWatchers(NewId())

	player := NewId()
	require.NoError(t, w.Add(player, IndividualValue("Alice")))

	tunnel := newMemTunnel()
	finder := registryFinder(map[Id]Tunnel{player: tunnel})

	w.AnnounceWith(func(id Id, kind Kind) (string, bool) {
		if kind == KindHost {
			return "", false
		}

		return "player-only", true
	}, finder)

	assert.Equal(t, "player-only", tunnel.lastMessage())
}

func TestWatchersSpecificVecFiltersByKind(t *testing.T) {
	hostId := NewId()
	w := NewWatchers(hostId)

	player := NewId()
	require.NoError(t, w.Add(player, IndividualValue("Alice")))

	hostTunnel, playerTunnel := newMemTunnel(), newMemTunnel()
	finder := registryFinder(map[Id]Tunnel{hostId: hostTunnel, player: playerTunnel})

	entries := w.SpecificVec(KindPlayer, finder)
	require.Len(t, entries, 1)
	assert.Equal(t, player, entries[0].Id)
}
