package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGame(t *testing.T, f Fuiz, options Options) (*Game, Id) {
	t.Helper()

	seq, err := NewSequencer(f)
	require.NoError(t, err)

	hostId := NewId()

	return New(seq, options, hostId, SystemClock), hostId
}

func TestOptionsValidateAcceptsNilTeams(t *testing.T) {
	assert.NoError(t, Options{}.Validate())
}

func TestOptionsValidateAcceptsBoundarySizes(t *testing.T) {
	assert.NoError(t, Options{Teams: &TeamOptions{Size: MinTeamSize}}.Validate())
	assert.NoError(t, Options{Teams: &TeamOptions{Size: MaxTeamSize}}.Validate())
}

func TestOptionsValidateRejectsOutOfBoundsTeamSize(t *testing.T) {
	assert.Error(t, Options{Teams: &TeamOptions{Size: 0}}.Validate())
	assert.Error(t, Options{Teams: &TeamOptions{Size: MaxTeamSize + 1}}.Validate())
}

func TestGamePlayWithZeroSlidesJumpsToSummary(t *testing.T) {
	game, hostId := newTestGame(t, Fuiz{Title: "Empty", Slides: nil}, Options{})

	hostTunnel := newMemTunnel()
	finder := registryFinder(map[Id]Tunnel{hostId: hostTunnel})

	game.Play(finder, noopSchedule)

	stage, _ := game.Stage()
	assert.Equal(t, StageDone, stage)
	assert.True(t, game.IsDone())
	assert.True(t, hostTunnel.isClosed())
}

func TestGameAddUnassignedRejectedAfterDone(t *testing.T) {
	game, hostId := newTestGame(t, Fuiz{Title: "Empty"}, Options{})

	finder := registryFinder(map[Id]Tunnel{hostId: newMemTunnel()})
	game.Play(finder, noopSchedule)

	err := game.AddUnassigned(NewId(), finder)
	assert.ErrorIs(t, err, ErrGameDone)
}

func TestGameAddUnassignedSendsNameChooseUnlessLocked(t *testing.T) {
	game, hostId := newTestGame(t, Fuiz{Title: "Quiz", Slides: []SlideConfig{validMultipleChoiceSlide("Q1")}}, Options{})

	watcherId, lockedId := NewId(), NewId()
	watcherTunnel, lockedTunnel := newMemTunnel(), newMemTunnel()
	finder := registryFinder(map[Id]Tunnel{hostId: newMemTunnel(), watcherId: watcherTunnel, lockedId: lockedTunnel})

	require.NoError(t, game.AddUnassigned(watcherId, finder))
	assert.Equal(t, `{"kind":"NameChoose"}`, watcherTunnel.lastMessage())

	// Once the host locks the game, a new joiner is stored but not prompted.
	lock, err := json.Marshal(LockPayload{Lock: true})
	require.NoError(t, err)
	game.ReceiveMessage(hostId, IncomingMessage{Kind: KindHostLock, Payload: lock}, finder, noopSchedule)

	require.NoError(t, game.AddUnassigned(lockedId, finder))
	assert.True(t, game.HasWatcher(lockedId))
	assert.Equal(t, 0, lockedTunnel.messageCount())
}

func TestGameFullSinglePlayerLifecycle(t *testing.T) {
	slide := validMultipleChoiceSlide("Capital of France?")
	game, hostId := newTestGame(t, Fuiz{Title: "Quiz", Slides: []SlideConfig{slide}}, Options{})

	playerId := NewId()
	hostTunnel, playerTunnel := newMemTunnel(), newMemTunnel()
	finder := registryFinder(map[Id]Tunnel{hostId: hostTunnel, playerId: playerTunnel})

	require.NoError(t, game.AddUnassigned(playerId, finder))

	require.NoError(t, setPlayerName(game, playerId, "Alice", finder))

	game.Play(finder, noopSchedule)
	stage, _ := game.Stage()
	assert.Equal(t, StageSlide, stage)

	// Host forces the round to close without waiting on an answer.
	game.ReceiveMessage(hostId, IncomingMessage{Kind: KindHostNext}, finder, noopSchedule)

	stage, _ = game.Stage()
	assert.Equal(t, StageLeaderboard, stage)

	// Advancing past the last slide summarizes and finishes the game.
	game.ReceiveMessage(hostId, IncomingMessage{Kind: KindHostNext}, finder, noopSchedule)

	stage, _ = game.Stage()
	assert.Equal(t, StageDone, stage)
	assert.True(t, playerTunnel.isClosed())
}

func TestGameReceiveMessageDropsRoleMismatch(t *testing.T) {
	game, hostId := newTestGame(t, Fuiz{Title: "Quiz", Slides: []SlideConfig{validMultipleChoiceSlide("Q1")}}, Options{})

	playerId := NewId()
	finder := registryFinder(map[Id]Tunnel{hostId: newMemTunnel()})
	require.NoError(t, game.AddUnassigned(playerId, finder))

	// playerId is Unassigned, not Host: a HostNext frame from it must be
	// silently dropped rather than advancing the game.
	game.ReceiveMessage(playerId, IncomingMessage{Kind: KindHostNext}, finder, noopSchedule)

	stage, _ := game.Stage()
	assert.Equal(t, StageWaitingScreen, stage)
}

func TestGameReceiveAlarmDropsStaleSlideIndex(t *testing.T) {
	game, hostId := newTestGame(t, Fuiz{Title: "Quiz", Slides: []SlideConfig{
		validMultipleChoiceSlide("Q1"), validMultipleChoiceSlide("Q2"),
	}}, Options{})

	finder := registryFinder(map[Id]Tunnel{hostId: newMemTunnel()})
	game.Play(finder, noopSchedule)

	// An alarm addressed to slide 1 while the game is still on slide 0
	// must be dropped, not applied.
	game.ReceiveAlarm(AlarmMessage{SlideIndex: 1}, finder, noopSchedule)

	stage, idx := game.Stage()
	assert.Equal(t, StageSlide, stage)
	assert.Equal(t, 0, idx)
}

func TestGameUpdateSessionReplaysMetainfoForHost(t *testing.T) {
	game, hostId := newTestGame(t, Fuiz{Title: "Quiz", Slides: []SlideConfig{validMultipleChoiceSlide("Q1")}}, Options{})

	hostTunnel := newMemTunnel()
	finder := registryFinder(map[Id]Tunnel{hostId: hostTunnel})

	game.UpdateSession(hostId, finder)

	require.GreaterOrEqual(t, hostTunnel.messageCount(), 1)

	var env UpdateMessage
	require.NoError(t, json.Unmarshal([]byte(hostTunnel.messages[0]), &env))
	assert.Equal(t, "Metainfo", env.Kind)
}

func setPlayerName(game *Game, watcherId Id, name string, finder TunnelFinder) error {
	payload, err := json.Marshal(NamePayload{Name: name})
	if err != nil {
		return err
	}

	game.ReceiveMessage(watcherId, IncomingMessage{Kind: KindUnassignedNameRequest, Payload: payload}, finder, nil)

	return nil
}
