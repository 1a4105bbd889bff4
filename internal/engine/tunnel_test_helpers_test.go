package engine

import (
	"math/rand"
	"sync"
	"time"
)

// noopSchedule discards every alarm, used by tests that drive a slide
// through Host.Next rather than waiting out a real timer.
func noopSchedule(alarm AlarmMessage, d time.Duration) {}

// newTestRand returns a deterministically seeded *rand.Rand for tests that
// need TeamManager.Finalize's shuffle step to be reproducible.
func newTestRand() *rand.Rand {
	return rand.New(rand.NewSource(42))
}

// memTunnel is an in-memory Tunnel recording every frame sent to it, used
// throughout the package's tests in place of a real websocket connection.
type memTunnel struct {
	mu       sync.Mutex
	messages []string
	states   []string
	closed   bool
	failNext bool
}

func newMemTunnel() *memTunnel {
	return &memTunnel{}
}

func (t *memTunnel) SendMessage(msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failNext {
		t.failNext = false

		return errTunnelTestFailure
	}

	t.messages = append(t.messages, msg)

	return nil
}

func (t *memTunnel) SendState(msg string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.states = append(t.states, msg)

	return nil
}

func (t *memTunnel) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
}

func (t *memTunnel) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

func (t *memTunnel) lastMessage() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.messages) == 0 {
		return ""
	}

	return t.messages[len(t.messages)-1]
}

func (t *memTunnel) messageCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.messages)
}

type tunnelTestFailure struct{}

func (tunnelTestFailure) Error() string { return "mem tunnel forced failure" }

var errTunnelTestFailure error = tunnelTestFailure{}

// registryFinder adapts a plain map into a TunnelFinder for tests that
// don't need a GameManager.
func registryFinder(reg map[Id]Tunnel) TunnelFinder {
	return func(id Id) (Tunnel, bool) {
		t, ok := reg[id]

		return t, ok
	}
}
