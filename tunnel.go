/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/brightloom/fuiz/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const sendBufferSize = 16

// wsTunnel is a gorilla/websocket-backed engine.Tunnel. Sends enqueue onto
// a buffered channel drained by a dedicated writer goroutine, so Game
// dispatch (which calls SendMessage/SendState while holding its writer
// lock) never blocks on network I/O (spec §5 "Broadcast send operations
// ... must not be performed while holding the Game's writer lock").
type wsTunnel struct {
	conn *websocket.Conn
	send chan string

	closeOnce sync.Once
	closed    chan struct{}
}

func newWsTunnel(conn *websocket.Conn) *wsTunnel {
	return &wsTunnel{
		conn:   conn,
		send:   make(chan string, sendBufferSize),
		closed: make(chan struct{}),
	}
}

func (t *wsTunnel) enqueue(msg string) error {
	select {
	case <-t.closed:
		return errTunnelClosed
	default:
	}

	select {
	case t.send <- msg:
		return nil
	default:
		// Slow consumer; evict rather than block or buffer unbounded.
		t.Close()

		return errTunnelClosed
	}
}

func (t *wsTunnel) SendMessage(msg string) error { return t.enqueue(msg) }
func (t *wsTunnel) SendState(msg string) error   { return t.enqueue(msg) }

func (t *wsTunnel) Close() {
	t.closeOnce.Do(func() {
		close(t.closed)
		_ = t.conn.Close()
	})
}

func (t *wsTunnel) writePump() {
	for {
		select {
		case msg := <-t.send:
			_ = t.conn.SetWriteDeadline(time.Now().Add(writeWait))

			if err := t.conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				t.Close()

				return
			}
		case <-t.closed:
			return
		}
	}
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// readPump decodes incoming frames and routes them through mgr: the very
// first frame must be a Ghost message (DemandId/ClaimId); every frame
// after that is forwarded to the already-resolved (gameId, watcherId)
// (spec §6 "First-frame protocol").
func readPump(cfg *Config, mgr *engine.GameManager, gameId engine.GameId, conn *websocket.Conn) {
	tunnel := newWsTunnel(conn)
	go tunnel.writePump()

	defer tunnel.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		return nil
	})

	var watcherId engine.Id
	resolved := false

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		msg, err := engine.ParseIncomingMessage(data)
		if err != nil {
			continue
		}

		if !resolved {
			id, ok := handleFirstFrame(cfg, mgr, gameId, msg, tunnel)
			if !ok {
				continue
			}

			watcherId = id
			resolved = true

			continue
		}

		schedule := schedulerFor(mgr, gameId)
		_ = mgr.ReceiveMessage(gameId, watcherId, msg, schedule)
	}
}

func handleFirstFrame(cfg *Config, mgr *engine.GameManager, gameId engine.GameId, msg engine.IncomingMessage, tunnel *wsTunnel) (engine.Id, bool) {
	switch msg.Category() {
	case engine.CategoryGhost:
		switch msg.Kind {
		case engine.KindGhostDemandId:
			id := engine.NewId()
			mgr.RegisterTunnel(id, tunnel)

			if err := mgr.AddUnassigned(gameId, id); err != nil {
				logf(cfg, "GAME: rejecting new watcher on %s: %v", gameId, err)
				tunnel.Close()

				return engine.NilId, false
			}

			tunnel.SendMessage(engine.NewUpdateMessage("IdAssign", id).String())

			return id, true

		case engine.KindGhostClaimId:
			var payload engine.ClaimIdPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil || !mgr.HasWatcher(gameId, payload.Id) {
				tunnel.Close()

				return engine.NilId, false
			}

			if err := mgr.UpdateSession(gameId, payload.Id, tunnel); err != nil {
				tunnel.Close()

				return engine.NilId, false
			}

			return payload.Id, true
		}
	}

	return engine.NilId, false
}

// schedulerFor builds an engine.Scheduler bound to one game, implementing
// the "after at least d, deliver alarm exactly once" contract with a
// plain timer goroutine (spec §5 "Suspension").
func schedulerFor(mgr *engine.GameManager, gameId engine.GameId) engine.Scheduler {
	return func(alarm engine.AlarmMessage, d time.Duration) {
		time.AfterFunc(d, func() {
			_ = mgr.ReceiveAlarm(gameId, alarm, schedulerFor(mgr, gameId))
		})
	}
}

var errTunnelClosed = &tunnelClosedError{}

type tunnelClosedError struct{}

func (*tunnelClosedError) Error() string { return "tunnel closed" }
