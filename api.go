/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/brightloom/fuiz/internal/engine"
)

type addGameRequest struct {
	Fuiz    engine.Fuiz    `json:"fuiz"`
	Options engine.Options `json:"options"`
}

type addGameResponse struct {
	GameId    engine.GameId `json:"game_id"`
	WatcherId engine.Id     `json:"watcher_id"`
}

// serveAddGame validates and registers a new Fuiz, returning the allocated
// GameId and the host's watcher id (spec §4.8 "add_game").
func serveAddGame(cfg *Config, mgr *engine.GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		var req addGameRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "malformed request body", http.StatusBadRequest)

			return
		}

		hostId := engine.NewId()

		gameId, _, err := mgr.AddGame(req.Fuiz, req.Options, hostId)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)

			return
		}

		logf(cfg, "GAMES: created game %s", gameId)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")

		if err := json.NewEncoder(w).Encode(addGameResponse{GameId: gameId, WatcherId: hostId}); err != nil {
			errs <- err
		}
	}
}

// serveAlive reports whether :game_id is still progressable (spec §4.8
// "alive_check").
func serveAlive(cfg *Config, mgr *engine.GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(cfg, w)

		gameId, err := engine.ParseGameId(p.ByName("game_id"))
		if err != nil {
			http.Error(w, "malformed game id", http.StatusBadRequest)

			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(struct {
			Alive bool `json:"alive"`
		}{Alive: mgr.AliveCheck(gameId)})
	}
}

// serveCount reports the process-wide live/all-time game counters.
func serveCount(cfg *Config, mgr *engine.GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		securityHeaders(cfg, w)

		current, allTime := mgr.Count()

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(struct {
			Current int64 `json:"current"`
			AllTime int64 `json:"all_time"`
		}{Current: current, AllTime: allTime})
	}
}

// serveQR renders a PNG QR code pointing at the join page for :game_id
// (SPEC_FULL.md supplemented feature, grounded on the teacher's go-qrcode
// handler).
func serveQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		securityHeaders(cfg, w)

		gameId, err := engine.ParseGameId(p.ByName("game_id"))
		if err != nil {
			http.Error(w, "malformed game id", http.StatusBadRequest)

			return
		}

		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}

		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		joinPath := strings.TrimSuffix(r.URL.Path, "/qr")
		url := scheme + "://" + r.Host + joinPath + "/" + gameId.String()

		const qrSize = 320

		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "public, max-age=60")
		w.Header().Set("Expires", time.Now().Add(time.Minute).UTC().Format(http.TimeFormat))

		_, _ = w.Write(png)
	}
}

// serveGameSocket upgrades to a websocket and drives the per-game tunnel
// protocol (spec §6 "First-frame protocol"), served at GET /watch/:game_id.
func serveGameSocket(cfg *Config, mgr *engine.GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		gameId, err := engine.ParseGameId(p.ByName("game_id"))
		if err != nil || !mgr.HasGame(gameId) {
			http.Error(w, "unknown game id", http.StatusNotFound)

			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAME: websocket upgrade failed: %v", err)

			return
		}

		readPump(cfg, mgr, gameId, conn)
	}
}

// registerGameRoutes wires the Fuiz HTTP/WS surface (spec §4.8, §6).
func registerGameRoutes(cfg *Config, mux *httprouter.Router, mgr *engine.GameManager, errs chan<- error) {
	mux.POST(cfg.prefix+"/add", serveAddGame(cfg, mgr, errs))
	mux.GET(cfg.prefix+"/alive/:game_id", serveAlive(cfg, mgr))
	mux.GET(cfg.prefix+"/count", serveCount(cfg, mgr))
	mux.GET(cfg.prefix+"/qr/:game_id", serveQR(cfg))
	mux.GET(cfg.prefix+"/watch/:game_id", serveGameSocket(cfg, mgr))
}
