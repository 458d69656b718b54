package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/davergrounds/galactic-empires/pkg/game"
	"github.com/davergrounds/galactic-empires/pkg/types"
)

const streamWriteWait = 5 * time.Second

// viewSource resolves a join code to the caller's current masked view.
type viewSource interface {
	Authenticate(gameID, code string) (types.Faction, error)
	State(gameID, code string) (game.View, error)
}

type streamMessage struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
	game.View
}

type subscriber struct {
	conn    *websocket.Conn
	faction types.Faction
	mu      sync.Mutex
}

func (s *subscriber) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

type StreamConfig struct {
	Logger *log.Logger
}

// StreamHub pushes each faction its own view whenever a session changes.
type StreamHub struct {
	logger   *log.Logger
	upgrader websocket.Upgrader
	source   viewSource

	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

func NewStreamHub(cfg StreamConfig) *StreamHub {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &StreamHub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		subs: make(map[string]map[*subscriber]struct{}),
	}
}

// Bind sets where connecting clients are authenticated and read from.
func (h *StreamHub) Bind(src viewSource) { h.source = src }

func (h *StreamHub) Handle(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameId")
	code := r.URL.Query().Get("code")

	// 1. Authenticate before upgrading so errors stay plain JSON
	faction, err := h.source.Authenticate(gameID, code)
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("stream upgrade failed for %s/%s: %v", gameID, faction, err)
		return
	}
	sub := &subscriber{conn: conn, faction: faction}
	h.add(gameID, sub)
	defer func() {
		h.remove(gameID, sub)
		conn.Close()
	}()

	// 2. Initial snapshot
	view, err := h.source.State(gameID, code)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		conn.WriteMessage(websocket.CloseMessage, msg)
		return
	}
	data, err := json.Marshal(streamMessage{Type: "state", GameID: gameID, View: view})
	if err != nil {
		h.logger.Printf("marshal initial state for %s: %v", gameID, err)
		return
	}
	if err := sub.send(data); err != nil {
		return
	}

	// 3. Drain until the client goes away; the stream is push-only
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *StreamHub) add(gameID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[gameID]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[gameID] = set
	}
	set[sub] = struct{}{}
}

func (h *StreamHub) remove(gameID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[gameID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, gameID)
	}
}

// Subscribers reports how many live connections a session has.
func (h *StreamHub) Subscribers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}

// Notify implements session.Notifier.
func (h *StreamHub) Notify(gameID string, views map[types.Faction]game.View) {
	h.mu.Lock()
	targets := make([]*subscriber, 0, len(h.subs[gameID]))
	for sub := range h.subs[gameID] {
		targets = append(targets, sub)
	}
	h.mu.Unlock()
	if len(targets) == 0 {
		return
	}

	payloads := make(map[types.Faction][]byte, len(views))
	for f, v := range views {
		data, err := json.Marshal(streamMessage{Type: "state", GameID: gameID, View: v})
		if err != nil {
			h.logger.Printf("marshal view for %s/%s: %v", gameID, f, err)
			continue
		}
		payloads[f] = data
	}

	for _, sub := range targets {
		data, ok := payloads[sub.faction]
		if !ok {
			continue
		}
		if err := sub.send(data); err != nil {
			h.logger.Printf("stream write to %s/%s failed: %v", gameID, sub.faction, err)
			sub.conn.Close()
		}
	}
}

// Drop closes every connection of an evicted session.
func (h *StreamHub) Drop(gameID string) {
	h.mu.Lock()
	set := h.subs[gameID]
	delete(h.subs, gameID)
	h.mu.Unlock()
	for sub := range set {
		sub.mu.Lock()
		sub.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "game closed"),
			time.Now().Add(streamWriteWait))
		sub.mu.Unlock()
		sub.conn.Close()
	}
}
