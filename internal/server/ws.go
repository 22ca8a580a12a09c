// Package server exposes the game engine over a websocket gateway:
// state views pushed on every change, player actions and choice
// resolutions accepted as JSON messages.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/buildboard/engine-server-go/internal/game"
	"github.com/buildboard/engine-server-go/internal/game/state"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The engine has no auth surface; origin policy belongs to the
		// deployment in front of it.
		return true
	},
}

// WSMessage is the wire envelope in both directions.
type WSMessage struct {
	Type        string          `json:"type"`
	PlayerID    string          `json:"player_id,omitempty"`
	ChoiceID    string          `json:"choice_id,omitempty"`
	SelectionID string          `json:"selection_id,omitempty"`
	CardID      string          `json:"card_id,omitempty"`
	Destination string          `json:"destination,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// Client is one connected websocket peer.
type Client struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string
}

// Hub fans engine state out to connected clients and routes inbound
// messages to the engine.
type Hub struct {
	engine *game.Engine
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
}

// NewHub creates a hub bound to an engine. The hub subscribes to the
// engine's state container so every committed change is pushed out.
func NewHub(engine *game.Engine, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		engine:     engine,
		logger:     logger,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 16),
	}
	engine.Store().Subscribe(func(change state.Change) {
		h.broadcastState(change.State)
	})
	return h
}

// Run processes registration and broadcast until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("websocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Info("websocket client disconnected")

		case message := <-h.broadcast:
			// Write lock: slow consumers are dropped from the map here.
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than block the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) broadcastState(gs state.GameState) {
	view := NewGameView(gs)
	payload, err := json.Marshal(view)
	if err != nil {
		h.logger.Error("failed to marshal state view", zap.Error(err))
		return
	}
	msg, err := json.Marshal(WSMessage{Type: "game_state", Data: payload})
	if err != nil {
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn("broadcast channel full, dropping state update")
	}
}

func (h *Hub) handleMessage(ctx context.Context, client *Client, msg WSMessage) {
	h.logger.Debug("websocket message",
		zap.String("type", msg.Type),
		zap.String("player_id", msg.PlayerID),
	)

	switch msg.Type {
	case "join":
		client.playerID = msg.PlayerID
		h.sendState(client)

	case "start_game":
		var req struct {
			GameID  string   `json:"game_id"`
			Players []string `json:"players"`
		}
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			h.sendError(client, "invalid start_game payload")
			return
		}
		if err := h.engine.StartGame(ctx, req.GameID, req.Players); err != nil {
			h.sendError(client, err.Error())
		}

	case "resolve_choice":
		if !h.engine.ResolveChoice(msg.ChoiceID, msg.SelectionID) {
			h.sendError(client, "choice could not be resolved")
		}

	case "roll_dice":
		if _, err := h.engine.RollDice(msg.PlayerID); err != nil {
			h.sendError(client, err.Error())
		}

	case "select_destination":
		if err := h.engine.SelectDestination(msg.PlayerID, msg.Destination); err != nil {
			h.sendError(client, err.Error())
		}

	case "play_card":
		// A card with an interactive target rule suspends on the choice
		// broker until a later resolve_choice, so it runs off the read
		// loop.
		go func() {
			if err := h.engine.PlayCard(ctx, msg.PlayerID, msg.CardID); err != nil {
				h.sendError(client, err.Error())
			}
		}()

	case "manual_effect":
		go func() {
			if err := h.engine.PerformManualEffect(ctx, msg.PlayerID); err != nil {
				h.sendError(client, err.Error())
			}
		}()

	case "end_turn":
		// EndTurn may suspend on a movement choice resolved by a later
		// message, so it runs off the read loop.
		go func() {
			if err := h.engine.EndTurn(ctx, msg.PlayerID); err != nil {
				h.sendError(client, err.Error())
			}
		}()

	case "try_again":
		result := h.engine.TryAgain(msg.PlayerID)
		payload, _ := json.Marshal(result)
		h.sendTo(client, WSMessage{Type: "try_again_result", Data: payload})

	case "sync_state":
		// Full state replacement from an external source. Applying it
		// bypasses the outbound sync path.
		if err := h.engine.ApplyExternalState(msg.Data); err != nil {
			h.sendError(client, err.Error())
		}

	default:
		h.sendError(client, "unknown message type: "+msg.Type)
	}
}

func (h *Hub) sendState(client *Client) {
	view := NewGameView(h.engine.Store().Get())
	payload, err := json.Marshal(view)
	if err != nil {
		return
	}
	h.sendTo(client, WSMessage{Type: "game_state", Data: payload})
}

func (h *Hub) sendError(client *Client, message string) {
	h.sendTo(client, WSMessage{Type: "error", Error: message})
}

func (h *Hub) sendTo(client *Client, msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
	}
}

func (c *Client) readPump(ctx context.Context, h *Hub) {
	defer func() {
		h.unregister <- c
		c.conn.Close()
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.logger.Warn("invalid websocket message", zap.Error(err))
			continue
		}
		h.handleMessage(ctx, c, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			break
		}
	}
}

// ServeWS upgrades an HTTP request into a websocket client.
func (h *Hub) ServeWS(ctx context.Context) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Error("websocket upgrade failed", zap.Error(err))
			return
		}
		client := &Client{
			conn: conn,
			send: make(chan []byte, 256),
		}
		h.register <- client
		go client.writePump()
		go client.readPump(ctx, h)
	}
}
