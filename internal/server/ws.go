package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"travelfolio/internal/types"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

// wsMessage is the frame format in both directions: outbound frames carry
// an event name, inbound frames an op name.
type wsMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

type wsRequest struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload"`
}

// Hub tracks connected UI clients and broadcasts events to all of them.
type Hub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

type wsClient struct {
	conn *websocket.Conn
	send chan wsMessage
	user string
}

func NewHub() *Hub {
	return &Hub{clients: map[*wsClient]struct{}{}}
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Broadcast queues an event for every connected client. Slow clients drop
// frames rather than stall the sender.
func (h *Hub) Broadcast(event string, data any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- wsMessage{Event: event, Data: data}:
		default:
			log.Warn("⚠️ Dropping websocket frame for slow client")
		}
	}
}

// AlertChecked satisfies the sweep loop's event sink.
func (h *Hub) AlertChecked(ev types.AlertEvent) {
	h.Broadcast("alertChecked", ev)
}

// CloseAll disconnects every client, for shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.Close()
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the API and the UI are same-origin; the desktop shell sends no Origin
	CheckOrigin: func(*http.Request) bool { return true },
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	user, _ := s.identity(w, r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Errorf("❌ Websocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{conn: conn, send: make(chan wsMessage, sendBufferSize), user: user}
	s.hub.add(c)
	log.Debugf("🔌 Websocket client connected (%s)", user)

	go c.writePump()
	s.readPump(c)
}

func (c *wsClient) writePump() {
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
	_ = c.conn.Close()
}

func (s *Server) readPump(c *wsClient) {
	defer func() {
		s.hub.remove(c)
		_ = c.conn.Close()
		log.Debugf("🔌 Websocket client disconnected (%s)", c.user)
	}()

	for {
		var req wsRequest
		if err := c.conn.ReadJSON(&req); err != nil {
			return
		}
		s.dispatch(c, req)
	}
}

// dispatch handles one inbound UI op. Store mutations answer with a fresh
// dataLoaded frame, mirroring the desktop bridge signals.
func (s *Server) dispatch(c *wsClient, req wsRequest) {
	ctx := context.Background()

	switch req.Op {
	case "search":
		var q types.SearchQuery
		if err := json.Unmarshal(req.Payload, &q); err != nil {
			c.sendError(req.Op, "invalid payload")
			return
		}
		// searches run off the read loop so a slow backend does not block
		// further ops from this client
		go func() {
			result, err := s.search(ctx, q)
			if err != nil {
				c.trySend(wsMessage{Event: "resultsReady", Data: map[string]any{"success": false, "error": err.Error()}})
				return
			}
			c.trySend(wsMessage{Event: "resultsReady", Data: map[string]any{
				"success":     true,
				"origin":      result.Origin,
				"destination": result.Dest,
				"flights":     result.Flights,
				"coords":      result.Coords,
			}})
		}()

	case "loadData":
		s.sendData(ctx, c)

	case "saveTrip":
		var p struct {
			ID   string     `json:"id"`
			Data types.Trip `json:"data"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil || p.ID == "" {
			c.sendError(req.Op, "trip id and data are required")
			return
		}
		if err := s.store.SaveTrip(ctx, c.user, p.ID, p.Data); err != nil {
			c.sendError(req.Op, err.Error())
			return
		}
		s.sendData(ctx, c)

	case "deleteTrip":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil || p.ID == "" {
			c.sendError(req.Op, "trip id is required")
			return
		}
		if err := s.store.DeleteTrip(ctx, c.user, p.ID); err != nil {
			c.sendError(req.Op, err.Error())
			return
		}
		s.sendData(ctx, c)

	case "saveAlert":
		var p struct {
			ID   string      `json:"id"`
			Data types.Alert `json:"data"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			c.sendError(req.Op, "invalid alert payload")
			return
		}
		normalizeAlert(p.ID, &p.Data)
		if err := s.store.SaveAlert(ctx, c.user, p.Data); err != nil {
			c.sendError(req.Op, err.Error())
			return
		}
		s.sendData(ctx, c)

	case "deleteAlert":
		var p struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(req.Payload, &p); err != nil || p.ID == "" {
			c.sendError(req.Op, "alert id is required")
			return
		}
		if err := s.store.DeleteAlert(ctx, c.user, p.ID); err != nil {
			c.sendError(req.Op, err.Error())
			return
		}
		s.sendData(ctx, c)

	case "checkAlertPrice":
		var al types.Alert
		if err := json.Unmarshal(req.Payload, &al); err != nil {
			c.sendError(req.Op, "invalid alert payload")
			return
		}
		if al.Origin == "" {
			al.Origin = s.cfg.DefaultOrigin
		}
		go func() {
			ev, err := s.checker.PreviewAlert(ctx, al)
			if err != nil {
				c.sendError("checkAlertPrice", err.Error())
				return
			}
			c.trySend(wsMessage{Event: "alertChecked", Data: ev})
		}()

	default:
		c.sendError(req.Op, "unknown op")
	}
}

// sendData pushes the client's trips and alerts as a dataLoaded frame.
func (s *Server) sendData(ctx context.Context, c *wsClient) {
	trips, err := s.store.Trips(ctx, c.user)
	if err != nil {
		c.sendError("loadData", err.Error())
		return
	}
	alerts, err := s.store.Alerts(ctx, c.user)
	if err != nil {
		c.sendError("loadData", err.Error())
		return
	}
	if trips == nil {
		trips = map[string]types.Trip{}
	}
	if alerts == nil {
		alerts = []types.Alert{}
	}
	c.trySend(wsMessage{Event: "dataLoaded", Data: map[string]any{"trips": trips, "alerts": alerts}})
}

func (c *wsClient) sendError(op, msg string) {
	c.trySend(wsMessage{Event: "error", Data: map[string]any{"op": op, "error": msg}})
}

func (c *wsClient) trySend(msg wsMessage) {
	defer func() {
		// the hub may close the send channel while a search goroutine is
		// still running
		_ = recover()
	}()
	select {
	case c.send <- msg:
	default:
	}
}
