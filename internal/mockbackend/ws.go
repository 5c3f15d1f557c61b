package mockbackend

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 5 * time.Second

	// Time allowed to read the next message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Frames queued per client before new ones are dropped
	sendBuffer = 32
)

// client is one event channel connection
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// hub tracks connected clients and fans frames out to them
type hub struct {
	log *zap.Logger

	mu      sync.Mutex
	clients map[string]*client
	closed  bool
}

func newHub(log *zap.Logger) *hub {
	return &hub{log: log, clients: make(map[string]*client)}
}

func (h *hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	return true
}

// remove unregisters c and closes its send queue. Safe to call twice.
func (h *hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// enqueue queues frame for c, dropping it if the queue is full
func (h *hub) enqueue(c *client, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	select {
	case c.send <- frame:
	default:
		h.log.Debug("Client queue full, dropping frame", zap.String("client", c.id))
	}
}

func (h *hub) broadcast(frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		select {
		case c.send <- frame:
		default:
			h.log.Debug("Client queue full, dropping frame", zap.String("client", c.id))
		}
	}
}

func (h *hub) broadcastStatus(s api.StatusSnapshot) {
	frame, err := protocol.EncodeStatus(s)
	if err != nil {
		h.log.Error("Failed to encode status", zap.Error(err))
		return
	}
	h.broadcast(frame)
}

func (h *hub) broadcastConfig(cfg api.Config) {
	frame, err := protocol.EncodeConfigUpdate(cfg)
	if err != nil {
		h.log.Error("Failed to encode config update", zap.Error(err))
		return
	}
	h.broadcast(frame)
}

func (h *hub) broadcastProfile(p api.Profile) {
	frame, err := protocol.EncodeProfileUpdate(p)
	if err != nil {
		h.log.Error("Failed to encode profile update", zap.Error(err))
		return
	}
	h.broadcast(frame)
}

// dropAll closes every socket without a close handshake
func (h *hub) dropAll() int {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c.conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
	return len(conns)
}

// closeAll refuses new clients and closes the existing ones
func (h *hub) closeAll() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	h.dropAll()
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{id: uuid.NewString(), conn: conn, send: make(chan []byte, sendBuffer)}
	if !s.hub.add(cl) {
		_ = conn.Close()
		return
	}
	s.log.Info("Client connected", zap.String("client", cl.id), zap.String("remote_addr", c.Request.RemoteAddr))

	done := make(chan struct{})
	go s.writePump(cl, done)

	if frame, err := protocol.EncodeStatus(s.Status()); err == nil {
		s.hub.enqueue(cl, frame)
	}

	s.readPump(cl)

	s.hub.remove(cl)
	_ = conn.Close()
	<-done
	s.log.Info("Client disconnected", zap.String("client", cl.id))
}

// readPump handles inbound frames until the connection fails
func (s *Server) readPump(cl *client) {
	cl.conn.SetReadLimit(maxMessageSize)
	_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.SetPongHandler(func(string) error {
		return cl.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := cl.conn.ReadMessage()
		if err != nil {
			return
		}
		_ = cl.conn.SetReadDeadline(time.Now().Add(pongWait))

		s.handleClientFrame(cl, data)
	}
}

// handleClientFrame mirrors the stock backend: get_status is answered,
// config_update and profile_update are applied without a broadcast
func (s *Server) handleClientFrame(cl *client, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		s.log.Debug("Ignoring malformed client frame", zap.String("client", cl.id), zap.Error(err))
		return
	}

	switch env.Type {
	case protocol.TypeGetStatus:
		if frame, err := protocol.EncodeStatus(s.Status()); err == nil {
			s.hub.enqueue(cl, frame)
		}

	case protocol.TypeConfigUpdate, protocol.TypeProfileUpdate:
		msg, err := protocol.Decode(data)
		if err != nil {
			s.log.Debug("Ignoring malformed client frame", zap.String("client", cl.id), zap.Error(err))
			return
		}
		switch m := msg.(type) {
		case protocol.ConfigUpdateMessage:
			if err := s.checkConfig(m.Config); err == nil {
				s.applyConfig(m.Config)
			}
		case protocol.ProfileUpdateMessage:
			if err := checkProfile(m.Profile); err == nil {
				s.applyProfile(m.Profile)
			}
		}

	default:
		s.log.Debug("Ignoring client frame", zap.String("client", cl.id), zap.String("type", env.Type))
	}
}

// writePump owns all writes to the connection
func (s *Server) writePump(cl *client, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame, ok := <-cl.send:
			if !ok {
				_ = cl.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				return
			}
			_ = cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				_ = cl.conn.Close()
				return
			}
		case <-ticker.C:
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				_ = cl.conn.Close()
				return
			}
		}
	}
}
