package services

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"farm-console/internal/logging"
	"farm-console/internal/models"
)

const (
	MaxViewerConnections = 10
	// relaySendBuffer is how many envelopes a viewer may fall behind
	// before it is dropped.
	relaySendBuffer = 64
	relayWriteWait  = 5 * time.Second
	relayPongWait   = 60 * time.Second
	relayPingPeriod = (relayPongWait * 9) / 10
	relayReadLimit  = 512
)

var ErrTooManyConnections = errors.New("max relay connections reached for viewer")

// relayClient is one dashboard socket. Only its write pump writes to conn.
type relayClient struct {
	viewerID string
	conn     *websocket.Conn
	send     chan []byte
	// closeCode is set before send is closed and tells the write pump
	// which close frame to send.
	closeCode int
}

// Relay re-broadcasts every inbound envelope to local dashboard sockets.
// Broadcast never waits on a viewer: each one has a bounded queue drained
// by its own goroutine, and a viewer whose queue is full is dropped.
type Relay struct {
	clients map[string]map[*relayClient]bool // viewerID -> set of clients
	mutex   sync.Mutex
	logger  *logging.Logger
}

func NewRelay(logger *logging.Logger) *Relay {
	return &Relay{
		clients: make(map[string]map[*relayClient]bool),
		logger:  logger,
	}
}

func (r *Relay) addClient(viewerID string, conn *websocket.Conn) (*relayClient, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, exists := r.clients[viewerID]; !exists {
		r.clients[viewerID] = make(map[*relayClient]bool)
	}
	if len(r.clients[viewerID]) >= MaxViewerConnections {
		r.logger.Warnf("Max connections reached for viewer %s", viewerID)
		return nil, ErrTooManyConnections
	}
	c := &relayClient{
		viewerID:  viewerID,
		conn:      conn,
		send:      make(chan []byte, relaySendBuffer),
		closeCode: websocket.CloseNormalClosure,
	}
	r.clients[viewerID][c] = true
	r.logger.Infof("Added relay connection for viewer %s (total: %d)", viewerID, len(r.clients[viewerID]))
	return c, nil
}

// dropLocked forgets c and closes its queue. The caller holds r.mutex.
func (r *Relay) dropLocked(c *relayClient, closeCode int) bool {
	conns, exists := r.clients[c.viewerID]
	if !exists || !conns[c] {
		return false
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(r.clients, c.viewerID)
	}
	c.closeCode = closeCode
	close(c.send)
	return true
}

func (r *Relay) removeClient(c *relayClient) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.dropLocked(c, websocket.CloseNormalClosure) {
		r.logger.Infof("Removed relay connection for viewer %s", c.viewerID)
	}
}

// Count returns the number of open connections across viewers.
func (r *Relay) Count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	n := 0
	for _, conns := range r.clients {
		n += len(conns)
	}
	return n
}

// Serve registers conn and blocks until the viewer goes away. Inbound
// frames from the browser are ignored.
func (r *Relay) Serve(viewerID string, conn *websocket.Conn) {
	c, err := r.addClient(viewerID, conn)
	if err != nil {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(relayWriteWait))
		_ = conn.Close()
		return
	}
	go r.writePump(c)
	r.readPump(c)
}

func (r *Relay) readPump(c *relayClient) {
	defer func() {
		r.removeClient(c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(relayReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(relayPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(relayPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				r.logger.Debugf("Relay read error for viewer %s: %v", c.viewerID, err)
			}
			return
		}
	}
}

func (r *Relay) writePump(c *relayClient) {
	ticker := time.NewTicker(relayPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(c.closeCode, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				r.logger.Errorf("Failed to relay message to viewer %s: %v", c.viewerID, err)
				r.removeClient(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(relayWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				r.removeClient(c)
				return
			}
		}
	}
}

// Observe broadcasts env verbatim.
func (r *Relay) Observe(env models.Envelope) {
	message, err := json.Marshal(env)
	if err != nil {
		r.logger.WithField("event_type", env.Type).Errorf("Marshal envelope failed: %v", err)
		return
	}
	r.Broadcast(message)
}

// Broadcast queues message for every viewer without blocking. Viewers
// whose queue is full are disconnected.
func (r *Relay) Broadcast(message []byte) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, conns := range r.clients {
		for c := range conns {
			select {
			case c.send <- message:
			default:
				r.logger.Warnf("Relay viewer %s is not keeping up, dropping connection", c.viewerID)
				r.dropLocked(c, websocket.ClosePolicyViolation)
			}
		}
	}
}

// CloseAll sends a going-away close frame to every viewer.
func (r *Relay) CloseAll() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	for _, conns := range r.clients {
		for c := range conns {
			r.dropLocked(c, websocket.CloseGoingAway)
		}
	}
}
