package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"farm-console/internal/logging"
	"farm-console/internal/models"
)

var (
	ErrNoToken      = errors.New("no auth token available")
	ErrNotConnected = errors.New("websocket is not connected")
	ErrUnauthorized = errors.New("websocket handshake rejected credentials")
)

// Transport is one open push connection. *websocket.Conn satisfies it.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Transport to the given endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (Transport, error)
}

// TokenSource yields the current bearer token, or "" when signed out.
type TokenSource interface {
	GetToken() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

func (f TokenFunc) GetToken() string { return f() }

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "idle"
	}
}

type Options struct {
	// Endpoint is the ws(s) URL without credentials.
	Endpoint string
	// TokenParam is the query parameter carrying the token.
	TokenParam           string
	MaxReconnectAttempts int
	Backoff              Backoff
	HandshakeTimeout     time.Duration
	// PingPeriod enables client pings when positive.
	PingPeriod time.Duration
	Dialer     Dialer
}

type stopper interface {
	Stop() bool
}

// Manager owns the single push connection of the process. It is created
// once at startup and shared by reference with every consumer.
type Manager struct {
	opts   Options
	tokens TokenSource
	router *Router
	logger *logging.Logger

	afterFunc func(time.Duration, func()) stopper

	mu         sync.Mutex
	writeMu    sync.Mutex
	conn       Transport
	connDone   chan struct{}
	connecting bool
	dialCancel context.CancelFunc
	attempts   int
	timer      stopper
	epoch      uint64
	disposed   bool
}

func NewManager(opts Options, tokens TokenSource, router *Router, logger *logging.Logger) *Manager {
	if opts.TokenParam == "" {
		opts.TokenParam = "token"
	}
	if opts.MaxReconnectAttempts == 0 {
		opts.MaxReconnectAttempts = 5
	}
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff()
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Dialer == nil {
		d := NewWebSocketDialer(opts.HandshakeTimeout)
		if opts.PingPeriod > 0 {
			d.PongWait = opts.PingPeriod * 10 / 9
		}
		opts.Dialer = d
	}
	if router == nil {
		router = NewRouter(nil, logger)
	}
	return &Manager{
		opts:   opts,
		tokens: tokens,
		router: router,
		logger: logger,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// Router exposes the dispatcher so observers can be attached.
func (m *Manager) Router() *Router {
	return m.router
}

// On registers h for envelopes of type t.
func (m *Manager) On(t models.EventType, h Handler) {
	m.router.Registry().On(t, h)
}

// Off unregisters every (t, h) registration.
func (m *Manager) Off(t models.EventType, h Handler) {
	m.router.Registry().Off(t, h)
}

// Connect opens the connection unless it is already open or a connect
// attempt is in flight. A manual call cancels a pending reconnect and
// restarts the attempt budget. Failures are logged, never returned.
func (m *Manager) Connect() {
	m.connect(true, 0)
}

// IsConnected reports whether the transport is open.
func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// State reports the lifecycle state of the connection.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.conn != nil:
		return StateOpen
	case m.connecting:
		return StateConnecting
	case m.timer != nil:
		return StateReconnecting
	default:
		return StateIdle
	}
}

// Attempts returns the number of reconnects scheduled since the last
// successful open.
func (m *Manager) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// Disconnect cancels any pending reconnect, aborts an in-flight dial and
// closes the open transport. Registered handlers are kept.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.epoch++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	conn, done := m.conn, m.connDone
	m.conn, m.connDone = nil, nil
	m.connecting = false
	m.attempts = 0
	m.mu.Unlock()

	if conn != nil {
		close(done)
		m.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"))
		m.writeMu.Unlock()
		_ = conn.Close()
		m.logger.Infof("WebSocket disconnected")
	}
}

// Close disconnects and makes every later Connect a no-op.
func (m *Manager) Close() {
	m.mu.Lock()
	m.disposed = true
	m.mu.Unlock()
	m.Disconnect()
}

// Send writes message as a JSON text frame. When the transport is not
// open the message is dropped and ErrNotConnected returned; nothing is
// queued.
func (m *Manager) Send(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		m.logger.Errorf("Failed to marshal outbound message: %v", err)
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		m.logger.Errorf("WebSocket is not connected, dropping outbound message")
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.Errorf("Failed to send WebSocket message: %v", err)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

func (m *Manager) connect(manual bool, epoch uint64) {
	m.mu.Lock()
	if m.disposed {
		m.mu.Unlock()
		return
	}
	if !manual {
		// a reconnect timer fired; drop it if Disconnect ran meanwhile
		if epoch != m.epoch {
			m.mu.Unlock()
			return
		}
		m.timer = nil
	}
	if m.conn != nil || m.connecting {
		m.mu.Unlock()
		m.logger.Debugf("WebSocket already connected or connecting")
		return
	}
	if manual {
		if m.timer != nil {
			m.timer.Stop()
			m.timer = nil
		}
		m.attempts = 0
	}

	token := ""
	if m.tokens != nil {
		token = m.tokens.GetToken()
	}
	if token == "" {
		m.mu.Unlock()
		m.logger.Errorf("WebSocket connect aborted: %v", ErrNoToken)
		return
	}

	endpoint, err := m.endpoint(token)
	if err != nil {
		m.mu.Unlock()
		m.logger.Errorf("WebSocket connect aborted: %v", err)
		return
	}

	m.connecting = true
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.HandshakeTimeout)
	m.dialCancel = cancel
	epoch = m.epoch
	m.mu.Unlock()

	m.logger.Infof("Connecting WebSocket to %s", m.opts.Endpoint)
	conn, err := m.opts.Dialer.Dial(ctx, endpoint)
	cancel()

	m.mu.Lock()
	if epoch != m.epoch || m.disposed {
		// Disconnect ran while dialing
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	m.connecting = false
	m.dialCancel = nil

	if err != nil {
		switch {
		case errors.Is(err, ErrUnauthorized):
			m.logger.Errorf("WebSocket authentication failed, not retrying: %v", err)
		case manual:
			m.logger.Errorf("WebSocket connect failed: %v", err)
		default:
			m.logger.Warnf("WebSocket reconnect failed: %v", err)
			m.scheduleReconnectLocked()
		}
		m.mu.Unlock()
		return
	}

	done := make(chan struct{})
	m.conn = conn
	m.connDone = done
	m.attempts = 0
	m.mu.Unlock()

	m.logger.Infof("WebSocket connected")
	go m.readLoop(conn)
	if m.opts.PingPeriod > 0 {
		go m.pingLoop(conn, done)
	}
}

func (m *Manager) endpoint(token string) (string, error) {
	u, err := url.Parse(m.opts.Endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid websocket endpoint %q: %w", m.opts.Endpoint, err)
	}
	q := u.Query()
	q.Set(m.opts.TokenParam, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// readLoop processes frames one at a time, in arrival order.
func (m *Manager) readLoop(conn Transport) {
	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, err)
			return
		}
		env, err := models.ParseEnvelope(frame)
		if err != nil {
			m.logger.Warnf("Dropping malformed frame: %v", err)
			continue
		}
		m.router.Dispatch(env)
	}
}

func (m *Manager) pingLoop(conn Transport, done <-chan struct{}) {
	ticker := time.NewTicker(m.opts.PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			m.writeMu.Lock()
			err := conn.WriteMessage(websocket.PingMessage, nil)
			m.writeMu.Unlock()
			if err != nil {
				m.logger.Debugf("WebSocket ping failed: %v", err)
				return
			}
		}
	}
}

// handleClose runs once per transport when its read loop ends. Errors and
// closes of the same transport are counted once.
func (m *Manager) handleClose(conn Transport, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != conn {
		// torn down by Disconnect
		return
	}
	close(m.connDone)
	m.conn, m.connDone = nil, nil
	_ = conn.Close()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		m.logger.Infof("WebSocket closed by server: %v", err)
	} else {
		m.logger.Warnf("WebSocket connection lost: %v", err)
	}
	if m.disposed {
		return
	}
	m.scheduleReconnectLocked()
}

func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.opts.MaxReconnectAttempts {
		m.logger.Errorf("WebSocket reconnect gave up after %d attempts", m.attempts)
		return
	}
	delay := m.opts.Backoff.Delay(m.attempts)
	m.attempts++
	epoch := m.epoch
	m.logger.Infof("Reconnecting WebSocket in %v (attempt %d/%d)", delay, m.attempts, m.opts.MaxReconnectAttempts)
	m.timer = m.afterFunc(delay, func() {
		m.connect(false, epoch)
	})
}

// WebSocketDialer dials with gorilla/websocket and maps rejected
// handshakes to ErrUnauthorized.
type WebSocketDialer struct {
	dialer *websocket.Dialer
	// PongWait, when positive, drops connections that stay silent longer
	// than this; every pong extends the deadline.
	PongWait time.Duration
}

func NewWebSocketDialer(handshakeTimeout time.Duration) *WebSocketDialer {
	return &WebSocketDialer{dialer: &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}}
}

func (d *WebSocketDialer) Dial(ctx context.Context, endpoint string) (Transport, error) {
	conn, resp, err := d.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}
	if d.PongWait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(d.PongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(d.PongWait))
		})
	}
	return conn, nil
}
