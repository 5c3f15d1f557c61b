package channel

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/logging"
	"github.com/muurk/voxsync/internal/protocol"
)

const (
	// DefaultReconnectDelay is the fixed wait between a drop and the next dial
	DefaultReconnectDelay = 3 * time.Second

	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	defaultPongWait = 60 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Time allowed for the websocket handshake
	handshakeTimeout = 5 * time.Second
)

// ErrClosed is returned by Connect after Close
var ErrClosed = errors.New("channel manager closed")

// State is the connection state of the event channel
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// timer is the part of *time.Timer the manager needs
type timer interface {
	Stop() bool
}

// afterFunc schedules f after d
type afterFunc func(d time.Duration, f func()) timer

func realAfterFunc(d time.Duration, f func()) timer {
	return time.AfterFunc(d, f)
}

// NewConstantPolicy returns the default reconnect policy: a fixed delay, forever
func NewConstantPolicy(delay time.Duration) backoff.BackOff {
	return backoff.NewConstantBackOff(delay)
}

// NewExponentialPolicy returns an exponential reconnect policy starting at
// initial and capped at max. It never gives up.
func NewExponentialPolicy(initial, max time.Duration) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// Option configures a Manager
type Option func(*Manager)

// WithDialer replaces the websocket dialer
func WithDialer(d *websocket.Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

// WithPolicy replaces the reconnect policy
func WithPolicy(p backoff.BackOff) Option {
	return func(m *Manager) { m.policy = p }
}

// WithPongWait sets how long the connection may stay silent before it is
// considered dead. Pings are sent at nine tenths of this interval.
func WithPongWait(d time.Duration) Option {
	return func(m *Manager) { m.pongWait = d }
}

// WithLogger replaces the component logger
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// link is one open websocket connection
type link struct {
	conn *websocket.Conn
	done chan struct{}
}

type stateSub struct {
	id int
	fn func(State)
}

type messageSub struct {
	id int
	fn func(protocol.Inbound)
}

// Manager owns the lifecycle of the backend event channel.
//
// It dials the push endpoint, decodes inbound frames, notifies subscribers of
// state transitions and messages, and reconnects after every drop using its
// policy. At most one reconnect is pending at any time.
//
// Subscriber callbacks run on the manager's goroutines and must not call Close.
type Manager struct {
	url      string
	dialer   *websocket.Dialer
	policy   backoff.BackOff
	pongWait time.Duration
	log      *zap.Logger
	after    afterFunc

	mu         sync.Mutex
	state      State
	link       *link
	timer      timer
	timerGen   uint64
	dialCancel context.CancelFunc
	closed     bool

	writeMu sync.Mutex
	wg      sync.WaitGroup

	subMu       sync.Mutex
	nextSubID   int
	stateSubs   []stateSub
	messageSubs []messageSub
}

// New creates a manager for the websocket endpoint at url. It does not dial.
func New(url string, opts ...Option) *Manager {
	m := &Manager{
		url:      url,
		dialer:   &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		policy:   NewConstantPolicy(DefaultReconnectDelay),
		pongWait: defaultPongWait,
		log:      logging.Named("channel"),
		after:    realAfterFunc,
		state:    Disconnected,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// URL returns the endpoint the manager dials
func (m *Manager) URL() string {
	return m.url
}

// State returns the current connection state
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnState registers a state transition callback and returns its unsubscribe func
func (m *Manager) OnState(fn func(State)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	m.nextSubID++
	id := m.nextSubID
	m.stateSubs = append(m.stateSubs, stateSub{id: id, fn: fn})

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, s := range m.stateSubs {
			if s.id == id {
				m.stateSubs = append(m.stateSubs[:i], m.stateSubs[i+1:]...)
				return
			}
		}
	}
}

// OnMessage registers an inbound message callback and returns its unsubscribe func.
// Unknown message types are never delivered.
func (m *Manager) OnMessage(fn func(protocol.Inbound)) func() {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	m.nextSubID++
	id := m.nextSubID
	m.messageSubs = append(m.messageSubs, messageSub{id: id, fn: fn})

	return func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		for i, s := range m.messageSubs {
			if s.id == id {
				m.messageSubs = append(m.messageSubs[:i], m.messageSubs[i+1:]...)
				return
			}
		}
	}
}

// Connect dials the endpoint. A no-op unless the manager is Disconnected.
// A failed dial leaves the manager Disconnected with one reconnect scheduled,
// and returns a channel error.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state != Disconnected {
		m.mu.Unlock()
		return nil
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	dialCtx, cancel := context.WithCancel(ctx)
	m.dialCancel = cancel
	m.state = Connecting
	m.wg.Add(1)
	m.mu.Unlock()

	defer m.wg.Done()
	m.notifyState(Connecting)
	return m.dial(dialCtx, cancel)
}

// reconnect runs from the reconnect timer armed as generation gen
func (m *Manager) reconnect(gen uint64) {
	m.mu.Lock()
	if m.closed || m.timer == nil || m.timerGen != gen {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	if m.state != Disconnected {
		m.mu.Unlock()
		return
	}
	dialCtx, cancel := context.WithCancel(context.Background())
	m.dialCancel = cancel
	m.state = Connecting
	m.wg.Add(1)
	m.mu.Unlock()

	defer m.wg.Done()
	m.notifyState(Connecting)
	_ = m.dial(dialCtx, cancel)
}

func (m *Manager) dial(ctx context.Context, cancel context.CancelFunc) error {
	logging.LogConnection(m.url, "dialing")
	conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
	cancel()

	m.mu.Lock()
	m.dialCancel = nil
	if m.closed {
		m.mu.Unlock()
		if conn != nil {
			_ = conn.Close()
		}
		return ErrClosed
	}

	if err != nil {
		m.state = Disconnected
		m.scheduleReconnectLocked()
		m.mu.Unlock()

		m.log.Warn("Event channel dial failed", zap.String("url", m.url), zap.Error(err))
		m.notifyState(Disconnected)
		return api.NewChannelError("failed to open event channel", err)
	}

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(m.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(m.pongWait))
	})

	l := &link{conn: conn, done: make(chan struct{})}
	m.policy.Reset()
	m.link = l
	m.state = Connected
	m.wg.Add(2)
	m.mu.Unlock()

	logging.LogConnection(m.url, "connected")
	m.notifyState(Connected)

	go m.readLoop(l)
	go m.pingLoop(l)
	return nil
}

// scheduleReconnectLocked arms the single reconnect timer. Caller holds mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.timer != nil || m.closed {
		return
	}
	delay := m.policy.NextBackOff()
	if delay == backoff.Stop {
		m.log.Warn("Reconnect policy exhausted, staying disconnected", zap.String("url", m.url))
		return
	}
	m.log.Info("Scheduling reconnect", zap.String("url", m.url), zap.Duration("delay", delay))
	m.timerGen++
	gen := m.timerGen
	m.timer = m.after(delay, func() { m.reconnect(gen) })
}

func (m *Manager) readLoop(l *link) {
	defer m.wg.Done()

	for {
		_, data, err := l.conn.ReadMessage()
		if err != nil {
			m.drop(l, err)
			return
		}
		_ = l.conn.SetReadDeadline(time.Now().Add(m.pongWait))

		msg, err := protocol.Decode(data)
		if err != nil {
			m.log.Warn("Dropping malformed frame", zap.Error(err), zap.Int("length", len(data)))
			continue
		}
		logging.LogFrame(m.url, msg.MessageType(), data)

		if _, ok := msg.(protocol.UnknownMessage); ok {
			continue
		}
		m.notifyMessage(msg)
	}
}

func (m *Manager) pingLoop(l *link) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.pongWait * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-l.done:
			return
		case <-ticker.C:
			m.writeMu.Lock()
			err := l.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			m.writeMu.Unlock()
			if err != nil {
				m.log.Debug("Ping failed", zap.Error(err))
				return
			}
		}
	}
}

// drop handles the loss of l. Stale links and drops after Close are ignored.
func (m *Manager) drop(l *link, err error) {
	m.mu.Lock()
	if m.closed || m.link != l {
		m.mu.Unlock()
		return
	}
	m.link = nil
	m.state = Disconnected
	close(l.done)
	_ = l.conn.Close()
	m.scheduleReconnectLocked()
	m.mu.Unlock()

	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		logging.LogConnection(m.url, "closed_by_peer")
	} else {
		logging.LogConnection(m.url, "dropped", zap.Error(err))
	}
	m.notifyState(Disconnected)
}

// Send writes one text frame. It is best effort: the frame is discarded and
// false returned unless the channel is Connected.
func (m *Manager) Send(frame []byte) bool {
	m.mu.Lock()
	l := m.link
	ok := m.state == Connected && !m.closed && l != nil
	m.mu.Unlock()
	if !ok {
		m.log.Debug("Discarding frame, channel not connected", zap.Int("length", len(frame)))
		return false
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := l.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		m.log.Debug("Send failed", zap.Error(err))
		return false
	}
	return true
}

// RequestStatus asks the backend for an immediate status frame
func (m *Manager) RequestStatus() bool {
	return m.Send(protocol.EncodeGetStatus())
}

// Close shuts the channel down. The open socket, an in-flight dial and the
// pending reconnect are all cancelled together. Close waits for the manager's
// goroutines, so no callback fires after it returns. It does not notify
// subscribers. Safe to call more than once.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.dialCancel != nil {
		m.dialCancel()
		m.dialCancel = nil
	}
	l := m.link
	m.link = nil
	m.state = Disconnected
	m.mu.Unlock()

	if l != nil {
		close(l.done)
		m.writeMu.Lock()
		_ = l.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		m.writeMu.Unlock()
		_ = l.conn.Close()
		logging.LogConnection(m.url, "closed")
	}

	m.wg.Wait()
	return nil
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Manager) notifyState(s State) {
	if m.isClosed() {
		return
	}
	m.subMu.Lock()
	subs := make([]stateSub, len(m.stateSubs))
	copy(subs, m.stateSubs)
	m.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(s)
	}
}

func (m *Manager) notifyMessage(msg protocol.Inbound) {
	if m.isClosed() {
		return
	}
	m.subMu.Lock()
	subs := make([]messageSub, len(m.messageSubs))
	copy(subs, m.messageSubs)
	m.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(msg)
	}
}
