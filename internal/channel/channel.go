// Package channel owns one logical realtime connection for a client process:
// dialing, the reconnect lifecycle, and a typed publish/subscribe fan-out to
// local consumers.
package channel

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"contractops/api/internal/realtime"
)

// State is the connection lifecycle of a Manager.
type State int

const (
	Disconnected State = iota
	Connecting
	Open
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return "disconnected"
	}
}

// Schedule maps a reconnect attempt number (starting at 1) to the delay
// before that attempt. It is a plain function so reconnect policies are
// testable without wall-clock waits.
type Schedule func(attempt int) time.Duration

// LinearSchedule returns the default policy: attempt number times base, so
// delays grow linearly rather than exponentially.
func LinearSchedule(base time.Duration) Schedule {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * base
	}
}

// Options tune a Manager. Zero values fall back to defaults.
type Options struct {
	MaxAttempts int
	Schedule    Schedule
	Dialer      *websocket.Dialer
	Logger      *log.Logger
}

// Handler consumes one received envelope. Handlers run synchronously on the
// read loop, in message receipt order; registration order among handlers for
// the same kind is not guaranteed.
type Handler func(realtime.Envelope)

// Manager is the client-side channel manager. Callbacks registered with On
// survive reconnects; the server does not, so every reopen re-sends the join
// event with the last-known cursor position.
type Manager struct {
	url         string
	dialer      *websocket.Dialer
	schedule    Schedule
	maxAttempts int
	logger      *log.Logger

	mu           sync.Mutex
	state        State
	conn         *websocket.Conn
	closing      chan struct{}
	explicit     bool
	userID       int64
	contractID   int64
	lastPosition *realtime.Position
	handlers     map[string]map[int]Handler
	nextHandler  int
}

func New(url string, opts Options) *Manager {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Schedule == nil {
		opts.Schedule = LinearSchedule(time.Second)
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	return &Manager{
		url:         url,
		dialer:      opts.Dialer,
		schedule:    opts.Schedule,
		maxAttempts: opts.MaxAttempts,
		logger:      opts.Logger,
		handlers:    make(map[string]map[int]Handler),
	}
}

// State reports the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// On registers fn for envelopes of the given kind and returns an unsubscribe
// function. Registrations persist across reconnects.
func (m *Manager) On(kind string, fn Handler) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.handlers[kind]
	if !ok {
		set = make(map[int]Handler)
		m.handlers[kind] = set
	}
	m.nextHandler++
	id := m.nextHandler
	set[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if set, ok := m.handlers[kind]; ok {
			delete(set, id)
			if len(set) == 0 {
				delete(m.handlers, kind)
			}
		}
	}
}

// Connect dials the server, sends the initial join, and starts the read
// loop. It is an error to connect an already-connected manager.
func (m *Manager) Connect(ctx context.Context, userID, contractID int64) error {
	m.mu.Lock()
	if m.state != Disconnected {
		m.mu.Unlock()
		return fmt.Errorf("channel already %s", m.state)
	}
	m.state = Connecting
	m.explicit = false
	m.closing = make(chan struct{})
	m.userID = userID
	m.contractID = contractID
	m.mu.Unlock()

	conn, _, err := m.dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		m.mu.Lock()
		m.state = Disconnected
		m.mu.Unlock()
		return fmt.Errorf("dial %s: %w", m.url, err)
	}
	m.opened(conn)
	return nil
}

// Disconnect tears the channel down explicitly. No reconnect follows.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state == Disconnected {
		m.mu.Unlock()
		return
	}
	m.explicit = true
	m.state = Disconnected
	conn := m.conn
	m.conn = nil
	if m.closing != nil {
		close(m.closing)
		m.closing = nil
	}
	m.mu.Unlock()
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}
}

// Send writes env to the server. Cursor positions are remembered so a later
// rejoin can restore server-side presence.
func (m *Manager) Send(env realtime.Envelope) error {
	m.mu.Lock()
	conn := m.conn
	if env.Type == realtime.TypeCursorMove && env.Position != nil {
		pos := *env.Position
		m.lastPosition = &pos
	}
	m.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("channel not open")
	}
	return conn.WriteJSON(env)
}

// opened installs conn as the live connection, resets the attempt budget by
// virtue of being called on every successful open, re-sends join, and starts
// the read loop.
func (m *Manager) opened(conn *websocket.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.state = Open
	join := realtime.Envelope{
		Type:       realtime.TypeJoin,
		UserID:     m.userID,
		ContractID: m.contractID,
		Position:   m.lastPosition,
	}
	closing := m.closing
	m.mu.Unlock()

	if err := conn.WriteJSON(join); err != nil {
		m.logger.Printf("channel: join send failed: %v", err)
	}
	go m.readLoop(conn, closing)
}

func (m *Manager) readLoop(conn *websocket.Conn, closing chan struct{}) {
	for {
		var env realtime.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			m.mu.Lock()
			explicit := m.explicit
			m.mu.Unlock()
			_ = conn.Close()
			if explicit {
				return
			}
			m.reconnect(closing)
			return
		}
		m.dispatch(env)
	}
}

func (m *Manager) dispatch(env realtime.Envelope) {
	m.mu.Lock()
	set := m.handlers[env.Type]
	fns := make([]Handler, 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(env)
	}
}

// reconnect retries the dial up to the attempt budget with linearly growing
// delays. Any successful open resets the budget for the next drop. When the
// budget is exhausted the manager lands in a terminal Disconnected state.
func (m *Manager) reconnect(closing chan struct{}) {
	m.mu.Lock()
	m.conn = nil
	m.state = Connecting
	m.mu.Unlock()

	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		delay := m.schedule(attempt)
		select {
		case <-closing:
			return
		case <-time.After(delay):
		}

		conn, _, err := m.dialer.Dial(m.url, nil)
		if err != nil {
			m.logger.Printf("channel: reconnect attempt %d/%d failed: %v", attempt, m.maxAttempts, err)
			continue
		}
		m.logger.Printf("channel: reconnected on attempt %d", attempt)
		m.opened(conn)
		return
	}

	m.logger.Printf("channel: giving up after %d attempts", m.maxAttempts)
	m.mu.Lock()
	m.state = Disconnected
	m.mu.Unlock()
}
