package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/muurk/voxsync/internal/api"
	"github.com/muurk/voxsync/internal/protocol"
)

const waitTimeout = 2 * time.Second

// fakeTimer records a scheduled reconnect without running it
type fakeTimer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	stopped bool
}

func (ft *fakeTimer) Stop() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	wasActive := !ft.stopped
	ft.stopped = true
	return wasActive
}

func (ft *fakeTimer) isStopped() bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return ft.stopped
}

type fakeScheduler struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (fs *fakeScheduler) after(d time.Duration, f func()) timer {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	ft := &fakeTimer{delay: d, fn: f}
	fs.timers = append(fs.timers, ft)
	return ft
}

func (fs *fakeScheduler) count() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return len(fs.timers)
}

func (fs *fakeScheduler) get(i int) *fakeTimer {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.timers[i]
}

// testServer accepts websocket connections and hands them to the test
type testServer struct {
	*httptest.Server
	conns    chan *websocket.Conn
	received chan []byte
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		conns:    make(chan *websocket.Conn, 4),
		received: make(chan []byte, 16),
	}
	upgrader := websocket.Upgrader{}

	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ts.conns <- conn
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			ts.received <- data
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) wsURL() string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func (ts *testServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-ts.conns:
		return conn
	case <-time.After(waitTimeout):
		t.Fatal("server never received a connection")
		return nil
	}
}

func newTestManager(url string, fs *fakeScheduler) *Manager {
	m := New(url)
	m.after = fs.after
	return m
}

func recordStates(m *Manager) chan State {
	states := make(chan State, 32)
	m.OnState(func(s State) { states <- s })
	return states
}

func waitForState(t *testing.T, states chan State, want State) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case s := <-states:
			if s == want {
				return
			}
		case <-deadline:
			t.Fatalf("never reached state %s", want)
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Disconnected, "disconnected"},
		{Connecting, "connecting"},
		{Connected, "connected"},
		{State(9), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %s, want %s", tt.state, got, tt.want)
		}
	}
}

func TestConnect_Transitions(t *testing.T) {
	ts := newTestServer(t)
	fs := &fakeScheduler{}
	m := newTestManager(ts.wsURL(), fs)
	defer m.Close()

	states := recordStates(m)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	ts.accept(t)

	if got := <-states; got != Connecting {
		t.Errorf("first transition = %s, want connecting", got)
	}
	if got := <-states; got != Connected {
		t.Errorf("second transition = %s, want connected", got)
	}
	if m.State() != Connected {
		t.Errorf("State() = %s, want connected", m.State())
	}

	// Connecting again while connected is a no-op
	if err := m.Connect(context.Background()); err != nil {
		t.Errorf("second Connect() error = %v", err)
	}
	if fs.count() != 0 {
		t.Errorf("no reconnect should be scheduled, got %d", fs.count())
	}
}

func TestMessages_DecodedAndFiltered(t *testing.T) {
	ts := newTestServer(t)
	m := newTestManager(ts.wsURL(), &fakeScheduler{})
	defer m.Close()

	msgs := make(chan protocol.Inbound, 8)
	m.OnMessage(func(msg protocol.Inbound) { msgs <- msg })

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	server := ts.accept(t)

	frames := []string{
		`not json`,
		`{"type":"waveform","data":{}}`,
		`{"type":"status","data":{"latency_ms":9.5,"enabled":false,"cpu_usage":1}}`,
	}
	for _, f := range frames {
		if err := server.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
			t.Fatalf("server write: %v", err)
		}
	}

	select {
	case msg := <-msgs:
		status, ok := msg.(protocol.StatusMessage)
		if !ok {
			t.Fatalf("first delivered message = %T, want StatusMessage", msg)
		}
		if status.Status.LatencyMs != 9.5 {
			t.Errorf("LatencyMs = %v, want 9.5", status.Status.LatencyMs)
		}
	case <-time.After(waitTimeout):
		t.Fatal("status message never delivered")
	}

	if m.State() != Connected {
		t.Errorf("malformed frame should not drop the connection, state = %s", m.State())
	}
}

func TestDrop_SchedulesOneReconnect(t *testing.T) {
	ts := newTestServer(t)
	fs := &fakeScheduler{}
	m := newTestManager(ts.wsURL(), fs)
	defer m.Close()

	states := recordStates(m)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	server := ts.accept(t)
	waitForState(t, states, Connected)

	_ = server.Close()
	waitForState(t, states, Disconnected)

	if fs.count() != 1 {
		t.Fatalf("scheduled reconnects = %d, want 1", fs.count())
	}
	if d := fs.get(0).delay; d != DefaultReconnectDelay {
		t.Errorf("reconnect delay = %v, want %v", d, DefaultReconnectDelay)
	}

	fs.get(0).fn()
	ts.accept(t)
	waitForState(t, states, Connected)

	if fs.count() != 1 {
		t.Errorf("successful reconnect should not schedule another, got %d", fs.count())
	}
}

func TestDialFailure_SchedulesReconnect(t *testing.T) {
	ts := newTestServer(t)
	url := ts.wsURL()
	ts.Close()

	fs := &fakeScheduler{}
	m := newTestManager(url, fs)
	states := recordStates(m)

	err := m.Connect(context.Background())
	if !api.IsChannelError(err) {
		t.Fatalf("Connect() error = %v, want channel error", err)
	}
	waitForState(t, states, Disconnected)

	if m.State() != Disconnected {
		t.Errorf("State() = %s, want disconnected", m.State())
	}
	if fs.count() != 1 {
		t.Fatalf("scheduled reconnects = %d, want 1", fs.count())
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !fs.get(0).isStopped() {
		t.Error("Close should stop the pending reconnect")
	}

	// A timer that fires anyway after Close must do nothing
	fs.get(0).fn()
	select {
	case s := <-states:
		t.Errorf("callback fired after Close: %s", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSend_BestEffort(t *testing.T) {
	ts := newTestServer(t)
	m := newTestManager(ts.wsURL(), &fakeScheduler{})
	defer m.Close()

	if m.RequestStatus() {
		t.Error("RequestStatus() should be discarded while disconnected")
	}

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	ts.accept(t)

	if !m.RequestStatus() {
		t.Fatal("RequestStatus() should succeed while connected")
	}

	select {
	case data := <-ts.received:
		msg := string(data)
		if !strings.Contains(msg, `"type":"get_status"`) {
			t.Errorf("server received %s, want get_status frame", msg)
		}
	case <-time.After(waitTimeout):
		t.Fatal("server never received the frame")
	}
}

func TestClose_Idempotent(t *testing.T) {
	ts := newTestServer(t)
	m := newTestManager(ts.wsURL(), &fakeScheduler{})
	states := recordStates(m)

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	ts.accept(t)
	waitForState(t, states, Connected)

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if m.State() != Disconnected {
		t.Errorf("State() = %s, want disconnected", m.State())
	}
	if m.Send([]byte(`{}`)) {
		t.Error("Send after Close should be discarded")
	}
	if err := m.Connect(context.Background()); err != ErrClosed {
		t.Errorf("Connect after Close = %v, want ErrClosed", err)
	}

	select {
	case s := <-states:
		t.Errorf("callback fired after Close: %s", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribe(t *testing.T) {
	ts := newTestServer(t)
	m := newTestManager(ts.wsURL(), &fakeScheduler{})
	defer m.Close()

	var mu sync.Mutex
	calls := 0
	unsubscribe := m.OnState(func(State) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	unsubscribe()

	if err := m.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	ts.accept(t)

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("unsubscribed callback ran %d times", calls)
	}
}

func TestExponentialPolicy_NeverStops(t *testing.T) {
	p := NewExponentialPolicy(100*time.Millisecond, time.Second)

	for i := 0; i < 50; i++ {
		d := p.NextBackOff()
		if d <= 0 {
			t.Fatalf("attempt %d: NextBackOff() = %v, want positive", i, d)
		}
		if d > 2*time.Second {
			t.Fatalf("attempt %d: NextBackOff() = %v exceeds cap with jitter", i, d)
		}
	}
}
