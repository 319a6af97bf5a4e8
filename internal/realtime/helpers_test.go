package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var errConnClosed = errors.New("connection closed")

type inboundFrame struct {
	messageType int
	data        []byte
}

// mockConn implements the Conn interface for tests: pushed frames come out
// of ReadMessage, written text frames are captured for assertions.
type mockConn struct {
	mu        sync.Mutex
	written   [][]byte
	inbound   chan inboundFrame
	closed    chan struct{}
	closeOnce sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		inbound: make(chan inboundFrame, 16),
		closed:  make(chan struct{}),
	}
}

func (m *mockConn) push(messageType int, data []byte) {
	m.inbound <- inboundFrame{messageType: messageType, data: data}
}

func (m *mockConn) pushText(text string) {
	m.push(websocket.TextMessage, []byte(text))
}

func (m *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case frame := <-m.inbound:
		return frame.messageType, frame.data, nil
	case <-m.closed:
		return 0, nil, errConnClosed
	}
}

func (m *mockConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-m.closed:
		return errConnClosed
	default:
	}
	if messageType != websocket.TextMessage {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, append([]byte(nil), data...))
	return nil
}

func (m *mockConn) frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	frames := make([][]byte, len(m.written))
	copy(frames, m.written)
	return frames
}

func (m *mockConn) SetReadDeadline(time.Time) error      { return nil }
func (m *mockConn) SetWriteDeadline(time.Time) error     { return nil }
func (m *mockConn) SetReadLimit(int64)                   {}
func (m *mockConn) SetPongHandler(func(string) error)    {}

func (m *mockConn) Close() error {
	m.closeOnce.Do(func() { close(m.closed) })
	return nil
}

// fakeMembers serves conversation membership from a map.
type fakeMembers struct {
	conversations map[uint][]uint
	err           error
}

func (f *fakeMembers) MemberIDs(ctx context.Context, conversationID uint) ([]uint, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.conversations[conversationID], nil
}

// waitFor polls until the condition holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(message)
}
