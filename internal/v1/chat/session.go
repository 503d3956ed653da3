// Package chat implements the per-connection session actor. The session owns
// its state exclusively inside its event loop: inbound frames, results of
// spawned persistence tasks, and broker directives all arrive as mailbox
// events, so handlers never block on I/O and never race on session state.
package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/streamnest/chatd/internal/v1/assist"
	"github.com/streamnest/chatd/internal/v1/broker"
	"github.com/streamnest/chatd/internal/v1/logging"
	"github.com/streamnest/chatd/internal/v1/metrics"
	"github.com/streamnest/chatd/internal/v1/status"
	"github.com/streamnest/chatd/internal/v1/store"
)

// wsConnection defines the interface for WebSocket connection operations.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
	SetWriteDeadline(t time.Time) error
}

// RoomBroker is the slice of the broker the session drives.
type RoomBroker interface {
	JoinRoom(roomID int64, displayName string, sink broker.MemberSink) (uint64, int)
	LeaveRoom(roomID int64, sessionID uint64, displayName string)
	SendMessage(roomID int64, frame []byte)
	CountMembers(roomID int64) int
	BlockClient(roomID int64, blockedName string, isBlock bool) bool
}

// Session is one live connection's actor state. Fields below the conn are
// mutated only by the run loop.
type Session struct {
	conn   wsConnection
	assist *assist.Assistant
	broker RoomBroker

	send  chan []byte // outbound frames, drained by writePump
	inbox chan any    // mailbox, drained by the run loop
	tasks chan func() // persistence tasks, executed serially by the task worker
	quit  chan struct{}

	// Actor state. id and roomID are zero while detached.
	id        uint64
	roomID    int64
	userID    int64
	userName  string
	isOwner   bool
	isBlocked bool

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once
}

// NewSession wraps an upgraded connection. Start pumps with Run, WritePump and
// ReadPump.
func NewSession(conn wsConnection, assistant *assist.Assistant, roomBroker RoomBroker) *Session {
	return &Session{
		conn:   conn,
		assist: assistant,
		broker: roomBroker,
		send:   make(chan []byte, 64),
		inbox:  make(chan any, 64),
		tasks:  make(chan func(), 64),
		quit:   make(chan struct{}),
	}
}

// --- mailbox event types ---

type frameEvent struct {
	data []byte
}

type closeEvent struct{}

type blockDirective struct {
	name  string
	block bool
}

type joinDone struct {
	streamID  int64
	userID    int64
	userName  string
	isOwner   bool
	isBlocked bool
	err       error
}

type msgDone struct {
	kind   string // "msg", "msgPut", "msgCut", "msgRmv"
	id     int64  // target message id for edits and removals
	result *store.ChatMessage
	err    error
}

type blockDone struct {
	roomID  int64 // room the directive was issued for
	name    string
	isBlock bool
	found   bool
	err     error
}

// post delivers a mailbox event from an auxiliary task. Events for a
// terminated session are silently dropped.
func (s *Session) post(ev any) {
	select {
	case s.inbox <- ev:
	case <-s.quit:
	}
}

// spawn enqueues a persistence task for the session's worker. Tasks run one at
// a time in enqueue order, so results come back in the order the client sent
// the frames. A full queue is a scheduling failure reported to the caller.
func (s *Session) spawn(task func()) error {
	select {
	case s.tasks <- task:
		return nil
	default:
		return status.Blocking(errors.New("session task queue full"))
	}
}

// runTasks drains the task queue until the session terminates.
func (s *Session) runTasks() {
	for {
		select {
		case task := <-s.tasks:
			task()
		case <-s.quit:
			return
		}
	}
}

// --- broker.MemberSink ---

// Deliver enqueues a fan-out frame. Must not block the broker: a full or
// closed session drops the frame.
func (s *Session) Deliver(frame []byte) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return
	}
	s.mu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			logging.Warn(context.Background(), "Recovered from send to closing session", zap.Any("panic", r))
		}
	}()

	select {
	case s.send <- frame:
	default:
		logging.Warn(context.Background(), "Session send buffer full, dropping frame")
	}
}

// ControlBlock routes a broker block directive into the mailbox. Must not
// block the broker: a full mailbox drops the directive.
func (s *Session) ControlBlock(name string, block bool) {
	select {
	case s.inbox <- blockDirective{name: name, block: block}:
	default:
		logging.Warn(context.Background(), "Session mailbox full, dropping block directive", zap.String("member", name))
	}
}

// Shutdown asks the session to tear down (server shutdown).
func (s *Session) Shutdown(string) {
	select {
	case s.inbox <- closeEvent{}:
	default:
		// Mailbox jammed: force the read pump to fail instead.
		_ = s.conn.Close()
	}
}

// --- pumps ---

// ReadPump feeds inbound text frames into the mailbox. On read failure it
// funnels a final close event through the mailbox so the leave executes before
// the session stops.
func (s *Session) ReadPump() {
	defer func() {
		s.post(closeEvent{})
		metrics.DecConnection()
	}()

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		s.post(frameEvent{data: data})
	}
}

// WritePump drains the send channel onto the wire. When the channel closes it
// sends a close frame and closes the connection.
func (s *Session) WritePump() {
	defer s.conn.Close()
	writeWait := 10 * time.Second

	for message := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Error(context.Background(), "error writing frame", zap.Error(err))
			return
		}
	}
	_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// Run is the session event loop. It processes mailbox events one at a time
// until a close event arrives, then leaves the room and tears down.
func (s *Session) Run() {
	defer s.teardown()
	go s.runTasks()

	for ev := range s.inbox {
		switch e := ev.(type) {
		case frameEvent:
			s.dispatch(e.data)
		case joinDone:
			s.finishJoin(e)
		case msgDone:
			s.finishMessage(e)
		case blockDone:
			s.finishBlock(e)
		case blockDirective:
			s.applyBlockDirective(e)
		case closeEvent:
			return
		}
	}
}

// teardown leaves the current room, closes the outbound stream, and unblocks
// any auxiliary tasks still trying to post results.
func (s *Session) teardown() {
	if s.roomID != 0 {
		s.broker.LeaveRoom(s.roomID, s.id, s.userName)
		s.roomID = 0
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.closeOnce.Do(func() {
		close(s.quit)
		close(s.send)
	})
}

// reply sends a frame to this session only.
func (s *Session) reply(frame []byte) {
	s.Deliver(frame)
}
