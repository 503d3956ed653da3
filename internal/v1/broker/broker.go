// Package broker implements the process-wide room registry. A single goroutine
// owns the room -> members mapping and processes commands serially, so
// deliveries within one room always follow the order the broker observed the
// originating commands.
package broker

import (
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/streamnest/chatd/internal/v1/logging"
	"github.com/streamnest/chatd/internal/v1/metrics"
	"github.com/streamnest/chatd/internal/v1/wire"
)

// MemberSink is the send-only handle the broker keeps per member. The broker
// never owns the session's state; dropping the sink is how a session
// disappears from fan-out.
type MemberSink interface {
	// Deliver enqueues a text frame for the member. Must not block.
	Deliver(frame []byte)
	// ControlBlock delivers a block/unblock directive to the member's session.
	ControlBlock(name string, block bool)
	// Shutdown asks the session to close its connection (server shutdown).
	Shutdown(reason string)
}

type member struct {
	name string
	sink MemberSink
}

// Broker routes fan-out frames, tracks membership counts, and executes block
// directives against specific members.
type Broker struct {
	cmds chan any
	done chan struct{}
}

type joinCmd struct {
	roomID int64
	name   string
	sink   MemberSink
	reply  chan joinReply
}

type joinReply struct {
	sessionID uint64
	count     int
}

type leaveCmd struct {
	roomID    int64
	sessionID uint64
	name      string
	done      chan struct{}
}

type sendCmd struct {
	roomID int64
	frame  []byte
}

type countCmd struct {
	roomID int64
	reply  chan int
}

type blockCmd struct {
	roomID int64
	name   string
	block  bool
	reply  chan bool
}

type shutdownCmd struct {
	done chan struct{}
}

// New creates a broker and starts its command loop.
func New() *Broker {
	b := &Broker{
		cmds: make(chan any, 256),
		done: make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Broker) run() {
	rooms := make(map[int64]map[uint64]member)
	var nextSessionID uint64

	for cmd := range b.cmds {
		switch c := cmd.(type) {
		case joinCmd:
			members, ok := rooms[c.roomID]
			if !ok {
				members = make(map[uint64]member)
				rooms[c.roomID] = members
				metrics.ActiveRooms.Inc()
				logging.Info(context.Background(), "Room created", zap.Int64("streamId", c.roomID))
			}
			nextSessionID++
			sessionID := nextSessionID
			members[sessionID] = member{name: c.name, sink: c.sink}
			count := len(members)
			metrics.RoomMembers.WithLabelValues(strconv.FormatInt(c.roomID, 10)).Set(float64(count))
			c.reply <- joinReply{sessionID: sessionID, count: count}

			// The joiner hears its own join on the session's reply path.
			frame := wire.Marshal(wire.JoinPeer{Join: c.roomID, Member: c.name, Count: count})
			for id, m := range members {
				if id != sessionID {
					m.sink.Deliver(frame)
				}
			}

		case leaveCmd:
			if members, ok := rooms[c.roomID]; ok {
				if left, exists := members[c.sessionID]; exists {
					delete(members, c.sessionID)
					count := len(members)

					frame := wire.Marshal(wire.Leave{Leave: c.roomID, Member: c.name, Count: count})
					for _, m := range members {
						m.sink.Deliver(frame)
					}
					left.sink.Deliver(frame)

					if count == 0 {
						delete(rooms, c.roomID)
						metrics.ActiveRooms.Dec()
						metrics.RoomMembers.DeleteLabelValues(strconv.FormatInt(c.roomID, 10))
						logging.Info(context.Background(), "Room removed", zap.Int64("streamId", c.roomID))
					} else {
						metrics.RoomMembers.WithLabelValues(strconv.FormatInt(c.roomID, 10)).Set(float64(count))
					}
				}
			}
			close(c.done)

		case sendCmd:
			for _, m := range rooms[c.roomID] {
				m.sink.Deliver(c.frame)
			}

		case countCmd:
			c.reply <- len(rooms[c.roomID])

		case blockCmd:
			found := false
			for _, m := range rooms[c.roomID] {
				if m.name == c.name {
					m.sink.ControlBlock(c.name, c.block)
					found = true
				}
			}
			c.reply <- found

		case shutdownCmd:
			for roomID, members := range rooms {
				for _, m := range members {
					m.sink.Shutdown("server shutting down")
				}
				metrics.RoomMembers.DeleteLabelValues(strconv.FormatInt(roomID, 10))
				metrics.ActiveRooms.Dec()
				delete(rooms, roomID)
			}
			close(b.done)
			close(c.done)
			return
		}
	}
}

// JoinRoom allocates a fresh session id, inserts the member (creating the room
// if absent), and returns the id with the new member count. A join
// notification goes to every other member.
func (b *Broker) JoinRoom(roomID int64, displayName string, sink MemberSink) (uint64, int) {
	reply := make(chan joinReply, 1)
	select {
	case b.cmds <- joinCmd{roomID: roomID, name: displayName, sink: sink, reply: reply}:
		r := <-reply
		return r.sessionID, r.count
	case <-b.done:
		return 0, 0
	}
}

// LeaveRoom removes the member, deleting the room when it empties, and
// broadcasts the leave to remaining members and to the leaver. Idempotent for
// unknown pairs. Returns after the broker processed the command.
func (b *Broker) LeaveRoom(roomID int64, sessionID uint64, displayName string) {
	done := make(chan struct{})
	select {
	case b.cmds <- leaveCmd{roomID: roomID, sessionID: sessionID, name: displayName, done: done}:
		<-done
	case <-b.done:
	}
}

// SendMessage delivers the frame to every current member, sender included.
func (b *Broker) SendMessage(roomID int64, frame []byte) {
	select {
	case b.cmds <- sendCmd{roomID: roomID, frame: frame}:
	case <-b.done:
	}
}

// CountMembers returns the current member count, 0 for unknown rooms.
func (b *Broker) CountMembers(roomID int64) int {
	reply := make(chan int, 1)
	select {
	case b.cmds <- countCmd{roomID: roomID, reply: reply}:
		return <-reply
	case <-b.done:
		return 0
	}
}

// BlockClient delivers a block or unblock directive to any member whose
// display name matches, reporting whether such a member was in the room.
func (b *Broker) BlockClient(roomID int64, blockedName string, isBlock bool) bool {
	reply := make(chan bool, 1)
	select {
	case b.cmds <- blockCmd{roomID: roomID, name: blockedName, block: isBlock, reply: reply}:
		return <-reply
	case <-b.done:
		return false
	}
}

// Shutdown asks every member session to close and stops the command loop.
func (b *Broker) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case b.cmds <- shutdownCmd{done: done}:
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
