package chat

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/streamnest/chatd/internal/v1/logging"
	"github.com/streamnest/chatd/internal/v1/metrics"
	"github.com/streamnest/chatd/internal/v1/status"
	"github.com/streamnest/chatd/internal/v1/wire"
)

// dispatch parses one inbound text frame and routes it. Every failure sends
// exactly one err frame; the connection stays open.
func (s *Session) dispatch(data []byte) {
	in, err := wire.ParseInbound(data)
	if err != nil {
		metrics.WsEvents.WithLabelValues(string(wire.EventUnknown), "error").Inc()
		s.replyErr(status.New(http.StatusBadRequest, "event_not_recognized"))
		return
	}

	eventType := in.Type()
	if err := s.handle(eventType, in); err != nil {
		metrics.WsEvents.WithLabelValues(string(eventType), "error").Inc()
		s.replyErr(status.From(err))
		return
	}
	metrics.WsEvents.WithLabelValues(string(eventType), "ok").Inc()
}

func (s *Session) handle(eventType wire.EventType, in *wire.Inbound) error {
	switch eventType {
	case wire.EventEcho:
		return s.handleEcho(*in.Echo)
	case wire.EventName:
		return s.handleName(*in.Name)
	case wire.EventJoin:
		return s.handleJoin(*in.Join, in.Access)
	case wire.EventLeave:
		return s.handleLeave()
	case wire.EventMsg:
		return s.handleMsg(*in.Msg)
	case wire.EventMsgPut:
		return s.handleMsgPut(*in.MsgPut, in.ID)
	case wire.EventMsgCut:
		return s.handleMsgCut(in.ID)
	case wire.EventMsgRmv:
		return s.handleMsgRmv(*in.MsgRmv)
	case wire.EventBlock:
		return s.handleBlock(*in.Block, true)
	case wire.EventUnblock:
		return s.handleBlock(*in.Unblock, false)
	case wire.EventCount:
		return s.handleCount()
	default:
		return status.New(http.StatusBadRequest, "event_not_recognized")
	}
}

// --- preconditions ---

func (s *Session) checkIsJoinedRoom() error {
	if s.roomID == 0 {
		return status.New(http.StatusNotAcceptable, "there_was_no_join")
	}
	return nil
}

func (s *Session) checkIsBlocked() error {
	if s.isBlocked {
		return status.New(http.StatusForbidden, "block_on_send_messages")
	}
	return nil
}

func (s *Session) checkIsOwnerRoom() error {
	if !s.isOwner {
		return status.New(http.StatusForbidden, "stream_owner_rights_missing")
	}
	return nil
}

// --- handlers ---

func (s *Session) handleEcho(text string) error {
	if text == "" {
		return status.BadRequest("echo")
	}
	s.reply(wire.Marshal(wire.EchoReply{Echo: text}))
	return nil
}

// handleName sets the display name; allowed only while detached.
func (s *Session) handleName(name string) error {
	if name == "" {
		return status.BadRequest("name")
	}
	if s.roomID != 0 {
		return status.New(http.StatusConflict, "there_was_already_join_to_room")
	}
	s.userName = name
	s.reply(wire.Marshal(wire.NameReply{Name: name}))
	return nil
}

// handleJoin resolves credentials and chat access off the loop, then finishes
// the membership change back on the loop via a joinDone event.
func (s *Session) handleJoin(streamID int64, access string) error {
	if streamID <= 0 {
		return status.BadRequest("join")
	}
	if s.roomID == streamID {
		return status.New(http.StatusConflict, "there_was_already_join_to_room")
	}

	currentName := s.userName
	return s.spawn(func() {
		ctx := context.Background()
		done := joinDone{streamID: streamID, userName: currentName, isBlocked: true}

		if access != "" {
			userID, numToken, err := s.assist.DecodeAndVerifyToken(access)
			if err != nil {
				done.err = err
				s.post(done)
				return
			}
			user, err := s.assist.CheckNumTokenAndGetUser(ctx, userID, numToken)
			if err != nil {
				done.err = err
				s.post(done)
				return
			}
			done.userID = user.ID
			done.userName = user.Nickname
		}

		var userID *int64
		if done.userID > 0 {
			userID = &done.userID
		}
		accessInfo, err := s.assist.GetChatAccess(ctx, streamID, userID)
		if err != nil {
			done.err = err
			s.post(done)
			return
		}
		if accessInfo == nil {
			done.err = status.New(http.StatusNotFound, "stream_not_found")
			s.post(done)
			return
		}
		if !accessInfo.StreamLive {
			done.err = status.New(http.StatusConflict, "stream_not_active")
			s.post(done)
			return
		}

		if done.userID != 0 {
			done.isOwner = done.userID == accessInfo.StreamOwner
			done.isBlocked = accessInfo.IsBlocked
		}
		s.post(done)
	})
}

// finishJoin runs on the loop: auto-leave the old room, join the new one, and
// report the join to the client.
func (s *Session) finishJoin(e joinDone) {
	if e.err != nil {
		s.replyErr(status.From(e.err))
		return
	}

	if s.roomID != 0 {
		s.broker.LeaveRoom(s.roomID, s.id, s.userName)
		s.resetRoomState()
	}

	s.userID = e.userID
	s.userName = e.userName
	s.isOwner = e.isOwner
	s.isBlocked = e.isBlocked

	sessionID, count := s.broker.JoinRoom(e.streamID, s.userName, s)
	s.id = sessionID
	s.roomID = e.streamID

	logging.Info(context.Background(), "Session joined room",
		zap.Uint64("sessionId", s.id),
		zap.Int64("streamId", s.roomID),
		zap.Int64("userId", s.userID),
		zap.Bool("isOwner", s.isOwner),
		zap.Bool("isBlocked", s.isBlocked),
	)

	s.reply(wire.Marshal(wire.JoinSelf{
		Join:      s.roomID,
		Member:    s.userName,
		Count:     count,
		IsOwner:   s.isOwner,
		IsBlocked: s.isBlocked,
	}))
}

func (s *Session) handleLeave() error {
	if err := s.checkIsJoinedRoom(); err != nil {
		return err
	}
	// The leave notification reaches this session through the broker delivery.
	s.broker.LeaveRoom(s.roomID, s.id, s.userName)
	s.resetRoomState()
	return nil
}

func (s *Session) resetRoomState() {
	s.id = 0
	s.roomID = 0
	s.isOwner = false
	s.isBlocked = false
}

func (s *Session) handleMsg(body string) error {
	if body == "" {
		return status.BadRequest("msg")
	}
	if err := s.checkIsJoinedRoom(); err != nil {
		return err
	}
	if err := s.checkIsBlocked(); err != nil {
		return err
	}

	streamID, userID := s.roomID, s.userID
	return s.spawn(func() {
		m, err := s.assist.ExecuteCreateChatMessage(context.Background(), streamID, userID, body)
		s.post(msgDone{kind: "msg", result: m, err: err})
	})
}

func (s *Session) handleMsgPut(body string, id int64) error {
	if body == "" {
		return status.BadRequest("msgPut")
	}
	if id <= 0 {
		return status.BadRequest("id")
	}
	if err := s.checkIsJoinedRoom(); err != nil {
		return err
	}
	if err := s.checkIsBlocked(); err != nil {
		return err
	}

	userID := s.userID
	return s.spawn(func() {
		m, err := s.assist.ExecuteModifyChatMessage(context.Background(), id, userID, body)
		s.post(msgDone{kind: "msgPut", id: id, result: m, err: err})
	})
}

func (s *Session) handleMsgCut(id int64) error {
	if id <= 0 {
		return status.BadRequest("id")
	}
	if err := s.checkIsJoinedRoom(); err != nil {
		return err
	}
	if err := s.checkIsBlocked(); err != nil {
		return err
	}

	userID := s.userID
	return s.spawn(func() {
		m, err := s.assist.ExecuteModifyChatMessage(context.Background(), id, userID, "")
		s.post(msgDone{kind: "msgCut", id: id, result: m, err: err})
	})
}

func (s *Session) handleMsgRmv(id int64) error {
	if id <= 0 {
		return status.BadRequest("msgRmv")
	}
	if err := s.checkIsJoinedRoom(); err != nil {
		return err
	}
	if err := s.checkIsBlocked(); err != nil {
		return err
	}

	userID := s.userID
	return s.spawn(func() {
		m, err := s.assist.ExecuteDeleteChatMessage(context.Background(), id, userID)
		s.post(msgDone{kind: "msgRmv", id: id, result: m, err: err})
	})
}

// finishMessage publishes the persisted outcome to the room, or reports the
// failure to the sender only.
func (s *Session) finishMessage(e msgDone) {
	if e.err != nil {
		s.replyErr(status.From(e.err))
		return
	}
	if e.result == nil {
		if e.kind == "msg" {
			s.replyErr(status.New(http.StatusNotFound, "stream_not_found"))
		} else {
			s.replyErr(status.Newf(http.StatusNotFound, "chat_message_not_found; id:%d, user_id:%d", e.id, s.userID))
		}
		return
	}
	// Publish to the stream the message was persisted for, not wherever the
	// sender is now. The sender may have left or switched rooms while the
	// task was in flight.
	if e.kind == "msgRmv" {
		s.broker.SendMessage(e.result.StreamID, wire.Marshal(wire.MsgRmv{MsgRmv: e.result.ID}))
		return
	}

	m := e.result
	s.broker.SendMessage(m.StreamID, wire.Marshal(wire.Msg{
		Msg:     m.Body(),
		ID:      m.ID,
		Member:  m.UserName,
		Date:    wire.FormatTime(m.DateCreated),
		DateEdt: wire.FormatTimePtr(m.DateChanged),
		DateRmv: wire.FormatTimePtr(m.DateRemoved),
	}))
}

func (s *Session) handleBlock(name string, isBlock bool) error {
	if name == "" {
		if isBlock {
			return status.BadRequest("block")
		}
		return status.BadRequest("unblock")
	}
	if err := s.checkIsJoinedRoom(); err != nil {
		return err
	}
	if err := s.checkIsOwnerRoom(); err != nil {
		return err
	}

	streamID, blockerID := s.roomID, s.userID
	return s.spawn(func() {
		b, err := s.assist.ExecuteBlockUser(context.Background(), isBlock, blockerID, nil, name)
		s.post(blockDone{roomID: streamID, name: name, isBlock: isBlock, found: b != nil, err: err})
	})
}

// finishBlock targets the directive at the named member and confirms to the
// owner whether the member was in the chat.
func (s *Session) finishBlock(e blockDone) {
	if e.err != nil {
		s.replyErr(status.From(e.err))
		return
	}
	if !e.found {
		s.replyErr(status.New(http.StatusNotFound, "user_not_found"))
		return
	}
	// Directive targets the room the block was issued for, even if the owner
	// has since left it.
	isInChat := s.broker.BlockClient(e.roomID, e.name, e.isBlock)
	if e.isBlock {
		s.reply(wire.Marshal(wire.Block{Block: e.name, IsInChat: isInChat}))
	} else {
		s.reply(wire.Marshal(wire.Unblock{Unblock: e.name, IsInChat: isInChat}))
	}
}

// applyBlockDirective is the broker telling this session it was blocked or
// unblocked by the stream owner.
func (s *Session) applyBlockDirective(e blockDirective) {
	s.isBlocked = e.block
	if e.block {
		s.reply(wire.Marshal(wire.Block{Block: e.name, IsInChat: true}))
	} else {
		s.reply(wire.Marshal(wire.Unblock{Unblock: e.name, IsInChat: true}))
	}
}

func (s *Session) handleCount() error {
	if err := s.checkIsJoinedRoom(); err != nil {
		return err
	}
	s.reply(wire.Marshal(wire.CountReply{Count: s.broker.CountMembers(s.roomID)}))
	return nil
}

func (s *Session) replyErr(e *status.Error) {
	s.reply(wire.ErrFrame(e))
}
