// Package wire defines the JSON text-frame protocol shared by the chat session,
// the room broker, and their tests. Inbound events are discriminated by the
// first recognized key; outbound frames are one struct per notification shape.
package wire

import (
	"encoding/json"
	"time"

	"github.com/streamnest/chatd/internal/v1/status"
)

// EventType names an inbound event for dispatch and metrics labels.
type EventType string

const (
	EventEcho    EventType = "echo"
	EventName    EventType = "name"
	EventJoin    EventType = "join"
	EventLeave   EventType = "leave"
	EventMsg     EventType = "msg"
	EventMsgPut  EventType = "msgPut"
	EventMsgCut  EventType = "msgCut"
	EventMsgRmv  EventType = "msgRmv"
	EventBlock   EventType = "block"
	EventUnblock EventType = "unblock"
	EventCount   EventType = "count"
	EventUnknown EventType = "unknown"
)

// Inbound is the union of every recognized inbound frame. Pointer fields
// distinguish an absent key from a zero value.
type Inbound struct {
	Echo    *string          `json:"echo"`
	Name    *string          `json:"name"`
	Join    *int64           `json:"join"`
	Access  string           `json:"access"`
	Leave   *json.RawMessage `json:"leave"`
	Msg     *string          `json:"msg"`
	MsgPut  *string          `json:"msgPut"`
	MsgCut  *string          `json:"msgCut"`
	MsgRmv  *int64           `json:"msgRmv"`
	ID      int64            `json:"id"`
	Block   *string          `json:"block"`
	Unblock *string          `json:"unblock"`
	Count   *json.RawMessage `json:"count"`
}

// Type returns the event type by the first recognized key.
func (in *Inbound) Type() EventType {
	switch {
	case in.Echo != nil:
		return EventEcho
	case in.Name != nil:
		return EventName
	case in.Join != nil:
		return EventJoin
	case in.Leave != nil:
		return EventLeave
	case in.Msg != nil:
		return EventMsg
	case in.MsgPut != nil:
		return EventMsgPut
	case in.MsgCut != nil:
		return EventMsgCut
	case in.MsgRmv != nil:
		return EventMsgRmv
	case in.Block != nil:
		return EventBlock
	case in.Unblock != nil:
		return EventUnblock
	case in.Count != nil:
		return EventCount
	default:
		return EventUnknown
	}
}

// ParseInbound decodes a text frame. A frame that is not a JSON object is an
// unknown event, not a transport error.
func ParseInbound(data []byte) (*Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

// --- Outbound frames ---

// EchoReply mirrors the echo payload back.
type EchoReply struct {
	Echo string `json:"echo"`
}

// NameReply confirms a display-name change.
type NameReply struct {
	Name string `json:"name"`
}

// JoinSelf is delivered to the joiner only.
type JoinSelf struct {
	Join      int64  `json:"join"`
	Member    string `json:"member"`
	Count     int    `json:"count"`
	IsOwner   bool   `json:"is_owner"`
	IsBlocked bool   `json:"is_blocked"`
}

// JoinPeer is broadcast to the other members of the room.
type JoinPeer struct {
	Join   int64  `json:"join"`
	Member string `json:"member"`
	Count  int    `json:"count"`
}

// Leave is broadcast to remaining members and delivered to the leaver.
type Leave struct {
	Leave  int64  `json:"leave"`
	Member string `json:"member"`
	Count  int    `json:"count"`
}

// CountReply answers a count request.
type CountReply struct {
	Count int `json:"count"`
}

// Msg is the fan-out shape for created, edited and soft-deleted messages.
type Msg struct {
	Msg     string `json:"msg"`
	ID      int64  `json:"id"`
	Member  string `json:"member"`
	Date    string `json:"date"`
	DateEdt string `json:"date_edt,omitempty"`
	DateRmv string `json:"date_rmv,omitempty"`
}

// MsgRmv carries only the removed message id.
type MsgRmv struct {
	MsgRmv int64 `json:"msgRmv"`
}

// Block reports a block directive to the owner and to the targeted member.
type Block struct {
	Block    string `json:"block"`
	IsInChat bool   `json:"is_in_chat"`
}

// Unblock is the symmetric directive.
type Unblock struct {
	Unblock  string `json:"unblock"`
	IsInChat bool   `json:"is_in_chat"`
}

// Marshal serializes a frame. The shapes above cannot fail to marshal; a
// failure is a programming error surfaced as an empty frame.
func Marshal(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// ErrFrame serializes a status error as the single error reply frame.
func ErrFrame(e *status.Error) []byte {
	return Marshal(e)
}

// FormatTime renders timestamps as RFC 3339 UTC with millisecond precision.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// FormatTimePtr renders an optional timestamp, empty when absent.
func FormatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTime(*t)
}
