package chat

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/streamnest/chatd/internal/v1/assist"
	"github.com/streamnest/chatd/internal/v1/broker"
	"github.com/streamnest/chatd/internal/v1/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestBroker(t *testing.T) *broker.Broker {
	t.Helper()
	b := broker.New()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = b.Shutdown(ctx)
	})
	return b
}

// startSession wires a mock connection into a running session, pumps included.
func startSession(t *testing.T, assistant *assist.Assistant, rb RoomBroker) *mockConn {
	t.Helper()
	conn := newMockConn()
	s := NewSession(conn, assistant, rb)
	go s.WritePump()
	go s.Run()
	go s.ReadPump()
	t.Cleanup(conn.disconnect)
	return conn
}

func recvFrame(t *testing.T, conn *mockConn) string {
	t.Helper()
	select {
	case data := <-conn.written:
		return string(data)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}

// liveStreamAssistant builds an assistant over a world with one live stream 42
// owned by alice (id 10); bob (id 20) is a regular viewer.
func liveStreamAssistant(overrides func(*fakeChatStore)) *assist.Assistant {
	tokens := &fakeTokens{byToken: map[string][2]int64{
		"owner-token": {10, 1},
		"bob-token":   {20, 1},
	}}
	users := &fakeUsers{byID: map[int64]*store.UserLite{
		10: {ID: 10, Nickname: "alice", NumToken: 1},
		20: {ID: 20, Nickname: "bob", NumToken: 1},
	}}
	st := &fakeChatStore{
		getChatAccess: func(streamID int64, userID *int64) (*store.ChatAccess, error) {
			if streamID != 42 {
				return nil, nil
			}
			return &store.ChatAccess{
				StreamID:    42,
				StreamOwner: 10,
				StreamLive:  true,
				IsBlocked:   userID == nil,
			}, nil
		},
	}
	if overrides != nil {
		overrides(st)
	}
	return assist.New(st, users, tokens)
}

func TestSession_Echo(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"echo":"ping"}`)

	assert.JSONEq(t, `{"echo":"ping"}`, recvFrame(t, conn))
}

func TestSession_EchoEmptyYieldsExactErrorFrame(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"echo":""}`)

	assert.JSONEq(t,
		`{"err":400,"code":"BadRequest","message":"parameter_not_defined; name: 'echo'"}`,
		recvFrame(t, conn))
}

func TestSession_MalformedFrame(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`this is not json`)

	assert.JSONEq(t,
		`{"err":400,"code":"BadRequest","message":"event_not_recognized"}`,
		recvFrame(t, conn))

	// The connection survives the bad frame.
	conn.push(`{"echo":"still here"}`)
	assert.JSONEq(t, `{"echo":"still here"}`, recvFrame(t, conn))
}

func TestSession_UnknownEvent(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"dance":"macarena"}`)

	assert.JSONEq(t,
		`{"err":400,"code":"BadRequest","message":"event_not_recognized"}`,
		recvFrame(t, conn))
}

func TestSession_MsgBeforeJoin(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"msg":"hello"}`)

	assert.JSONEq(t,
		`{"err":406,"code":"NotAcceptable","message":"there_was_no_join"}`,
		recvFrame(t, conn))
}

func TestSession_AnonymousJoinIsMuted(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"name":"viewer"}`)
	assert.JSONEq(t, `{"name":"viewer"}`, recvFrame(t, conn))

	conn.push(`{"join":42}`)
	assert.JSONEq(t,
		`{"join":42,"member":"viewer","count":1,"is_owner":false,"is_blocked":true}`,
		recvFrame(t, conn))

	// Anonymous viewers watch; they do not speak.
	conn.push(`{"msg":"hello"}`)
	assert.JSONEq(t,
		`{"err":403,"code":"Forbidden","message":"block_on_send_messages"}`,
		recvFrame(t, conn))
}

func TestSession_AuthenticatedJoinAsOwner(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"join":42,"access":"owner-token"}`)

	assert.JSONEq(t,
		`{"join":42,"member":"alice","count":1,"is_owner":true,"is_blocked":false}`,
		recvFrame(t, conn))
}

func TestSession_JoinUnknownStream(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"join":7,"access":"owner-token"}`)

	assert.JSONEq(t,
		`{"err":404,"code":"NotFound","message":"stream_not_found"}`,
		recvFrame(t, conn))
}

func TestSession_JoinOfflineStream(t *testing.T) {
	assistant := liveStreamAssistant(func(st *fakeChatStore) {
		st.getChatAccess = func(streamID int64, userID *int64) (*store.ChatAccess, error) {
			return &store.ChatAccess{StreamID: streamID, StreamOwner: 10, StreamLive: false}, nil
		}
	})
	conn := startSession(t, assistant, newTestBroker(t))

	conn.push(`{"join":42,"access":"owner-token"}`)

	assert.JSONEq(t,
		`{"err":409,"code":"Conflict","message":"stream_not_active"}`,
		recvFrame(t, conn))
}

func TestSession_JoinBadToken(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"join":42,"access":"forged"}`)

	assert.JSONEq(t,
		`{"err":401,"code":"Unauthorized","message":"unauthorized"}`,
		recvFrame(t, conn))
}

func TestSession_JoinSameRoomTwice(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, conn)

	conn.push(`{"join":42,"access":"owner-token"}`)
	assert.JSONEq(t,
		`{"err":409,"code":"Conflict","message":"there_was_already_join_to_room"}`,
		recvFrame(t, conn))
}

func TestSession_NameWhileJoined(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, conn)

	conn.push(`{"name":"other"}`)
	assert.JSONEq(t,
		`{"err":409,"code":"Conflict","message":"there_was_already_join_to_room"}`,
		recvFrame(t, conn))
}

func TestSession_MessageFanOut(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	assistant := liveStreamAssistant(func(st *fakeChatStore) {
		st.createChatMessage = func(streamID, userID int64, msg string) (*store.ChatMessage, error) {
			return &store.ChatMessage{
				ID:          1,
				StreamID:    streamID,
				UserID:      userID,
				UserName:    "alice",
				Msg:         &msg,
				DateCreated: created,
			}, nil
		}
	})
	rb := newTestBroker(t)

	alice := startSession(t, assistant, rb)
	bob := startSession(t, assistant, rb)

	alice.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, alice)
	bob.push(`{"join":42,"access":"bob-token"}`)
	assert.JSONEq(t,
		`{"join":42,"member":"bob","count":2,"is_owner":false,"is_blocked":false}`,
		recvFrame(t, bob))
	assert.JSONEq(t, `{"join":42,"member":"bob","count":2}`, recvFrame(t, alice))

	alice.push(`{"msg":"hello"}`)

	want := `{"msg":"hello","id":1,"member":"alice","date":"2026-03-14T09:26:53.589Z"}`
	assert.JSONEq(t, want, recvFrame(t, alice))
	assert.JSONEq(t, want, recvFrame(t, bob))
}

func TestSession_MessagesArriveInSendOrder(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	var nextID int64
	assistant := liveStreamAssistant(func(st *fakeChatStore) {
		st.createChatMessage = func(streamID, userID int64, msg string) (*store.ChatMessage, error) {
			nextID++
			return &store.ChatMessage{
				ID:          nextID,
				StreamID:    streamID,
				UserID:      userID,
				UserName:    "alice",
				Msg:         &msg,
				DateCreated: created,
			}, nil
		}
	})
	rb := newTestBroker(t)

	alice := startSession(t, assistant, rb)
	bob := startSession(t, assistant, rb)

	alice.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, alice)
	bob.push(`{"join":42,"access":"bob-token"}`)
	recvFrame(t, bob)
	recvFrame(t, alice) // bob's join notification

	alice.push(`{"msg":"one"}`)
	alice.push(`{"msg":"two"}`)
	alice.push(`{"msg":"three"}`)

	for i, body := range []string{"one", "two", "three"} {
		want := fmt.Sprintf(`{"msg":%q,"id":%d,"member":"alice","date":"2026-03-14T09:26:53.589Z"}`, body, i+1)
		assert.JSONEq(t, want, recvFrame(t, alice), "alice frame %d", i)
		assert.JSONEq(t, want, recvFrame(t, bob), "bob frame %d", i)
	}
}

func TestSession_MessageLandsInItsOwnStream(t *testing.T) {
	created := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	release := make(chan struct{})
	assistant := liveStreamAssistant(func(st *fakeChatStore) {
		st.getChatAccess = func(streamID int64, userID *int64) (*store.ChatAccess, error) {
			if streamID != 42 && streamID != 43 {
				return nil, nil
			}
			return &store.ChatAccess{
				StreamID:    streamID,
				StreamOwner: 10,
				StreamLive:  true,
				IsBlocked:   userID == nil,
			}, nil
		}
		st.createChatMessage = func(streamID, userID int64, msg string) (*store.ChatMessage, error) {
			<-release
			return &store.ChatMessage{
				ID:          7,
				StreamID:    streamID,
				UserID:      userID,
				UserName:    "alice",
				Msg:         &msg,
				DateCreated: created,
			}, nil
		}
	})
	rb := newTestBroker(t)

	alice := startSession(t, assistant, rb)
	bob := startSession(t, assistant, rb)
	carol := startSession(t, assistant, rb)

	alice.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, alice)
	bob.push(`{"join":42,"access":"bob-token"}`)
	recvFrame(t, bob)
	recvFrame(t, alice) // bob's join notification

	carol.push(`{"name":"carol"}`)
	recvFrame(t, carol)
	carol.push(`{"join":43}`)
	recvFrame(t, carol)

	// The insert is still in flight when alice moves to the other stream.
	alice.push(`{"msg":"parting words"}`)
	alice.push(`{"leave":null}`)
	assert.JSONEq(t, `{"leave":42,"member":"alice","count":1}`, recvFrame(t, alice))
	assert.JSONEq(t, `{"leave":42,"member":"alice","count":1}`, recvFrame(t, bob))
	alice.push(`{"join":43,"access":"owner-token"}`)

	close(release)

	// The stored message fans out to the stream it was written for.
	assert.JSONEq(t,
		`{"msg":"parting words","id":7,"member":"alice","date":"2026-03-14T09:30:00.000Z"}`,
		recvFrame(t, bob))

	// alice finishes her move; carol sees the join and never the message.
	assert.JSONEq(t,
		`{"join":43,"member":"alice","count":2,"is_owner":true,"is_blocked":false}`,
		recvFrame(t, alice))
	assert.JSONEq(t, `{"join":43,"member":"alice","count":2}`, recvFrame(t, carol))
}

func TestSession_BlockIssuedBeforeLeaveStillLands(t *testing.T) {
	release := make(chan struct{})
	assistant := liveStreamAssistant(func(st *fakeChatStore) {
		st.createBlockedUser = func(p store.BlockUserParams) (*store.BlockedUser, error) {
			<-release
			return &store.BlockedUser{ID: 1, UserID: p.UserID, BlockedID: 20, BlockedNickname: p.BlockedNickname}, nil
		}
	})
	rb := newTestBroker(t)

	alice := startSession(t, assistant, rb)
	bob := startSession(t, assistant, rb)

	alice.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, alice)
	bob.push(`{"join":42,"access":"bob-token"}`)
	recvFrame(t, bob)
	recvFrame(t, alice) // bob's join notification

	// The block record is still persisting when the owner leaves.
	alice.push(`{"block":"bob"}`)
	alice.push(`{"leave":null}`)
	assert.JSONEq(t, `{"leave":42,"member":"alice","count":1}`, recvFrame(t, alice))
	assert.JSONEq(t, `{"leave":42,"member":"alice","count":1}`, recvFrame(t, bob))

	close(release)

	// The directive reaches the room the block was issued for.
	blocked := `{"block":"bob","is_in_chat":true}`
	assert.JSONEq(t, blocked, recvFrame(t, bob))
	assert.JSONEq(t, blocked, recvFrame(t, alice))

	bob.push(`{"msg":"still here?"}`)
	assert.JSONEq(t,
		`{"err":403,"code":"Forbidden","message":"block_on_send_messages"}`,
		recvFrame(t, bob))
}

func TestSession_TaskQueueOverflow(t *testing.T) {
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	assistant := liveStreamAssistant(func(st *fakeChatStore) {
		st.createChatMessage = func(streamID, userID int64, msg string) (*store.ChatMessage, error) {
			select {
			case started <- struct{}{}:
			default:
			}
			<-release
			return &store.ChatMessage{
				ID:          1,
				StreamID:    streamID,
				UserID:      userID,
				UserName:    "alice",
				Msg:         &msg,
				DateCreated: time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC),
			}, nil
		}
	})
	conn := startSession(t, assistant, newTestBroker(t))

	conn.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, conn)

	// One message occupies the worker, the next 64 fill the queue.
	conn.push(`{"msg":"opener"}`)
	<-started
	for i := 0; i < 64; i++ {
		conn.push(`{"msg":"filler"}`)
	}

	conn.push(`{"msg":"one too many"}`)
	assert.JSONEq(t,
		`{"err":506,"code":"Blocking","message":"blocking; session task queue full"}`,
		recvFrame(t, conn))

	close(release)
}

func TestSession_MsgRmvFanOut(t *testing.T) {
	removed := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	assistant := liveStreamAssistant(func(st *fakeChatStore) {
		st.deleteChatMessage = func(id, userID int64) (*store.ChatMessage, error) {
			return &store.ChatMessage{
				ID:          id,
				StreamID:    42,
				UserID:      userID,
				UserName:    "alice",
				DateCreated: removed.Add(-time.Hour),
				DateRemoved: &removed,
			}, nil
		}
	})
	conn := startSession(t, assistant, newTestBroker(t))

	conn.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, conn)

	conn.push(`{"msgRmv":5}`)
	assert.JSONEq(t, `{"msgRmv":5}`, recvFrame(t, conn))
}

func TestSession_EditForeignMessage(t *testing.T) {
	// modifyChatMessage stays nil: no row matched the (id, user_id) pair.
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, conn)

	conn.push(`{"msgPut":"edited","id":5}`)
	assert.JSONEq(t,
		`{"err":404,"code":"NotFound","message":"chat_message_not_found; id:5, user_id:10"}`,
		recvFrame(t, conn))
}

func TestSession_BlockMutesTargetInChat(t *testing.T) {
	assistant := liveStreamAssistant(func(st *fakeChatStore) {
		st.createBlockedUser = func(p store.BlockUserParams) (*store.BlockedUser, error) {
			return &store.BlockedUser{ID: 1, UserID: p.UserID, BlockedID: 20, BlockedNickname: p.BlockedNickname}, nil
		}
	})
	rb := newTestBroker(t)

	alice := startSession(t, assistant, rb)
	bob := startSession(t, assistant, rb)

	alice.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, alice)
	bob.push(`{"join":42,"access":"bob-token"}`)
	recvFrame(t, bob)
	recvFrame(t, alice) // bob's join notification

	alice.push(`{"block":"bob"}`)

	blocked := `{"block":"bob","is_in_chat":true}`
	assert.JSONEq(t, blocked, recvFrame(t, bob))
	assert.JSONEq(t, blocked, recvFrame(t, alice))

	// The directive mutes bob immediately.
	bob.push(`{"msg":"can you hear me"}`)
	assert.JSONEq(t,
		`{"err":403,"code":"Forbidden","message":"block_on_send_messages"}`,
		recvFrame(t, bob))
}

func TestSession_BlockUnknownUser(t *testing.T) {
	// createBlockedUser stays nil: the nickname does not resolve.
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, conn)

	conn.push(`{"block":"nobody"}`)
	assert.JSONEq(t,
		`{"err":404,"code":"NotFound","message":"user_not_found"}`,
		recvFrame(t, conn))
}

func TestSession_BlockRequiresOwner(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"join":42,"access":"bob-token"}`)
	recvFrame(t, conn)

	conn.push(`{"block":"alice"}`)
	assert.JSONEq(t,
		`{"err":403,"code":"Forbidden","message":"stream_owner_rights_missing"}`,
		recvFrame(t, conn))
}

func TestSession_LeaveThenCount(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, conn)

	conn.push(`{"leave":null}`)
	assert.JSONEq(t, `{"leave":42,"member":"alice","count":0}`, recvFrame(t, conn))

	conn.push(`{"count":null}`)
	assert.JSONEq(t,
		`{"err":406,"code":"NotAcceptable","message":"there_was_no_join"}`,
		recvFrame(t, conn))
}

func TestSession_Count(t *testing.T) {
	conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

	conn.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, conn)

	conn.push(`{"count":null}`)
	assert.JSONEq(t, `{"count":1}`, recvFrame(t, conn))
}

func TestSession_DisconnectBroadcastsLeave(t *testing.T) {
	rb := newTestBroker(t)
	assistant := liveStreamAssistant(nil)

	alice := startSession(t, assistant, rb)
	bob := startSession(t, assistant, rb)

	alice.push(`{"join":42,"access":"owner-token"}`)
	recvFrame(t, alice)
	bob.push(`{"join":42,"access":"bob-token"}`)
	recvFrame(t, bob)
	recvFrame(t, alice) // bob's join notification

	bob.disconnect()

	assert.JSONEq(t, `{"leave":42,"member":"bob","count":1}`, recvFrame(t, alice))
}

func TestSession_RequiredFieldPresenceChecks(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  string
	}{
		{"empty name", `{"name":""}`, `{"err":400,"code":"BadRequest","message":"parameter_not_defined; name: 'name'"}`},
		{"zero join", `{"join":0}`, `{"err":400,"code":"BadRequest","message":"parameter_not_defined; name: 'join'"}`},
		{"empty msgPut body", `{"msgPut":"","id":5}`, `{"err":400,"code":"BadRequest","message":"parameter_not_defined; name: 'msgPut'"}`},
		{"zero msgRmv", `{"msgRmv":0}`, `{"err":400,"code":"BadRequest","message":"parameter_not_defined; name: 'msgRmv'"}`},
		{"empty block", `{"block":""}`, `{"err":400,"code":"BadRequest","message":"parameter_not_defined; name: 'block'"}`},
		{"empty unblock", `{"unblock":""}`, `{"err":400,"code":"BadRequest","message":"parameter_not_defined; name: 'unblock'"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := startSession(t, liveStreamAssistant(nil), newTestBroker(t))

			conn.push(tt.frame)

			require.JSONEq(t, tt.want, recvFrame(t, conn))
		})
	}
}
