package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/streamnest/chatd/internal/v1/store"
)

// mockConn implements wsConnection. Inbound frames are pushed through a
// channel; written text frames come back out on another.
type mockConn struct {
	inbound chan []byte
	written chan []byte

	closed    chan struct{}
	closeOnce sync.Once
	inOnce    sync.Once
}

func newMockConn() *mockConn {
	return &mockConn{
		inbound: make(chan []byte, 16),
		written: make(chan []byte, 100),
		closed:  make(chan struct{}),
	}
}

func (c *mockConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.inbound:
		if !ok {
			return 0, nil, errors.New("client went away")
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, errors.New("use of closed connection")
	}
}

func (c *mockConn) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	select {
	case c.written <- data:
	default:
	}
	return nil
}

func (c *mockConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *mockConn) SetWriteDeadline(time.Time) error { return nil }

// push sends a client frame to the session.
func (c *mockConn) push(frame string) {
	c.inbound <- []byte(frame)
}

// disconnect simulates the client closing the websocket.
func (c *mockConn) disconnect() {
	c.inOnce.Do(func() { close(c.inbound) })
}

// --- assistant collaborator fakes ---

type fakeTokens struct {
	byToken map[string][2]int64 // token -> {userID, numToken}
}

func (f *fakeTokens) Verify(token string) (int64, int32, error) {
	if pair, ok := f.byToken[token]; ok {
		return pair[0], int32(pair[1]), nil
	}
	return 0, 0, errors.New("bad token")
}

type fakeUsers struct {
	byID map[int64]*store.UserLite
}

func (f *fakeUsers) GetUserLite(_ context.Context, userID int64) (*store.UserLite, error) {
	return f.byID[userID], nil
}

// fakeChatStore implements assist.MessageStore with overridable behavior. A
// nil function field means "not found".
type fakeChatStore struct {
	getChatAccess     func(streamID int64, userID *int64) (*store.ChatAccess, error)
	createChatMessage func(streamID, userID int64, msg string) (*store.ChatMessage, error)
	modifyChatMessage func(id, userID int64, msg string) (*store.ChatMessage, error)
	deleteChatMessage func(id, userID int64) (*store.ChatMessage, error)
	createBlockedUser func(p store.BlockUserParams) (*store.BlockedUser, error)
	deleteBlockedUser func(p store.BlockUserParams) (*store.BlockedUser, error)
}

func (f *fakeChatStore) GetChatAccess(_ context.Context, streamID int64, userID *int64) (*store.ChatAccess, error) {
	if f.getChatAccess == nil {
		return nil, nil
	}
	return f.getChatAccess(streamID, userID)
}

func (f *fakeChatStore) GetStreamLive(_ context.Context, streamID int64) (*bool, error) {
	access, err := f.GetChatAccess(context.Background(), streamID, nil)
	if err != nil || access == nil {
		return nil, err
	}
	return &access.StreamLive, nil
}

func (f *fakeChatStore) CreateChatMessage(_ context.Context, streamID, userID int64, msg string) (*store.ChatMessage, error) {
	if f.createChatMessage == nil {
		return nil, nil
	}
	return f.createChatMessage(streamID, userID, msg)
}

func (f *fakeChatStore) ModifyChatMessage(_ context.Context, id, userID int64, msg string) (*store.ChatMessage, error) {
	if f.modifyChatMessage == nil {
		return nil, nil
	}
	return f.modifyChatMessage(id, userID, msg)
}

func (f *fakeChatStore) DeleteChatMessage(_ context.Context, id, userID int64) (*store.ChatMessage, error) {
	if f.deleteChatMessage == nil {
		return nil, nil
	}
	return f.deleteChatMessage(id, userID)
}

func (f *fakeChatStore) CreateBlockedUser(_ context.Context, p store.BlockUserParams) (*store.BlockedUser, error) {
	if f.createBlockedUser == nil {
		return nil, nil
	}
	return f.createBlockedUser(p)
}

func (f *fakeChatStore) DeleteBlockedUser(_ context.Context, p store.BlockUserParams) (*store.BlockedUser, error) {
	if f.deleteBlockedUser == nil {
		return nil, nil
	}
	return f.deleteBlockedUser(p)
}
