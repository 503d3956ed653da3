// Package assist implements the stateless facade the chat session calls. It
// composes token verification, user lookup and message-store operations into
// the outcomes the session relays to the client, with HTTP-flavored status
// errors where the composition fails.
package assist

import (
	"context"
	"net/http"

	"github.com/streamnest/chatd/internal/v1/status"
	"github.com/streamnest/chatd/internal/v1/store"
)

// TokenVerifier decodes a token into its (user_id, num_token) pair locally.
type TokenVerifier interface {
	Verify(token string) (userID int64, numToken int32, err error)
}

// UserLookup resolves a user id to its stored session record.
type UserLookup interface {
	GetUserLite(ctx context.Context, userID int64) (*store.UserLite, error)
}

// MessageStore is the persistence slice the session consumes.
type MessageStore interface {
	GetChatAccess(ctx context.Context, streamID int64, userID *int64) (*store.ChatAccess, error)
	GetStreamLive(ctx context.Context, streamID int64) (*bool, error)
	CreateChatMessage(ctx context.Context, streamID, userID int64, msg string) (*store.ChatMessage, error)
	ModifyChatMessage(ctx context.Context, id, userID int64, msg string) (*store.ChatMessage, error)
	DeleteChatMessage(ctx context.Context, id, userID int64) (*store.ChatMessage, error)
	CreateBlockedUser(ctx context.Context, p store.BlockUserParams) (*store.BlockedUser, error)
	DeleteBlockedUser(ctx context.Context, p store.BlockUserParams) (*store.BlockedUser, error)
}

// Assistant is cheap to copy; it holds only references.
type Assistant struct {
	store  MessageStore
	users  UserLookup
	tokens TokenVerifier
}

// New binds the assistant to its collaborators.
func New(messageStore MessageStore, users UserLookup, tokens TokenVerifier) *Assistant {
	return &Assistant{store: messageStore, users: users, tokens: tokens}
}

// DecodeAndVerifyToken locally decodes the token; no I/O.
func (a *Assistant) DecodeAndVerifyToken(token string) (int64, int32, error) {
	userID, numToken, err := a.tokens.Verify(token)
	if err != nil {
		return 0, 0, status.New(http.StatusUnauthorized, "unauthorized")
	}
	return userID, numToken, nil
}

// CheckNumTokenAndGetUser confirms the (user_id, num_token) pair against the
// stored session record and returns the user.
func (a *Assistant) CheckNumTokenAndGetUser(ctx context.Context, userID int64, numToken int32) (*store.UserLite, error) {
	user, err := a.users.GetUserLite(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, status.New(http.StatusNotAcceptable, "session_not_found")
	}
	if user.NumToken != numToken {
		return nil, status.New(http.StatusUnauthorized, "unacceptable_token_num")
	}
	if user.Nickname == "" {
		return nil, status.New(http.StatusUnauthorized, "unacceptable_token_id")
	}
	return user, nil
}

// GetChatAccess is a passthrough to the store.
func (a *Assistant) GetChatAccess(ctx context.Context, streamID int64, userID *int64) (*store.ChatAccess, error) {
	return a.store.GetChatAccess(ctx, streamID, userID)
}

// GetStreamLive is a passthrough to the store.
func (a *Assistant) GetStreamLive(ctx context.Context, streamID int64) (*bool, error) {
	return a.store.GetStreamLive(ctx, streamID)
}

// ExecuteCreateChatMessage persists a new message.
func (a *Assistant) ExecuteCreateChatMessage(ctx context.Context, streamID, userID int64, msg string) (*store.ChatMessage, error) {
	return a.store.CreateChatMessage(ctx, streamID, userID, msg)
}

// ExecuteModifyChatMessage edits (non-empty body) or soft-deletes (empty body)
// a message owned by userID.
func (a *Assistant) ExecuteModifyChatMessage(ctx context.Context, id, userID int64, msg string) (*store.ChatMessage, error) {
	return a.store.ModifyChatMessage(ctx, id, userID, msg)
}

// ExecuteDeleteChatMessage soft-deletes a message owned by userID.
func (a *Assistant) ExecuteDeleteChatMessage(ctx context.Context, id, userID int64) (*store.ChatMessage, error) {
	return a.store.DeleteChatMessage(ctx, id, userID)
}

// ExecuteBlockUser dispatches to create or delete of a blocked-user record.
func (a *Assistant) ExecuteBlockUser(ctx context.Context, isBlock bool, blockerID int64, blockedID *int64, blockedNickname string) (*store.BlockedUser, error) {
	p := store.BlockUserParams{
		UserID:          blockerID,
		BlockedID:       blockedID,
		BlockedNickname: blockedNickname,
	}
	if isBlock {
		return a.store.CreateBlockedUser(ctx, p)
	}
	return a.store.DeleteBlockedUser(ctx, p)
}
