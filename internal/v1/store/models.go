package store

import "time"

// ChatMessage is one row of user speech. The body is NULL after a soft delete.
type ChatMessage struct {
	ID          int64      `db:"id" json:"id"`
	StreamID    int64      `db:"stream_id" json:"streamId"`
	UserID      int64      `db:"user_id" json:"userId"`
	UserName    string     `db:"user_name" json:"userName"`
	Msg         *string    `db:"msg" json:"msg,omitempty"`
	DateCreated time.Time  `db:"date_created" json:"dateCreated"`
	DateChanged *time.Time `db:"date_changed" json:"dateChanged,omitempty"`
	DateRemoved *time.Time `db:"date_removed" json:"dateRemoved,omitempty"`
}

// Body returns the message text, empty after a soft delete.
func (m *ChatMessage) Body() string {
	if m.Msg == nil {
		return ""
	}
	return *m.Msg
}

// BlockedUser is a directed (blocker, blocked) pair; at most one row per pair.
type BlockedUser struct {
	ID              int64     `db:"id" json:"id"`
	UserID          int64     `db:"user_id" json:"userId"`
	BlockedID       int64     `db:"blocked_id" json:"blockedId"`
	BlockedNickname string    `db:"blocked_nickname" json:"blockedNickname"`
	BlockDate       time.Time `db:"block_date" json:"blockDate"`
}

// ChatAccess is the derived view gating joins. IsBlocked is computed against
// the requesting user, conservatively true for anonymous requesters.
type ChatAccess struct {
	StreamID    int64 `db:"stream_id"`
	StreamOwner int64 `db:"stream_owner"`
	StreamLive  bool  `db:"stream_live"`
	IsBlocked   bool  `db:"is_blocked"`
}

// UserLite is the slice of the user record the chat core reads.
type UserLite struct {
	ID       int64  `db:"id"`
	Nickname string `db:"nickname"`
	NumToken int32  `db:"num_token"`
	IsAdmin  bool   `db:"is_admin"`
}

// FilterQuery bounds a chat message listing. Date bounds are an open interval
// on date_created.
type FilterQuery struct {
	IsDesc  bool
	MinDate *time.Time
	MaxDate *time.Time
	Limit   int
}

// DefaultFilterLimit applies when FilterQuery.Limit is unset.
const DefaultFilterLimit = 20

// BlockUserParams resolves a block target by exactly one of id or nickname.
type BlockUserParams struct {
	UserID          int64
	BlockedID       *int64
	BlockedNickname string
}
