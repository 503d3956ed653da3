package store

import (
	"context"
	"fmt"
	"strings"
)

const chatMessageColumns = `id, stream_id, user_id, user_name, msg, date_created, date_changed, date_removed`

// FilterChatMessages returns messages in a stream whose date_created lies
// strictly between the optional bounds, ordered by date_created (ties broken
// by id in the same direction) and truncated to the limit.
func (s *Store) FilterChatMessages(ctx context.Context, streamID int64, q FilterQuery) ([]ChatMessage, error) {
	query, args := buildFilterQuery(streamID, q)

	res, err := s.do(ctx, "filter_chat_messages", func() (any, error) {
		var messages []ChatMessage
		if err := s.db.SelectContext(ctx, &messages, query, args...); err != nil {
			return nil, err
		}
		return messages, nil
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res.([]ChatMessage), nil
}

// buildFilterQuery assembles the filter SQL. Split out for direct testing.
func buildFilterQuery(streamID int64, q FilterQuery) (string, []any) {
	var sb strings.Builder
	args := []any{streamID}

	sb.WriteString(`SELECT ` + chatMessageColumns + ` FROM chat_messages WHERE stream_id = $1`)
	if q.MinDate != nil {
		args = append(args, *q.MinDate)
		fmt.Fprintf(&sb, " AND date_created > $%d", len(args))
	}
	if q.MaxDate != nil {
		args = append(args, *q.MaxDate)
		fmt.Fprintf(&sb, " AND date_created < $%d", len(args))
	}

	dir := "ASC"
	if q.IsDesc {
		dir = "DESC"
	}
	fmt.Fprintf(&sb, " ORDER BY date_created %s, id %s", dir, dir)

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultFilterLimit
	}
	args = append(args, limit)
	fmt.Fprintf(&sb, " LIMIT $%d", len(args))

	return sb.String(), args
}

// CreateChatMessage inserts a message, denormalizing the author's nickname.
// Returns nil if the stream or user does not exist, or the body is empty.
func (s *Store) CreateChatMessage(ctx context.Context, streamID, userID int64, msg string) (*ChatMessage, error) {
	if msg == "" || streamID <= 0 || userID <= 0 {
		return nil, nil
	}

	query := `
		INSERT INTO chat_messages (stream_id, user_id, user_name, msg)
		SELECT s.id, u.id, u.nickname, $3
		FROM streams s, users u
		WHERE s.id = $1 AND u.id = $2
		RETURNING ` + chatMessageColumns

	res, err := s.do(ctx, "create_chat_message", func() (any, error) {
		var m ChatMessage
		if err := s.db.GetContext(ctx, &m, query, streamID, userID, msg); err != nil {
			return nil, err
		}
		return &m, nil
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res.(*ChatMessage), nil
}

// ModifyChatMessage edits or soft-deletes a message owned by userID. An empty
// body clears the text and stamps date_removed; a non-empty body stores the
// text verbatim and stamps date_changed. The other timestamp is untouched
// either way.
func (s *Store) ModifyChatMessage(ctx context.Context, id, userID int64, msg string) (*ChatMessage, error) {
	var query string
	var args []any
	if msg == "" {
		query = `
			UPDATE chat_messages
			SET msg = NULL, date_removed = now()
			WHERE id = $1 AND user_id = $2
			RETURNING ` + chatMessageColumns
		args = []any{id, userID}
	} else {
		query = `
			UPDATE chat_messages
			SET msg = $3, date_changed = now()
			WHERE id = $1 AND user_id = $2
			RETURNING ` + chatMessageColumns
		args = []any{id, userID, msg}
	}

	res, err := s.do(ctx, "modify_chat_message", func() (any, error) {
		var m ChatMessage
		if err := s.db.GetContext(ctx, &m, query, args...); err != nil {
			return nil, err
		}
		return &m, nil
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res.(*ChatMessage), nil
}

// DeleteChatMessage soft-deletes a message owned by userID. Prior edit and
// removal timestamps are retained; only a first delete stamps date_removed.
func (s *Store) DeleteChatMessage(ctx context.Context, id, userID int64) (*ChatMessage, error) {
	query := `
		UPDATE chat_messages
		SET msg = NULL, date_removed = COALESCE(date_removed, now())
		WHERE id = $1 AND user_id = $2
		RETURNING ` + chatMessageColumns

	res, err := s.do(ctx, "delete_chat_message", func() (any, error) {
		var m ChatMessage
		if err := s.db.GetContext(ctx, &m, query, id, userID); err != nil {
			return nil, err
		}
		return &m, nil
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res.(*ChatMessage), nil
}
