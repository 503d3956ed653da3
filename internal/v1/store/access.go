package store

import "context"

// GetStreamLive reports whether the stream is live, nil if it does not exist.
func (s *Store) GetStreamLive(ctx context.Context, streamID int64) (*bool, error) {
	query := `SELECT live FROM streams WHERE id = $1`

	res, err := s.do(ctx, "get_stream_live", func() (any, error) {
		var live bool
		if err := s.db.GetContext(ctx, &live, query, streamID); err != nil {
			return nil, err
		}
		return &live, nil
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res.(*bool), nil
}

// GetChatAccess answers the join-gating view for a stream. userID nil means an
// anonymous requester, for whom is_blocked is conservatively true. Returns nil
// iff the stream does not exist.
func (s *Store) GetChatAccess(ctx context.Context, streamID int64, userID *int64) (*ChatAccess, error) {
	query := `
		SELECT s.id      AS stream_id,
		       s.user_id AS stream_owner,
		       s.live    AS stream_live,
		       CASE
		           WHEN $2::bigint IS NULL THEN TRUE
		           ELSE EXISTS (
		               SELECT 1 FROM blocked_users b
		               WHERE b.user_id = s.user_id AND b.blocked_id = $2
		           )
		       END AS is_blocked
		FROM streams s
		WHERE s.id = $1`

	res, err := s.do(ctx, "get_chat_access", func() (any, error) {
		var access ChatAccess
		if err := s.db.GetContext(ctx, &access, query, streamID, userID); err != nil {
			return nil, err
		}
		return &access, nil
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res.(*ChatAccess), nil
}
