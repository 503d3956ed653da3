package store

import "context"

// GetUserLite resolves a user id to the slice of the record the chat core
// reads: nickname, num_token, admin flag. Nil if the user does not exist.
func (s *Store) GetUserLite(ctx context.Context, userID int64) (*UserLite, error) {
	query := `SELECT id, nickname, num_token, is_admin FROM users WHERE id = $1`

	res, err := s.do(ctx, "get_user_lite", func() (any, error) {
		var u UserLite
		if err := s.db.GetContext(ctx, &u, query, userID); err != nil {
			return nil, err
		}
		return &u, nil
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res.(*UserLite), nil
}
