package store

import (
	"context"
	"database/sql"
	"errors"
)

const blockedUserColumns = `id, user_id, blocked_id, blocked_nickname, block_date`

// GetBlockedUsers lists every record with this blocker. Order unspecified.
func (s *Store) GetBlockedUsers(ctx context.Context, userID int64) ([]BlockedUser, error) {
	query := `SELECT ` + blockedUserColumns + ` FROM blocked_users WHERE user_id = $1`

	res, err := s.do(ctx, "get_blocked_users", func() (any, error) {
		var blocked []BlockedUser
		if err := s.db.SelectContext(ctx, &blocked, query, userID); err != nil {
			return nil, err
		}
		return blocked, nil
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res.([]BlockedUser), nil
}

// CreateBlockedUser inserts a (blocker, blocked) pair, resolving the target by
// exactly one of id or nickname. Idempotent: an existing pair is returned
// unchanged. Returns nil when the target does not resolve.
func (s *Store) CreateBlockedUser(ctx context.Context, p BlockUserParams) (*BlockedUser, error) {
	res, err := s.do(ctx, "create_blocked_user", func() (any, error) {
		target, err := s.resolveBlockTarget(ctx, p)
		if err != nil {
			return nil, err
		}

		insert := `
			INSERT INTO blocked_users (user_id, blocked_id, blocked_nickname)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, blocked_id) DO NOTHING
			RETURNING ` + blockedUserColumns

		var b BlockedUser
		err = s.db.GetContext(ctx, &b, insert, p.UserID, target.ID, target.Nickname)
		if err == nil {
			return &b, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}

		// Conflict path: the pair already exists, return it unchanged.
		existing := `SELECT ` + blockedUserColumns + ` FROM blocked_users WHERE user_id = $1 AND blocked_id = $2`
		if err := s.db.GetContext(ctx, &b, existing, p.UserID, target.ID); err != nil {
			return nil, err
		}
		return &b, nil
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res.(*BlockedUser), nil
}

// DeleteBlockedUser removes a pair with the same target resolution. Returns
// the removed row, or nil if no matching row existed.
func (s *Store) DeleteBlockedUser(ctx context.Context, p BlockUserParams) (*BlockedUser, error) {
	res, err := s.do(ctx, "delete_blocked_user", func() (any, error) {
		target, err := s.resolveBlockTarget(ctx, p)
		if err != nil {
			return nil, err
		}

		query := `DELETE FROM blocked_users WHERE user_id = $1 AND blocked_id = $2 RETURNING ` + blockedUserColumns
		var b BlockedUser
		if err := s.db.GetContext(ctx, &b, query, p.UserID, target.ID); err != nil {
			return nil, err
		}
		return &b, nil
	})
	if err != nil || res == nil {
		return nil, err
	}
	return res.(*BlockedUser), nil
}

// resolveBlockTarget maps the one-of (blocked_id, blocked_nickname) pair to an
// existing user. errNotFound when neither or both are given, or the user does
// not exist.
func (s *Store) resolveBlockTarget(ctx context.Context, p BlockUserParams) (*UserLite, error) {
	hasID := p.BlockedID != nil && *p.BlockedID > 0
	hasNick := p.BlockedNickname != ""
	if hasID == hasNick {
		return nil, errNotFound
	}

	var u UserLite
	if hasID {
		err := s.db.GetContext(ctx, &u, `SELECT id, nickname, num_token, is_admin FROM users WHERE id = $1`, *p.BlockedID)
		if err != nil {
			return nil, err
		}
		return &u, nil
	}

	err := s.db.GetContext(ctx, &u, `SELECT id, nickname, num_token, is_admin FROM users WHERE nickname = $1`, p.BlockedNickname)
	if err != nil {
		return nil, err
	}
	return &u, nil
}
