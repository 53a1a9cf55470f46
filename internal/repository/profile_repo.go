package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type ProfileSQLite struct {
	db *sql.DB
}

func NewProfileSQLite(db *sql.DB) *ProfileSQLite { return &ProfileSQLite{db: db} }

var _ ProfileRepo = (*ProfileSQLite)(nil)

const (
	selectMasterTokenSQL  = `SELECT master_feed_token FROM user_profiles WHERE user_id = ?`
	insertMasterTokenSQL  = `INSERT INTO user_profiles (user_id, master_feed_token) VALUES (?, ?)`
	selectUserByTokenSQL2 = `SELECT user_id FROM user_profiles WHERE master_feed_token = ?`
)

// GetMasterToken returns the user's master feed token, or "" when none
// has been minted yet.
func (r *ProfileSQLite) GetMasterToken(ctx context.Context, userID int) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx, selectMasterTokenSQL, userID).Scan(&token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("select master token for user %d: %w", userID, err)
	}
	return token, nil
}

func (r *ProfileSQLite) CreateMasterToken(ctx context.Context, userID int, token string) error {
	if _, err := r.db.ExecContext(ctx, insertMasterTokenSQL, userID, token); err != nil {
		return fmt.Errorf("insert master token for user %d: %w", userID, err)
	}
	return nil
}

// GetUserIDByMasterToken resolves a master feed token. Returns 0 when the
// token is unknown.
func (r *ProfileSQLite) GetUserIDByMasterToken(ctx context.Context, token string) (int, error) {
	var userID int
	err := r.db.QueryRowContext(ctx, selectUserByTokenSQL2, token).Scan(&userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("select user by master token: %w", err)
	}
	return userID, nil
}
