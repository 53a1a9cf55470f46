package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calagent/internal/models"
)

type APIKeySQLite struct {
	db *sql.DB
}

func NewAPIKeySQLite(db *sql.DB) *APIKeySQLite { return &APIKeySQLite{db: db} }

var _ APIKeyRepo = (*APIKeySQLite)(nil)

const (
	apiKeyColumns = `id, user_id, name, key_prefix, key_hash, created_at, last_used_at, revoked_at`

	insertAPIKeySQL       = `INSERT INTO api_keys (id, user_id, name, key_prefix, key_hash, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	selectAPIKeyByHashSQL = `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = ?`
	selectAPIKeysByUser   = `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE user_id = ? ORDER BY created_at DESC`
	revokeAPIKeySQL       = `UPDATE api_keys SET revoked_at = ? WHERE user_id = ? AND id = ? AND revoked_at IS NULL`
	touchAPIKeySQL        = `UPDATE api_keys SET last_used_at = ? WHERE id = ?`
)

func (r *APIKeySQLite) Insert(ctx context.Context, k models.APIKey) error {
	_, err := r.db.ExecContext(ctx, insertAPIKeySQL,
		k.ID, k.UserID, k.Name, k.KeyPrefix, k.KeyHash, fmtTime(k.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert api key %q: %w", k.ID, err)
	}
	return nil
}

// GetByHash fetches a key by its sha256 hash. Returns (nil, nil) if not found.
func (r *APIKeySQLite) GetByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	row := r.db.QueryRowContext(ctx, selectAPIKeyByHashSQL, keyHash)
	k, err := scanAPIKey(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &k, nil
}

func (r *APIKeySQLite) ListByUser(ctx context.Context, userID int) ([]models.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, selectAPIKeysByUser, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys for user %d: %w", userID, err)
	}
	defer rows.Close()

	out := make([]models.APIKey, 0, 4)
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Revoke marks a key revoked. sql.ErrNoRows when the key does not exist,
// belongs to another user, or is already revoked.
func (r *APIKeySQLite) Revoke(ctx context.Context, userID int, keyID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, revokeAPIKeySQL, fmtTime(at), userID, keyID)
	if err != nil {
		return fmt.Errorf("revoke api key %q: %w", keyID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for api key %q: %w", keyID, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *APIKeySQLite) TouchLastUsed(ctx context.Context, keyID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, touchAPIKeySQL, fmtTime(at), keyID)
	if err != nil {
		return fmt.Errorf("touch api key %q: %w", keyID, err)
	}
	return nil
}

func scanAPIKey(row rowScanner) (models.APIKey, error) {
	var (
		k          models.APIKey
		createdAt  string
		lastUsedAt sql.NullString
		revokedAt  sql.NullString
	)
	if err := row.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyPrefix, &k.KeyHash, &createdAt, &lastUsedAt, &revokedAt); err != nil {
		return models.APIKey{}, err
	}
	created, err := parseTime(createdAt)
	if err != nil {
		return models.APIKey{}, fmt.Errorf("api key %q: bad created_at %q: %w", k.ID, createdAt, err)
	}
	k.CreatedAt = created
	if k.LastUsedAt, err = parseTimePtr(lastUsedAt); err != nil {
		return models.APIKey{}, fmt.Errorf("api key %q: bad last_used_at: %w", k.ID, err)
	}
	if k.RevokedAt, err = parseTimePtr(revokedAt); err != nil {
		return models.APIKey{}, fmt.Errorf("api key %q: bad revoked_at: %w", k.ID, err)
	}
	return k, nil
}
