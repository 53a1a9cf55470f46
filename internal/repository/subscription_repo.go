package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"calagent/internal/models"
)

type SubscriptionSQLite struct {
	db *sql.DB
}

func NewSubscriptionSQLite(db *sql.DB) *SubscriptionSQLite { return &SubscriptionSQLite{db: db} }

var _ SubscriptionRepo = (*SubscriptionSQLite)(nil)

const (
	subscriptionColumns = `id, subscription_key, display_name, domain, timezone, feed_token, user_id, updated_at`

	upsertSubscriptionSQL = `
		INSERT INTO subscriptions (id, subscription_key, display_name, domain, timezone, feed_token, user_id, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, subscription_key) DO UPDATE SET
			display_name=excluded.display_name,
			domain=excluded.domain,
			timezone=excluded.timezone,
			updated_at=excluded.updated_at
	`

	selectSubscriptionByIDSQL    = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = ?`
	selectSubscriptionByKeySQL   = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = ? AND subscription_key = ?`
	selectSubscriptionByTokenSQL = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE feed_token = ?`
	selectSubscriptionsByUserSQL = `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE user_id = ? ORDER BY updated_at DESC`
	deleteSubscriptionSQL        = `DELETE FROM subscriptions WHERE user_id = ? AND id = ?`
)

// normalizeDomain lowercases a caller-supplied domain tag, defaulting empty
// values to "general".
func normalizeDomain(domain string) string {
	d := strings.ToLower(strings.TrimSpace(domain))
	if d == "" {
		return "general"
	}
	return d
}

// Upsert inserts a subscription or, when the (user, key) pair already exists,
// updates its mutable fields. The stored feed token of an existing row is
// preserved; the returned record reflects what is now in the table.
func (r *SubscriptionSQLite) Upsert(ctx context.Context, s models.Subscription) (models.Subscription, error) {
	s.Domain = normalizeDomain(s.Domain)
	_, err := r.db.ExecContext(ctx, upsertSubscriptionSQL,
		s.ID, s.SubscriptionKey, s.DisplayName, s.Domain, s.Timezone, s.FeedToken, s.UserID, fmtTime(s.UpdatedAt))
	if err != nil {
		return models.Subscription{}, fmt.Errorf("upsert subscription %q: %w", s.SubscriptionKey, err)
	}

	stored, err := r.GetByKey(ctx, s.UserID, s.SubscriptionKey)
	if err != nil {
		return models.Subscription{}, err
	}
	if stored == nil {
		return models.Subscription{}, fmt.Errorf("subscription %q missing after upsert", s.SubscriptionKey)
	}
	return *stored, nil
}

func (r *SubscriptionSQLite) GetByID(ctx context.Context, id string) (*models.Subscription, error) {
	return r.getOne(ctx, selectSubscriptionByIDSQL, id)
}

func (r *SubscriptionSQLite) GetByKey(ctx context.Context, userID int, subscriptionKey string) (*models.Subscription, error) {
	return r.getOne(ctx, selectSubscriptionByKeySQL, userID, subscriptionKey)
}

func (r *SubscriptionSQLite) GetByFeedToken(ctx context.Context, feedToken string) (*models.Subscription, error) {
	return r.getOne(ctx, selectSubscriptionByTokenSQL, feedToken)
}

func (r *SubscriptionSQLite) ListByUser(ctx context.Context, userID int) ([]models.Subscription, error) {
	rows, err := r.db.QueryContext(ctx, selectSubscriptionsByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for user %d: %w", userID, err)
	}
	defer rows.Close()

	out := make([]models.Subscription, 0, 8)
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *SubscriptionSQLite) Delete(ctx context.Context, userID int, id string) error {
	res, err := r.db.ExecContext(ctx, deleteSubscriptionSQL, userID, id)
	if err != nil {
		return fmt.Errorf("delete subscription %q: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected for subscription %q: %w", id, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// getOne runs a single-row query. Returns (nil, nil) if not found.
func (r *SubscriptionSQLite) getOne(ctx context.Context, query string, args ...any) (*models.Subscription, error) {
	row := r.db.QueryRowContext(ctx, query, args...)
	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (models.Subscription, error) {
	var (
		s         models.Subscription
		domain    sql.NullString
		updatedAt string
	)
	if err := row.Scan(&s.ID, &s.SubscriptionKey, &s.DisplayName, &domain, &s.Timezone, &s.FeedToken, &s.UserID, &updatedAt); err != nil {
		return models.Subscription{}, err
	}
	s.Domain = normalizeDomain(domain.String)
	t, err := parseTime(updatedAt)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("subscription %q: bad updated_at %q: %w", s.ID, updatedAt, err)
	}
	s.UpdatedAt = t
	return s, nil
}
