package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dukerupert/mealplan/internal/model"
)

// ErrNotFound is returned by updates that target a missing profile.
var ErrNotFound = errors.New("profile not found")

type ProfileStore struct {
	db *sql.DB
}

func NewProfileStore(db *sql.DB) *ProfileStore {
	return &ProfileStore{db: db}
}

type rowScanner interface{ Scan(...any) error }

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func scanProfile(scanner rowScanner) (*model.Profile, error) {
	var p model.Profile
	var tier, subID sql.NullString
	var active int
	err := scanner.Scan(
		&p.UserID, &p.Name, &p.Email, &tier, &subID, &active,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if tier.Valid {
		t := model.Tier(tier.String)
		p.SubscriptionTier = &t
	}
	if subID.Valid {
		p.StripeSubscriptionID = &subID.String
	}
	p.SubscriptionActive = active != 0
	return &p, nil
}

const profileCols = `user_id, name, email, subscription_tier, stripe_subscription_id, subscription_active, created_at, updated_at`

// Create inserts a profile unless one already exists for userID. The
// boolean result is true only when a new row was written; an existing
// profile is returned unchanged.
func (s *ProfileStore) Create(ctx context.Context, userID, name, email string) (*model.Profile, bool, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (user_id, name, email) VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO NOTHING`,
		userID, name, email,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert profile: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return p, n > 0, nil
}

func (s *ProfileStore) Get(ctx context.Context, userID string) (*model.Profile, error) {
	return getProfile(ctx, s.db, `SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID)
}

func (s *ProfileStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (*model.Profile, error) {
	return getProfile(ctx, s.db, `SELECT `+profileCols+` FROM profiles WHERE stripe_subscription_id = ?`, subscriptionID)
}

func getProfile(ctx context.Context, q queryRower, query string, arg any) (*model.Profile, error) {
	p, err := scanProfile(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Update applies fn to the current profile and writes the subscription
// fields back in the same transaction. Identity fields are not writable.
// If fn returns an error nothing is written and the error is returned.
func (s *ProfileStore) Update(ctx context.Context, userID string, fn func(*model.Profile) error) (*model.Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	p, err := getProfile(ctx, tx, `SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}

	if err := fn(p); err != nil {
		return nil, err
	}

	var tier, subID sql.NullString
	if p.SubscriptionTier != nil {
		tier = sql.NullString{String: string(*p.SubscriptionTier), Valid: true}
	}
	if p.StripeSubscriptionID != nil {
		subID = sql.NullString{String: *p.StripeSubscriptionID, Valid: true}
	}
	var active int
	if p.SubscriptionActive {
		active = 1
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE profiles SET subscription_tier = ?, stripe_subscription_id = ?, subscription_active = ?,
		 updated_at = CURRENT_TIMESTAMP
		 WHERE user_id = ?`,
		tier, subID, active, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}

	updated, err := getProfile(ctx, tx, `SELECT `+profileCols+` FROM profiles WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit profile update: %w", err)
	}
	return updated, nil
}
