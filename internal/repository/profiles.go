package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"sparkfeed/internal/model"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrSelfFollow      = errors.New("cannot follow yourself")
	ErrUsernameTaken   = errors.New("username already taken")
)

type ProfileRepo struct {
	dbPool *pgxpool.Pool
}

func NewProfileRepo(db *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{dbPool: db}
}

// Ensure provisions a profile row for a freshly authenticated account.
// Returns true when the row was created (first touch).
func (r *ProfileRepo) Ensure(ctx context.Context, accountID string) (bool, error) {
	tag, err := r.dbPool.Exec(ctx,
		`INSERT INTO profiles (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, accountID)
	if err != nil {
		return false, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *ProfileRepo) Get(ctx context.Context, accountID string) (*model.Profile, error) {
	var p model.Profile
	err := r.dbPool.QueryRow(ctx,
		`SELECT id, COALESCE(username, ''), display_name, bio, avatar_url,
		        follower_count, following_count, created_at, updated_at
		 FROM profiles WHERE id = $1`, accountID).
		Scan(&p.ID, &p.Username, &p.DisplayName, &p.Bio, &p.AvatarURL,
			&p.FollowerCount, &p.FollowingCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// Update applies the non-nil fields and returns the fresh profile.
func (r *ProfileRepo) Update(ctx context.Context, accountID string, update model.ProfileUpdate) (*model.Profile, error) {
	sets := []string{"updated_at = now()"}
	args := []interface{}{accountID}

	addSet := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	addSet("username", update.Username)
	addSet("display_name", update.DisplayName)
	addSet("bio", update.Bio)
	addSet("avatar_url", update.AvatarURL)

	tag, err := r.dbPool.Exec(ctx,
		`UPDATE profiles SET `+strings.Join(sets, ", ")+` WHERE id = $1`, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrProfileNotFound
	}
	return r.Get(ctx, accountID)
}

// Follow records the pair and bumps both counters in one transaction.
// A duplicate follow is a no-op.
func (r *ProfileRepo) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == followingID {
		return ErrSelfFollow
	}
	tx, err := r.dbPool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin follow tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`INSERT INTO follows (follower_id, following_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		followerID, followingID)
	if err != nil {
		return fmt.Errorf("failed to insert follow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE profiles SET following_count = following_count + 1 WHERE id = $1`, followerID); err != nil {
		return fmt.Errorf("failed to update following count: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE profiles SET follower_count = follower_count + 1 WHERE id = $1`, followingID); err != nil {
		return fmt.Errorf("failed to update follower count: %w", err)
	}
	return tx.Commit(ctx)
}

func (r *ProfileRepo) Unfollow(ctx context.Context, followerID, followingID string) error {
	tx, err := r.dbPool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unfollow tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND following_id = $2`,
		followerID, followingID)
	if err != nil {
		return fmt.Errorf("failed to delete follow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE profiles SET following_count = following_count - 1 WHERE id = $1 AND following_count > 0`, followerID); err != nil {
		return fmt.Errorf("failed to update following count: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE profiles SET follower_count = follower_count - 1 WHERE id = $1 AND follower_count > 0`, followingID); err != nil {
		return fmt.Errorf("failed to update follower count: %w", err)
	}
	return tx.Commit(ctx)
}

// IsFollowing reports whether follower already follows following.
func (r *ProfileRepo) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var exists bool
	err := r.dbPool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND following_id = $2)`,
		followerID, followingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check follow: %w", err)
	}
	return exists, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
