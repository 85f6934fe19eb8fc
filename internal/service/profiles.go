package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/google/uuid"

	"sparkfeed/internal/model"
	"sparkfeed/internal/repository"
)

const (
	usernameMaxLen = 32
	bioMaxLen      = 500
)

type Profiles struct {
	store       ProfileStore
	ledger      Ledger
	signupBonus int64
}

func NewProfiles(store ProfileStore, ledger Ledger, signupBonus int64) *Profiles {
	return &Profiles{store: store, ledger: ledger, signupBonus: signupBonus}
}

// EnsureProfile provisions the profile row and the signup-bonus balance on an
// account's first authenticated touch.
func (s *Profiles) EnsureProfile(ctx context.Context, accountID string) error {
	if accountID == "" {
		return ErrUnauthenticated
	}
	created, err := s.store.Ensure(ctx, accountID)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}
	slog.Info("provisioned new profile", "account_id", accountID, "signup_bonus", s.signupBonus)
	return s.ledger.InitBalance(ctx, accountID, s.signupBonus)
}

// GetProfile returns a profile; the token balance is attached only when the
// viewer is looking at their own profile.
func (s *Profiles) GetProfile(ctx context.Context, viewerID, accountID string) (*model.Profile, error) {
	profile, err := s.store.Get(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrProfileNotFound) {
			return nil, fmt.Errorf("%w: profile %s", ErrNotFound, accountID)
		}
		return nil, err
	}
	switch {
	case viewerID != "" && viewerID == accountID:
		balance, err := s.ledger.Balance(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("fetch balance: %w", err)
		}
		profile.TokenBalance = balance
	case viewerID != "":
		following, err := s.store.IsFollowing(ctx, viewerID, accountID)
		if err != nil {
			return nil, fmt.Errorf("check follow state: %w", err)
		}
		profile.IsFollowing = following
	}
	return profile, nil
}

func (s *Profiles) UpdateProfile(ctx context.Context, accountID string, update model.ProfileUpdate) (*model.Profile, error) {
	if accountID == "" {
		return nil, ErrUnauthenticated
	}
	if update.Username != nil && utf8.RuneCountInString(*update.Username) > usernameMaxLen {
		return nil, fmt.Errorf("%w: username must be at most %d characters", ErrInvalidInput, usernameMaxLen)
	}
	if update.Bio != nil && utf8.RuneCountInString(*update.Bio) > bioMaxLen {
		return nil, fmt.Errorf("%w: bio must be at most %d characters", ErrInvalidInput, bioMaxLen)
	}
	profile, err := s.store.Update(ctx, accountID, update)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUsernameTaken):
			return nil, fmt.Errorf("%w: username already taken", ErrInvalidInput)
		case errors.Is(err, repository.ErrProfileNotFound):
			return nil, fmt.Errorf("%w: profile %s", ErrNotFound, accountID)
		}
		return nil, err
	}
	return profile, nil
}

func (s *Profiles) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == "" {
		return ErrUnauthenticated
	}
	err := s.store.Follow(ctx, followerID, followingID)
	if errors.Is(err, repository.ErrSelfFollow) {
		return fmt.Errorf("%w: cannot follow yourself", ErrInvalidInput)
	}
	return err
}

func (s *Profiles) Unfollow(ctx context.Context, followerID, followingID string) error {
	if followerID == "" {
		return ErrUnauthenticated
	}
	return s.store.Unfollow(ctx, followerID, followingID)
}

func (s *Profiles) GetBalance(ctx context.Context, accountID string) (int64, error) {
	if accountID == "" {
		return 0, ErrUnauthenticated
	}
	balance, err := s.ledger.Balance(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFoundInDB) {
			return 0, fmt.Errorf("%w: account %s", ErrNotFound, accountID)
		}
		return 0, err
	}
	return balance, nil
}

// Recharge credits purchased or granted tokens. Exposed over HTTP and as a
// NATS command for the billing pipeline.
func (s *Profiles) Recharge(ctx context.Context, accountID string, amount int64) error {
	if accountID == "" {
		return ErrUnauthenticated
	}
	if amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	_, err := s.ledger.Credit(ctx, accountID, uuid.NewString(), amount, "recharge")
	if err != nil {
		if errors.Is(err, repository.ErrNotFoundInDB) {
			return fmt.Errorf("%w: account %s", ErrNotFound, accountID)
		}
		return fmt.Errorf("ledger credit: %w", err)
	}
	return nil
}
