package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkfeed/internal/model"
	"sparkfeed/internal/repository"
)

type fakeProfileStore struct {
	profiles map[string]*model.Profile
	follows  map[string]bool // "follower->following"
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		profiles: make(map[string]*model.Profile),
		follows:  make(map[string]bool),
	}
}

func (s *fakeProfileStore) Ensure(ctx context.Context, accountID string) (bool, error) {
	if _, ok := s.profiles[accountID]; ok {
		return false, nil
	}
	s.profiles[accountID] = &model.Profile{ID: accountID}
	return true, nil
}

func (s *fakeProfileStore) Get(ctx context.Context, accountID string) (*model.Profile, error) {
	p, ok := s.profiles[accountID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *fakeProfileStore) Update(ctx context.Context, accountID string, update model.ProfileUpdate) (*model.Profile, error) {
	p, ok := s.profiles[accountID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	if update.Username != nil {
		p.Username = *update.Username
	}
	if update.Bio != nil {
		p.Bio = *update.Bio
	}
	return s.Get(ctx, accountID)
}

func (s *fakeProfileStore) Follow(ctx context.Context, followerID, followingID string) error {
	if followerID == followingID {
		return repository.ErrSelfFollow
	}
	s.follows[followerID+"->"+followingID] = true
	return nil
}

func (s *fakeProfileStore) Unfollow(ctx context.Context, followerID, followingID string) error {
	delete(s.follows, followerID+"->"+followingID)
	return nil
}

func (s *fakeProfileStore) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	return s.follows[followerID+"->"+followingID], nil
}

func TestEnsureProfile_SignupBonusOnce(t *testing.T) {
	store := newFakeProfileStore()
	ledger := newFakeLedger(map[string]int64{})
	svc := NewProfiles(store, ledger, 100)

	require.NoError(t, svc.EnsureProfile(context.Background(), "alice"))
	assert.Equal(t, int64(100), ledger.balance("alice"))

	// Second touch must not grant another bonus.
	require.NoError(t, svc.EnsureProfile(context.Background(), "alice"))
	assert.Equal(t, int64(100), ledger.balance("alice"))
}

func TestGetProfile_OwnProfileHasBalance(t *testing.T) {
	store := newFakeProfileStore()
	ledger := newFakeLedger(map[string]int64{"alice": 42})
	svc := NewProfiles(store, ledger, 100)
	_, _ = store.Ensure(context.Background(), "alice")

	profile, err := svc.GetProfile(context.Background(), "alice", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(42), profile.TokenBalance)
}

func TestGetProfile_OtherViewerSeesFollowState(t *testing.T) {
	store := newFakeProfileStore()
	ledger := newFakeLedger(map[string]int64{"bob": 42})
	svc := NewProfiles(store, ledger, 100)
	_, _ = store.Ensure(context.Background(), "bob")
	require.NoError(t, store.Follow(context.Background(), "alice", "bob"))

	profile, err := svc.GetProfile(context.Background(), "alice", "bob")
	require.NoError(t, err)
	assert.True(t, profile.IsFollowing)
	// Balance stays private.
	assert.Zero(t, profile.TokenBalance)
}

func TestGetProfile_NotFound(t *testing.T) {
	svc := NewProfiles(newFakeProfileStore(), newFakeLedger(map[string]int64{}), 100)

	_, err := svc.GetProfile(context.Background(), "", "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateProfile_Validation(t *testing.T) {
	store := newFakeProfileStore()
	svc := NewProfiles(store, newFakeLedger(map[string]int64{}), 100)
	_, _ = store.Ensure(context.Background(), "alice")

	long := strings.Repeat("x", 33)
	_, err := svc.UpdateProfile(context.Background(), "alice", model.ProfileUpdate{Username: &long})
	require.ErrorIs(t, err, ErrInvalidInput)

	longBio := strings.Repeat("x", 501)
	_, err = svc.UpdateProfile(context.Background(), "alice", model.ProfileUpdate{Bio: &longBio})
	require.ErrorIs(t, err, ErrInvalidInput)

	name := "alice_art"
	profile, err := svc.UpdateProfile(context.Background(), "alice", model.ProfileUpdate{Username: &name})
	require.NoError(t, err)
	assert.Equal(t, "alice_art", profile.Username)
}

func TestFollow_Self(t *testing.T) {
	svc := NewProfiles(newFakeProfileStore(), newFakeLedger(map[string]int64{}), 100)

	err := svc.Follow(context.Background(), "alice", "alice")
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecharge(t *testing.T) {
	ledger := newFakeLedger(map[string]int64{"alice": 10})
	svc := NewProfiles(newFakeProfileStore(), ledger, 100)

	require.NoError(t, svc.Recharge(context.Background(), "alice", 500))
	assert.Equal(t, int64(510), ledger.balance("alice"))

	err := svc.Recharge(context.Background(), "alice", 0)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestGetBalance_UnknownAccount(t *testing.T) {
	svc := NewProfiles(newFakeProfileStore(), newFakeLedger(map[string]int64{}), 100)

	_, err := svc.GetBalance(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}
