package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/uniauth/internal/models"
	"github.com/charlesng35/uniauth/pkg/crypto"
	apperrors "github.com/charlesng35/uniauth/pkg/errors"
)

func TestUserServiceCreateValidation(t *testing.T) {
	f := newIdentityFixture(t, IdentityConfig{}, time.Now())
	ctx := context.Background()

	_, err := f.users.Create(ctx, CreateUserInput{Username: "  "})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.users.Create(ctx, CreateUserInput{Username: strings.Repeat("a", 151)})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.users.Create(ctx, CreateUserInput{Username: "bob", Email: "not-an-email"})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = f.users.Create(ctx, CreateUserInput{Username: "bob"})
	require.NoError(t, err)

	_, err = f.users.Create(ctx, CreateUserInput{Username: "bob"})
	require.ErrorIs(t, err, ErrUserExists)
	require.Equal(t, int64(1), countRows(t, f.db, &models.UserProfile{}, "1 = 1"))
}

func TestUserServiceCreatePasswords(t *testing.T) {
	f := newIdentityFixture(t, IdentityConfig{}, time.Now())
	ctx := context.Background()

	withPassword, err := f.users.Create(ctx, CreateUserInput{Username: "carol", Password: "secret123!"})
	require.NoError(t, err)
	require.True(t, crypto.VerifyPassword(withPassword.Password, "secret123!"))

	withoutPassword, err := f.users.Create(ctx, CreateUserInput{Username: "dave"})
	require.NoError(t, err)
	require.False(t, crypto.HasUsablePassword(withoutPassword.Password))

	require.NoError(t, f.users.SetPassword(ctx, withoutPassword.ID, "n3w-secret"))
	reloaded, err := f.users.GetByUsername(ctx, "dave")
	require.NoError(t, err)
	require.True(t, crypto.VerifyPassword(reloaded.Password, "n3w-secret"))

	require.ErrorIs(t, f.users.SetPassword(ctx, "missing", "x"), ErrUserNotFound)
}

type failingSweeper struct {
	calls int
}

func (s *failingSweeper) SweepTemporaryAccounts(context.Context) (int64, error) {
	s.calls++
	return 0, errors.New("database is locked")
}

func TestUserServiceCreateSurvivesSweepFailure(t *testing.T) {
	f := newIdentityFixture(t, IdentityConfig{}, time.Now())
	sweeper := &failingSweeper{}

	users, err := NewUserService(f.db, f.audit,
		WithCreatedHooks(f.identity),
		WithTemporaryAccountSweeper(sweeper),
	)
	require.NoError(t, err)

	user, err := users.Create(context.Background(), CreateUserInput{Username: "dave", Email: "dave@example.com"})
	require.NoError(t, err)
	require.Equal(t, 1, sweeper.calls)
	require.True(t, userExists(t, f.db, user.ID))

	require.NotNil(t, user.Profile)
	require.Len(t, user.Profile.LinkedEmails, 1)
	require.Equal(t, "dave@example.com", user.Profile.LinkedEmails[0].Address)
	require.True(t, user.Profile.LinkedEmails[0].IsVerified)
}

func TestUserServiceCreateTemporary(t *testing.T) {
	f := newIdentityFixture(t, IdentityConfig{}, time.Now())
	ctx := context.Background()

	user, err := f.users.CreateTemporary(ctx, "Pending@Example.com")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(user.Username, DefaultTmpUsernamePrefix))
	require.Empty(t, user.Email)
	require.False(t, crypto.HasUsablePassword(user.Password))

	require.NotNil(t, user.Profile)
	require.Len(t, user.Profile.LinkedEmails, 1)
	require.Equal(t, "Pending@example.com", user.Profile.LinkedEmails[0].Address)
	require.False(t, user.Profile.LinkedEmails[0].IsVerified)

	_, err = f.users.CreateTemporary(ctx, "nope")
	require.ErrorIs(t, err, apperrors.ErrBadRequest)
}

func TestUserServiceUpdateDoesNotBootstrap(t *testing.T) {
	f := newIdentityFixture(t, IdentityConfig{}, time.Now())
	ctx := context.Background()

	user, err := f.users.Create(ctx, CreateUserInput{Username: "erin", Email: "erin@example.com"})
	require.NoError(t, err)
	require.NoError(t, f.profiles.DeleteProfile(ctx, user.Profile.ID))

	newEmail := "erin@new.example.com"
	inactive := false
	updated, err := f.users.Update(ctx, user.ID, UpdateUserInput{Email: &newEmail, IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, newEmail, updated.Email)
	require.False(t, updated.IsActive)
	require.Nil(t, updated.Profile)
	require.Zero(t, countRows(t, f.db, &models.LinkedEmail{}, "address = ?", newEmail))

	_, err = f.users.Update(ctx, "missing", UpdateUserInput{})
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceUpdateRejectsDuplicateUsername(t *testing.T) {
	f := newIdentityFixture(t, IdentityConfig{}, time.Now())
	ctx := context.Background()

	_, err := f.users.Create(ctx, CreateUserInput{Username: "frank"})
	require.NoError(t, err)
	grace, err := f.users.Create(ctx, CreateUserInput{Username: "grace"})
	require.NoError(t, err)

	taken := "frank"
	_, err = f.users.Update(ctx, grace.ID, UpdateUserInput{Username: &taken})
	require.ErrorIs(t, err, ErrUserExists)
}

func TestUserServiceList(t *testing.T) {
	f := newIdentityFixture(t, IdentityConfig{}, time.Now())
	ctx := context.Background()

	_, err := f.users.Create(ctx, CreateUserInput{Username: "heidi", Email: "heidi@example.com"})
	require.NoError(t, err)
	_, err = f.users.Create(ctx, CreateUserInput{Username: "ivan"})
	require.NoError(t, err)
	_, err = f.users.CreateTemporary(ctx, "")
	require.NoError(t, err)

	users, total, err := f.users.List(ctx, ListUsersOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, users, 3)

	temporary := true
	users, total, err = f.users.List(ctx, ListUsersOptions{Filters: UserFilters{Temporary: &temporary}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.True(t, users[0].IsTemporary(DefaultTmpUsernamePrefix))

	users, total, err = f.users.List(ctx, ListUsersOptions{Filters: UserFilters{Query: "HEIDI"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "heidi", users[0].Username)

	users, total, err = f.users.List(ctx, ListUsersOptions{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, users, 1)
}

func TestUserServiceDeleteRemovesProfileChain(t *testing.T) {
	f := newIdentityFixture(t, IdentityConfig{}, time.Now())
	ctx := context.Background()

	user, err := f.users.Create(ctx, CreateUserInput{Username: "judy", Email: "judy@example.com"})
	require.NoError(t, err)
	institution := createInstitution(t, f.db, "yale")
	_, err = f.profiles.LinkInstitutionAccount(ctx, user.Profile.ID, institution.Slug, "jj42")
	require.NoError(t, err)

	require.NoError(t, f.users.Delete(ctx, user.ID))

	require.False(t, userExists(t, f.db, user.ID))
	require.Zero(t, countRows(t, f.db, &models.UserProfile{}, "user_id = ?", user.ID))
	require.Zero(t, countRows(t, f.db, &models.LinkedEmail{}, "profile_id = ?", user.Profile.ID))
	require.Zero(t, countRows(t, f.db, &models.InstitutionAccount{}, "profile_id = ?", user.Profile.ID))

	require.ErrorIs(t, f.users.Delete(ctx, user.ID), ErrUserNotFound)

	_, err = f.users.GetByID(ctx, user.ID)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserServiceAuditsCreation(t *testing.T) {
	f := newIdentityFixture(t, IdentityConfig{}, time.Now())
	ctx := context.Background()

	user, err := f.users.Create(ctx, CreateUserInput{Username: "mallory"})
	require.NoError(t, err)

	logs, total, err := f.audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: "user.create"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, user.ID, logs[0].Resource)
	require.NotNil(t, logs[0].UserID)
	require.Equal(t, user.ID, *logs[0].UserID)
}
