package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/uniauth/internal/database/testutil"
	"github.com/charlesng35/uniauth/internal/models"
	apperrors "github.com/charlesng35/uniauth/pkg/errors"
)

func TestInstitutionServiceCreate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithMigrations())
	svc, err := NewInstitutionService(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	derived, err := svc.Create(ctx, CreateInstitutionInput{
		Name:         "Princeton University",
		CASServerURL: "https://fed.princeton.edu/cas/",
	})
	require.NoError(t, err)
	require.Equal(t, "princeton-university", derived.Slug)
	require.Equal(t, "princeton-university", derived.String())

	_, err = svc.Create(ctx, CreateInstitutionInput{
		Name:         "Princeton (again)",
		Slug:         "princeton-university",
		CASServerURL: "https://fed.princeton.edu/cas/",
	})
	require.ErrorIs(t, err, ErrInstitutionExists)

	cases := []CreateInstitutionInput{
		{Name: "", CASServerURL: "https://cas.example.edu"},
		{Name: strings.Repeat("n", 31), CASServerURL: "https://cas.example.edu"},
		{Name: "Bad Slug", Slug: "Bad Slug", CASServerURL: "https://cas.example.edu"},
		{Name: "No URL"},
		{Name: "FTP", CASServerURL: "ftp://cas.example.edu"},
		{Name: "Relative", CASServerURL: "/cas/login"},
		{Name: "!!!", CASServerURL: "https://cas.example.edu"},
	}
	for _, input := range cases {
		_, err := svc.Create(ctx, input)
		require.ErrorIs(t, err, apperrors.ErrBadRequest, "input %+v", input)
	}

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

func TestInstitutionServiceUpdate(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithMigrations())
	svc, err := NewInstitutionService(db, nil)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Create(ctx, CreateInstitutionInput{Name: "Yale", CASServerURL: "https://secure.its.yale.edu/cas"})
	require.NoError(t, err)

	name := "Yale University"
	url := "https://cas.yale.edu/cas/"
	updated, err := svc.Update(ctx, "yale", UpdateInstitutionInput{Name: &name, CASServerURL: &url})
	require.NoError(t, err)
	require.Equal(t, name, updated.Name)
	require.Equal(t, url, updated.CASServerURL)
	require.Equal(t, "yale", updated.Slug)

	bad := "mailto:cas@yale.edu"
	_, err = svc.Update(ctx, "yale", UpdateInstitutionInput{CASServerURL: &bad})
	require.ErrorIs(t, err, apperrors.ErrBadRequest)

	_, err = svc.Update(ctx, "missing", UpdateInstitutionInput{Name: &name})
	require.ErrorIs(t, err, ErrInstitutionNotFound)
}

func TestInstitutionServiceDeleteRemovesAccounts(t *testing.T) {
	f := newIdentityFixture(t, IdentityConfig{}, time.Now())
	ctx := context.Background()

	svc, err := NewInstitutionService(f.db, f.audit)
	require.NoError(t, err)

	user, err := f.users.Create(ctx, CreateUserInput{Username: "rupert"})
	require.NoError(t, err)
	doomed := createInstitution(t, f.db, "mit")
	kept := createInstitution(t, f.db, "cmu")

	_, err = f.profiles.LinkInstitutionAccount(ctx, user.Profile.ID, "mit", "r1")
	require.NoError(t, err)
	_, err = f.profiles.LinkInstitutionAccount(ctx, user.Profile.ID, "mit", "r2")
	require.NoError(t, err)
	_, err = f.profiles.LinkInstitutionAccount(ctx, user.Profile.ID, "cmu", "r3")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "mit"))

	require.Zero(t, countRows(t, f.db, &models.InstitutionAccount{}, "institution_id = ?", doomed.ID))
	require.Equal(t, int64(1), countRows(t, f.db, &models.InstitutionAccount{}, "institution_id = ?", kept.ID))
	require.Equal(t, int64(1), countRows(t, f.db, &models.UserProfile{}, "id = ?", user.Profile.ID))

	_, err = svc.Get(ctx, "mit")
	require.ErrorIs(t, err, ErrInstitutionNotFound)
	require.ErrorIs(t, svc.Delete(ctx, "mit"), ErrInstitutionNotFound)

	_, total, err := f.audit.List(ctx, AuditListOptions{Filters: AuditFilters{Action: "institution.delete"}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}
