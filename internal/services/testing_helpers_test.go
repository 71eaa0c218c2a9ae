package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/internal/database/testutil"
	"github.com/charlesng35/uniauth/internal/models"
)

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type identityFixture struct {
	db       *gorm.DB
	audit    *AuditService
	identity *IdentityLinkService
	users    *UserService
	profiles *ProfileService
	clock    *fixedClock
}

func newIdentityFixture(t *testing.T, cfg IdentityConfig, start time.Time) *identityFixture {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithMigrations())

	audit, err := NewAuditService(db)
	require.NoError(t, err)

	clock := &fixedClock{now: start}
	identity, err := NewIdentityLinkService(db, cfg, WithIdentityClock(clock.Now), WithIdentityAudit(audit))
	require.NoError(t, err)

	users, err := NewUserService(db, audit, WithIdentityLinking(identity))
	require.NoError(t, err)

	profiles, err := NewProfileService(db, identity, audit)
	require.NoError(t, err)

	return &identityFixture{
		db:       db,
		audit:    audit,
		identity: identity,
		users:    users,
		profiles: profiles,
		clock:    clock,
	}
}

// seedUser inserts a user directly, bypassing the post-create hooks.
func seedUser(t *testing.T, db *gorm.DB, username, email string, joined time.Time) *models.User {
	t.Helper()

	user := &models.User{
		Username:   username,
		Email:      email,
		IsActive:   true,
		DateJoined: joined,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func userExists(t *testing.T, db *gorm.DB, id string) bool {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", id).Count(&count).Error)
	return count > 0
}

func countRows(t *testing.T, db *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&count).Error)
	return count
}

func createInstitution(t *testing.T, db *gorm.DB, slug string) *models.Institution {
	t.Helper()

	svc, err := NewInstitutionService(db, nil)
	require.NoError(t, err)

	institution, err := svc.Create(context.Background(), CreateInstitutionInput{
		Name:         slug,
		Slug:         slug,
		CASServerURL: "https://cas." + slug + ".edu/cas/",
	})
	require.NoError(t, err)
	return institution
}
