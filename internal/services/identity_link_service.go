package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/internal/models"
	"github.com/charlesng35/uniauth/pkg/logger"
	"github.com/charlesng35/uniauth/pkg/metrics"
)

const (
	// DefaultTmpAccountRetentionDays matches the password reset window temporary
	// accounts historically shared.
	DefaultTmpAccountRetentionDays = 3
	// DefaultTmpUsernamePrefix marks placeholder accounts from unfinished sign-ups.
	DefaultTmpUsernamePrefix = "tmp-"

	dateJoinedColumn = "date_joined"
)

// IdentityConfig configures the identity linking service.
type IdentityConfig struct {
	TmpAccountRetentionDays int
	TmpUsernamePrefix       string
}

func (c IdentityConfig) withDefaults() IdentityConfig {
	if c.TmpAccountRetentionDays <= 0 {
		c.TmpAccountRetentionDays = DefaultTmpAccountRetentionDays
	}
	if strings.TrimSpace(c.TmpUsernamePrefix) == "" {
		c.TmpUsernamePrefix = DefaultTmpUsernamePrefix
	}
	return c
}

// UserCreatedEvent is the snapshot of a user record handed to post-create hooks.
// Created is false for saves that updated an existing record.
type UserCreatedEvent struct {
	UserID     string
	Username   string
	Email      string
	DateJoined time.Time
	Created    bool
}

// NewUserCreatedEvent snapshots a freshly inserted user.
func NewUserCreatedEvent(user *models.User) UserCreatedEvent {
	return UserCreatedEvent{
		UserID:     user.ID,
		Username:   user.Username,
		Email:      user.Email,
		DateJoined: user.DateJoined,
		Created:    true,
	}
}

// UserCreatedHook reacts to a new user inside the transaction that created it.
// A returned error aborts the creation.
type UserCreatedHook interface {
	OnUserCreated(ctx context.Context, tx *gorm.DB, event UserCreatedEvent) error
}

// TemporaryAccountSweeper removes abandoned temporary accounts.
type TemporaryAccountSweeper interface {
	SweepTemporaryAccounts(ctx context.Context) (int64, error)
}

// IdentityLinkService keeps every user paired with one profile, seeds verified
// emails on creation, and garbage collects stale temporary accounts.
type IdentityLinkService struct {
	db    *gorm.DB
	audit *AuditService
	cfg   IdentityConfig
	now   func() time.Time
	log   *zap.Logger
}

// IdentityOption customises the IdentityLinkService.
type IdentityOption func(*IdentityLinkService)

// WithIdentityClock overrides the clock used for the retention cutoff.
func WithIdentityClock(now func() time.Time) IdentityOption {
	return func(s *IdentityLinkService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIdentityAudit records sweeps and reconciliations in the audit log.
func WithIdentityAudit(audit *AuditService) IdentityOption {
	return func(s *IdentityLinkService) {
		s.audit = audit
	}
}

// NewIdentityLinkService constructs the service. Non-positive retention falls back to the default.
func NewIdentityLinkService(db *gorm.DB, cfg IdentityConfig, opts ...IdentityOption) (*IdentityLinkService, error) {
	if db == nil {
		return nil, errors.New("identity link service: db is required")
	}

	svc := &IdentityLinkService{
		db:  db,
		cfg: cfg.withDefaults(),
		now: time.Now,
		log: logger.WithModule("identity"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Config returns the effective configuration.
func (s *IdentityLinkService) Config() IdentityConfig {
	return s.cfg
}

// OnUserCreated bootstraps the profile and seeds the verified email for a new
// user. Update events are ignored.
func (s *IdentityLinkService) OnUserCreated(ctx context.Context, tx *gorm.DB, event UserCreatedEvent) error {
	if !event.Created {
		return nil
	}
	if tx == nil {
		tx = s.db
	}
	tx = tx.WithContext(ensureContext(ctx))

	profile, err := s.bootstrapProfile(tx, event)
	if err != nil {
		return err
	}
	metrics.ProfilesBootstrapped.WithLabelValues("create").Inc()

	return s.seedVerifiedEmail(tx, profile, event)
}

func (s *IdentityLinkService) bootstrapProfile(tx *gorm.DB, event UserCreatedEvent) (*models.UserProfile, error) {
	profile := &models.UserProfile{UserID: event.UserID}
	if err := tx.Create(profile).Error; err != nil {
		return nil, fmt.Errorf("identity link service: create profile: %w", err)
	}
	return profile, nil
}

func (s *IdentityLinkService) seedVerifiedEmail(tx *gorm.DB, profile *models.UserProfile, event UserCreatedEvent) error {
	if profile == nil || profile.ID == "" {
		return nil
	}
	address := strings.TrimSpace(event.Email)
	if address == "" {
		return nil
	}

	email := &models.LinkedEmail{
		ProfileID:  profile.ID,
		Address:    address,
		IsVerified: true,
	}
	if err := tx.Create(email).Error; err != nil {
		return fmt.Errorf("identity link service: seed verified email: %w", err)
	}
	metrics.VerifiedEmailsSeeded.Inc()
	return nil
}

// restoreProfile recreates a missing profile outside the create path.
func (s *IdentityLinkService) restoreProfile(tx *gorm.DB, user *models.User) (*models.UserProfile, error) {
	profile, err := s.bootstrapProfile(tx, UserCreatedEvent{UserID: user.ID})
	if err != nil {
		return nil, err
	}

	address := strings.TrimSpace(user.Email)
	if address == "" {
		return profile, nil
	}
	email := &models.LinkedEmail{ProfileID: profile.ID, Address: address}
	if err := tx.Create(email).Error; err != nil {
		return nil, fmt.Errorf("identity link service: attach current email: %w", err)
	}
	profile.LinkedEmails = []models.LinkedEmail{*email}
	return profile, nil
}

// RetentionCutoff returns midnight UTC of the day reached by subtracting the
// retention window from now. Temporary users who joined before it are stale.
func (s *IdentityLinkService) RetentionCutoff(now time.Time) time.Time {
	return RetentionCutoff(now, s.cfg.TmpAccountRetentionDays)
}

// RetentionCutoff floors now minus the given number of days to the start of that UTC day.
func RetentionCutoff(now time.Time, days int) time.Time {
	t := now.UTC().Add(-time.Duration(days) * 24 * time.Hour)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// TemporaryAccounts lists every user whose username carries the temporary
// prefix, including the stored password so callers can check it is unusable.
func (s *IdentityLinkService) TemporaryAccounts(ctx context.Context) ([]models.User, error) {
	return s.temporaryUsers(s.db.WithContext(ensureContext(ctx)), "id", "username", "password", "date_joined")
}

// Now reports the service clock.
func (s *IdentityLinkService) Now() time.Time {
	return s.now()
}

func (s *IdentityLinkService) temporaryUsers(db *gorm.DB, columns ...string) ([]models.User, error) {
	prefix := s.cfg.TmpUsernamePrefix

	var candidates []models.User
	if err := db.Model(&models.User{}).
		Select(columns).
		Where("username LIKE ? ESCAPE '!'", escapeLike(prefix)+"%").
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("identity link service: select temporary users: %w", err)
	}

	// LIKE is case-insensitive on some backends
	out := candidates[:0]
	for _, candidate := range candidates {
		if strings.HasPrefix(candidate.Username, prefix) {
			out = append(out, candidate)
		}
	}
	return out, nil
}

// SweepTemporaryAccounts deletes temporary users who joined before the retention
// cutoff and returns how many were removed. It is a no-op when the user table has
// no join date column. Batches that fail are skipped and picked up by a later sweep.
func (s *IdentityLinkService) SweepTemporaryAccounts(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	db := s.db.WithContext(ctx)

	if !db.Migrator().HasColumn(&models.User{}, dateJoinedColumn) {
		s.log.Debug("user store has no join date; skipping temporary account sweep")
		metrics.SweepRuns.WithLabelValues("skipped").Inc()
		return 0, nil
	}

	cutoff := s.RetentionCutoff(s.now())

	candidates, err := s.temporaryUsers(db.Where("date_joined < ?", cutoff), "id", "username")
	if err != nil {
		metrics.SweepRuns.WithLabelValues("failure").Inc()
		return 0, err
	}

	ids := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		ids = append(ids, candidate.ID)
	}

	var (
		deleted int64
		errs    error
	)
	for _, batch := range chunk(ids, purgeBatchSize) {
		var n int64
		err := db.Transaction(func(tx *gorm.DB) error {
			var err error
			n, err = purgeUsers(tx, batch)
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		deleted += n
	}

	metrics.TemporaryUsersSwept.Add(float64(deleted))
	if errs != nil {
		metrics.SweepRuns.WithLabelValues("failure").Inc()
		return deleted, fmt.Errorf("identity link service: sweep temporary users: %w", errs)
	}
	metrics.SweepRuns.WithLabelValues("success").Inc()

	if deleted > 0 {
		s.log.Info("swept temporary accounts",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff),
		)
		recordAudit(s.audit, ctx, AuditEntry{
			Action: "tmp_users.sweep",
			Result: "success",
			Metadata: map[string]any{
				"deleted": deleted,
				"cutoff":  cutoff.Format(time.RFC3339),
			},
		})
	}
	return deleted, nil
}

// EnsureProfile creates the profile of a pre-existing user that lacks one and
// reports whether a profile was created. The user's current email is attached
// unverified: only the create path vouches for an address.
func (s *IdentityLinkService) EnsureProfile(ctx context.Context, userID string) (*models.UserProfile, bool, error) {
	ctx = ensureContext(ctx)

	var (
		profile models.UserProfile
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.First(&user, "id = ?", userID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return fmt.Errorf("identity link service: load user: %w", err)
		}

		err := tx.First(&profile, "user_id = ?", user.ID).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("identity link service: load profile: %w", err)
		}

		restored, err := s.restoreProfile(tx, &user)
		if err != nil {
			return err
		}
		created = true
		profile = *restored
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		metrics.ProfilesBootstrapped.WithLabelValues("reconcile").Inc()
		recordAudit(s.audit, ctx, AuditEntry{
			UserID:   &profile.UserID,
			Action:   "profile.reconcile",
			Resource: profile.ID,
			Result:   "success",
		})
	}
	return &profile, created, nil
}

// ReconcileProfiles creates missing profiles for every user without one and
// returns how many were created. Users are reconciled independently.
func (s *IdentityLinkService) ReconcileProfiles(ctx context.Context) (int, error) {
	ctx = ensureContext(ctx)

	var orphanIDs []string
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id NOT IN (?)", s.db.Model(&models.UserProfile{}).Select("user_id")).
		Pluck("id", &orphanIDs).Error; err != nil {
		return 0, fmt.Errorf("identity link service: find users without profile: %w", err)
	}

	var (
		reconciled int
		errs       error
	)
	for _, id := range orphanIDs {
		_, created, err := s.EnsureProfile(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("user %s: %w", id, err))
			continue
		}
		if created {
			reconciled++
		}
	}

	if reconciled > 0 {
		s.log.Info("reconciled user profiles", zap.Int("created", reconciled))
	}
	return reconciled, errs
}
