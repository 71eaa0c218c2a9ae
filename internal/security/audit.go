// Package security evaluates the invariants the identity store relies on:
// every user owns a profile, temporary accounts cannot log in and do not
// outlive their retention window.
package security

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/internal/models"
	"github.com/charlesng35/uniauth/internal/services"
	"github.com/charlesng35/uniauth/pkg/crypto"
)

// CheckStatus captures the outcome of an audit check.
type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

// Check contains the result of a single verification.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

// Result aggregates all checks with a per-status count.
type Result struct {
	CheckedAt time.Time      `json:"checked_at"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// maxRecommendedRetentionDays bounds how long unclaimed sign-ups may linger.
const maxRecommendedRetentionDays = 30

// AuditService evaluates identity store integrity.
type AuditService struct {
	db       *gorm.DB
	identity *services.IdentityLinkService
}

// NewAuditService constructs the audit service. Missing dependencies degrade
// the affected checks to warnings.
func NewAuditService(db *gorm.DB, identity *services.IdentityLinkService) *AuditService {
	return &AuditService{db: db, identity: identity}
}

// Run executes all checks.
func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	now := time.Now()
	if s.identity != nil {
		now = s.identity.Now()
	}

	var temporary []models.User
	var tmpErr error
	if s.identity != nil {
		temporary, tmpErr = s.identity.TemporaryAccounts(ctx)
	}

	checks := []Check{
		s.checkProfileCoverage(ctx),
		s.checkTemporaryPasswords(temporary, tmpErr),
		s.checkStaleTemporaryAccounts(temporary, tmpErr, now),
		s.checkRetentionWindow(),
	}

	summary := map[string]int{
		string(StatusPass): 0,
		string(StatusWarn): 0,
		string(StatusFail): 0,
	}
	for _, check := range checks {
		summary[string(check.Status)]++
	}

	return Result{
		CheckedAt: now.UTC(),
		Checks:    checks,
		Summary:   summary,
	}
}

func (s *AuditService) checkProfileCoverage(ctx context.Context) Check {
	const id = "profile_coverage"
	if s.db == nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     "Database unavailable, unable to verify profile coverage.",
			Remediation: "Ensure database connectivity before running the audit.",
		}
	}

	var missing int64
	err := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id NOT IN (?)", s.db.Model(&models.UserProfile{}).Select("user_id")).
		Count(&missing).Error
	if err != nil {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Could not count users without a profile: %v", err),
			Remediation: "Retry after resolving database errors.",
		}
	}

	if missing > 0 {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("%d user(s) have no profile.", missing),
			Remediation: "Run POST /api/maintenance/reconcile or enable identity.reconcile_on_startup.",
			Details:     map[string]any{"missing": missing},
		}
	}

	return Check{ID: id, Status: StatusPass, Message: "Every user owns a profile."}
}

func (s *AuditService) checkTemporaryPasswords(users []models.User, loadErr error) Check {
	const id = "temporary_account_passwords"
	if s.identity == nil || loadErr != nil {
		return unavailable(id, loadErr)
	}

	var usable int
	for _, user := range users {
		if crypto.HasUsablePassword(user.Password) {
			usable++
		}
	}

	if usable > 0 {
		return Check{
			ID:          id,
			Status:      StatusFail,
			Message:     fmt.Sprintf("%d temporary account(s) have a usable password.", usable),
			Remediation: "Temporary accounts must only be completed through the sign-up flow; reset their passwords or delete them.",
			Details:     map[string]any{"usable": usable},
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: "No temporary account can log in with a password.",
		Details: map[string]any{"temporary_accounts": len(users)},
	}
}

func (s *AuditService) checkStaleTemporaryAccounts(users []models.User, loadErr error, now time.Time) Check {
	const id = "stale_temporary_accounts"
	if s.identity == nil || loadErr != nil {
		return unavailable(id, loadErr)
	}

	cutoff := s.identity.RetentionCutoff(now)
	var stale int
	for _, user := range users {
		if user.DateJoined.Before(cutoff) {
			stale++
		}
	}

	if stale > 0 {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("%d temporary account(s) joined before %s and await the sweep.", stale, cutoff.Format(time.DateOnly)),
			Remediation: "Run POST /api/maintenance/sweep or check that the maintenance scheduler is enabled.",
			Details:     map[string]any{"stale": stale, "cutoff": cutoff},
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: "No temporary account has outlived the retention window.",
		Details: map[string]any{"cutoff": cutoff},
	}
}

func (s *AuditService) checkRetentionWindow() Check {
	const id = "temporary_account_retention"
	if s.identity == nil {
		return unavailable(id, nil)
	}

	days := s.identity.Config().TmpAccountRetentionDays
	if days > maxRecommendedRetentionDays {
		return Check{
			ID:          id,
			Status:      StatusWarn,
			Message:     fmt.Sprintf("Temporary accounts are kept for %d days.", days),
			Remediation: fmt.Sprintf("Lower identity.tmp_account_retention_days to %d or less.", maxRecommendedRetentionDays),
			Details:     map[string]any{"days": days},
		}
	}

	return Check{
		ID:      id,
		Status:  StatusPass,
		Message: fmt.Sprintf("Temporary accounts are kept for %d days.", days),
		Details: map[string]any{"days": days},
	}
}

func unavailable(id string, err error) Check {
	message := "Identity linking is not configured, unable to inspect temporary accounts."
	if err != nil {
		message = fmt.Sprintf("Could not load temporary accounts: %v", err)
	}
	return Check{
		ID:          id,
		Status:      StatusWarn,
		Message:     message,
		Remediation: "Retry after resolving the error.",
	}
}
