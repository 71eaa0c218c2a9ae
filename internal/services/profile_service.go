package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/internal/models"
	apperrors "github.com/charlesng35/uniauth/pkg/errors"
	"github.com/charlesng35/uniauth/pkg/validator"
)

const maxCASIDLength = 30

// ProfileService manages linked emails and institution accounts of user profiles.
type ProfileService struct {
	db           *gorm.DB
	identity     *IdentityLinkService
	auditService *AuditService
}

// NewProfileService constructs a ProfileService. identity may be nil, in which
// case EnsureProfile is unavailable.
func NewProfileService(db *gorm.DB, identity *IdentityLinkService, auditService *AuditService) (*ProfileService, error) {
	if db == nil {
		return nil, errors.New("profile service: db is required")
	}
	return &ProfileService{
		db:           db,
		identity:     identity,
		auditService: auditService,
	}, nil
}

// GetByUserID loads the profile of a user with its linked emails and accounts.
func (s *ProfileService) GetByUserID(ctx context.Context, userID string) (*models.UserProfile, error) {
	ctx = ensureContext(ctx)

	var profile models.UserProfile
	err := s.preloaded(s.db.WithContext(ctx)).First(&profile, "user_id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile service: get profile: %w", err)
	}
	return &profile, nil
}

// GetByID loads a profile by identifier.
func (s *ProfileService) GetByID(ctx context.Context, id string) (*models.UserProfile, error) {
	ctx = ensureContext(ctx)

	var profile models.UserProfile
	err := s.preloaded(s.db.WithContext(ctx)).First(&profile, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile service: get profile: %w", err)
	}
	return &profile, nil
}

func (s *ProfileService) preloaded(db *gorm.DB) *gorm.DB {
	return db.
		Preload("User").
		Preload("LinkedEmails", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at") }).
		Preload("Accounts", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at") }).
		Preload("Accounts.Institution")
}

// EnsureProfile returns the user's profile, creating it when a pre-existing
// user has none.
func (s *ProfileService) EnsureProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	if s.identity == nil {
		return nil, errors.New("profile service: identity linking is not configured")
	}
	if _, _, err := s.identity.EnsureProfile(ctx, userID); err != nil {
		return nil, err
	}
	return s.GetByUserID(ctx, userID)
}

// AddEmail attaches an unverified address to the profile.
func (s *ProfileService) AddEmail(ctx context.Context, profileID, address string) (*models.LinkedEmail, error) {
	ctx = ensureContext(ctx)

	address = normaliseEmail(address)
	if address == "" {
		return nil, apperrors.NewBadRequest("email address is required")
	}
	if err := validator.ValidateVar("address", address, "email,max=254"); err != nil {
		return nil, apperrors.NewBadRequest("email address is invalid")
	}

	profile, err := s.loadProfile(ctx, s.db, profileID)
	if err != nil {
		return nil, err
	}

	email := &models.LinkedEmail{ProfileID: profile.ID, Address: address}
	if err := s.db.WithContext(ctx).Create(email).Error; err != nil {
		return nil, fmt.Errorf("profile service: add email: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &profile.UserID,
		Action:   "email.link",
		Resource: email.ID,
		Result:   "success",
		Metadata: map[string]any{"address": address},
	})

	return email, nil
}

// VerifyEmail marks a linked email as verified.
func (s *ProfileService) VerifyEmail(ctx context.Context, emailID string) (*models.LinkedEmail, error) {
	ctx = ensureContext(ctx)

	var email models.LinkedEmail
	err := s.db.WithContext(ctx).First(&email, "id = ?", emailID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLinkedEmailNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile service: load email: %w", err)
	}

	if email.IsVerified {
		return &email, nil
	}
	if err := s.db.WithContext(ctx).Model(&email).Update("is_verified", true).Error; err != nil {
		return nil, fmt.Errorf("profile service: verify email: %w", err)
	}
	email.IsVerified = true

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "email.verify",
		Resource: email.ID,
		Result:   "success",
		Metadata: map[string]any{"address": email.Address},
	})

	return &email, nil
}

// RemoveEmail deletes a linked email.
func (s *ProfileService) RemoveEmail(ctx context.Context, emailID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Where("id = ?", emailID).Delete(&models.LinkedEmail{})
	if result.Error != nil {
		return fmt.Errorf("profile service: remove email: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLinkedEmailNotFound
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "email.unlink",
		Resource: emailID,
		Result:   "success",
	})
	return nil
}

// LinkInstitutionAccount records the CAS identifier an institution knows the
// profile by. The same profile may be linked to an institution more than once.
func (s *ProfileService) LinkInstitutionAccount(ctx context.Context, profileID, institutionSlug, casID string) (*models.InstitutionAccount, error) {
	ctx = ensureContext(ctx)

	casID = strings.TrimSpace(casID)
	if casID == "" {
		return nil, apperrors.NewBadRequest("cas id is required")
	}
	if len(casID) > maxCASIDLength {
		return nil, apperrors.NewBadRequest(fmt.Sprintf("cas id must be at most %d characters", maxCASIDLength))
	}

	var account models.InstitutionAccount
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		profile, err := s.loadProfile(ctx, tx, profileID)
		if err != nil {
			return err
		}

		var institution models.Institution
		if err := tx.First(&institution, "slug = ?", strings.TrimSpace(institutionSlug)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInstitutionNotFound
			}
			return fmt.Errorf("profile service: load institution: %w", err)
		}

		account = models.InstitutionAccount{
			ProfileID:     profile.ID,
			InstitutionID: institution.ID,
			CASID:         casID,
		}
		if err := tx.Create(&account).Error; err != nil {
			return fmt.Errorf("profile service: link account: %w", err)
		}
		account.Institution = &institution
		return nil
	})
	if err != nil {
		return nil, err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "account.link",
		Resource: account.ID,
		Result:   "success",
		Metadata: map[string]any{
			"profile_id":  account.ProfileID,
			"institution": institutionSlug,
			"cas_id":      casID,
		},
	})

	return &account, nil
}

// UnlinkInstitutionAccount removes an institution account.
func (s *ProfileService) UnlinkInstitutionAccount(ctx context.Context, accountID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Where("id = ?", accountID).Delete(&models.InstitutionAccount{})
	if result.Error != nil {
		return fmt.Errorf("profile service: unlink account: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "account.unlink",
		Resource: accountID,
		Result:   "success",
	})
	return nil
}

// ListInstitutionAccounts returns the profile's accounts with their institutions.
func (s *ProfileService) ListInstitutionAccounts(ctx context.Context, profileID string) ([]models.InstitutionAccount, error) {
	ctx = ensureContext(ctx)

	if _, err := s.loadProfile(ctx, s.db, profileID); err != nil {
		return nil, err
	}

	var accounts []models.InstitutionAccount
	if err := s.db.WithContext(ctx).
		Preload("Institution").
		Where("profile_id = ?", profileID).
		Order("created_at").
		Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("profile service: list accounts: %w", err)
	}
	return accounts, nil
}

// FindProfileByCASID resolves the profile linked to a CAS identifier at an institution.
func (s *ProfileService) FindProfileByCASID(ctx context.Context, institutionSlug, casID string) (*models.UserProfile, error) {
	ctx = ensureContext(ctx)

	var account models.InstitutionAccount
	err := s.db.WithContext(ctx).
		Joins("JOIN institutions ON institutions.id = institution_accounts.institution_id").
		Where("institutions.slug = ? AND institution_accounts.cas_id = ?", strings.TrimSpace(institutionSlug), strings.TrimSpace(casID)).
		Order("institution_accounts.created_at").
		First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile service: find account: %w", err)
	}

	return s.GetByID(ctx, account.ProfileID)
}

// DeleteProfile removes a profile with its linked emails and institution accounts.
// The user is kept.
func (s *ProfileService) DeleteProfile(ctx context.Context, profileID string) error {
	ctx = ensureContext(ctx)

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = purgeProfiles(tx, []string{profileID})
		return err
	})
	if err != nil {
		return fmt.Errorf("profile service: delete profile: %w", err)
	}
	if deleted == 0 {
		return ErrProfileNotFound
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "profile.delete",
		Resource: profileID,
		Result:   "success",
	})
	return nil
}

func (s *ProfileService) loadProfile(ctx context.Context, db *gorm.DB, profileID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	err := db.WithContext(ctx).First(&profile, "id = ?", strings.TrimSpace(profileID)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profile service: load profile: %w", err)
	}
	return &profile, nil
}
