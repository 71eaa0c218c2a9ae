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

const (
	maxInstitutionNameLength = 30
	maxInstitutionSlugLength = 30
)

// CreateInstitutionInput describes a new institution. Slug is derived from the
// name when empty.
type CreateInstitutionInput struct {
	Name         string
	Slug         string
	CASServerURL string
}

// UpdateInstitutionInput enumerates mutable institution attributes.
type UpdateInstitutionInput struct {
	Name         *string
	CASServerURL *string
}

// InstitutionService manages institutions and their CAS server endpoints.
type InstitutionService struct {
	db           *gorm.DB
	auditService *AuditService
}

// NewInstitutionService constructs an InstitutionService.
func NewInstitutionService(db *gorm.DB, auditService *AuditService) (*InstitutionService, error) {
	if db == nil {
		return nil, errors.New("institution service: db is required")
	}
	return &InstitutionService{db: db, auditService: auditService}, nil
}

// Create registers an institution.
func (s *InstitutionService) Create(ctx context.Context, input CreateInstitutionInput) (*models.Institution, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if err := validateInstitutionName(name); err != nil {
		return nil, err
	}

	slug := strings.TrimSpace(input.Slug)
	if slug == "" {
		slug = slugify(name, maxInstitutionSlugLength)
	}
	if slug == "" || len(slug) > maxInstitutionSlugLength || !validator.IsSlug(slug) {
		return nil, apperrors.NewBadRequest("slug must be lowercase letters, digits and hyphens, at most 30 characters")
	}

	casURL, err := normaliseCASServerURL(input.CASServerURL)
	if err != nil {
		return nil, err
	}

	institution := &models.Institution{
		Name:         name,
		Slug:         slug,
		CASServerURL: casURL,
	}
	if err := s.db.WithContext(ctx).Create(institution).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrInstitutionExists
		}
		return nil, fmt.Errorf("institution service: create institution: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "institution.create",
		Resource: institution.Slug,
		Result:   "success",
		Metadata: map[string]any{
			"name":           institution.Name,
			"cas_server_url": institution.CASServerURL,
		},
	})

	return institution, nil
}

// Get loads an institution by slug.
func (s *InstitutionService) Get(ctx context.Context, slug string) (*models.Institution, error) {
	ctx = ensureContext(ctx)

	var institution models.Institution
	err := s.db.WithContext(ctx).First(&institution, "slug = ?", strings.TrimSpace(slug)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInstitutionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("institution service: get institution: %w", err)
	}
	return &institution, nil
}

// List returns every institution ordered by name.
func (s *InstitutionService) List(ctx context.Context) ([]models.Institution, error) {
	ctx = ensureContext(ctx)

	var institutions []models.Institution
	if err := s.db.WithContext(ctx).Order("name").Order("slug").Find(&institutions).Error; err != nil {
		return nil, fmt.Errorf("institution service: list institutions: %w", err)
	}
	return institutions, nil
}

// Update changes the display name or CAS server URL. The slug is immutable.
func (s *InstitutionService) Update(ctx context.Context, slug string, input UpdateInstitutionInput) (*models.Institution, error) {
	ctx = ensureContext(ctx)

	institution, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if err := validateInstitutionName(name); err != nil {
			return nil, err
		}
		if name != institution.Name {
			updates["name"] = name
		}
	}
	if input.CASServerURL != nil {
		casURL, err := normaliseCASServerURL(*input.CASServerURL)
		if err != nil {
			return nil, err
		}
		if casURL != institution.CASServerURL {
			updates["cas_server_url"] = casURL
		}
	}

	if len(updates) == 0 {
		return institution, nil
	}

	if err := s.db.WithContext(ctx).Model(institution).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("institution service: update institution: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "institution.update",
		Resource: institution.Slug,
		Result:   "success",
		Metadata: updates,
	})

	return s.Get(ctx, institution.Slug)
}

// Delete removes an institution after deleting every account linked to it.
func (s *InstitutionService) Delete(ctx context.Context, slug string) error {
	ctx = ensureContext(ctx)

	var accounts int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var institution models.Institution
		if err := tx.First(&institution, "slug = ?", strings.TrimSpace(slug)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInstitutionNotFound
			}
			return fmt.Errorf("institution service: load institution: %w", err)
		}

		result := tx.Where("institution_id = ?", institution.ID).Delete(&models.InstitutionAccount{})
		if result.Error != nil {
			return fmt.Errorf("institution service: delete accounts: %w", result.Error)
		}
		accounts = result.RowsAffected

		if err := tx.Delete(&institution).Error; err != nil {
			return fmt.Errorf("institution service: delete institution: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "institution.delete",
		Resource: slug,
		Result:   "success",
		Metadata: map[string]any{"accounts_deleted": accounts},
	})
	return nil
}

func validateInstitutionName(name string) error {
	if name == "" {
		return apperrors.NewBadRequest("institution name is required")
	}
	if len(name) > maxInstitutionNameLength {
		return apperrors.NewBadRequest(fmt.Sprintf("institution name must be at most %d characters", maxInstitutionNameLength))
	}
	return nil
}

func normaliseCASServerURL(raw string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", apperrors.NewBadRequest("cas server url is required")
	}
	if err := validator.ValidateVar("cas_server_url", value, "http_url"); err != nil {
		return "", apperrors.NewBadRequest("cas server url must be an absolute http(s) URL")
	}
	return value, nil
}
