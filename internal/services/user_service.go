package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/internal/models"
	"github.com/charlesng35/uniauth/pkg/crypto"
	apperrors "github.com/charlesng35/uniauth/pkg/errors"
	"github.com/charlesng35/uniauth/pkg/logger"
	"github.com/charlesng35/uniauth/pkg/validator"
)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Username string
	Email    string
	Password string
	IsActive *bool
}

// UpdateUserInput enumerates mutable user attributes.
type UpdateUserInput struct {
	Username *string
	Email    *string
	IsActive *bool
}

// UserFilters captures listing filters.
type UserFilters struct {
	IsActive  *bool
	Temporary *bool
	Query     string
}

// ListUsersOptions controls pagination for user listing.
type ListUsersOptions struct {
	Page     int
	PageSize int
	Filters  UserFilters
}

// UserService manages the user lifecycle. Post-create hooks run inside the
// creating transaction; the temporary account sweep runs after it commits.
type UserService struct {
	db           *gorm.DB
	auditService *AuditService
	hooks        []UserCreatedHook
	sweeper      TemporaryAccountSweeper
	tmpPrefix    string
	log          *zap.Logger
}

// UserServiceOption customises the UserService.
type UserServiceOption func(*UserService)

// WithCreatedHooks registers hooks invoked for every newly created user, in order.
func WithCreatedHooks(hooks ...UserCreatedHook) UserServiceOption {
	return func(s *UserService) {
		for _, hook := range hooks {
			if hook != nil {
				s.hooks = append(s.hooks, hook)
			}
		}
	}
}

// WithTemporaryAccountSweeper runs the sweeper after each user creation.
func WithTemporaryAccountSweeper(sweeper TemporaryAccountSweeper) UserServiceOption {
	return func(s *UserService) {
		s.sweeper = sweeper
	}
}

// WithIdentityLinking wires the identity link service as both the post-create
// hook and the sweeper, and adopts its temporary username prefix.
func WithIdentityLinking(identity *IdentityLinkService) UserServiceOption {
	return func(s *UserService) {
		if identity == nil {
			return
		}
		s.hooks = append(s.hooks, identity)
		s.sweeper = identity
		s.tmpPrefix = identity.Config().TmpUsernamePrefix
	}
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, auditService *AuditService, opts ...UserServiceOption) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	svc := &UserService{
		db:           db,
		auditService: auditService,
		tmpPrefix:    DefaultTmpUsernamePrefix,
		log:          logger.WithModule("users"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create provisions a new user. An empty password leaves the account without a
// usable password. The returned user has its profile loaded.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	email := normaliseEmail(input.Email)
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if len(username) > 150 {
		return nil, apperrors.NewBadRequest("username must be at most 150 characters")
	}
	if email != "" {
		if err := validator.ValidateVar("email", email, "email,max=254"); err != nil {
			return nil, apperrors.NewBadRequest("email is invalid")
		}
	}

	password, err := hashOrUnusable(input.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: username,
		Email:    email,
		Password: password,
		IsActive: true,
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	if err := s.create(ctx, user); err != nil {
		return nil, err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &user.ID,
		Username: user.Username,
		Action:   "user.create",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{
			"email":     user.Email,
			"temporary": user.IsTemporary(s.tmpPrefix),
		},
	})

	return s.GetByID(ctx, user.ID)
}

// CreateTemporary provisions a placeholder account for an unfinished sign-up.
// The claimed address is attached to the profile unverified and the account
// has no email of its own until the sign-up completes.
func (s *UserService) CreateTemporary(ctx context.Context, claimedEmail string) (*models.User, error) {
	ctx = ensureContext(ctx)

	email := normaliseEmail(claimedEmail)
	if email != "" {
		if err := validator.ValidateVar("email", email, "email,max=254"); err != nil {
			return nil, apperrors.NewBadRequest("email is invalid")
		}
	}

	password, err := hashOrUnusable("")
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username: s.tmpPrefix + strings.ReplaceAll(uuid.NewString(), "-", ""),
		Password: password,
		IsActive: true,
	}

	if err := s.create(ctx, user, func(tx *gorm.DB) error {
		if email == "" {
			return nil
		}
		var profile models.UserProfile
		if err := tx.First(&profile, "user_id = ?", user.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProfileNotFound
			}
			return err
		}
		return tx.Create(&models.LinkedEmail{ProfileID: profile.ID, Address: email}).Error
	}); err != nil {
		return nil, err
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &user.ID,
		Username: user.Username,
		Action:   "user.create_temporary",
		Resource: user.ID,
		Result:   "success",
		Metadata: map[string]any{
			"claimed_email": email,
		},
	})

	return s.GetByID(ctx, user.ID)
}

// create inserts the user, runs the post-create hooks and any extra steps in one
// transaction, then sweeps stale temporary accounts.
func (s *UserService) create(ctx context.Context, user *models.User, extra ...func(tx *gorm.DB) error) error {
	var hookErr error
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}

		event := NewUserCreatedEvent(user)
		for _, hook := range s.hooks {
			if err := hook.OnUserCreated(ctx, tx, event); err != nil {
				hookErr = err
				return err
			}
		}
		for _, step := range extra {
			if err := step(tx); err != nil {
				hookErr = err
				return err
			}
		}
		return nil
	})
	if err != nil {
		if hookErr != nil {
			return fmt.Errorf("user service: post-create: %w", hookErr)
		}
		if isUniqueConstraintError(err) {
			return ErrUserExists
		}
		return fmt.Errorf("user service: create user: %w", err)
	}

	s.sweep(ctx)
	return nil
}

func (s *UserService) sweep(ctx context.Context) {
	if s.sweeper == nil {
		return
	}
	if _, err := s.sweeper.SweepTemporaryAccounts(ctx); err != nil {
		s.log.Warn("temporary account sweep failed", zap.Error(err))
	}
}

func hashOrUnusable(password string) (string, error) {
	if strings.TrimSpace(password) == "" {
		marker, err := crypto.UnusablePassword()
		if err != nil {
			return "", fmt.Errorf("user service: generate unusable password: %w", err)
		}
		return marker, nil
	}
	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return "", fmt.Errorf("user service: hash password: %w", err)
	}
	return hashed, nil
}

// GetByID loads a user by identifier including the profile.
func (s *UserService) GetByID(ctx context.Context, id string) (*models.User, error) {
	return s.getBy(ctx, "id = ?", id)
}

// GetByUsername loads a user by username including the profile.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getBy(ctx, "username = ?", strings.TrimSpace(username))
}

func (s *UserService) getBy(ctx context.Context, query string, arg any) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Profile").
		Preload("Profile.LinkedEmails").
		First(&user, query, arg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: get user: %w", err)
	}
	return &user, nil
}

// List retrieves users matching the supplied filters with pagination.
func (s *UserService) List(ctx context.Context, opts ListUsersOptions) ([]models.User, int64, error) {
	ctx = ensureContext(ctx)

	page := opts.Page
	if page <= 0 {
		page = 1
	}
	perPage := opts.PageSize
	if perPage <= 0 || perPage > 200 {
		perPage = 50
	}

	query := s.db.WithContext(ctx).Model(&models.User{})
	if opts.Filters.IsActive != nil {
		query = query.Where("is_active = ?", *opts.Filters.IsActive)
	}
	if opts.Filters.Temporary != nil {
		pattern := escapeLike(s.tmpPrefix) + "%"
		if *opts.Filters.Temporary {
			query = query.Where("username LIKE ? ESCAPE '!'", pattern)
		} else {
			query = query.Where("username NOT LIKE ? ESCAPE '!'", pattern)
		}
	}
	if q := strings.TrimSpace(opts.Filters.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		query = query.Where("LOWER(username) LIKE ? ESCAPE '!' OR LOWER(email) LIKE ? ESCAPE '!'", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: count users: %w", err)
	}

	var users []models.User
	if err := query.
		Order("date_joined DESC").
		Order("username").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Preload("Profile").
		Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("user service: list users: %w", err)
	}

	return users, total, nil
}

// Update persists mutable attributes for an existing user. Updates never run
// the post-create hooks.
func (s *UserService) Update(ctx context.Context, id string, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user service: load user: %w", err)
	}

	updates := map[string]any{}

	if input.Username != nil {
		if name := strings.TrimSpace(*input.Username); name != "" && name != user.Username {
			if len(name) > 150 {
				return nil, apperrors.NewBadRequest("username must be at most 150 characters")
			}
			updates["username"] = name
		}
	}
	if input.Email != nil {
		email := normaliseEmail(*input.Email)
		if email != "" {
			if err := validator.ValidateVar("email", email, "email,max=254"); err != nil {
				return nil, apperrors.NewBadRequest("email is invalid")
			}
		}
		if email != user.Email {
			updates["email"] = email
		}
	}
	if input.IsActive != nil && *input.IsActive != user.IsActive {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) == 0 {
		return s.GetByID(ctx, user.ID)
	}

	if err := s.db.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("user service: update user: %w", err)
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		UserID:   &user.ID,
		Username: user.Username,
		Action:   "user.update",
		Resource: user.ID,
		Result:   "success",
		Metadata: updates,
	})

	return s.GetByID(ctx, user.ID)
}

// SetPassword replaces the user's password. An empty password marks it unusable.
func (s *UserService) SetPassword(ctx context.Context, id, password string) error {
	ctx = ensureContext(ctx)

	hashed, err := hashOrUnusable(password)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password", hashed)
	if result.Error != nil {
		return fmt.Errorf("user service: set password: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Delete removes a user along with the profile, linked emails and institution accounts.
func (s *UserService) Delete(ctx context.Context, id string) error {
	ctx = ensureContext(ctx)

	var deleted int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		deleted, err = purgeUsers(tx, []string{id})
		return err
	})
	if err != nil {
		return fmt.Errorf("user service: delete user: %w", err)
	}
	if deleted == 0 {
		return ErrUserNotFound
	}

	recordAudit(s.auditService, ctx, AuditEntry{
		Action:   "user.delete",
		Resource: id,
		Result:   "success",
	})

	return nil
}
