package api

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/internal/app"
	"github.com/charlesng35/uniauth/internal/monitoring"
	"github.com/charlesng35/uniauth/internal/security"
	"github.com/charlesng35/uniauth/internal/services"
)

// Services bundles the service layer the router exposes.
type Services struct {
	DB           *gorm.DB
	Audit        *services.AuditService
	Identity     *services.IdentityLinkService
	Users        *services.UserService
	Profiles     *services.ProfileService
	Institutions *services.InstitutionService
	Integrity    *security.AuditService

	// Jobs collects maintenance job outcomes for the health endpoint.
	Jobs *monitoring.JobTracker
}

// NewServices wires the service layer on top of db. User creation runs the
// identity link hooks and the temporary account sweep.
func NewServices(db *gorm.DB, cfg *app.Config, opts ...services.IdentityOption) (*Services, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}

	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, err
	}

	identityOpts := append([]services.IdentityOption{services.WithIdentityAudit(audit)}, opts...)
	identity, err := services.NewIdentityLinkService(db, cfg.IdentityConfig(), identityOpts...)
	if err != nil {
		return nil, err
	}

	users, err := services.NewUserService(db, audit, services.WithIdentityLinking(identity))
	if err != nil {
		return nil, err
	}

	profiles, err := services.NewProfileService(db, identity, audit)
	if err != nil {
		return nil, err
	}

	institutions, err := services.NewInstitutionService(db, audit)
	if err != nil {
		return nil, err
	}

	return &Services{
		DB:           db,
		Audit:        audit,
		Identity:     identity,
		Users:        users,
		Profiles:     profiles,
		Institutions: institutions,
		Integrity:    security.NewAuditService(db, identity),
		Jobs:         monitoring.NewJobTracker(),
	}, nil
}
