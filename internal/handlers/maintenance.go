package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/uniauth/internal/security"
	"github.com/charlesng35/uniauth/internal/services"
	"github.com/charlesng35/uniauth/pkg/errors"
	"github.com/charlesng35/uniauth/pkg/response"
)

type MaintenanceHandler struct {
	identity  *services.IdentityLinkService
	integrity *security.AuditService
}

func NewMaintenanceHandler(identity *services.IdentityLinkService, integrity *security.AuditService) *MaintenanceHandler {
	return &MaintenanceHandler{identity: identity, integrity: integrity}
}

// POST /api/maintenance/sweep
func (h *MaintenanceHandler) Sweep(c *gin.Context) {
	deleted, err := h.identity.SweepTemporaryAccounts(requestContext(c))
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	cfg := h.identity.Config()
	response.Success(c, http.StatusOK, gin.H{
		"deleted":        deleted,
		"retention_days": cfg.TmpAccountRetentionDays,
		"prefix":         cfg.TmpUsernamePrefix,
	})
}

// POST /api/maintenance/reconcile
func (h *MaintenanceHandler) Reconcile(c *gin.Context) {
	created, err := h.identity.ReconcileProfiles(requestContext(c))
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, http.StatusOK, gin.H{"created": created})
}

// GET /api/maintenance/integrity
func (h *MaintenanceHandler) Integrity(c *gin.Context) {
	response.Success(c, http.StatusOK, h.integrity.Run(requestContext(c)))
}
