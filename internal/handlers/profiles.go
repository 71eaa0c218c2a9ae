package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/uniauth/internal/services"
	"github.com/charlesng35/uniauth/pkg/response"
)

type ProfileHandler struct {
	service *services.ProfileService
}

type addEmailRequest struct {
	Address string `json:"address" validate:"required,email,max=254"`
}

type linkAccountRequest struct {
	Institution string `json:"institution" validate:"required,slug,max=30"`
	CASID       string `json:"cas_id" validate:"required,max=30"`
}

func NewProfileHandler(service *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// GET /api/users/:id/profile
func (h *ProfileHandler) GetForUser(c *gin.Context) {
	profile, err := h.service.GetByUserID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// POST /api/users/:id/profile
func (h *ProfileHandler) Ensure(c *gin.Context) {
	userID, ok := requireParam(c, "id")
	if !ok {
		return
	}
	profile, err := h.service.EnsureProfile(requestContext(c), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}

// DELETE /api/profiles/:id
func (h *ProfileHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteProfile(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/profiles/:id/emails
func (h *ProfileHandler) AddEmail(c *gin.Context) {
	var body addEmailRequest
	if !bindAndValidate(c, &body) {
		return
	}
	email, err := h.service.AddEmail(requestContext(c), c.Param("id"), body.Address)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, email)
}

// POST /api/emails/:id/verify
func (h *ProfileHandler) VerifyEmail(c *gin.Context) {
	email, err := h.service.VerifyEmail(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, email)
}

// DELETE /api/emails/:id
func (h *ProfileHandler) RemoveEmail(c *gin.Context) {
	if err := h.service.RemoveEmail(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/profiles/:id/accounts
func (h *ProfileHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.service.ListInstitutionAccounts(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, accounts)
}

// POST /api/profiles/:id/accounts
func (h *ProfileHandler) LinkAccount(c *gin.Context) {
	var body linkAccountRequest
	if !bindAndValidate(c, &body) {
		return
	}
	account, err := h.service.LinkInstitutionAccount(requestContext(c), c.Param("id"), body.Institution, body.CASID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, account)
}

// DELETE /api/accounts/:id
func (h *ProfileHandler) UnlinkAccount(c *gin.Context) {
	if err := h.service.UnlinkInstitutionAccount(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// GET /api/institutions/:slug/accounts/:cas_id/profile
func (h *ProfileHandler) FindByCASID(c *gin.Context) {
	profile, err := h.service.FindProfileByCASID(requestContext(c), c.Param("slug"), c.Param("cas_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, profile)
}
