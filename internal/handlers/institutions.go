package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/uniauth/internal/services"
	"github.com/charlesng35/uniauth/pkg/response"
)

type InstitutionHandler struct {
	service *services.InstitutionService
}

type createInstitutionRequest struct {
	Name         string `json:"name" validate:"required,max=30"`
	Slug         string `json:"slug" validate:"omitempty,slug,max=30"`
	CASServerURL string `json:"cas_server_url" validate:"required,http_url"`
}

type updateInstitutionRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=30"`
	CASServerURL *string `json:"cas_server_url" validate:"omitempty,http_url"`
}

func NewInstitutionHandler(service *services.InstitutionService) *InstitutionHandler {
	return &InstitutionHandler{service: service}
}

// GET /api/institutions
func (h *InstitutionHandler) List(c *gin.Context) {
	institutions, err := h.service.List(requestContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, institutions)
}

// GET /api/institutions/:slug
func (h *InstitutionHandler) Get(c *gin.Context) {
	institution, err := h.service.Get(requestContext(c), c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, institution)
}

// POST /api/institutions
func (h *InstitutionHandler) Create(c *gin.Context) {
	var body createInstitutionRequest
	if !bindAndValidate(c, &body) {
		return
	}
	institution, err := h.service.Create(requestContext(c), services.CreateInstitutionInput{
		Name:         body.Name,
		Slug:         body.Slug,
		CASServerURL: body.CASServerURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, institution)
}

// PATCH /api/institutions/:slug
func (h *InstitutionHandler) Update(c *gin.Context) {
	var body updateInstitutionRequest
	if !bindAndValidate(c, &body) {
		return
	}
	institution, err := h.service.Update(requestContext(c), c.Param("slug"), services.UpdateInstitutionInput{
		Name:         body.Name,
		CASServerURL: body.CASServerURL,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, institution)
}

// DELETE /api/institutions/:slug
func (h *InstitutionHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), c.Param("slug")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
