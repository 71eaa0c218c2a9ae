package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/uniauth/internal/services"
	"github.com/charlesng35/uniauth/pkg/response"
)

type UserHandler struct {
	service *services.UserService
}

type createUserRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"omitempty,email,max=254"`
	Password string `json:"password" validate:"omitempty,min=8"`
	IsActive *bool  `json:"is_active"`
}

type createTemporaryUserRequest struct {
	Email string `json:"email" validate:"omitempty,email,max=254"`
}

type updateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,max=150"`
	Email    *string `json:"email" validate:"omitempty,max=254"`
	IsActive *bool   `json:"is_active"`
}

func NewUserHandler(service *services.UserService) *UserHandler {
	return &UserHandler{service: service}
}

// GET /api/users
func (h *UserHandler) List(c *gin.Context) {
	page := parseIntQuery(c, "page", 1)
	per := parseIntQuery(c, "per_page", 20)

	filters := services.UserFilters{Query: c.Query("q")}
	if raw := strings.TrimSpace(c.Query("temporary")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filters.Temporary = &v
		}
	}
	if raw := strings.TrimSpace(c.Query("active")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filters.IsActive = &v
		}
	}

	users, total, err := h.service.List(requestContext(c), services.ListUsersOptions{Page: page, PageSize: per, Filters: filters})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, users, response.NewMeta(page, per, total))
}

// GET /api/users/:id
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.GetByID(requestContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// POST /api/users
func (h *UserHandler) Create(c *gin.Context) {
	var body createUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Create(requestContext(c), services.CreateUserInput{
		Username: body.Username,
		Email:    body.Email,
		Password: body.Password,
		IsActive: body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// POST /api/users/temporary
func (h *UserHandler) CreateTemporary(c *gin.Context) {
	var body createTemporaryUserRequest
	if c.Request.ContentLength != 0 && !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.CreateTemporary(requestContext(c), body.Email)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, user)
}

// PATCH /api/users/:id
func (h *UserHandler) Update(c *gin.Context) {
	var body updateUserRequest
	if !bindAndValidate(c, &body) {
		return
	}

	user, err := h.service.Update(requestContext(c), c.Param("id"), services.UpdateUserInput{
		Username: body.Username,
		Email:    body.Email,
		IsActive: body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, user)
}

// DELETE /api/users/:id
func (h *UserHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(requestContext(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}
