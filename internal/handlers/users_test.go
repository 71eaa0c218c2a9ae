package handlers_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/uniauth/internal/handlers/testutil"
	"github.com/charlesng35/uniauth/internal/models"
)

func TestUserHandler_CreateBootstrapsProfile(t *testing.T) {
	env := testutil.NewEnv(t)

	var user models.User
	testutil.MustRequest(env, http.MethodPost, "/api/users", map[string]any{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "correct-horse",
	}, http.StatusCreated, &user)

	require.Equal(t, "alice", user.Username)
	require.True(t, user.IsActive)
	require.NotNil(t, user.Profile)
	require.Len(t, user.Profile.LinkedEmails, 1)
	require.Equal(t, "alice@example.com", user.Profile.LinkedEmails[0].Address)
	require.True(t, user.Profile.LinkedEmails[0].IsVerified)

	var profile models.UserProfile
	testutil.MustRequest(env, http.MethodGet, "/api/users/"+user.ID+"/profile", nil, http.StatusOK, &profile)
	require.Equal(t, user.Profile.ID, profile.ID)
	require.Equal(t, user.ID, profile.UserID)
}

func TestUserHandler_CreateValidation(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/users", map[string]any{"email": "not-an-email"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := testutil.DecodeResponse(t, w)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, "BAD_REQUEST", resp.Error.Code)
	require.Contains(t, resp.Error.Message, "username is required")
	require.Contains(t, resp.Error.Message, "email must be a valid email address")

	w = env.Request(http.MethodPost, "/api/users", map[string]any{"username": "bob", "password": "short"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Message, "password must be at least 8 characters")
}

func TestUserHandler_CreateDuplicateUsername(t *testing.T) {
	env := testutil.NewEnv(t)

	testutil.MustRequest[models.User](env, http.MethodPost, "/api/users", map[string]any{"username": "carol"}, http.StatusCreated, nil)

	w := env.Request(http.MethodPost, "/api/users", map[string]any{"username": "carol"})
	require.Equal(t, http.StatusConflict, w.Code)
	require.Equal(t, "USER_EXISTS", testutil.DecodeResponse(t, w).Error.Code)
}

func TestUserHandler_CreateSweepsExpiredTemporaryAccounts(t *testing.T) {
	env := testutil.NewEnv(t)

	stale := &models.User{Username: "tmp-abandoned", IsActive: true, DateJoined: time.Now().UTC().AddDate(0, 0, -10)}
	recent := &models.User{Username: "tmp-pending", IsActive: true, DateJoined: time.Now().UTC()}
	require.NoError(t, env.DB.Create(stale).Error)
	require.NoError(t, env.DB.Create(recent).Error)

	testutil.MustRequest[models.User](env, http.MethodPost, "/api/users", map[string]any{"username": "dave"}, http.StatusCreated, nil)

	w := env.Request(http.MethodGet, "/api/users/"+stale.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "USER_NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)

	testutil.MustRequest[models.User](env, http.MethodGet, "/api/users/"+recent.ID, nil, http.StatusOK, nil)
}

func TestUserHandler_CreateTemporary(t *testing.T) {
	env := testutil.NewEnv(t)

	var user models.User
	testutil.MustRequest(env, http.MethodPost, "/api/users/temporary", map[string]any{"email": "pending@example.com"}, http.StatusCreated, &user)
	require.True(t, strings.HasPrefix(user.Username, "tmp-"))
	require.NotNil(t, user.Profile)

	var claimed *models.LinkedEmail
	for i := range user.Profile.LinkedEmails {
		if user.Profile.LinkedEmails[i].Address == "pending@example.com" {
			claimed = &user.Profile.LinkedEmails[i]
		}
	}
	require.NotNil(t, claimed)
	require.False(t, claimed.IsVerified)

	var bare models.User
	testutil.MustRequest(env, http.MethodPost, "/api/users/temporary", nil, http.StatusCreated, &bare)
	require.True(t, strings.HasPrefix(bare.Username, "tmp-"))
	require.NotEqual(t, user.Username, bare.Username)
}

func TestUserHandler_ListFiltersTemporary(t *testing.T) {
	env := testutil.NewEnv(t)

	testutil.MustRequest[models.User](env, http.MethodPost, "/api/users", map[string]any{"username": "erin"}, http.StatusCreated, nil)
	testutil.MustRequest[models.User](env, http.MethodPost, "/api/users/temporary", nil, http.StatusCreated, nil)

	w := env.Request(http.MethodGet, "/api/users?temporary=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := testutil.DecodeResponse(t, w)
	var temporary []models.User
	testutil.DecodeInto(t, resp.Data, &temporary)
	require.Len(t, temporary, 1)
	require.True(t, strings.HasPrefix(temporary[0].Username, "tmp-"))
	require.NotNil(t, resp.Meta)
	require.Equal(t, 1, resp.Meta.Total)

	var regular []models.User
	testutil.MustRequest(env, http.MethodGet, "/api/users?temporary=false", nil, http.StatusOK, &regular)
	require.Len(t, regular, 1)
	require.Equal(t, "erin", regular[0].Username)
}

func TestUserHandler_UpdateAndDelete(t *testing.T) {
	env := testutil.NewEnv(t)

	var user models.User
	testutil.MustRequest(env, http.MethodPost, "/api/users", map[string]any{"username": "frank", "email": "frank@example.com"}, http.StatusCreated, &user)

	var updated models.User
	testutil.MustRequest(env, http.MethodPatch, "/api/users/"+user.ID, map[string]any{"is_active": false}, http.StatusOK, &updated)
	require.False(t, updated.IsActive)
	require.Equal(t, "frank", updated.Username)

	testutil.MustRequest[map[string]bool](env, http.MethodDelete, "/api/users/"+user.ID, nil, http.StatusOK, nil)

	var remaining int64
	require.NoError(t, env.DB.Model(&models.LinkedEmail{}).Count(&remaining).Error)
	require.Zero(t, remaining)
	require.NoError(t, env.DB.Model(&models.UserProfile{}).Count(&remaining).Error)
	require.Zero(t, remaining)

	w := env.Request(http.MethodDelete, "/api/users/"+user.ID, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
