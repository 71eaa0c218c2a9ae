package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/uniauth/internal/handlers/testutil"
	"github.com/charlesng35/uniauth/internal/models"
)

func createUser(t *testing.T, env *testutil.Env, username, email string) models.User {
	t.Helper()
	var user models.User
	testutil.MustRequest(env, http.MethodPost, "/api/users", map[string]any{
		"username": username,
		"email":    email,
	}, http.StatusCreated, &user)
	require.NotNil(t, user.Profile)
	return user
}

func createInstitution(t *testing.T, env *testutil.Env, name string) models.Institution {
	t.Helper()
	var institution models.Institution
	testutil.MustRequest(env, http.MethodPost, "/api/institutions", map[string]any{
		"name":           name,
		"cas_server_url": "https://cas.example.edu/cas",
	}, http.StatusCreated, &institution)
	return institution
}

func TestProfileHandler_EmailLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	user := createUser(t, env, "grace", "grace@example.com")

	var email models.LinkedEmail
	testutil.MustRequest(env, http.MethodPost, "/api/profiles/"+user.Profile.ID+"/emails",
		map[string]any{"address": "Grace.Alt@Example.com"}, http.StatusCreated, &email)
	require.False(t, email.IsVerified)
	require.Equal(t, user.Profile.ID, email.ProfileID)

	var verified models.LinkedEmail
	testutil.MustRequest(env, http.MethodPost, "/api/emails/"+email.ID+"/verify", nil, http.StatusOK, &verified)
	require.True(t, verified.IsVerified)

	testutil.MustRequest[map[string]bool](env, http.MethodDelete, "/api/emails/"+email.ID, nil, http.StatusOK, nil)

	w := env.Request(http.MethodPost, "/api/emails/"+email.ID+"/verify", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "LINKED_EMAIL_NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)
}

func TestProfileHandler_AddEmailValidation(t *testing.T) {
	env := testutil.NewEnv(t)
	user := createUser(t, env, "heidi", "heidi@example.com")

	w := env.Request(http.MethodPost, "/api/profiles/"+user.Profile.ID+"/emails", map[string]any{"address": "nope"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, testutil.DecodeResponse(t, w).Error.Message, "address must be a valid email address")

	w = env.Request(http.MethodPost, "/api/profiles/missing/emails", map[string]any{"address": "x@example.com"})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "PROFILE_NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)
}

func TestProfileHandler_InstitutionAccounts(t *testing.T) {
	env := testutil.NewEnv(t)
	user := createUser(t, env, "ivan", "ivan@example.com")
	institution := createInstitution(t, env, "Polytechnique")
	require.Equal(t, "polytechnique", institution.Slug)

	path := "/api/profiles/" + user.Profile.ID + "/accounts"
	body := map[string]any{"institution": institution.Slug, "cas_id": "ivan42"}

	var first models.InstitutionAccount
	testutil.MustRequest(env, http.MethodPost, path, body, http.StatusCreated, &first)
	require.Equal(t, institution.ID, first.InstitutionID)
	require.Equal(t, "ivan42", first.CASID)

	// Several accounts at one institution are allowed.
	var second models.InstitutionAccount
	testutil.MustRequest(env, http.MethodPost, path, map[string]any{"institution": institution.Slug, "cas_id": "ivan43"}, http.StatusCreated, &second)

	var accounts []models.InstitutionAccount
	testutil.MustRequest(env, http.MethodGet, path, nil, http.StatusOK, &accounts)
	require.Len(t, accounts, 2)

	var found models.UserProfile
	testutil.MustRequest(env, http.MethodGet, "/api/institutions/polytechnique/accounts/ivan42/profile", nil, http.StatusOK, &found)
	require.Equal(t, user.Profile.ID, found.ID)

	testutil.MustRequest[map[string]bool](env, http.MethodDelete, "/api/accounts/"+first.ID, nil, http.StatusOK, nil)

	w := env.Request(http.MethodGet, "/api/institutions/polytechnique/accounts/ivan42/profile", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = env.Request(http.MethodPost, path, map[string]any{"institution": "unknown", "cas_id": "x"})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "INSTITUTION_NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)
}

func TestProfileHandler_EnsureAndDelete(t *testing.T) {
	env := testutil.NewEnv(t)
	user := createUser(t, env, "judy", "judy@example.com")

	var ensured models.UserProfile
	testutil.MustRequest(env, http.MethodPost, "/api/users/"+user.ID+"/profile", nil, http.StatusOK, &ensured)
	require.Equal(t, user.Profile.ID, ensured.ID)

	testutil.MustRequest[map[string]bool](env, http.MethodDelete, "/api/profiles/"+user.Profile.ID, nil, http.StatusOK, nil)

	w := env.Request(http.MethodGet, "/api/users/"+user.ID+"/profile", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	var recreated models.UserProfile
	testutil.MustRequest(env, http.MethodPost, "/api/users/"+user.ID+"/profile", nil, http.StatusOK, &recreated)
	require.NotEqual(t, user.Profile.ID, recreated.ID)
	require.Len(t, recreated.LinkedEmails, 1)
	require.False(t, recreated.LinkedEmails[0].IsVerified)

	w = env.Request(http.MethodPost, "/api/users/unknown/profile", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, "USER_NOT_FOUND", testutil.DecodeResponse(t, w).Error.Code)
}
