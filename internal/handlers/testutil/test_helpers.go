package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/uniauth/internal/api"
	"github.com/charlesng35/uniauth/internal/app"
	sharedtestutil "github.com/charlesng35/uniauth/internal/database/testutil"
	"github.com/charlesng35/uniauth/internal/services"
	"github.com/charlesng35/uniauth/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Config   *app.Config
	Services *api.Services
	Router   *gin.Engine
}

// EnvOption customises the test environment.
type EnvOption func(*envConfig)

type envConfig struct {
	cfg   *app.Config
	clock func() time.Time
}

// WithConfig replaces the default configuration.
func WithConfig(cfg *app.Config) EnvOption {
	return func(c *envConfig) {
		c.cfg = cfg
	}
}

// WithClock fixes the clock used by the temporary account sweep.
func WithClock(now func() time.Time) EnvOption {
	return func(c *envConfig) {
		c.clock = now
	}
}

// DefaultConfig mirrors the shipped defaults.
func DefaultConfig() *app.Config {
	return &app.Config{
		Server: app.ServerConfig{Port: 8000, LogLevel: "info"},
		Identity: app.IdentitySettings{
			TmpAccountRetentionDays: services.DefaultTmpAccountRetentionDays,
			TmpUsernamePrefix:       services.DefaultTmpUsernamePrefix,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
	}
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	ec := envConfig{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&ec)
	}

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithMigrations())

	var identityOpts []services.IdentityOption
	if ec.clock != nil {
		identityOpts = append(identityOpts, services.WithIdentityClock(ec.clock))
	}
	svc, err := api.NewServices(db, ec.cfg, identityOpts...)
	require.NoError(t, err)

	router, err := api.NewRouter(ec.cfg, svc)
	require.NoError(t, err)

	return &Env{
		T:        t,
		DB:       db,
		Config:   ec.cfg,
		Services: svc,
		Router:   router,
	}
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, JSON encoding the body.
func (e *Env) Request(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}

// MustRequest performs the request, asserts the status code and decodes the data payload into dest.
func MustRequest[T any](e *Env, method, path string, body any, status int, dest *T) {
	e.T.Helper()

	w := e.Request(method, path, body)
	require.Equal(e.T, status, w.Code, w.Body.String())

	resp := DecodeResponse(e.T, w)
	if dest != nil {
		DecodeInto(e.T, resp.Data, dest)
	}
}
