package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/devicegate/devicegate/internal/config"
	"github.com/devicegate/devicegate/internal/metrics"
	"github.com/devicegate/devicegate/internal/middleware"
	"github.com/devicegate/devicegate/internal/services"
	"github.com/devicegate/devicegate/internal/store"
	"github.com/devicegate/devicegate/internal/token"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	router *gin.Engine
	flow   *services.FlowService
	tokens *token.Service
}

func setupTestEnv(t *testing.T) *testEnv {
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		BaseURL:                "http://localhost:8080",
		JWTSecret:              "test-secret-key",
		AccessTokenExpiration:  5 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		DeviceCodeExpiration:   15 * time.Minute,
		PollingInterval:        5,
		ResourceScopes:         []string{"mail.read", "calendars.read", "files.read"},
	}

	db, err := store.New("sqlite", ":memory:")
	require.NoError(t, err)

	tokens, err := token.NewService(cfg)
	require.NoError(t, err)

	noop := metrics.NewNoopMetrics()
	devices := services.NewDeviceService(db, cfg, noop)
	flow := services.NewFlowService(devices, tokens, noop, func(ctx context.Context) (string, error) {
		return middleware.IdentityFromContext(ctx), nil
	})

	deviceHandler := NewDeviceHandler(flow, cfg)
	tokenHandler := NewTokenHandler(flow)
	discoveryHandler := NewDiscoveryHandler(cfg)
	healthHandler := NewHealthHandler(db)

	r := gin.New()
	r.POST("/oauth/device/code", deviceHandler.DeviceCodeRequest)
	r.POST("/oauth/token", tokenHandler.Token)
	r.GET("/oauth/tokeninfo", middleware.RequireAccessToken(tokens), tokenHandler.TokenInfo)
	r.POST("/device/verify", deviceHandler.DeviceVerify)
	r.GET("/.well-known/oauth-protected-resource", discoveryHandler.ProtectedResourceMetadata)
	r.GET("/healthz", healthHandler.Health)

	return &testEnv{router: r, flow: flow, tokens: tokens}
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func registerDevice(t *testing.T, e *testEnv) map[string]any {
	w := e.postForm("/oauth/device/code", url.Values{
		"device_name": {"My Laptop"},
		"device_type": {"cli"},
		"scope":       {"mail.read"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	return decodeJSON(t, w)
}

func TestDeviceCodeRequest(t *testing.T) {
	e := setupTestEnv(t)
	body := registerDevice(t, e)

	assert.Len(t, body["device_code"], 16)
	assert.NotEmpty(t, body["device_secret"])
	assert.Len(t, body["user_code"], 7) // ABC-DEF display format
	assert.Equal(t, "http://localhost:8080/device", body["verification_uri"])
	assert.Contains(t, body["verification_uri_complete"], "?user_code=")
	assert.Equal(t, float64(900), body["expires_in"])
	assert.Equal(t, float64(5), body["interval"])
}

func TestDeviceCodeRequest_JSONBody(t *testing.T) {
	e := setupTestEnv(t)

	req := httptest.NewRequest(
		http.MethodPost,
		"/oauth/device/code",
		strings.NewReader(`{"device_name":"My Laptop","device_type":"cli"}`),
	)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.NotEmpty(t, body["device_code"])
}

func TestDeviceCodeRequest_MissingName(t *testing.T) {
	e := setupTestEnv(t)

	w := e.postForm("/oauth/device/code", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decodeJSON(t, w)["error"])
}

func TestToken_PendingThenSuccess(t *testing.T) {
	e := setupTestEnv(t)
	reg := registerDevice(t, e)
	deviceCode := reg["device_code"].(string)
	userCode := reg["user_code"].(string)

	// Poll while pending
	w := e.postForm("/oauth/token", url.Values{
		"grant_type":  {GrantTypeDeviceCode},
		"device_code": {deviceCode},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "authorization_pending", decodeJSON(t, w)["error"])

	// Authorize with an explicit user
	w = e.postForm("/device/verify", url.Values{
		"user_code": {userCode},
		"user_id":   {"user-1"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	// Poll again
	w = e.postForm("/oauth/token", url.Values{
		"grant_type":  {GrantTypeDeviceCode},
		"device_code": {deviceCode},
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
	assert.Equal(t, "Bearer", body["token_type"])
	assert.Equal(t, float64(300), body["expires_in"])
	assert.Equal(t, "mail.read", body["scope"])
}

func TestToken_InvalidDeviceCode(t *testing.T) {
	e := setupTestEnv(t)

	w := e.postForm("/oauth/token", url.Values{
		"grant_type":  {GrantTypeDeviceCode},
		"device_code": {"0123456789abcdef"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeJSON(t, w)["error"])
}

func TestToken_UnsupportedGrantType(t *testing.T) {
	e := setupTestEnv(t)

	w := e.postForm("/oauth/token", url.Values{
		"grant_type": {"client_credentials"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unsupported_grant_type", decodeJSON(t, w)["error"])

	w = e.postForm("/oauth/token", url.Values{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decodeJSON(t, w)["error"])
}

func TestToken_RefreshGrant(t *testing.T) {
	e := setupTestEnv(t)
	reg := registerDevice(t, e)

	w := e.postForm("/device/verify", url.Values{
		"user_code": {reg["user_code"].(string)},
		"user_id":   {"user-1"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.postForm("/oauth/token", url.Values{
		"grant_type":  {GrantTypeDeviceCode},
		"device_code": {reg["device_code"].(string)},
	})
	require.Equal(t, http.StatusOK, w.Code)
	pair := decodeJSON(t, w)

	w = e.postForm("/oauth/token", url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"refresh_token": {pair["refresh_token"].(string)},
	})
	require.Equal(t, http.StatusOK, w.Code)
	refreshed := decodeJSON(t, w)
	assert.NotEmpty(t, refreshed["access_token"])
	assert.NotEmpty(t, refreshed["refresh_token"])
}

func TestToken_RefreshGrant_Invalid(t *testing.T) {
	e := setupTestEnv(t)

	w := e.postForm("/oauth/token", url.Values{
		"grant_type":    {GrantTypeRefreshToken},
		"refresh_token": {"garbage"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_grant", decodeJSON(t, w)["error"])
}

func TestDeviceVerify_Errors(t *testing.T) {
	e := setupTestEnv(t)
	reg := registerDevice(t, e)
	userCode := reg["user_code"].(string)

	// Missing code
	w := e.postForm("/device/verify", url.Values{"user_id": {"user-1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown code
	w = e.postForm("/device/verify", url.Values{
		"user_code": {"ZZZ-ZZZ"},
		"user_id":   {"user-1"},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// No session and no explicit user
	w = e.postForm("/device/verify", url.Values{"user_code": {userCode}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Success, then reuse
	w = e.postForm("/device/verify", url.Values{
		"user_code": {userCode},
		"user_id":   {"user-1"},
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.postForm("/device/verify", url.Values{
		"user_code": {userCode},
		"user_id":   {"user-2"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "already_authorized", decodeJSON(t, w)["error"])
}

func TestTokenInfo(t *testing.T) {
	e := setupTestEnv(t)

	access, err := e.tokens.MintAccess("device-1", "user-1", token.Metadata{"scope": "mail.read"})
	require.NoError(t, err)

	w := e.get("/oauth/tokeninfo", "Bearer "+access)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, true, body["active"])
	assert.Equal(t, "device-1", body["device_id"])
	assert.Equal(t, "user-1", body["user_id"])
	assert.Equal(t, "access", body["token_type"])
	assert.Equal(t, "mail.read", body["scope"])
}

func TestTokenInfo_RejectsMissingOrBadToken(t *testing.T) {
	e := setupTestEnv(t)

	w := e.get("/oauth/tokeninfo", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, `Bearer realm="devicegate"`, w.Header().Get("WWW-Authenticate"))

	w = e.get("/oauth/tokeninfo", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Refresh tokens are not accepted as bearer credentials
	refresh, err := e.tokens.MintRefresh("device-1", nil)
	require.NoError(t, err)
	w = e.get("/oauth/tokeninfo", "Bearer "+refresh)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestProtectedResourceMetadata(t *testing.T) {
	e := setupTestEnv(t)

	w := e.get("/.well-known/oauth-protected-resource", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeJSON(t, w)
	assert.Equal(t, "http://localhost:8080", body["resource"])
	assert.Equal(t, []any{"http://localhost:8080"}, body["authorization_servers"])
	assert.Equal(t, []any{"mail.read", "calendars.read", "files.read"}, body["scopes_supported"])
	assert.Equal(t, []any{"header"}, body["bearer_methods_supported"])
}

func TestHealthz(t *testing.T) {
	e := setupTestEnv(t)

	w := e.get("/healthz", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decodeJSON(t, w)["status"])
}
