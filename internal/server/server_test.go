package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quotegate/quotegate/internal/market"
	"github.com/quotegate/quotegate/internal/service"
	"github.com/quotegate/quotegate/internal/store"
)

type testEnv struct {
	t   *testing.T
	srv *Server
	st  *store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st, err := store.OpenSQLite("") // in-memory
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	verifier := service.NewVerifier(st, service.Options{}, logger)

	registry := market.NewRegistry()
	registry.Register(market.NewBinance())
	registry.Register(market.NewCoinGecko())

	cfg := DefaultConfig()
	cfg.RateLimit = 0 // not under test here

	return &testEnv{t: t, srv: New(cfg, registry, st, verifier, logger), st: st}
}

// do performs a request against the router with optional headers.
func (e *testEnv) do(method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	e.t.Helper()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func jsonBody(t *testing.T, v interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return data
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("got status %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}

// register creates an account and returns its API key and session token.
func (e *testEnv) register(username string) (apiKey, sessionToken string) {
	e.t.Helper()

	rec := e.do(http.MethodPost, "/api/v1/auth/register", jsonBody(e.t, map[string]string{
		"username": username,
		"password": "hunter2hunter2",
	}), nil)
	assertStatus(e.t, rec, http.StatusCreated)

	body := decodeJSON(e.t, rec)
	apiKey, _ = body["api_key"].(string)
	sessionToken, _ = body["session_token"].(string)
	if apiKey == "" || sessionToken == "" {
		e.t.Fatalf("register returned incomplete credentials: %v", body)
	}
	return apiKey, sessionToken
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", nil, nil)
	assertStatus(t, rec, http.StatusOK)

	rec = env.do(http.MethodGet, "/readyz", nil, nil)
	assertStatus(t, rec, http.StatusOK)
	body := decodeJSON(t, rec)
	if body["status"] != "ok" {
		t.Errorf("got status %v, want ok", body["status"])
	}
}

func TestOpenAPIDocument(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/openapi.json", nil, nil)
	assertStatus(t, rec, http.StatusOK)

	body := decodeJSON(t, rec)
	if body["openapi"] != "3.1.0" {
		t.Errorf("got openapi version %v, want 3.1.0", body["openapi"])
	}
	if _, ok := body["paths"].(map[string]interface{}); !ok {
		t.Error("document missing paths object")
	}
}

func TestRegister(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/auth/register", jsonBody(t, map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	}), nil)
	assertStatus(t, rec, http.StatusCreated)

	body := decodeJSON(t, rec)
	user, _ := body["user"].(map[string]interface{})
	if user == nil {
		t.Fatal("response missing user object")
	}
	if user["username"] != "alice" {
		t.Errorf("got username %v, want alice", user["username"])
	}
	if _, present := user["api_key_hash"]; present {
		t.Error("response leaked credential hash")
	}
	if body["api_key"] == "" || body["session_token"] == "" {
		t.Error("response missing raw credentials")
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodPost, "/api/v1/auth/register", jsonBody(t, map[string]string{
		"password": "hunter2hunter2",
	}), nil)
	assertStatus(t, rec, http.StatusBadRequest)

	rec = env.do(http.MethodPost, "/api/v1/auth/register", jsonBody(t, map[string]string{
		"username": "bob",
		"password": "short",
	}), nil)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv(t)
	env.register("carol")

	rec := env.do(http.MethodPost, "/api/v1/auth/register", jsonBody(t, map[string]string{
		"username": "carol",
		"password": "hunter2hunter2",
	}), nil)
	assertStatus(t, rec, http.StatusConflict)
}

func TestLogin(t *testing.T) {
	env := newTestEnv(t)
	env.register("dave")

	rec := env.do(http.MethodPost, "/api/v1/auth/login", jsonBody(t, map[string]string{
		"username": "dave",
		"password": "hunter2hunter2",
	}), nil)
	assertStatus(t, rec, http.StatusOK)

	body := decodeJSON(t, rec)
	if body["session_token"] == "" {
		t.Error("login response missing session token")
	}
	if body["token_type"] != "session" {
		t.Errorf("got token_type %v, want session", body["token_type"])
	}

	rec = env.do(http.MethodPost, "/api/v1/auth/login", jsonBody(t, map[string]string{
		"username": "dave",
		"password": "wrong-password",
	}), nil)
	assertStatus(t, rec, http.StatusUnauthorized)
}

func TestProtectedRouteRequiresCredential(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/markets", nil, nil)
	assertStatus(t, rec, http.StatusUnauthorized)
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Errorf("got WWW-Authenticate %q, want Bearer", rec.Header().Get("WWW-Authenticate"))
	}

	rec = env.do(http.MethodGet, "/api/v1/markets", nil, map[string]string{"X-API-Key": "qg_bogus"})
	assertStatus(t, rec, http.StatusUnauthorized)
}

func TestVerifyWithEachCredentialKind(t *testing.T) {
	env := newTestEnv(t)
	apiKey, sessionToken := env.register("erin")

	for name, headers := range map[string]map[string]string{
		"api key header": {"X-API-Key": apiKey},
		"bearer token":   {"Authorization": "Bearer " + apiKey},
		"session header": {"X-Session-Token": sessionToken},
	} {
		rec := env.do(http.MethodGet, "/api/v1/auth/verify", nil, headers)
		assertStatus(t, rec, http.StatusOK)
		body := decodeJSON(t, rec)
		if body["valid"] != true {
			t.Errorf("%s: got valid=%v", name, body["valid"])
		}
		if body["username"] != "erin" {
			t.Errorf("%s: got username %v, want erin", name, body["username"])
		}
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)
	_, sessionToken := env.register("frank")

	rec := env.do(http.MethodGet, "/api/v1/me", nil, map[string]string{"X-Session-Token": sessionToken})
	assertStatus(t, rec, http.StatusOK)

	body := decodeJSON(t, rec)
	user, _ := body["user"].(map[string]interface{})
	if user == nil || user["username"] != "frank" {
		t.Fatalf("unexpected user payload: %v", body["user"])
	}
	session, _ := body["session"].(map[string]interface{})
	if session == nil {
		t.Fatal("session-authenticated request should include session details")
	}
	if _, ok := session["remaining_seconds"]; !ok {
		t.Error("session details missing remaining_seconds")
	}
}

func TestMarketEndpoints(t *testing.T) {
	env := newTestEnv(t)
	apiKey, _ := env.register("grace")
	auth := map[string]string{"X-API-Key": apiKey}

	rec := env.do(http.MethodGet, "/api/v1/markets", nil, auth)
	assertStatus(t, rec, http.StatusOK)
	body := decodeJSON(t, rec)
	resource, _ := body["resource"].([]interface{})
	if len(resource) != 2 {
		t.Fatalf("got %d markets, want 2", len(resource))
	}

	rec = env.do(http.MethodGet, "/api/v1/markets/binance/symbols", nil, auth)
	assertStatus(t, rec, http.StatusOK)
	body = decodeJSON(t, rec)
	resource, _ = body["resource"].([]interface{})
	if len(resource) != 10 {
		t.Errorf("got %d symbols, want 10", len(resource))
	}

	rec = env.do(http.MethodGet, "/api/v1/markets/kraken/symbols", nil, auth)
	assertStatus(t, rec, http.StatusNotFound)
}

func TestCandlesEndpoint(t *testing.T) {
	env := newTestEnv(t)
	apiKey, _ := env.register("heidi")
	auth := map[string]string{"X-API-Key": apiKey}

	rec := env.do(http.MethodGet, "/api/v1/markets/binance/candles?symbol=BTCUSDT&interval=1h&limit=25", nil, auth)
	assertStatus(t, rec, http.StatusOK)
	body := decodeJSON(t, rec)
	resource, _ := body["resource"].([]interface{})
	if len(resource) != 25 {
		t.Fatalf("got %d candles, want 25", len(resource))
	}
	candle, _ := resource[0].(map[string]interface{})
	for _, field := range []string{"open_time", "open", "high", "low", "close", "volume", "close_time"} {
		if _, ok := candle[field]; !ok {
			t.Errorf("candle missing %s", field)
		}
	}

	// Missing symbol and bad interval are client errors.
	rec = env.do(http.MethodGet, "/api/v1/markets/binance/candles", nil, auth)
	assertStatus(t, rec, http.StatusBadRequest)

	rec = env.do(http.MethodGet, "/api/v1/markets/binance/candles?symbol=BTCUSDT&interval=7m", nil, auth)
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestLogoutFlow(t *testing.T) {
	env := newTestEnv(t)
	apiKey, sessionToken := env.register("ivan")

	rec := env.do(http.MethodPost, "/api/v1/auth/logout", nil, map[string]string{"X-Session-Token": sessionToken})
	assertStatus(t, rec, http.StatusOK)

	// The invalidated token no longer authenticates.
	rec = env.do(http.MethodGet, "/api/v1/auth/verify", nil, map[string]string{"X-Session-Token": sessionToken})
	assertStatus(t, rec, http.StatusUnauthorized)

	// Authenticated via API key but presenting the dead token: nothing to log out.
	rec = env.do(http.MethodPost, "/api/v1/auth/logout", nil, map[string]string{
		"X-API-Key":       apiKey,
		"X-Session-Token": sessionToken,
	})
	assertStatus(t, rec, http.StatusNotFound)
}

func TestRotateKey(t *testing.T) {
	env := newTestEnv(t)
	apiKey, _ := env.register("judy")

	rec := env.do(http.MethodPost, "/api/v1/auth/keys/rotate", nil, map[string]string{"X-API-Key": apiKey})
	assertStatus(t, rec, http.StatusOK)
	body := decodeJSON(t, rec)
	newKey, _ := body["api_key"].(string)
	if newKey == "" || newKey == apiKey {
		t.Fatalf("rotation returned bad key %q", newKey)
	}

	// Old key is dead, new key works.
	rec = env.do(http.MethodGet, "/api/v1/auth/verify", nil, map[string]string{"X-API-Key": apiKey})
	assertStatus(t, rec, http.StatusUnauthorized)

	rec = env.do(http.MethodGet, "/api/v1/auth/verify", nil, map[string]string{"X-API-Key": newKey})
	assertStatus(t, rec, http.StatusOK)
}

func TestStoreOutageReturns503(t *testing.T) {
	env := newTestEnv(t)
	apiKey, _ := env.register("kate")
	env.st.Close()

	rec := env.do(http.MethodGet, "/api/v1/markets", nil, map[string]string{"X-API-Key": apiKey})
	assertStatus(t, rec, http.StatusServiceUnavailable)

	// An outage is not a credential problem: no challenge, and the error
	// body says the backend is down.
	if rec.Header().Get("WWW-Authenticate") != "" {
		t.Error("503 response must not carry WWW-Authenticate")
	}
	body := decodeJSON(t, rec)
	detail, _ := body["error"].(map[string]interface{})
	if detail == nil || detail["code"] != float64(http.StatusServiceUnavailable) {
		t.Errorf("unexpected error payload: %v", body)
	}

	rec = env.do(http.MethodGet, "/readyz", nil, nil)
	assertStatus(t, rec, http.StatusServiceUnavailable)
}

func TestRequestIDHeader(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/healthz", nil, nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("response missing X-Request-ID header")
	}
}
