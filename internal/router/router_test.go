package router_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/FACorreiaa/go-users-api/config"
	"github.com/FACorreiaa/go-users-api/internal/api/auth"
	"github.com/FACorreiaa/go-users-api/internal/api/user"
	"github.com/FACorreiaa/go-users-api/internal/container"
	"github.com/FACorreiaa/go-users-api/internal/router"
	"github.com/FACorreiaa/go-users-api/internal/types"
)

// memoryUserRepo is an in-process user store with the same uniqueness
// guarantee the users_email_key constraint gives in Postgres.
type memoryUserRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]types.User
}

var _ user.UserRepo = (*memoryUserRepo)(nil)

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: make(map[int64]types.User)}
}

func (m *memoryUserRepo) ListUsers(_ context.Context) ([]types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := make([]types.User, 0, len(m.users))
	for _, u := range m.users {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (m *memoryUserRepo) GetUserByID(_ context.Context, userID int64) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &u, nil
}

func (m *memoryUserRepo) GetUserByEmail(_ context.Context, email string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, types.ErrNotFound
}

func (m *memoryUserRepo) CreateUser(_ context.Context, params types.CreateUserParams) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == params.Email {
			return nil, types.ErrDuplicateEmail
		}
	}
	m.nextID++
	u := types.User{
		ID:           m.nextID,
		Name:         params.Name,
		Email:        params.Email,
		PhoneNumber:  params.PhoneNumber,
		PasswordHash: params.PasswordHash,
		Status:       params.Status,
		CreatedAt:    params.CreatedAt,
	}
	m.users[u.ID] = u
	return &u, nil
}

func (m *memoryUserRepo) UpdateUser(_ context.Context, userID int64, params types.UpdateUserParams) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, types.ErrNotFound
	}
	for id, other := range m.users {
		if id != userID && other.Email == params.Email {
			return nil, types.ErrDuplicateEmail
		}
	}
	updatedAt := params.UpdatedAt
	u.Name, u.Email, u.PhoneNumber, u.Status, u.UpdatedAt = params.Name, params.Email, params.PhoneNumber, params.Status, &updatedAt
	m.users[userID] = u
	return &u, nil
}

func (m *memoryUserRepo) DeleteUser(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return types.ErrNotFound
	}
	delete(m.users, userID)
	return nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   json.RawMessage `json:"error"`
}

type testAPI struct {
	t       *testing.T
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	cfg := &config.Config{
		JWT: config.JWTConfig{
			SecretKey: "router-test-secret-key-of-32-bytes!!",
			Issuer:    "users-api",
			Audience:  "users-api-clients",
			TTL:       time.Hour,
		},
		Auth:   config.AuthConfig{BcryptCost: bcrypt.MinCost},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		Server: config.ServerConfig{Timeout: 5 * time.Second},
	}
	c := container.New(cfg, slog.Default(), newMemoryUserRepo())
	return &testAPI{t: t, handler: router.SetupRouter(c.RouterConfig())}
}

func (a *testAPI) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)

	var env envelope
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	assert.Equal(a.t, w.Code, env.Status)
	return w.Code, env
}

func (a *testAPI) login(email, password string) string {
	a.t.Helper()
	code, env := a.do(http.MethodPost, "/api/users/login", "", map[string]string{"email": email, "password": password})
	require.Equal(a.t, http.StatusOK, code)
	var result struct {
		Token string `json:"token"`
	}
	require.NoError(a.t, json.Unmarshal(env.Data, &result))
	require.NotEmpty(a.t, result.Token)
	return result.Token
}

func newUserBody(email string) map[string]any {
	return map[string]any{
		"name":         "Jane Doe",
		"email":        email,
		"phoneNumber":  "+351910000000",
		"passwordHash": "password123",
	}
}

func TestUserLifecycle(t *testing.T) {
	api := newTestAPI(t)

	code, env := api.do(http.MethodPost, "/api/users", "", newUserBody("jane@example.com"))
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "User created", env.Message)
	assert.NotContains(t, string(env.Data), "passwordHash")
	assert.NotContains(t, string(env.Data), "password123")

	var created types.UserDetail
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, types.UserStatusActive, created.Status)
	assert.Nil(t, created.UpdatedAt)

	token := api.login("jane@example.com", "password123")

	code, env = api.do(http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, code)
	var me types.UserDetail
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, created.ID, me.ID)

	code, env = api.do(http.MethodGet, "/api/users/"+itoa(created.ID), token, nil)
	require.Equal(t, http.StatusOK, code)
	var fetched types.UserDetail
	require.NoError(t, json.Unmarshal(env.Data, &fetched))
	assert.Equal(t, created.Name, fetched.Name)
	assert.Equal(t, created.Email, fetched.Email)
	assert.Equal(t, created.PhoneNumber, fetched.PhoneNumber)
	assert.True(t, created.CreatedAt.Equal(fetched.CreatedAt))
	assert.Nil(t, fetched.UpdatedAt)

	code, env = api.do(http.MethodPut, "/api/users/"+itoa(created.ID), token, map[string]any{
		"name": "Jane Smith", "email": "jane@example.com", "status": "Inactive",
	})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "User updated successfully.", env.Message)
	var updated types.UserDetail
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	require.NotNil(t, updated.UpdatedAt)
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))
	assert.Equal(t, types.UserStatusInactive, updated.Status)
	assert.Nil(t, updated.PhoneNumber)

	code, env = api.do(http.MethodDelete, "/api/users/"+itoa(created.ID), token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "User deleted", env.Message)
	assert.Equal(t, "null", string(env.Data))

	code, env = api.do(http.MethodGet, "/api/users/"+itoa(created.ID), token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "User not found", env.Message)

	// The token still verifies but names a user that is gone.
	code, _ = api.do(http.MethodGet, "/api/users/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestDuplicateEmailRejected(t *testing.T) {
	api := newTestAPI(t)

	code, _ := api.do(http.MethodPost, "/api/users", "", newUserBody("dup@example.com"))
	require.Equal(t, http.StatusCreated, code)

	code, env := api.do(http.MethodPost, "/api/users", "", newUserBody("dup@example.com"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Email already exists", env.Message)

	// Stored email is matched exactly.
	code, _ = api.do(http.MethodPost, "/api/users", "", newUserBody("DUP@example.com"))
	assert.Equal(t, http.StatusCreated, code)
}

func TestInvalidStatusRejected(t *testing.T) {
	api := newTestAPI(t)

	body := newUserBody("status@example.com")
	body["status"] = "Suspended"
	code, env := api.do(http.MethodPost, "/api/users", "", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Status must be either 'Active' or 'Inactive'.", env.Message)

	code, _ = api.do(http.MethodPost, "/api/users", "", newUserBody("status@example.com"))
	require.Equal(t, http.StatusCreated, code)
	token := api.login("status@example.com", "password123")

	code, _ = api.do(http.MethodPut, "/api/users/1", token, map[string]any{
		"name": "Jane", "email": "status@example.com", "status": "Suspended",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = api.do(http.MethodPut, "/api/users/999", token, map[string]any{
		"name": "Jane", "email": "other@example.com", "status": "Active",
	})
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEmptyStatusRejected(t *testing.T) {
	api := newTestAPI(t)

	body := newUserBody("empty-status@example.com")
	body["status"] = ""
	code, env := api.do(http.MethodPost, "/api/users", "", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Status must be either 'Active' or 'Inactive'.", env.Message)
	assert.Equal(t, `"Invalid"`, string(env.Error))

	code, env = api.do(http.MethodPost, "/api/users", "", newUserBody("empty-status@example.com"))
	require.Equal(t, http.StatusCreated, code)
	assert.Contains(t, string(env.Data), `"status":"Active"`)
	token := api.login("empty-status@example.com", "password123")

	code, env = api.do(http.MethodPut, "/api/users/1", token, map[string]any{
		"name": "Jane", "email": "empty-status@example.com", "status": "",
	})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Status must be either 'Active' or 'Inactive'.", env.Message)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	api := newTestAPI(t)
	code, _ := api.do(http.MethodPost, "/api/users", "", newUserBody("login@example.com"))
	require.Equal(t, http.StatusCreated, code)

	wrongCode, wrongPassword := api.do(http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "login@example.com", "password": "nope",
	})
	unknownCode, unknownEmail := api.do(http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "nobody@example.com", "password": "nope",
	})

	assert.Equal(t, http.StatusUnauthorized, wrongCode)
	assert.Equal(t, wrongCode, unknownCode)
	assert.Equal(t, wrongPassword, unknownEmail)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/users"},
		{http.MethodGet, "/api/users/me"},
		{http.MethodGet, "/api/users/1"},
		{http.MethodPut, "/api/users/1"},
		{http.MethodDelete, "/api/users/1"},
		{http.MethodGet, "/api/unknown"},
	} {
		code, env := api.do(tc.method, tc.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, code, tc.path)
		assert.Equal(t, "Unauthorized access", env.Message)
	}

	code, _ := api.do(http.MethodGet, "/api/users", "forged.token.value", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestListUsersNewestFirst(t *testing.T) {
	api := newTestAPI(t)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		code, _ := api.do(http.MethodPost, "/api/users", "", newUserBody(email))
		require.Equal(t, http.StatusCreated, code)
	}
	token := api.login("a@example.com", "password123")

	code, env := api.do(http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, code)

	var users []types.UserDetail
	require.NoError(t, json.Unmarshal(env.Data, &users))
	require.Len(t, users, 3)
	assert.Equal(t, "c@example.com", users[0].Email)
	assert.Equal(t, "a@example.com", users[2].Email)
}

func TestUnknownRouteWithToken(t *testing.T) {
	api := newTestAPI(t)
	code, _ := api.do(http.MethodPost, "/api/users", "", newUserBody("route@example.com"))
	require.Equal(t, http.StatusCreated, code)
	token := api.login("route@example.com", "password123")

	code, env := api.do(http.MethodGet, "/api/nothing-here", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, `"NotFound"`, string(env.Error))

	code, _ = api.do(http.MethodGet, "/api/users/abc", token, nil)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(http.MethodPatch, "/api/users/1", token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

func TestCORSPreflightBypassesGate(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/users/me", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	api.handler.ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPipelineOrder(t *testing.T) {
	cfg := &router.Config{Logger: slog.Default(), Timeout: time.Second}
	withTimeout := router.Pipeline(cfg)

	cfg.Timeout = 0
	withoutTimeout := router.Pipeline(cfg)

	assert.Len(t, withTimeout, len(withoutTimeout)+1)
}

func itoa(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestOpsRouter(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.SetupOpsRouter(slog.Default(), stubPinger{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":200,"message":"Success","data":{"database":"up"},"error":null}`, w.Body.String())
	})

	t.Run("database down", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.SetupOpsRouter(slog.Default(), stubPinger{err: errors.New("connection refused")}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("metrics without token", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.SetupOpsRouter(slog.Default(), stubPinger{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

// panickingUserHandler fails on every route it serves.
type panickingUserHandler struct{}

func (panickingUserHandler) ListUsers(http.ResponseWriter, *http.Request)      { panic("list exploded") }
func (panickingUserHandler) GetUser(http.ResponseWriter, *http.Request)        { panic("get exploded") }
func (panickingUserHandler) GetCurrentUser(http.ResponseWriter, *http.Request) { panic("me exploded") }
func (panickingUserHandler) CreateUser(http.ResponseWriter, *http.Request)     { panic("create exploded") }
func (panickingUserHandler) UpdateUser(http.ResponseWriter, *http.Request)     { panic("update exploded") }
func (panickingUserHandler) DeleteUser(http.ResponseWriter, *http.Request)     { panic("delete exploded") }

func TestPanicInsidePipelineBecomesEnvelope(t *testing.T) {
	tokens := auth.NewTokenService(config.JWTConfig{
		SecretKey: "router-test-secret-key-of-32-bytes!!",
		Issuer:    "users-api",
		Audience:  "users-api-clients",
		TTL:       time.Hour,
	})
	handler := router.SetupRouter(&router.Config{
		UserHandler: panickingUserHandler{},
		Verifier:    tokens,
		Logger:      slog.Default(),
		Timeout:     time.Second,
	})
	token, _, err := tokens.Issue(1, types.IdentityClaims{})
	require.NoError(t, err)

	api := &testAPI{t: t, handler: handler}
	require.NotPanics(t, func() {
		code, env := api.do(http.MethodGet, "/api/users", token, nil)
		assert.Equal(t, http.StatusInternalServerError, code)
		assert.Equal(t, "An unexpected error occurred", env.Message)
		assert.NotContains(t, string(env.Error), "exploded")
	})

	code, _ := api.do(http.MethodPost, "/api/users", "", newUserBody("boom@example.com"))
	assert.Equal(t, http.StatusInternalServerError, code)
}
