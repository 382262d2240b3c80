package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
	"github.com/gyber/go-custody"
	"github.com/gyber/go-custody/api"
	"github.com/gyber/go-custody/chain"
	"github.com/gyber/go-custody/persistence"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestMain(m *testing.M) {
	custody.SetPasswordHashCost(bcrypt.MinCost)
	os.Exit(m.Run())
}

type fixture struct {
	app    *fiber.App
	repo   custody.RepositoryManager
	routes []router.RouteDefinition

	mu   sync.Mutex
	sent []custody.MailMessage
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := persistence.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, persistence.Migrate(context.Background(), db))

	tokens, err := custody.NewTokenService("HS256", map[custody.Purpose]custody.TokenPolicy{
		custody.PurposeAccess:        {Key: []byte("access"), TTL: time.Hour},
		custody.PurposeRefresh:       {Key: []byte("refresh"), TTL: 24 * time.Hour},
		custody.PurposeEmailVerify:   {Key: []byte("verify"), TTL: time.Hour},
		custody.PurposePasswordReset: {Key: []byte("reset"), TTL: time.Hour},
	}, nil)
	require.NoError(t, err)

	registry, err := chain.NewRegistry(chain.DefaultNetworks()...)
	require.NoError(t, err)

	f := &fixture{repo: custody.NewRepositoryManager(db)}

	controller := api.NewController(api.Dependencies{
		Repo:     f.repo,
		Tokens:   tokens,
		Networks: registry,
		Deriver:  chain.NewHDWallet(),
		Mailer: custody.MailDispatcherFunc(func(_ context.Context, msg custody.MailMessage) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.sent = append(f.sent, msg)
			return nil
		}),
		BaseURL: "http://localhost:8000/",
	}, api.WithProject("GYBER", "test"))

	srv := api.NewServer(api.ServerConfig{
		AppName:  "gyber-test",
		Gatherer: prometheus.NewRegistry(),
	}, controller)
	f.routes = srv.Router().Routes()
	f.app = srv.WrappedRouter()

	return f
}

func (f *fixture) register(t *testing.T, username string, verified, admin bool) {
	t.Helper()

	hash, err := custody.HashPassword("secret")
	require.NoError(t, err)

	_, err = f.repo.Users().Register(context.Background(), &custody.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		IsVerified:   verified,
		IsAdmin:      admin,
	})
	require.NoError(t, err)
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := map[string]any{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func (f *fixture) login(t *testing.T, username string) (string, string) {
	t.Helper()

	resp, body := f.do(t, http.MethodPost, "/users/auth/login", "", map[string]string{
		"username": username,
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body["access_token"].(string), body["refresh_token"].(string)
}

func TestHome(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "GYBER", body["project"])
}

func TestRoutes_Named(t *testing.T) {
	f := newFixture(t)

	names := map[string]string{}
	for _, route := range f.routes {
		names[route.Name] = string(route.Method) + " " + route.Path
	}

	tests := []struct {
		name string
		want string
	}{
		{"auth.login", "POST /users/auth/login"},
		{"profile.get", "GET /users/profile"},
		{"wallets.credentials", "GET /wallets/:address/credentials"},
		{"transactor.erc20", "PUT /transactor/send_transaction_erc20"},
		{"admin.users", "GET /admin/users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names[tt.name])
		})
	}
}

func TestProtectedRoutes_RequireToken(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/users/profile/"},
		{http.MethodGet, "/available_chains"},
		{http.MethodPost, "/wallets/create"},
		{http.MethodGet, "/checker/0xabc/eth-mainnet"},
		{http.MethodGet, "/admin/users"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, custody.TextCodeUnauthorized, body["text_code"])
			assert.Equal(t, "Could Not Validate Credentials", body["detail"])
		})
	}
}

func TestSignupAndLogin(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/users/auth/signup", "", map[string]string{
		"username": "alice",
		"email":    "alice@example.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])
	assert.NotContains(t, body, "password_hash")

	resp, body = f.do(t, http.MethodPost, "/users/auth/signup", "", map[string]string{
		"username": "alice",
		"password": "secret",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, custody.TextCodeConflict, body["text_code"])

	resp, body = f.do(t, http.MethodPost, "/users/auth/login", "", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Incorrect Username Or Password", body["detail"])

	access, _ := f.login(t, "alice")
	resp, body = f.do(t, http.MethodGet, "/users/profile/", access, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", body["username"])
	assert.Equal(t, false, body["is_verified"])
}

func TestLogin_Form(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", false, false)

	req := httptest.NewRequest(http.MethodPost, "/users/auth/login", strings.NewReader("username=alice&password=secret"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", false, false)
	access, refresh := f.login(t, "alice")

	resp, body := f.do(t, http.MethodPost, "/users/auth/refresh", refresh, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["access_token"])
	assert.Nil(t, body["refresh_token"])

	resp, _ = f.do(t, http.MethodPost, "/users/auth/refresh", access, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "access token is not a refresh token")
}

func TestWallets_VerifiedGate(t *testing.T) {
	f := newFixture(t)
	f.register(t, "bob", false, false)
	f.register(t, "alice", true, false)

	bob, _ := f.login(t, "bob")
	resp, body := f.do(t, http.MethodPost, "/wallets/create", bob, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "You Are Not Verified User", body["detail"])

	alice, _ := f.login(t, "alice")
	resp, body = f.do(t, http.MethodPost, "/wallets/create", alice, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	address := body["address"].(string)
	assert.Equal(t, true, body["is_secure"])

	resp, body = f.do(t, http.MethodGet, "/wallets/"+address, alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotContains(t, body, "private_key")

	resp, body = f.do(t, http.MethodGet, "/wallets/"+address+"/credentials", alice, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["private_key"])
	assert.Equal(t, false, body["is_secure"])

	resp, _ = f.do(t, http.MethodGet, "/wallets/"+address, bob, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "wallets are scoped to their owner")

	resp, body = f.do(t, http.MethodGet, "/users/profile/wallets", alice, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, body["wallets"], 1)
}

func TestChains(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", false, false)
	access, _ := f.login(t, "alice")

	resp, body := f.do(t, http.MethodGet, "/available_chains", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["mainnet_list"], "eth-mainnet")

	resp, body = f.do(t, http.MethodPut, "/users/profile/add_chain", access, map[string]any{
		"mainnet": "eth-mainnet",
		"gas":     12.5,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, map[string]any{"eth-mainnet": 12.5}, body["mainnet_dict"])

	resp, body = f.do(t, http.MethodPut, "/users/profile/add_chain", access, map[string]any{
		"mainnet": "doge-mainnet",
		"gas":     1,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Unavailable Chain", body["detail"])

	resp, body = f.do(t, http.MethodDelete, "/users/profile/remove_chain", access, map[string]any{
		"mainnet": "eth-mainnet",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body["mainnet_dict"])
}

func TestVerificationFlow(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", false, false)
	access, _ := f.login(t, "alice")

	resp, _ := f.do(t, http.MethodPut, "/users/profile/send_verification_message", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	f.mu.Lock()
	require.Len(t, f.sent, 1)
	link := f.sent[0].Vars["link"]
	f.mu.Unlock()
	require.True(t, strings.HasPrefix(link, "http://localhost:8000/users/profile/verify/"))

	resp, body := f.do(t, http.MethodGet, "/users/profile/verify/not-a-token", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid Token", body["detail"])

	resp, _ = f.do(t, http.MethodGet, strings.TrimPrefix(link, "http://localhost:8000"), "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/users/profile/", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_verified"])
}

func TestRequestPasswordReset_AlwaysOK(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/users/profile/request_password_reset", "", map[string]string{
		"email": "nobody@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Empty(t, f.sent)
}

func TestAdminUsers(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", true, false)
	f.register(t, "root", true, true)

	alice, _ := f.login(t, "alice")
	resp, body := f.do(t, http.MethodGet, "/admin/users", alice, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, custody.TextCodeNotAdmin, body["text_code"])

	root, _ := f.login(t, "root")
	resp, body = f.do(t, http.MethodGet, "/admin/users", root, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["count"])
}

func TestProfileDelete(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", true, false)
	access, _ := f.login(t, "alice")

	resp, _ := f.do(t, http.MethodDelete, "/users/profile/delete", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/users/profile/", access, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMetrics(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unauthorized", custody.ErrUnauthorized, http.StatusUnauthorized},
		{"expired", custody.ErrTokenExpired, http.StatusForbidden},
		{"conflict", custody.ErrConflict, http.StatusConflict},
		{"validation", custody.ErrValidation, http.StatusUnprocessableEntity},
		{"not found", custody.ErrNotFound, http.StatusNotFound},
		{"downstream", custody.ErrDownstreamUnavailable, http.StatusServiceUnavailable},
		{"fiber", fiber.ErrMethodNotAllowed, http.StatusMethodNotAllowed},
		{"plain", io.EOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := api.StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
		})
	}
}
