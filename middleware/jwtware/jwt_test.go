package jwtware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/gyber/go-custody"
	"github.com/gyber/go-custody/middleware/jwtware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubResolver(users map[string]*custody.User) jwtware.Resolver {
	return func(_ context.Context, token string) (*custody.User, error) {
		if user, ok := users[token]; ok {
			return user, nil
		}
		return nil, custody.ErrUnauthorized
	}
}

func newServer(errorHandler fiber.ErrorHandler) router.Server[*fiber.App] {
	return router.NewFiberAdapter(func(*fiber.App) *fiber.App {
		return fiber.New(fiber.Config{ErrorHandler: errorHandler})
	})
}

func newApp(cfg jwtware.Config) *fiber.App {
	srv := newServer(func(c *fiber.Ctx, err error) error {
		switch {
		case custody.HasTextCode(err, custody.TextCodeNotVerified):
			return c.SendStatus(http.StatusForbidden)
		default:
			return c.SendStatus(http.StatusUnauthorized)
		}
	})

	srv.Router().Get("/me/:token?", func(ctx router.Context) error {
		user, ok := custody.RequestUser(ctx)
		if !ok {
			return ctx.Status(http.StatusTeapot).SendString("no identity")
		}
		return ctx.SendString(user.Username)
	}, jwtware.New(cfg))

	return srv.WrappedRouter()
}

func TestJWTWare_Extraction(t *testing.T) {
	users := map[string]*custody.User{
		"good": {Username: "alice", IsActive: true, IsVerified: true},
	}

	tests := []struct {
		name       string
		lookup     string
		path       string
		header     string
		cookie     string
		wantStatus int
	}{
		{name: "bearer header", path: "/me", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "lower case scheme", path: "/me", header: "bearer good", wantStatus: http.StatusOK},
		{name: "missing header", path: "/me", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/me", header: "Basic good", wantStatus: http.StatusUnauthorized},
		{name: "unknown token", path: "/me", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
		{name: "query", lookup: "query:token", path: "/me?token=good", wantStatus: http.StatusOK},
		{name: "cookie", lookup: "cookie:jwt", path: "/me", cookie: "good", wantStatus: http.StatusOK},
		{name: "header then query", lookup: "header:Authorization,query:token", path: "/me?token=good", wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newApp(jwtware.Config{
				Resolver:    stubResolver(users),
				TokenLookup: tt.lookup,
			})

			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "jwt", Value: tt.cookie})
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestJWTWare_Gates(t *testing.T) {
	users := map[string]*custody.User{
		"verified":   {Username: "alice", IsActive: true, IsVerified: true},
		"unverified": {Username: "bob", IsActive: true},
	}

	app := newApp(jwtware.Config{
		Resolver: stubResolver(users),
		Gates:    []custody.Gate{custody.RequireVerified},
	})

	tests := []struct {
		token      string
		wantStatus int
	}{
		{token: "verified", wantStatus: http.StatusOK},
		{token: "unverified", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tt.token)

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}
}

func TestJWTWare_FilterSkips(t *testing.T) {
	app := newApp(jwtware.Config{
		Resolver: stubResolver(nil),
		Filter:   func(router.Context) bool { return true },
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
}

func TestJWTWare_ValidationListener(t *testing.T) {
	users := map[string]*custody.User{
		"good": {Username: "alice", IsActive: true},
	}

	var seen string
	app := newApp(jwtware.Config{
		Resolver: stubResolver(users),
		ValidationListeners: []jwtware.ValidationListener{
			func(_ router.Context, user *custody.User) error {
				seen = user.Username
				return nil
			},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "alice", seen)
}

func TestGate_WithoutIdentity(t *testing.T) {
	srv := newServer(func(c *fiber.Ctx, err error) error {
		if custody.HasTextCode(err, custody.TextCodeUnauthorized) {
			return c.SendStatus(http.StatusUnauthorized)
		}
		return c.SendStatus(http.StatusInternalServerError)
	})
	srv.Router().Get("/admin", func(ctx router.Context) error {
		return ctx.NoContent(http.StatusOK)
	}, jwtware.Gate(custody.RequireAdmin))

	resp, err := srv.WrappedRouter().Test(httptest.NewRequest(http.MethodGet, "/admin", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestGetDefaultConfig_RequiresResolver(t *testing.T) {
	assert.Panics(t, func() {
		jwtware.GetDefaultConfig(jwtware.Config{})
	})
}

func TestJWTWare_GroupWithGate(t *testing.T) {
	users := map[string]*custody.User{
		"admin": {Username: "root", IsActive: true, IsAdmin: true},
		"user":  {Username: "alice", IsActive: true},
	}

	calls := 0
	srv := newServer(func(c *fiber.Ctx, err error) error {
		if custody.HasTextCode(err, custody.TextCodeNotAdmin) {
			return c.SendStatus(http.StatusForbidden)
		}
		return c.SendStatus(http.StatusUnauthorized)
	})

	admin := srv.Router().Group("/admin")
	admin.Use(jwtware.New(jwtware.Config{Resolver: stubResolver(users)}))
	admin.Get("/users", func(ctx router.Context) error {
		calls++
		return ctx.JSON(http.StatusOK, map[string]any{"user": ctx.Locals(custody.LocalsUserKey).(*custody.User).Username})
	}, jwtware.Gate(custody.RequireAdmin))

	tests := []struct {
		token      string
		wantStatus int
	}{
		{token: "admin", wantStatus: http.StatusOK},
		{token: "user", wantStatus: http.StatusForbidden},
		{token: "", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run("token "+tt.token, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			if tt.token != "" {
				req.Header.Set(fiber.HeaderAuthorization, "Bearer "+tt.token)
			}

			resp, err := srv.WrappedRouter().Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
		})
	}

	assert.Equal(t, 1, calls, "the handler runs once and only for the admin")
}
