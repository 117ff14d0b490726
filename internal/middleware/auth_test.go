package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// tokenGate accepts a single session token.
type tokenGate string

func (g tokenGate) ValidSession(_ context.Context, token string) bool {
	return g != "" && token == string(g)
}

func okApp(h fiber.Handler) *fiber.App {
	app := fiber.New()
	app.Get("/", h, func(c *fiber.Ctx) error { return c.SendString("ok") })
	return app
}

func TestSessionAuth(t *testing.T) {
	app := okApp(SessionAuth(tokenGate("sess-123"), zaptest.NewLogger(t)))

	cases := []struct {
		name   string
		cookie string
		header string
		want   int
	}{
		{"no credentials", "", "", fiber.StatusUnauthorized},
		{"wrong cookie", "other", "", fiber.StatusUnauthorized},
		{"wrong bearer", "", "Bearer other", fiber.StatusUnauthorized},
		{"cookie", "sess-123", "", fiber.StatusOK},
		{"bearer", "", "Bearer sess-123", fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.cookie != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookie, Value: tc.cookie})
			}
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestSessionAuth_NoOpenSession(t *testing.T) {
	app := okApp(SessionAuth(tokenGate(""), zaptest.NewLogger(t)))
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestServiceAuth(t *testing.T) {
	app := okApp(ServiceAuth("expected-token", zaptest.NewLogger(t)))

	cases := []struct {
		name   string
		header string
		value  string
		want   int
	}{
		{"missing", "", "", fiber.StatusUnauthorized},
		{"wrong", "X-Service-Token", "nope", fiber.StatusUnauthorized},
		{"header", "X-Service-Token", "expected-token", fiber.StatusOK},
		{"bearer", "Authorization", "Bearer expected-token", fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				req.Header.Set(tc.header, tc.value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestServiceAuth_EmptyExpectedRejectsAll(t *testing.T) {
	app := okApp(ServiceAuth("", zaptest.NewLogger(t)))
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "<empty>", MaskToken(""))
	assert.Equal(t, "abc", MaskToken("abc"))
	assert.Equal(t, "abcdef...", MaskToken("abcdefgh"))
}
