package csrf

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEcho() *echo.Echo {
	e := echo.New()
	e.Use(Middleware(Config{
		Skipper: func(c echo.Context) bool { return c.Path() == "/health/live" },
	}))
	ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	e.GET("/cart", ok)
	e.POST("/cart/items", ok)
	e.POST("/health/live", ok)
	return e
}

func issueToken(t *testing.T, e *echo.Echo) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cart", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "XSRF-TOKEN" {
			assert.Equal(t, ck.Value, rec.Header().Get("X-CSRF-Token"))
			return ck
		}
	}
	t.Fatal("no csrf cookie issued")
	return nil
}

func TestMiddleware(t *testing.T) {
	e := newEcho()
	ck := issueToken(t, e)

	tests := []struct {
		name   string
		header string
		form   string
		origin string
		status int
	}{
		{name: "missing token", status: http.StatusForbidden},
		{name: "wrong token", header: "nope", status: http.StatusForbidden},
		{name: "header token", header: ck.Value, status: http.StatusOK},
		{name: "form token", form: ck.Value, status: http.StatusOK},
		{name: "same origin", header: ck.Value, origin: "http://example.com", status: http.StatusOK},
		{name: "foreign origin", header: ck.Value, origin: "https://evil.test", status: http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req *http.Request
			if tt.form != "" {
				req = httptest.NewRequest(http.MethodPost, "/cart/items", strings.NewReader(url.Values{"csrf_token": {tt.form}}.Encode()))
				req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
			} else {
				req = httptest.NewRequest(http.MethodPost, "/cart/items", nil)
			}
			if tt.header != "" {
				req.Header.Set("X-CSRF-Token", tt.header)
			}
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			req.AddCookie(ck)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestMiddleware_Skipper(t *testing.T) {
	e := newEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
