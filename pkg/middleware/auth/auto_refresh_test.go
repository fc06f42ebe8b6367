package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/cactus_shop/pkg/authclient"
	"github.com/Skotchmaster/cactus_shop/pkg/tokens"
)

var secret = []byte("test-jwt-secret")

func newToken(t *testing.T, sub, role string, exp time.Time) string {
	t.Helper()
	tok, err := tokens.NewAccessToken(sub, role, secret, exp)
	require.NoError(t, err)
	return tok
}

func serve(t *testing.T, mw echo.MiddlewareFunc, cookies ...*http.Cookie) (*httptest.ResponseRecorder, string) {
	t.Helper()
	e := echo.New()
	var seen string
	e.GET("/", func(c echo.Context) error {
		seen = UserID(c)
		return c.NoContent(http.StatusOK)
	}, mw)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec, seen
}

func TestRequireAuth(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)

	rec, _ := serve(t, m.RequireAuth)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok := newToken(t, "user-1", tokens.RoleUser, time.Now().Add(time.Minute))
	rec, seen := serve(t, m.RequireAuth, &http.Cookie{Name: AccessCookie, Value: tok})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", seen)
}

func TestRequireAdmin(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)

	user := newToken(t, "user-1", tokens.RoleUser, time.Now().Add(time.Minute))
	rec, _ := serve(t, m.RequireAdmin, &http.Cookie{Name: AccessCookie, Value: user})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := newToken(t, "admin-1", tokens.RoleAdmin, time.Now().Add(time.Minute))
	rec, seen := serve(t, m.RequireAdmin, &http.Cookie{Name: AccessCookie, Value: admin})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", seen)
}

func TestOptionalAuth_Anonymous(t *testing.T) {
	m := NewAutoRefreshMiddleware(secret, nil)

	rec, seen := serve(t, m.OptionalAuth)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, seen)

	rec, seen = serve(t, m.OptionalAuth, &http.Cookie{Name: AccessCookie, Value: "garbage"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, seen)
}

func TestRequireAuth_RefreshesExpiredToken(t *testing.T) {
	fresh := newToken(t, "user-7", tokens.RoleUser, time.Now().Add(time.Minute))
	authSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(authclient.RefreshResponse{
			AccessToken:  fresh,
			RefreshToken: "rotated",
			AccessExp:    time.Now().Add(time.Minute).Unix(),
			RefreshExp:   time.Now().Add(time.Hour).Unix(),
		})
	}))
	defer authSrv.Close()

	m := NewAutoRefreshMiddleware(secret, authclient.NewClient(authSrv.URL))
	expired := newToken(t, "user-7", tokens.RoleUser, time.Now().Add(-time.Minute))

	rec, seen := serve(t, m.RequireAuth,
		&http.Cookie{Name: AccessCookie, Value: expired},
		&http.Cookie{Name: RefreshCookie, Value: "old"},
	)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-7", seen)

	var rotated bool
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == RefreshCookie && ck.Value == "rotated" {
			rotated = true
		}
	}
	assert.True(t, rotated)
}
