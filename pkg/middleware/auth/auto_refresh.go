package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cactus_shop/pkg/authclient"
	"github.com/Skotchmaster/cactus_shop/pkg/tokens"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

type AutoRefreshMiddleware struct {
	JWTSecret []byte
	// AuthClient may be nil, in which case expired tokens are simply rejected.
	AuthClient *authclient.Client
}

func NewAutoRefreshMiddleware(secret []byte, authClient *authclient.Client) *AutoRefreshMiddleware {
	return &AutoRefreshMiddleware{
		JWTSecret:  secret,
		AuthClient: authClient,
	}
}

var errNoToken = echo.NewHTTPError(http.StatusUnauthorized, "missing access token")

func (m *AutoRefreshMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.authenticate(c)
		if err != nil {
			return err
		}
		setUserContext(c, claims)
		return next(c)
	}
}

func (m *AutoRefreshMiddleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.authenticate(c)
		if err != nil {
			return err
		}
		if claims.Role != tokens.RoleAdmin {
			return echo.NewHTTPError(http.StatusForbidden, "admin access required")
		}
		setUserContext(c, claims)
		return next(c)
	}
}

// OptionalAuth sets the user context when a usable token is present and
// lets anonymous requests through otherwise.
func (m *AutoRefreshMiddleware) OptionalAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := m.authenticate(c)
		if err == nil {
			setUserContext(c, claims)
		}
		return next(c)
	}
}

func (m *AutoRefreshMiddleware) authenticate(c echo.Context) (*tokens.AccessClaims, error) {
	accessCookie, err := c.Cookie(AccessCookie)
	if err != nil || accessCookie.Value == "" {
		return nil, errNoToken
	}

	claims, err := tokens.AccessClaimsFromToken(accessCookie.Value, m.JWTSecret)
	if err == nil && claims != nil {
		if claims.Subject == "" {
			return nil, echo.NewHTTPError(http.StatusUnauthorized, "token has no subject")
		}
		return claims, nil
	}

	if !errors.Is(err, jwt.ErrTokenExpired) || m.AuthClient == nil {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "invalid access token")
	}

	refreshCookie, rErr := c.Cookie(RefreshCookie)
	if rErr != nil || refreshCookie.Value == "" {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "refresh token missing")
	}

	refreshResp, refErr := m.AuthClient.RefreshTokens(c.Request().Context(), refreshCookie.Value, accessCookie.Value)
	if refErr != nil {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "refresh failed: "+refErr.Error())
	}

	c.SetCookie(CreateCookie(AccessCookie, refreshResp.AccessToken, "/", time.Unix(refreshResp.AccessExp, 0)))
	c.SetCookie(CreateCookie(RefreshCookie, refreshResp.RefreshToken, "/", time.Unix(refreshResp.RefreshExp, 0)))

	newClaims, pErr := tokens.AccessClaimsFromToken(refreshResp.AccessToken, m.JWTSecret)
	if pErr != nil || newClaims == nil || newClaims.Subject == "" {
		clearAuthCookies(c)
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "new access token invalid")
	}
	return newClaims, nil
}

func clearAuthCookies(c echo.Context) {
	c.SetCookie(DeleteCookie(AccessCookie, "/"))
	c.SetCookie(DeleteCookie(RefreshCookie, "/"))
}

func setUserContext(c echo.Context, claims *tokens.AccessClaims) {
	c.Set(CtxUserID, claims.Subject)
	c.Set(CtxRole, claims.Role)
}

// UserID returns the authenticated identity, or "" for anonymous requests.
func UserID(c echo.Context) string {
	s, _ := c.Get(CtxUserID).(string)
	return s
}
