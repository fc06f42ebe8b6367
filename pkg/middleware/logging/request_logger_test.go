package loggingmw

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/cactus_shop/pkg/logging"
)

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	e.Use(echomw.RequestID())
	e.Use(RequestLogger(base))
	e.GET("/catalog/products/:kind", func(c echo.Context) error {
		logging.FromContext(c.Request().Context()).Info("handler_ran")
		c.Set("user_id", "user-1")
		return echo.NewHTTPError(http.StatusNotFound, "unknown kind")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/catalog/products/fern", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	lines := logLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "handler_ran", lines[0]["msg"])
	assert.Equal(t, "/catalog/products/:kind", lines[0]["path"])
	assert.NotEmpty(t, lines[0]["request_id"])

	done := lines[1]
	assert.Equal(t, "request completed", done["msg"])
	assert.Equal(t, "WARN", done["level"])
	assert.EqualValues(t, 404, done["status"])
	assert.Equal(t, "user-1", done["user_id"])
	assert.Equal(t, lines[0]["request_id"], done["request_id"])
}
