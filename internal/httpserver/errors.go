package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/cactus_shop/internal/imaging"
	"github.com/Skotchmaster/cactus_shop/internal/service"
)

// serviceError logs err under event and turns it into the matching HTTP
// error. Unknown errors become a 500 with the given fallback message.
func serviceError(l *slog.Logger, event string, err error, fallback string) error {
	switch {
	case errors.Is(err, imaging.ErrImageTooLarge):
		l.Warn(event, "status", 400, "reason", "image too large", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, imaging.ErrImageTooLarge.Error())
	case errors.Is(err, service.ErrMinResolution):
		l.Warn(event, "status", 400, "reason", "image below minimum resolution", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, imaging.ErrImageTooSmall.Error())
	case errors.Is(err, service.ErrValidation):
		l.Warn(event, "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNotFound):
		l.Warn(event, "status", 404, "reason", "not found", "error", err)
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		l.Warn(event, "status", 409, "reason", "conflict", "error", err)
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		l.Error(event, "status", 500, "reason", fallback, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, fallback)
	}
}
