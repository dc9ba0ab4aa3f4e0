package handlers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/restausimplon/api/internal/authz"
	"github.com/restausimplon/api/internal/events"
	"github.com/restausimplon/api/internal/logging"
	"github.com/restausimplon/api/internal/service/order"
)

var (
	emailRe = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	// French local format: leading 0 followed by nine digits.
	phoneRe = regexp.MustCompile(`^0\d{9}$`)
)

func validEmail(s string) bool { return emailRe.MatchString(s) }
func validPhone(s string) bool { return phoneRe.MatchString(s) }

func parseID(c echo.Context, name string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return uint(id), nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

// serviceError maps the service sentinel errors onto HTTP responses.
func serviceError(err error) error {
	switch {
	case errors.Is(err, order.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrValidation):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrConflict):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, authz.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}

// publish sends a domain event best-effort: failures are logged, never
// surfaced to the caller.
func publish(c echo.Context, p *events.Producer, topic, key string, event map[string]any) {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := p.PublishEvent(ctx, topic, key, event); err != nil {
		logging.FromContext(c.Request().Context()).Error("event publish failed", "topic", topic, "error", err)
	}
}
