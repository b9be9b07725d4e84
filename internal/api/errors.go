package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"jobagent/collector-service/internal/model"
)

// ErrStructuredDisabled is returned by the generic extraction routes when
// the capability is switched off.
var ErrStructuredDisabled = errors.New("structured extraction is disabled")

// errShuttingDown rejects background submissions once shutdown has begun.
var errShuttingDown = errors.New("server is shutting down")

type errorBody struct {
	Detail string `json:"detail"`
}

// httpError is the single place errors become HTTP responses. Every body
// has the shape {"detail": "..."}.
func (h *Handler) httpError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, detail := h.classify(err, c)

	var sendErr error
	if c.Request().Method == http.MethodHead {
		sendErr = c.NoContent(status)
	} else {
		sendErr = c.JSON(status, errorBody{Detail: detail})
	}
	if sendErr != nil {
		h.logger.Error("[api] failed to write error response", "error", sendErr)
	}
}

func (h *Handler) classify(err error, c echo.Context) (int, string) {
	var (
		ve *model.ValidationError
		fe *model.FetchError
		he *echo.HTTPError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusUnprocessableEntity, ve.Msg
	case errors.As(err, &fe):
		h.logger.Warn("[api] upstream fetch failed", "path", c.Path(), "url", fe.URL, "status", fe.StatusCode, "error", err)
		return http.StatusBadGateway, "upstream fetch failed: " + fe.Error()
	case errors.Is(err, ErrStructuredDisabled):
		return http.StatusNotImplemented, err.Error()
	case errors.Is(err, errShuttingDown):
		return http.StatusServiceUnavailable, err.Error()
	case errors.As(err, &he):
		if msg, ok := he.Message.(string); ok {
			return he.Code, msg
		}
		return he.Code, http.StatusText(he.Code)
	default:
		h.logger.Error("[api] request failed", "path", c.Path(), "error", err)
		return http.StatusInternalServerError, "internal server error"
	}
}
