package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	platformerrors "github.com/jmgilman/go/errors"

	"github.com/angeloszaimis/currency-exchange/internal/exchange"
)

const conflictMessage = "CurrencyExchange has been modified by another request. Please reload and retry."

type conflictResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (h *ExchangeHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, exchange.ErrConcurrentModification) {
		h.logger.Warn("Concurrent modification",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		writeJSON(w, http.StatusConflict, conflictResponse{Error: "CONFLICT", Message: conflictMessage})
		return
	}

	code := platformerrors.GetCode(err)
	status := statusFor(code)
	resp := platformerrors.ToJSON(err)

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			slog.String("path", r.URL.Path),
			slog.String("code", string(code)),
			slog.String("error", err.Error()))
		resp = platformerrors.ToJSON(platformerrors.New(platformerrors.CodeInternal, "internal server error"))
	}

	writeJSON(w, status, resp)
}

func statusFor(code platformerrors.ErrorCode) int {
	switch code {
	case platformerrors.CodeInvalidInput, platformerrors.CodeSchemaFailed:
		return http.StatusBadRequest
	case platformerrors.CodeNotFound:
		return http.StatusNotFound
	case platformerrors.CodeConflict, platformerrors.CodeAlreadyExists:
		return http.StatusConflict
	case platformerrors.CodeUnavailable:
		return http.StatusServiceUnavailable
	case platformerrors.CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg))
}
