package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	platformerrors "github.com/jmgilman/go/errors"
	"github.com/shopspring/decimal"

	"github.com/angeloszaimis/currency-exchange/internal/exchange"
)

const maxBodyBytes = 1 << 20

// ExchangeService is what the handler needs from exchange.Service.
type ExchangeService interface {
	Retrieve(ctx context.Context, from, to string) (*exchange.CurrencyExchange, error)
	List(ctx context.Context) ([]exchange.CurrencyExchange, error)
	Create(ctx context.Context, e *exchange.CurrencyExchange) (*exchange.CurrencyExchange, error)
	Update(ctx context.Context, id int64, e *exchange.CurrencyExchange) (*exchange.CurrencyExchange, error)
	Patch(ctx context.Context, id int64, p exchange.Patch) (*exchange.CurrencyExchange, error)
	Delete(ctx context.Context, from, to string) (bool, error)
}

type ExchangeHandler struct {
	logger      *slog.Logger
	service     ExchangeService
	environment string
}

// NewExchangeHandler returns the REST handler. environment is reported in
// the environment field of read responses; the server port is used.
func NewExchangeHandler(logger *slog.Logger, service ExchangeService, environment string) *ExchangeHandler {
	return &ExchangeHandler{
		logger:      logger,
		service:     service,
		environment: environment,
	}
}

// Routes maps each route pattern to its handler.
func (h *ExchangeHandler) Routes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"GET /currency-exchange/from/{from}/to/{to}":    h.retrieve,
		"DELETE /currency-exchange/from/{from}/to/{to}": h.delete,
		"GET /currency-exchange":                        h.list,
		"POST /currency-exchange":                       h.create,
		"PUT /currency-exchange/{id}":                   h.update,
		"PATCH /currency-exchange/{id}":                 h.patch,
	}
}

// Register mounts every route on mux, instrumented by rl when it is not nil.
func (h *ExchangeHandler) Register(mux *http.ServeMux, rl *RequestLogger) {
	for pattern, fn := range h.Routes() {
		if rl == nil {
			mux.Handle(pattern, fn)
			continue
		}
		mux.Handle(pattern, rl.Wrap(pattern, fn))
	}
}

func (h *ExchangeHandler) retrieve(w http.ResponseWriter, r *http.Request) {
	from, to := r.PathValue("from"), r.PathValue("to")
	h.logger.Info("Retrieving exchange value",
		slog.String("from", from),
		slog.String("to", to),
		slog.String("environment", h.environment))

	e, err := h.service.Retrieve(r.Context(), from, to)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if e == nil {
		writeText(w, http.StatusNotFound, "Conversion record not found")
		return
	}

	e.Environment = h.environment
	writeJSON(w, http.StatusOK, e)
}

func (h *ExchangeHandler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	for i := range all {
		all[i].Environment = h.environment
	}
	writeJSON(w, http.StatusOK, all)
}

func (h *ExchangeHandler) create(w http.ResponseWriter, r *http.Request) {
	var e exchange.CurrencyExchange
	if err := decode(w, r, &e); err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.service.Create(r.Context(), &e)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type updateRequest struct {
	From               string          `json:"from"`
	To                 string          `json:"to"`
	ConversionMultiple decimal.Decimal `json:"conversionMultiple"`
	Version            *int64          `json:"version"`
}

func (u updateRequest) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Version, validation.NotNil),
	)
}

func (h *ExchangeHandler) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var req updateRequest
	if err := decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := req.Validate(); err != nil {
		h.writeError(w, r, platformerrors.Wrap(err, platformerrors.CodeInvalidInput, err.Error()))
		return
	}

	updated, err := h.service.Update(r.Context(), id, &exchange.CurrencyExchange{
		From:               req.From,
		To:                 req.To,
		ConversionMultiple: req.ConversionMultiple,
		Version:            *req.Version,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if updated == nil {
		writeText(w, http.StatusNotFound, "CurrencyExchange not found")
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *ExchangeHandler) patch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var p exchange.Patch
	if err := decode(w, r, &p); err != nil {
		h.writeError(w, r, err)
		return
	}

	patched, err := h.service.Patch(r.Context(), id, p)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if patched == nil {
		writeText(w, http.StatusNotFound, "CurrencyExchange not found")
		return
	}
	writeJSON(w, http.StatusOK, patched)
}

func (h *ExchangeHandler) delete(w http.ResponseWriter, r *http.Request) {
	deleted, err := h.service.Delete(r.Context(), r.PathValue("from"), r.PathValue("to"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !deleted {
		writeText(w, http.StatusNotFound, "CurrencyExchange not found")
		return
	}
	writeText(w, http.StatusOK, "CurrencyExchange deleted")
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return platformerrors.Wrap(err, platformerrors.CodeInvalidInput, "malformed request body")
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, platformerrors.Newf(platformerrors.CodeInvalidInput, "invalid id %q", r.PathValue("id"))
	}
	return id, nil
}
