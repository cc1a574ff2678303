package main

import (
	"net/http"

	"github.com/angeloszaimis/currency-exchange/internal/handler"
)

func setupRouter(mux *http.ServeMux, exchangeHandler *handler.ExchangeHandler, rl *handler.RequestLogger, a *app) *http.ServeMux {
	exchangeHandler.Register(mux, rl)

	mux.Handle("GET /health", a.monitor.Handler())
	mux.Handle("GET /metrics", a.collector.Handler(a.circuitState))
	mux.Handle("GET /metrics/prometheus", a.prometheus.Handler())

	return mux
}
