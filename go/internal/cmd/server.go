package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/mcdev12/tradeblock/go/internal/trade"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

func setupServer(services *Services, store *storage) *http.Server {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{trade.ErrorKindHeader, trade.ConflictsHeader},
	})

	mux.Handle(trade.NewTradeServiceHandler(services.Trade))
	setupHealthCheck(mux, store)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler: h2c.NewHandler(handler, &http2.Server{}),
	}
}

func setupHealthCheck(mux *http.ServeMux, store *storage) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{"status": "ok", "store": "memory"}
		code := http.StatusOK
		if store.db != nil {
			status["store"] = "postgres"
			if err := store.db.PingContext(r.Context()); err != nil {
				status["status"] = "degraded"
				status["error"] = err.Error()
				code = http.StatusServiceUnavailable
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}
