/**
 * @description
 * This file sets up the HTTP router for the ledger service. It defines the API
 * endpoints, associates them with their corresponding handlers, and applies
 * standard middleware.
 *
 * @dependencies
 * - net/http: Standard Go library for HTTP functionality.
 * - github.com/go-chi/chi/v5: A lightweight and idiomatic router for Go.
 */

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes creates and returns a new router for the ledger service.
func Routes(h *LedgerHandlers) http.Handler {
	r := chi.NewRouter()

	// Add standard middleware for logging, panic recovery, and timeouts.
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	})

	r.Route("/transactions", func(r chi.Router) {
		r.Post("/deposit", h.DepositHandler)
		r.Post("/withdraw", h.WithdrawHandler)
		r.Post("/transfer", h.TransferHandler)
		r.Get("/history/{accountNumber}", h.TransactionHistoryHandler)
	})

	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", h.CreateAccountHandler)
		r.Get("/{accountNumber}", h.GetAccountHandler)
	})

	r.Post("/customers", h.CreateCustomerHandler)

	return r
}
