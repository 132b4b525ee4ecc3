/**
 * @description
 * This file contains the HTTP handlers for the ledger service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the ledger
 * engine, and mapping each error kind to a precise HTTP status code. They act
 * as the bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: For service logic, models, and error kinds.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Nithisha-bichala/bank-simulation/internal/app"
	"github.com/Nithisha-bichala/bank-simulation/internal/domain"
	"github.com/Nithisha-bichala/bank-simulation/internal/store"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// DepositHandler handles requests to credit an account.
func (h *LedgerHandlers) DepositHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=deposit outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	record, err := h.service.Deposit(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=deposit outcome=failed account=%s err=%v", req.AccountNumber, err)
		h.writeLedgerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, record)
}

// WithdrawHandler handles requests to debit an account.
func (h *LedgerHandlers) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=withdraw outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	record, err := h.service.Withdraw(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=withdraw outcome=failed account=%s err=%v", req.AccountNumber, err)
		h.writeLedgerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, record)
}

// TransferHandler handles requests to move funds between two accounts.
func (h *LedgerHandlers) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	receipt, err := h.service.Transfer(r.Context(), req)
	if err != nil {
		log.Printf("level=warn component=api endpoint=transfer outcome=failed sender=%s receiver=%s err=%v",
			req.SenderAccountNumber, req.ReceiverAccountNumber, err)
		h.writeLedgerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, receipt)
}

// TransactionHistoryHandler returns all ledger records for an account.
func (h *LedgerHandlers) TransactionHistoryHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")

	transactions, err := h.service.ListTransactions(r.Context(), accountNumber)
	if err != nil {
		log.Printf("level=error component=api endpoint=history outcome=failed account=%s err=%v", accountNumber, err)
		h.writeError(w, http.StatusInternalServerError, "Unable to load transaction history")
		return
	}
	if transactions == nil {
		transactions = []domain.Transaction{}
	}
	h.writeJSON(w, http.StatusOK, transactions)
}

// GetAccountHandler returns a single account by its external number.
func (h *LedgerHandlers) GetAccountHandler(w http.ResponseWriter, r *http.Request) {
	accountNumber := chi.URLParam(r, "accountNumber")

	account, err := h.service.GetAccount(r.Context(), accountNumber)
	if err != nil {
		log.Printf("level=warn component=api endpoint=get_account outcome=failed account=%s err=%v", accountNumber, err)
		h.writeLedgerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

// CreateCustomerHandler registers a new customer.
func (h *LedgerHandlers) CreateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		domain.Customer
		MPIN string `json:"mpin"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("level=warn component=api endpoint=create_customer outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}
	customer := payload.Customer
	customer.MPIN = payload.MPIN

	created, err := h.service.OpenCustomer(r.Context(), &customer)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_customer outcome=failed username=%s err=%v", customer.Username, err)
		h.writeLedgerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// CreateAccountHandler opens a new account for an existing customer.
func (h *LedgerHandlers) CreateAccountHandler(w http.ResponseWriter, r *http.Request) {
	var account domain.Account
	if err := json.NewDecoder(r.Body).Decode(&account); err != nil {
		log.Printf("level=warn component=api endpoint=create_account outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	created, err := h.service.OpenAccount(r.Context(), &account)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_account outcome=failed account=%s err=%v", account.AccountNumber, err)
		h.writeLedgerError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, created)
}

// writeLedgerError maps error kinds from the ledger engine to HTTP statuses.
// Every business failure surfaces verbatim; only unexpected store failures are
// masked behind a generic 500.
func (h *LedgerHandlers) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrInsufficientFunds):
		h.writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, store.ErrAccountNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrCustomerNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrMPINRequired):
		h.writeError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, store.ErrInvalidMPIN):
		h.writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, store.ErrDuplicateAccountNumber),
		errors.Is(err, store.ErrDuplicateCustomerDetail):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidAccountNumber),
		errors.Is(err, app.ErrInvalidMPINFormat),
		errors.Is(err, app.ErrSameAccountTransfer):
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
