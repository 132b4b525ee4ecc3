/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for
 * all data access operations required by the ledger engine. Each money movement
 * method executes as one atomic unit of work against the store: the MPIN check,
 * balance check, balance mutation, and transaction-row insert either all take
 * effect or none do. Defining an interface decouples the business logic from
 * PostgreSQL and makes the engine testable with stub repositories.
 *
 * @dependencies
 * - context: Standard Go library.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"

	"github.com/Nithisha-bichala/bank-simulation/internal/domain"
)

// Repository defines the set of methods for interacting with the ledger store.
type Repository interface {
	// Atomic ledger operations. Each runs as a single transaction; any error
	// rolls back every mutation made inside the unit.
	PerformDeposit(ctx context.Context, p DepositParams) (*domain.Transaction, error)
	PerformWithdrawal(ctx context.Context, p WithdrawalParams) (*domain.Transaction, error)
	PerformTransfer(ctx context.Context, p TransferParams) (*domain.TransferReceipt, error)

	// Read paths. These never mutate ledger state and run outside the atomic
	// units above (post-commit notification lookups use them).
	ListTransactionsByAccountNumber(ctx context.Context, accountNumber string) ([]domain.Transaction, error)
	FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error)
	FindCustomerByAccountID(ctx context.Context, accountID int64) (*domain.Customer, error)

	// Account-opening support.
	CreateCustomer(ctx context.Context, customer *domain.Customer) (*domain.Customer, error)
	CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error)
}

// DepositParams is the structured write request for a deposit. Named fields
// prevent positional-argument drift when the transactions table changes.
type DepositParams struct {
	AccountNumber string
	Amount        int64 // in paise, must be positive
	Description   string
	ModifiedBy    string
	Counterparty  string
	Mode          string
}

// WithdrawalParams is the structured write request for a withdrawal. MPIN is
// verified against the account owner's stored secret inside the same atomic
// unit as the balance mutation.
type WithdrawalParams struct {
	AccountNumber string
	Amount        int64 // in paise, must be positive
	MPIN          string
	Description   string
	ModifiedBy    string
	Counterparty  string
	Mode          string
}

// TransferParams is the structured write request for a two-leg transfer.
type TransferParams struct {
	SenderAccountNumber   string
	ReceiverAccountNumber string
	Amount                int64 // in paise, must be positive
	Mode                  string
	Description           string
	MPIN                  string
}
