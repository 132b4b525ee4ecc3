/**
 * @description
 * This file contains the core business logic for the ledger service. The
 * `Service` struct is the ledger engine: it validates inputs, delegates each
 * money movement to the repository's atomic operations, and dispatches
 * best-effort notifications after the store has durably committed.
 *
 * Key features:
 * - Implements deposit, withdrawal, and two-leg transfer use cases.
 * - Defensively rejects non-positive amounts before touching the store.
 * - Publishes credit/debit notification events to RabbitMQ post-commit;
 *   a notification failure is logged and swallowed, never surfaced to the
 *   caller and never able to roll back a committed transaction.
 *
 * @dependencies
 * - context, errors, fmt, log, regexp: Standard Go libraries.
 * - internal/domain, internal/store: For domain models and data access.
 * - pkg/rabbitmq: For the outbound notification sink.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"

	"github.com/Nithisha-bichala/bank-simulation/internal/domain"
	"github.com/Nithisha-bichala/bank-simulation/internal/store"
	"github.com/Nithisha-bichala/bank-simulation/pkg/rabbitmq"
)

var (
	ErrInvalidAmount        = errors.New("transaction amount must be positive")
	ErrInvalidAccountNumber = errors.New("account number must be 3 uppercase letters followed by 5 digits")
	ErrInvalidMPINFormat    = errors.New("mpin must be exactly 4 digits")
	ErrSameAccountTransfer  = errors.New("sender and receiver accounts must differ")
)

var (
	accountNumberPattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{5}$`)
	mpinPattern          = regexp.MustCompile(`^[0-9]{4}$`)
)

// Service provides the core business logic for ledger transactions.
type Service struct {
	repo     store.Repository
	notifier rabbitmq.Publisher
	exchange string
}

// NewService creates a new ledger service instance. The notifier may be nil,
// in which case notifications are skipped entirely.
func NewService(repo store.Repository, notifier rabbitmq.Publisher, exchange string) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		exchange: exchange,
	}
}

// Deposit credits an account and returns the populated ledger record. No MPIN
// is required: crediting funds needs no authorization.
func (s *Service) Deposit(ctx context.Context, req domain.DepositRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	params := store.DepositParams{
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		Description:   req.Description,
		ModifiedBy:    defaultLabel(req.ModifiedBy, "System"),
		Counterparty:  defaultLabel(req.Counterparty, "Bank"),
		Mode:          req.Mode,
	}
	record, err := s.repo.PerformDeposit(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("deposit on %s: %w", req.AccountNumber, err)
	}

	log.Printf("level=info component=ledger op=deposit account=%s amount=%d utr=%s", req.AccountNumber, req.Amount, record.UTRNumber)
	s.dispatchNotification(ctx, rabbitmq.NotificationKindCredit, record)
	return record, nil
}

// Withdraw debits an account after verifying the owner's MPIN and funds
// sufficiency, and returns the populated ledger record.
func (s *Service) Withdraw(ctx context.Context, req domain.WithdrawRequest) (*domain.Transaction, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	params := store.WithdrawalParams{
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		MPIN:          req.MPIN,
		Description:   req.Description,
		ModifiedBy:    defaultLabel(req.ModifiedBy, "System"),
		Counterparty:  defaultLabel(req.Counterparty, "ATM"),
		Mode:          req.Mode,
	}
	record, err := s.repo.PerformWithdrawal(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("withdrawal on %s: %w", req.AccountNumber, err)
	}

	log.Printf("level=info component=ledger op=withdraw account=%s amount=%d utr=%s", req.AccountNumber, req.Amount, record.UTRNumber)
	s.dispatchNotification(ctx, rabbitmq.NotificationKindDebit, record)
	return record, nil
}

// Transfer moves funds between two accounts in one atomic unit and returns
// both ledger records. After commit, the sender's owner gets a debit
// notification and the receiver's owner a credit notification, each
// independently best-effort.
func (s *Service) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferReceipt, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if req.SenderAccountNumber == req.ReceiverAccountNumber {
		return nil, ErrSameAccountTransfer
	}

	params := store.TransferParams{
		SenderAccountNumber:   req.SenderAccountNumber,
		ReceiverAccountNumber: req.ReceiverAccountNumber,
		Amount:                req.Amount,
		Mode:                  req.Mode,
		Description:           req.Description,
		MPIN:                  req.MPIN,
	}
	receipt, err := s.repo.PerformTransfer(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("transfer %s -> %s: %w", req.SenderAccountNumber, req.ReceiverAccountNumber, err)
	}

	log.Printf("level=info component=ledger op=transfer sender=%s receiver=%s amount=%d debit_utr=%s credit_utr=%s",
		req.SenderAccountNumber, req.ReceiverAccountNumber, req.Amount, receipt.Debit.UTRNumber, receipt.Credit.UTRNumber)

	s.dispatchNotification(ctx, rabbitmq.NotificationKindDebit, receipt.Debit)
	s.dispatchNotification(ctx, rabbitmq.NotificationKindCredit, receipt.Credit)
	return receipt, nil
}

// ListTransactions returns the full ledger history for an account in the
// store's retrieval order. Pure read path.
func (s *Service) ListTransactions(ctx context.Context, accountNumber string) ([]domain.Transaction, error) {
	return s.repo.ListTransactionsByAccountNumber(ctx, accountNumber)
}

// GetAccount retrieves an account by its external number.
func (s *Service) GetAccount(ctx context.Context, accountNumber string) (*domain.Account, error) {
	return s.repo.FindAccountByNumber(ctx, accountNumber)
}

// OpenCustomer registers a new customer after validating the MPIN shape.
func (s *Service) OpenCustomer(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	if customer.MPIN != "" && !mpinPattern.MatchString(customer.MPIN) {
		return nil, ErrInvalidMPINFormat
	}
	return s.repo.CreateCustomer(ctx, customer)
}

// OpenAccount creates a new account after validating the account number shape.
// The balance starts at whatever opening amount the caller supplies; further
// mutation happens only through ledger operations.
func (s *Service) OpenAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if !accountNumberPattern.MatchString(account.AccountNumber) {
		return nil, ErrInvalidAccountNumber
	}
	if account.Balance < 0 {
		return nil, ErrInvalidAmount
	}
	return s.repo.CreateAccount(ctx, account)
}

// dispatchNotification resolves the owner of the transaction's account and
// publishes a notification event. This runs after the ledger has committed;
// every failure on this path is logged and discarded.
func (s *Service) dispatchNotification(ctx context.Context, kind string, record *domain.Transaction) {
	if s.notifier == nil {
		return
	}

	customer, err := s.repo.FindCustomerByAccountID(ctx, record.AccountID)
	if err != nil {
		log.Printf("level=warn component=ledger msg=\"notification skipped; owner lookup failed\" account=%s utr=%s err=%v",
			record.AccountNumber, record.UTRNumber, err)
		return
	}

	event := rabbitmq.TransactionNotification{
		Kind:          kind,
		CustomerName:  customer.CustomerName,
		Email:         customer.Email,
		AccountNumber: record.AccountNumber,
		Amount:        record.Amount,
		BalanceAfter:  record.BalanceAfter,
		UTRNumber:     record.UTRNumber,
		Description:   record.Description,
	}
	if err := s.notifier.PublishTransactionNotification(ctx, s.exchange, event); err != nil {
		log.Printf("level=warn component=ledger msg=\"notification publish failed\" kind=%s account=%s utr=%s err=%v",
			kind, record.AccountNumber, record.UTRNumber, err)
	}
}

func defaultLabel(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
