/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface.
 * Every money movement runs inside a single pgx transaction with `SELECT ... FOR
 * UPDATE` row locking, so the balance-check-then-update sequence is serialized
 * per account while operations on disjoint accounts proceed in parallel.
 *
 * @dependencies
 * - context, errors, fmt, strings: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Nithisha-bichala/bank-simulation/internal/domain"
)

var (
	ErrAccountNotFound         = errors.New("account not found")
	ErrCustomerNotFound        = errors.New("account owner not found")
	ErrMPINRequired            = errors.New("mpin required for this transaction")
	ErrInvalidMPIN             = errors.New("invalid mpin provided")
	ErrInsufficientFunds       = errors.New("insufficient funds")
	ErrDuplicateAccountNumber  = errors.New("account number already exists")
	ErrDuplicateCustomerDetail = errors.New("customer username, email or aadhar already registered")
)

// uniqueViolation is the PostgreSQL error code for unique constraint failures.
const uniqueViolation = "23505"

// utrInsertAttempts bounds the regenerate-and-retry loop for duplicate UTRs.
const utrInsertAttempts = 5

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db     *pgxpool.Pool
	newRef func() string
}

// NewPostgresRepository creates a new instance of PostgresRepository using the
// default UTR reference generator.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db, newRef: NewUTR}
}

// PerformDeposit credits an account and appends the matching ledger record in
// one atomic unit. The populated record, including the post-increment balance,
// is returned after commit.
func (r *PostgresRepository) PerformDeposit(ctx context.Context, p DepositParams) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	accountID, balance, err := lockAccount(ctx, tx, p.AccountNumber)
	if err != nil {
		return nil, err
	}

	newBalance := balance + p.Amount
	if err := setBalance(ctx, tx, accountID, newBalance); err != nil {
		return nil, err
	}

	record := &domain.Transaction{
		Amount:        p.Amount,
		AccountID:     accountID,
		AccountNumber: p.AccountNumber,
		BalanceAfter:  newBalance,
		Description:   p.Description,
		ModifiedBy:    p.ModifiedBy,
		Counterparty:  p.Counterparty,
		Kind:          domain.TransactionKindDeposit,
		Mode:          p.Mode,
	}
	if err := r.insertTransaction(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// PerformWithdrawal verifies the owner's MPIN, checks funds sufficiency before
// any mutation, then debits the account and appends the ledger record in one
// atomic unit.
func (r *PostgresRepository) PerformWithdrawal(ctx context.Context, p WithdrawalParams) (*domain.Transaction, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := verifyMPIN(ctx, tx, p.AccountNumber, p.MPIN); err != nil {
		return nil, err
	}

	accountID, balance, err := lockAccount(ctx, tx, p.AccountNumber)
	if err != nil {
		return nil, err
	}
	if balance < p.Amount {
		return nil, ErrInsufficientFunds
	}

	newBalance := balance - p.Amount
	if err := setBalance(ctx, tx, accountID, newBalance); err != nil {
		return nil, err
	}

	record := &domain.Transaction{
		Amount:        p.Amount,
		AccountID:     accountID,
		AccountNumber: p.AccountNumber,
		BalanceAfter:  newBalance,
		Description:   p.Description,
		ModifiedBy:    p.ModifiedBy,
		Counterparty:  p.Counterparty,
		Kind:          domain.TransactionKindWithdraw,
		Mode:          p.Mode,
	}
	if err := r.insertTransaction(ctx, tx, record); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

// PerformTransfer executes both legs of a transfer in a single atomic unit:
// sender MPIN check, funds check, debit before credit, and two ledger records
// with independent UTRs. A failure at any step rolls back both legs.
func (r *PostgresRepository) PerformTransfer(ctx context.Context, p TransferParams) (*domain.TransferReceipt, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := verifyMPIN(ctx, tx, p.SenderAccountNumber, p.MPIN); err != nil {
		return nil, err
	}

	// Lock both rows in account-number order so two opposing transfers
	// cannot deadlock on each other.
	var senderID, senderBalance, receiverID, receiverBalance int64
	if p.SenderAccountNumber < p.ReceiverAccountNumber {
		senderID, senderBalance, err = lockAccount(ctx, tx, p.SenderAccountNumber)
		if err != nil {
			return nil, fmt.Errorf("sender account %s: %w", p.SenderAccountNumber, err)
		}
		receiverID, receiverBalance, err = lockAccount(ctx, tx, p.ReceiverAccountNumber)
		if err != nil {
			return nil, fmt.Errorf("receiver account %s: %w", p.ReceiverAccountNumber, err)
		}
	} else {
		receiverID, receiverBalance, err = lockAccount(ctx, tx, p.ReceiverAccountNumber)
		if err != nil {
			return nil, fmt.Errorf("receiver account %s: %w", p.ReceiverAccountNumber, err)
		}
		senderID, senderBalance, err = lockAccount(ctx, tx, p.SenderAccountNumber)
		if err != nil {
			return nil, fmt.Errorf("sender account %s: %w", p.SenderAccountNumber, err)
		}
	}

	if senderBalance < p.Amount {
		return nil, ErrInsufficientFunds
	}

	// Debit first, then credit. Both updates sit inside the same unit so a
	// failure on either side rolls back both.
	senderAfter := senderBalance - p.Amount
	receiverAfter := receiverBalance + p.Amount
	if err := setBalance(ctx, tx, senderID, senderAfter); err != nil {
		return nil, err
	}
	if err := setBalance(ctx, tx, receiverID, receiverAfter); err != nil {
		return nil, err
	}

	debitDesc := "Transfer to " + p.ReceiverAccountNumber
	creditDesc := "Received from " + p.SenderAccountNumber
	if p.Description != "" {
		debitDesc += ": " + p.Description
		creditDesc += ": " + p.Description
	}

	debit := &domain.Transaction{
		Amount:        p.Amount,
		AccountID:     senderID,
		AccountNumber: p.SenderAccountNumber,
		BalanceAfter:  senderAfter,
		Description:   debitDesc,
		ModifiedBy:    "System",
		Counterparty:  p.ReceiverAccountNumber,
		Kind:          domain.TransactionKindWithdraw,
		Mode:          p.Mode,
	}
	if err := r.insertTransaction(ctx, tx, debit); err != nil {
		return nil, err
	}

	credit := &domain.Transaction{
		Amount:        p.Amount,
		AccountID:     receiverID,
		AccountNumber: p.ReceiverAccountNumber,
		BalanceAfter:  receiverAfter,
		Description:   creditDesc,
		ModifiedBy:    "System",
		Counterparty:  p.SenderAccountNumber,
		Kind:          domain.TransactionKindDeposit,
		Mode:          p.Mode,
	}
	if err := r.insertTransaction(ctx, tx, credit); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &domain.TransferReceipt{Debit: debit, Credit: credit}, nil
}

// ListTransactionsByAccountNumber retrieves all ledger records for an account
// in the store's natural retrieval order, each denormalized with the account
// number. Pure read path; unknown accounts yield an empty slice.
func (r *PostgresRepository) ListTransactionsByAccountNumber(ctx context.Context, accountNumber string) ([]domain.Transaction, error) {
	query := `
		SELECT t.transaction_id, t.utr_number, t.date_of_transaction, t.transaction_amount,
		       t.debited_date, t.account_id, a.account_number, t.balance_amount,
		       COALESCE(t.description, ''), COALESCE(t.modified_by, ''), COALESCE(t.receiver_by, ''),
		       t.transaction_type, COALESCE(t.mode_of_transaction, '')
		FROM transactions t
		JOIN accounts a ON a.account_id = t.account_id
		WHERE a.account_number = $1
	`
	rows, err := r.db.Query(ctx, query, accountNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		var record domain.Transaction
		err := rows.Scan(
			&record.ID, &record.UTRNumber, &record.ExecutedAt, &record.Amount,
			&record.DebitedAt, &record.AccountID, &record.AccountNumber, &record.BalanceAfter,
			&record.Description, &record.ModifiedBy, &record.Counterparty,
			&record.Kind, &record.Mode,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, record)
	}
	return transactions, rows.Err()
}

// FindAccountByNumber retrieves an account by its external account number.
func (r *PostgresRepository) FindAccountByNumber(ctx context.Context, accountNumber string) (*domain.Account, error) {
	var account domain.Account
	query := `
		SELECT account_id, customer_id, account_type, bank_name, branch, balance, status,
		       account_number, ifsc_code, name_on_account, phone_linked, saving_amount
		FROM accounts
		WHERE account_number = $1
	`
	err := r.db.QueryRow(ctx, query, accountNumber).Scan(
		&account.ID, &account.CustomerID, &account.AccountType, &account.BankName,
		&account.Branch, &account.Balance, &account.Status, &account.AccountNumber,
		&account.IFSCCode, &account.NameOnAccount, &account.PhoneLinked, &account.SavingAmount,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindCustomerByAccountID resolves the owner of an account. Used by the
// post-commit notification path on a fresh pool connection.
func (r *PostgresRepository) FindCustomerByAccountID(ctx context.Context, accountID int64) (*domain.Customer, error) {
	var customer domain.Customer
	query := `
		SELECT c.customer_id, c.customer_name, c.username, c.email,
		       COALESCE(c.aadhar_number, ''), COALESCE(c.phone_number, ''), c.status
		FROM customers c
		JOIN accounts a ON a.customer_id = c.customer_id
		WHERE a.account_id = $1
	`
	err := r.db.QueryRow(ctx, query, accountID).Scan(
		&customer.ID, &customer.CustomerName, &customer.Username, &customer.Email,
		&customer.AadharNumber, &customer.PhoneNumber, &customer.Status,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// CreateCustomer inserts a new customer record and returns it with the
// store-assigned id.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, customer *domain.Customer) (*domain.Customer, error) {
	query := `
		INSERT INTO customers (customer_name, username, email, aadhar_number, phone_number, status, mpin)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6, NULLIF($7, ''))
		RETURNING customer_id
	`
	status := customer.Status
	if status == "" {
		status = "active"
	}
	err := r.db.QueryRow(ctx, query,
		customer.CustomerName, customer.Username, customer.Email,
		customer.AadharNumber, customer.PhoneNumber, status, customer.MPIN,
	).Scan(&customer.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateCustomerDetail
		}
		return nil, err
	}
	customer.Status = status
	return customer, nil
}

// CreateAccount inserts a new account record and returns it with the
// store-assigned id. The account number is caller-assigned and unique.
func (r *PostgresRepository) CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	query := `
		INSERT INTO accounts (customer_id, account_type, bank_name, branch, balance, status,
		                      account_number, ifsc_code, name_on_account, phone_linked, saving_amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING account_id
	`
	status := account.Status
	if status == "" {
		status = "active"
	}
	err := r.db.QueryRow(ctx, query,
		account.CustomerID, account.AccountType, account.BankName, account.Branch,
		account.Balance, status, account.AccountNumber, account.IFSCCode,
		account.NameOnAccount, account.PhoneLinked, account.SavingAmount,
	).Scan(&account.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrDuplicateAccountNumber
		}
		return nil, err
	}
	account.Status = status
	return account, nil
}

// verifyMPIN compares the supplied secret against the one stored for the
// account's owner, inside the same transaction as the balance mutation it
// authorizes. The three failure modes are distinct so callers can react
// precisely.
func verifyMPIN(ctx context.Context, tx pgx.Tx, accountNumber, mpin string) error {
	if mpin == "" {
		return ErrMPINRequired
	}
	var stored *string
	query := `
		SELECT c.mpin
		FROM customers c
		JOIN accounts a ON a.customer_id = c.customer_id
		WHERE a.account_number = $1
	`
	err := tx.QueryRow(ctx, query, accountNumber).Scan(&stored)
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrCustomerNotFound
		}
		return err
	}
	if stored == nil || *stored != mpin {
		return ErrInvalidMPIN
	}
	return nil
}

// lockAccount resolves an account number to its id and current balance while
// taking a row lock, preventing lost updates between the balance check and the
// balance write.
func lockAccount(ctx context.Context, tx pgx.Tx, accountNumber string) (int64, int64, error) {
	var accountID, balance int64
	err := tx.QueryRow(ctx,
		"SELECT account_id, balance FROM accounts WHERE account_number = $1 FOR UPDATE",
		accountNumber,
	).Scan(&accountID, &balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, 0, ErrAccountNotFound
		}
		return 0, 0, err
	}
	return accountID, balance, nil
}

func setBalance(ctx context.Context, tx pgx.Tx, accountID, balance int64) error {
	result, err := tx.Exec(ctx, "UPDATE accounts SET balance = $1 WHERE account_id = $2", balance, accountID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// insertTransaction appends one immutable ledger record, generating a fresh
// UTR per attempt. Uniqueness is enforced by the store; a duplicate draw is
// retried under a savepoint so the surrounding transaction stays usable, and
// the operation is never silently dropped.
func (r *PostgresRepository) insertTransaction(ctx context.Context, tx pgx.Tx, record *domain.Transaction) error {
	query := `
		INSERT INTO transactions (
			utr_number, transaction_amount, account_id, balance_amount,
			description, modified_by, receiver_by, transaction_type, mode_of_transaction
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING transaction_id, date_of_transaction, debited_date
	`
	var lastErr error
	for attempt := 0; attempt < utrInsertAttempts; attempt++ {
		record.UTRNumber = r.newRef()

		savepoint, err := tx.Begin(ctx)
		if err != nil {
			return err
		}
		err = savepoint.QueryRow(ctx, query,
			record.UTRNumber, record.Amount, record.AccountID, record.BalanceAfter,
			record.Description, record.ModifiedBy, record.Counterparty, record.Kind, record.Mode,
		).Scan(&record.ID, &record.ExecutedAt, &record.DebitedAt)
		if err == nil {
			return savepoint.Commit(ctx)
		}
		_ = savepoint.Rollback(ctx)

		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && strings.Contains(pgErr.ConstraintName, "utr") {
			lastErr = err
			continue
		}
		return err
	}
	return fmt.Errorf("utr generation exhausted after %d attempts: %w", utrInsertAttempts, lastErr)
}
