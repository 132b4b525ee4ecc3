/**
 * @description
 * This file defines the Transaction domain model and the request DTOs for the
 * ledger engine's money movement operations. A Transaction is the immutable
 * audit record paired with every balance mutation; a transfer produces two of
 * them, one per leg.
 *
 * @notes
 * - Using distinct types for API requests and persisted records keeps the
 *   write path structured: the store binds named fields, never positional
 *   argument lists that drift when columns change.
 * - Amounts are `int64` in the smallest currency unit (paise).
 */

package domain

import "time"

// Transaction kinds recorded in the ledger.
const (
	TransactionKindDeposit  = "deposit"
	TransactionKindWithdraw = "withdraw"
)

// Transaction represents one immutable ledger record. BalanceAfter is the
// account's balance immediately following this transaction's application, in
// the account's local commit order.
type Transaction struct {
	ID            int64     `json:"transaction_id"`
	UTRNumber     string    `json:"utr_number"`
	ExecutedAt    time.Time `json:"date_of_transaction"`
	Amount        int64     `json:"transaction_amount"` // in paise, always positive
	DebitedAt     time.Time `json:"debited_date"`
	AccountID     int64     `json:"account_id"`
	AccountNumber string    `json:"account_number,omitempty"`
	BalanceAfter  int64     `json:"balance_amount"` // in paise
	Description   string    `json:"description"`
	ModifiedBy    string    `json:"modified_by"`
	Counterparty  string    `json:"receiver_by"`
	Kind          string    `json:"transaction_type"`    // deposit | withdraw
	Mode          string    `json:"mode_of_transaction"` // e.g. UPI, NEFT, ATM
}

// TransferReceipt carries the two correlated ledger records produced by a
// single transfer: the debit leg on the sender's account and the credit leg
// on the receiver's. The legs never share a UTR.
type TransferReceipt struct {
	Debit  *Transaction `json:"debit"`
	Credit *Transaction `json:"credit"`
}

// DepositRequest is the DTO for crediting funds into an account. Deposits
// require no MPIN: crediting funds needs no authorization.
type DepositRequest struct {
	AccountNumber string `json:"account_number"`
	Amount        int64  `json:"transaction_amount"` // in paise
	Description   string `json:"description"`
	ModifiedBy    string `json:"modified_by"`
	Counterparty  string `json:"receiver_by"`
	Mode          string `json:"mode_of_transaction"`
}

// WithdrawRequest is the DTO for debiting funds from an account. The owner's
// MPIN is mandatory for every debit-class operation.
type WithdrawRequest struct {
	AccountNumber string `json:"account_number"`
	Amount        int64  `json:"transaction_amount"` // in paise
	MPIN          string `json:"mpin"`
	Description   string `json:"description"`
	ModifiedBy    string `json:"modified_by"`
	Counterparty  string `json:"receiver_by"`
	Mode          string `json:"mode_of_transaction"`
}

// TransferRequest is the DTO for moving funds between two accounts held in
// this ledger. The sender's MPIN authorizes the debit leg.
type TransferRequest struct {
	SenderAccountNumber   string `json:"sender_account_number"`
	ReceiverAccountNumber string `json:"receiver_account_number"`
	Amount                int64  `json:"transaction_amount"` // in paise
	Mode                  string `json:"mode_of_transaction"`
	Description           string `json:"description"`
	MPIN                  string `json:"mpin"`
}
