/**
 * @description
 * This file defines the Account and Customer domain models for the ledger service.
 * Accounts hold the mutable balance that the ledger engine operates on; customers
 * own accounts and carry the contact details and MPIN secret used for debit
 * authorization and notification delivery.
 *
 * @notes
 * - Monetary values are stored as `int64` in the smallest currency unit (paise)
 *   to avoid floating-point inaccuracies with financial data.
 * - The MPIN is never serialized into API responses.
 */

package domain

// Account represents a customer's bank account. The balance is mutated
// exclusively by the ledger engine and is never negative.
type Account struct {
	ID            int64  `json:"account_id"`
	CustomerID    int64  `json:"customer_id"`
	AccountType   string `json:"account_type"`
	BankName      string `json:"bank_name"`
	Branch        string `json:"branch"`
	Balance       int64  `json:"balance"` // in paise
	Status        string `json:"status"`
	AccountNumber string `json:"account_number"` // e.g. ACC00001
	IFSCCode      string `json:"ifsc_code"`
	NameOnAccount string `json:"name_on_account"`
	PhoneLinked   string `json:"phone_linked_with_bank"`
	SavingAmount  int64  `json:"saving_amount"` // in paise
}

// Customer represents an account owner. Only the fields the ledger engine
// reads are modelled: identity, contact details for notifications, and the
// MPIN used to authorize debit operations.
type Customer struct {
	ID           int64  `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Username     string `json:"username"`
	Email        string `json:"email"`
	AadharNumber string `json:"aadhar_number"`
	PhoneNumber  string `json:"phone_number"`
	Status       string `json:"status"`
	MPIN         string `json:"-"` // exactly 4 digits when set
}
