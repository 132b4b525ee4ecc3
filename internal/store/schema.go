/**
 * @description
 * This file provisions the ledger schema. The constraints here back the
 * engine's invariants at the store level: balances can never go negative,
 * account numbers and UTRs are unique, MPINs are exactly four digits, and
 * every transaction row references an existing account.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/jackc/pgx/v5/pgxpool: Connection pool used to run DDL.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		customer_id   BIGSERIAL PRIMARY KEY,
		customer_name TEXT NOT NULL,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		aadhar_number TEXT UNIQUE,
		phone_number  TEXT,
		status        TEXT NOT NULL DEFAULT 'active',
		mpin          CHAR(4) CHECK (mpin ~ '^[0-9]{4}$')
	)`,
	`CREATE TABLE IF NOT EXISTS accounts (
		account_id      BIGSERIAL PRIMARY KEY,
		customer_id     BIGINT NOT NULL REFERENCES customers(customer_id),
		account_type    TEXT NOT NULL DEFAULT 'savings',
		bank_name       TEXT NOT NULL DEFAULT '',
		branch          TEXT NOT NULL DEFAULT '',
		balance         BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		status          TEXT NOT NULL DEFAULT 'active',
		account_number  VARCHAR(8) NOT NULL UNIQUE CHECK (account_number ~ '^[A-Z]{3}[0-9]{5}$'),
		ifsc_code       TEXT NOT NULL DEFAULT '',
		name_on_account TEXT NOT NULL DEFAULT '',
		phone_linked    TEXT NOT NULL DEFAULT '',
		saving_amount   BIGINT NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		transaction_id      BIGSERIAL PRIMARY KEY,
		utr_number          VARCHAR(15) NOT NULL CONSTRAINT transactions_utr_number_key UNIQUE,
		date_of_transaction TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		transaction_amount  BIGINT NOT NULL CHECK (transaction_amount > 0),
		debited_date        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		account_id          BIGINT NOT NULL REFERENCES accounts(account_id),
		balance_amount      BIGINT NOT NULL,
		description         TEXT,
		modified_by         TEXT,
		receiver_by         TEXT,
		transaction_type    TEXT NOT NULL CHECK (transaction_type IN ('deposit', 'withdraw')),
		mode_of_transaction TEXT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_account_id ON transactions(account_id)`,
}

// EnsureSchema creates the ledger tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
