/**
 * @description
 * This file implements the UTR reference generator. Every ledger record carries
 * a unique, human-shareable reference token of the form "UTR" followed by
 * twelve decimal digits. Uniqueness across the ledger's lifetime is backed by
 * the store's unique index; the insert path regenerates and retries on a
 * duplicate draw.
 *
 * @dependencies
 * - crypto/rand: Randomness source for reference tokens.
 */

package store

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var utrSpace = big.NewInt(1_000_000_000_000)

// NewUTR produces a transaction reference token, e.g. "UTR004928113775".
func NewUTR() string {
	n, err := rand.Int(rand.Reader, utrSpace)
	if err != nil {
		// crypto/rand only fails when the platform entropy source is broken;
		// there is no useful recovery for a ledger that cannot draw references.
		panic(fmt.Sprintf("utr generation: %v", err))
	}
	return fmt.Sprintf("UTR%012d", n)
}
