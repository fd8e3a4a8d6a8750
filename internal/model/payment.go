package model

import "time"

// PaymentReference is the opaque string a client supplies to identify
// a ledger transaction.  It may be a transaction hash or an encoded
// signed-message blob; it is never trusted until resolved against the
// indexer.
type PaymentReference string

// VerifiedPayment is the outcome of successful payment verification.
// It is immutable once produced and unlocks exactly one reservation:
// the engine records the hash as consumed before mutating any space,
// so a second reservation presenting the same hash is rejected.
//
// Fields:
//  TxHash     – ledger transaction hash.
//  AmountNano – transferred amount in nanotons.
//  Sender     – normalized sender account.
//  Recipient  – normalized recipient account.
//  LedgerTime – block timestamp of the transaction.
type VerifiedPayment struct {
	TxHash     string    // consumed_payments.tx_hash
	AmountNano int64     // consumed_payments.amount_nano
	Sender     string    // consumed_payments.sender
	Recipient  string    // consumed_payments.recipient
	LedgerTime time.Time // consumed_payments.ledger_time
}
