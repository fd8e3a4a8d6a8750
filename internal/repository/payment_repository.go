package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"

	"github.com/parkline/tonpark/internal/model"
)

// mysqlDupEntry is the MySQL error number for a duplicate key
// violation.
const mysqlDupEntry = 1062

// PaymentRepo records consumed ledger payments.  The table carries a
// unique key on tx_hash, which makes Consume the atomic replay guard:
// of two concurrent reservations presenting the same hash, exactly
// one insert succeeds.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the provided database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// Consume records that the payment unlocked a reservation on the
// given space.  Returns ErrPaymentConsumed when the hash was already
// used.
func (r *PaymentRepo) Consume(ctx context.Context, p *model.VerifiedPayment, spaceID string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO consumed_payments (tx_hash, space_id, amount_nano, sender, recipient, ledger_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.TxHash, spaceID, p.AmountNano, p.Sender, p.Recipient, p.LedgerTime.UTC())
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) && mysqlErr.Number == mysqlDupEntry {
		return ErrPaymentConsumed
	}
	return err
}

// Release removes a consumed hash again.  Only the engine's rollback
// path calls this, when a reservation failed to persist after the
// hash was recorded.
func (r *PaymentRepo) Release(ctx context.Context, txHash string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM consumed_payments WHERE tx_hash = ?`, txHash)
	return err
}
