package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/parkline/tonpark/internal/indexer"
	"github.com/parkline/tonpark/internal/model"
	"github.com/parkline/tonpark/internal/ton"
)

// Status is the outcome category of a verification attempt.
type Status int

const (
	// StatusVerified means the transaction matched every expectation
	// and the attached payment may unlock a reservation.
	StatusVerified Status = iota
	// StatusRejected means the transaction is terminal for this
	// reference: wrong direction, recipient, amount or sender.
	StatusRejected
	// StatusPending means verification could not complete yet (not
	// indexed, or indexer unreachable) and the caller should retry.
	StatusPending
)

// Result carries the verification outcome.  Payment is non-nil only
// when Status is StatusVerified; Reason is set for rejected and
// pending results and is safe to surface to the end user.
type Result struct {
	Status  Status
	Reason  string
	Payment *model.VerifiedPayment
}

// Expectation is what a payment must satisfy to unlock a reservation.
type Expectation struct {
	Ref        model.PaymentReference // client-supplied reference
	AmountNano int64                  // expected amount in nanotons
	Recipient  string                 // expected recipient, any encoding
	Sender     string                 // optional expected sender, any encoding
}

// DefaultToleranceNano is the fixed absolute slack between expected
// and observed amounts: 0.01 TON, covering network-fee variance.  The
// check is symmetric on purpose; see the product note in DESIGN.md.
const DefaultToleranceNano int64 = 10_000_000

// ReasonIndexerUnavailable marks a pending result caused by an indexer
// outage rather than indexing lag.  Callers that distinguish the two
// (the HTTP layer answers 503 instead of 409) compare against it.
const ReasonIndexerUnavailable = "indexer unavailable"

// Verifier decides whether a payment reference proves a payment that
// satisfies an expectation.  It is stateless and replay-safe only in
// the sense that it never records anything: the reservation engine
// tracks consumed hashes.
type Verifier struct {
	resolver  *Resolver
	tolerance int64
}

// NewVerifier builds a verifier.  tolerance <= 0 selects
// DefaultToleranceNano.
func NewVerifier(idx Indexer, tolerance int64) *Verifier {
	if tolerance <= 0 {
		tolerance = DefaultToleranceNano
	}
	return &Verifier{resolver: NewResolver(idx, tolerance), tolerance: tolerance}
}

// Verify resolves the reference and applies the acceptance rules in
// order, short-circuiting on the first failure.  Resolution problems
// yield a pending result so the client retries instead of seeing a
// hard failure for a payment that merely is not indexed yet.
func (v *Verifier) Verify(ctx context.Context, exp Expectation) Result {
	tx, err := v.resolver.Resolve(ctx, exp.Ref, Hint{Recipient: exp.Recipient, AmountNano: exp.AmountNano})
	if err != nil {
		if errors.Is(err, indexer.ErrUnavailable) {
			return Result{Status: StatusPending, Reason: ReasonIndexerUnavailable}
		}
		return Result{Status: StatusPending, Reason: "not yet indexed"}
	}

	if !tx.Incoming {
		return Result{Status: StatusRejected, Reason: "wrong direction"}
	}
	if tx.In == nil {
		return Result{Status: StatusRejected, Reason: "malformed transaction"}
	}
	// Recipient must match exactly; this is the fraud guard.  Both
	// sides are folded to canonical form so the textual encoding the
	// indexer happens to return cannot cause a false mismatch.
	wantTo := ton.Normalize(exp.Recipient)
	if wantTo.Empty() || ton.Normalize(tx.In.Destination) != wantTo {
		return Result{Status: StatusRejected, Reason: "wrong recipient"}
	}
	if diff := absDiff(tx.In.ValueNano, exp.AmountNano); diff > v.tolerance {
		return Result{
			Status: StatusRejected,
			Reason: fmt.Sprintf("amount mismatch: got %d nanoton, expected %d", tx.In.ValueNano, exp.AmountNano),
		}
	}
	if exp.Sender != "" && ton.Normalize(tx.In.Source) != ton.Normalize(exp.Sender) {
		return Result{Status: StatusRejected, Reason: "sender mismatch"}
	}

	return Result{
		Status: StatusVerified,
		Payment: &model.VerifiedPayment{
			TxHash:     tx.Hash,
			AmountNano: tx.In.ValueNano,
			Sender:     string(ton.Normalize(tx.In.Source)),
			Recipient:  string(wantTo),
			LedgerTime: tx.Time(),
		},
	}
}
