// Package payment resolves client-supplied payment references to
// on-ledger transactions and verifies them against the expected
// amount and recipient.  Nothing in this package mutates state; the
// reservation engine is responsible for consuming a verified payment
// exactly once.
package payment

import (
	"context"
	"encoding/base64"
	"errors"
	"sort"
	"strings"

	"github.com/parkline/tonpark/internal/indexer"
	"github.com/parkline/tonpark/internal/model"
)

// Indexer is the slice of the indexer client the resolver needs.
// Declared here so tests can substitute a stub.
type Indexer interface {
	TransactionByHash(ctx context.Context, hash string) (*indexer.Transaction, error)
	DecodeMessage(ctx context.Context, blob string) (string, error)
	ListIncoming(ctx context.Context, account string, limit int) ([]indexer.Transaction, error)
}

// refKind is the explicit classification of a payment reference.
// Each kind has its own resolution path so the paths stay
// independently testable.
type refKind int

const (
	refKindUnknown refKind = iota // neither a hash nor a message blob
	refKindHash                   // compact transaction hash (hex or base64)
	refKindBlob                   // encoded signed-message blob
)

// classifyRef decides how a reference should be resolved.  Compact
// hashes are 64 hex characters or 44 base64 characters covering 32
// bytes; anything long and base64-like is treated as a message blob.
func classifyRef(ref model.PaymentReference) refKind {
	s := strings.TrimSpace(string(ref))
	switch {
	case s == "":
		return refKindUnknown
	case len(s) == 64 && isHex(s):
		return refKindHash
	case len(s) == 44 && isBase64(s):
		return refKindHash
	case len(s) >= 100 && isBase64(s):
		return refKindBlob
	default:
		return refKindUnknown
	}
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

func isBase64(s string) bool {
	trimmed := strings.TrimRight(s, "=")
	for _, r := range trimmed {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		case r == '+', r == '/', r == '-', r == '_':
		default:
			return false
		}
	}
	// Reject strings that only look base64-ish but cannot decode.
	if _, err := base64.RawURLEncoding.DecodeString(strings.Map(toURLAlphabet, trimmed)); err != nil {
		return false
	}
	return true
}

func toURLAlphabet(r rune) rune {
	switch r {
	case '+':
		return '-'
	case '/':
		return '_'
	}
	return r
}

// Hint carries the expected payment parameters the resolver needs for
// the bounded-window fallback search.
type Hint struct {
	Recipient  string // expected recipient account, any textual encoding
	AmountNano int64  // expected amount in nanotons
}

// searchWindow bounds the fallback scan over recent incoming
// transactions.
const searchWindow = 20

// Resolver turns an opaque payment reference into a concrete ledger
// transaction.  It never retries: a miss is reported as
// indexer.ErrTxNotFound and the caller decides when to try again,
// since payments may simply not be indexed yet.
type Resolver struct {
	idx       Indexer
	tolerance int64
}

// NewResolver builds a resolver over the given indexer.  tolerance is
// the fixed absolute amount slack, in nanotons, used by the fallback
// amount search.
func NewResolver(idx Indexer, tolerance int64) *Resolver {
	return &Resolver{idx: idx, tolerance: tolerance}
}

// Resolve classifies the reference and resolves it to a transaction.
// Failure modes are distinguished: indexer.ErrUnavailable means the
// indexer could not be reached (retry later); indexer.ErrTxNotFound
// covers both a valid hash that is not indexed yet and a malformed
// reference.
func (r *Resolver) Resolve(ctx context.Context, ref model.PaymentReference, hint Hint) (*indexer.Transaction, error) {
	switch classifyRef(ref) {
	case refKindHash:
		return r.idx.TransactionByHash(ctx, strings.TrimSpace(string(ref)))
	case refKindBlob:
		return r.resolveBlob(ctx, strings.TrimSpace(string(ref)), hint)
	default:
		return nil, indexer.ErrTxNotFound
	}
}

// resolveBlob decodes the message blob to a hash and fetches the
// transaction.  When the indexer cannot decode the blob, it falls
// back to scanning the recipient's recent incoming transactions for
// one whose amount is within tolerance of the expected amount.
func (r *Resolver) resolveBlob(ctx context.Context, blob string, hint Hint) (*indexer.Transaction, error) {
	hash, err := r.idx.DecodeMessage(ctx, blob)
	switch {
	case err == nil:
		return r.idx.TransactionByHash(ctx, hash)
	case errors.Is(err, indexer.ErrUnavailable):
		return nil, err
	}
	// Blob did not yield a usable hash; fall back to the amount
	// search.
	return r.searchByAmount(ctx, hint)
}

// searchByAmount fetches the most recent incoming transactions for
// the expected recipient and selects the one whose amount is within
// the fixed absolute tolerance of the expected amount.  The tolerance
// absorbs network-fee rounding, which is roughly constant in absolute
// terms.  Ties break to the most recent transaction.
func (r *Resolver) searchByAmount(ctx context.Context, hint Hint) (*indexer.Transaction, error) {
	if hint.Recipient == "" || hint.AmountNano <= 0 {
		return nil, indexer.ErrTxNotFound
	}
	txs, err := r.idx.ListIncoming(ctx, hint.Recipient, searchWindow)
	if err != nil {
		return nil, err
	}
	candidates := make([]indexer.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !tx.Incoming || tx.In == nil {
			continue
		}
		if absDiff(tx.In.ValueNano, hint.AmountNano) <= r.tolerance {
			candidates = append(candidates, tx)
		}
	}
	if len(candidates) == 0 {
		return nil, indexer.ErrTxNotFound
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Utime != candidates[j].Utime {
			return candidates[i].Utime > candidates[j].Utime
		}
		return candidates[i].LogicalTime > candidates[j].LogicalTime
	})
	best := candidates[0]
	return &best, nil
}

func absDiff(a, b int64) int64 {
	if a > b {
		return a - b
	}
	return b - a
}
