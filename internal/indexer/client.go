// Package indexer provides the HTTP client for the external ledger
// indexer.  The indexer is an untrusted, eventually consistent view
// of the chain: a transaction that exists may not be indexed yet, so
// callers must distinguish "not found" from "indexer unreachable" and
// decide themselves whether to retry.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sentinel errors returned by the client.  Handlers and the payment
// layer branch on these with errors.Is.
var (
	// ErrTxNotFound means the indexer answered but has no record of
	// the transaction.  It may simply not be indexed yet.
	ErrTxNotFound = errors.New("transaction not found")
	// ErrMalformed means the indexer rejected the request payload,
	// e.g. an undecodable message blob.
	ErrMalformed = errors.New("malformed indexer request")
	// ErrUnavailable covers network failures, timeouts and indexer
	// server errors.  Callers should retry later, never treat it as
	// a payment rejection.
	ErrUnavailable = errors.New("indexer unavailable")
)

// Message is the inbound or outbound value transfer attached to a
// transaction.
type Message struct {
	Source      string `json:"source"`      // sender account, any textual encoding
	Destination string `json:"destination"` // recipient account
	ValueNano   int64  `json:"value"`       // transferred amount in nanotons
	Comment     string `json:"comment"`     // attached text payload, may be empty
}

// Transaction is the indexer's record of one ledger transaction.
type Transaction struct {
	Hash        string   `json:"hash"`          // transaction hash as reported by the indexer
	Account     string   `json:"account"`       // account the transaction belongs to
	Incoming    bool     `json:"incoming"`      // true when value flowed into the account
	In          *Message `json:"in_msg"`        // inbound message, nil when absent
	OutCount    int      `json:"out_msg_count"` // number of outbound messages
	LogicalTime uint64   `json:"lt"`            // ledger logical time
	Utime       int64    `json:"utime"`         // block unix timestamp
}

// Time returns the block timestamp as a time.Time in UTC.
func (t *Transaction) Time() time.Time { return time.Unix(t.Utime, 0).UTC() }

// DefaultTimeout bounds every indexer round-trip unless the caller
// supplies their own http.Client.
const DefaultTimeout = 10 * time.Second

// Config configures the indexer client.
type Config struct {
	// URL is the base URL of the indexer API.
	URL string
	// APIKey is sent as the X-API-Key header when non-empty.
	APIKey string
	// HTTPClient overrides the default client (optional).
	HTTPClient *http.Client
	// Timeout for requests when no HTTPClient is given (optional,
	// defaults to DefaultTimeout).
	Timeout time.Duration
}

// Client talks to the indexer over HTTP with a bounded timeout.
type Client struct {
	base   string
	apiKey string
	hc     *http.Client
}

// New creates an indexer client from the given config.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{base: cfg.URL, apiKey: cfg.APIKey, hc: hc}
}

// TransactionByHash fetches a single transaction.  A 404 from the
// indexer maps to ErrTxNotFound; transport and server failures map to
// ErrUnavailable.
func (c *Client) TransactionByHash(ctx context.Context, hash string) (*Transaction, error) {
	var tx Transaction
	path := "/v1/transactions/" + url.PathEscape(hash)
	if err := c.getJSON(ctx, path, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

// DecodeMessage asks the indexer to decode an encoded signed-message
// blob and return the hash of the transaction it produced.  A blob
// the indexer cannot parse maps to ErrMalformed.
func (c *Client) DecodeMessage(ctx context.Context, blob string) (string, error) {
	body, err := json.Marshal(map[string]string{"boc": blob})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/messages/decode", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	var out struct {
		Hash string `json:"hash"`
	}
	if err := c.do(req, &out); err != nil {
		return "", err
	}
	if out.Hash == "" {
		return "", fmt.Errorf("%w: decode returned no hash", ErrMalformed)
	}
	return out.Hash, nil
}

// ListIncoming returns the most recent incoming transactions for an
// account, newest first, at most limit entries.
func (c *Client) ListIncoming(ctx context.Context, account string, limit int) ([]Transaction, error) {
	var out struct {
		Transactions []Transaction `json:"transactions"`
	}
	path := "/v1/accounts/" + url.PathEscape(account) + "/incoming?limit=" + strconv.Itoa(limit)
	if err := c.getJSON(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c.do(req, out)
}

// do executes the request and decodes the JSON response, mapping
// status codes onto the package sentinels.
func (c *Client) do(req *http.Request, out any) error {
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrTxNotFound
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: status %d", ErrMalformed, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading body: %v", ErrUnavailable, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: decoding body: %v", ErrUnavailable, err)
	}
	return nil
}
