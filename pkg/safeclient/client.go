package safeclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "safeclient").Logger()

// DefaultBaseURL is the mainnet Safe Transaction Service API root.
const DefaultBaseURL = "https://safe-transaction-mainnet.safe.global/api/v1"

// DefaultTimeout bounds the single outbound request. A zero-value
// http.Client would block forever on a stalled connection.
const DefaultTimeout = 30 * time.Second

// Errors returned by ListMultisigTransactions for the status codes the
// transaction service uses to reject a request.
var (
	// ErrInvalidData corresponds to HTTP 400.
	ErrInvalidData = errors.New("invalid data provided")
	// ErrInvalidAddress corresponds to HTTP 422.
	ErrInvalidAddress = errors.New("invalid safe address")
	// ErrUnexpectedFormat means the response decoded but had no "results" key.
	ErrUnexpectedFormat = errors.New("unexpected API response format")
)

// StatusError reports any other non-success HTTP status.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request failed with status %d", e.StatusCode)
}

// Transaction is a single multisig transaction record as returned by the
// service. Records are kept opaque; the only field this tool consults is
// "origin".
type Transaction map[string]interface{}

// Origin returns the record's origin field, or "" when absent or not a
// string.
func (t Transaction) Origin() string {
	if v, ok := t["origin"].(string); ok {
		return v
	}
	return ""
}

// Config holds the configuration for a transaction service client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client fetches multisig transaction history from a Safe Transaction
// Service instance.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a transaction service client. Zero-value config
// fields fall back to the mainnet endpoint and the default timeout.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// ListMultisigTransactions fetches the first page of multisig
// transactions for the given safe address. No pagination cursor is
// followed. Failures are reported through the error taxonomy above so
// callers can tell "no matching transactions" from "fetch failed".
func (c *Client) ListMultisigTransactions(ctx context.Context, safeAddress string) ([]Transaction, error) {
	url := fmt.Sprintf("%s/safes/%s/multisig-transactions/", c.baseURL, safeAddress)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch transactions: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest:
		return nil, ErrInvalidData
	case resp.StatusCode == http.StatusUnprocessableEntity:
		return nil, ErrInvalidAddress
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	// The service wraps the page in an envelope; only "results" is used.
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	raw, ok := envelope["results"]
	if !ok {
		return nil, ErrUnexpectedFormat
	}

	transactions := []Transaction{}
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, &transactions); err != nil {
			return nil, fmt.Errorf("%w: results is not an array", ErrUnexpectedFormat)
		}
	}

	return transactions, nil
}

// FetchTransactions is the absorbing wrapper around
// ListMultisigTransactions: every failure is logged and collapsed to an
// empty list, so the caller always gets a usable (possibly empty) page.
// The underlying error is still returned for callers that record it.
func (c *Client) FetchTransactions(ctx context.Context, safeAddress string) ([]Transaction, error) {
	transactions, err := c.ListMultisigTransactions(ctx, safeAddress)
	if err != nil {
		logFetchError(safeAddress, err)
		return []Transaction{}, err
	}
	return transactions, nil
}

func logFetchError(safeAddress string, err error) {
	event := logger.Error().Str("safeAddress", safeAddress)

	var statusErr *StatusError
	switch {
	case errors.Is(err, ErrInvalidData):
		event.Msg("invalid data provided")
	case errors.Is(err, ErrInvalidAddress):
		event.Msg("invalid safe address")
	case errors.Is(err, ErrUnexpectedFormat):
		event.Msg("unexpected API response format")
	case errors.As(err, &statusErr):
		event.Int("status", statusErr.StatusCode).Msg("request failed")
	default:
		event.Err(err).Msg("error fetching transactions")
	}
}
