package safeclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(serverURL string) *Client {
	return NewClient(Config{BaseURL: serverURL + "/api/v1", Timeout: 2 * time.Second})
}

func TestListMultisigTransactionsSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wantPath := "/api/v1/safes/0xabc/multisig-transactions/"
		if r.URL.Path != wantPath {
			t.Errorf("unexpected path: got %s, want %s", r.URL.Path, wantPath)
		}
		w.Write([]byte(`{"count": 3, "results": [
			{"origin": "WalletConnect", "nonce": 1},
			{"nonce": 2},
			{"origin": "WalletConnect v2", "nonce": 3}
		]}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	transactions, err := client.ListMultisigTransactions(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(transactions) != 3 {
		t.Fatalf("expected 3 transactions, got %d", len(transactions))
	}

	// Order must match the response body
	if transactions[0].Origin() != "WalletConnect" {
		t.Errorf("unexpected first origin: %q", transactions[0].Origin())
	}
	if transactions[1].Origin() != "" {
		t.Errorf("expected empty origin for record without one, got %q", transactions[1].Origin())
	}
	if transactions[2].Origin() != "WalletConnect v2" {
		t.Errorf("unexpected third origin: %q", transactions[2].Origin())
	}
}

func TestListMultisigTransactionsStatusErrors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{"bad request", http.StatusBadRequest, ErrInvalidData},
		{"invalid address", http.StatusUnprocessableEntity, ErrInvalidAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			client := newTestClient(server.URL)
			_, err := client.ListMultisigTransactions(context.Background(), "0xabc")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestListMultisigTransactionsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ListMultisigTransactions(context.Background(), "0xabc")

	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("unexpected status code: %d", statusErr.StatusCode)
	}
}

func TestListMultisigTransactionsMissingResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"count": 0, "next": null}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	_, err := client.ListMultisigTransactions(context.Background(), "0xabc")
	if !errors.Is(err, ErrUnexpectedFormat) {
		t.Fatalf("expected ErrUnexpectedFormat, got %v", err)
	}
}

func TestListMultisigTransactionsNullResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results": null}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	transactions, err := client.ListMultisigTransactions(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transactions) != 0 {
		t.Fatalf("expected empty list, got %d transactions", len(transactions))
	}
}

func TestFetchTransactionsAbsorbsFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "http 400",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			},
		},
		{
			name: "http 422",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			},
		},
		{
			name: "http 503",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
		},
		{
			name: "missing results key",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"detail": "something else"}`))
			},
		},
		{
			name: "malformed body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{not json`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := newTestClient(server.URL)
			transactions, err := client.FetchTransactions(context.Background(), "0xabc")
			if err == nil {
				t.Fatal("expected an error to be reported")
			}
			if transactions == nil || len(transactions) != 0 {
				t.Fatalf("expected empty list, got %v", transactions)
			}
		})
	}
}

func TestFetchTransactionsConnectionError(t *testing.T) {
	// Point at a server that is already closed.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := newTestClient(server.URL)
	transactions, err := client.FetchTransactions(context.Background(), "0xabc")
	if err == nil {
		t.Fatal("expected an error to be reported")
	}
	if len(transactions) != 0 {
		t.Fatalf("expected empty list, got %d transactions", len(transactions))
	}
}

func TestFetchTransactionsTimeout(t *testing.T) {
	block := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer server.Close()
	defer close(block)

	client := NewClient(Config{BaseURL: server.URL + "/api/v1", Timeout: 50 * time.Millisecond})
	transactions, err := client.FetchTransactions(context.Background(), "0xabc")
	if err == nil {
		t.Fatal("expected a timeout error to be reported")
	}
	if len(transactions) != 0 {
		t.Fatalf("expected empty list, got %d transactions", len(transactions))
	}
}

func TestOrigin(t *testing.T) {
	tests := []struct {
		name string
		tx   Transaction
		want string
	}{
		{"string origin", Transaction{"origin": "WalletConnect"}, "WalletConnect"},
		{"missing origin", Transaction{"nonce": float64(1)}, ""},
		{"non-string origin", Transaction{"origin": float64(42)}, ""},
		{"nil origin", Transaction{"origin": nil}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.tx.Origin(); got != tt.want {
				t.Errorf("Origin() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	client := NewClient(Config{})
	if client.baseURL != DefaultBaseURL {
		t.Errorf("unexpected base URL: %s", client.baseURL)
	}
	if client.httpClient.Timeout != DefaultTimeout {
		t.Errorf("unexpected timeout: %v", client.httpClient.Timeout)
	}
}
