package report

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/safe-tools/origin-report/pkg/safeclient"
)

// WalletConnectMarker is the substring that tags a transaction as having
// originated from a WalletConnect session. The match is case-sensitive:
// "WalletConnect v2" counts, "walletconnect" does not.
const WalletConnectMarker = "WalletConnect"

// noOriginLabel is used in breakdowns for records without an origin.
const noOriginLabel = "(none)"

// CountWalletConnect returns how many records have an origin containing
// WalletConnectMarker. Records without an origin contribute 0.
func CountWalletConnect(transactions []safeclient.Transaction) int {
	count := 0
	for _, tx := range transactions {
		if strings.Contains(tx.Origin(), WalletConnectMarker) {
			count++
		}
	}
	return count
}

// Report is the persistent record of one fetch-and-count run.
type Report struct {
	RunID               string                 `json:"runId"`
	SafeAddress         string                 `json:"safeAddress"`
	Timestamp           time.Time              `json:"timestamp"`
	Success             bool                   `json:"success"`
	ErrorMessage        string                 `json:"errorMessage,omitempty"`
	TransactionsFetched int                    `json:"transactionsFetched"`
	WalletConnectCount  int                    `json:"walletConnectCount"`
	OriginBreakdown     map[string]int         `json:"originBreakdown,omitempty"`
	FetchDurationNs     int64                  `json:"fetchDurationNs"`
	Metrics             map[string]interface{} `json:"metrics,omitempty"`
}

// WalletConnectShare returns the WalletConnect fraction of the fetched
// page, or 0 when nothing was fetched.
func (r *Report) WalletConnectShare() float64 {
	if r.TransactionsFetched == 0 {
		return 0
	}
	return float64(r.WalletConnectCount) / float64(r.TransactionsFetched)
}

// Build assembles the report for one run. fetchErr is the (possibly nil)
// error from the fetch; the counts always reflect the transactions that
// were actually returned, so a failed fetch yields a zero-count report
// with Success=false rather than no report at all.
func Build(safeAddress string, transactions []safeclient.Transaction, fetchErr error, fetchDuration time.Duration) *Report {
	r := &Report{
		RunID:               uuid.New().String(),
		SafeAddress:         safeAddress,
		Timestamp:           time.Now().UTC(),
		Success:             fetchErr == nil,
		TransactionsFetched: len(transactions),
		WalletConnectCount:  CountWalletConnect(transactions),
		FetchDurationNs:     fetchDuration.Nanoseconds(),
	}

	if fetchErr != nil {
		r.ErrorMessage = fetchErr.Error()
	}

	if len(transactions) > 0 {
		r.OriginBreakdown = make(map[string]int)
		for _, tx := range transactions {
			r.OriginBreakdown[OriginLabel(tx.Origin())]++
		}
	}

	return r
}

// OriginLabel reduces a raw origin value to a breakdown label. Safe apps
// commonly store a JSON blob like {"url":...,"name":...} in the origin
// field; the name (or url) reads better in tables and charts than the
// whole blob. Counting never uses these labels, only the raw value.
func OriginLabel(origin string) string {
	if origin == "" {
		return noOriginLabel
	}

	if strings.HasPrefix(origin, "{") {
		var blob struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		}
		if err := json.Unmarshal([]byte(origin), &blob); err == nil {
			if blob.Name != "" {
				return blob.Name
			}
			if blob.URL != "" {
				return blob.URL
			}
		}
	}

	return origin
}
