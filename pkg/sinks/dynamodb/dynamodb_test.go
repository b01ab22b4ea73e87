package dynamodb

import (
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/safe-tools/origin-report/pkg/report"
)

// Items are stored with the timestamp overridden to an RFC3339 string;
// unmarshalling must restore the original time.Time without extra
// parsing.
func TestReportItemTimestampRoundTrip(t *testing.T) {
	original := &report.Report{
		RunID:               "run-1",
		SafeAddress:         "0xabc",
		Timestamp:           time.Date(2025, 6, 1, 12, 30, 45, 123456789, time.UTC),
		Success:             true,
		TransactionsFetched: 10,
		WalletConnectCount:  4,
	}

	item, err := attributevalue.MarshalMap(original)
	if err != nil {
		t.Fatalf("MarshalMap failed: %v", err)
	}
	item["timestamp"] = &types.AttributeValueMemberS{Value: original.Timestamp.Format(time.RFC3339Nano)}

	var restored report.Report
	if err := attributevalue.UnmarshalMap(item, &restored); err != nil {
		t.Fatalf("UnmarshalMap failed: %v", err)
	}

	if !restored.Timestamp.Equal(original.Timestamp) {
		t.Errorf("timestamp %v did not round-trip, got %v", original.Timestamp, restored.Timestamp)
	}
	if restored.RunID != original.RunID {
		t.Errorf("RunID = %s, want %s", restored.RunID, original.RunID)
	}
	if restored.WalletConnectCount != original.WalletConnectCount {
		t.Errorf("WalletConnectCount = %d, want %d", restored.WalletConnectCount, original.WalletConnectCount)
	}
}
