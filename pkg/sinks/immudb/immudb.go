package immudb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codenotary/immudb/pkg/client"

	"github.com/safe-tools/origin-report/pkg/report"
	"github.com/safe-tools/origin-report/pkg/sinks"
)

// ImmuDBSink keeps an append-only audit trail of report runs in immudb.
// Rows are never updated or deleted, so the history of what was reported
// for a safe is tamper-evident.
type ImmuDBSink struct {
	client    client.ImmuClient
	options   *client.Options
	tableName string
	connected bool
}

// ImmuDBFactory creates immudb sink instances.
type ImmuDBFactory struct{}

// NewImmuDBFactory creates a new factory for immudb sinks.
func NewImmuDBFactory() *ImmuDBFactory {
	return &ImmuDBFactory{}
}

// CreateSink implements the SinkFactory interface.
func (f *ImmuDBFactory) CreateSink(config map[string]interface{}) (sinks.Sink, error) {
	defaultConfig := map[string]interface{}{
		"address":   "127.0.0.1",
		"port":      3322,
		"username":  "immudb",
		"password":  "immudb",
		"database":  "defaultdb",
		"tableName": "report_audit",
	}

	for k, v := range config {
		defaultConfig[k] = v
	}

	address := fmt.Sprintf("%v", defaultConfig["address"])
	portValue := defaultConfig["port"]
	var port int
	switch v := portValue.(type) {
	case int:
		port = v
	case float64:
		port = int(v)
	default:
		port = 3322
	}
	username := fmt.Sprintf("%v", defaultConfig["username"])
	password := fmt.Sprintf("%v", defaultConfig["password"])
	database := fmt.Sprintf("%v", defaultConfig["database"])
	tableName := fmt.Sprintf("%v", defaultConfig["tableName"])

	options := client.DefaultOptions().
		WithAddress(address).
		WithPort(port).
		WithUsername(username).
		WithPassword(password).
		WithDatabase(database)

	return &ImmuDBSink{
		options:   options,
		tableName: tableName,
	}, nil
}

// Initialize implements the Sink interface. It opens the session and
// ensures the audit table exists.
func (s *ImmuDBSink) Initialize(ctx context.Context) error {
	if s.connected {
		return nil
	}

	c := client.NewClient().WithOptions(s.options)

	err := c.OpenSession(ctx, []byte(s.options.Username), []byte(s.options.Password), s.options.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to immudb: %w", err)
	}

	s.client = c
	s.connected = true

	sqlStmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s ("+
		"run_id VARCHAR[36] NOT NULL, "+
		"safe_address VARCHAR[64] NOT NULL, "+
		"ts INTEGER NOT NULL, "+
		"success BOOLEAN NOT NULL, "+
		"transactions_fetched INTEGER NOT NULL, "+
		"walletconnect_count INTEGER NOT NULL, "+
		"error_message VARCHAR, "+
		"PRIMARY KEY run_id"+
		")", s.tableName)

	if _, err := c.SQLExec(ctx, sqlStmt, nil); err != nil {
		c.CloseSession(ctx)
		s.connected = false
		return fmt.Errorf("failed to create audit table: %w", err)
	}

	return nil
}

// Close implements the Sink interface.
func (s *ImmuDBSink) Close() error {
	if !s.connected {
		return nil
	}

	err := s.client.CloseSession(context.Background())
	s.connected = false
	if err != nil {
		return fmt.Errorf("failed to close immudb session: %w", err)
	}
	return nil
}

// WriteReport implements the Sink interface.
func (s *ImmuDBSink) WriteReport(ctx context.Context, r *report.Report) error {
	if !s.connected {
		return errors.New("sink not initialized")
	}
	if r == nil {
		return errors.New("report cannot be nil")
	}

	query := fmt.Sprintf("INSERT INTO %s "+
		"(run_id, safe_address, ts, success, transactions_fetched, walletconnect_count, error_message) "+
		"VALUES (@run_id, @safe_address, @ts, @success, @transactions_fetched, @walletconnect_count, @error_message)",
		s.tableName)

	params := map[string]interface{}{
		"run_id":               r.RunID,
		"safe_address":         r.SafeAddress,
		"ts":                   r.Timestamp.Unix(),
		"success":              r.Success,
		"transactions_fetched": int64(r.TransactionsFetched),
		"walletconnect_count":  int64(r.WalletConnectCount),
		"error_message":        r.ErrorMessage,
	}

	if _, err := s.client.SQLExec(ctx, query, params); err != nil {
		return fmt.Errorf("failed to insert audit row: %w", err)
	}

	return nil
}

// QueryReports implements the Sink interface.
func (s *ImmuDBSink) QueryReports(ctx context.Context, safeAddress string, limit int) ([]*report.Report, error) {
	if !s.connected {
		return nil, errors.New("sink not initialized")
	}

	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf("SELECT run_id, safe_address, ts, success, transactions_fetched, walletconnect_count, error_message "+
		"FROM %s WHERE safe_address = @safe_address ORDER BY ts DESC LIMIT %d", s.tableName, limit)

	params := map[string]interface{}{
		"safe_address": safeAddress,
	}

	result, err := s.client.SQLQuery(ctx, query, params, true)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit rows: %w", err)
	}

	reports := make([]*report.Report, 0, len(result.Rows))
	for _, row := range result.Rows {
		reports = append(reports, &report.Report{
			RunID:               row.Values[0].GetS(),
			SafeAddress:         row.Values[1].GetS(),
			Timestamp:           time.Unix(row.Values[2].GetN(), 0).UTC(),
			Success:             row.Values[3].GetB(),
			TransactionsFetched: int(row.Values[4].GetN()),
			WalletConnectCount:  int(row.Values[5].GetN()),
			ErrorMessage:        row.Values[6].GetS(),
		})
	}

	return reports, nil
}
