package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/safe-tools/origin-report/internal/metrics"
	"github.com/safe-tools/origin-report/pkg/report"
	"github.com/safe-tools/origin-report/pkg/safeclient"
	"github.com/safe-tools/origin-report/pkg/sinks"
	"github.com/safe-tools/origin-report/pkg/sinks/dynamodb"
	"github.com/safe-tools/origin-report/pkg/sinks/file"
	"github.com/safe-tools/origin-report/pkg/sinks/immudb"
	"github.com/safe-tools/origin-report/pkg/sinks/timestream"
)

// DefaultSafeAddress is used when no address is supplied.
const DefaultSafeAddress = "0xBbA4C8eB57DF16c4CfAbe4e9A3Ab697A3e0C65D8"

// Command line flags
var (
	safeAddress = flag.String("safe-address", DefaultSafeAddress, "Safe address to fetch transactions for")
	endpoint    = flag.String("endpoint", "", "Safe Transaction Service API root (default: mainnet)")
	timeout     = flag.Duration("timeout", safeclient.DefaultTimeout, "HTTP timeout for the fetch")
	sinkType    = flag.String("sink", "", "Where to persist the run report: file, dynamodb, timestream, immudb (default: none)")
	outputDir   = flag.String("output", "", "Directory for file-sink reports")
	queryMode   = flag.Bool("query", false, "List saved reports for the safe address instead of running a fetch")
	queryLimit  = flag.Int("limit", 10, "Maximum reports to list in query mode")
	verbose     = flag.Bool("verbose", false, "Enable verbose output")
)

func init() {
	// Alias kept for compatibility with the original script's option name.
	flag.StringVar(safeAddress, "safe_address", DefaultSafeAddress, "Alias for -safe-address")
}

func main() {
	flag.Parse()

	// Set up logging
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime)

	ctx := context.Background()

	if *queryMode {
		kind := *sinkType
		if kind == "" {
			kind = "file"
		}

		sink, err := createSink(kind)
		if err != nil {
			log.Fatalf("Failed to create sink: %v", err)
		}
		if err := sink.Initialize(ctx); err != nil {
			log.Fatalf("Failed to initialize %s sink: %v", kind, err)
		}
		defer sink.Close()

		reports, err := runQuery(ctx, sink, *safeAddress, *queryLimit)
		if err != nil {
			log.Fatalf("Failed to query reports: %v", err)
		}
		log.Printf("Found %d reports for safe %s in %s sink", len(reports), *safeAddress, kind)
		return
	}

	// Endpoint from flag or environment variable
	if *endpoint == "" {
		*endpoint = os.Getenv("SAFE_TX_ENDPOINT")
	}

	client := safeclient.NewClient(safeclient.Config{
		BaseURL: *endpoint,
		Timeout: *timeout,
	})
	collector := metrics.NewCollector()

	runName := fmt.Sprintf("%s-%s", *safeAddress, time.Now().Format(time.RFC3339))
	collector.StartRun(runName, *safeAddress)

	// The fetch absorbs its own failures: transactions is always usable
	// and fetchErr only feeds the report record.
	var transactions []safeclient.Transaction
	start := time.Now()
	fetchErr := collector.MeasureRequest(func() (int, error) {
		var err error
		transactions, err = client.FetchTransactions(ctx, *safeAddress)
		return len(transactions), err
	})
	fetchDuration := time.Since(start)

	count := report.CountWalletConnect(transactions)
	fmt.Printf("Number of WalletConnect transactions for safe %s: %d\n", *safeAddress, count)

	r := report.Build(*safeAddress, transactions, fetchErr, fetchDuration)
	if runResult := collector.EndRun(runName); runResult != nil {
		r.Metrics = runResult.Summary
	}

	if *verbose {
		data, err := json.MarshalIndent(r, "", "  ")
		if err == nil {
			log.Printf("Run report:\n%s", string(data))
		}
	}

	if *sinkType == "" {
		return
	}

	sink, err := createSink(*sinkType)
	if err != nil {
		log.Fatalf("Failed to create sink: %v", err)
	}

	if err := sink.Initialize(ctx); err != nil {
		log.Fatalf("Failed to initialize %s sink: %v", *sinkType, err)
	}
	defer sink.Close()

	if err := sink.WriteReport(ctx, r); err != nil {
		log.Fatalf("Failed to write report: %v", err)
	}

	log.Printf("Report %s saved to %s sink", r.RunID, *sinkType)
}

// runQuery lists previously saved reports from the sink, most recent
// first, and returns what it printed.
func runQuery(ctx context.Context, sink sinks.Sink, address string, limit int) ([]*report.Report, error) {
	reports, err := sink.QueryReports(ctx, address, limit)
	if err != nil {
		return nil, err
	}

	for _, r := range reports {
		status := "ok"
		if !r.Success {
			status = "failed"
		}
		fmt.Printf("%s  %s  fetched=%d walletconnect=%d  %s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.RunID,
			r.TransactionsFetched,
			r.WalletConnectCount,
			status)
	}

	return reports, nil
}

// createSink builds the requested sink, configured from flags and
// environment variables.
func createSink(kind string) (sinks.Sink, error) {
	config := map[string]interface{}{}

	if region := os.Getenv("AWS_REGION"); region != "" {
		config["region"] = region
	}
	if tableName := os.Getenv("REPORTS_TABLE"); tableName != "" {
		config["tableName"] = tableName
	}
	if dbEndpoint := os.Getenv("SINK_ENDPOINT"); dbEndpoint != "" {
		config["endpoint"] = dbEndpoint
	}

	switch strings.ToLower(kind) {
	case "file":
		directory := *outputDir
		if directory == "" {
			directory = os.Getenv("RESULTS_DIR")
		}
		if directory != "" {
			config["directory"] = directory
		}
		return file.NewFileFactory().CreateSink(config)
	case "dynamodb":
		if createTable := os.Getenv("CREATE_TABLE"); createTable != "" {
			config["createTable"], _ = strconv.ParseBool(createTable)
		}
		return dynamodb.NewDynamoDBFactory().CreateSink(config)
	case "timestream":
		if databaseName := os.Getenv("REPORTS_DATABASE"); databaseName != "" {
			config["databaseName"] = databaseName
		}
		return timestream.NewTimestreamFactory().CreateSink(config)
	case "immudb":
		if address := os.Getenv("IMMUDB_ADDRESS"); address != "" {
			config["address"] = address
		}
		if port := os.Getenv("IMMUDB_PORT"); port != "" {
			if p, err := strconv.Atoi(port); err == nil {
				config["port"] = p
			}
		}
		if username := os.Getenv("IMMUDB_USERNAME"); username != "" {
			config["username"] = username
		}
		if password := os.Getenv("IMMUDB_PASSWORD"); password != "" {
			config["password"] = password
		}
		return immudb.NewImmuDBFactory().CreateSink(config)
	default:
		return nil, fmt.Errorf("unsupported sink type: %s", kind)
	}
}
