package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/safe-tools/origin-report/pkg/report"
	"github.com/safe-tools/origin-report/pkg/safeclient"
	"github.com/safe-tools/origin-report/pkg/sinks"
	"github.com/safe-tools/origin-report/pkg/sinks/dynamodb"
)

// defaultSafeAddress mirrors the CLI default for empty requests.
const defaultSafeAddress = "0xBbA4C8eB57DF16c4CfAbe4e9A3Ab697A3e0C65D8"

// Request represents the input for the report Lambda function.
type Request struct {
	SafeAddress string `json:"safeAddress"`
}

// Response represents the output from the report Lambda function.
type Response struct {
	Report      *report.Report `json:"report"`
	IsColdStart bool           `json:"isColdStart"`
}

var (
	client      *safeclient.Client
	reportSink  sinks.Sink
	isColdStart = true
)

func init() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	client = safeclient.NewClient(safeclient.Config{
		BaseURL: os.Getenv("SAFE_TX_ENDPOINT"),
	})

	// When a reports table is configured, runs are persisted to DynamoDB.
	if tableName := os.Getenv("REPORTS_TABLE"); tableName != "" {
		config := map[string]interface{}{
			"tableName": tableName,
		}
		if region := os.Getenv("AWS_REGION"); region != "" {
			config["region"] = region
		}
		if endpoint := os.Getenv("SINK_ENDPOINT"); endpoint != "" {
			config["endpoint"] = endpoint
		}

		sink, err := dynamodb.NewDynamoDBFactory().CreateSink(config)
		if err != nil {
			log.Printf("Failed to create report sink: %v", err)
		} else {
			reportSink = sink
		}
	}

	log.Println("Safe origin report function initialized")
}

// handleRequest fetches the first transaction page for the requested
// safe, counts WalletConnect originated records and returns the report.
func handleRequest(ctx context.Context, request Request) (Response, error) {
	safeAddress := request.SafeAddress
	if safeAddress == "" {
		safeAddress = defaultSafeAddress
	}

	start := time.Now()
	transactions, fetchErr := client.FetchTransactions(ctx, safeAddress)
	fetchDuration := time.Since(start)

	r := report.Build(safeAddress, transactions, fetchErr, fetchDuration)

	log.Printf("Safe %s: %d of %d transactions originated from WalletConnect",
		safeAddress, r.WalletConnectCount, r.TransactionsFetched)

	if reportSink != nil {
		if err := reportSink.Initialize(ctx); err != nil {
			log.Printf("Failed to initialize report sink: %v", err)
		} else if err := reportSink.WriteReport(ctx, r); err != nil {
			log.Printf("Failed to write report: %v", err)
		}
	}

	response := Response{
		Report:      r,
		IsColdStart: isColdStart,
	}
	isColdStart = false

	return response, nil
}

func main() {
	// Run as Lambda function if in AWS environment
	if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
		lambda.Start(handleRequest)
		return
	}

	// Run locally for testing
	log.Println("Running in local mode")

	request := Request{
		SafeAddress: os.Getenv("SAFE_ADDRESS"),
	}

	response, err := handleRequest(context.Background(), request)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	jsonResponse, _ := json.MarshalIndent(response, "", "  ")
	fmt.Println(string(jsonResponse))
}
