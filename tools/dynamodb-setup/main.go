package main

import (
	"context"
	"log"
	"os"
	"strconv"

	"github.com/safe-tools/origin-report/pkg/sinks/dynamodb"
)

func main() {
	region := getEnv("AWS_REGION", "us-east-1")
	endpoint := getEnv("DYNAMODB_ENDPOINT", "")
	tableName := getEnv("REPORTS_TABLE", "SafeOriginReports")
	rcus := getEnvInt64("PROVISIONED_RCUS", 5)
	wcus := getEnvInt64("PROVISIONED_WCUS", 5)

	log.Printf("Setting up DynamoDB reports table: %s", tableName)
	if endpoint != "" {
		log.Printf("Using custom endpoint: %s", endpoint)
	}

	sink, err := dynamodb.NewDynamoDBSink(dynamodb.DynamoDBConfig{
		Region:          region,
		TableName:       tableName,
		Endpoint:        endpoint,
		ProvisionedRCUs: rcus,
		ProvisionedWCUs: wcus,
		CreateTable:     true,
	})
	if err != nil {
		log.Fatalf("Failed to create reports table: %v", err)
	}

	if err := sink.Initialize(context.Background()); err != nil {
		log.Fatalf("Table created but not usable: %v", err)
	}
	sink.Close()

	log.Println("DynamoDB setup completed successfully")
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		log.Fatalf("Invalid value for %s: %v", key, err)
	}
	return parsed
}
