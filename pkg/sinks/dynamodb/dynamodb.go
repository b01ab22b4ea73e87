package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/safe-tools/origin-report/pkg/report"
	"github.com/safe-tools/origin-report/pkg/sinks"
)

// DynamoDBSink persists run reports in an AWS DynamoDB table keyed by
// safe address, with a timestamp index for history queries.
type DynamoDBSink struct {
	client      *dynamodb.Client
	tableName   string
	initialized bool
}

// DynamoDBConfig holds the configuration for a DynamoDB sink.
type DynamoDBConfig struct {
	Region          string
	TableName       string
	Endpoint        string
	ProvisionedRCUs int64
	ProvisionedWCUs int64
	CreateTable     bool
}

// DynamoDBFactory creates DynamoDB sink instances.
type DynamoDBFactory struct{}

// NewDynamoDBFactory creates a new DynamoDB factory.
func NewDynamoDBFactory() *DynamoDBFactory {
	return &DynamoDBFactory{}
}

// CreateSink implements the SinkFactory interface.
func (f *DynamoDBFactory) CreateSink(config map[string]interface{}) (sinks.Sink, error) {
	sinkConfig := DynamoDBConfig{
		Region:          "us-east-1",
		TableName:       "SafeOriginReports",
		ProvisionedRCUs: 5,
		ProvisionedWCUs: 5,
		CreateTable:     false,
	}

	if region, ok := config["region"].(string); ok {
		sinkConfig.Region = region
	}
	if tableName, ok := config["tableName"].(string); ok {
		sinkConfig.TableName = tableName
	}
	if endpoint, ok := config["endpoint"].(string); ok {
		sinkConfig.Endpoint = endpoint
	}
	if rcus, ok := config["provisionedRCUs"].(int64); ok {
		sinkConfig.ProvisionedRCUs = rcus
	}
	if wcus, ok := config["provisionedWCUs"].(int64); ok {
		sinkConfig.ProvisionedWCUs = wcus
	}
	if createTable, ok := config["createTable"].(bool); ok {
		sinkConfig.CreateTable = createTable
	}

	return NewDynamoDBSink(sinkConfig)
}

// NewDynamoDBSink creates a new DynamoDB sink instance.
func NewDynamoDBSink(sinkConfig DynamoDBConfig) (*DynamoDBSink, error) {
	s := &DynamoDBSink{
		tableName:   sinkConfig.TableName,
		initialized: false,
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(sinkConfig.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	if sinkConfig.Endpoint != "" {
		// Custom endpoint, e.g. for local DynamoDB
		customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           sinkConfig.Endpoint,
				SigningRegion: sinkConfig.Region,
			}, nil
		})
		awsCfg.EndpointResolverWithOptions = customResolver
	}

	s.client = dynamodb.NewFromConfig(awsCfg)

	if sinkConfig.CreateTable {
		if err := s.createReportTable(sinkConfig.ProvisionedRCUs, sinkConfig.ProvisionedWCUs); err != nil {
			return nil, fmt.Errorf("failed to create table: %w", err)
		}
	}

	return s, nil
}

// Initialize implements the Sink interface.
func (s *DynamoDBSink) Initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	})
	if err != nil {
		var notFoundErr *types.ResourceNotFoundException
		if errors.As(err, &notFoundErr) {
			return fmt.Errorf("table %s does not exist", s.tableName)
		}
		return fmt.Errorf("error checking table: %w", err)
	}

	s.initialized = true
	return nil
}

// Close implements the Sink interface.
func (s *DynamoDBSink) Close() error {
	// DynamoDB doesn't require explicit connection closing
	s.initialized = false
	return nil
}

// WriteReport implements the Sink interface.
func (s *DynamoDBSink) WriteReport(ctx context.Context, r *report.Report) error {
	if !s.initialized {
		return errors.New("sink not initialized")
	}
	if r == nil {
		return errors.New("report cannot be nil")
	}

	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	// Timestamps are stored as RFC3339 strings so the range index sorts
	// chronologically.
	item["timestamp"] = &types.AttributeValueMemberS{Value: r.Timestamp.Format(time.RFC3339Nano)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem operation failed: %w", err)
	}

	return nil
}

// QueryReports implements the Sink interface.
func (s *DynamoDBSink) QueryReports(ctx context.Context, safeAddress string, limit int) ([]*report.Report, error) {
	if !s.initialized {
		return nil, errors.New("sink not initialized")
	}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String("TimestampIndex"),
		KeyConditionExpression: aws.String("safeAddress = :safeAddress"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":safeAddress": &types.AttributeValueMemberS{Value: safeAddress},
		},
		ScanIndexForward: aws.Bool(false),
	}

	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	result, err := s.client.Query(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("Query operation failed: %w", err)
	}

	reports := make([]*report.Report, 0, len(result.Items))
	for _, item := range result.Items {
		var r report.Report
		// time.Time unmarshals from the RFC3339 string directly.
		if err := attributevalue.UnmarshalMap(item, &r); err != nil {
			return nil, fmt.Errorf("failed to unmarshal report: %w", err)
		}
		reports = append(reports, &r)
	}

	return reports, nil
}

// createReportTable creates the reports table with a timestamp index.
func (s *DynamoDBSink) createReportTable(rcus, wcus int64) error {
	createTableInput := &dynamodb.CreateTableInput{
		TableName: aws.String(s.tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String("safeAddress"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("runId"),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String("timestamp"),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String("safeAddress"),
				KeyType:       types.KeyTypeHash,
			},
			{
				AttributeName: aws.String("runId"),
				KeyType:       types.KeyTypeRange,
			},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{
			{
				IndexName: aws.String("TimestampIndex"),
				KeySchema: []types.KeySchemaElement{
					{
						AttributeName: aws.String("safeAddress"),
						KeyType:       types.KeyTypeHash,
					},
					{
						AttributeName: aws.String("timestamp"),
						KeyType:       types.KeyTypeRange,
					},
				},
				Projection: &types.Projection{
					ProjectionType: types.ProjectionTypeAll,
				},
				ProvisionedThroughput: &types.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(rcus),
					WriteCapacityUnits: aws.Int64(wcus),
				},
			},
		},
		ProvisionedThroughput: &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(rcus),
			WriteCapacityUnits: aws.Int64(wcus),
		},
	}

	_, err := s.client.CreateTable(context.Background(), createTableInput)
	if err != nil {
		var alreadyExistsErr *types.ResourceInUseException
		if errors.As(err, &alreadyExistsErr) {
			return nil
		}
		return err
	}

	waiter := dynamodb.NewTableExistsWaiter(s.client)
	err = waiter.Wait(context.Background(), &dynamodb.DescribeTableInput{
		TableName: aws.String(s.tableName),
	}, 5*time.Minute)
	if err != nil {
		return fmt.Errorf("failed to wait for table creation: %w", err)
	}

	return nil
}
