package timestream

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/timestreamquery"
	"github.com/aws/aws-sdk-go-v2/service/timestreamwrite"
	"github.com/aws/aws-sdk-go-v2/service/timestreamwrite/types"

	"github.com/safe-tools/origin-report/pkg/report"
	"github.com/safe-tools/origin-report/pkg/sinks"
)

// TimestreamSink records run counts as time-series measures in AWS
// Timestream, so WalletConnect activity per safe can be graphed over
// time. Only the numeric outcome of a run is stored; origin breakdowns
// stay in the file or DynamoDB sinks.
type TimestreamSink struct {
	writeClient  *timestreamwrite.Client
	queryClient  *timestreamquery.Client
	databaseName string
	tableName    string
	initialized  bool
}

// TimestreamConfig holds configuration for the Timestream sink.
type TimestreamConfig struct {
	Region       string
	DatabaseName string
	TableName    string
	Endpoint     string
}

// TimestreamFactory creates Timestream sink instances.
type TimestreamFactory struct{}

// NewTimestreamFactory creates a new Timestream factory.
func NewTimestreamFactory() *TimestreamFactory {
	return &TimestreamFactory{}
}

// CreateSink implements the SinkFactory interface.
func (f *TimestreamFactory) CreateSink(config map[string]interface{}) (sinks.Sink, error) {
	sinkConfig := TimestreamConfig{
		Region:       "us-east-1",
		DatabaseName: "SafeReports",
		TableName:    "OriginCounts",
	}

	if region, ok := config["region"].(string); ok {
		sinkConfig.Region = region
	}
	if databaseName, ok := config["databaseName"].(string); ok {
		sinkConfig.DatabaseName = databaseName
	}
	if tableName, ok := config["tableName"].(string); ok {
		sinkConfig.TableName = tableName
	}
	if endpoint, ok := config["endpoint"].(string); ok {
		sinkConfig.Endpoint = endpoint
	}

	return NewTimestreamSink(sinkConfig)
}

// NewTimestreamSink creates a new Timestream sink instance.
func NewTimestreamSink(config TimestreamConfig) (*TimestreamSink, error) {
	s := &TimestreamSink{
		databaseName: config.DatabaseName,
		tableName:    config.TableName,
		initialized:  false,
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(config.Region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	if config.Endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				URL:           config.Endpoint,
				SigningRegion: config.Region,
			}, nil
		})
		awsCfg.EndpointResolverWithOptions = customResolver
	}

	s.writeClient = timestreamwrite.NewFromConfig(awsCfg)
	s.queryClient = timestreamquery.NewFromConfig(awsCfg)

	return s, nil
}

// Initialize implements the Sink interface.
func (s *TimestreamSink) Initialize(ctx context.Context) error {
	if s.initialized {
		return nil
	}

	_, err := s.writeClient.DescribeTable(ctx, &timestreamwrite.DescribeTableInput{
		DatabaseName: aws.String(s.databaseName),
		TableName:    aws.String(s.tableName),
	})
	if err != nil {
		return fmt.Errorf("error checking table %s.%s: %w", s.databaseName, s.tableName, err)
	}

	s.initialized = true
	return nil
}

// Close implements the Sink interface.
func (s *TimestreamSink) Close() error {
	s.initialized = false
	return nil
}

// WriteReport implements the Sink interface. Each run becomes two
// records sharing the same dimensions: the WalletConnect count and the
// total fetched count.
func (s *TimestreamSink) WriteReport(ctx context.Context, r *report.Report) error {
	if !s.initialized {
		return errors.New("sink not initialized")
	}
	if r == nil {
		return errors.New("report cannot be nil")
	}

	dimensions := []types.Dimension{
		{
			Name:  aws.String("safe_address"),
			Value: aws.String(r.SafeAddress),
		},
		{
			Name:  aws.String("run_id"),
			Value: aws.String(r.RunID),
		},
		{
			Name:  aws.String("success"),
			Value: aws.String(strconv.FormatBool(r.Success)),
		},
	}

	recordTime := aws.String(strconv.FormatInt(r.Timestamp.UnixNano(), 10))

	records := []types.Record{
		{
			Dimensions:       dimensions,
			MeasureName:      aws.String("walletconnect_count"),
			MeasureValue:     aws.String(strconv.Itoa(r.WalletConnectCount)),
			MeasureValueType: types.MeasureValueTypeBigint,
			Time:             recordTime,
			TimeUnit:         types.TimeUnitNanoseconds,
		},
		{
			Dimensions:       dimensions,
			MeasureName:      aws.String("transactions_fetched"),
			MeasureValue:     aws.String(strconv.Itoa(r.TransactionsFetched)),
			MeasureValueType: types.MeasureValueTypeBigint,
			Time:             recordTime,
			TimeUnit:         types.TimeUnitNanoseconds,
		},
	}

	_, err := s.writeClient.WriteRecords(ctx, &timestreamwrite.WriteRecordsInput{
		DatabaseName: aws.String(s.databaseName),
		TableName:    aws.String(s.tableName),
		Records:      records,
	})
	if err != nil {
		return fmt.Errorf("failed to write records: %w", err)
	}

	return nil
}

// QueryReports implements the Sink interface. Reports reconstructed from
// the time series carry only the numeric fields.
func (s *TimestreamSink) QueryReports(ctx context.Context, safeAddress string, limit int) ([]*report.Report, error) {
	if !s.initialized {
		return nil, errors.New("sink not initialized")
	}

	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT run_id, safe_address, success, time,
			MAX(CASE WHEN measure_name = 'walletconnect_count' THEN measure_value::bigint END) AS walletconnect_count,
			MAX(CASE WHEN measure_name = 'transactions_fetched' THEN measure_value::bigint END) AS transactions_fetched
		FROM "%s"."%s"
		WHERE safe_address = '%s'
		GROUP BY run_id, safe_address, success, time
		ORDER BY time DESC
		LIMIT %d
	`, s.databaseName, s.tableName, escapeStringLiteral(safeAddress), limit)

	result, err := s.queryClient.Query(ctx, &timestreamquery.QueryInput{
		QueryString: aws.String(query),
	})
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	reports := make([]*report.Report, 0, len(result.Rows))
	for _, row := range result.Rows {
		if len(row.Data) < 6 {
			return nil, fmt.Errorf("invalid result format")
		}

		r := &report.Report{
			RunID:       aws.ToString(row.Data[0].ScalarValue),
			SafeAddress: aws.ToString(row.Data[1].ScalarValue),
		}
		r.Success, _ = strconv.ParseBool(aws.ToString(row.Data[2].ScalarValue))

		ts, err := parseTimestreamTime(aws.ToString(row.Data[3].ScalarValue))
		if err != nil {
			return nil, err
		}
		r.Timestamp = ts

		if v := row.Data[4].ScalarValue; v != nil {
			if r.WalletConnectCount, err = strconv.Atoi(*v); err != nil {
				return nil, fmt.Errorf("invalid walletconnect_count: %w", err)
			}
		}
		if v := row.Data[5].ScalarValue; v != nil {
			if r.TransactionsFetched, err = strconv.Atoi(*v); err != nil {
				return nil, fmt.Errorf("invalid transactions_fetched: %w", err)
			}
		}

		reports = append(reports, r)
	}

	return reports, nil
}

// escapeStringLiteral quotes single quotes so a value can be embedded
// in a Timestream SQL string literal.
func escapeStringLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

// parseTimestreamTime parses Timestream's timestamp column format.
func parseTimestreamTime(value string) (time.Time, error) {
	ts, err := time.Parse("2006-01-02 15:04:05.000000000", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", value, err)
	}
	return ts, nil
}
