package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/safe-tools/origin-report/pkg/report"
)

// ReportCollection holds all loaded run reports.
type ReportCollection struct {
	Reports       []*report.Report
	SafeAddresses []string
}

// FilterOptions narrows which reports are loaded.
type FilterOptions struct {
	SafeAddress string
	StartTime   time.Time
	EndTime     time.Time
}

// Command line flags
var (
	inputPath   = flag.String("input", "", "Path to report results directory or specific report file")
	outputPath  = flag.String("output", "visualizations", "Directory to store visualization outputs")
	format      = flag.String("format", "all", "Output format: text, csv, chart, all")
	safeAddress = flag.String("safe-address", "", "Only include reports for this safe address")
	startDate   = flag.String("start-date", "", "Start date filter (YYYY-MM-DD)")
	endDate     = flag.String("end-date", "", "End date filter (YYYY-MM-DD)")
)

func main() {
	flag.Parse()

	if *inputPath == "" {
		log.Fatal("Input path is required. Use --input flag to specify the directory or file.")
	}

	if err := os.MkdirAll(*outputPath, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	filterOpts := parseFilterOptions()

	collection, err := loadReports(*inputPath, filterOpts)
	if err != nil {
		log.Fatalf("Failed to load reports: %v", err)
	}

	if len(collection.Reports) == 0 {
		log.Fatal("No reports found.")
	}

	fmt.Printf("Loaded %d reports.\n", len(collection.Reports))
	fmt.Printf("Safe addresses: %s\n", strings.Join(collection.SafeAddresses, ", "))

	if *format == "text" || *format == "all" {
		generateTextSummary(collection)
	}

	if *format == "csv" || *format == "all" {
		generateCSVReport(collection)
	}

	if *format == "chart" || *format == "all" {
		generateShareChart(collection)
		generateOriginChart(collection)
	}
}

// parseFilterOptions parses command line flags into filter options.
func parseFilterOptions() FilterOptions {
	filterOpts := FilterOptions{SafeAddress: *safeAddress}

	if *startDate != "" {
		startTime, err := time.Parse("2006-01-02", *startDate)
		if err != nil {
			log.Fatalf("Invalid start date format. Use YYYY-MM-DD: %v", err)
		}
		filterOpts.StartTime = startTime
	}

	if *endDate != "" {
		endTime, err := time.Parse("2006-01-02", *endDate)
		if err != nil {
			log.Fatalf("Invalid end date format. Use YYYY-MM-DD: %v", err)
		}
		// Set to end of day
		filterOpts.EndTime = endTime.Add(24*time.Hour - time.Second)
	}

	return filterOpts
}

// loadReports loads run reports from a file or directory.
func loadReports(path string, filterOpts FilterOptions) (ReportCollection, error) {
	collection := ReportCollection{}
	safes := make(map[string]bool)

	appendReport := func(r *report.Report) {
		if shouldIncludeReport(r, filterOpts) {
			collection.Reports = append(collection.Reports, r)
			safes[r.SafeAddress] = true
		}
	}

	fileInfo, err := os.Stat(path)
	if err != nil {
		return collection, fmt.Errorf("failed to stat path: %v", err)
	}

	if fileInfo.IsDir() {
		err = filepath.Walk(path, func(filePath string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && strings.HasSuffix(info.Name(), ".json") {
				r, err := loadReportFromFile(filePath)
				if err != nil {
					fmt.Printf("Warning: Skipping file %s: %v\n", filePath, err)
					return nil
				}
				appendReport(r)
			}
			return nil
		})
		if err != nil {
			return collection, fmt.Errorf("failed to walk directory: %v", err)
		}
	} else {
		r, err := loadReportFromFile(path)
		if err != nil {
			return collection, fmt.Errorf("failed to load report file: %v", err)
		}
		appendReport(r)
	}

	sort.Slice(collection.Reports, func(i, j int) bool {
		return collection.Reports[i].Timestamp.Before(collection.Reports[j].Timestamp)
	})

	for safe := range safes {
		collection.SafeAddresses = append(collection.SafeAddresses, safe)
	}
	sort.Strings(collection.SafeAddresses)

	return collection, nil
}

// loadReportFromFile loads a run report from a file.
func loadReportFromFile(filePath string) (*report.Report, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %v", err)
	}

	var r report.Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %v", err)
	}

	if r.RunID == "" {
		return nil, fmt.Errorf("not a run report")
	}

	return &r, nil
}

// shouldIncludeReport checks if a report passes the configured filters.
func shouldIncludeReport(r *report.Report, filterOpts FilterOptions) bool {
	if filterOpts.SafeAddress != "" && r.SafeAddress != filterOpts.SafeAddress {
		return false
	}

	if !filterOpts.StartTime.IsZero() && r.Timestamp.Before(filterOpts.StartTime) {
		return false
	}

	if !filterOpts.EndTime.IsZero() && r.Timestamp.After(filterOpts.EndTime) {
		return false
	}

	return true
}

// generateTextSummary renders a table of the loaded reports.
func generateTextSummary(collection ReportCollection) {
	fmt.Println("\n=== Safe Origin Report Summary ===")

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Run", "Safe", "Time", "Fetched", "WalletConnect", "Share (%)", "Status"})

	for _, r := range collection.Reports {
		table.Append(reportRow(r))
	}

	table.Render()

	outputFile := filepath.Join(*outputPath, "summary.txt")
	file, err := os.Create(outputFile)
	if err != nil {
		fmt.Printf("Warning: Failed to create summary file: %v\n", err)
		return
	}
	defer file.Close()

	fileTable := tablewriter.NewWriter(file)
	fileTable.SetHeader([]string{"Run", "Safe", "Time", "Fetched", "WalletConnect", "Share (%)", "Status"})
	for _, r := range collection.Reports {
		fileTable.Append(reportRow(r))
	}
	fileTable.Render()

	fmt.Printf("Text summary saved to: %s\n", outputFile)
}

func reportRow(r *report.Report) []string {
	status := "ok"
	if !r.Success {
		status = "failed"
	}

	runID := r.RunID
	if len(runID) > 8 {
		runID = runID[:8]
	}

	return []string{
		runID,
		shortenAddress(r.SafeAddress),
		r.Timestamp.Format("2006-01-02 15:04:05"),
		fmt.Sprintf("%d", r.TransactionsFetched),
		fmt.Sprintf("%d", r.WalletConnectCount),
		fmt.Sprintf("%.1f", r.WalletConnectShare()*100),
		status,
	}
}

func shortenAddress(address string) string {
	if len(address) <= 12 {
		return address
	}
	return address[:8] + "…" + address[len(address)-4:]
}

// generateCSVReport writes the loaded reports as CSV.
func generateCSVReport(collection ReportCollection) {
	outputFile := filepath.Join(*outputPath, "reports.csv")
	file, err := os.Create(outputFile)
	if err != nil {
		fmt.Printf("Warning: Failed to create CSV file: %v\n", err)
		return
	}
	defer file.Close()

	file.WriteString("runId,safeAddress,timestamp,transactionsFetched,walletConnectCount,share,success\n")
	for _, r := range collection.Reports {
		file.WriteString(fmt.Sprintf("%s,%s,%s,%d,%d,%.4f,%t\n",
			r.RunID,
			r.SafeAddress,
			r.Timestamp.Format(time.RFC3339),
			r.TransactionsFetched,
			r.WalletConnectCount,
			r.WalletConnectShare(),
			r.Success,
		))
	}

	fmt.Printf("CSV report saved to: %s\n", outputFile)
}

// generateShareChart renders per-safe bars of WalletConnect vs other
// transactions, summed over the loaded reports.
func generateShareChart(collection ReportCollection) {
	walletConnect := make(map[string]int)
	other := make(map[string]int)

	for _, r := range collection.Reports {
		walletConnect[r.SafeAddress] += r.WalletConnectCount
		other[r.SafeAddress] += r.TransactionsFetched - r.WalletConnectCount
	}

	var bars []chart.Value
	for _, safe := range collection.SafeAddresses {
		bars = append(bars,
			chart.Value{
				Label: shortenAddress(safe) + " WC",
				Value: float64(walletConnect[safe]),
				Style: chart.Style{FillColor: drawing.Color{R: 77, G: 184, B: 255, A: 255}},
			},
			chart.Value{
				Label: shortenAddress(safe) + " other",
				Value: float64(other[safe]),
				Style: chart.Style{FillColor: drawing.Color{R: 250, G: 134, B: 94, A: 255}},
			},
		)
	}

	barChart := chart.BarChart{
		Title: "WalletConnect vs Other Transactions by Safe",
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  800,
		Height: 400,
		Bars:   bars,
	}

	renderChart(barChart, filepath.Join(*outputPath, "walletconnect_share_chart.png"))
}

// generateOriginChart renders the aggregated origin breakdown.
func generateOriginChart(collection ReportCollection) {
	breakdown := make(map[string]int)
	for _, r := range collection.Reports {
		for label, count := range r.OriginBreakdown {
			breakdown[label] += count
		}
	}

	if len(breakdown) == 0 {
		return
	}

	var bars []chart.Value
	for label, count := range breakdown {
		bars = append(bars, chart.Value{
			Label: label,
			Value: float64(count),
		})
	}

	// Sort bars by label for consistency
	sort.Slice(bars, func(i, j int) bool {
		return bars[i].Label < bars[j].Label
	})

	barChart := chart.BarChart{
		Title: "Transactions by Origin",
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 20,
			},
		},
		Width:  800,
		Height: 400,
		Bars:   bars,
	}

	renderChart(barChart, filepath.Join(*outputPath, "origin_breakdown_chart.png"))
}

func renderChart(barChart chart.BarChart, outputFile string) {
	f, err := os.Create(outputFile)
	if err != nil {
		fmt.Printf("Warning: Failed to create chart file: %v\n", err)
		return
	}
	defer f.Close()

	if err := barChart.Render(chart.PNG, f); err != nil {
		fmt.Printf("Warning: Failed to render chart: %v\n", err)
		return
	}

	fmt.Printf("Chart saved to: %s\n", outputFile)
}
