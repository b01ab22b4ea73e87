package metrics

import (
	"fmt"
	"sync"
	"time"
)

// RequestMetric represents the measurement of a single outbound request.
type RequestMetric struct {
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime"`
	Duration     time.Duration `json:"duration"`
	ItemCount    int64         `json:"itemCount"`
	Error        error         `json:"-"`
	ErrorMessage string        `json:"errorMessage,omitempty"`
}

// RunResult stores the metrics collected over one report run.
type RunResult struct {
	RunName     string                 `json:"runName"`
	SafeAddress string                 `json:"safeAddress"`
	StartTime   time.Time              `json:"startTime"`
	EndTime     time.Time              `json:"endTime"`
	Duration    time.Duration          `json:"duration"`
	Requests    []*RequestMetric       `json:"requests"`
	Summary     map[string]interface{} `json:"summary"`
}

// Collector accumulates request measurements for report runs.
type Collector struct {
	mu         sync.Mutex
	currentRun *RunResult
	runs       map[string]*RunResult
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		runs: make(map[string]*RunResult),
	}
}

// StartRun begins a new run and sets it as the current run.
func (c *Collector) StartRun(name, safeAddress string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentRun = &RunResult{
		RunName:     name,
		SafeAddress: safeAddress,
		StartTime:   time.Now(),
		Requests:    make([]*RequestMetric, 0),
		Summary:     make(map[string]interface{}),
	}

	c.runs[name] = c.currentRun
}

// MeasureRequest times a single request and records its outcome. The
// request function returns the number of items it yielded; its error is
// recorded and passed back unchanged.
func (c *Collector) MeasureRequest(request func() (int, error)) error {
	if request == nil {
		return fmt.Errorf("request function cannot be nil")
	}

	c.mu.Lock()
	if c.currentRun == nil {
		c.mu.Unlock()
		return fmt.Errorf("no run is currently active")
	}
	c.mu.Unlock()

	metric := &RequestMetric{
		StartTime: time.Now(),
	}

	items, err := request()
	metric.EndTime = time.Now()
	metric.Duration = metric.EndTime.Sub(metric.StartTime)
	metric.ItemCount = int64(items)

	if err != nil {
		metric.Error = err
		metric.ErrorMessage = err.Error()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.currentRun != nil {
		c.currentRun.Requests = append(c.currentRun.Requests, metric)
	}

	return err
}

// EndRun completes the named run, computes the summary and returns the
// result, or nil when the name does not match the active run.
func (c *Collector) EndRun(name string) *RunResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	run, exists := c.runs[name]
	if !exists || run != c.currentRun {
		return nil
	}

	run.EndTime = time.Now()
	run.Duration = run.EndTime.Sub(run.StartTime)

	var totalDuration time.Duration
	var totalItems, errorCount int64

	for _, req := range run.Requests {
		totalDuration += req.Duration
		totalItems += req.ItemCount
		if req.Error != nil {
			errorCount++
		}
	}

	requestCount := int64(len(run.Requests))
	if requestCount > 0 {
		run.Summary["requestCount"] = requestCount
		run.Summary["totalDurationNs"] = totalDuration.Nanoseconds()
		run.Summary["avgDurationNs"] = totalDuration.Nanoseconds() / requestCount
		run.Summary["totalItems"] = totalItems
		run.Summary["errorCount"] = errorCount
		run.Summary["successRate"] = float64(requestCount-errorCount) / float64(requestCount)
	}

	if c.currentRun == run {
		c.currentRun = nil
	}

	return run
}

// GetRunResult retrieves a run result by name.
func (c *Collector) GetRunResult(name string) *RunResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.runs[name]
}

// Reset clears all run data.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentRun = nil
	c.runs = make(map[string]*RunResult)
}
