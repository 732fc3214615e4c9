package metrics

import (
	"sync"
	"time"
)

// Collector tracks HTTP and relay counters and renders them in Prometheus text format.
type Collector struct {
	mu sync.RWMutex

	// Request metrics
	totalRequests      map[string]int64 // by endpoint
	totalRequestsDur   map[string]int64 // total duration in ms
	requestErrors      map[string]int64 // by endpoint
	requestsInProgress map[string]int64

	// Relay metrics
	relayOutcomes  map[string]int64 // by outcome: done, incomplete, upstream_error, canceled
	relaysByModel  map[string]int64
	upstreamErrors int64 // failures before the event stream started
	fragments      int64
	chars          int64
	skippedLines   int64
	firstByteMSSum int64
	firstByteCount int64

	startTime time.Time
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{
		totalRequests:      make(map[string]int64),
		totalRequestsDur:   make(map[string]int64),
		requestErrors:      make(map[string]int64),
		requestsInProgress: make(map[string]int64),
		relayOutcomes:      make(map[string]int64),
		relaysByModel:      make(map[string]int64),
		startTime:          time.Now(),
	}
}

// RecordRequest records a completed request to an endpoint.
func (c *Collector) RecordRequest(endpoint string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalRequests[endpoint]++
	c.totalRequestsDur[endpoint] += duration.Milliseconds()
}

// RecordError records an error response for an endpoint.
func (c *Collector) RecordError(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestErrors[endpoint]++
}

// RecordRequestStart increments in-progress requests.
func (c *Collector) RecordRequestStart(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestsInProgress[endpoint]++
}

// RecordRequestEnd decrements in-progress requests.
func (c *Collector) RecordRequestEnd(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requestsInProgress[endpoint]--
}

// RecordUpstreamError counts relays that failed before any event was written.
func (c *Collector) RecordUpstreamError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.upstreamErrors++
}

// RecordRelay records the summary of a finished relay.
func (c *Collector) RecordRelay(model, outcome string, fragments, chars, skipped int, firstByte time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.relayOutcomes[outcome]++
	if model != "" {
		c.relaysByModel[model]++
	}
	c.fragments += int64(fragments)
	c.chars += int64(chars)
	c.skippedLines += int64(skipped)
	if firstByte > 0 {
		c.firstByteMSSum += firstByte.Milliseconds()
		c.firstByteCount++
	}
}

// Snapshot returns a point-in-time snapshot of all metrics.
type Snapshot struct {
	Uptime             int64
	TotalRequests      map[string]int64
	TotalRequestsDur   map[string]int64
	RequestErrors      map[string]int64
	RequestsInProgress map[string]int64
	RelayOutcomes      map[string]int64
	RelaysByModel      map[string]int64
	UpstreamErrors     int64
	Fragments          int64
	Chars              int64
	SkippedLines       int64
	FirstByteMSSum     int64
	FirstByteCount     int64
}

// GetSnapshot returns a snapshot of current metrics.
func (c *Collector) GetSnapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Snapshot{
		Uptime:             int64(time.Since(c.startTime).Seconds()),
		TotalRequests:      copyMap(c.totalRequests),
		TotalRequestsDur:   copyMap(c.totalRequestsDur),
		RequestErrors:      copyMap(c.requestErrors),
		RequestsInProgress: copyMap(c.requestsInProgress),
		RelayOutcomes:      copyMap(c.relayOutcomes),
		RelaysByModel:      copyMap(c.relaysByModel),
		UpstreamErrors:     c.upstreamErrors,
		Fragments:          c.fragments,
		Chars:              c.chars,
		SkippedLines:       c.skippedLines,
		FirstByteMSSum:     c.firstByteMSSum,
		FirstByteCount:     c.firstByteCount,
	}
}

func copyMap(m map[string]int64) map[string]int64 {
	result := make(map[string]int64, len(m))
	for k, v := range m {
		result[k] = v
	}
	return result
}
