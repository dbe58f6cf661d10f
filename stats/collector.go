// Package stats accumulates dispatch usage statistics and renders
// diagnostic reports over them and over the pipeline registry.
package stats

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/dispatchmate/dmate-go/interceptors"
)

// metricKey identifies one dispatch population.
type metricKey struct {
	shape       string
	payloadType string
}

// typeStats accumulates raw measurements for one population.
type typeStats struct {
	dispatches int64
	errors     int64
	timed      int64
	totalNanos int64
	minNanos   int64
	maxNanos   int64
}

// InMemoryCollector keeps dispatch statistics in process memory. It backs
// the metrics interceptors and can be snapshotted for reports at any
// time.
type InMemoryCollector struct {
	mu    sync.RWMutex
	stats map[metricKey]*typeStats
}

// NewInMemoryCollector creates an empty collector.
func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		stats: make(map[metricKey]*typeStats),
	}
}

// IncrementDispatchCount implements interceptors.MetricsCollector.
func (c *InMemoryCollector) IncrementDispatchCount(shape, payloadType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(shape, payloadType).dispatches++
}

// RecordDispatchTime implements interceptors.MetricsCollector.
func (c *InMemoryCollector) RecordDispatchTime(shape, payloadType string, duration time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.entry(shape, payloadType)
	nanos := duration.Nanoseconds()

	s.timed++
	s.totalNanos += nanos
	if s.minNanos == 0 || nanos < s.minNanos {
		s.minNanos = nanos
	}
	if nanos > s.maxNanos {
		s.maxNanos = nanos
	}
}

// IncrementErrorCount implements interceptors.MetricsCollector.
func (c *InMemoryCollector) IncrementErrorCount(shape, payloadType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entry(shape, payloadType).errors++
}

// entry must be called with the write lock held.
func (c *InMemoryCollector) entry(shape, payloadType string) *typeStats {
	key := metricKey{shape: shape, payloadType: payloadType}
	s, ok := c.stats[key]
	if !ok {
		s = &typeStats{}
		c.stats[key] = s
	}
	return s
}

// Row is one dispatch population in a snapshot.
type Row struct {
	Shape       string
	PayloadType string
	Dispatches  int64
	Errors      int64
	TotalTime   time.Duration
	AverageTime time.Duration
	MinTime     time.Duration
	MaxTime     time.Duration
}

// Snapshot is a point-in-time copy of the collected statistics.
type Snapshot struct {
	TakenAt time.Time
	Rows    []Row
}

// Snapshot copies the current statistics, sorted by shape then payload
// type so output is stable.
func (c *InMemoryCollector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows := make([]Row, 0, len(c.stats))
	for key, s := range c.stats {
		row := Row{
			Shape:       key.shape,
			PayloadType: key.payloadType,
			Dispatches:  s.dispatches,
			Errors:      s.errors,
			TotalTime:   time.Duration(s.totalNanos),
			MinTime:     time.Duration(s.minNanos),
			MaxTime:     time.Duration(s.maxNanos),
		}
		if s.timed > 0 {
			row.AverageTime = time.Duration(s.totalNanos / s.timed)
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Shape != rows[j].Shape {
			return rows[i].Shape < rows[j].Shape
		}
		return rows[i].PayloadType < rows[j].PayloadType
	})

	return Snapshot{TakenAt: time.Now(), Rows: rows}
}

// Reset discards everything collected so far.
func (c *InMemoryCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats = make(map[metricKey]*typeStats)
}

// Report logs one line per population plus a summary line.
func (c *InMemoryCollector) Report(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}

	snap := c.Snapshot()
	var dispatches, errs int64
	for _, row := range snap.Rows {
		dispatches += row.Dispatches
		errs += row.Errors

		logger.Info("dispatch statistics",
			"shape", row.Shape,
			"payloadType", row.PayloadType,
			"dispatches", row.Dispatches,
			"errors", row.Errors,
			"avgTime", row.AverageTime,
		)
	}

	logger.Info("dispatch statistics summary",
		"populations", len(snap.Rows),
		"dispatches", dispatches,
		"errors", errs,
	)
}

var _ interceptors.MetricsCollector = (*InMemoryCollector)(nil)
