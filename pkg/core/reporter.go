/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: reporter.go
Description: Reporter interface and implementations for batch cracking telemetry.
LoggerReporter writes crack, failure and statistics lines through the cracker logger;
SummaryReporter aggregates durations and consumed bytes into batch statistics.
*/

package core

import (
	"sort"
	"sync"
	"time"

	"github.com/kleascm/akaylee-cracker/pkg/logging"
	"gonum.org/v1/gonum/stat"
)

// Reporter receives corpus and crack events from the runner
type Reporter interface {
	// OnSampleAdded is called when a sample is queued for cracking
	OnSampleAdded(sample *Sample)
	// OnSampleCracked is called after every pass, successful or not
	OnSampleCracked(result *CrackResult)
	// OnBatchComplete is called once after the last result
	OnBatchComplete(stats BatchStats)
}

// LoggerReporter logs batch events using the cracker logger
type LoggerReporter struct {
	logger *logging.Logger
	every  int
	stats  *BatchStats
}

// NewLoggerReporter creates a reporter that logs statistics every `every` samples (0 disables)
func NewLoggerReporter(logger *logging.Logger, every int) *LoggerReporter {
	return &LoggerReporter{
		logger: logger,
		every:  every,
		stats:  &BatchStats{StartTime: time.Now()},
	}
}

// OnSampleAdded logs the queued sample
func (r *LoggerReporter) OnSampleAdded(sample *Sample) {
	r.logger.Debug("Sample queued", map[string]interface{}{
		"sample_id": sample.ID,
		"name":      sample.Name,
		"size":      sample.Size,
	})
}

// OnSampleCracked logs the outcome and, periodically, batch statistics
func (r *LoggerReporter) OnSampleCracked(result *CrackResult) {
	fields := map[string]interface{}{
		"name":          result.SampleName,
		"worker_id":     result.WorkerID,
		"consumed_bits": result.ConsumedBits,
	}
	if result.Status == StatusCracked {
		r.logger.LogCrack(result.SampleID, result.Duration, result.Status.String(), fields)
	} else {
		kind := result.Status.String()
		if result.Failure != nil {
			kind = result.Failure.Kind
			fields["path"] = result.Failure.Path
			fields["position"] = result.Failure.Position
			fields["error"] = result.Failure.Message
		}
		r.logger.LogFailure(result.SampleID, kind, fields)
	}

	r.stats.Record(result)
	if r.every > 0 && r.stats.Snapshot().Samples%int64(r.every) == 0 {
		r.logStats(r.stats.Snapshot())
	}
}

// OnBatchComplete logs the final statistics
func (r *LoggerReporter) OnBatchComplete(stats BatchStats) {
	r.logStats(stats)
}

func (r *LoggerReporter) logStats(s BatchStats) {
	r.logger.LogStats(s.Samples, s.Cracked, s.Failed, s.SamplesPerSecond(), map[string]interface{}{
		"timeouts":   s.Timeouts,
		"bytes_read": s.BytesRead,
	})
}

// Summary aggregates a finished batch
type Summary struct {
	Samples        int            `json:"samples"`
	Cracked        int            `json:"cracked"`
	Failed         int            `json:"failed"`
	Timeouts       int            `json:"timeouts"`
	Skipped        int            `json:"skipped"`
	MeanDuration   time.Duration  `json:"mean_duration"`
	StdDevDuration time.Duration  `json:"stddev_duration"`
	P95Duration    time.Duration  `json:"p95_duration"`
	MeanBytes      float64        `json:"mean_bytes"`
	StdDevBytes    float64        `json:"stddev_bytes"`
	FailureKinds   map[string]int `json:"failure_kinds,omitempty"`
}

// SummaryReporter collects per-sample measurements for a Summary
type SummaryReporter struct {
	mu        sync.Mutex
	durations []float64
	bytes     []float64
	summary   Summary
}

// NewSummaryReporter creates an empty summary reporter
func NewSummaryReporter() *SummaryReporter {
	return &SummaryReporter{summary: Summary{FailureKinds: make(map[string]int)}}
}

// OnSampleAdded is a no-op
func (r *SummaryReporter) OnSampleAdded(*Sample) {}

// OnSampleCracked records the result
func (r *SummaryReporter) OnSampleCracked(result *CrackResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.summary.Samples++
	switch result.Status {
	case StatusCracked:
		r.summary.Cracked++
		r.durations = append(r.durations, float64(result.Duration))
		r.bytes = append(r.bytes, float64(result.ConsumedBits)/8)
		return
	case StatusFailed:
		r.summary.Failed++
	case StatusTimeout:
		r.summary.Timeouts++
	case StatusSkipped:
		r.summary.Skipped++
	}
	if result.Failure != nil {
		r.summary.FailureKinds[result.Failure.Kind]++
	}
}

// OnBatchComplete is a no-op; Summary computes on demand
func (r *SummaryReporter) OnBatchComplete(BatchStats) {}

// Summary returns statistics over the cracked samples so far
func (r *SummaryReporter) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.summary
	s.FailureKinds = make(map[string]int, len(r.summary.FailureKinds))
	for k, v := range r.summary.FailureKinds {
		s.FailureKinds[k] = v
	}

	if len(r.durations) == 0 {
		return s
	}

	mean, std := stat.MeanStdDev(r.durations, nil)
	if len(r.durations) < 2 {
		std = 0
	}
	s.MeanDuration = time.Duration(mean)
	s.StdDevDuration = time.Duration(std)

	sorted := append([]float64(nil), r.durations...)
	sort.Float64s(sorted)
	s.P95Duration = time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil))

	s.MeanBytes, s.StdDevBytes = stat.MeanStdDev(r.bytes, nil)
	if len(r.bytes) < 2 {
		s.StdDevBytes = 0
	}
	return s
}
