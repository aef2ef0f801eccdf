/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: types.go
Description: Core types for the Akaylee Cracker batch driver. Defines samples, crack
results, batch statistics and the runner configuration.
*/

package core

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Sample is one input to crack against the data model
type Sample struct {
	ID        string                 `json:"id"`         // Unique identifier for the sample
	Name      string                 `json:"name"`       // File name or caller supplied label
	Data      []byte                 `json:"-"`          // Raw input bytes
	Size      int                    `json:"size"`       // Length of Data in bytes
	CreatedAt time.Time              `json:"created_at"` // When the sample entered the corpus
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// CrackStatus represents the outcome of cracking a sample
type CrackStatus int

const (
	StatusCracked CrackStatus = iota
	StatusFailed
	StatusTimeout
	StatusSkipped
)

func (s CrackStatus) String() string {
	switch s {
	case StatusCracked:
		return "cracked"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	case StatusSkipped:
		return "skipped"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// MarshalText renders the status by name in JSON output
func (s CrackStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name
func (s *CrackStatus) UnmarshalText(text []byte) error {
	for _, candidate := range []CrackStatus{StatusCracked, StatusFailed, StatusTimeout, StatusSkipped} {
		if candidate.String() == string(text) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("unknown crack status: %s", text)
}

// CrackResult is the outcome of cracking one sample
type CrackResult struct {
	SampleID     string        `json:"sample_id"`
	SampleName   string        `json:"sample_name"`
	PassID       string        `json:"pass_id"` // Unique id of this crack pass
	Status       CrackStatus   `json:"status"`
	Duration     time.Duration `json:"duration"`
	ConsumedBits uint64        `json:"consumed_bits"` // Bits read from the start of the sample
	Unconsumed   uint64        `json:"unconsumed_bits"`
	Failure      *FailureInfo  `json:"failure,omitempty"`
	Tree         *Node         `json:"tree,omitempty"`
	WorkerID     int           `json:"worker_id"`
}

// FailureInfo is the serialisable form of a cracking failure
type FailureInfo struct {
	Kind     string `json:"kind"`
	Path     string `json:"path,omitempty"`
	Position uint64 `json:"position"`
	Message  string `json:"message"`
}

// BatchStats tracks batch statistics with atomic counters
type BatchStats struct {
	Samples   int64     `json:"samples"`
	Cracked   int64     `json:"cracked"`
	Failed    int64     `json:"failed"`
	Timeouts  int64     `json:"timeouts"`
	BytesRead int64     `json:"bytes_read"`
	StartTime time.Time `json:"start_time"`
}

// Record atomically counts a finished result
func (s *BatchStats) Record(result *CrackResult) {
	atomic.AddInt64(&s.Samples, 1)
	switch result.Status {
	case StatusCracked:
		atomic.AddInt64(&s.Cracked, 1)
		atomic.AddInt64(&s.BytesRead, int64(result.ConsumedBits/8))
	case StatusFailed:
		atomic.AddInt64(&s.Failed, 1)
	case StatusTimeout:
		atomic.AddInt64(&s.Timeouts, 1)
	}
}

// Snapshot returns a consistent copy of the counters
func (s *BatchStats) Snapshot() BatchStats {
	return BatchStats{
		Samples:   atomic.LoadInt64(&s.Samples),
		Cracked:   atomic.LoadInt64(&s.Cracked),
		Failed:    atomic.LoadInt64(&s.Failed),
		Timeouts:  atomic.LoadInt64(&s.Timeouts),
		BytesRead: atomic.LoadInt64(&s.BytesRead),
		StartTime: s.StartTime,
	}
}

// SamplesPerSecond returns the throughput since StartTime
func (s *BatchStats) SamplesPerSecond() float64 {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(atomic.LoadInt64(&s.Samples)) / elapsed
}

// CrackerConfig contains all configuration parameters for a batch run
type CrackerConfig struct {
	// Model configuration
	ModelPath string `json:"model_path" mapstructure:"model"` // Path to the YAML data model

	// Input configuration
	CorpusDir string   `json:"corpus_dir" mapstructure:"corpus"` // Directory of samples to crack
	DataFiles []string `json:"data_files" mapstructure:"data"`   // Individual sample files

	// Execution configuration
	Workers int           `json:"workers" mapstructure:"workers"` // Number of parallel workers
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"` // Maximum crack time per sample

	// Output configuration
	OutputDir    string `json:"output_dir" mapstructure:"output_dir"`      // Directory for JSON results
	OutputFormat string `json:"output_format" mapstructure:"output"`       // text, json or html
	ShowTree     bool   `json:"show_tree" mapstructure:"tree"`             // Render cracked trees
	KeepTrees    bool   `json:"keep_trees" mapstructure:"keep_trees"`      // Attach trees to results
	StatsEvery   int    `json:"stats_every" mapstructure:"stats_interval"` // Log stats every N samples
	ProfileDir   string `json:"profile_dir" mapstructure:"profile_dir"`    // Write pprof profiles here

	// Logging configuration
	LogLevel  string `json:"log_level" mapstructure:"log_level"`   // trace, debug, info, warn, error
	LogFormat string `json:"log_format" mapstructure:"log_format"` // text, json, custom
	LogDir    string `json:"log_dir" mapstructure:"log_dir"`       // Empty disables log files
}

// Validate checks the CrackerConfig for invalid or missing values
func (c *CrackerConfig) Validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	if c.CorpusDir == "" && len(c.DataFiles) == 0 {
		return fmt.Errorf("either a corpus directory or data files are required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	switch c.OutputFormat {
	case "", "text", "json", "html":
	default:
		return fmt.Errorf("unsupported output format: %s", c.OutputFormat)
	}
	if c.StatsEvery < 0 {
		return fmt.Errorf("stats interval must not be negative")
	}
	return nil
}
