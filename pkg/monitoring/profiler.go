/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: profiler.go
Description: Performance profiling for the Akaylee Cracker. Captures CPU, heap and
goroutine profiles around a crack batch and summarizes memory and GC usage so slow
models and pathological inputs can be investigated with pprof.
*/

package monitoring

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ProfilerType represents the type of profiling
type ProfilerType string

const (
	ProfilerTypeCPU       ProfilerType = "cpu"
	ProfilerTypeHeap      ProfilerType = "heap"
	ProfilerTypeGoroutine ProfilerType = "goroutine"
)

// ProfilerConfig represents profiling configuration
type ProfilerConfig struct {
	OutputDir        string `json:"output_dir"`
	CPUProfile       bool   `json:"cpu_profile"`
	HeapProfile      bool   `json:"heap_profile"`
	GoroutineProfile bool   `json:"goroutine_profile"`
}

// DefaultProfilerConfig enables every profile under dir
func DefaultProfilerConfig(dir string) *ProfilerConfig {
	return &ProfilerConfig{
		OutputDir:        dir,
		CPUProfile:       true,
		HeapProfile:      true,
		GoroutineProfile: true,
	}
}

// ProfileResult describes one written profile
type ProfileResult struct {
	Type       ProfilerType `json:"type"`
	OutputFile string       `json:"output_file"`
	Size       int64        `json:"size"`
}

// PerformanceSummary represents runtime usage over a profiled run
type PerformanceSummary struct {
	Duration    time.Duration   `json:"duration"`
	HeapAlloc   uint64          `json:"heap_alloc"`
	HeapSys     uint64          `json:"heap_sys"`
	TotalAlloc  uint64          `json:"total_alloc"`
	GCs         uint32          `json:"gcs"`
	GCPauseTime time.Duration   `json:"gc_pause_time"`
	GoRoutines  int             `json:"go_routines"`
	Profiles    []ProfileResult `json:"profiles"`
}

// Profiler captures pprof profiles between Start and Stop
type Profiler struct {
	config *ProfilerConfig
	logger logrus.FieldLogger

	mu        sync.Mutex
	running   bool
	startTime time.Time
	startMem  runtime.MemStats
	cpuFile   *os.File
	stamp     string
}

// NewProfiler creates a new performance profiler
func NewProfiler(config *ProfilerConfig, logger logrus.FieldLogger) *Profiler {
	return &Profiler{config: config, logger: logger}
}

// Start begins profiling
func (p *Profiler) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("profiler already running")
	}
	if err := os.MkdirAll(p.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	p.startTime = time.Now()
	p.stamp = p.startTime.Format("2006-01-02_15-04-05")
	runtime.ReadMemStats(&p.startMem)

	if p.config.CPUProfile {
		file, err := os.Create(p.path(ProfilerTypeCPU))
		if err != nil {
			return fmt.Errorf("failed to create CPU profile file: %w", err)
		}
		if err := pprof.StartCPUProfile(file); err != nil {
			file.Close()
			return fmt.Errorf("failed to start CPU profile: %w", err)
		}
		p.cpuFile = file
	}

	p.running = true
	p.logger.WithField("output_dir", p.config.OutputDir).Info("Performance profiler started")
	return nil
}

// Stop writes the remaining profiles and returns the run summary
func (p *Profiler) Stop() (*PerformanceSummary, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return nil, fmt.Errorf("profiler not running")
	}
	p.running = false

	var profiles []ProfileResult
	if p.cpuFile != nil {
		pprof.StopCPUProfile()
		if err := p.cpuFile.Close(); err != nil {
			return nil, fmt.Errorf("failed to close CPU profile: %w", err)
		}
		p.cpuFile = nil
		profiles = append(profiles, p.result(ProfilerTypeCPU))
	}

	if p.config.HeapProfile {
		runtime.GC()
		if err := p.writeLookup(ProfilerTypeHeap, "heap"); err != nil {
			return nil, err
		}
		profiles = append(profiles, p.result(ProfilerTypeHeap))
	}

	if p.config.GoroutineProfile {
		if err := p.writeLookup(ProfilerTypeGoroutine, "goroutine"); err != nil {
			return nil, err
		}
		profiles = append(profiles, p.result(ProfilerTypeGoroutine))
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	summary := &PerformanceSummary{
		Duration:    time.Since(p.startTime),
		HeapAlloc:   mem.HeapAlloc,
		HeapSys:     mem.HeapSys,
		TotalAlloc:  mem.TotalAlloc - p.startMem.TotalAlloc,
		GCs:         mem.NumGC - p.startMem.NumGC,
		GCPauseTime: time.Duration(mem.PauseTotalNs - p.startMem.PauseTotalNs),
		GoRoutines:  runtime.NumGoroutine(),
		Profiles:    profiles,
	}

	p.logger.WithFields(logrus.Fields{
		"duration":    summary.Duration,
		"heap_alloc":  summary.HeapAlloc,
		"total_alloc": summary.TotalAlloc,
		"gcs":         summary.GCs,
		"profiles":    len(profiles),
	}).Info("Performance profiler stopped")
	return summary, nil
}

func (p *Profiler) path(t ProfilerType) string {
	return filepath.Join(p.config.OutputDir, fmt.Sprintf("%s_%s.prof", t, p.stamp))
}

func (p *Profiler) result(t ProfilerType) ProfileResult {
	r := ProfileResult{Type: t, OutputFile: p.path(t)}
	if info, err := os.Stat(r.OutputFile); err == nil {
		r.Size = info.Size()
	}
	return r
}

// writeLookup writes a named runtime profile
func (p *Profiler) writeLookup(t ProfilerType, name string) error {
	file, err := os.Create(p.path(t))
	if err != nil {
		return fmt.Errorf("failed to create %s profile file: %w", t, err)
	}
	defer file.Close()

	if err := pprof.Lookup(name).WriteTo(file, 0); err != nil {
		return fmt.Errorf("failed to write %s profile: %w", t, err)
	}
	return nil
}
