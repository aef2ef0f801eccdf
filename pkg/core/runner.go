/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: runner.go
Description: Batch runner for the Akaylee Cracker. Loads samples into a corpus,
dispatches them to a pool of workers, enforces the per-sample timeout and collects
results in corpus order while notifying reporters.
*/

package core

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"github.com/kleascm/akaylee-cracker/pkg/cracker"
	"github.com/kleascm/akaylee-cracker/pkg/schema"
	"github.com/sirupsen/logrus"
)

// Runner cracks every sample of a corpus against one data model
type Runner struct {
	config *CrackerConfig
	model  *schema.Model
	logger logrus.FieldLogger

	corpus    *Corpus
	workers   []*Worker
	reporters []Reporter
	observers []cracker.Observer
	stats     *BatchStats

	mu      sync.Mutex
	running bool
}

// NewRunner creates a runner. A nil logger discards runner logs.
func NewRunner(logger logrus.FieldLogger) *Runner {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Runner{
		logger: logger,
		corpus: NewCorpus(),
		stats:  &BatchStats{},
	}
}

// AddReporter registers a Reporter for batch events
func (r *Runner) AddReporter(reporter Reporter) {
	r.reporters = append(r.reporters, reporter)
}

// AddObserver attaches a cracking observer to every worker
func (r *Runner) AddObserver(o cracker.Observer) {
	r.observers = append(r.observers, o)
}

// Corpus returns the runner's corpus
func (r *Runner) Corpus() *Corpus {
	return r.corpus
}

// Stats returns a snapshot of the batch statistics
func (r *Runner) Stats() BatchStats {
	return r.stats.Snapshot()
}

// Initialize validates the configuration, loads inputs and creates workers
func (r *Runner) Initialize(config *CrackerConfig, model *schema.Model) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if model == nil {
		return fmt.Errorf("model is nil")
	}
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = config
	r.model = model

	if config.CorpusDir != "" {
		n, err := r.corpus.LoadDir(config.CorpusDir)
		if err != nil {
			return fmt.Errorf("failed to initialize corpus: %w", err)
		}
		r.logger.WithField("samples", n).Info("Runner loaded corpus directory")
	}
	for _, path := range config.DataFiles {
		if _, err := r.corpus.LoadFile(path); err != nil {
			return fmt.Errorf("failed to initialize corpus: %w", err)
		}
	}
	if r.corpus.Size() == 0 {
		return fmt.Errorf("no samples to crack")
	}

	r.initializeWorkers()

	r.logger.WithFields(logrus.Fields{
		"model":   model.Name,
		"samples": r.corpus.Size(),
		"workers": len(r.workers),
	}).Info("Runner initialized")
	return nil
}

// initializeWorkers creates the worker pool
func (r *Runner) initializeWorkers() {
	numWorkers := r.config.Workers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	if size := r.corpus.Size(); numWorkers > size {
		numWorkers = size
	}

	r.workers = make([]*Worker, numWorkers)
	for i := range r.workers {
		w := NewWorker(i, r.model, r.logger, r.config.Timeout, r.config.KeepTrees || r.config.ShowTree)
		for _, o := range r.observers {
			w.AddObserver(o)
		}
		r.workers[i] = w
	}
}

type job struct {
	index  int
	sample *Sample
}

type outcome struct {
	index  int
	result *CrackResult
}

// Run cracks every sample and returns the results in corpus order. Cancelling
// ctx stops dispatch; samples never dispatched come back as StatusSkipped and
// Run returns ctx's error alongside the results.
func (r *Runner) Run(ctx context.Context) ([]*CrackResult, error) {
	r.mu.Lock()
	if r.model == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("runner is not initialized")
	}
	if r.running {
		r.mu.Unlock()
		return nil, fmt.Errorf("runner is already running")
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	samples := r.corpus.All()
	results := make([]*CrackResult, len(samples))
	r.stats = &BatchStats{StartTime: time.Now()}

	jobs := make(chan job)
	out := make(chan outcome, len(r.workers))

	var wg sync.WaitGroup
	for _, w := range r.workers {
		wg.Add(1)
		go func(w *Worker) {
			defer wg.Done()
			r.logger.WithField("worker", w.ID).Debug("Worker started")
			for j := range jobs {
				out <- outcome{index: j.index, result: w.Crack(ctx, j.sample)}
			}
			r.logger.WithFields(logrus.Fields(w.GetStats())).Debug("Worker stopped")
		}(w)
	}

	go func() {
		defer close(jobs)
		for i, s := range samples {
			for _, rep := range r.reporters {
				rep.OnSampleAdded(s)
			}
			select {
			case jobs <- job{index: i, sample: s}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	for d := range out {
		results[d.index] = d.result
		r.finish(d.result)
	}

	for i, s := range samples {
		if results[i] == nil {
			results[i] = &CrackResult{
				SampleID:   s.ID,
				SampleName: s.Name,
				Status:     StatusSkipped,
				WorkerID:   -1,
				Failure:    &FailureInfo{Kind: "cancelled", Message: "not dispatched before cancellation"},
			}
			r.finish(results[i])
		}
	}

	stats := r.stats.Snapshot()
	for _, rep := range r.reporters {
		rep.OnBatchComplete(stats)
	}
	r.logger.WithFields(logrus.Fields{
		"samples":  stats.Samples,
		"cracked":  stats.Cracked,
		"failed":   stats.Failed,
		"timeouts": stats.Timeouts,
	}).Info("Runner finished")

	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("batch interrupted: %w", err)
	}
	return results, nil
}

func (r *Runner) finish(result *CrackResult) {
	r.stats.Record(result)
	for _, rep := range r.reporters {
		rep.OnSampleCracked(result)
	}
}
