/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: worker.go
Description: Worker implementation for parallel sample cracking in the Akaylee Cracker.
Each crack runs on a private deep copy of the data model and a private bit stream,
so an abandoned pass never touches state another sample can see.
*/

package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kleascm/akaylee-cracker/pkg/bitstream"
	"github.com/kleascm/akaylee-cracker/pkg/cracker"
	"github.com/kleascm/akaylee-cracker/pkg/schema"
	"github.com/sirupsen/logrus"
)

// Worker cracks samples one at a time against a data model
type Worker struct {
	ID        int
	model     *schema.Model
	logger    logrus.FieldLogger
	timeout   time.Duration
	keepTrees bool
	observers []cracker.Observer

	// Performance tracking
	mu       sync.RWMutex
	cracked  int64
	failed   int64
	timeouts int64
	busy     time.Duration
	started  time.Time
}

// NewWorker creates a new worker instance
func NewWorker(id int, model *schema.Model, logger logrus.FieldLogger, timeout time.Duration, keepTrees bool) *Worker {
	return &Worker{
		ID:        id,
		model:     model,
		logger:    logger.WithField("worker", id),
		timeout:   timeout,
		keepTrees: keepTrees,
		started:   time.Now(),
	}
}

// AddObserver attaches an observer to every pass this worker runs
func (w *Worker) AddObserver(o cracker.Observer) {
	w.observers = append(w.observers, o)
}

type passOutcome struct {
	err      error
	consumed uint64
	length   uint64
	tree     *Node
}

// Crack runs one pass over sample. It returns when the pass finishes, the
// timeout elapses or ctx is cancelled, whichever comes first.
func (w *Worker) Crack(ctx context.Context, sample *Sample) *CrackResult {
	result := &CrackResult{
		SampleID:   sample.ID,
		SampleName: sample.Name,
		PassID:     uuid.New().String(),
		WorkerID:   w.ID,
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	start := time.Now()
	done := make(chan passOutcome, 1)
	go func() {
		done <- w.run(sample, result.PassID)
	}()

	select {
	case out := <-done:
		result.Duration = time.Since(start)
		result.ConsumedBits = out.consumed
		result.Unconsumed = out.length - out.consumed
		result.Tree = out.tree
		if out.err != nil {
			result.Status = StatusFailed
			result.Failure = failureInfo(out.err)
		} else {
			result.Status = StatusCracked
		}
	case <-ctx.Done():
		// the pass goroutine keeps running on its private copy until it finishes
		result.Duration = time.Since(start)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			result.Status = StatusTimeout
			result.Failure = &FailureInfo{Kind: "timeout", Message: "crack exceeded " + w.timeout.String()}
		} else {
			result.Status = StatusSkipped
			result.Failure = &FailureInfo{Kind: "cancelled", Message: ctx.Err().Error()}
		}
	}

	w.record(result)
	return result
}

// run performs the pass on private copies of the model and data
func (w *Worker) run(sample *Sample, passID string) passOutcome {
	root := w.model.Instance()
	stream := bitstream.New(sample.Data)

	log := w.logger.WithFields(logrus.Fields{"sample_id": sample.ID, "pass_id": passID})
	c := cracker.New(log, w.observers...)

	err := c.Crack(root, stream)
	out := passOutcome{
		err:      err,
		consumed: stream.TellBits(),
		length:   stream.LengthBits(),
	}
	if out.consumed > out.length {
		out.consumed = out.length
	}
	if err == nil && w.keepTrees {
		out.tree = Snapshot(root, c)
	}
	return out
}

func failureInfo(err error) *FailureInfo {
	var f *cracker.CrackingFailure
	if errors.As(err, &f) {
		return &FailureInfo{
			Kind:     f.Kind.String(),
			Path:     f.Path,
			Position: f.Position,
			Message:  f.Error(),
		}
	}
	return &FailureInfo{Kind: "error", Message: err.Error()}
}

func (w *Worker) record(result *CrackResult) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.busy += result.Duration
	switch result.Status {
	case StatusCracked:
		w.cracked++
	case StatusFailed:
		w.failed++
	case StatusTimeout:
		w.timeouts++
	}
}

// GetStats returns worker performance statistics
func (w *Worker) GetStats() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	total := w.cracked + w.failed + w.timeouts
	stats := map[string]interface{}{
		"id":       w.ID,
		"cracked":  w.cracked,
		"failed":   w.failed,
		"timeouts": w.timeouts,
		"busy":     w.busy,
		"uptime":   time.Since(w.started),
	}
	if uptime := time.Since(w.started).Seconds(); uptime > 0 {
		stats["samples_per_sec"] = float64(total) / uptime
	}
	return stats
}
