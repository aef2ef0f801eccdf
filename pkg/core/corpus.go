/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: corpus.go
Description: Sample corpus for the Akaylee Cracker. Thread-safe storage of input samples
loaded from files or directories, kept in insertion order so batch results are stable.
*/

package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Corpus manages the collection of samples to crack
type Corpus struct {
	samples map[string]*Sample
	order   []string
	mu      sync.RWMutex
	maxSize int
}

// NewCorpus creates a new corpus instance
func NewCorpus() *Corpus {
	return &Corpus{
		samples: make(map[string]*Sample),
		maxSize: 100000,
	}
}

// NewSample wraps data in a sample with a fresh id
func NewSample(name string, data []byte) *Sample {
	return &Sample{
		ID:        uuid.New().String(),
		Name:      name,
		Data:      data,
		Size:      len(data),
		CreatedAt: time.Now(),
	}
}

// Add adds a sample to the corpus. Adding an id twice is a no-op.
func (c *Corpus) Add(sample *Sample) error {
	if sample == nil {
		return fmt.Errorf("sample is nil")
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if sample.ID == "" {
		sample.ID = uuid.New().String()
	}
	if _, exists := c.samples[sample.ID]; exists {
		return nil
	}
	if len(c.samples) >= c.maxSize {
		return fmt.Errorf("corpus is full (%d samples)", c.maxSize)
	}

	sample.Size = len(sample.Data)
	c.samples[sample.ID] = sample
	c.order = append(c.order, sample.ID)
	return nil
}

// Get retrieves a sample by ID, nil when absent
func (c *Corpus) Get(id string) *Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.samples[id]
}

// All returns every sample in insertion order
func (c *Corpus) All() []*Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*Sample, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.samples[id])
	}
	return out
}

// Size returns the number of samples
func (c *Corpus) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.samples)
}

// SetMaxSize sets the maximum number of samples
func (c *Corpus) SetMaxSize(maxSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = maxSize
}

// LoadFile reads one file into the corpus
func (c *Corpus) LoadFile(path string) (*Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample %s: %w", path, err)
	}
	sample := NewSample(filepath.Base(path), data)
	sample.Metadata = map[string]interface{}{"path": path}
	if err := c.Add(sample); err != nil {
		return nil, err
	}
	return sample, nil
}

// LoadDir adds every regular file in dir, sorted by name. Subdirectories are skipped.
func (c *Corpus) LoadDir(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read corpus directory: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	loaded := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if _, err := c.LoadFile(filepath.Join(dir, entry.Name())); err != nil {
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}

// GetStats returns corpus statistics
func (c *Corpus) GetStats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := 0
	for _, s := range c.samples {
		total += s.Size
	}
	stats := map[string]interface{}{
		"size":        len(c.samples),
		"max_size":    c.maxSize,
		"total_bytes": total,
	}
	if len(c.samples) > 0 {
		stats["avg_bytes"] = float64(total) / float64(len(c.samples))
	}
	return stats
}
