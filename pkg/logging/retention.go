/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: retention.go
Description: Log file retention for the Akaylee Cracker. Rotates oversized log files,
gzip compresses rotated files and prunes the oldest files beyond the retention limit.
*/

package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogManager applies the retention policy to a log directory
type LogManager struct {
	logDir   string
	maxFiles int
	maxSize  int64
	compress bool
}

// NewLogManager creates a new log manager
func NewLogManager(logDir string, maxFiles int, maxSize int64, compress bool) *LogManager {
	return &LogManager{
		logDir:   logDir,
		maxFiles: maxFiles,
		maxSize:  maxSize,
		compress: compress,
	}
}

func (lm *LogManager) glob(suffix string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(lm.logDir, FilePrefix+"_*"+suffix))
	if err != nil {
		return nil, fmt.Errorf("failed to glob log files: %w", err)
	}
	return files, nil
}

// RotateLogs renames log files that reached maxSize, compressing them when enabled
func (lm *LogManager) RotateLogs() error {
	files, err := lm.glob(".log")
	if err != nil {
		return err
	}
	for _, file := range files {
		if err := lm.rotateFile(file); err != nil {
			return fmt.Errorf("failed to rotate file %s: %w", file, err)
		}
	}
	return nil
}

func (lm *LogManager) rotateFile(path string) error {
	stat, err := os.Stat(path)
	if err != nil {
		return err
	}
	if stat.Size() < lm.maxSize {
		return nil
	}

	rotated := fmt.Sprintf("%s.%s", path, time.Now().Format("2006-01-02_15-04-05"))
	if err := os.Rename(path, rotated); err != nil {
		return err
	}
	if lm.compress {
		return lm.compressFile(rotated)
	}
	return nil
}

// compressFile replaces path with a gzip copy
func (lm *LogManager) compressFile(path string) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	compressed, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}

	gz := gzip.NewWriter(compressed)
	if _, err := io.Copy(gz, source); err != nil {
		compressed.Close()
		return err
	}
	if err := gz.Close(); err != nil {
		compressed.Close()
		return err
	}
	if err := compressed.Close(); err != nil {
		return err
	}
	return os.Remove(path)
}

// CleanupOldLogs rotates, then removes the oldest files beyond maxFiles
func (lm *LogManager) CleanupOldLogs() error {
	if err := lm.RotateLogs(); err != nil {
		return err
	}

	files, err := lm.glob(".log*")
	if err != nil {
		return err
	}
	if len(files) <= lm.maxFiles {
		return nil
	}

	modTimes := make(map[string]time.Time, len(files))
	for _, f := range files {
		if stat, err := os.Stat(f); err == nil {
			modTimes[f] = stat.ModTime()
		}
	}
	sort.Slice(files, func(i, j int) bool {
		ti, tj := modTimes[files[i]], modTimes[files[j]]
		if ti.Equal(tj) {
			return files[i] < files[j]
		}
		return ti.Before(tj)
	})

	for _, f := range files[:len(files)-lm.maxFiles] {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("failed to remove file %s: %w", f, err)
		}
	}
	return nil
}

// GetLogStats returns statistics about the log files
func (lm *LogManager) GetLogStats() (*LogStats, error) {
	files, err := lm.glob(".log*")
	if err != nil {
		return nil, err
	}

	stats := &LogStats{TotalFiles: len(files)}
	for _, file := range files {
		stat, err := os.Stat(file)
		if err != nil {
			continue
		}
		stats.TotalSize += stat.Size()
		if stats.OldestFile.IsZero() || stat.ModTime().Before(stats.OldestFile) {
			stats.OldestFile = stat.ModTime()
		}
		if stat.ModTime().After(stats.NewestFile) {
			stats.NewestFile = stat.ModTime()
		}
		if strings.HasSuffix(file, ".gz") {
			stats.CompressedFiles++
		} else {
			stats.UncompressedFiles++
		}
	}
	return stats, nil
}

// LogStats holds statistics about log files
type LogStats struct {
	TotalFiles        int       `json:"total_files"`
	TotalSize         int64     `json:"total_size"`
	CompressedFiles   int       `json:"compressed_files"`
	UncompressedFiles int       `json:"uncompressed_files"`
	OldestFile        time.Time `json:"oldest_file"`
	NewestFile        time.Time `json:"newest_file"`
}
