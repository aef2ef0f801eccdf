/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: logger.go
Description: Structured logging for the Akaylee Cracker. Wraps logrus with timestamped
log files, text / JSON / custom formats, an async queue for hot paths and helpers for
crack results, failures and batch statistics.
*/

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// LogLevel represents the logging level
type LogLevel string

const (
	LogLevelTrace   LogLevel = "trace"
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warn"
	LogLevelError   LogLevel = "error"
)

// LogFormat represents the logging format
type LogFormat string

const (
	LogFormatJSON   LogFormat = "json"
	LogFormatText   LogFormat = "text"
	LogFormatCustom LogFormat = "custom"
)

// FilePrefix names every log file the cracker writes
const FilePrefix = "akaylee-cracker"

// LoggerConfig holds the configuration for the logger
type LoggerConfig struct {
	Level     LogLevel  `json:"level"`
	Format    LogFormat `json:"format"`
	OutputDir string    `json:"output_dir"` // empty disables the log file
	MaxFiles  int       `json:"max_files"`
	MaxSize   int64     `json:"max_size"` // in bytes
	Timestamp bool      `json:"timestamp"`
	Caller    bool      `json:"caller"`
	Colors    bool      `json:"colors"`
	Compress  bool      `json:"compress"`

	// Console receives entries besides the file; nil means stdout
	Console io.Writer `json:"-"`
}

// DefaultConfig returns the configuration used when none is given
func DefaultConfig() *LoggerConfig {
	return &LoggerConfig{
		Level:     LogLevelInfo,
		Format:    LogFormatText,
		OutputDir: "./logs",
		MaxFiles:  10,
		MaxSize:   100 * 1024 * 1024,
		Timestamp: true,
		Colors:    true,
	}
}

// Validate checks the LoggerConfig for invalid or missing values
func (c *LoggerConfig) Validate() error {
	if c.OutputDir != "" {
		if c.MaxFiles <= 0 {
			return fmt.Errorf("max_files must be positive")
		}
		if c.MaxSize <= 0 {
			return fmt.Errorf("max_size must be positive")
		}
	}
	switch c.Format {
	case LogFormatJSON, LogFormatText, LogFormatCustom:
	default:
		return fmt.Errorf("unsupported log format: %s", c.Format)
	}
	switch c.Level {
	case LogLevelTrace, LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
	default:
		return fmt.Errorf("unsupported log level: %s", c.Level)
	}
	return nil
}

type logEntry struct {
	level  logrus.Level
	msg    string
	fields logrus.Fields
}

// Logger is the cracker's logger. Debug/Info/Warning/Error go through an
// async queue; the Log* helpers write synchronously.
type Logger struct {
	config     *LoggerConfig
	logger     *logrus.Logger
	fileHandle *os.File
	filePath   string
	startTime  time.Time

	logQueue chan logEntry
	done     chan struct{}
	closeMu  sync.Mutex
	closed   bool
}

// NewLogger creates a new logger instance
func NewLogger(config *LoggerConfig) (*Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid logger config: %w", err)
	}

	l := &Logger{
		config:    config,
		logger:    logrus.New(),
		startTime: time.Now(),
		logQueue:  make(chan logEntry, 1024),
		done:      make(chan struct{}),
	}

	if err := l.setup(); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	go l.runLogQueue()

	return l, nil
}

// setup configures level, formatter and outputs
func (l *Logger) setup() error {
	level, err := logrus.ParseLevel(string(l.config.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.logger.SetLevel(level)
	l.logger.SetReportCaller(l.config.Caller)

	if err := l.setFormatter(); err != nil {
		return err
	}

	console := l.config.Console
	if console == nil {
		console = os.Stdout
	}
	l.logger.SetOutput(console)

	return l.setupFileOutput(console)
}

// setFormatter configures the log formatter
func (l *Logger) setFormatter() error {
	prettyCaller := func(f *runtime.Frame) (string, string) {
		return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
	}

	switch l.config.Format {
	case LogFormatJSON:
		l.logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat:  time.RFC3339,
			CallerPrettyfier: prettyCaller,
		})
	case LogFormatText:
		l.logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:    l.config.Timestamp,
			TimestampFormat:  time.RFC3339,
			ForceColors:      l.config.Colors,
			DisableColors:    !l.config.Colors,
			CallerPrettyfier: prettyCaller,
		})
	case LogFormatCustom:
		l.logger.SetFormatter(&CrackerFormatter{
			CustomFormatter: CustomFormatter{
				Timestamp: l.config.Timestamp,
				Caller:    l.config.Caller,
				Colors:    l.config.Colors,
			},
		})
	default:
		return fmt.Errorf("unsupported log format: %s", l.config.Format)
	}
	return nil
}

// setupFileOutput opens a timestamped log file next to the console output
func (l *Logger) setupFileOutput(console io.Writer) error {
	if l.config.OutputDir == "" {
		return nil
	}

	if err := os.MkdirAll(l.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(l.config.OutputDir, fmt.Sprintf("%s_%s.log", FilePrefix, timestamp))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	l.fileHandle = file
	l.filePath = path
	l.logger.SetOutput(io.MultiWriter(console, file))

	l.logger.WithFields(logrus.Fields{
		"start_time": l.startTime.Format(time.RFC3339),
		"log_file":   path,
		"level":      l.config.Level,
		"format":     l.config.Format,
	}).Debug("Akaylee Cracker logging system initialized")

	return nil
}

// FilePath returns the current log file, empty when file output is off
func (l *Logger) FilePath() string {
	return l.filePath
}

// runLogQueue writes queued entries until the queue is closed
func (l *Logger) runLogQueue() {
	defer close(l.done)
	for entry := range l.logQueue {
		l.logger.WithFields(entry.fields).Log(entry.level, entry.msg)
	}
}

func (l *Logger) enqueue(level logrus.Level, msg string, fields map[string]interface{}) {
	l.closeMu.Lock()
	defer l.closeMu.Unlock()
	if l.closed {
		l.logger.WithFields(fields).Log(level, msg)
		return
	}
	l.logQueue <- logEntry{level: level, msg: msg, fields: fields}
}

// Cracker-specific logging methods

// LogCrack logs the outcome of cracking one sample
func (l *Logger) LogCrack(sampleID string, duration time.Duration, status string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["sample_id"] = sampleID
	fields["duration"] = duration
	fields["status"] = status

	l.logger.WithFields(fields).Info("Sample cracked")
}

// LogFailure logs a structured cracking failure
func (l *Logger) LogFailure(sampleID string, kind string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["sample_id"] = sampleID
	fields["failure_kind"] = kind

	l.logger.WithFields(fields).Warn("Crack failed")
}

// LogStats logs batch statistics
func (l *Logger) LogStats(samples int64, cracked int64, failed int64, samplesPerSec float64, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["samples"] = samples
	fields["cracked"] = cracked
	fields["failed"] = failed
	fields["samples_per_sec"] = samplesPerSec
	fields["uptime"] = time.Since(l.startTime)

	l.logger.WithFields(fields).Info("Statistics update")
}

// Close drains the queue, closes the log file and prunes old files
func (l *Logger) Close() error {
	l.closeMu.Lock()
	if l.closed {
		l.closeMu.Unlock()
		return nil
	}
	l.closed = true
	close(l.logQueue)
	l.closeMu.Unlock()

	<-l.done

	if l.fileHandle != nil {
		l.logger.SetOutput(io.Discard)
		if err := l.fileHandle.Close(); err != nil {
			return fmt.Errorf("failed to close log file: %w", err)
		}
	}

	if l.config.OutputDir != "" {
		manager := NewLogManager(l.config.OutputDir, l.config.MaxFiles, l.config.MaxSize, l.config.Compress)
		if err := manager.CleanupOldLogs(); err != nil {
			return fmt.Errorf("failed to cleanup log files: %w", err)
		}
	}
	return nil
}

// GetLogger returns the underlying logrus logger
func (l *Logger) GetLogger() *logrus.Logger {
	return l.logger
}

// Debug logs a debug message (async)
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.enqueue(logrus.DebugLevel, msg, fields)
}

// Info logs an info message (async)
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.enqueue(logrus.InfoLevel, msg, fields)
}

// Warning logs a warning message (async)
func (l *Logger) Warning(msg string, fields map[string]interface{}) {
	l.enqueue(logrus.WarnLevel, msg, fields)
}

// Error logs an error message (async)
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	l.enqueue(logrus.ErrorLevel, msg, fields)
}
