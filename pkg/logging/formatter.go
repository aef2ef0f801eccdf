/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: formatter.go
Description: Custom log formatters for the Akaylee Cracker. CustomFormatter prints
aligned, optionally colored lines with sorted fields; CrackerFormatter adds a prefix
for crack, failure, statistics, worker and runner messages.
*/

package logging

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// CustomFormatter provides readable, structured logging output
type CustomFormatter struct {
	Timestamp bool
	Caller    bool
	Colors    bool
}

// Format formats a log entry
func (f *CustomFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return f.format(entry, "", f.formatValue), nil
}

func (f *CustomFormatter) format(entry *logrus.Entry, prefix string, value func(string, interface{}) string) []byte {
	var output strings.Builder

	if f.Timestamp {
		f.write(&output, 36, entry.Time.Format("2006-01-02 15:04:05.000"), "%s ")
	}

	level := strings.ToUpper(entry.Level.String())
	f.write(&output, f.getLevelColor(entry.Level), level, "%s ")

	if prefix != "" {
		f.write(&output, 35, prefix, "[%s] ")
	}

	if f.Caller && entry.HasCaller() {
		f.write(&output, 33, fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line), "[%s] ")
	}

	output.WriteString(entry.Message)

	if len(entry.Data) > 0 {
		output.WriteString(" ")
		output.WriteString(f.formatFields(entry.Data, value))
	}

	output.WriteString("\n")
	return []byte(output.String())
}

// write appends text in layout, wrapped in an ANSI color when enabled
func (f *CustomFormatter) write(out *strings.Builder, color int, text, layout string) {
	if f.Colors {
		text = fmt.Sprintf("\033[%dm%s\033[0m", color, text)
	}
	fmt.Fprintf(out, layout, text)
}

// getLevelColor returns the ANSI color code for a log level
func (f *CustomFormatter) getLevelColor(level logrus.Level) int {
	switch level {
	case logrus.InfoLevel:
		return 32
	case logrus.WarnLevel:
		return 33
	case logrus.ErrorLevel:
		return 31
	case logrus.FatalLevel, logrus.PanicLevel:
		return 35
	default:
		return 37
	}
}

// formatFields renders fields sorted by key
func (f *CustomFormatter) formatFields(fields logrus.Fields, value func(string, interface{}) string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		formatted := value(key, fields[key])
		if f.Colors {
			parts = append(parts, fmt.Sprintf("\033[34m%s\033[0m=\033[32m%s\033[0m", key, formatted))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%s", key, formatted))
		}
	}
	return strings.Join(parts, " ")
}

// formatValue formats a field value appropriately
func (f *CustomFormatter) formatValue(_ string, value interface{}) string {
	switch v := value.(type) {
	case time.Duration:
		return v.String()
	case time.Time:
		return v.Format("15:04:05.000")
	case string:
		if len(v) > 50 {
			return v[:50] + "..."
		}
		return v
	case []byte:
		if len(v) > 20 {
			return fmt.Sprintf("[%d bytes]", len(v))
		}
		return fmt.Sprintf("%x", v)
	case error:
		return v.Error()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// CrackerFormatter prefixes cracker specific messages
type CrackerFormatter struct {
	CustomFormatter
}

// Format formats cracker log entries with a message prefix
func (f *CrackerFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	return f.format(entry, f.prefix(entry.Message), f.formatCrackerValue), nil
}

// prefix returns a tag based on the log message
func (f *CrackerFormatter) prefix(message string) string {
	switch {
	case strings.Contains(message, "Sample cracked"):
		return "CRACK"
	case strings.Contains(message, "Crack failed"):
		return "FAIL"
	case strings.Contains(message, "Statistics update"):
		return "STATS"
	case strings.Contains(message, "Worker"):
		return "WORKER"
	case strings.Contains(message, "Runner"):
		return "RUNNER"
	}
	return ""
}

// formatCrackerValue formats cracker specific field values
func (f *CrackerFormatter) formatCrackerValue(key string, value interface{}) string {
	switch key {
	case "samples_per_sec":
		if v, ok := value.(float64); ok {
			return fmt.Sprintf("%.2f/sec", v)
		}
	case "sample_id":
		if s, ok := value.(string); ok && len(s) > 8 {
			return s[:8] + "..."
		}
	case "position", "consumed_bits":
		if v, ok := value.(uint64); ok {
			return fmt.Sprintf("%d (byte %d)", v, v/8)
		}
	}
	return f.formatValue(key, value)
}
