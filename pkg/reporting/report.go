/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: report.go
Description: Batch report generation for the Akaylee Cracker. Writes timestamped JSON
result files and a self contained HTML report with the summary, per-sample results,
failure breakdown and cracked trees.
*/

package reporting

import (
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kleascm/akaylee-cracker/pkg/core"
	"github.com/sirupsen/logrus"
)

// ReportData contains everything a batch report shows
type ReportData struct {
	Title       string              `json:"title"`
	Model       string              `json:"model"`
	Source      string              `json:"source"`
	GeneratedAt time.Time           `json:"generated_at"`
	StartedAt   time.Time           `json:"started_at"`
	Results     []*core.CrackResult `json:"results"`
	Summary     core.Summary        `json:"summary"`
}

// FailureCount is one row of the failure breakdown
type FailureCount struct {
	Kind  string
	Count int
}

// Failures returns the failure kinds by descending count
func (d *ReportData) Failures() []FailureCount {
	out := make([]FailureCount, 0, len(d.Summary.FailureKinds))
	for k, v := range d.Summary.FailureKinds {
		out = append(out, FailureCount{Kind: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

// SuccessRate returns the share of cracked samples in percent
func (d *ReportData) SuccessRate() float64 {
	if d.Summary.Samples == 0 {
		return 0
	}
	return 100 * float64(d.Summary.Cracked) / float64(d.Summary.Samples)
}

// treeLine is one rendered row of a cracked tree
type treeLine struct {
	Indent string
	Node   *core.Node
}

var templateFuncs = template.FuncMap{
	"tree": func(n *core.Node) []treeLine {
		var lines []treeLine
		if n == nil {
			return nil
		}
		n.Walk(func(node *core.Node, depth int) {
			lines = append(lines, treeLine{Indent: strings.Repeat("  ", depth), Node: node})
		})
		return lines
	},
	"bytes": func(bits uint64) string {
		if bits%8 == 0 {
			return fmt.Sprintf("%d", bits/8)
		}
		return fmt.Sprintf("%d.%d", bits/8, bits%8)
	},
	"micros": func(d time.Duration) string {
		return d.Round(time.Microsecond).String()
	},
}

// ReportGenerator writes batch reports into a directory
type ReportGenerator struct {
	outputDir string
	logger    logrus.FieldLogger
	templates *template.Template
}

// NewReportGenerator creates a new report generator
func NewReportGenerator(outputDir string, logger logrus.FieldLogger) *ReportGenerator {
	return &ReportGenerator{
		outputDir: outputDir,
		logger:    logger,
		templates: template.Must(template.New("report").Funcs(templateFuncs).Parse(reportTemplate)),
	}
}

// GenerateHTML writes index.html and returns its path
func (rg *ReportGenerator) GenerateHTML(data *ReportData) (string, error) {
	if err := os.MkdirAll(rg.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if data.GeneratedAt.IsZero() {
		data.GeneratedAt = time.Now()
	}

	path := filepath.Join(rg.outputDir, "index.html")
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := rg.templates.Execute(file, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	rg.logger.WithField("path", path).Info("HTML report generated")
	return path, nil
}

// WriteJSON writes result as results_<timestamp>.json and returns its path
func (rg *ReportGenerator) WriteJSON(result interface{}) (string, error) {
	if err := os.MkdirAll(rg.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	path := filepath.Join(rg.outputDir, fmt.Sprintf("results_%s.json", timestamp))

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write results file: %w", err)
	}

	rg.logger.WithField("path", path).Info("JSON results written")
	return path, nil
}
