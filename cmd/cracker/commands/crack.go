/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: crack.go
Description: Crack command implementation for the Akaylee Cracker. Loads a data model,
cracks every input with a worker pool and prints trees and a summary table, or writes
the results as JSON or an HTML report.
*/

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kleascm/akaylee-cracker/pkg/core"
	"github.com/kleascm/akaylee-cracker/pkg/cracker"
	"github.com/kleascm/akaylee-cracker/pkg/logging"
	"github.com/kleascm/akaylee-cracker/pkg/monitoring"
	"github.com/kleascm/akaylee-cracker/pkg/reporting"
	"github.com/kleascm/akaylee-cracker/pkg/schema"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// defaultReportDir receives the HTML report when no output directory is set
const defaultReportDir = "./crack_report"

// RunCrack executes the crack command
func RunCrack(cmd *cobra.Command, args []string) error {
	if err := LoadConfig(); err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := SetupLogging()
	if err != nil {
		return err
	}
	defer logger.Close()

	config := createCrackerConfig()
	config.DataFiles = append(config.DataFiles, args...)
	config.KeepTrees = config.OutputFormat == "json" || config.OutputFormat == "html" || config.ShowTree
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	model, err := loadModel(config.ModelPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var profiler *monitoring.Profiler
	if config.ProfileDir != "" {
		profiler = monitoring.NewProfiler(monitoring.DefaultProfilerConfig(config.ProfileDir), logger.GetLogger())
		if perr := profiler.Start(); perr != nil {
			return fmt.Errorf("failed to start profiler: %w", perr)
		}
	}

	started := time.Now()
	results, summary, err := crackBatch(ctx, config, model, logger)
	if profiler != nil {
		if _, perr := profiler.Stop(); perr != nil {
			logger.GetLogger().WithError(perr).Warn("Failed to write profiles")
		}
	}
	if err != nil && results == nil {
		return err
	}

	out := cmd.OutOrStdout()
	report := &reporting.ReportData{
		Title:     fmt.Sprintf("%s crack report", model.Name),
		Model:     model.Name,
		Source:    model.Source,
		StartedAt: started,
		Results:   results,
		Summary:   summary,
	}

	switch config.OutputFormat {
	case "json":
		if werr := writeReport(out, config.OutputDir, report, logger.GetLogger()); werr != nil {
			return werr
		}
	case "html":
		dir := config.OutputDir
		if dir == "" {
			dir = defaultReportDir
		}
		path, herr := reporting.NewReportGenerator(dir, logger.GetLogger()).GenerateHTML(report)
		if herr != nil {
			return fmt.Errorf("failed to generate report: %w", herr)
		}
		RenderSummary(out, results, summary)
		fmt.Fprintf(out, "Report written to %s\n", path)
	default:
		if config.ShowTree {
			for _, r := range results {
				if r.Tree != nil {
					RenderTree(out, r.SampleName, r.Tree)
					fmt.Fprintln(out)
				}
			}
		}
		RenderSummary(out, results, summary)
	}
	return err
}

// crackBatch runs the runner and returns its results with a summary
func crackBatch(ctx context.Context, config *core.CrackerConfig, model *schema.Model, logger *logging.Logger) ([]*core.CrackResult, core.Summary, error) {
	runner := core.NewRunner(logger.GetLogger())
	runner.AddReporter(core.NewLoggerReporter(logger, config.StatsEvery))
	summary := core.NewSummaryReporter()
	runner.AddReporter(summary)

	if logger.GetLogger().IsLevelEnabled(logrus.TraceLevel) {
		runner.AddObserver(cracker.NewLoggingObserver(logger.GetLogger()))
	}

	if err := runner.Initialize(config, model); err != nil {
		return nil, core.Summary{}, fmt.Errorf("failed to initialize runner: %w", err)
	}

	results, err := runner.Run(ctx)
	return results, summary.Summary(), err
}

// writeReport writes the report to dir, or to out when dir is empty
func writeReport(out io.Writer, dir string, report *reporting.ReportData, logger logrus.FieldLogger) error {
	if dir != "" {
		path, err := reporting.NewReportGenerator(dir, logger).WriteJSON(report)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Results written to %s\n", path)
		return nil
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode results: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// crackFlagKeys maps crack flags to viper keys
var crackFlagKeys = map[string]string{
	"model":          "model",
	"data":           "data",
	"corpus":         "corpus",
	"workers":        "workers",
	"timeout":        "timeout",
	"output":         "output",
	"output-dir":     "output_dir",
	"tree":           "tree",
	"stats-interval": "stats_interval",
	"profile-dir":    "profile_dir",
}

// addCrackFlags registers the crack command flags
func addCrackFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "Path to the YAML data model (required)")
	cmd.Flags().StringSlice("data", []string{}, "Input files to crack")
	cmd.Flags().String("corpus", "", "Directory of input files to crack")
	cmd.Flags().Int("workers", 0, "Number of parallel workers (0 = auto-detect)")
	cmd.Flags().Duration("timeout", 10*time.Second, "Maximum crack time per input (0 = none)")
	cmd.Flags().String("output", "text", "Output format (text, json, html)")
	cmd.Flags().String("output-dir", "", "Directory for JSON results or the HTML report")
	cmd.Flags().Bool("tree", false, "Render every cracked tree")
	cmd.Flags().Int("stats-interval", 100, "Log statistics every N inputs (0 = only at the end)")
	cmd.Flags().String("profile-dir", "", "Write CPU, heap and goroutine profiles to this directory")
}

// NewCrackCommand creates the crack command
func NewCrackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crack [files...]",
		Short: "Crack input files against a data model",
		Long: `Crack one or more input files against a YAML data model. Every input is parsed
by a worker on its own copy of the model; results are printed as a summary table,
optionally with the cracked trees, written as JSON or rendered as an HTML report.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return bindFlags(cmd, crackFlagKeys)
		},
		RunE: RunCrack,
	}
	addCrackFlags(cmd)
	return cmd
}
