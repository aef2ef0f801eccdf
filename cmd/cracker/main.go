/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: main.go
Description: Main command-line interface for the Akaylee Cracker. Wires the crack,
validate and list-analyzers commands with shared configuration and logging flags.
*/

package main

import (
	"fmt"
	"os"

	"github.com/kleascm/akaylee-cracker/cmd/cracker/commands"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "akaylee-cracker",
		Short: "Akaylee Cracker - model driven binary data parser",
		Long: `Akaylee Cracker parses binary inputs against a declarative data model. Models
describe blocks, choices, arrays, flags, strings, numbers and blobs together with
size, offset and count relations; every input is cracked into a tree of values with
exact bit spans, or rejected with a structured failure.`,
		Version:       "1.0.0",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "Configuration file path")
	flags.String("log-level", "info", "Logging level (trace, debug, info, warn, error)")
	flags.Bool("json-logs", false, "Use JSON log format")
	flags.String("log-dir", "", "Log output directory (empty disables log files)")
	flags.String("log-format", "custom", "Log format (text, json, custom)")
	flags.Int("log-max-files", 10, "Maximum number of log files to keep")
	flags.Int64("log-max-size", 100*1024*1024, "Maximum log file size in bytes")
	flags.Bool("log-compress", false, "Compress rotated log files")

	viper.BindPFlag("config", flags.Lookup("config"))
	viper.BindPFlag("log_level", flags.Lookup("log-level"))
	viper.BindPFlag("json_logs", flags.Lookup("json-logs"))
	viper.BindPFlag("log_dir", flags.Lookup("log-dir"))
	viper.BindPFlag("log_format", flags.Lookup("log-format"))
	viper.BindPFlag("log_max_files", flags.Lookup("log-max-files"))
	viper.BindPFlag("log_max_size", flags.Lookup("log-max-size"))
	viper.BindPFlag("log_compress", flags.Lookup("log-compress"))

	rootCmd.AddCommand(commands.NewCrackCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewListAnalyzersCommand())

	return rootCmd
}
