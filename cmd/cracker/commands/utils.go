/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: utils.go
Description: Shared utilities for the Akaylee Cracker commands. Provides configuration
loading from .env files, config files and the environment, logging setup and model
loading used across all command implementations.
*/

package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/kleascm/akaylee-cracker/pkg/analyzers"
	"github.com/kleascm/akaylee-cracker/pkg/core"
	"github.com/kleascm/akaylee-cracker/pkg/logging"
	"github.com/kleascm/akaylee-cracker/pkg/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable the cracker reads
const EnvPrefix = "AKAYLEE"

// LoadConfig loads configuration from .env, an optional config file and the environment
func LoadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
		if err := viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.AutomaticEnv()

	return nil
}

// SetupLogging creates the cracker logger from the logging keys. Logs go to
// stderr so that results on stdout stay machine readable.
func SetupLogging() (*logging.Logger, error) {
	viper.SetDefault("log_level", string(logging.LogLevelInfo))
	viper.SetDefault("log_format", string(logging.LogFormatCustom))
	viper.SetDefault("log_max_files", 10)
	viper.SetDefault("log_max_size", 100*1024*1024)

	format := logging.LogFormat(viper.GetString("log_format"))
	if viper.GetBool("json_logs") {
		format = logging.LogFormatJSON
	}

	cfg := &logging.LoggerConfig{
		Level:     logging.LogLevel(viper.GetString("log_level")),
		Format:    format,
		OutputDir: viper.GetString("log_dir"),
		MaxFiles:  viper.GetInt("log_max_files"),
		MaxSize:   viper.GetInt64("log_max_size"),
		Compress:  viper.GetBool("log_compress"),
		Timestamp: true,
		Colors:    format != logging.LogFormatJSON,
		Console:   os.Stderr,
	}

	logger, err := logging.NewLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}
	return logger, nil
}

// createCrackerConfig builds the batch configuration from viper keys
func createCrackerConfig() *core.CrackerConfig {
	return &core.CrackerConfig{
		ModelPath:    viper.GetString("model"),
		CorpusDir:    viper.GetString("corpus"),
		DataFiles:    viper.GetStringSlice("data"),
		Workers:      viper.GetInt("workers"),
		Timeout:      viper.GetDuration("timeout"),
		OutputDir:    viper.GetString("output_dir"),
		OutputFormat: viper.GetString("output"),
		ShowTree:     viper.GetBool("tree"),
		StatsEvery:   viper.GetInt("stats_interval"),
		ProfileDir:   viper.GetString("profile_dir"),
		LogLevel:     viper.GetString("log_level"),
		LogFormat:    viper.GetString("log_format"),
		LogDir:       viper.GetString("log_dir"),
	}
}

// loadModel loads a data model file with the default analyzers
func loadModel(path string) (*schema.Model, error) {
	if path == "" {
		return nil, fmt.Errorf("a model file is required (--model)")
	}
	model, err := schema.Load(path, schema.Options{Analyzers: analyzers.Default()})
	if err != nil {
		return nil, err
	}
	return model, nil
}

// bindFlags binds a command's flags to viper keys; called from PreRunE
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("failed to bind flag %s: %w", flag, err)
		}
	}
	return nil
}
