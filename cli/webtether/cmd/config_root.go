package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/webtether/webtether/internal/logger"
)

type baseConfiguration struct {
	// The WebTether home directory
	HomeDir string
	// Configuration file URL. If it's relative, then it's relative from the HomeDir.
	CfgFile string
	// Logger configuration file URL.
	LogCfgFile string

	Logger logger.Logger
}

const (
	// The prefix for configuration keys inside environment.
	envPrefix = "WT"
	// The default name for config file.
	defaultConfigFile = "config.props"
	// the default webtether directory.
	defaultWebtetherDir = ".webtether"
	// The default logger configuration file name.
	defaultLoggerConfigFile = "logger-config.yaml"
	// The configuration key for home directory.
	keyHome = "home"
	// The configuration key for config file name.
	keyConfig = "config"

	flagNameLoggerCfgFile = "logger-config"
	flagNameLogOutputFile = "log-file"
	flagNameLogLevel      = "log-level"
)

func (r *baseConfiguration) addConfigurationFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&r.HomeDir, keyHome, "", fmt.Sprintf("set the WT_HOME for this invocation (default is %s)", webtetherHomeDir()))
	cmd.PersistentFlags().StringVar(&r.CfgFile, keyConfig, "", fmt.Sprintf("config file URL (default is $WT_HOME/%s)", defaultConfigFile))
	cmd.PersistentFlags().StringVar(&r.LogCfgFile, flagNameLoggerCfgFile, defaultLoggerConfigFile, "logger config file URL. Considered absolute if starts with '/'. Otherwise relative from $WT_HOME.")
	// do not set default values for these flags as then we can easily determine whether to load the value from cfg file or not
	cmd.PersistentFlags().String(flagNameLogOutputFile, "", "log file path or one of the special values: stdout, stderr, discard")
	cmd.PersistentFlags().String(flagNameLogLevel, "", "logging level, one of: NONE, ERROR, WARNING, INFO, DEBUG")
}

func (r *baseConfiguration) initConfigFileLocation() {
	// Home directory and config file are special configuration values as these
	// are used for loading in rest of the configuration.
	if r.HomeDir == "" {
		r.HomeDir = os.Getenv(envKey(keyHome))
		if r.HomeDir == "" {
			r.HomeDir = webtetherHomeDir()
		}
	}

	if r.CfgFile == "" {
		r.CfgFile = os.Getenv(envKey(keyConfig))
		if r.CfgFile == "" {
			r.CfgFile = defaultConfigFile
		}
	}
	if !filepath.IsAbs(r.CfgFile) {
		r.CfgFile = filepath.Join(r.HomeDir, r.CfgFile)
	}
}

func (r *baseConfiguration) configFileExists() bool {
	_, err := os.Stat(r.CfgFile)
	return err == nil
}

// LoggerCfgFilename always returns non-empty filename - either the value of
// the flag set by user or default cfg location.
func (r *baseConfiguration) LoggerCfgFilename() string {
	if !filepath.IsAbs(r.LogCfgFile) {
		return filepath.Join(r.HomeDir, r.LogCfgFile)
	}
	return r.LogCfgFile
}

func (r *baseConfiguration) initLogger(cmd *cobra.Command) error {
	cfg := &logger.LogConfiguration{}
	if _, err := os.Stat(r.LoggerCfgFilename()); err == nil {
		cfg, err = logger.LoadConfiguration(r.LoggerCfgFilename())
		if err != nil {
			return fmt.Errorf("failed to load logger configuration: %w", err)
		}
	}

	// command line flags override the logger cfg file values
	if outputFile, err := cmd.Flags().GetString(flagNameLogOutputFile); err == nil && outputFile != "" {
		cfg.OutputPath = outputFile
	}
	if logLevel, err := cmd.Flags().GetString(flagNameLogLevel); err == nil && logLevel != "" {
		cfg.DefaultLevel = logLevel
	}

	log, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	r.Logger = log
	return nil
}

func (r *baseConfiguration) WalletDir() string {
	return filepath.Join(r.HomeDir, "wallet")
}

func webtetherHomeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		panic("default user home dir not defined: " + err.Error())
	}
	return filepath.Join(dir, defaultWebtetherDir)
}

func envKey(key string) string {
	return strings.ToUpper(envPrefix + "_" + key)
}
