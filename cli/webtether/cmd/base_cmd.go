package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type webtetherApp struct {
	baseCmd    *cobra.Command
	baseConfig *baseConfiguration
}

// New creates a new WebTether application
func New() *webtetherApp {
	baseCmd, baseConfig := newBaseCmd()
	return &webtetherApp{baseCmd, baseConfig}
}

// Execute adds all child commands and runs the application
func (a *webtetherApp) Execute(ctx context.Context) error {
	a.baseCmd.AddCommand(newWalletCmd(a.baseConfig))
	a.baseCmd.AddCommand(newPingCmd(a.baseConfig))
	a.baseCmd.AddCommand(newBackendCmd(a.baseConfig))
	a.baseCmd.AddCommand(newAgentCmd(a.baseConfig))
	return a.baseCmd.ExecuteContext(ctx)
}

func newBaseCmd() (*cobra.Command, *baseConfiguration) {
	config := &baseConfiguration{}
	// baseCmd represents the base command when called without any subcommands
	var baseCmd = &cobra.Command{
		Use:           "webtether",
		Short:         "The webtether CLI",
		Long:          `The webtether CLI includes commands for the wallet, the paid ping flow, the ping backend and the check agent.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// If subcommand does not define PersistentPreRunE, the one from base cmd is used.
			if err := initializeConfig(cmd, config); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			return nil
		},
	}
	config.addConfigurationFlags(baseCmd)

	return baseCmd, config
}

func initializeConfig(cmd *cobra.Command, config *baseConfiguration) error {
	var errs []error
	if err := config.initializeConfig(cmd); err != nil {
		errs = append(errs, fmt.Errorf("reading configuration: %w", err))
	}
	if err := config.initLogger(cmd); err != nil {
		errs = append(errs, fmt.Errorf("initializing logger: %w", err))
	}
	return errors.Join(errs...)
}

// initializeConfig reads in config file and ENV variables if set.
func (config *baseConfiguration) initializeConfig(cmd *cobra.Command) error {
	v := viper.New()

	config.initConfigFileLocation()

	if config.configFileExists() {
		v.SetConfigFile(config.CfgFile)
	}

	// Attempt to read the config file, gracefully ignoring errors caused by
	// a config file not being found. Return an error if we cannot parse the
	// config file.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	// When we bind flags to environment variables expect that the environment
	// variables are prefixed, e.g. a flag like --number binds to an
	// environment variable WT_NUMBER. This helps avoid conflicts.
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	return bindFlags(cmd, v)
}

// Bind each cobra flag to its associated viper configuration (config file and environment variable)
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var bindFlagErr []error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Name == keyHome || f.Name == keyConfig {
			// "home" and "config" are special configuration values, handled separately.
			return
		}

		// Environment variables can't have dashes in them, so bind them to
		// their equivalent keys with underscores, e.g. --node-url to WT_NODE_URL
		if strings.Contains(f.Name, "-") {
			envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
			if err := v.BindEnv(f.Name, fmt.Sprintf("%s_%s", envPrefix, envVarSuffix)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("binding env to flag %q: %w", f.Name, err))
				return
			}
		}

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			val := v.Get(f.Name)
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", val)); err != nil {
				bindFlagErr = append(bindFlagErr, fmt.Errorf("setting flag %q value: %w", f.Name, err))
				return
			}
		}
	})

	return errors.Join(bindFlagErr...)
}
