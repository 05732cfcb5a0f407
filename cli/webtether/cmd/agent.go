package cmd

import (
	"github.com/spf13/cobra"

	"github.com/webtether/webtether/agent"
)

// newAgentCmd creates the command running the check agent service.
func newAgentCmd(baseConfig *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "starts the check agent that performs the HTTP availability checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execAgentCmd(cmd, baseConfig)
		},
	}
	cmd.Flags().StringP("server-addr", "s", "localhost:9655", "server address of the agent endpoint")
	cmd.Flags().StringP("region", "r", "local", "region label attached to the check results")
	return cmd
}

func execAgentCmd(cmd *cobra.Command, baseConfig *baseConfiguration) error {
	config := &agent.Config{Logger: baseConfig.Logger}
	var err error
	if config.ServerAddr, err = cmd.Flags().GetString("server-addr"); err != nil {
		return err
	}
	if config.Region, err = cmd.Flags().GetString("region"); err != nil {
		return err
	}
	baseConfig.Logger.Info("starting check agent on %s, region %s", config.ServerAddr, config.Region)
	return agent.Run(cmd.Context(), config)
}
