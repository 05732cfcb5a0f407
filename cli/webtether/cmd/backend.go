package cmd

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/webtether/webtether/backend"
	"github.com/webtether/webtether/pingflow"
)

// newBackendCmd creates the command running the ping backend service.
func newBackendCmd(baseConfig *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: "starts the ping backend service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execBackendCmd(cmd, baseConfig)
		},
	}
	cmd.Flags().StringP("server-addr", "s", "localhost:9654", "server address of the backend REST API")
	cmd.Flags().String("db", "", fmt.Sprintf("path to the ping database (default: $WT_HOME/backend/%s)", backend.BoltPingStoreFileName))
	cmd.Flags().StringP("node-url", "u", defaultNodeURL, "JSON-RPC URL of the Ethereum node used for payment verification")
	cmd.Flags().StringP("agent-url", "a", "", "URL of the check agent that performs the HTTP checks")
	cmd.Flags().String("contract", defaultContract, "address of the ping payment contract")
	cmd.Flags().Uint64("chain-id", pingflow.DefaultChainID, "chain id reported by the network status endpoint")
	cmd.Flags().String("fee-wei", "", fmt.Sprintf("required ping fee in wei (default %d)", pingflow.DefaultFeeWei))
	cmd.Flags().Int("list-pings-page-limit", 100, "maximum number of pings returned by the list endpoint")
	_ = cmd.MarkFlagRequired("agent-url")
	return cmd
}

func execBackendCmd(cmd *cobra.Command, baseConfig *baseConfiguration) error {
	config := &backend.Config{
		FeeWei:      big.NewInt(pingflow.DefaultFeeWei),
		NetworkName: "Hardhat Local",
		Logger:      baseConfig.Logger,
	}
	var err error
	if config.ServerAddr, err = cmd.Flags().GetString("server-addr"); err != nil {
		return err
	}
	if config.NodeURL, err = cmd.Flags().GetString("node-url"); err != nil {
		return err
	}
	if config.AgentURL, err = cmd.Flags().GetString("agent-url"); err != nil {
		return err
	}
	if config.ChainID, err = cmd.Flags().GetUint64("chain-id"); err != nil {
		return err
	}
	if config.ListPingsPageLimit, err = cmd.Flags().GetInt("list-pings-page-limit"); err != nil {
		return err
	}

	contractHex, err := cmd.Flags().GetString("contract")
	if err != nil {
		return err
	}
	if !common.IsHexAddress(contractHex) {
		return fmt.Errorf("invalid contract address %q", contractHex)
	}
	config.ContractAddress = common.HexToAddress(contractHex)

	feeWei, err := cmd.Flags().GetString("fee-wei")
	if err != nil {
		return err
	}
	if feeWei != "" {
		fee, ok := new(big.Int).SetString(feeWei, 10)
		if !ok {
			return fmt.Errorf("invalid fee amount %q", feeWei)
		}
		config.FeeWei = fee
	}

	if config.DbFile, err = cmd.Flags().GetString("db"); err != nil {
		return err
	}
	if config.DbFile == "" {
		backendDir := filepath.Join(baseConfig.HomeDir, "backend")
		if err := os.MkdirAll(backendDir, 0700); err != nil { // -rwx------
			return err
		}
		config.DbFile = filepath.Join(backendDir, backend.BoltPingStoreFileName)
	}

	baseConfig.Logger.Info("starting ping backend on %s", config.ServerAddr)
	return backend.Run(cmd.Context(), config)
}
