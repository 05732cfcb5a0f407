package cmd

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/webtether/webtether/pingflow"
	"github.com/webtether/webtether/wallet"
	"github.com/webtether/webtether/wallet/gateway"
	"github.com/webtether/webtether/wallet/report"
	"github.com/webtether/webtether/wallet/session"
)

const (
	defaultBackendURL = "localhost:9654"
	defaultContract   = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
)

// newPingCmd creates the command driving the full paid ping flow: payment
// submission, confirmation wait and backend reporting.
func newPingCmd(baseConfig *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "pays the ping fee on-chain and requests a website check",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execPingCmd(cmd, baseConfig)
		},
	}
	cmd.Flags().StringP("website-id", "w", "", "identifier of the website to ping")
	cmd.Flags().String("url", "", "URL of the website to ping")
	cmd.Flags().String("code", "", "optional demonstration code, recorded with the ping")
	cmd.Flags().StringP("node-url", "u", defaultNodeURL, "JSON-RPC URL of the Ethereum node to connect to")
	cmd.Flags().StringP("backend-url", "b", defaultBackendURL, "base URL of the ping backend")
	cmd.Flags().String("contract", defaultContract, "address of the ping payment contract")
	cmd.Flags().Uint64("chain-id", pingflow.DefaultChainID, "required chain id, the payment is refused on any other network")
	cmd.Flags().String("fee-wei", "", fmt.Sprintf("ping fee in wei (default %d)", pingflow.DefaultFeeWei))
	cmd.Flags().String("token", "", "bearer token for the backend session")
	cmd.Flags().BoolP("yes", "y", false, "skip the payment approval prompt")
	cmd.Flags().Duration("confirmation-timeout", 2*time.Minute, "how long to wait for the payment to be mined")
	cmd.Flags().Duration("reporting-timeout", time.Minute, "how long to wait for the backend verdict")
	cmd.Flags().StringP(passwordArgCmdName, "p", "", passwordUsage)
	_ = cmd.MarkFlagRequired("website-id")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

func execPingCmd(cmd *cobra.Command, baseConfig *baseConfiguration) error {
	req := wallet.PingRequest{}
	var err error
	if req.WebsiteID, err = cmd.Flags().GetString("website-id"); err != nil {
		return err
	}
	if req.URL, err = cmd.Flags().GetString("url"); err != nil {
		return err
	}
	if req.OptionalCode, err = cmd.Flags().GetString("code"); err != nil {
		return err
	}
	cfg, err := pingFlowConfig(cmd)
	if err != nil {
		return err
	}

	key, err := loadAccountKey(cmd, baseConfig)
	if err != nil {
		return err
	}
	nodeURL, err := cmd.Flags().GetString("node-url")
	if err != nil {
		return err
	}
	skipPrompt, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return err
	}
	gw, err := gateway.Dial(cmd.Context(), nodeURL, key, gateway.WithConfirmFunc(paymentPrompt(skipPrompt)))
	if err != nil {
		return err
	}
	defer gw.Close()

	backendURL, err := cmd.Flags().GetString("backend-url")
	if err != nil {
		return err
	}
	reporter, err := report.New(backendURL)
	if err != nil {
		return err
	}
	sess, err := pingSession(cmd)
	if err != nil {
		return err
	}

	coordinator := pingflow.New(gw, reporter, cfg, baseConfig.Logger, printEvent)
	result, err := coordinator.Run(cmd.Context(), sess, req)
	if err != nil {
		return err
	}
	if result.IsReachable {
		if result.LatencyMs != nil {
			consoleWriter.Println(fmt.Sprintf("Website is UP (%d ms)", *result.LatencyMs))
		} else {
			consoleWriter.Println("Website is UP")
		}
	} else {
		consoleWriter.Println("Website is DOWN")
	}
	return nil
}

func pingFlowConfig(cmd *cobra.Command) (pingflow.Config, error) {
	cfg := pingflow.Config{}
	contractHex, err := cmd.Flags().GetString("contract")
	if err != nil {
		return cfg, err
	}
	if contractHex != "" {
		if !common.IsHexAddress(contractHex) {
			return cfg, fmt.Errorf("invalid contract address %q", contractHex)
		}
		cfg.ContractAddress = common.HexToAddress(contractHex)
	}
	chainID, err := cmd.Flags().GetUint64("chain-id")
	if err != nil {
		return cfg, err
	}
	cfg.RequiredChainID = new(big.Int).SetUint64(chainID)
	feeWei, err := cmd.Flags().GetString("fee-wei")
	if err != nil {
		return cfg, err
	}
	if feeWei != "" {
		fee, ok := new(big.Int).SetString(feeWei, 10)
		if !ok {
			return cfg, fmt.Errorf("invalid fee amount %q", feeWei)
		}
		cfg.FeeWei = fee
	}
	if cfg.ConfirmationTimeout, err = cmd.Flags().GetDuration("confirmation-timeout"); err != nil {
		return cfg, err
	}
	if cfg.ReportingTimeout, err = cmd.Flags().GetDuration("reporting-timeout"); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func pingSession(cmd *cobra.Command) (*session.Session, error) {
	token, err := cmd.Flags().GetString("token")
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, nil
	}
	return session.New(token)
}

// paymentPrompt asks the user to approve the payment before the signed
// transaction leaves the process.
func paymentPrompt(skip bool) gateway.ConfirmFunc {
	return func(contract common.Address, feeWei *big.Int) bool {
		if skip {
			return true
		}
		consoleWriter.Print(fmt.Sprintf("Pay %s ETH to %s? [y/N]: ", weiToEthString(feeWei), contract.Hex()))
		var answer string
		if _, err := fmt.Scanln(&answer); err != nil {
			return false
		}
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

func printEvent(e pingflow.Event) {
	switch e.State {
	case pingflow.CheckingPreconditions, pingflow.AwaitingSignature, pingflow.Reporting:
		consoleWriter.Println(e.Message + "...")
	case pingflow.AwaitingConfirmation:
		consoleWriter.Println(fmt.Sprintf("%s... (tx %s)", e.Message, e.TxHash.Hex()))
	case pingflow.Confirmed:
		consoleWriter.Println("Payment confirmed")
	case pingflow.Failed:
		var flowErr *pingflow.Error
		if errors.As(e.Err, &flowErr) && flowErr.Paid() {
			consoleWriter.Println("Payment went through but the ping was not recorded.")
			consoleWriter.Println("Keep this transaction hash for support: " + flowErr.TxHash.Hex())
		}
	}
}
