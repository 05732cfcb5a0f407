package cmd

import (
	"errors"
	"fmt"
	"math/big"
	"syscall"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/webtether/webtether/wallet/account"
)

const (
	passwordArgCmdName = "password"
	passwordUsage      = "passphrase used to encrypt the account key file"

	defaultNodeURL = "http://127.0.0.1:8545"
)

// newWalletCmd creates a new cobra command for the wallet component.
func newWalletCmd(baseConfig *baseConfiguration) *cobra.Command {
	var walletCmd = &cobra.Command{
		Use:   "wallet",
		Short: "cli for managing the webtether wallet",
		Run: func(cmd *cobra.Command, args []string) {
			consoleWriter.Println("Error: must specify a subcommand create, address or balance")
		},
	}
	walletCmd.AddCommand(createCmd(baseConfig))
	walletCmd.AddCommand(addressCmd(baseConfig))
	walletCmd.AddCommand(balanceCmd(baseConfig))
	return walletCmd
}

func createCmd(baseConfig *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "creates a new account key, or restores one from a mnemonic seed",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execCreateCmd(cmd, baseConfig)
		},
	}
	cmd.Flags().StringP("seed", "s", "", "mnemonic seed, the number of words should be 12, 15, 18, 21 or 24")
	cmd.Flags().StringP(passwordArgCmdName, "p", "", passwordUsage)
	return cmd
}

func execCreateCmd(cmd *cobra.Command, baseConfig *baseConfiguration) error {
	mnemonic, err := cmd.Flags().GetString("seed")
	if err != nil {
		return err
	}
	password, err := createPassphrase(cmd)
	if err != nil {
		return err
	}
	am, err := account.NewManager(baseConfig.WalletDir(), password)
	if err != nil {
		return err
	}
	if am.Exists() {
		return errors.New("wallet already exists, remove the key file first to create a new one")
	}
	if mnemonic != "" {
		consoleWriter.Println("Creating wallet from mnemonic seed...")
	} else {
		consoleWriter.Println("Creating new wallet...")
	}
	generatedMnemonic, err := am.CreateKeys(mnemonic)
	if err != nil {
		return err
	}
	key, err := am.GetAccountKey()
	if err != nil {
		return err
	}
	consoleWriter.Println("Wallet successfully created")
	consoleWriter.Println("Address: " + key.Address().Hex())
	if mnemonic == "" {
		consoleWriter.Println("The following mnemonic seed can be used to restore your wallet.")
		consoleWriter.Println("Please write it down now, and keep it in a safe, offline place.")
		consoleWriter.Println("mnemonic key: " + generatedMnemonic)
	}
	return nil
}

func addressCmd(baseConfig *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "address",
		Short: "prints the account address",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := loadAccountKey(cmd, baseConfig)
			if err != nil {
				return err
			}
			consoleWriter.Println(key.Address().Hex())
			return nil
		},
	}
	cmd.Flags().StringP(passwordArgCmdName, "p", "", passwordUsage)
	return cmd
}

func balanceCmd(baseConfig *baseConfiguration) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "prints the account balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execBalanceCmd(cmd, baseConfig)
		},
	}
	cmd.Flags().StringP("node-url", "u", defaultNodeURL, "JSON-RPC URL of the Ethereum node to connect to")
	cmd.Flags().StringP(passwordArgCmdName, "p", "", passwordUsage)
	return cmd
}

func execBalanceCmd(cmd *cobra.Command, baseConfig *baseConfiguration) error {
	key, err := loadAccountKey(cmd, baseConfig)
	if err != nil {
		return err
	}
	nodeURL, err := cmd.Flags().GetString("node-url")
	if err != nil {
		return err
	}
	client, err := ethclient.DialContext(cmd.Context(), nodeURL)
	if err != nil {
		return fmt.Errorf("failed to dial node %s: %w", nodeURL, err)
	}
	defer client.Close()

	balance, err := client.BalanceAt(cmd.Context(), key.Address(), nil)
	if err != nil {
		return fmt.Errorf("failed to read balance: %w", err)
	}
	consoleWriter.Println(fmt.Sprintf("%s ETH (%s wei)", weiToEthString(balance), balance))
	return nil
}

func loadAccountKey(cmd *cobra.Command, baseConfig *baseConfiguration) (*account.AccountKey, error) {
	password, err := getPassphrase(cmd, "Enter passphrase: ")
	if err != nil {
		return nil, err
	}
	am, err := account.NewManager(baseConfig.WalletDir(), password)
	if err != nil {
		return nil, err
	}
	return am.GetAccountKey()
}

func createPassphrase(cmd *cobra.Command) (string, error) {
	passwordFromArg, err := cmd.Flags().GetString(passwordArgCmdName)
	if err != nil {
		return "", err
	}
	if passwordFromArg != "" {
		return passwordFromArg, nil
	}
	p1, err := readPassword("Create new passphrase: ")
	if err != nil {
		return "", err
	}
	p2, err := readPassword("Confirm passphrase: ")
	if err != nil {
		return "", err
	}
	if p1 != p2 {
		return "", errors.New("passphrases do not match")
	}
	return p1, nil
}

func getPassphrase(cmd *cobra.Command, promptMessage string) (string, error) {
	passwordFromArg, err := cmd.Flags().GetString(passwordArgCmdName)
	if err != nil {
		return "", err
	}
	if passwordFromArg != "" {
		return passwordFromArg, nil
	}
	return readPassword(promptMessage)
}

func readPassword(promptMessage string) (string, error) {
	consoleWriter.Print(promptMessage)
	passwordBytes, err := term.ReadPassword(syscall.Stdin)
	if err != nil {
		return "", err
	}
	consoleWriter.Println("") // line break after reading password
	return string(passwordBytes), nil
}

func weiToEthString(wei *big.Int) string {
	eth := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	return eth.Text('f', 6)
}
