// Package account manages the signing key used to pay for pings. Keys are
// derived from a BIP-39 mnemonic and stored on disk in an encrypted keystore
// file, created at wallet setup and loaded explicitly by whoever needs to sign.
package account

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/tyler-smith/go-bip39"
)

const keyFileName = "accounts.json"

var (
	ErrInvalidPassword = errors.New("invalid password")
	ErrNoKeys          = errors.New("no keys found in wallet location")
	ErrInvalidMnemonic = errors.New("mnemonic is invalid")
)

type (
	Manager struct {
		dir      string
		password string
	}

	// AccountKey is the decrypted signing key. Implements the gateway signer
	// contract.
	AccountKey struct {
		privKey *ecdsa.PrivateKey
		addr    common.Address
	}
)

func NewManager(dir string, password string) (*Manager, error) {
	if dir == "" {
		return nil, fmt.Errorf("wallet location is empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil { // -rwx------
		return nil, fmt.Errorf("failed to create wallet directory: %w", err)
	}
	return &Manager{dir: dir, password: password}, nil
}

// Exists reports whether a key file is already present in the wallet location.
func (m *Manager) Exists() bool {
	_, err := os.Stat(m.keyFilePath())
	return err == nil
}

// CreateKeys derives the signing key from the mnemonic and stores it encrypted
// with the manager's password. An empty mnemonic generates a new one. Returns
// the mnemonic so a newly generated one can be shown to the user once.
func (m *Manager) CreateKeys(mnemonic string) (string, error) {
	if mnemonic == "" {
		entropy, err := bip39.NewEntropy(128)
		if err != nil {
			return "", fmt.Errorf("failed to generate entropy: %w", err)
		}
		mnemonic, err = bip39.NewMnemonic(entropy)
		if err != nil {
			return "", fmt.Errorf("failed to generate mnemonic: %w", err)
		}
	}
	privKey, err := deriveKey(mnemonic)
	if err != nil {
		return "", err
	}
	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(privKey.PublicKey),
		PrivateKey: privKey,
	}
	blob, err := keystore.EncryptKey(key, m.password, keystore.StandardScryptN, keystore.StandardScryptP)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt account key: %w", err)
	}
	if err := os.WriteFile(m.keyFilePath(), blob, 0600); err != nil { // -rw-------
		return "", fmt.Errorf("failed to write key file: %w", err)
	}
	return mnemonic, nil
}

// GetAccountKey loads and decrypts the stored signing key.
func (m *Manager) GetAccountKey() (*AccountKey, error) {
	blob, err := os.ReadFile(m.keyFilePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoKeys
		}
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	key, err := keystore.DecryptKey(blob, m.password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPassword, err)
	}
	return &AccountKey{privKey: key.PrivateKey, addr: key.Address}, nil
}

func (m *Manager) keyFilePath() string {
	return filepath.Join(m.dir, keyFileName)
}

func (k *AccountKey) Address() common.Address {
	return k.addr
}

func (k *AccountKey) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), k.privKey)
}

// deriveKey derives the secp256k1 signing key from the mnemonic using the
// standard ethereum path m/44'/60'/0'/0/0. One account per wallet, same as the
// single-address model of the product.
func deriveKey(mnemonic string) (*ecdsa.PrivateKey, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}
	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMnemonic, err)
	}
	masterKey, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to derive master key: %w", err)
	}
	key := masterKey
	for _, child := range []uint32{
		hdkeychain.HardenedKeyStart + 44,
		hdkeychain.HardenedKeyStart + 60,
		hdkeychain.HardenedKeyStart + 0,
		0,
		0,
	} {
		key, err = key.Derive(child)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child key: %w", err)
		}
	}
	ecPriv, err := key.ECPrivKey()
	if err != nil {
		return nil, fmt.Errorf("failed to extract private key: %w", err)
	}
	return crypto.ToECDSA(ecPriv.Serialize())
}
