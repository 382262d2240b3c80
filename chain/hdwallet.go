package chain

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gyber/go-custody"
	"github.com/tyler-smith/go-bip39"
)

// DefaultDerivationPath is the first account of the standard Ethereum path
const DefaultDerivationPath = "m/44'/60'/0'/0/0"

// HDWallet derives EVM accounts from BIP-39 mnemonics
type HDWallet struct {
	entropyBits int
	path        accounts.DerivationPath
}

var _ custody.KeyDeriver = (*HDWallet)(nil)

// NewHDWallet returns a deriver producing 12 word mnemonics on DefaultDerivationPath
func NewHDWallet() *HDWallet {
	path, _ := accounts.ParseDerivationPath(DefaultDerivationPath)
	return &HDWallet{
		entropyBits: 128,
		path:        path,
	}
}

// WithPath overrides the derivation path
func (w *HDWallet) WithPath(path string) (*HDWallet, error) {
	parsed, err := accounts.ParseDerivationPath(path)
	if err != nil {
		return nil, fmt.Errorf("chain: derivation path: %w", err)
	}
	w.path = parsed
	return w, nil
}

// WithEntropy sets the mnemonic entropy, 128 bits gives 12 words and 256 gives 24
func (w *HDWallet) WithEntropy(bits int) *HDWallet {
	w.entropyBits = bits
	return w
}

func (w *HDWallet) NewAccount() (custody.KeyMaterial, error) {
	entropy, err := bip39.NewEntropy(w.entropyBits)
	if err != nil {
		return custody.KeyMaterial{}, fmt.Errorf("chain: entropy: %w", err)
	}

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return custody.KeyMaterial{}, fmt.Errorf("chain: mnemonic: %w", err)
	}

	return w.RecoverAccount(mnemonic)
}

func (w *HDWallet) RecoverAccount(mnemonic string) (custody.KeyMaterial, error) {
	mnemonic = strings.Join(strings.Fields(strings.ToLower(mnemonic)), " ")

	seed, err := bip39.NewSeedWithErrorChecking(mnemonic, "")
	if err != nil {
		return custody.KeyMaterial{}, fmt.Errorf("chain: invalid mnemonic: %w", err)
	}

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return custody.KeyMaterial{}, fmt.Errorf("chain: master key: %w", err)
	}

	for _, index := range w.path {
		if key, err = key.Derive(index); err != nil {
			return custody.KeyMaterial{}, fmt.Errorf("chain: derive: %w", err)
		}
	}

	priv, err := key.ECPrivKey()
	if err != nil {
		return custody.KeyMaterial{}, fmt.Errorf("chain: private key: %w", err)
	}

	ecdsaKey, err := crypto.ToECDSA(priv.Serialize())
	if err != nil {
		return custody.KeyMaterial{}, fmt.Errorf("chain: private key: %w", err)
	}

	return custody.KeyMaterial{
		Address:    crypto.PubkeyToAddress(ecdsaKey.PublicKey).Hex(),
		PrivateKey: hexutil.Encode(crypto.FromECDSA(ecdsaKey)),
		Mnemonic:   mnemonic,
	}, nil
}
