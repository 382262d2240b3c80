package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/gyber/go-custody"
)

const tokenTransferABI = `[{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}]`

var tokenABI = mustTokenABI()

func mustTokenABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(tokenTransferABI))
	if err != nil {
		panic(err)
	}
	return parsed
}

// Backend is the subset of an RPC client used to send transfers.
// *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	Close()
}

// Dialer opens a Backend for an RPC url
type Dialer func(ctx context.Context, rpcURL string) (Backend, error)

// DialEthClient is the default Dialer
func DialEthClient(ctx context.Context, rpcURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// Transactor signs legacy EIP-155 transactions and broadcasts them
type Transactor struct {
	registry *Registry
	dial     Dialer
	logger   custody.Logger
}

var _ custody.Transactor = (*Transactor)(nil)

func NewTransactor(registry *Registry) *Transactor {
	return &Transactor{
		registry: registry,
		dial:     DialEthClient,
		logger:   nopLogger{},
	}
}

func (t *Transactor) WithDialer(dial Dialer) *Transactor {
	if dial != nil {
		t.dial = dial
	}
	return t
}

func (t *Transactor) WithLogger(logger custody.Logger) *Transactor {
	if logger != nil {
		t.logger = logger
	}
	return t
}

// Transfer returns the hash of the broadcast transaction
func (t *Transactor) Transfer(ctx context.Context, order custody.TransferOrder) (string, error) {
	network, ok := t.registry.Get(order.Network)
	if !ok {
		return "", fmt.Errorf("chain: unknown network %q", order.Network)
	}

	if !network.Supports(order.Standard) {
		return "", fmt.Errorf("chain: %s does not support %s transfers", network.Name, order.Standard)
	}

	if order.Amount == nil || order.Amount.Sign() <= 0 {
		return "", fmt.Errorf("chain: amount must be positive")
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(order.PrivateKey, "0x"))
	if err != nil {
		return "", fmt.Errorf("chain: private key: %w", err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	if order.From != "" && !strings.EqualFold(from.Hex(), order.From) {
		return "", fmt.Errorf("chain: key does not control %s", order.From)
	}

	if !common.IsHexAddress(order.To) {
		return "", fmt.Errorf("chain: invalid recipient %q", order.To)
	}
	recipient := common.HexToAddress(order.To)

	to, value, data, err := encodeTransfer(order, recipient)
	if err != nil {
		return "", err
	}

	backend, err := t.dial(ctx, network.RPCURL)
	if err != nil {
		return "", fmt.Errorf("chain: dial %s: %w", network.Name, err)
	}
	defer backend.Close()

	signed, err := t.sign(ctx, backend, network, key, from, to, value, data, order.GasPrice)
	if err != nil {
		return "", err
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("chain: send: %w", err)
	}

	t.logger.Info("transfer broadcast",
		"network", network.Name,
		"standard", string(order.Standard),
		"tx_hash", signed.Hash().Hex(),
	)

	return signed.Hash().Hex(), nil
}

func encodeTransfer(order custody.TransferOrder, recipient common.Address) (common.Address, *big.Int, []byte, error) {
	if order.Standard == "" || order.Standard == custody.StandardNative {
		return recipient, new(big.Int).Set(order.Amount), nil, nil
	}

	if !common.IsHexAddress(order.Contract) {
		return common.Address{}, nil, nil, fmt.Errorf("chain: invalid contract %q", order.Contract)
	}

	data, err := tokenABI.Pack("transfer", recipient, order.Amount)
	if err != nil {
		return common.Address{}, nil, nil, fmt.Errorf("chain: encode transfer: %w", err)
	}

	return common.HexToAddress(order.Contract), big.NewInt(0), data, nil
}

func (t *Transactor) sign(ctx context.Context, backend Backend, network Network, key *ecdsa.PrivateKey, from, to common.Address, value *big.Int, data []byte, gasGwei float64) (*types.Transaction, error) {
	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("chain: nonce: %w", err)
	}

	gasPrice := GweiToWei(gasGwei)
	if gasPrice == nil {
		if gasPrice, err = backend.SuggestGasPrice(ctx); err != nil {
			return nil, fmt.Errorf("chain: gas price: %w", err)
		}
	}

	gas, err := backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     data,
	})
	if err != nil {
		return nil, fmt.Errorf("chain: estimate gas: %w", err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Value:    value,
		Data:     data,
	})

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(network.ChainID)), key)
	if err != nil {
		return nil, fmt.Errorf("chain: sign: %w", err)
	}
	return signed, nil
}

// GweiToWei converts a gas preference to wei, nil when gwei is not positive
func GweiToWei(gwei float64) *big.Int {
	if gwei <= 0 {
		return nil
	}
	wei, _ := new(big.Float).Mul(big.NewFloat(gwei), big.NewFloat(params.GWei)).Int(nil)
	return wei
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
