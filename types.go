package custody

import (
	"context"
	"fmt"
	"math/big"
	"time"
)

// Logger is satisfied by *slog.Logger
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds auth options
type Config interface {
	GetAccessSigningKey() string
	GetRefreshSigningKey() string
	GetVerifySigningKey() string
	GetResetSigningKey() string
	GetSigningMethod() string
	GetAccessTokenTTL() time.Duration
	GetRefreshTokenTTL() time.Duration
	GetVerifyTokenTTL() time.Duration
	GetResetTokenTTL() time.Duration
	GetBaseURL() string
}

// MailMessage is the command published to the mail queue
type MailMessage struct {
	Template string            `json:"template"`
	To       string            `json:"to"`
	Vars     map[string]string `json:"vars"`
}

// MailDispatcher hands mail commands to an external queue.
// Delivery is at-least-once and never awaited by workflows.
type MailDispatcher interface {
	Enqueue(ctx context.Context, msg MailMessage) error
}

// MailDispatcherFunc adapts a function to the MailDispatcher interface.
type MailDispatcherFunc func(ctx context.Context, msg MailMessage) error

// Enqueue implements MailDispatcher.
func (f MailDispatcherFunc) Enqueue(ctx context.Context, msg MailMessage) error {
	if f == nil {
		return nil
	}
	return f(ctx, msg)
}

// KeyMaterial is a derived account
type KeyMaterial struct {
	Address    string
	PrivateKey string
	Mnemonic   string
}

// KeyDeriver creates and recovers wallet accounts
type KeyDeriver interface {
	NewAccount() (KeyMaterial, error)
	RecoverAccount(mnemonic string) (KeyMaterial, error)
}

// NetworkCatalog lists the chains the backend can talk to
type NetworkCatalog interface {
	Has(network string) bool
	Names() []string
}

// TransferOrder describes an outbound transfer signed with a custodial key
type TransferOrder struct {
	Network    string
	Standard   TokenStandard
	Contract   string
	PrivateKey string
	From       string
	To         string
	Amount     *big.Int
	// GasPrice in gwei, zero lets the node decide
	GasPrice float64
}

// TokenStandard selects how a transfer is encoded
type TokenStandard string

const (
	StandardNative TokenStandard = "native"
	StandardERC20  TokenStandard = "erc20"
	StandardBEP20  TokenStandard = "bep20"
)

// Transactor broadcasts transfers
type Transactor interface {
	Transfer(ctx context.Context, order TransferOrder) (string, error)
}

type defLogger struct{}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Println("[ERR] CUSTODY " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Println("[WRN] CUSTODY " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Println("[INF] CUSTODY " + format(msg, args...))
}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Println("[DBG] CUSTODY " + format(msg, args...))
}

func format(msg string, args ...any) string {
	for i := 0; i+1 < len(args); i += 2 {
		msg += fmt.Sprintf(" %v=%v", args[i], args[i+1])
	}
	if len(args)%2 == 1 {
		msg += fmt.Sprintf(" %v", args[len(args)-1])
	}
	return msg
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}

// BalanceSheet lists the token balances of an address on one network
type BalanceSheet struct {
	Address       string        `json:"address"`
	ChainName     string        `json:"chain_name"`
	ChainID       int64         `json:"chain_id"`
	QuoteCurrency string        `json:"quote_currency"`
	Items         []BalanceItem `json:"items"`
}

type BalanceItem struct {
	LogoURL             string  `json:"logo_url"`
	ContractDisplayName string  `json:"contract_display_name"`
	ContractAddress     string  `json:"contract_address"`
	Quote               float64 `json:"quote"`
	PrettyQuote         string  `json:"pretty_quote"`
	Balance             string  `json:"balance"`
}

// TransactionHistory lists the recent transactions of an address on one network
type TransactionHistory struct {
	Address   string            `json:"address"`
	ChainName string            `json:"chain_name"`
	ChainID   int64             `json:"chain_id"`
	Items     []TransactionItem `json:"items"`
}

type TransactionItem struct {
	TxHash           string `json:"tx_hash"`
	Successful       bool   `json:"successful"`
	BlockHeight      int64  `json:"block_height"`
	FromAddress      string `json:"from_address"`
	ToAddress        string `json:"to_address"`
	Value            string `json:"value"`
	PrettyValueQuote string `json:"pretty_value_quote"`
}

// Explorer reads indexed chain data for an address
type Explorer interface {
	Balances(ctx context.Context, network, address string) (BalanceSheet, error)
	Transactions(ctx context.Context, network, address string) (TransactionHistory, error)
}
