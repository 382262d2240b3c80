package custody

import (
	"context"
	"math/big"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

const (
	msgWalletNotFound   = "This Wallet Not Exists In Your Account"
	msgTransferFailed   = "Unable To Make Transaction"
	msgInvalidMnemonic  = "Mnemonic Phrase Is Not Valid"
	msgExplorerFailed   = "Unable To Fetch Chain Data"
	msgTransferAmount   = "Amount Should Be Greater Than Zero"
	msgTransferAddress  = "Address Is Required"
	msgTransferContract = "Contract Address Is Required"
)

// TransferMessage is an outbound transfer from a wallet the caller owns
type TransferMessage struct {
	User     *User         `json:"-"`
	Standard TokenStandard `json:"-"`
	Network  string        `json:"mainnet"`
	Contract string        `json:"contract_address"`
	From     string        `json:"from_address"`
	To       string        `json:"to_address"`
	Amount   *big.Int      `json:"amount"`
}

func (m TransferMessage) Type() string { return "wallet.transfer" }

func (m TransferMessage) Validate() error {
	rules := []*validation.FieldRules{
		validation.Field(&m.From, validation.Required.Error(msgTransferAddress)),
		validation.Field(&m.To, validation.Required.Error(msgTransferAddress)),
		validation.Field(&m.Amount, validation.By(positiveAmount)),
	}
	if m.Standard != StandardNative {
		rules = append(rules, validation.Field(&m.Contract, validation.Required.Error(msgTransferContract)))
	}
	return validationError(validation.ValidateStruct(&m, rules...), "amount")
}

func positiveAmount(value any) error {
	amount, _ := value.(*big.Int)
	if amount == nil || amount.Sign() <= 0 {
		return goerrors.New(msgTransferAmount, goerrors.CategoryValidation)
	}
	return nil
}

// WalletService manages custodial wallets. Every operation is scoped to the
// wallets of the calling user, and anything touching key material requires
// a verified email.
type WalletService struct {
	repo       RepositoryManager
	deriver    KeyDeriver
	networks   NetworkCatalog
	transactor Transactor
	explorer   Explorer
	activity   ActivitySink
	logger     Logger
}

func NewWalletService(repo RepositoryManager, deriver KeyDeriver, networks NetworkCatalog) *WalletService {
	return &WalletService{
		repo:     repo,
		deriver:  deriver,
		networks: networks,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (s *WalletService) WithTransactor(transactor Transactor) *WalletService {
	s.transactor = transactor
	return s
}

func (s *WalletService) WithExplorer(explorer Explorer) *WalletService {
	s.explorer = explorer
	return s
}

func (s *WalletService) WithActivitySink(sink ActivitySink) *WalletService {
	s.activity = normalizeActivitySink(sink)
	return s
}

func (s *WalletService) WithLogger(logger Logger) *WalletService {
	s.logger = normalizeLogger(logger)
	return s
}

// Create derives a fresh account from a new mnemonic
func (s *WalletService) Create(ctx context.Context, user *User) (*Wallet, error) {
	if err := Authorize(user, RequireVerified); err != nil {
		return nil, err
	}

	keys, err := s.deriver.NewAccount()
	if err != nil {
		s.logger.Error("wallet derivation failed", "error", err)
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "Unable To Create Wallet")
	}

	wallet, err := s.store(ctx, user, keys, true)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventWalletCreated,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"address": wallet.Address},
	})

	return wallet, nil
}

// Recover imports an account from a mnemonic. The mnemonic has been seen
// outside the backend so the wallet starts as not secure.
func (s *WalletService) Recover(ctx context.Context, user *User, mnemonic string) (*Wallet, error) {
	if err := Authorize(user, RequireVerified); err != nil {
		return nil, err
	}

	mnemonic = strings.Join(strings.Fields(mnemonic), " ")
	if err := ValidateMnemonic(mnemonic); err != nil {
		return nil, err
	}

	keys, err := s.deriver.RecoverAccount(mnemonic)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, msgInvalidMnemonic).
			WithTextCode(TextCodeValidation).
			WithCode(ErrValidation.Code)
	}

	wallet, err := s.store(ctx, user, keys, false)
	if err != nil {
		return nil, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventWalletRecovered,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"address": wallet.Address},
	})

	return wallet, nil
}

func (s *WalletService) store(ctx context.Context, user *User, keys KeyMaterial, secure bool) (*Wallet, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	wallet := &Wallet{
		UserID:     user.ID,
		Address:    keys.Address,
		PrivateKey: keys.PrivateKey,
		Mnemonic:   keys.Mnemonic,
		IsSecure:   true,
	}

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		created, err := s.repo.Wallets().AddTx(ctx, tx, wallet)
		if err != nil {
			return err
		}
		wallet = created

		if !secure {
			if err := s.repo.Wallets().MarkInsecureTx(ctx, tx, wallet.ID); err != nil {
				return err
			}
			wallet.IsSecure = false
		}
		return nil
	})

	if err != nil {
		if isUniqueViolation(err) {
			return nil, withMessage(ErrConflict, "This Wallet Already Exists").
				WithMetadata(map[string]any{"address": keys.Address})
		}
		s.logger.Error("wallet store failed", "error", err)
		return nil, wrapAs(err, ErrDownstreamUnavailable)
	}

	return wallet, nil
}

// List returns the wallets owned by user
func (s *WalletService) List(ctx context.Context, user *User) ([]*Wallet, error) {
	if err := Authorize(user); err != nil {
		return nil, err
	}

	records, err := s.repo.Wallets().ListByUser(ctx, user.ID)
	if err != nil {
		return nil, wrapAs(err, ErrDownstreamUnavailable)
	}
	return records, nil
}

// Get returns an owned wallet, other users' wallets are reported as missing
func (s *WalletService) Get(ctx context.Context, user *User, address string) (*Wallet, error) {
	if err := Authorize(user); err != nil {
		return nil, err
	}
	return s.owned(ctx, s.repo.DB(), user, address)
}

func (s *WalletService) owned(ctx context.Context, tx bun.IDB, user *User, address string) (*Wallet, error) {
	wallet, err := s.repo.Wallets().GetOwnedTx(ctx, tx, user.ID, address)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, withMessage(ErrNotFound, msgWalletNotFound).
				WithMetadata(map[string]any{"address": address})
		}
		return nil, wrapAs(err, ErrDownstreamUnavailable)
	}
	return wallet, nil
}

// Credentials reveals the key material of an owned wallet and marks it as
// no longer secure.
func (s *WalletService) Credentials(ctx context.Context, user *User, address string) (WalletCredentials, error) {
	if err := Authorize(user, RequireVerified); err != nil {
		return WalletCredentials{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var wallet *Wallet
	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if wallet, err = s.owned(ctx, tx, user, address); err != nil {
			return err
		}
		if err := s.repo.Wallets().MarkInsecureTx(ctx, tx, wallet.ID); err != nil {
			return wrapAs(err, ErrDownstreamUnavailable)
		}
		wallet.IsSecure = false
		return nil
	})
	if err != nil {
		return WalletCredentials{}, richOrDownstream(err)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventWalletRevealed,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"address": wallet.Address},
	})

	return wallet.Credentials(), nil
}

// Delete removes an owned wallet
func (s *WalletService) Delete(ctx context.Context, user *User, address string) error {
	if err := Authorize(user, RequireVerified); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	err := s.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return s.repo.Wallets().DeleteOwnedTx(ctx, tx, user.ID, address)
	})
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return withMessage(ErrNotFound, msgWalletNotFound).
				WithMetadata(map[string]any{"address": address})
		}
		return wrapAs(err, ErrDownstreamUnavailable)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventWalletDeleted,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"address": address},
	})

	return nil
}

// Transfer signs and broadcasts a transfer from an owned wallet. The gas
// price comes from the caller's preference for the network, if any.
func (s *WalletService) Transfer(ctx context.Context, event TransferMessage) (string, error) {
	select {
	case <-ctx.Done():
		return "", goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during transfer")
	default:
	}

	user := event.User
	if err := Authorize(user, RequireVerified); err != nil {
		return "", err
	}

	if event.Standard == "" {
		event.Standard = StandardNative
	}

	network := strings.TrimSpace(event.Network)
	if s.networks == nil || !s.networks.Has(network) {
		return "", withMessage(ErrValidation, msgUnavailableChain).
			WithMetadata(map[string]any{"mainnet": network})
	}

	if err := event.Validate(); err != nil {
		return "", err
	}

	wallet, err := s.owned(ctx, s.repo.DB(), user, event.From)
	if err != nil {
		return "", err
	}

	if s.transactor == nil {
		return "", withMessage(ErrDownstreamUnavailable, msgTransferFailed)
	}

	hash, err := s.transactor.Transfer(ctx, TransferOrder{
		Network:    network,
		Standard:   event.Standard,
		Contract:   strings.TrimSpace(event.Contract),
		PrivateKey: wallet.PrivateKey,
		From:       wallet.Address,
		To:         strings.TrimSpace(event.To),
		Amount:     new(big.Int).Set(event.Amount),
		GasPrice:   user.Chains.Gas(network),
	})

	if err != nil {
		s.logger.Error("transfer failed", "mainnet", network, "standard", string(event.Standard), "error", err)
		recordActivity(ctx, s.activity, s.logger, ActivityEvent{
			EventType: ActivityEventTransferFailed,
			Actor:     actorFromUser(user),
			UserID:    user.ID.String(),
			Metadata:  map[string]any{"mainnet": network, "standard": string(event.Standard)},
		})
		return "", goerrors.Wrap(err, ErrDownstreamUnavailable.Category, msgTransferFailed).
			WithTextCode(ErrDownstreamUnavailable.TextCode).
			WithCode(ErrDownstreamUnavailable.Code)
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEvent{
		EventType: ActivityEventTransferSent,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
		Metadata: map[string]any{
			"mainnet":  network,
			"standard": string(event.Standard),
			"tx_hash":  hash,
		},
	})

	return hash, nil
}

// Balances proxies a balance lookup to the explorer
func (s *WalletService) Balances(ctx context.Context, user *User, network, address string) (BalanceSheet, error) {
	if err := s.checkExplorer(user); err != nil {
		return BalanceSheet{}, err
	}

	sheet, err := s.explorer.Balances(ctx, strings.TrimSpace(network), strings.TrimSpace(address))
	if err != nil {
		s.logger.Warn("explorer balances failed", "mainnet", network, "error", err)
		return BalanceSheet{}, goerrors.Wrap(err, ErrDownstreamUnavailable.Category, msgExplorerFailed).
			WithTextCode(ErrDownstreamUnavailable.TextCode).
			WithCode(ErrDownstreamUnavailable.Code)
	}
	return sheet, nil
}

// Transactions proxies a transaction history lookup to the explorer
func (s *WalletService) Transactions(ctx context.Context, user *User, network, address string) (TransactionHistory, error) {
	if err := s.checkExplorer(user); err != nil {
		return TransactionHistory{}, err
	}

	history, err := s.explorer.Transactions(ctx, strings.TrimSpace(network), strings.TrimSpace(address))
	if err != nil {
		s.logger.Warn("explorer transactions failed", "mainnet", network, "error", err)
		return TransactionHistory{}, goerrors.Wrap(err, ErrDownstreamUnavailable.Category, msgExplorerFailed).
			WithTextCode(ErrDownstreamUnavailable.TextCode).
			WithCode(ErrDownstreamUnavailable.Code)
	}
	return history, nil
}

func (s *WalletService) checkExplorer(user *User) error {
	if err := Authorize(user); err != nil {
		return err
	}
	if s.explorer == nil {
		return withMessage(ErrDownstreamUnavailable, msgExplorerFailed)
	}
	return nil
}

func richOrDownstream(err error) error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return wrapAs(err, ErrDownstreamUnavailable)
}
