package custody

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

const msgUnavailableChain = "Unavailable Chain"

type AddChainMessage struct {
	User    *User   `json:"-"`
	Network string  `json:"mainnet"`
	Gas     float64 `json:"gas"`
}

func (m AddChainMessage) Type() string { return "user.chains.add" }

type RemoveChainMessage struct {
	User    *User  `json:"-"`
	Network string `json:"mainnet"`
}

func (m RemoveChainMessage) Type() string { return "user.chains.remove" }

// ChainPreferencesHandler edits the per network gas preferences of a user.
// Only networks known to the catalog can be added or removed.
type ChainPreferencesHandler struct {
	repo     RepositoryManager
	networks NetworkCatalog
	activity ActivitySink
	logger   Logger
}

func NewChainPreferencesHandler(repo RepositoryManager, networks NetworkCatalog) *ChainPreferencesHandler {
	return &ChainPreferencesHandler{
		repo:     repo,
		networks: networks,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *ChainPreferencesHandler) WithActivitySink(sink ActivitySink) *ChainPreferencesHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *ChainPreferencesHandler) WithLogger(logger Logger) *ChainPreferencesHandler {
	h.logger = normalizeLogger(logger)
	return h
}

// Add sets the gas preference for a network and returns the new mapping
func (h *ChainPreferencesHandler) Add(ctx context.Context, event AddChainMessage) (ChainPreferences, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during chain update")
	default:
	}

	if event.User == nil {
		return nil, newFrom(ErrUnauthorized, nil)
	}

	network := strings.TrimSpace(event.Network)
	if err := h.checkNetwork(network); err != nil {
		return nil, err
	}

	if event.Gas <= 0 {
		return nil, withMessage(ErrValidation, "Gas Should Be Greater Than Zero").
			WithMetadata(map[string]any{"fields": map[string]string{"gas": "must be greater than zero"}})
	}

	return h.update(ctx, event.User, "add", network, func(chains *ChainPreferences) bool {
		chains.Add(network, event.Gas)
		return true
	})
}

// Remove drops a network. Removing a network that was never added is a no-op.
func (h *ChainPreferencesHandler) Remove(ctx context.Context, event RemoveChainMessage) (ChainPreferences, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during chain update")
	default:
	}

	if event.User == nil {
		return nil, newFrom(ErrUnauthorized, nil)
	}

	network := strings.TrimSpace(event.Network)
	if err := h.checkNetwork(network); err != nil {
		return nil, err
	}

	return h.update(ctx, event.User, "remove", network, func(chains *ChainPreferences) bool {
		return chains.Remove(network)
	})
}

func (h *ChainPreferencesHandler) checkNetwork(network string) error {
	if network == "" || h.networks == nil || !h.networks.Has(network) {
		return withMessage(ErrValidation, msgUnavailableChain).
			WithMetadata(map[string]any{"mainnet": network})
	}
	return nil
}

// update applies mutate to the stored preferences inside one transaction so
// concurrent edits of the same user do not overwrite each other. mutate
// reports whether it changed anything.
func (h *ChainPreferencesHandler) update(ctx context.Context, user *User, op, network string, mutate func(*ChainPreferences) bool) (ChainPreferences, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var chains ChainPreferences
	changed := false

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		stored, err := h.repo.Users().LockChainsTx(ctx, tx, user.ID)
		if err != nil {
			return err
		}

		chains = stored.Clone()
		if !mutate(&chains) {
			return nil
		}
		changed = true
		return h.repo.Users().UpdateChainsTx(ctx, tx, user.ID, chains)
	})
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, newFrom(ErrUnauthorized, nil)
		}
		h.logger.Error("chain preferences update failed", "error", err)
		return nil, wrapAs(err, ErrDownstreamUnavailable)
	}

	user.Chains = chains.Clone()
	if !changed {
		return chains, nil
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventChainsUpdated,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"op": op, "mainnet": network},
	})

	return chains, nil
}
