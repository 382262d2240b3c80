package custody

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

type DeleteAccountMessage struct {
	User *User
}

func (m DeleteAccountMessage) Type() string { return "user.delete" }

// DeleteAccountHandler removes a user and every wallet it owns in one transaction
type DeleteAccountHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewDeleteAccountHandler(repo RepositoryManager) *DeleteAccountHandler {
	return &DeleteAccountHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *DeleteAccountHandler) WithActivitySink(sink ActivitySink) *DeleteAccountHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *DeleteAccountHandler) WithLogger(logger Logger) *DeleteAccountHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *DeleteAccountHandler) Execute(ctx context.Context, event DeleteAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during account deletion")
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteAccountHandler) execute(ctx context.Context, event DeleteAccountMessage) error {
	user := event.User
	if user == nil {
		return newFrom(ErrUnauthorized, nil)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var removed int64
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		if removed, err = h.repo.Wallets().DeleteByUserTx(ctx, tx, user.ID); err != nil {
			return err
		}
		return h.repo.Users().DeleteByIDTx(ctx, tx, user.ID)
	})

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return newFrom(ErrUnauthorized, nil)
		}
		h.logger.Error("account delete failed", "error", err)
		return wrapAs(err, ErrDownstreamUnavailable)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventAccountDeleted,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
		Metadata:  map[string]any{"wallets": removed},
	})

	return nil
}
