package custody

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (m FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

// FinalizePasswordResetHandler re-hashes and stores the new password for the
// email carried by a reset token. Token failures behave like email
// verification: false for anything but expiry.
type FinalizePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	activity ActivitySink
	logger   Logger
}

// NewFinalizePasswordResetHandler creates a handler with sane defaults.
func NewFinalizePasswordResetHandler(repo RepositoryManager, tokens TokenService) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithActivitySink sets the sink used to emit password reset events.
func (h *FinalizePasswordResetHandler) WithActivitySink(sink ActivitySink) *FinalizePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *FinalizePasswordResetHandler) WithLogger(logger Logger) *FinalizePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) (bool, error) {
	select {
	case <-ctx.Done():
		return false, goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) (bool, error) {
	if err := ValidatePassword(event.Password); err != nil {
		return false, err
	}

	email, err := linkEmail(h.tokens, PurposePasswordReset, event.Token)
	if err != nil || email == "" {
		return false, err
	}

	passwordHash, err := HashPassword(event.Password)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var updated bool
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		updated, err = h.repo.Users().ResetPasswordByEmailTx(ctx, tx, email, passwordHash)
		return err
	})

	if err != nil {
		h.logger.Error("password reset update failed", "error", err)
		return false, wrapAs(err, ErrDownstreamUnavailable)
	}

	if updated {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventPasswordResetSuccess,
			Actor:     ActorRef{Type: "link"},
			Metadata:  map[string]any{"email": email},
		})
	}

	return updated, nil
}
