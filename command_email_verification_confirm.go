package custody

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type EmailVerificationConfirmMessage struct {
	Token string `json:"token"`
}

func (m EmailVerificationConfirmMessage) Type() string { return "user.email_verification.confirm" }

// EmailVerificationConfirmHandler flips is_verified for the email carried by
// the token. Invalid tokens report false without an error so callers cannot
// tell a bad token from a token for another user. Expiry is the one signal
// surfaced, as ErrLinkExpired.
type EmailVerificationConfirmHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	activity ActivitySink
	logger   Logger
}

func NewEmailVerificationConfirmHandler(repo RepositoryManager, tokens TokenService) *EmailVerificationConfirmHandler {
	return &EmailVerificationConfirmHandler{
		repo:     repo,
		tokens:   tokens,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *EmailVerificationConfirmHandler) WithActivitySink(sink ActivitySink) *EmailVerificationConfirmHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *EmailVerificationConfirmHandler) WithLogger(logger Logger) *EmailVerificationConfirmHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *EmailVerificationConfirmHandler) Execute(ctx context.Context, event EmailVerificationConfirmMessage) (bool, error) {
	select {
	case <-ctx.Done():
		return false, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during email verification")
	default:
		return h.execute(ctx, event)
	}
}

func (h *EmailVerificationConfirmHandler) execute(ctx context.Context, event EmailVerificationConfirmMessage) (bool, error) {
	email, err := linkEmail(h.tokens, PurposeEmailVerify, event.Token)
	if err != nil || email == "" {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var verified bool
	err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		verified, err = h.repo.Users().MarkVerifiedByEmailTx(ctx, tx, email)
		return err
	})

	if err != nil {
		h.logger.Error("email verification update failed", "error", err)
		return false, wrapAs(err, ErrDownstreamUnavailable)
	}

	if verified {
		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventEmailVerified,
			Actor:     ActorRef{Type: "link"},
			Metadata:  map[string]any{"email": email},
		})
	}

	return verified, nil
}

// linkEmail parses a link token. It returns an empty email and no error for
// any failure except expiry.
func linkEmail(tokens TokenService, purpose Purpose, token string) (string, error) {
	claims, err := tokens.Parse(purpose, token)
	if err != nil {
		if IsTokenExpired(err) {
			return "", wrapAs(err, ErrLinkExpired)
		}
		return "", nil
	}
	return claims.Email(), nil
}
