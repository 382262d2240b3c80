package custody

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

type InitializePasswordResetMessage struct {
	// User is set on the authenticated route
	User *User
	// Email is used on the public route when User is nil
	Email   string `json:"email"`
	BaseURL string
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   TokenService
	mailer   MailDispatcher
	baseURL  string
	activity ActivitySink
	logger   Logger
}

func NewInitializePasswordResetHandler(repo RepositoryManager, tokens TokenService, mailer MailDispatcher, baseURL string) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{
		repo:     repo,
		tokens:   tokens,
		mailer:   mailer,
		baseURL:  baseURL,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *InitializePasswordResetHandler) WithActivitySink(sink ActivitySink) *InitializePasswordResetHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *InitializePasswordResetHandler) WithLogger(logger Logger) *InitializePasswordResetHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user := event.User
	if user == nil {
		email := strings.TrimSpace(event.Email)
		if email == "" {
			return withMessage(ErrValidation, "Email Is Not Set")
		}

		found, err := h.repo.Users().GetByEmail(ctx, email)
		if err != nil {
			if repository.IsRecordNotFound(err) {
				// the public route never reveals whether the email exists
				h.logger.Debug("password reset requested for unknown email")
				return nil
			}
			return wrapAs(err, ErrDownstreamUnavailable)
		}
		user = found
	}

	if user.Email == "" {
		return withMessage(ErrValidation, "Email Is Not Set")
	}

	token, err := h.tokens.Issue(PurposePasswordReset, EmailClaims(user.Email))
	if err != nil {
		return err
	}

	link := joinURL(firstNonEmpty(event.BaseURL, h.baseURL), resetPath+token)

	if err := h.mailer.Enqueue(ctx, MailMessage{
		Template: MailTemplateReset,
		To:       user.Email,
		Vars: map[string]string{
			"token": token,
			"link":  link,
		},
	}); err != nil {
		h.logger.Error("password reset mail enqueue failed", "error", err)
		return wrapAs(err, ErrDownstreamUnavailable)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequested,
		Actor:     actorFromUser(event.User),
		UserID:    user.ID.String(),
	})

	return nil
}
