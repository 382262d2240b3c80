package custody

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	MailTemplateVerify = "verify"
	MailTemplateReset  = "reset"

	verifyPath = "users/profile/verify/"
	resetPath  = "users/profile/reset_password?token="
)

type EmailVerificationRequestMessage struct {
	User *User
	// BaseURL overrides the configured base url, e.g. with the request origin
	BaseURL string
}

func (m EmailVerificationRequestMessage) Type() string { return "user.email_verification.request" }

// EmailVerificationRequestHandler mails a verification link bound to the
// user's current email. It never mutates the user.
type EmailVerificationRequestHandler struct {
	tokens   TokenService
	mailer   MailDispatcher
	baseURL  string
	activity ActivitySink
	logger   Logger
}

func NewEmailVerificationRequestHandler(tokens TokenService, mailer MailDispatcher, baseURL string) *EmailVerificationRequestHandler {
	return &EmailVerificationRequestHandler{
		tokens:   tokens,
		mailer:   mailer,
		baseURL:  baseURL,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *EmailVerificationRequestHandler) WithActivitySink(sink ActivitySink) *EmailVerificationRequestHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *EmailVerificationRequestHandler) WithLogger(logger Logger) *EmailVerificationRequestHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *EmailVerificationRequestHandler) Execute(ctx context.Context, event EmailVerificationRequestMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during verification request")
	default:
		return h.execute(ctx, event)
	}
}

func (h *EmailVerificationRequestHandler) execute(ctx context.Context, event EmailVerificationRequestMessage) error {
	user := event.User
	if user == nil {
		return newFrom(ErrUnauthorized, nil)
	}

	if user.Email == "" {
		return withMessage(ErrValidation, "Email Is Not Set")
	}

	token, err := h.tokens.Issue(PurposeEmailVerify, EmailClaims(user.Email))
	if err != nil {
		return err
	}

	link := joinURL(firstNonEmpty(event.BaseURL, h.baseURL), verifyPath+token)

	if err := h.mailer.Enqueue(ctx, MailMessage{
		Template: MailTemplateVerify,
		To:       user.Email,
		Vars:     map[string]string{"link": link},
	}); err != nil {
		h.logger.Error("verification mail enqueue failed", "error", err)
		return wrapAs(err, ErrDownstreamUnavailable)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventVerificationRequested,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
	})

	return nil
}

func joinURL(base, path string) string {
	if base == "" {
		return "/" + path
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + path
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
