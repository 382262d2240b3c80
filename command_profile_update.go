package custody

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// UpdateProfileMessage carries optional profile fields, nil means unchanged.
// The verification flag is derived, never taken from the client.
type UpdateProfileMessage struct {
	User     *User   `json:"-"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

func (m UpdateProfileMessage) Type() string { return "user.profile.update" }

func (m UpdateProfileMessage) Validate() error {
	form := struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}{}

	fields := []*validation.FieldRules{}
	if m.Username != nil {
		form.Username = strings.TrimSpace(*m.Username)
		fields = append(fields, validation.Field(&form.Username, usernameRules()...))
	}
	if m.Email != nil {
		form.Email = strings.TrimSpace(*m.Email)
		rules := append([]validation.Rule{validation.Required.Error(msgEmail)}, emailRules()...)
		fields = append(fields, validation.Field(&form.Email, rules...))
	}

	if len(fields) == 0 {
		return nil
	}

	return validationError(validation.ValidateStruct(&form, fields...), "username")
}

// UpdateProfileHandler edits username and email. Changing the email resets
// is_verified unless the new email equals the current one.
type UpdateProfileHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func NewUpdateProfileHandler(repo RepositoryManager) *UpdateProfileHandler {
	return &UpdateProfileHandler{
		repo:     repo,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

func (h *UpdateProfileHandler) WithActivitySink(sink ActivitySink) *UpdateProfileHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

func (h *UpdateProfileHandler) WithLogger(logger Logger) *UpdateProfileHandler {
	h.logger = normalizeLogger(logger)
	return h
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) (*User, error) {
	select {
	case <-ctx.Done():
		return nil, goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled during profile update")
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) (*User, error) {
	current := event.User
	if current == nil {
		return nil, newFrom(ErrUnauthorized, nil)
	}

	if err := event.Validate(); err != nil {
		return nil, err
	}

	username := current.Username
	if event.Username != nil {
		username = strings.TrimSpace(*event.Username)
	}

	email := current.Email
	verified := current.IsVerified
	if event.Email != nil {
		email = strings.TrimSpace(*event.Email)
		verified = NextVerifiedState(current, email)
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	var updated *User
	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := h.ensureAvailable(ctx, tx, current, username, email); err != nil {
			return err
		}

		if err := h.repo.Users().UpdateProfileTx(ctx, tx, current.ID, username, email, verified); err != nil {
			if isUniqueViolation(err) {
				return wrapAs(err, ErrConflict)
			}
			if repository.IsRecordNotFound(err) {
				return newFrom(ErrUnauthorized, nil)
			}
			return wrapAs(err, ErrDownstreamUnavailable)
		}

		var err error
		updated, err = h.repo.Users().GetByUsernameTx(ctx, tx, username)
		if err != nil {
			return wrapAs(err, ErrDownstreamUnavailable)
		}
		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return nil, richErr
		}
		return nil, wrapAs(err, ErrDownstreamUnavailable)
	}

	recordActivity(ctx, h.activity, h.logger, ActivityEvent{
		EventType: ActivityEventProfileUpdated,
		Actor:     actorFromUser(current),
		UserID:    current.ID.String(),
		Metadata: map[string]any{
			"username_changed": username != current.Username,
			"email_changed":    email != current.Email,
		},
	})

	return updated, nil
}

func (h *UpdateProfileHandler) ensureAvailable(ctx context.Context, tx bun.IDB, current *User, username, email string) error {
	if username != current.Username {
		if _, err := h.repo.Users().GetByUsernameTx(ctx, tx, username); err == nil {
			return newFrom(ErrConflict, map[string]any{"username": username})
		} else if !repository.IsRecordNotFound(err) {
			return wrapAs(err, ErrDownstreamUnavailable)
		}
	}

	if email != "" && email != current.Email {
		if _, err := h.repo.Users().GetByEmailTx(ctx, tx, email); err == nil {
			return newFrom(ErrConflict, map[string]any{"email": email})
		} else if !repository.IsRecordNotFound(err) {
			return wrapAs(err, ErrDownstreamUnavailable)
		}
	}

	return nil
}

// NextVerifiedState is the verification flag after an email edit
func NextVerifiedState(current *User, newEmail string) bool {
	if current == nil {
		return false
	}
	return current.IsVerified && current.Email == newEmail
}
