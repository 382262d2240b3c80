package custody

import (
	"context"

	"github.com/goliatone/go-repository-bun"
)

// UserLookup is the persistence read the guard depends on
type UserLookup interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}

// Auther is the single choke point translating wire tokens into identities
type Auther struct {
	users        UserLookup
	tokens       TokenService
	logger       Logger
	activitySink ActivitySink
}

// NewAuthenticator returns a new Authenticator
func NewAuthenticator(users UserLookup, tokens TokenService) *Auther {
	return &Auther{
		users:        users,
		tokens:       tokens,
		logger:       defLogger{},
		activitySink: noopActivitySink{},
	}
}

func (s *Auther) WithLogger(logger Logger) *Auther {
	s.logger = normalizeLogger(logger)
	return s
}

// WithActivitySink configures an ActivitySink for emitting auth events.
func (s *Auther) WithActivitySink(sink ActivitySink) *Auther {
	s.activitySink = normalizeActivitySink(sink)
	return s
}

// TokenService returns the TokenService instance used by this Authenticator
func (s *Auther) TokenService() TokenService {
	return s.tokens
}

// ResolveAccess turns an access token into the current identity
func (s *Auther) ResolveAccess(ctx context.Context, token string) (*User, error) {
	return s.resolve(ctx, PurposeAccess, token)
}

// ResolveRefresh turns a refresh token into the current identity.
// Only used to mint a new access token.
func (s *Auther) ResolveRefresh(ctx context.Context, token string) (*User, error) {
	return s.resolve(ctx, PurposeRefresh, token)
}

func (s *Auther) resolve(ctx context.Context, purpose Purpose, token string) (*User, error) {
	claims, err := s.tokens.Parse(purpose, token)
	if err != nil {
		if IsTokenExpired(err) {
			return nil, err
		}
		s.logger.Debug("token rejected", "purpose", string(purpose), "error", err)
		return nil, wrapAs(err, ErrUnauthorized)
	}

	username := claims.Subject()
	if username == "" {
		return nil, newFrom(ErrUnauthorized, map[string]any{"reason": "missing subject"})
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, newFrom(ErrUnauthorized, map[string]any{"reason": "unknown subject"})
		}
		s.logger.Error("identity lookup failed", "error", err)
		return nil, wrapAs(err, ErrDownstreamUnavailable)
	}

	if user == nil || !user.IsActive {
		return nil, newFrom(ErrUnauthorized, map[string]any{"reason": "inactive"})
	}

	return user, nil
}

// Login checks credentials and issues an access and refresh token pair.
// Unknown users and wrong passwords fail the same way.
func (s *Auther) Login(ctx context.Context, username, password string) (TokenPair, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil && !repository.IsRecordNotFound(err) {
		s.logger.Error("Login lookup error", "error", err)
		return TokenPair{}, wrapAs(err, ErrDownstreamUnavailable)
	}

	if user == nil {
		burnCompare(password)
		s.loginFailed(ctx, nil, username)
		return TokenPair{}, newFrom(ErrInvalidCredentials, nil)
	}

	if !VerifyPassword(password, user.PasswordHash) || !user.IsActive {
		s.loginFailed(ctx, user, username)
		return TokenPair{}, newFrom(ErrInvalidCredentials, nil)
	}

	pair, err := MintTokenPair(s.tokens, user.Username)
	if err != nil {
		s.logger.Error("Login token mint error", "error", err)
		return TokenPair{}, err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventLoginSuccess,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
	})

	return pair, nil
}

// Refresh issues a new access token for a valid refresh token.
// The refresh token itself is not rotated.
func (s *Auther) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	user, err := s.ResolveRefresh(ctx, refreshToken)
	if err != nil {
		return TokenPair{}, err
	}

	pair, err := MintAccessToken(s.tokens, user.Username)
	if err != nil {
		return TokenPair{}, err
	}

	recordActivity(ctx, s.activitySink, s.logger, ActivityEvent{
		EventType: ActivityEventTokenRefreshed,
		Actor:     actorFromUser(user),
		UserID:    user.ID.String(),
	})

	return pair, nil
}

func (s *Auther) loginFailed(ctx context.Context, user *User, username string) {
	event := ActivityEvent{
		EventType: ActivityEventLoginFailure,
		Actor:     actorFromUser(user),
		Metadata:  map[string]any{"identifier": username},
	}
	if user != nil {
		event.UserID = user.ID.String()
	}
	recordActivity(ctx, s.activitySink, s.logger, event)
}
