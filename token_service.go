package custody

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// Purpose tags a token with the single operation allowed to consume it
type Purpose string

const (
	PurposeAccess        Purpose = "access_token"
	PurposeRefresh       Purpose = "refresh_token"
	PurposeEmailVerify   Purpose = "email_verify"
	PurposePasswordReset Purpose = "password_reset"
)

// TokenPolicy is the signing key and TTL for one purpose
type TokenPolicy struct {
	Key []byte
	TTL time.Duration
}

// TokenService signs and verifies purpose scoped tokens
type TokenService interface {
	Issue(purpose Purpose, claims Claims) (string, error)
	Parse(purpose Purpose, token string) (Claims, error)
	TTL(purpose Purpose) time.Duration
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	method   *jwt.SigningMethodHMAC
	policies map[Purpose]TokenPolicy
	now      func() time.Time
	logger   Logger
}

var _ TokenService = (*TokenServiceImpl)(nil)

// NewTokenService creates a new TokenService instance.
// Every purpose must have a non empty key and a positive TTL.
func NewTokenService(method string, policies map[Purpose]TokenPolicy, logger Logger) (*TokenServiceImpl, error) {
	if method == "" {
		method = jwt.SigningMethodHS256.Alg()
	}

	hmac, ok := jwt.GetSigningMethod(method).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, errors.New("unsupported signing method", errors.CategoryBadInput).
			WithMetadata(map[string]any{"alg": method})
	}

	copied := make(map[Purpose]TokenPolicy, len(policies))
	for _, p := range []Purpose{PurposeAccess, PurposeRefresh, PurposeEmailVerify, PurposePasswordReset} {
		policy, ok := policies[p]
		if !ok || len(policy.Key) == 0 {
			return nil, errors.New("missing signing key for token purpose", errors.CategoryBadInput).
				WithMetadata(map[string]any{"purpose": string(p)})
		}
		if policy.TTL <= 0 {
			return nil, errors.New("token TTL must be positive", errors.CategoryBadInput).
				WithMetadata(map[string]any{"purpose": string(p)})
		}
		copied[p] = TokenPolicy{Key: append([]byte(nil), policy.Key...), TTL: policy.TTL}
	}

	return &TokenServiceImpl{
		method:   hmac,
		policies: copied,
		now:      time.Now,
		logger:   normalizeLogger(logger),
	}, nil
}

// NewTokenServiceFromConfig builds the four policies from cfg
func NewTokenServiceFromConfig(cfg Config, logger Logger) (*TokenServiceImpl, error) {
	return NewTokenService(cfg.GetSigningMethod(), map[Purpose]TokenPolicy{
		PurposeAccess:        {Key: []byte(cfg.GetAccessSigningKey()), TTL: cfg.GetAccessTokenTTL()},
		PurposeRefresh:       {Key: []byte(cfg.GetRefreshSigningKey()), TTL: cfg.GetRefreshTokenTTL()},
		PurposeEmailVerify:   {Key: []byte(cfg.GetVerifySigningKey()), TTL: cfg.GetVerifyTokenTTL()},
		PurposePasswordReset: {Key: []byte(cfg.GetResetSigningKey()), TTL: cfg.GetResetTokenTTL()},
	}, logger)
}

// WithClock overrides the time source
func (ts *TokenServiceImpl) WithClock(now func() time.Time) *TokenServiceImpl {
	if now != nil {
		ts.now = now
	}
	return ts
}

// TTL returns the lifetime of tokens for purpose
func (ts *TokenServiceImpl) TTL(purpose Purpose) time.Duration {
	return ts.policies[purpose].TTL
}

// Issue signs claims for purpose, adding exp, iat and mode
func (ts *TokenServiceImpl) Issue(purpose Purpose, claims Claims) (string, error) {
	policy, ok := ts.policies[purpose]
	if !ok {
		return "", errors.New("unknown token purpose", errors.CategoryBadInput).
			WithMetadata(map[string]any{"purpose": string(purpose)})
	}

	if err := guardClaims(claims); err != nil {
		return "", err
	}

	now := ts.now()
	mc := claims.toMapClaims()
	mc[ClaimIssuedAt] = jwt.NewNumericDate(now)
	mc[ClaimExpires] = jwt.NewNumericDate(now.Add(policy.TTL))
	mc[ClaimMode] = string(purpose)

	signed, err := jwt.NewWithClaims(ts.method, mc).SignedString(policy.Key)
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to sign JWT")
	}

	return signed, nil
}

// Parse verifies token against the key for purpose and returns its caller claims.
// Expiry is reported before signature or purpose problems.
func (ts *TokenServiceImpl) Parse(purpose Purpose, token string) (Claims, error) {
	policy, ok := ts.policies[purpose]
	if !ok {
		return nil, newFrom(ErrTokenInvalid, map[string]any{"purpose": string(purpose)})
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{ts.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(ts.now),
	)

	mc := jwt.MapClaims{}
	parsed, err := parser.ParseWithClaims(token, mc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return policy.Key, nil
	})

	if err != nil {
		return nil, ts.classify(token, err)
	}

	if !parsed.Valid {
		return nil, newFrom(ErrTokenInvalid, nil)
	}

	if mode, _ := mc[ClaimMode].(string); mode != string(purpose) {
		ts.logger.Debug("token purpose mismatch", "expected", string(purpose), "got", mode)
		return nil, newFrom(ErrTokenInvalid, map[string]any{"purpose": string(purpose)})
	}

	return claimsFromMap(mc), nil
}

func (ts *TokenServiceImpl) classify(token string, err error) error {
	if errors.Is(err, jwt.ErrTokenMalformed) {
		return wrapAs(err, ErrTokenMalformed)
	}

	if errors.Is(err, jwt.ErrTokenExpired) || ts.elapsed(token) {
		return wrapAs(err, ErrTokenExpired)
	}

	return wrapAs(err, ErrTokenInvalid)
}

// elapsed decodes the payload without verification and reports whether exp has passed
func (ts *TokenServiceImpl) elapsed(token string) bool {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return false
	}

	exp, err := mc.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return !ts.now().Before(exp.Time)
}
