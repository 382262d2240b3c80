package custody

import (
	"net/http"

	"github.com/goliatone/go-errors"
)

const (
	TextCodeTokenMalformed        = "TOKEN_MALFORMED"
	TextCodeTokenInvalid          = "TOKEN_INVALID"
	TextCodeTokenExpired          = "TOKEN_EXPIRED"
	TextCodeUnauthorized          = "UNAUTHORIZED"
	TextCodeInvalidCredentials    = "INVALID_CREDENTIALS"
	TextCodeForbidden             = "FORBIDDEN"
	TextCodeNotVerified           = "NOT_VERIFIED"
	TextCodeNotAdmin              = "NOT_ADMIN"
	TextCodeLinkExpired           = "LINK_EXPIRED"
	TextCodeConflict              = "CONFLICT"
	TextCodeValidation            = "VALIDATION_FAILED"
	TextCodeNotFound              = "NOT_FOUND"
	TextCodeDownstreamUnavailable = "DOWNSTREAM_UNAVAILABLE"
	TextCodeReservedClaim         = "RESERVED_CLAIM"
)

// ErrTokenMalformed is returned when a token envelope cannot be decoded
var ErrTokenMalformed = errors.New("Could Not Validate Credentials", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrTokenInvalid is returned for a bad signature or a purpose mismatch
var ErrTokenInvalid = errors.New("Could Not Validate Credentials", errors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(errors.CodeUnauthorized)

// ErrTokenExpired is returned when a token is past its TTL
var ErrTokenExpired = errors.New("Token Has Been Expired", errors.CategoryAuthz).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeForbidden)

// ErrUnauthorized is returned when no identity can be resolved
var ErrUnauthorized = errors.New("Could Not Validate Credentials", errors.CategoryAuth).
	WithTextCode(TextCodeUnauthorized).
	WithCode(errors.CodeUnauthorized)

// ErrInvalidCredentials is returned by login on any username/password mismatch
var ErrInvalidCredentials = errors.New("Incorrect Username Or Password", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// ErrForbidden is the generic permission gate rejection
var ErrForbidden = errors.New("Forbidden", errors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(errors.CodeForbidden)

// ErrNotVerified is returned by RequireVerified
var ErrNotVerified = errors.New("You Are Not Verified User", errors.CategoryAuthz).
	WithTextCode(TextCodeNotVerified).
	WithCode(errors.CodeForbidden)

// ErrNotAdmin is returned by RequireAdmin
var ErrNotAdmin = errors.New("You Are Not SuperUser", errors.CategoryAuthz).
	WithTextCode(TextCodeNotAdmin).
	WithCode(errors.CodeForbidden)

// ErrLinkExpired is returned by confirmation flows when the link token expired
var ErrLinkExpired = errors.New("Link Has Been Expired", errors.CategoryAuthz).
	WithTextCode(TextCodeLinkExpired).
	WithCode(errors.CodeForbidden)

// ErrConflict is returned on uniqueness violations
var ErrConflict = errors.New("This Username Or Email Already Exists", errors.CategoryConflict).
	WithTextCode(TextCodeConflict).
	WithCode(errors.CodeConflict)

// ErrValidation is returned when input fails validation
var ErrValidation = errors.New("Validation Failed", errors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(http.StatusUnprocessableEntity)

// ErrNotFound is returned when an owned record does not exist
var ErrNotFound = errors.New("Not Found", errors.CategoryNotFound).
	WithTextCode(TextCodeNotFound).
	WithCode(errors.CodeNotFound)

// ErrDownstreamUnavailable is returned when persistence or the chain SDK fails
var ErrDownstreamUnavailable = errors.New("Service Unavailable", errors.CategoryOperation).
	WithTextCode(TextCodeDownstreamUnavailable).
	WithCode(http.StatusServiceUnavailable)

// ErrReservedClaim is returned when callers try to set exp, iat or mode
var ErrReservedClaim = errors.New("claim name is reserved", errors.CategoryBadInput).
	WithTextCode(TextCodeReservedClaim).
	WithCode(errors.CodeBadRequest)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeValidation).
	WithCode(http.StatusUnprocessableEntity)

// ErrMismatchedHashAndPassword is returned when a password does not match its hash
var ErrMismatchedHashAndPassword = errors.New("password does not match hash", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCredentials).
	WithCode(errors.CodeUnauthorized)

// wrapAs keeps err as the cause but reports it with the sentinel's
// category, message and codes. errors.Wrap would merge a rich cause into
// the result, so those are copied from the sentinel and linked as Source.
func wrapAs(err error, sentinel *errors.Error) *errors.Error {
	if err == nil {
		return newFrom(sentinel, nil)
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) {
		e := newFrom(sentinel, map[string]any{"cause": richErr.TextCode})
		e.Source = err
		return e
	}

	return errors.Wrap(err, sentinel.Category, sentinel.Message).
		WithTextCode(sentinel.TextCode).
		WithCode(sentinel.Code)
}

// newFrom builds a fresh copy of sentinel so metadata never leaks into the
// package level value.
func newFrom(sentinel *errors.Error, metadata map[string]any) *errors.Error {
	e := errors.New(sentinel.Message, sentinel.Category).
		WithTextCode(sentinel.TextCode).
		WithCode(sentinel.Code)
	if len(metadata) > 0 {
		e = e.WithMetadata(metadata)
	}
	return e
}

// withMessage is newFrom with a replacement message.
func withMessage(sentinel *errors.Error, message string) *errors.Error {
	return errors.New(message, sentinel.Category).
		WithTextCode(sentinel.TextCode).
		WithCode(sentinel.Code)
}

// HasTextCode reports whether err is a rich error carrying code
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *errors.Error
	if errors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsTokenExpired will check for expired tokens
func IsTokenExpired(err error) bool {
	return HasTextCode(err, TextCodeTokenExpired)
}

// IsTokenMalformed will check for undecodable tokens
func IsTokenMalformed(err error) bool {
	return HasTextCode(err, TextCodeTokenMalformed)
}

// IsTokenInvalid will check for signature or purpose failures
func IsTokenInvalid(err error) bool {
	return HasTextCode(err, TextCodeTokenInvalid)
}
