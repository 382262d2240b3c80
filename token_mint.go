package custody

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const TokenTypeBearer = "Bearer"

// TokenPair is the credential pair returned by login and refresh.
// RefreshToken is nil when only the access token was renewed.
type TokenPair struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token"`
	TokenType    string  `json:"token_type"`
}

// MintTokenPair issues an access and a refresh token bound to username
func MintTokenPair(tokens TokenService, username string) (TokenPair, error) {
	access, err := MintAccessToken(tokens, username)
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := tokens.Issue(PurposeRefresh, SubjectClaims(username))
	if err != nil {
		return TokenPair{}, err
	}

	access.RefreshToken = &refresh
	return access, nil
}

// MintAccessToken issues only an access token
func MintAccessToken(tokens TokenService, username string) (TokenPair, error) {
	if tokens == nil {
		return TokenPair{}, goerrors.New("token service is required", goerrors.CategoryBadInput)
	}

	if strings.TrimSpace(username) == "" {
		return TokenPair{}, goerrors.New("username is required", goerrors.CategoryBadInput)
	}

	access, err := tokens.Issue(PurposeAccess, SubjectClaims(username))
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken: access,
		TokenType:   TokenTypeBearer,
	}, nil
}
