package custody

import "github.com/golang-jwt/jwt/v5"

const (
	ClaimSubject  = "sub"
	ClaimEmail    = "email"
	ClaimMode     = "mode"
	ClaimExpires  = "exp"
	ClaimIssuedAt = "iat"
)

// Claims is the caller controlled payload of a token
type Claims map[string]any

// SubjectClaims builds the payload for session tokens
func SubjectClaims(username string) Claims {
	return Claims{ClaimSubject: username}
}

// EmailClaims builds the payload for verification and reset links
func EmailClaims(email string) Claims {
	return Claims{ClaimEmail: email}
}

// Subject returns the sub claim or an empty string
func (c Claims) Subject() string {
	return c.stringClaim(ClaimSubject)
}

// Email returns the email claim or an empty string
func (c Claims) Email() string {
	return c.stringClaim(ClaimEmail)
}

func (c Claims) stringClaim(name string) string {
	if c == nil {
		return ""
	}
	v, _ := c[name].(string)
	return v
}

// Clone returns a shallow copy
func (c Claims) Clone() Claims {
	out := make(Claims, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

func (c Claims) toMapClaims() jwt.MapClaims {
	out := make(jwt.MapClaims, len(c)+3)
	for k, v := range c {
		out[k] = v
	}
	return out
}

func claimsFromMap(m jwt.MapClaims) Claims {
	out := make(Claims, len(m))
	for k, v := range m {
		if isReservedClaim(k) {
			continue
		}
		out[k] = v
	}
	return out
}
