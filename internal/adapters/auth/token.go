package auth

import "crypto/subtle"

// TokenAuth validates bearer tokens against a static list.
type TokenAuth struct {
	tokens []string
}

// NewTokenAuth creates a new TokenAuth from a list of valid tokens.
func NewTokenAuth(tokens []string) *TokenAuth {
	return &TokenAuth{tokens: tokens}
}

// ValidateToken returns true if the token matches an allowed token,
// comparing in constant time.
func (a *TokenAuth) ValidateToken(token string) bool {
	valid := false
	for _, t := range a.tokens {
		if subtle.ConstantTimeCompare([]byte(t), []byte(token)) == 1 {
			valid = true
		}
	}
	return valid
}
