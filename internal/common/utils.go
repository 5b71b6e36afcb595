package common

import "strings"

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
// The scheme is matched case-insensitively. ok is false when the value has a
// different scheme or carries no token.
func BearerToken(header string) (token string, ok bool) {
	scheme, rest, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, BearerTokenType) {
		return "", false
	}
	token = strings.TrimSpace(rest)
	if token == "" {
		return "", false
	}
	return token, true
}
