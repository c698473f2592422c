// Package auth authenticates the administrator and authorizes bearer tokens.
package auth

import (
	"strings"

	"github.com/suteetoe/schemadb/internal/apperror"
	"github.com/suteetoe/schemadb/pkg/jwtutil"
)

// Client visible auth failures
const (
	MessageInvalidCredentials = "Invalid credentials"
	MessageMissingHeader      = "Missing authorization header"
	MessageInvalidHeader      = "Invalid authorization header format"
	MessageInvalidToken       = "Invalid or expired token"
)

// Gate issues tokens for valid credentials and checks tokens on requests
type Gate struct {
	verifier CredentialVerifier
	tokens   *jwtutil.JWTUtil
}

// NewGate creates a gate
func NewGate(verifier CredentialVerifier, tokens *jwtutil.JWTUtil) *Gate {
	return &Gate{verifier: verifier, tokens: tokens}
}

// Authenticate returns a signed token for a valid username and password
func (g *Gate) Authenticate(username, password string) (string, error) {
	if username == "" || password == "" || !g.verifier.Verify(username, password) {
		return "", apperror.Auth(MessageInvalidCredentials)
	}
	token, err := g.tokens.GenerateToken(username)
	if err != nil {
		return "", apperror.Store(err)
	}
	return token, nil
}

// Authorize validates an Authorization header of the form "Bearer <token>"
func (g *Gate) Authorize(header string) (*jwtutil.UserClaims, error) {
	if header == "" {
		return nil, apperror.Auth(MessageMissingHeader)
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return nil, apperror.Auth(MessageInvalidHeader)
	}

	claims, err := g.tokens.ValidateToken(parts[1])
	if err != nil {
		return nil, &apperror.Error{Kind: apperror.KindAuth, Message: MessageInvalidToken, Err: err}
	}
	return claims, nil
}
