package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// CredentialVerifier decides whether a username and password pair is valid
type CredentialVerifier interface {
	Verify(username, password string) bool
}

// StaticCredentials accepts exactly one username with a bcrypt hashed password
type StaticCredentials struct {
	username     string
	passwordHash []byte
}

// NewStaticCredentials hashes password and returns a verifier for the pair
func NewStaticCredentials(username, password string) (*StaticCredentials, error) {
	if username == "" || password == "" {
		return nil, errors.New("username and password must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return &StaticCredentials{username: username, passwordHash: hash}, nil
}

// NewStaticCredentialsFromHash returns a verifier for username and an existing bcrypt hash
func NewStaticCredentialsFromHash(username, hash string) (*StaticCredentials, error) {
	if username == "" {
		return nil, errors.New("username must not be empty")
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("invalid password hash: %w", err)
	}
	return &StaticCredentials{username: username, passwordHash: []byte(hash)}, nil
}

// Verify compares both values without short-circuiting on the username
func (s *StaticCredentials) Verify(username, password string) bool {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := bcrypt.CompareHashAndPassword(s.passwordHash, []byte(password)) == nil
	return userOK && passOK
}

// VerifierFunc adapts a function to CredentialVerifier
type VerifierFunc func(username, password string) bool

func (f VerifierFunc) Verify(username, password string) bool {
	return f(username, password)
}
