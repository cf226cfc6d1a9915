package auth

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

/* Credential verification is decoupled from storage behind a small
 * interface so the HTTP layer never sees password material
 */

// Verifier checks operator credentials and returns the authenticated
// identity, or false when the credentials are rejected.
type Verifier interface {
	Verify(username, password string) (string, bool)
}

// StaticVerifier holds a single operator account with a bcrypt password
// hash. The plaintext password is hashed at construction and discarded.
type StaticVerifier struct {
	username string
	hash     []byte
}

func NewStaticVerifier(username, password string) (*StaticVerifier, error) {
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	return &StaticVerifier{
		username: username,
		hash:     hash,
	}, nil
}

func (v *StaticVerifier) Verify(username, password string) (string, bool) {
	if username != v.username {
		return "", false
	}
	if bcrypt.CompareHashAndPassword(v.hash, []byte(password)) != nil {
		return "", false
	}
	return username, true
}
