// Package identity authenticates callers: each principal holds an API token
// whose bcrypt hash is stored server side.
package identity

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/bcrypt"
)

// TokenPrefix marks custody API tokens.
const TokenPrefix = "cst_"

// ErrInvalidCredentials is returned for an unknown principal or a wrong token.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service manages API credentials.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// GenerateToken returns a fresh random token and its bcrypt hash.
func GenerateToken() (string, []byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, err
	}
	token := TokenPrefix + hex.EncodeToString(buf)
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}
	return token, hash, nil
}

// Issue creates or replaces the credential of principal and returns the
// plaintext token. The token is not stored.
func (s *Service) Issue(ctx context.Context, principal common.Address) (string, error) {
	token, hash, err := GenerateToken()
	if err != nil {
		return "", err
	}
	if err := s.repo.Put(ctx, Credential{Principal: principal, SecretHash: hash, CreatedAt: s.now()}); err != nil {
		return "", err
	}
	return token, nil
}

// Seed stores a precomputed bcrypt hash, as produced by cmd/apikey.
func (s *Service) Seed(ctx context.Context, principal common.Address, hash string) error {
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return fmt.Errorf("credential for %s: %w", principal.Hex(), err)
	}
	return s.repo.Put(ctx, Credential{Principal: principal, SecretHash: []byte(hash), CreatedAt: s.now()})
}

// Authenticate checks token against the principal's stored hash.
func (s *Service) Authenticate(ctx context.Context, principal common.Address, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidCredentials
	}
	cred, err := s.repo.Find(ctx, principal)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrInvalidCredentials
		}
		return err
	}
	if err := bcrypt.CompareHashAndPassword(cred.SecretHash, []byte(token)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
