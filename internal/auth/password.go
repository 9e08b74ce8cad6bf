package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/baiirun/taskboard/internal/db"
	"github.com/baiirun/taskboard/internal/model"
)

// ErrInvalidCredentials is returned for an unknown login or a wrong password.
var ErrInvalidCredentials = errors.New("invalid login or password")

// HashPassword returns the bcrypt hash of password. cost 0 uses bcrypt.DefaultCost.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CredentialStore looks users up by login.
type CredentialStore interface {
	GetUserByLogin(ctx context.Context, login string) (*model.User, error)
}

// Authenticator checks credentials and issues session tokens.
type Authenticator struct {
	users  CredentialStore
	tokens *TokenService
}

func NewAuthenticator(users CredentialStore, tokens *TokenService) *Authenticator {
	return &Authenticator{users: users, tokens: tokens}
}

// Login verifies the password for login and returns a signed token for the user.
func (a *Authenticator) Login(ctx context.Context, login, password string) (string, *model.User, error) {
	user, err := a.users.GetUserByLogin(ctx, login)
	if errors.Is(err, db.ErrNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := a.tokens.Issue(user)
	if err != nil {
		return "", nil, err
	}
	return token, user, nil
}
