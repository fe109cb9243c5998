// Package authpw provides email/password credentials on top of the team
// roster in the store. Password hashes travel with the user document;
// deactivated users cannot sign in.
package authpw

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"roofflow/api/internal/domain"
	"roofflow/api/internal/perm"
	"roofflow/api/internal/store"
)

var (
	ErrBadCredentials = errors.New("invalid email or password")
	ErrWeakPassword   = errors.New("password must be at least 8 characters")
	ErrNotAllowed     = errors.New("not allowed to change this password")
)

const minPasswordLen = 8

// HashPassword bcrypt-hashes a password after the length policy check. It is
// the one hashing path, shared by SetPassword and first-run bootstrap wiring.
func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLen {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

type Service struct {
	store *store.Store
}

func New(st *store.Store) *Service {
	return &Service{store: st}
}

// SignIn authenticates an active team member by email and password.
// Lookup failure and password mismatch return the same error.
func (s *Service) SignIn(email, password string) (domain.User, error) {
	if email == "" || password == "" {
		return domain.User{}, ErrBadCredentials
	}

	user, ok := s.store.UserByEmail(email)
	if !ok || user.PasswordHash == "" {
		return domain.User{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, ErrBadCredentials
	}
	return user, nil
}

// SetPassword hashes and stores a new password. Users may change their
// own; changing someone else's requires manage_team.
func (s *Service) SetPassword(actor domain.User, userID, password string) error {
	if actor.ID != userID && !s.store.Can(actor, perm.ManageTeam) {
		return ErrNotAllowed
	}

	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	_, err = s.store.SetUserPassword(userID, hash)
	return err
}
