// Package session reads and writes the persisted "current user" record.
//
// Only Login and Logout write the record. Everything else goes through a
// Provider, which treats absent and malformed data the same way.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"billed/internal/models"

	"golang.org/x/crypto/bcrypt"
)

// UserKey is the storage key holding the JSON-serialized session.
const UserKey = "user"

var (
	// ErrNoSession is returned when no usable session is stored.
	ErrNoSession = errors.New("no user logged in")
	// ErrInvalidCredentials is returned when login fields are missing.
	ErrInvalidCredentials = errors.New("email and password are required")
)

// Provider gives access to the current session.
type Provider interface {
	Current() (*models.Session, error)
}

// StorageProvider reads the session from a Storage.
type StorageProvider struct {
	storage Storage
}

// NewProvider creates a Provider over storage.
func NewProvider(storage Storage) *StorageProvider {
	return &StorageProvider{storage: storage}
}

// Current decodes the stored session. It returns ErrNoSession when the key is
// absent, is not valid JSON or names an unknown user type.
func (p *StorageProvider) Current() (*models.Session, error) {
	raw, ok := p.storage.GetItem(UserKey)
	if !ok || raw == "" {
		return nil, ErrNoSession
	}
	var s models.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, ErrNoSession
	}
	if s.Type != models.Employee && s.Type != models.Admin {
		return nil, ErrNoSession
	}
	return &s, nil
}

// Login writes a connected session for the given role. The password is
// stored as a bcrypt hash; no remote check is made.
func Login(storage Storage, userType models.UserType, email, password string) (*models.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	s := &models.Session{
		Type:     userType,
		Email:    email,
		Password: string(hash),
		Status:   models.Connected,
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	if err := storage.SetItem(UserKey, string(data)); err != nil {
		return nil, fmt.Errorf("store session: %w", err)
	}
	return s, nil
}

// Logout clears the stored session.
func Logout(storage Storage) error {
	return storage.RemoveItem(UserKey)
}
