// Package creds stores ftp and sftp logins in the operating system keyring
// and hands them to the engine when a URL carries no userinfo.
package creds

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warpdl/warpmulti/pkg/engine"
	"github.com/warpdl/warpmulti/pkg/logger"
	"github.com/zalando/go-keyring"
)

// DefaultService is the keyring service name entries are filed under.
const DefaultService = "warpmulti"

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// ErrInvalidEntry is returned for a malformed stored secret.
var ErrInvalidEntry = errors.New("invalid keyring entry")

// Store reads and writes credentials keyed by scheme and host.
type Store struct {
	Service string
	log     logger.Logger
}

// NewStore returns a Store using DefaultService. l may be nil.
func NewStore(l logger.Logger) *Store {
	return &Store{Service: DefaultService, log: logger.OrNop(l)}
}

func entryKey(scheme, host string) string {
	return strings.ToLower(scheme) + "://" + strings.ToLower(host)
}

// Set saves user and password for scheme://host, replacing any prior entry.
func (s *Store) Set(scheme, host, user, password string) error {
	if user == "" {
		return fmt.Errorf("%w: empty user", ErrInvalidEntry)
	}
	if strings.Contains(user, "\n") {
		return fmt.Errorf("%w: user contains a newline", ErrInvalidEntry)
	}
	if err := keyringSet(s.Service, entryKey(scheme, host), user+"\n"+password); err != nil {
		return fmt.Errorf("keyring set %s: %w", entryKey(scheme, host), err)
	}
	return nil
}

// Get returns the stored login for scheme://host.
func (s *Store) Get(scheme, host string) (user, password string, err error) {
	secret, err := keyringGet(s.Service, entryKey(scheme, host))
	if err != nil {
		return "", "", err
	}
	user, password, found := strings.Cut(secret, "\n")
	if !found || user == "" {
		return "", "", ErrInvalidEntry
	}
	return user, password, nil
}

// Delete removes the entry for scheme://host. A missing entry is not an error.
func (s *Store) Delete(scheme, host string) error {
	err := keyringDelete(s.Service, entryKey(scheme, host))
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}

// Lookup satisfies engine.CredentialFunc. Missing entries report ok=false
// silently; keyring failures are logged and also report ok=false.
func (s *Store) Lookup(scheme, host string) (string, string, bool) {
	user, password, err := s.Get(scheme, host)
	if err != nil {
		if !errors.Is(err, keyring.ErrNotFound) {
			s.log.Warning("keyring lookup %s: %v", entryKey(scheme, host), err)
		}
		return "", "", false
	}
	return user, password, true
}

// CredentialFunc returns s.Lookup as an engine.CredentialFunc.
func (s *Store) CredentialFunc() engine.CredentialFunc {
	return s.Lookup
}
