// Package credential stores secrets referenced from node configuration in the
// system keyring.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/zalando/go-keyring"

	"github.com/dshills/autoflow/pkg/validation"
)

const (
	// ServiceName is the keyring service all AutoFlow secrets live under.
	ServiceName = "autoflow"

	indexKey = "__autoflow_index__"
)

// ErrNotFound is returned when a secret does not exist.
var ErrNotFound = errors.New("credential not found")

// Store is secure credential storage keyed by name.
type Store interface {
	Set(name, value string) error
	Get(name string) (string, error)
	Delete(name string) error
	// List returns the stored names, never the values.
	List() ([]string, error)
}

// KeyringStore implements Store on the system keyring
// (Keychain, Credential Manager or Secret Service).
type KeyringStore struct {
	service string
	mu      sync.Mutex
}

// NewKeyringStore creates a keyring-backed store. An empty service uses
// ServiceName.
func NewKeyringStore(service string) *KeyringStore {
	if service == "" {
		service = ServiceName
	}
	return &KeyringStore{service: service}
}

// Set stores a secret and records its name in the index.
func (s *KeyringStore) Set(name, value string) error {
	if err := validation.Identifier("credential name", name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Set(s.service, name, value); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	keys, err := s.list()
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k == name {
			return nil
		}
	}
	return s.saveIndex(append(keys, name))
}

// Get retrieves a secret.
func (s *KeyringStore) Get(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("credential name cannot be empty")
	}
	value, err := keyring.Get(s.service, name)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return "", fmt.Errorf("failed to retrieve credential: %w", err)
	}
	return value, nil
}

// Delete removes a secret and its index entry.
func (s *KeyringStore) Delete(name string) error {
	if name == "" {
		return fmt.Errorf("credential name cannot be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := keyring.Delete(s.service, name); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	keys, err := s.list()
	if err != nil {
		return err
	}
	kept := keys[:0]
	for _, k := range keys {
		if k != name {
			kept = append(kept, k)
		}
	}
	return s.saveIndex(kept)
}

// List returns the names of all stored secrets, sorted.
func (s *KeyringStore) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list()
}

func (s *KeyringStore) list() ([]string, error) {
	raw, err := keyring.Get(s.service, indexKey)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to retrieve credential index: %w", err)
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("failed to parse credential index: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *KeyringStore) saveIndex(keys []string) error {
	raw, err := json.Marshal(keys)
	if err != nil {
		return fmt.Errorf("failed to marshal credential index: %w", err)
	}
	if err := keyring.Set(s.service, indexKey, string(raw)); err != nil {
		return fmt.Errorf("failed to save credential index: %w", err)
	}
	return nil
}
