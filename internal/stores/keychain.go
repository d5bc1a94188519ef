package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/zalando/go-keyring"
	"github.com/systmms/multisecret/internal/secure"
	"github.com/systmms/multisecret/pkg/store"
)

const defaultKeychainAccount = "multisecret"

// KeychainStore keeps documents in the OS keyring (macOS Keychain, Secret
// Service, Windows Credential Manager). It is meant for local development.
type KeychainStore struct {
	servicePrefix string
	account       string

	mu       sync.Mutex
	versions map[string]int
}

// NewKeychainStore creates a keyring backed store.
func NewKeychainStore(configMap map[string]interface{}) *KeychainStore {
	s := &KeychainStore{
		account:  defaultKeychainAccount,
		versions: make(map[string]int),
	}
	if prefix, ok := configMap["service_prefix"].(string); ok {
		s.servicePrefix = prefix
	}
	if account, ok := configMap["account"].(string); ok && account != "" {
		s.account = account
	}
	return s
}

// Name implements store.Store.
func (s *KeychainStore) Name() string {
	return TypeKeychain
}

func (s *KeychainStore) service(secretID string) string {
	return s.servicePrefix + secretID
}

// WriteDocument stores the document under the secret's service name. The
// returned version counts writes made by this process.
func (s *KeychainStore) WriteDocument(ctx context.Context, secretID string, doc *secure.SecureBuffer) (string, error) {
	err := doc.With(func(plaintext []byte) error {
		return keyring.Set(s.service(secretID), s.account, string(plaintext))
	})
	if err != nil {
		return "", fmt.Errorf("keychain write failed for %s: %w", secretID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[secretID]++
	return strconv.Itoa(s.versions[secretID]), nil
}

// ReadDocument implements store.Store.
func (s *KeychainStore) ReadDocument(ctx context.Context, secretID string) ([]byte, error) {
	value, err := keyring.Get(s.service(secretID), s.account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, store.NotFoundError{Store: s.Name(), SecretID: secretID}
		}
		return nil, fmt.Errorf("keychain read failed for %s: %w", secretID, err)
	}
	return []byte(value), nil
}

// Grant is not supported by OS keyrings.
func (s *KeychainStore) Grant(ctx context.Context, secretID, principal string, access store.Access) error {
	return store.UnsupportedError{Store: s.Name(), Operation: "grant"}
}

// Validate checks that the keyring answers.
func (s *KeychainStore) Validate(ctx context.Context) error {
	_, err := keyring.Get(s.service("multisecret-validate"), s.account)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return store.AuthError{
		Store:   s.Name(),
		Message: fmt.Sprintf("keychain is not available: %v", err),
	}
}
