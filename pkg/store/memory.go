package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/systmms/multisecret/internal/secure"
)

// Memory is an in-process Store. Secrets must be created before they are
// written, matching the managed backends.
type Memory struct {
	mu       sync.Mutex
	secrets  map[string]*memorySecret
	writeErr error
}

type memorySecret struct {
	versions []string
	grants   map[string]Access
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{secrets: make(map[string]*memorySecret)}
}

// Create registers an empty secret.
func (m *Memory) Create(secretID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.secrets[secretID]; !ok {
		m.secrets[secretID] = &memorySecret{grants: make(map[string]Access)}
	}
}

// FailWrites makes every following write return err. Pass nil to reset.
func (m *Memory) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Versions returns every document written to secretID, oldest first.
func (m *Memory) Versions(secretID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.secrets[secretID]
	if !ok {
		return nil
	}
	out := make([]string, len(s.versions))
	copy(out, s.versions)
	return out
}

// Grants returns the principals granted access to secretID.
func (m *Memory) Grants(secretID string) map[string]Access {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Access)
	if s, ok := m.secrets[secretID]; ok {
		for k, v := range s.grants {
			out[k] = v
		}
	}
	return out
}

// Name implements Store.
func (m *Memory) Name() string {
	return "memory"
}

// WriteDocument implements Store.
func (m *Memory) WriteDocument(ctx context.Context, secretID string, doc *secure.SecureBuffer) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writeErr != nil {
		return "", m.writeErr
	}
	s, ok := m.secrets[secretID]
	if !ok {
		return "", NotFoundError{Store: m.Name(), SecretID: secretID}
	}

	var content string
	if err := doc.With(func(plaintext []byte) error {
		content = string(plaintext)
		return nil
	}); err != nil {
		return "", err
	}
	s.versions = append(s.versions, content)
	return fmt.Sprintf("v%d", len(s.versions)), nil
}

// ReadDocument implements Store.
func (m *Memory) ReadDocument(ctx context.Context, secretID string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.secrets[secretID]
	if !ok || len(s.versions) == 0 {
		return nil, NotFoundError{Store: m.Name(), SecretID: secretID}
	}
	return []byte(s.versions[len(s.versions)-1]), nil
}

// Grant implements Store. Read and write grants for the same principal merge.
func (m *Memory) Grant(ctx context.Context, secretID, principal string, access Access) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.secrets[secretID]
	if !ok {
		return NotFoundError{Store: m.Name(), SecretID: secretID}
	}
	existing, had := s.grants[principal]
	if had && existing != access {
		access = AccessReadWrite
	}
	s.grants[principal] = access
	return nil
}

// Validate implements Store.
func (m *Memory) Validate(ctx context.Context) error {
	return nil
}

// SecretIDs returns the registered secret identifiers, sorted.
func (m *Memory) SecretIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.secrets))
	for id := range m.secrets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
