// Package stores implements store.Store for the supported secret services and
// selects one by type string.
package stores

import (
	"fmt"
	"sort"

	"github.com/systmms/multisecret/pkg/store"
)

// Store types.
const (
	TypeAWSSecretsManager = "aws.secretsmanager"
	TypeAWSSSM            = "aws.ssm"
	TypeGCPSecretManager  = "gcp.secretmanager"
	TypeAzureKeyVault     = "azure.keyvault"
	TypeKeychain          = "keychain"
	TypeMemory            = "memory"
)

// Factory creates a store from its configuration block.
type Factory func(config map[string]interface{}) (store.Store, error)

// Registry maps store types to factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates a registry with the built-in stores.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	r.Register(TypeAWSSecretsManager, func(c map[string]interface{}) (store.Store, error) {
		return NewSecretsManagerStore(c)
	})
	r.Register(TypeAWSSSM, func(c map[string]interface{}) (store.Store, error) {
		return NewSSMStore(c)
	})
	r.Register(TypeGCPSecretManager, func(c map[string]interface{}) (store.Store, error) {
		return NewGCPSecretManagerStore(c)
	})
	r.Register(TypeAzureKeyVault, func(c map[string]interface{}) (store.Store, error) {
		return NewAzureKeyVaultStore(c)
	})
	r.Register(TypeKeychain, func(c map[string]interface{}) (store.Store, error) {
		return NewKeychainStore(c), nil
	})
	r.Register(TypeMemory, func(c map[string]interface{}) (store.Store, error) {
		return store.NewMemory(), nil
	})

	return r
}

// Register adds or replaces the factory for storeType.
func (r *Registry) Register(storeType string, factory Factory) {
	r.factories[storeType] = factory
}

// Create builds a store of the given type.
func (r *Registry) Create(storeType string, config map[string]interface{}) (store.Store, error) {
	factory, ok := r.factories[storeType]
	if !ok {
		return nil, fmt.Errorf("unknown store type: %s (supported: %v)", storeType, r.SupportedTypes())
	}
	if config == nil {
		config = map[string]interface{}{}
	}
	s, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", storeType, err)
	}
	return s, nil
}

// SupportedTypes returns the registered types, sorted.
func (r *Registry) SupportedTypes() []string {
	types := make([]string, 0, len(r.factories))
	for t := range r.factories {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// IsSupported reports whether storeType is registered.
func (r *Registry) IsSupported(storeType string) bool {
	_, ok := r.factories[storeType]
	return ok
}
