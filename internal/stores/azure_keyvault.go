package stores

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/systmms/multisecret/internal/logging"
	"github.com/systmms/multisecret/internal/secure"
	"github.com/systmms/multisecret/pkg/store"
)

const azureContentType = "application/json"

// AzureKeyVaultClientAPI is the subset of the azsecrets client used by the
// store.
type AzureKeyVaultClientAPI interface {
	SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error)
	GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error)
}

// AzureKeyVaultConfig holds Azure Key Vault settings.
type AzureKeyVaultConfig struct {
	VaultURL           string
	TenantID           string
	ClientID           string
	ClientSecret       string
	UseManagedIdentity bool
	UserAssignedID     string
}

// AzureKeyVaultStore writes documents as Key Vault secrets.
type AzureKeyVaultStore struct {
	client AzureKeyVaultClientAPI
	config AzureKeyVaultConfig
	logger *logging.Logger
}

// AzureOption configures an AzureKeyVaultStore.
type AzureOption func(*AzureKeyVaultStore)

// WithAzureKeyVaultClient sets a custom Key Vault client (for testing)
func WithAzureKeyVaultClient(client AzureKeyVaultClientAPI) AzureOption {
	return func(s *AzureKeyVaultStore) {
		s.client = client
	}
}

// NewAzureKeyVaultStore creates a Key Vault store. vault_url is required.
func NewAzureKeyVaultStore(configMap map[string]interface{}, opts ...AzureOption) (*AzureKeyVaultStore, error) {
	cfg := AzureKeyVaultConfig{}
	if v, ok := configMap["vault_url"].(string); ok {
		cfg.VaultURL = v
	}
	if v, ok := configMap["tenant_id"].(string); ok {
		cfg.TenantID = v
	}
	if v, ok := configMap["client_id"].(string); ok {
		cfg.ClientID = v
	}
	if v, ok := configMap["client_secret"].(string); ok {
		cfg.ClientSecret = v
	}
	if v, ok := configMap["use_managed_identity"].(bool); ok {
		cfg.UseManagedIdentity = v
	}
	if v, ok := configMap["user_assigned_identity_id"].(string); ok {
		cfg.UserAssignedID = v
	}

	if cfg.VaultURL == "" {
		return nil, fmt.Errorf("vault_url is required for %s", TypeAzureKeyVault)
	}
	if u, err := url.Parse(cfg.VaultURL); err != nil || u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("invalid vault_url %q: use https://<vault-name>.vault.azure.net/", cfg.VaultURL)
	}

	s := &AzureKeyVaultStore{config: cfg, logger: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		cred, err := azureCredential(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure credential: %w", err)
		}
		client, err := azsecrets.NewClient(cfg.VaultURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Key Vault client: %w", err)
		}
		s.client = client
	}
	return s, nil
}

func azureCredential(cfg AzureKeyVaultConfig) (azcore.TokenCredential, error) {
	switch {
	case cfg.UseManagedIdentity && cfg.UserAssignedID != "":
		return azidentity.NewManagedIdentityCredential(&azidentity.ManagedIdentityCredentialOptions{
			ID: azidentity.ClientID(cfg.UserAssignedID),
		})
	case cfg.UseManagedIdentity:
		return azidentity.NewManagedIdentityCredential(nil)
	case cfg.ClientSecret != "":
		return azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	default:
		return azidentity.NewDefaultAzureCredential(nil)
	}
}

// Name implements store.Store.
func (s *AzureKeyVaultStore) Name() string {
	return TypeAzureKeyVault
}

// WriteDocument sets a new version of the secret.
func (s *AzureKeyVaultStore) WriteDocument(ctx context.Context, secretID string, doc *secure.SecureBuffer) (string, error) {
	var resp azsecrets.SetSecretResponse
	err := doc.With(func(plaintext []byte) error {
		var err error
		resp, err = s.client.SetSecret(ctx, secretID, azsecrets.SetSecretParameters{
			Value:       to.Ptr(string(plaintext)),
			ContentType: to.Ptr(azureContentType),
		}, nil)
		return err
	})
	if err != nil {
		return "", s.handleError(err, secretID)
	}

	s.logger.Debug("Set Key Vault secret %s", secretID)
	if resp.ID != nil {
		return resp.ID.Version(), nil
	}
	return "", nil
}

// ReadDocument returns the current version.
func (s *AzureKeyVaultStore) ReadDocument(ctx context.Context, secretID string) ([]byte, error) {
	resp, err := s.client.GetSecret(ctx, secretID, "", nil)
	if err != nil {
		return nil, s.handleError(err, secretID)
	}
	if resp.Value == nil {
		return nil, fmt.Errorf("secret '%s' has no value", secretID)
	}
	return []byte(*resp.Value), nil
}

// Grant is not supported: Key Vault access is managed with RBAC role
// assignments on the vault.
func (s *AzureKeyVaultStore) Grant(ctx context.Context, secretID, principal string, access store.Access) error {
	return store.UnsupportedError{Store: s.Name(), Operation: "grant"}
}

// Validate reads a secret that is not expected to exist. A 404 proves the
// credentials were accepted.
func (s *AzureKeyVaultStore) Validate(ctx context.Context) error {
	_, err := s.client.GetSecret(ctx, "multisecret-validate", "", nil)
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return store.AuthError{
		Store:   s.Name(),
		Message: fmt.Sprintf("Azure authentication failed: %v", err),
	}
}

func (s *AzureKeyVaultStore) handleError(err error, secretID string) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return store.NotFoundError{Store: s.Name(), SecretID: secretID}
		case http.StatusUnauthorized, http.StatusForbidden:
			return store.AuthError{
				Store:   s.Name(),
				Message: fmt.Sprintf("Azure authentication/authorization failed: %v", err),
			}
		}
	}
	return fmt.Errorf("Azure Key Vault error: %w", err)
}
