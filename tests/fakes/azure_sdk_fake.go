package fakes

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
)

// FakeAzureKeyVaultClient is an in-memory Key Vault.
type FakeAzureKeyVaultClient struct {
	mu sync.Mutex

	VaultURL string
	// Versions holds every value written per secret name, oldest first.
	Versions map[string][]string
	// ContentTypes holds the content type of the latest version.
	ContentTypes map[string]string
	// Err, when set, is returned by every call.
	Err error
}

// NewFakeAzureKeyVaultClient creates an empty fake.
func NewFakeAzureKeyVaultClient() *FakeAzureKeyVaultClient {
	return &FakeAzureKeyVaultClient{
		VaultURL:     "https://test-vault.vault.azure.net",
		Versions:     make(map[string][]string),
		ContentTypes: make(map[string]string),
	}
}

// NewAzureResponseError builds the error the SDK returns for a failed call.
func NewAzureResponseError(statusCode int, code string) error {
	return &azcore.ResponseError{
		ErrorCode:  code,
		StatusCode: statusCode,
	}
}

func (f *FakeAzureKeyVaultClient) secretID(name string, version int) *azsecrets.ID {
	id := azsecrets.ID(fmt.Sprintf("%s/secrets/%s/%032d", f.VaultURL, name, version))
	return &id
}

// SetSecret implements AzureKeyVaultClientAPI. Key Vault creates missing
// secrets on set.
func (f *FakeAzureKeyVaultClient) SetSecret(ctx context.Context, name string, parameters azsecrets.SetSecretParameters, options *azsecrets.SetSecretOptions) (azsecrets.SetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return azsecrets.SetSecretResponse{}, f.Err
	}
	if parameters.Value == nil {
		return azsecrets.SetSecretResponse{}, NewAzureResponseError(http.StatusBadRequest, "BadParameter")
	}
	f.Versions[name] = append(f.Versions[name], *parameters.Value)
	if parameters.ContentType != nil {
		f.ContentTypes[name] = *parameters.ContentType
	}

	resp := azsecrets.SetSecretResponse{}
	resp.ID = f.secretID(name, len(f.Versions[name]))
	resp.Value = parameters.Value
	resp.ContentType = parameters.ContentType
	return resp, nil
}

// GetSecret implements AzureKeyVaultClientAPI. Only the latest version is
// served.
func (f *FakeAzureKeyVaultClient) GetSecret(ctx context.Context, name string, version string, options *azsecrets.GetSecretOptions) (azsecrets.GetSecretResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return azsecrets.GetSecretResponse{}, f.Err
	}
	versions := f.Versions[name]
	if len(versions) == 0 {
		return azsecrets.GetSecretResponse{}, NewAzureResponseError(http.StatusNotFound, "SecretNotFound")
	}

	resp := azsecrets.GetSecretResponse{}
	resp.ID = f.secretID(name, len(versions))
	value := versions[len(versions)-1]
	resp.Value = &value
	return resp, nil
}
