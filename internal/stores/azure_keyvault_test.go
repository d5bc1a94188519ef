package stores_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/multisecret/internal/stores"
	"github.com/systmms/multisecret/pkg/store"
	"github.com/systmms/multisecret/tests/fakes"
)

func newAzure(t *testing.T) (*stores.AzureKeyVaultStore, *fakes.FakeAzureKeyVaultClient) {
	t.Helper()
	fake := fakes.NewFakeAzureKeyVaultClient()
	s, err := stores.NewAzureKeyVaultStore(map[string]interface{}{
		"vault_url": "https://test-vault.vault.azure.net/",
	}, stores.WithAzureKeyVaultClient(fake))
	require.NoError(t, err)
	return s, fake
}

func TestAzureConfigValidation(t *testing.T) {
	tests := map[string]map[string]interface{}{
		"missing vault":  {},
		"not https":      {"vault_url": "http://test-vault.vault.azure.net/"},
		"not a url host": {"vault_url": "https://"},
	}
	for name, cfg := range tests {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			_, err := stores.NewAzureKeyVaultStore(cfg, stores.WithAzureKeyVaultClient(fakes.NewFakeAzureKeyVaultClient()))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "vault_url")
		})
	}
}

func TestAzureWriteAndRead(t *testing.T) {
	s, fake := newAzure(t)

	_, err := s.ReadDocument(ctx, "app")
	var nf store.NotFoundError
	require.True(t, errors.As(err, &nf))

	version, err := s.WriteDocument(ctx, "app", seal(t, testDocument))
	require.NoError(t, err)
	assert.Len(t, version, 32)
	assert.Equal(t, "application/json", fake.ContentTypes["app"])

	data, err := s.ReadDocument(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, testDocument, string(data))
}

func TestAzureErrors(t *testing.T) {
	s, fake := newAzure(t)

	fake.Err = fakes.NewAzureResponseError(http.StatusForbidden, "Forbidden")
	_, err := s.WriteDocument(ctx, "app", seal(t, testDocument))
	var authErr store.AuthError
	assert.True(t, errors.As(err, &authErr))
	assert.True(t, errors.As(s.Validate(ctx), &authErr))

	err = s.Grant(ctx, "app", "principal", store.AccessRead)
	var unsupported store.UnsupportedError
	assert.True(t, errors.As(err, &unsupported))
}

func TestAzureValidateTreatsNotFoundAsSuccess(t *testing.T) {
	s, _ := newAzure(t)
	assert.NoError(t, s.Validate(ctx))
}
