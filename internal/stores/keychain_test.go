package stores_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/systmms/multisecret/internal/stores"
	"github.com/systmms/multisecret/pkg/store"
)

func TestKeychainRoundTrip(t *testing.T) {
	keyring.MockInit()

	s := stores.NewKeychainStore(map[string]interface{}{"service_prefix": "dev."})
	require.NoError(t, s.Validate(ctx))

	_, err := s.ReadDocument(ctx, "app")
	var nf store.NotFoundError
	require.True(t, errors.As(err, &nf))

	version, err := s.WriteDocument(ctx, "app", seal(t, testDocument))
	require.NoError(t, err)
	assert.Equal(t, "1", version)

	raw, err := keyring.Get("dev.app", "multisecret")
	require.NoError(t, err)
	assert.Equal(t, testDocument, raw)

	data, err := s.ReadDocument(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, testDocument, string(data))

	var unsupported store.UnsupportedError
	assert.True(t, errors.As(s.Grant(ctx, "app", "me", store.AccessRead), &unsupported))
}

func TestKeychainUnavailable(t *testing.T) {
	keyring.MockInitWithError(errors.New("no secret service"))
	t.Cleanup(keyring.MockInit)

	s := stores.NewKeychainStore(nil)
	_, err := s.WriteDocument(ctx, "app", seal(t, testDocument))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no secret service")

	var authErr store.AuthError
	assert.True(t, errors.As(s.Validate(ctx), &authErr))
}
