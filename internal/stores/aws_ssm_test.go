package stores_test

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/multisecret/internal/stores"
	"github.com/systmms/multisecret/pkg/store"
	"github.com/systmms/multisecret/tests/fakes"
)

func TestSSMWriteAndRead(t *testing.T) {
	fake := fakes.NewFakeSSMClient()
	s, err := stores.NewSSMStore(map[string]interface{}{
		"parameter_prefix": "/prod/",
		"kms_key_id":       "alias/app",
	}, stores.WithSSMClient(fake))
	require.NoError(t, err)

	version, err := s.WriteDocument(ctx, "app", seal(t, testDocument))
	require.NoError(t, err)
	assert.Equal(t, "1", version)

	require.NotNil(t, fake.LastPut)
	assert.Equal(t, "/prod/app", aws.ToString(fake.LastPut.Name))
	assert.Equal(t, ssmtypes.ParameterTypeSecureString, fake.LastPut.Type)
	assert.True(t, aws.ToBool(fake.LastPut.Overwrite))
	assert.Equal(t, "alias/app", aws.ToString(fake.LastPut.KeyId))

	version, err = s.WriteDocument(ctx, "app", seal(t, `{"apiKey":"other"}`))
	require.NoError(t, err)
	assert.Equal(t, "2", version)

	data, err := s.ReadDocument(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, `{"apiKey":"other"}`, string(data))
}

func TestSSMNotFoundAndGrant(t *testing.T) {
	s, err := stores.NewSSMStore(nil, stores.WithSSMClient(fakes.NewFakeSSMClient()))
	require.NoError(t, err)

	_, err = s.ReadDocument(ctx, "missing")
	var nf store.NotFoundError
	assert.True(t, errors.As(err, &nf))

	err = s.Grant(ctx, "app", "arn:aws:iam::123456789012:role/app", store.AccessRead)
	var unsupported store.UnsupportedError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "grant", unsupported.Operation)
}

func TestSSMValidate(t *testing.T) {
	fake := fakes.NewFakeSSMClient()
	s, err := stores.NewSSMStore(nil, stores.WithSSMClient(fake))
	require.NoError(t, err)
	require.NoError(t, s.Validate(ctx))

	fake.Err = errors.New("UnrecognizedClientException: invalid token")
	var authErr store.AuthError
	assert.True(t, errors.As(s.Validate(ctx), &authErr))
}
