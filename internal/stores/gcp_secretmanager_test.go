package stores_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/systmms/multisecret/internal/stores"
	"github.com/systmms/multisecret/pkg/store"
	"github.com/systmms/multisecret/tests/fakes"
)

const gcpSecret = "projects/demo/secrets/app"

func newGCP(t *testing.T) (*stores.GCPSecretManagerStore, *fakes.FakeGCPSecretManagerClient) {
	t.Helper()
	fake := fakes.NewFakeGCPSecretManagerClient()
	fake.AddSecret(gcpSecret)
	s, err := stores.NewGCPSecretManagerStore(map[string]interface{}{"project_id": "demo"}, stores.WithGCPClient(fake))
	require.NoError(t, err)
	return s, fake
}

func TestGCPWriteAddsVersions(t *testing.T) {
	s, fake := newGCP(t)

	version, err := s.WriteDocument(ctx, "app", seal(t, testDocument))
	require.NoError(t, err)
	assert.Equal(t, "1", version)

	version, err = s.WriteDocument(ctx, gcpSecret, seal(t, `{"apiKey":"next"}`))
	require.NoError(t, err)
	assert.Equal(t, "2", version)
	assert.Len(t, fake.Versions[gcpSecret], 2)

	data, err := s.ReadDocument(ctx, "app")
	require.NoError(t, err)
	assert.Equal(t, `{"apiKey":"next"}`, string(data))
}

func TestGCPErrorMapping(t *testing.T) {
	s, fake := newGCP(t)

	_, err := s.WriteDocument(ctx, "missing", seal(t, testDocument))
	var nf store.NotFoundError
	require.True(t, errors.As(err, &nf))

	fake.Err = status.Error(codes.PermissionDenied, "Permission 'secretmanager.versions.add' denied")
	_, err = s.WriteDocument(ctx, "app", seal(t, testDocument))
	var authErr store.AuthError
	require.True(t, errors.As(err, &authErr))

	fake.Err = status.Error(codes.Unavailable, "connection reset")
	_, err = s.WriteDocument(ctx, "app", seal(t, testDocument))
	require.Error(t, err)
	assert.False(t, errors.As(err, &authErr))
	assert.Contains(t, err.Error(), "GCP Secret Manager error")
}

func TestGCPGrantBindings(t *testing.T) {
	s, fake := newGCP(t)

	require.NoError(t, s.Grant(ctx, "app", "app@demo.iam.gserviceaccount.com", store.AccessRead))
	require.NoError(t, s.Grant(ctx, "app", "app@demo.iam.gserviceaccount.com", store.AccessRead))
	require.NoError(t, s.Grant(ctx, "app", "alice@example.com", store.AccessReadWrite))
	require.NoError(t, s.Grant(ctx, "app", "group:ops@example.com", store.AccessWrite))
	assert.Equal(t, 3, fake.SetPolicyCalls)

	members := map[string][]string{}
	for _, b := range fake.Policies[gcpSecret].GetBindings() {
		members[b.GetRole()] = b.GetMembers()
	}
	assert.Equal(t, map[string][]string{
		"roles/secretmanager.secretAccessor":     {"serviceAccount:app@demo.iam.gserviceaccount.com", "user:alice@example.com"},
		"roles/secretmanager.secretVersionAdder": {"user:alice@example.com", "group:ops@example.com"},
	}, members)
}

func TestGCPValidate(t *testing.T) {
	s, fake := newGCP(t)
	require.NoError(t, s.Validate(ctx))

	fake.Err = status.Error(codes.Unauthenticated, "no credentials")
	var authErr store.AuthError
	assert.True(t, errors.As(s.Validate(ctx), &authErr))
}

func TestGCPRequiresProjectForShortNames(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "")
	t.Setenv("GCLOUD_PROJECT", "")
	t.Setenv("GCP_PROJECT", "")

	fake := fakes.NewFakeGCPSecretManagerClient()
	fake.AddSecret(gcpSecret)
	s, err := stores.NewGCPSecretManagerStore(nil, stores.WithGCPClient(fake))
	require.NoError(t, err)

	_, err = s.WriteDocument(ctx, "app", seal(t, testDocument))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "project_id is required")

	_, err = s.WriteDocument(ctx, gcpSecret, seal(t, testDocument))
	assert.NoError(t, err)
	assert.Error(t, s.Validate(ctx))
}
