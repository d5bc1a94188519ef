package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/cfn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/multisecret/internal/handler"
	"github.com/systmms/multisecret/internal/stores"
	"github.com/systmms/multisecret/pkg/secretspec"
	"github.com/systmms/multisecret/pkg/store"
	"github.com/systmms/multisecret/tests/fakes"
)

const arn = "arn:aws:secretsmanager:us-east-1:123456789012:secret:app-AbCdEf"

func keys() []interface{} {
	return []interface{}{
		map[string]interface{}{"name": "apiKey", "passwordLength": "16"},
		map[string]interface{}{"name": "dbPassword", "excludePunctuation": "true", "requireEachIncludedType": "true"},
	}
}

func props(secretKeys interface{}) map[string]interface{} {
	return map[string]interface{}{
		"ServiceToken":         "arn:aws:lambda:us-east-1:123456789012:function:populator",
		handler.PropSecretArn:  arn,
		handler.PropSecretKeys: secretKeys,
	}
}

func newHandler(t *testing.T) (*handler.Handler, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	mem.Create(arn)
	return handler.New(handler.WithStore(mem)), mem
}

func decode(t *testing.T, doc string) map[string]string {
	t.Helper()
	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(doc), &out))
	return out
}

func TestCreatePopulatesSecret(t *testing.T) {
	h, mem := newHandler(t)

	id, data, err := h.Handle(context.Background(), cfn.Event{
		RequestType:        cfn.RequestCreate,
		LogicalResourceID:  "Populator",
		ResourceProperties: props(keys()),
	})
	require.NoError(t, err)

	assert.Equal(t, "secret-populator-"+arn, id)
	assert.Equal(t, arn, data["SecretArn"])
	assert.Equal(t, true, data["Success"])
	assert.Equal(t, true, data["Regenerated"])
	assert.Equal(t, []string{"apiKey", "dbPassword"}, data["KeyNames"])
	assert.Len(t, data["ConfigHash"], 16)

	versions := mem.Versions(arn)
	require.Len(t, versions, 1)
	doc := decode(t, versions[0])
	assert.Len(t, doc["apiKey"], 16)
	assert.Len(t, doc["dbPassword"], 32)
}

func TestCreateAcceptsJSONStringKeys(t *testing.T) {
	h, mem := newHandler(t)

	_, _, err := h.Handle(context.Background(), cfn.Event{
		RequestType:        cfn.RequestCreate,
		ResourceProperties: props(`[{"name":"apiKey","length":"8"}]`),
	})
	require.NoError(t, err)
	assert.Len(t, decode(t, mem.Versions(arn)[0])["apiKey"], 8)
}

func TestUpdateSkipsUnchangedKeys(t *testing.T) {
	h, mem := newHandler(t)
	ctx := context.Background()

	_, _, err := h.Handle(ctx, cfn.Event{RequestType: cfn.RequestCreate, ResourceProperties: props(keys())})
	require.NoError(t, err)

	id, data, err := h.Handle(ctx, cfn.Event{
		RequestType:           cfn.RequestUpdate,
		PhysicalResourceID:    "secret-populator-" + arn,
		ResourceProperties:    props(keys()),
		OldResourceProperties: props(keys()),
	})
	require.NoError(t, err)
	assert.Equal(t, "secret-populator-"+arn, id)
	assert.Equal(t, false, data["Regenerated"])
	assert.Len(t, mem.Versions(arn), 1)
}

func TestUpdateRegeneratesChangedKeys(t *testing.T) {
	h, mem := newHandler(t)
	ctx := context.Background()

	changed := append(keys(), map[string]interface{}{"name": "extra"})
	_, data, err := h.Handle(ctx, cfn.Event{
		RequestType:           cfn.RequestUpdate,
		ResourceProperties:    props(changed),
		OldResourceProperties: props(keys()),
	})
	require.NoError(t, err)
	assert.Equal(t, true, data["Regenerated"])

	doc := decode(t, mem.Versions(arn)[0])
	assert.Len(t, doc, 3)
	assert.Contains(t, doc, "extra")
}

func TestUpdateToOtherSecretRegenerates(t *testing.T) {
	h, mem := newHandler(t)
	mem.Create("other")

	old := props(keys())
	old[handler.PropSecretArn] = "other"

	_, data, err := h.Handle(context.Background(), cfn.Event{
		RequestType:           cfn.RequestUpdate,
		ResourceProperties:    props(keys()),
		OldResourceProperties: old,
	})
	require.NoError(t, err)
	assert.Equal(t, true, data["Regenerated"])
	assert.Len(t, mem.Versions(arn), 1)
}

func TestDeleteIsNoop(t *testing.T) {
	h, mem := newHandler(t)

	id, data, err := h.Handle(context.Background(), cfn.Event{
		RequestType:        cfn.RequestDelete,
		PhysicalResourceID: "secret-populator-" + arn,
		ResourceProperties: props(keys()),
	})
	require.NoError(t, err)
	assert.Equal(t, "secret-populator-"+arn, id)
	assert.Nil(t, data)
	assert.Empty(t, mem.Versions(arn))
}

func TestUnknownRequestType(t *testing.T) {
	h, _ := newHandler(t)

	_, _, err := h.Handle(context.Background(), cfn.Event{RequestType: "Replace"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown request type: Replace")
}

func TestInvalidProperties(t *testing.T) {
	tests := map[string]map[string]interface{}{
		"missing arn":    {handler.PropSecretKeys: keys()},
		"missing keys":   {handler.PropSecretArn: arn},
		"duplicate keys": props([]interface{}{map[string]interface{}{"name": "a"}, map[string]interface{}{"name": "a"}}),
		"zero length":    props([]interface{}{map[string]interface{}{"name": "a", "passwordLength": "0"}}),
	}
	for name, p := range tests {
		p := p
		t.Run(name, func(t *testing.T) {
			h, mem := newHandler(t)
			_, _, err := h.Handle(context.Background(), cfn.Event{RequestType: cfn.RequestCreate, ResourceProperties: p})
			require.Error(t, err)
			assert.True(t, secretspec.IsConfigurationError(err))
			assert.Empty(t, mem.Versions(arn))
		})
	}
}

func TestStoreFailurePropagates(t *testing.T) {
	h, mem := newHandler(t)
	mem.FailWrites(errors.New("AccessDeniedException"))

	_, _, err := h.Handle(context.Background(), cfn.Event{RequestType: cfn.RequestCreate, ResourceProperties: props(keys())})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AccessDeniedException")
}

func TestWithSecretsManagerStore(t *testing.T) {
	sm := fakes.NewFakeSecretsManagerClient()
	sm.AddSecret(arn)
	st, err := stores.NewSecretsManagerStore(nil,
		stores.WithSecretsManagerClient(sm),
		stores.WithSTSClient(fakes.NewFakeSTSClient()),
	)
	require.NoError(t, err)

	h := handler.New(handler.WithStore(st))
	_, _, err = h.Handle(context.Background(), cfn.Event{RequestType: cfn.RequestCreate, ResourceProperties: props(keys())})
	require.NoError(t, err)

	current, ok := sm.Current(arn)
	require.True(t, ok)
	assert.Len(t, decode(t, current), 2)
}
