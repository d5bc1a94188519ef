package stores_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/systmms/multisecret/internal/secure"
)

const testDocument = `{"apiKey":"k3y","db":{"user":"admin","password":"pw"}}`

func seal(t *testing.T, doc string) *secure.SecureBuffer {
	t.Helper()
	buf, err := secure.NewSecureBuffer([]byte(doc))
	require.NoError(t, err)
	t.Cleanup(buf.Destroy)
	return buf
}

var ctx = context.Background()
