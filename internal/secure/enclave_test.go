package secure

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSecureBuffer(t *testing.T) {
	t.Parallel()

	buf, err := NewSecureBuffer([]byte(`{"apiKey":"abc"}`))
	require.NoError(t, err)
	defer buf.Destroy()

	assert.Equal(t, 16, buf.Size())
}

func TestNewSecureBufferRejectsEmpty(t *testing.T) {
	t.Parallel()

	_, err := NewSecureBuffer(nil)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestSecureBufferWith(t *testing.T) {
	t.Parallel()

	const doc = `{"apiKey":"Zq7!x","db":{"user":"admin"}}`
	src := []byte(doc)
	buf, err := NewSecureBuffer(src)
	require.NoError(t, err)
	defer buf.Destroy()

	var seen string
	err = buf.With(func(plaintext []byte) error {
		seen = string(plaintext)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, doc, seen)

	// The buffer can be opened again.
	err = buf.With(func(plaintext []byte) error {
		assert.Equal(t, doc, string(plaintext))
		return nil
	})
	require.NoError(t, err)
}

func TestSecureBufferWithPropagatesError(t *testing.T) {
	t.Parallel()

	buf, err := NewSecureBuffer([]byte("data"))
	require.NoError(t, err)
	defer buf.Destroy()

	boom := errors.New("write failed")
	assert.ErrorIs(t, buf.With(func([]byte) error { return boom }), boom)
}

func TestSecureBufferDestroy(t *testing.T) {
	t.Parallel()

	buf, err := NewSecureBuffer([]byte("data"))
	require.NoError(t, err)

	buf.Destroy()
	buf.Destroy()

	_, err = buf.Open()
	assert.ErrorIs(t, err, ErrDestroyed)
	assert.ErrorIs(t, buf.With(func([]byte) error { return nil }), ErrDestroyed)
}

func TestSecureBufferConcurrentOpen(t *testing.T) {
	t.Parallel()

	buf, err := NewSecureBuffer([]byte("concurrent-secret"))
	require.NoError(t, err)
	defer buf.Destroy()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = buf.With(func(plaintext []byte) error {
				assert.Equal(t, "concurrent-secret", string(plaintext))
				return nil
			})
		}()
	}
	wg.Wait()
}
