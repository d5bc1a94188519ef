// Package secure keeps generated secret documents out of plain process memory.
//
// A populated document is sealed into a SecureBuffer right after generation.
// Stores open it only for the duration of a write:
//
//	buf, err := secure.NewSecureBuffer(data)
//	if err != nil {
//	    return err
//	}
//	defer buf.Destroy()
//
//	err = buf.With(func(plaintext []byte) error {
//	    return client.Write(ctx, string(plaintext))
//	})
//
// The enclave is encrypted with XSalsa20Poly1305 and the opened buffer is
// mlocked and wiped on Destroy. Call memguard.Purge at process exit.
package secure
