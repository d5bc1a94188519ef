package secretspec

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// fingerprintVersion is mixed into every fingerprint so a change to the
// canonical encoding invalidates stored fingerprints.
const fingerprintVersion = 1

// Fingerprint returns a deterministic 16-character lowercase hex digest of the
// list. Every field of every spec and the order of the specs contribute to it.
// Defaults are applied first, so an unset length and an explicit 32 are equal.
func Fingerprint(l List) string {
	h := xxhash.New()
	var buf [8]byte

	writeUint := func(v uint64) {
		binary.BigEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	writeString := func(s string) {
		writeUint(uint64(len(s)))
		_, _ = h.WriteString(s)
	}
	writeBool := func(b bool) {
		if b {
			writeUint(1)
		} else {
			writeUint(0)
		}
	}

	writeUint(fingerprintVersion)
	writeUint(uint64(len(l)))
	for _, s := range l {
		writeString(s.Name)
		writeUint(uint64(int64(s.Length())))
		writeString(s.ExcludeCharacters)
		writeBool(s.ExcludeLowercase)
		writeBool(s.ExcludeUppercase)
		writeBool(s.ExcludeNumbers)
		writeBool(s.ExcludePunctuation)
		writeBool(s.IncludeSpace)
		writeBool(s.RequireEachIncludedType)
		writeString(s.SecretStringTemplate)
		writeString(s.GenerateStringKey)
	}

	return fmt.Sprintf("%016x", h.Sum64())
}
