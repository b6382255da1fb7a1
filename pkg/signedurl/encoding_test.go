package signedurl

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeSignature(t *testing.T) {
	assert.Equal(t, "deadbeef", EncodeSignature([]byte{0xde, 0xad, 0xbe, 0xef}))
	assert.Equal(t, "", EncodeSignature(nil))

	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	encoded := EncodeSignature(all)
	assert.Len(t, encoded, 512)
	assert.Equal(t, strings.ToLower(encoded), encoded)
}

func TestEncodeSignatureRoundTrip(t *testing.T) {
	for _, n := range []int{1, 7, 64, 256, 512} {
		sig := make([]byte, n)
		_, err := rand.Read(sig)
		require.NoError(t, err)

		encoded := EncodeSignature(sig)
		assert.Len(t, encoded, 2*n)
		assert.Equal(t, strings.ToLower(encoded), encoded)

		decoded, err := hex.DecodeString(encoded)
		require.NoError(t, err)
		assert.Equal(t, sig, decoded)
	}
}
