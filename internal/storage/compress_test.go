package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressDecompressRoundTrip(t *testing.T) {
	original := []byte(`{"smells":[],"note":"round trip must be byte-equal"}`)

	compressed, err := compressPayload(original)
	require.NoError(t, err)
	assert.NotEqual(t, original, compressed)

	decompressed, err := decompressPayload(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, decompressed)
}
