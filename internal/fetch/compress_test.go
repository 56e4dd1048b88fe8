package fetch

import (
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// E4 — compression detection: zstd-framed input is decompressed before
// reaching the caller.
func TestDecompressIfNeeded_DetectsZstdMagic(t *testing.T) {
	original := []byte(`{"symbol":"BTCUSDT","mark_price":"100"}`)
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll(original, nil)
	enc.Close()

	assert.True(t, bytes.HasPrefix(compressed, zstdMagic))

	out, err := DecompressIfNeeded(compressed)
	require.NoError(t, err)
	assert.Equal(t, original, out)
}

func TestDecompressIfNeeded_DetectsGzipMagic(t *testing.T) {
	original := []byte("plain text shard content")
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write(original)
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	out, err := DecompressIfNeeded(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, original, out)
}

func TestDecompressIfNeeded_PassesThroughUncompressed(t *testing.T) {
	original := []byte(`{"symbol":"ETHUSDT"}`)
	out, err := DecompressIfNeeded(original)
	require.NoError(t, err)
	assert.Equal(t, original, out)
}

// Roundtrip property: decompress(compress(B)) = B for arbitrary byte
// strings.
func TestZstdRoundtrip(t *testing.T) {
	inputs := [][]byte{
		[]byte(""),
		[]byte("a"),
		[]byte("the quick brown fox jumps over the lazy dog"),
		bytes.Repeat([]byte{0xAB, 0xCD}, 4096),
	}
	for _, in := range inputs {
		compressed, err := EncodeZstd(in, 19)
		require.NoError(t, err)
		out, err := DecompressIfNeeded(compressed)
		require.NoError(t, err)
		assert.Equal(t, in, out)
	}
}
