package util

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readAllFrom(t *testing.T, data []byte, encoding string, limit int64) (*BodyReader, []byte, error) {
	reader, err := NewReader(io.NopCloser(bytes.NewReader(data)), encoding, limit)
	require.NoError(t, err)
	br, ok := reader.(*BodyReader)
	require.True(t, ok)
	out, err := io.ReadAll(br)
	require.NoError(t, br.Close())
	return br, out, err
}

func TestPlainBodyWithinLimit(t *testing.T) {
	body := []byte(`{"event_id":"9ec79c33ec9942ab8353589fcb2e04dc"}`)
	br, out, err := readAllFrom(t, body, "", 1000)
	require.NoError(t, err)
	assert.Equal(t, body, out)
	assert.Equal(t, int64(len(body)), br.RawBytes())
	assert.Equal(t, int64(len(body)), br.DecodedBytes())
}

func TestBodyOfExactlyTheLimitIsAccepted(t *testing.T) {
	body := []byte(strings.Repeat("x", 64))
	_, out, err := readAllFrom(t, body, "identity", 64)
	require.NoError(t, err)
	assert.Len(t, out, 64)
}

func TestUnlimitedIdentityReturnsOriginalReader(t *testing.T) {
	original := io.NopCloser(strings.NewReader("x"))
	reader, err := NewReader(original, "identity", 0)
	require.NoError(t, err)
	assert.Equal(t, original, reader)
}

func TestCompressedBodiesAreDecoded(t *testing.T) {
	envelope := []byte(strings.Repeat(`{"type":"event"}`+"\n", 50))

	for _, encoding := range []string{"gzip", "deflate", "zstd"} {
		t.Run(encoding, func(t *testing.T) {
			compressed, err := CompressData(encoding, envelope)
			require.NoError(t, err)

			br, out, err := readAllFrom(t, compressed, encoding, 10000)
			require.NoError(t, err)
			assert.Equal(t, envelope, out)
			assert.Equal(t, int64(len(compressed)), br.RawBytes())
			assert.Equal(t, int64(len(envelope)), br.DecodedBytes())
		})
	}
}

func TestDecodedSizeIsLimited(t *testing.T) {
	envelope := []byte(strings.Repeat("00", 500))
	compressed, err := CompressData("gzip", envelope)
	require.NoError(t, err)
	require.Less(t, len(compressed), 100)

	br, out, err := readAllFrom(t, compressed, "gzip", 100)
	assert.Equal(t, ErrMaxBytesExceeded, err)
	assert.Len(t, out, 100)
	assert.Equal(t, int64(100), br.DecodedBytes())
}

func TestUnlimitedCompressedBody(t *testing.T) {
	envelope := []byte(strings.Repeat("ab", 4000))
	compressed, err := CompressData("zstd", envelope)
	require.NoError(t, err)
	out, err := DecompressData("zstd", compressed)
	require.NoError(t, err)
	assert.Equal(t, envelope, out)
}

func TestUnsupportedEncoding(t *testing.T) {
	_, err := NewReader(io.NopCloser(strings.NewReader("x")), "br", 10)
	assert.Error(t, err)
}
