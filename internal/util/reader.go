package util

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// ErrMaxBytesExceeded is returned by a BodyReader once the decoded body grows past its limit.
var ErrMaxBytesExceeded = errors.New("max bytes exceeded")

// BodyReader decodes a request body and stops with ErrMaxBytesExceeded once more than the limit
// has been decoded. The limit applies to the decoded bytes, so a small compressed payload cannot
// expand into an arbitrarily large envelope.
type BodyReader struct {
	raw          *countingReader
	decoded      io.Reader
	decoder      io.Closer
	body         io.Closer
	limit        int64
	decodedBytes int64
}

// NewReader creates a reader that decodes the given Content-Encoding ("", "identity", "gzip",
// "deflate" or "zstd"). A limit of zero or less means no limit; an unencoded body without a limit
// is returned unchanged.
func NewReader(body io.ReadCloser, encoding string, limit int64) (io.ReadCloser, error) {
	encoding = strings.ToLower(strings.TrimSpace(encoding))
	if encoding == "identity" {
		encoding = ""
	}
	if encoding == "" && limit <= 0 {
		return body, nil
	}

	raw := &countingReader{source: body}
	decoded, decoder, err := newDecoder(raw, encoding)
	if err != nil {
		return nil, err
	}
	return &BodyReader{raw: raw, decoded: decoded, decoder: decoder, body: body, limit: limit}, nil
}

func newDecoder(r io.Reader, encoding string) (io.Reader, io.Closer, error) {
	switch encoding {
	case "":
		return r, nil, nil
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(r)
		return gr, gr, err
	case "deflate":
		zr, err := zlib.NewReader(r)
		return zr, zr, err
	case "zstd":
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return d, zstdCloser{d}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}

// RawBytes is the number of bytes consumed from the underlying body.
func (b *BodyReader) RawBytes() int64 { return b.raw.n }

// DecodedBytes is the number of decoded bytes returned so far. It never exceeds the limit.
func (b *BodyReader) DecodedBytes() int64 { return b.decodedBytes }

func (b *BodyReader) Read(p []byte) (int, error) {
	if b.limit > 0 {
		// one byte beyond the limit is enough to detect an oversized body
		if room := b.limit - b.decodedBytes + 1; int64(len(p)) > room {
			p = p[:room]
		}
	}
	n, err := b.decoded.Read(p)
	b.decodedBytes += int64(n)
	if b.limit > 0 && b.decodedBytes > b.limit {
		over := int(b.decodedBytes - b.limit)
		b.decodedBytes = b.limit
		return n - over, ErrMaxBytesExceeded
	}
	return n, err
}

// Close releases the decoder and closes the underlying body.
func (b *BodyReader) Close() error {
	if b.decoder != nil {
		_ = b.decoder.Close()
	}
	return b.body.Close()
}

type zstdCloser struct {
	d *zstd.Decoder
}

func (z zstdCloser) Close() error {
	z.d.Close()
	return nil
}

type countingReader struct {
	source io.Reader
	n      int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.source.Read(p)
	c.n += int64(n)
	return n, err
}
