package util

import (
	"bytes"
	"encoding/json"
	"io"
	"net/url"
)

type errorJSON struct {
	Detail string `json:"detail"`
}

// ErrorJSONMsg returns the JSON error body {"detail": msg}.
func ErrorJSONMsg(msg string) (j []byte) {
	j, _ = json.Marshal(errorJSON{Detail: msg})
	return
}

// RedactURL is equivalent to parsing a URL string and then calling Redacted() to
// replace passwords, if any, with xxxxx.
func RedactURL(inputURL string) string {
	if parsed, err := url.Parse(inputURL); err == nil {
		if parsed != nil && parsed.User != nil {
			if _, hasPW := parsed.User.Password(); hasPW {
				transformed := *parsed
				transformed.User = url.UserPassword(parsed.User.Username(), "xxxxx")
				return transformed.String()
			}
		}
	}
	return inputURL
}

// DecompressData decodes a complete payload with the given Content-Encoding.
func DecompressData(encoding string, data []byte) ([]byte, error) {
	reader, err := NewReader(io.NopCloser(bytes.NewReader(data)), encoding, 0)
	if err != nil {
		return nil, err
	}
	defer reader.Close() //nolint:errcheck
	return io.ReadAll(reader)
}
