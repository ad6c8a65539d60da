package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDSN(t *testing.T) {
	d, err := ParseDSN("https://e12d836b15bb49d7bbf99e64295d995b:@sentry.io/42")
	require.NoError(t, err)
	assert.Equal(t, DSN{Scheme: "https", PublicKey: testPublicKey, Host: "sentry.io", Port: 443, ProjectID: 42}, d)
	assert.Equal(t, "https://e12d836b15bb49d7bbf99e64295d995b:@sentry.io:443/42", d.String())

	d, err = ParseDSN("http://e12d836b15bb49d7bbf99e64295d995b@localhost:3000/prefix/7")
	require.NoError(t, err)
	assert.Equal(t, 3000, d.Port)
	assert.Equal(t, "prefix", d.Path)
	assert.Equal(t, "http://e12d836b15bb49d7bbf99e64295d995b:@localhost:3000/prefix/7", d.String())
}

func TestParseDSNErrors(t *testing.T) {
	for _, s := range []string{
		"",
		"ftp://e12d836b15bb49d7bbf99e64295d995b@host/1",
		"https://host/1",
		"https://nothex@host/1",
		"https://e12d836b15bb49d7bbf99e64295d995b@host/",
		"https://e12d836b15bb49d7bbf99e64295d995b@host/abc",
	} {
		_, err := ParseDSN(s)
		assert.IsType(t, DSNError{}, err, s)
	}
}
