package protocol

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventrelay/relay/internal/basictypes"
)

const testPublicKey = basictypes.ProjectKey("e12d836b15bb49d7bbf99e64295d995b")

func TestParseAuthHeader(t *testing.T) {
	a, err := ParseAuthHeader("Sentry sentry_key=E12D836B15BB49D7BBF99E64295D995B, sentry_version=7, sentry_client=raven-js/3.23.3")
	require.NoError(t, err)
	assert.Equal(t, AuthHeader{PublicKey: testPublicKey, Version: "7", Client: "raven-js/3.23.3"}, a)

	a, err = ParseAuthHeader("sentry key=" + string(testPublicKey))
	require.NoError(t, err)
	assert.Equal(t, testPublicKey, a.PublicKey)

	_, err = ParseAuthHeader("Bearer abc")
	assert.IsType(t, AuthError{}, err)
	_, err = ParseAuthHeader("Sentry sentry_version=7")
	assert.Equal(t, errBadPublicKey(), err)
}

func TestAuthFromRequest(t *testing.T) {
	req := httptest.NewRequest("POST", "/api/42/store/", nil)
	_, err := AuthFromRequest(req)
	assert.Equal(t, errMissingAuth(), err)

	req = httptest.NewRequest("POST", "/api/42/store/?sentry_key="+string(testPublicKey)+"&sentry_version=7", nil)
	a, err := AuthFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, AuthHeader{PublicKey: testPublicKey, Version: "7"}, a)

	req = httptest.NewRequest("POST", "/api/42/store/", nil)
	req.Header.Set("Authorization", "Sentry sentry_key="+string(testPublicKey))
	a, err = AuthFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, testPublicKey, a.PublicKey)

	req.Header.Set(AuthHeaderName, "Sentry sentry_key=a2d836b15bb49d7bbf99e64295d995bb")
	a, err = AuthFromRequest(req)
	require.NoError(t, err)
	assert.Equal(t, basictypes.ProjectKey("a2d836b15bb49d7bbf99e64295d995bb"), a.PublicKey)
}

func TestAuthHeaderString(t *testing.T) {
	a := AuthHeader{PublicKey: testPublicKey, Version: "7"}
	assert.Equal(t, "Sentry sentry_key="+string(testPublicKey)+", sentry_version=7", a.String())
	parsed, err := ParseAuthHeader(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
}
