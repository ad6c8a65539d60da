package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsRoundTrip(t *testing.T) {
	dir := t.TempDir()

	creds, err := LoadCredentials(dir)
	require.NoError(t, err)
	assert.Nil(t, creds)

	generated := GenerateCredentials()
	require.NoError(t, SaveCredentials(dir, generated, false))

	loaded, err := LoadCredentials(dir)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, generated.ID, loaded.ID)
	assert.True(t, generated.PublicKey.Equal(loaded.PublicKey))
	assert.Equal(t, generated.SecretKey.String(), loaded.SecretKey.String())
}

func TestSaveCredentialsRefusesToOverwrite(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, SaveCredentials(dir, GenerateCredentials(), false))
	assert.Equal(t, errCredentialsExist, SaveCredentials(dir, GenerateCredentials(), false))
	assert.NoError(t, SaveCredentials(dir, GenerateCredentials(), true))
}

func TestLoadCredentialsDerivesPublicKey(t *testing.T) {
	dir := t.TempDir()
	generated := GenerateCredentials()
	content := `{"secret_key":"` + generated.SecretKey.String() + `","id":"` + string(generated.ID) + `"}`
	require.NoError(t, os.WriteFile(CredentialsPath(dir), []byte(content), 0o600))

	loaded, err := LoadCredentials(dir)
	require.NoError(t, err)
	assert.True(t, generated.PublicKey.Equal(loaded.PublicKey))
}

func TestLoadCredentialsRejectsGarbage(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(CredentialsPath(dir), []byte("{nope"), 0o600))
	_, err := LoadCredentials(dir)
	assert.Error(t, err)
}
