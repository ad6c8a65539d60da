package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eventrelay/relay/internal/credential"
)

// CredentialsFileName is the name of the file in the configuration directory that holds the
// relay's key pair and ID.
const CredentialsFileName = "credentials.json"

var errCredentialsExist = errors.New("credentials already exist; use overwrite to replace them")

func errCredentialsFile(path string, err error) error {
	return fmt.Errorf("failed to read credentials file %q: %w", path, err)
}

// Credentials are the identity a relay uses to authenticate with its upstream.
type Credentials struct {
	SecretKey credential.SecretKey `json:"secret_key"`
	PublicKey credential.PublicKey `json:"public_key"`
	ID        credential.RelayID   `json:"id"`
}

// GenerateCredentials creates a new key pair and relay ID.
func GenerateCredentials() Credentials {
	sk, pk := credential.GenerateKeyPair()
	return Credentials{SecretKey: sk, PublicKey: pk, ID: credential.GenerateRelayID()}
}

// CredentialsPath returns the location of the credentials file in a configuration directory.
func CredentialsPath(configDir string) string {
	return filepath.Join(configDir, CredentialsFileName)
}

// LoadCredentials reads the credentials file from the configuration directory. It returns
// (nil, nil) if the file does not exist.
func LoadCredentials(configDir string) (*Credentials, error) {
	path := CredentialsPath(configDir)
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errCredentialsFile(path, err)
	}
	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, errCredentialsFile(path, err)
	}
	if !creds.PublicKey.Defined() {
		creds.PublicKey = creds.SecretKey.PublicKey()
	}
	return &creds, nil
}

// SaveCredentials writes the credentials file, refusing to replace an existing one unless
// overwrite is true.
func SaveCredentials(configDir string, creds Credentials, overwrite bool) error {
	path := CredentialsPath(configDir)
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return errCredentialsExist
		}
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
