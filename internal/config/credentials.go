package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/verte-zerg/tiertrain/internal/logger"
	"github.com/verte-zerg/tiertrain/internal/model"
)

// EnvPrefix prefixes the credential environment overrides (TIERTRAIN_CLIENT_ID, ...).
const EnvPrefix = "TIERTRAIN"

// ErrCredentialsMissing means no usable OAuth credentials were found.
var ErrCredentialsMissing = errors.New("oauth credentials missing")

// LoadCredentials reads the OAuth credentials file and applies environment
// overrides. Absent or malformed files degrade to empty credentials; the
// caller then fetches unauthenticated.
func LoadCredentials(path string, log logger.Logger) model.Credentials {
	var creds model.Credentials
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, &creds); jerr != nil {
			log.Warn("ignoring malformed credentials file", logger.String("path", path), logger.Error(jerr))
			creds = model.Credentials{}
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		log.Warn("failed to read credentials file", logger.String("path", path), logger.Error(err))
	}

	var env model.Credentials
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		log.Warn("failed to process credential environment", logger.Error(err))
		return creds
	}
	if strings.TrimSpace(env.ClientID) != "" {
		creds.ClientID = env.ClientID
	}
	if strings.TrimSpace(env.ClientSecret) != "" {
		creds.ClientSecret = env.ClientSecret
	}
	return creds
}

// RequireCredentials returns ErrCredentialsMissing when creds are unusable.
func RequireCredentials(creds model.Credentials) error {
	if !creds.Valid() {
		return ErrCredentialsMissing
	}
	return nil
}

// SaveCredentials writes the credentials file with owner-only permissions.
func SaveCredentials(path string, creds model.Credentials) error {
	if err := RequireCredentials(creds); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create credentials directory: %w", err)
	}
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}
