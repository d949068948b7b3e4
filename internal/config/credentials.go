package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/gyattvc/gyatt/internal/gyatterrs"
)

// TokenEnvVar is the environment variable the forge sync checks first for
// a GitHub token.
const TokenEnvVar = "GITHUB_TOKEN"

const tokenFileName = "github_token"

// ResolveToken looks up a GitHub token from two sources in order: (a) the
// environment variable, (b) a file in the metadata directory containing
// just the token. Returns ok=false if neither source has one.
func ResolveToken(gitDir string) (token string, ok bool) {
	if v := os.Getenv(TokenEnvVar); v != "" {
		return v, true
	}
	data, err := os.ReadFile(filepath.Join(gitDir, tokenFileName)) //nolint:gosec // G304: fixed filename within the repository metadata directory
	if err != nil {
		return "", false
	}
	token = strings.TrimSpace(string(data))
	if token == "" {
		return "", false
	}
	return token, true
}

// WriteToken persists a token to the metadata directory's token file with
// owner-only permissions, in plain text.
func WriteToken(gitDir, token string) error {
	path := filepath.Join(gitDir, tokenFileName)
	if err := os.WriteFile(path, []byte(token), 0o600); err != nil {
		return gyatterrs.Wrap(gyatterrs.IoError, "config.WriteToken", err)
	}
	return os.Chmod(path, 0o600)
}
