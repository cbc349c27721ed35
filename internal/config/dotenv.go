package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a credential file in dotenv format. Variables already
// present in the process environment are left untouched.
//
// File search order:
//  1. --env-file CLI flag (explicit path; a missing file is an error)
//  2. RAGCHAT_ENV_FILE environment variable
//  3. ./credential.env
//  4. ./.env
//
// Returns the path that was loaded, or empty string if no file was found.
func LoadDotEnv(explicitPath string, log *slog.Logger) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("%w: env file %s: %v", ErrConfiguration, explicitPath, err)
		}
	}
	path := resolveDotEnvPath(explicitPath)
	if path == "" {
		log.Debug("config: no credential file found")
		return "", nil
	}

	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("config: failed to load %s: %w", path, err)
	}

	log.Info("config: loaded credential file", slog.String("path", path))
	return path, nil
}

// resolveDotEnvPath returns the first dotenv file path that exists.
func resolveDotEnvPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	candidates := []string{os.Getenv("RAGCHAT_ENV_FILE"), "credential.env", ".env"}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
