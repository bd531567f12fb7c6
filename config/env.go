package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
)

// envVarRe matches ${VAR} and ${VAR:-default}.
var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// expandEnv substitutes ${VAR} references with environment values. A
// ${VAR:-default} reference falls back to the default when VAR is unset or
// empty; a plain ${VAR} with no value expands to the empty string.
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		if val := os.Getenv(parts[1]); val != "" {
			return val
		}
		return parts[2]
	})
}

// LoadDotEnv loads environment variables from .env files without overwriting
// variables that are already set. Explicit paths are tried first, then .env
// in the current directory. Missing files are not errors.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := loadIfExists(path); err != nil {
			return err
		}
	}
	return loadIfExists(".env")
}

// loadDotEnvForConfig loads .env from the config file's directory.
func loadDotEnvForConfig(configPath string) error {
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return LoadDotEnv()
	}
	return LoadDotEnv(filepath.Join(filepath.Dir(abs), ".env"))
}

func loadIfExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}
