package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// DefaultOllamaBaseURL is the local model server used when OLLAMA_BASE_URL
// is unset.
const DefaultOllamaBaseURL = "http://localhost:11434"

// LoadEnv loads variables from an env file without overriding variables
// already set in the process. An empty path means ".env" in the working
// directory, which may be absent. An explicit path must exist.
func LoadEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = ".env"
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			return ensureOllamaBaseURL()
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return ensureOllamaBaseURL()
}

func ensureOllamaBaseURL() error {
	if os.Getenv("OLLAMA_BASE_URL") != "" {
		return nil
	}
	return os.Setenv("OLLAMA_BASE_URL", DefaultOllamaBaseURL)
}
