package config

import (
	"os"
	"path/filepath"
)

// The API key is stored under one service/account pair on every platform.
const (
	secretService = "moodrelay"
	secretAccount = "openai_api_key"
)

// secretStore keeps the LLM API key outside the config file.
type secretStore interface {
	Get() (string, error)
	Set(value string) error
	Delete() error
	// Location names the store in user-facing hints.
	Location() string
}

// dataDir is $XDG_DATA_HOME/moodrelay, or ~/.local/share/moodrelay.
func dataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "moodrelay")
}
