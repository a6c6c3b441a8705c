//go:build !darwin

package config

import "path/filepath"

func newSecretStore() secretStore {
	return newFileSecretStore(filepath.Join(dataDir(), "secrets.yaml"))
}
