//go:build darwin

package config

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// keychainStore keeps the secret in the login Keychain through the
// security(1) tool.
type keychainStore struct{}

func newSecretStore() secretStore { return keychainStore{} }

func (keychainStore) Location() string {
	return fmt.Sprintf("macOS Keychain (service: %s, account: %s)", secretService, secretAccount)
}

func (keychainStore) Get() (string, error) {
	out, err := exec.Command(
		"security", "find-generic-password",
		"-s", secretService,
		"-a", secretAccount,
		"-w",
	).Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

func (keychainStore) Set(value string) error {
	out, err := exec.Command(
		"security", "add-generic-password",
		"-U",
		"-s", secretService,
		"-a", secretAccount,
		"-w", value,
	).CombinedOutput()
	if err != nil {
		return fmt.Errorf("writing keychain item: %w: %s", err, out)
	}
	return nil
}

func (keychainStore) Delete() error {
	out, err := exec.Command(
		"security", "delete-generic-password",
		"-s", secretService,
		"-a", secretAccount,
	).CombinedOutput()
	// Exit status 44 means the item does not exist.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 44 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting keychain item: %w: %s", err, out)
	}
	return nil
}
