package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// fileSecretStore keeps secrets in a 0600 YAML file keyed by service and
// account:
//
//	moodrelay:
//	  openai_api_key: sk-...
type fileSecretStore struct {
	path string
}

func newFileSecretStore(path string) fileSecretStore {
	return fileSecretStore{path: path}
}

func (s fileSecretStore) Location() string {
	return "the secrets file " + s.path
}

func (s fileSecretStore) Get() (string, error) {
	secrets, err := s.read()
	if err != nil {
		return "", err
	}
	val, ok := secrets[secretService][secretAccount]
	if !ok {
		return "", fmt.Errorf("no %s/%s entry in %s", secretService, secretAccount, s.path)
	}
	return val, nil
}

func (s fileSecretStore) Set(value string) error {
	secrets, err := s.read()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if secrets == nil {
		secrets = make(map[string]map[string]string)
	}
	if secrets[secretService] == nil {
		secrets[secretService] = make(map[string]string)
	}
	secrets[secretService][secretAccount] = value
	return s.write(secrets)
}

func (s fileSecretStore) Delete() error {
	secrets, err := s.read()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, ok := secrets[secretService][secretAccount]; !ok {
		return nil
	}
	delete(secrets[secretService], secretAccount)
	if len(secrets[secretService]) == 0 {
		delete(secrets, secretService)
	}
	return s.write(secrets)
}

func (s fileSecretStore) read() (map[string]map[string]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	var secrets map[string]map[string]string
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return nil, fmt.Errorf("parsing secrets file: %w", err)
	}
	return secrets, nil
}

func (s fileSecretStore) write(secrets map[string]map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating secrets dir: %w", err)
	}
	out, err := yaml.Marshal(secrets)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, out, 0o600)
}
