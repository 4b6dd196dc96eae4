package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mailclient"

// KeyringStorage implements Storage on the system keyring. The session
// blob carries the bearer token, so it lives here by default.
type KeyringStorage struct {
	ring keyring.Keyring
}

// OpenKeyring returns a KeyringStorage on the first available backend.
// The encrypted file backend under fileDir is the last resort.
func OpenKeyring(fileDir string) (*KeyringStorage, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("mailclient-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringStorage(ring), nil
}

// NewKeyringStorage wraps an already opened keyring.
func NewKeyringStorage(ring keyring.Keyring) *KeyringStorage {
	return &KeyringStorage{ring: ring}
}

// Load implements Storage.
func (k *KeyringStorage) Load(_ context.Context, namespace string) ([]byte, error) {
	item, err := k.ring.Get(namespace)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", namespace, err)
	}
	return item.Data, nil
}

// Save implements Storage.
func (k *KeyringStorage) Save(_ context.Context, namespace string, data []byte) error {
	err := k.ring.Set(keyring.Item{
		Key:   namespace,
		Data:  data,
		Label: "mailclient " + namespace,
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", namespace, err)
	}
	return nil
}

// Remove implements Storage.
func (k *KeyringStorage) Remove(_ context.Context, namespace string) error {
	err := k.ring.Remove(namespace)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", namespace, err)
	}
	return nil
}
