// Package credential keeps the sender password in the system keyring so
// it never lands in the config file.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "subnotify"

// ErrNotFound is returned when no password is stored for a sender.
var ErrNotFound = keyring.ErrKeyNotFound

// SMTPKey returns the keyring key for a sender account.
func SMTPKey(user string) string {
	return "smtp:" + strings.ToLower(strings.TrimSpace(user))
}

// openKeyring returns a configured keyring instance.
func openKeyring() (keyring.Keyring, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/subnotify/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("subnotify-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return ring, nil
}

// Get retrieves a credential value by key from the system keyring.
func Get(key string) (string, error) {
	ring, err := openKeyring()
	if err != nil {
		return "", err
	}

	item, err := ring.Get(key)
	if err != nil {
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the system keyring.
func Set(key string, value string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Set(keyring.Item{
		Key:         key,
		Data:        []byte(value),
		Label:       "subnotify sender password",
		Description: "SMTP password used for substitution notices",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the system keyring. Deleting a
// missing key is not an error.
func Delete(key string) error {
	ring, err := openKeyring()
	if err != nil {
		return err
	}

	err = ring.Remove(key)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// SenderPassword loads the stored password for user. A missing entry
// yields "" without error.
func SenderPassword(user string) (string, error) {
	if strings.TrimSpace(user) == "" {
		return "", nil
	}
	pw, err := Get(SMTPKey(user))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", nil
	}
	return pw, err
}
