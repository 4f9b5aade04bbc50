package webpushnotify

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
)

const vapidKeysFileName = "webpush_vapid_keys.json"

type vapidKeysFile struct {
	PublicKey  string    `json:"publicKey"`
	PrivateKey string    `json:"privateKey"`
	Subject    string    `json:"subject,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// EnsureVAPIDKeys returns the persisted VAPID keypair under dataDir,
// generating and persisting a new one the first time it is called.
func EnsureVAPIDKeys(dataDir, subject string) (publicKey, privateKey string, err error) {
	path := filepath.Join(dataDir, vapidKeysFileName)
	subject = strings.TrimSpace(subject)

	if file, loadErr := loadVAPIDKeysFile(path); loadErr == nil {
		return file.PublicKey, file.PrivateKey, nil
	} else if !errors.Is(loadErr, os.ErrNotExist) {
		return "", "", loadErr
	}

	priv, pub, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return "", "", fmt.Errorf("webpushnotify: generate vapid keypair: %w", err)
	}

	file := &vapidKeysFile{
		PublicKey:  strings.TrimSpace(pub),
		PrivateKey: strings.TrimSpace(priv),
		Subject:    subject,
		CreatedAt:  time.Now().UTC(),
	}
	if err := writeVAPIDKeysFile(path, file); err != nil {
		return "", "", err
	}
	return file.PublicKey, file.PrivateKey, nil
}

func loadVAPIDKeysFile(path string) (*vapidKeysFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("webpushnotify: read vapid keys: %w", err)
	}

	var file vapidKeysFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("webpushnotify: parse vapid keys: %w", err)
	}
	if strings.TrimSpace(file.PublicKey) == "" || strings.TrimSpace(file.PrivateKey) == "" {
		return nil, fmt.Errorf("webpushnotify: vapid keys file missing required keys")
	}
	return &file, nil
}

func writeVAPIDKeysFile(path string, file *vapidKeysFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("webpushnotify: mkdir vapid dir: %w", err)
	}

	raw, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("webpushnotify: marshal vapid keys: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("webpushnotify: write temp vapid keys: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("webpushnotify: rename vapid keys: %w", err)
	}
	return nil
}
