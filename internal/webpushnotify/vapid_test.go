package webpushnotify

import (
	"path/filepath"
	"testing"
)

func TestEnsureVAPIDKeysGeneratesOnce(t *testing.T) {
	dir := t.TempDir()

	pub1, priv1, err := EnsureVAPIDKeys(dir, "mailto:ops@example.com")
	if err != nil {
		t.Fatalf("EnsureVAPIDKeys: %v", err)
	}
	if pub1 == "" || priv1 == "" {
		t.Fatal("expected non-empty generated keys")
	}

	pub2, priv2, err := EnsureVAPIDKeys(dir, "mailto:ops@example.com")
	if err != nil {
		t.Fatalf("EnsureVAPIDKeys (second call): %v", err)
	}
	if pub1 != pub2 || priv1 != priv2 {
		t.Fatal("expected the same keypair to be reused across calls")
	}
}

func TestEnsureVAPIDKeysPersistsAcrossProcesses(t *testing.T) {
	dir := t.TempDir()

	pub1, priv1, err := EnsureVAPIDKeys(dir, "")
	if err != nil {
		t.Fatalf("EnsureVAPIDKeys: %v", err)
	}

	path := filepath.Join(dir, vapidKeysFileName)
	file, err := loadVAPIDKeysFile(path)
	if err != nil {
		t.Fatalf("loadVAPIDKeysFile: %v", err)
	}
	if file.PublicKey != pub1 || file.PrivateKey != priv1 {
		t.Fatalf("persisted keys do not match generated keys")
	}
}
