package presigned

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const secretBytes = 64

var bootstrapMu sync.Mutex

// KeyPath is where a generated signing key is persisted.
func KeyPath(dataRoot string) string {
	return filepath.Join(dataRoot, "secrets", "signature.key")
}

// LoadSigningKey returns the process signing key. A configured value wins; otherwise the key
// persisted under dataRoot is used, and if none exists one is generated and written. The key
// is written to a temporary file and hard-linked into place, so the key file is complete
// whenever it exists and a process that loses the race reads back the winner's key.
func LoadSigningKey(configured, dataRoot string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}

	bootstrapMu.Lock()
	defer bootstrapMu.Unlock()

	path := KeyPath(dataRoot)
	if key, err := readKey(path); err == nil {
		return key, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create secrets dir: %w", err)
	}

	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, fmt.Errorf("generate signing key: %w", err)
	}
	secret := hex.EncodeToString(raw)

	return publishKey(dir, path, secret)
}

// publishKey links a fully written key file to path. If another process published first,
// its key is returned instead.
func publishKey(dir, path, secret string) ([]byte, error) {
	tmp, err := writeTempKey(dir, secret)
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp)

	if err := os.Link(tmp, path); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return readKey(path)
		}
		return nil, fmt.Errorf("publish signing key: %w", err)
	}
	return []byte(secret), nil
}

func writeTempKey(dir, secret string) (string, error) {
	f, err := os.CreateTemp(dir, ".signature-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create signing key: %w", err)
	}
	name := f.Name()
	_, err = f.WriteString(secret)
	if err == nil {
		err = f.Sync()
	}
	if err != nil {
		f.Close()
		_ = os.Remove(name)
		return "", fmt.Errorf("write signing key: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", fmt.Errorf("close signing key: %w", err)
	}
	return name, nil
}

func readKey(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key := strings.TrimSpace(string(b))
	if key == "" {
		return nil, fmt.Errorf("signing key at %s is empty", path)
	}
	return []byte(key), nil
}
