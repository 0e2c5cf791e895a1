// Copyright (c) 2025 LinguaLens Authors
// SPDX-License-Identifier: AGPL-3.0-or-later

package kvstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lingualens/lingualens-tui/internal/util"
)

// Well-known store keys. No other package should touch these files directly.
const (
	KeyCustomScenes  = "customScenes"
	KeyChatHistory   = "lingualens-chat-history"
	KeySelectedModel = "selectedModel"
	KeySelectedScene = "selectedScene"
)

// Store is a directory-backed key-value store. One file per key, written
// atomically via a temp-file rename.
type Store struct {
	dir string
}

// Open creates (if needed) and opens a store rooted at dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// DefaultDir returns the default store location, ~/.lingualens/store.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".lingualens", "store"), nil
}

// Dir returns the directory backing this store.
func (s *Store) Dir() string {
	return s.dir
}

// Get returns the raw value for key. The second return is false when the key
// is absent. I/O failures other than not-exist are returned as errors.
func (s *Store) Get(key string) (string, bool, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read key %q: %w", key, err)
	}
	return string(data), true, nil
}

// Set writes the raw value for key atomically.
func (s *Store) Set(key, value string) error {
	if err := util.AtomicWriteFile(s.path(key), []byte(value), 0600); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// GetJSON unmarshals the value for key into v. Returns false when the key is
// absent. A value that fails to parse is reported as an error so callers can
// apply their own fallback policy.
func (s *Store) GetJSON(key string, v any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return true, fmt.Errorf("failed to parse key %q: %w", key, err)
	}
	return true, nil
}

// SetJSON marshals v and writes it under key atomically.
func (s *Store) SetJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode key %q: %w", key, err)
	}
	if err := util.AtomicWriteFile(s.path(key), data, 0600); err != nil {
		return fmt.Errorf("failed to write key %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Store) Delete(key string) error {
	if err := os.Remove(s.path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete key %q: %w", key, err)
	}
	return nil
}

// Keys lists all keys currently present in the store.
func (s *Store) Keys() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list store: %w", err)
	}

	var keys []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".kv") || strings.HasPrefix(name, ".tmp-") {
			continue
		}
		keys = append(keys, decodeKey(strings.TrimSuffix(name, ".kv")))
	}
	return keys, nil
}

// path maps a key to its backing file.
func (s *Store) path(key string) string {
	return filepath.Join(s.dir, encodeKey(key)+".kv")
}

// encodeKey makes a key safe to use as a file name. Keys used by lingualens
// are already safe; the escape keeps arbitrary keys from walking the tree.
func encodeKey(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '/', '\\', ':', '%':
			fmt.Fprintf(&b, "%%%02X", r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// decodeKey reverses encodeKey.
func decodeKey(name string) string {
	var b strings.Builder
	for i := 0; i < len(name); i++ {
		if name[i] == '%' && i+2 < len(name) {
			var r rune
			if _, err := fmt.Sscanf(name[i+1:i+3], "%02X", &r); err == nil {
				b.WriteRune(r)
				i += 2
				continue
			}
		}
		b.WriteByte(name[i])
	}
	return b.String()
}
