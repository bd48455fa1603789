package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=auth_test

type TokenStore interface {
	Load() (*Tokens, error)
	Save(tokens *Tokens) error
}

var _ TokenStore = (*FileStore)(nil)

// FileStore keeps tokens in a single JSON file readable only by the owner.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

func (s *FileStore) Load() (*Tokens, error) {
	content, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoStoredCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("read tokens: %w", err)
	}

	tokens := &Tokens{}
	if err := json.Unmarshal(content, tokens); err != nil {
		return nil, fmt.Errorf("unmarshal tokens %s: %w", s.Path, err)
	}
	return tokens, nil
}

// Save replaces the token file atomically.
func (s *FileStore) Save(tokens *Tokens) error {
	content, err := json.MarshalIndent(tokens, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create tokens dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".tokens-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp tokens file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write tokens: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod tokens: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close tokens: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("replace tokens file: %w", err)
	}
	return nil
}
