package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
)

var ErrNotFound = errors.New("key not found")

// Well-known keys the partner app persists between sessions.
const (
	KeyToken   = "token"
	KeyPartner = "partner"
)

// Partner is the locally persisted partner record.
type Partner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Store is the app's persisted key-value storage, backed by PebbleDB.
type Store struct {
	db *pebble.DB
}

func Open(dir string) (*Store, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) Get(key string) (string, error) {
	v, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return "", fmt.Errorf("pebble get %s: %w", key, err)
	}
	value := string(v)
	if err := closer.Close(); err != nil {
		return "", fmt.Errorf("pebble get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(key, value string) error {
	if err := s.db.Set([]byte(key), []byte(value), pebble.Sync); err != nil {
		return fmt.Errorf("pebble set %s: %w", key, err)
	}
	return nil
}

func (s *Store) Delete(key string) error {
	if err := s.db.Delete([]byte(key), pebble.Sync); err != nil {
		return fmt.Errorf("pebble delete %s: %w", key, err)
	}
	return nil
}

// Token returns the stored bearer token, or an empty string when no token
// has been saved. Callers treat the empty string as "not authenticated".
func (s *Store) Token(ctx context.Context) (string, error) {
	token, err := s.Get(KeyToken)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return token, err
}

func (s *Store) SavePartner(p Partner) error {
	b, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode partner: %w", err)
	}
	return s.Set(KeyPartner, string(b))
}

func (s *Store) Partner() (Partner, error) {
	raw, err := s.Get(KeyPartner)
	if errors.Is(err, ErrNotFound) {
		return Partner{}, nil
	}
	if err != nil {
		return Partner{}, err
	}
	var p Partner
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Partner{}, fmt.Errorf("decode partner: %w", err)
	}
	return p, nil
}
