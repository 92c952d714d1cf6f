package prefs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// errNotFound distinguishes "no stored value" from real failures.
var errNotFound = errors.New("prefs: not found")

// LocalStore is the device-local persistence layer: one sqlite key/value
// table scoped by namespace (user uid, or "guest"). It backs guest
// preferences and the per-device flags (mute, PWA dismissal).
type LocalStore struct {
	db *sql.DB
}

// NewLocalStore opens (and migrates) the device database. Use ":memory:" in
// tests.
func NewLocalStore(path string) (*LocalStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening device store: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error pinging device store: %w", err)
	}

	s := &LocalStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error migrating device store: %w", err)
	}
	return s, nil
}

func (s *LocalStore) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS device_state (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (namespace, key)
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}

// put stores v as JSON under (namespace, key).
func (s *LocalStore) put(namespace, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s/%s: %w", namespace, key, err)
	}
	_, err = s.db.Exec(`
		INSERT INTO device_state (namespace, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		namespace, key, string(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store %s/%s: %w", namespace, key, err)
	}
	return nil
}

// get loads (namespace, key) into out, returning errNotFound when absent.
func (s *LocalStore) get(namespace, key string, out any) error {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM device_state WHERE namespace = ? AND key = ?`,
		namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound
	}
	if err != nil {
		return fmt.Errorf("load %s/%s: %w", namespace, key, err)
	}
	if err := json.Unmarshal([]byte(value), out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", namespace, key, err)
	}
	return nil
}

// delete removes (namespace, key); absent keys are not an error.
func (s *LocalStore) delete(namespace, key string) error {
	_, err := s.db.Exec(`DELETE FROM device_state WHERE namespace = ? AND key = ?`, namespace, key)
	return err
}
