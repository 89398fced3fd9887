package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS regent_kv (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// KV is the persistence layer. Every key maps to one JSON document, and the
// whole document is the unit of read and write; there are no partial updates.
// Exactly one process is expected to touch the database at a time.
type KV struct {
	db  *sql.DB
	log *zap.Logger
}

// New opens (creating if needed) the key-value database at dbPath.
func New(dbPath string, log *zap.Logger) (*KV, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create kv table: %w", err)
	}

	return &KV{db: db, log: log.Named("store")}, nil
}

// Close closes the database connection.
func (kv *KV) Close() error {
	return kv.db.Close()
}

// Load reads the value at key into a T. It returns fallback when the key is
// absent or the stored value cannot be decoded; it never surfaces an error to
// the caller.
func Load[T any](kv *KV, key string, fallback T) T {
	raw, ok := kv.getRaw(key)
	if !ok {
		return fallback
	}
	var out T
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		kv.log.Error("undecodable value, returning fallback",
			zap.String("key", key), zap.Error(err))
		return fallback
	}
	return out
}

// Save serializes value and persists it at key, replacing whatever was there.
// It returns false on serialization or storage failure, which is logged here
// rather than propagated.
func Save[T any](kv *KV, key string, value T) bool {
	data, err := json.Marshal(value)
	if err != nil {
		kv.log.Error("save failed to serialize", zap.String("key", key), zap.Error(err))
		return false
	}
	_, err = kv.db.Exec(`
		INSERT INTO regent_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().Unix(),
	)
	if err != nil {
		kv.log.Error("save failed to persist", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Remove deletes a key. Removing an absent key succeeds.
func (kv *KV) Remove(key string) bool {
	if _, err := kv.db.Exec(`DELETE FROM regent_kv WHERE key = ?`, key); err != nil {
		kv.log.Error("remove failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Exists reports whether a key is present.
func (kv *KV) Exists(key string) bool {
	var n int
	if err := kv.db.QueryRow(`SELECT COUNT(1) FROM regent_kv WHERE key = ?`, key).Scan(&n); err != nil {
		kv.log.Error("exists check failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return n > 0
}

// Keys returns every stored key.
func (kv *KV) Keys() []string {
	rows, err := kv.db.Query(`SELECT key FROM regent_kv ORDER BY key`)
	if err != nil {
		kv.log.Error("keys listing failed", zap.Error(err))
		return nil
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			kv.log.Error("keys scan failed", zap.Error(err))
			return keys
		}
		keys = append(keys, k)
	}
	return keys
}

func (kv *KV) getRaw(key string) (string, bool) {
	var raw string
	err := kv.db.QueryRow(`SELECT value FROM regent_kv WHERE key = ?`, key).Scan(&raw)
	if err == sql.ErrNoRows {
		return "", false
	}
	if err != nil {
		kv.log.Error("load failed", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return raw, true
}
