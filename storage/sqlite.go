package storage

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteLocalStore is durable key/value storage on the local machine. It
// holds the persisted session so it survives restarts.
type SQLiteLocalStore struct {
	db *sql.DB
}

func NewSQLiteLocalStore(dbPath string) (*SQLiteLocalStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteLocalStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteLocalStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteLocalStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS local_kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Get returns nil, nil when the key is absent.
func (s *SQLiteLocalStore) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM local_kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *SQLiteLocalStore) Set(key string, value []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO local_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now())
	return err
}

func (s *SQLiteLocalStore) Delete(key string) error {
	_, err := s.db.Exec(`DELETE FROM local_kv WHERE key = ?`, key)
	return err
}
