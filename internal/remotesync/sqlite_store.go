package remotesync

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS mappings (
    id               TEXT PRIMARY KEY,
    local_path       TEXT NOT NULL UNIQUE,
    title            TEXT NOT NULL,
    last_synced_usec INTEGER NOT NULL
);
`

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path. Use ":memory:"
// for a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}
	// An in-memory database lives as long as its connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to initialize schema")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) scanOne(row *sql.Row) (Mapping, error) {
	var m Mapping
	err := row.Scan(&m.ID, &m.LocalPath, &m.Title, &m.LastSyncedUsec)
	if errors.Is(err, sql.ErrNoRows) {
		return Mapping{}, ErrMappingNotFound
	}
	if err != nil {
		return Mapping{}, errors.Wrap(err, "failed to query mapping")
	}
	return m, nil
}

func (s *SQLiteStore) Get(id string) (Mapping, error) {
	return s.scanOne(s.db.QueryRow(
		"SELECT id, local_path, title, last_synced_usec FROM mappings WHERE id = ?",
		id,
	))
}

func (s *SQLiteStore) FindByPath(localPath string) (Mapping, error) {
	return s.scanOne(s.db.QueryRow(
		"SELECT id, local_path, title, last_synced_usec FROM mappings WHERE local_path = ?",
		localPath,
	))
}

func (s *SQLiteStore) Put(m Mapping) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	// A local file is linked to one document at a time.
	if _, err := tx.Exec("DELETE FROM mappings WHERE local_path = ? AND id <> ?", m.LocalPath, m.ID); err != nil {
		return errors.Wrap(err, "failed to unlink local path")
	}
	if _, err := tx.Exec(`
        INSERT INTO mappings (id, local_path, title, last_synced_usec)
        VALUES (?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            local_path = excluded.local_path,
            title = excluded.title,
            last_synced_usec = excluded.last_synced_usec
    `, m.ID, m.LocalPath, m.Title, m.LastSyncedUsec); err != nil {
		return errors.Wrap(err, "failed to upsert mapping")
	}
	return errors.Wrap(tx.Commit(), "failed to commit mapping")
}

func (s *SQLiteStore) Delete(id string) error {
	_, err := s.db.Exec("DELETE FROM mappings WHERE id = ?", id)
	return errors.Wrap(err, "failed to delete mapping")
}

func (s *SQLiteStore) List() ([]Mapping, error) {
	rows, err := s.db.Query("SELECT id, local_path, title, last_synced_usec FROM mappings ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "failed to query mappings")
	}
	defer rows.Close()

	var result []Mapping
	for rows.Next() {
		var m Mapping
		if err := rows.Scan(&m.ID, &m.LocalPath, &m.Title, &m.LastSyncedUsec); err != nil {
			return nil, errors.Wrap(err, "failed to scan mapping")
		}
		result = append(result, m)
	}
	return result, errors.Wrap(rows.Err(), "failed to iterate mappings")
}

func (s *SQLiteStore) Close() error {
	return errors.WithStack(s.db.Close())
}
