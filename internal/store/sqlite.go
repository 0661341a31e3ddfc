package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS messages (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	id       TEXT NOT NULL,
	username TEXT NOT NULL,
	text     TEXT NOT NULL,
	ts       INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS users (
	token     TEXT PRIMARY KEY,
	username  TEXT NOT NULL,
	joined_at INTEGER NOT NULL
);
`

// sqliteStore persists the log and registry in a SQLite file. Insertion
// order is the rowid sequence, so eviction and Recent both key off seq.
type sqliteStore struct {
	db  *sql.DB
	log *zap.Logger
	cap int
}

func openSQLite(cfg Config, log *zap.Logger) (Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("storage path is required for sqlite driver")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &sqliteStore{db: db, log: log, cap: cfg.Cap}, nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Recent(k int) []Message {
	if k < 0 {
		k = 0
	}
	rows, err := s.db.Query(
		`SELECT id, username, text, ts FROM
		   (SELECT seq, id, username, text, ts FROM messages ORDER BY seq DESC LIMIT ?)
		 ORDER BY seq ASC`, k)
	if err != nil {
		s.log.Error("sqlite recent query failed", zap.Error(err))
		return []Message{}
	}
	defer rows.Close()

	out := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Username, &m.Text, &m.Timestamp); err != nil {
			s.log.Error("sqlite recent scan failed", zap.Error(err))
			return out
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		s.log.Error("sqlite recent rows failed", zap.Error(err))
	}
	return out
}

func (s *sqliteStore) Append(m Message) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO messages(id, username, text, ts) VALUES(?,?,?,?)`,
		m.ID, m.Username, m.Text, m.Timestamp); err != nil {
		return err
	}
	if _, err := tx.Exec(
		`DELETE FROM messages WHERE seq NOT IN
		   (SELECT seq FROM messages ORDER BY seq DESC LIMIT ?)`, s.cap); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) RegisterUser(token, username string, now int64) error {
	_, err := s.db.Exec(
		`INSERT INTO users(token, username, joined_at) VALUES(?,?,?)
		 ON CONFLICT(token) DO UPDATE SET username=excluded.username, joined_at=excluded.joined_at`,
		token, username, now)
	return err
}

func (s *sqliteStore) LookupUser(token string) (User, bool) {
	var u User
	err := s.db.QueryRow(
		`SELECT username, joined_at FROM users WHERE token = ?`, token).
		Scan(&u.Username, &u.JoinedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, false
	}
	if err != nil {
		s.log.Error("sqlite user lookup failed", zap.Error(err))
		return User{}, false
	}
	return u, true
}
