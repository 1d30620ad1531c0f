// Package journal records pause transitions in a local sqlite database for
// later inspection. Nothing reads it back into live state.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"pausesync/internal/pause"
	"pausesync/internal/session"

	_ "modernc.org/sqlite"
)

// Entry is one recorded transition.
type Entry struct {
	Seq         int64
	At          time.Time
	Peer        session.PeerID
	Paused      bool
	PausingPeer *session.PeerID
	ClockOffset float64
	Source      pause.TransitionSource
}

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal db journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal db busy timeout: %w", err)
	}
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS pause_transitions (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	at TEXT NOT NULL,
	peer INTEGER NOT NULL,
	paused INTEGER NOT NULL,
	pausing_peer INTEGER,
	clock_offset REAL NOT NULL DEFAULT 0,
	source TEXT NOT NULL
)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize journal schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record appends a transition observed by the local peer.
func (s *Store) Record(local session.PeerID, t pause.Transition) error {
	paused := 0
	if t.Paused {
		paused = 1
	}
	var pausingPeer sql.NullInt64
	if t.PausingPeer != nil {
		pausingPeer = sql.NullInt64{Int64: int64(t.PausingPeer.ID), Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO pause_transitions (at, peer, paused, pausing_peer, clock_offset, source)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.At.UTC().Format(time.RFC3339Nano),
		int(local),
		paused,
		pausingPeer,
		t.ClockOffset,
		string(t.Source),
	)
	if err != nil {
		return fmt.Errorf("record pause transition: %w", err)
	}
	return nil
}

// List returns the most recent transitions, oldest first. limit <= 0 returns
// all of them.
func (s *Store) List(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
SELECT seq, at, peer, paused, pausing_peer, clock_offset, source FROM (
	SELECT * FROM pause_transitions ORDER BY seq DESC LIMIT ?
) ORDER BY seq`, limit)
	if err != nil {
		return nil, fmt.Errorf("list pause transitions: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var at, source string
		var peer, paused int
		var pausingPeer sql.NullInt64
		if err := rows.Scan(&e.Seq, &at, &peer, &paused, &pausingPeer, &e.ClockOffset, &source); err != nil {
			return nil, fmt.Errorf("scan pause transition row: %w", err)
		}
		e.At, err = time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("parse transition time %q: %w", at, err)
		}
		e.Peer = session.PeerID(peer)
		e.Paused = paused != 0
		e.Source = pause.TransitionSource(source)
		if pausingPeer.Valid {
			id := session.PeerID(pausingPeer.Int64)
			e.PausingPeer = &id
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pause transition rows: %w", err)
	}
	return out, nil
}
