// Package registry implements the local share registry: an ordered set
// of shares keyed by stable share-id, persisted across restarts in
// SQLite so identity survives a process restart.
package registry

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Share is one locally exposed directory.
type Share struct {
	ShareID   string
	Name      string
	LocalPath string // canonical absolute path
	ReadOnly  bool
}

var schema = []string{
	`
CREATE TABLE IF NOT EXISTS shares (
  share_id   TEXT PRIMARY KEY,
  name       TEXT NOT NULL,
  local_path TEXT NOT NULL UNIQUE,
  read_only  INTEGER NOT NULL DEFAULT 0,
  seq        INTEGER NOT NULL
);
`,
}

// Registry is the single-writer, many-reader share table. All
// mutations are serialized through mu; readers take a snapshot under
// a read lock.
type Registry struct {
	mu      sync.RWMutex
	db      *sql.DB
	nextSeq int64
}

// Open opens (or creates) the SQLite-backed registry at dbPath and
// loads its current high-water sequence number.
func Open(dbPath string) (*Registry, error) {
	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", filepath.ToSlash(dbPath))
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open share registry database: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping share registry database: %w", err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply share registry schema: %w", err)
		}
	}
	r := &Registry{db: db}
	if err := db.QueryRow(`SELECT COALESCE(MAX(seq), 0) FROM shares`).Scan(&r.nextSeq); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("read share registry sequence: %w", err)
	}
	return r, nil
}

// Close releases the underlying database handle.
func (r *Registry) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// List returns a stable-insertion-order snapshot of every share.
func (r *Registry) List() ([]Share, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rows, err := r.db.Query(`SELECT share_id, name, local_path, read_only FROM shares ORDER BY seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("list shares: %w", err)
	}
	defer rows.Close()
	var out []Share
	for rows.Next() {
		var s Share
		var ro int
		if err := rows.Scan(&s.ShareID, &s.Name, &s.LocalPath, &ro); err != nil {
			return nil, fmt.Errorf("scan share row: %w", err)
		}
		s.ReadOnly = ro != 0
		out = append(out, s)
	}
	return out, rows.Err()
}

// Get returns the share with the given id, if any.
func (r *Registry) Get(shareID string) (Share, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.getLocked(shareID)
}

func (r *Registry) getLocked(shareID string) (Share, bool, error) {
	var s Share
	var ro int
	err := r.db.QueryRow(`SELECT share_id, name, local_path, read_only FROM shares WHERE share_id = ?`, shareID).
		Scan(&s.ShareID, &s.Name, &s.LocalPath, &ro)
	if err == sql.ErrNoRows {
		return Share{}, false, nil
	}
	if err != nil {
		return Share{}, false, fmt.Errorf("get share: %w", err)
	}
	s.ReadOnly = ro != 0
	return s, true, nil
}

func (r *Registry) findByPathLocked(canonicalPath string) (Share, bool, error) {
	var s Share
	var ro int
	err := r.db.QueryRow(`SELECT share_id, name, local_path, read_only FROM shares WHERE local_path = ?`, canonicalPath).
		Scan(&s.ShareID, &s.Name, &s.LocalPath, &ro)
	if err == sql.ErrNoRows {
		return Share{}, false, nil
	}
	if err != nil {
		return Share{}, false, fmt.Errorf("find share by path: %w", err)
	}
	s.ReadOnly = ro != 0
	return s, true, nil
}

// Add registers or updates a share: if shareID is given and already
// present, update that entry in place; else if a registered share has
// the same canonical path, update it in place and return its existing
// id; else create a new entry with a freshly generated id, deriving
// name from the final path component when name is empty.
func (r *Registry) Add(canonicalPath string, readOnly bool, shareID, name string) (Share, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if shareID != "" {
		if existing, ok, err := r.getLocked(shareID); err != nil {
			return Share{}, err
		} else if ok {
			updated := existing
			updated.LocalPath = canonicalPath
			updated.ReadOnly = readOnly
			if name != "" {
				updated.Name = name
			}
			if err := r.updateLocked(updated); err != nil {
				return Share{}, err
			}
			return updated, nil
		}
	}

	if existing, ok, err := r.findByPathLocked(canonicalPath); err != nil {
		return Share{}, err
	} else if ok {
		updated := existing
		updated.ReadOnly = readOnly
		if name != "" {
			updated.Name = name
		}
		if err := r.updateLocked(updated); err != nil {
			return Share{}, err
		}
		return updated, nil
	}

	if shareID == "" {
		shareID = uuid.New().String()
	}
	if name == "" {
		name = filepath.Base(canonicalPath)
	}
	s := Share{ShareID: shareID, Name: name, LocalPath: canonicalPath, ReadOnly: readOnly}
	r.nextSeq++
	if _, err := r.db.Exec(
		`INSERT INTO shares (share_id, name, local_path, read_only, seq) VALUES (?, ?, ?, ?, ?)`,
		s.ShareID, s.Name, s.LocalPath, boolToInt(s.ReadOnly), r.nextSeq,
	); err != nil {
		return Share{}, fmt.Errorf("insert share: %w", err)
	}
	return s, nil
}

func (r *Registry) updateLocked(s Share) error {
	_, err := r.db.Exec(
		`UPDATE shares SET name = ?, local_path = ?, read_only = ? WHERE share_id = ?`,
		s.Name, s.LocalPath, boolToInt(s.ReadOnly), s.ShareID,
	)
	if err != nil {
		return fmt.Errorf("update share: %w", err)
	}
	return nil
}

// Remove deletes a share by id, reporting whether it existed.
func (r *Registry) Remove(shareID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, err := r.db.Exec(`DELETE FROM shares WHERE share_id = ?`, shareID)
	if err != nil {
		return false, fmt.Errorf("remove share: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove share: %w", err)
	}
	return n > 0, nil
}

// ToggleReadOnly flips the read-only flag of a share, reporting whether
// it existed (and the toggle applied).
func (r *Registry) ToggleReadOnly(shareID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok, err := r.getLocked(shareID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	existing.ReadOnly = !existing.ReadOnly
	if err := r.updateLocked(existing); err != nil {
		return false, err
	}
	return true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
