// Package resume persists the last playback position per media target
// so a viewer can pick up where they left off.
package resume

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName      = "amlview"
	dbFileName   = "amlview.db"
	saveDebounce = 2 * time.Second
)

// Point is a saved playback position.
type Point struct {
	Target   string
	Position time.Duration
	SavedAt  time.Time
}

// Store keeps resume points in a small SQLite database under the XDG
// data directory. Saves are debounced; Close flushes the pending one.
type Store struct {
	db        *sql.DB
	saveMu    sync.Mutex
	saveTimer *time.Timer
	pending   *Point
}

func Open() (*Store, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, err
	}
	return openAt(dbPath)
}

func openAt(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	s.saveMu.Lock()
	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}
	pending := s.pending
	s.pending = nil
	s.saveMu.Unlock()

	// Flush pending position
	if pending != nil {
		_ = save(s.db, *pending)
	}

	return s.db.Close()
}

// Get returns the saved point for target, or nil when none exists.
func (s *Store) Get(target string) (*Point, error) {
	row := s.db.QueryRow(
		`SELECT position_micros, saved_at FROM resume_points WHERE target = ?`, target)
	var micros, savedAt int64
	if err := row.Scan(&micros, &savedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &Point{
		Target:   target,
		Position: time.Duration(micros) * time.Microsecond,
		SavedAt:  time.Unix(savedAt, 0),
	}, nil
}

// Save records a position. Writes are debounced to keep periodic
// progress updates off the disk.
func (s *Store) Save(target string, pos time.Duration) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.pending = &Point{Target: target, Position: pos, SavedAt: time.Now()}

	if s.saveTimer != nil {
		s.saveTimer.Stop()
	}

	s.saveTimer = time.AfterFunc(saveDebounce, func() {
		s.saveMu.Lock()
		pending := s.pending
		s.pending = nil
		s.saveMu.Unlock()

		if pending != nil {
			_ = save(s.db, *pending)
		}
	})
}

// Clear forgets the saved point for target, typically after the stream
// played to its end.
func (s *Store) Clear(target string) error {
	s.saveMu.Lock()
	if s.pending != nil && s.pending.Target == target {
		s.pending = nil
	}
	s.saveMu.Unlock()

	_, err := s.db.Exec(`DELETE FROM resume_points WHERE target = ?`, target)
	return err
}

func save(db *sql.DB, p Point) error {
	_, err := db.Exec(`
		INSERT INTO resume_points (target, position_micros, saved_at)
		VALUES (?, ?, ?)
		ON CONFLICT(target) DO UPDATE SET
			position_micros = excluded.position_micros,
			saved_at = excluded.saved_at`,
		p.Target, int64(p.Position/time.Microsecond), p.SavedAt.Unix())
	return err
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS resume_points (
			target TEXT PRIMARY KEY,
			position_micros INTEGER NOT NULL,
			saved_at INTEGER NOT NULL
		);
	`)
	return err
}

func getDBPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
