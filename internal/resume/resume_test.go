package resume

import (
	"path/filepath"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := openAt(filepath.Join(t.TempDir(), "amlview.db"))
	if err != nil {
		t.Fatalf("openAt() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndGet(t *testing.T) {
	s := testStore(t)

	s.Save("/media/clip.mp4", 90*time.Second)

	// Close flushes the debounced write; reopen to read it back.
	path := mustPath(t, s)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	s2, err := openAt(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s2.Close()

	p, err := s2.Get("/media/clip.mp4")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p == nil || p.Position != 90*time.Second {
		t.Errorf("Get() = %+v, want 90s", p)
	}
}

func TestStore_GetUnknownTarget(t *testing.T) {
	s := testStore(t)

	p, err := s.Get("/media/never-seen.mp4")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p != nil {
		t.Errorf("Get() = %+v, want nil", p)
	}
}

func TestStore_LastSaveWins(t *testing.T) {
	s := testStore(t)

	if err := save(s.db, Point{Target: "a", Position: time.Second, SavedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := save(s.db, Point{Target: "a", Position: 3 * time.Second, SavedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}

	p, err := s.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if p == nil || p.Position != 3*time.Second {
		t.Errorf("Get() = %+v, want 3s", p)
	}
}

func TestStore_Clear(t *testing.T) {
	s := testStore(t)

	if err := save(s.db, Point{Target: "a", Position: time.Second, SavedAt: time.Now()}); err != nil {
		t.Fatal(err)
	}
	if err := s.Clear("a"); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	p, err := s.Get("a")
	if err != nil {
		t.Fatal(err)
	}
	if p != nil {
		t.Errorf("Get() after Clear = %+v, want nil", p)
	}
}

// mustPath digs the database path back out for reopen tests.
func mustPath(t *testing.T, s *Store) string {
	t.Helper()
	row := s.db.QueryRow(`SELECT file FROM pragma_database_list WHERE name = 'main'`)
	var path string
	if err := row.Scan(&path); err != nil {
		t.Fatal(err)
	}
	return path
}
