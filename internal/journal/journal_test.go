package journal

import (
	"path/filepath"
	"testing"
	"time"

	"pausesync/internal/pause"
	"pausesync/internal/session"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "journal", "pause.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	pauser := session.Peer{ID: 2, Name: "bob"}

	transitions := []pause.Transition{
		{At: base, Paused: true, PausingPeer: &pauser, ClockOffset: 0.125, Source: pause.SourceCommand},
		{At: base.Add(time.Second), Paused: false, Source: pause.SourceLocal},
		{At: base.Add(2 * time.Second), Paused: true, Source: pause.SourceLocal},
	}
	for _, tr := range transitions {
		if err := s.Record(1, tr); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	all, err := s.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("List(0) returned %d entries, want 3", len(all))
	}
	first := all[0]
	if !first.At.Equal(base) || first.Peer != 1 || !first.Paused || first.ClockOffset != 0.125 || first.Source != pause.SourceCommand {
		t.Errorf("first entry = %+v", first)
	}
	if first.PausingPeer == nil || *first.PausingPeer != 2 {
		t.Errorf("first PausingPeer = %v, want 2", first.PausingPeer)
	}
	if all[1].PausingPeer != nil {
		t.Errorf("second PausingPeer = %v, want nil", *all[1].PausingPeer)
	}

	recent, err := s.List(2)
	if err != nil {
		t.Fatalf("List(2) error = %v", err)
	}
	if len(recent) != 2 || recent[0].Seq != all[1].Seq || recent[1].Seq != all[2].Seq {
		t.Errorf("List(2) = %+v, want the last two entries oldest first", recent)
	}
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pause.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Record(3, pause.Transition{At: time.Now(), Paused: true, Source: pause.SourceLocal}); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	entries, err := s.List(0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Peer != 3 {
		t.Errorf("entries after reopen = %+v", entries)
	}
}

func TestCloseNil(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}
