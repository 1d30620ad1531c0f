package clocksync

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func newTestTracker(offsets ...any) (*Tracker, *testClock) {
	clock := &testClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	tr := NewTracker(clock, "", 0)
	i := 0
	tr.QueryFunc = func(string) (time.Duration, error) {
		v := offsets[i]
		i++
		if err, ok := v.(error); ok {
			return 0, err
		}
		return v.(time.Duration), nil
	}
	return tr, clock
}

func TestTrackerDefaults(t *testing.T) {
	tr := NewTracker(RealClock{}, "", 0)
	if tr.pool != DefaultPool || tr.interval != DefaultInterval {
		t.Fatalf("pool=%q interval=%s", tr.pool, tr.interval)
	}
	if tr.Status().Phase != Unchecked {
		t.Errorf("Phase = %s, want unchecked", tr.Status().Phase)
	}
	if tr.LocalDifferential() != 0 {
		t.Errorf("LocalDifferential() = %v before any check", tr.LocalDifferential())
	}
}

func TestTrackerCheck(t *testing.T) {
	tr, clock := newTestTracker(250*time.Millisecond, errors.New("timeout"), -time.Second)

	st := tr.Check()
	if st.Phase != Synced || st.Offset != 250*time.Millisecond || !st.CheckedAt.Equal(clock.now) {
		t.Fatalf("Check() = %+v", st)
	}
	if got := tr.LocalDifferential(); got != 0.25 {
		t.Errorf("LocalDifferential() = %v, want 0.25", got)
	}

	st = tr.Check()
	if st.Phase != Failed || st.Error != "timeout" {
		t.Fatalf("Check() after failure = %+v", st)
	}
	if got := tr.LocalDifferential(); got != 0.25 {
		t.Errorf("failed query changed offset to %v", got)
	}

	st = tr.Check()
	if st.Phase != Synced || st.Error != "" || tr.LocalDifferential() != -1 {
		t.Errorf("Check() after recovery = %+v", st)
	}
}

func TestTrackerHostDifference(t *testing.T) {
	tr, _ := newTestTracker(2 * time.Second)
	tr.Check()

	if _, ok := tr.HostDifference(); ok {
		t.Fatal("host difference set before any command")
	}
	tr.SetHostDifference(0.5)
	if v, ok := tr.HostDifference(); !ok || v != 0.5 {
		t.Fatalf("HostDifference() = %v, %v", v, ok)
	}

	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	if got, want := tr.AuthorityTime(base), base.Add(1500*time.Millisecond); !got.Equal(want) {
		t.Errorf("AuthorityTime() = %s, want %s", got, want)
	}

	tr.ResetHostDifference()
	if v, ok := tr.HostDifference(); ok || v != 0 {
		t.Errorf("after reset HostDifference() = %v, %v", v, ok)
	}
	if got, want := tr.AuthorityTime(base), base.Add(2*time.Second); !got.Equal(want) {
		t.Errorf("AuthorityTime() after reset = %s, want %s", got, want)
	}
}

func TestTrackerDisabledRunReturns(t *testing.T) {
	tr, _ := newTestTracker()
	tr.Disable()
	tr.Run(t.Context())
	if tr.Status().Phase != Disabled {
		t.Errorf("Phase = %s, want disabled", tr.Status().Phase)
	}
}

func TestPhaseTransition(t *testing.T) {
	tests := []struct {
		from, to, want Phase
	}{
		{Unchecked, Synced, Synced},
		{Unchecked, Failed, Failed},
		{Synced, Failed, Failed},
		{Failed, Synced, Synced},
		{Unchecked, Disabled, Disabled},
	}
	for _, tt := range tests {
		if got := tt.from.Transition(tt.to); got != tt.want {
			t.Errorf("%s -> %s = %s, want %s", tt.from, tt.to, got, tt.want)
		}
	}
}
