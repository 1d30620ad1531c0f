package clocksync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pausesync/internal/check"

	"github.com/beevik/ntp"
)

const (
	DefaultPool     = "pool.ntp.org"
	DefaultInterval = 60 * time.Second
)

// Clock provides the current time.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

type Phase uint8

const (
	Unchecked Phase = iota + 1
	Synced
	Failed
	Disabled
)

func (p Phase) String() string {
	switch p {
	case Unchecked:
		return "unchecked"
	case Synced:
		return "synced"
	case Failed:
		return "failed"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

func (p Phase) Transition(to Phase) Phase {
	ok := false
	switch p {
	case Unchecked:
		ok = to == Synced || to == Failed || to == Disabled
	case Synced, Failed:
		ok = to == Synced || to == Failed
	}
	check.Assertf(ok, "clocksync transition: %s -> %s", p, to)
	if !ok {
		return p
	}
	return to
}

// Status is the result of the last offset measurement.
type Status struct {
	Offset    time.Duration
	Phase     Phase
	Error     string
	CheckedAt time.Time
}

// Tracker measures the local clock's offset against an NTP pool and keeps the
// offset last reported by the session authority.
//
// A failed query keeps the last good offset.
type Tracker struct {
	mu       sync.RWMutex
	status   Status
	host     float64
	hasHost  bool
	pool     string
	interval time.Duration
	clock    Clock

	// QueryFunc replaces the NTP query. Tests set it.
	QueryFunc func(pool string) (time.Duration, error)
}

func NewTracker(clock Clock, pool string, interval time.Duration) *Tracker {
	check.Assert(clock != nil, "clocksync.NewTracker: clock must not be nil")
	if pool == "" {
		pool = DefaultPool
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{
		pool:     pool,
		interval: interval,
		clock:    clock,
		status:   Status{Phase: Unchecked},
	}
}

// Disable marks the tracker as not measuring. LocalDifferential stays zero.
func (t *Tracker) Disable() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.status.Phase = t.status.Phase.Transition(Disabled)
}

func (t *Tracker) Run(ctx context.Context) {
	if t.Status().Phase == Disabled {
		return
	}
	t.Check()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Check()
		}
	}
}

// Check runs one measurement.
func (t *Tracker) Check() Status {
	query := t.QueryFunc
	if query == nil {
		query = queryNTP
	}
	offset, err := query(t.pool)

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	if err != nil {
		slog.Debug("clock offset query failed", "pool", t.pool, "err", err)
		t.status.Phase = t.status.Phase.Transition(Failed)
		t.status.Error = err.Error()
		t.status.CheckedAt = now
		return t.status
	}
	t.status = Status{
		Offset:    offset,
		Phase:     t.status.Phase.Transition(Synced),
		CheckedAt: now,
	}
	return t.status
}

func (t *Tracker) Status() Status {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status
}

// LocalDifferential is the measured local offset in seconds.
func (t *Tracker) LocalDifferential() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status.Offset.Seconds()
}

func (t *Tracker) SetHostDifference(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.host, t.hasHost = seconds, true
}

func (t *Tracker) ResetHostDifference() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.host, t.hasHost = 0, false
}

// HostDifference is the authority's offset from its last pause command.
func (t *Tracker) HostDifference() (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.host, t.hasHost
}

// AuthorityTime translates a local instant onto the authority's clock.
func (t *Tracker) AuthorityTime(local time.Time) time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	delta := t.status.Offset.Seconds() - t.host
	return local.Add(time.Duration(delta * float64(time.Second)))
}

func queryNTP(pool string) (time.Duration, error) {
	resp, err := ntp.Query(pool)
	if err != nil {
		return 0, err
	}
	if err := resp.Validate(); err != nil {
		return 0, err
	}
	return resp.ClockOffset, nil
}

// Query performs a single measurement against pool.
func Query(pool string) (time.Duration, error) {
	if pool == "" {
		pool = DefaultPool
	}
	return queryNTP(pool)
}
