// Package quota implements the Secure-Fix Quota (C3): a per-calendar-day
// counter, persisted in shared storage, with local-midnight rollover and an
// atomic (within this process) consume operation.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/unsaid-inc/tonecoach-core/model"
	"github.com/unsaid-inc/tonecoach-core/storage"
)

const (
	namespace  = "quota"
	keyUsed    = "SecureFixDailyUsage"
	keyDayKey  = "SecureFixUsageDate"
	dayKeyForm = "2006-01-02"
)

// ErrQuotaExceeded is returned by TryConsume when the daily allowance is used up.
var ErrQuotaExceeded = errors.New("quota: secure fix daily allowance exhausted")

// ExceededError carries the detail §4.3/§7 require the host to surface.
type ExceededError struct {
	Max     int
	ResetAt time.Time
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("quota: exceeded (max %d/day), resets at %s", e.Max, e.ResetAt.Format(time.RFC3339))
}

func (e *ExceededError) Unwrap() error { return ErrQuotaExceeded }

// Ledger guards the per-day Secure Fix counter. Reads and writes are
// serialized within this process by mu; cross-process races against the
// shared store are accepted per §4.3 since the ledger is write-rare.
type Ledger struct {
	kv        storage.KV
	maxPerDay int
	now       func() time.Time

	mu sync.Mutex
}

// New returns a Ledger backed by kv with the given daily allowance
// (model.DefaultMaxPerDay if maxPerDay <= 0).
func New(kv storage.KV, maxPerDay int) *Ledger {
	if maxPerDay <= 0 {
		maxPerDay = model.DefaultMaxPerDay
	}
	return &Ledger{kv: kv, maxPerDay: maxPerDay, now: time.Now}
}

// Remaining reports how many Secure Fix calls remain today, without
// writing: if the stored day_key differs from today, the full allowance is
// available (and nothing is persisted until a consume actually happens). If
// the shared store itself is unavailable, it conservatively reports 0
// remaining (§7 StorageUnavailable).
func (l *Ledger) Remaining(ctx context.Context) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	ledger, ok, err := l.readChecked(ctx)
	if err != nil {
		return 0
	}
	if !ok || ledger.DayKey != l.today() {
		return l.maxPerDay
	}
	remaining := l.maxPerDay - ledger.Used
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// TryConsume attempts to consume one unit of today's quota. If the stored
// day_key is stale it rolls over to (today, 0) first. Returns
// *ExceededError (wrapping ErrQuotaExceeded) when the day's allowance is
// already used.
func (l *Ledger) TryConsume(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	today := l.today()
	ledger, ok, err := l.readChecked(ctx)
	if err != nil {
		return fmt.Errorf("quota: %w", storage.ErrUnavailable)
	}
	if !ok || ledger.DayKey != today {
		ledger = model.QuotaLedger{DayKey: today, Used: 0, MaxPerDay: l.maxPerDay}
	}

	if ledger.Used >= l.maxPerDay {
		return &ExceededError{Max: l.maxPerDay, ResetAt: l.nextMidnight()}
	}
	ledger.Used++
	return l.write(ctx, ledger)
}

func (l *Ledger) today() string {
	return l.now().Format(dayKeyForm)
}

func (l *Ledger) nextMidnight() time.Time {
	now := l.now()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
}

func (l *Ledger) readChecked(ctx context.Context) (model.QuotaLedger, bool, error) {
	usedRaw, ok1, err := l.kv.Get(ctx, namespace, keyUsed)
	if err != nil {
		return model.QuotaLedger{}, false, err
	}
	dayRaw, ok2, err := l.kv.Get(ctx, namespace, keyDayKey)
	if err != nil {
		return model.QuotaLedger{}, false, err
	}
	if !ok1 || !ok2 {
		return model.QuotaLedger{}, false, nil
	}
	used := 0
	fmt.Sscanf(string(usedRaw), "%d", &used)
	return model.QuotaLedger{DayKey: string(dayRaw), Used: used, MaxPerDay: l.maxPerDay}, true, nil
}

func (l *Ledger) write(ctx context.Context, ledger model.QuotaLedger) error {
	if err := l.kv.Put(ctx, namespace, keyUsed, []byte(fmt.Sprintf("%d", ledger.Used))); err != nil {
		return err
	}
	return l.kv.Put(ctx, namespace, keyDayKey, []byte(ledger.DayKey))
}
