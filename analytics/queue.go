// Package analytics implements the Analytics Queue (C2): four bounded
// in-memory queues (interaction, tone, suggestion, generic) that never
// block the input path, flushed opportunistically to shared storage.
package analytics

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/singleflight"

	"github.com/unsaid-inc/tonecoach-core/log"
	"github.com/unsaid-inc/tonecoach-core/model"
	"github.com/unsaid-inc/tonecoach-core/storage"
)

// DefaultQueueCapacity is each queue's bound, per §4.2.
const DefaultQueueCapacity = 100

// MaxPersistedPerQueue bounds the persisted arrays, per §6.
const MaxPersistedPerQueue = 200

const namespace = "analytics"

var queueKeys = map[model.AnalyticsEventKind]string{
	model.EventInteraction:      "pending_keyboard_interactions",
	model.EventToneSample:       "pending_tone_analysis_data",
	model.EventSuggestionResult: "pending_suggestion_data",
	model.EventGeneric:          "pending_keyboard_analytics",
}

// ring is a fixed-capacity, drop-oldest in-memory buffer for one event kind.
type ring struct {
	mu    sync.Mutex
	items []model.AnalyticsEvent
	cap   int
}

func newRing(capacity int) *ring {
	return &ring{cap: capacity}
}

func (r *ring) push(e model.AnalyticsEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, e)
	if over := len(r.items) - r.cap; over > 0 {
		r.items = r.items[over:]
	}
}

// drain removes and returns every item currently buffered.
func (r *ring) drain() []model.AnalyticsEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.items
	r.items = nil
	return out
}

// Queue owns the four bounded queues and flushes them to shared storage.
// record() is O(1) and never performs I/O; flushing happens on a
// background goroutine submitted per call, de-duplicated per queue kind so
// at most one flush per kind is ever in flight (§4.2).
type Queue struct {
	kv       storage.KV
	rings    map[model.AnalyticsEventKind]*ring
	flightBy singleflight.Group
	newID    func() string
}

// New returns a Queue backed by kv with the default per-queue capacity.
func New(kv storage.KV) *Queue {
	q := &Queue{
		kv:    kv,
		rings: make(map[model.AnalyticsEventKind]*ring, len(queueKeys)),
		newID: func() string { return uuid.NewString() },
	}
	for kind := range queueKeys {
		q.rings[kind] = newRing(DefaultQueueCapacity)
	}
	return q
}

// Record buffers an event under its kind's queue, dropping the oldest entry
// if the queue is already at capacity, then opportunistically triggers a
// background flush of that queue. It never blocks on storage I/O and never
// fails because the queue is full — it fails only for an unset kv or an
// unknown kind, both reported as storage.ErrUnavailable.
func (q *Queue) Record(ctx context.Context, kind model.AnalyticsEventKind, payload map[string]any) error {
	if q.kv == nil {
		return storage.ErrUnavailable
	}
	r, ok := q.rings[kind]
	if !ok {
		return storage.ErrUnavailable
	}
	r.push(model.AnalyticsEvent{
		ID:      q.newID(),
		Kind:    kind,
		Payload: payload,
	})
	go func() { _ = q.flushKind(ctx, kind) }()
	return nil
}

// flushKind drains the in-memory ring for kind and merges it into the
// persisted array, capped at MaxPersistedPerQueue. singleflight ensures
// concurrent calls for the same kind collapse into one flush.
func (q *Queue) flushKind(ctx context.Context, kind model.AnalyticsEventKind) error {
	_, err, _ := q.flightBy.Do(string(kind), func() (any, error) {
		r := q.rings[kind]
		drained := r.drain()
		if len(drained) == 0 {
			return nil, nil
		}
		key := queueKeys[kind]

		var existing []model.AnalyticsEvent
		_, _ = storage.GetJSON(ctx, q.kv, namespace, key, &existing)
		merged := append(existing, drained...)
		if over := len(merged) - MaxPersistedPerQueue; over > 0 {
			merged = merged[over:]
		}
		if err := storage.PutJSON(ctx, q.kv, namespace, key, merged); err != nil {
			log.Warnf("analytics: flush %s failed: %v", kind, err)
			// Put the drained items back so they are not silently lost;
			// they will be retried on the next Record() for this kind.
			r.mu.Lock()
			r.items = append(drained, r.items...)
			r.mu.Unlock()
			return nil, err
		}
		return nil, nil
	})
	return err
}

// FlushAll synchronously flushes every queue kind and returns an aggregated
// error for any kinds that failed, for use during Coordinator teardown.
func (q *Queue) FlushAll(ctx context.Context) error {
	var result *multierror.Error
	var mu sync.Mutex
	var wg sync.WaitGroup
	for kind := range q.rings {
		wg.Add(1)
		go func(kind model.AnalyticsEventKind) {
			defer wg.Done()
			if err := q.flushKind(ctx, kind); err != nil {
				mu.Lock()
				result = multierror.Append(result, fmt.Errorf("%s: %w", kind, err))
				mu.Unlock()
			}
		}(kind)
	}
	wg.Wait()
	return result.ErrorOrNil()
}
