// Package conversation implements the Conversation Log (C10): a shared ring
// buffer of the last N message turns, used as API context for the remote
// tone/suggestion endpoints.
package conversation

import (
	"context"
	"sort"
	"sync"

	"github.com/unsaid-inc/tonecoach-core/model"
	"github.com/unsaid-inc/tonecoach-core/storage"
)

// DefaultCapacity is the ring buffer's fixed size (§3, §4.10).
const DefaultCapacity = 20

const (
	namespace = "conversation"
	bufferKey = "conversation_history_buffer"
)

// Log is a size-bounded ring of ConversationTurn, persisted to shared
// storage so the host process and the extension see the same history.
type Log struct {
	kv       storage.KV
	capacity int

	mu    sync.Mutex
	turns []model.ConversationTurn
}

// New returns a Log backed by kv, loading any turns already persisted.
func New(ctx context.Context, kv storage.KV, capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{kv: kv, capacity: capacity}
	var persisted []model.ConversationTurn
	if ok, _ := storage.GetJSON(ctx, kv, namespace, bufferKey, &persisted); ok {
		l.turns = clampTail(persisted, capacity)
	}
	return l
}

// Append adds turn to the ring, keeping the ring ordered by timestamp and
// dropping the oldest entry once full, and persists the updated ring.
func (l *Log) Append(ctx context.Context, turn model.ConversationTurn) {
	l.mu.Lock()
	l.turns = append(l.turns, turn)
	sort.SliceStable(l.turns, func(i, j int) bool { return l.turns[i].TS < l.turns[j].TS })
	l.turns = clampTail(l.turns, l.capacity)
	snapshot := append([]model.ConversationTurn(nil), l.turns...)
	l.mu.Unlock()

	_ = storage.PutJSON(ctx, l.kv, namespace, bufferKey, snapshot)
}

// SnapshotWithCurrent returns a copy of the stored ring with currentText
// appended as a final sender=user turn (only if currentText is non-empty),
// sorted by timestamp ascending. The stored buffer itself is not mutated —
// per §8, this may grow the returned slice to capacity+1 entries without
// ever growing the persisted ring.
func (l *Log) SnapshotWithCurrent(currentText string, ts float64) []model.ConversationTurn {
	l.mu.Lock()
	out := append([]model.ConversationTurn(nil), l.turns...)
	l.mu.Unlock()

	if currentText != "" {
		out = append(out, model.ConversationTurn{
			Sender: model.SenderUser,
			Text:   currentText,
			TS:     ts,
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TS < out[j].TS })
	return out
}

// Len reports the number of turns currently stored (excluding any current
// text appended by SnapshotWithCurrent).
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.turns)
}

func clampTail(turns []model.ConversationTurn, capacity int) []model.ConversationTurn {
	if len(turns) <= capacity {
		return turns
	}
	return append([]model.ConversationTurn(nil), turns[len(turns)-capacity:]...)
}
