package conversation

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/unsaid-inc/tonecoach-core/model"
	"github.com/unsaid-inc/tonecoach-core/storage"
)

func TestLog_AppendThenSnapshotWithEmptyCurrent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemKV()
	l := New(ctx, kv, DefaultCapacity)

	l.Append(ctx, model.ConversationTurn{Sender: model.SenderUser, Text: "hi", TS: 1})
	snap := l.SnapshotWithCurrent("", 2)
	require.Len(t, snap, 1)
	require.Equal(t, "hi", snap[0].Text)
}

func TestLog_SnapshotAppendsCurrentWithoutMutatingStore(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemKV()
	l := New(ctx, kv, DefaultCapacity)
	l.Append(ctx, model.ConversationTurn{Sender: model.SenderOther, Text: "hey", TS: 1})

	snap := l.SnapshotWithCurrent("how are you", 2)
	require.Len(t, snap, 2)
	require.Equal(t, 1, l.Len(), "stored buffer must not grow from the current-text snapshot")
	require.Equal(t, model.SenderUser, snap[1].Sender)
}

// TestLog_CapAt20Turns reproduces spec.md §8 scenario S6.
func TestLog_CapAt20Turns(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemKV()
	l := New(ctx, kv, DefaultCapacity)

	for i := 0; i < 25; i++ {
		l.Append(ctx, model.ConversationTurn{
			Sender: model.SenderUser,
			Text:   "turn",
			TS:     float64(i),
		})
	}
	require.Equal(t, DefaultCapacity, l.Len())

	snap := l.SnapshotWithCurrent("current text", 100)
	require.Len(t, snap, DefaultCapacity+1)
	require.Equal(t, float64(5), snap[0].TS, "oldest 5 turns should have been dropped")
	for i := 1; i < len(snap); i++ {
		require.GreaterOrEqual(t, snap[i].TS, snap[i-1].TS)
	}
}

// TestLog_SnapshotOrdersOutOfOrderTimestamps reproduces spec.md §8's
// requirement that a snapshot is always sorted by timestamp, even when
// turns were appended out of order (e.g. a delayed remote echo arriving
// after a newer local turn).
func TestLog_SnapshotOrdersOutOfOrderTimestamps(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemKV()
	l := New(ctx, kv, DefaultCapacity)

	l.Append(ctx, model.ConversationTurn{Sender: model.SenderOther, Text: "later turn", TS: 5})
	l.Append(ctx, model.ConversationTurn{Sender: model.SenderUser, Text: "earlier turn", TS: 2})

	got := l.SnapshotWithCurrent("", 10)
	want := []model.ConversationTurn{
		{Sender: model.SenderUser, Text: "earlier turn", TS: 2},
		{Sender: model.SenderOther, Text: "later turn", TS: 5},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot not sorted by timestamp (-want +got):\n%s", diff)
	}
}

func TestLog_LoadsPersistedTurnsOnConstruction(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemKV()
	l1 := New(ctx, kv, DefaultCapacity)
	l1.Append(ctx, model.ConversationTurn{Sender: model.SenderUser, Text: "persisted", TS: 1})

	l2 := New(ctx, kv, DefaultCapacity)
	require.Equal(t, 1, l2.Len())
}
