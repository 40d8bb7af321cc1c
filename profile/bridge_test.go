package profile

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/unsaid-inc/tonecoach-core/model"
	"github.com/unsaid-inc/tonecoach-core/storage"
)

func TestBridge_GetProfile_Sentinel(t *testing.T) {
	b := NewBridge(storage.NewMemKV())
	p := b.GetProfile(context.Background())
	require.Equal(t, model.AttachmentUnknown, p.AttachmentStyle)
	require.False(t, p.IsComplete)
}

func TestBridge_GetProfile_ReadsSnapshot(t *testing.T) {
	kv := storage.NewMemKV()
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, namespace, keyAttachmentStyle, []byte("anxious")))
	require.NoError(t, kv.Put(ctx, namespace, keyIsComplete, []byte("true")))
	require.NoError(t, storage.PutJSON(ctx, kv, namespace, keyScores, map[string]int{"anxiety": 7}))
	require.NoError(t, kv.Put(ctx, namespace, keyLastWriteTS,
		[]byte(strconv.FormatInt(time.Now().Add(-2*time.Hour).Unix(), 10))))

	b := NewBridge(kv)
	p := b.GetProfile(ctx)
	require.Equal(t, model.AttachmentAnxious, p.AttachmentStyle)
	require.True(t, p.IsComplete)
	require.Equal(t, map[string]int{"anxiety": 7}, p.Scores)
	require.InDelta(t, 2.0, p.DataAgeHours, 0.05)
}

func TestBridge_GetProfile_IncompleteWithoutScores_FallsBackToSentinel(t *testing.T) {
	kv := storage.NewMemKV()
	ctx := context.Background()
	require.NoError(t, kv.Put(ctx, namespace, keyAttachmentStyle, []byte("secure")))
	require.NoError(t, kv.Put(ctx, namespace, keyIsComplete, []byte("true")))
	// No scores written: is_complete=true with empty scores violates the
	// invariant, so GetProfile must fall back to the sentinel.

	b := NewBridge(kv)
	p := b.GetProfile(ctx)
	require.Equal(t, model.AttachmentUnknown, p.AttachmentStyle)
	require.False(t, p.IsComplete)
}
