// Package profile implements the Profile Bridge (C1): a read-only view over
// the personality profile written by an external assessment flow into the
// shared storage namespace "personality.*". This package never writes.
package profile

import (
	"context"
	"strconv"
	"time"

	"github.com/unsaid-inc/tonecoach-core/log"
	"github.com/unsaid-inc/tonecoach-core/model"
	"github.com/unsaid-inc/tonecoach-core/storage"
)

const namespace = "personality"

const (
	keyAttachmentStyle    = "attachment_style"
	keyCommunicationStyle = "communication_style"
	keyPersonalityType    = "personality_type"
	keyEmotionalState     = "emotional_state"
	keyEmotionalBucket    = "emotional_bucket"
	keyScores             = "scores"
	keyIsComplete         = "is_complete"
	keyLastWriteTS        = "last_write_ts"
)

// Bridge reads PersonalityProfile snapshots from shared storage.
type Bridge struct {
	kv storage.KV
	// now is overridable for tests.
	now func() time.Time
}

// NewBridge returns a Bridge backed by kv.
func NewBridge(kv storage.KV) *Bridge {
	return &Bridge{kv: kv, now: time.Now}
}

// GetProfile reads the current profile snapshot. On any read failure it
// returns the unknown/incomplete sentinel rather than an error — callers
// never need to handle an error from this call (§4.1).
func (b *Bridge) GetProfile(ctx context.Context) model.PersonalityProfile {
	p := model.UnknownProfile()

	style, ok := b.getString(ctx, keyAttachmentStyle)
	if !ok {
		return p
	}
	p.AttachmentStyle = model.AttachmentStyle(style)

	if v, ok := b.getString(ctx, keyCommunicationStyle); ok {
		p.CommunicationStyle = v
	}
	if v, ok := b.getString(ctx, keyPersonalityType); ok {
		p.PersonalityType = v
	}
	if v, ok := b.getString(ctx, keyEmotionalState); ok {
		p.EmotionalState = v
	}
	if v, ok := b.getString(ctx, keyEmotionalBucket); ok {
		p.EmotionalBucket = model.EmotionalBucket(v)
	}
	if scores, ok := b.getScores(ctx); ok {
		p.Scores = scores
	}
	if v, ok := b.getBool(ctx, keyIsComplete); ok {
		p.IsComplete = v
	}
	p.DataAgeHours = b.dataAgeHours(ctx)

	if err := p.Validate(); err != nil {
		log.Warnf("profile: invalid snapshot read from storage: %v", err)
		return model.UnknownProfile()
	}
	return p
}

// IsComplete is a convenience accessor equivalent to GetProfile(ctx).IsComplete.
func (b *Bridge) IsComplete(ctx context.Context) bool {
	return b.GetProfile(ctx).IsComplete
}

func (b *Bridge) dataAgeHours(ctx context.Context) float64 {
	raw, ok, err := b.kv.Get(ctx, namespace, keyLastWriteTS)
	if err != nil || !ok {
		return 0
	}
	unixSeconds, decErr := strconv.ParseInt(string(raw), 10, 64)
	if decErr != nil {
		return 0
	}
	since := b.now().Sub(time.Unix(unixSeconds, 0))
	if since < 0 {
		return 0
	}
	return since.Hours()
}

func (b *Bridge) getString(ctx context.Context, key string) (string, bool) {
	raw, ok, err := b.kv.Get(ctx, namespace, key)
	if err != nil || !ok {
		return "", false
	}
	return string(raw), true
}

func (b *Bridge) getBool(ctx context.Context, key string) (bool, bool) {
	v, ok := b.getString(ctx, key)
	if !ok {
		return false, false
	}
	return v == "true" || v == "1", true
}

func (b *Bridge) getScores(ctx context.Context) (map[string]int, bool) {
	var scores map[string]int
	ok, err := storage.GetJSON(ctx, b.kv, namespace, keyScores, &scores)
	if err != nil || !ok {
		return nil, false
	}
	return scores, true
}
