// Package coordinator implements the Coordinator (C8): the top-level
// orchestrator that owns the stream scheduler, tone state machine, remote
// client and offline fallback, and exposes the host-facing contract
// described in §4.8. The conversation log is not owned: it is injected
// through Deps and may be shared with other Coordinators.
package coordinator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/unsaid-inc/tonecoach-core/analytics"
	"github.com/unsaid-inc/tonecoach-core/cache"
	"github.com/unsaid-inc/tonecoach-core/config"
	"github.com/unsaid-inc/tonecoach-core/conversation"
	"github.com/unsaid-inc/tonecoach-core/executor"
	"github.com/unsaid-inc/tonecoach-core/fallback"
	"github.com/unsaid-inc/tonecoach-core/log"
	"github.com/unsaid-inc/tonecoach-core/model"
	"github.com/unsaid-inc/tonecoach-core/profile"
	"github.com/unsaid-inc/tonecoach-core/quota"
	"github.com/unsaid-inc/tonecoach-core/remote"
	"github.com/unsaid-inc/tonecoach-core/scheduler"
	"github.com/unsaid-inc/tonecoach-core/tone"
)

// Callbacks is the narrow outbound surface the Coordinator calls into. Per
// §9's design notes, this is the only dynamic-dispatch boundary the core
// needs — everything else is a plain inbound method call.
type Callbacks interface {
	OnTone(status model.ToneStatus)
	OnSuggestions(suggestions []string)
	OnSecureFixStateChanged()
}

// Deps are the shared, process-wide singletons injected into the
// Coordinator (§9: "shared-process singletons"). Multiple Coordinators
// (e.g. one per text field) may share the same Profile/Analytics/Quota/
// Conversation instances.
type Deps struct {
	Profile      *profile.Bridge
	Analytics    *analytics.Queue
	Quota        *quota.Ledger
	Conversation *conversation.Log
	// Pool is optional; a default-sized pool is created when nil.
	Pool *executor.Pool
}

// Coordinator owns everything else (C4-C7, C9) and the in-flight request
// bookkeeping. All mutable state is guarded by mu; background goroutines
// submitted to pool never touch it directly — they compute a result and
// call back into a method that takes the lock, approximating §5's "UI
// thread applies results" rule inside a single process.
type Coordinator struct {
	profileBridge *profile.Bridge
	analyticsQ    *analytics.Queue
	quotaLedger   *quota.Ledger
	convo         *conversation.Log

	cacheStore   *cache.Cache
	remoteClient *remote.Client
	toneMachine  *tone.Machine
	sched        *scheduler.Scheduler
	fallbackSrc  *fallback.Source
	pool         *executor.Pool

	callbacks Callbacks

	mu                  sync.Mutex
	currentText         string
	lastAnalyzedText    string
	consecutiveFailures int
	generation          uint64
	pendingTimer        *time.Timer

	newRequestID func() string
	clockNow     func() time.Time
}

// New wires a Coordinator from configuration and shared dependencies.
func New(cfg config.Config, deps Deps, callbacks Callbacks) (*Coordinator, error) {
	pool := deps.Pool
	if pool == nil {
		p, err := executor.New(executor.DefaultPoolSize)
		if err != nil {
			return nil, err
		}
		pool = p
	}
	return &Coordinator{
		profileBridge: deps.Profile,
		analyticsQ:    deps.Analytics,
		quotaLedger:   deps.Quota,
		convo:         deps.Conversation,
		cacheStore:    cache.New(cfg.CacheCapacity),
		remoteClient:  remote.New(cfg),
		toneMachine:   tone.New(cfg.DwellWindow, cfg.ImprovementThresh),
		sched:         scheduler.New(),
		fallbackSrc:   fallback.New(),
		pool:          pool,
		callbacks:     callbacks,
		newRequestID:  func() string { return uuid.NewString() },
		clockNow:      time.Now,
	}, nil
}

// OnTextChange pushes a new text snapshot. It never blocks: the stream
// scheduler's decision determines whether an analysis runs immediately, is
// scheduled after a debounce delay, or is skipped.
func (c *Coordinator) OnTextChange(text string) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.currentText = text
	if c.pendingTimer != nil {
		c.pendingTimer.Stop()
		c.pendingTimer = nil
	}
	c.mu.Unlock()

	switch decision := c.sched.Decide(text); decision.Kind {
	case scheduler.Skip:
	case scheduler.AnalyzeNow:
		c.sched.MarkAnalyzed(text)
		c.submitToneAnalysis(gen, text)
	case scheduler.AnalyzeAfter:
		c.armTimer(gen, text, decision.Delay)
	}
}

// AnalyzeFinalSentence runs an explicit, sentence-granular analysis,
// bypassing the stream scheduler's debounce rules entirely.
func (c *Coordinator) AnalyzeFinalSentence(text string) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.currentText = text
	c.mu.Unlock()

	c.sched.MarkAnalyzed(text)
	c.submitToneAnalysis(gen, text)
}

func (c *Coordinator) armTimer(gen uint64, text string, delay time.Duration) {
	timer := time.AfterFunc(delay, func() {
		c.mu.Lock()
		stillCurrent := c.generation == gen
		c.mu.Unlock()
		if !stillCurrent {
			return
		}
		c.sched.MarkAnalyzed(text)
		c.submitToneAnalysis(gen, text)
	})
	c.mu.Lock()
	c.pendingTimer = timer
	c.mu.Unlock()
}

func (c *Coordinator) submitToneAnalysis(gen uint64, text string) {
	_ = c.pool.Submit(context.Background(), "tone-analysis", func(ctx context.Context) {
		c.mu.Lock()
		stillCurrent := c.generation == gen
		c.mu.Unlock()
		if !stillCurrent {
			return
		}
		c.performToneAnalysis(ctx, text)
	})
}

func (c *Coordinator) performToneAnalysis(ctx context.Context, text string) {
	c.mu.Lock()
	prevLen := utf8.RuneCountInString(c.lastAnalyzedText)
	c.mu.Unlock()
	newLen := utf8.RuneCountInString(text)

	if result, ok := c.cacheStore.Lookup(text); ok {
		c.mu.Lock()
		c.lastAnalyzedText = text
		c.mu.Unlock()
		c.applyToneResult(result, prevLen, newLen)
		return
	}

	if !c.remoteClient.IsConfigured() {
		return
	}

	req := model.AnalysisRequest{
		Text:      model.TruncateText(text),
		RequestID: c.newRequestID(),
		Profile:   c.profileBridge.GetProfile(ctx),
		History:   c.convo.SnapshotWithCurrent("", c.nowUnix()),
	}

	result, applied, err := c.remoteClient.AnalyzeTone(ctx, req)
	if err != nil {
		c.recordFailure(err)
		return
	}
	if !applied {
		return
	}
	c.recordSuccess()

	c.mu.Lock()
	c.lastAnalyzedText = text
	c.mu.Unlock()

	c.cacheStore.Insert(text, result)
	c.applyToneResult(result, prevLen, newLen)

	if result.HasTone {
		_ = c.analyticsQ.Record(ctx, model.EventToneSample, map[string]any{
			"text_len": newLen,
			"tone":     string(result.Tone),
		})
	}
}

func (c *Coordinator) applyToneResult(result model.AnalysisResult, prevLen, newLen int) {
	if !result.HasTone {
		return
	}
	improvement, improvementScore := improvementSignal(result.Raw)
	dec := c.toneMachine.Evaluate(tone.EvaluateInput{
		Proposed:         result.Tone,
		Improvement:      improvement,
		ImprovementScore: improvementScore,
		PreviousTextLen:  prevLen,
		NewTextLen:       newLen,
	})
	if dec.Update {
		c.emitTone(c.toneMachine.Current())
	}
}

// improvementSignal reads an optional improvement hint the remote response
// may carry; absent, it defaults to "no improvement", which only ever makes
// rule 4 of §4.6 inapplicable — it can never itself cause an update.
func improvementSignal(raw map[string]any) (bool, float64) {
	improvement, _ := raw["improvement"].(bool)
	score, _ := raw["improvement_score"].(float64)
	return improvement, score
}

// RequestSuggestions snapshots the current text and dispatches a suggestion
// request, or emits an empty suggestion list immediately if there is no
// text to analyze.
func (c *Coordinator) RequestSuggestions() {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	text := c.currentText
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		c.emitSuggestions(nil)
		return
	}

	_ = c.pool.Submit(context.Background(), "suggestions", func(ctx context.Context) {
		c.deliverSuggestion(ctx, gen, text, "")
	})
}

// RequestBestForTone produces one suggestion conditioned on a forced tone
// override, used when the user opens the tone picker.
func (c *Coordinator) RequestBestForTone(toneOverride model.ToneStatus) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	text := c.currentText
	c.mu.Unlock()

	if strings.TrimSpace(text) == "" {
		c.emitSuggestions(nil)
		return
	}

	_ = c.pool.Submit(context.Background(), "suggestions-for-tone", func(ctx context.Context) {
		c.deliverSuggestion(ctx, gen, text, toneOverride)
	})
}

func (c *Coordinator) deliverSuggestion(ctx context.Context, gen uint64, text string, toneOverride model.ToneStatus) {
	suggestion := c.fetchSuggestion(ctx, text, toneOverride)

	c.mu.Lock()
	stillCurrent := c.generation == gen
	c.mu.Unlock()
	if !stillCurrent {
		return
	}
	if suggestion == "" {
		c.emitSuggestions(nil)
		return
	}
	c.emitSuggestions([]string{suggestion})
}

// fetchSuggestion tries the cache, then the remote client, falling back to
// the deterministic local rule set (C9) when the remote path is not
// configured, when the call fails as Offline or Timeout, or when it returns
// no usable suggestion (§4.9). Any other remote failure yields no suggestion.
func (c *Coordinator) fetchSuggestion(ctx context.Context, text string, toneOverride model.ToneStatus) string {
	if cached, ok := c.cacheStore.Lookup(text); ok && cached.Suggestion != "" {
		return cached.Suggestion
	}

	if c.remoteClient.IsConfigured() {
		req := model.AnalysisRequest{
			Text:         model.TruncateText(text),
			RequestID:    c.newRequestID(),
			Profile:      c.profileBridge.GetProfile(ctx),
			History:      c.convo.SnapshotWithCurrent("", c.nowUnix()),
			Features:     []model.Feature{model.FeatureRewrite, model.FeatureAdvice, model.FeatureEvidence},
			ToneOverride: toneOverride,
		}
		c.mu.Lock()
		prevLen := utf8.RuneCountInString(c.lastAnalyzedText)
		c.mu.Unlock()
		newLen := utf8.RuneCountInString(text)

		result, applied, err := c.remoteClient.RequestSuggestions(ctx, req)
		if err != nil {
			c.recordFailure(err)
			var rerr *remote.Error
			if !errors.As(err, &rerr) || (rerr.Kind != remote.KindOffline && rerr.Kind != remote.KindTimeout) {
				return ""
			}
		} else if applied {
			c.recordSuccess()
			c.cacheStore.Insert(text, result)
			// The suggestions endpoint also carries tone fields (§4.5); surface
			// them to C6 the same way a dedicated tone-analysis call would.
			c.applyToneResult(result, prevLen, newLen)
			if result.Suggestion != "" {
				return result.Suggestion
			}
		}
	}

	return c.fallbackSrc.Suggest(text)
}

// EditOpKind is the closed set of edit operations the host may play back
// when animating a Secure Fix rewrite (§5, §12).
type EditOpKind int

const (
	// DeleteBackward removes Count runes from the end of the current text.
	DeleteBackward EditOpKind = iota
	// InsertText appends Text at the current cursor position.
	InsertText
)

// EditOp is one step of the edit sequence SecureFix returns.
type EditOp struct {
	Kind  EditOpKind
	Count int
	Text  string
}

// SecureFixResult is the outcome of a SecureFix call.
type SecureFixResult struct {
	Rewrite       string
	Ops           []EditOp
	QuotaExceeded bool
	Remaining     int
	ResetAt       time.Time
}

// SecureFix consumes one quota unit and, if available, sends the full
// current text to the remote service for a complete rewrite. The returned
// Ops sequence is a tunable playback contract (§12): the host may animate
// it character-by-character, or apply it atomically.
func (c *Coordinator) SecureFix(ctx context.Context) SecureFixResult {
	c.mu.Lock()
	text := c.currentText
	c.mu.Unlock()

	if err := c.quotaLedger.TryConsume(ctx); err != nil {
		c.emitSecureFixStateChanged()
		var exceeded *quota.ExceededError
		if errors.As(err, &exceeded) {
			return SecureFixResult{QuotaExceeded: true, ResetAt: exceeded.ResetAt}
		}
		return SecureFixResult{QuotaExceeded: true}
	}
	c.emitSecureFixStateChanged()

	if !c.remoteClient.IsConfigured() {
		return SecureFixResult{}
	}

	req := model.AnalysisRequest{
		Text:      model.TruncateText(text),
		RequestID: c.newRequestID(),
		Profile:   c.profileBridge.GetProfile(ctx),
	}
	result, applied, err := c.remoteClient.RequestSecureFix(ctx, req)
	if err != nil {
		c.recordFailure(err)
		return SecureFixResult{}
	}
	if !applied || result.Suggestion == "" {
		return SecureFixResult{}
	}
	c.recordSuccess()
	return SecureFixResult{
		Rewrite: result.Suggestion,
		Ops:     buildEditOps(text, result.Suggestion),
	}
}

func buildEditOps(old, rewrite string) []EditOp {
	ops := make([]EditOp, 0, 2)
	if n := utf8.RuneCountInString(old); n > 0 {
		ops = append(ops, EditOp{Kind: DeleteBackward, Count: n})
	}
	if rewrite != "" {
		ops = append(ops, EditOp{Kind: InsertText, Text: rewrite})
	}
	return ops
}

// RecordSuggestionAccepted logs the acceptance and additionally ships the
// literal suggestion text to the remote learning endpoint (§9's stated
// privacy exception for accepted suggestions).
func (c *Coordinator) RecordSuggestionAccepted(ctx context.Context, suggestion string) {
	_ = c.analyticsQ.Record(ctx, model.EventSuggestionResult, map[string]any{
		"accepted": true,
		"text_len": utf8.RuneCountInString(suggestion),
	})
	_ = c.pool.Submit(ctx, "observe-accepted", func(ctx context.Context) {
		if err := c.remoteClient.ObserveCommunicatorEvent(ctx, "suggestion_accepted", map[string]any{
			"text": suggestion,
		}); err != nil {
			log.WarnfContext(ctx, "coordinator: communicator observe failed: %v", err)
		}
	})
}

// RecordSuggestionRejected logs the rejection. Rejected suggestions are
// never shipped to the remote learning endpoint.
func (c *Coordinator) RecordSuggestionRejected(ctx context.Context, suggestion string) {
	_ = c.analyticsQ.Record(ctx, model.EventSuggestionResult, map[string]any{
		"accepted": false,
		"text_len": utf8.RuneCountInString(suggestion),
	})
}

// Reset clears the current text, the analysis baseline and the visible
// tone, and cancels any scheduled analysis.
func (c *Coordinator) Reset() {
	c.mu.Lock()
	c.generation++
	if c.pendingTimer != nil {
		c.pendingTimer.Stop()
		c.pendingTimer = nil
	}
	c.currentText = ""
	c.lastAnalyzedText = ""
	c.consecutiveFailures = 0
	c.mu.Unlock()

	c.sched.Reset()
	c.toneMachine.Reset()
}

// Close flushes pending analytics and tears down the background pool. Call
// this only when no other Coordinator shares the injected Pool.
func (c *Coordinator) Close(ctx context.Context) error {
	err := c.analyticsQ.FlushAll(ctx)
	c.pool.Release()
	return err
}

func (c *Coordinator) recordFailure(err error) {
	c.mu.Lock()
	c.consecutiveFailures++
	c.mu.Unlock()
	log.Warnf("coordinator: remote call failed: %v", err)
}

func (c *Coordinator) recordSuccess() {
	c.mu.Lock()
	c.consecutiveFailures = 0
	c.mu.Unlock()
}

func (c *Coordinator) nowUnix() float64 {
	return float64(c.clockNow().Unix())
}

func (c *Coordinator) emitTone(status model.ToneStatus) {
	if c.callbacks == nil {
		return
	}
	c.callbacks.OnTone(status)
}

func (c *Coordinator) emitSuggestions(list []string) {
	if c.callbacks == nil {
		return
	}
	c.callbacks.OnSuggestions(list)
}

func (c *Coordinator) emitSecureFixStateChanged() {
	if c.callbacks == nil {
		return
	}
	c.callbacks.OnSecureFixStateChanged()
}
