package tone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/unsaid-inc/tonecoach-core/model"
)

func newTestMachine(start time.Time) *Machine {
	m := New(DefaultDwellWindow, DefaultImprovementThreshold)
	cur := start
	m.now = func() time.Time { return cur }
	return m
}

func TestMachine_NoOpProposal(t *testing.T) {
	m := newTestMachine(time.Now())
	dec := m.Evaluate(EvaluateInput{Proposed: model.ToneNeutral})
	require.False(t, dec.Update)
}

func TestMachine_EscalationAlwaysAllowed(t *testing.T) {
	m := newTestMachine(time.Now())
	dec := m.Evaluate(EvaluateInput{Proposed: model.ToneAlert})
	require.True(t, dec.Update)
	require.Equal(t, model.ToneAlert, m.Current())
}

// TestMachine_DwellBoundary reproduces the §8 boundary: a downgrade
// proposed at now-last_escalation=2.999s is rejected, at 3.001s accepted.
// Both proposals carry an improvement signal, so the dwell window is the
// only rule that separates the two outcomes.
func TestMachine_DwellBoundary(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	require.True(t, m.Evaluate(EvaluateInput{Proposed: model.ToneAlert}).Update)

	atT := func(d time.Duration) *time.Time { t := base.Add(d); return &t }
	cur := atT(2999 * time.Millisecond)
	m.now = func() time.Time { return *cur }
	dec := m.Evaluate(EvaluateInput{Proposed: model.ToneNeutral, Improvement: true, ImprovementScore: 0.5})
	require.False(t, dec.Update, "2.999s into dwell must reject the downgrade")
	require.Equal(t, model.ToneAlert, m.Current())

	cur2 := atT(3001 * time.Millisecond)
	m.now = func() time.Time { return *cur2 }
	dec = m.Evaluate(EvaluateInput{Proposed: model.ToneNeutral, Improvement: true, ImprovementScore: 0.5})
	require.True(t, dec.Update, "3.001s into dwell must accept the downgrade")
	require.Equal(t, model.ToneNeutral, m.Current())
}

// TestMachine_S3Scenario reproduces spec.md §8 scenario S3 exactly.
func TestMachine_S3Scenario(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	require.True(t, m.Evaluate(EvaluateInput{Proposed: model.ToneAlert}).Update)

	cur := base.Add(2 * time.Second)
	m.now = func() time.Time { return cur }
	dec := m.Evaluate(EvaluateInput{Proposed: model.ToneNeutral})
	require.False(t, dec.Update)

	cur = base.Add(4 * time.Second)
	m.now = func() time.Time { return cur }
	dec = m.Evaluate(EvaluateInput{Proposed: model.ToneNeutral, Improvement: true, ImprovementScore: 0.5})
	require.True(t, dec.Update)
	require.Equal(t, model.ToneNeutral, m.Current())
}

func TestMachine_ImprovementOutsideDwell(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	m.Evaluate(EvaluateInput{Proposed: model.ToneCaution})

	cur := base.Add(10 * time.Second)
	m.now = func() time.Time { return cur }
	dec := m.Evaluate(EvaluateInput{Proposed: model.ToneClear, Improvement: true, ImprovementScore: 0.35})
	require.True(t, dec.Update)
}

func TestMachine_ImprovementBelowThreshold_NoUpdate(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	m.Evaluate(EvaluateInput{Proposed: model.ToneCaution})
	cur := base.Add(10 * time.Second)
	m.now = func() time.Time { return cur }
	dec := m.Evaluate(EvaluateInput{Proposed: model.ToneClear, Improvement: true, ImprovementScore: 0.3})
	require.False(t, dec.Update)
}

func TestMachine_ErasureDropsSeverity(t *testing.T) {
	base := time.Now()
	m := newTestMachine(base)
	m.Evaluate(EvaluateInput{Proposed: model.ToneCaution})
	cur := base.Add(10 * time.Second)
	m.now = func() time.Time { return cur }
	dec := m.Evaluate(EvaluateInput{Proposed: model.ToneNeutral, PreviousTextLen: 20, NewTextLen: 15})
	require.True(t, dec.Update)
}

// TestMachine_LateralMoveAmongZeroSeverityTones reproduces spec.md §8
// scenario S1's expectation that a fresh neutral->clear proposal (no prior
// escalation, no improvement signal) is still visible to the host.
func TestMachine_LateralMoveAmongZeroSeverityTones(t *testing.T) {
	m := newTestMachine(time.Now())
	dec := m.Evaluate(EvaluateInput{Proposed: model.ToneClear, PreviousTextLen: 0, NewTextLen: 12})
	require.True(t, dec.Update)
	require.Equal(t, model.ToneClear, m.Current())
}

func TestMachine_Reset(t *testing.T) {
	m := newTestMachine(time.Now())
	m.Evaluate(EvaluateInput{Proposed: model.ToneAlert})
	require.Equal(t, model.ToneAlert, m.Current())
	m.Reset()
	require.Equal(t, model.ToneNeutral, m.Current())
}
