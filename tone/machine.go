// Package tone implements the Tone State Machine (C6): the hysteresis
// gate that decides when the visible tone indicator is allowed to change.
// The machine is advisory only — the Coordinator still records every
// proposed tone into analytics even when Evaluate reports Update=false.
package tone

import (
	"time"

	"github.com/unsaid-inc/tonecoach-core/model"
)

// DefaultDwellWindow is the minimum time an elevated (caution/alert) tone
// must stay visible before a downgrade is permitted (§4.6, Open Question 2).
const DefaultDwellWindow = 3 * time.Second

// DefaultImprovementThreshold is the minimum improvement_score that allows
// an early downgrade during the dwell window (§4.6, Open Question 2).
const DefaultImprovementThreshold = 0.3

// ErasureShortenRunes is how many runes shorter the newly analyzed text
// must be, relative to the previously analyzed text, to count as "the user
// erased" (rule 5 of §4.6).
const ErasureShortenRunes = 3

// State holds the current visible tone and the timestamp of its last
// escalation (severity increase). The zero value is ToneNeutral with no
// escalation history, matching §3's "neutral is initial".
type State struct {
	Current          model.ToneStatus
	LastEscalationAt time.Time
}

// NewState returns the initial state: neutral, never escalated.
func NewState() State {
	return State{Current: model.ToneNeutral}
}

// Machine evaluates proposed tone transitions against the current state
// under the dwell/escalation rules of §4.6. It is not safe for concurrent
// use — the Coordinator owns it exclusively, per §3's ownership rules.
type Machine struct {
	state       State
	dwellWindow time.Duration
	improveMin  float64
	now         func() time.Time
}

// New returns a Machine starting at the neutral state.
func New(dwellWindow time.Duration, improvementThreshold float64) *Machine {
	if dwellWindow <= 0 {
		dwellWindow = DefaultDwellWindow
	}
	if improvementThreshold <= 0 {
		improvementThreshold = DefaultImprovementThreshold
	}
	return &Machine{
		state:       NewState(),
		dwellWindow: dwellWindow,
		improveMin:  improvementThreshold,
		now:         time.Now,
	}
}

// Current returns the currently visible tone status.
func (m *Machine) Current() model.ToneStatus { return m.state.Current }

// Decision is the outcome of evaluating a proposed tone transition.
type Decision struct {
	// Update reports whether the visible tone may change to Proposed.
	Update bool
	// Proposed is the tone that was evaluated (recorded into analytics
	// regardless of Update).
	Proposed model.ToneStatus
}

// EvaluateInput carries the signals needed to run the transition rules of
// §4.6, beyond the bare current/proposed pair.
type EvaluateInput struct {
	Proposed model.ToneStatus
	// Improvement and ImprovementScore are set from the remote response
	// when it carries an explicit improvement signal.
	Improvement      bool
	ImprovementScore float64
	// PreviousTextLen and NewTextLen are rune counts of the previously
	// analyzed text and the newly analyzed text, for rule 5 (erasure).
	PreviousTextLen int
	NewTextLen      int
}

// Evaluate runs the §4.6 transition rules and, if they permit the change,
// updates the machine's visible state. It always returns a Decision so the
// caller can record the proposed tone into analytics even when Update is
// false.
func (m *Machine) Evaluate(in EvaluateInput) Decision {
	current := m.state.Current
	proposed := in.Proposed

	dec := Decision{Proposed: proposed}

	// Rule 1: no-op proposal.
	if proposed == current {
		return dec
	}

	// Rule 2: escalation always wins. This also covers a lateral move among
	// the severity-0 group (neutral/clear/analyzing): those carry no dwell
	// protection of their own, so a same-severity proposal among them is
	// treated the same as an escalation rather than falling through to the
	// erasure/improvement rules below, which only make sense as a way out of
	// an elevated (caution/alert) state.
	if proposed.Severity() >= current.Severity() {
		dec.Update = true
		m.apply(proposed, true)
		return dec
	}

	// Rule 3: dwell window protects elevated tones from immediate downgrade.
	// This is a hard veto — unlike rules 4/5 below, it is not conditioned on
	// anything else, matching the strict if/elseif chain of §4.6.
	if (current == model.ToneCaution || current == model.ToneAlert) &&
		m.now().Sub(m.state.LastEscalationAt) < m.dwellWindow {
		return dec
	}

	// Rule 4: improvement signal permits the downgrade.
	if in.Improvement && in.ImprovementScore > m.improveMin {
		dec.Update = true
		m.apply(proposed, false)
		return dec
	}

	// Rule 5: the user erased enough text that severity should drop.
	if in.PreviousTextLen-in.NewTextLen >= ErasureShortenRunes {
		dec.Update = true
		m.apply(proposed, false)
		return dec
	}

	return dec
}

func (m *Machine) apply(proposed model.ToneStatus, escalated bool) {
	m.state.Current = proposed
	if escalated {
		m.state.LastEscalationAt = m.now()
	}
}

// Reset returns the machine to the initial neutral state, per the
// Coordinator's reset() contract (§4.8).
func (m *Machine) Reset() {
	m.state = NewState()
}
