package model

import "time"

// AnalyticsEventKind tags the variant of an AnalyticsEvent.
type AnalyticsEventKind string

const (
	EventInteraction      AnalyticsEventKind = "interaction"
	EventToneSample       AnalyticsEventKind = "tone_sample"
	EventSuggestionResult AnalyticsEventKind = "suggestion_outcome"
	EventGeneric          AnalyticsEventKind = "generic"
)

// AnalyticsEvent is a privacy-preserving analytics record: per §9, payloads
// carry lengths and hashes, never raw text (the one exception — accepted
// suggestions shipped to communicator/observe — is handled outside this
// type, directly by the coordinator).
type AnalyticsEvent struct {
	ID      string
	Kind    AnalyticsEventKind
	At      time.Time
	Payload map[string]any
}
