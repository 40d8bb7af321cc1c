package model

import "unicode/utf8"

// MaxRequestTextRunes is the maximum text length carried in an
// AnalysisRequest; longer text is right-truncated (§3).
const MaxRequestTextRunes = 1000

// MaxHistoryTurns bounds the conversation history attached to a request.
const MaxHistoryTurns = 20

// Feature is one of the optional analysis features a request can ask for.
type Feature string

const (
	FeatureRewrite  Feature = "rewrite"
	FeatureAdvice   Feature = "advice"
	FeatureEvidence Feature = "evidence"
)

// AnalysisRequest is the payload sent to the tone/suggestions endpoints.
type AnalysisRequest struct {
	Text         string
	RequestID    string
	UserID       string
	UserEmail    string
	Profile      PersonalityProfile
	History      []ConversationTurn
	Features     []Feature
	ToneOverride ToneStatus
	Meta         map[string]any
}

// TruncateText right-truncates Text to MaxRequestTextRunes, per §3 and the
// boundary behavior in §8 (1000 chars untouched, 1001 right-truncated).
func TruncateText(s string) string {
	if utf8.RuneCountInString(s) <= MaxRequestTextRunes {
		return s
	}
	r := []rune(s)
	return string(r[:MaxRequestTextRunes])
}

// HasFeature reports whether the request asked for f.
func (r AnalysisRequest) HasFeature(f Feature) bool {
	for _, have := range r.Features {
		if have == f {
			return true
		}
	}
	return false
}

// AnalysisResult is the normalized outcome of a tone or suggestion call.
type AnalysisResult struct {
	Tone          ToneStatus
	HasTone       bool
	Confidence    float64
	HasConfidence bool
	Suggestion    string
	QuickFixes    []string
	FeaturesUsed  int
	Quality       float64
	Raw           map[string]any
}
