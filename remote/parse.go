package remote

import (
	"strings"

	"github.com/unsaid-inc/tonecoach-core/model"
)

// toneFieldPriority and suggestionsToneFieldPriority are the response shapes
// the remote service has shipped over time for the /v1/tone and
// /v1/suggestions endpoints respectively; each client accepts all of them and
// reads the first one present, newest field name first (§4.5/§6). The two
// lists differ: only the suggestions list reads toneStatus and
// extras.toneStatus, and only the tone list reads analysis.tone and
// extras.tone; both read tone and primaryTone.
var toneFieldPriority = []string{"tone", "primaryTone", "analysis.tone", "extras.tone"}

var suggestionsToneFieldPriority = []string{"tone", "toneStatus", "primaryTone", "extras.toneStatus"}

func parseAnalysisResult(raw map[string]any, toneFields []string) model.AnalysisResult {
	result := model.AnalysisResult{Raw: raw}

	if tone, ok := parseTone(raw, toneFields); ok {
		result.Tone = tone
		result.HasTone = true
	}
	if c, ok := raw["confidence"].(float64); ok {
		result.Confidence = c
		result.HasConfidence = true
	}
	result.Suggestion = parseSuggestion(raw)
	result.QuickFixes = stringSlice(raw["quickFixes"])
	if q, ok := raw["quality"].(float64); ok {
		result.Quality = q
	}
	if used, ok := raw["features_used"].([]any); ok {
		result.FeaturesUsed = len(used)
	}
	return result
}

func parseTone(raw map[string]any, toneFields []string) (model.ToneStatus, bool) {
	for _, path := range toneFields {
		s, ok := stringAt(raw, path)
		if !ok {
			continue
		}
		t := model.ToneStatus(s)
		if t.Valid() {
			return t, true
		}
	}
	return "", false
}

// parseSuggestion walks the field-priority chain from §6: rewrite wins,
// then the structured extras.suggestions array, then the legacy
// quickFixes/suggestions/general_suggestion/suggestion/data fields.
func parseSuggestion(raw map[string]any) string {
	if s, ok := stringAt(raw, "rewrite"); ok {
		return s
	}
	if s, ok := firstArrayItemString(raw, "extras.suggestions", "text"); ok {
		return s
	}
	if s, ok := firstArrayString(raw, "quickFixes"); ok {
		return s
	}
	if s, ok := firstArrayItemString(raw, "suggestions", "text"); ok {
		return s
	}
	if s, ok := stringAt(raw, "general_suggestion"); ok {
		return s
	}
	if s, ok := stringAt(raw, "suggestion"); ok {
		return s
	}
	if s, ok := stringAt(raw, "data"); ok {
		return s
	}
	return ""
}

func lookupPath(raw map[string]any, path string) (any, bool) {
	var cur any = raw
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func stringAt(raw map[string]any, path string) (string, bool) {
	v, ok := lookupPath(raw, path)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func firstArrayItemString(raw map[string]any, arrayPath, itemKey string) (string, bool) {
	v, ok := lookupPath(raw, arrayPath)
	if !ok {
		return "", false
	}
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return "", false
	}
	item, ok := arr[0].(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := item[itemKey].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func firstArrayString(raw map[string]any, arrayPath string) (string, bool) {
	v, ok := lookupPath(raw, arrayPath)
	if !ok {
		return "", false
	}
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return "", false
	}
	s, ok := arr[0].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func stringSlice(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
