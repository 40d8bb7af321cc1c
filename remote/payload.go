package remote

import "github.com/unsaid-inc/tonecoach-core/model"

func requestPayload(req model.AnalysisRequest) map[string]any {
	body := map[string]any{
		"text":       req.Text,
		"request_id": req.RequestID,
		"user_id":    req.UserID,
		"profile":    profilePayload(req.Profile),
		"history":    historyPayload(req.History),
		"features":   featuresPayload(req.Features),
	}
	if req.UserEmail != "" {
		body["user_email"] = req.UserEmail
	}
	if req.ToneOverride != "" {
		body["tone_override"] = string(req.ToneOverride)
	}
	for k, v := range req.Meta {
		if _, exists := body[k]; !exists {
			body[k] = v
		}
	}
	return body
}

func profilePayload(p model.PersonalityProfile) map[string]any {
	return map[string]any{
		"attachment_style":    string(p.AttachmentStyle),
		"communication_style": p.CommunicationStyle,
		"personality_type":    p.PersonalityType,
		"emotional_state":     p.EmotionalState,
		"emotional_bucket":    string(p.EmotionalBucket),
		"scores":              p.Scores,
		"is_complete":         p.IsComplete,
		"data_age_hours":      p.DataAgeHours,
	}
}

func historyPayload(turns []model.ConversationTurn) []map[string]any {
	out := make([]map[string]any, 0, len(turns))
	for _, t := range turns {
		out = append(out, map[string]any{
			"sender": string(t.Sender),
			"text":   t.Text,
			"ts":     t.TS,
		})
	}
	return out
}

func featuresPayload(features []model.Feature) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		out = append(out, string(f))
	}
	return out
}
