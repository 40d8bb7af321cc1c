package model

// AttachmentStyle is the closed set of attachment styles that feed the
// remote tone/suggestion models.
type AttachmentStyle string

const (
	AttachmentSecure       AttachmentStyle = "secure"
	AttachmentAnxious      AttachmentStyle = "anxious"
	AttachmentAvoidant     AttachmentStyle = "avoidant"
	AttachmentDisorganized AttachmentStyle = "disorganized"
	AttachmentUnknown      AttachmentStyle = "unknown"
)

// EmotionalBucket buckets the user's current emotional regulation state.
type EmotionalBucket string

const (
	EmotionalHigh      EmotionalBucket = "high"
	EmotionalModerate  EmotionalBucket = "moderate"
	EmotionalRegulated EmotionalBucket = "regulated"
)

// PersonalityProfile is an immutable snapshot read from the cross-process
// profile store. Every field carries a usable zero value so consumers never
// need a null check before reading it.
type PersonalityProfile struct {
	AttachmentStyle    AttachmentStyle
	CommunicationStyle string
	PersonalityType    string
	EmotionalState     string
	EmotionalBucket    EmotionalBucket
	Scores             map[string]int
	IsComplete         bool
	DataAgeHours       float64
}

// UnknownProfile is the sentinel returned whenever the profile bridge
// cannot read a real snapshot.
func UnknownProfile() PersonalityProfile {
	return PersonalityProfile{
		AttachmentStyle: AttachmentUnknown,
		EmotionalBucket: EmotionalModerate,
		IsComplete:      false,
	}
}

// Validate checks the invariants from §3: is_complete implies non-empty
// scores, and data_age_hours is non-negative.
func (p PersonalityProfile) Validate() error {
	if p.IsComplete && len(p.Scores) == 0 {
		return errIncompleteScores
	}
	if p.DataAgeHours < 0 {
		return errNegativeAge
	}
	return nil
}
