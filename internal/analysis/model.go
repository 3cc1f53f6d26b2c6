package analysis

import "time"

// VibeReport summarizes the emotional read of a conversation.
type VibeReport struct {
	OverallMood          string  `json:"overall_mood" dynamodbav:"overall_mood"`
	EngagementLevel      string  `json:"engagement_level" dynamodbav:"engagement_level"`
	CommunicationStyle   string  `json:"communication_style" dynamodbav:"communication_style"`
	EmotionalTemperature float64 `json:"emotional_temperature" dynamodbav:"emotional_temperature"`
}

// Flag is a red or green flag. Red flags carry Severity, green flags
// Significance.
type Flag struct {
	Type         string    `json:"type" dynamodbav:"type"`
	Severity     string    `json:"severity,omitempty" dynamodbav:"severity,omitempty"`
	Significance string    `json:"significance,omitempty" dynamodbav:"significance,omitempty"`
	Evidence     string    `json:"evidence" dynamodbav:"evidence"`
	DetectedAt   time.Time `json:"detected_at" dynamodbav:"detected_at"`
}

// PowerDynamics describes who is carrying the conversation. EffortAsymmetry is
// in [-1, 1]; negative means the user is putting in more effort.
type PowerDynamics struct {
	Leader          string   `json:"leader" dynamodbav:"leader"`
	EffortAsymmetry float64  `json:"effort_asymmetry" dynamodbav:"effort_asymmetry"`
	MessageRatio    *float64 `json:"message_ratio,omitempty" dynamodbav:"message_ratio,omitempty"`
}

// SuggestedReply is one candidate message the user could send.
type SuggestedReply struct {
	Text               string  `json:"text" dynamodbav:"text"`
	Tone               string  `json:"tone" dynamodbav:"tone"`
	SuccessProbability float64 `json:"success_probability" dynamodbav:"success_probability"`
	RiskLevel          string  `json:"risk_level" dynamodbav:"risk_level"`
	Rationale          *string `json:"rationale,omitempty" dynamodbav:"rationale,omitempty"`
}

// Analysis is one scored assessment of one screenshot. It is immutable once
// stored; the only mutation is deletion.
type Analysis struct {
	ID               string           `json:"id" dynamodbav:"id"`
	ConversationID   string           `json:"conversation_id" dynamodbav:"conversation_id"`
	UserID           string           `json:"user_id" dynamodbav:"user_id"`
	InterestScore    int              `json:"interest_score" dynamodbav:"interest_score"`
	VibeReport       VibeReport       `json:"vibe_report" dynamodbav:"vibe_report"`
	RedFlags         []Flag           `json:"red_flags" dynamodbav:"red_flags"`
	GreenFlags       []Flag           `json:"green_flags" dynamodbav:"green_flags"`
	PowerDynamics    PowerDynamics    `json:"power_dynamics" dynamodbav:"power_dynamics"`
	SuggestedReplies []SuggestedReply `json:"suggested_replies" dynamodbav:"suggested_replies"`
	WingmanNotes     string           `json:"wingman_notes" dynamodbav:"wingman_notes"`
	Timestamp        time.Time        `json:"timestamp" dynamodbav:"timestamp"`
	RawAIResponse    string           `json:"raw_ai_response,omitempty" dynamodbav:"raw_ai_response,omitempty"`
}

// TimelinePoint is one entry in a conversation's interest-score history.
type TimelinePoint struct {
	Timestamp     time.Time `json:"timestamp"`
	InterestScore int       `json:"interest_score"`
	AnalysisID    string    `json:"analysis_id"`
}

// Timeline maps analyses (oldest first) to timeline points.
func Timeline(analyses []Analysis) []TimelinePoint {
	points := make([]TimelinePoint, 0, len(analyses))
	for _, a := range analyses {
		points = append(points, TimelinePoint{
			Timestamp:     a.Timestamp,
			InterestScore: a.InterestScore,
			AnalysisID:    a.ID,
		})
	}
	return points
}
