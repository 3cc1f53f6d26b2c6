package analysis

import (
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Defaults applied when the model omits a field or returns the wrong shape.
const (
	DefaultInterestScore      = 50
	DefaultMood               = "neutral"
	DefaultEngagement         = "medium"
	DefaultCommunicationStyle = "secure"
	DefaultFlagType           = "unknown"
	DefaultSeverity           = "low"
	DefaultSignificance       = "medium"
	DefaultLeader             = "balanced"
	DefaultTone               = "direct"
	DefaultSuccessProbability = 0.5
	DefaultRiskLevel          = "low"
	DefaultWingmanNotes       = "Keep the conversation going!"
)

// Normalize converts raw model JSON into a complete Analysis. It never fails:
// anything missing, mistyped or out of range falls back to its default.
// Out-of-range numbers (interest_score outside 0..100, a fractional score,
// effort_asymmetry outside [-1,1], success_probability outside [0,1]) take
// the default rather than being clamped.
func Normalize(raw map[string]any, conversationID, userID string, now time.Time) Analysis {
	now = now.UTC()
	vibe := objectField(raw, "vibe_report")
	power := objectField(raw, "power_dynamics")

	return Analysis{
		ConversationID: conversationID,
		UserID:         userID,
		InterestScore:  interestScore(raw["interest_score"]),
		VibeReport: VibeReport{
			OverallMood:          stringField(vibe, "overall_mood", DefaultMood),
			EngagementLevel:      stringField(vibe, "engagement_level", DefaultEngagement),
			CommunicationStyle:   stringField(vibe, "communication_style", DefaultCommunicationStyle),
			EmotionalTemperature: floatField(vibe, "emotional_temperature", 0, math.Inf(-1), math.Inf(1)),
		},
		RedFlags:   normalizeFlags(raw["red_flags"], "severity", DefaultSeverity, now),
		GreenFlags: normalizeFlags(raw["green_flags"], "significance", DefaultSignificance, now),
		PowerDynamics: PowerDynamics{
			Leader:          stringField(power, "leader", DefaultLeader),
			EffortAsymmetry: floatField(power, "effort_asymmetry", 0, -1, 1),
			MessageRatio:    optionalFloat(power, "message_ratio"),
		},
		SuggestedReplies: NormalizeReplies(raw["suggested_replies"]),
		WingmanNotes:     stringField(raw, "wingman_notes", DefaultWingmanNotes),
		Timestamp:        now,
	}
}

// NormalizeReplies applies reply defaults to an arbitrary list value. It is
// shared with the standalone reply-suggestion flow.
func NormalizeReplies(v any) []SuggestedReply {
	items, _ := v.([]any)
	replies := make([]SuggestedReply, 0, len(items))
	for _, item := range items {
		var m map[string]any
		switch val := item.(type) {
		case map[string]any:
			m = val
		case string:
			m = map[string]any{"text": val}
		default:
			continue
		}
		reply := SuggestedReply{
			Text:               stringField(m, "text", ""),
			Tone:               stringField(m, "tone", DefaultTone),
			SuccessProbability: floatField(m, "success_probability", DefaultSuccessProbability, 0, 1),
			RiskLevel:          stringField(m, "risk_level", DefaultRiskLevel),
		}
		if r := stringField(m, "rationale", ""); r != "" {
			reply.Rationale = &r
		}
		replies = append(replies, reply)
	}
	return replies
}

// Backfill returns platform and participant name from the model output when
// they carry a real value.
func Backfill(raw map[string]any) (platform, participant string) {
	return knownString(raw, "platform"), knownString(raw, "participant_name")
}

func normalizeFlags(v any, levelKey, levelDefault string, now time.Time) []Flag {
	items, _ := v.([]any)
	flags := make([]Flag, 0, len(items))
	for _, item := range items {
		var m map[string]any
		switch val := item.(type) {
		case map[string]any:
			m = val
		case string:
			// a bare string is the flag type
			m = map[string]any{"type": val}
		default:
			continue
		}
		flag := Flag{
			Type:       stringField(m, "type", DefaultFlagType),
			Evidence:   stringField(m, "evidence", ""),
			DetectedAt: now,
		}
		level := strings.ToLower(stringField(m, levelKey, levelDefault))
		if levelKey == "severity" {
			flag.Severity = level
		} else {
			flag.Significance = level
		}
		flags = append(flags, flag)
	}
	return flags
}

func interestScore(v any) int {
	f, ok := number(v)
	if !ok || f != math.Trunc(f) || f < 0 || f > 100 {
		return DefaultInterestScore
	}
	return int(f)
}

func objectField(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	obj, _ := m[key].(map[string]any)
	return obj
}

func stringField(m map[string]any, key, def string) string {
	if m == nil {
		return def
	}
	s, ok := m[key].(string)
	if !ok {
		return def
	}
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

func knownString(m map[string]any, key string) string {
	s := stringField(m, key, "")
	switch strings.ToLower(s) {
	case "unknown", "null", "none", "n/a":
		return ""
	}
	return s
}

func floatField(m map[string]any, key string, def, lo, hi float64) float64 {
	if m == nil {
		return def
	}
	f, ok := number(m[key])
	if !ok || f < lo || f > hi {
		return def
	}
	return f
}

func optionalFloat(m map[string]any, key string) *float64 {
	if m == nil {
		return nil
	}
	f, ok := number(m[key])
	if !ok || f < 0 {
		return nil
	}
	return &f
}

// number accepts the numeric shapes a decoded JSON document can hold.
// Numeric strings are rejected.
func number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
