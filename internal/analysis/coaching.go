package analysis

import (
	"fmt"
	"math"

	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
)

// RealityCheck is a short intervention aimed at an overthinking user.
type RealityCheck struct {
	Message        string `json:"message"`
	InterestScore  int    `json:"interest_score"`
	Recommendation string `json:"recommendation"`
}

// Coaching is action-oriented advice derived from one analysis.
type Coaching struct {
	PrimaryAdvice string   `json:"primary_advice"`
	ActionItems   []string `json:"action_items"`
	Warnings      []string `json:"warnings"`
}

// QuickStats is the compact summary shown in the extension popup.
type QuickStats struct {
	InterestScore         int     `json:"interest_score"`
	HealthScore           float64 `json:"health_score"`
	RedFlagsCount         int     `json:"red_flags_count"`
	GreenFlagsCount       int     `json:"green_flags_count"`
	SuggestedRepliesCount int     `json:"suggested_replies_count"`
	EngagementLevel       string  `json:"engagement_level"`
	OverallMood           string  `json:"overall_mood"`
}

// NewRealityCheck builds the reality-check message for an analysis.
func NewRealityCheck(a Analysis, prefs users.Preferences) RealityCheck {
	score := a.InterestScore
	var msg string
	switch {
	case score >= 70:
		msg = fmt.Sprintf("Stop overthinking! Interest score is %d/100. You have %d green flags. This conversation is going well. Trust the process.",
			score, len(a.GreenFlags))
	case score >= 50:
		msg = fmt.Sprintf("Interest score is %d/100 - this is neutral territory. Don't read into every detail. Give it time to develop naturally.", score)
	default:
		msg = fmt.Sprintf("Interest score is %d/100. ", score)
		if n := len(a.RedFlags); n > 0 {
			msg += fmt.Sprintf("There are %d red flags to consider. ", n)
		}
		msg += "It's okay to move on if this isn't working. Your time is valuable."
	}
	if prefs.AttachmentStyle == users.AttachmentAnxious {
		msg += " Remember: Your anxiety is not always accurate. Focus on the evidence."
	}

	rec := "reconsider"
	if score >= 50 {
		rec = "continue"
	}
	return RealityCheck{Message: msg, InterestScore: score, Recommendation: rec}
}

// NewCoaching derives action items and warnings from an analysis.
func NewCoaching(a Analysis) Coaching {
	c := Coaching{
		PrimaryAdvice: a.WingmanNotes,
		ActionItems:   []string{},
		Warnings:      []string{},
	}
	if a.InterestScore >= 70 {
		c.ActionItems = append(c.ActionItems,
			"Send one of the suggested replies within 30 minutes",
			"Don't overthink - the conversation is healthy")
	}
	for _, f := range a.RedFlags {
		if f.Severity == "high" {
			c.Warnings = append(c.Warnings, "Multiple high-severity red flags detected")
			break
		}
	}
	switch asym := a.PowerDynamics.EffortAsymmetry; {
	case asym < -0.3:
		c.ActionItems = append(c.ActionItems, "You're putting in more effort - consider matching their energy")
	case asym > 0.3:
		c.ActionItems = append(c.ActionItems, "They're putting in more effort - show more engagement")
	}
	return c
}

// NewQuickStats summarizes an analysis; the health score is rounded to one
// decimal place.
func NewQuickStats(a Analysis) QuickStats {
	return QuickStats{
		InterestScore:         a.InterestScore,
		HealthScore:           math.Round(HealthScore(a)*10) / 10,
		RedFlagsCount:         len(a.RedFlags),
		GreenFlagsCount:       len(a.GreenFlags),
		SuggestedRepliesCount: len(a.SuggestedReplies),
		EngagementLevel:       a.VibeReport.EngagementLevel,
		OverallMood:           a.VibeReport.OverallMood,
	}
}
