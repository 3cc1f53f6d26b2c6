package prompt

import (
	"fmt"
	"strings"

	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
	"github.com/sherlock-labs/screenshot-sherlock/internal/users"
)

// Stage is how far along a conversation is.
type Stage string

const (
	StageEarly       Stage = "early"
	StageEstablished Stage = "established"
)

// earlyStageMaxScreenshots is the largest screenshot count still considered early.
const earlyStageMaxScreenshots = 3

// StageFor infers the stage from how many screenshots a conversation holds.
func StageFor(screenshots int) Stage {
	if screenshots <= earlyStageMaxScreenshots {
		return StageEarly
	}
	return StageEstablished
}

// Build assembles the analysis system prompt: framework, then preference
// clauses, then the stage clause, then the OSINT block. prefs and findings
// may be nil. A failed OSINT result is treated as absent.
func Build(prefs *users.Preferences, stage Stage, findings *osint.Result) string {
	var b strings.Builder
	b.WriteString(analysisFramework)

	if prefs != nil {
		b.WriteString(preferenceClauses(*prefs))
	}
	if stage == StageEarly {
		b.WriteString("\n\nCONVERSATION STAGE: Early dating (high stakes)\n")
		b.WriteString("- Patterns are being established right now\n")
		b.WriteString("- Small details carry more weight\n")
		b.WriteString("- Focus on effort matching and genuine interest\n")
	}
	if findings != nil && !findings.Failed() {
		b.WriteString("\n")
		b.WriteString(OSINTBlock(*findings))
	}
	return b.String()
}

func preferenceClauses(p users.Preferences) string {
	var b strings.Builder
	b.WriteString("\n\nUSER CONTEXT:\n")
	if p.AttachmentStyle == users.AttachmentAnxious {
		b.WriteString("- This person has an anxious attachment style.\n")
		b.WriteString("- They tend to over-interpret delays and short messages\n")
		b.WriteString("- Reassure them when things are actually fine\n")
		b.WriteString("- Call out catastrophizing: 'Your anxiety is lying to you'\n")
		b.WriteString("- Weigh evidence over feelings\n\n")
	}
	if p.DatingGoal == users.GoalSerious {
		b.WriteString("- They are looking for a serious relationship.\n")
		b.WriteString("- Prioritize flags about long-term compatibility\n")
		b.WriteString("- Flag avoidant behavior more prominently\n")
		b.WriteString("- Emphasize consistency and emotional availability\n\n")
	}
	return b.String()
}

// OSINTBlock renders enrichment findings for the prompt. An empty result
// states that nothing was found instead of listing profiles.
func OSINTBlock(r osint.Result) string {
	var b strings.Builder
	b.WriteString("\n=== OSINT BACKGROUND CHECK ===\n")
	if len(r.FoundAccounts) == 0 {
		fmt.Fprintf(&b, "No public profiles found for username '%s'. This might suggest a fake profile or privacy-conscious user.\n", r.Username)
		return b.String()
	}

	fmt.Fprintf(&b, "Target Username: %s\n", r.Username)
	b.WriteString("Found Profiles (with content summary):\n")
	for _, acc := range r.FoundAccounts {
		fmt.Fprintf(&b, "- %s: %s\n", acc.Site, acc.URL)
		if acc.PageSummary != "" {
			fmt.Fprintf(&b, "  Content Preview: %s\n", acc.PageSummary)
		}
	}
	b.WriteString("\nINSTRUCTIONS FOR OSINT INTEGRATION:\n")
	b.WriteString("1. Cross-reference the conversation with these found profiles.\n")
	b.WriteString("2. Detect inconsistencies (e.g., lying about job, location, interests).\n")
	b.WriteString("3. Use profile content to suggest deeper conversation topics.\n")
	b.WriteString("4. Assess 'Catfish' risk if profile data mismatches the conversation.\n")
	return b.String()
}

// ReplyRequest builds the user turn for standalone reply suggestions.
func ReplyRequest(conversationContext string, prefs *users.Preferences) string {
	var b strings.Builder
	b.WriteString("Based on this conversation context, suggest 3 reply options:\n\n")
	b.WriteString(strings.TrimSpace(conversationContext))
	b.WriteString("\n")
	if prefs != nil {
		style := prefs.CommunicationStyle
		if style == "" {
			style = "direct"
		}
		goal := prefs.DatingGoal
		if goal == "" {
			goal = users.GoalSerious
		}
		fmt.Fprintf(&b, "\nUSER PREFERENCES:\n- Communication Style: %s\n- Dating Goal: %s\nPlease tailor the replies to match this style and goal.\n", style, goal)
	}
	b.WriteString(`
Return JSON: {"suggestions": [{"text": "...", "tone": "enthusiastic/playful/mysterious/direct", "success_probability": 0.75, "risk_level": "low/medium/high", "rationale": "why this works"}]}`)
	return b.String()
}
