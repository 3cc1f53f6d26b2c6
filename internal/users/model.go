package users

import (
	"strings"
	"time"
)

// Attachment styles understood by the prompt builder.
const (
	AttachmentSecure   = "secure"
	AttachmentAnxious  = "anxious"
	AttachmentAvoidant = "avoidant"
)

// Dating goals understood by the prompt builder.
const (
	GoalCasual    = "casual"
	GoalSerious   = "serious"
	GoalExploring = "exploring"
)

// Stat counters that can be incremented on a user.
const (
	StatTotalAnalyses             = "total_analyses"
	StatOverthinkingInterventions = "overthinking_interventions"
	StatMessagesPrevented         = "messages_prevented"
)

// Preferences tune prompts and coaching for one user. AdvancedMode gates the
// OSINT enrichment branch.
type Preferences struct {
	AttachmentStyle    string `json:"attachment_style" dynamodbav:"attachment_style"`
	DatingGoal         string `json:"dating_goal" dynamodbav:"dating_goal"`
	CommunicationStyle string `json:"communication_style" dynamodbav:"communication_style"`
	AdvancedMode       bool   `json:"advanced_mode" dynamodbav:"advanced_mode"`
}

// Stats are usage counters. Increments may race across concurrent requests;
// an undercount is acceptable.
type Stats struct {
	TotalAnalyses             int `json:"total_analyses" dynamodbav:"total_analyses"`
	OverthinkingInterventions int `json:"overthinking_interventions" dynamodbav:"overthinking_interventions"`
	MessagesPrevented         int `json:"messages_prevented" dynamodbav:"messages_prevented"`
}

// User owns conversations and analyses. ID is the stable UUID carried as the
// JWT subject and used for every ownership field.
type User struct {
	ID          string      `json:"id" dynamodbav:"id"`
	Email       string      `json:"email,omitempty" dynamodbav:"email,omitempty"`
	Preferences Preferences `json:"preferences" dynamodbav:"preferences"`
	Stats       Stats       `json:"stats" dynamodbav:"stats"`
	CreatedAt   time.Time   `json:"created_at" dynamodbav:"created_at"`
}

// DefaultPreferences mirrors what a freshly registered user starts with.
func DefaultPreferences() Preferences {
	return Preferences{
		AttachmentStyle:    AttachmentSecure,
		DatingGoal:         GoalSerious,
		CommunicationStyle: "direct",
	}
}

// New returns a user with default preferences and zeroed stats.
func New(id, email string, now time.Time) User {
	return User{
		ID:          id,
		Email:       email,
		Preferences: DefaultPreferences(),
		CreatedAt:   now.UTC(),
	}
}

// Validate rejects unknown enum values. Empty fields are filled with defaults.
func (p *Preferences) Validate() error {
	defaults := DefaultPreferences()
	p.AttachmentStyle = strings.ToLower(strings.TrimSpace(p.AttachmentStyle))
	p.DatingGoal = strings.ToLower(strings.TrimSpace(p.DatingGoal))
	p.CommunicationStyle = strings.TrimSpace(p.CommunicationStyle)

	switch p.AttachmentStyle {
	case "":
		p.AttachmentStyle = defaults.AttachmentStyle
	case AttachmentSecure, AttachmentAnxious, AttachmentAvoidant:
	default:
		return ErrInvalidAttachmentStyle
	}
	switch p.DatingGoal {
	case "":
		p.DatingGoal = defaults.DatingGoal
	case GoalCasual, GoalSerious, GoalExploring:
	default:
		return ErrInvalidDatingGoal
	}
	if p.CommunicationStyle == "" {
		p.CommunicationStyle = defaults.CommunicationStyle
	}
	return nil
}

// ValidStat reports whether name is a known counter.
func ValidStat(name string) bool {
	switch name {
	case StatTotalAnalyses, StatOverthinkingInterventions, StatMessagesPrevented:
		return true
	}
	return false
}

// Increment bumps the named counter in place. Unknown names are ignored.
func (s *Stats) Increment(name string, delta int) {
	switch name {
	case StatTotalAnalyses:
		s.TotalAnalyses += delta
	case StatOverthinkingInterventions:
		s.OverthinkingInterventions += delta
	case StatMessagesPrevented:
		s.MessagesPrevented += delta
	}
}
