package vision

import (
	"strconv"
	"strings"
)

const unknownValue = "Unknown"

type Contact struct {
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

// Metadata is the best-effort identity read off a screenshot. Any field may
// be empty or a placeholder such as "unknown".
type Metadata struct {
	Platform        string   `json:"platform"`
	ParticipantName string   `json:"participant_name"`
	Username        string   `json:"username,omitempty"`
	Age             string   `json:"age,omitempty"`
	Location        string   `json:"location,omitempty"`
	Occupation      string   `json:"occupation,omitempty"`
	Education       string   `json:"education,omitempty"`
	Contact         *Contact `json:"contact,omitempty"`
	Interests       []string `json:"interests,omitempty"`
	Error           string   `json:"error,omitempty"`
}

func unknownMetadata(reason string) Metadata {
	return Metadata{
		Platform:        unknownValue,
		ParticipantName: unknownValue,
		Error:           reason,
	}
}

// Handle returns the best candidate for a username scan: the visible handle
// when there is one, otherwise the participant name. Placeholders count as
// missing.
func (m Metadata) Handle() string {
	if !missing(m.Username) {
		return m.Username
	}
	return m.ParticipantName
}

func missing(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "unknown", "n/a", "none", "null":
		return true
	}
	return false
}

func metadataFromMap(data map[string]any) Metadata {
	md := Metadata{
		Platform:        scalarString(data["platform"]),
		ParticipantName: scalarString(data["participant_name"]),
		Username:        scalarString(data["username"]),
		Age:             scalarString(data["age"]),
		Location:        scalarString(data["location"]),
		Occupation:      scalarString(data["occupation"]),
		Education:       scalarString(data["education"]),
	}
	if md.Platform == "" {
		md.Platform = unknownValue
	}
	if md.ParticipantName == "" {
		md.ParticipantName = unknownValue
	}

	if contact, ok := data["contact"].(map[string]any); ok {
		c := Contact{
			Phone: scalarString(contact["phone"]),
			Email: scalarString(contact["email"]),
		}
		if c.Phone != "" || c.Email != "" {
			md.Contact = &c
		}
	}

	if list, ok := data["interests"].([]any); ok {
		for _, item := range list {
			if s := scalarString(item); s != "" {
				md.Interests = append(md.Interests, s)
			}
		}
	}
	return md
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}
