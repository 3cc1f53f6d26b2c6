package store

import (
	"time"

	"github.com/sherlock-labs/screenshot-sherlock/internal/analysis"
)

// Screenshot is one uploaded image. Exactly one of ImageData (base64) or
// StorageKey (object storage key) is set.
type Screenshot struct {
	ImageData  string    `json:"image_data,omitempty" dynamodbav:"image_data,omitempty"`
	StorageKey string    `json:"storage_key,omitempty" dynamodbav:"storage_key,omitempty"`
	MIMEType   string    `json:"mime_type" dynamodbav:"mime_type"`
	Width      int       `json:"width,omitempty" dynamodbav:"width,omitempty"`
	Height     int       `json:"height,omitempty" dynamodbav:"height,omitempty"`
	UploadedAt time.Time `json:"uploaded_at" dynamodbav:"uploaded_at"`
}

// Conversation groups the screenshots of one chat thread.
type Conversation struct {
	ID              string       `json:"id" dynamodbav:"id"`
	UserID          string       `json:"user_id" dynamodbav:"user_id"`
	Platform        string       `json:"platform" dynamodbav:"platform"`
	ParticipantName string       `json:"participant_name,omitempty" dynamodbav:"participant_name,omitempty"`
	Screenshots     []Screenshot `json:"screenshots" dynamodbav:"screenshots"`
	CreatedAt       time.Time    `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at" dynamodbav:"updated_at"`
}

// Screenshot returns the screenshot at index i.
func (c Conversation) Screenshot(i int) (Screenshot, error) {
	if i < 0 || i >= len(c.Screenshots) {
		return Screenshot{}, ErrScreenshotIndex
	}
	return c.Screenshots[i], nil
}

// Pruned reports what PruneAnalyses removed. Conversations keep their
// screenshots so archived payloads can be cleaned up by the caller.
type Pruned struct {
	Analyses      int
	Conversations []Conversation
}

// StorageKeys lists the archive keys held by the removed conversations.
func (p Pruned) StorageKeys() []string {
	var keys []string
	for _, c := range p.Conversations {
		for _, shot := range c.Screenshots {
			if shot.StorageKey != "" {
				keys = append(keys, shot.StorageKey)
			}
		}
	}
	return keys
}

// MetaUpdate carries optional conversation field changes; nil means keep.
type MetaUpdate struct {
	Platform        *string
	ParticipantName *string
}

func (u MetaUpdate) empty() bool {
	return u.Platform == nil && u.ParticipantName == nil
}

func fillConversation(c *Conversation) {
	if c.Screenshots == nil {
		c.Screenshots = []Screenshot{}
	}
}

func fillAnalysis(a *analysis.Analysis) {
	if a.RedFlags == nil {
		a.RedFlags = []analysis.Flag{}
	}
	if a.GreenFlags == nil {
		a.GreenFlags = []analysis.Flag{}
	}
	if a.SuggestedReplies == nil {
		a.SuggestedReplies = []analysis.SuggestedReply{}
	}
}
