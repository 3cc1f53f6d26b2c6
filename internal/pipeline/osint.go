package pipeline

import (
	"context"
	"strings"

	"github.com/sherlock-labs/screenshot-sherlock/internal/osint"
)

// Messages returned by AnalyzeContext when no scan is run.
const (
	MsgNoTargetUsername = "No target username found in conversation metadata"
	MsgFullNameSkipped  = "Participant name appears to be a full name, not a username. OSINT skipped."
)

// ContextCheck is the outcome of AnalyzeContext: either a scan result or a
// message explaining why no scan ran.
type ContextCheck struct {
	Result  *osint.Result
	Message string
}

// CheckUsername runs an OSINT scan for a caller-supplied handle.
func (s *Service) CheckUsername(ctx context.Context, username string) (osint.Result, error) {
	if s.osint == nil {
		return osint.Result{}, ErrOSINTDisabled
	}
	handle, ok := osint.NormalizeHandle(username)
	if !ok {
		return osint.Result{}, invalid("not a valid username")
	}
	return s.osint.CheckUsername(ctx, handle), nil
}

// AnalyzeContext scans the participant name stored on a conversation.
// Display names containing spaces and placeholder names are skipped.
func (s *Service) AnalyzeContext(ctx context.Context, userID, conversationID string) (ContextCheck, error) {
	if s.osint == nil {
		return ContextCheck{}, ErrOSINTDisabled
	}
	conv, err := s.store.GetConversation(ctx, userID, conversationID)
	if err != nil {
		return ContextCheck{}, err
	}
	name := strings.TrimSpace(strings.ReplaceAll(conv.ParticipantName, "@", ""))
	if strings.ContainsAny(name, " \t") {
		return ContextCheck{Message: MsgFullNameSkipped}, nil
	}
	handle, ok := osint.NormalizeHandle(name)
	if !ok {
		return ContextCheck{Message: MsgNoTargetUsername}, nil
	}
	res := s.osint.CheckUsername(ctx, handle)
	return ContextCheck{Result: &res}, nil
}
