package users

import "errors"

var (
	// ErrInvalidAttachmentStyle is returned for styles outside secure/anxious/avoidant.
	ErrInvalidAttachmentStyle = errors.New("attachment_style must be secure, anxious or avoidant")

	// ErrInvalidDatingGoal is returned for goals outside casual/serious/exploring.
	ErrInvalidDatingGoal = errors.New("dating_goal must be casual, serious or exploring")
)
