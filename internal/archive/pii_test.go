package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrubPII(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"email", `"contact": {"email": "jane@example.com"}`, `"contact": {"email": "[EMAIL]"}`},
		{"phone", "text me at (330) 333-2654", "text me at[PHONE]"},
		{"phone with plus", "her number is +15005550002", "her number is [PHONE]"},
		{"both", "email: a@b.com phone: 330-333-2654", "email: [EMAIL] phone:[PHONE]"},
		{"no pii", `{"interest_score": 72}`, `{"interest_score": 72}`},
		{"name kept", "participant_name: Sarah Lee", "participant_name: Sarah Lee"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ScrubPII(tt.input))
		})
	}
}
