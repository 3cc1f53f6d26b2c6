package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name  string
		input string
		score float64
	}{
		{name: "bare object", input: `{"interest_score": 72}`, score: 72},
		{name: "json fence", input: "```json\n{\"interest_score\": 61}\n```", score: 61},
		{name: "plain fence", input: "```\n{\"interest_score\": 40}\n```", score: 40},
		{name: "prose around object", input: "Here is the analysis:\n{\"interest_score\": 88, \"wingman_notes\": \"ok\"}\nHope this helps!", score: 88},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			obj, err := ExtractJSON(tc.input)
			require.NoError(t, err)
			assert.Equal(t, tc.score, obj["interest_score"])
		})
	}
}

func TestExtractJSONFailures(t *testing.T) {
	for _, input := range []string{
		"",
		"I cannot analyze this image.",
		"[1, 2, 3]",
		"{not json at all}",
		"} backwards {",
	} {
		_, err := ExtractJSON(input)
		assert.ErrorIs(t, err, ErrNoJSON, "input %q", input)
	}
}
