package analysis

import "math"

// HealthScore derives a 0-10 conversation health score from one analysis.
func HealthScore(a Analysis) float64 {
	score := float64(a.InterestScore) / 10

	penalty := float64(len(a.RedFlags)) * 0.5
	for _, f := range a.RedFlags {
		switch f.Severity {
		case "high":
			penalty += 1.0
		case "medium":
			penalty += 0.5
		}
	}
	score -= penalty
	score += float64(len(a.GreenFlags)) * 0.2
	score -= 0.5 * math.Abs(a.PowerDynamics.EffortAsymmetry)

	return math.Max(0, math.Min(10, score))
}

// Overthinking is the verdict of DetectOverthinking. Severity is empty when
// IsOverthinking is false.
type Overthinking struct {
	IsOverthinking bool   `json:"is_overthinking"`
	Reason         string `json:"reason"`
	Severity       string `json:"severity,omitempty"`
}

const (
	rapidGapSeconds     = 300
	veryRapidGapSeconds = 60
	lowInterestAverage  = 40
)

// DetectOverthinking inspects a user's recent analyses, newest first. Checks
// run in a fixed order and exactly one verdict is returned.
func DetectOverthinking(recent []Analysis) Overthinking {
	if len(recent) < 2 {
		return Overthinking{Reason: "Insufficient data"}
	}

	var total float64
	for i := 1; i < len(recent); i++ {
		total += recent[i-1].Timestamp.Sub(recent[i].Timestamp).Seconds()
	}
	meanGap := total / float64(len(recent)-1)
	if meanGap < rapidGapSeconds {
		severity := "medium"
		if meanGap < veryRapidGapSeconds {
			severity = "high"
		}
		return Overthinking{
			IsOverthinking: true,
			Reason:         "Multiple analyses in short time period",
			Severity:       severity,
		}
	}

	// The low-interest rule looks at the oldest three of the window.
	if len(recent) >= 3 {
		tail := recent[len(recent)-3:]
		sum := tail[0].InterestScore + tail[1].InterestScore + tail[2].InterestScore
		if float64(sum)/3 < lowInterestAverage {
			return Overthinking{
				IsOverthinking: true,
				Reason:         "Low interest scores may be causing anxiety",
				Severity:       "medium",
			}
		}
	}

	return Overthinking{Reason: "Normal usage pattern"}
}
