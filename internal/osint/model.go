package osint

import (
	"encoding/json"
	"strings"
)

// ScanModeFast labels results produced by the tool's fast scan.
const ScanModeFast = "Fast Scan Mode"

// Account is one profile the enumeration tool reported as existing.
type Account struct {
	Site        string `json:"site"`
	URL         string `json:"url"`
	Status      string `json:"status"`
	PageSummary string `json:"page_summary,omitempty"`
}

// Result is the outcome of an enrichment run. A failed run carries only
// Error; callers proceed without OSINT context in that case.
type Result struct {
	Username      string    `json:"username"`
	FoundAccounts []Account `json:"found_accounts"`
	TotalChecked  string    `json:"total_checked"`
	Error         string    `json:"error,omitempty"`
}

// Failed reports whether the run degraded to an error result.
func (r Result) Failed() bool {
	return r.Error != ""
}

// MarshalJSON emits {"error": ...} for failed results.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	type plain Result
	out := plain(r)
	if out.FoundAccounts == nil {
		out.FoundAccounts = []Account{}
	}
	return json.Marshal(out)
}

func errorResult(msg string) Result {
	return Result{Error: msg}
}

var sentinelHandles = map[string]bool{
	"unknown": true,
	"null":    true,
	"none":    true,
}

// NormalizeHandle strips a leading "@" and surrounding whitespace, then
// rejects values that cannot be a username: empty, containing whitespace or
// a path separator, or a placeholder such as "unknown".
func NormalizeHandle(raw string) (string, bool) {
	h := strings.TrimSpace(raw)
	h = strings.TrimPrefix(h, "@")
	h = strings.TrimSpace(h)
	if h == "" || sentinelHandles[strings.ToLower(h)] {
		return "", false
	}
	if strings.ContainsAny(h, " \t\r\n/\\") || h == "." || h == ".." {
		return "", false
	}
	return h, true
}
