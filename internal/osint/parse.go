package osint

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"strings"
)

// ParseOutput extracts one Account per URL found in the tool's result file.
// Any whitespace-separated word starting with "http" counts as a URL.
// Duplicate URLs are reported once.
func ParseOutput(r io.Reader) ([]Account, error) {
	seen := make(map[string]bool)
	accounts := []Account{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.Contains(line, "http") {
			continue
		}
		for _, word := range strings.Fields(line) {
			if !strings.HasPrefix(word, "http") || seen[word] {
				continue
			}
			seen[word] = true
			accounts = append(accounts, Account{
				Site:   hostOf(word),
				URL:    word,
				Status: "found",
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return accounts, fmt.Errorf("osint: scan output: %w", err)
	}
	return accounts, nil
}

// ReadOutputFile parses the result file at path. A missing file yields an
// empty set, not an error.
func ReadOutputFile(path string) ([]Account, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Account{}, nil
		}
		return nil, fmt.Errorf("osint: open output %s: %w", path, err)
	}
	defer f.Close()
	return ParseOutput(f)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
