package osint

import (
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// PreviewLength is the number of characters kept from a profile page.
const PreviewLength = 200

// skippedElements never contribute text. meta and link are void elements and
// carry no text, so only container elements need tracking.
var skippedElements = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"header":   true,
	"footer":   true,
	"nav":      true,
	"template": true,
}

// ExtractText returns the visible text of an HTML document with whitespace
// collapsed to single spaces.
func ExtractText(doc string) string {
	z := html.NewTokenizer(strings.NewReader(doc))
	var parts []string
	depth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			if z.Err() != io.EOF {
				return stripTags(doc)
			}
			return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] && depth > 0 {
				depth--
			}
		case html.TextToken:
			if depth == 0 {
				parts = append(parts, string(z.Text()))
			}
		}
	}
}

// stripTags is the tag-removal fallback used if tokenizing fails.
func stripTags(doc string) string {
	var b strings.Builder
	inTag := false
	for _, r := range doc {
		switch {
		case r == '<':
			inTag = true
			b.WriteRune(' ')
		case r == '>' && inTag:
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(html.UnescapeString(b.String())), " ")
}

// Preview truncates text to PreviewLength characters, appending "..." when
// anything was cut.
func Preview(text string) string {
	if utf8.RuneCountInString(text) <= PreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:PreviewLength]) + "..."
}
