package probe

import (
	"regexp"
	"strings"
)

// titlePattern matches the first <title> element, tolerating attributes.
var titlePattern = regexp.MustCompile(`(?i)<title[^>]*>([^<]+)</title>`)

// ExtractTitle returns the trimmed text of the first <title> tag in body.
// Returns an empty string when there is no title or it is blank.
func ExtractTitle(body []byte) string {
	m := titlePattern.FindSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(string(m[1]))
}
