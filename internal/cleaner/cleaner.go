// Package cleaner normalizes extracted document text before chunking.
package cleaner

import (
	"regexp"
	"strings"
	"unicode"
)

var whitespace = regexp.MustCompile(`\s+`)

// backMatter marks where references start; text from the first standalone
// match on is dropped. Hyphenated compounds such as cross-references do not count.
var backMatter = regexp.MustCompile(`(?i)(?:^|[^\w-])(references|bibliography)\b`)

// Clean turns Unicode spaces into ASCII spaces, drops other non-ASCII
// characters, collapses whitespace runs to a single space and cuts the text
// at the first back-matter heading. Case and punctuation are preserved.
func Clean(text string) string {
	if text == "" {
		return ""
	}
	ascii := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, text)
	normalized := whitespace.ReplaceAllString(ascii, " ")
	if loc := backMatter.FindStringSubmatchIndex(normalized); loc != nil {
		normalized = normalized[:loc[2]]
	}
	return strings.TrimSpace(normalized)
}
