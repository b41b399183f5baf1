package cleaner

import "testing"

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "empty", input: "", expected: ""},
		{name: "collapse whitespace", input: "  a\tb\n\n c  ", expected: "a b c"},
		{name: "drop non-ascii", input: "café naïve\u2028line", expected: "caf nave line"},
		{name: "unicode spaces separate words", input: "naïve\u2028line\u00a0break\u3000here", expected: "nave line break here"},
		{name: "cut at references", input: "Body text. References [1] Smith.", expected: "Body text."},
		{name: "cut case-insensitive", input: "Body. BIBLIOGRAPHY list", expected: "Body."},
		{name: "earliest marker wins", input: "Body. Bibliography a. References b.", expected: "Body."},
		{name: "marker inside a word is kept", input: "Set user preferences and cross-references here.", expected: "Set user preferences and cross-references here."},
		{name: "preserve case and punctuation", input: "Hello, World!", expected: "Hello, World!"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.input); got != tt.expected {
				t.Errorf("Clean(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
