package chunker

import (
	"reflect"
	"testing"
)

func TestSentenceSegmenter_Split(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "simple sentences",
			input:    "A cat sat on the mat. A dog ran in the park.",
			expected: []string{"A cat sat on the mat.", "A dog ran in the park."},
		},
		{
			name:     "question and exclamation",
			input:    "Is it safe? Yes! It is.",
			expected: []string{"Is it safe?", "Yes!", "It is."},
		},
		{
			name:     "abbreviation does not split",
			input:    "Dr. Smith arrived late. He sat down.",
			expected: []string{"Dr. Smith arrived late.", "He sat down."},
		},
		{
			name:     "initials do not split",
			input:    "The book by J. Tolkien sold well. Many read it.",
			expected: []string{"The book by J. Tolkien sold well.", "Many read it."},
		},
		{
			name:     "lowercase continuation does not split",
			input:    "Use a dose, e.g. five units. Then wait.",
			expected: []string{"Use a dose, e.g. five units.", "Then wait."},
		},
		{
			name:     "decimal numbers",
			input:    "The value was 3.14 today. Fine.",
			expected: []string{"The value was 3.14 today.", "Fine."},
		},
		{
			name:     "closing quote stays with sentence",
			input:    `He said "stop." Then he left.`,
			expected: []string{`He said "stop."`, "Then he left."},
		},
		{
			name:     "no terminal punctuation",
			input:    "just some words",
			expected: []string{"just some words"},
		},
		{
			name:     "empty",
			input:    "   ",
			expected: nil,
		},
	}

	seg := NewSentenceSegmenter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := seg.Split(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Split(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}
