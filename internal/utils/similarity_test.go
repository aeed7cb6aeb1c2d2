package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		s1, s2  string
		wantMin float64
		wantMax float64
	}{
		{
			name:    "Exact match",
			s1:      "Dr. Jane Smith",
			s2:      "Dr. Jane Smith",
			wantMin: 1.0,
			wantMax: 1.0,
		},
		{
			name:    "Case and whitespace insensitive",
			s1:      "  Jane   Smith ",
			s2:      "jane smith",
			wantMin: 1.0,
			wantMax: 1.0,
		},
		{
			name:    "Substring containment",
			s1:      "Professor of Computer Science",
			s2:      "Computer Science",
			wantMin: 0.85,
			wantMax: 1.0,
		},
		{
			name:    "Minor typo stays above threshold",
			s1:      "j.smith@example.edu",
			s2:      "j.smith@exampl.edu",
			wantMin: 0.8,
			wantMax: 0.99,
		},
		{
			name:    "Unrelated strings score low",
			s1:      "Jane Smith",
			s2:      "Quarterly Revenue Report",
			wantMin: 0.0,
			wantMax: 0.5,
		},
		{
			name:    "Empty versus non-empty",
			s1:      "",
			s2:      "anything",
			wantMin: 0.0,
			wantMax: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Similarity(tt.s1, tt.s2)
			assert.GreaterOrEqual(t, got, tt.wantMin, "similarity below expected range")
			assert.LessOrEqual(t, got, tt.wantMax, "similarity above expected range")
		})
	}
}

func TestSimilarity_Symmetric(t *testing.T) {
	a, b := "Department of Physics", "Physics"
	assert.InDelta(t, Similarity(a, b), Similarity(b, a), 0.0001, "similarity should be symmetric")
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("abc", "abc"))
	assert.Equal(t, 1, levenshtein("abc", "abd"))
	assert.Equal(t, 3, levenshtein("", "abc"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", TruncateString("short", 10))
	assert.Equal(t, "abcde...", TruncateString("abcdefghij", 5))
}

func TestClipString(t *testing.T) {
	assert.Equal(t, "short", ClipString("short", 10))
	assert.Equal(t, "abcde", ClipString("abcdefghij", 5))
	assert.LessOrEqual(t, len(ClipString("abcdefghij", 5)), 5, "clip never exceeds the bound")
}
