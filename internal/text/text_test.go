package text

import (
	"strings"
	"testing"
)

func TestGraphemeLen(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"hello", 5},
		{"héllo", 5},
		{"👍", 1},
		{"👩‍👩‍👧‍👦", 1}, // ZWJ family sequence is one cluster
		{"a👍b", 3},
	}
	for _, tt := range tests {
		if got := GraphemeLen(tt.in); got != tt.want {
			t.Errorf("GraphemeLen(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTruncateGraphemes(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 3, "hel"},
		{"hello", 0, ""},
		{"hello", -1, ""},
		{"👍👍👍", 2, "👍👍"},
		{"👩‍👩‍👧‍👦x", 1, "👩‍👩‍👧‍👦"},
	}
	for _, tt := range tests {
		if got := TruncateGraphemes(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateGraphemes(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestTruncateLongReply(t *testing.T) {
	in := strings.Repeat("é", 1200)
	out := TruncateGraphemes(in, 1000)
	if got := GraphemeLen(out); got != 1000 {
		t.Errorf("truncated length = %d graphemes, want 1000", got)
	}
	if !strings.HasPrefix(in, out) {
		t.Error("truncation must be a prefix of the input")
	}
}
