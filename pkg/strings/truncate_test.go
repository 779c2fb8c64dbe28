package strings

import (
	"testing"
)

func TestTruncateDescription(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{
			name:   "short string unchanged",
			input:  "hello",
			maxLen: 10,
			want:   "hello",
		},
		{
			name:   "exact length unchanged",
			input:  "hello",
			maxLen: 5,
			want:   "hello",
		},
		{
			name:   "long string truncated",
			input:  "hello world this is a long string",
			maxLen: 15,
			want:   "hello world ...",
		},
		{
			name:   "newlines collapsed to spaces",
			input:  "line one\nline two",
			maxLen: 40,
			want:   "line one line two",
		},
		{
			name:   "whitespace runs collapsed",
			input:  "spaced \t  out",
			maxLen: 40,
			want:   "spaced out",
		},
		{
			name:   "multi-byte runes preserved",
			input:  "héllo wörld 毎日の天気予報",
			maxLen: 10,
			want:   "héllo w...",
		},
		{
			name:   "maxLen clamped to minimum",
			input:  "abcdef",
			maxLen: 1,
			want:   "a...",
		},
		{
			name:   "empty input",
			input:  "",
			maxLen: 10,
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateDescription(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateDescription(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
