package litellm

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/Strob0t/quorumgate/internal/domain/task"
	"github.com/Strob0t/quorumgate/internal/domain/validation"
)

func TestTruncateDiff(t *testing.T) {
	tests := []struct {
		name  string
		diff  string
		limit int
		want  string
	}{
		{"short", "+a", 10, "+a"},
		{"exact", "abcd", 4, "abcd"},
		{"ascii", "abcdef", 4, "abcd\n[diff truncated]"},
		{"inside rune", "ab€cd", 3, "ab\n[diff truncated]"},
		{"after rune", "ab€cd", 5, "ab€\n[diff truncated]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateDiff(tt.diff, tt.limit)
			if got != tt.want {
				t.Fatalf("truncateDiff(%q, %d) = %q, want %q", tt.diff, tt.limit, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("truncated diff is not valid UTF-8: %q", got)
			}
		})
	}
}

func TestUserPromptKeepsMultibyteDiffValid(t *testing.T) {
	diff := "+" + strings.Repeat("€", maxDiffChars)
	tk := task.Task{ChangeType: task.ChangeQuality, Title: "umlauts", Diff: diff}
	prompt := userPrompt(&tk, &validation.ContextScope{ChangedFiles: []string{"a.go"}})
	if !utf8.ValidString(prompt) {
		t.Fatal("prompt contains a split UTF-8 sequence")
	}
	if !strings.Contains(prompt, "[diff truncated]") {
		t.Fatal("expected truncation marker")
	}
}
