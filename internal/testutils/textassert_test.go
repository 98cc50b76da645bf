package testutils

import (
	"strings"
	"testing"
)

func TestTextAsserter_DefaultOptions(t *testing.T) {
	opts := NewTextAsserter(t).Options()

	if opts.IgnoreLeadingWhitespace {
		t.Error("IgnoreLeadingWhitespace should default to false")
	}
	if !opts.IgnoreTrailingWhitespace {
		t.Error("IgnoreTrailingWhitespace should default to true")
	}
	if !opts.TrimSpace {
		t.Error("TrimSpace should default to true")
	}
	if opts.EnableColors {
		t.Error("EnableColors should default to false")
	}
}

func TestTextAsserter_Compare(t *testing.T) {
	tests := []struct {
		name     string
		opts     []TextOption
		actual   string
		expected string
		wantFail bool
	}{
		{
			name:     "trailing spaces and outer blank lines ignored by default",
			actual:   "\nADDRESS  NAME   \nspeaker\n\n",
			expected: "ADDRESS  NAME\nspeaker",
		},
		{
			name:     "content difference",
			actual:   "00:1A:7D:DA:71:13  Speaker",
			expected: "00:1A:7D:DA:71:13  Headset",
			wantFail: true,
		},
		{
			name:     "leading whitespace matters by default",
			actual:   "  line",
			expected: "line",
			opts:     []TextOption{WithTrimSpace(false)},
			wantFail: true,
		},
		{
			name:     "leading whitespace ignored",
			actual:   "a\n    b",
			expected: "a\nb",
			opts:     []TextOption{WithIgnoreLeadingWhitespace(true)},
		},
		{
			name:     "empty lines ignored",
			actual:   "a\n\n\nb",
			expected: "a\nb",
			opts:     []TextOption{WithIgnoreEmptyLines(true)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recordingT{}
			NewTextAsserter(rec).WithOptions(tt.opts...).Assert(tt.actual, tt.expected)
			if rec.failed() != tt.wantFail {
				t.Errorf("wantFail=%v, got errors: %v", tt.wantFail, rec.errors)
			}
		})
	}
}

func TestTextAsserter_DiffOutput(t *testing.T) {
	diff := NewTextAsserter(t).Diff("a\nc", "a\nb")
	if !strings.Contains(diff, "-b") || !strings.Contains(diff, "+c") {
		t.Errorf("diff should show removed and added lines, got:\n%s", diff)
	}

	colored := NewTextAsserter(t).WithOptions(WithEnableColors(true)).Diff("x y", "x z")
	if !strings.Contains(colored, "\x1b[") {
		t.Errorf("colored diff should carry ANSI escapes, got:\n%q", colored)
	}
	if !strings.Contains(colored, "x·y") {
		t.Errorf("colored diff should make spaces visible, got:\n%q", colored)
	}
}
