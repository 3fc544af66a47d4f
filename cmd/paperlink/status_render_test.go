package main

import (
	"bytes"
	"strings"
	"testing"

	"paperlink/internal/pipeline"
)

func TestRenderStatusLine(t *testing.T) {
	line := renderStatusLine("Conflicts", statusError, "3", false)
	if !strings.Contains(line, "Conflicts:") || !strings.Contains(line, "[ERROR] 3") {
		t.Fatalf("line = %q", line)
	}
	if strings.Contains(line, ansiRed) {
		t.Fatal("colorless render must not contain escape codes")
	}

	colored := renderStatusLine("Applied", statusOK, "7", true)
	if !strings.HasPrefix(colored, ansiGreen) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("colored line = %q", colored)
	}
}

func TestShouldColorizeNonFile(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("plain buffers are not terminals")
	}
}

func TestRenderSummary(t *testing.T) {
	summary := &pipeline.Summary{
		RunID:     "run-1",
		DryRun:    true,
		Entries:   10,
		New:       4,
		Applied:   3,
		Conflicts: 1,
	}
	rendered := renderSummary(summary)
	if !strings.Contains(rendered, "run-1") || !strings.Contains(rendered, "(dry run)") {
		t.Fatalf("rendered = %q", rendered)
	}
	if !strings.Contains(rendered, "Applied") {
		t.Fatalf("rendered summary missing counters:\n%s", rendered)
	}
}
