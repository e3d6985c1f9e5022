package toolkit_test

import (
	"strings"
	"testing"
	"time"

	"github.com/cleesmith/writers-toolkit-gemini-sub000/pkg/toolkit"
)

func TestReportFileName(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got := toolkit.ReportFileName("rhythm_analyzer", ts)
	if got != "rhythm_analyzer_20240101T000000.txt" {
		t.Errorf("file name = %q", got)
	}
}

func TestReportHeader(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	header := toolkit.ReportHeader("Rhythm Analyzer", ts, 1200, 450)

	lines := strings.Split(header, "\n")
	if lines[0] != "=== RHYTHM ANALYZER REPORT ===" {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.Contains(header, "Prompt tokens: 1200") {
		t.Errorf("missing prompt tokens line: %q", header)
	}
	if !strings.Contains(header, "Response tokens: 450") {
		t.Errorf("missing response tokens line: %q", header)
	}
	if !strings.HasSuffix(header, "\n\n") {
		t.Errorf("header must end with a blank line before the body: %q", header)
	}
}
