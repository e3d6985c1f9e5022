package toolkit

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// reportTimestamp is the compact ISO form used in output filenames.
const reportTimestamp = "20060102T150405"

// ReportFileName builds the output filename for an artifact at a point in
// time, e.g. "rhythm_analyzer_20240101T000000.txt".
func ReportFileName(artifact string, ts time.Time) string {
	return fmt.Sprintf("%s_%s.txt", artifact, ts.Format(reportTimestamp))
}

// ReportHeader builds the plain-text block prefixed to every saved report.
func ReportHeader(title string, ts time.Time, promptTokens, responseTokens int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s REPORT ===\n", strings.ToUpper(title))
	fmt.Fprintf(&b, "Date: %s\n", ts.Format("January 2, 2006 3:04 PM"))
	fmt.Fprintf(&b, "Prompt tokens: %d\n", promptTokens)
	fmt.Fprintf(&b, "Response tokens: %d\n", responseTokens)
	b.WriteString("\n")
	return b.String()
}

// saveReport persists a report under dir and returns its absolute path.
// Filesystem failures here are fatal for the run.
func saveReport(dir string, t Tool, ts time.Time, promptTokens, responseTokens int, body string) (string, error) {
	path := filepath.Join(dir, ReportFileName(t.ArtifactName(), ts))
	content := ReportHeader(t.Title, ts, promptTokens, responseTokens) + body
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("save report: %w", err)
	}
	return path, nil
}

// appendToFile appends text to an existing file, creating it if needed.
// Used by tools that grow the manuscript.
func appendToFile(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		return err
	}
	return nil
}
