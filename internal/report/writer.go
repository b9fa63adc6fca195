// Package report writes terminal task artifacts: the human-readable outcome
// report and the relocation of the plan document into its archive or retry
// directory.
package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/davidmying/wingman/internal/plan"
	"github.com/davidmying/wingman/models"
)

// Writer persists reports and relocates finished plan documents.
type Writer struct {
	reportsDir string
	archiveDir string
	retryDir   string
}

// NewWriter creates a Writer. Directories are created lazily on first write.
func NewWriter(reportsDir, archiveDir, retryDir string) *Writer {
	return &Writer{
		reportsDir: reportsDir,
		archiveDir: archiveDir,
		retryDir:   retryDir,
	}
}

// WriteReport renders the report as markdown and writes it to the reports
// directory. It returns the path of the written file.
func (w *Writer) WriteReport(rep models.Report) (string, error) {
	if rep.WrittenAt.IsZero() {
		rep.WrittenAt = time.Now().UTC()
	}
	if err := os.MkdirAll(w.reportsDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}

	path := filepath.Join(w.reportsDir, entryName(rep.WrittenAt, rep.RequestID, rep.TraceID)+".md")
	if err := os.WriteFile(path, []byte(renderMarkdown(rep)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// Archive moves a completed plan into the archive directory, rewriting its
// status line to completed. The source file is removed only after the
// destination write succeeds.
func (w *Writer) Archive(planPath string) (string, error) {
	return w.relocate(planPath, w.archiveDir, models.StatusCompleted)
}

// Retry moves a failed plan into the retry directory for later reprocessing,
// rewriting its status line to failed.
func (w *Writer) Retry(planPath string) (string, error) {
	return w.relocate(planPath, w.retryDir, models.StatusFailed)
}

func (w *Writer) relocate(planPath, destDir string, status models.PlanStatus) (string, error) {
	doc, err := os.ReadFile(planPath)
	if err != nil {
		return "", fmt.Errorf("failed to read plan %s: %w", planPath, err)
	}
	updated, err := plan.RewriteStatus(string(doc), status)
	if err != nil {
		// A plan that reached the terminal stage parsed once already; still,
		// move it verbatim rather than losing it.
		updated = string(doc)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", destDir, err)
	}
	dest := filepath.Join(destDir, filepath.Base(planPath))
	if err := os.WriteFile(dest, []byte(updated), 0o644); err != nil {
		return "", fmt.Errorf("failed to write plan to %s: %w", dest, err)
	}
	if err := os.Remove(planPath); err != nil {
		return "", fmt.Errorf("failed to remove original plan %s: %w", planPath, err)
	}
	return dest, nil
}

func renderMarkdown(rep models.Report) string {
	var b strings.Builder
	outcome := "FAILED"
	if rep.Success {
		outcome = "SUCCEEDED"
	}
	fmt.Fprintf(&b, "# Task Report: %s\n\n", rep.RequestID)
	fmt.Fprintf(&b, "- **Outcome:** %s\n", outcome)
	fmt.Fprintf(&b, "- **Trace ID:** %s\n", rep.TraceID)
	fmt.Fprintf(&b, "- **Request ID:** %s\n", rep.RequestID)
	if rep.AgentID != "" {
		fmt.Fprintf(&b, "- **Agent ID:** %s\n", rep.AgentID)
	}
	fmt.Fprintf(&b, "- **Written:** %s\n", rep.WrittenAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "\n## Summary\n\n%s\n", rep.Summary)
	if rep.Error != "" {
		fmt.Fprintf(&b, "\n## Error\n\n```\n%s\n```\n", rep.Error)
	}
	return b.String()
}

// entryName builds a stable, filesystem-safe report name:
// 2006-01-02_<request-slug>-<trace-short>.
func entryName(ts time.Time, requestID, traceID string) string {
	slug := sanitizeName(requestID)
	if slug == "" {
		slug = "task"
	}
	short := traceID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("%s_%s-%s", ts.Format("2006-01-02"), slug, short)
}

func sanitizeName(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= 40 {
			break
		}
	}
	return strings.Trim(b.String(), "-")
}
