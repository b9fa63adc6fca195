package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/davidmying/wingman/models"
)

func newTestWriter(t *testing.T) (*Writer, string) {
	t.Helper()
	root := t.TempDir()
	w := NewWriter(
		filepath.Join(root, "reports"),
		filepath.Join(root, "archive"),
		filepath.Join(root, "retry"),
	)
	return w, root
}

func TestWriteReportSuccess(t *testing.T) {
	w, root := newTestWriter(t)

	path, err := w.WriteReport(models.Report{
		TraceID:   "1b9d6bde-47f5-4f1c",
		RequestID: "Add User Auth",
		AgentID:   "agent-7",
		Success:   true,
		Summary:   "Completed 2 action(s) on branch wingman/add-user-auth-1b9d6bde.",
		WrittenAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if filepath.Dir(path) != filepath.Join(root, "reports") {
		t.Errorf("report written to %q", path)
	}
	if base := filepath.Base(path); base != "2026-03-14_add-user-auth-1b9d6bde.md" {
		t.Errorf("report name = %q", base)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{"SUCCEEDED", "1b9d6bde-47f5-4f1c", "Add User Auth", "agent-7", "Completed 2 action(s)"} {
		if !strings.Contains(content, want) {
			t.Errorf("report missing %q:\n%s", want, content)
		}
	}
}

func TestWriteReportFailureCarriesErrorText(t *testing.T) {
	w, _ := newTestWriter(t)

	path, err := w.WriteReport(models.Report{
		TraceID:   "trace-2",
		RequestID: "broken-task",
		Success:   false,
		Summary:   "Task failed after 1 action(s).",
		Error:     `action 1 (write_file) failed after 3 attempt(s): tool "write_file": disk full`,
	})
	if err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	data, _ := os.ReadFile(path)
	content := string(data)
	if !strings.Contains(content, "FAILED") || !strings.Contains(content, "disk full") {
		t.Errorf("failure report:\n%s", content)
	}
}

const planDoc = "---\n" +
	"trace_id: trace-1\n" +
	"request_id: add-auth\n" +
	"status: executing\n" +
	"---\n" +
	"\n# Plan body\n"

func writePlanFile(t *testing.T, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "plan-1.md")
	if err := os.WriteFile(path, []byte(planDoc), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestArchiveMovesAndCompletesPlan(t *testing.T) {
	w, root := newTestWriter(t)
	src := writePlanFile(t, filepath.Join(root, "approved"))

	dest, err := w.Archive(src)
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source plan still present after archive")
	}
	if filepath.Dir(dest) != filepath.Join(root, "archive") {
		t.Errorf("archived to %q", dest)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "status: completed") {
		t.Errorf("archived plan status not rewritten:\n%s", data)
	}
	if !strings.Contains(string(data), "# Plan body") {
		t.Errorf("archived plan body lost:\n%s", data)
	}
}

func TestRetryMovesAndFailsPlan(t *testing.T) {
	w, root := newTestWriter(t)
	src := writePlanFile(t, filepath.Join(root, "approved"))

	dest, err := w.Retry(src)
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if filepath.Dir(dest) != filepath.Join(root, "retry") {
		t.Errorf("parked at %q", dest)
	}
	data, _ := os.ReadFile(dest)
	if !strings.Contains(string(data), "status: failed") {
		t.Errorf("parked plan status not rewritten:\n%s", data)
	}
}

func TestEntryNameSanitizes(t *testing.T) {
	ts := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)
	got := entryName(ts, "Fix: crash / panic!!", "abcdef0123456789")
	if got != "2026-01-02_fix-crash-panic-abcdef01" {
		t.Errorf("entryName() = %q", got)
	}
	if got := entryName(ts, "", "ab"); got != "2026-01-02_task-ab" {
		t.Errorf("entryName() empty request = %q", got)
	}
}
