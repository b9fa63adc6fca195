package plan

import (
	"errors"
	"strings"
	"testing"

	"github.com/davidmying/wingman/models"
)

const validDoc = "---\n" +
	"trace_id: 1b9d6bde-47f5-4f1c-9ba4-0a2e57f1f8d2\n" +
	"request_id: add-user-auth\n" +
	"status: approved\n" +
	"agent_id: agent-7\n" +
	"priority: high\n" +
	"---\n" +
	"\n" +
	"# Plan\n" +
	"\n" +
	"Add the auth module.\n"

func TestParseValidDocument(t *testing.T) {
	meta, body, err := Parse(validDoc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if meta.TraceID != "1b9d6bde-47f5-4f1c-9ba4-0a2e57f1f8d2" {
		t.Errorf("TraceID = %q", meta.TraceID)
	}
	if meta.RequestID != "add-user-auth" {
		t.Errorf("RequestID = %q", meta.RequestID)
	}
	if meta.Status != models.StatusApproved {
		t.Errorf("Status = %q", meta.Status)
	}
	if meta.AgentID != "agent-7" {
		t.Errorf("AgentID = %q", meta.AgentID)
	}
	if meta.Extra["priority"] != "high" {
		t.Errorf("Extra[priority] = %q, want high", meta.Extra["priority"])
	}
	if !strings.Contains(body, "Add the auth module.") {
		t.Errorf("body missing content: %q", body)
	}
	if strings.Contains(body, "trace_id") {
		t.Errorf("body leaked frontmatter: %q", body)
	}
}

func TestParseMissingFrontmatter(t *testing.T) {
	cases := []string{
		"just a paragraph of text\n",
		"trace_id: abc\nrequest_id: x\n",
		"---\ntrace_id: abc\nrequest_id: x\n", // no closing marker
		"",
	}
	for _, doc := range cases {
		if _, _, err := Parse(doc); !errors.Is(err, ErrMissingFrontmatter) {
			t.Errorf("Parse(%q) error = %v, want ErrMissingFrontmatter", doc, err)
		}
	}
}

func TestParseMissingRequiredFields(t *testing.T) {
	cases := []struct {
		doc   string
		field string
	}{
		{"---\nrequest_id: x\n---\nbody", "trace_id"},
		{"---\ntrace_id: abc\n---\nbody", "request_id"},
		{"---\ntrace_id: \"\"\nrequest_id: x\n---\nbody", "trace_id"},
	}
	for _, tc := range cases {
		_, _, err := Parse(tc.doc)
		var mfe *MissingFieldError
		if !errors.As(err, &mfe) {
			t.Fatalf("Parse(%q) error = %v, want MissingFieldError", tc.doc, err)
		}
		if mfe.Field != tc.field {
			t.Errorf("missing field = %q, want %q", mfe.Field, tc.field)
		}
	}
}

func TestParseDefaultsStatusToProposed(t *testing.T) {
	meta, _, err := Parse("---\ntrace_id: abc\nrequest_id: x\n---\nbody")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if meta.Status != models.StatusProposed {
		t.Errorf("Status = %q, want proposed", meta.Status)
	}
}

func TestParseRejectsUnknownStatus(t *testing.T) {
	_, _, err := Parse("---\ntrace_id: abc\nrequest_id: x\nstatus: bananas\n---\nbody")
	if err == nil {
		t.Fatal("Parse() accepted an unknown status")
	}
}

func TestParseExtraKeysOpaque(t *testing.T) {
	doc := "---\n" +
		"trace_id: abc\n" +
		"request_id: x\n" +
		"priority: 5\n" +
		"labels:\n" +
		"  team: core\n" +
		"tags: [a, b]\n" +
		"---\nbody"
	meta, _, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v (unknown keys must never fail the parse)", err)
	}
	if meta.Extra["priority"] != "5" {
		t.Errorf("Extra[priority] = %q, want 5", meta.Extra["priority"])
	}
	for _, key := range []string{"labels", "tags"} {
		if meta.Extra[key] == "" {
			t.Errorf("Extra[%s] is empty, structured values must pass through", key)
		}
	}
}

func TestParseCRLF(t *testing.T) {
	doc := "---\r\ntrace_id: abc\r\nrequest_id: x\r\n---\r\nbody\r\n"
	meta, _, err := Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if meta.TraceID != "abc" {
		t.Errorf("TraceID = %q", meta.TraceID)
	}
}

func TestExtractActions(t *testing.T) {
	body := "Intro text.\n" +
		"```yaml\n" +
		"tool: write_file\n" +
		"params:\n" +
		"  path: notes.txt\n" +
		"  content: hello\n" +
		"```\n" +
		"More prose.\n" +
		"```json\n" +
		"{\"tool\": \"read_file\", \"params\": {\"path\": \"notes.txt\"}}\n" +
		"```\n"

	actions, skipped := ExtractActions(body)
	if len(skipped) != 0 {
		t.Fatalf("skipped = %v, want none", skipped)
	}
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}
	if actions[0].Tool != "write_file" || actions[1].Tool != "read_file" {
		t.Errorf("tools = %q, %q", actions[0].Tool, actions[1].Tool)
	}
	if actions[0].Params["path"] != "notes.txt" {
		t.Errorf("params = %v", actions[0].Params)
	}
}

func TestExtractActionsSkipsMalformedBlocks(t *testing.T) {
	body := "```yaml\n" +
		"tool: [unclosed\n" +
		"```\n" +
		"```\n" +
		"description: no tool key here\n" +
		"```\n" +
		"```yaml\n" +
		"tool: write_file\n" +
		"params:\n" +
		"  path: ok.txt\n" +
		"```\n"

	actions, skipped := ExtractActions(body)
	if len(actions) != 1 {
		t.Fatalf("got %d actions, want 1 (malformed blocks must not abort the scan)", len(actions))
	}
	if actions[0].Tool != "write_file" {
		t.Errorf("tool = %q", actions[0].Tool)
	}
	if len(skipped) != 2 {
		t.Fatalf("got %d skipped blocks, want 2: %v", len(skipped), skipped)
	}
	if skipped[1].Reason != "no tool key" {
		t.Errorf("skip reason = %q", skipped[1].Reason)
	}
}

func TestExtractActionsEmptyBody(t *testing.T) {
	actions, skipped := ExtractActions("No fences at all, just prose.\n")
	if len(actions) != 0 || len(skipped) != 0 {
		t.Errorf("actions = %v, skipped = %v, want none", actions, skipped)
	}
}

func TestExtractActionsUnterminatedFence(t *testing.T) {
	actions, _ := ExtractActions("```yaml\ntool: write_file\n")
	if len(actions) != 0 {
		t.Errorf("unterminated fence yielded actions: %v", actions)
	}
}

func TestRewriteStatus(t *testing.T) {
	out, err := RewriteStatus(validDoc, models.StatusCompleted)
	if err != nil {
		t.Fatalf("RewriteStatus() error = %v", err)
	}
	if !strings.Contains(out, "status: completed") {
		t.Errorf("status not rewritten:\n%s", out)
	}
	if strings.Contains(out, "status: approved") {
		t.Errorf("old status still present:\n%s", out)
	}
	if !strings.Contains(out, "Add the auth module.") {
		t.Errorf("body was modified:\n%s", out)
	}

	meta, _, err := Parse(out)
	if err != nil {
		t.Fatalf("rewritten document no longer parses: %v", err)
	}
	if meta.Status != models.StatusCompleted {
		t.Errorf("Status = %q after rewrite", meta.Status)
	}
}

func TestRewriteStatusCRLF(t *testing.T) {
	doc := "---\r\ntrace_id: abc\r\nrequest_id: x\r\nstatus: executing\r\n---\r\nbody\r\n"
	out, err := RewriteStatus(doc, models.StatusFailed)
	if err != nil {
		t.Fatalf("RewriteStatus() on CRLF document error = %v", err)
	}
	meta, _, err := Parse(out)
	if err != nil {
		t.Fatalf("rewritten CRLF document no longer parses: %v", err)
	}
	if meta.Status != models.StatusFailed {
		t.Errorf("Status = %q, want failed", meta.Status)
	}
	if strings.Contains(out, "status: executing") {
		t.Errorf("old status still present:\n%q", out)
	}
}

func TestRewriteStatusInsertsWhenAbsent(t *testing.T) {
	doc := "---\ntrace_id: abc\nrequest_id: x\n---\nbody\n"
	out, err := RewriteStatus(doc, models.StatusFailed)
	if err != nil {
		t.Fatalf("RewriteStatus() error = %v", err)
	}
	meta, body, err := Parse(out)
	if err != nil {
		t.Fatalf("rewritten document no longer parses: %v", err)
	}
	if meta.Status != models.StatusFailed {
		t.Errorf("Status = %q, want failed", meta.Status)
	}
	if !strings.Contains(body, "body") {
		t.Errorf("body lost: %q", body)
	}
}
