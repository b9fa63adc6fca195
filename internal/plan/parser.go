// Package plan parses plan documents: a YAML frontmatter metadata block
// followed by a free-text body containing zero or more fenced action blocks.
package plan

import (
	"errors"
	"fmt"
	"strings"

	"github.com/davidmying/wingman/models"
	yaml "gopkg.in/yaml.v3"
)

// frontmatterMarker delimits the metadata block at the top of a plan document.
const frontmatterMarker = "---"

// Errors returned by Parse.
var (
	// ErrMissingFrontmatter is returned when the document does not open with
	// a marker pair delimiting the metadata block.
	ErrMissingFrontmatter = errors.New("plan document has no frontmatter block")
)

// MissingFieldError reports a mandatory metadata field that is absent or empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("plan metadata is missing required field %q", e.Field)
}

// metadataKeys are the fields Parse lifts out of the frontmatter; everything
// else is passed through opaquely in PlanMeta.Extra.
var metadataKeys = map[string]bool{
	"trace_id":   true,
	"request_id": true,
	"status":     true,
	"agent_id":   true,
}

// Parse extracts the metadata block and returns it together with the
// remaining document body. A document without both frontmatter markers is a
// hard parse failure; a document missing trace_id or request_id must not be
// executed.
func Parse(doc string) (models.PlanMeta, string, error) {
	meta := models.PlanMeta{}

	rest, ok := strings.CutPrefix(doc, frontmatterMarker+"\n")
	if !ok {
		// Tolerate CRLF documents.
		rest, ok = strings.CutPrefix(doc, frontmatterMarker+"\r\n")
		if !ok {
			return meta, "", ErrMissingFrontmatter
		}
	}

	block, body, found := cutMarkerLine(rest)
	if !found {
		return meta, "", ErrMissingFrontmatter
	}

	raw := map[string]any{}
	if err := yaml.Unmarshal([]byte(block), &raw); err != nil {
		return meta, "", fmt.Errorf("decode frontmatter: %w", err)
	}

	meta.TraceID = strings.TrimSpace(scalar(raw["trace_id"]))
	meta.RequestID = strings.TrimSpace(scalar(raw["request_id"]))
	meta.Status = models.PlanStatus(strings.TrimSpace(scalar(raw["status"])))
	meta.AgentID = strings.TrimSpace(scalar(raw["agent_id"]))
	for k, v := range raw {
		if metadataKeys[k] {
			continue
		}
		if meta.Extra == nil {
			meta.Extra = map[string]string{}
		}
		meta.Extra[k] = scalar(v)
	}

	if meta.TraceID == "" {
		return meta, "", &MissingFieldError{Field: "trace_id"}
	}
	if meta.RequestID == "" {
		return meta, "", &MissingFieldError{Field: "request_id"}
	}
	if meta.Status == "" {
		meta.Status = models.StatusProposed
	}
	if err := models.ValidateStruct(meta); err != nil {
		return meta, "", fmt.Errorf("invalid plan metadata: %w", err)
	}

	return meta, body, nil
}

// scalar renders a decoded frontmatter value as text. Unknown keys may hold
// any YAML shape; they pass through as their string rendering, never as a
// decode error.
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprintf("%v", t)
	}
}

// cutMarkerLine splits s at the first line consisting of the frontmatter
// marker, returning the text before it and the text after it.
func cutMarkerLine(s string) (before, after string, found bool) {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.TrimRight(line, "\r") == frontmatterMarker {
			return strings.Join(lines[:i], "\n"), strings.Join(lines[i+1:], "\n"), true
		}
	}
	return "", "", false
}

// SkippedBlock records a fenced block that did not yield a valid action.
// Skipped blocks are surfaced for diagnostics only; they never abort parsing.
type SkippedBlock struct {
	Index  int
	Reason string
}

// ExtractActions scans the plan body for fenced structured-data blocks and
// decodes each one independently. A fence that fails to decode, or that
// decodes to a value without a tool key, is skipped rather than aborting the
// scan: one malformed block must not block the other well-formed actions.
func ExtractActions(body string) ([]models.Action, []SkippedBlock) {
	var actions []models.Action
	var skipped []SkippedBlock

	idx := 0
	for _, block := range fencedBlocks(body) {
		idx++
		var action models.Action
		if err := yaml.Unmarshal([]byte(block), &action); err != nil {
			skipped = append(skipped, SkippedBlock{Index: idx, Reason: fmt.Sprintf("decode failed: %v", err)})
			continue
		}
		if strings.TrimSpace(action.Tool) == "" {
			skipped = append(skipped, SkippedBlock{Index: idx, Reason: "no tool key"})
			continue
		}
		action.Tool = strings.TrimSpace(action.Tool)
		actions = append(actions, action)
	}
	return actions, skipped
}

// fencedBlocks returns the contents of every triple-backtick fence in body,
// in document order. The language tag on the opening fence is ignored; both
// YAML and JSON flavored blocks decode through yaml.v3.
func fencedBlocks(body string) []string {
	var blocks []string
	var current []string
	inFence := false

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			if inFence {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = nil
				inFence = false
			} else {
				inFence = true
			}
			continue
		}
		if inFence {
			current = append(current, line)
		}
	}
	// An unterminated fence is dropped; there is no way to know whether the
	// author meant it as data.
	return blocks
}

// RewriteStatus replaces the status field inside the frontmatter block,
// leaving the rest of the document byte-for-byte intact. If the frontmatter
// has no status line, one is inserted before the closing marker.
func RewriteStatus(doc string, status models.PlanStatus) (string, error) {
	opening := frontmatterMarker + "\n"
	rest, ok := strings.CutPrefix(doc, opening)
	if !ok {
		opening = frontmatterMarker + "\r\n"
		rest, ok = strings.CutPrefix(doc, opening)
		if !ok {
			return "", ErrMissingFrontmatter
		}
	}

	lines := strings.Split(rest, "\n")
	closing := -1
	statusLine := -1
	for i, line := range lines {
		if strings.TrimRight(line, "\r") == frontmatterMarker {
			closing = i
			break
		}
		if strings.HasPrefix(strings.TrimSpace(line), "status:") {
			statusLine = i
		}
	}
	if closing < 0 {
		return "", ErrMissingFrontmatter
	}

	newLine := "status: " + string(status)
	if statusLine >= 0 {
		lines[statusLine] = newLine
	} else {
		lines = append(lines[:closing], append([]string{newLine}, lines[closing:]...)...)
	}
	return opening + strings.Join(lines, "\n"), nil
}
