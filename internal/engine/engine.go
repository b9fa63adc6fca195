// Package engine drives a plan document through its execution lifecycle:
// parse, lease, branch, dispatch actions, commit, then archive on success or
// roll back and park for retry on failure.
package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/davidmying/wingman/internal/audit"
	"github.com/davidmying/wingman/internal/git"
	"github.com/davidmying/wingman/internal/lease"
	"github.com/davidmying/wingman/internal/plan"
	"github.com/davidmying/wingman/internal/report"
	"github.com/davidmying/wingman/internal/retry"
	"github.com/davidmying/wingman/internal/tools"
	"github.com/davidmying/wingman/models"
	"github.com/davidmying/wingman/types"
)

var (
	// ErrNoPlans indicates the approved directory holds no plan documents.
	ErrNoPlans = errors.New("no approved plans found")
	// ErrNoActions indicates a dequeued plan contains no executable actions.
	ErrNoActions = errors.New("no executable actions")
)

// previewLimit bounds the result text recorded per action in the audit log.
const previewLimit = 100

// Options wires an Engine. All fields are required except HolderID, which
// defaults to a fresh UUID.
type Options struct {
	Leases     *lease.Store
	Git        *git.Client
	Dispatcher tools.Dispatcher
	Policy     *retry.Policy
	Audit      *audit.Log
	Reports    *report.Writer

	// ApprovedDir is the queue RunNext dequeues from.
	ApprovedDir string
	// MarkersDir receives placeholder files for plans with zero actions, so
	// the task commit is never empty.
	MarkersDir string
	// HolderID identifies this engine instance in the lease table.
	HolderID string
}

// Engine executes plan documents. Safe for use by a single goroutine; the
// lease table guards against concurrent engines.
type Engine struct {
	leases     *lease.Store
	git        *git.Client
	dispatcher tools.Dispatcher
	policy     *retry.Policy
	audit      *audit.Log
	reports    *report.Writer

	approvedDir string
	markersDir  string
	holder      string
}

// New creates an Engine from opts.
func New(opts Options) *Engine {
	holder := opts.HolderID
	if holder == "" {
		holder = "engine-" + uuid.New().String()[:8]
	}
	return &Engine{
		leases:      opts.Leases,
		git:         opts.Git,
		dispatcher:  opts.Dispatcher,
		policy:      opts.Policy,
		audit:       opts.Audit,
		reports:     opts.Reports,
		approvedDir: opts.ApprovedDir,
		markersDir:  opts.MarkersDir,
		holder:      holder,
	}
}

// HolderID returns the lease holder identity of this engine instance.
func (e *Engine) HolderID() string { return e.holder }

// ProcessPlan executes the plan document at path and returns the outcome.
// The originating request document is never modified; only the plan file
// moves between the approved, archive and retry locations.
func (e *Engine) ProcessPlan(ctx context.Context, path string) models.ExecutionResult {
	doc, err := os.ReadFile(path)
	if err != nil {
		return models.ExecutionResult{
			Error: fmt.Sprintf("failed to read plan %s: %v", path, err),
		}
	}

	meta, body, err := plan.Parse(string(doc))
	if err != nil {
		// Invalid metadata fails fast: no lease, no branch, no file moves.
		e.audit.LogActivity(e.holder, "parse_failed", path,
			map[string]any{"error": err.Error()}, meta.TraceID, "")
		return models.ExecutionResult{
			Error: types.NewEngineError(types.KindValidation, "plan parse failed", err).Error(),
		}
	}

	result := models.ExecutionResult{TraceID: meta.TraceID}

	if err := e.leases.Acquire(path, e.holder); err != nil {
		result.Error = types.NewEngineError(types.KindLeaseConflict, "plan is leased", err).Error()
		return result
	}
	defer func() {
		if err := e.leases.Release(path, e.holder); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: lease release failed for %s: %v\n", path, err)
		}
	}()

	e.audit.LogActivity(e.holder, "task_started", path, nil, meta.TraceID, meta.AgentID)

	if err := e.git.EnsureRepository(); err != nil {
		return e.fail(path, meta, result, err, false)
	}
	if err := e.git.EnsureIdentity(); err != nil {
		return e.fail(path, meta, result, err, false)
	}
	branch, err := e.git.CreateTaskBranch(meta.RequestID, meta.TraceID)
	if err != nil {
		return e.fail(path, meta, result, types.NewEngineError(types.KindVersionCtrl, "branch creation failed", err), false)
	}
	result.BranchName = branch

	actions, skipped := plan.ExtractActions(body)
	for _, s := range skipped {
		e.audit.LogActivity(e.holder, "action_skipped", path,
			map[string]any{"block": s.Index, "reason": s.Reason}, meta.TraceID, meta.AgentID)
	}

	for i, action := range actions {
		if err := e.runAction(ctx, meta, path, i, action); err != nil {
			result.ActionsRun = i
			return e.fail(path, meta, result, err, true)
		}
		result.ActionsRun = i + 1
	}

	if len(actions) == 0 {
		// An empty plan still gets a commit: a per-task marker keeps the
		// branch non-empty and leaves a visible trace.
		if err := e.writeMarker(meta); err != nil {
			return e.fail(path, meta, result, err, true)
		}
	}

	subject := fmt.Sprintf("task: %s", meta.RequestID)
	desc := fmt.Sprintf("Executed %d action(s) from plan %s.", result.ActionsRun, filepath.Base(path))
	if err := e.git.CommitAll(subject, desc, meta.TraceID); err != nil {
		if !errors.Is(err, git.ErrNothingToCommit) {
			return e.fail(path, meta, result, types.NewEngineError(types.KindVersionCtrl, "commit failed", err), true)
		}
	}

	result.Success = true
	e.finishSuccess(path, meta, result)
	return result
}

// RunNext dequeues the oldest approved plan and executes it. A plan with
// zero executable actions is rejected with ErrNoActions and parked for
// retry rather than silently committed.
func (e *Engine) RunNext(ctx context.Context) (models.ExecutionResult, error) {
	path, err := e.oldestApproved()
	if err != nil {
		return models.ExecutionResult{}, err
	}

	doc, err := os.ReadFile(path)
	if err != nil {
		return models.ExecutionResult{}, fmt.Errorf("failed to read plan %s: %w", path, err)
	}
	meta, body, err := plan.Parse(string(doc))
	if err == nil {
		if actions, _ := plan.ExtractActions(body); len(actions) == 0 {
			return e.rejectActionless(path, meta)
		}
	}

	return e.ProcessPlan(ctx, path), nil
}

// rejectActionless parks an actionless plan for retry. Parking relocates the
// plan, so the lease is taken first with the same conflict semantics as
// ProcessPlan: a plan another worker is executing must not be moved.
func (e *Engine) rejectActionless(path string, meta models.PlanMeta) (models.ExecutionResult, error) {
	result := models.ExecutionResult{TraceID: meta.TraceID}
	if err := e.leases.Acquire(path, e.holder); err != nil {
		result.Error = types.NewEngineError(types.KindLeaseConflict, "plan is leased", err).Error()
		return result, err
	}
	defer func() {
		if err := e.leases.Release(path, e.holder); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: lease release failed for %s: %v\n", path, err)
		}
	}()

	result = e.fail(path, meta, result, ErrNoActions, false)
	return result, ErrNoActions
}

func (e *Engine) runAction(ctx context.Context, meta models.PlanMeta, path string, index int, action models.Action) error {
	e.audit.LogActivity(e.holder, "action_started", path,
		map[string]any{"index": index, "tool": action.Tool}, meta.TraceID, meta.AgentID)

	res := e.policy.Execute(ctx, func(ctx context.Context, attempt retry.Attempt) (string, error) {
		return e.dispatcher.Execute(ctx, action.Tool, action.Params)
	})
	if res.Cancelled {
		return ctx.Err()
	}
	if !res.Success {
		e.audit.LogActivity(e.holder, "action_failed", path,
			map[string]any{"index": index, "tool": action.Tool, "attempts": res.TotalAttempts, "error": res.Err.Error()},
			meta.TraceID, meta.AgentID)
		return types.NewEngineError(types.KindAction,
			fmt.Sprintf("action %d (%s) failed after %d attempt(s)", index, action.Tool, res.TotalAttempts), res.Err)
	}

	e.audit.LogActivity(e.holder, "action_completed", path,
		map[string]any{"index": index, "tool": action.Tool, "result": preview(res.Value)},
		meta.TraceID, meta.AgentID)
	return nil
}

func (e *Engine) finishSuccess(path string, meta models.PlanMeta, result models.ExecutionResult) {
	rep := models.Report{
		TraceID:   meta.TraceID,
		RequestID: meta.RequestID,
		AgentID:   meta.AgentID,
		Success:   true,
		Summary:   fmt.Sprintf("Completed %d action(s) on branch %s.", result.ActionsRun, result.BranchName),
		WrittenAt: time.Now().UTC(),
	}
	if _, err := e.reports.WriteReport(rep); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write report for %s: %v\n", meta.TraceID, err)
	}
	if _, err := e.reports.Archive(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to archive plan %s: %v\n", path, err)
	}
	e.audit.LogActivity(e.holder, "task_completed", path,
		map[string]any{"actions": result.ActionsRun, "branch": result.BranchName},
		meta.TraceID, meta.AgentID)
}

// fail finalizes a failed task: best-effort rollback when the working tree
// may hold partial changes, a failure report carrying the literal error
// text, and relocation of the plan to the retry directory. The rollback's
// own failure is surfaced as a secondary error, never masking the cause.
func (e *Engine) fail(path string, meta models.PlanMeta, result models.ExecutionResult, cause error, rollback bool) models.ExecutionResult {
	result.Success = false
	result.Error = cause.Error()

	if rollback {
		if err := e.git.ResetHard(); err != nil {
			result.SecondaryError = fmt.Sprintf("rollback failed: %v", err)
			fmt.Fprintf(os.Stderr, "Warning: %s\n", result.SecondaryError)
		}
	}

	rep := models.Report{
		TraceID:   meta.TraceID,
		RequestID: meta.RequestID,
		AgentID:   meta.AgentID,
		Success:   false,
		Summary:   fmt.Sprintf("Task failed after %d action(s).", result.ActionsRun),
		Error:     cause.Error(),
		WrittenAt: time.Now().UTC(),
	}
	if _, err := e.reports.WriteReport(rep); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to write failure report for %s: %v\n", meta.TraceID, err)
	}
	if _, err := e.reports.Retry(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to park plan %s for retry: %v\n", path, err)
	}

	payload := map[string]any{"error": cause.Error()}
	if result.SecondaryError != "" {
		payload["secondaryError"] = result.SecondaryError
	}
	e.audit.LogActivity(e.holder, "task_failed", path, payload, meta.TraceID, meta.AgentID)
	return result
}

func (e *Engine) writeMarker(meta models.PlanMeta) error {
	if err := os.MkdirAll(e.markersDir, 0o755); err != nil {
		return fmt.Errorf("failed to create markers directory: %w", err)
	}
	path := filepath.Join(e.markersDir, meta.TraceID+".marker")
	content := fmt.Sprintf("trace_id: %s\nrequest_id: %s\ncompleted_at: %s\n",
		meta.TraceID, meta.RequestID, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write marker: %w", err)
	}
	return nil
}

func (e *Engine) oldestApproved() (string, error) {
	entries, err := os.ReadDir(e.approvedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNoPlans
		}
		return "", fmt.Errorf("failed to read approved directory: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	var candidates []candidate
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		candidates = append(candidates, candidate{
			path:    filepath.Join(e.approvedDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}
	if len(candidates) == 0 {
		return "", ErrNoPlans
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].modTime.Equal(candidates[j].modTime) {
			return candidates[i].path < candidates[j].path
		}
		return candidates[i].modTime.Before(candidates[j].modTime)
	})
	return candidates[0].path, nil
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= previewLimit {
		return s
	}
	// Back off to a rune boundary so the audit payload stays valid UTF-8.
	cut := previewLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
