// Package git provides shell-based wrappers for the git CLI, scoped to the
// engine's workspace root. It uses os/exec instead of go-git to ensure
// compatibility with the user's SSH keys, GPG signing config, and other
// shell environment settings.
package git

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Common errors returned by git operations.
var (
	ErrGitNotInstalled  = errors.New("git is not installed or not in PATH")
	ErrNotGitRepository = errors.New("not a git repository")
	ErrNothingToCommit  = errors.New("nothing to commit")
)

// Commander is an interface for executing commands.
// This allows mocking in tests.
type Commander interface {
	Run(name string, args ...string) (string, error)
	RunInDir(dir, name string, args ...string) (string, error)
}

// ShellCommander executes real shell commands.
type ShellCommander struct{}

// Run executes a command in the current directory.
func (c *ShellCommander) Run(name string, args ...string) (string, error) {
	return c.RunInDir("", name, args...)
}

// RunInDir executes a command in the specified directory.
func (c *ShellCommander) RunInDir(dir, name string, args ...string) (string, error) {
	cmd := exec.Command(name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		// Include stderr in error for debugging
		errMsg := strings.TrimSpace(stderr.String())
		if errMsg != "" {
			return "", fmt.Errorf("%w: %s", err, errMsg)
		}
		return "", err
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Client wraps git operations against one workspace.
type Client struct {
	commander      Commander
	workDir        string
	branchPrefix   string
	committerName  string
	committerEmail string
}

// Option configures a Client.
type Option func(*Client)

// WithBranchPrefix overrides the default "wingman" branch namespace.
func WithBranchPrefix(prefix string) Option {
	return func(c *Client) { c.branchPrefix = prefix }
}

// WithCommitter sets the fallback identity used when the repository has none.
func WithCommitter(name, email string) Option {
	return func(c *Client) {
		c.committerName = name
		c.committerEmail = email
	}
}

// NewClient creates a new git client for the given workspace directory.
func NewClient(workDir string, opts ...Option) *Client {
	c := &Client{
		commander:      &ShellCommander{},
		workDir:        workDir,
		branchPrefix:   "wingman",
		committerName:  "wingman",
		committerEmail: "wingman@local",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientWithCommander creates a client with a custom commander (for testing).
func NewClientWithCommander(workDir string, commander Commander, opts ...Option) *Client {
	c := NewClient(workDir, opts...)
	c.commander = commander
	return c
}

// IsGitInstalled checks if git binary is available in PATH.
func (c *Client) IsGitInstalled() bool {
	_, err := c.commander.Run("git", "--version")
	return err == nil
}

// IsRepository checks if the workspace is a git repository.
func (c *Client) IsRepository() bool {
	_, err := c.commander.RunInDir(c.workDir, "git", "rev-parse", "--is-inside-work-tree")
	return err == nil
}

// EnsureRepository verifies the workspace is a git repository, initializing
// one when it is not.
func (c *Client) EnsureRepository() error {
	if !c.IsGitInstalled() {
		return ErrGitNotInstalled
	}
	if c.IsRepository() {
		return nil
	}
	if _, err := c.commander.RunInDir(c.workDir, "git", "init"); err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	return nil
}

// EnsureIdentity sets a repository-local committer identity when none is
// configured, so commits never fail on "Author identity unknown".
func (c *Client) EnsureIdentity() error {
	name, _ := c.commander.RunInDir(c.workDir, "git", "config", "--get", "user.name")
	email, _ := c.commander.RunInDir(c.workDir, "git", "config", "--get", "user.email")
	if strings.TrimSpace(name) == "" {
		if _, err := c.commander.RunInDir(c.workDir, "git", "config", "user.name", c.committerName); err != nil {
			return fmt.Errorf("set user.name: %w", err)
		}
	}
	if strings.TrimSpace(email) == "" {
		if _, err := c.commander.RunInDir(c.workDir, "git", "config", "user.email", c.committerEmail); err != nil {
			return fmt.Errorf("set user.email: %w", err)
		}
	}
	return nil
}

// CurrentBranch returns the name of the current branch.
func (c *Client) CurrentBranch() (string, error) {
	output, err := c.commander.RunInDir(c.workDir, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("get current branch: %w", err)
	}
	return output, nil
}

// HeadSHA returns the commit hash at HEAD.
func (c *Client) HeadSHA() (string, error) {
	output, err := c.commander.RunInDir(c.workDir, "git", "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("get HEAD: %w", err)
	}
	return output, nil
}

// IsDirty checks if the workspace has uncommitted changes.
func (c *Client) IsDirty() (bool, error) {
	output, err := c.commander.RunInDir(c.workDir, "git", "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("check dirty state: %w", err)
	}
	return output != "", nil
}

// CreateTaskBranch creates and checks out the isolation branch for a task.
// The name is derived deterministically from the request id and a short form
// of the trace id, so two tasks never collide on branch names even when
// executed concurrently under different leases. If the branch already exists
// (a retried task), it is checked out instead.
func (c *Client) CreateTaskBranch(requestID, traceID string) (string, error) {
	name := c.BranchName(requestID, traceID)
	if _, err := c.commander.RunInDir(c.workDir, "git", "checkout", "-b", name); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			if _, err := c.commander.RunInDir(c.workDir, "git", "checkout", name); err != nil {
				return "", fmt.Errorf("branch %s exists but checkout failed: %w", name, err)
			}
			return name, nil
		}
		return "", fmt.Errorf("create branch %s: %w", name, err)
	}
	return name, nil
}

// BranchName returns the deterministic branch name for a task.
func (c *Client) BranchName(requestID, traceID string) string {
	slug := Slugify(requestID)
	const maxSlugLen = 50
	if len(slug) > maxSlugLen {
		slug = strings.TrimSuffix(slug[:maxSlugLen], "-")
	}
	short := traceID
	if len(short) > 8 {
		short = short[:8]
	}
	if slug == "" {
		return fmt.Sprintf("%s/%s", c.branchPrefix, short)
	}
	return fmt.Sprintf("%s/%s-%s", c.branchPrefix, slug, short)
}

// CommitAll stages everything and commits. It returns ErrNothingToCommit
// when the working tree is clean; callers decide whether that is a failure.
func (c *Client) CommitAll(subject, description, traceID string) error {
	if _, err := c.commander.RunInDir(c.workDir, "git", "add", "-A"); err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}
	dirty, err := c.IsDirty()
	if err != nil {
		return fmt.Errorf("check staged changes: %w", err)
	}
	if !dirty {
		return ErrNothingToCommit
	}

	message := subject
	if description != "" {
		message += "\n\n" + description
	}
	if traceID != "" {
		message += "\n\nTrace-Id: " + traceID
	}
	if _, err := c.commander.RunInDir(c.workDir, "git", "commit", "-m", message); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ResetHard discards all uncommitted changes, restoring the working tree to
// HEAD. Used best-effort during rollback.
func (c *Client) ResetHard() error {
	if _, err := c.commander.RunInDir(c.workDir, "git", "reset", "--hard", "HEAD"); err != nil {
		return fmt.Errorf("reset --hard: %w", err)
	}
	if _, err := c.commander.RunInDir(c.workDir, "git", "clean", "-fd"); err != nil {
		return fmt.Errorf("clean untracked: %w", err)
	}
	return nil
}

// Checkout switches to the specified branch.
func (c *Client) Checkout(branch string) error {
	_, err := c.commander.RunInDir(c.workDir, "git", "checkout", branch)
	if err != nil {
		return fmt.Errorf("checkout %s: %w", branch, err)
	}
	return nil
}

// BranchExists checks if a branch exists locally.
func (c *Client) BranchExists(name string) bool {
	_, err := c.commander.RunInDir(c.workDir, "git", "rev-parse", "--verify", name)
	return err == nil
}

// Slugify converts a string to a branch-safe slug.
func Slugify(s string) string {
	s = strings.ToLower(s)
	s = strings.ReplaceAll(s, " ", "-")
	s = strings.ReplaceAll(s, "_", "-")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	s = b.String()
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}
