package git

import (
	"errors"
	"strings"
	"testing"
)

// mockCommander records every git invocation and replies from a script.
type mockCommander struct {
	calls []string
	// failOn maps a command substring to the error returned for it.
	failOn map[string]error
	// porcelain is the output of "status --porcelain".
	porcelain string
}

func (m *mockCommander) Run(name string, args ...string) (string, error) {
	return m.RunInDir("", name, args...)
}

func (m *mockCommander) RunInDir(dir, name string, args ...string) (string, error) {
	cmd := name + " " + strings.Join(args, " ")
	m.calls = append(m.calls, cmd)
	for substr, err := range m.failOn {
		if strings.Contains(cmd, substr) {
			return "", err
		}
	}
	if strings.Contains(cmd, "status --porcelain") {
		return m.porcelain, nil
	}
	return "", nil
}

func (m *mockCommander) sawCommand(substr string) bool {
	for _, c := range m.calls {
		if strings.Contains(c, substr) {
			return true
		}
	}
	return false
}

func TestBranchNameDeterministic(t *testing.T) {
	c := NewClientWithCommander("/ws", &mockCommander{})

	got := c.BranchName("Add User Auth!", "1b9d6bde-47f5-4f1c-9ba4-0a2e57f1f8d2")
	want := "wingman/add-user-auth-1b9d6bde"
	if got != want {
		t.Errorf("BranchName() = %q, want %q", got, want)
	}
	if again := c.BranchName("Add User Auth!", "1b9d6bde-47f5-4f1c-9ba4-0a2e57f1f8d2"); again != got {
		t.Errorf("BranchName() is not deterministic: %q vs %q", again, got)
	}
}

func TestBranchNamePrefixOption(t *testing.T) {
	c := NewClientWithCommander("/ws", &mockCommander{}, WithBranchPrefix("tasks"))
	if got := c.BranchName("fix", "abc"); got != "tasks/fix-abc" {
		t.Errorf("BranchName() = %q", got)
	}
}

func TestSlugify(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Add User Auth", "add-user-auth"},
		{"fix_the_bug", "fix-the-bug"},
		{"Hello, World!", "hello-world"},
		{"--already--dashed--", "already-dashed"},
		{"ünïcödé", "ncd"},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Errorf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCreateTaskBranch(t *testing.T) {
	mock := &mockCommander{}
	c := NewClientWithCommander("/ws", mock)

	name, err := c.CreateTaskBranch("add-auth", "1b9d6bde-47f5")
	if err != nil {
		t.Fatalf("CreateTaskBranch() error = %v", err)
	}
	if name != "wingman/add-auth-1b9d6bde" {
		t.Errorf("branch = %q", name)
	}
	if !mock.sawCommand("checkout -b wingman/add-auth-1b9d6bde") {
		t.Errorf("calls = %v", mock.calls)
	}
}

func TestCreateTaskBranchReusesExisting(t *testing.T) {
	mock := &mockCommander{failOn: map[string]error{
		"checkout -b": errors.New("fatal: a branch named 'wingman/add-auth-1b9d6bde' already exists"),
	}}
	c := NewClientWithCommander("/ws", mock)

	name, err := c.CreateTaskBranch("add-auth", "1b9d6bde-47f5")
	if err != nil {
		t.Fatalf("CreateTaskBranch() on existing branch error = %v", err)
	}
	if name != "wingman/add-auth-1b9d6bde" {
		t.Errorf("branch = %q", name)
	}
	if !mock.sawCommand("checkout wingman/add-auth-1b9d6bde") {
		t.Errorf("calls = %v", mock.calls)
	}
}

func TestCommitAllCleanTree(t *testing.T) {
	mock := &mockCommander{porcelain: ""}
	c := NewClientWithCommander("/ws", mock)

	err := c.CommitAll("task: add-auth", "", "trace-1")
	if !errors.Is(err, ErrNothingToCommit) {
		t.Fatalf("CommitAll() on clean tree = %v, want ErrNothingToCommit", err)
	}
	if mock.sawCommand("commit -m") {
		t.Error("an empty commit was attempted")
	}
}

func TestCommitAllMessage(t *testing.T) {
	mock := &mockCommander{porcelain: " M internal/auth/auth.go"}
	c := NewClientWithCommander("/ws", mock)

	if err := c.CommitAll("task: add-auth", "Executed 2 action(s).", "trace-1"); err != nil {
		t.Fatalf("CommitAll() error = %v", err)
	}
	var commit string
	for _, call := range mock.calls {
		if strings.Contains(call, "commit -m") {
			commit = call
		}
	}
	if commit == "" {
		t.Fatalf("no commit in calls: %v", mock.calls)
	}
	if !strings.Contains(commit, "task: add-auth") || !strings.Contains(commit, "Trace-Id: trace-1") {
		t.Errorf("commit message = %q", commit)
	}
	if !mock.sawCommand("add -A") {
		t.Error("changes were not staged")
	}
}

func TestEnsureRepositoryInitsWhenAbsent(t *testing.T) {
	mock := &mockCommander{failOn: map[string]error{
		"rev-parse --is-inside-work-tree": errors.New("fatal: not a git repository"),
	}}
	c := NewClientWithCommander("/ws", mock)

	if err := c.EnsureRepository(); err != nil {
		t.Fatalf("EnsureRepository() error = %v", err)
	}
	if !mock.sawCommand("git init") {
		t.Errorf("calls = %v", mock.calls)
	}
}

func TestEnsureIdentitySetsFallback(t *testing.T) {
	mock := &mockCommander{failOn: map[string]error{
		"config --get": errors.New("exit status 1"),
	}}
	c := NewClientWithCommander("/ws", mock, WithCommitter("bot", "bot@local"))

	if err := c.EnsureIdentity(); err != nil {
		t.Fatalf("EnsureIdentity() error = %v", err)
	}
	if !mock.sawCommand("config user.name bot") || !mock.sawCommand("config user.email bot@local") {
		t.Errorf("calls = %v", mock.calls)
	}
}

func TestResetHard(t *testing.T) {
	mock := &mockCommander{}
	c := NewClientWithCommander("/ws", mock)

	if err := c.ResetHard(); err != nil {
		t.Fatalf("ResetHard() error = %v", err)
	}
	if !mock.sawCommand("reset --hard HEAD") || !mock.sawCommand("clean -fd") {
		t.Errorf("calls = %v", mock.calls)
	}
}
