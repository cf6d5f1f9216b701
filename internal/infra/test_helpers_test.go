package infra

import (
	"context"
	"strings"
	"sync"
)

// mockProcessManager is a test double for domain.ProcessManager
type mockProcessManager struct {
	byName      map[string][]int
	findErr     error
	runningPIDs map[int]bool
	queried     []string
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		byName:      make(map[string][]int),
		runningPIDs: make(map[int]bool),
	}
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	m.queried = append(m.queried, pattern)
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byName[pattern], nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) SetRunning(name string, pid int) {
	m.byName[name] = append(m.byName[name], pid)
	m.runningPIDs[pid] = true
}

// commandCall records one CommandRunner invocation.
type commandCall struct {
	Name string
	Args []string
}

// mockCommandRunner is a test double for CommandRunner. Responses are keyed
// by a substring of the joined arguments; the first match wins.
type mockCommandRunner struct {
	mu        sync.Mutex
	calls     []commandCall
	responses []mockResponse
}

type mockResponse struct {
	contains string
	out      string
	err      error
}

func (m *mockCommandRunner) On(contains, out string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = append(m.responses, mockResponse{contains: contains, out: out, err: err})
}

func (m *mockCommandRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, commandCall{Name: name, Args: args})

	joined := name + " " + strings.Join(args, " ")
	for _, r := range m.responses {
		if strings.Contains(joined, r.contains) {
			return []byte(r.out), r.err
		}
	}
	return nil, nil
}

func (m *mockCommandRunner) Calls() []commandCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]commandCall(nil), m.calls...)
}

// Ensure mocks implement their interfaces.
var _ CommandRunner = (*mockCommandRunner)(nil)
