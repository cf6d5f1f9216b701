package infra

import (
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
)

// defaultProcessCacheTTL bounds how often the process table is listed. The
// daemon asks about the frontmost browser on every poll.
const defaultProcessCacheTTL = 2 * time.Second

type processEntry struct {
	pid  int
	name string
}

// processLister returns the current process table.
type processLister func() ([]processEntry, error)

// ProcessManagerImpl implements domain.ProcessManager using gopsutil, reusing
// one listing of the process table for up to ttl.
type ProcessManagerImpl struct {
	ttl  time.Duration
	now  func() time.Time
	list processLister

	mu       sync.Mutex
	cached   []processEntry
	cachedAt time.Time
}

// NewProcessManager creates a process manager backed by gopsutil.
func NewProcessManager() domain.ProcessManager {
	return newProcessManager(defaultProcessCacheTTL, time.Now, listProcesses)
}

func newProcessManager(ttl time.Duration, now func() time.Time, list processLister) *ProcessManagerImpl {
	return &ProcessManagerImpl{ttl: ttl, now: now, list: list}
}

// FindByName returns PIDs of processes whose name contains pattern,
// ignoring case.
func (pm *ProcessManagerImpl) FindByName(pattern string) ([]int, error) {
	procs, err := pm.snapshot()
	if err != nil {
		return nil, err
	}

	pattern = strings.ToLower(pattern)
	var found []int
	for _, p := range procs {
		if strings.Contains(strings.ToLower(p.name), pattern) {
			found = append(found, p.pid)
		}
	}
	return found, nil
}

func (pm *ProcessManagerImpl) snapshot() ([]processEntry, error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	now := pm.now()
	if pm.cached != nil && now.Sub(pm.cachedAt) < pm.ttl {
		return pm.cached, nil
	}
	procs, err := pm.list()
	if err != nil {
		return nil, err
	}
	if procs == nil {
		procs = []processEntry{}
	}
	pm.cached = procs
	pm.cachedAt = now
	return procs, nil
}

// IsRunning probes pid with signal 0. It does not use the cached table.
func (pm *ProcessManagerImpl) IsRunning(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func listProcesses() ([]processEntry, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, err
	}
	entries := make([]processEntry, 0, len(procs))
	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue // exited while listing
		}
		entries = append(entries, processEntry{pid: int(p.Pid), name: name})
	}
	return entries, nil
}

var _ domain.ProcessManager = (*ProcessManagerImpl)(nil)
