//go:build integration

package integration

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
	"github.com/eliteGoblin/focusd/autofocus/internal/infra"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// desktop answers the osascript calls the real adapters make, as if a user
// were switching between apps and tabs.
type desktop struct {
	mu        sync.Mutex
	frontmost string
	tabURL    string
	shortcuts []string
}

func (d *desktop) show(bundleID, url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frontmost = bundleID
	d.tabURL = url
}

func (d *desktop) ranShortcuts() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.shortcuts...)
}

func (d *desktop) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	script := strings.Join(args, " ")
	switch {
	case strings.Contains(script, "Shortcuts Events"):
		d.shortcuts = append(d.shortcuts, script)
		return nil, nil
	case strings.Contains(script, "frontmost"):
		return []byte(d.frontmost + "\n"), nil
	case strings.Contains(script, "active tab"), strings.Contains(script, "current tab"):
		return []byte(d.tabURL + "\n"), nil
	}
	return nil, nil
}

// browsersRunning reports every browser process as running.
type browsersRunning struct{}

func (browsersRunning) FindByName(pattern string) ([]int, error) { return []int{4242}, nil }

func (browsersRunning) IsRunning(pid int) bool { return pid == 4242 }

var (
	_ domain.Clock          = (*fakeClock)(nil)
	_ infra.CommandRunner   = (*desktop)(nil)
	_ domain.ProcessManager = browsersRunning{}
)
