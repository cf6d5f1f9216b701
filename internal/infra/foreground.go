package infra

import (
	"context"
	"fmt"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
)

const frontmostBundleIDScript = `tell application "System Events" to get bundle identifier of first application process whose frontmost is true`

// ForegroundAppProvider implements domain.ForegroundProvider by asking
// System Events for the frontmost application process.
type ForegroundAppProvider struct {
	runner CommandRunner
}

// NewForegroundAppProvider creates a provider backed by osascript.
func NewForegroundAppProvider() *ForegroundAppProvider {
	return &ForegroundAppProvider{runner: &RealCommandRunner{}}
}

// NewForegroundAppProviderWithRunner creates a provider with an injectable runner (for testing).
func NewForegroundAppProviderWithRunner(runner CommandRunner) *ForegroundAppProvider {
	return &ForegroundAppProvider{runner: runner}
}

// CurrentForegroundAppID returns the frontmost bundle id, or "" when there is none.
func (p *ForegroundAppProvider) CurrentForegroundAppID(ctx context.Context) (string, error) {
	bundleID, err := runAppleScript(ctx, p.runner, frontmostBundleIDScript)
	if err != nil {
		return "", fmt.Errorf("read frontmost application: %w", err)
	}
	return bundleID, nil
}

// Ensure ForegroundAppProvider implements domain.ForegroundProvider.
var _ domain.ForegroundProvider = (*ForegroundAppProvider)(nil)
