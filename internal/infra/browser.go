package infra

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/net/idna"

	"github.com/eliteGoblin/focusd/autofocus/internal/domain"
	"github.com/eliteGoblin/focusd/autofocus/internal/policy"
)

// errNotAuthorized is AppleScript's "Not authorized to send Apple events".
const errNotAuthorized = "-1743"

// BrowserDomainProvider implements domain.DomainProvider for the browsers in
// the policy registry.
type BrowserDomainProvider struct {
	registry *policy.Registry
	runner   CommandRunner
	procMgr  domain.ProcessManager
	logger   *zap.Logger
}

// NewBrowserDomainProvider creates a provider with real dependencies.
func NewBrowserDomainProvider(registry *policy.Registry, logger *zap.Logger) *BrowserDomainProvider {
	return NewBrowserDomainProviderWithDeps(registry, &RealCommandRunner{}, NewProcessManager(), logger)
}

// NewBrowserDomainProviderWithDeps creates a provider with injectable dependencies (for testing).
func NewBrowserDomainProviderWithDeps(
	registry *policy.Registry,
	runner CommandRunner,
	procMgr domain.ProcessManager,
	logger *zap.Logger,
) *BrowserDomainProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrowserDomainProvider{
		registry: registry,
		runner:   runner,
		procMgr:  procMgr,
		logger:   logger,
	}
}

// CurrentDomain returns the active tab's host when appID is a supported browser.
func (p *BrowserDomainProvider) CurrentDomain(ctx context.Context, appID string) domain.DomainResult {
	if appID == "" {
		return domain.DomainUnavailable(domain.DomainUnknown)
	}

	browser, ok := p.registry.ForBundleID(appID)
	if !ok {
		return domain.DomainUnavailable(domain.DomainUnsupportedBrowser)
	}

	// Scripting a closed browser would launch it.
	if !p.isRunning(browser) {
		return domain.DomainUnavailable(domain.DomainNoActiveTab)
	}

	rawURL, err := runAppleScript(ctx, p.runner, browser.ActiveTabURLScript())
	if err != nil {
		reason := classifyScriptError(err)
		p.logger.Debug("active tab lookup failed",
			zap.String("browser", browser.ID()),
			zap.String("reason", string(reason)),
			zap.Error(err))
		return domain.DomainUnavailable(reason)
	}
	if rawURL == "" {
		return domain.DomainUnavailable(domain.DomainNoActiveTab)
	}

	host, ok := HostFromURL(rawURL)
	if !ok {
		return domain.DomainUnavailable(domain.DomainUnknown)
	}
	return domain.DomainAvailable(host)
}

func (p *BrowserDomainProvider) isRunning(browser policy.BrowserPolicy) bool {
	for _, pattern := range browser.ProcessPatterns() {
		pids, err := p.procMgr.FindByName(pattern)
		if err != nil {
			p.logger.Debug("process lookup failed",
				zap.String("pattern", pattern),
				zap.Error(err))
			// Unknown; let the script decide.
			return true
		}
		if len(pids) > 0 {
			return true
		}
	}
	return false
}

func classifyScriptError(err error) domain.DomainUnavailableReason {
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		msg := strings.ToLower(cmdErr.Stderr)
		if strings.Contains(msg, errNotAuthorized) || strings.Contains(msg, "not authorized") {
			return domain.DomainPermissionDenied
		}
	}
	return domain.DomainScriptError
}

// HostFromURL extracts the normalized host of rawURL. A bare host such as
// "example.com/path" is accepted.
func HostFromURL(rawURL string) (string, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", false
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "//" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	host := NormalizeDomain(u.Hostname())
	if host == "" {
		return "", false
	}
	return host, true
}

// NormalizeDomain lowercases a host, strips a trailing dot and converts
// internationalized names to their ASCII form. IP addresses pass through.
// Returns "" when the input is not a usable host.
func NormalizeDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return ""
	}
	if net.ParseIP(strings.Trim(host, "[]")) != nil {
		return strings.Trim(host, "[]")
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return ""
	}
	return ascii
}

// Ensure BrowserDomainProvider implements domain.DomainProvider.
var _ domain.DomainProvider = (*BrowserDomainProvider)(nil)
