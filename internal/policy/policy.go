// Package policy implements the Strategy pattern for browser-specific domain lookup.
// Each supported browser has its own policy describing how to identify it and
// how to ask it for the active tab's URL.
package policy

// BrowserPolicy defines the strategy interface for a supported browser.
type BrowserPolicy interface {
	// ID returns unique identifier (e.g., "safari", "chrome").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// BundleIDs returns the macOS bundle identifiers this policy handles.
	BundleIDs() []string

	// ProcessPatterns returns process names used to check the browser is running.
	// Patterns are matched case-insensitively.
	ProcessPatterns() []string

	// ActiveTabURLScript returns AppleScript that prints the URL of the
	// front window's active tab, or an empty string when there is none.
	ActiveTabURLScript() string
}
