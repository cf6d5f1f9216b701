package policy

import "fmt"

// SafariPolicy implements BrowserPolicy for Safari and Safari Technology Preview.
type SafariPolicy struct {
	id       string
	name     string
	appName  string
	bundleID string
}

// NewSafariPolicy creates the Safari policy.
func NewSafariPolicy() *SafariPolicy {
	return &SafariPolicy{id: "safari", name: "Safari", appName: "Safari", bundleID: "com.apple.Safari"}
}

// NewSafariPreviewPolicy creates the Safari Technology Preview policy.
func NewSafariPreviewPolicy() *SafariPolicy {
	return &SafariPolicy{
		id:       "safari-preview",
		name:     "Safari Technology Preview",
		appName:  "Safari Technology Preview",
		bundleID: "com.apple.SafariTechnologyPreview",
	}
}

func (p *SafariPolicy) ID() string { return p.id }

func (p *SafariPolicy) Name() string { return p.name }

func (p *SafariPolicy) BundleIDs() []string { return []string{p.bundleID} }

func (p *SafariPolicy) ProcessPatterns() []string { return []string{p.appName} }

// ActiveTabURLScript uses Safari's "current tab" terminology.
func (p *SafariPolicy) ActiveTabURLScript() string {
	return fmt.Sprintf(`tell application %q
	if not (exists front window) then return ""
	return URL of current tab of front window
end tell`, p.appName)
}

// ChromiumPolicy implements BrowserPolicy for Chromium-based browsers, which
// share Chrome's AppleScript dictionary ("active tab").
type ChromiumPolicy struct {
	id       string
	appName  string
	bundleID string
}

// NewChromiumPolicy creates a policy for a Chromium-based browser.
func NewChromiumPolicy(id, appName, bundleID string) *ChromiumPolicy {
	return &ChromiumPolicy{id: id, appName: appName, bundleID: bundleID}
}

// NewChromePolicy creates the Google Chrome policy.
func NewChromePolicy() *ChromiumPolicy {
	return NewChromiumPolicy("chrome", "Google Chrome", "com.google.Chrome")
}

func (p *ChromiumPolicy) ID() string { return p.id }

func (p *ChromiumPolicy) Name() string { return p.appName }

func (p *ChromiumPolicy) BundleIDs() []string { return []string{p.bundleID} }

func (p *ChromiumPolicy) ProcessPatterns() []string { return []string{p.appName} }

func (p *ChromiumPolicy) ActiveTabURLScript() string {
	return fmt.Sprintf(`tell application %q
	if not (exists front window) then return ""
	return URL of active tab of front window
end tell`, p.appName)
}

// Ensure policies implement BrowserPolicy.
var (
	_ BrowserPolicy = (*SafariPolicy)(nil)
	_ BrowserPolicy = (*ChromiumPolicy)(nil)
)
