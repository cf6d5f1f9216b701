package policy

import "sort"

// Registry holds all supported browser policies, indexed by bundle id.
type Registry struct {
	policies map[string]BrowserPolicy
	byBundle map[string]BrowserPolicy
}

// NewRegistry creates a registry with all default browser policies.
func NewRegistry() *Registry {
	return NewRegistryWithPolicies(
		NewSafariPolicy(),
		NewSafariPreviewPolicy(),
		NewChromePolicy(),
		NewChromiumPolicy("brave", "Brave Browser", "com.brave.Browser"),
		NewChromiumPolicy("edge", "Microsoft Edge", "com.microsoft.edgemac"),
		NewChromiumPolicy("arc", "Arc", "company.thebrowser.Browser"),
		NewChromiumPolicy("vivaldi", "Vivaldi", "com.vivaldi.Vivaldi"),
		NewChromiumPolicy("chromium", "Chromium", "org.chromium.Chromium"),
	)
}

// NewRegistryWithPolicies creates a registry with custom policies (for testing).
func NewRegistryWithPolicies(policies ...BrowserPolicy) *Registry {
	r := &Registry{
		policies: make(map[string]BrowserPolicy),
		byBundle: make(map[string]BrowserPolicy),
	}
	for _, p := range policies {
		r.Register(p)
	}
	return r
}

// Register adds a policy to the registry.
func (r *Registry) Register(p BrowserPolicy) {
	r.policies[p.ID()] = p
	for _, bundleID := range p.BundleIDs() {
		r.byBundle[bundleID] = p
	}
}

// ForBundleID returns the policy handling a foreground bundle id.
func (r *Registry) ForBundleID(bundleID string) (BrowserPolicy, bool) {
	p, ok := r.byBundle[bundleID]
	return p, ok
}

// GetAll returns all registered policies sorted by ID.
func (r *Registry) GetAll() []BrowserPolicy {
	result := make([]BrowserPolicy, 0, len(r.policies))
	for _, p := range r.policies {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID() < result[j].ID() })
	return result
}
