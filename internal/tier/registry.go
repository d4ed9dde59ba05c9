package tier

import "fmt"

// Registry holds one configured Tier per tier name, built at startup from
// §6.5's provider model identifiers and per-tier timeouts.
type Registry struct {
	tiers map[Name]Tier
}

// NewRegistry constructs a Registry from one AnthropicTier per configured
// name and API key. A missing API key for a configured tier is an error
// rather than a silent skip, since a turn that selects an unconfigured tier
// has nowhere to go.
func NewRegistry(apiKey string, configs map[Name]Config) (*Registry, error) {
	tiers := make(map[Name]Tier, len(configs))
	for name, cfg := range configs {
		t, err := NewAnthropicTier(name, apiKey, cfg)
		if err != nil {
			return nil, fmt.Errorf("tier registry: %s: %w", name, err)
		}
		tiers[name] = t
	}
	return &Registry{tiers: tiers}, nil
}

// Get returns the configured Tier for name, or an error if it was never
// registered.
func (r *Registry) Get(name Name) (Tier, error) {
	t, ok := r.tiers[name]
	if !ok {
		return nil, fmt.Errorf("tier registry: no tier configured for %s", name)
	}
	return t, nil
}

// DefaultConfigs returns the tier configuration named in §6.4's worked
// example, for callers that have not supplied their own. Model identifiers
// here are the smallest/cheapest-to-largest Claude family members available
// at the time this kernel was built; operators are expected to override
// these via config (§6.5).
func DefaultConfigs(l2System, l3System, l4System string) map[Name]Config {
	return map[Name]Config{
		L2: {Model: "claude-3-5-haiku-20241022", SystemPrompt: l2System},
		L3: {Model: "claude-sonnet-4-5-20250929", SystemPrompt: l3System},
		L4: {Model: "claude-opus-4-1-20250805", SystemPrompt: l4System},
	}
}
