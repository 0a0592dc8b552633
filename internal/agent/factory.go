package agent

import (
	"fmt"
	"slices"

	"agentdesk/internal/history"
	"agentdesk/internal/llm"
)

// Profile is a named agent configuration with a scoped toolset.
type Profile struct {
	Name         string
	Model        string
	Instructions string
	Tools        []string // tool names; empty = all tools
	MaxTurns     int
}

// Factory builds agents from profiles. Each profile's model is resolved to a
// provider through the given function, so one factory can mix endpoints.
type Factory struct {
	providerFor func(model string) llm.Provider
	store       *history.Store
	registry    *Registry
	profiles    map[string]*Profile
}

func NewFactory(providerFor func(model string) llm.Provider, store *history.Store, registry *Registry, profiles map[string]*Profile) *Factory {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Factory{
		providerFor: providerFor,
		store:       store,
		registry:    registry,
		profiles:    profiles,
	}
}

// Build creates an agent scoped to the tools of the named profile.
func (f *Factory) Build(profileName string) (*Agent, error) {
	profile, ok := f.profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("unknown agent profile: %s", profileName)
	}

	opts := []Option{WithMaxTurns(profile.MaxTurns)}
	if profile.Instructions != "" {
		opts = append(opts, WithInstructions(profile.Instructions))
	}
	if f.store != nil {
		opts = append(opts, WithHistory(f.store))
	}

	name := profile.Name
	if name == "" {
		name = profileName
	}
	return New(name, f.providerFor(profile.Model), f.registry.Scope(profile.Tools), opts...), nil
}

// Profiles returns the names of all registered profiles, sorted.
func (f *Factory) Profiles() []string {
	names := make([]string, 0, len(f.profiles))
	for name := range f.profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
