package resolver

import (
	"fmt"

	"AlphaPulse/internal/domain/repository"
	"AlphaPulse/internal/providers"
)

// Registry maps data classes to their configured ordered provider chains.
// Chain order is the fallback order: the resolver walks it front to back.
type Registry struct {
	byName map[string]providers.Provider
	chains map[repository.DataClass][]providers.Provider
}

// NewRegistry binds configured chain specs (class -> provider names) to the
// registered provider set. Unknown names or empty chains are configuration
// errors surfaced at startup.
func NewRegistry(available []providers.Provider, chains map[string][]string) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]providers.Provider, len(available)),
		chains: make(map[repository.DataClass][]providers.Provider, len(chains)),
	}
	for _, p := range available {
		r.byName[p.Name()] = p
	}

	for rawClass, names := range chains {
		class := repository.NormalizeDataClass(rawClass)
		if !class.Valid() {
			return nil, fmt.Errorf("resolver chain: unknown data class %q", rawClass)
		}
		if len(names) == 0 {
			return nil, fmt.Errorf("resolver chain: empty chain for %q", rawClass)
		}
		chain := make([]providers.Provider, 0, len(names))
		for _, name := range names {
			p, ok := r.byName[name]
			if !ok {
				return nil, fmt.Errorf("resolver chain %q: unknown provider %q", rawClass, name)
			}
			chain = append(chain, p)
		}
		r.chains[class] = chain
	}
	return r, nil
}

// Chain returns the ordered providers for a class, or nil when the class has
// no configured chain.
func (r *Registry) Chain(class repository.DataClass) []providers.Provider {
	return r.chains[class]
}

// Providers lists every registered provider, for breaker setup.
func (r *Registry) Providers() []providers.Provider {
	out := make([]providers.Provider, 0, len(r.byName))
	for _, p := range r.byName {
		out = append(out, p)
	}
	return out
}
