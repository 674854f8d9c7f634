package actions

import "sort"

// Registry is an immutable action-name → Handler mapping. It is built once
// at startup and passed by reference into the HTTP layer; there is no global
// registration and no mutation after construction.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry copies the given mapping into a fresh Registry. Entries with an
// empty name or nil handler are skipped.
func NewRegistry(handlers map[string]Handler) *Registry {
	m := make(map[string]Handler, len(handlers))
	for name, h := range handlers {
		if name == "" || h == nil {
			continue
		}
		m[name] = h
	}
	return &Registry{handlers: m}
}

// Resolve returns the handler for name, or false when the action is unknown.
func (r *Registry) Resolve(name string) (Handler, bool) {
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns all registered action names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of registered actions.
func (r *Registry) Len() int { return len(r.handlers) }
