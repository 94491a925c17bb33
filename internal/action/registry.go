package action

import (
	"errors"
	"fmt"
	"sort"
)

// ErrAborted is wrapped by handlers that refuse to run, e.g. when a host-side
// safety rule denies the action. The controller records such ticks as aborted.
var ErrAborted = errors.New("action aborted")

// #region handler

// Handler runs an action on the host system. Handlers may be long-running;
// the controller bounds how long it waits but does not cancel them.
type Handler interface {
	Invoke(kind Kind) (Report, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(kind Kind) (Report, error)

// Invoke calls f(kind).
func (f HandlerFunc) Invoke(kind Kind) (Report, error) {
	return f(kind)
}

// noopHandler reports success without touching the host.
type noopHandler struct{}

func (noopHandler) Invoke(kind Kind) (Report, error) {
	return Report{Kind: kind, Status: "noop"}, nil
}

// #endregion handler

// #region registry

// Registry binds one handler to each Kind. It is populated at controller
// construction and read-only afterwards.
type Registry struct {
	handlers map[Kind]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Kind]Handler)}
}

// Register binds h to kind, replacing any previous binding.
func (r *Registry) Register(kind Kind, h Handler) error {
	if !kind.Valid() {
		return fmt.Errorf("register handler: unknown action kind %q", kind)
	}
	if h == nil {
		return fmt.Errorf("register handler: nil handler for %s", kind)
	}
	r.handlers[kind] = h
	return nil
}

// Handler returns the handler for kind. Observational kinds without a
// registered handler get a no-op handler.
func (r *Registry) Handler(kind Kind) (Handler, bool) {
	if h, ok := r.handlers[kind]; ok {
		return h, true
	}
	if kind.Valid() && !kind.IsIntervention() {
		return noopHandler{}, true
	}
	return nil, false
}

// Kinds returns the registered kinds in priority order.
func (r *Registry) Kinds() []Kind {
	kinds := make([]Kind, 0, len(r.handlers))
	for k := range r.handlers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i].Rank() < kinds[j].Rank() })
	return kinds
}

// Missing returns intervention kinds that have no handler.
func (r *Registry) Missing() []Kind {
	var missing []Kind
	for _, k := range Priority {
		if !k.IsIntervention() {
			continue
		}
		if _, ok := r.handlers[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing
}

// #endregion registry
