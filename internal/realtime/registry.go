package realtime

import (
	"reflect"
	"sync"

	"farm-console/internal/logging"
	"farm-console/internal/models"
)

// Handler receives envelopes of the types it is registered for.
// Handlers are identified by interface equality, so implementations
// should be pointer types. Use NewHandler to wrap a plain function.
// Registering a handler whose dynamic type is not comparable is a no-op.
type Handler interface {
	HandleEvent(env models.Envelope) error
}

type funcHandler struct {
	fn func(models.Envelope) error
}

func (h *funcHandler) HandleEvent(env models.Envelope) error {
	return h.fn(env)
}

// NewHandler wraps fn. Each call returns a distinct handler, keep the
// returned value to unregister it later.
func NewHandler(fn func(models.Envelope) error) Handler {
	return &funcHandler{fn: fn}
}

// Observer sees every envelope regardless of its type. The store
// reducer, the event mirror and the local relay are observers.
type Observer interface {
	Observe(env models.Envelope)
}

type subscription struct {
	eventType models.EventType
	handler   Handler
}

// Registry maps event types to ordered handler lists.
type Registry struct {
	mu   sync.RWMutex
	subs map[models.EventType][]subscription
}

func NewRegistry() *Registry {
	return &Registry{subs: make(map[models.EventType][]subscription)}
}

// On appends h to the handlers of t. Registering the same pair twice
// results in two invocations per envelope.
func (r *Registry) On(t models.EventType, h Handler) {
	if h == nil || !isComparable(h) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[t] = append(r.subs[t], subscription{eventType: t, handler: h})
}

// Off removes every registration of h for t. Unknown pairs are ignored.
func (r *Registry) Off(t models.EventType, h Handler) {
	if h == nil || !isComparable(h) {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.subs[t]
	kept := make([]subscription, 0, len(list))
	for _, s := range list {
		if !sameHandler(s.handler, h) {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(r.subs, t)
		return
	}
	r.subs[t] = kept
}

func isComparable(h Handler) bool {
	return reflect.TypeOf(h).Comparable()
}

// sameHandler compares a and b; a struct handler holding an
// uncomparable value in an interface field never matches.
func sameHandler(a, b Handler) (same bool) {
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// Handlers returns a snapshot of the handlers registered for t, in
// registration order.
func (r *Registry) Handlers(t models.EventType) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := r.subs[t]
	out := make([]Handler, len(list))
	for i, s := range list {
		out[i] = s.handler
	}
	return out
}

// Count returns the number of registrations for t.
func (r *Registry) Count(t models.EventType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[t])
}

// Router dispatches envelopes to observers and registered handlers.
type Router struct {
	registry  *Registry
	logger    *logging.Logger
	mu        sync.RWMutex
	observers []Observer
}

func NewRouter(registry *Registry, logger *logging.Logger) *Router {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Router{registry: registry, logger: logger}
}

func (r *Router) Registry() *Registry {
	return r.registry
}

// Observe adds o to the observers run ahead of the per-type handlers.
func (r *Router) Observe(o Observer) {
	if o == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Dispatch delivers env synchronously: first to every observer, then to
// the handlers registered for env.Type in registration order. A failing
// or panicking callee is logged and does not stop the others. The
// handler list is snapshotted first, so callees may call On/Off.
func (r *Router) Dispatch(env models.Envelope) {
	r.mu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.mu.RUnlock()

	for _, o := range observers {
		r.safely(env.Type, func() error {
			o.Observe(env)
			return nil
		})
	}

	handlers := r.registry.Handlers(env.Type)
	if len(handlers) == 0 {
		if env.Type.Known() {
			r.logger.Debugf("No handlers for event type %s", env.Type)
		} else {
			r.logger.Warnf("Unknown event type %s", env.Type)
		}
		return
	}
	for _, h := range handlers {
		h := h
		r.safely(env.Type, func() error {
			return h.HandleEvent(env)
		})
	}
}

func (r *Router) safely(t models.EventType, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.WithField("event_type", t).Errorf("Handler panicked: %v", rec)
		}
	}()
	if err := fn(); err != nil {
		r.logger.WithField("event_type", t).Errorf("Handler failed: %v", err)
	}
}
