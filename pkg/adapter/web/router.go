package web

import (
	"net/http"
	"sync"
)

// Handler is a request handler that claims the requests it serves.
//
// The router asks every registered Handler CanHandle(r) in registration order
// and hands the request to the first one that answers true. CanHandle is
// called for every request, so it must be cheap and free of side effects.
type Handler interface {
	http.Handler

	// CanHandle reports whether this handler serves r.
	CanHandle(r *http.Request) bool
}

// Router dispatches requests to the first matching Handler.
//
// Requests no handler claims get 404.
//
// Thread safety:
// Register may be called concurrently with ServeHTTP.
type Router struct {
	mu       sync.RWMutex
	handlers []Handler
}

// NewRouter creates a router with the given handlers, in dispatch order.
func NewRouter(handlers ...Handler) *Router {
	r := &Router{}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register appends h to the dispatch table. Nil handlers are ignored.
func (rt *Router) Register(h Handler) {
	if h == nil {
		return
	}
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.handlers = append(rt.handlers, h)
}

// Len returns the number of registered handlers.
func (rt *Router) Len() int {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return len(rt.handlers)
}

// match returns the first handler claiming r, or nil.
func (rt *Router) match(r *http.Request) Handler {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	for _, h := range rt.handlers {
		if h.CanHandle(r) {
			return h
		}
	}
	return nil
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := rt.match(r)
	if h == nil {
		http.NotFound(w, r)
		return
	}
	h.ServeHTTP(w, r)
}
