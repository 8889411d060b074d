package wsocket

import (
	"sync"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/iostream"
)

// registry dispatches an upgrade request to the MessageHandler registered
// for its path, since server.Application.SetUpgradeHandler only accepts a
// single handler for the whole connection state machine — this is the
// same static-map-first routing idea router.Router uses, scoped to just
// the handful of paths that ever upgrade.
type registry struct {
	mu       sync.RWMutex
	upgrader *Upgrader
	routes   map[string]MessageHandler
}

// Mux accumulates WebSocket routes and produces the single
// server.UpgradeHandler an Application needs.
type Mux struct {
	reg *registry
}

// NewMux creates an empty WebSocket route set using upgrader for every
// registered path's handshake (nil uses a zero-value Upgrader, which skips
// origin checking and subprotocol negotiation).
func NewMux(upgrader *Upgrader) *Mux {
	if upgrader == nil {
		upgrader = &Upgrader{}
	}
	return &Mux{reg: &registry{upgrader: upgrader, routes: make(map[string]MessageHandler)}}
}

// Handle registers handler for path.
func (m *Mux) Handle(path string, handler MessageHandler) {
	m.reg.mu.Lock()
	m.reg.routes[path] = handler
	m.reg.mu.Unlock()
}

// UpgradeHandler returns the function to pass to
// server.Application.SetUpgradeHandler.
func (m *Mux) UpgradeHandler() func(s *iostream.IOStream, req *httpcore.Request, resp *httpcore.Response) {
	return func(s *iostream.IOStream, req *httpcore.Request, resp *httpcore.Response) {
		m.reg.mu.RLock()
		handler, ok := m.reg.routes[string(req.Path)]
		upgrader := m.reg.upgrader
		m.reg.mu.RUnlock()
		if !ok {
			writeHandshakeError(s, 404, "no websocket route registered for this path")
			return
		}
		upgrader.Handle(s, req, resp, handler)
	}
}
