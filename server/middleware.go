package server

import "github.com/miraimindz/embercore/httpcore"

// Middleware is a pluggable request/response hook, run around every
// request dispatched by an Application. Unlike bolt's decorator-chain
// middleware (type Middleware func(Handler) Handler, each layer wrapping
// the next), this core's middleware objects expose discrete lifecycle
// hooks — Pre runs before routing/body-read, Post runs after the handler
// returns, and Init/Deinit bracket the Application's own lifetime — which
// matches the spec's per-object pre/post-hook model more directly than a
// wrapping-function chain would.
//
// All four methods are optional: embed NopMiddleware to get no-op
// defaults and only override what a given middleware actually needs.
type Middleware interface {
	// Init runs once when the middleware is registered with an
	// Application, before the server starts accepting connections.
	Init(app *Application) error

	// Pre runs for every request, before routing and before the request
	// body is read.
	Pre(req *httpcore.Request, resp *httpcore.Response)

	// Post runs for every request after the handler returns, before the
	// response is written to the wire.
	Post(req *httpcore.Request, resp *httpcore.Response)

	// Deinit runs once during graceful shutdown, after the last
	// in-flight request has completed.
	Deinit(app *Application) error
}

// NopMiddleware implements Middleware with no-op methods; embed it in a
// concrete middleware struct to only override the hooks that matter.
type NopMiddleware struct{}

func (NopMiddleware) Init(*Application) error    { return nil }
func (NopMiddleware) Pre(*httpcore.Request, *httpcore.Response)  {}
func (NopMiddleware) Post(*httpcore.Request, *httpcore.Response) {}
func (NopMiddleware) Deinit(*Application) error  { return nil }
