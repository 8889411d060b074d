// Package server implements the connection lifecycle state machine (spec
// L8) and the embeddable Application (spec L9): accept loop, per-connection
// goroutine, keep-alive negotiation, middleware hooks, and graceful
// shutdown.
package server

import (
	"net"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/miraimindz/embercore/errs"
	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/iostream"
	"github.com/miraimindz/embercore/pool"
	"github.com/miraimindz/embercore/router"
)

// ConnState mirrors the lock-free connection states the spec's connection
// state machine cycles through: New -> Active <-> Idle -> Closed.
//
// Grounded on shockwave/pkg/shockwave/http11/connection.go's
// atomic.Int32-backed ConnectionState, reused verbatim here since an
// atomic int is already the idiomatic Go rendering of "lock-free state".
type ConnState int32

const (
	StateNew ConnState = iota
	StateActive
	StateIdle
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateActive:
		return "active"
	case StateIdle:
		return "idle"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ConnConfig configures per-connection behavior.
type ConnConfig struct {
	KeepAliveTimeout time.Duration
	MaxRequests      int32 // 0 = unlimited
	ReadBufferSize   int
	Limits           httpcore.Limits
}

// DefaultConnConfig returns sane defaults grounded on
// shockwave/pkg/shockwave/http11/connection.go's DefaultConnectionConfig.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		KeepAliveTimeout: 60 * time.Second,
		MaxRequests:      0,
		ReadBufferSize:   httpcore.DefaultReadBufferSize,
	}
}

// Connection drives one accepted net.Conn through the connection state
// machine: it reads requests off the socket, dispatches them through the
// route table and middleware chain, writes responses, and decides after
// each request whether the connection stays open for the next one.
//
// One Connection is only ever driven by a single goroutine (see
// SPEC_FULL.md §5) — the atomic state field exists so other goroutines
// (the janitor, diagnostics) can observe state without locking, not so the
// connection itself can be driven concurrently.
type Connection struct {
	state    atomic.Int32
	lastUse  atomic.Int64
	requests atomic.Int32
	closed   atomic.Bool

	conn   net.Conn
	stream *iostream.IOStream

	cfg ConnConfig
	app *Application

	reqPool  *pool.Pool[httpcore.Request]
	respPool *pool.Pool[httpcore.Response]
	params   *router.Params
}

func newConnection(conn net.Conn, app *Application) *Connection {
	c := &Connection{
		conn:     conn,
		stream:   iostream.New(conn, app.cfg.ConnConfig.ReadBufferSize),
		cfg:      app.cfg.ConnConfig,
		app:      app,
		reqPool:  app.reqPool,
		respPool: app.respPool,
		params:   router.NewParams(),
	}
	c.state.Store(int32(StateNew))
	c.lastUse.Store(time.Now().UnixNano())
	return c
}

func (c *Connection) setState(s ConnState) {
	c.state.Store(int32(s))
	c.lastUse.Store(time.Now().UnixNano())
}

// State returns the connection's current lifecycle state.
func (c *Connection) State() ConnState { return ConnState(c.state.Load()) }

// IdleTime reports how long the connection has been idle; zero while
// active.
func (c *Connection) IdleTime() time.Duration {
	if c.State() == StateActive {
		return 0
	}
	return time.Since(time.Unix(0, c.lastUse.Load()))
}

// Serve runs the connection state machine until the connection closes,
// implementing the spec's 9-step per-request cycle:
//  1. wait for readable data (deadline-bounded, for keep-alive timeout)
//  2. parse request line + headers
//  3. validate Host/Content-Length/Transfer-Encoding
//  4. run middleware Pre hooks
//  5. hand a WebSocket upgrade to the upgrade handler, or look up the route
//  6. for a matched route, read the body into memory, then call the handler
//  7. run middleware Post hooks
//  8. write the response
//  9. decide keep-alive vs close and loop, or tear down
//
// Grounded on shockwave/pkg/shockwave/http11/connection.go's Serve loop,
// adapted from its pooled-Parser/ResponseWriter design (pools live on the
// owning Application here so every connection shares one bounded pool
// instead of carrying a private Parser) and extended with the Pre/Post
// middleware hooks the shockwave connection loop does not have.
func (c *Connection) Serve() {
	defer c.cleanup()

	for {
		if c.closed.Load() {
			return
		}
		if c.cfg.KeepAliveTimeout > 0 {
			_ = c.conn.SetDeadline(time.Now().Add(c.cfg.KeepAliveTimeout))
		}

		c.setState(StateActive)
		req := c.reqPool.Get()
		resp := c.respPool.Get()
		req.ClientAddress = c.conn.RemoteAddr().String()

		err := httpcore.ParseHead(c.stream, req, c.cfg.Limits)
		if err != nil {
			// A transport error means the peer is already gone: there is no one
			// to run middleware observability for, so tear down directly.
			if errs.IsTransport(err) {
				c.respPool.Put(resp)
				c.reqPool.Put(req)
				return
			}
			// Every other parse error still goes through Pre/Post middleware
			// (spec: malformed requests must still get observability) before
			// the best-effort error response is written.
			c.app.runPre(req, resp)
			c.applyParseErrorStatus(err, resp)
			c.app.runPost(req, resp)
			_, _ = resp.WriteTo(c.stream, false)
			c.respPool.Put(resp)
			c.reqPool.Put(req)
			return
		}

		requestNum := c.requests.Add(1)
		willClose := c.cfg.MaxRequests > 0 && requestNum >= c.cfg.MaxRequests

		c.app.runPre(req, resp)

		if req.WantsWebsocketUpgrade() && c.app.upgradeHandler != nil {
			c.app.upgradeHandler(c.stream, req, resp)
			c.respPool.Put(resp)
			c.reqPool.Put(req)
			return // hijacked: this goroutine no longer owns the connection lifecycle
		}

		if !resp.Handled {
			handler, matched := c.app.router.Lookup(req.Method, string(req.Path), c.params)
			if !matched {
				resp.Status = 404
				resp.SetBody([]byte(httpcore.StatusText(404)))
			} else {
				if err := httpcore.ReadBodyInMemory(c.stream, req, c.cfg.Limits); err != nil {
					if errs.IsTransport(err) {
						c.respPool.Put(resp)
						c.reqPool.Put(req)
						return
					}
					// Pre already ran above; Post still runs on this error path
					// (spec: PostMiddleware always runs, even on error) before
					// the response is written.
					c.applyParseErrorStatus(err, resp)
					c.app.runPost(req, resp)
					_, _ = resp.WriteTo(c.stream, false)
					c.respPool.Put(resp)
					c.reqPool.Put(req)
					return
				}
				c.invokeHandler(handler, req, resp)
			}
		}

		c.app.runPost(req, resp)

		resp.Version = req.Version
		if willClose {
			resp.DisconnectOnFinish = true
		}
		keepAlive := req.IsKeepAlive() && !resp.DisconnectOnFinish

		_, werr := resp.WriteTo(c.stream, keepAlive)

		c.respPool.Put(resp)
		c.reqPool.Put(req)

		if werr != nil || !keepAlive {
			return
		}
		c.setState(StateIdle)
	}
}

// invokeHandler calls handler, recovering a panic into a 500 response.
//
// Grounded on bolt/middleware/recovery.go's Recovery, but implemented
// directly in the connection loop rather than as a Middleware: this
// core's Middleware only exposes Pre/Post hooks around dispatch, not a
// wrapping call, so there is nowhere else a recover() guarding the
// handler invocation itself could live.
func (c *Connection) invokeHandler(handler router.Handler, req *httpcore.Request, resp *httpcore.Response) {
	defer func() {
		if r := recover(); r != nil {
			c.app.logger.Error("handler panic", "panic", r, "path", string(req.Path), "stack", string(debug.Stack()))
			resp.Status = 500
			resp.DisconnectOnFinish = true
			resp.SetBody([]byte(httpcore.StatusText(500)))
		}
	}()
	handler(req, resp, c.params)
}

// applyParseErrorStatus maps a parse-time or body-read error onto resp's
// status/body/version fields. Callers are responsible for running
// Pre/Post middleware around this and for writing resp themselves — this
// only fills in what the error response should look like.
func (c *Connection) applyParseErrorStatus(err error, resp *httpcore.Response) {
	status := 400
	switch errs.KindOf(err) {
	case errs.KindMethodNotAllowed:
		status = 405
	case errs.KindUnsupportedHTTPVersion:
		status = 505
	case errs.KindRequestURITooLong:
		status = 414
	case errs.KindRequestHeaderFieldsTooLarge:
		status = 431
	case errs.KindRequestEntityTooLarge:
		status = 413
	case errs.KindImproperlyTerminatedChunk:
		status = 400
	}
	resp.Status = status
	resp.DisconnectOnFinish = true
	resp.SetBody([]byte(httpcore.StatusText(status)))
	resp.Version = httpcore.HTTPVersion11
}

// Close tears the connection down from outside its own goroutine (e.g. the
// janitor evicting a timed-out idle connection, or shutdown draining the
// accept loop).
func (c *Connection) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.setState(StateClosed)
	return c.stream.Close()
}

func (c *Connection) cleanup() {
	_ = c.Close()
}
