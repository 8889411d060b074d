package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/iostream"
	"github.com/miraimindz/embercore/logging"
	"github.com/miraimindz/embercore/pool"
	"github.com/miraimindz/embercore/router"
	"github.com/miraimindz/embercore/socket"
)

// UpgradeHandler is installed by the wsocket package to take over a
// connection's IOStream once ParseHead reports a WebSocket upgrade
// request; once called, the Application's connection loop considers the
// connection hijacked and returns without writing a response itself.
type UpgradeHandler func(s *iostream.IOStream, req *httpcore.Request, resp *httpcore.Response)

// Config configures an Application.
//
// Grounded on shockwave/pkg/shockwave/server/server.go's Config struct,
// trimmed to the fields this core actually threads through (TLS and HTTP/2
// /HTTP/3 fields are dropped — see SPEC_FULL.md Non-goals).
type Config struct {
	Addr string

	ConnConfig ConnConfig

	MaxConnections int // 0 = unlimited
	Logger         *logging.Logger

	// SocketConfig tunes accepted connections and the listener (TCP_NODELAY,
	// buffer sizes, TCP Fast Open, ...). nil uses socket.DefaultConfig.
	SocketConfig *socket.Config
}

// DefaultConfig returns an Application configuration with the same
// defaults as DefaultConnConfig, listening on ":8080".
func DefaultConfig() Config {
	return Config{
		Addr:       ":8080",
		ConnConfig: DefaultConnConfig(),
	}
}

// Application is the embeddable origin server core (spec L9): it owns the
// route table, the Request/Response pools every connection borrows from,
// the registered middleware chain, and the accept loop.
//
// Grounded on shockwave/pkg/shockwave/server/server_shockwave.go's
// ShockwaveServer (accept loop, per-connection goroutine, shutdown flag,
// connection semaphore), with its sync.WaitGroup connection tracking
// replaced by golang.org/x/sync/errgroup so Shutdown can both wait for
// in-flight connections and propagate the first connection-handling error,
// and its connSem buffered-channel limiter kept as-is (a plain channel is
// already the idiomatic Go rendering of a counting semaphore).
type Application struct {
	cfg    Config
	router *router.Router

	reqPool  *pool.Pool[httpcore.Request]
	respPool *pool.Pool[httpcore.Response]

	middleware     []Middleware
	upgradeHandler UpgradeHandler

	listener net.Listener
	connSem  chan struct{}

	shutdown atomic.Bool
	group    *errgroup.Group
	groupCtx context.Context

	connsMu sync.Mutex
	conns   map[*Connection]struct{}

	logger *logging.Logger
}

// New creates an Application ready to register routes and middleware.
func New(cfg Config) *Application {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	var sem chan struct{}
	if cfg.MaxConnections > 0 {
		sem = make(chan struct{}, cfg.MaxConnections)
	}
	lg := cfg.Logger
	if lg == nil {
		lg = logging.NewDefault()
	}
	app := &Application{
		cfg:     cfg,
		router:  router.New(),
		connSem: sem,
		conns:   make(map[*Connection]struct{}),
		logger:  lg,
	}
	app.reqPool = pool.New(func() *httpcore.Request {
		return httpcore.NewRequest(cfg.ConnConfig.ReadBufferSize, httpcore.DefaultMaxHeaderCount, httpcore.DefaultMaxCookieCount)
	}, func(r *httpcore.Request) { r.Reset() }, 4096)
	app.respPool = pool.New(func() *httpcore.Response {
		return httpcore.NewResponse(httpcore.DefaultMaxHeaderCount)
	}, func(r *httpcore.Response) { r.Reset() }, 4096)
	return app
}

// Router exposes the route table for registration (app.Router().Handle(...)).
func (a *Application) Router() *router.Router { return a.router }

// Use registers a middleware, calling its Init hook immediately.
func (a *Application) Use(m Middleware) error {
	if err := m.Init(a); err != nil {
		return err
	}
	a.middleware = append(a.middleware, m)
	return nil
}

// SetUpgradeHandler installs the handler used for WebSocket upgrade
// requests, such as the one returned by wsocket.Mux.UpgradeHandler.
func (a *Application) SetUpgradeHandler(h UpgradeHandler) { a.upgradeHandler = h }

func (a *Application) runPre(req *httpcore.Request, resp *httpcore.Response) {
	for _, m := range a.middleware {
		m.Pre(req, resp)
	}
}

func (a *Application) runPost(req *httpcore.Request, resp *httpcore.Response) {
	for i := len(a.middleware) - 1; i >= 0; i-- {
		a.middleware[i].Post(req, resp)
	}
}

// ListenAndServe opens a TCP listener on cfg.Addr and serves it until ctx
// is canceled or Shutdown is called.
func (a *Application) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr)
	if err != nil {
		return err
	}
	return a.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled, dispatching each
// to its own goroutine under an errgroup so Shutdown can wait for the
// in-flight set to drain.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	a.listener = ln
	a.group, a.groupCtx = errgroup.WithContext(ctx)
	if err := socket.ApplyListener(ln, a.cfg.SocketConfig); err != nil {
		a.logger.Warn("listener socket tuning failed", "error", err)
	}
	janitorStop := a.startJanitor()
	defer janitorStop()

	go func() {
		<-ctx.Done()
		a.shutdown.Store(true)
		_ = ln.Close()
	}()

	for {
		if a.connSem != nil {
			select {
			case a.connSem <- struct{}{}:
			case <-ctx.Done():
				return a.group.Wait()
			}
		}

		conn, err := ln.Accept()
		if err != nil {
			if a.connSem != nil {
				<-a.connSem
			}
			if a.shutdown.Load() {
				return a.group.Wait()
			}
			a.logger.Warn("accept error", "error", err)
			continue
		}

		if err := socket.Apply(conn, a.cfg.SocketConfig); err != nil {
			a.logger.Warn("connection socket tuning failed", "error", err)
		}

		c := newConnection(conn, a)
		a.trackConn(c)
		a.group.Go(func() error {
			defer a.releaseConnSlot()
			defer a.untrackConn(c)
			c.Serve()
			return nil
		})
	}
}

func (a *Application) releaseConnSlot() {
	if a.connSem != nil {
		<-a.connSem
	}
}

func (a *Application) trackConn(c *Connection) {
	a.connsMu.Lock()
	a.conns[c] = struct{}{}
	a.connsMu.Unlock()
}

func (a *Application) untrackConn(c *Connection) {
	a.connsMu.Lock()
	delete(a.conns, c)
	a.connsMu.Unlock()
}

// Shutdown stops accepting new connections and waits for in-flight
// connections to finish, up to ctx's deadline; connections still open when
// ctx expires are force-closed. Every registered middleware's Deinit hook
// runs once draining completes (or is forced).
func (a *Application) Shutdown(ctx context.Context) error {
	if !a.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	if a.listener != nil {
		_ = a.listener.Close()
	}

	done := make(chan error, 1)
	go func() { done <- a.group.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		a.forceCloseAll()
		waitErr = ctx.Err()
	}

	for i := len(a.middleware) - 1; i >= 0; i-- {
		if err := a.middleware[i].Deinit(a); err != nil {
			a.logger.Warn("middleware deinit error", "error", err)
		}
	}
	return waitErr
}

func (a *Application) forceCloseAll() {
	a.connsMu.Lock()
	conns := make([]*Connection, 0, len(a.conns))
	for c := range a.conns {
		conns = append(conns, c)
	}
	a.connsMu.Unlock()
	for _, c := range conns {
		_ = c.Close()
	}
}

// idleConnections returns a snapshot of currently-idle connections, used by
// the janitor to evict ones that have overstayed KeepAliveTimeout.
func (a *Application) idleConnections() []*Connection {
	a.connsMu.Lock()
	defer a.connsMu.Unlock()
	out := make([]*Connection, 0, len(a.conns))
	for c := range a.conns {
		if c.State() == StateIdle {
			out = append(out, c)
		}
	}
	return out
}
