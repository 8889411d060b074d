// Package middleware collects optional Pre/Post hooks (CORS, structured
// request logging, rate limiting, request IDs, response compression) that
// an embedder registers via Application.Use. Each one here is adapted
// from bolt/middleware's decorator-chain functions onto this core's
// Middleware interface (Init/Pre/Post/Deinit) — none of them wrap a
// next(Handler) call, since that call doesn't exist in this model; a
// middleware that needs to stop dispatch sets resp.Handled instead (see
// CORS's preflight short-circuit below).
package middleware

import (
	"strconv"
	"strings"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/server"
)

// CORSConfig configures the CORS middleware.
//
// Grounded on bolt/middleware/cors.go's CORSConfig; the header-writing
// logic is the same, ported from bolt's core.Context.SetHeader calls to
// httpcore.Headers.Put and from bolt's wrapping Handler to a Pre hook
// that marks the response Handled for preflight requests instead of
// calling a following handler itself.
type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig allows every origin, the common verbs, and any
// request header.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"},
		AllowHeaders: []string{"*"},
		MaxAge:       86400,
	}
}

// CORS implements server.Middleware, answering preflight OPTIONS requests
// directly and annotating every other response with the negotiated
// Access-Control-* headers.
type CORS struct {
	server.NopMiddleware

	cfg              CORSConfig
	allowAllOrigins  bool
	originSet        map[string]bool
	allowMethodsJoin string
	allowHeadersJoin string
	exposeHeadersJoin string
	maxAgeStr        string
}

// NewCORS builds a CORS middleware from cfg, filling in DefaultCORSConfig
// values for anything left zero.
func NewCORS(cfg CORSConfig) *CORS {
	if len(cfg.AllowOrigins) == 0 {
		cfg.AllowOrigins = []string{"*"}
	}
	if len(cfg.AllowMethods) == 0 {
		cfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}
	}
	if len(cfg.AllowHeaders) == 0 {
		cfg.AllowHeaders = []string{"*"}
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 86400
	}

	c := &CORS{
		cfg:               cfg,
		originSet:         make(map[string]bool, len(cfg.AllowOrigins)),
		allowMethodsJoin:  strings.Join(cfg.AllowMethods, ", "),
		allowHeadersJoin:  strings.Join(cfg.AllowHeaders, ", "),
		exposeHeadersJoin: strings.Join(cfg.ExposeHeaders, ", "),
		maxAgeStr:         strconv.Itoa(cfg.MaxAge),
	}
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			c.allowAllOrigins = true
			break
		}
		c.originSet[o] = true
	}
	return c
}

func (c *CORS) Pre(req *httpcore.Request, resp *httpcore.Response) {
	origin, hasOrigin := req.HeaderValue("Origin")

	var allowOrigin string
	switch {
	case c.allowAllOrigins:
		allowOrigin = "*"
	case hasOrigin && c.originSet[origin]:
		allowOrigin = origin
	}

	if allowOrigin != "" {
		_ = resp.Headers.Put([]byte("Access-Control-Allow-Origin"), []byte(allowOrigin))
		if c.cfg.AllowCredentials {
			_ = resp.Headers.Put([]byte("Access-Control-Allow-Credentials"), []byte("true"))
		}
		if len(c.cfg.ExposeHeaders) > 0 {
			_ = resp.Headers.Put([]byte("Access-Control-Expose-Headers"), []byte(c.exposeHeadersJoin))
		}
	}

	if req.Method == httpcore.MethodOPTIONS {
		if allowOrigin != "" {
			_ = resp.Headers.Put([]byte("Access-Control-Allow-Methods"), []byte(c.allowMethodsJoin))
			_ = resp.Headers.Put([]byte("Access-Control-Allow-Headers"), []byte(c.allowHeadersJoin))
			_ = resp.Headers.Put([]byte("Access-Control-Max-Age"), []byte(c.maxAgeStr))
		}
		resp.Status = 204
		resp.Handled = true
	}
}
