package middleware

import (
	"sync"
	"time"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/logging"
	"github.com/miraimindz/embercore/server"
)

// AccessLog logs one structured line per request: method, path, status,
// duration, and bytes sent.
//
// Grounded on bolt/middleware/logger.go's Logger (same fields logged:
// method/path/status/duration/bytes), ported from its
// encoding/json.Encoder-to-io.Writer approach onto this module's zap-backed
// logging.Logger, since every other ambient log line in this core already
// goes through that package.
//
// One AccessLog instance is shared by every connection goroutine, so the
// request start time cannot live in a struct field the way a single
// decorator closure could hold it; it is keyed by the *httpcore.Request
// pointer instead, which is only ever touched by the one goroutine
// driving that request for the Pre-to-Post span.
type AccessLog struct {
	server.NopMiddleware

	log       *logging.Logger
	skipPaths map[string]bool
	starts    sync.Map // *httpcore.Request -> time.Time
}

// NewAccessLog builds an AccessLog writing through log, skipping any path
// named in skipPaths (health checks, metrics scrapes).
func NewAccessLog(log *logging.Logger, skipPaths ...string) *AccessLog {
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	return &AccessLog{log: log, skipPaths: skip}
}

func (a *AccessLog) Pre(req *httpcore.Request, resp *httpcore.Response) {
	if a.skipPaths[string(req.Path)] {
		return
	}
	a.starts.Store(req, time.Now())
}

func (a *AccessLog) Post(req *httpcore.Request, resp *httpcore.Response) {
	if a.skipPaths[string(req.Path)] {
		return
	}
	v, ok := a.starts.LoadAndDelete(req)
	if !ok {
		return
	}
	start := v.(time.Time)
	a.log.Info("request",
		"method", req.Method.String(),
		"path", string(req.Path),
		"status", resp.Status,
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
		"bytes", resp.BytesSent(),
	)
}
