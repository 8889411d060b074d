package middleware

import (
	"github.com/google/uuid"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/server"
)

// RequestIDHeader is the header this middleware reads an inbound request
// ID from, or writes a generated one to.
const RequestIDHeader = "X-Request-Id"

// RequestID stamps every response with an X-Request-Id, reusing the
// client-supplied value if present so a request can be traced through a
// proxy chain, or generating a new UUIDv4 otherwise.
//
// Not grounded in bolt or shockwave (neither assigns request IDs); built
// from the spec's logging/observability ambient-stack expansion using
// google/uuid, the same library shockwave's benchmark harness already
// pulls in for trace correlation.
type RequestID struct {
	server.NopMiddleware
}

func (RequestID) Pre(req *httpcore.Request, resp *httpcore.Response) {
	id, ok := req.HeaderValue(RequestIDHeader)
	if !ok || id == "" {
		id = uuid.NewString()
	}
	_ = resp.Headers.Put([]byte(RequestIDHeader), []byte(id))
}
