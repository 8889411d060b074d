package staticfile

import (
	"encoding/hex"
	"fmt"
	"io"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/router"
)

// computeETag derives a weak-looking but content-stable ETag from a file's
// size and modification time via BLAKE2b (chosen over the more common
// MD5/SHA1 ETag recipe because it's already in the domain dependency set
// and is faster per byte than either for this fixed small input).
func computeETag(info os.FileInfo) string {
	var buf [24]byte
	size := info.Size()
	mtime := info.ModTime().UnixNano()
	for i := 0; i < 8; i++ {
		buf[i] = byte(size >> (8 * i))
		buf[8+i] = byte(mtime >> (8 * i))
	}
	sum := blake2b.Sum256(buf[:16])
	return `"` + hex.EncodeToString(sum[:8]) + `"`
}

// Handler serves files rooted at Root, honoring conditional and byte-range
// requests.
//
// Not grounded in the teacher (neither bolt nor shockwave implements
// static file serving); built from the spec's §4.8 description, following
// this codebase's established response-builder idiom (httpcore.Response)
// and using the rewritten cache above for stat/ETag lookups.
type Handler struct {
	Root  string
	Cache *StatCache

	// IndexNames are tried, in order, when a request path resolves to a
	// directory.
	IndexNames []string
}

// New creates a Handler serving files under root with a stat cache of the
// given TTL.
func New(root string, statCacheTTL time.Duration) *Handler {
	return &Handler{
		Root:       root,
		Cache:      NewStatCache(statCacheTTL),
		IndexNames: []string{"index.html"},
	}
}

// ServeRoute adapts Handler to router.Handler, serving the *wildcard
// path parameter (conventionally registered as Static("/*path", ...)).
func (h *Handler) ServeRoute(req *httpcore.Request, resp *httpcore.Response, params *router.Params) {
	rel, _ := params.Get("path")
	h.Serve(req, resp, string(rel))
}

// Serve resolves relPath under Root and writes the appropriate response:
// 404 if missing, 304 for a matching conditional request, 206/416 for a
// Range request, or 200 with the full body otherwise.
func (h *Handler) Serve(req *httpcore.Request, resp *httpcore.Response, relPath string) {
	cleanPath := filepath.Clean("/" + relPath)
	fullPath := filepath.Join(h.Root, cleanPath)
	if !strings.HasPrefix(fullPath, filepath.Clean(h.Root)+string(filepath.Separator)) && fullPath != filepath.Clean(h.Root) {
		resp.Status = 403
		resp.SetBody([]byte(httpcore.StatusText(403)))
		return
	}

	info, etag, err := h.Cache.Stat(fullPath)
	if err != nil {
		resp.Status = 404
		resp.SetBody([]byte(httpcore.StatusText(404)))
		return
	}
	if info.IsDir() {
		h.serveIndex(req, resp, fullPath)
		return
	}

	resp.Headers.Put([]byte("ETag"), []byte(etag))
	resp.Headers.Put([]byte("Last-Modified"), []byte(info.ModTime().UTC().Format(time.RFC1123)))
	resp.Headers.Put([]byte("Accept-Ranges"), []byte("bytes"))

	if inm, ok := req.HeaderValue("If-None-Match"); ok && inm == etag {
		resp.Status = 304
		return
	}
	if ims, ok := req.HeaderValue("If-Modified-Since"); ok {
		if t, err := time.Parse(time.RFC1123, ims); err == nil && !info.ModTime().After(t) {
			resp.Status = 304
			return
		}
	}

	f, err := os.Open(fullPath)
	if err != nil {
		resp.Status = 404
		resp.SetBody([]byte(httpcore.StatusText(404)))
		return
	}

	contentType := mimeTypeFor(fullPath)
	resp.Headers.Put([]byte("Content-Type"), []byte(contentType))

	rangeHeader, hasRange := req.HeaderValue("Range")
	if !hasRange {
		resp.Status = 200
		resp.SendStream(f, info.Size())
		return
	}

	start, end, ok := parseRange(rangeHeader, info.Size())
	if !ok {
		f.Close()
		resp.Status = 416
		resp.Headers.Put([]byte("Content-Range"), []byte("bytes */"+strconv.FormatInt(info.Size(), 10)))
		resp.SetBody(nil)
		return
	}

	if _, err := f.Seek(start, io.SeekStart); err != nil {
		f.Close()
		resp.Status = 500
		resp.SetBody([]byte(httpcore.StatusText(500)))
		return
	}

	length := end - start + 1
	resp.Status = 206
	resp.Headers.Put([]byte("Content-Range"), []byte(fmt.Sprintf("bytes %d-%d/%d", start, end, info.Size())))
	resp.SendStream(io.LimitReader(f, length), length)
}

func (h *Handler) serveIndex(req *httpcore.Request, resp *httpcore.Response, dirPath string) {
	for _, name := range h.IndexNames {
		candidate := filepath.Join(dirPath, name)
		if info, etag, err := h.Cache.Stat(candidate); err == nil && !info.IsDir() {
			f, ferr := os.Open(candidate)
			if ferr != nil {
				continue
			}
			resp.Headers.Put([]byte("ETag"), []byte(etag))
			resp.Headers.Put([]byte("Content-Type"), []byte(mimeTypeFor(candidate)))
			resp.Status = 200
			resp.SendStream(f, info.Size())
			return
		}
	}
	resp.Status = 404
	resp.SetBody([]byte(httpcore.StatusText(404)))
}

// parseRange parses a single-range "bytes=start-end" header value (spec
// §4.8: multi-range requests are not supported — Non-goal — a request
// naming more than one range is rejected with 416, same as naming an
// out-of-bounds range).
func parseRange(header string, size int64) (start, end int64, ok bool) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return 0, 0, false
	}
	spec := header[len(prefix):]
	if strings.Contains(spec, ",") {
		return 0, 0, false
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	if parts[0] == "" {
		// Suffix range: "-N" means the last N bytes.
		n, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, true
	}
	s, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || s < 0 || s >= size {
		return 0, 0, false
	}
	if parts[1] == "" {
		return s, size - 1, true
	}
	e, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || e < s {
		return 0, 0, false
	}
	if e >= size {
		e = size - 1
	}
	return s, e, true
}

func mimeTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mt, ok := extraMimeTypes[ext]; ok {
		return mt
	}
	return textproto.TrimString(defaultMimeType(ext))
}

var extraMimeTypes = map[string]string{
	".js":   "text/javascript; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".json": "application/json; charset=utf-8",
	".svg":  "image/svg+xml",
	".wasm": "application/wasm",
}

func defaultMimeType(ext string) string {
	switch ext {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".txt":
		return "text/plain; charset=utf-8"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".ico":
		return "image/x-icon"
	default:
		return "application/octet-stream"
	}
}
