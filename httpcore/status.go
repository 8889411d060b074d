package httpcore

import "strconv"

// statusText is the subset of IANA-registered reason phrases this core
// needs; the table is intentionally not exhaustive (unlisted codes still
// work: StatusText returns "Unknown Status" as their reason phrase).
var statusText = map[int]string{
	100: "Continue",
	101: "Switching Protocols",
	200: "OK",
	201: "Created",
	202: "Accepted",
	204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently",
	302: "Found",
	303: "See Other",
	304: "Not Modified",
	307: "Temporary Redirect",
	308: "Permanent Redirect",
	400: "Bad Request",
	401: "Unauthorized",
	403: "Forbidden",
	404: "Not Found",
	405: "Method Not Allowed",
	408: "Request Timeout",
	409: "Conflict",
	410: "Gone",
	411: "Length Required",
	413: "Payload Too Large",
	414: "URI Too Long",
	415: "Unsupported Media Type",
	416: "Range Not Satisfiable",
	417: "Expectation Failed",
	426: "Upgrade Required",
	429: "Too Many Requests",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error",
	501: "Not Implemented",
	502: "Bad Gateway",
	503: "Service Unavailable",
	504: "Gateway Timeout",
	505: "HTTP Version Not Supported",
}

// StatusText returns the reason phrase for code, or "Unknown Status" if the
// code is not in the table above.
func StatusText(code int) string {
	if t, ok := statusText[code]; ok {
		return t
	}
	return "Unknown Status"
}

// statusLineCache holds pre-rendered "HTTP/1.1 NNN Reason\r\n" byte slices
// for every table entry, so the hot path never formats a status line.
// Grounded on shockwave/pkg/shockwave/http11/status.go's pre-compiled
// status-line table.
var statusLineCache = func() map[int][]byte {
	m := make(map[int][]byte, len(statusText))
	for code, text := range statusText {
		m[code] = []byte("HTTP/1.1 " + strconv.Itoa(code) + " " + text + "\r\n")
	}
	return m
}()

// statusLine returns a pre-rendered status line for version/code if cached,
// formatting one on demand otherwise (rare: unlisted code).
func statusLine(version HTTPVersion, code int) []byte {
	if version == HTTPVersion11 {
		if line, ok := statusLineCache[code]; ok {
			return line
		}
	}
	proto := "HTTP/1.1"
	if version == HTTPVersion10 {
		proto = "HTTP/1.0"
	}
	return []byte(proto + " " + strconv.Itoa(code) + " " + StatusText(code) + "\r\n")
}
