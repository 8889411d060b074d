package httpcore

import "bytes"

func eqFoldBytes(a, b []byte) bool { return bytes.EqualFold(a, b) }

// containsTokenFold reports whether comma-separated list contains token,
// case-insensitively, trimming OWS around each item (used for Connection:
// header token matching, e.g. "keep-alive, Upgrade").
func containsTokenFold(list, token []byte) bool {
	for len(list) > 0 {
		i := bytes.IndexByte(list, ',')
		var item []byte
		if i < 0 {
			item = list
			list = nil
		} else {
			item = list[:i]
			list = list[i+1:]
		}
		item = bytes.TrimSpace(item)
		if bytes.EqualFold(item, token) {
			return true
		}
	}
	return false
}

func parseUintBytes(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n int64
	for _, c := range b {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int64(c-'0')
		if n < 0 {
			return 0, false
		}
	}
	return n, true
}

func parseHexBytes(b []byte) (int64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	var n int64
	for _, c := range b {
		var v int64
		switch {
		case c >= '0' && c <= '9':
			v = int64(c - '0')
		case c >= 'a' && c <= 'f':
			v = int64(c-'a') + 10
		case c >= 'A' && c <= 'F':
			v = int64(c-'A') + 10
		default:
			return 0, false
		}
		n = n*16 + v
		if n < 0 {
			return 0, false
		}
	}
	return n, true
}
