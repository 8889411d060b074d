package header

import "github.com/miraimindz/embercore/errs"

// byteSource is the minimal interface the bulk parser needs from an
// IOStream: single-byte peek/read plus the buffer-scan primitives that let
// it slice header names and values directly out of the live buffer
// instead of accumulating them byte by byte. header only depends on this
// narrow interface (rather than importing iostream's concrete type) to
// keep this package's surface small and independently testable.
type byteSource interface {
	PeekByte() (byte, error)
	ReadByte() (byte, error)
	ReadUntilExpr(pred func(byte) bool, limit int) (pos int, matched bool, err error)
	Buffered() []byte
	Discard(n int)
}

func isTokenChar(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	}
	switch b {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

func isControl(b byte) bool {
	return b < 0x20 && b != '\t' || b == 0x7f
}

func isNotTokenChar(b byte) bool { return !isTokenChar(b) }
func isCROrLF(b byte) bool       { return b == '\r' || b == '\n' }

// ParseBulk consumes header lines from src, terminated by a blank line
// (CRLF CRLF, tolerating lone LF), appending each into h. max bounds the
// total bytes consumed by the header block.
//
// Grounded on shockwave/pkg/shockwave/http11/parser.go's header-scanning
// loop and header.go's token/CRLF rules, adapted to operate over Headers'
// ordered-pair model instead of the teacher's inline-array Header.
//
// Header names and values are sliced directly out of src's buffer via
// ReadUntilExpr rather than accumulated byte by byte, so a typical header
// line costs zero allocations beyond the Headers.Append call itself.
// Continuation lines are the one exception: merging a wrapped value's
// pieces onto the previous header's value needs a byte span that isn't
// contiguous in the source buffer, so that path still builds an owned
// []byte.
func ParseBulk(src byteSource, h *Headers, max int) error {
	consumed := 0
	charge := func(n int) error {
		consumed += n
		if consumed > max {
			return errs.New(errs.KindRequestHeaderFieldsTooLarge, "header block too large")
		}
		return nil
	}
	remaining := func() int {
		n := max - consumed + 1
		if n < 1 {
			return 1
		}
		return n
	}

	var lastKey []byte

	for {
		b, err := src.PeekByte()
		if err != nil {
			return err
		}

		// Blank line terminates the header block.
		if b == '\r' || b == '\n' {
			src.Discard(1)
			if err := charge(1); err != nil {
				return err
			}
			if b == '\n' {
				return nil
			}
			nb, err := src.ReadByte()
			if err != nil {
				return err
			}
			if err := charge(1); err != nil {
				return err
			}
			if nb != '\n' {
				return errs.New(errs.KindBadRequest, "bare CR in header block")
			}
			return nil
		}

		// Continuation line: leading SP/HT, only valid after a prior header.
		if b == ' ' || b == '\t' {
			if lastKey == nil {
				return errs.New(errs.KindBadRequest, "header continuation without prior header")
			}
			for {
				b, err := src.PeekByte()
				if err != nil {
					return err
				}
				if b != ' ' && b != '\t' {
					break
				}
				src.Discard(1)
				if err := charge(1); err != nil {
					return err
				}
			}
			cont, err := scanToLineEnd(src, &consumed, max)
			if err != nil {
				return err
			}
			prev, _ := h.Get(lastKey)
			merged := make([]byte, 0, len(prev)+1+len(cont))
			merged = append(merged, prev...)
			merged = append(merged, ' ')
			merged = append(merged, cont...)
			_ = h.Put(lastKey, merged)
			continue
		}

		// Header name: token chars up to ':'.
		pos, matched, err := src.ReadUntilExpr(isNotTokenChar, remaining())
		if err != nil {
			return err
		}
		if !matched {
			return errs.New(errs.KindRequestHeaderFieldsTooLarge, "header block too large")
		}
		name := src.Buffered()[:pos]
		if len(name) == 0 {
			return errs.New(errs.KindBadRequest, "empty header name")
		}
		src.Discard(pos)
		if err := charge(pos); err != nil {
			return err
		}

		colon, err := src.ReadByte()
		if err != nil {
			return err
		}
		if err := charge(1); err != nil {
			return err
		}
		if colon != ':' {
			return errs.New(errs.KindBadRequest, "malformed header line, expected ':'")
		}

		// Skip OWS after the colon.
		for {
			b, err := src.PeekByte()
			if err != nil {
				return err
			}
			if b != ' ' && b != '\t' {
				break
			}
			src.Discard(1)
			if err := charge(1); err != nil {
				return err
			}
		}

		value, err := scanToLineEnd(src, &consumed, max)
		if err != nil {
			return err
		}
		if err := h.Append(name, value); err != nil {
			return err
		}
		lastKey = name
	}
}

// scanToLineEnd slices the buffer up to (not including) the next CR or LF,
// validates it contains no control characters, trims trailing OWS, and
// consumes through the line terminator (CRLF, tolerating a lone LF).
// *consumed is updated in place against max.
func scanToLineEnd(src byteSource, consumed *int, max int) ([]byte, error) {
	limit := max - *consumed + 1
	if limit < 1 {
		limit = 1
	}
	pos, matched, err := src.ReadUntilExpr(isCROrLF, limit)
	if err != nil {
		return nil, err
	}
	if !matched {
		return nil, errs.New(errs.KindRequestHeaderFieldsTooLarge, "header block too large")
	}
	value := src.Buffered()[:pos]
	for _, c := range value {
		if isControl(c) {
			return nil, errs.New(errs.KindBadRequest, "control character in header value")
		}
	}
	for len(value) > 0 && (value[len(value)-1] == ' ' || value[len(value)-1] == '\t') {
		value = value[:len(value)-1]
	}
	src.Discard(pos)
	*consumed += pos
	if *consumed > max {
		return nil, errs.New(errs.KindRequestHeaderFieldsTooLarge, "header block too large")
	}

	b, err := src.ReadByte()
	if err != nil {
		return nil, err
	}
	*consumed++
	if *consumed > max {
		return nil, errs.New(errs.KindRequestHeaderFieldsTooLarge, "header block too large")
	}
	if b == '\r' {
		nb, err := src.ReadByte()
		if err != nil {
			return nil, err
		}
		*consumed++
		if *consumed > max {
			return nil, errs.New(errs.KindRequestHeaderFieldsTooLarge, "header block too large")
		}
		if nb != '\n' {
			return nil, errs.New(errs.KindBadRequest, "bare CR in header line")
		}
	}
	return value, nil
}
