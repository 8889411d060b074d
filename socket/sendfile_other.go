//go:build !linux

package socket

import (
	"io"
	"net"
	"os"
)

// SendFile falls back to io.Copy on platforms without a wired sendfile(2)
// equivalent in this package.
func SendFile(conn net.Conn, file *os.File, offset int64, count int64) (int64, error) {
	return io.Copy(conn, io.NewSectionReader(file, offset, count))
}

// SendFileAll sends the entire file.
func SendFileAll(conn net.Conn, file *os.File) (int64, error) {
	stat, err := file.Stat()
	if err != nil {
		return 0, err
	}
	return SendFile(conn, file, 0, stat.Size())
}

// SendFileRange sends the inclusive byte range [start, end] of file.
func SendFileRange(conn net.Conn, file *os.File, start, end int64) (int64, error) {
	if end < start {
		return 0, io.EOF
	}
	return SendFile(conn, file, start, end-start+1)
}

// CanUseSendFile always reports false; there is no accelerated path here.
func CanUseSendFile(conn net.Conn) bool {
	return false
}
