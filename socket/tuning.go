// Package socket applies platform socket tuning to the raw file descriptors
// behind net.Conn/net.Listener. Application.Serve runs both the listener
// and every accepted connection through here before a socket ever touches
// the HTTP state machine.
//
// Grounded on shockwave/pkg/shockwave/socket/tuning.go's Config/Apply shape,
// rebuilt on golang.org/x/sys/unix instead of the standard syscall package
// so the option constants (TCP_QUICKACK, TCP_FASTOPEN, ...) are available
// without per-file duplicated magic numbers on platforms the stdlib
// syscall package doesn't expose them on.
package socket

import (
	"net"
)

// Config is a set of socket options to apply. Zero value options are
// treated as "leave the kernel default alone" for buffer sizes but
// DefaultConfig should be preferred for real servers.
type Config struct {
	// NoDelay disables Nagle's algorithm (TCP_NODELAY). Critical for
	// request/response latency; failures here are treated as fatal.
	NoDelay bool

	// RecvBuffer/SendBuffer set SO_RCVBUF/SO_SNDBUF in bytes. 0 leaves
	// the kernel default in place.
	RecvBuffer int
	SendBuffer int

	// QuickAck requests immediate ACKs instead of the delayed-ACK timer
	// (Linux only, best-effort).
	QuickAck bool

	// DeferAccept avoids waking the accept loop until data has arrived
	// on the socket (Linux listener only, best-effort).
	DeferAccept bool

	// FastOpen enables TCP Fast Open on the listener where supported.
	FastOpen bool

	// KeepAlive enables SO_KEEPALIVE.
	KeepAlive bool
}

// DefaultConfig is the recommended configuration for a general-purpose
// HTTP server: low latency without starving throughput.
func DefaultConfig() *Config {
	return &Config{
		NoDelay:     true,
		RecvBuffer:  256 * 1024,
		SendBuffer:  256 * 1024,
		QuickAck:    true,
		DeferAccept: true,
		FastOpen:    true,
		KeepAlive:   true,
	}
}

// HighThroughputConfig favors large buffers and delayed ACKs for bulk
// transfer workloads over request/response latency.
func HighThroughputConfig() *Config {
	return &Config{
		NoDelay:     true,
		RecvBuffer:  1024 * 1024,
		SendBuffer:  1024 * 1024,
		QuickAck:    false,
		DeferAccept: true,
		FastOpen:    true,
		KeepAlive:   true,
	}
}

// LowLatencyConfig trades buffer size for minimum per-request latency.
func LowLatencyConfig() *Config {
	return &Config{
		NoDelay:     true,
		RecvBuffer:  128 * 1024,
		SendBuffer:  128 * 1024,
		QuickAck:    true,
		DeferAccept: false,
		FastOpen:    true,
		KeepAlive:   true,
	}
}

// Apply tunes an accepted connection. Call it immediately after Accept,
// before the connection is handed to the state machine. Non-TCP
// connections are left untouched.
func Apply(conn net.Conn, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	rawConn, err := tcpConn.SyscallConn()
	if err != nil {
		return err
	}

	var lastErr error
	ctrlErr := rawConn.Control(func(fd uintptr) {
		if cfg.NoDelay {
			if err := setNoDelay(int(fd)); err != nil {
				lastErr = err
				return
			}
		}
		if cfg.RecvBuffer > 0 {
			_ = setRecvBuffer(int(fd), cfg.RecvBuffer)
		}
		if cfg.SendBuffer > 0 {
			_ = setSendBuffer(int(fd), cfg.SendBuffer)
		}
		if cfg.KeepAlive {
			_ = setKeepAlive(int(fd))
		}
		applyPlatformOptions(int(fd), cfg)
	})
	if ctrlErr != nil {
		return ctrlErr
	}
	return lastErr
}

// ApplyListener tunes a listening socket. TCP_DEFER_ACCEPT and
// TCP_FASTOPEN only take effect when set before the first Accept.
func ApplyListener(listener net.Listener, cfg *Config) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	tcpListener, ok := listener.(*net.TCPListener)
	if !ok {
		return nil
	}
	file, err := tcpListener.File()
	if err != nil {
		return err
	}
	defer file.Close()
	return applyListenerOptions(int(file.Fd()), cfg)
}
