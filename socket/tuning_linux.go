//go:build linux

package socket

import "golang.org/x/sys/unix"

// applyPlatformOptions sets Linux-only best-effort options. QuickAck is
// not persistent — the kernel clears it after the next ACK — so this is
// only a one-time nudge at accept time, not a continuous guarantee.
func applyPlatformOptions(fd int, cfg *Config) {
	if cfg.QuickAck {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_USER_TIMEOUT, 10000)
	if cfg.KeepAlive {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPIDLE, 60)
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPINTVL, 10)
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPCNT, 3)
	}
}

// applyListenerOptions sets TCP_DEFER_ACCEPT and TCP_FASTOPEN, both of
// which only matter if applied before the first Accept.
func applyListenerOptions(fd int, cfg *Config) error {
	var lastErr error
	if cfg.DeferAccept {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_DEFER_ACCEPT, 5); err != nil {
			lastErr = err
		}
	}
	if cfg.FastOpen {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, 256); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SetQuickAck re-arms TCP_QUICKACK; since the kernel clears it after one
// ACK, a connection that wants sustained quick-ack behavior needs to call
// this again after every read.
func SetQuickAck(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_QUICKACK, 1)
}
