//go:build darwin

package socket

import "golang.org/x/sys/unix"

// applyPlatformOptions sets Darwin-only options. SO_NOSIGPIPE replaces
// the MSG_NOSIGNAL send flag Linux uses to suppress SIGPIPE on a closed
// peer.
func applyPlatformOptions(fd int, cfg *Config) {
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_NOSIGPIPE, 1)
	if cfg.KeepAlive {
		_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_KEEPALIVE, 60)
	}
}

// applyListenerOptions enables TCP Fast Open where the kernel supports it.
// Darwin has no TCP_DEFER_ACCEPT equivalent.
func applyListenerOptions(fd int, cfg *Config) error {
	if !cfg.FastOpen {
		return nil
	}
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_FASTOPEN, 256)
}

// SetQuickAck is a no-op: Darwin has no TCP_QUICKACK equivalent.
func SetQuickAck(fd int) error {
	return nil
}
