//go:build !linux && !darwin

package socket

// applyPlatformOptions is a no-op outside Linux/Darwin.
func applyPlatformOptions(fd int, cfg *Config) {}

// applyListenerOptions is a no-op outside Linux/Darwin.
func applyListenerOptions(fd int, cfg *Config) error { return nil }

// SetQuickAck is a no-op outside Linux.
func SetQuickAck(fd int) error { return nil }
