// Package benchmarks holds cross-package throughput benchmarks that don't
// belong inside any single package's own _test.go files (request parsing
// end-to-end through a real net.Conn, not just one package's internals).
//
// Grounded on shockwave/pkg/shockwave/http11's bench suite style (one
// benchmark per request shape, b.ReportAllocs() on every case).
package benchmarks

import (
	"io"
	"net"
	"testing"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/iostream"
)

func BenchmarkParseHeadSimpleGET(b *testing.B) {
	const raw = "GET /foo HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n"
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		for {
			if _, err := io.WriteString(client, raw); err != nil {
				return
			}
		}
	}()

	s := iostream.New(server, 4096)
	req := httpcore.NewRequest(8192, 32, 16)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := httpcore.ParseHead(s, req, httpcore.Limits{}); err != nil {
			b.Fatalf("ParseHead failed: %v", err)
		}
	}
}

func BenchmarkParseHeadWithManyHeaders(b *testing.B) {
	raw := "GET /foo HTTP/1.1\r\nHost: example.com\r\n"
	for i := 0; i < 20; i++ {
		raw += "X-Custom-Header-" + string(rune('A'+i%26)) + ": value\r\n"
	}
	raw += "\r\n"

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		for {
			if _, err := io.WriteString(client, raw); err != nil {
				return
			}
		}
	}()

	s := iostream.New(server, 8192)
	req := httpcore.NewRequest(16384, 32, 16)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := httpcore.ParseHead(s, req, httpcore.Limits{}); err != nil {
			b.Fatalf("ParseHead failed: %v", err)
		}
	}
}
