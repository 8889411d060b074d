package wsocket

import (
	"bufio"
	"net"
	"strings"
	"testing"

	"github.com/miraimindz/embercore/httpcore"
	"github.com/miraimindz/embercore/iostream"
)

func newUpgradeRequest(t *testing.T, key string) *httpcore.Request {
	t.Helper()
	req := httpcore.NewRequest(4096, 16, 8)
	req.Headers.Put([]byte("Sec-WebSocket-Key"), []byte(key))
	req.Headers.Put([]byte("Sec-WebSocket-Version"), []byte("13"))
	return req
}

func TestUpgraderHandleCompletesHandshake(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := iostream.New(server, 4096)
	u := &Upgrader{}
	req := newUpgradeRequest(t, "dGhlIHNhbXBsZSBub25jZQ==")
	resp := httpcore.NewResponse(8)

	done := make(chan struct{})
	go func() {
		u.Handle(s, req, resp, func(c *Conn) {
			close(done)
		})
	}()

	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read status line: %v", err)
	}
	if !strings.Contains(statusLine, "101") {
		t.Fatalf("status line = %q, want 101 Switching Protocols", statusLine)
	}

	var acceptLine string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read header line: %v", err)
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		if strings.HasPrefix(line, "Sec-WebSocket-Accept:") {
			acceptLine = line
		}
	}
	want := "s3pPLMBiTxaQ9kYGzzhZRbK+xOo="
	if !strings.Contains(acceptLine, want) {
		t.Errorf("Sec-WebSocket-Accept line = %q, want it to contain %q", acceptLine, want)
	}
	<-done
}

func TestUpgraderHandleAcceptsLegacyVersions(t *testing.T) {
	for _, version := range []string{"7", "8", "13"} {
		client, server := net.Pipe()

		s := iostream.New(server, 4096)
		u := &Upgrader{}
		req := httpcore.NewRequest(4096, 16, 8)
		req.Headers.Put([]byte("Sec-WebSocket-Key"), []byte("dGhlIHNhbXBsZSBub25jZQ=="))
		req.Headers.Put([]byte("Sec-WebSocket-Version"), []byte(version))
		resp := httpcore.NewResponse(8)

		done := make(chan struct{})
		go func() {
			u.Handle(s, req, resp, func(c *Conn) {
				close(done)
			})
		}()

		reader := bufio.NewReader(client)
		statusLine, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("version %s: failed to read status line: %v", version, err)
		}
		if !strings.Contains(statusLine, "101") {
			t.Errorf("version %s: status line = %q, want 101 Switching Protocols", version, statusLine)
		}
		<-done
		client.Close()
	}
}

func TestUpgraderHandleRejectsUnsupportedVersion(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := iostream.New(server, 4096)
	u := &Upgrader{}
	req := newUpgradeRequest(t, "dGhlIHNhbXBsZSBub25jZQ==")
	req.Headers.Put([]byte("Sec-WebSocket-Version"), []byte("6"))
	resp := httpcore.NewResponse(8)

	go u.Handle(s, req, resp, func(c *Conn) {
		t.Error("handler should not be invoked for an unsupported version")
	})

	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read status line: %v", err)
	}
	if !strings.Contains(statusLine, "400") {
		t.Errorf("status line = %q, want 400", statusLine)
	}
}

func TestUpgraderHandleRejectsMissingKey(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := iostream.New(server, 4096)
	u := &Upgrader{}
	req := httpcore.NewRequest(4096, 16, 8)
	resp := httpcore.NewResponse(8)

	go u.Handle(s, req, resp, func(c *Conn) {
		t.Error("handler should not be invoked when the handshake is rejected")
	})

	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("failed to read status line: %v", err)
	}
	if !strings.Contains(statusLine, "400") {
		t.Errorf("status line = %q, want 400", statusLine)
	}
}

func TestUpgraderSelectsSubprotocol(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	s := iostream.New(server, 4096)
	u := &Upgrader{Subprotocols: []string{"chat", "echo"}}
	req := newUpgradeRequest(t, "dGhlIHNhbXBsZSBub25jZQ==")
	req.Headers.Put([]byte("Sec-WebSocket-Protocol"), []byte("echo, chat"))
	resp := httpcore.NewResponse(8)

	done := make(chan struct{})
	go func() {
		u.Handle(s, req, resp, func(c *Conn) {
			if c.Subprotocol != "chat" {
				t.Errorf("Conn.Subprotocol = %q, want chat (server's preference order)", c.Subprotocol)
			}
			close(done)
		})
	}()

	reader := bufio.NewReader(client)
	_, _ = reader.ReadString('\n')
	var sawProtocol bool
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("failed to read header line: %v", err)
		}
		if strings.TrimSpace(line) == "" {
			break
		}
		if strings.Contains(line, "Sec-WebSocket-Protocol: chat") {
			sawProtocol = true
		}
	}
	if !sawProtocol {
		t.Error("expected Sec-WebSocket-Protocol: chat in the handshake response")
	}
	<-done
}
