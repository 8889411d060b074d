package socket

import (
	"io"
	"net"
	"os"
	"testing"
)

func tempFileWithContent(t *testing.T, content string) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "sendfile-test-*")
	if err != nil {
		t.Fatalf("CreateTemp failed: %v", err)
	}
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("WriteString failed: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		t.Fatalf("Seek failed: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func tcpPair(t *testing.T) (client, server net.Conn) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	client, err = net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	server = <-accepted
	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, server
}

func TestSendFileAllTransfersWholeFile(t *testing.T) {
	content := "the quick brown fox jumps over the lazy dog"
	f := tempFileWithContent(t, content)

	client, server := tcpPair(t)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, len(content))
		_, _ = io.ReadFull(client, buf)
		done <- buf
	}()

	n, err := SendFileAll(server, f)
	if err != nil {
		t.Fatalf("SendFileAll failed: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("SendFileAll returned %d bytes, want %d", n, len(content))
	}

	got := <-done
	if string(got) != content {
		t.Errorf("received %q, want %q", got, content)
	}
}

func TestSendFileRangeSendsInclusiveSlice(t *testing.T) {
	content := "0123456789"
	f := tempFileWithContent(t, content)

	client, server := tcpPair(t)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 4)
		_, _ = io.ReadFull(client, buf)
		done <- buf
	}()

	n, err := SendFileRange(server, f, 2, 5)
	if err != nil {
		t.Fatalf("SendFileRange failed: %v", err)
	}
	if n != 4 {
		t.Errorf("SendFileRange returned %d bytes, want 4", n)
	}

	got := <-done
	if string(got) != "2345" {
		t.Errorf("received %q, want 2345", got)
	}
}

func TestSendFileRangeRejectsInvertedRange(t *testing.T) {
	f := tempFileWithContent(t, "abc")
	client, server := tcpPair(t)
	client.Close()

	if _, err := SendFileRange(server, f, 5, 2); err == nil {
		t.Fatal("expected error for end < start")
	}
}
