//go:build unix

package transport_test

import (
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/momentics/hioload-arith/api"
	"github.com/momentics/hioload-arith/internal/transport"
)

// acceptOne polls the non-blocking listener until a peer shows up.
func acceptOne(t *testing.T, ln *transport.Listener) (int, string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		fd, remote, err := ln.Accept()
		if err == nil {
			return fd, remote
		}
		if !errors.Is(err, transport.ErrWouldBlock) {
			t.Fatalf("Accept: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("no connection accepted")
	return -1, ""
}

func TestListener_AcceptReadWrite(t *testing.T) {
	ln, err := transport.Listen("127.0.0.1:0", 0)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	if _, _, err := ln.Accept(); !errors.Is(err, transport.ErrWouldBlock) {
		t.Fatalf("Accept on idle listener = %v, want ErrWouldBlock", err)
	}

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	fd, remote := acceptOne(t, ln)
	defer transport.Close(fd)
	if remote != conn.LocalAddr().String() {
		t.Errorf("remote = %q, want %q", remote, conn.LocalAddr().String())
	}

	buf := make([]byte, 16)
	if _, err := transport.Read(fd, buf); !errors.Is(err, transport.ErrWouldBlock) {
		t.Fatalf("Read before data = %v, want ErrWouldBlock", err)
	}

	if _, err := conn.Write([]byte("3 + 4")); err != nil {
		t.Fatalf("client write: %v", err)
	}
	var n int
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err = transport.Read(fd, buf)
		if !errors.Is(err, transport.ErrWouldBlock) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if err != nil || string(buf[:n]) != "3 + 4" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}

	if w, err := transport.Write(fd, []byte("ok")); err != nil || w != 2 {
		t.Fatalf("Write = %d, %v", w, err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply := make([]byte, 2)
	if _, err := conn.Read(reply); err != nil || string(reply) != "ok" {
		t.Fatalf("client read = %q, %v", reply, err)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err = transport.Read(fd, buf)
		if !errors.Is(err, transport.ErrWouldBlock) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if n != 0 || err != nil {
		t.Fatalf("Read after peer close = %d, %v; want 0, nil", n, err)
	}
}

func TestListen_DualStackDefault(t *testing.T) {
	ln, err := transport.Listen(":0", 16)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	conn, err := net.Dial("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		t.Fatalf("IPv4 dial against wildcard listener: %v", err)
	}
	conn.Close()
}

func TestListen_BadAddress(t *testing.T) {
	if _, err := transport.Listen("no-port", 0); !errors.Is(err, api.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestListen_AddressInUse(t *testing.T) {
	ln, err := transport.Listen("127.0.0.1:0", 0)
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	_, err = transport.Listen(ln.Addr().String(), 0)
	if !errors.Is(err, api.ErrTransport) {
		t.Fatalf("second Listen = %v, want transport error", err)
	}
}
