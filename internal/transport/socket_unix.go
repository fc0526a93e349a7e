//go:build unix
// +build unix

// internal/transport/socket_unix.go
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Unix transport on raw descriptors via golang.org/x/sys/unix.

package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-arith/api"
)

// Listener is a bound, listening, non-blocking TCP socket.
type Listener struct {
	fd     int
	family int
	closed bool
}

// Listen binds addr ("host:port"). An empty host binds a dual-stack IPv6
// socket and falls back to IPv4 when IPv6 is unavailable.
func Listen(addr string, backlog int) (*Listener, error) {
	host, port, err := splitListenAddr(addr)
	if err != nil {
		return nil, err
	}
	if backlog <= 0 {
		backlog = DefaultBacklog
	}

	var candidates []unix.Sockaddr
	if host == "" {
		candidates = []unix.Sockaddr{
			&unix.SockaddrInet6{Port: port},
			&unix.SockaddrInet4{Port: port},
		}
	} else {
		ips, err := resolveHost(host)
		if err != nil {
			return nil, err
		}
		for _, ip := range ips {
			candidates = append(candidates, sockaddrFor(ip, port))
		}
	}

	var lastErr error
	for _, sa := range candidates {
		l, err := listenOn(sa, backlog, host == "")
		if err == nil {
			return l, nil
		}
		lastErr = err
		if err != errFamilyUnsupported {
			break
		}
	}
	return nil, api.WrapError(api.ErrCodeTransport, "listen "+addr, lastErr)
}

var errFamilyUnsupported = errors.New("address family not supported")

func resolveHost(host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, api.WrapError(api.ErrCodeTransport, "resolve "+host, err)
	}
	return ips, nil
}

func sockaddrFor(ip net.IP, port int) unix.Sockaddr {
	if ip4 := ip.To4(); ip4 != nil {
		sa := &unix.SockaddrInet4{Port: port}
		copy(sa.Addr[:], ip4)
		return sa
	}
	sa := &unix.SockaddrInet6{Port: port}
	copy(sa.Addr[:], ip.To16())
	return sa
}

func listenOn(sa unix.Sockaddr, backlog int, dualStack bool) (*Listener, error) {
	family := unix.AF_INET
	if _, ok := sa.(*unix.SockaddrInet6); ok {
		family = unix.AF_INET6
	}
	fd, err := unix.Socket(family, unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		if err == unix.EAFNOSUPPORT || err == unix.EPROTONOSUPPORT {
			return nil, errFamilyUnsupported
		}
		return nil, fmt.Errorf("socket create: %w", err)
	}
	fail := func(op string, err error) (*Listener, error) {
		unix.Close(fd)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	unix.CloseOnExec(fd)
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return fail("setsockopt SO_REUSEADDR", err)
	}
	if family == unix.AF_INET6 && dualStack {
		if err := unix.SetsockoptInt(fd, unix.IPPROTO_IPV6, unix.IPV6_V6ONLY, 0); err != nil {
			return fail("setsockopt IPV6_V6ONLY", err)
		}
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		return fail("set nonblock", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		if family == unix.AF_INET6 && (err == unix.EADDRNOTAVAIL || err == unix.EAFNOSUPPORT) {
			unix.Close(fd)
			return nil, errFamilyUnsupported
		}
		return fail("bind", err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return fail("listen", err)
	}
	return &Listener{fd: fd, family: family}, nil
}

// FD returns the listening descriptor.
func (l *Listener) FD() int { return l.fd }

// Addr returns the bound address, useful when listening on port 0.
func (l *Listener) Addr() net.Addr {
	sa, err := unix.Getsockname(l.fd)
	if err != nil {
		return &net.TCPAddr{}
	}
	return sockaddrToTCP(sa)
}

// Accept takes exactly one pending connection and returns its non-blocking
// descriptor and the remote address. ErrWouldBlock means nothing was pending.
func (l *Listener) Accept() (int, string, error) {
	for {
		nfd, sa, err := unix.Accept(l.fd)
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.EAGAIN, unix.ECONNABORTED:
				return -1, "", ErrWouldBlock
			}
			return -1, "", api.WrapError(api.ErrCodeTransport, "accept", err)
		}
		unix.CloseOnExec(nfd)
		if err := unix.SetNonblock(nfd, true); err != nil {
			unix.Close(nfd)
			return -1, "", api.WrapError(api.ErrCodeTransport, "set nonblock", err)
		}
		_ = unix.SetsockoptInt(nfd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
		return nfd, sockaddrToTCP(sa).String(), nil
	}
}

// Close closes the listening socket. Subsequent calls are no-ops.
func (l *Listener) Close() error {
	if l.closed {
		return nil
	}
	l.closed = true
	return unix.Close(l.fd)
}

// Read reads available bytes from fd. (0, nil) means the peer closed.
func Read(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Read(fd, p)
		if err == nil {
			return n, nil
		}
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, ErrWouldBlock
		}
		return 0, api.WrapError(api.ErrCodeTransport, "read", err).WithContext("fd", fd)
	}
}

// Write writes as much of p as the kernel accepts and reports how much.
// A short count with a nil error is a partial write.
func Write(fd int, p []byte) (int, error) {
	for {
		n, err := unix.Write(fd, p)
		if err == nil {
			return n, nil
		}
		switch err {
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			return 0, ErrWouldBlock
		}
		return 0, api.WrapError(api.ErrCodeTransport, "write", err).WithContext("fd", fd)
	}
}

// Close closes a peer descriptor.
func Close(fd int) error {
	return unix.Close(fd)
}

func sockaddrToTCP(sa unix.Sockaddr) *net.TCPAddr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IPv4(v.Addr[0], v.Addr[1], v.Addr[2], v.Addr[3]), Port: v.Port}
	case *unix.SockaddrInet6:
		ip := make(net.IP, net.IPv6len)
		copy(ip, v.Addr[:])
		var zone string
		if v.ZoneId != 0 {
			zone = strconv.Itoa(int(v.ZoneId))
		}
		return &net.TCPAddr{IP: ip, Port: v.Port, Zone: zone}
	default:
		return &net.TCPAddr{}
	}
}
