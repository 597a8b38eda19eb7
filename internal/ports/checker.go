package ports

import (
	"context"
	"net"
	"strconv"
	"syscall"
)

// PortChecker decides whether a port can currently be bound on this host.
type PortChecker interface {
	IsOpen(port int) bool
}

// PortCheckerFunc adapts a plain function to the PortChecker interface.
type PortCheckerFunc func(port int) bool

// IsOpen calls f(port).
func (f PortCheckerFunc) IsOpen(port int) bool { return f(port) }

// SocketChecker binds a listener with SO_REUSEADDR set and releases it
// immediately. A successful bind is taken as proof of availability.
type SocketChecker struct {
	// Host to bind; empty means all interfaces.
	Host string
}

// IsOpen implements PortChecker.
func (p SocketChecker) IsOpen(port int) bool {
	lc := net.ListenConfig{Control: reuseAddrControl}
	l, err := lc.Listen(context.Background(), "tcp", net.JoinHostPort(p.Host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

func reuseAddrControl(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
