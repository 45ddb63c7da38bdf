package mdns

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/net/ipv4"
)

// datagramConn is the datagram capability the engine runs on. Both calls
// block the calling goroutine only and return ctx.Err() once ctx is done.
// Reads and writes may run concurrently.
type datagramConn interface {
	ReadFrom(ctx context.Context, b []byte) (n, ifIndex int, src net.Addr, err error)
	WriteTo(ctx context.Context, b []byte, dst net.Addr) (int, error)
	Close() error
}

// aLongTimeAgo is a non-zero time far in the past, used to abort blocked I/O.
var aLongTimeAgo = time.Unix(1, 0)

// ipv4Conn adapts an ipv4.PacketConn to datagramConn. Socket deadlines are
// only ever set by a context abort, so a timed out call always has a done
// context behind it.
type ipv4Conn struct {
	*ipv4.PacketConn
}

func newIPv4Conn(pc *ipv4.PacketConn) *ipv4Conn {
	return &ipv4Conn{PacketConn: pc}
}

func (c *ipv4Conn) ReadFrom(ctx context.Context, b []byte) (int, int, net.Addr, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, nil, err
	}
	if err := c.PacketConn.SetReadDeadline(time.Time{}); err != nil {
		return 0, 0, nil, err
	}

	stop := abortOnDone(ctx, c.PacketConn.SetReadDeadline)
	n, cm, src, err := c.PacketConn.ReadFrom(b)
	stop()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, 0, nil, ctxErr
		}
		return 0, 0, nil, err
	}

	ifIndex := 0
	if cm != nil {
		ifIndex = cm.IfIndex
	}
	return n, ifIndex, src, nil
}

func (c *ipv4Conn) WriteTo(ctx context.Context, b []byte, dst net.Addr) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := c.PacketConn.SetWriteDeadline(time.Time{}); err != nil {
		return 0, err
	}

	stop := abortOnDone(ctx, c.PacketConn.SetWriteDeadline)
	n, err := c.PacketConn.WriteTo(b, nil, dst)
	stop()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return n, ctxErr
		}
		return n, err
	}
	return n, nil
}

func (c *ipv4Conn) Close() error {
	return c.PacketConn.Close()
}

// abortOnDone expires the deadline set by setDeadline as soon as ctx is done.
// The returned stop function waits for an in-flight abort, so the deadline is
// stable once it returns.
func abortOnDone(ctx context.Context, setDeadline func(time.Time) error) (stop func()) {
	fired := make(chan struct{})
	cancel := context.AfterFunc(ctx, func() {
		defer close(fired)
		_ = setDeadline(aLongTimeAgo)
	})
	return func() {
		if !cancel() {
			<-fired
		}
	}
}

// sharedConn is a reference-counted socket. The socket is closed, and its
// group memberships dropped, when the last reference is released.
type sharedConn struct {
	conn datagramConn
	refs atomic.Int32
}

func newSharedConn(conn datagramConn, refs int32) *sharedConn {
	s := &sharedConn{conn: conn}
	s.refs.Store(refs)
	return s
}

func (s *sharedConn) release() error {
	if s.refs.Add(-1) == 0 {
		return s.conn.Close()
	}
	return nil
}

// connRef is one holder's reference to a sharedConn.
type connRef struct {
	shared   *sharedConn
	released atomic.Bool
}

func newConnRef(s *sharedConn) *connRef {
	return &connRef{shared: s}
}

func (r *connRef) conn() (datagramConn, error) {
	if r.released.Load() {
		return nil, ErrClosed
	}
	return r.shared.conn, nil
}

// Close drops this reference. It is safe to call more than once.
func (r *connRef) Close() error {
	if r.released.Swap(true) {
		return nil
	}
	return r.shared.release()
}

// isClosedErr reports whether err means the socket is gone for good.
func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, ErrClosed)
}
