package mdns

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/apex/log"
	"github.com/apex/log/handlers/memory"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/ipv4"
)

// inbound is one datagram (or read failure) queued on a fakeConn.
type inbound struct {
	b       []byte
	src     net.Addr
	ifIndex int
	err     error
}

type outbound struct {
	b   []byte
	dst net.Addr
}

// fakeConn is an in-memory datagramConn. Reads are served from inbox and
// writes are recorded.
type fakeConn struct {
	inbox chan inbound

	mu       sync.Mutex
	sent     []outbound
	writeErr error

	closed    chan struct{}
	closeOnce sync.Once
	closes    atomic.Int32
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbox:  make(chan inbound, 16),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadFrom(ctx context.Context, b []byte) (int, int, net.Addr, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, nil, err
	}
	select {
	case <-ctx.Done():
		return 0, 0, nil, ctx.Err()
	case <-c.closed:
		return 0, 0, nil, net.ErrClosed
	case p := <-c.inbox:
		if p.err != nil {
			return 0, 0, nil, p.err
		}
		return copy(b, p.b), p.ifIndex, p.src, nil
	}
}

func (c *fakeConn) WriteTo(ctx context.Context, b []byte, dst net.Addr) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	select {
	case <-c.closed:
		return 0, net.ErrClosed
	default:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.sent = append(c.sent, outbound{b: append([]byte(nil), b...), dst: dst})
	return len(b), nil
}

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) setWriteErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeErr = err
}

func (c *fakeConn) writes() []outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]outbound(nil), c.sent...)
}

func (c *fakeConn) deliver(b []byte) {
	c.inbox <- inbound{b: b, src: testPeer, ifIndex: 2}
}

func (c *fakeConn) fail(err error) {
	c.inbox <- inbound{err: err}
}

var testPeer = &net.UDPAddr{IP: net.IPv4(192, 168, 1, 20), Port: mdnsPort}

// fakeMembership records group joins and refuses the interfaces named in
// fail. The wildcard interface is named "".
type fakeMembership struct {
	fail      map[string]bool
	joined    []string
	multicast string
}

func (m *fakeMembership) JoinGroup(ifi *net.Interface, group net.Addr) error {
	name := ""
	if ifi != nil {
		name = ifi.Name
	}
	if m.fail[name] {
		return errors.New("setsockopt: no such device")
	}
	m.joined = append(m.joined, name)
	return nil
}

func (m *fakeMembership) SetMulticastInterface(ifi *net.Interface) error {
	m.multicast = ifi.Name
	return nil
}

// fakeMulticastConn is a fakeConn with group membership and socket options.
type fakeMulticastConn struct {
	*fakeConn
	*fakeMembership

	loopbackErr error
	ttlErr      error
	ttl         int
}

func newFakeMulticastConn() *fakeMulticastConn {
	return &fakeMulticastConn{fakeConn: newFakeConn(), fakeMembership: &fakeMembership{}}
}

func (c *fakeMulticastConn) SetMulticastLoopback(on bool) error {
	return c.loopbackErr
}

func (c *fakeMulticastConn) SetMulticastTTL(ttl int) error {
	if c.ttlErr != nil {
		return c.ttlErr
	}
	c.ttl = ttl
	return nil
}

func (c *fakeMulticastConn) SetControlMessage(cf ipv4.ControlFlags, on bool) error {
	return nil
}

func testLogger() (*log.Logger, *memory.Handler) {
	h := memory.New()
	return &log.Logger{Handler: h, Level: log.DebugLevel}, h
}

// logged reports whether h saw msg at level.
func logged(h *memory.Handler, level log.Level, msg string) bool {
	for _, e := range h.Entries {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}

// newTestDiscovery wires a Discovery to a fakeConn.
func newTestDiscovery(t *testing.T, service string, ignoreEmpty bool) (*Discovery, *fakeConn) {
	t.Helper()
	query, err := encodeQuery(service)
	require.NoError(t, err)

	conn := newFakeConn()
	logger, _ := testLogger()
	return newDiscovery(service, query, newSharedConn(conn, 2), ignoreEmpty, logger), conn
}

// responsePacket packs a response carrying the given answers in zone file
// syntax.
func responsePacket(t *testing.T, answers ...string) []byte {
	t.Helper()
	m := new(dns.Msg)
	m.Response = true
	m.Authoritative = true
	for _, s := range answers {
		rr, err := dns.NewRR(s)
		require.NoError(t, err)
		m.Answer = append(m.Answer, rr)
	}
	b, err := m.Pack()
	require.NoError(t, err)
	return b
}
