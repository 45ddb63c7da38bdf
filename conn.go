package mdns

import (
	"context"
	"fmt"
	"net"

	"github.com/apex/log"
	"golang.org/x/net/ipv4"
)

// mdnsTTL is the IP TTL for every mDNS packet (RFC 6762 §11).
const mdnsTTL = 255

// membership is the part of ipv4.PacketConn the join policy drives.
type membership interface {
	JoinGroup(ifi *net.Interface, group net.Addr) error
	SetMulticastInterface(ifi *net.Interface) error
}

// multicastConn is the socket the provisioner configures and hands on to
// the Sender and Listener.
type multicastConn interface {
	datagramConn
	membership
	SetMulticastLoopback(on bool) error
	SetMulticastTTL(ttl int) error
	SetControlMessage(cf ipv4.ControlFlags, on bool) error
}

// localAddr is one IPv4 address assigned to a local interface.
type localAddr struct {
	Iface *net.Interface
	IP    net.IP
}

func (a localAddr) loopback() bool {
	return a.Iface.Flags&net.FlagLoopback != 0 || a.IP.IsLoopback()
}

func (a localAddr) up() bool {
	return a.Iface.Flags&net.FlagUp != 0
}

// provisioner opens the shared discovery socket.
type provisioner struct {
	listen     func() (multicastConn, error)
	interfaces func() ([]localAddr, error)
	log        log.Interface
}

func newProvisioner(logger log.Interface) *provisioner {
	return &provisioner{
		listen:     listenMulticast,
		interfaces: localIPv4Addrs,
		log:        logger,
	}
}

// open binds 0.0.0.0:5353, joins the mDNS group on iface (or on every usable
// interface when iface is nil) and returns the socket with two references,
// one for the Listener and one for the Sender.
func (p *provisioner) open(iface net.IP) (*sharedConn, error) {
	pc, err := p.listen()
	if err != nil {
		return nil, setupError("listen", err)
	}

	if err := pc.SetMulticastLoopback(false); err != nil {
		pc.Close()
		return nil, setupError("loopback", err)
	}
	if err := pc.SetMulticastTTL(mdnsTTL); err != nil {
		p.log.WithError(err).Warn("mdns: failed to set multicast TTL")
	}
	if err := pc.SetControlMessage(ipv4.FlagInterface, true); err != nil {
		p.log.WithError(err).Debug("mdns: interface control messages unavailable")
	}

	if err := p.join(pc, iface); err != nil {
		pc.Close()
		return nil, err
	}
	return newSharedConn(pc, 2), nil
}

// join applies the group membership policy. A requested interface must work.
// Otherwise every up, non-loopback IPv4 interface is tried, individual failures
// are tolerated, and the wildcard interface is the last resort.
func (p *provisioner) join(m membership, iface net.IP) error {
	group := &net.UDPAddr{IP: IPv4Group}

	if iface != nil {
		ifi, err := p.interfaceFor(iface)
		if err != nil {
			return setupError("join", err)
		}
		if err := m.JoinGroup(ifi, group); err != nil {
			return setupError("join", fmt.Errorf("%w on %s: %v", ErrJoinMulticastGroup, ifi.Name, err))
		}
		if err := m.SetMulticastInterface(ifi); err != nil {
			return setupError("join", err)
		}
		p.log.WithField("interface", ifi.Name).Debug("mdns: joined multicast group")
		return nil
	}

	addrs, err := p.interfaces()
	if err != nil {
		p.log.WithError(err).Warn("mdns: failed to list interfaces")
	}

	joined := 0
	tried := make(map[int]bool)
	for _, a := range addrs {
		if a.loopback() || !a.up() || tried[a.Iface.Index] {
			continue
		}
		tried[a.Iface.Index] = true

		entry := p.log.WithFields(log.Fields{"interface": a.Iface.Name, "addr": a.IP})
		if err := m.JoinGroup(a.Iface, group); err != nil {
			entry.WithError(err).Debug("mdns: join failed")
			continue
		}
		entry.Debug("mdns: joined multicast group")
		joined++
	}
	if joined > 0 {
		return nil
	}

	p.log.Info("mdns: no interface joined, falling back to wildcard")
	if err := m.JoinGroup(nil, group); err != nil {
		return setupError("join", fmt.Errorf("%w: %v", ErrJoinMulticastGroup, err))
	}
	return nil
}

func (p *provisioner) interfaceFor(ip net.IP) (*net.Interface, error) {
	addrs, err := p.interfaces()
	if err != nil {
		return nil, err
	}
	for _, a := range addrs {
		if a.IP.Equal(ip) {
			return a.Iface, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNoInterface, ip)
}

func listenMulticast() (multicastConn, error) {
	lc := net.ListenConfig{Control: reuseAddrPort}
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: mdnsPort}
	c, err := lc.ListenPacket(context.Background(), "udp4", addr.String())
	if err != nil {
		return nil, err
	}
	return newIPv4Conn(ipv4.NewPacketConn(c)), nil
}

// localIPv4Addrs lists every IPv4 address on every local interface.
func localIPv4Addrs() ([]localAddr, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	var out []localAddr
	for i := range ifaces {
		addrs, err := ifaces[i].Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip4 := ip.To4(); ip4 != nil {
				out = append(out, localAddr{Iface: &ifaces[i], IP: ip4})
			}
		}
	}
	return out, nil
}
