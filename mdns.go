// Package mdns implements an mDNS (multicast DNS) service discovery client.
//
// A Discovery multicasts PTR questions for one service name and yields every
// relevant reply seen on the shared 224.0.0.251:5353 socket:
//
//	d, err := mdns.All("_googlecast._tcp.local")
//	if err != nil {
//		return err
//	}
//	scanner, stream := d.Listen()
//	defer scanner.Close()
//	defer stream.Close()
//
//	go scanner.ScanEvery(ctx, 15*time.Second)
//	for resp, err := range stream.All(ctx) {
//		...
//	}
package mdns

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/dns/dnsmessage"
)

const (
	ipv4mdns              = "224.0.0.251"
	mdnsPort              = 5353
	forceUnicastResponses = false

	// unicastResponseBit is the top bit of the question class (RFC 6762 §5.4).
	unicastResponseBit = 1 << 15
	// cacheFlushBit is the top bit of a resource record class (RFC 6762 §10.2).
	cacheFlushBit = 1 << 15

	inboundBufferSize = 4096

	// Port is the well-known mDNS port.
	Port = mdnsPort
)

var (
	// IPv4Group is the mDNS multicast group.
	IPv4Group = net.IPv4(224, 0, 0, 251)

	ipv4Addr = &net.UDPAddr{
		IP:   net.ParseIP(ipv4mdns),
		Port: mdnsPort,
	}
)

// encodeQuery builds the single-question PTR query sent for service.
func encodeQuery(service string) ([]byte, error) {
	if trimDot(service) == "" {
		return nil, ErrInvalidServiceName
	}
	name, err := dnsmessage.NewName(fqdn(service))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceName, err)
	}

	class := dnsmessage.ClassINET
	if forceUnicastResponses {
		class |= unicastResponseBit
	}

	b := dnsmessage.NewBuilder(nil, dnsmessage.Header{ID: 0})
	b.EnableCompression()
	if err := b.StartQuestions(); err != nil {
		return nil, err
	}
	err = b.Question(dnsmessage.Question{
		Name:  name,
		Type:  dnsmessage.TypePTR,
		Class: class,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidServiceName, err)
	}
	return b.Finish()
}

// decodePacket parses a datagram into a Response. Any malformed input is an
// error; callers treat that as background noise.
func decodePacket(b []byte, src net.Addr, ifIndex int) (*Response, error) {
	var msg dnsmessage.Message
	if err := msg.Unpack(b); err != nil {
		return nil, err
	}
	return &Response{
		Answers:     toRecords(msg.Answers),
		Authorities: toRecords(msg.Authorities),
		Additionals: toRecords(msg.Additionals),
		Source:      src,
		IfIndex:     ifIndex,
	}, nil
}

// trimDot is used to trim the dots from the start or end of a string
func trimDot(s string) string {
	return strings.Trim(s, ".")
}

// fqdn returns s with exactly one trailing dot.
func fqdn(s string) string {
	return strings.TrimSuffix(s, ".") + "."
}

// sameName reports whether two DNS names are equal once the trailing root
// dot is ignored.
func sameName(a, b string) bool {
	return strings.TrimSuffix(a, ".") == strings.TrimSuffix(b, ".")
}
