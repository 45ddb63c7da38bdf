package mdns

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/net/dns/dnsmessage"
)

// Record is one decoded resource record.
type Record struct {
	Name       string // owner name without the trailing dot
	Class      dnsmessage.Class
	CacheFlush bool
	TTL        uint32
	Data       RecordData
}

// Type returns the DNS type of the record payload.
func (r Record) Type() dnsmessage.Type {
	if r.Data == nil {
		return 0
	}
	return r.Data.Type()
}

func (r Record) String() string {
	return fmt.Sprintf("%s %d %s %s %v", r.Name, r.TTL, r.Class, r.Type(), r.Data)
}

// RecordData is the type-specific payload of a Record.
type RecordData interface {
	Type() dnsmessage.Type
	String() string
}

// A is an IPv4 host address.
type A struct{ Addr net.IP }

// AAAA is an IPv6 host address.
type AAAA struct{ Addr net.IP }

// PTR points at a service instance (or any other name).
type PTR struct{ Target string }

// CNAME is a canonical name alias.
type CNAME struct{ Target string }

// NS names an authoritative server.
type NS struct{ Host string }

// MX names a mail exchanger.
type MX struct {
	Preference uint16
	Host       string
}

// SRV locates a service instance.
type SRV struct {
	Priority uint16
	Weight   uint16
	Port     uint16
	Target   string
}

// TXT carries the character strings of a TXT record.
type TXT struct{ Values []string }

// Unknown carries any record type without a dedicated payload.
type Unknown struct {
	RRType dnsmessage.Type
	Data   []byte
}

func (A) Type() dnsmessage.Type { return dnsmessage.TypeA }
func (AAAA) Type() dnsmessage.Type { return dnsmessage.TypeAAAA }
func (PTR) Type() dnsmessage.Type { return dnsmessage.TypePTR }
func (CNAME) Type() dnsmessage.Type { return dnsmessage.TypeCNAME }
func (NS) Type() dnsmessage.Type { return dnsmessage.TypeNS }
func (MX) Type() dnsmessage.Type { return dnsmessage.TypeMX }
func (SRV) Type() dnsmessage.Type { return dnsmessage.TypeSRV }
func (TXT) Type() dnsmessage.Type { return dnsmessage.TypeTXT }
func (u Unknown) Type() dnsmessage.Type { return u.RRType }

func (a A) String() string { return a.Addr.String() }
func (a AAAA) String() string { return a.Addr.String() }
func (p PTR) String() string { return p.Target }
func (c CNAME) String() string { return c.Target }
func (n NS) String() string { return n.Host }
func (m MX) String() string { return fmt.Sprintf("%d %s", m.Preference, m.Host) }
func (s SRV) String() string {
	return fmt.Sprintf("%d %d %d %s", s.Priority, s.Weight, s.Port, s.Target)
}
func (t TXT) String() string { return strings.Join(t.Values, "|") }
func (u Unknown) String() string { return fmt.Sprintf("\\# %d %x", len(u.Data), u.Data) }

func toRecords(rs []dnsmessage.Resource) []Record {
	if len(rs) == 0 {
		return nil
	}
	out := make([]Record, 0, len(rs))
	for _, r := range rs {
		out = append(out, toRecord(r))
	}
	return out
}

func toRecord(r dnsmessage.Resource) Record {
	rec := Record{
		Name:       strings.TrimSuffix(r.Header.Name.String(), "."),
		Class:      r.Header.Class &^ cacheFlushBit,
		CacheFlush: r.Header.Class&cacheFlushBit != 0,
		TTL:        r.Header.TTL,
	}

	switch rr := r.Body.(type) {
	case *dnsmessage.AResource:
		rec.Data = A{Addr: net.IPv4(rr.A[0], rr.A[1], rr.A[2], rr.A[3])}
	case *dnsmessage.AAAAResource:
		rec.Data = AAAA{Addr: net.IP(append([]byte(nil), rr.AAAA[:]...))}
	case *dnsmessage.PTRResource:
		rec.Data = PTR{Target: trimRoot(rr.PTR)}
	case *dnsmessage.CNAMEResource:
		rec.Data = CNAME{Target: trimRoot(rr.CNAME)}
	case *dnsmessage.NSResource:
		rec.Data = NS{Host: trimRoot(rr.NS)}
	case *dnsmessage.MXResource:
		rec.Data = MX{Preference: rr.Pref, Host: trimRoot(rr.MX)}
	case *dnsmessage.SRVResource:
		rec.Data = SRV{
			Priority: rr.Priority,
			Weight:   rr.Weight,
			Port:     rr.Port,
			Target:   trimRoot(rr.Target),
		}
	case *dnsmessage.TXTResource:
		rec.Data = TXT{Values: rr.TXT}
	case *dnsmessage.UnknownResource:
		rec.Data = Unknown{RRType: rr.Type, Data: rr.Data}
	default:
		// SOA, OPT and friends carry nothing discovery needs.
		rec.Data = Unknown{RRType: r.Header.Type}
	}
	return rec
}

func trimRoot(n dnsmessage.Name) string {
	return strings.TrimSuffix(n.String(), ".")
}
