package mdns

import (
	"fmt"
	"net"
	"strings"
)

// Response is one decoded mDNS packet together with where it came from.
type Response struct {
	Answers     []Record
	Authorities []Record
	Additionals []Record

	// Source is the address the datagram was received from.
	Source net.Addr
	// IfIndex is the index of the interface the datagram arrived on, or 0
	// when the platform does not report it.
	IfIndex int
}

// IsEmpty reports whether the response carries no answers.
func (r *Response) IsEmpty() bool {
	return len(r.Answers) == 0
}

// Records returns answers, authorities and additionals in wire order.
func (r *Response) Records() []Record {
	out := make([]Record, 0, len(r.Answers)+len(r.Authorities)+len(r.Additionals))
	out = append(out, r.Answers...)
	out = append(out, r.Authorities...)
	return append(out, r.Additionals...)
}

// IPAddr returns the first A or AAAA address found in any section.
func (r *Response) IPAddr() net.IP {
	for _, rec := range r.Records() {
		switch d := rec.Data.(type) {
		case A:
			return d.Addr
		case AAAA:
			return d.Addr
		}
	}
	return nil
}

// Hostname returns the target of the first PTR record.
func (r *Response) Hostname() string {
	for _, rec := range r.Records() {
		if d, ok := rec.Data.(PTR); ok {
			return d.Target
		}
	}
	return ""
}

// Port returns the port of the first SRV record, or 0.
func (r *Response) Port() int {
	for _, rec := range r.Records() {
		if d, ok := rec.Data.(SRV); ok {
			return int(d.Port)
		}
	}
	return 0
}

// TXT returns every TXT string in the response.
func (r *Response) TXT() []string {
	var out []string
	for _, rec := range r.Records() {
		if d, ok := rec.Data.(TXT); ok {
			out = append(out, d.Values...)
		}
	}
	return out
}

// hasAnswerNamed reports whether any answer is owned by name.
func (r *Response) hasAnswerNamed(name string) bool {
	for _, rec := range r.Answers {
		if sameName(rec.Name, name) {
			return true
		}
	}
	return false
}

func (r *Response) String() string {
	fields := make([]string, 0)
	if r.Source != nil {
		fields = append(fields, fmt.Sprintf("Source:%s", r.Source))
	}
	if h := r.Hostname(); h != "" {
		fields = append(fields, fmt.Sprintf("Host:%s", h))
	}
	if ip := r.IPAddr(); ip != nil {
		fields = append(fields, fmt.Sprintf("Addr:%v", ip))
	}
	if p := r.Port(); p != 0 {
		fields = append(fields, fmt.Sprintf("Port:%d", p))
	}
	if txt := r.TXT(); len(txt) != 0 {
		fields = append(fields, fmt.Sprintf("TXT:%v", txt))
	}
	fields = append(fields, fmt.Sprintf("Answers:%d", len(r.Answers)))
	return strings.Join(fields, ",")
}
