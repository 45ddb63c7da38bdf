package mdns

import (
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/net/dns/dnsmessage"
)

func printerResponse() *Response {
	return &Response{
		Answers: []Record{
			{Name: "_ipp._tcp.local", Class: dnsmessage.ClassINET, TTL: 4500, Data: PTR{Target: "printer._ipp._tcp.local"}},
		},
		Additionals: []Record{
			{Name: "printer._ipp._tcp.local", Class: dnsmessage.ClassINET, TTL: 120, Data: SRV{Port: 631, Target: "printer.local"}},
			{Name: "printer._ipp._tcp.local", Class: dnsmessage.ClassINET, TTL: 4500, Data: TXT{Values: []string{"rp=queue", "color=T"}}},
			{Name: "printer.local", Class: dnsmessage.ClassINET, CacheFlush: true, TTL: 120, Data: A{Addr: net.IPv4(192, 168, 1, 20)}},
		},
		Source: testPeer,
	}
}

func TestResponseAccessors(t *testing.T) {
	resp := printerResponse()

	assert.False(t, resp.IsEmpty())
	assert.Len(t, resp.Records(), 4)
	assert.Equal(t, "printer._ipp._tcp.local", resp.Hostname())
	assert.True(t, net.IPv4(192, 168, 1, 20).Equal(resp.IPAddr()))
	assert.Equal(t, 631, resp.Port())
	assert.Equal(t, []string{"rp=queue", "color=T"}, resp.TXT())
	assert.True(t, resp.hasAnswerNamed("_ipp._tcp.local."))
	assert.False(t, resp.hasAnswerNamed("printer.local"), "additionals do not count as answers")
}

func TestResponseAccessorsEmpty(t *testing.T) {
	resp := &Response{}

	assert.True(t, resp.IsEmpty())
	assert.Empty(t, resp.Records())
	assert.Equal(t, "", resp.Hostname())
	assert.Nil(t, resp.IPAddr())
	assert.Equal(t, 0, resp.Port())
	assert.Nil(t, resp.TXT())
	assert.Equal(t, "Answers:0", resp.String())
}

func TestResponseString(t *testing.T) {
	want := "Source:192.168.1.20:5353,Host:printer._ipp._tcp.local,Addr:192.168.1.20,Port:631,TXT:[rp=queue color=T],Answers:1"
	assert.Equal(t, want, printerResponse().String())
}

func TestRecordString(t *testing.T) {
	tests := []struct {
		rec  Record
		want string
	}{
		{
			Record{Name: "printer.local", Class: dnsmessage.ClassINET, TTL: 120, Data: A{Addr: net.IPv4(10, 0, 0, 1)}},
			"printer.local 120 ClassINET TypeA 10.0.0.1",
		},
		{
			Record{Name: "_ipp._tcp.local", Class: dnsmessage.ClassINET, TTL: 10, Data: PTR{Target: "x._ipp._tcp.local"}},
			"_ipp._tcp.local 10 ClassINET TypePTR x._ipp._tcp.local",
		},
		{
			Record{Name: "mail.local", Class: dnsmessage.ClassINET, Data: MX{Preference: 10, Host: "mx.local"}},
			"mail.local 0 ClassINET TypeMX 10 mx.local",
		},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.rec.String())
	}

	assert.Equal(t, dnsmessage.Type(0), Record{}.Type())
}

func TestError(t *testing.T) {
	cause := errors.New("network is unreachable")
	err := transportError("send", cause)

	assert.Equal(t, "mdns: transport send: network is unreachable", err.Error())
	assert.ErrorIs(t, err, cause)

	var merr *Error
	if assert.ErrorAs(t, err, &merr) {
		assert.Equal(t, KindTransport, merr.Kind)
		assert.Equal(t, "send", merr.Op)
	}

	wrapped := setupError("join", fmt.Errorf("%w: %v", ErrJoinMulticastGroup, cause))
	assert.ErrorIs(t, wrapped, ErrJoinMulticastGroup)
	assert.Equal(t, "setup", KindSetup.String())
	assert.Equal(t, "Kind(7)", Kind(7).String())
}
