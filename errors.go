package mdns

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by operations on a closed Sender or Listener.
	ErrClosed = errors.New("mdns: connection closed")

	// ErrJoinMulticastGroup means no interface, not even the wildcard, could
	// join the mDNS group.
	ErrJoinMulticastGroup = errors.New("mdns: failed to join multicast group")

	// ErrNoInterface means the requested address belongs to no local interface.
	ErrNoInterface = errors.New("mdns: no interface with that address")

	// ErrInvalidServiceName means the service name cannot be encoded as a
	// DNS name.
	ErrInvalidServiceName = errors.New("mdns: invalid service name")
)

// Kind classifies an Error.
type Kind int

const (
	// KindSetup errors happen while opening a session; nothing was started.
	KindSetup Kind = iota
	// KindTransport errors come from one send or receive on a live socket.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindTransport:
		return "transport"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned for setup and transport failures.
type Error struct {
	Op   string // "listen", "join", "send", "recv", ...
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("mdns: %s %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func setupError(op string, err error) error {
	return &Error{Op: op, Kind: KindSetup, Err: err}
}

func transportError(op string, err error) error {
	return &Error{Op: op, Kind: KindTransport, Err: err}
}
