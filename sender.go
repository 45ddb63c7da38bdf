package mdns

import (
	"context"
	"net"

	"github.com/apex/log"
)

// Sender multicasts the session's PTR query. It shares its socket with the
// session's Listener and is safe for concurrent use.
type Sender struct {
	ref   *connRef
	query []byte
	dst   net.Addr
	log   log.Interface
}

// SendRequest writes one query datagram to 224.0.0.251:5353. Each call sends
// exactly one packet; pacing is up to the caller.
func (s *Sender) SendRequest(ctx context.Context) error {
	conn, err := s.ref.conn()
	if err != nil {
		return transportError("send", err)
	}

	if _, err := conn.WriteTo(ctx, s.query, s.dst); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if isClosedErr(err) {
			return transportError("send", ErrClosed)
		}
		return transportError("send", err)
	}
	s.log.WithField("bytes", len(s.query)).Debug("mdns: query sent")
	return nil
}

// Close releases the Sender's hold on the socket.
func (s *Sender) Close() error {
	return s.ref.Close()
}
