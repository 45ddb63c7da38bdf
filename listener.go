package mdns

import (
	"context"

	"github.com/apex/log"
)

// Listener receives every mDNS packet arriving on the session socket. It
// reuses one receive buffer and is not safe for concurrent use.
type Listener struct {
	ref *connRef
	buf []byte
	log log.Interface
}

// Next blocks until a datagram decodes into a Response. Empty and malformed
// datagrams are skipped. Transport failures are returned as *Error and a
// later call may succeed; a closed socket yields ErrClosed.
func (l *Listener) Next(ctx context.Context) (*Response, error) {
	conn, err := l.ref.conn()
	if err != nil {
		return nil, transportError("recv", err)
	}

	for {
		n, ifIndex, src, err := conn.ReadFrom(ctx, l.buf)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if isClosedErr(err) {
				return nil, transportError("recv", ErrClosed)
			}
			return nil, transportError("recv", err)
		}
		if n == 0 {
			continue
		}

		resp, err := decodePacket(l.buf[:n], src, ifIndex)
		if err != nil {
			l.log.WithError(err).WithField("source", src).Debug("mdns: dropping malformed packet")
			continue
		}
		return resp, nil
	}
}

// Close releases the Listener's hold on the socket.
func (l *Listener) Close() error {
	return l.ref.Close()
}
