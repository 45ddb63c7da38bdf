package mdns

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"time"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
)

// Config is used to customize a discovery session.
type Config struct {
	// Interface is the local IPv4 address whose interface should carry the
	// session. Nil means every non-loopback IPv4 interface.
	Interface net.IP

	// IgnoreEmpty drops responses that carry no answers.
	IgnoreEmpty bool

	// Logger receives debug and warning output. Nil discards it.
	Logger log.Interface
}

// DefaultConfig returns the configuration used by All.
func DefaultConfig() *Config {
	return &Config{IgnoreEmpty: true}
}

// Discovery is a single lookup of a single service name. It owns one socket
// until Listen splits it into a Scanner and a Stream.
type Discovery struct {
	service     string
	ignoreEmpty bool

	sender   *Sender
	listener *Listener
	log      log.Interface

	listened bool
}

// All opens a discovery session for service on every interface.
func All(service string) (*Discovery, error) {
	return Open(service, DefaultConfig())
}

// Interface opens a discovery session for service on the interface that owns
// addr.
func Interface(service string, addr net.IP) (*Discovery, error) {
	cfg := DefaultConfig()
	cfg.Interface = addr
	return Open(service, cfg)
}

// Open provisions the discovery socket and binds the response filter. A nil
// cfg means DefaultConfig().
func Open(service string, cfg *Config) (*Discovery, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = &log.Logger{Handler: discard.New(), Level: log.ErrorLevel}
	}

	query, err := encodeQuery(service)
	if err != nil {
		return nil, setupError("encode", err)
	}

	shared, err := newProvisioner(logger).open(cfg.Interface)
	if err != nil {
		return nil, err
	}
	return newDiscovery(service, query, shared, cfg.IgnoreEmpty, logger), nil
}

func newDiscovery(service string, query []byte, shared *sharedConn, ignoreEmpty bool, logger log.Interface) *Discovery {
	logger = logger.WithField("service", service)
	return &Discovery{
		service:     service,
		ignoreEmpty: ignoreEmpty,
		sender: &Sender{
			ref:   newConnRef(shared),
			query: query,
			dst:   ipv4Addr,
			log:   logger,
		},
		listener: &Listener{
			ref: newConnRef(shared),
			buf: make([]byte, inboundBufferSize),
			log: logger,
		},
		log: logger,
	}
}

// Listen splits the session into a Scanner that issues queries and a Stream
// of relevant responses. The two halves are independent; the socket is
// released once both are closed. Listen may be called only once.
func (d *Discovery) Listen() (*Scanner, *Stream) {
	if d.listened {
		panic("mdns: Listen called twice on the same Discovery")
	}
	d.listened = true

	return &Scanner{sender: d.sender, log: d.log},
		&Stream{
			listener:    d.listener,
			service:     d.service,
			ignoreEmpty: d.ignoreEmpty,
			log:         d.log,
		}
}

// Close releases a session that was never listened on. After Listen, close
// the Scanner and Stream instead.
func (d *Discovery) Close() error {
	if d.listened {
		return nil
	}
	d.listened = true
	return errors.Join(d.sender.Close(), d.listener.Close())
}

// Scanner triggers queries for a listening session.
type Scanner struct {
	sender *Sender
	log    log.Interface
}

// Scan sends one more query.
func (s *Scanner) Scan(ctx context.Context) error {
	return s.sender.SendRequest(ctx)
}

// ScanEvery sends a query now and then once per interval until ctx is done
// or the Scanner is closed. Individual send failures are logged and the loop
// carries on.
func (s *Scanner) ScanEvery(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("mdns: scan interval must be positive, got %v", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.Scan(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if errors.Is(err, ErrClosed) {
				return err
			}
			s.log.WithError(err).Warn("mdns: scan failed")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close releases the Scanner's hold on the socket.
func (s *Scanner) Close() error {
	return s.sender.Close()
}

// Stream yields the responses relevant to the session's service name.
type Stream struct {
	listener    *Listener
	service     string
	ignoreEmpty bool
	log         log.Interface
}

// Next blocks until a relevant response arrives. Errors are never filtered.
func (s *Stream) Next(ctx context.Context) (*Response, error) {
	for {
		resp, err := s.listener.Next(ctx)
		if err != nil {
			return nil, err
		}
		if relevant(resp, s.service, s.ignoreEmpty) {
			return resp, nil
		}
		s.log.WithFields(log.Fields{
			"source":  resp.Source,
			"answers": len(resp.Answers),
		}).Debug("mdns: ignoring unrelated response")
	}
}

// All ranges over Next. Transport errors are yielded and iteration goes on;
// it ends when ctx is done, the socket is closed or the loop body breaks.
func (s *Stream) All(ctx context.Context) iter.Seq2[*Response, error] {
	return func(yield func(*Response, error) bool) {
		for {
			resp, err := s.Next(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if !yield(nil, err) || errors.Is(err, ErrClosed) {
					return
				}
				continue
			}
			if !yield(resp, nil) {
				return
			}
		}
	}
}

// Close releases the Stream's hold on the socket.
func (s *Stream) Close() error {
	return s.listener.Close()
}

// relevant is the response filter: at least one answer must be owned by the
// service name, and answer-free responses are dropped when ignoreEmpty is
// set. An empty response can never satisfy the name match, so it is dropped
// either way.
func relevant(resp *Response, service string, ignoreEmpty bool) bool {
	if ignoreEmpty && resp.IsEmpty() {
		return false
	}
	return resp.hasAnswerNamed(service)
}
