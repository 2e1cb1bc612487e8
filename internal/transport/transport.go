// Package transport implements capability.NetworkTransport over plain
// and TLS TCP. Grounded on the accept/serve/shutdown loop in
// internal/nntp/nntp-server.go (NewNNTPServer/Start/serve/Stop) for
// RegisterService, and the dial-with-timeout logic in
// internal/nntp/nntp-client.go's BackendConn.Connect for ConnectToPeer.
package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/go-while/nntpd/internal/capability"
)

// TCP is the production capability.NetworkTransport binding.
type TCP struct{}

// New returns a TCP-backed transport.
func New() *TCP {
	return &TCP{}
}

// ConnectToPeer dials a peer, optionally over TLS, honoring
// cfg.ConnectTimeout the way BackendConn.Connect honors
// Backend.ConnectTimeout.
func (t *TCP) ConnectToPeer(ctx context.Context, cfg capability.DialConfig) (capability.ProtocolStreams, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	dialer := &net.Dialer{Timeout: timeout}
	var conn net.Conn
	var err error
	if cfg.UseTLS {
		host, _, splitErr := net.SplitHostPort(cfg.Address)
		if splitErr != nil {
			host = cfg.Address
		}
		tlsConfig := &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
		conn, err = tls.DialWithDialer(dialer, "tcp", cfg.Address, tlsConfig)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", cfg.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Address, err)
	}
	return &streams{conn: conn}, nil
}

// RegisterService starts a listener (TLS if cfg.TLSCert/TLSKey are set)
// and spawns handler per accepted connection, capped at cfg.MaxConns
// concurrent connections.
func (t *TCP) RegisterService(handler capability.ConnHandler, cfg capability.ListenerConfig) (capability.ServiceManager, error) {
	var listener net.Listener
	var err error

	if cfg.TLSCert != "" && cfg.TLSKey != "" {
		cert, certErr := tls.LoadX509KeyPair(cfg.TLSCert, cfg.TLSKey)
		if certErr != nil {
			return nil, fmt.Errorf("loading TLS certificate: %w", certErr)
		}
		listener, err = tls.Listen("tcp", cfg.Address, &tls.Config{Certificates: []tls.Certificate{cert}})
	} else {
		listener, err = net.Listen("tcp", cfg.Address)
	}
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", cfg.Address, err)
	}

	svc := &service{
		listener: listener,
		handler:  handler,
		maxConns: cfg.MaxConns,
		shutdown: make(chan struct{}),
	}
	return svc, nil
}

type streams struct {
	conn net.Conn
}

func (s *streams) Read(p []byte) (int, error)  { return s.conn.Read(p) }
func (s *streams) Write(p []byte) (int, error) { return s.conn.Write(p) }
func (s *streams) Close() error                { return s.conn.Close() }
func (s *streams) SetDeadline(t time.Time) error {
	return s.conn.SetDeadline(t)
}
func (s *streams) RemoteAddress() string { return s.conn.RemoteAddr().String() }

// service is the ServiceManager for one registered listener, mirroring
// NNTPServer's shutdown-channel-plus-waitgroup coordination.
type service struct {
	listener net.Listener
	handler  capability.ConnHandler
	maxConns int

	mu       sync.Mutex
	active   int
	wg       sync.WaitGroup
	shutdown chan struct{}
	started  bool
}

func (s *service) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("service already started")
	}
	s.started = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.serve()
	return nil
}

func (s *service) serve() {
	defer s.wg.Done()

	for {
		select {
		case <-s.shutdown:
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.shutdown:
				return
			default:
				log.Printf("transport: accept error: %v", err)
				continue
			}
		}

		if s.maxConns > 0 {
			s.mu.Lock()
			if s.active >= s.maxConns {
				s.mu.Unlock()
				conn.Close()
				continue
			}
			s.active++
			s.mu.Unlock()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			if s.maxConns > 0 {
				defer func() {
					s.mu.Lock()
					s.active--
					s.mu.Unlock()
				}()
			}
			s.handler(context.Background(), &streams{conn: conn})
		}()
	}
}

func (s *service) Terminate() error {
	close(s.shutdown)
	return s.listener.Close()
}

func (s *service) AwaitShutdown() error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-time.After(30 * time.Second):
		return fmt.Errorf("transport: shutdown timed out waiting for connections to drain")
	}
}
