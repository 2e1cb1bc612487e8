package capability

import (
	"context"
	"io"
	"time"
)

// ProtocolStreams exposes the byte-oriented streams of one transport
// connection (inbound accepted, or outbound dialed to a peer).
type ProtocolStreams interface {
	io.Reader
	io.Writer
	io.Closer
	SetDeadline(t time.Time) error
	RemoteAddress() string
}

// ServiceManager controls the lifecycle of a registered listener.
type ServiceManager interface {
	Start() error
	Terminate() error
	AwaitShutdown() error
}

// ConnHandler is invoked once per accepted connection.
type ConnHandler func(ctx context.Context, streams ProtocolStreams)

// ListenerConfig configures a registered listener.
type ListenerConfig struct {
	Address  string
	TLSCert  string
	TLSKey   string
	MaxConns int
}

// DialConfig configures an outbound connection to a peer.
type DialConfig struct {
	Address        string
	UseTLS         bool
	ConnectTimeout time.Duration
}

// NetworkTransport is the acceptor/dialer seam: it knows nothing about
// NNTP, only about opening byte streams.
type NetworkTransport interface {
	ConnectToPeer(ctx context.Context, cfg DialConfig) (ProtocolStreams, error)
	RegisterService(handler ConnHandler, cfg ListenerConfig) (ServiceManager, error)
}
