package peersync

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/go-while/nntpd/internal/capability"
	"github.com/go-while/nntpd/internal/wire"
)

// pipeStreams adapts a net.Conn (from net.Pipe) to capability.ProtocolStreams,
// the same shape internal/transport's real streams type exposes.
type pipeStreams struct{ net.Conn }

func (p pipeStreams) SetDeadline(t time.Time) error { return p.Conn.SetDeadline(t) }
func (p pipeStreams) RemoteAddress() string         { return "pipe" }

// scriptedTransport is a capability.NetworkTransport whose ConnectToPeer
// hands the client end of a net.Pipe to the caller while running serve
// against the server end in a goroutine, letting tests script a fake
// peer's wire responses without a real listener.
type scriptedTransport struct {
	serve func(conn *wire.Conn)
}

func (t *scriptedTransport) ConnectToPeer(ctx context.Context, cfg capability.DialConfig) (capability.ProtocolStreams, error) {
	client, server := net.Pipe()
	go t.serve(wire.NewStreamConn(pipeStreams{server}, "server"))
	return pipeStreams{client}, nil
}

func (t *scriptedTransport) RegisterService(handler capability.ConnHandler, cfg capability.ListenerConfig) (capability.ServiceManager, error) {
	return nil, fmt.Errorf("scriptedTransport does not accept inbound connections")
}

// greetAndNegotiate writes the welcome line and answers one CAPABILITIES
// round trip with caps, the preamble every scripted peer test needs.
func greetAndNegotiate(t *testing.T, conn *wire.Conn, caps []string) {
	t.Helper()
	if err := conn.WriteStatusLine(200, "posting ok"); err != nil {
		t.Fatalf("writing greeting: %v", err)
	}
	line, err := conn.ReadLine()
	if err != nil {
		t.Fatalf("reading CAPABILITIES request: %v", err)
	}
	if line != "CAPABILITIES" {
		t.Fatalf("expected CAPABILITIES, got %q", line)
	}
	if err := conn.WriteStatusLine(101, "Capability list:"); err != nil {
		t.Fatalf("writing CAPABILITIES response: %v", err)
	}
	if err := conn.WriteDotBody(caps); err != nil {
		t.Fatalf("writing CAPABILITIES body: %v", err)
	}
}
