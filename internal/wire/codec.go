// Package wire implements the NNTP line framing discipline: CRLF
// termination, dot-stuffed multi-line payloads, and command
// tokenization. It wraps net/textproto.Conn the same way the teacher's
// nntp-server-cliconns.go and nntp-client.go do: readers are lenient
// (textproto.Reader.ReadLine accepts a bare LF), writers always emit
// CRLF.
package wire

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
)

// Conn wraps a transport connection with NNTP line/dot-stuffing framing.
// It is built either over a net.Conn (NewConn) or over any other
// transport honoring capability.ProtocolStreams (NewStreamConn), so the
// same framing serves both the accepting server side and the dialing
// Peer Synchronizer side.
type Conn struct {
	closer io.Closer
	remote string
	text   *textproto.Conn
	writer *bufio.Writer
}

// NewConn wraps conn for NNTP line-oriented I/O.
func NewConn(conn net.Conn) *Conn {
	return &Conn{
		closer: conn,
		remote: conn.RemoteAddr().String(),
		text:   textproto.NewConn(conn),
		writer: bufio.NewWriter(conn),
	}
}

// NewStreamConn wraps any read/write/close transport (such as
// capability.ProtocolStreams) for NNTP line-oriented I/O, with the
// remote endpoint label supplied directly since the stream itself may
// not expose a net.Addr.
func NewStreamConn(rw io.ReadWriteCloser, remote string) *Conn {
	return &Conn{
		closer: rw,
		remote: remote,
		text:   textproto.NewConn(rw),
		writer: bufio.NewWriter(rw),
	}
}

// Close closes the underlying transport.
func (c *Conn) Close() error { return c.closer.Close() }

// RemoteAddr returns the remote endpoint, for logging.
func (c *Conn) RemoteAddr() string { return c.remote }

// ReadLine reads one CRLF- or LF-terminated line, CRLF/LF stripped.
func (c *Conn) ReadLine() (string, error) {
	return c.text.ReadLine()
}

// WriteStatusLine writes "CODE TEXT\r\n".
func (c *Conn) WriteStatusLine(code int, text string) error {
	return c.text.PrintfLine("%d %s", code, text)
}

// WriteLine writes one CRLF-terminated line, unstuffed (caller is
// responsible for dot-stuffing payload lines via WriteDotBody).
func (c *Conn) WriteLine(line string) error {
	if _, err := c.writer.WriteString(line); err != nil {
		return err
	}
	if _, err := c.writer.WriteString("\r\n"); err != nil {
		return err
	}
	return c.writer.Flush()
}

// WriteDotBody writes a dot-stuffed multi-line payload followed by the
// ".\r\n" terminator. Every line beginning with '.' is escaped to "..".
func (c *Conn) WriteDotBody(lines []string) error {
	for _, line := range lines {
		if strings.HasPrefix(line, ".") {
			line = "." + line
		}
		if _, err := c.writer.WriteString(line); err != nil {
			return err
		}
		if _, err := c.writer.WriteString("\r\n"); err != nil {
			return err
		}
	}
	if _, err := c.writer.WriteString(".\r\n"); err != nil {
		return err
	}
	return c.writer.Flush()
}

// ReadDotBody reads a dot-terminated multi-line payload, unstuffing any
// line that begins with ".." back to a single leading '.', and returns
// the content lines with the terminator consumed but not included.
func (c *Conn) ReadDotBody() ([]string, error) {
	var lines []string
	for {
		line, err := c.text.ReadLine()
		if err != nil {
			return nil, fmt.Errorf("reading dot-terminated body: %w", err)
		}
		if line == "." {
			return lines, nil
		}
		lines = append(lines, UnstuffLine(line))
	}
}

// StuffLine dot-stuffs a single payload line for transmission.
func StuffLine(line string) string {
	if strings.HasPrefix(line, ".") {
		return "." + line
	}
	return line
}

// UnstuffLine strips a single leading '.' from a received payload line.
func UnstuffLine(line string) string {
	if strings.HasPrefix(line, "..") {
		return line[1:]
	}
	return line
}

// ReadCodeLine reads a status line and parses its numeric code and the
// remainder of the line as text, used by the outbound (client) side of
// the Peer Synchronizer.
func (c *Conn) ReadCodeLine() (int, string, error) {
	line, err := c.text.ReadLine()
	if err != nil {
		return 0, "", err
	}
	return ParseStatusLine(line)
}

// ParseStatusLine splits "CODE text..." into its numeric code and text.
func ParseStatusLine(line string) (int, string, error) {
	if len(line) < 3 {
		return 0, "", fmt.Errorf("status line too short: %q", line)
	}
	var code int
	for i := 0; i < 3; i++ {
		d := line[i]
		if d < '0' || d > '9' {
			return 0, "", fmt.Errorf("status line does not start with a 3-digit code: %q", line)
		}
		code = code*10 + int(d-'0')
	}
	text := ""
	if len(line) > 3 {
		text = strings.TrimPrefix(line[3:], " ")
	}
	return code, text, nil
}

// Command is a tokenized client request line: the uppercased command
// word and its argument tokens, split on runs of ASCII whitespace.
type Command struct {
	Verb string
	Args []string
}

// ParseCommand tokenizes a raw command line per spec: split on runs of
// ASCII whitespace, command token uppercased to canonical form.
func ParseCommand(line string) (Command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Command{}, false
	}
	return Command{
		Verb: strings.ToUpper(fields[0]),
		Args: fields[1:],
	}, true
}
