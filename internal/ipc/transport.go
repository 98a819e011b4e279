package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bryanchriswhite/dimsway/internal/logger"
	"github.com/rs/zerolog"
)

// SocketEnv names the environment variable holding the compositor socket path.
const SocketEnv = "SWAYSOCK"

// DefaultRetryDelay is the pause before the single payload re-read.
const DefaultRetryDelay = 500 * time.Microsecond

// DefaultMaxReplySize bounds incoming payloads. get_tree replies on large
// desktops run to a few MiB.
const DefaultMaxReplySize = 64 << 20

var (
	// ErrConnectFailed covers a missing socket path and socket/connect errors.
	ErrConnectFailed = errors.New("connect to compositor socket failed")
	// ErrOversizedReply is returned when a header announces a payload above
	// MaxReplySize, usually because the stream lost framing.
	ErrOversizedReply = errors.New("reply exceeds maximum payload size")
)

// TransportConfig configures a Transport.
type TransportConfig struct {
	// SocketPath overrides $SWAYSOCK when non-empty
	SocketPath string
	// MaxMessageSize caps outgoing envelopes; zero means MaxMessageSize
	MaxMessageSize int
	// MaxReplySize caps incoming payloads; zero means DefaultMaxReplySize
	MaxReplySize int
	// RetryDelay is the pause before re-reading a short payload; zero means DefaultRetryDelay
	RetryDelay time.Duration
	// Dial opens the stream socket; nil means a unix-domain dial
	Dial func(path string) (net.Conn, error)
}

// Transport owns the single persistent compositor connection.
// The connection is opened on first use and kept for the process lifetime.
type Transport struct {
	cfg TransportConfig
	log *zerolog.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed bool
}

// NewTransport creates an unconnected transport.
func NewTransport(cfg TransportConfig) *Transport {
	if cfg.MaxMessageSize <= 0 || cfg.MaxMessageSize > MaxMessageSize {
		cfg.MaxMessageSize = MaxMessageSize
	}
	if cfg.MaxReplySize <= 0 {
		cfg.MaxReplySize = DefaultMaxReplySize
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Dial == nil {
		cfg.Dial = func(path string) (net.Conn, error) {
			return net.Dial("unix", path)
		}
	}
	return &Transport{
		cfg: cfg,
		log: logger.WithComponent("ipc"),
	}
}

// SocketPath returns the configured path, falling back to $SWAYSOCK.
func (t *Transport) SocketPath() string {
	if p := strings.TrimSpace(t.cfg.SocketPath); p != "" {
		return p
	}
	return strings.TrimSpace(os.Getenv(SocketEnv))
}

// EnsureConnected returns the open connection, dialing it if unset.
// A failed dial leaves the handle unset so the next call dials again.
func (t *Transport) EnsureConnected() (net.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, net.ErrClosed
	}
	if t.conn != nil {
		return t.conn, nil
	}

	path := t.SocketPath()
	if path == "" {
		t.log.Error().Msg("The compositor socket address, $" + SocketEnv + ", was empty")
		return nil, fmt.Errorf("%w: $%s is not set", ErrConnectFailed, SocketEnv)
	}

	conn, err := t.cfg.Dial(path)
	if err != nil {
		t.log.Error().Err(err).Str("path", path).Msg("Could not open compositor socket")
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectFailed, path, err)
	}

	t.log.Debug().Str("path", path).Msg("Connected to compositor socket")
	t.conn = conn
	return conn, nil
}

// Send encodes and writes one envelope. Oversized payloads are dropped
// before any connection attempt. Write failures are returned, not retried.
func (t *Transport) Send(msgType MessageType, payload []byte) error {
	env, err := Encode(msgType, payload, t.cfg.MaxMessageSize)
	if err != nil {
		t.log.Error().Err(err).
			Int("limit", t.cfg.MaxMessageSize).
			Str("payload", string(payload)).
			Msg("Refusing to send message, ignoring")
		return err
	}

	conn, err := t.EnsureConnected()
	if err != nil {
		return err
	}

	if _, err := conn.Write(env); err != nil {
		t.log.Warn().Err(err).Stringer("type", msgType).Msg("Write to compositor socket failed")
		return fmt.Errorf("write %s: %w", msgType, err)
	}
	return nil
}

// Receive blocks for the next envelope and returns its payload.
func (t *Transport) Receive() ([]byte, error) {
	_, payload, err := t.ReceiveMessage()
	return payload, err
}

// ReceiveMessage is Receive that also returns the decoded header.
//
// A payload that arrives short is re-read exactly once after RetryDelay.
// If it is still short the bytes read so far are returned with a warning.
func (t *Transport) ReceiveMessage() (Header, []byte, error) {
	conn, err := t.EnsureConnected()
	if err != nil {
		return Header{}, nil, err
	}

	hdr, err := ReadHeader(conn)
	if err != nil {
		return Header{}, nil, err
	}
	if hdr.Length == 0 {
		return hdr, []byte{}, nil
	}
	if uint64(hdr.Length) > uint64(t.cfg.MaxReplySize) {
		t.log.Error().
			Uint32("length", hdr.Length).
			Int("limit", t.cfg.MaxReplySize).
			Msg("Compositor payload too large, stream out of sync")
		return hdr, nil, fmt.Errorf("%w: %d bytes > %d", ErrOversizedReply, hdr.Length, t.cfg.MaxReplySize)
	}

	buf := make([]byte, hdr.Length)
	n, err := conn.Read(buf)
	if n == 0 && err != nil {
		return hdr, nil, fmt.Errorf("read payload: %w", err)
	}
	if n < len(buf) {
		time.Sleep(t.cfg.RetryDelay)
		m, _ := conn.Read(buf[n:])
		n += m
	}
	if n < len(buf) {
		t.log.Warn().
			Int("expected", len(buf)).
			Int("read", n).
			Msg("Incomplete readout of compositor socket")
	}
	return hdr, buf[:n], nil
}

// Close shuts the connection down, unblocking a pending Receive.
// Later calls to EnsureConnected fail with net.ErrClosed.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}
