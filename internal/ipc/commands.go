package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/bryanchriswhite/dimsway/internal/logger"
	"github.com/rs/zerolog"
)

// Conn is the envelope-level transport a Client drives.
type Conn interface {
	Send(msgType MessageType, payload []byte) error
	Receive() ([]byte, error)
}

// Client issues request/reply commands over a Conn. Every request blocks
// until its reply has been read.
type Client struct {
	conn Conn
	log  *zerolog.Logger
}

// NewClient creates a command client on conn.
func NewClient(conn Conn) *Client {
	return &Client{
		conn: conn,
		log:  logger.WithComponent("ipc"),
	}
}

// FormatOpacity renders an opacity for command text.
func FormatOpacity(opacity float64) string {
	return strconv.FormatFloat(opacity, 'f', 2, 64)
}

// SetOpacityCommand is the command text that sets one container's opacity.
func SetOpacityCommand(containerID int64, opacity float64) string {
	return fmt.Sprintf(`[con_id="%d"] opacity set %s`, containerID, FormatOpacity(opacity))
}

// TilingOpacityCommand is the command text that makes every tiled window
// start at opacity.
func TilingOpacityCommand(opacity float64) string {
	return "for_window [tiling] opacity " + FormatOpacity(opacity)
}

// RunCommand sends command text and drains its reply. A reply reporting
// failure is logged; only transport errors are returned.
func (c *Client) RunCommand(command string) error {
	if err := c.conn.Send(RunCommand, []byte(command)); err != nil {
		return err
	}
	reply, err := c.conn.Receive()
	if err != nil {
		return fmt.Errorf("read reply to %q: %w", command, err)
	}

	if doc, err := decodeJSON(reply); err == nil {
		if failed, msg := commandFailed(doc); failed {
			c.log.Warn().Str("command", command).Str("error", msg).Msg("Compositor rejected command")
		}
	}
	return nil
}

// SetOpacity sets the opacity of one container.
func (c *Client) SetOpacity(containerID int64, opacity float64) error {
	return c.RunCommand(SetOpacityCommand(containerID, opacity))
}

// InitTiling sets the opacity every tiled window starts with.
func (c *Client) InitTiling(opacity float64) error {
	return c.RunCommand(TilingOpacityCommand(opacity))
}

// GetSeats queries the seats and returns the first array element read as an
// integer. Seat objects coerce to 0.
func (c *Client) GetSeats() (int64, error) {
	if err := c.conn.Send(GetSeats, nil); err != nil {
		return 0, err
	}
	reply, err := c.conn.Receive()
	if err != nil {
		return 0, fmt.Errorf("read seats reply: %w", err)
	}

	doc, err := decodeJSON(reply)
	if err != nil {
		return 0, fmt.Errorf("decode seats reply: %w", err)
	}
	// A non-array reply is an error here rather than container 0, so the
	// dimmer stays Uninitialized instead of tracking a bogus id.
	seats, ok := doc.([]any)
	if !ok {
		return 0, errors.New("seats reply is not an array")
	}
	if len(seats) == 0 {
		return 0, errors.New("seats reply is empty")
	}
	return coerceInt(seats[0]), nil
}

// Subscribe registers for the given event topics and drains the
// acknowledgement.
func (c *Client) Subscribe(topics ...string) error {
	payload, err := json.Marshal(topics)
	if err != nil {
		return fmt.Errorf("encode topics: %w", err)
	}
	if err := c.conn.Send(Subscribe, payload); err != nil {
		return err
	}
	reply, err := c.conn.Receive()
	if err != nil {
		return fmt.Errorf("read subscribe reply: %w", err)
	}

	if doc, err := decodeJSON(reply); err == nil {
		if failed, _ := commandFailed(doc); failed {
			c.log.Warn().Strs("topics", topics).Msg("Compositor refused subscription")
		}
	}
	return nil
}

// SubscribeWindow subscribes to window events.
func (c *Client) SubscribeWindow() error {
	return c.Subscribe("window")
}

// NextEvent blocks for the next event payload.
func (c *Client) NextEvent() ([]byte, error) {
	return c.conn.Receive()
}
