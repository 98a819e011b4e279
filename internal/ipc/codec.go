package ipc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// MessageType identifies a request or reply on the i3-ipc wire.
type MessageType uint32

const (
	RunCommand      MessageType = 0
	GetWorkspaces   MessageType = 1
	Subscribe       MessageType = 2
	GetOutputs      MessageType = 3
	GetTree         MessageType = 4
	GetMarks        MessageType = 5
	GetBarConfig    MessageType = 6
	GetVersion      MessageType = 7
	GetBindingModes MessageType = 8
	GetConfig       MessageType = 9
	SendTick        MessageType = 10
	Sync            MessageType = 11
	GetBindingState MessageType = 12
	GetInputs       MessageType = 100
	GetSeats        MessageType = 101
)

var messageTypeNames = map[MessageType]string{
	RunCommand:      "run_command",
	GetWorkspaces:   "get_workspaces",
	Subscribe:       "subscribe",
	GetOutputs:      "get_outputs",
	GetTree:         "get_tree",
	GetMarks:        "get_marks",
	GetBarConfig:    "get_bar_config",
	GetVersion:      "get_version",
	GetBindingModes: "get_binding_modes",
	GetConfig:       "get_config",
	SendTick:        "send_tick",
	Sync:            "sync",
	GetBindingState: "get_binding_state",
	GetInputs:       "get_inputs",
	GetSeats:        "get_seats",
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("message_type(%d)", uint32(t))
}

// Valid reports whether t is part of the protocol enumeration.
func (t MessageType) Valid() bool {
	_, ok := messageTypeNames[t]
	return ok
}

// Magic opens every envelope.
const Magic = "i3-ipc"

// HeaderSize is magic + length + type.
const HeaderSize = len(Magic) + 4 + 4

// MaxMessageSize is the largest envelope, header included, the compositor accepts.
const MaxMessageSize = 4096

var (
	// ErrOversizedMessage is returned when an envelope would exceed the size ceiling.
	ErrOversizedMessage = errors.New("message exceeds maximum envelope size")
	// ErrUnknownMessageType is returned when encoding a type outside the enumeration.
	ErrUnknownMessageType = errors.New("unknown message type")
)

// Header is a decoded envelope prefix.
type Header struct {
	Length uint32
	Type   MessageType
}

// Encode frames payload as a complete envelope no larger than limit bytes.
// Wire format: ["i3-ipc"][length:4 LE][type:4 LE][payload].
func Encode(msgType MessageType, payload []byte, limit int) ([]byte, error) {
	if !msgType.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMessageType, uint32(msgType))
	}
	if limit <= 0 || limit > MaxMessageSize {
		limit = MaxMessageSize
	}
	if len(payload)+HeaderSize > limit {
		return nil, fmt.Errorf("%w: %d bytes > %d", ErrOversizedMessage, len(payload)+HeaderSize, limit)
	}

	var buf bytes.Buffer
	buf.Grow(HeaderSize + len(payload))
	buf.WriteString(Magic)
	var field [4]byte
	binary.LittleEndian.PutUint32(field[:], uint32(len(payload)))
	buf.Write(field[:])
	binary.LittleEndian.PutUint32(field[:], uint32(msgType))
	buf.Write(field[:])
	buf.Write(payload)
	return buf.Bytes(), nil
}

// DecodeHeader parses the first HeaderSize bytes of an envelope.
// The magic is skipped, not checked.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("short header: %d bytes", len(b))
	}
	off := len(Magic)
	return Header{
		Length: binary.LittleEndian.Uint32(b[off : off+4]),
		Type:   MessageType(binary.LittleEndian.Uint32(b[off+4 : off+8])),
	}, nil
}

// ReadHeader reads and decodes one envelope header from r.
func ReadHeader(r io.Reader) (Header, error) {
	var raw [HeaderSize]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	return DecodeHeader(raw[:])
}
