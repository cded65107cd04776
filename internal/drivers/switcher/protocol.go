package switcher

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// Frame layout: size(2) | type(2) | body. Size is big-endian and counts the
// type field plus the body, not itself.
const (
	headerSize  = 4
	MaxBodySize = 0xFFFF - 2
)

// Session defaults.
const (
	DefaultPort  = 9910
	ClientName   = "video-route"
	ProtoVersion = 1
)

// MsgType identifies a frame.
type MsgType uint16

// Message types.
const (
	MsgHello        MsgType = 0x0001 // client -> switcher
	MsgState        MsgType = 0x0002 // switcher -> client, StateUpdate body
	MsgInitComplete MsgType = 0x0003 // switcher -> client, session ready
	MsgCommand      MsgType = 0x0010 // client -> switcher, Command body
	MsgAck          MsgType = 0x0011 // switcher -> client, Ack body
)

// Protocol errors.
var (
	ErrFrameTooLarge = errors.New("switcher: frame too large")
	ErrBadFrame      = errors.New("switcher: malformed frame")
	ErrRejected      = errors.New("switcher: command rejected")
)

// Hello opens a session.
type Hello struct {
	Client  string `cbor:"client"`
	Version int    `cbor:"version"`
}

// Input describes one switcher input.
type Input struct {
	ID        int    `cbor:"id" mapstructure:"id"`
	Name      string `cbor:"name" mapstructure:"name"`
	ShortName string `cbor:"short_name" mapstructure:"short_name"`
}

// MixEffect is the state of one mix effect block.
type MixEffect struct {
	Index       int    `cbor:"index" mapstructure:"index"`
	Program     int    `cbor:"program" mapstructure:"program"`
	Preview     int    `cbor:"preview" mapstructure:"preview"`
	Transition  string `cbor:"transition" mapstructure:"transition"`
	FadeToBlack bool   `cbor:"fade_to_black" mapstructure:"fade_to_black"`
}

// Aux is the source routed to one aux output.
type Aux struct {
	Index int `cbor:"index" mapstructure:"index"`
	Input int `cbor:"input" mapstructure:"input"`
}

// StateUpdate carries one piece of switcher state. Exactly one field is set.
type StateUpdate struct {
	Input     *Input     `cbor:"input,omitempty"`
	MixEffect *MixEffect `cbor:"me,omitempty"`
	Aux       *Aux       `cbor:"aux,omitempty"`
}

// Command asks the switcher to change state.
type Command struct {
	Op    string `cbor:"op"`
	ME    int    `cbor:"me"`
	Input int    `cbor:"input"`
	Aux   int    `cbor:"aux"`
	Style string `cbor:"style,omitempty"`
}

// Ack answers a Command.
type Ack struct {
	OK    bool   `cbor:"ok"`
	Error string `cbor:"error,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// WriteFrame encodes body as CBOR and writes one frame. A nil body sends an
// empty frame of the given type.
func WriteFrame(w io.Writer, t MsgType, body any) error {
	var data []byte
	if body != nil {
		var err error
		data, err = encMode.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding 0x%04X body: %w", uint16(t), err)
		}
	}
	if len(data) > MaxBodySize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(data))
	}

	frame := make([]byte, headerSize+len(data))
	binary.BigEndian.PutUint16(frame[0:2], uint16(2+len(data)))
	binary.BigEndian.PutUint16(frame[2:4], uint16(t))
	copy(frame[headerSize:], data)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame and returns its type and raw CBOR body.
func ReadFrame(r io.Reader) (MsgType, []byte, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:2]); err != nil {
		return 0, nil, fmt.Errorf("read size: %w", err)
	}
	size := binary.BigEndian.Uint16(hdr[0:2])
	if size < 2 {
		return 0, nil, fmt.Errorf("%w: size %d", ErrBadFrame, size)
	}
	if _, err := io.ReadFull(r, hdr[2:4]); err != nil {
		return 0, nil, fmt.Errorf("read type: %w", err)
	}
	body := make([]byte, int(size)-2)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return MsgType(binary.BigEndian.Uint16(hdr[2:4])), body, nil
}

// DecodeBody decodes a CBOR frame body into v.
func DecodeBody(body []byte, v any) error {
	if err := decMode.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadFrame, err)
	}
	return nil
}
