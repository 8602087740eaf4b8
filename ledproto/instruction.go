// Package ledproto implements the LED controller wire protocol.
//
// Every instruction is serialized into a message (a code byte followed by the
// instruction's payload), suffixed with a big-endian CRC-16/ARC checksum of the
// message, COBS-encoded and terminated with a single zero byte. The firmware
// scans for the zero byte to find frame boundaries.
package ledproto

import "fmt"

// Code identifies an instruction on the wire. Codes are a contract with the
// firmware and must never be renumbered.
type Code uint8

const (
	CodeInit    Code = 0
	CodeSetLeds Code = 1
)

// String returns a string representation of the instruction code.
func (c Code) String() string {
	switch c {
	case CodeInit:
		return "init"
	case CodeSetLeds:
		return "set_leds"
	default:
		return fmt.Sprintf("Code(%d)", c)
	}
}

// Instruction is an instruction sent to the LED controller.
//
// Messages are not length-prefixed. The firmware infers the length of a
// message from its code and the fixed header fields following it, so an
// instruction with a variable-length tail must encode the length of that tail
// in its own header (see SetLeds).
type Instruction interface {
	// Code returns the code of the instruction.
	Code() Code
	// Message returns the message bytes of the instruction, starting with the
	// code byte. The returned slice is freshly allocated.
	Message() []byte

	instruction()
}

// Init initializes the LED strip.
type Init struct {
	// NumPixels is the number of pixels on the strip.
	NumPixels uint8
	// Pin is the data pin the strip is attached to.
	Pin uint8
}

// SetLeds sets the colors of NumPixels pixels starting at Offset.
type SetLeds struct {
	Offset    uint8
	NumPixels uint8
	// PixelColors holds one R, G, B triplet per pixel, so its length should be
	// 3*NumPixels. It is written as-is.
	PixelColors []uint8
}

var (
	_ Instruction = Init{}
	_ Instruction = SetLeds{}
)

func (i Init) Code() Code    { return CodeInit }
func (i SetLeds) Code() Code { return CodeSetLeds }

func (i Init) instruction()    {}
func (i SetLeds) instruction() {}

func (i Init) Message() []byte {
	return []byte{byte(CodeInit), i.NumPixels, i.Pin}
}

func (i SetLeds) Message() []byte {
	msg := make([]byte, 0, 3+len(i.PixelColors))
	msg = append(msg, byte(CodeSetLeds), i.Offset, i.NumPixels)
	msg = append(msg, i.PixelColors...)
	return msg
}

// ParseInstruction parses a message back into an instruction. It is the
// inverse of Instruction.Message.
func ParseInstruction(msg []byte) (Instruction, error) {
	if len(msg) == 0 {
		return nil, fmt.Errorf("empty message")
	}

	switch code := Code(msg[0]); code {
	case CodeInit:
		if len(msg) != 3 {
			return nil, fmt.Errorf("invalid %s message length: %d", code, len(msg))
		}
		return Init{NumPixels: msg[1], Pin: msg[2]}, nil

	case CodeSetLeds:
		if len(msg) < 3 {
			return nil, fmt.Errorf("truncated %s header: %d bytes", code, len(msg))
		}
		numPixels := msg[2]
		if want := 3 + 3*int(numPixels); len(msg) != want {
			return nil, fmt.Errorf(
				"invalid %s message length: %d, expected %d for %d pixels",
				code, len(msg), want, numPixels)
		}
		pix := make([]uint8, 3*int(numPixels))
		copy(pix, msg[3:])
		return SetLeds{Offset: msg[1], NumPixels: numPixels, PixelColors: pix}, nil

	default:
		return nil, fmt.Errorf("unknown instruction code: %s", code)
	}
}
