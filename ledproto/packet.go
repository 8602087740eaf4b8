package ledproto

import (
	"bytes"
	"context"
	"encoding/hex"
	"io"
	"log/slog"

	"github.com/pkg/errors"
)

// Delimiter terminates every frame on the wire.
const Delimiter byte = 0x00

// ErrChecksumMismatch is returned when a frame's checksum does not match its
// message.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// BuildPacket encodes the instruction into a frame ready to be written to the
// controller. The frame ends with Delimiter, and no other byte in it is zero.
func BuildPacket(inst Instruction) []byte {
	logger := slog.Default()
	debug := logger.Enabled(context.Background(), slog.LevelDebug)

	message := inst.Message()
	if debug {
		logger.Debug("constructed message",
			"code", inst.Code(),
			"message", hex.EncodeToString(message))
	}

	packet := appendChecksum(message)
	if debug {
		logger.Debug("constructed packet",
			"checksum", hex.EncodeToString(packet[len(message):]),
			"packet", hex.EncodeToString(packet))
	}

	frame := EncodeCOBS(packet)
	if bytes.IndexByte(frame, Delimiter) != -1 {
		panic("ledproto: COBS output contains a delimiter byte")
	}
	frame = append(frame, Delimiter)

	if debug {
		logger.Debug("encoded frame", "frame", hex.EncodeToString(frame))
	}

	return frame
}

// WriteInstruction writes the instruction to the given writer as a single
// frame.
func WriteInstruction(w io.Writer, inst Instruction) error {
	if _, err := w.Write(BuildPacket(inst)); err != nil {
		return errors.Wrapf(err, "failed to write %s frame", inst.Code())
	}
	return nil
}

// ParseFrame decodes a frame produced by BuildPacket, including its trailing
// delimiter, and returns the message after verifying its checksum.
func ParseFrame(frame []byte) ([]byte, error) {
	if len(frame) == 0 || frame[len(frame)-1] != Delimiter {
		return nil, errors.New("frame is not delimited")
	}

	packet, err := DecodeCOBS(frame[:len(frame)-1])
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode frame")
	}

	if len(packet) < 1+ChecksumSize {
		return nil, errors.Errorf("packet too short: %d bytes", len(packet))
	}

	message := packet[:len(packet)-ChecksumSize]
	checksum := Endianness.Uint16(packet[len(packet)-ChecksumSize:])

	if want := Checksum(message); checksum != want {
		return nil, errors.Wrapf(ErrChecksumMismatch, "got %04x, computed %04x", checksum, want)
	}

	return message, nil
}

// ReadFrame reads bytes up to and including the next delimiter and parses
// them as a frame. It returns the verified message.
func ReadFrame(r io.ByteReader) ([]byte, error) {
	var frame []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) && len(frame) > 0 {
				err = io.ErrUnexpectedEOF
			}
			return nil, err
		}

		frame = append(frame, b)
		if b == Delimiter {
			return ParseFrame(frame)
		}
	}
}

// ReadInstruction reads the next frame from r and parses it into an
// instruction.
func ReadInstruction(r io.ByteReader) (Instruction, error) {
	msg, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return ParseInstruction(msg)
}
