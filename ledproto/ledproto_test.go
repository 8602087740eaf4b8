package ledproto

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecksum(t *testing.T) {
	require.Equal(t, uint16(0xBB3D), Checksum([]byte("123456789")))
	require.Equal(t, uint16(0x0000), Checksum(nil))
}

func TestInstructionMessage(t *testing.T) {
	testCases := []struct {
		name   string
		inst   Instruction
		code   Code
		expect []byte
	}{
		{"init", Init{NumPixels: 10, Pin: 5}, CodeInit, []byte{0, 10, 5}},
		{
			"set leds",
			SetLeds{Offset: 2, NumPixels: 2, PixelColors: []uint8{0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00}},
			CodeSetLeds,
			[]byte{1, 2, 2, 0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00},
		},
		{"set leds empty", SetLeds{Offset: 7}, CodeSetLeds, []byte{1, 7, 0}},
		{
			// Inconsistent lengths are written as given.
			"set leds short colors",
			SetLeds{Offset: 0, NumPixels: 3, PixelColors: []uint8{1, 2}},
			CodeSetLeds,
			[]byte{1, 0, 3, 1, 2},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.code, tc.inst.Code())
			require.Equal(t, tc.expect, tc.inst.Message())
		})
	}
}

func TestSetLedsMessageDoesNotAlias(t *testing.T) {
	colors := []uint8{1, 2, 3}
	inst := SetLeds{NumPixels: 1, PixelColors: colors}

	msg := inst.Message()
	msg[3] = 0xAA
	assert.Equal(t, uint8(1), colors[0])
	assert.Equal(t, []byte{1, 0, 1, 1, 2, 3}, inst.Message())
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "init", CodeInit.String())
	assert.Equal(t, "set_leds", CodeSetLeds.String())
	assert.Equal(t, "Code(9)", Code(9).String())
}

func TestCOBSKnownVectors(t *testing.T) {
	testCases := []struct {
		name    string
		decoded []byte
		encoded []byte
	}{
		{"empty", []byte{}, []byte{0x01}},
		{"single zero", []byte{0x00}, []byte{0x01, 0x01}},
		{"two zeros", []byte{0x00, 0x00}, []byte{0x01, 0x01, 0x01}},
		{"zero inside", []byte{0x11, 0x22, 0x00, 0x33}, []byte{0x03, 0x11, 0x22, 0x02, 0x33}},
		{"no zero", []byte{0x11, 0x22, 0x33, 0x44}, []byte{0x05, 0x11, 0x22, 0x33, 0x44}},
		{"trailing zero", []byte{0x11, 0x00}, []byte{0x02, 0x11, 0x01}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.encoded, EncodeCOBS(tc.decoded))

			decoded, err := DecodeCOBS(tc.encoded)
			require.NoError(t, err)
			require.Equal(t, tc.decoded, decoded)
		})
	}
}

func TestCOBSSaturatedRun(t *testing.T) {
	run := make([]byte, 254)
	for i := range run {
		run[i] = byte(i%255 + 1)
	}

	encoded := EncodeCOBS(run)
	require.Len(t, encoded, 256)
	require.Equal(t, byte(0xFF), encoded[0])
	require.Equal(t, run, encoded[1:255])
	require.Equal(t, byte(0x01), encoded[255])

	longer := append(append([]byte{}, run...), 0x42)
	encoded = EncodeCOBS(longer)
	require.Equal(t, byte(0xFF), encoded[0])
	require.Equal(t, []byte{0x02, 0x42}, encoded[255:])

	// A saturated block is not followed by an implied zero.
	decoded, err := DecodeCOBS(encoded)
	require.NoError(t, err)
	require.Equal(t, longer, decoded)

	// A shorter block is.
	short := append([]byte{0xFE}, run[:253]...)
	short = append(short, 0x02, 0x42)

	expect := append([]byte{}, run[:253]...)
	expect = append(expect, 0x00, 0x42)

	decoded, err = DecodeCOBS(short)
	require.NoError(t, err)
	require.Equal(t, expect, decoded)
}

func TestCOBSRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	buffers := map[string][]byte{
		"empty":    {},
		"all zero": make([]byte, 600),
		"one":      {0x01},
	}

	long := make([]byte, 1000)
	for i := range long {
		long[i] = byte(i%255 + 1)
	}
	buffers["long no zero"] = long

	for _, n := range []int{1, 7, 253, 254, 255, 508, 509, 2048} {
		buf := make([]byte, n)
		rng.Read(buf)
		buffers[fmt.Sprintf("random %d", n)] = buf

		sparse := make([]byte, n)
		for i := range sparse {
			if rng.Intn(8) == 0 {
				sparse[i] = 0
			} else {
				sparse[i] = byte(rng.Intn(255) + 1)
			}
		}
		buffers[fmt.Sprintf("sparse %d", n)] = sparse
	}

	for name, buf := range buffers {
		t.Run(name, func(t *testing.T) {
			encoded := EncodeCOBS(buf)
			require.NotContains(t, encoded, byte(0))

			decoded, err := DecodeCOBS(encoded)
			require.NoError(t, err)
			require.Equal(t, buf, decoded)
		})
	}
}

func TestDecodeCOBSMalformed(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"zero length byte", []byte{0x00}},
		{"overrun", []byte{0x05, 0x01, 0x02}},
		{"zero inside block", []byte{0x03, 0x01, 0x00}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeCOBS(tc.data)
			require.ErrorIs(t, err, ErrMalformedCOBS)
		})
	}
}

func testInstructions() []Instruction {
	colors := make([]uint8, 3*100)
	for i := range colors {
		colors[i] = uint8(i)
	}

	return []Instruction{
		Init{NumPixels: 10, Pin: 5},
		Init{NumPixels: 0, Pin: 0},
		SetLeds{Offset: 2, NumPixels: 2, PixelColors: []uint8{0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00}},
		SetLeds{Offset: 0, NumPixels: 0},
		SetLeds{Offset: 18, NumPixels: 100, PixelColors: colors},
		SetLeds{Offset: 0, NumPixels: 4, PixelColors: make([]uint8, 12)},
	}
}

func TestBuildPacket(t *testing.T) {
	for _, inst := range testInstructions() {
		t.Run(inst.Code().String(), func(t *testing.T) {
			frame := BuildPacket(inst)

			require.NotEmpty(t, frame)
			require.Equal(t, Delimiter, frame[len(frame)-1])
			require.Equal(t, len(frame)-1, bytes.IndexByte(frame, 0x00))

			// Unwrap the frame by hand.
			packet, err := DecodeCOBS(frame[:len(frame)-1])
			require.NoError(t, err)

			msg := packet[:len(packet)-2]
			require.Equal(t, inst.Message(), msg)
			require.Equal(t, Checksum(msg), uint16(packet[len(packet)-2])<<8|uint16(packet[len(packet)-1]))

			parsed, err := ParseFrame(frame)
			require.NoError(t, err)
			require.Equal(t, inst.Message(), parsed)
		})
	}
}

func randomInstruction(rng *rand.Rand) Instruction {
	if rng.Intn(4) == 0 {
		return Init{NumPixels: uint8(rng.Intn(256)), Pin: uint8(rng.Intn(256))}
	}

	numPixels := rng.Intn(256)
	colors := make([]uint8, 3*numPixels)
	for i := range colors {
		// Keep plenty of zeros in the payload.
		if rng.Intn(3) != 0 {
			colors[i] = uint8(rng.Intn(256))
		}
	}

	return SetLeds{
		Offset:      uint8(rng.Intn(256)),
		NumPixels:   uint8(numPixels),
		PixelColors: colors,
	}
}

func TestBuildPacketConcurrent(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	insts := make([]Instruction, 300)
	for i := range insts {
		insts[i] = randomInstruction(rng)
	}

	frames := make([][]byte, len(insts))

	var wg sync.WaitGroup
	for i := range insts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			frames[i] = BuildPacket(insts[i])
		}(i)
	}
	wg.Wait()

	for i, frame := range frames {
		require.NotEmpty(t, frame, "instruction %d", i)
		require.Equal(t, len(frame)-1, bytes.IndexByte(frame, Delimiter), "instruction %d", i)

		msg, err := ParseFrame(frame)
		require.NoError(t, err, "instruction %d", i)
		require.Equal(t, insts[i].Message(), msg, "instruction %d", i)
	}
}

func TestBuildPacketGolden(t *testing.T) {
	testCases := []struct {
		name   string
		inst   Instruction
		expect []byte
	}{
		{
			// [00 0a 05] + crc a3c6
			"init",
			Init{NumPixels: 10, Pin: 5},
			[]byte{0x01, 0x05, 0x0a, 0x05, 0xa3, 0xc6, 0x00},
		},
		{
			// [01 02 02 ff 00 00 00 ff 00] + crc 76fa
			"set leds",
			SetLeds{Offset: 2, NumPixels: 2, PixelColors: []uint8{0xFF, 0x00, 0x00, 0x00, 0xFF, 0x00}},
			[]byte{0x05, 0x01, 0x02, 0x02, 0xff, 0x01, 0x01, 0x02, 0xff, 0x03, 0x76, 0xfa, 0x00},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, BuildPacket(tc.inst))
		})
	}
}

func TestParseFrameErrors(t *testing.T) {
	frame := BuildPacket(Init{NumPixels: 10, Pin: 5})

	_, err := ParseFrame(frame[:len(frame)-1])
	require.Error(t, err, "missing delimiter")

	_, err = ParseFrame(nil)
	require.Error(t, err)

	corrupt := append([]byte{}, frame...)
	corrupt[2] ^= 0x01
	_, err = ParseFrame(corrupt)
	require.ErrorIs(t, err, ErrChecksumMismatch)

	_, err = ParseFrame(append(EncodeCOBS([]byte{0x01, 0x02}), Delimiter))
	require.Error(t, err, "packet too short")

	_, err = ParseFrame([]byte{0x05, 0x01, 0x00})
	require.ErrorIs(t, err, ErrMalformedCOBS)
}

func TestParseInstruction(t *testing.T) {
	for _, inst := range testInstructions() {
		parsed, err := ParseInstruction(inst.Message())
		require.NoError(t, err)
		require.Equal(t, inst.Message(), parsed.Message())
		require.Equal(t, inst.Code(), parsed.Code())
	}

	testCases := []struct {
		name string
		msg  []byte
	}{
		{"empty", nil},
		{"unknown code", []byte{9, 1, 2}},
		{"init too short", []byte{0, 1}},
		{"init too long", []byte{0, 1, 2, 3}},
		{"set leds truncated header", []byte{1, 0}},
		{"set leds short colors", []byte{1, 0, 2, 1, 2, 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseInstruction(tc.msg)
			require.Error(t, err)
		})
	}
}

func TestWriteReadInstruction(t *testing.T) {
	var buf bytes.Buffer
	insts := testInstructions()
	for _, inst := range insts {
		require.NoError(t, WriteInstruction(&buf, inst))
	}

	r := bufio.NewReader(&buf)
	for _, inst := range insts {
		got, err := ReadInstruction(r)
		require.NoError(t, err)
		require.Equal(t, inst.Message(), got.Message())
	}

	_, err := ReadInstruction(r)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTruncated(t *testing.T) {
	frame := BuildPacket(Init{NumPixels: 1, Pin: 2})
	r := bufio.NewReader(bytes.NewReader(frame[:len(frame)-1]))

	_, err := ReadFrame(r)
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestWriteInstructionError(t *testing.T) {
	err := WriteInstruction(failingWriter{}, Init{})
	require.ErrorIs(t, err, io.ErrClosedPipe)
}
