package ledproto

import "github.com/pkg/errors"

const (
	// maxRun is the maximum number of non-zero bytes in a single COBS block.
	maxRun = 254
	// saturated is the length byte of a block holding maxRun bytes. Such a
	// block is not followed by an implied zero.
	saturated = maxRun + 1
)

// ErrMalformedCOBS is returned when decoding a buffer that could not have
// been produced by EncodeCOBS.
var ErrMalformedCOBS = errors.New("malformed COBS data")

// EncodeCOBS byte-stuffs src using Consistent Overhead Byte Stuffing. The
// returned buffer contains no zero byte. No delimiter is appended.
func EncodeCOBS(src []byte) []byte {
	dst := make([]byte, 0, encodedLen(len(src)))

	for {
		run := 0
		for run < len(src) && run < maxRun && src[run] != 0 {
			run++
		}

		dst = append(dst, byte(run+1))
		dst = append(dst, src[:run]...)

		if run == maxRun {
			// No zero is implied and nothing is consumed.
			src = src[run:]
			if len(src) == 0 {
				// Close the frame with an empty block.
				dst = append(dst, 1)
				return dst
			}
			continue
		}

		if run == len(src) {
			return dst
		}

		// Consume the zero implied by the length byte. A zero at the very end
		// leaves src empty, which yields a final empty block above.
		src = src[run+1:]
	}
}

// DecodeCOBS reverses EncodeCOBS.
func DecodeCOBS(src []byte) ([]byte, error) {
	dst := make([]byte, 0, len(src))

	for len(src) > 0 {
		code := int(src[0])
		if code == 0 {
			return nil, errors.Wrap(ErrMalformedCOBS, "unexpected zero byte")
		}
		if code > len(src) {
			return nil, errors.Wrapf(ErrMalformedCOBS,
				"block of length %d overruns %d remaining bytes", code-1, len(src)-1)
		}

		block := src[1:code]
		for _, b := range block {
			if b == 0 {
				return nil, errors.Wrap(ErrMalformedCOBS, "unexpected zero byte")
			}
		}

		dst = append(dst, block...)
		src = src[code:]

		if code < saturated && len(src) > 0 {
			dst = append(dst, 0)
		}
	}

	return dst, nil
}

func encodedLen(n int) int {
	return n + n/maxRun + 2
}
