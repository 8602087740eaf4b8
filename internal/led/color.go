// Package led contains the in-memory representation of an LED strip.
package led

import (
	"encoding"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// RGBColor is a color in R, G, B order, matching the wire order of the
// controller.
type RGBColor [3]uint8

var (
	_ encoding.TextUnmarshaler = (*RGBColor)(nil)
	_ encoding.TextMarshaler   = (*RGBColor)(nil)
)

// ParseRGBColor parses an HTML hex color code in the form "rrggbb" or
// "#rrggbb".
func ParseRGBColor(s string) (RGBColor, error) {
	var c RGBColor

	hexstr := strings.TrimPrefix(s, "#")
	if len(hexstr) != 6 {
		return c, errors.Errorf("invalid hex color %q: expected 6 hex digits", s)
	}

	if _, err := hex.Decode(c[:], []byte(hexstr)); err != nil {
		return c, errors.Wrapf(err, "invalid hex color %q", s)
	}

	return c, nil
}

// String returns the color as "#rrggbb".
func (c RGBColor) String() string {
	return "#" + hex.EncodeToString(c[:])
}

func (c *RGBColor) UnmarshalText(text []byte) error {
	v, err := ParseRGBColor(string(text))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

func (c RGBColor) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}
