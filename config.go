package lightshow

import (
	"encoding"
	"fmt"
	"io"
	"time"

	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"libdb.so/lightshow/internal/led"
)

// Config is the configuration for the lightshow controller.
type Config struct {
	// Device is the path to the serial device of the controller.
	// This is usually /dev/ttyUSB0 or /dev/ttyACM0.
	Device string `toml:"device"`
	// Baud is the baud rate for the serial connection.
	Baud int `toml:"baud"`
	// Pin is the data pin of the controller the strip is attached to.
	Pin int `toml:"pin"`
	// ChunkSize is the maximum number of LEDs sent in a single set_leds
	// instruction.
	ChunkSize int `toml:"chunk_size"`
	// Settle is how long to wait after opening the serial port before
	// sending anything. Most Arduino boards reset when the port is opened.
	Settle TOMLDuration `toml:"settle"`
	// LEDs is a list of LED configurations.
	LEDs []LEDConfig `toml:"led"`
}

// Default values for unset configuration fields.
const (
	DefaultBaud      = 115200
	DefaultChunkSize = 32
	DefaultSettle    = 2 * time.Second
)

// setDefaults fills zero fields with their default values.
func (c *Config) setDefaults() {
	if c.Baud == 0 {
		c.Baud = DefaultBaud
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.Settle == 0 {
		c.Settle = TOMLDuration(DefaultSettle)
	}
}

// MaxLEDs is the largest strip the protocol can address.
const MaxLEDs = 0xFF

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Device == "" {
		return errors.New("no device configured")
	}

	if c.Baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.Baud)
	}

	if c.Pin < 0 || c.Pin > 0xFF {
		return fmt.Errorf("invalid pin %d", c.Pin)
	}

	if c.ChunkSize < 1 || c.ChunkSize > MaxLEDs {
		return fmt.Errorf("chunk size %d out of range [1, %d]", c.ChunkSize, MaxLEDs)
	}

	if c.Settle < 0 {
		return fmt.Errorf("negative settle duration %s", time.Duration(c.Settle))
	}

	if c.NumLEDs() == 0 {
		return errors.New("no LEDs configured")
	}

	if c.NumLEDs() > MaxLEDs {
		return fmt.Errorf("too many LEDs: %d, at most %d are addressable", c.NumLEDs(), MaxLEDs)
	}

	for i, led1 := range c.LEDs {
		if led1.Range[0] < 0 || led1.Range[0] >= led1.Range[1] {
			return fmt.Errorf("invalid LED range %v", led1.Range)
		}

		// Ranges are half-open, so [0, 5] and [5, 10] do not overlap.
		for _, led2 := range c.LEDs[:i] {
			if led1.Range[0] < led2.Range[1] && led2.Range[0] < led1.Range[1] {
				return fmt.Errorf("LED range %v overlaps with %v", led1.Range, led2.Range)
			}
		}
	}

	return nil
}

// NumLEDs returns the number of LEDs configured.
func (c *Config) NumLEDs() int {
	var numLEDs int
	for _, led := range c.LEDs {
		if led.Range[1] > numLEDs {
			numLEDs = led.Range[1]
		}
	}
	return numLEDs
}

// Layout returns the strip with every configured range colored. LEDs outside
// any range are off.
func (c *Config) Layout() led.LEDs {
	leds := led.NewLEDs(c.NumLEDs())
	for _, cfg := range c.LEDs {
		leds.SetRange(cfg.Range[0], cfg.Range[1], cfg.Color)
	}
	return leds
}

// LEDConfig is the configuration for a range of LEDs.
type LEDConfig struct {
	// Range is the half-open range [start, end) of LEDs to configure.
	Range [2]int `toml:"range"`
	// Color is the color to set the LEDs to, as "#rrggbb".
	Color led.RGBColor `toml:"color"`
}

// TOMLDuration is a duration that can be parsed from TOML.
type TOMLDuration time.Duration

var (
	_ encoding.TextUnmarshaler = (*TOMLDuration)(nil)
	_ encoding.TextMarshaler   = (*TOMLDuration)(nil)
)

func (d *TOMLDuration) UnmarshalText(text []byte) error {
	duration, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = TOMLDuration(duration)
	return nil
}

func (d TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// ParseConfig parses a configuration from a reader. Zero fields are set to
// their default values.
func ParseConfig(r io.Reader) (*Config, error) {
	var config Config
	if err := toml.NewDecoder(r).Decode(&config); err != nil {
		return nil, err
	}
	config.setDefaults()
	return &config, nil
}
