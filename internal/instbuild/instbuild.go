// Package instbuild builds instructions from command arguments.
package instbuild

import (
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"libdb.so/lightshow/internal/led"
	"libdb.so/lightshow/ledproto"
)

// ErrUnknownCommand is returned by Registry.Build for unregistered names.
var ErrUnknownCommand = errors.New("unknown command")

// ErrUsage is returned when a builder is given the wrong arguments.
var ErrUsage = errors.New("invalid usage")

// Builder builds an instruction from a list of arguments.
type Builder interface {
	// Name returns the display name of the instruction. It is also the
	// command name.
	Name() string
	// Help returns a brief description of the arguments and the instruction.
	Help() string
	// Build builds an instruction from the given arguments.
	Build(args []string) (ledproto.Instruction, error)
}

// Registry is a set of builders keyed by their display names.
type Registry struct {
	builders map[string]Builder
}

// NewRegistry creates a new registry with the given builders. Later builders
// replace earlier ones with the same name.
func NewRegistry(builders ...Builder) *Registry {
	r := &Registry{builders: make(map[string]Builder, len(builders))}
	for _, b := range builders {
		r.builders[b.Name()] = b
	}
	return r
}

// DefaultRegistry returns a registry with a builder for every known
// instruction.
func DefaultRegistry() *Registry {
	return NewRegistry(InitBuilder{}, SetLedsBuilder{})
}

// Lookup returns the builder with the given name.
func (r *Registry) Lookup(name string) (Builder, bool) {
	b, ok := r.builders[name]
	return b, ok
}

// Builders returns all builders sorted by name.
func (r *Registry) Builders() []Builder {
	builders := make([]Builder, 0, len(r.builders))
	for _, b := range r.builders {
		builders = append(builders, b)
	}
	sort.Slice(builders, func(i, j int) bool {
		return builders[i].Name() < builders[j].Name()
	})
	return builders
}

// Build builds an instruction using the builder with the given name.
func (r *Registry) Build(name string, args []string) (ledproto.Instruction, error) {
	b, ok := r.builders[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCommand, "%q", name)
	}
	return b.Build(args)
}

// InitBuilder builds ledproto.Init instructions.
type InitBuilder struct{}

func (InitBuilder) Name() string { return ledproto.CodeInit.String() }

func (InitBuilder) Help() string {
	return "<num_pixels> <pin> - initialize the LED strip"
}

func (b InitBuilder) Build(args []string) (ledproto.Instruction, error) {
	if len(args) != 2 {
		return nil, errors.Wrapf(ErrUsage, "%s %s", b.Name(), b.Help())
	}

	numPixels, err := parseUint8("num_pixels", args[0])
	if err != nil {
		return nil, err
	}

	pin, err := parseUint8("pin", args[1])
	if err != nil {
		return nil, err
	}

	return ledproto.Init{NumPixels: numPixels, Pin: pin}, nil
}

// SetLedsBuilder builds ledproto.SetLeds instructions. Each color argument is
// an HTML hex color code for the next pixel.
type SetLedsBuilder struct{}

func (SetLedsBuilder) Name() string { return ledproto.CodeSetLeds.String() }

func (SetLedsBuilder) Help() string {
	return "<offset> <rrggbb>... - set the colors for a set of LEDs"
}

func (b SetLedsBuilder) Build(args []string) (ledproto.Instruction, error) {
	if len(args) < 1 {
		return nil, errors.Wrapf(ErrUsage, "%s %s", b.Name(), b.Help())
	}

	offset, err := parseUint8("offset", args[0])
	if err != nil {
		return nil, err
	}

	colors := args[1:]
	if len(colors) > 0xFF {
		return nil, errors.Errorf("too many pixels: %d, at most 255 per instruction", len(colors))
	}

	leds := led.NewLEDs(len(colors))
	for i, arg := range colors {
		c, err := led.ParseRGBColor(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "led%d", int(offset)+i)
		}
		leds.Set(i, c)
	}

	return ledproto.SetLeds{
		Offset:      offset,
		NumPixels:   uint8(len(leds)),
		PixelColors: leds.AsPixels(),
	}, nil
}

func parseUint8(name, arg string) (uint8, error) {
	v, err := strconv.ParseUint(arg, 10, 8)
	if err != nil {
		return 0, errors.Wrapf(err, "unable to parse %s", name)
	}
	return uint8(v), nil
}
