// Package lightshow drives an addressable LED strip controller over a serial
// link.
package lightshow

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"golang.org/x/sync/errgroup"
	"libdb.so/lightshow/internal/led"
	"libdb.so/lightshow/ledproto"
)

// Controller applies a static LED layout to a controller.
type Controller struct {
	cfg    *Config
	logger *slog.Logger
}

// NewController creates a new controller.
func NewController(cfg *Config, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}

	return &Controller{
		cfg:    cfg,
		logger: logger,
	}, nil
}

// Instructions returns the instructions that apply the configured layout: an
// init instruction followed by set_leds instructions covering the whole strip.
func (c *Controller) Instructions() []ledproto.Instruction {
	leds := c.cfg.Layout()

	insts := []ledproto.Instruction{
		ledproto.Init{
			NumPixels: uint8(len(leds)),
			Pin:       uint8(c.cfg.Pin),
		},
	}

	leds.Chunks(c.cfg.ChunkSize, func(offset int, chunk led.LEDs) {
		insts = append(insts, ledproto.SetLeds{
			Offset:      uint8(offset),
			NumPixels:   uint8(len(chunk)),
			PixelColors: chunk.AsPixels(),
		})
	})

	return insts
}

// Apply writes the configured layout to w.
func (c *Controller) Apply(w io.Writer) error {
	for _, inst := range c.Instructions() {
		c.logger.Debug(
			"writing instruction",
			"code", inst.Code())

		if err := ledproto.WriteInstruction(w, inst); err != nil {
			return err
		}
	}
	return nil
}

// Run opens the serial port, applies the layout and logs whatever the
// controller prints until the given context is canceled.
func (c *Controller) Run(ctx context.Context) error {
	port, err := serial.Open(c.cfg.Device, &serial.Mode{
		BaudRate: c.cfg.Baud,
	})
	if err != nil {
		return errors.Wrap(err, "failed to open serial port")
	}
	defer port.Close()

	if err := port.SetReadTimeout(serial.NoTimeout); err != nil {
		return errors.Wrap(err, "failed to reset read timeout")
	}

	return c.run(ctx, port)
}

// run drives an opened port. The port is closed once ctx is canceled.
func (c *Controller) run(ctx context.Context, port io.ReadWriteCloser) error {
	errg, ctx := errgroup.WithContext(ctx)
	errg.Go(func() error {
		<-ctx.Done()
		c.logger.Debug("closing serial port")
		if err := port.Close(); err != nil {
			return errors.Wrap(err, "failed to close serial port")
		}
		return ctx.Err()
	})

	errg.Go(func() error {
		err := c.logLines(port)
		if ctx.Err() != nil {
			// Closing the port interrupts the read.
			return ctx.Err()
		}
		return err
	})

	errg.Go(func() error {
		c.logger.Debug(
			"waiting for the controller to settle",
			"settle", time.Duration(c.cfg.Settle))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(c.cfg.Settle)):
		}

		if err := c.Apply(port); err != nil {
			return errors.Wrap(err, "failed to apply layout")
		}

		c.logger.Info(
			"applied layout",
			"leds", c.cfg.NumLEDs(),
			"device", c.cfg.Device)
		return nil
	})

	return errg.Wait()
}

// logLines logs every line the controller prints until r is exhausted.
func (c *Controller) logLines(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		c.logger.Info(
			"received line from controller",
			"line", line)
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read from controller")
	}
	return nil
}
