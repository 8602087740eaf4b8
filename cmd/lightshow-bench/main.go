package main

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"go.bug.st/serial"
	"libdb.so/lightshow"
	"libdb.so/lightshow/internal/instbuild"
	"libdb.so/lightshow/ledproto"
)

var (
	device  = "/dev/ttyUSB0"
	baud    = lightshow.DefaultBaud
	verbose = false
)

const readTimeout = 10 * time.Millisecond

func init() {
	pflag.StringVarP(&device, "device", "d", device, "serial device of the controller")
	pflag.IntVarP(&baud, "baud", "b", baud, "baud rate")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
}

func main() {
	pflag.Parse()

	logLevel := slog.LevelWarn
	if verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return errors.Wrapf(err, "failed to open serial port %s", device)
	}
	defer port.Close()

	if err := port.SetReadTimeout(readTimeout); err != nil {
		return errors.Wrap(err, "failed to set read timeout")
	}

	shell := ishell.New()
	shell.SetPrompt("lightshow> ")

	for _, b := range instbuild.DefaultRegistry().Builders() {
		shell.AddCmd(&ishell.Cmd{
			Name: b.Name(),
			Help: b.Help(),
			Func: sendCmd(port, b),
		})
	}

	shell.AddCmd(&ishell.Cmd{
		Name: "read",
		Help: "read all buffered output from the serial device",
		Func: func(c *ishell.Context) {
			lines, err := readLines(port)
			if err != nil {
				c.Err(err)
				return
			}
			if len(lines) == 0 {
				c.Println("recv empty")
				return
			}
			for _, line := range lines {
				c.Println("recv>", line)
			}
		},
	})

	if pflag.NArg() > 0 {
		return shell.Process(pflag.Args()...)
	}

	shell.Run()
	return nil
}

func sendCmd(port io.Writer, b instbuild.Builder) func(*ishell.Context) {
	return func(c *ishell.Context) {
		inst, err := b.Build(c.Args)
		if err != nil {
			c.Err(err)
			return
		}

		frame := ledproto.BuildPacket(inst)
		c.Printf("sending %s frame: % x\n", inst.Code(), frame)

		if _, err := port.Write(frame); err != nil {
			c.Err(errors.Wrap(err, "failed to send frame"))
		}
	}
}

// readLines reads everything the device has buffered and splits it into
// non-empty lines. A serial port with a read timeout returns 0 bytes once its
// buffer is drained.
func readLines(r io.Reader) ([]string, error) {
	var buf bytes.Buffer
	chunk := make([]byte, 256)
	for {
		n, err := r.Read(chunk)
		buf.Write(chunk[:n])
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, errors.Wrap(err, "failed to read from serial port")
		}
		if n == 0 {
			break
		}
	}

	var lines []string
	for _, line := range bytes.Split(buf.Bytes(), []byte("\n")) {
		line = bytes.TrimRight(line, "\r")
		if len(line) > 0 {
			lines = append(lines, string(line))
		}
	}
	return lines, nil
}
