package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"libdb.so/lightshow"
)

var (
	config  = "lightshow.toml"
	device  = ""
	verbose = false
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file")
	pflag.StringVarP(&device, "device", "d", device, "serial device, overrides the configuration file")
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
	cfg, err := readConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c, err := lightshow.NewController(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create controller: %w", err)
	}

	if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("controller failed: %w", err)
	}

	return nil
}

func readConfig() (*lightshow.Config, error) {
	f, err := os.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	cfg, err := lightshow.ParseConfig(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", config, err)
	}

	if device != "" {
		slog.Debug(
			"overriding configured device",
			"configured", cfg.Device,
			"device", device)
		cfg.Device = device
	}

	return cfg, nil
}
