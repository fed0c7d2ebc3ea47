package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/noriah/catnip/input"
	"github.com/spf13/pflag"
	"libdb.so/catmeter"

	_ "github.com/noriah/catnip/input/ffmpeg"
	_ "github.com/noriah/catnip/input/parec"
)

var (
	config       = "catmeter.toml"
	verbose      = false
	listBackends = false
)

func init() {
	pflag.StringVarP(&config, "config", "c", config, "configuration file")
	pflag.BoolVarP(&verbose, "verbose", "v", verbose, "verbose output")
	pflag.BoolVar(&listBackends, "list-backends", listBackends, "list audio backends and their devices, then exit")
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

	if listBackends {
		printBackends()
		return
	}

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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := catmeter.NewDaemon(cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("daemon failed: %w", err)
	}

	return nil
}

func readConfig() (*catmeter.Config, error) {
	f, err := os.Open(config)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	return catmeter.ParseConfig(f)
}

func printBackends() {
	for _, backend := range input.Backends {
		fmt.Println(backend.Name)

		if err := backend.Init(); err != nil {
			slog.Warn("failed to initialize backend", "backend", backend.Name, "error", err)
			continue
		}

		devices, err := backend.Devices()
		if err != nil {
			slog.Warn("failed to list devices", "backend", backend.Name, "error", err)
		}
		for _, device := range devices {
			fmt.Println("  " + device.String())
		}

		backend.Close()
	}
}
