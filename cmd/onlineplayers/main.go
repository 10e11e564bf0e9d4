package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mcoverlay/onlineplayers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit code.
func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("onlineplayers", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		logLevel   = fs.String("loglevel", "info", "logging level: debug, info, warning, error")
		configPath = fs.String("config", onlineplayers.DefaultConfigPath, "path to settings file (.ini or .yaml)")
		once       = fs.Bool("once", false, "render a single board and exit")
	)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	log, err := onlineplayers.NewLogger(*logLevel)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	defer log.Sync()

	cfg, err := onlineplayers.LoadConfig(*configPath)
	if err != nil {
		log.Error("load config", zap.String("path", *configPath), zap.Error(err))
		return 1
	}
	cfg.Log(log)

	overlay, err := onlineplayers.NewFromConfig(cfg, log)
	if err != nil {
		log.Error("init overlay", zap.Error(err))
		return 1
	}

	if *once {
		frame, err := overlay.Cycle(ctx)
		if cerr := overlay.Close(); cerr != nil {
			log.Warn("close overlay", zap.Error(cerr))
		}
		if err != nil {
			log.Error("cycle failed", zap.Error(err))
			return 1
		}
		log.Info("saved image", zap.Int("online", frame.Online()), zap.String("image", cfg.ImageName))
		return 0
	}

	if err := overlay.Run(ctx); err != nil {
		if errors.Is(err, onlineplayers.ErrNoPlayerSample) {
			log.Error("server does not report players, unable to proceed")
		}
		return 1
	}
	log.Info("exited cleanly")
	return 0
}
