package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/swath-footprint/cmd/swath/app"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	flag.Usage = func() {
		out := flag.CommandLine.Output()
		_, _ = fmt.Fprintf(out, "Reconstructs the ground footprint of one push-broom flight line.\n\n")
		_, _ = fmt.Fprintf(out, "Usage:\n  %[1]s -i line.txt [flags]\n  %[1]s -db flight.db -session ID [flags]\n\nFlags:\n", os.Args[0])
		flag.PrintDefaults()
	}

	config, err := app.NewConfigFromCLI()
	if err != nil {
		logger.Error(err.Error())
		os.Exit(1)
	}

	level, err := config.Settings.Level()
	if err != nil {
		logger.Error(err.Error(), slog.String("logLevel", config.Settings.LogLevel))
		os.Exit(1)
	}
	logLevel.Set(level)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
