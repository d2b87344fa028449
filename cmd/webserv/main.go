package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/indigo-web/webserv/config"
	"github.com/indigo-web/webserv/internal/responder"
	"github.com/indigo-web/webserv/internal/server/http"
	"github.com/indigo-web/webserv/internal/session"
	"github.com/indigo-web/webserv/vhost"
	"github.com/rs/zerolog"
)

const defaultConfigPath = "config/default.conf"

func main() {
	var (
		dump     = flag.Bool("dump", false, "print the loaded virtual hosts as JSON and exit")
		logLevel = flag.String("log-level", "info", "one of: trace, debug, info, warn, error")
		pretty   = flag.Bool("pretty", false, "write human-readable logs instead of JSON")
	)

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: webserv [flags] [config-path]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() > 1 {
		flag.Usage()
		os.Exit(1)
	}

	path := defaultConfigPath
	if flag.NArg() == 1 {
		path = flag.Arg(0)
	}

	logger, err := newLogger(*logLevel, *pretty)
	if err != nil {
		fail(err)
	}

	vhosts, err := vhost.Load(path)
	if err != nil {
		fail(err)
	}

	if *dump {
		if err = vhosts.Dump(os.Stdout); err != nil {
			fail(err)
		}

		return
	}

	if err = run(vhosts, logger); err != nil {
		logger.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(vhosts *vhost.Set, logger zerolog.Logger) error {
	cfg := config.Default()
	r := responder.New(cfg, vhosts, session.NewStore(cfg.Session), logger)

	loop, err := http.NewEventLoop(cfg, vhosts, r, logger)
	if err != nil {
		return err
	}

	if err = loop.Listen(); err != nil {
		return err
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signals
		logger.Info().Stringer("signal", sig).Msg("shutting down")
		loop.Stop()
	}()

	return loop.Run()
}

func newLogger(level string, pretty bool) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Logger{}, fmt.Errorf("log level: %w", err)
	}

	logger := zerolog.New(os.Stderr)
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}

	return logger.Level(lvl).With().Timestamp().Logger(), nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "webserv: %s\n", err)
	os.Exit(1)
}
