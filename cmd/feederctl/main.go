package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"

	"github.com/calvinmclean/indexfeeder"
	"github.com/calvinmclean/indexfeeder/bridge"
	"github.com/calvinmclean/indexfeeder/controller"
	"github.com/calvinmclean/indexfeeder/logs"
	"github.com/calvinmclean/indexfeeder/ui"
)

func main() {
	var listPorts bool
	var logLevel, serveAddr, indexFeeder, direction string
	flag.BoolVar(&listPorts, "ports", false, "list USB serial ports and exit")
	flag.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	flag.StringVar(&serveAddr, "serve", "", "serve the REST bridge on this address instead of the console")
	flag.StringVar(&indexFeeder, "index", "", "index this feeder (name or address) once and exit")
	flag.StringVar(&direction, "direction", "forward", "direction for -index")
	flag.Parse()

	err := logs.SetLevel(logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid log level:", err)
		os.Exit(2)
	}
	logger := logs.New(os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	switch {
	case listPorts:
		err = runListPorts(os.Stdout)
	case os.Getenv("ENABLE_UI") == "true":
		err = runUI(ctx, logger)
	case serveAddr != "":
		err = runServer(ctx, logger, serveAddr)
	case indexFeeder != "":
		err = runIndex(ctx, logger, indexFeeder, direction)
	default:
		err = runCLI(ctx, logger)
	}

	if err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func runListPorts(out io.Writer) error {
	ports, err := controller.GetSerialPorts()
	if errors.Is(err, controller.ErrNoUSBSerial) {
		fmt.Fprintln(out, err)
		return nil
	}
	if err != nil {
		return err
	}

	for _, p := range ports {
		fmt.Fprintln(out, p)
	}
	return nil
}

func runCLI(ctx context.Context, logger *slog.Logger) error {
	c, err := controller.NewFromEnv(logger)
	if err != nil {
		return err
	}
	defer c.Close()

	return c.Run(ctx, os.Stdin, os.Stdout)
}

func runIndex(ctx context.Context, logger *slog.Logger, name, direction string) error {
	dir, err := feeder.ParseDirection(direction)
	if err != nil {
		return fmt.Errorf("%w: %q", err, direction)
	}

	c, err := controller.NewFromEnv(logger)
	if err != nil {
		return err
	}
	defer c.Close()

	cfg := c.Config()
	addr, err := cfg.Lookup(name)
	if err != nil {
		return err
	}

	return c.Index(ctx, addr, dir)
}

func runServer(ctx context.Context, logger *slog.Logger, addr string) error {
	c, err := controller.NewFromEnv(logger)
	if err != nil {
		return err
	}
	defer c.Close()

	api := bridge.NewAPI(c, logger)
	err = api.Seed(ctx, c.Config().Feeders)
	if err != nil {
		return err
	}

	router, err := api.Router()
	if err != nil {
		return fmt.Errorf("error creating router: %w", err)
	}

	server := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()

	logger.Info("serving", "addr", addr)
	err = server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func runUI(ctx context.Context, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := controller.ConfigFromEnv()
	if err != nil {
		return err
	}

	feederUI := ui.NewFeederUI()

	var runErr error
	feederUI.Configure(cfg, func() {
		c, err := controller.New(*cfg, logger)
		if err != nil {
			runErr = err
			cancel()
			return
		}

		r, w := io.Pipe()

		// read from Stdin also
		go func() {
			_, _ = io.Copy(w, os.Stdin)
		}()

		go func() {
			defer c.Close()
			err := c.Run(ctx, r, io.MultiWriter(os.Stdout, feederUI))
			if err != nil {
				logger.Error("console stopped", "error", err)
			}
		}()

		feederUI.ShowPanel(w, cfg.Feeders)
	})

	feederUI.Run(ctx)
	return runErr
}
