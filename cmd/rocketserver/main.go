// Command rocketserver runs the authoritative game server: one UDP
// socket for the protocol, one HTTP listener for Prometheus scraping.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/janne-rocket/rocket-net/internal/config"
	"github.com/janne-rocket/rocket-net/internal/logging"
	"github.com/janne-rocket/rocket-net/internal/metrics"
	"github.com/janne-rocket/rocket-net/internal/server"
	"github.com/janne-rocket/rocket-net/internal/transport"
	"github.com/pkg/errors"
)

const defaultMetricsAddr = ":9101"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("ROCKET_ENV_FILE"), os.Args[1:])
	if err != nil {
		return errors.Wrap(err, "rocketserver: load config")
	}
	if cfg.MetricsAddr == "" {
		cfg.MetricsAddr = defaultMetricsAddr
	}

	var opts []logging.Option
	if cfg.LogFormat != "json" {
		opts = append(opts, logging.WithConsole())
	}
	logger := logging.New(os.Stderr, logging.DEBUG, opts...)

	sock, err := transport.NewServerSocket(cfg.Port)
	if err != nil {
		return errors.Wrap(err, "rocketserver: bind socket")
	}
	defer sock.Close()

	m := metrics.NewServer()
	httpServer := &http.Server{Addr: cfg.MetricsAddr, Handler: m.Handler()}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log(logging.EXCEPTION, "metrics server failed", logging.KV{Key: "error", Value: err})
		}
	}()
	defer httpServer.Close()

	d := server.NewDispatcher(sock, logger, m)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Log(logging.INFO, "shutdown signal received")
		d.Stop()
	}()

	logger.Log(logging.INFO, "rocketserver listening",
		logging.KV{Key: "port", Value: cfg.Port},
		logging.KV{Key: "metrics_addr", Value: cfg.MetricsAddr})
	d.Run()
	return nil
}
