// Command rocketclient establishes a connection to a rocketserver,
// synchronizes clocks, and drives the InputFrame/GameState loop. In
// place of the original console client's Win32 keyboard/render loop
// (out of scope here), it feeds a synthetic thrust/turn pattern and
// logs the authoritative roster it receives back.
package main

import (
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/janne-rocket/rocket-net/internal/client"
	"github.com/janne-rocket/rocket-net/internal/clocksync"
	"github.com/janne-rocket/rocket-net/internal/config"
	"github.com/janne-rocket/rocket-net/internal/handshake"
	"github.com/janne-rocket/rocket-net/internal/logging"
	"github.com/janne-rocket/rocket-net/internal/model"
	"github.com/janne-rocket/rocket-net/internal/transport"
	"github.com/pkg/errors"
)

const tickInterval = time.Second / 60

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("ROCKET_ENV_FILE"), os.Args[1:])
	if err != nil {
		return errors.Wrap(err, "rocketclient: load config")
	}

	var opts []logging.Option
	if cfg.LogFormat != "json" {
		opts = append(opts, logging.WithConsole())
	}
	logger := logging.New(os.Stderr, logging.DEBUG, opts...)

	sock, serverAddr, err := transport.NewClientSocket(cfg.Server, cfg.Port)
	if err != nil {
		return errors.Wrap(err, "rocketclient: dial socket")
	}
	defer sock.Close()

	hs := &handshake.ClientHandshake{Socket: sock, ServerAddr: serverAddr, Logger: logger}
	var result handshake.Result
	for {
		result, err = hs.Establish()
		if err == nil {
			break
		}
		logger.Log(logging.WARNING, "handshake failed, retrying", logging.KV{Key: "error", Value: err})
		time.Sleep(handshake.Backoff)
	}

	if _, err := clocksync.Sync(sock, serverAddr, result.Salts.ConnectionSalt, logger); err != nil {
		logger.Log(logging.WARNING, "clock sync failed, continuing anyway", logging.KV{Key: "error", Value: err})
	}

	c := client.New(sock, serverAddr, logger, result.PlayerID, result.Salts.ConnectionSalt)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		logger.Log(logging.INFO, "shutdown signal received")
		c.Stop()
	}()

	go produceInput(c, result.PlayerID)
	go consumeIncoming(c, logger)

	logger.Log(logging.INFO, "rocketclient connected", logging.KV{Key: "player_id", Value: result.PlayerID})
	c.Run()
	return nil
}

// produceInput stands in for the original's keyboard polling: a
// steady thrust with a slow left/right oscillation, so a running
// client exercises the up, left and right bits without a human at the
// wheel; down and space are never pressed.
func produceInput(c *client.Client, playerID int64) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var tick int64
	for range ticker.C {
		tick++
		phase := math.Sin(float64(tick) / 120.0)

		kb := model.KeyUp
		if phase < -0.2 {
			kb |= model.KeyLeft
		} else if phase > 0.2 {
			kb |= model.KeyRight
		}

		c.Outgoing.Push(model.PlayerState{
			PlayerID:  uint8(playerID),
			Keyboard:  kb,
			DeltaTime: float32(tickInterval.Seconds()),
		})
	}
}

// consumeIncoming drains the rosters the network goroutine produces.
// A renderer would read the same ring buffer; here we just log.
func consumeIncoming(c *client.Client, logger logging.Logger) {
	for {
		players, ok := c.Incoming.Pop()
		if !ok {
			time.Sleep(time.Millisecond)
			continue
		}
		logger.Log(logging.DEBUG, "roster update", logging.KV{Key: "players", Value: len(players)})
	}
}
