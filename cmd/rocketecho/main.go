// Command rocketecho is a minimal UDP echo responder: it binds a socket
// via internal/transport and bounces back any datagram whose CRC
// validates, unchanged, to its sender. It exists as a thin, handshake-free
// consumer of the wire/transport packages for link-layer smoke testing.
package main

import (
	"fmt"
	"os"

	"github.com/janne-rocket/rocket-net/internal/logging"
	"github.com/janne-rocket/rocket-net/internal/transport"
	"github.com/janne-rocket/rocket-net/internal/wire"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

const defaultPort = 3502

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	port := flag.Int("port", defaultPort, "UDP port to listen on")
	flag.Parse()

	var opts []logging.Option
	if os.Getenv("LOG_FORMAT") != "json" {
		opts = append(opts, logging.WithConsole())
	}
	logger := logging.New(os.Stderr, logging.DEBUG, opts...)

	sock, err := transport.NewServerSocket(*port)
	if err != nil {
		return errors.Wrap(err, "rocketecho: bind socket")
	}
	defer sock.Close()

	logger.Log(logging.INFO, "rocketecho listening", logging.KV{Key: "port", Value: *port})
	for {
		result := sock.Recv()
		switch result.Outcome {
		case transport.Received:
			if !wire.ValidateCRC(result.Bytes) {
				logger.Log(logging.WARNING, "dropping invalid packet")
				continue
			}
			if err := sock.Send(result.Bytes, result.Addr); err != nil {
				logger.Log(logging.WARNING, "echo send failed", logging.KV{Key: "error", Value: err})
			}
		case transport.WouldBlock:
			continue
		case transport.Errored:
			logger.Log(logging.EXCEPTION, "recv error", logging.KV{Key: "error", Value: result.Err})
		}
	}
}
