package handshake

import "github.com/pkg/errors"

var (
	errTimeout          = errors.New("handshake: timed out waiting for reply")
	errUnknownSender    = errors.New("handshake: reply from unexpected address")
	errUnexpectedKind   = errors.New("handshake: unexpected packet kind")
	errSaltMismatch     = errors.New("handshake: client salt mismatch")
	errConnectionDenied = errors.New("handshake: server denied connection")
)
