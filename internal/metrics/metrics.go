// Package metrics exposes the server's Prometheus surface. Everything is
// registered against a private Registry rather than the global default
// so that importing this package has no side effects on processes that
// don't serve it. internal/server imports this package for its label
// constants, so it links prometheus at build time; no collector exists
// until NewServer is called.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Direction labels a packet counter by which way it crossed the wire.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

// Drop reason labels, kept as constants to bound cardinality.
const (
	DropReasonBadCRC        = "bad_crc"
	DropReasonTooSmall      = "too_small"
	DropReasonUnknownKind   = "unknown_kind"
	DropReasonBadSalt       = "bad_salt"
	DropReasonUnknownPlayer = "unknown_player"
	DropReasonDuplicate     = "duplicate"
	DropReasonOutOfOrder    = "out_of_order"
	DropReasonTableFull     = "table_full"
)

// Server is the collector set the dispatcher updates every tick.
type Server struct {
	registry *prometheus.Registry

	playersConnected prometheus.Gauge
	packetsTotal     *prometheus.CounterVec
	packetsDropped   *prometheus.CounterVec
	rttMilliseconds  prometheus.Histogram
}

// NewServer builds and registers every collector against a fresh private
// registry.
func NewServer() *Server {
	reg := prometheus.NewRegistry()

	s := &Server{
		registry: reg,
		playersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rocket_server_players_connected",
			Help: "Current number of players in the Connected state.",
		}),
		packetsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rocket_server_packets_total",
			Help: "Datagrams processed, by direction and packet kind.",
		}, []string{"direction", "kind"}),
		packetsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rocket_server_packets_dropped_total",
			Help: "Datagrams dropped before dispatch, by reason.",
		}, []string{"reason"}),
		rttMilliseconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rocket_server_rtt_milliseconds",
			Help:    "Round-trip time measured from newly-acknowledged send-history entries.",
			Buckets: prometheus.ExponentialBuckets(2, 2, 10),
		}),
	}

	reg.MustRegister(s.playersConnected, s.packetsTotal, s.packetsDropped, s.rttMilliseconds)
	return s
}

func (s *Server) SetPlayersConnected(n int) {
	s.playersConnected.Set(float64(n))
}

func (s *Server) IncPacket(direction, kind string) {
	s.packetsTotal.WithLabelValues(direction, kind).Inc()
}

func (s *Server) IncDropped(reason string) {
	s.packetsDropped.WithLabelValues(reason).Inc()
}

func (s *Server) ObserveRTT(ms float64) {
	s.rttMilliseconds.Observe(ms)
}

// Handler serves this registry's families in the standard exposition
// format, wired into the server binary's /metrics route.
func (s *Server) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
