// Package config resolves the handful of settings cmd/rocketserver and
// cmd/rocketclient share: server host, UDP port, log format and metrics
// address (cmd/rocketecho parses its own flag). Precedence, low to high: built
// in defaults, a .env-style file or the process environment (parsed with
// hashicorp/go-envparse), then CLI flags (spf13/pflag).
package config

import (
	"os"
	"strconv"

	"github.com/hashicorp/go-envparse"
	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

const (
	DefaultServer = "127.0.0.1"
	DefaultPort   = 3501
)

// Config is the resolved set of connection settings.
type Config struct {
	Server      string
	Port        int
	LogFormat   string
	MetricsAddr string
}

// Load resolves Config from, in increasing precedence: the built-in
// defaults, the environment (optionally seeded from an envFile), and args
// (normally os.Args[1:]). Positional arguments, if present, are [server]
// [port], matching the original console client's invocation.
func Load(envFile string, args []string) (Config, error) {
	cfg := Config{Server: DefaultServer, Port: DefaultPort, LogFormat: "json"}

	if envFile != "" {
		if err := applyEnvFile(envFile); err != nil {
			return cfg, err
		}
	}

	if v := os.Getenv("UDP_SERVER"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("UDP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, errors.Wrap(err, "config: parse UDP_PORT")
		}
		cfg.Port = port
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}

	fs := flag.NewFlagSet("rocket", flag.ContinueOnError)
	server := fs.String("server", cfg.Server, "server host to connect to")
	port := fs.Int("port", cfg.Port, "UDP port")
	logFormat := fs.String("log-format", cfg.LogFormat, "log output format: json or console")
	metricsAddr := fs.String("metrics-addr", cfg.MetricsAddr, "address to serve /metrics on (rocketserver uses :9101 when empty)")
	if err := fs.Parse(args); err != nil {
		return cfg, errors.Wrap(err, "config: parse flags")
	}

	cfg.Server = *server
	cfg.Port = *port
	cfg.LogFormat = *logFormat
	cfg.MetricsAddr = *metricsAddr

	if positional := fs.Args(); len(positional) > 0 {
		cfg.Server = positional[0]
		if len(positional) > 1 {
			p, err := strconv.Atoi(positional[1])
			if err != nil {
				return cfg, errors.Wrap(err, "config: parse positional port")
			}
			cfg.Port = p
		}
	}

	return cfg, nil
}

func applyEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "config: open env file %s", path)
	}
	defer f.Close()

	entries, err := envparse.Parse(f)
	if err != nil {
		return errors.Wrapf(err, "config: parse env file %s", path)
	}
	for k, v := range entries {
		if _, set := os.LookupEnv(k); !set {
			os.Setenv(k, v)
		}
	}
	return nil
}
