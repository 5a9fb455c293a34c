package config

import (
	"flag"
	"io"
	"time"

	"github.com/dmitrijs2005/trackkeeper/internal/flagx"
)

// parseFlags overlays command-line flags onto config.
//
//	-a string   address:port of the auth gRPC endpoint
//	-s string   session database file
//	-t int      request timeout, seconds
//	-l string   log level (debug, info, warn, error)
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-s", "-t", "-l"})

	fs := flag.NewFlagSet("cli", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.ServerEndpointAddr, "a", config.ServerEndpointAddr, "address and port of the server")
	fs.StringVar(&config.SessionDBPath, "s", config.SessionDBPath, "session database file")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	timeout := fs.Int("t", int(config.RequestTimeout.Seconds()), "request timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			config.RequestTimeout = time.Duration(*timeout) * time.Second
		}
	})
	return nil
}
