// Command cytomat talks to a Cytomat incubator over a serial line.
//
// Usage:
//
//	cytomat [flags] commands
//	cytomat [flags] status
//	cytomat [flags] raw <command> [args...]
//	cytomat [flags] watch [-interval 10s]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/moffa90/go-cytomat/cytomat"
	"github.com/moffa90/go-cytomat/internal/config"
	"github.com/moffa90/go-cytomat/logging"
	"github.com/moffa90/go-cytomat/serial"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// openTransport opens the serial line. Replaced in tests.
var openTransport = func(cfg serial.Config) (cytomat.Transport, error) {
	return serial.Open(cfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// app carries what the subcommands share.
type app struct {
	cfg     config.Config
	log     *logrus.Logger
	session *cytomat.Session
	out     io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cytomat", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.String("config", "", "path to YAML config file")
	port := fs.String("port", "", "serial device, overrides the config file")
	timeout := fs.Duration("timeout", 0, "default response timeout, overrides the config file")
	logLevel := fs.String("log-level", "", "log level, overrides the config file")
	showVersion := fs.Bool("version", false, "print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: cytomat [flags] <commands|status|raw|watch> [args...]\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Fprintf(stdout, "cytomat %s (build %s)\n", Version, BuildTime)
		return 0
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	// Listing commands needs no device
	if rest[0] == "commands" {
		printCommands(stdout)
		return 0
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 1
	}
	if *port != "" {
		cfg.Serial.Device = *port
	}
	if *timeout > 0 {
		cfg.Engine.Timeout = *timeout
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}

	log := logging.Setup(cfg.Log)

	transport, err := openTransport(cfg.Serial)
	if err != nil {
		log.WithError(err).Error("open serial port")
		return 1
	}

	opts := append(cfg.EngineOptions(), cytomat.WithLogger(logging.NewLogrus(log)))
	a := &app{cfg: cfg, log: log, out: stdout}

	var sub func(context.Context, []string) error
	switch rest[0] {
	case "status":
		sub = a.status
	case "raw":
		sub = a.raw
	case "watch":
		sub, opts = a.watchWithMetrics(opts)
	default:
		transport.Close()
		fmt.Fprintf(stderr, "unknown subcommand %q\n", rest[0])
		fs.Usage()
		return 2
	}

	a.session = cytomat.NewSession(transport, opts...)
	defer a.session.Close()

	log.WithFields(logrus.Fields{
		"device":  cfg.Serial.Device,
		"baud":    cfg.Serial.BaudRate,
		"timeout": cfg.Engine.Timeout.String(),
	}).Debug("session open")

	if err := sub(ctx, rest[1:]); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		log.WithError(err).Error(rest[0] + " failed")
		return 1
	}
	return 0
}
