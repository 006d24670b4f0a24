package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/haukened/dnsxfer/internal/dns/common/clock"
	"github.com/haukened/dnsxfer/internal/dns/common/log"
	"github.com/haukened/dnsxfer/internal/dns/config"
	"github.com/haukened/dnsxfer/internal/dns/domain"
	"github.com/haukened/dnsxfer/internal/dns/gateways/exchange"
	"github.com/haukened/dnsxfer/internal/dns/gateways/tlsaccept"
	"github.com/haukened/dnsxfer/internal/dns/gateways/transport"
	"github.com/haukened/dnsxfer/internal/dns/xfer"
)

const (
	// Version information
	version = "0.1.0-dev"
	appName = "dnsq"

	defaultShutdownTimeout = 5 * time.Second
)

const usage = "usage: dnsq <name> [type]"

// Application holds the connected client.
type Application struct {
	config *config.AppConfig
	driver *exchange.Driver
	handle xfer.Handle
	done   chan error
}

func main() {
	query, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	// Load configuration from environment
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	// Configure global logging
	err = log.Configure(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logging configuration error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, query, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		stop()
		os.Exit(1)
	}
}

// run performs a single query and prints the answer to out.
func run(ctx context.Context, cfg *config.AppConfig, query domain.Query, out io.Writer) error {
	log.Debug(map[string]any{
		"version":   version,
		"server":    cfg.Server,
		"transport": cfg.Transport,
		"dnssec":    cfg.DNSSEC,
	}, "Starting dnsq")

	app, err := buildApplication(ctx, cfg)
	if err != nil {
		return err
	}
	app.Start(ctx)
	defer func() {
		if err := app.Close(); err != nil {
			log.Warn(map[string]any{"error": err}, "Error during shutdown")
		}
	}()

	resp, err := app.Query(ctx, query)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, resp.Message.String())
	return err
}

// parseArgs turns "<name> [type]" into a query. The type defaults to A.
func parseArgs(args []string) (domain.Query, error) {
	if len(args) < 1 || len(args) > 2 {
		return domain.Query{}, errors.New("expected a name and an optional type")
	}
	rrtype := domain.RRTypeA
	if len(args) == 2 {
		rrtype = domain.RRTypeFromString(args[1])
		if rrtype == 0 {
			return domain.Query{}, fmt.Errorf("unknown record type %q", args[1])
		}
	}
	return domain.NewQuery(args[0], rrtype, domain.RRClassIN)
}

// buildApplication dials the configured server and wires the handle chain.
func buildApplication(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	logger := log.GetLogger()

	tlsConfig, err := buildTLSConfig(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := transport.Dial(ctx, transport.Options{
		Type:    transport.TransportType(cfg.Transport),
		Address: cfg.Server,
		TLS:     tlsConfig,
		Proxy:   cfg.Proxy,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	driver, err := exchange.New(exchange.Options{
		Conn:       conn,
		Timeout:    cfg.QueryTimeout(),
		RetiredIDs: cfg.RetiredIDs,
		Logger:     logger,
		Clock:      clock.RealClock{},
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create driver: %w", err)
	}

	var handle xfer.Handle = driver.Handle()
	if cfg.DNSSEC {
		handle = xfer.NewSecureHandle(handle, nil)
	}
	handle = xfer.NewLoggingHandle(handle, logger).WithClock(clock.RealClock{})

	return &Application{
		config: cfg,
		driver: driver,
		handle: handle,
		done:   make(chan error, 1),
	}, nil
}

// buildTLSConfig returns the DoT client configuration, or nil for plain
// transports.
func buildTLSConfig(cfg *config.AppConfig) (*tls.Config, error) {
	if transport.TransportType(cfg.Transport) != transport.TransportDoT {
		return nil, nil
	}
	tlsConfig := &tls.Config{
		ServerName:         cfg.TLSServerName,
		InsecureSkipVerify: cfg.TLSInsecure,
		MinVersion:         tls.VersionTLS12,
	}
	if cfg.CertBundle != "" {
		creds, err := tlsaccept.ReadCredentials(cfg.CertBundle, cfg.CertPassword)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{creds.Certificate()}
	}
	return tlsConfig, nil
}

// Start runs the driver in the background until ctx is done or Close.
func (app *Application) Start(ctx context.Context) {
	go func() {
		app.done <- app.driver.Run(ctx)
	}()
}

// Query resolves q through the handle chain.
func (app *Application) Query(ctx context.Context, q domain.Query) (*xfer.Response, error) {
	opts := domain.Options{RequestDNSSEC: app.config.DNSSEC}
	return xfer.Lookup(app.handle, q, opts).Wait(ctx)
}

// Close stops the driver and waits for it to exit.
func (app *Application) Close() error {
	_ = app.driver.Close()
	select {
	case err := <-app.done:
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return nil
	case <-time.After(defaultShutdownTimeout):
		return fmt.Errorf("shutdown timeout")
	}
}
