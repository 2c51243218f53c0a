// Package main is the Beitak terminal client. It restores the stored
// session, routes the user to sign in, onboarding or the main app and
// keeps the session fresh in the background.
package main

import (
	"cmp"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/beitak/beitak/internal/client/authclient"
	"github.com/beitak/beitak/internal/client/profilestore"
	"github.com/beitak/beitak/internal/client/session"
	"github.com/beitak/beitak/internal/client/shell"
	"github.com/beitak/beitak/internal/client/storage"
	"github.com/beitak/beitak/internal/logger"
)

var (
	version   string
	buildDate string
)

type options struct {
	baseURL  string
	caFile   string
	storage  string
	timeout  time.Duration
	refresh  time.Duration
	logLevel string
}

func main() {
	var opts options
	flag.StringVar(&opts.baseURL, "url", "http://localhost:8080", "server base URL")
	flag.StringVar(&opts.caFile, "ca", "", "path to CA certificate for an https server")
	flag.StringVar(&opts.storage, "storage", "beitak_session.json", "path to the stored session token")
	flag.DurationVar(&opts.timeout, "timeout", profilestore.DefaultTimeout, "request timeout")
	flag.DurationVar(&opts.refresh, "refresh", time.Minute, "session check interval")
	flag.StringVar(&opts.logLevel, "log", "warn", "log level")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
		fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))
		return
	}

	log := logger.New()
	if err := log.InitDevelopment(opts.logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, log.Log); err != nil {
		log.Log.Error("client stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, log *zap.Logger) error {
	httpClient, err := storage.NewHTTPClient(opts.caFile, opts.timeout)
	if err != nil {
		return fmt.Errorf("cannot create http client: %w", err)
	}

	auth := authclient.New(httpClient, opts.baseURL, storage.NewTokenStore(opts.storage), log)
	profiles := profilestore.New(httpClient, opts.baseURL, auth, log, profilestore.WithTimeout(opts.timeout))

	sh := shell.New(os.Stdin, os.Stdout, auth, profiles, log, opts.timeout)
	gate := session.NewGate(auth, profiles, sh, sh, log)
	sh.Bind(gate)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	auth.StartSessionWatch(ctx, opts.refresh)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gate.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	// The shell blocks on stdin, so it is not part of the group.
	shellDone := make(chan error, 1)
	go func() { shellDone <- sh.Run(gctx) }()

	var shellErr error
	select {
	case shellErr = <-shellDone:
	case <-gctx.Done():
	}
	cancel()
	return errors.Join(shellErr, g.Wait())
}
