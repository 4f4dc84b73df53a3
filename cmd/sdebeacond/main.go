// Command sdebeacond is the daemon entry point: it wires together the
// service list store, the SDE UDP responder, and the CGI write path, and
// runs them until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/sdebeacon/sdebeacon/internal/category"
	"github.com/sdebeacon/sdebeacon/internal/config"
	"github.com/sdebeacon/sdebeacon/internal/wifi"
	"github.com/sdebeacon/sdebeacon/pkg/cgiwrite"
	"github.com/sdebeacon/sdebeacon/pkg/responder"
	"github.com/sdebeacon/sdebeacon/pkg/servicelist"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("c", "", "path to INI configuration file")
	wifiInterface := flag.String("i", "", "wireless interface name (overrides config)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sdebeacond: %v\n", err)
		os.Exit(1)
	}
	if *wifiInterface != "" {
		cfg.WifiInterface = *wifiInterface
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	log := logrus.NewEntry(logger).WithField("component", "sdebeacond")

	binding, err := wifi.NewBinding(cfg.WifiBinding, cfg.WifiInterface)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize wifi binding")
	}

	list, err := servicelist.OpenStore(cfg.SqlitePath, binding, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open service list store")
	}
	defer list.Close()

	// The category browser lives on the same sqlite handle but is never
	// consulted by the responder or the write path; opening it here only
	// ensures its schema exists for whatever out-of-band tooling
	// populates it.
	if _, err := category.Open(rawDB(list)); err != nil {
		log.WithError(err).Warn("failed to initialize category store")
	}

	resp, err := responder.New(fmt.Sprintf(":%d", cfg.SDEPort), list, log)
	if err != nil {
		log.WithError(err).Fatal("failed to start sde responder")
	}
	defer resp.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	go func() {
		errCh <- resp.Serve(ctx)
	}()

	httpHandler := cgiwrite.New(list, log)
	httpServer := &http.Server{Addr: cfg.HTTPListen, Handler: httpHandler}
	go func() {
		log.WithField("addr", cfg.HTTPListen).Info("cgi write path listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("component exited with error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// rawDB reaches into the service list store for the *sqlx.DB the category
// store shares it with -- both are views over the same sqlite file.
func rawDB(list *servicelist.List) *sqlx.DB {
	return servicelist.RawDB(list)
}
