// Command sdecgi runs the owner write path as a traditional CGI program,
// invoked once per request by a web server over net/http/cgi. Per
// spec.md §6 it exits 0 on success, non-zero on fatal setup failure or an
// SSID-too-long commit failure.
package main

import (
	"errors"
	"fmt"
	"net/http/cgi"
	"os"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/sdebeacon/sdebeacon/internal/config"
	"github.com/sdebeacon/sdebeacon/internal/wifi"
	"github.com/sdebeacon/sdebeacon/pkg/cgiwrite"
	"github.com/sdebeacon/sdebeacon/pkg/servicelist"
)

func main() {
	cfg, err := config.Load(os.Getenv("SDEBEACON_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "sdecgi: %v\n", err)
		os.Exit(1)
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	log := logrus.NewEntry(logger).WithField("component", "sdecgi")

	binding, err := wifi.NewBinding(cfg.WifiBinding, cfg.WifiInterface)
	if err != nil {
		log.WithError(err).Error("failed to initialize wifi binding")
		os.Exit(1)
	}

	list, err := servicelist.OpenStore(cfg.SqlitePath, binding, log)
	if err != nil {
		log.WithError(err).Error("failed to open service list store")
		os.Exit(1)
	}
	defer list.Close()

	handler := cgiwrite.New(list, log)
	fatal := false
	handler.OnCommitFailure = func(err error) {
		if errors.Is(err, servicelist.ErrSsidTooLong) {
			fatal = true
		}
	}

	if err := cgi.Serve(handler); err != nil {
		log.WithError(err).Error("cgi serve failed")
		os.Exit(1)
	}
	if fatal {
		os.Exit(1)
	}
}
