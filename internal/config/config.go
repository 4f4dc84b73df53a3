// Package config loads the daemon's process configuration from an INI
// file, the same format and library (gopkg.in/ini.v1) the teacher
// repository uses for its own node configuration files.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/sdebeacon/sdebeacon/internal/sdeproto"
)

// Config is the fully resolved process configuration.
type Config struct {
	SDEPort       int
	SqlitePath    string
	WifiBinding   string
	WifiInterface string
	HTTPListen    string
	LogLevel      string
}

// Defaults returns the configuration used when no file is present and no
// flags override it.
func Defaults() Config {
	return Config{
		SDEPort:       sdeproto.Port,
		SqlitePath:    "services.db",
		WifiBinding:   "virtual",
		WifiInterface: "wlan0",
		HTTPListen:    ":8080",
		LogLevel:      "info",
	}
}

// Load reads path (an INI file) and overlays it onto Defaults(). An
// empty path is not an error; the defaults are used as-is. A non-empty
// path that cannot be loaded is reported as an error.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	f, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true}, path)
	if err != nil {
		return cfg, fmt.Errorf("config: load %q: %w", path, err)
	}

	daemon := f.Section("daemon")
	cfg.SDEPort = daemon.Key("sde_port").MustInt(cfg.SDEPort)
	cfg.SqlitePath = daemon.Key("sqlite_path").MustString(cfg.SqlitePath)
	cfg.WifiBinding = daemon.Key("wifi_binding").MustString(cfg.WifiBinding)
	cfg.WifiInterface = daemon.Key("wifi_interface").MustString(cfg.WifiInterface)
	cfg.LogLevel = daemon.Key("log_level").MustString(cfg.LogLevel)

	httpSec := f.Section("http")
	cfg.HTTPListen = httpSec.Key("listen_addr").MustString(cfg.HTTPListen)

	return cfg, nil
}
