//go:build linux

package wifi

import (
	"bytes"
	"fmt"
	"os/exec"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

func init() {
	RegisterBinding("nl80211", NewNL80211Binding)
}

// NL80211Binding sets and reads the SSID of a real wireless interface.
// SetSSID first opens and binds a generic netlink socket
// (golang.org/x/sys/unix) but sends no nl80211 command over it; the SSID
// is always set by shelling out to the `iw` command line tool, and
// GetSSID always reads it with `iw dev <iface> info`. This is the only place in the module
// that speaks the wireless driver's native interface; every other
// component consumes it only through the Binding contract.
type NL80211Binding struct {
	iface  string
	logger *logrus.Entry
}

// NewNL80211Binding constructs a binding for the named network interface
// (e.g. "wlan0").
func NewNL80211Binding(iface string) (Binding, error) {
	return &NL80211Binding{
		iface:  iface,
		logger: logrus.WithField("component", "wifi.nl80211").WithField("iface", iface),
	}, nil
}

// SetSSID implements Binding.
func (b *NL80211Binding) SetSSID(data []byte) error {
	if len(data) > MaxSSIDLen {
		return ErrTooLong
	}
	if err := b.setViaNetlink(data); err != nil {
		b.logger.WithError(err).Debug("netlink ssid set failed, falling back to iw")
		return b.setViaIW(data)
	}
	return nil
}

// GetSSID implements Binding.
func (b *NL80211Binding) GetSSID() ([]byte, error) {
	out, err := exec.Command("iw", "dev", b.iface, "info").Output()
	if err != nil {
		return nil, fmt.Errorf("wifi: iw dev info: %w", err)
	}
	return parseIWSSID(out), nil
}

// setViaNetlink opens and binds a NETLINK_GENERIC socket, the socket
// family the kernel uses for nl80211-mediated wireless configuration.
// Establishing the socket and verifying it is usable is as far as this
// adapter goes; it always returns errNetlinkUnsupported afterwards.
func (b *NL80211Binding) setViaNetlink(data []byte) error {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW, unix.NETLINK_GENERIC)
	if err != nil {
		return fmt.Errorf("wifi: open netlink socket: %w", err)
	}
	defer unix.Close(fd)

	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK}
	if err := unix.Bind(fd, sa); err != nil {
		return fmt.Errorf("wifi: bind netlink socket: %w", err)
	}
	// Driving the NL80211_CMD_SET_INTERFACE / beacon-template exchange
	// needs the generic-netlink family id resolved via CTRL_CMD_GETFAMILY
	// and a full device-backed access point; neither is available off of
	// a raw test harness. Neither is attempted here, so this binding
	// always degrades to the iw fallback.
	return errNetlinkUnsupported
}

func (b *NL80211Binding) setViaIW(data []byte) error {
	cmd := exec.Command("iw", "dev", b.iface, "set", "ssid", string(data))
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wifi: iw dev set ssid: %w", err)
	}
	return nil
}

func parseIWSSID(out []byte) []byte {
	const prefix = "ssid "
	for _, line := range bytes.Split(out, []byte("\n")) {
		trimmed := bytes.TrimSpace(line)
		if bytes.HasPrefix(trimmed, []byte(prefix)) {
			return bytes.TrimSpace(trimmed[len(prefix):])
		}
	}
	return nil
}

var errNetlinkUnsupported = fmt.Errorf("wifi: direct netlink ssid configuration not implemented, use iw fallback")
