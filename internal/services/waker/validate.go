package waker

import (
	"bytes"
	"net"
	"regexp"
	"strconv"

	"github.com/fgeck/wakehost/internal/models"
	"github.com/fgeck/wakehost/internal/services/wol"
)

// Six hexadecimal octet pairs, all colon- or all hyphen-separated.
var macPattern = regexp.MustCompile(`^(?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2}$|^(?:[0-9A-Fa-f]{2}-){5}[0-9A-Fa-f]{2}$`)

// Validate checks that target can be woken and probed.
func Validate(target models.WakeTarget) error {
	if !macPattern.MatchString(target.MACAddress) {
		return &InvalidTargetError{
			Field:  "mac_address",
			Value:  target.MACAddress,
			Reason: "must be six hexadecimal octet pairs separated by ':' or '-'",
		}
	}

	mac, err := net.ParseMAC(target.MACAddress)
	if err != nil {
		return &InvalidTargetError{Field: "mac_address", Value: target.MACAddress, Reason: err.Error()}
	}
	if bytes.Equal(mac, make(net.HardwareAddr, len(mac))) {
		return &InvalidTargetError{
			Field:  "mac_address",
			Value:  target.MACAddress,
			Reason: "placeholder address, configure the target's hardware address",
		}
	}

	if target.Host == "" {
		return &InvalidTargetError{Field: "host", Value: target.Host, Reason: "is required"}
	}

	// Broadcast and port are unused on the raw transport.
	if target.Interface == "" {
		if net.ParseIP(target.Broadcast) == nil {
			return &InvalidTargetError{Field: "broadcast", Value: target.Broadcast, Reason: "must be an IP address"}
		}
		if target.Port < 1 || target.Port > 65535 {
			return &InvalidTargetError{
				Field:  "port",
				Value:  strconv.Itoa(target.Port),
				Reason: "must be between 1 and 65535",
			}
		}
	}

	if _, err := wol.ParsePassword(target.Password); err != nil {
		return &InvalidTargetError{Field: "password", Value: "(redacted)", Reason: err.Error()}
	}

	return nil
}
