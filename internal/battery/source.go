package battery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/five82/lumen/internal/mirror"
)

// DefaultSysfsRoot is the power_supply class directory.
const DefaultSysfsRoot = "/sys/class/power_supply"

// SysfsSource reads capacity and status of one power_supply device.
func SysfsSource(root, device string) mirror.Source[Reading] {
	if root == "" {
		root = DefaultSysfsRoot
	}
	dir := filepath.Join(root, device)
	return mirror.SourceFunc[Reading](func(context.Context) (Reading, error) {
		capacity, err := os.ReadFile(filepath.Join(dir, "capacity"))
		if err != nil {
			return Reading{}, err
		}
		status, err := os.ReadFile(filepath.Join(dir, "status"))
		if err != nil {
			return Reading{}, err
		}
		return ParseSysfs(string(capacity), string(status))
	})
}

// ParseSysfs converts the raw capacity and status files. "Charging" and
// "Full" count as charging.
func ParseSysfs(capacity, status string) (Reading, error) {
	capacity = strings.TrimSpace(capacity)
	pct, err := strconv.Atoi(capacity)
	if err != nil || pct < 0 || pct > 100 {
		return Reading{}, &mirror.ParseError{Input: capacity, Want: "a percentage"}
	}
	r := Reading{Percent: float64(pct)}
	switch strings.TrimSpace(status) {
	case "Charging", "Full":
		r.Charging = true
	case "Discharging", "Not charging", "Unknown":
	default:
		return Reading{}, &mirror.ParseError{Input: strings.TrimSpace(status), Want: "a power_supply status"}
	}
	return r, nil
}

const (
	upowerDest       = "org.freedesktop.UPower"
	upowerDisplayDev = "/org/freedesktop/UPower/devices/DisplayDevice"
	upowerDeviceIfc  = "org.freedesktop.UPower.Device"

	upowerStateCharging     uint32 = 1
	upowerStateFullyCharged uint32 = 4
)

// UPowerSource reads UPower's aggregate DisplayDevice over the system bus.
func UPowerSource() mirror.Source[Reading] {
	return mirror.SourceFunc[Reading](func(ctx context.Context) (Reading, error) {
		conn, err := dbus.SystemBus()
		if err != nil {
			return Reading{}, fmt.Errorf("connect system bus: %w", err)
		}
		obj := conn.Object(upowerDest, dbus.ObjectPath(upowerDisplayDev))

		var props map[string]dbus.Variant
		call := obj.CallWithContext(ctx, "org.freedesktop.DBus.Properties.GetAll", 0, upowerDeviceIfc)
		if err := call.Store(&props); err != nil {
			return Reading{}, fmt.Errorf("upower GetAll: %w", err)
		}
		pct, ok := props["Percentage"].Value().(float64)
		if !ok {
			return Reading{}, fmt.Errorf("upower: Percentage missing")
		}
		state, _ := props["State"].Value().(uint32)
		return ParseUPower(pct, state), nil
	})
}

// ParseUPower maps UPower's Percentage and State properties to a Reading.
func ParseUPower(percent float64, state uint32) Reading {
	return Reading{
		Percent:  percent,
		Charging: state == upowerStateCharging || state == upowerStateFullyCharged,
	}
}
