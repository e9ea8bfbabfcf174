package scale

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
)

// Sentinel errors for link acquisition.
var (
	ErrNoDevice = errors.New("no scale serial device found")
	ErrPortBusy = errors.New("serial port busy")
)

// ch340Markers identify the USB bridge the indicator ships with (CH340,
// VID 0x1A86 / PID 0x7523) inside /dev/serial/by-id names.
var ch340Markers = []string{"ch340", "ch341", "1a86", "7523"}

// Discover lists candidate serial ports, most likely first: by-id entries
// carrying the CH340 signature, then remaining by-id entries, then raw
// ttyUSB/ttyACM nodes. A non-empty preferred port bypasses detection.
// Returns ErrNoDevice when nothing is attached.
func Discover(preferred string) ([]string, error) {
	if p := strings.TrimSpace(preferred); p != "" {
		return []string{p}, nil
	}

	seen := map[string]bool{}
	var matched, other []string
	add := func(path string, isMatch bool) {
		if path == "" || seen[path] {
			return
		}
		seen[path] = true
		if isMatch {
			matched = append(matched, path)
		} else {
			other = append(other, path)
		}
	}

	if byID, err := filepath.Glob("/dev/serial/by-id/*"); err == nil {
		sort.Strings(byID)
		for _, path := range byID {
			name := strings.ToLower(filepath.Base(path))
			target := path
			if resolved, err := filepath.EvalSymlinks(path); err == nil {
				target = resolved
			}
			add(target, hasBridgeMarker(name))
		}
	}

	for _, pattern := range []string{"/dev/ttyUSB*", "/dev/ttyACM*"} {
		paths, err := filepath.Glob(pattern)
		if err != nil {
			continue
		}
		sort.Strings(paths)
		for _, path := range paths {
			add(path, false)
		}
	}

	out := append(matched, other...)
	if len(out) == 0 {
		return nil, ErrNoDevice
	}
	return out, nil
}

func hasBridgeMarker(name string) bool {
	for _, m := range ch340Markers {
		if strings.Contains(name, m) {
			return true
		}
	}
	return false
}

// isBusyErr classifies open errors meaning another process holds the port.
func isBusyErr(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "resource busy") ||
		strings.Contains(msg, "device or resource busy") ||
		strings.Contains(msg, "permission denied")
}
