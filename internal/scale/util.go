package scale

import (
	"bytes"
	"context"
	"strings"
	"time"
)

// appendBounded appends chunk and keeps only the trailing max bytes, so a
// silent parser never grows the buffer without bound.
func appendBounded(existing, chunk []byte, max int) []byte {
	combined := append(existing, chunk...)
	if len(combined) <= max {
		return combined
	}
	return combined[len(combined)-max:]
}

// sleepWithContext waits d or until ctx is done. Returns false on cancel.
func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// sanitizeInline makes raw frame bytes safe for a single log line.
func sanitizeInline(raw []byte, max int) string {
	s := string(bytes.ToValidUTF8(raw, []byte("?")))
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
