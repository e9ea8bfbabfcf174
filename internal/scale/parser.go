package scale

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"weigh_station/internal/models"
)

// maxFrameLen guards against runaway frames on chatty or misconfigured links.
const maxFrameLen = 64

// FrameParser turns the raw serial byte stream into discrete weight samples.
// Implementations are stateless; framing state lives in the caller's buffer,
// so a reconnect simply starts over with an empty buffer.
type FrameParser interface {
	// Next scans buf for the earliest complete frame and returns it together
	// with the unconsumed remainder. ok is false while no full frame is
	// buffered yet.
	Next(buf []byte) (frame, rest []byte, ok bool)

	// Decode validates one complete frame and produces a sample. A frame that
	// fails to decode is dropped; the stream continues with the next frame.
	Decode(frame []byte) (models.WeightSample, error)
}

// NewFrameParser selects the parser for a configured protocol name.
func NewFrameParser(protocol string) (FrameParser, error) {
	switch strings.ToLower(strings.TrimSpace(protocol)) {
	case "", "e550":
		return E550Parser{}, nil
	case "ascii":
		return ASCIIParser{}, nil
	default:
		return nil, fmt.Errorf("unknown scale protocol %q", protocol)
	}
}

var (
	// e550Frame matches one complete frame on the wire: six digits formatted
	// "ab.cdef" closed by '='. The indicator transmits the weight with its
	// digits reversed; Decode restores the reading as fedc.ba kg.
	e550Frame = regexp.MustCompile(`\d{2}\.\d{4}=`)
	e550Body  = regexp.MustCompile(`^\d{2}\.\d{4}$`)

	errFrameLayout = errors.New("frame does not match ab.cdef= layout")
	errEmptyFrame  = errors.New("empty frame")
)

// E550Parser handles the stock E550 indicator firmware. The protocol has no
// checksum and no stability bit; the unit is always kilograms.
type E550Parser struct{}

func (E550Parser) Next(buf []byte) (frame, rest []byte, ok bool) {
	loc := e550Frame.FindIndex(buf)
	if loc == nil {
		return nil, buf, false
	}
	return buf[loc[0]:loc[1]], buf[loc[1]:], true
}

func (E550Parser) Decode(frame []byte) (models.WeightSample, error) {
	raw := strings.TrimSpace(string(frame))
	body, found := strings.CutSuffix(raw, "=")
	if !found || !e550Body.MatchString(body) {
		return models.WeightSample{}, fmt.Errorf("%w: %q", errFrameLayout, raw)
	}

	digits := reverseDigits(strings.ReplaceAll(body, ".", ""))
	value, err := strconv.ParseFloat(digits[:4]+"."+digits[4:], 64)
	if err != nil {
		return models.WeightSample{}, fmt.Errorf("decode frame %q: %w", raw, err)
	}

	return models.WeightSample{
		ValueKg:    value,
		RawUnit:    models.UnitKg,
		CapturedAt: time.Now(),
	}, nil
}

func reverseDigits(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}

var (
	asciiWeight   = regexp.MustCompile(`([-+]?\d+(?:[.,]\d+)?)\s*(kg|g)?`)
	asciiStable   = regexp.MustCompile(`(?i)\bST\b|\bSTABLE\b`)
	asciiUnstable = regexp.MustCompile(`(?i)\bUS\b|\bUNSTABLE\b`)
)

// ASCIIParser handles indicators that stream line-oriented readings such as
// "ST,GS,+  1.234 kg". A bare number counts as a kilogram reading, which
// covers continuous-output firmware that prints values with no decoration.
// The in-band ST/US marker is passed through as an advisory hint only.
type ASCIIParser struct{}

func (ASCIIParser) Next(buf []byte) (frame, rest []byte, ok bool) {
	idx := bytes.IndexAny(buf, "\r\n")
	if idx < 0 {
		return nil, buf, false
	}
	j := idx
	for j < len(buf) && (buf[j] == '\r' || buf[j] == '\n') {
		j++
	}
	return buf[:idx], buf[j:], true
}

func (ASCIIParser) Decode(frame []byte) (models.WeightSample, error) {
	raw := strings.TrimSpace(string(frame))
	if raw == "" {
		return models.WeightSample{}, errEmptyFrame
	}
	if len(raw) > maxFrameLen {
		return models.WeightSample{}, fmt.Errorf("frame exceeds %d bytes", maxFrameLen)
	}

	matches := asciiWeight.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return models.WeightSample{}, fmt.Errorf("no numeric value in frame %q", raw)
	}
	m := matches[len(matches)-1]

	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
	if err != nil {
		return models.WeightSample{}, fmt.Errorf("decode frame %q: %w", raw, err)
	}
	if value < -1_000_000 || value > 1_000_000 {
		return models.WeightSample{}, fmt.Errorf("value out of range in frame %q", raw)
	}

	unit := models.UnitKg
	valueKg := value
	if strings.EqualFold(strings.TrimSpace(m[2]), "g") {
		unit = models.UnitG
		valueKg = value / 1000
	}

	var hint *bool
	if asciiUnstable.MatchString(raw) {
		v := false
		hint = &v
	} else if asciiStable.MatchString(raw) {
		v := true
		hint = &v
	}

	return models.WeightSample{
		ValueKg:    valueKg,
		RawUnit:    unit,
		CapturedAt: time.Now(),
		StableHint: hint,
	}, nil
}
