package timing

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Freq defines the type of frequency
type Freq float64

// Defines the unit of frequency
const (
	Hz  Freq = 1
	KHz Freq = 1e3
	MHz Freq = 1e6
	GHz Freq = 1e9
)

// MinPeriod is the shortest period a signal can have. Frequencies above
// 1/MinPeriod saturate to it.
const MinPeriod = time.Nanosecond

// MaxPeriod is the longest period a signal can have. Frequencies below
// 1/MaxPeriod saturate to it.
const MaxPeriod = time.Duration(math.MaxInt64)

var (
	// ErrNonPositiveFreq is returned when a frequency is zero, negative or
	// NaN.
	ErrNonPositiveFreq = errors.New("frequency must be positive")

	// ErrInfiniteFreq is returned for an infinite frequency.
	ErrInfiniteFreq = errors.New("frequency must be finite")
)

// Validate checks if the frequency can be used to drive a signal.
func (f Freq) Validate() error {
	switch {
	case math.IsNaN(float64(f)) || f <= 0:
		return fmt.Errorf("%w: %v", ErrNonPositiveFreq, float64(f))
	case math.IsInf(float64(f), 1):
		return ErrInfiniteFreq
	}

	return nil
}

// Period returns the time between two consecutive ticks, rounded to the
// nearest nanosecond and kept within [MinPeriod, MaxPeriod].
func (f Freq) Period() time.Duration {
	if err := f.Validate(); err != nil {
		panic(err)
	}

	ns := math.Round(float64(time.Second) / float64(f))
	if ns >= float64(MaxPeriod) {
		return MaxPeriod
	}

	p := time.Duration(ns)
	if p < MinPeriod {
		return MinPeriod
	}

	return p
}

// String prints the frequency with the largest unit that keeps the value at
// or above 1, e.g. "60Hz" or "2.5KHz".
func (f Freq) String() string {
	units := []struct {
		unit Freq
		name string
	}{
		{GHz, "GHz"},
		{MHz, "MHz"},
		{KHz, "KHz"},
	}

	for _, u := range units {
		if f >= u.unit {
			return formatFloat(float64(f/u.unit)) + u.name
		}
	}

	return formatFloat(float64(f)) + "Hz"
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ParseFreq parses strings like "60", "60Hz", "2.5khz" or "1GHz". A bare
// number is in Hz. The result is validated.
func ParseFreq(s string) (Freq, error) {
	str := strings.TrimSpace(strings.ToLower(s))

	unit := Hz
	suffixes := []struct {
		suffix string
		unit   Freq
	}{
		{"ghz", GHz},
		{"mhz", MHz},
		{"khz", KHz},
		{"hz", Hz},
	}

	for _, sfx := range suffixes {
		if strings.HasSuffix(str, sfx.suffix) {
			unit = sfx.unit
			str = strings.TrimSpace(strings.TrimSuffix(str, sfx.suffix))

			break
		}
	}

	v, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid frequency %q: %w", s, err)
	}

	f := Freq(v) * unit
	if err := f.Validate(); err != nil {
		return 0, err
	}

	return f, nil
}
