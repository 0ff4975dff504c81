// Package util contains misc internal utilities.
package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// IntSliceToCSV convets a slice of ints to CSV formatted data.
// e.g., []int{1,2,3,4,5} => "1,2,3,4,5"
func IntSliceToCSV(is []int) string {
	s := make([]string, len(is))
	for i, v := range is {
		s[i] = strconv.Itoa(v)
	}

	return strings.Join(s, ",")
}

// CSVToIntSlice is the inverse of IntSliceToCSV
func CSVToIntSlice(s string) ([]int, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// SecsToDuration converts a floating point number of seconds to a
// time.Duration, rounded to the nearest nanosecond
func SecsToDuration(secs float64) time.Duration {
	return time.Duration(secs*1e9 + copysignHalf(secs))
}

func copysignHalf(f float64) float64 {
	if f < 0 {
		return -0.5
	}
	return 0.5
}

// ParseDuration accepts anything time.ParseDuration does, and a bare
// number as seconds
func ParseDuration(s string) (time.Duration, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return SecsToDuration(f), nil
	}
	return time.ParseDuration(s)
}

// Clamp limits input to [low, high]
func Clamp(input, low, high float64) float64 {
	if input < low {
		return low
	}
	if input > high {
		return high
	}
	return input
}

// MergeErrors combines the non-nil errors into one, or returns nil
func MergeErrors(errs ...error) error {
	return multierr.Combine(errs...)
}

// Errors splits an error made by MergeErrors back apart
func Errors(err error) []error {
	return multierr.Errors(err)
}
