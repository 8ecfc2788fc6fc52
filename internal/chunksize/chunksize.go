// Package chunksize parses the -chunked upload option into a byte count.
//
// Accepted forms are "-chunked", "-chunked:N" and "-chunked:N<unit>" where
// unit is one of k, m (decimal) or ki, mi (binary), case-insensitive, with an
// optional trailing "b".
package chunksize

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Default is used when the option carries no value.
const Default int64 = 1 << 20

// Pattern matches the whole option string. It is anchored at both ends so
// trailing text after a unit ("3mike") never matches.
var Pattern = regexp.MustCompile(`(?i)^-chunked(?::(\d+(?:\.\d+)?)[ \t]*(k|ki|m|mi)?b?)?$`)

// ErrInvalid is returned for option strings that do not match Pattern.
var ErrInvalid = errors.New("chunk size parameter is not valid")

var multipliers = map[string]int64{
	"":   1,
	"k":  1000,
	"m":  1000 * 1000,
	"ki": 1 << 10,
	"mi": 1 << 20,
}

// Parse returns the chunk size in bytes described by option.
func Parse(option string) (int64, error) {
	m := Pattern.FindStringSubmatch(option)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, option)
	}
	value, unit := m[1], strings.ToLower(m[2])
	if value == "" {
		return Default, nil
	}

	mult := multipliers[unit]

	if !strings.Contains(value, ".") {
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q: %v", ErrInvalid, option, err)
		}
		if n > math.MaxInt64/mult {
			return 0, fmt.Errorf("%w: %q overflows", ErrInvalid, option)
		}
		return n * mult, nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalid, option, err)
	}
	size := math.Trunc(f * float64(mult))
	if size >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %q overflows", ErrInvalid, option)
	}
	return int64(size), nil
}

// FromFlag parses the value given to a --chunked command line flag.
// An empty value or "default" selects Default.
func FromFlag(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "default" {
		return Parse("-chunked")
	}
	return Parse("-chunked:" + value)
}

// ParseArg accepts either the full option ("-chunked:4mi") or just its
// value ("4mi").
func ParseArg(arg string) (int64, error) {
	arg = strings.TrimSpace(arg)
	if strings.HasPrefix(strings.ToLower(arg), "-chunked") {
		return Parse(arg)
	}
	return FromFlag(arg)
}
