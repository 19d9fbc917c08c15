package format

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var sizeUnits = []string{"KB", "MB", "GB", "TB"}

// HumanizeBytes converts a byte count into a human-readable string (e.g., "1.50 MB").
func HumanizeBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit && exp < len(sizeUnits)-1; n /= unit {
		div *= unit
		exp++
	}
	var buf [24]byte
	s := strconv.AppendFloat(buf[:0], float64(b)/float64(div), 'f', 2, 64)
	return string(s) + " " + sizeUnits[exp]
}

// ErrBadSize is wrapped by ParseSize for malformed input.
var ErrBadSize = errors.New("invalid size")

// ParseSize converts a value such as "10MB", "1.5 GB", "750k" or "2048" into bytes.
// Units are binary (KB = 1024). A bare number uses defaultUnit, which may be
// empty to mean bytes.
func ParseSize(s, defaultUnit string) (int64, error) {
	raw := strings.TrimSpace(s)
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadSize)
	}
	i := len(raw)
	for i > 0 && !isNumeric(raw[i-1]) {
		i--
	}
	num, unit := strings.TrimSpace(raw[:i]), strings.TrimSpace(raw[i:])
	if unit == "" {
		unit = defaultUnit
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", ErrBadSize, s)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%w: %q must be positive", ErrBadSize, s)
	}
	mult, ok := unitMultiplier(unit)
	if !ok {
		return 0, fmt.Errorf("%w: unknown unit %q (valid: B, KB, MB, GB, TB)", ErrBadSize, unit)
	}
	return int64(v * float64(mult)), nil
}

func unitMultiplier(unit string) (int64, bool) {
	switch strings.ToUpper(unit) {
	case "", "B":
		return 1, true
	case "K", "KB", "KIB":
		return 1 << 10, true
	case "M", "MB", "MIB":
		return 1 << 20, true
	case "G", "GB", "GIB":
		return 1 << 30, true
	case "T", "TB", "TIB":
		return 1 << 40, true
	}
	return 0, false
}

func isNumeric(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.'
}
