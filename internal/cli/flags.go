package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vidshrink/internal/model"
	"vidshrink/internal/util/format"
	"vidshrink/internal/util/media"
)

// DefaultTargetFraction is the share of the source size used when no size is given.
const DefaultTargetFraction = 0.8

// ParseTarget resolves the --size/--unit pair into bytes. An empty size
// selects DefaultTargetFraction of the source; "60%" is relative to the
// source; a bare number is read in unit (KB, MB or GB).
func ParseTarget(size, unit string, sourceBytes int64) (int64, error) {
	size = strings.TrimSpace(size)
	if size == "" {
		if sourceBytes <= 0 {
			return 0, errors.New("cannot derive a default size from an empty source")
		}
		return int64(float64(sourceBytes) * DefaultTargetFraction), nil
	}

	if pct, ok := strings.CutSuffix(size, "%"); ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(pct), 64)
		if err != nil || v <= 0 || v > 100 {
			return 0, fmt.Errorf("invalid --size %q: percent must be in (0, 100]", size)
		}
		return int64(float64(sourceBytes) * v / 100), nil
	}

	u := strings.ToUpper(strings.TrimSpace(unit))
	switch u {
	case "KB", "MB", "GB":
	default:
		return 0, fmt.Errorf("invalid --unit: %q (valid: KB|MB|GB)", unit)
	}
	n, err := format.ParseSize(size, u)
	if err != nil {
		return 0, fmt.Errorf("invalid --size: %w", err)
	}
	return n, nil
}

// ParseCPU parses "auto" or a percentage between 10 and 100 ("50" or "50%").
func ParseCPU(s string) (model.CPUMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "auto" {
		return model.CPUAuto, nil
	}
	v, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
	if err != nil || v < 10 || v > 100 {
		return model.CPUMode{}, fmt.Errorf("invalid --cpu: %q (valid: auto or 10..100)", s)
	}
	return model.CPUMode{Percent: v}, nil
}

// ResolveOutput returns the destination for source: "<name>_compressed.<container>"
// next to it when output is empty, otherwise output with the container
// extension enforced.
func ResolveOutput(source, output, container string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return media.DefaultOutputPath(source, container)
	}
	return media.EnsureExt(output, container)
}
