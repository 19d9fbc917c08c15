package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Container returns the lower-case extension of path without the dot,
// which is how the source container is identified.
func Container(path string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
}

// DefaultOutputPath returns "<name>_compressed.<container>" next to the source.
func DefaultOutputPath(source, container string) string {
	dir := filepath.Dir(source)
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(dir, base+"_compressed."+container)
}

// EnsureExt appends ".<container>" when path does not already end with it.
func EnsureExt(path, container string) string {
	if Container(path) == strings.ToLower(container) {
		return path
	}
	return path + "." + container
}

// CandidatePath returns the hidden sibling file an attempt writes to before
// the chosen candidate is moved onto dest.
func CandidatePath(dest string, attempt int) string {
	dir := filepath.Dir(dest)
	ext := filepath.Ext(dest)
	base := strings.TrimSuffix(filepath.Base(dest), ext)
	return filepath.Join(dir, fmt.Sprintf(".%s.try%d%s", base, attempt, ext))
}

// NeedsRemux reports whether the source container differs from the target.
// MP4 family extensions are treated as the same container.
func NeedsRemux(sourceContainer, target string) bool {
	return family(sourceContainer) != family(target)
}

func family(c string) string {
	switch strings.ToLower(c) {
	case "mp4", "m4v":
		return "mp4"
	case "mkv", "matroska":
		return "matroska"
	default:
		return strings.ToLower(c)
	}
}
