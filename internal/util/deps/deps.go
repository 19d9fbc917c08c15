package deps

import (
	"fmt"
	"os"
	"os/exec"
)

// FindFFmpeg returns the path to ffmpeg, preferring customPath when set.
func FindFFmpeg(customPath string) (string, error) {
	return find("ffmpeg", customPath)
}

// FindFFprobe returns the path to ffprobe, preferring customPath when set.
func FindFFprobe(customPath string) (string, error) {
	return find("ffprobe", customPath)
}

func find(name, customPath string) (string, error) {
	if customPath != "" {
		if fi, err := os.Stat(customPath); err == nil && !fi.IsDir() {
			return customPath, nil
		}
		if p, err := exec.LookPath(customPath); err == nil {
			return p, nil
		}
		return "", fmt.Errorf("could not find %s at %q", name, customPath)
	}
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}
	return "", fmt.Errorf("could not find %s in PATH. Please install FFmpeg and make sure it is in your PATH", name)
}
