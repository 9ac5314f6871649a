package system

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"
)

// openFileTarget covers the encoder pipes, cache lock files and PDF handles of
// a multi-page render.
const openFileTarget = 2048

// InitResourceLimits raises the soft open-file limit toward openFileTarget,
// capped by the hard limit.
func InitResourceLimits() {
	var lim syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		log.Printf("[!] Could not read the open file limit: %v", err)
		return
	}
	if lim.Cur >= openFileTarget {
		return
	}
	lim.Cur = min(uint64(openFileTarget), uint64(lim.Max))
	if err := syscall.Setrlimit(syscall.RLIMIT_NOFILE, &lim); err != nil {
		log.Printf("[!] Could not raise the open file limit: %v", err)
		return
	}
	fmt.Printf("[*] Open file limit raised to %d\n", lim.Cur)
}

// AudioExtensions are the files FindLatestAudio considers.
var AudioExtensions = []string{".mp3", ".wav", ".m4a", ".ogg", ".opus", ".aac", ".flac"}

// FindLatestAudio returns the most recently modified audio file in dir.
func FindLatestAudio(dir string) (string, error) {
	return FindLatest(dir, AudioExtensions)
}

// FindLatest returns the most recently modified regular file in dir whose
// extension (case-insensitive) is one of exts.
func FindLatest(dir string, exts []string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	var best string
	var bestMod time.Time
	for _, e := range entries {
		if !e.Type().IsRegular() || !slices.Contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best, bestMod = filepath.Join(dir, e.Name()), info.ModTime()
		}
	}
	if best == "" {
		return "", fmt.Errorf("no %s files in %s", strings.Join(exts, "/"), dir)
	}
	return best, nil
}

// GetAudioDuration asks ffprobe for the container duration in seconds.
func GetAudioDuration(ctx context.Context, path string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe", "-v", "error", "-show_entries", "format=duration", "-of", "default=noprint_wrappers=1:nokey=1", path)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return ParseDuration(string(out))
}

// ParseDuration reads ffprobe's bare duration output.
func ParseDuration(out string) (float64, error) {
	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(out), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", strings.TrimSpace(out), err)
	}
	return duration, nil
}
