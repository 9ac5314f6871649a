package source

import (
	"os"
	"path/filepath"

	"github.com/ivlev/depthflow/internal/system"
)

// FindLatestImage returns the most recently modified image in path (or in the
// directory containing path when it is a file).
func FindLatestImage(path string) (string, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if !fi.IsDir() {
		path = filepath.Dir(path)
	}
	return system.FindLatest(path, imageExtensions)
}
