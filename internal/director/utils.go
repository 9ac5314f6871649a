package director

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/ivlev/depthflow/internal/system"
)

// DefaultDir is where generated scenarios are stored.
const DefaultDir = "scenarios"

// GenerateScenarioPath creates a timestamped scenario filename in dir.
func GenerateScenarioPath(dir string) string {
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, "scenario_"+time.Now().Format("2006-01-02_15-04-05")+".yaml")
}

// FindLatestScenario finds the most recently modified scenario file in dir.
func FindLatestScenario(dir string) (string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	path, err := system.FindLatest(dir, []string{".yaml", ".yml"})
	if err != nil {
		return "", fmt.Errorf("find scenario: %w", err)
	}
	return path, nil
}
