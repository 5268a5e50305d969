package config

import (
	"fmt"
)

// LessonConfig shapes how lessons are assembled from the phrase deck. The
// phrases themselves live in the synced deck mirror; this file only carries
// the parameters an operator tunes without touching code.
type LessonConfig struct {
	LessonSize       int               `yaml:"lesson_size"`
	RetryBudget      int               `yaml:"retry_budget"`
	LearnedThreshold float64           `yaml:"learned_threshold"`
	Directions       string            `yaml:"directions"`
	Metadata         map[string]string `yaml:"metadata,omitempty"`
}

const (
	DirectionsForward = "forward"
	DirectionsBoth    = "both"
)

func (lc *LessonConfig) Validate() error {
	if lc == nil {
		return fmt.Errorf("config is nil")
	}
	if lc.LessonSize <= 0 {
		return fmt.Errorf("config validation failed: lesson_size must be positive, got %d", lc.LessonSize)
	}
	if lc.LessonSize > 50 {
		return fmt.Errorf("config validation failed: lesson_size %d is unreasonably large (max 50)", lc.LessonSize)
	}
	if lc.RetryBudget < 0 {
		return fmt.Errorf("config validation failed: retry_budget must not be negative, got %d", lc.RetryBudget)
	}
	if lc.LearnedThreshold <= 0 {
		return fmt.Errorf("config validation failed: learned_threshold must be positive, got %v", lc.LearnedThreshold)
	}
	switch lc.Directions {
	case DirectionsForward, DirectionsBoth:
	case "":
		lc.Directions = DirectionsBoth
	default:
		return fmt.Errorf("config validation failed: unknown directions mode '%s'", lc.Directions)
	}
	return nil
}
