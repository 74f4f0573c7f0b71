// Package routefile reads and writes the persisted formats: routes, story
// batches and story results.
package routefile

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"

	"github.com/k-sakQA/Othello-for-Android/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultRoutePath returns routes/route-<timestamp>.json under dir.
func DefaultRoutePath(dir string, now time.Time) string {
	return filepath.Join(dir, "route-"+stamp(now)+".json")
}

// DefaultResultsPath returns story-results-<timestamp>.json under dir.
func DefaultResultsPath(dir string, now time.Time) string {
	return filepath.Join(dir, "story-results-"+stamp(now)+".json")
}

// stamp is an RFC 3339 UTC timestamp with ':' and '.' replaced so it is safe in file names.
func stamp(now time.Time) string {
	s := now.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return strings.NewReplacer(":", "-", ".", "-").Replace(s)
}

// SaveRoute writes route as indented JSON, creating parent directories.
func SaveRoute(path string, route *schemas.Route) error {
	return writeJSON(path, route)
}

// LoadRoute reads and validates a route file.
func LoadRoute(path string) (*schemas.Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read route file: %w", err)
	}
	var route schemas.Route
	if err := json.Unmarshal(data, &route); err != nil {
		return nil, fmt.Errorf("failed to parse route file %s: %w", path, err)
	}
	if err := route.Validate(); err != nil {
		return nil, err
	}
	return &route, nil
}

// LoadStories reads a story batch. Files ending in .yaml or .yml are parsed
// as YAML; anything else must be a JSON array.
func LoadStories(path string) ([]schemas.UserStory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stories file: %w", err)
	}

	var stories []schemas.UserStory
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &stories)
	default:
		if t := bytes.TrimSpace(data); len(t) > 0 && t[0] != '[' {
			return nil, fmt.Errorf("stories file %s must contain a JSON array", path)
		}
		err = json.Unmarshal(data, &stories)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse stories file %s: %w", path, err)
	}

	seen := make(map[string]struct{}, len(stories))
	for i, s := range stories {
		if s.ID == "" {
			return nil, fmt.Errorf("story %d has no id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("duplicate story id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return stories, nil
}

// SaveResults writes story results as an indented JSON array.
func SaveResults(path string, results []schemas.StoryResult) error {
	if results == nil {
		results = []schemas.StoryResult{}
	}
	return writeJSON(path, results)
}

// LoadResults reads a story results file.
func LoadResults(path string) ([]schemas.StoryResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	var results []schemas.StoryResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse results file %s: %w", path, err)
	}
	return results, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
