package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wricardo/gridpath/nav/pathfinding"
)

var (
	// ErrInvalidMap wraps every map validation failure
	ErrInvalidMap = errors.New("invalid map")
	// ErrMapFileNotFound is returned when a named map file does not exist
	ErrMapFileNotFound = errors.New("map file not found")
)

// MapExtensions lists the file extensions recognized as map files, in lookup order
var MapExtensions = []string{".json", ".yaml", ".yml"}

// ValidateMapConfig checks a map configuration for structural correctness
func ValidateMapConfig(config *MapConfig) error {
	if config == nil {
		return fmt.Errorf("%w: config is nil", ErrInvalidMap)
	}
	if config.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidMap)
	}
	if config.Description == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidMap)
	}

	if config.Width < MinMapSize || config.Width > MaxMapSize {
		return fmt.Errorf("%w: width must be between %d and %d, got %d", ErrInvalidMap, MinMapSize, MaxMapSize, config.Width)
	}
	if config.Height < MinMapSize || config.Height > MaxMapSize {
		return fmt.Errorf("%w: height must be between %d and %d, got %d", ErrInvalidMap, MinMapSize, MaxMapSize, config.Height)
	}
	if config.CellSize < 0 || math.IsNaN(config.CellSize) || math.IsInf(config.CellSize, 0) {
		return fmt.Errorf("%w: cell_size must be a non-negative number, got %v", ErrInvalidMap, config.CellSize)
	}
	if config.MaxExpansions < 0 {
		return fmt.Errorf("%w: max_expansions must not be negative, got %d", ErrInvalidMap, config.MaxExpansions)
	}
	if _, err := pathfinding.ParseCornerPolicy(config.CornerPolicy); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMap, err)
	}

	if len(config.Layout) != config.Height {
		return fmt.Errorf("%w: layout must have %d rows to match height, got %d", ErrInvalidMap, config.Height, len(config.Layout))
	}

	starts, goals := 0, 0
	for y, row := range config.Layout {
		if len(row) != config.Width {
			return fmt.Errorf("%w: row %d must have %d characters to match width, got %d", ErrInvalidMap, y, config.Width, len(row))
		}
		for x, char := range row {
			switch char {
			case CellOpen, CellBlocked:
			case CellStart:
				starts++
			case CellGoal:
				goals++
			default:
				return fmt.Errorf("%w: invalid character '%c' at x=%d, y=%d", ErrInvalidMap, char, x, y)
			}
		}
	}
	if starts > 1 {
		return fmt.Errorf("%w: layout may contain at most one start (S), got %d", ErrInvalidMap, starts)
	}
	if goals > 1 {
		return fmt.Errorf("%w: layout may contain at most one goal (G), got %d", ErrInvalidMap, goals)
	}

	return nil
}

// ParseMapConfig decodes a map from JSON or YAML, chosen by the file extension in name
func ParseMapConfig(name string, data []byte) (*MapConfig, error) {
	var config MapConfig
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse map '%s': %w", name, err)
		}
	default:
		if err := json.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse map '%s': %w", name, err)
		}
	}
	return &config, nil
}

// LoadMapConfig loads and validates a map file
func LoadMapConfig(filename string) (*MapConfig, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	config, err := ParseMapConfig(filename, data)
	if err != nil {
		return nil, err
	}
	if err := ValidateMapConfig(config); err != nil {
		return nil, fmt.Errorf("map '%s': %w", filepath.Base(filename), err)
	}
	return config, nil
}

// FindMapFile resolves a map name to a file in dir, trying each known extension
func FindMapFile(dir, name string) (string, error) {
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		for _, known := range MapExtensions {
			if ext == known {
				path := filepath.Join(dir, name)
				if _, err := os.Stat(path); err != nil {
					return "", fmt.Errorf("%w: %s", ErrMapFileNotFound, name)
				}
				return path, nil
			}
		}
	}

	for _, ext := range MapExtensions {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrMapFileNotFound, name)
}

// LoadMapByName loads a map from dir by name, with or without extension
func LoadMapByName(dir, name string) (*MapConfig, error) {
	path, err := FindMapFile(dir, name)
	if err != nil {
		return nil, err
	}
	return LoadMapConfig(path)
}

// MapName strips a known map extension from a file name
func MapName(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	for _, known := range MapExtensions {
		if strings.EqualFold(ext, known) {
			return strings.TrimSuffix(base, ext)
		}
	}
	return base
}

// IsMapFile reports whether filename has a map extension
func IsMapFile(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, known := range MapExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

// DefaultMapConfig returns the built-in map used when no map files are available
func DefaultMapConfig() *MapConfig {
	return &MapConfig{
		Name:        "Open Field",
		Description: "A 10x10 field with a single wall between start and goal",
		Width:       10,
		Height:      10,
		CellSize:    pathfinding.DefaultCellSize,
		Layout: []string{
			"..........",
			".S........",
			"..........",
			"....#.....",
			"....#.....",
			"....#.....",
			"....#.....",
			"....#...G.",
			"..........",
			"..........",
		},
	}
}

// Markers returns the start and goal positions declared in the layout
func (c *MapConfig) Markers() (start, goal *Point) {
	for y, row := range c.Layout {
		for x, char := range row {
			switch char {
			case CellStart:
				start = &Point{X: x, Y: y}
			case CellGoal:
				goal = &Point{X: x, Y: y}
			}
		}
	}
	return start, goal
}

// Blocked reports whether the layout marks (x, y) as blocked
func (c *MapConfig) Blocked(x, y int) bool {
	if y < 0 || y >= len(c.Layout) || x < 0 || x >= len(c.Layout[y]) {
		return false
	}
	return c.Layout[y][x] == CellBlocked
}
