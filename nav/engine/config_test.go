package engine

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestConfig() *MapConfig {
	return &MapConfig{
		Name:        "Engine Test Map",
		Description: "Map for engine tests",
		Width:       5,
		Height:      4,
		Layout: []string{
			"S....",
			".###.",
			".#...",
			"...#G",
		},
	}
}

func TestValidateMapConfig_Valid(t *testing.T) {
	require.NoError(t, ValidateMapConfig(createTestConfig()))
	require.NoError(t, ValidateMapConfig(DefaultMapConfig()))
}

func TestValidateMapConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *MapConfig)
		wantMsg string
	}{
		{"missing name", func(c *MapConfig) { c.Name = "" }, "name is required"},
		{"missing description", func(c *MapConfig) { c.Description = "" }, "description is required"},
		{"zero width", func(c *MapConfig) { c.Width = 0 }, "width must be between"},
		{"too tall", func(c *MapConfig) { c.Height = MaxMapSize + 1 }, "height must be between"},
		{"negative cell size", func(c *MapConfig) { c.CellSize = -1 }, "cell_size"},
		{"negative expansions", func(c *MapConfig) { c.MaxExpansions = -3 }, "max_expansions"},
		{"bad corner policy", func(c *MapConfig) { c.CornerPolicy = "diagonal" }, "unknown corner policy"},
		{"row count", func(c *MapConfig) { c.Layout = c.Layout[:3] }, "layout must have 4 rows"},
		{"row width", func(c *MapConfig) { c.Layout[2] = "...." }, "row 2 must have 5 characters"},
		{"bad char", func(c *MapConfig) { c.Layout[1] = ".#X#." }, "invalid character 'X' at x=2, y=1"},
		{"two starts", func(c *MapConfig) { c.Layout[1] = "S###." }, "at most one start"},
		{"two goals", func(c *MapConfig) { c.Layout[0] = "S...G" }, "at most one goal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := createTestConfig()
			tt.mutate(c)
			err := ValidateMapConfig(c)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidMap)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	assert.ErrorIs(t, ValidateMapConfig(nil), ErrInvalidMap)
}

func TestMarkers(t *testing.T) {
	start, goal := createTestConfig().Markers()
	require.NotNil(t, start)
	require.NotNil(t, goal)
	assert.Equal(t, Point{X: 0, Y: 0}, *start)
	assert.Equal(t, Point{X: 4, Y: 3}, *goal)

	c := createTestConfig()
	c.Layout[0] = "....."
	start, _ = c.Markers()
	assert.Nil(t, start)
}

const yamlMap = `name: Corridor
description: Straight corridor
width: 4
height: 1
corner_policy: never
origin:
  x: 5
  y: -5
layout:
  - "S.#G"
`

func TestLoadMapConfig_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()

	jsonData := `{"name":"Tiny","description":"Tiny map","width":2,"height":2,"cell_size":4,"layout":["S.","#G"]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tiny.json"), []byte(jsonData), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corridor.yaml"), []byte(yamlMap), 0644))

	tiny, err := LoadMapByName(dir, "tiny")
	require.NoError(t, err)
	assert.Equal(t, "Tiny", tiny.Name)
	assert.Equal(t, 4.0, tiny.CellSize)
	assert.True(t, tiny.Blocked(0, 1))

	corridor, err := LoadMapByName(dir, "corridor.yaml")
	require.NoError(t, err)
	assert.Equal(t, "never", corridor.CornerPolicy)
	assert.Equal(t, 5.0, corridor.Origin.X)
	assert.Equal(t, -5.0, corridor.Origin.Y)
	assert.Equal(t, []string{"S.#G"}, corridor.Layout)

	_, err = LoadMapByName(dir, "missing")
	assert.ErrorIs(t, err, ErrMapFileNotFound)
}

func TestLoadMapConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))
	_, err := LoadMapConfig(filepath.Join(dir, "broken.json"))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to parse map"))

	invalid := `{"name":"x","description":"y","width":2,"height":1,"layout":["..."]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invalid.json"), []byte(invalid), 0644))
	_, err = LoadMapConfig(filepath.Join(dir, "invalid.json"))
	assert.ErrorIs(t, err, ErrInvalidMap)

	_, err = LoadMapConfig(filepath.Join(dir, "nope.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestMapNameHelpers(t *testing.T) {
	assert.Equal(t, "maze", MapName("maps/maze.yaml"))
	assert.Equal(t, "maze", MapName("maze.JSON"))
	assert.Equal(t, "notes.txt", MapName("notes.txt"))

	assert.True(t, IsMapFile("a.yml"))
	assert.True(t, IsMapFile("a.json"))
	assert.False(t, IsMapFile("a.txt"))
}
