package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/inconshreveable/log15/v3"
	"gopkg.in/yaml.v3"

	"github.com/wricardo/gridpath/logging"
	"github.com/wricardo/gridpath/nav/engine"
	"github.com/wricardo/gridpath/nav/service"
)

// DefaultMapID is tried first when choosing the default map. It resolves to the
// built-in map when the maps directory has no file by that name.
const DefaultMapID = "open_field"

// ErrInvalidMapName is returned for names that are empty or contain path elements
var ErrInvalidMapName = errors.New("invalid map name")

// Manager handles map file loading and caching
type Manager struct {
	mapsDir    string
	defaultID  string
	defaultMap *engine.MapConfig
	builtin    *engine.MapConfig
	maps       map[string]*engine.MapConfig
	log        log15.Logger
	mu         sync.RWMutex
}

// NewManager creates a new map manager
func NewManager(mapsDir string, logger log15.Logger) (*Manager, error) {
	if _, err := os.Stat(mapsDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("maps directory does not exist: %s", mapsDir)
	}

	m := &Manager{
		mapsDir: mapsDir,
		builtin: engine.DefaultMapConfig(),
		maps:    make(map[string]*engine.MapConfig),
		log:     logging.OrDiscard(logger).New("component", "maps"),
	}
	m.loadDefaultMap()
	return m, nil
}

// checkName rejects names that would escape the maps directory
func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidMapName, name)
	}
	return nil
}

// LoadMap loads a map by ID, with or without a file extension
func (m *Manager) LoadMap(name string) (*engine.MapConfig, error) {
	config, err := m.loadFile(name)
	if errors.Is(err, service.ErrMapNotFound) && engine.MapName(name) == DefaultMapID {
		return m.builtin, nil
	}
	return config, err
}

// loadFile loads a map from the maps directory through the cache
func (m *Manager) loadFile(name string) (*engine.MapConfig, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	id := engine.MapName(name)

	m.mu.RLock()
	if config, exists := m.maps[id]; exists {
		m.mu.RUnlock()
		return config, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if config, exists := m.maps[id]; exists {
		return config, nil
	}

	config, err := engine.LoadMapByName(m.mapsDir, name)
	if err != nil {
		if errors.Is(err, engine.ErrMapFileNotFound) {
			return nil, fmt.Errorf("%w: %s", service.ErrMapNotFound, name)
		}
		return nil, err
	}

	m.maps[id] = config
	return config, nil
}

// ListMaps returns information about all valid maps in the directory
func (m *Manager) ListMaps() ([]*service.MapInfo, error) {
	entries, err := os.ReadDir(m.mapsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read maps directory: %w", err)
	}

	var maps []*service.MapInfo
	seen := make(map[string]bool)

	for _, entry := range entries {
		if entry.IsDir() || !engine.IsMapFile(entry.Name()) {
			continue
		}
		id := engine.MapName(entry.Name())
		if seen[id] {
			continue
		}

		config, err := m.loadFile(id)
		if err != nil {
			m.log.Warn("skipping map", "file", entry.Name(), "err", err)
			continue
		}
		seen[id] = true

		maps = append(maps, &service.MapInfo{
			Filename:     entry.Name(),
			MapID:        id,
			Name:         config.Name,
			Description:  config.Description,
			Width:        config.Width,
			Height:       config.Height,
			CornerPolicy: config.CornerPolicy,
		})
	}

	return maps, nil
}

// GetDefault returns the default map and the ID LoadMap resolves it by
func (m *Manager) GetDefault() (string, *engine.MapConfig) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultID, m.defaultMap
}

// SetDefault sets the default map by ID
func (m *Manager) SetDefault(name string) error {
	config, err := m.LoadMap(name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultID = engine.MapName(name)
	m.defaultMap = config
	return nil
}

// RefreshCache drops cached maps and re-selects the default from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.maps = make(map[string]*engine.MapConfig)
	m.mu.Unlock()

	m.loadDefaultMap()
}

// loadDefaultMap picks open_field, then the first valid map, then the built-in map
func (m *Manager) loadDefaultMap() {
	id := DefaultMapID
	config, err := m.loadFile(id)
	if err != nil {
		maps, listErr := m.ListMaps()
		if listErr == nil && len(maps) > 0 {
			id = maps[0].MapID
			config, err = m.loadFile(id)
		}
		if err != nil {
			m.log.Info("no map files usable as default, using built-in map", "dir", m.mapsDir, "id", DefaultMapID)
			id, config = DefaultMapID, m.builtin
		}
	}

	m.mu.Lock()
	m.defaultID = id
	m.defaultMap = config
	m.mu.Unlock()
}

// SaveMap validates a map and writes it to disk. A .yaml or .yml name is
// written as YAML, anything else as indented JSON.
func (m *Manager) SaveMap(name string, config *engine.MapConfig) error {
	if err := checkName(name); err != nil {
		return err
	}
	if err := engine.ValidateMapConfig(config); err != nil {
		return err
	}

	filename := name
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(config)
	case ".json":
		data, err = json.MarshalIndent(config, "", "  ")
	default:
		filename = name + ".json"
		data, err = json.MarshalIndent(config, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal map: %w", err)
	}

	if err := os.WriteFile(filepath.Join(m.mapsDir, filename), data, 0644); err != nil {
		return fmt.Errorf("failed to write map file: %w", err)
	}

	m.mu.Lock()
	m.maps[engine.MapName(filename)] = config
	m.mu.Unlock()

	m.log.Info("map saved", "file", filename, "name", config.Name)
	return nil
}
