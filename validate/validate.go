// Command validate checks map files in a directory (../maps by default). It checks:
//   - JSON or YAML structure and required fields
//   - Dimensions matching the layout and allowed characters (., #, S, G)
//   - The corner policy and expansion limit
//   - Connectivity: G is reachable from S with the map's own corner policy,
//     using the same A* search the server runs
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/gridpath/nav/engine"
)

// ValidationResult captures the outcome of validating a single file.
// Errors lists what made the file invalid; Info holds the report for valid files.
type ValidationResult struct {
	File   string
	Valid  bool
	Errors []string
	Info   []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

// validateMap loads and validates a single map file
func validateMap(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	config, err := engine.ParseMapConfig(filePath, data)
	if err != nil {
		result.fail("Invalid syntax: %v", err)
		return result
	}

	if err := engine.ValidateMapConfig(config); err != nil {
		result.fail("%s", strings.TrimPrefix(err.Error(), engine.ErrInvalidMap.Error()+": "))
		return result
	}

	validateConnectivity(config, &result)

	if result.Valid {
		policy := config.CornerPolicy
		if policy == "" {
			policy = "allow"
		}
		result.info("✓ Name: %s", config.Name)
		result.info("✓ Grid: %dx%d", config.Width, config.Height)
		result.info("✓ Corner policy: %s", policy)
	}
	return result
}

// validateConnectivity runs the S to G query the server would run by default
// and reports blocked-cell statistics
func validateConnectivity(config *engine.MapConfig, result *ValidationResult) {
	eng, err := engine.NewEngine(config)
	if err != nil {
		result.fail("Failed to build map: %v", err)
		return
	}
	pf := eng.Pathfinder()

	result.info("✓ Blocked: %d cells (%.0f%%)", engine.CountBlocked(pf), engine.BlockedRatio(pf)*100)

	start, goal := config.Markers()
	if start == nil || goal == nil {
		result.info("- No S/G pair, connectivity not checked")
		return
	}

	query, err := eng.FindPath(nil, nil, engine.QueryOptions{})
	if err != nil {
		if errors.Is(err, engine.ErrOutOfBounds) || errors.Is(err, engine.ErrNoEndpoint) {
			result.fail("Connectivity check failed: %v", err)
			return
		}
		result.fail("Search failed: %v", err)
		return
	}

	switch query.Outcome {
	case engine.OutcomeFound:
		result.info("✓ Connectivity: G reachable from S, cost %d over %d steps (%d nodes expanded)",
			query.Cost, len(query.Path)-1, query.Expanded)
	case engine.OutcomeLimit:
		result.fail("Connectivity failure: expansion limit %d reached before G at (%d,%d)",
			config.MaxExpansions, goal.X, goal.Y)
	default:
		result.fail("Connectivity failure: G at (%d,%d) unreachable from S at (%d,%d)",
			goal.X, goal.Y, start.X, start.Y)
	}

	if isolated := engine.Isolated(pf, *start); len(isolated) > 0 {
		result.info("- %d open cells unreachable from S", len(isolated))
	}
}

// mapFiles lists every map file in dir
func mapFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && engine.IsMapFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files, nil
}

// main validates each map file, printing a concise report and exiting with
// non-zero status if any are invalid.
func main() {
	dir := flag.String("dir", "../maps", "Directory containing map files")
	flag.Parse()

	files, err := mapFiles(*dir)
	if err != nil {
		fmt.Printf("Error finding map files: %v\n", err)
		os.Exit(1)
	}

	allValid := true
	for _, file := range files {
		result := validateMap(file)

		fmt.Printf("\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Println("✅ VALID")
			for _, info := range result.Info {
				fmt.Println("  " + info)
			}
		} else {
			fmt.Println("❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Println("  ❌ " + err)
			}
		}
	}

	fmt.Printf("\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Println("✅ All maps are valid!")
	} else {
		fmt.Println("❌ Some maps have errors")
		os.Exit(1)
	}
}
