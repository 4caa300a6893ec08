// Command analyze prints quick, human-readable reports about map files. The
// maps subcommand summarizes dimensions, blocked ratio, reachability from the
// start and the S to G path cost; the path subcommand runs one query and draws
// the result.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/wricardo/gridpath/nav/engine"
	"github.com/wricardo/gridpath/nav/pathfinding"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "analyze: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	dirFlag := &cli.StringFlag{
		Name:    "dir",
		Value:   "maps",
		Usage:   "directory containing map files",
		Sources: cli.EnvVars("MAPS_DIR"),
	}

	return &cli.Command{
		Name:  "analyze",
		Usage: "inspect grid maps and path queries",
		Commands: []*cli.Command{
			{
				Name:  "maps",
				Usage: "summarize every map in a directory",
				Flags: []cli.Flag{dirFlag},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return analyzeDir(cmd.Root().Writer, cmd.String("dir"))
				},
			},
			{
				Name:  "path",
				Usage: "run one path query on a map",
				Flags: []cli.Flag{
					dirFlag,
					&cli.StringFlag{Name: "map", Usage: "map ID or file name", Required: true},
					&cli.StringFlag{Name: "from", Usage: "start cell as x,y (defaults to S)"},
					&cli.StringFlag{Name: "to", Usage: "goal cell as x,y (defaults to G)"},
					&cli.BoolFlag{Name: "trace", Usage: "draw every search step"},
					&cli.IntFlag{Name: "max-steps", Value: 50, Usage: "steps drawn with --trace"},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					q := pathQuery{
						dir:      cmd.String("dir"),
						mapName:  cmd.String("map"),
						trace:    cmd.Bool("trace"),
						maxSteps: int(cmd.Int("max-steps")),
					}
					var err error
					if q.from, err = parsePoint(cmd.String("from")); err != nil {
						return err
					}
					if q.to, err = parsePoint(cmd.String("to")); err != nil {
						return err
					}
					return runPath(cmd.Root().Writer, q)
				},
			},
		},
	}
}

// parsePoint reads "x,y". The empty string yields nil.
func parsePoint(s string) (*engine.Point, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid point %q, want x,y", s)
	}
	x, errX := strconv.Atoi(strings.TrimSpace(parts[0]))
	y, errY := strconv.Atoi(strings.TrimSpace(parts[1]))
	if errX != nil || errY != nil {
		return nil, fmt.Errorf("invalid point %q, want integers x,y", s)
	}
	return &engine.Point{X: x, Y: y}, nil
}

func analyzeDir(w io.Writer, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading map directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !engine.IsMapFile(entry.Name()) {
			continue
		}
		fmt.Fprintf(w, "\n=== Analyzing %s ===\n", entry.Name())
		config, err := engine.LoadMapByName(dir, entry.Name())
		if err != nil {
			fmt.Fprintf(w, "Error loading map: %v\n", err)
			continue
		}
		analyzeMap(w, config)
	}
	return nil
}

func analyzeMap(w io.Writer, config *engine.MapConfig) {
	eng, err := engine.NewEngine(config)
	if err != nil {
		fmt.Fprintf(w, "Error building map: %v\n", err)
		return
	}
	pf := eng.Pathfinder()

	fmt.Fprintf(w, "Name: %s\n", config.Name)
	fmt.Fprintf(w, "Grid Size: %d x %d\n", config.Width, config.Height)
	fmt.Fprintf(w, "Corner Policy: %s\n", pf.CornerPolicy())
	fmt.Fprintf(w, "Blocked: %d (%.1f%%)\n", engine.CountBlocked(pf), engine.BlockedRatio(pf)*100)

	start, goal := config.Markers()
	if start == nil {
		fmt.Fprintf(w, "No start marker, reachability skipped\n")
		return
	}

	reach := engine.Reachable(pf, *start)
	open := config.Width*config.Height - engine.CountBlocked(pf)
	fmt.Fprintf(w, "Reachable from S (%d, %d): %d of %d open cells\n", start.X, start.Y, reach.Size(), open)

	if isolated := engine.Isolated(pf, *start); len(isolated) > 0 {
		fmt.Fprintf(w, "⚠️  WARNING: %d open cells are unreachable from the start\n", len(isolated))
		for i, p := range isolated {
			if i == 5 {
				fmt.Fprintf(w, "   ... and %d more\n", len(isolated)-5)
				break
			}
			fmt.Fprintf(w, "   Unreachable: (%d, %d)\n", p.X, p.Y)
		}
	}

	if goal == nil {
		return
	}
	result, err := eng.FindPath(nil, nil, engine.QueryOptions{})
	if err != nil {
		fmt.Fprintf(w, "Error searching: %v\n", err)
		return
	}
	if result.Found {
		fmt.Fprintf(w, "✅ S -> G cost %d, %d steps, %d nodes expanded\n", result.Cost, len(result.Path)-1, result.Expanded)
	} else {
		fmt.Fprintf(w, "⚠️  CRITICAL: G is unreachable (%s)\n", result.Outcome)
	}
}

type pathQuery struct {
	dir      string
	mapName  string
	from, to *engine.Point
	trace    bool
	maxSteps int
}

func runPath(w io.Writer, q pathQuery) error {
	config, err := engine.LoadMapByName(q.dir, q.mapName)
	if err != nil {
		return err
	}
	eng, err := engine.NewEngine(config)
	if err != nil {
		return err
	}

	result, err := eng.FindPath(q.from, q.to, engine.QueryOptions{Trace: q.trace})
	if err != nil {
		return err
	}

	if q.trace {
		for i, snap := range result.Snapshots {
			if i == q.maxSteps {
				fmt.Fprintf(w, "... %d more steps\n\n", len(result.Snapshots)-i)
				break
			}
			fmt.Fprintf(w, "step %d", snap.Step)
			if snap.Current != nil {
				fmt.Fprintf(w, " at (%d, %d)", snap.Current.X, snap.Current.Y)
			}
			fmt.Fprintln(w)
			for _, row := range renderSnapshot(snap) {
				fmt.Fprintln(w, row)
			}
			fmt.Fprintln(w)
		}
	}

	fmt.Fprintf(w, "Query (%d, %d) -> (%d, %d): %s\n", result.From.X, result.From.Y, result.To.X, result.To.Y, result.Outcome)
	fmt.Fprintf(w, "Expanded: %d\n", result.Expanded)
	if q.trace {
		fmt.Fprintf(w, "Search steps: %d\n", len(result.Snapshots))
	}
	if !result.Found {
		return nil
	}

	fmt.Fprintf(w, "Cost: %d\nSteps: %d\n", result.Cost, len(result.Path)-1)
	for _, row := range result.Overlay {
		fmt.Fprintln(w, row)
	}
	return nil
}

// renderSnapshot draws one search step: # blocked, o open, x closed, @ current
func renderSnapshot(snap pathfinding.Snapshot) []string {
	rows := make([]string, snap.Height)
	var b strings.Builder
	for y := 0; y < snap.Height; y++ {
		b.Reset()
		for x := 0; x < snap.Width; x++ {
			c, _ := snap.Cell(x, y)
			switch {
			case c.Current:
				b.WriteByte('@')
			case !c.Walkable:
				b.WriteByte(engine.CellBlocked)
			case c.Closed:
				b.WriteByte('x')
			case c.Open:
				b.WriteByte('o')
			default:
				b.WriteByte(engine.CellOpen)
			}
		}
		rows[y] = b.String()
	}
	return rows
}
