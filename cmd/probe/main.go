// Command probe drives a running gridpath server with random path queries and
// wall edits, checking every answer against a local copy of the map. It exits
// non-zero when the server and the local search disagree.
package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand"
	"os"
	"time"

	"github.com/inconshreveable/log15/v3"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/gridpath/logging"
	"github.com/wricardo/gridpath/nav/engine"
)

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "probe: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:  "probe",
		Usage: "cross-check a gridpath server's path queries",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "server URL", Sources: cli.EnvVars("GRIDPATH_URL")},
			&cli.StringFlag{Name: "map", Usage: "map ID for a new session (server default when empty)"},
			&cli.StringFlag{Name: "continue", Usage: "resume an existing session by ID"},
			&cli.StringFlag{Name: "session-file", Value: ".session", Usage: "file remembering the session between runs (empty disables)"},
			&cli.IntFlag{Name: "rounds", Value: 3, Usage: "rounds of queries; walls are edited between rounds"},
			&cli.IntFlag{Name: "queries", Value: 50, Usage: "queries per round"},
			&cli.IntFlag{Name: "toggles", Value: 2, Usage: "cells toggled between rounds"},
			&cli.IntFlag{Name: "seed", Usage: "random seed (time based when 0)"},
			&cli.DurationFlag{Name: "delay", Usage: "pause between queries"},
			&cli.BoolFlag{Name: "v", Usage: "verbose output"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			seed := int64(cmd.Int("seed"))
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			p := &probe{
				client:      NewClient(cmd.String("url")),
				out:         cmd.Root().Writer,
				log:         logging.New(cmd.Root().ErrWriter, cmd.Bool("v"), "cmd", "probe"),
				rng:         rand.New(rand.NewSource(seed)),
				mapID:       cmd.String("map"),
				resumeID:    cmd.String("continue"),
				sessionFile: cmd.String("session-file"),
				rounds:      int(cmd.Int("rounds")),
				queries:     int(cmd.Int("queries")),
				toggles:     int(cmd.Int("toggles")),
				delay:       cmd.Duration("delay"),
			}
			p.log.Debug("probe starting", "url", cmd.String("url"), "seed", seed)
			return p.run(ctx)
		},
	}
}

type probe struct {
	client *Client
	out    io.Writer
	log    log15.Logger
	rng    *rand.Rand

	mapID       string
	resumeID    string
	sessionFile string
	rounds      int
	queries     int
	toggles     int
	delay       time.Duration
}

// stats tallies query outcomes over a run
type stats struct {
	queries    int
	found      int
	noPath     int
	limit      int
	mismatches []string
	elapsed    time.Duration
}

func (p *probe) run(ctx context.Context) error {
	if err := p.openSession(ctx); err != nil {
		return err
	}

	state, err := p.client.Reset(ctx)
	if err != nil {
		return err
	}
	checker, err := NewChecker(state, p.rng)
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "Session %s on %s (%dx%d, %s corners), %d open cells\n",
		p.client.SessionID(), state.MapName, state.Width, state.Height, state.CornerPolicy, checker.OpenCells())

	var total stats
	for round := 1; round <= p.rounds; round++ {
		if round > 1 && p.toggles > 0 {
			if err := p.editWalls(ctx, checker); err != nil {
				return err
			}
		}

		var st stats
		for i := 0; i < p.queries; i++ {
			from, to, ok := checker.RandomPair()
			if !ok {
				p.log.Warn("no open cells left", "round", round)
				break
			}

			began := time.Now()
			result, err := p.client.FindPath(ctx, from, to)
			if err != nil {
				return err
			}
			st.elapsed += time.Since(began)
			st.record(result)
			if msg := checker.Verify(result); msg != "" {
				st.mismatches = append(st.mismatches, msg)
				p.log.Error("mismatch", "round", round, "detail", msg)
			}

			if p.delay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(p.delay):
				}
			}
		}

		fmt.Fprintf(p.out, "Round %d: %s\n", round, st.summary())
		total.add(st)
	}

	fmt.Fprintf(p.out, "Total: %s\n", total.summary())
	if n := len(total.mismatches); n > 0 {
		for _, msg := range total.mismatches {
			fmt.Fprintf(p.out, "  %s\n", msg)
		}
		return fmt.Errorf("%d queries disagreed with the local map", n)
	}
	return nil
}

// openSession resumes the requested or remembered session, creating a new one when that fails
func (p *probe) openSession(ctx context.Context) error {
	resumeID := p.resumeID
	if resumeID == "" && p.sessionFile != "" {
		if data, err := os.ReadFile(p.sessionFile); err == nil {
			resumeID = string(bytes.TrimSpace(data))
		}
	}

	if resumeID != "" {
		_, err := p.client.Resume(ctx, resumeID)
		if err == nil {
			p.log.Info("resumed session", "session", p.client.SessionID())
			return nil
		}
		p.log.Warn("failed to resume session, creating a new one", "session", resumeID, "err", err)
	}

	if _, err := p.client.CreateSession(ctx, p.mapID); err != nil {
		return err
	}
	p.log.Info("session created", "session", p.client.SessionID())

	if p.sessionFile != "" {
		if err := os.WriteFile(p.sessionFile, []byte(p.client.SessionID()), 0644); err != nil {
			p.log.Warn("failed to save session ID", "file", p.sessionFile, "err", err)
		}
	}
	return nil
}

// editWalls toggles random cells, then resyncs the local map from the server's answer
func (p *probe) editWalls(ctx context.Context, checker *Checker) error {
	var state *engine.MapState
	for i := 0; i < p.toggles; i++ {
		cell := checker.RandomCell()
		update, err := p.client.Toggle(ctx, cell)
		if err != nil {
			return err
		}
		p.log.Debug("toggled cell", "x", cell.X, "y", cell.Y, "walkable", update.Walkable)
		state = update.State
	}
	if state == nil {
		var err error
		if state, err = p.client.GetState(ctx); err != nil {
			return err
		}
	}
	return checker.Sync(state)
}

func (s *stats) record(result *engine.QueryResult) {
	s.queries++
	switch result.Outcome {
	case engine.OutcomeFound:
		s.found++
	case engine.OutcomeLimit:
		s.limit++
	default:
		s.noPath++
	}
}

func (s *stats) add(o stats) {
	s.queries += o.queries
	s.found += o.found
	s.noPath += o.noPath
	s.limit += o.limit
	s.mismatches = append(s.mismatches, o.mismatches...)
	s.elapsed += o.elapsed
}

func (s stats) summary() string {
	var avg time.Duration
	if s.queries > 0 {
		avg = s.elapsed / time.Duration(s.queries)
	}
	return fmt.Sprintf("%d queries, %d found, %d no path, %d limited, %d mismatches, avg %s",
		s.queries, s.found, s.noPath, s.limit, len(s.mismatches), avg.Round(time.Microsecond))
}
