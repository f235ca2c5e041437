package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danielpatrickdp/speaking-coach/internal/lesson"
	"github.com/danielpatrickdp/speaking-coach/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "fixture JSON file, or a directory of them")
	modulesDir := flag.String("modules", "modules", "module directory for fixtures that name a module")
	seed := flag.Uint64("seed", 1, "seed for vocabulary draws")
	verbose := flag.Bool("v", false, "print every turn")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [--modules dir] [--seed n] [-v]")
		fmt.Fprintln(os.Stderr, "       replay --fixture path/to/fixtures/")
		os.Exit(2)
	}

	paths, err := fixturePaths(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fixtures: %v\n", err)
		os.Exit(2)
	}

	loader := lesson.NewLoader(*modulesDir, rand.New(rand.NewPCG(*seed, 0)))
	exitCode := 0
	for _, p := range paths {
		code := runFixture(loader, p, *verbose)
		if code > exitCode {
			exitCode = code
		}
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func fixturePaths(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}
	matches, err := filepath.Glob(filepath.Join(path, "*.json"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no fixtures in %s", path)
	}
	sort.Strings(matches)
	return matches, nil
}

// runFixture replays one fixture and returns its exit code.
func runFixture(loader *lesson.Loader, path string, verbose bool) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	run, err := replay.ReplayFixture(context.Background(), f, loader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
		return 2
	}

	name := filepath.Base(path)
	if f.Description != "" {
		name = fmt.Sprintf("%s (%s)", name, f.Description)
	}
	fmt.Printf("== %s\n", name)

	if verbose {
		printTurns(run)
	}

	s := replay.Summarize(run)
	assessment := s.Assessment
	if assessment == "" {
		assessment = "-"
	}
	fmt.Printf("Summary: %d turns, %d accepted, %d rejected, %d errors, state=%s assessment=%s\n",
		s.TotalTurns, s.Accepted, s.Rejected, s.Errors, s.State, assessment)
	if run.Unused > 0 {
		fmt.Printf("Note: %d oracle replies unused\n", run.Unused)
	}

	if len(run.Mismatch) > 0 {
		for _, m := range run.Mismatch {
			fmt.Printf("  DIFF %s\n", m)
		}
		fmt.Printf("FAIL %s\n\n", filepath.Base(path))
		return 1
	}
	fmt.Printf("OK\n\n")
	return 0
}

func printTurns(run *replay.Run) {
	fmt.Printf("%-5s| %-14s| %-9s| %-8s| %-14s| %s\n", "Turn", "Field", "Accepted", "Verdict", "Next", "Error")
	fmt.Printf("%-5s+%-15s+%-10s+%-9s+%-15s+%s\n",
		"-----", "---------------", "----------", "---------", "---------------", "------")
	for _, t := range run.Turns {
		errText := ""
		if t.Err != nil {
			errText = t.Err.Error()
		}
		fmt.Printf("%-5d| %-14s| %-9t| %-8s| %-14s| %s\n",
			t.Index, t.Field, t.Ack.Accepted, orDash(string(t.Ack.Verdict)), orDash(t.Ack.NextField), errText)
	}
	fmt.Println(strings.Repeat("-", 60))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// #endregion fixture-mode
