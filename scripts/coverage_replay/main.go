// Command coverage_replay runs a captured coverage snapshot through the engine
// several times and fails when any two plans differ.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-coverage-api/internal/coverage"
)

type snapshot struct {
	Date        string                        `json:"date"`
	DayType     string                        `json:"dayType"`
	Absences    []coverage.Absence            `json:"absences"`
	Schedule    []coverage.ScheduleEntry      `json:"schedule"`
	Periods     []coverage.Period             `json:"periods"`
	Substitutes []coverage.ExternalSubstitute `json:"substitutes"`
	Staff       []coverage.InternalStaff      `json:"staff"`
}

type replayResult struct {
	Runs      int
	Identical bool
	Plan      *coverage.Plan
	FirstDiff int
}

func main() {
	var (
		inputPath string
		runs      int
		workers   int
		emergency bool
		printPlan bool
	)

	flag.StringVar(&inputPath, "input", "scripts/coverage_replay/sample.json", "Path to a JSON coverage snapshot")
	flag.IntVar(&runs, "runs", 5, "Number of replays to compare")
	flag.IntVar(&workers, "workers", 4, "Engine ranking workers")
	flag.BoolVar(&emergency, "emergency", false, "Allow emergency-only and specialty-only candidates in the override pass")
	flag.BoolVar(&printPlan, "print", false, "Print the resulting plan as JSON")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck

	data, err := os.ReadFile(inputPath)
	if err != nil {
		logger.Fatal("read snapshot", zap.String("path", inputPath), zap.Error(err))
	}
	input, err := decodeSnapshot(data)
	if err != nil {
		logger.Fatal("decode snapshot", zap.Error(err))
	}

	opts := coverage.Options{Logger: logger.Named("engine"), Workers: workers}
	if emergency {
		opts.OverridePolicy = coverage.EmergencyFlagPolicy
	}

	result, err := replay(context.Background(), opts, input, runs)
	if err != nil {
		logger.Fatal("replay failed", zap.Error(err))
	}

	m := result.Plan.Metrics
	fmt.Printf("Coverage Replay Report\n======================\n")
	fmt.Printf("Runs: %d | Deterministic: %t\n", result.Runs, result.Identical)
	fmt.Printf("Needed: %d | Covered: %d | Rate: %.2f | Pool: %d | Evaluated: %d\n",
		m.TotalPeriodsNeeded, m.TotalPeriodsCovered, m.CoverageRate, m.PoolSize, m.TotalCandidatesEvaluated)

	if printPlan {
		out, _ := json.MarshalIndent(result.Plan, "", "  ")
		fmt.Println(string(out))
	}
	if !result.Identical {
		fmt.Printf("Plan from run %d differs from run 1\n", result.FirstDiff)
		os.Exit(1)
	}
}

func decodeSnapshot(data []byte) (coverage.RunInput, error) {
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return coverage.RunInput{}, err
	}
	date, err := time.Parse("2006-01-02", snap.Date)
	if err != nil {
		return coverage.RunInput{}, fmt.Errorf("invalid date %q: %w", snap.Date, err)
	}
	dayType, ok := coverage.ParseDayType(snap.DayType)
	if !ok {
		return coverage.RunInput{}, fmt.Errorf("invalid day type %q", snap.DayType)
	}
	for i := range snap.Absences {
		if snap.Absences[i].Date.IsZero() {
			snap.Absences[i].Date = date
		}
		if snap.Absences[i].DayType == "" {
			snap.Absences[i].DayType = dayType
		}
	}
	return coverage.RunInput{
		Date:        date,
		DayType:     dayType,
		Absences:    snap.Absences,
		Schedule:    snap.Schedule,
		Periods:     snap.Periods,
		Substitutes: snap.Substitutes,
		Staff:       snap.Staff,
	}, nil
}

// replay pins the clock so decision timestamps match across runs, then compares
// each plan's JSON with processing time zeroed.
func replay(ctx context.Context, opts coverage.Options, input coverage.RunInput, runs int) (*replayResult, error) {
	if runs < 2 {
		runs = 2
	}
	fixed := time.Date(input.Date.Year(), input.Date.Month(), input.Date.Day(), 6, 0, 0, 0, time.UTC)
	opts.Clock = func() time.Time { return fixed }
	engine := coverage.NewEngine(opts)

	result := &replayResult{Runs: runs, Identical: true}
	var baseline []byte
	for i := 1; i <= runs; i++ {
		plan, err := engine.Run(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
		plan.Metrics.ProcessingTimeMs = 0
		encoded, err := json.Marshal(plan)
		if err != nil {
			return nil, err
		}
		if baseline == nil {
			baseline = encoded
			result.Plan = plan
			continue
		}
		if result.Identical && !bytes.Equal(baseline, encoded) {
			result.Identical = false
			result.FirstDiff = i
		}
	}
	return result, nil
}
