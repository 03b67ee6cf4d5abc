package dedupe

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"go.uber.org/zap"

	"github.com/refscreen/refscreen/internal/record"
	"github.com/refscreen/refscreen/internal/similarity"
)

func paper(id, title, author, year string, status record.Status) *record.Record {
	return &record.Record{
		ID:        id,
		EntryType: "article",
		Status:    status,
		Title:     title,
		Author:    author,
		Year:      year,
		Journal:   "MISQ",
		Origins:   []string{"dblp/" + id},
	}
}

func mustEngine(t *testing.T, s Settings) *Engine {
	t.Helper()
	e, err := New(s, zap.NewNop())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	return e
}

func TestSettingsValidate(t *testing.T) {
	cases := []struct {
		name    string
		s       Settings
		wantErr bool
	}{
		{"defaults", DefaultSettings(), false},
		{"non-dup above 1", Settings{NonDupThreshold: 1.2, DupThreshold: 0.95, SampleSizeCeiling: 20}, true},
		{"dup below 0", Settings{NonDupThreshold: 0.7, DupThreshold: -0.1, SampleSizeCeiling: 20}, true},
		{"inverted", Settings{NonDupThreshold: 0.96, DupThreshold: 0.95, SampleSizeCeiling: 20}, true},
		{"zero ceiling", Settings{NonDupThreshold: 0.7, DupThreshold: 0.95}, true},
		{"equal thresholds ok", Settings{NonDupThreshold: 0.9, DupThreshold: 0.9, SampleSizeCeiling: 20}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.s.Validate()
			if (err != nil) != tc.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestNew_InvalidSettingsFatal(t *testing.T) {
	_, err := New(Settings{NonDupThreshold: 0.99, DupThreshold: 0.5, SampleSizeCeiling: 20}, zap.NewNop())
	if err == nil {
		t.Fatal("expected construction to fail on inverted thresholds")
	}
}

func TestRun_FirstRecordInEmptyCorpus(t *testing.T) {
	e := mustEngine(t, DefaultSettings())

	decisions, err := e.Run(context.Background(), []*record.Record{
		paper("A1", "First Ever Record", "Smith, John", "2020", record.StatusPrepared),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	d := decisions[0]
	if d.Decision != NoDuplicate || d.Similarity != 1 || d.DuplicateOf != "" {
		t.Errorf("trivial accept wrong: %+v", d)
	}
}

func TestRun_ExactDuplicateOfContext(t *testing.T) {
	e := mustEngine(t, DefaultSettings())

	unrelated := paper("R1", "A Study of Compiler Optimizations", "Adams, Zoe", "1999", record.StatusProcessed)
	accepted := paper("R2", "Digital Innovation: A Review", "Smith, John and Doe, Jane", "2020", record.StatusProcessed)
	incoming := paper("R3", "Digital Innovation: A Review", "Smith, John and Doe, Jane", "2020", record.StatusPrepared)
	incoming.Origins = []string{"ieee/R3"}

	decisions, err := e.Run(context.Background(), []*record.Record{unrelated, accepted, incoming})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
	d := decisions[0]
	if d.Decision != Duplicate {
		t.Errorf("decision = %s, want duplicate (similarity %v)", d.Decision, d.Similarity)
	}
	if d.DuplicateOf != "R2" {
		t.Errorf("duplicate_of = %s, want R2", d.DuplicateOf)
	}
	if len(d.Details) == 0 {
		t.Error("duplicate decision should carry field details")
	}
}

func TestRun_PotentialDuplicateBand(t *testing.T) {
	a := paper("R2", "Digital Innovation: A Review", "Smith, John and Doe, Jane", "2020", record.StatusProcessed)
	b := paper("R3", "Digital Innovation: A Review", "Smith, John and Doe, Jane", "2021", record.StatusPrepared)
	b.Origins = []string{"ieee/R3"}
	score := similarity.Score(a, b).Score
	if score <= 0 || score >= 1 {
		t.Fatalf("test setup: expected a mid-band score, got %v", score)
	}

	// Thresholds bracket the observed score: must classify potential.
	e := mustEngine(t, Settings{
		NonDupThreshold:   score - 0.05,
		DupThreshold:      score + 0.02,
		SampleSizeCeiling: 20,
	})
	decisions, err := e.Run(context.Background(), []*record.Record{a, b})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	d := decisions[0]
	if d.Decision != PotentialDuplicate {
		t.Errorf("decision = %s, want potential_duplicate", d.Decision)
	}
	if d.DuplicateOf != "R2" {
		t.Errorf("duplicate_of = %s, want R2", d.DuplicateOf)
	}
	if d.Similarity != score {
		t.Errorf("similarity = %v, want %v", d.Similarity, score)
	}
}

func TestRun_ThresholdBoundaries(t *testing.T) {
	a := paper("R2", "Digital Innovation: A Review", "Smith, John and Doe, Jane", "2020", record.StatusProcessed)
	b := paper("R3", "Digital Innovation: A Review", "Smith, John and Doe, Jane", "2021", record.StatusPrepared)
	score := similarity.Score(a, b).Score

	// score exactly equal to the non-dup threshold: no_duplicate
	// (strictly greater is required for potential).
	e := mustEngine(t, Settings{NonDupThreshold: score, DupThreshold: 0.99, SampleSizeCeiling: 20})
	decisions, err := e.Run(context.Background(), []*record.Record{a, b})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if decisions[0].Decision != NoDuplicate {
		t.Errorf("score == non_dup threshold: decision = %s, want no_duplicate", decisions[0].Decision)
	}

	// score exactly equal to the dup threshold: duplicate (inclusive).
	e = mustEngine(t, Settings{NonDupThreshold: 0.1, DupThreshold: score, SampleSizeCeiling: 20})
	decisions, err = e.Run(context.Background(), []*record.Record{a, b})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if decisions[0].Decision != Duplicate {
		t.Errorf("score == dup threshold: decision = %s, want duplicate", decisions[0].Decision)
	}
}

func TestRun_TieBreakFirstOccurrence(t *testing.T) {
	// Two context records with identical comparable content score equally
	// against the incoming record: the earliest-queued one must win.
	first := paper("A_first", "Digital Innovation: A Review", "Smith, John", "2020", record.StatusProcessed)
	second := paper("B_second", "Digital Innovation: A Review", "Smith, John", "2020", record.StatusProcessed)
	second.Origins = []string{"acm/B"}
	incoming := paper("C_new", "Digital Innovation: A Review", "Smith, John", "2020", record.StatusPrepared)
	incoming.Origins = []string{"ieee/C"}

	e := mustEngine(t, DefaultSettings())
	decisions, err := e.Run(context.Background(), []*record.Record{first, second, incoming})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if decisions[0].DuplicateOf != "A_first" {
		t.Errorf("tie resolved to %s, want A_first", decisions[0].DuplicateOf)
	}
}

func TestRun_Deterministic(t *testing.T) {
	records := []*record.Record{
		paper("P1", "Work on Graph Databases", "Lee, Ana", "2018", record.StatusProcessed),
		paper("P2", "Digital Innovation: A Review", "Smith, John", "2020", record.StatusPrepared),
		paper("P3", "Digital Innovation: A Review and Agenda", "Smith, John", "2020", record.StatusPrepared),
		paper("P4", "An Unrelated Survey of Testing", "Kim, Dan", "2015", record.StatusPrepared),
	}
	e := mustEngine(t, DefaultSettings())

	run := func() []Decision {
		// Classification mutates nothing, so the same input may be reused.
		d, err := e.Run(context.Background(), records)
		if err != nil {
			t.Fatalf("run: %v", err)
		}
		return d
	}

	first := run()
	for i := 0; i < 5; i++ {
		if got := run(); !reflect.DeepEqual(first, got) {
			t.Fatalf("run %d diverged:\n%+v\nvs\n%+v", i, first, got)
		}
	}
}

func TestRun_SampleCeiling(t *testing.T) {
	var records []*record.Record
	for i := 0; i < 21; i++ {
		records = append(records, paper(
			fmt.Sprintf("P%02d", i),
			fmt.Sprintf("Unique Title Number %d on Topic %d", i, i),
			"Smith, John", "2020", record.StatusPrepared))
	}

	e := mustEngine(t, DefaultSettings())
	_, err := e.Run(context.Background(), records)
	if err == nil {
		t.Fatal("expected sample size error for 21 pending records")
	}
	var sse *SampleSizeError
	if !errors.As(err, &sse) {
		t.Fatalf("expected SampleSizeError, got %T: %v", err, err)
	}
	if sse.Pending != 21 || sse.Ceiling != 20 {
		t.Errorf("error context = %+v", sse)
	}

	forced := DefaultSettings()
	forced.ForceOverride = true
	e = mustEngine(t, forced)
	decisions, err := e.Run(context.Background(), records)
	if err != nil {
		t.Fatalf("forced run: %v", err)
	}
	if len(decisions) != 21 {
		t.Errorf("expected 21 decisions, got %d", len(decisions))
	}
}

func TestRun_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := mustEngine(t, DefaultSettings())
	_, err := e.Run(ctx, []*record.Record{
		paper("P1", "T", "Smith, John", "2020", record.StatusPrepared),
	})
	if err == nil {
		t.Fatal("expected context error")
	}
}

func TestRun_ManualPrepExcluded(t *testing.T) {
	e := mustEngine(t, DefaultSettings())
	decisions, err := e.Run(context.Background(), []*record.Record{
		paper("M1", "Broken Record", "", "", record.StatusNeedsManualPreparation),
		paper("P1", "Fine Record", "Smith, John", "2020", record.StatusPrepared),
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(decisions) != 1 || decisions[0].ID != "P1" {
		t.Errorf("manual-prep record should be excluded, got %+v", decisions)
	}
	// P1 had an empty comparison set: the manual-prep record is not context.
	if decisions[0].Similarity != 1 || decisions[0].Decision != NoDuplicate {
		t.Errorf("expected trivial accept, got %+v", decisions[0])
	}
}
