package dedupe

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/refscreen/refscreen/internal/record"
)

func TestNewClassifier_UnknownEndpoint(t *testing.T) {
	_, err := NewClassifier("active_learning", DefaultSettings(), zap.NewNop())
	if err == nil {
		t.Fatal("expected error for unregistered endpoint")
	}
}

func TestNewClassifier_Simple(t *testing.T) {
	c, err := NewClassifier(EndpointSimple, DefaultSettings(), zap.NewNop())
	if err != nil {
		t.Fatalf("new simple classifier: %v", err)
	}
	if c.Name() != EndpointSimple {
		t.Errorf("name = %s", c.Name())
	}

	decisions, err := c.Classify(context.Background(), []*record.Record{
		paper("P1", "Some Title", "Smith, John", "2020", record.StatusPrepared),
	})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(decisions) != 1 {
		t.Fatalf("expected 1 decision, got %d", len(decisions))
	}
}

func TestNewClassifier_ValidatesSettings(t *testing.T) {
	bad := Settings{NonDupThreshold: 2, DupThreshold: 0.95, SampleSizeCeiling: 20}
	if _, err := NewClassifier(EndpointSimple, bad, zap.NewNop()); err == nil {
		t.Error("simple endpoint accepted invalid settings")
	}
	if _, err := NewClassifier(EndpointFingerprint, bad, zap.NewNop()); err == nil {
		t.Error("fingerprint endpoint accepted invalid settings")
	}
}

func TestFingerprintClassifier(t *testing.T) {
	c, err := NewClassifier(EndpointFingerprint, DefaultSettings(), zap.NewNop())
	if err != nil {
		t.Fatalf("new fingerprint classifier: %v", err)
	}

	accepted := paper("R2", "Digital Innovation: A Review", "Smith, John", "2020", record.StatusProcessed)
	dup := paper("R3", "Digital  Innovation — A Review", "Smith, John", "2020", record.StatusPrepared)
	dup.Origins = []string{"ieee/R3"}
	distinct := paper("R4", "A Different Work on Storage Systems", "Lee, Ana", "2018", record.StatusPrepared)
	distinct.Origins = []string{"ieee/R4"}
	sparse := &record.Record{ID: "R5", Status: record.StatusPrepared, Title: "Only a Title", Origins: []string{"manual/5"}}

	decisions, err := c.Classify(context.Background(), []*record.Record{accepted, dup, distinct, sparse})
	if err != nil {
		t.Fatalf("classify: %v", err)
	}
	if len(decisions) != 3 {
		t.Fatalf("expected 3 decisions, got %d", len(decisions))
	}

	if decisions[0].Decision != Duplicate || decisions[0].DuplicateOf != "R2" {
		t.Errorf("normalized fingerprint match not detected: %+v", decisions[0])
	}
	if decisions[1].Decision != NoDuplicate {
		t.Errorf("distinct record misclassified: %+v", decisions[1])
	}
	// unknown fingerprint: accepted rather than guessed at
	if decisions[2].Decision != NoDuplicate {
		t.Errorf("sparse record misclassified: %+v", decisions[2])
	}
}
