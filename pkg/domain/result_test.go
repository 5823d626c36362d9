package domain

import (
	"context"
	"fmt"
	"testing"
)

func TestResultMergeAndBlocking(t *testing.T) {
	var result Result
	result.Merge(Result{Violations: []Violation{{Rule: "warn", Severity: SeverityWarn}}})
	if result.HasBlocking() {
		t.Fatalf("expected no blocking violations")
	}
	result.Merge(Result{Violations: []Violation{{Rule: "block", Severity: SeverityBlock}}})
	if !result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}
	err := RuleViolationError{Result: result}
	if err.Error() == "" {
		t.Fatalf("expected error string")
	}
}

func TestResultMergeEmptyInput(t *testing.T) {
	original := Result{Violations: []Violation{{Rule: "existing", Severity: SeverityWarn}}}
	original.Merge(Result{})
	if len(original.Violations) != 1 || original.Violations[0].Rule != "existing" {
		t.Fatalf("expected original violations to remain, got %+v", original.Violations)
	}
}

func TestRulesEngineEvaluate(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(staticRule{"warn"})
	engine.Register(staticRule{"second"})
	res, err := engine.Evaluate(context.Background(), emptyView{}, nil)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if len(res.Violations) != 2 {
		t.Fatalf("expected two violations, got %d", len(res.Violations))
	}
	names := engine.Rules()
	if len(names) != 2 || names[0] != "warn" || names[1] != "second" {
		t.Fatalf("unexpected rule names %v", names)
	}
}

func TestRulesEngineEvaluateError(t *testing.T) {
	engine := NewRulesEngine()
	engine.Register(errorRule{})
	if _, err := engine.Evaluate(context.Background(), emptyView{}, nil); err == nil {
		t.Fatalf("expected evaluation error")
	}
}

type staticRule struct{ name string }

func (r staticRule) Name() string { return r.name }

func (r staticRule) Evaluate(context.Context, TransactionView, []Change) (Result, error) {
	return Result{Violations: []Violation{{Rule: r.name, Severity: SeverityWarn}}}, nil
}

type errorRule struct{}

func (errorRule) Name() string { return "error" }

func (errorRule) Evaluate(context.Context, TransactionView, []Change) (Result, error) {
	return Result{}, fmt.Errorf("boom")
}

type emptyView struct{}

func (emptyView) FindAccession(string) (Accession, bool)        { return Accession{}, false }
func (emptyView) FindCross(string) (Cross, bool)                { return Cross{}, false }
func (emptyView) FindHarvest(string) (Harvest, bool)            { return Harvest{}, false }
func (emptyView) FindSeedBatch(string) (SeedBatch, bool)        { return SeedBatch{}, false }
func (emptyView) FindSeedling(string) (Seedling, bool)          { return Seedling{}, false }
func (emptyView) FindCloneBatch(string) (CloneBatch, bool)      { return CloneBatch{}, false }
func (emptyView) ListAccessions() []Accession                   { return nil }
func (emptyView) ListCrosses() []Cross                          { return nil }
func (emptyView) ListHarvests() []Harvest                       { return nil }
func (emptyView) ListSeedBatches() []SeedBatch                  { return nil }
func (emptyView) ListSeedlings() []Seedling                     { return nil }
func (emptyView) ListCloneBatches() []CloneBatch                { return nil }
func (emptyView) ListCareLogs(OwnerRef) []CareLog               { return nil }
func (emptyView) ListPhotos(OwnerRef) []Photo                   { return nil }
func (emptyView) CodeInUse(EntityType, string) bool             { return false }
func (emptyView) CodesWithPrefix(EntityType, string) []string   { return nil }
