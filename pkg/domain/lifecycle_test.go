package domain

import "testing"

func TestSeedlingTransitionTable(t *testing.T) {
	cases := []struct {
		from, to SelectionStatus
		want     bool
	}{
		{SelectionGrowing, SelectionKeeper, true},
		{SelectionGrowing, SelectionHoldback, true},
		{SelectionGrowing, SelectionCulled, true},
		{SelectionGrowing, SelectionGraduated, false},
		{SelectionKeeper, SelectionGrowing, true},
		{SelectionKeeper, SelectionHoldback, true},
		{SelectionHoldback, SelectionKeeper, true},
		{SelectionKeeper, SelectionGraduated, true},
		{SelectionHoldback, SelectionGraduated, true},
		{SelectionCulled, SelectionGrowing, false},
		{SelectionCulled, SelectionKeeper, false},
		{SelectionCulled, SelectionCulled, false},
		{SelectionGraduated, SelectionKeeper, false},
		{SelectionGraduated, SelectionGraduated, false},
		{SelectionKeeper, SelectionKeeper, true},
		{SelectionStatus("BOGUS"), SelectionKeeper, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.want {
			t.Errorf("%s -> %s: got %v want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestGraduatable(t *testing.T) {
	for status, want := range map[SelectionStatus]bool{
		SelectionGrowing:   false,
		SelectionKeeper:    true,
		SelectionHoldback:  true,
		SelectionCulled:    false,
		SelectionGraduated: false,
	} {
		if got := status.Graduatable(); got != want {
			t.Errorf("%s graduatable: got %v want %v", status, got, want)
		}
	}
}

func TestSeedAndCloneBatchTransitions(t *testing.T) {
	if !SeedBatchSown.CanTransition(SeedBatchGerminating) {
		t.Fatalf("expected SOWN -> GERMINATING")
	}
	if SeedBatchComplete.CanTransition(SeedBatchSown) {
		t.Fatalf("COMPLETE is terminal")
	}
	if !CloneBatchGrowing.CanTransition(CloneBatchComplete) {
		t.Fatalf("expected GROWING -> COMPLETE")
	}
	if CloneBatchFailed.CanTransition(CloneBatchComplete) {
		t.Fatalf("FAILED must be revived before completing")
	}
	if CloneBatchStatus("DONE").Valid() {
		t.Fatalf("unexpected status accepted")
	}
}

func TestPropagationMapping(t *testing.T) {
	cases := map[PropagationMethod]PropagationType{
		MethodTissueCulture: PropagationTissueCulture,
		MethodCutting:       PropagationCutting,
		MethodDivision:      PropagationDivision,
		MethodOffset:        PropagationDivision,
		MethodSeed:          PropagationSeed,
	}
	for method, want := range cases {
		if got := method.AccessionPropagation(); got != want {
			t.Errorf("%s: got %s want %s", method, got, want)
		}
	}
	if got := PropagationMethod("AIR_LAYER").AccessionPropagation(); got != "air_layer" {
		t.Fatalf("unknown methods fall back to lower case, got %s", got)
	}
}

func TestCloneBatchCapacity(t *testing.T) {
	b := CloneBatch{AcquiredCount: 10}
	if b.Capacity() != 10 {
		t.Fatalf("expected acquired count fallback")
	}
	n := 6
	b.CurrentCount = &n
	if b.Capacity() != 6 {
		t.Fatalf("expected current count override")
	}
}

func TestAccessionName(t *testing.T) {
	species := "andreanum"
	name := "Red Queen"
	if got := (Accession{}).Name(); got != "Unknown" {
		t.Fatalf("expected Unknown, got %s", got)
	}
	if got := (Accession{Species: &species}).Name(); got != species {
		t.Fatalf("expected species fallback, got %s", got)
	}
	if got := (Accession{Species: &species, DisplayName: &name}).Name(); got != name {
		t.Fatalf("expected display name, got %s", got)
	}
}
