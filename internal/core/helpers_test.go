package core_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"lineagecore/internal/core"
	"lineagecore/pkg/domain"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

const grower = "grower-1"

func newTestService(t *testing.T, opts ...core.Option) *core.Service {
	t.Helper()
	base := []core.Option{core.WithClock(core.ClockFunc(func() time.Time { return fixedNow }))}
	return core.NewInMemoryService(nil, append(base, opts...)...)
}

func actorCtx() context.Context {
	return core.WithActor(context.Background(), grower)
}

func strPtr(s string) *string { return &s }

func mustAccession(t *testing.T, svc *core.Service, code, name string) domain.Accession {
	t.Helper()
	a, _, err := svc.CreateAccession(actorCtx(), domain.Accession{Code: code, DisplayName: strPtr(name)})
	if err != nil {
		t.Fatalf("create accession %s: %v", code, err)
	}
	return a
}

type pipeline struct {
	cross     domain.Cross
	harvest   domain.Harvest
	batch     domain.SeedBatch
	seedlings []domain.Seedling
}

// growPipeline crosses female x male, harvests and sows seeds seeds and adds
// n seedlings with generated codes.
func growPipeline(t *testing.T, svc *core.Service, female, male domain.Accession, seeds, n int) pipeline {
	t.Helper()
	ctx := actorCtx()
	var p pipeline
	var err error
	p.cross, _, err = svc.CreateCross(ctx, domain.Cross{FemaleParentID: female.ID, MaleParentID: male.ID})
	if err != nil {
		t.Fatalf("create cross: %v", err)
	}
	p.harvest, _, err = svc.CreateHarvest(ctx, domain.Harvest{CrossID: p.cross.ID, SeedCount: seeds})
	if err != nil {
		t.Fatalf("create harvest: %v", err)
	}
	p.batch, _, err = svc.CreateSeedBatch(ctx, domain.SeedBatch{HarvestID: p.harvest.ID, SeedCount: seeds, Substrate: "sphagnum"})
	if err != nil {
		t.Fatalf("create seed batch: %v", err)
	}
	if n > 0 {
		p.seedlings, _, err = svc.AddSeedlings(ctx, p.batch.ID, make([]domain.Seedling, n))
		if err != nil {
			t.Fatalf("add seedlings: %v", err)
		}
	}
	return p
}

func keeper(t *testing.T, svc *core.Service, seedlingID string) {
	t.Helper()
	status := domain.SelectionKeeper
	if _, _, err := svc.UpdateSeedling(actorCtx(), seedlingID, core.SeedlingPatch{SelectionStatus: &status}); err != nil {
		t.Fatalf("mark keeper: %v", err)
	}
}

func graduate(t *testing.T, svc *core.Service, seedlingID string) domain.Accession {
	t.Helper()
	keeper(t, svc, seedlingID)
	a, _, err := svc.GraduateSeedling(actorCtx(), seedlingID, core.SeedlingGraduation{})
	if err != nil {
		t.Fatalf("graduate seedling: %v", err)
	}
	return a
}

func expectKind(t *testing.T, err error, sentinel error) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v, got nil", sentinel)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected %v, got %T: %v", sentinel, err, err)
	}
}

func seqCodes(prefix string, from, n int) []string {
	codes := make([]string, n)
	for i := range codes {
		codes[i] = fmt.Sprintf("%s-%03d", prefix, from+i)
	}
	return codes
}
