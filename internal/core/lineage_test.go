package core_test

import (
	"testing"

	"lineagecore/internal/core"
	"lineagecore/internal/infra/persistence/memory"
	"lineagecore/pkg/domain"
)

// selfLine grows A x B -> C, then selfs C -> D.
func selfLine(t *testing.T, svc *core.Service) (a, b, c, d domain.Accession) {
	t.Helper()
	a = mustAccession(t, svc, "", "Alpha")
	b = mustAccession(t, svc, "", "Beta")
	p := growPipeline(t, svc, a, b, 4, 1)
	c = graduate(t, svc, p.seedlings[0].ID)
	self := growPipeline(t, svc, c, c, 4, 1)
	d = graduate(t, svc, self.seedlings[0].ID)
	return a, b, c, d
}

func TestAncestorsTerminatesOnSelfPollination(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx()
	a, b, c, d := selfLine(t, svc)

	all, err := svc.Ancestors(ctx, d.ID, 0)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 distinct ancestors, got %d: %+v", len(all), all)
	}
	if all[0].Accession.ID != c.ID || all[0].Depth != 1 || all[0].Role != core.RoleFemale {
		t.Fatalf("unexpected first ancestor: %+v", all[0])
	}
	seen := map[string]int{}
	for _, anc := range all {
		seen[anc.Accession.ID] = anc.Depth
	}
	if seen[a.ID] != 2 || seen[b.ID] != 2 {
		t.Fatalf("expected grandparents at depth 2, got %v", seen)
	}

	near, err := svc.Ancestors(ctx, d.ID, 1)
	if err != nil {
		t.Fatalf("bounded ancestors: %v", err)
	}
	if len(near) != 1 {
		t.Fatalf("depth 1 should stop at parents, got %d", len(near))
	}

	_, err = svc.Ancestors(ctx, "missing", 0)
	expectKind(t, err, domain.ErrNotFound)
}

func TestPedigreeMarksRepeatedAncestors(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx()
	a, b, c, d := selfLine(t, svc)

	tree, err := svc.Pedigree(ctx, d.ID, 0)
	if err != nil {
		t.Fatalf("pedigree: %v", err)
	}
	if tree.Accession.ID != d.ID || tree.Female == nil || tree.Male == nil {
		t.Fatalf("unexpected root: %+v", tree)
	}
	if tree.Female.Accession.ID != c.ID || tree.Female.Repeated {
		t.Fatalf("female should be expanded: %+v", tree.Female)
	}
	if tree.Male.Accession.ID != c.ID || !tree.Male.Repeated || tree.Male.Female != nil {
		t.Fatalf("male repeat should be a marked leaf: %+v", tree.Male)
	}
	if tree.Female.Female.Accession.ID != a.ID || tree.Female.Male.Accession.ID != b.ID {
		t.Fatalf("grandparents missing")
	}

	shallow, err := svc.Pedigree(ctx, d.ID, 2)
	if err != nil {
		t.Fatalf("shallow pedigree: %v", err)
	}
	if shallow.Female == nil || shallow.Female.Female != nil {
		t.Fatalf("depth 2 should stop at parents: %+v", shallow.Female)
	}
}

func TestCrossOffspringAndSummary(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx()
	a := mustAccession(t, svc, "", "Alpha")
	b := mustAccession(t, svc, "", "Beta")
	p := growPipeline(t, svc, a, b, 8, 4)
	graduate(t, svc, p.seedlings[0].ID)
	graduate(t, svc, p.seedlings[1].ID)
	if _, _, err := svc.CreateHarvest(ctx, domain.Harvest{CrossID: p.cross.ID, SeedCount: 12}); err != nil {
		t.Fatalf("second harvest: %v", err)
	}

	offspring, err := svc.CrossOffspring(ctx, p.cross.ID)
	if err != nil {
		t.Fatalf("offspring: %v", err)
	}
	if len(offspring) != 2 {
		t.Fatalf("expected 2 offspring, got %d", len(offspring))
	}

	summary, err := svc.SummarizeCross(ctx, p.cross.ID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Harvests != 2 || summary.SeedsHarvested != 20 || summary.SeedsSown != 8 {
		t.Fatalf("unexpected seed totals: %+v", summary)
	}
	if summary.SeedBatches != 1 || summary.Seedlings != 4 || summary.Graduated != 2 {
		t.Fatalf("unexpected pipeline totals: %+v", summary)
	}
	if summary.GerminationRate == nil || *summary.GerminationRate != 50 {
		t.Fatalf("unexpected rate %v", summary.GerminationRate)
	}

	_, err = svc.SummarizeCross(ctx, "missing")
	expectKind(t, err, domain.ErrNotFound)
	_, err = svc.CrossOffspring(ctx, "missing")
	expectKind(t, err, domain.ErrNotFound)
}

func TestReconcileCorrectsDrift(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx()
	a := mustAccession(t, svc, "", "Alpha")
	b := mustAccession(t, svc, "", "Beta")
	p := growPipeline(t, svc, a, b, 10, 5)
	graduate(t, svc, p.seedlings[0].ID)

	clean, _, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("clean reconcile: %v", err)
	}
	if len(clean.Drift) != 0 || clean.Crosses != 1 || clean.SeedBatches != 1 {
		t.Fatalf("expected no drift, got %+v", clean)
	}

	store, ok := svc.Store().(*memory.Store)
	if !ok {
		t.Fatalf("expected memory store, got %T", svc.Store())
	}
	snap := store.ExportState()
	cross := snap.Crosses[p.cross.ID]
	cross.OffspringCount = 9
	snap.Crosses[p.cross.ID] = cross
	batch := snap.SeedBatches[p.batch.ID]
	batch.GerminatedCount = 2
	batch.GerminationRate = nil
	snap.SeedBatches[p.batch.ID] = batch
	store.ImportState(snap)

	report, _, err := svc.Reconcile(ctx)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(report.Drift) != 3 {
		t.Fatalf("expected 3 drifted fields, got %+v", report.Drift)
	}
	if report.Drift[0].Entity != domain.EntityCross || report.Drift[0].Recorded != 9 || report.Drift[0].Actual != 1 {
		t.Fatalf("unexpected cross drift: %+v", report.Drift[0])
	}
	fixed, _ := svc.GetCross(ctx, p.cross.ID)
	if fixed.OffspringCount != 1 {
		t.Fatalf("offspring not corrected: %d", fixed.OffspringCount)
	}
	fixedBatch, _ := svc.GetSeedBatch(ctx, p.batch.ID)
	if fixedBatch.GerminatedCount != 5 || *fixedBatch.GerminationRate != 50 {
		t.Fatalf("batch not corrected: %+v", fixedBatch)
	}
}
