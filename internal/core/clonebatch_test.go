package core_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"lineagecore/internal/core"
	"lineagecore/pkg/domain"
)

func newCloneBatch(t *testing.T, svc *core.Service, batch domain.CloneBatch) domain.CloneBatch {
	t.Helper()
	if batch.Method == "" {
		batch.Method = domain.MethodOffset
	}
	created, _, err := svc.CreateCloneBatch(actorCtx(), batch)
	if err != nil {
		t.Fatalf("create clone batch: %v", err)
	}
	return created
}

func TestCloneBatchGraduationEndToEnd(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx()
	species := "magnificum"
	batch := newCloneBatch(t, svc, domain.CloneBatch{Code: "CB-07", AcquiredCount: 10, Species: &species})
	if batch.Status != domain.CloneBatchGrowing || batch.OwnerID != grower {
		t.Fatalf("unexpected batch defaults: %+v", batch)
	}
	owner := domain.OwnerRef{Kind: domain.EntityCloneBatch, ID: batch.ID}
	for _, action := range []string{"repot", "fertilize"} {
		if _, _, err := svc.RecordCareLog(ctx, owner, domain.CareLog{Action: action, Details: action + " all"}); err != nil {
			t.Fatalf("care log %s: %v", action, err)
		}
	}
	if _, _, err := svc.AttachPhoto(ctx, owner, domain.Photo{StoragePath: "photos/cb-07.jpg"}); err != nil {
		t.Fatalf("attach photo: %v", err)
	}

	first, _, err := svc.GraduateFromCloneBatch(ctx, batch.ID, 3, core.CloneGraduation{})
	if err != nil {
		t.Fatalf("graduate 3: %v", err)
	}
	if len(first) != 3 || first[0].Code != "ANT-2025-0001" || first[2].Code != "ANT-2025-0003" {
		t.Fatalf("unexpected first graduation: %d accessions", len(first))
	}

	_, _, err = svc.GraduateFromCloneBatch(ctx, batch.ID, 8, core.CloneGraduation{})
	expectKind(t, err, domain.ErrInvalidRequest)
	members, _ := svc.CloneBatchMembers(ctx, batch.ID)
	if len(members) != 3 {
		t.Fatalf("over-graduation must not write, have %d members", len(members))
	}

	rest, _, err := svc.GraduateFromCloneBatch(ctx, batch.ID, 7, core.CloneGraduation{})
	if err != nil {
		t.Fatalf("graduate 7: %v", err)
	}
	if len(rest) != 7 {
		t.Fatalf("expected 7 accessions, got %d", len(rest))
	}
	for _, a := range rest {
		if a.Origin != domain.OriginClone || a.OriginCloneBatchID == nil || *a.OriginCloneBatchID != batch.ID {
			t.Fatalf("unexpected clone origin: %+v", a)
		}
		if a.PropagationType != domain.PropagationDivision {
			t.Fatalf("offsets graduate as divisions, got %s", a.PropagationType)
		}
		if *a.DisplayName != species || a.Notes != "Graduated from CB-07 (OFFSET)" {
			t.Fatalf("unexpected template: %q %q", *a.DisplayName, a.Notes)
		}
		logs, err := svc.ListCareLogs(ctx, domain.OwnerRef{Kind: domain.EntityAccession, ID: a.ID})
		if err != nil {
			t.Fatalf("list care logs: %v", err)
		}
		if len(logs) != 2 {
			t.Fatalf("expected 2 copied care logs, got %d", len(logs))
		}
		for _, l := range logs {
			if l.Provenance == nil || *l.Provenance != "CB-07" || !strings.HasPrefix(l.Details, "[Batch CB-07] ") {
				t.Fatalf("care log not tagged: %+v", l)
			}
		}
		photos, _ := svc.ListPhotos(ctx, domain.OwnerRef{Kind: domain.EntityAccession, ID: a.ID})
		if len(photos) != 1 || photos[0].StoragePath != "photos/cb-07.jpg" || photos[0].Notes != "[Batch CB-07]" {
			t.Fatalf("photo not copied: %+v", photos)
		}
	}

	progress, err := svc.GetCloneBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("get clone batch: %v", err)
	}
	if progress.Batch.Status != domain.CloneBatchComplete || progress.Graduated != 10 || progress.Remaining != 0 {
		t.Fatalf("unexpected progress: %+v", progress)
	}
	batchLogs, _ := svc.ListCareLogs(ctx, owner)
	if len(batchLogs) != 2 {
		t.Fatalf("batch care logs must stay, have %d", len(batchLogs))
	}
}

func TestCloneBatchOwnership(t *testing.T) {
	svc := newTestService(t)
	batch := newCloneBatch(t, svc, domain.CloneBatch{AcquiredCount: 2})
	if batch.Code != "CB-2025-001" {
		t.Fatalf("expected generated code, got %s", batch.Code)
	}
	stranger := core.WithActor(context.Background(), "someone-else")

	_, _, err := svc.GraduateFromCloneBatch(stranger, batch.ID, 1, core.CloneGraduation{})
	expectKind(t, err, domain.ErrForbidden)
	_, _, err = svc.GraduateFromCloneBatch(context.Background(), batch.ID, 1, core.CloneGraduation{})
	expectKind(t, err, domain.ErrForbidden)
	_, err = svc.DeleteCloneBatch(stranger, batch.ID)
	expectKind(t, err, domain.ErrForbidden)
	_, _, err = svc.RecordCareLog(stranger, domain.OwnerRef{Kind: domain.EntityCloneBatch, ID: batch.ID}, domain.CareLog{Action: "water"})
	expectKind(t, err, domain.ErrForbidden)
	_, _, err = svc.UpdateCloneBatch(stranger, batch.ID, func(b *domain.CloneBatch) error { return nil })
	expectKind(t, err, domain.ErrForbidden)

	_, _, err = svc.CreateCloneBatch(context.Background(), domain.CloneBatch{Method: domain.MethodCutting, AcquiredCount: 1})
	expectKind(t, err, domain.ErrForbidden)
	_, _, err = svc.CreateCloneBatch(actorCtx(), domain.CloneBatch{Method: domain.MethodCutting, AcquiredCount: 1, OwnerID: "someone-else"})
	expectKind(t, err, domain.ErrForbidden)

	_, _, err = svc.GraduateFromCloneBatch(actorCtx(), "missing", 1, core.CloneGraduation{})
	expectKind(t, err, domain.ErrNotFound)
}

func TestCloneMembersOnlyComeFromGraduation(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx()
	source := mustAccession(t, svc, "", "Mother")
	batch := newCloneBatch(t, svc, domain.CloneBatch{AcquiredCount: 1, SourceAccessionID: &source.ID})
	stranger := core.WithActor(context.Background(), "someone-else")

	forged := []struct {
		name string
		ctx  context.Context
		acc  domain.Accession
	}{
		{"stranger clone member", stranger, domain.Accession{Origin: domain.OriginClone, OriginCloneBatchID: &batch.ID}},
		{"owner clone member", ctx, domain.Accession{Origin: domain.OriginClone, OriginCloneBatchID: &batch.ID}},
		{"batch reference only", ctx, domain.Accession{OriginCloneBatchID: &batch.ID}},
		{"clone source only", ctx, domain.Accession{CloneSourceID: &source.ID}},
		{"clone origin only", ctx, domain.Accession{Origin: domain.OriginClone}},
	}
	for _, tc := range forged {
		_, _, err := svc.CreateAccession(tc.ctx, tc.acc)
		if err == nil {
			t.Fatalf("%s: expected rejection", tc.name)
		}
		expectKind(t, err, domain.ErrInvalidRequest)
	}
	progress, err := svc.GetCloneBatch(ctx, batch.ID)
	if err != nil || progress.Graduated != 0 || progress.Remaining != 1 || progress.Batch.Status != domain.CloneBatchGrowing {
		t.Fatalf("forged members touched the batch: %+v (%v)", progress, err)
	}

	members, _, err := svc.GraduateFromCloneBatch(ctx, batch.ID, 1, core.CloneGraduation{})
	if err != nil {
		t.Fatalf("owner graduation: %v", err)
	}
	_, _, err = svc.UpdateAccession(ctx, members[0].ID, func(a *domain.Accession) error {
		a.OriginCloneBatchID = nil
		a.Origin = domain.OriginDirect
		return nil
	})
	expectKind(t, err, domain.ErrConflict)
	_, _, err = svc.UpdateAccession(ctx, members[0].ID, func(a *domain.Accession) error {
		a.CloneSourceID = nil
		return nil
	})
	expectKind(t, err, domain.ErrConflict)

	progress, _ = svc.GetCloneBatch(ctx, batch.ID)
	if progress.Remaining != 0 || progress.Batch.Status != domain.CloneBatchComplete {
		t.Fatalf("capacity reopened: %+v", progress)
	}
	_, _, err = svc.GraduateFromCloneBatch(ctx, batch.ID, 1, core.CloneGraduation{})
	expectKind(t, err, domain.ErrInvalidRequest)
}

func TestCreateCloneBatchValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx()
	missing := "missing"
	negative := -1
	cases := []struct {
		name  string
		batch domain.CloneBatch
		want  error
	}{
		{name: "method", batch: domain.CloneBatch{Method: "GRAFT", AcquiredCount: 1}, want: domain.ErrInvalidRequest},
		{name: "count", batch: domain.CloneBatch{Method: domain.MethodTissueCulture}, want: domain.ErrInvalidRequest},
		{name: "current", batch: domain.CloneBatch{Method: domain.MethodTissueCulture, AcquiredCount: 1, CurrentCount: &negative}, want: domain.ErrInvalidRequest},
		{name: "source", batch: domain.CloneBatch{Method: domain.MethodTissueCulture, AcquiredCount: 1, SourceAccessionID: &missing}, want: domain.ErrNotFound},
		{name: "status", batch: domain.CloneBatch{Method: domain.MethodTissueCulture, AcquiredCount: 1, Status: "DORMANT"}, want: domain.ErrInvalidRequest},
	}
	for _, tc := range cases {
		_, _, err := svc.CreateCloneBatch(ctx, tc.batch)
		if err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
		expectKind(t, err, tc.want)
	}
}

func TestCloneGraduationInheritsFromSource(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx()
	a := mustAccession(t, svc, "", "Alpha")
	b := mustAccession(t, svc, "", "Beta")
	p := growPipeline(t, svc, a, b, 2, 1)
	source := graduate(t, svc, p.seedlings[0].ID)
	section := "Pachyneurium"
	if _, _, err := svc.UpdateAccession(ctx, source.ID, func(acc *domain.Accession) error {
		acc.Section = &section
		return nil
	}); err != nil {
		t.Fatalf("set section: %v", err)
	}
	cultivar := "Silver Blush"
	batch := newCloneBatch(t, svc, domain.CloneBatch{
		Method:            domain.MethodTissueCulture,
		AcquiredCount:     5,
		SourceAccessionID: &source.ID,
		CultivarName:      &cultivar,
	})

	out, _, err := svc.GraduateFromCloneBatch(ctx, batch.ID, 2, core.CloneGraduation{
		Codes:     []string{"TC-A", "TC-B"},
		Substrate: strPtr("perlite"),
	})
	if err != nil {
		t.Fatalf("graduate: %v", err)
	}
	got := out[0]
	if got.Code != "TC-A" || out[1].Code != "TC-B" {
		t.Fatalf("supplied codes not used: %s %s", got.Code, out[1].Code)
	}
	if got.CloneSourceID == nil || *got.CloneSourceID != source.ID {
		t.Fatalf("expected clone source %s", source.ID)
	}
	if *got.Section != section || *got.DisplayName != cultivar || *got.Generation != domain.GenerationF1 {
		t.Fatalf("unexpected inheritance: %+v", got)
	}
	if got.PropagationType != domain.PropagationTissueCulture {
		t.Fatalf("unexpected propagation %s", got.PropagationType)
	}
	if got.Notes != "[Substrate: perlite] Graduated from "+batch.Code+" (TC)" {
		t.Fatalf("unexpected notes %q", got.Notes)
	}

	_, _, err = svc.GraduateFromCloneBatch(ctx, batch.ID, 2, core.CloneGraduation{Codes: []string{"TC-C"}})
	expectKind(t, err, domain.ErrInvalidRequest)
	_, _, err = svc.GraduateFromCloneBatch(ctx, batch.ID, 2, core.CloneGraduation{Codes: []string{"TC-C", "TC-A"}})
	expectKind(t, err, domain.ErrDuplicateIdentifier)
	_, _, err = svc.GraduateFromCloneBatch(ctx, batch.ID, 0, core.CloneGraduation{})
	expectKind(t, err, domain.ErrInvalidRequest)

	ancestors, err := svc.Ancestors(ctx, got.ID, 1)
	if err != nil {
		t.Fatalf("ancestors: %v", err)
	}
	if len(ancestors) != 1 || ancestors[0].Role != core.RoleCloneSource || ancestors[0].Accession.ID != source.ID {
		t.Fatalf("unexpected ancestors: %+v", ancestors)
	}
}

func TestUpdateAndDeleteCloneBatch(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx()
	batch := newCloneBatch(t, svc, domain.CloneBatch{AcquiredCount: 4})
	if _, _, err := svc.GraduateFromCloneBatch(ctx, batch.ID, 2, core.CloneGraduation{}); err != nil {
		t.Fatalf("graduate: %v", err)
	}

	one := 1
	_, _, err := svc.UpdateCloneBatch(ctx, batch.ID, func(b *domain.CloneBatch) error {
		b.CurrentCount = &one
		return nil
	})
	expectKind(t, err, domain.ErrInvalidRequest)
	_, _, err = svc.UpdateCloneBatch(ctx, batch.ID, func(b *domain.CloneBatch) error {
		b.OwnerID = "thief"
		return nil
	})
	expectKind(t, err, domain.ErrConflict)

	two := 2
	shrunk, _, err := svc.UpdateCloneBatch(ctx, batch.ID, func(b *domain.CloneBatch) error {
		b.CurrentCount = &two
		b.Status = domain.CloneBatchComplete
		return nil
	})
	if err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if shrunk.Capacity() != 2 || shrunk.Status != domain.CloneBatchComplete {
		t.Fatalf("unexpected batch: %+v", shrunk)
	}
	_, err = svc.DeleteCloneBatch(ctx, batch.ID)
	expectKind(t, err, domain.ErrConflict)

	spare := newCloneBatch(t, svc, domain.CloneBatch{AcquiredCount: 1})
	owner := domain.OwnerRef{Kind: domain.EntityCloneBatch, ID: spare.ID}
	if _, _, err := svc.RecordCareLog(ctx, owner, domain.CareLog{Action: "water"}); err != nil {
		t.Fatalf("care log: %v", err)
	}
	if _, err := svc.DeleteCloneBatch(ctx, spare.ID); err != nil {
		t.Fatalf("delete spare: %v", err)
	}
	logs, _ := svc.ListCareLogs(ctx, owner)
	if len(logs) != 0 {
		t.Fatalf("care logs must go with their batch, have %d", len(logs))
	}
}

func TestConcurrentCloneGraduationRespectsCapacity(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx()
	batch := newCloneBatch(t, svc, domain.CloneBatch{AcquiredCount: 3})
	if _, _, err := svc.GraduateFromCloneBatch(ctx, batch.ID, 2, core.CloneGraduation{}); err != nil {
		t.Fatalf("graduate: %v", err)
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = svc.GraduateFromCloneBatch(ctx, batch.ID, 1, core.CloneGraduation{})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		expectKind(t, err, domain.ErrInvalidRequest)
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one winner, got %d", succeeded)
	}
	members, _ := svc.CloneBatchMembers(ctx, batch.ID)
	if len(members) != 3 {
		t.Fatalf("expected 3 members, got %d", len(members))
	}
}

func TestCareLogValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := actorCtx()
	a := mustAccession(t, svc, "", "Alpha")
	owner := domain.OwnerRef{Kind: domain.EntityAccession, ID: a.ID}

	_, _, err := svc.RecordCareLog(ctx, owner, domain.CareLog{Action: "  "})
	expectKind(t, err, domain.ErrInvalidRequest)
	_, _, err = svc.AttachPhoto(ctx, owner, domain.Photo{})
	expectKind(t, err, domain.ErrInvalidRequest)
	_, _, err = svc.RecordCareLog(ctx, domain.OwnerRef{Kind: domain.EntityAccession, ID: "missing"}, domain.CareLog{Action: "water"})
	expectKind(t, err, domain.ErrNotFound)

	log, _, err := svc.RecordCareLog(ctx, owner, domain.CareLog{Action: "water"})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if log.PerformedBy != grower || !log.Date.Equal(fixedNow) {
		t.Fatalf("unexpected defaults: %+v", log)
	}
	photo, _, err := svc.AttachPhoto(ctx, owner, domain.Photo{StoragePath: "photos/a.jpg"})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if photo.UploadedBy != grower {
		t.Fatalf("unexpected uploader %q", photo.UploadedBy)
	}
}
