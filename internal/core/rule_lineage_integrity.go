package core

import (
	"context"
	"fmt"
	"lineagecore/pkg/domain"
)

// LineageIntegrityRule enforces that every accession carries exactly one
// consistent origin mode and that seed origins agree with their cross.
func LineageIntegrityRule() domain.Rule {
	return lineageIntegrityRule{}
}

type lineageIntegrityRule struct{}

func (lineageIntegrityRule) Name() string { return "lineage_integrity" }

func (lineageIntegrityRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, pair := range changesOf[domain.Accession](changes, domain.EntityAccession) {
		if pair.after == nil {
			continue
		}
		for _, msg := range lineageProblems(view, *pair.after) {
			res.Violations = append(res.Violations, lineageViolation(pair.after.ID, msg))
		}
	}
	for _, pair := range changesOf[domain.Cross](changes, domain.EntityCross) {
		if pair.before == nil || pair.after == nil {
			continue
		}
		if pair.before.FemaleParentID != pair.after.FemaleParentID || pair.before.MaleParentID != pair.after.MaleParentID {
			res.Violations = append(res.Violations, blockViolation("lineage_integrity", domain.EntityCross, pair.after.ID,
				fmt.Sprintf("cross %s parents are immutable", pair.after.Code)))
		}
	}
	return res, nil
}

func lineageViolation(entityID, message string) domain.Violation {
	return blockViolation("lineage_integrity", domain.EntityAccession, entityID, message)
}

func lineageProblems(view domain.TransactionView, a domain.Accession) []string {
	var problems []string
	for _, parent := range []*string{a.FemaleParentID, a.MaleParentID, a.CloneSourceID} {
		if parent != nil && *parent == a.ID {
			problems = append(problems, fmt.Sprintf("accession %s references itself as a parent", a.Code))
		}
	}

	switch a.Origin {
	case domain.OriginDirect, "":
		if a.OriginCrossID != nil || a.OriginCloneBatchID != nil {
			problems = append(problems, fmt.Sprintf("direct-entry accession %s references an origin record", a.Code))
		}
	case domain.OriginSeed:
		if a.OriginCloneBatchID != nil || a.CloneSourceID != nil {
			problems = append(problems, fmt.Sprintf("seed-origin accession %s carries clone origin fields", a.Code))
		}
		if a.OriginCrossID == nil || a.FemaleParentID == nil || a.MaleParentID == nil {
			problems = append(problems, fmt.Sprintf("seed-origin accession %s requires both parents and a cross", a.Code))
			break
		}
		cross, ok := view.FindCross(*a.OriginCrossID)
		if !ok {
			problems = append(problems, fmt.Sprintf("accession %s references missing cross %s", a.Code, *a.OriginCrossID))
			break
		}
		if cross.FemaleParentID != *a.FemaleParentID || cross.MaleParentID != *a.MaleParentID {
			problems = append(problems, fmt.Sprintf("accession %s parents disagree with cross %s", a.Code, cross.Code))
		}
	case domain.OriginClone:
		if a.OriginCrossID != nil || a.FemaleParentID != nil || a.MaleParentID != nil {
			problems = append(problems, fmt.Sprintf("clone-origin accession %s carries seed origin fields", a.Code))
		}
		if a.OriginCloneBatchID == nil {
			problems = append(problems, fmt.Sprintf("clone-origin accession %s requires a clone batch", a.Code))
			break
		}
		batch, ok := view.FindCloneBatch(*a.OriginCloneBatchID)
		if !ok {
			problems = append(problems, fmt.Sprintf("accession %s references missing clone batch %s", a.Code, *a.OriginCloneBatchID))
			break
		}
		if a.CloneSourceID != nil && batch.SourceAccessionID != nil && *a.CloneSourceID != *batch.SourceAccessionID {
			problems = append(problems, fmt.Sprintf("accession %s clone source disagrees with batch %s", a.Code, batch.Code))
		}
	default:
		problems = append(problems, fmt.Sprintf("accession %s has unknown origin %q", a.Code, a.Origin))
	}
	return problems
}
