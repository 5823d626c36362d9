package core

import (
	"context"
	"fmt"
	"lineagecore/pkg/domain"
)

// GenerationAmbiguityRule warns when a self-pollinated accession is labelled
// S1 although its parent itself descends from a cross, so the label hides
// the earlier generation.
func GenerationAmbiguityRule() domain.Rule {
	return generationAmbiguityRule{}
}

type generationAmbiguityRule struct{}

func (generationAmbiguityRule) Name() string { return "generation_ambiguity" }

func (generationAmbiguityRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, pair := range changesOf[domain.Accession](changes, domain.EntityAccession) {
		a := pair.after
		if pair.before != nil || a == nil || !a.SelfPollinated() {
			continue
		}
		if a.Generation == nil || *a.Generation != domain.GenerationS1 {
			continue
		}
		parent, ok := view.FindAccession(*a.FemaleParentID)
		if !ok || parent.OriginCrossID == nil {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "generation_ambiguity",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("accession %s labelled S1 although parent %s descends from a cross", a.Code, parent.Code),
			Entity:   domain.EntityAccession,
			EntityID: a.ID,
		})
	}
	return res, nil
}
