package core

import (
	"context"
	"fmt"
	"lineagecore/pkg/domain"
)

// SeedlingGraduationRule keeps seedling graduation monotonic and restricts
// selection status changes to the transition table.
func SeedlingGraduationRule() domain.Rule {
	return seedlingGraduationRule{}
}

type seedlingGraduationRule struct{}

func (seedlingGraduationRule) Name() string { return "seedling_graduation" }

func (seedlingGraduationRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(s domain.Seedling, format string, args ...any) {
		res.Violations = append(res.Violations, blockViolation("seedling_graduation", domain.EntitySeedling, s.ID, fmt.Sprintf(format, args...)))
	}

	targets := make(map[string]struct{})
	for _, pair := range changesOf[domain.Seedling](changes, domain.EntitySeedling) {
		after := pair.after
		if after == nil {
			continue
		}
		if !after.SelectionStatus.Valid() {
			block(*after, "seedling %s has unknown selection status %q", after.Code, after.SelectionStatus)
			continue
		}
		if (after.SelectionStatus == domain.SelectionGraduated) != after.Graduated() {
			block(*after, "seedling %s status %s disagrees with its graduation link", after.Code, after.SelectionStatus)
		}
		if after.Graduated() {
			targets[*after.GraduatedToAccessionID] = struct{}{}
		}

		before := pair.before
		if before == nil {
			if after.Graduated() {
				block(*after, "seedling %s cannot be created already graduated", after.Code)
			}
			continue
		}
		if before.Graduated() && (!after.Graduated() || *after.GraduatedToAccessionID != *before.GraduatedToAccessionID) {
			block(*after, "seedling %s graduation to %s is irreversible", after.Code, *before.GraduatedToAccessionID)
		}
		if before.SelectionStatus != after.SelectionStatus && !before.SelectionStatus.CanTransition(after.SelectionStatus) {
			block(*after, "seedling %s cannot move from %s to %s", after.Code, before.SelectionStatus, after.SelectionStatus)
		}
	}
	if len(targets) == 0 {
		return res, nil
	}

	claimed := make(map[string]string)
	for _, s := range view.ListSeedlings() {
		if !s.Graduated() {
			continue
		}
		target := *s.GraduatedToAccessionID
		if _, ok := targets[target]; !ok {
			continue
		}
		if prev, dup := claimed[target]; dup {
			block(s, "accession %s already graduated from seedling %s", target, prev)
			continue
		}
		claimed[target] = s.Code
	}
	return res, nil
}
