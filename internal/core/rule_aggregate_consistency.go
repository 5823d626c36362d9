package core

import (
	"context"
	"fmt"
	"lineagecore/pkg/domain"
)

// AggregateConsistencyRule blocks commits that leave a derived count on a
// touched cross or seed batch out of step with its child records.
func AggregateConsistencyRule() domain.Rule {
	return aggregateConsistencyRule{}
}

type aggregateConsistencyRule struct{}

func (aggregateConsistencyRule) Name() string { return "aggregate_consistency" }

func (aggregateConsistencyRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	crosses := make(map[string]struct{})
	for _, pair := range changesOf[domain.Cross](changes, domain.EntityCross) {
		if pair.after != nil {
			crosses[pair.after.ID] = struct{}{}
		}
	}
	for _, pair := range changesOf[domain.Accession](changes, domain.EntityAccession) {
		if pair.before != nil {
			addRef(crosses, pair.before.OriginCrossID)
		}
		if pair.after != nil {
			addRef(crosses, pair.after.OriginCrossID)
		}
	}
	batches := make(map[string]struct{})
	for _, pair := range changesOf[domain.SeedBatch](changes, domain.EntitySeedBatch) {
		if pair.after != nil {
			batches[pair.after.ID] = struct{}{}
		}
	}
	for _, pair := range changesOf[domain.Seedling](changes, domain.EntitySeedling) {
		if pair.before != nil {
			batches[pair.before.SeedBatchID] = struct{}{}
		}
		if pair.after != nil {
			batches[pair.after.SeedBatchID] = struct{}{}
		}
	}

	res := domain.Result{}
	if len(crosses) > 0 {
		offspring := countOffspring(view)
		for id := range crosses {
			cross, ok := view.FindCross(id)
			if !ok {
				continue
			}
			if cross.OffspringCount != offspring[id] {
				res.Violations = append(res.Violations, blockViolation("aggregate_consistency", domain.EntityCross, id,
					fmt.Sprintf("cross %s offspring count %d, expected %d", cross.Code, cross.OffspringCount, offspring[id])))
			}
		}
	}
	if len(batches) > 0 {
		germinated := countSeedlings(view)
		for id := range batches {
			batch, ok := view.FindSeedBatch(id)
			if !ok {
				continue
			}
			if batch.GerminatedCount != germinated[id] {
				res.Violations = append(res.Violations, blockViolation("aggregate_consistency", domain.EntitySeedBatch, id,
					fmt.Sprintf("seed batch %s germinated count %d, expected %d", batch.Code, batch.GerminatedCount, germinated[id])))
			}
		}
	}
	return res, nil
}

func countOffspring(view domain.TransactionView) map[string]int {
	counts := make(map[string]int)
	for _, a := range view.ListAccessions() {
		if a.OriginCrossID != nil {
			counts[*a.OriginCrossID]++
		}
	}
	return counts
}

func countSeedlings(view domain.TransactionView) map[string]int {
	counts := make(map[string]int)
	for _, s := range view.ListSeedlings() {
		counts[s.SeedBatchID]++
	}
	return counts
}
