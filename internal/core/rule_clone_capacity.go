package core

import (
	"context"
	"fmt"
	"lineagecore/pkg/domain"
)

// CloneCapacityRule blocks commits that leave a clone batch with more
// graduated accessions than its capacity.
func CloneCapacityRule() domain.Rule {
	return cloneCapacityRule{}
}

type cloneCapacityRule struct{}

func (cloneCapacityRule) Name() string { return "clone_batch_capacity" }

func (cloneCapacityRule) Evaluate(_ context.Context, view domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]struct{})
	for _, pair := range changesOf[domain.Accession](changes, domain.EntityAccession) {
		if pair.after != nil {
			addRef(touched, pair.after.OriginCloneBatchID)
		}
	}
	for _, pair := range changesOf[domain.CloneBatch](changes, domain.EntityCloneBatch) {
		if pair.after != nil {
			touched[pair.after.ID] = struct{}{}
		}
	}
	res := domain.Result{}
	if len(touched) == 0 {
		return res, nil
	}

	graduated := make(map[string]int)
	for _, a := range view.ListAccessions() {
		if a.OriginCloneBatchID != nil {
			graduated[*a.OriginCloneBatchID]++
		}
	}
	for id := range touched {
		batch, ok := view.FindCloneBatch(id)
		if !ok {
			continue
		}
		if count, capacity := graduated[id], batch.Capacity(); count > capacity {
			res.Violations = append(res.Violations, blockViolation("clone_batch_capacity", domain.EntityCloneBatch, id,
				fmt.Sprintf("clone batch %s over capacity: %d/%d graduated", batch.Code, count, capacity)))
		}
	}
	return res, nil
}
