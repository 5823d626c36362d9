package core

import (
	"context"
	"lineagecore/pkg/domain"
	"sort"
	"time"
)

// Drift records a derived value that disagreed with its source records.
type Drift struct {
	Entity   domain.EntityType
	ID       string
	Code     string
	Field    string
	Recorded float64
	Actual   float64
}

// ReconcileReport lists every corrected derived value.
type ReconcileReport struct {
	Crosses     int
	SeedBatches int
	Drift       []Drift
}

// Reconcile recomputes every stored derived value in one transaction: cross
// offspring counts, seed batch germination statistics and first emergence
// dates. Corrected values
// are reported as drift. Clone batch remaining counts are never stored.
func (s *Service) Reconcile(ctx context.Context) (ReconcileReport, domain.Result, error) {
	var report ReconcileReport
	res, err := s.run(ctx, "reconcile", "", func(tx domain.Transaction) (string, error) {
		report = ReconcileReport{}
		view := tx.Snapshot()
		for _, cross := range view.ListCrosses() {
			report.Crosses++
			drift, err := recomputeCross(tx, cross.ID)
			if err != nil {
				return "", err
			}
			report.Drift = append(report.Drift, drift...)
		}
		for _, batch := range view.ListSeedBatches() {
			report.SeedBatches++
			drift, err := recomputeSeedBatch(tx, batch.ID)
			if err != nil {
				return "", err
			}
			report.Drift = append(report.Drift, drift...)
		}
		sort.SliceStable(report.Drift, func(i, j int) bool {
			if report.Drift[i].Entity != report.Drift[j].Entity {
				return report.Drift[i].Entity < report.Drift[j].Entity
			}
			return report.Drift[i].Code < report.Drift[j].Code
		})
		return "", nil
	})
	if err != nil {
		return ReconcileReport{}, res, err
	}
	for _, d := range report.Drift {
		s.logger.Info("aggregate corrected", "entity", d.Entity, "code", d.Code, "field", d.Field, "recorded", d.Recorded, "actual", d.Actual)
	}
	return report, res, nil
}

// recomputeCross sets the offspring count of a cross to the live number of
// accessions referencing it.
func recomputeCross(tx domain.Transaction, crossID string) ([]Drift, error) {
	view := tx.Snapshot()
	cross, ok := view.FindCross(crossID)
	if !ok {
		return nil, domain.NotFound(domain.EntityCross, crossID)
	}
	actual := countOffspring(view)[crossID]
	if cross.OffspringCount == actual {
		return nil, nil
	}
	drift := Drift{Entity: domain.EntityCross, ID: crossID, Code: cross.Code, Field: "offspring_count", Recorded: float64(cross.OffspringCount), Actual: float64(actual)}
	if _, err := tx.UpdateCross(crossID, func(c *domain.Cross) error {
		c.OffspringCount = actual
		return nil
	}); err != nil {
		return nil, err
	}
	return []Drift{drift}, nil
}

// recomputeSeedBatch refreshes germinated count, germination rate and first
// emergence from the seedlings of the batch.
func recomputeSeedBatch(tx domain.Transaction, batchID string) ([]Drift, error) {
	view := tx.Snapshot()
	batch, ok := view.FindSeedBatch(batchID)
	if !ok {
		return nil, domain.NotFound(domain.EntitySeedBatch, batchID)
	}
	count := 0
	var first *domain.Seedling
	for _, sdl := range view.ListSeedlings() {
		if sdl.SeedBatchID != batchID {
			continue
		}
		count++
		if first == nil || sdl.EmergenceDate.Before(first.EmergenceDate) {
			first = &sdl
		}
	}
	rate := germinationRate(count, batch.SeedCount)

	var drift []Drift
	if batch.GerminatedCount != count {
		drift = append(drift, Drift{Entity: domain.EntitySeedBatch, ID: batchID, Code: batch.Code, Field: "germinated_count", Recorded: float64(batch.GerminatedCount), Actual: float64(count)})
	}
	if !sameRate(batch.GerminationRate, rate) {
		drift = append(drift, Drift{Entity: domain.EntitySeedBatch, ID: batchID, Code: batch.Code, Field: "germination_rate", Recorded: derefRate(batch.GerminationRate), Actual: derefRate(rate)})
	}
	var emergence *time.Time
	if first != nil {
		date := first.EmergenceDate
		emergence = &date
	}
	if !sameTime(batch.FirstEmergence, emergence) {
		drift = append(drift, Drift{Entity: domain.EntitySeedBatch, ID: batchID, Code: batch.Code, Field: "first_emergence", Recorded: unixOrZero(batch.FirstEmergence), Actual: unixOrZero(emergence)})
	}
	if len(drift) == 0 {
		return nil, nil
	}
	if _, err := tx.UpdateSeedBatch(batchID, func(b *domain.SeedBatch) error {
		b.GerminatedCount = count
		b.GerminationRate = rate
		b.FirstEmergence = emergence
		return nil
	}); err != nil {
		return nil, err
	}
	return drift, nil
}

// settleCloneBatch marks a growing batch COMPLETE once its graduated
// accessions reach capacity.
func settleCloneBatch(tx domain.Transaction, batchID string) error {
	view := tx.Snapshot()
	batch, ok := view.FindCloneBatch(batchID)
	if !ok {
		return domain.NotFound(domain.EntityCloneBatch, batchID)
	}
	if batch.Status != domain.CloneBatchGrowing || len(cloneMembers(view, batchID)) < batch.Capacity() {
		return nil
	}
	_, err := tx.UpdateCloneBatch(batchID, func(b *domain.CloneBatch) error {
		b.Status = domain.CloneBatchComplete
		return nil
	})
	return err
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// unixOrZero reports a date as unix seconds for drift reports.
func unixOrZero(t *time.Time) float64 {
	if t == nil {
		return 0
	}
	return float64(t.Unix())
}

// germinationRate is a percentage, nil when no seeds were sown.
func germinationRate(germinated, seeds int) *float64 {
	if seeds <= 0 {
		return nil
	}
	rate := float64(germinated) / float64(seeds) * 100
	return &rate
}

func sameRate(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func derefRate(r *float64) float64 {
	if r == nil {
		return 0
	}
	return *r
}

func cloneMembers(view domain.TransactionView, batchID string) []domain.Accession {
	var members []domain.Accession
	for _, a := range view.ListAccessions() {
		if a.OriginCloneBatchID != nil && *a.OriginCloneBatchID == batchID {
			members = append(members, a)
		}
	}
	return members
}
