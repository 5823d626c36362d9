package core

import (
	"context"
	"lineagecore/pkg/domain"
)

// Cross types recorded when the caller leaves CrossType blank.
const (
	CrossTypeHybrid = "hybrid"
	CrossTypeSelf   = "self"
)

// CreateCross records a pollination between two existing accessions. The
// cross date defaults to now and a blank code is generated.
func (s *Service) CreateCross(ctx context.Context, cross domain.Cross) (domain.Cross, domain.Result, error) {
	var created domain.Cross
	res, err := s.run(ctx, "create_cross", domain.EntityCross, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		c := cross
		for _, parent := range []string{c.FemaleParentID, c.MaleParentID} {
			if _, ok := view.FindAccession(parent); !ok {
				return "", domain.NotFound(domain.EntityAccession, parent)
			}
		}
		if c.CrossDate.IsZero() {
			c.CrossDate = s.now()
		}
		if c.CrossType == "" {
			c.CrossType = CrossTypeHybrid
			if c.SelfPollination() {
				c.CrossType = CrossTypeSelf
			}
		}
		if c.OwnerID == "" {
			c.OwnerID, _ = ActorFromContext(ctx)
		}
		c.OffspringCount = 0
		code, err := s.resolveCode(view, domain.EntityCross, c.Code, c.CrossDate)
		if err != nil {
			return "", err
		}
		c.Code = code
		created, err = tx.CreateCross(c)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	})
	if err != nil {
		return domain.Cross{}, res, err
	}
	return created, res, nil
}

// UpdateCross edits the date, type, pollination method or notes of a cross.
// Parents are immutable and the offspring count stays derived.
func (s *Service) UpdateCross(ctx context.Context, id string, mutator func(*domain.Cross) error) (domain.Cross, domain.Result, error) {
	var updated domain.Cross
	res, err := s.run(ctx, "update_cross", domain.EntityCross, func(tx domain.Transaction) (string, error) {
		_, err := tx.UpdateCross(id, func(c *domain.Cross) error {
			female, male, offspring := c.FemaleParentID, c.MaleParentID, c.OffspringCount
			if err := mutator(c); err != nil {
				return err
			}
			if c.FemaleParentID != female || c.MaleParentID != male {
				return domain.Conflict(domain.EntityCross, id, "cross %s parents are immutable", c.Code)
			}
			c.OffspringCount = offspring
			return nil
		})
		if err != nil {
			return id, err
		}
		if _, err := recomputeCross(tx, id); err != nil {
			return id, err
		}
		updated, _ = tx.Snapshot().FindCross(id)
		return id, nil
	})
	if err != nil {
		return domain.Cross{}, res, err
	}
	return updated, res, nil
}

// DeleteCross removes a cross together with its harvests and their empty
// seed batches. It fails with Conflict while any accession originates from
// the cross or any seedling descends from it.
func (s *Service) DeleteCross(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_cross", domain.EntityCross, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		cross, ok := view.FindCross(id)
		if !ok {
			return id, domain.NotFound(domain.EntityCross, id)
		}
		for _, a := range view.ListAccessions() {
			if a.OriginCrossID != nil && *a.OriginCrossID == id {
				return id, domain.Conflict(domain.EntityCross, id, "cross %s has graduated offspring %s", cross.Code, a.Code)
			}
		}
		harvests := harvestsOf(view, id)
		for _, h := range harvests {
			if err := requireNoSeedlings(view, h); err != nil {
				return id, err
			}
		}
		for _, h := range harvests {
			if err := deleteHarvestTree(tx, view, h); err != nil {
				return id, err
			}
		}
		return id, tx.DeleteCross(id)
	})
}

// GetCross returns one cross by id.
func (s *Service) GetCross(ctx context.Context, id string) (domain.Cross, error) {
	var found domain.Cross
	err := s.view(ctx, func(view domain.TransactionView) error {
		c, ok := view.FindCross(id)
		if !ok {
			return domain.NotFound(domain.EntityCross, id)
		}
		found = c
		return nil
	})
	return found, err
}

// CreateHarvest records a collection event for an existing cross. A zero
// harvest number takes the next number of the cross; caller numbers must be
// unique per cross.
func (s *Service) CreateHarvest(ctx context.Context, harvest domain.Harvest) (domain.Harvest, domain.Result, error) {
	var created domain.Harvest
	res, err := s.run(ctx, "create_harvest", domain.EntityHarvest, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		h := harvest
		if _, ok := view.FindCross(h.CrossID); !ok {
			return "", domain.NotFound(domain.EntityCross, h.CrossID)
		}
		if h.SeedCount < 0 || (h.BerryCount != nil && *h.BerryCount < 0) {
			return "", domain.InvalidRequest(domain.EntityHarvest, "", "harvest counts must not be negative")
		}
		if h.HarvestNumber < 0 {
			return "", domain.InvalidRequest(domain.EntityHarvest, "", "harvest number %d must be positive", h.HarvestNumber)
		}
		if h.HarvestNumber == 0 {
			for _, existing := range harvestsOf(view, h.CrossID) {
				if existing.HarvestNumber > h.HarvestNumber {
					h.HarvestNumber = existing.HarvestNumber
				}
			}
			h.HarvestNumber++
		}
		if h.HarvestDate.IsZero() {
			h.HarvestDate = s.now()
		}
		var err error
		created, err = tx.CreateHarvest(h)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	})
	if err != nil {
		return domain.Harvest{}, res, err
	}
	return created, res, nil
}

// UpdateHarvest edits a harvest. It cannot move to another cross.
func (s *Service) UpdateHarvest(ctx context.Context, id string, mutator func(*domain.Harvest) error) (domain.Harvest, domain.Result, error) {
	var updated domain.Harvest
	res, err := s.run(ctx, "update_harvest", domain.EntityHarvest, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateHarvest(id, func(h *domain.Harvest) error {
			crossID := h.CrossID
			if err := mutator(h); err != nil {
				return err
			}
			if h.CrossID != crossID {
				return domain.Conflict(domain.EntityHarvest, id, "harvest cannot move between crosses")
			}
			if h.SeedCount < 0 || h.HarvestNumber <= 0 {
				return domain.InvalidRequest(domain.EntityHarvest, id, "harvest number and seed count must be positive")
			}
			return nil
		})
		return id, err
	})
	if err != nil {
		return domain.Harvest{}, res, err
	}
	return updated, res, nil
}

// DeleteHarvest removes a harvest and its empty seed batches. It fails with
// Conflict while any of its seed batches holds seedlings.
func (s *Service) DeleteHarvest(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_harvest", domain.EntityHarvest, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		h, ok := view.FindHarvest(id)
		if !ok {
			return id, domain.NotFound(domain.EntityHarvest, id)
		}
		if err := requireNoSeedlings(view, h); err != nil {
			return id, err
		}
		return id, deleteHarvestTree(tx, view, h)
	})
}

func harvestsOf(view domain.TransactionView, crossID string) []domain.Harvest {
	var out []domain.Harvest
	for _, h := range view.ListHarvests() {
		if h.CrossID == crossID {
			out = append(out, h)
		}
	}
	return out
}

func batchesOf(view domain.TransactionView, harvestID string) []domain.SeedBatch {
	var out []domain.SeedBatch
	for _, b := range view.ListSeedBatches() {
		if b.HarvestID == harvestID {
			out = append(out, b)
		}
	}
	return out
}

func seedlingsOf(view domain.TransactionView, batchID string) []domain.Seedling {
	var out []domain.Seedling
	for _, sdl := range view.ListSeedlings() {
		if sdl.SeedBatchID == batchID {
			out = append(out, sdl)
		}
	}
	return out
}

func requireNoSeedlings(view domain.TransactionView, h domain.Harvest) error {
	for _, b := range batchesOf(view, h.ID) {
		if n := len(seedlingsOf(view, b.ID)); n > 0 {
			return domain.Conflict(domain.EntityHarvest, h.ID, "harvest %d has %d seedlings in seed batch %s", h.HarvestNumber, n, b.Code)
		}
	}
	return nil
}

func deleteHarvestTree(tx domain.Transaction, view domain.TransactionView, h domain.Harvest) error {
	for _, b := range batchesOf(view, h.ID) {
		if err := tx.DeleteSeedBatch(b.ID); err != nil {
			return err
		}
	}
	return tx.DeleteHarvest(h.ID)
}
