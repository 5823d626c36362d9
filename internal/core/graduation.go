package core

import (
	"context"
	"fmt"
	"lineagecore/pkg/domain"
	"strings"
	"time"
)

// SeedlingGraduation holds per-call overrides for graduating a seedling.
// Each set field wins over the value inherited from the parents, which in
// turn wins over the default.
type SeedlingGraduation struct {
	Code          *string
	AccessionDate *time.Time
	Section       *string
	Species       *string
	DisplayName   *string
	Generation    *domain.Generation
	HealthStatus  *string
	Notes         *string
}

// InferGeneration labels the offspring of female x male. Parents from the
// same cross give F2; a self-pollination gives S1 and wins over F2.
func InferGeneration(female, male domain.Accession) domain.Generation {
	generation := domain.GenerationF1
	if female.OriginCrossID != nil && male.OriginCrossID != nil && *female.OriginCrossID == *male.OriginCrossID {
		generation = domain.GenerationF2
	}
	if female.ID == male.ID {
		generation = domain.GenerationS1
	}
	return generation
}

// HybridName synthesizes the display name of a seed-grown accession.
func HybridName(female, male domain.Accession) string {
	return female.Name() + " × " + male.Name()
}

// GraduateSeedling turns a KEEPER or HOLDBACK seedling into a permanent
// accession. The accession, the seedling's graduation link and the cross's
// offspring count commit together or not at all. A seedling graduates at
// most once.
func (s *Service) GraduateSeedling(ctx context.Context, seedlingID string, o SeedlingGraduation) (domain.Accession, domain.Result, error) {
	now := s.now()
	date := now
	if o.AccessionDate != nil {
		date = *o.AccessionDate
	}
	unlock := s.codes.LockScope(domain.EntityAccession, date)
	defer unlock()

	var created domain.Accession
	res, err := s.run(ctx, "graduate_seedling", domain.EntitySeedling, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		sdl, ok := view.FindSeedling(seedlingID)
		if !ok {
			return seedlingID, domain.NotFound(domain.EntitySeedling, seedlingID)
		}
		if sdl.Graduated() {
			return seedlingID, domain.Conflict(domain.EntitySeedling, seedlingID, "seedling %s already graduated to accession %s", sdl.Code, *sdl.GraduatedToAccessionID)
		}
		if !sdl.SelectionStatus.Graduatable() {
			return seedlingID, domain.InvalidState(domain.EntitySeedling, seedlingID, "seedling %s must be KEEPER or HOLDBACK to graduate (current: %s)", sdl.Code, sdl.SelectionStatus)
		}
		cross, female, male, err := seedlingLineage(view, sdl)
		if err != nil {
			return seedlingID, err
		}

		code := ""
		if o.Code != nil {
			code = *o.Code
		}
		code, err = s.resolveCode(view, domain.EntityAccession, code, date)
		if err != nil {
			return seedlingID, err
		}

		a := domain.Accession{
			Code:            code,
			OwnerID:         cross.OwnerID,
			Genus:           s.genus,
			Section:         firstSet(o.Section, female.Section, male.Section),
			Species:         o.Species,
			DisplayName:     o.DisplayName,
			HealthStatus:    normalizeHealth(sdl.HealthStatus),
			Origin:          domain.OriginSeed,
			Generation:      o.Generation,
			FemaleParentID:  ptr(female.ID),
			MaleParentID:    ptr(male.ID),
			OriginCrossID:   ptr(cross.ID),
			PropagationType: domain.PropagationSeed,
			AccessionDate:   date,
		}
		if actor, ok := ActorFromContext(ctx); ok {
			a.OwnerID = actor
		}
		if a.Species == nil && female.Species != nil && male.Species != nil && *female.Species == *male.Species {
			a.Species = ptr(*female.Species)
		}
		if a.DisplayName == nil {
			a.DisplayName = ptr(HybridName(female, male))
		}
		if a.Generation == nil {
			a.Generation = ptr(InferGeneration(female, male))
		}
		if o.HealthStatus != nil {
			a.HealthStatus = normalizeHealth(*o.HealthStatus)
		}
		if o.Notes != nil {
			a.Notes = *o.Notes
		} else {
			a.Notes = strings.TrimSpace(fmt.Sprintf("Graduated from %s. %s", sdl.Code, sdl.SelectionNotes))
		}

		created, err = tx.CreateAccession(a)
		if err != nil {
			return seedlingID, err
		}
		if _, err := tx.UpdateSeedling(seedlingID, func(g *domain.Seedling) error {
			if g.Graduated() {
				return domain.Conflict(domain.EntitySeedling, seedlingID, "seedling %s already graduated", g.Code)
			}
			g.GraduatedToAccessionID = ptr(created.ID)
			g.GraduationDate = ptr(now)
			g.SelectionStatus = domain.SelectionGraduated
			return nil
		}); err != nil {
			return seedlingID, err
		}
		if _, err := recomputeCross(tx, cross.ID); err != nil {
			return seedlingID, err
		}
		_, err = recomputeSeedBatch(tx, sdl.SeedBatchID)
		return seedlingID, err
	})
	if err != nil {
		return domain.Accession{}, res, err
	}
	return created, res, nil
}

// seedlingLineage walks seedling -> batch -> harvest -> cross -> parents.
func seedlingLineage(view domain.TransactionView, sdl domain.Seedling) (domain.Cross, domain.Accession, domain.Accession, error) {
	batch, ok := view.FindSeedBatch(sdl.SeedBatchID)
	if !ok {
		return domain.Cross{}, domain.Accession{}, domain.Accession{}, domain.NotFound(domain.EntitySeedBatch, sdl.SeedBatchID)
	}
	harvest, ok := view.FindHarvest(batch.HarvestID)
	if !ok {
		return domain.Cross{}, domain.Accession{}, domain.Accession{}, domain.NotFound(domain.EntityHarvest, batch.HarvestID)
	}
	cross, ok := view.FindCross(harvest.CrossID)
	if !ok {
		return domain.Cross{}, domain.Accession{}, domain.Accession{}, domain.NotFound(domain.EntityCross, harvest.CrossID)
	}
	female, ok := view.FindAccession(cross.FemaleParentID)
	if !ok {
		return domain.Cross{}, domain.Accession{}, domain.Accession{}, domain.NotFound(domain.EntityAccession, cross.FemaleParentID)
	}
	male, ok := view.FindAccession(cross.MaleParentID)
	if !ok {
		return domain.Cross{}, domain.Accession{}, domain.Accession{}, domain.NotFound(domain.EntityAccession, cross.MaleParentID)
	}
	return cross, female, male, nil
}

// firstSet returns a copy of the first non-empty value.
func firstSet(values ...*string) *string {
	for _, v := range values {
		if v != nil && *v != "" {
			return ptr(*v)
		}
	}
	return nil
}
