package core

import (
	"context"
	"lineagecore/pkg/domain"
	"strings"
	"time"
)

// CreateAccession records a direct-entry accession. A blank code is
// generated; a caller code must be unique. Supplying OriginCrossID records a
// seed origin against an existing cross and fills the parents from it.
// Clone-origin accessions only come from GraduateFromCloneBatch.
func (s *Service) CreateAccession(ctx context.Context, accession domain.Accession) (domain.Accession, domain.Result, error) {
	if accession.AccessionDate.IsZero() {
		accession.AccessionDate = s.now()
	}
	unlock := s.codes.LockScope(domain.EntityAccession, accession.AccessionDate)
	defer unlock()

	var created domain.Accession
	res, err := s.run(ctx, "create_accession", domain.EntityAccession, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		a := accession
		if a.Genus == "" {
			a.Genus = s.genus
		}
		a.HealthStatus = normalizeHealth(a.HealthStatus)
		if a.OwnerID == "" {
			a.OwnerID, _ = ActorFromContext(ctx)
		}
		if a.Origin == domain.OriginClone || a.OriginCloneBatchID != nil || a.CloneSourceID != nil {
			return "", domain.InvalidRequest(domain.EntityAccession, "", "clone accessions are created by graduating from a clone batch")
		}
		if a.OriginCrossID != nil {
			cross, ok := view.FindCross(*a.OriginCrossID)
			if !ok {
				return "", domain.NotFound(domain.EntityCross, *a.OriginCrossID)
			}
			a.Origin = domain.OriginSeed
			a.FemaleParentID = ptr(cross.FemaleParentID)
			a.MaleParentID = ptr(cross.MaleParentID)
			if a.PropagationType == "" {
				a.PropagationType = domain.PropagationSeed
			}
			if a.Generation == nil {
				female, _ := view.FindAccession(cross.FemaleParentID)
				male, _ := view.FindAccession(cross.MaleParentID)
				a.Generation = ptr(InferGeneration(female, male))
			}
		}
		if a.Origin == "" {
			a.Origin = domain.OriginDirect
		}

		code, err := s.resolveCode(view, domain.EntityAccession, a.Code, a.AccessionDate)
		if err != nil {
			return "", err
		}
		a.Code = code
		created, err = tx.CreateAccession(a)
		if err != nil {
			return "", err
		}
		if err := s.refreshAccessionAggregates(tx, nil, &created); err != nil {
			return created.ID, err
		}
		return created.ID, nil
	})
	if err != nil {
		return domain.Accession{}, res, err
	}
	return created, res, nil
}

// UpdateAccession mutates an accession. The code and the recorded lineage
// are immutable; derived counts of the origin records are refreshed.
func (s *Service) UpdateAccession(ctx context.Context, id string, mutator func(*domain.Accession) error) (domain.Accession, domain.Result, error) {
	var updated domain.Accession
	res, err := s.run(ctx, "update_accession", domain.EntityAccession, func(tx domain.Transaction) (string, error) {
		before, ok := tx.Snapshot().FindAccession(id)
		if !ok {
			return id, domain.NotFound(domain.EntityAccession, id)
		}
		var err error
		updated, err = tx.UpdateAccession(id, func(a *domain.Accession) error {
			if err := mutator(a); err != nil {
				return err
			}
			a.HealthStatus = normalizeHealth(a.HealthStatus)
			return nil
		})
		if err != nil {
			return id, err
		}
		return id, s.refreshAccessionAggregates(tx, &before, &updated)
	})
	if err != nil {
		return domain.Accession{}, res, err
	}
	return updated, res, nil
}

// ArchiveAccession soft-archives an accession. Accessions are never hard
// deleted.
func (s *Service) ArchiveAccession(ctx context.Context, id string) (domain.Accession, domain.Result, error) {
	var archived domain.Accession
	res, err := s.run(ctx, "archive_accession", domain.EntityAccession, func(tx domain.Transaction) (string, error) {
		var err error
		archived, err = tx.UpdateAccession(id, func(a *domain.Accession) error {
			if a.Archived {
				return domain.InvalidState(domain.EntityAccession, id, "accession %s is already archived", a.Code)
			}
			a.Archived = true
			return nil
		})
		if err != nil {
			return id, err
		}
		return id, s.refreshAccessionAggregates(tx, nil, &archived)
	})
	if err != nil {
		return domain.Accession{}, res, err
	}
	return archived, res, nil
}

// GetAccession returns one accession by id.
func (s *Service) GetAccession(ctx context.Context, id string) (domain.Accession, error) {
	var found domain.Accession
	err := s.view(ctx, func(view domain.TransactionView) error {
		a, ok := view.FindAccession(id)
		if !ok {
			return domain.NotFound(domain.EntityAccession, id)
		}
		found = a
		return nil
	})
	return found, err
}

// FindAccessionByCode resolves a human-readable accession code.
func (s *Service) FindAccessionByCode(ctx context.Context, code string) (domain.Accession, error) {
	var found domain.Accession
	err := s.view(ctx, func(view domain.TransactionView) error {
		for _, a := range view.ListAccessions() {
			if a.Code == code {
				found = a
				return nil
			}
		}
		return domain.NotFound(domain.EntityAccession, code)
	})
	return found, err
}

// ListAccessions returns every accession ordered by code.
func (s *Service) ListAccessions(ctx context.Context) ([]domain.Accession, error) {
	var out []domain.Accession
	err := s.view(ctx, func(view domain.TransactionView) error {
		out = view.ListAccessions()
		return nil
	})
	return out, err
}

// refreshAccessionAggregates recomputes the cross and clone batch aggregates
// an accession change can affect.
func (s *Service) refreshAccessionAggregates(tx domain.Transaction, before, after *domain.Accession) error {
	crosses := make(map[string]struct{})
	batches := make(map[string]struct{})
	for _, a := range []*domain.Accession{before, after} {
		if a == nil {
			continue
		}
		addRef(crosses, a.OriginCrossID)
		addRef(batches, a.OriginCloneBatchID)
	}
	for id := range crosses {
		if _, err := recomputeCross(tx, id); err != nil {
			return err
		}
	}
	for id := range batches {
		if err := settleCloneBatch(tx, id); err != nil {
			return err
		}
	}
	return nil
}

// resolveCode validates a caller code or allocates the next one for the year
// of at.
func (s *Service) resolveCode(view domain.TransactionView, entity domain.EntityType, code string, at time.Time) (string, error) {
	code = strings.TrimSpace(code)
	if code != "" {
		if err := s.codes.Validate(view, entity, code); err != nil {
			return "", err
		}
		return code, nil
	}
	return s.codes.Next(view, entity, at)
}

func normalizeHealth(status string) string {
	status = strings.ToLower(strings.TrimSpace(status))
	if status == "" {
		return "healthy"
	}
	return status
}

func ptr[T any](v T) *T { return &v }
