package core

import (
	"context"
	"fmt"
	"lineagecore/pkg/domain"
	"strings"
	"time"
)

// CloneBatchProgress pairs a clone batch with its graduation counts.
type CloneBatchProgress struct {
	Batch     domain.CloneBatch
	Graduated int
	Remaining int
}

// CloneGraduation holds per-call overrides for graduating clone batch
// members. Codes, when given, must contain exactly one unique code per
// graduated individual.
type CloneGraduation struct {
	Codes         []string
	AccessionDate *time.Time
	Section       *string
	Species       *string
	DisplayName   *string
	HealthStatus  *string
	Notes         *string
	Substrate     *string
}

// authorize resolves the caller and checks it owns the batch.
func authorize(ctx context.Context, batch domain.CloneBatch) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor != batch.OwnerID {
		return domain.Forbidden(domain.EntityCloneBatch, batch.ID, actor)
	}
	return nil
}

// CreateCloneBatch records a batch of vegetatively propagated individuals
// owned by the calling actor.
func (s *Service) CreateCloneBatch(ctx context.Context, batch domain.CloneBatch) (domain.CloneBatch, domain.Result, error) {
	var created domain.CloneBatch
	res, err := s.run(ctx, "create_clone_batch", domain.EntityCloneBatch, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		b := batch
		actor, ok := ActorFromContext(ctx)
		if !ok || (b.OwnerID != "" && b.OwnerID != actor) {
			return "", domain.Forbidden(domain.EntityCloneBatch, b.Code, actor)
		}
		b.OwnerID = actor
		if !b.Method.Valid() {
			return "", domain.InvalidRequest(domain.EntityCloneBatch, "", "unknown propagation method %q", b.Method)
		}
		if b.AcquiredCount <= 0 {
			return "", domain.InvalidRequest(domain.EntityCloneBatch, "", "acquired count %d must be positive", b.AcquiredCount)
		}
		if b.CurrentCount != nil && *b.CurrentCount < 0 {
			return "", domain.InvalidRequest(domain.EntityCloneBatch, "", "current count %d must not be negative", *b.CurrentCount)
		}
		if b.SourceAccessionID != nil {
			if _, ok := view.FindAccession(*b.SourceAccessionID); !ok {
				return "", domain.NotFound(domain.EntityAccession, *b.SourceAccessionID)
			}
		}
		if b.Status == "" {
			b.Status = domain.CloneBatchGrowing
		}
		if !b.Status.Valid() {
			return "", domain.InvalidRequest(domain.EntityCloneBatch, "", "unknown clone batch status %q", b.Status)
		}
		if b.AcquiredDate.IsZero() {
			b.AcquiredDate = s.now()
		}
		code, err := s.resolveCode(view, domain.EntityCloneBatch, b.Code, b.AcquiredDate)
		if err != nil {
			return "", err
		}
		b.Code = code
		created, err = tx.CreateCloneBatch(b)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	})
	if err != nil {
		return domain.CloneBatch{}, res, err
	}
	return created, res, nil
}

// UpdateCloneBatch edits a clone batch owned by the caller. Status changes
// follow the clone batch transition table and the capacity may not drop
// below the number already graduated.
func (s *Service) UpdateCloneBatch(ctx context.Context, id string, mutator func(*domain.CloneBatch) error) (domain.CloneBatch, domain.Result, error) {
	var updated domain.CloneBatch
	res, err := s.run(ctx, "update_clone_batch", domain.EntityCloneBatch, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		current, ok := view.FindCloneBatch(id)
		if !ok {
			return id, domain.NotFound(domain.EntityCloneBatch, id)
		}
		if err := authorize(ctx, current); err != nil {
			return id, err
		}
		graduated := len(cloneMembers(view, id))
		var err error
		updated, err = tx.UpdateCloneBatch(id, func(b *domain.CloneBatch) error {
			before := *b
			if err := mutator(b); err != nil {
				return err
			}
			if b.OwnerID != before.OwnerID {
				return domain.Conflict(domain.EntityCloneBatch, id, "clone batch %s owner is immutable", before.Code)
			}
			if !b.Method.Valid() {
				return domain.InvalidRequest(domain.EntityCloneBatch, id, "unknown propagation method %q", b.Method)
			}
			if b.Status != before.Status && !before.Status.CanTransition(b.Status) {
				return domain.InvalidState(domain.EntityCloneBatch, id, "clone batch %s cannot move from %s to %s", before.Code, before.Status, b.Status)
			}
			if b.Capacity() < graduated {
				return domain.InvalidRequest(domain.EntityCloneBatch, id, "clone batch %s capacity %d below %d graduated", before.Code, b.Capacity(), graduated)
			}
			return nil
		})
		return id, err
	})
	if err != nil {
		return domain.CloneBatch{}, res, err
	}
	return updated, res, nil
}

// DeleteCloneBatch removes a clone batch owned by the caller together with
// its care history and photographs. It fails with Conflict once any
// accession graduated from it.
func (s *Service) DeleteCloneBatch(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_clone_batch", domain.EntityCloneBatch, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		batch, ok := view.FindCloneBatch(id)
		if !ok {
			return id, domain.NotFound(domain.EntityCloneBatch, id)
		}
		if err := authorize(ctx, batch); err != nil {
			return id, err
		}
		if n := len(cloneMembers(view, id)); n > 0 {
			return id, domain.Conflict(domain.EntityCloneBatch, id, "clone batch %s has %d graduated accessions", batch.Code, n)
		}
		return id, tx.DeleteCloneBatch(id)
	})
}

// GetCloneBatch returns a clone batch with its graduation progress.
func (s *Service) GetCloneBatch(ctx context.Context, id string) (CloneBatchProgress, error) {
	var progress CloneBatchProgress
	err := s.view(ctx, func(view domain.TransactionView) error {
		batch, ok := view.FindCloneBatch(id)
		if !ok {
			return domain.NotFound(domain.EntityCloneBatch, id)
		}
		graduated := len(cloneMembers(view, id))
		progress = CloneBatchProgress{Batch: batch, Graduated: graduated, Remaining: batch.Capacity() - graduated}
		return nil
	})
	return progress, err
}

// GraduateFromCloneBatch turns count individuals of a clone batch into
// accessions in one transaction. Every care log and photograph of the batch
// is copied onto each new accession tagged with the batch code, and the
// batch becomes COMPLETE once its capacity is used up. Nothing is written
// when any check or write fails.
func (s *Service) GraduateFromCloneBatch(ctx context.Context, batchID string, count int, o CloneGraduation) ([]domain.Accession, domain.Result, error) {
	date := s.now()
	if o.AccessionDate != nil {
		date = *o.AccessionDate
	}
	unlock := s.codes.LockScope(domain.EntityAccession, date)
	defer unlock()

	var created []domain.Accession
	res, err := s.run(ctx, "graduate_clone_batch", domain.EntityCloneBatch, func(tx domain.Transaction) (string, error) {
		created = nil
		view := tx.Snapshot()
		batch, ok := view.FindCloneBatch(batchID)
		if !ok {
			return batchID, domain.NotFound(domain.EntityCloneBatch, batchID)
		}
		if err := authorize(ctx, batch); err != nil {
			return batchID, err
		}
		if count <= 0 {
			return batchID, domain.InvalidRequest(domain.EntityCloneBatch, batchID, "graduation count %d must be positive", count)
		}
		graduated := len(cloneMembers(view, batchID))
		if remaining := batch.Capacity() - graduated; count > remaining {
			return batchID, domain.InvalidRequest(domain.EntityCloneBatch, batchID, "cannot graduate %d from %s: only %d remaining (%d already graduated)", count, batch.Code, remaining, graduated)
		}
		codes, err := s.cloneCodes(view, batchID, count, date, o.Codes)
		if err != nil {
			return batchID, err
		}

		template := s.cloneTemplate(view, batch, o)
		template.AccessionDate = date
		owner := domain.OwnerRef{Kind: domain.EntityCloneBatch, ID: batchID}
		careLogs := view.ListCareLogs(owner)
		photos := view.ListPhotos(owner)
		tag := fmt.Sprintf("[Batch %s]", batch.Code)

		for _, code := range codes {
			a := template
			a.Code = code
			out, err := tx.CreateAccession(a)
			if err != nil {
				return batchID, err
			}
			target := domain.OwnerRef{Kind: domain.EntityAccession, ID: out.ID}
			for _, l := range careLogs {
				if _, err := tx.CreateCareLog(copyCareLog(l, target, batch.Code, tag)); err != nil {
					return batchID, err
				}
			}
			for _, p := range photos {
				if _, err := tx.CreatePhoto(copyPhoto(p, target, batch.Code, tag)); err != nil {
					return batchID, err
				}
			}
			created = append(created, out)
		}
		return batchID, settleCloneBatch(tx, batchID)
	})
	if err != nil {
		return nil, res, err
	}
	return created, res, nil
}

func (s *Service) cloneCodes(view domain.TransactionView, batchID string, count int, date time.Time, supplied []string) ([]string, error) {
	if len(supplied) == 0 {
		return s.codes.Reserve(view, domain.EntityAccession, date, count)
	}
	if len(supplied) != count {
		return nil, domain.InvalidRequest(domain.EntityCloneBatch, batchID, "%d codes supplied for %d graduations", len(supplied), count)
	}
	codes := make([]string, len(supplied))
	for i, code := range supplied {
		codes[i] = strings.TrimSpace(code)
	}
	if err := s.codes.Validate(view, domain.EntityAccession, codes...); err != nil {
		return nil, err
	}
	return codes, nil
}

// cloneTemplate resolves the identity shared by every accession graduated
// from batch: override first, then the batch, then its source accession.
func (s *Service) cloneTemplate(view domain.TransactionView, batch domain.CloneBatch, o CloneGraduation) domain.Accession {
	var source domain.Accession
	hasSource := false
	if batch.SourceAccessionID != nil {
		source, hasSource = view.FindAccession(*batch.SourceAccessionID)
	}

	a := domain.Accession{
		OwnerID:            batch.OwnerID,
		Genus:              s.genus,
		Species:            firstSet(o.Species, batch.Species),
		DisplayName:        firstSet(o.DisplayName, batch.CultivarName, batch.Species),
		HealthStatus:       "healthy",
		Origin:             domain.OriginClone,
		OriginCloneBatchID: ptr(batch.ID),
		PropagationType:    batch.Method.AccessionPropagation(),
	}
	if hasSource {
		a.CloneSourceID = ptr(source.ID)
		a.Section = firstSet(o.Section, source.Section)
		if source.Generation != nil {
			a.Generation = ptr(*source.Generation)
		}
	} else {
		a.Section = firstSet(o.Section)
	}
	if o.HealthStatus != nil {
		a.HealthStatus = normalizeHealth(*o.HealthStatus)
	}
	a.Notes = fmt.Sprintf("Graduated from %s (%s)", batch.Code, batch.Method)
	if o.Notes != nil {
		a.Notes = *o.Notes
	}
	if o.Substrate != nil && *o.Substrate != "" {
		a.Notes = fmt.Sprintf("[Substrate: %s] %s", *o.Substrate, a.Notes)
	}
	return a
}

func tagged(tag, text string) string {
	if text == "" {
		return tag
	}
	return tag + " " + text
}

func copyCareLog(l domain.CareLog, owner domain.OwnerRef, batchCode, tag string) domain.CareLog {
	c := l
	c.Base = domain.Base{}
	c.Owner = owner
	c.Details = tagged(tag, l.Details)
	c.Provenance = ptr(batchCode)
	return c
}

func copyPhoto(p domain.Photo, owner domain.OwnerRef, batchCode, tag string) domain.Photo {
	c := p
	c.Base = domain.Base{}
	c.Owner = owner
	c.Notes = tagged(tag, p.Notes)
	c.Provenance = ptr(batchCode)
	return c
}
