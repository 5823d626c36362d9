package core

import (
	"context"
	"lineagecore/pkg/domain"
	"strings"
)

// RecordCareLog attaches a care-history entry to an accession or a clone
// batch. Clone batch entries require the batch owner.
func (s *Service) RecordCareLog(ctx context.Context, owner domain.OwnerRef, log domain.CareLog) (domain.CareLog, domain.Result, error) {
	var created domain.CareLog
	res, err := s.run(ctx, "record_care_log", domain.EntityCareLog, func(tx domain.Transaction) (string, error) {
		if err := s.checkOwner(ctx, tx.Snapshot(), owner); err != nil {
			return "", err
		}
		l := log
		l.Owner = owner
		l.Action = strings.TrimSpace(l.Action)
		if l.Action == "" {
			return "", domain.InvalidRequest(domain.EntityCareLog, "", "care log action is required")
		}
		if l.Date.IsZero() {
			l.Date = s.now()
		}
		if l.PerformedBy == "" {
			l.PerformedBy, _ = ActorFromContext(ctx)
		}
		var err error
		created, err = tx.CreateCareLog(l)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	})
	if err != nil {
		return domain.CareLog{}, res, err
	}
	return created, res, nil
}

// AttachPhoto records a photograph reference against an accession or a
// clone batch. The bytes live in the blob store under StoragePath.
func (s *Service) AttachPhoto(ctx context.Context, owner domain.OwnerRef, photo domain.Photo) (domain.Photo, domain.Result, error) {
	var created domain.Photo
	res, err := s.run(ctx, "attach_photo", domain.EntityPhoto, func(tx domain.Transaction) (string, error) {
		if err := s.checkOwner(ctx, tx.Snapshot(), owner); err != nil {
			return "", err
		}
		p := photo
		p.Owner = owner
		if strings.TrimSpace(p.StoragePath) == "" {
			return "", domain.InvalidRequest(domain.EntityPhoto, "", "photo storage path is required")
		}
		if p.UploadedBy == "" {
			p.UploadedBy, _ = ActorFromContext(ctx)
		}
		var err error
		created, err = tx.CreatePhoto(p)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	})
	if err != nil {
		return domain.Photo{}, res, err
	}
	return created, res, nil
}

// ListCareLogs returns the care history of one owner ordered by date.
func (s *Service) ListCareLogs(ctx context.Context, owner domain.OwnerRef) ([]domain.CareLog, error) {
	var out []domain.CareLog
	err := s.view(ctx, func(view domain.TransactionView) error {
		out = view.ListCareLogs(owner)
		return nil
	})
	return out, err
}

// ListPhotos returns the photographs of one owner ordered by creation.
func (s *Service) ListPhotos(ctx context.Context, owner domain.OwnerRef) ([]domain.Photo, error) {
	var out []domain.Photo
	err := s.view(ctx, func(view domain.TransactionView) error {
		out = view.ListPhotos(owner)
		return nil
	})
	return out, err
}

func (s *Service) checkOwner(ctx context.Context, view domain.TransactionView, owner domain.OwnerRef) error {
	if owner.Kind != domain.EntityCloneBatch {
		return nil
	}
	batch, ok := view.FindCloneBatch(owner.ID)
	if !ok {
		return domain.NotFound(domain.EntityCloneBatch, owner.ID)
	}
	return authorize(ctx, batch)
}
