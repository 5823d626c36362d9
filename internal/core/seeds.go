package core

import (
	"context"
	"lineagecore/pkg/domain"
	"strings"
	"time"
)

// DefaultSeedlingHealth is recorded on seedlings added without a health status.
const DefaultSeedlingHealth = "HEALTHY"

// CreateSeedBatch records a sowing of seeds from an existing harvest. New
// batches start SOWN.
func (s *Service) CreateSeedBatch(ctx context.Context, batch domain.SeedBatch) (domain.SeedBatch, domain.Result, error) {
	var created domain.SeedBatch
	res, err := s.run(ctx, "create_seed_batch", domain.EntitySeedBatch, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		b := batch
		if _, ok := view.FindHarvest(b.HarvestID); !ok {
			return "", domain.NotFound(domain.EntityHarvest, b.HarvestID)
		}
		if b.SeedCount < 0 {
			return "", domain.InvalidRequest(domain.EntitySeedBatch, "", "seed count %d must not be negative", b.SeedCount)
		}
		if b.Status == "" {
			b.Status = domain.SeedBatchSown
		}
		if !b.Status.Valid() {
			return "", domain.InvalidRequest(domain.EntitySeedBatch, "", "unknown seed batch status %q", b.Status)
		}
		if b.SowDate.IsZero() {
			b.SowDate = s.now()
		}
		b.GerminatedCount = 0
		b.GerminationRate = germinationRate(0, b.SeedCount)
		b.FirstEmergence = nil
		code, err := s.resolveCode(view, domain.EntitySeedBatch, b.Code, b.SowDate)
		if err != nil {
			return "", err
		}
		b.Code = code
		created, err = tx.CreateSeedBatch(b)
		if err != nil {
			return "", err
		}
		return created.ID, nil
	})
	if err != nil {
		return domain.SeedBatch{}, res, err
	}
	return created, res, nil
}

// UpdateSeedBatch edits a seed batch. Status changes follow the seed batch
// transition table; germination statistics stay derived.
func (s *Service) UpdateSeedBatch(ctx context.Context, id string, mutator func(*domain.SeedBatch) error) (domain.SeedBatch, domain.Result, error) {
	var updated domain.SeedBatch
	res, err := s.run(ctx, "update_seed_batch", domain.EntitySeedBatch, func(tx domain.Transaction) (string, error) {
		_, err := tx.UpdateSeedBatch(id, func(b *domain.SeedBatch) error {
			before := *b
			if err := mutator(b); err != nil {
				return err
			}
			if b.HarvestID != before.HarvestID {
				return domain.Conflict(domain.EntitySeedBatch, id, "seed batch %s cannot move between harvests", before.Code)
			}
			if b.SeedCount < 0 {
				return domain.InvalidRequest(domain.EntitySeedBatch, id, "seed count %d must not be negative", b.SeedCount)
			}
			if b.Status != before.Status && !before.Status.CanTransition(b.Status) {
				return domain.InvalidState(domain.EntitySeedBatch, id, "seed batch %s cannot move from %s to %s", before.Code, before.Status, b.Status)
			}
			b.GerminatedCount = before.GerminatedCount
			b.GerminationRate = before.GerminationRate
			b.FirstEmergence = before.FirstEmergence
			return nil
		})
		if err != nil {
			return id, err
		}
		if _, err := recomputeSeedBatch(tx, id); err != nil {
			return id, err
		}
		updated, _ = tx.Snapshot().FindSeedBatch(id)
		return id, nil
	})
	if err != nil {
		return domain.SeedBatch{}, res, err
	}
	return updated, res, nil
}

// DeleteSeedBatch removes a seed batch. It fails with Conflict while the
// batch holds any seedling.
func (s *Service) DeleteSeedBatch(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_seed_batch", domain.EntitySeedBatch, func(tx domain.Transaction) (string, error) {
		view := tx.Snapshot()
		b, ok := view.FindSeedBatch(id)
		if !ok {
			return id, domain.NotFound(domain.EntitySeedBatch, id)
		}
		if n := len(seedlingsOf(view, id)); n > 0 {
			return id, domain.Conflict(domain.EntitySeedBatch, id, "seed batch %s holds %d seedlings", b.Code, n)
		}
		return id, tx.DeleteSeedBatch(id)
	})
}

// GetSeedBatch returns one seed batch by id.
func (s *Service) GetSeedBatch(ctx context.Context, id string) (domain.SeedBatch, error) {
	var found domain.SeedBatch
	err := s.view(ctx, func(view domain.TransactionView) error {
		b, ok := view.FindSeedBatch(id)
		if !ok {
			return domain.NotFound(domain.EntitySeedBatch, id)
		}
		found = b
		return nil
	})
	return found, err
}

// AddSeedlings records germinated individuals in a seed batch. Every code is
// validated or allocated before anything is written and the whole call
// commits or fails as one. The batch's germination statistics are
// recomputed and a SOWN batch advances to GERMINATING.
func (s *Service) AddSeedlings(ctx context.Context, batchID string, items []domain.Seedling) ([]domain.Seedling, domain.Result, error) {
	unlock := s.codes.LockScope(domain.EntitySeedling, s.now())
	defer unlock()

	var created []domain.Seedling
	res, err := s.run(ctx, "add_seedlings", domain.EntitySeedBatch, func(tx domain.Transaction) (string, error) {
		created = nil
		view := tx.Snapshot()
		batch, ok := view.FindSeedBatch(batchID)
		if !ok {
			return batchID, domain.NotFound(domain.EntitySeedBatch, batchID)
		}
		if len(items) == 0 {
			return batchID, domain.InvalidRequest(domain.EntitySeedBatch, batchID, "no seedlings supplied")
		}
		codes, err := s.seedlingCodes(view, items)
		if err != nil {
			return batchID, err
		}

		for i, item := range items {
			sdl := item
			sdl.ID = ""
			sdl.Code = codes[i]
			sdl.SeedBatchID = batchID
			if sdl.SelectionStatus == "" {
				sdl.SelectionStatus = domain.SelectionGrowing
			}
			if !sdl.SelectionStatus.Valid() {
				return batchID, domain.InvalidRequest(domain.EntitySeedling, "", "unknown selection status %q", sdl.SelectionStatus)
			}
			if sdl.SelectionStatus == domain.SelectionGraduated || sdl.GraduatedToAccessionID != nil {
				return batchID, domain.InvalidRequest(domain.EntitySeedling, "", "seedling %s cannot be added already graduated", sdl.Code)
			}
			sdl.GraduationDate = nil
			if sdl.EmergenceDate.IsZero() {
				sdl.EmergenceDate = s.now()
			}
			if strings.TrimSpace(sdl.HealthStatus) == "" {
				sdl.HealthStatus = DefaultSeedlingHealth
			}
			if sdl.Photos == nil {
				sdl.Photos = []string{}
			}
			out, err := tx.CreateSeedling(sdl)
			if err != nil {
				return batchID, err
			}
			created = append(created, out)
		}

		if _, err := recomputeSeedBatch(tx, batchID); err != nil {
			return batchID, err
		}
		if batch.Status == domain.SeedBatchSown {
			if _, err := tx.UpdateSeedBatch(batchID, func(b *domain.SeedBatch) error {
				b.Status = domain.SeedBatchGerminating
				return nil
			}); err != nil {
				return batchID, err
			}
		}
		return batchID, nil
	})
	if err != nil {
		return nil, res, err
	}
	return created, res, nil
}

// seedlingCodes validates every caller code and reserves codes for the
// blank ones, skipping any reserved value a caller already claimed.
func (s *Service) seedlingCodes(view domain.TransactionView, items []domain.Seedling) ([]string, error) {
	var supplied []string
	claimed := make(map[string]struct{})
	blank := 0
	for _, item := range items {
		code := strings.TrimSpace(item.Code)
		if code == "" {
			blank++
			continue
		}
		supplied = append(supplied, code)
		claimed[code] = struct{}{}
	}
	if len(supplied) > 0 {
		if err := s.codes.Validate(view, domain.EntitySeedling, supplied...); err != nil {
			return nil, err
		}
	}
	var reserved []string
	if blank > 0 {
		pool, err := s.codes.Reserve(view, domain.EntitySeedling, s.now(), blank+len(supplied))
		if err != nil {
			return nil, err
		}
		for _, code := range pool {
			if _, taken := claimed[code]; !taken {
				reserved = append(reserved, code)
			}
		}
	}
	codes := make([]string, len(items))
	for i, item := range items {
		if code := strings.TrimSpace(item.Code); code != "" {
			codes[i] = code
			continue
		}
		codes[i], reserved = reserved[0], reserved[1:]
	}
	return codes, nil
}

// SeedlingPatch lists the seedling fields an update may set. Nil fields are
// left untouched. Once a seedling graduated only Notes and Photos may be set.
type SeedlingPatch struct {
	PositionLabel   *string
	EmergenceDate   *time.Time
	LeafCount       *int
	PotSize         *string
	HealthStatus    *string
	SelectionStatus *domain.SelectionStatus
	SelectionDate   *time.Time
	SelectionNotes  *string
	Notes           *string
	Photos          *[]string
}

func (p SeedlingPatch) touchesLocked() bool {
	return p.PositionLabel != nil || p.EmergenceDate != nil || p.LeafCount != nil || p.PotSize != nil ||
		p.HealthStatus != nil || p.SelectionStatus != nil || p.SelectionDate != nil || p.SelectionNotes != nil
}

// UpdateSeedling applies a field patch. Selection status changes follow the
// seedling transition table and never reach GRADUATED; graduation has its
// own operation.
func (s *Service) UpdateSeedling(ctx context.Context, id string, patch SeedlingPatch) (domain.Seedling, domain.Result, error) {
	var updated domain.Seedling
	res, err := s.run(ctx, "update_seedling", domain.EntitySeedling, func(tx domain.Transaction) (string, error) {
		var err error
		updated, err = tx.UpdateSeedling(id, func(sdl *domain.Seedling) error {
			if sdl.SelectionStatus == domain.SelectionGraduated && patch.touchesLocked() {
				return domain.Conflict(domain.EntitySeedling, id, "seedling %s graduated; only notes and photos may change", sdl.Code)
			}
			if next := patch.SelectionStatus; next != nil && *next != sdl.SelectionStatus {
				switch {
				case !next.Valid():
					return domain.InvalidRequest(domain.EntitySeedling, id, "unknown selection status %q", *next)
				case *next == domain.SelectionGraduated:
					return domain.InvalidState(domain.EntitySeedling, id, "seedling %s graduates only through graduation", sdl.Code)
				case !sdl.SelectionStatus.CanTransition(*next):
					return domain.InvalidState(domain.EntitySeedling, id, "seedling %s cannot move from %s to %s", sdl.Code, sdl.SelectionStatus, *next)
				}
				sdl.SelectionStatus = *next
				if patch.SelectionDate == nil {
					sdl.SelectionDate = ptr(s.now())
				}
			}
			applySeedlingPatch(sdl, patch)
			return nil
		})
		if err != nil {
			return id, err
		}
		_, err = recomputeSeedBatch(tx, updated.SeedBatchID)
		return id, err
	})
	if err != nil {
		return domain.Seedling{}, res, err
	}
	return updated, res, nil
}

func applySeedlingPatch(sdl *domain.Seedling, p SeedlingPatch) {
	if p.PositionLabel != nil {
		sdl.PositionLabel = p.PositionLabel
	}
	if p.EmergenceDate != nil {
		sdl.EmergenceDate = *p.EmergenceDate
	}
	if p.LeafCount != nil {
		sdl.LeafCount = p.LeafCount
	}
	if p.PotSize != nil {
		sdl.PotSize = p.PotSize
	}
	if p.HealthStatus != nil {
		sdl.HealthStatus = *p.HealthStatus
	}
	if p.SelectionDate != nil {
		sdl.SelectionDate = p.SelectionDate
	}
	if p.SelectionNotes != nil {
		sdl.SelectionNotes = *p.SelectionNotes
	}
	if p.Notes != nil {
		sdl.Notes = *p.Notes
	}
	if p.Photos != nil {
		sdl.Photos = append([]string{}, (*p.Photos)...)
	}
}

// DeleteSeedling removes a seedling that never graduated and refreshes the
// statistics of its batch.
func (s *Service) DeleteSeedling(ctx context.Context, id string) (domain.Result, error) {
	return s.run(ctx, "delete_seedling", domain.EntitySeedling, func(tx domain.Transaction) (string, error) {
		sdl, ok := tx.Snapshot().FindSeedling(id)
		if !ok {
			return id, domain.NotFound(domain.EntitySeedling, id)
		}
		if sdl.Graduated() {
			return id, domain.Conflict(domain.EntitySeedling, id, "seedling %s graduated to accession %s", sdl.Code, *sdl.GraduatedToAccessionID)
		}
		if err := tx.DeleteSeedling(id); err != nil {
			return id, err
		}
		_, err := recomputeSeedBatch(tx, sdl.SeedBatchID)
		return id, err
	})
}

// GetSeedling returns one seedling by id.
func (s *Service) GetSeedling(ctx context.Context, id string) (domain.Seedling, error) {
	var found domain.Seedling
	err := s.view(ctx, func(view domain.TransactionView) error {
		sdl, ok := view.FindSeedling(id)
		if !ok {
			return domain.NotFound(domain.EntitySeedling, id)
		}
		found = sdl
		return nil
	})
	return found, err
}

// ListSeedlings returns the seedlings of one batch ordered by code.
func (s *Service) ListSeedlings(ctx context.Context, batchID string) ([]domain.Seedling, error) {
	var out []domain.Seedling
	err := s.view(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindSeedBatch(batchID); !ok {
			return domain.NotFound(domain.EntitySeedBatch, batchID)
		}
		out = seedlingsOf(view, batchID)
		return nil
	})
	return out, err
}
