package memory

import (
	"cmp"
	"lineagecore/pkg/domain"
	"slices"
	"strings"
)

// transactionView exposes a read-only snapshot of the transactional state to
// rules and service-level validation.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) domain.TransactionView {
	return transactionView{state: state}
}

func find[T any](m map[string]T, id string, clone func(T) T) (T, bool) {
	v, ok := m[id]
	if !ok {
		var zero T
		return zero, false
	}
	return clone(v), true
}

func sortedValues[T any](m map[string]T, clone func(T) T, compare func(a, b T) int) []T {
	out := make([]T, 0, len(m))
	for _, v := range m {
		out = append(out, clone(v))
	}
	slices.SortFunc(out, compare)
	return out
}

func byCode(a, b string, aID, bID string) int {
	if c := cmp.Compare(a, b); c != 0 {
		return c
	}
	return cmp.Compare(aID, bID)
}

func (v transactionView) FindAccession(id string) (domain.Accession, bool) {
	return find(v.state.accessions, id, cloneAccession)
}

func (v transactionView) FindCross(id string) (domain.Cross, bool) {
	return find(v.state.crosses, id, cloneCross)
}

func (v transactionView) FindHarvest(id string) (domain.Harvest, bool) {
	return find(v.state.harvests, id, cloneHarvest)
}

func (v transactionView) FindSeedBatch(id string) (domain.SeedBatch, bool) {
	return find(v.state.seedBatches, id, cloneSeedBatch)
}

func (v transactionView) FindSeedling(id string) (domain.Seedling, bool) {
	return find(v.state.seedlings, id, cloneSeedling)
}

func (v transactionView) FindCloneBatch(id string) (domain.CloneBatch, bool) {
	return find(v.state.cloneBatches, id, cloneCloneBatch)
}

// ListAccessions returns all accessions ordered by code.
func (v transactionView) ListAccessions() []domain.Accession {
	return sortedValues(v.state.accessions, cloneAccession, func(a, b domain.Accession) int {
		return byCode(a.Code, b.Code, a.ID, b.ID)
	})
}

// ListCrosses returns all crosses ordered by code.
func (v transactionView) ListCrosses() []domain.Cross {
	return sortedValues(v.state.crosses, cloneCross, func(a, b domain.Cross) int {
		return byCode(a.Code, b.Code, a.ID, b.ID)
	})
}

// ListHarvests returns harvests grouped by cross, in harvest-number order.
func (v transactionView) ListHarvests() []domain.Harvest {
	return sortedValues(v.state.harvests, cloneHarvest, func(a, b domain.Harvest) int {
		if c := cmp.Compare(a.CrossID, b.CrossID); c != 0 {
			return c
		}
		return cmp.Compare(a.HarvestNumber, b.HarvestNumber)
	})
}

func (v transactionView) ListSeedBatches() []domain.SeedBatch {
	return sortedValues(v.state.seedBatches, cloneSeedBatch, func(a, b domain.SeedBatch) int {
		return byCode(a.Code, b.Code, a.ID, b.ID)
	})
}

func (v transactionView) ListSeedlings() []domain.Seedling {
	return sortedValues(v.state.seedlings, cloneSeedling, func(a, b domain.Seedling) int {
		return byCode(a.Code, b.Code, a.ID, b.ID)
	})
}

func (v transactionView) ListCloneBatches() []domain.CloneBatch {
	return sortedValues(v.state.cloneBatches, cloneCloneBatch, func(a, b domain.CloneBatch) int {
		return byCode(a.Code, b.Code, a.ID, b.ID)
	})
}

// ListCareLogs returns the care history of one owner, oldest first.
func (v transactionView) ListCareLogs(owner domain.OwnerRef) []domain.CareLog {
	out := make([]domain.CareLog, 0)
	for _, l := range v.state.careLogs {
		if l.Owner == owner {
			out = append(out, cloneCareLog(l))
		}
	}
	slices.SortFunc(out, func(a, b domain.CareLog) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// ListPhotos returns the photographs of one owner in upload order.
func (v transactionView) ListPhotos(owner domain.OwnerRef) []domain.Photo {
	out := make([]domain.Photo, 0)
	for _, p := range v.state.photos {
		if p.Owner == owner {
			out = append(out, clonePhoto(p))
		}
	}
	slices.SortFunc(out, func(a, b domain.Photo) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// CodeInUse reports whether code is taken for the entity type.
func (v transactionView) CodeInUse(entity domain.EntityType, code string) bool {
	found := false
	v.state.eachCode(entity, func(_, c string) bool {
		if c == code {
			found = true
			return false
		}
		return true
	})
	return found
}

// CodesWithPrefix returns every code of the entity type starting with prefix.
func (v transactionView) CodesWithPrefix(entity domain.EntityType, prefix string) []string {
	var out []string
	v.state.eachCode(entity, func(_, c string) bool {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
		return true
	})
	slices.Sort(out)
	return out
}

// eachCode visits (id, code) pairs of a coded entity until fn returns false.
func (s *memoryState) eachCode(entity domain.EntityType, fn func(id, code string) bool) {
	switch entity {
	case domain.EntityAccession:
		for id, a := range s.accessions {
			if !fn(id, a.Code) {
				return
			}
		}
	case domain.EntityCross:
		for id, c := range s.crosses {
			if !fn(id, c.Code) {
				return
			}
		}
	case domain.EntitySeedBatch:
		for id, b := range s.seedBatches {
			if !fn(id, b.Code) {
				return
			}
		}
	case domain.EntitySeedling:
		for id, sd := range s.seedlings {
			if !fn(id, sd.Code) {
				return
			}
		}
	case domain.EntityCloneBatch:
		for id, b := range s.cloneBatches {
			if !fn(id, b.Code) {
				return
			}
		}
	}
}

// codeTaken reports whether another record of the entity already holds code.
func (s *memoryState) codeTaken(entity domain.EntityType, code, exceptID string) bool {
	taken := false
	s.eachCode(entity, func(id, c string) bool {
		if c == code && id != exceptID {
			taken = true
			return false
		}
		return true
	})
	return taken
}
