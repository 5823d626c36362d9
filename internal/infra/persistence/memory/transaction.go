package memory

import (
	"fmt"
	"lineagecore/pkg/domain"
	"strings"
	"time"
)

// transaction represents a mutation set applied to a private copy of the
// store state. It enforces the relational contract: unique codes, foreign
// keys and restricted deletes.
type transaction struct {
	store   *Store
	state   memoryState
	changes []domain.Change
	now     time.Time
}

func (tx *transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() domain.TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) stampNew(base *domain.Base) {
	if base.ID == "" {
		base.ID = tx.store.newID()
	}
	base.CreatedAt = tx.now
	base.UpdatedAt = tx.now
}

func (tx *transaction) requireCode(entity domain.EntityType, id, code string) error {
	if strings.TrimSpace(code) == "" {
		return domain.InvalidRequest(entity, id, "%s code is required", entity)
	}
	if tx.state.codeTaken(entity, code, id) {
		return domain.DuplicateIdentifier(entity, code)
	}
	return nil
}

func requireRef[T any](m map[string]T, entity domain.EntityType, id *string) error {
	if id == nil {
		return nil
	}
	if _, ok := m[*id]; !ok {
		return domain.NotFound(entity, *id)
	}
	return nil
}

func (tx *transaction) accessionRefs(a domain.Accession) error {
	for _, ref := range []*string{a.FemaleParentID, a.MaleParentID, a.CloneSourceID} {
		if err := requireRef(tx.state.accessions, domain.EntityAccession, ref); err != nil {
			return err
		}
	}
	if err := requireRef(tx.state.crosses, domain.EntityCross, a.OriginCrossID); err != nil {
		return err
	}
	return requireRef(tx.state.cloneBatches, domain.EntityCloneBatch, a.OriginCloneBatchID)
}

// CreateAccession stores a new accession.
func (tx *transaction) CreateAccession(a domain.Accession) (domain.Accession, error) {
	tx.stampNew(&a.Base)
	if _, exists := tx.state.accessions[a.ID]; exists {
		return domain.Accession{}, domain.Conflict(domain.EntityAccession, a.ID, "accession %q already exists", a.ID)
	}
	if err := tx.requireCode(domain.EntityAccession, a.ID, a.Code); err != nil {
		return domain.Accession{}, err
	}
	if err := tx.accessionRefs(a); err != nil {
		return domain.Accession{}, err
	}
	tx.state.accessions[a.ID] = cloneAccession(a)
	tx.recordChange(domain.Change{Entity: domain.EntityAccession, Action: domain.ActionCreate, After: cloneAccession(a)})
	return cloneAccession(a), nil
}

// UpdateAccession mutates an accession. The code, the origin mode and every
// lineage reference are immutable once assigned.
func (tx *transaction) UpdateAccession(id string, mutator func(*domain.Accession) error) (domain.Accession, error) {
	current, ok := tx.state.accessions[id]
	if !ok {
		return domain.Accession{}, domain.NotFound(domain.EntityAccession, id)
	}
	before := cloneAccession(current)
	if err := mutator(&current); err != nil {
		return domain.Accession{}, err
	}
	if current.Code != before.Code {
		return domain.Accession{}, domain.Conflict(domain.EntityAccession, id, "accession code %s is immutable", before.Code)
	}
	if field := changedLineage(before, current); field != "" {
		return domain.Accession{}, domain.Conflict(domain.EntityAccession, id, "accession %s %s is immutable", before.Code, field)
	}
	if err := tx.accessionRefs(current); err != nil {
		return domain.Accession{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.accessions[id] = cloneAccession(current)
	tx.recordChange(domain.Change{Entity: domain.EntityAccession, Action: domain.ActionUpdate, Before: before, After: cloneAccession(current)})
	return cloneAccession(current), nil
}

// changedLineage names the first lineage field of before that after no
// longer carries. Unset references may still be filled in.
func changedLineage(before, after domain.Accession) string {
	if before.Origin != "" && after.Origin != before.Origin {
		return "origin"
	}
	refs := []struct {
		name          string
		before, after *string
	}{
		{"female parent", before.FemaleParentID, after.FemaleParentID},
		{"male parent", before.MaleParentID, after.MaleParentID},
		{"origin cross", before.OriginCrossID, after.OriginCrossID},
		{"clone source", before.CloneSourceID, after.CloneSourceID},
		{"origin clone batch", before.OriginCloneBatchID, after.OriginCloneBatchID},
	}
	for _, ref := range refs {
		if ref.before != nil && (ref.after == nil || *ref.after != *ref.before) {
			return ref.name
		}
	}
	return ""
}

func (tx *transaction) crossRefs(c domain.Cross) error {
	if err := requireRef(tx.state.accessions, domain.EntityAccession, &c.FemaleParentID); err != nil {
		return err
	}
	return requireRef(tx.state.accessions, domain.EntityAccession, &c.MaleParentID)
}

// CreateCross stores a new cross.
func (tx *transaction) CreateCross(c domain.Cross) (domain.Cross, error) {
	tx.stampNew(&c.Base)
	if _, exists := tx.state.crosses[c.ID]; exists {
		return domain.Cross{}, domain.Conflict(domain.EntityCross, c.ID, "cross %q already exists", c.ID)
	}
	if err := tx.requireCode(domain.EntityCross, c.ID, c.Code); err != nil {
		return domain.Cross{}, err
	}
	if err := tx.crossRefs(c); err != nil {
		return domain.Cross{}, err
	}
	tx.state.crosses[c.ID] = cloneCross(c)
	tx.recordChange(domain.Change{Entity: domain.EntityCross, Action: domain.ActionCreate, After: cloneCross(c)})
	return cloneCross(c), nil
}

// UpdateCross mutates a cross, keeping its code unique.
func (tx *transaction) UpdateCross(id string, mutator func(*domain.Cross) error) (domain.Cross, error) {
	current, ok := tx.state.crosses[id]
	if !ok {
		return domain.Cross{}, domain.NotFound(domain.EntityCross, id)
	}
	before := cloneCross(current)
	if err := mutator(&current); err != nil {
		return domain.Cross{}, err
	}
	if err := tx.requireCode(domain.EntityCross, id, current.Code); err != nil {
		return domain.Cross{}, err
	}
	if err := tx.crossRefs(current); err != nil {
		return domain.Cross{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.crosses[id] = cloneCross(current)
	tx.recordChange(domain.Change{Entity: domain.EntityCross, Action: domain.ActionUpdate, Before: before, After: cloneCross(current)})
	return cloneCross(current), nil
}

// DeleteCross removes a cross that has no harvests and no offspring.
func (tx *transaction) DeleteCross(id string) error {
	current, ok := tx.state.crosses[id]
	if !ok {
		return domain.NotFound(domain.EntityCross, id)
	}
	for _, a := range tx.state.accessions {
		if a.OriginCrossID != nil && *a.OriginCrossID == id {
			return domain.Conflict(domain.EntityCross, id, "cross %s still referenced by accession %s", current.Code, a.Code)
		}
	}
	for _, h := range tx.state.harvests {
		if h.CrossID == id {
			return domain.Conflict(domain.EntityCross, id, "cross %s still owns harvest %d", current.Code, h.HarvestNumber)
		}
	}
	delete(tx.state.crosses, id)
	tx.recordChange(domain.Change{Entity: domain.EntityCross, Action: domain.ActionDelete, Before: cloneCross(current)})
	return nil
}

func (tx *transaction) harvestConstraints(h domain.Harvest) error {
	if _, ok := tx.state.crosses[h.CrossID]; !ok {
		return domain.NotFound(domain.EntityCross, h.CrossID)
	}
	for id, other := range tx.state.harvests {
		if id != h.ID && other.CrossID == h.CrossID && other.HarvestNumber == h.HarvestNumber {
			return domain.DuplicateIdentifier(domain.EntityHarvest, fmt.Sprintf("%s#%d", h.CrossID, h.HarvestNumber))
		}
	}
	return nil
}

// CreateHarvest stores a harvest. Harvest numbers are unique per cross.
func (tx *transaction) CreateHarvest(h domain.Harvest) (domain.Harvest, error) {
	tx.stampNew(&h.Base)
	if _, exists := tx.state.harvests[h.ID]; exists {
		return domain.Harvest{}, domain.Conflict(domain.EntityHarvest, h.ID, "harvest %q already exists", h.ID)
	}
	if err := tx.harvestConstraints(h); err != nil {
		return domain.Harvest{}, err
	}
	tx.state.harvests[h.ID] = cloneHarvest(h)
	tx.recordChange(domain.Change{Entity: domain.EntityHarvest, Action: domain.ActionCreate, After: cloneHarvest(h)})
	return cloneHarvest(h), nil
}

// UpdateHarvest mutates a harvest.
func (tx *transaction) UpdateHarvest(id string, mutator func(*domain.Harvest) error) (domain.Harvest, error) {
	current, ok := tx.state.harvests[id]
	if !ok {
		return domain.Harvest{}, domain.NotFound(domain.EntityHarvest, id)
	}
	before := cloneHarvest(current)
	if err := mutator(&current); err != nil {
		return domain.Harvest{}, err
	}
	current.ID = id
	if err := tx.harvestConstraints(current); err != nil {
		return domain.Harvest{}, err
	}
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.harvests[id] = cloneHarvest(current)
	tx.recordChange(domain.Change{Entity: domain.EntityHarvest, Action: domain.ActionUpdate, Before: before, After: cloneHarvest(current)})
	return cloneHarvest(current), nil
}

// DeleteHarvest removes a harvest that owns no seed batches.
func (tx *transaction) DeleteHarvest(id string) error {
	current, ok := tx.state.harvests[id]
	if !ok {
		return domain.NotFound(domain.EntityHarvest, id)
	}
	for _, b := range tx.state.seedBatches {
		if b.HarvestID == id {
			return domain.Conflict(domain.EntityHarvest, id, "harvest still owns seed batch %s", b.Code)
		}
	}
	delete(tx.state.harvests, id)
	tx.recordChange(domain.Change{Entity: domain.EntityHarvest, Action: domain.ActionDelete, Before: cloneHarvest(current)})
	return nil
}

// CreateSeedBatch stores a seed batch.
func (tx *transaction) CreateSeedBatch(b domain.SeedBatch) (domain.SeedBatch, error) {
	tx.stampNew(&b.Base)
	if _, exists := tx.state.seedBatches[b.ID]; exists {
		return domain.SeedBatch{}, domain.Conflict(domain.EntitySeedBatch, b.ID, "seed batch %q already exists", b.ID)
	}
	if err := tx.requireCode(domain.EntitySeedBatch, b.ID, b.Code); err != nil {
		return domain.SeedBatch{}, err
	}
	if _, ok := tx.state.harvests[b.HarvestID]; !ok {
		return domain.SeedBatch{}, domain.NotFound(domain.EntityHarvest, b.HarvestID)
	}
	tx.state.seedBatches[b.ID] = cloneSeedBatch(b)
	tx.recordChange(domain.Change{Entity: domain.EntitySeedBatch, Action: domain.ActionCreate, After: cloneSeedBatch(b)})
	return cloneSeedBatch(b), nil
}

// UpdateSeedBatch mutates a seed batch.
func (tx *transaction) UpdateSeedBatch(id string, mutator func(*domain.SeedBatch) error) (domain.SeedBatch, error) {
	current, ok := tx.state.seedBatches[id]
	if !ok {
		return domain.SeedBatch{}, domain.NotFound(domain.EntitySeedBatch, id)
	}
	before := cloneSeedBatch(current)
	if err := mutator(&current); err != nil {
		return domain.SeedBatch{}, err
	}
	if err := tx.requireCode(domain.EntitySeedBatch, id, current.Code); err != nil {
		return domain.SeedBatch{}, err
	}
	if _, ok := tx.state.harvests[current.HarvestID]; !ok {
		return domain.SeedBatch{}, domain.NotFound(domain.EntityHarvest, current.HarvestID)
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.seedBatches[id] = cloneSeedBatch(current)
	tx.recordChange(domain.Change{Entity: domain.EntitySeedBatch, Action: domain.ActionUpdate, Before: before, After: cloneSeedBatch(current)})
	return cloneSeedBatch(current), nil
}

// DeleteSeedBatch removes a seed batch that owns no seedlings.
func (tx *transaction) DeleteSeedBatch(id string) error {
	current, ok := tx.state.seedBatches[id]
	if !ok {
		return domain.NotFound(domain.EntitySeedBatch, id)
	}
	for _, s := range tx.state.seedlings {
		if s.SeedBatchID == id {
			return domain.Conflict(domain.EntitySeedBatch, id, "seed batch %s still owns seedling %s", current.Code, s.Code)
		}
	}
	delete(tx.state.seedBatches, id)
	tx.recordChange(domain.Change{Entity: domain.EntitySeedBatch, Action: domain.ActionDelete, Before: cloneSeedBatch(current)})
	return nil
}

func (tx *transaction) seedlingRefs(s domain.Seedling) error {
	if _, ok := tx.state.seedBatches[s.SeedBatchID]; !ok {
		return domain.NotFound(domain.EntitySeedBatch, s.SeedBatchID)
	}
	return requireRef(tx.state.accessions, domain.EntityAccession, s.GraduatedToAccessionID)
}

// CreateSeedling stores a seedling.
func (tx *transaction) CreateSeedling(s domain.Seedling) (domain.Seedling, error) {
	tx.stampNew(&s.Base)
	if _, exists := tx.state.seedlings[s.ID]; exists {
		return domain.Seedling{}, domain.Conflict(domain.EntitySeedling, s.ID, "seedling %q already exists", s.ID)
	}
	if err := tx.requireCode(domain.EntitySeedling, s.ID, s.Code); err != nil {
		return domain.Seedling{}, err
	}
	if err := tx.seedlingRefs(s); err != nil {
		return domain.Seedling{}, err
	}
	tx.state.seedlings[s.ID] = cloneSeedling(s)
	tx.recordChange(domain.Change{Entity: domain.EntitySeedling, Action: domain.ActionCreate, After: cloneSeedling(s)})
	return cloneSeedling(s), nil
}

// UpdateSeedling mutates a seedling.
func (tx *transaction) UpdateSeedling(id string, mutator func(*domain.Seedling) error) (domain.Seedling, error) {
	current, ok := tx.state.seedlings[id]
	if !ok {
		return domain.Seedling{}, domain.NotFound(domain.EntitySeedling, id)
	}
	before := cloneSeedling(current)
	if err := mutator(&current); err != nil {
		return domain.Seedling{}, err
	}
	if err := tx.requireCode(domain.EntitySeedling, id, current.Code); err != nil {
		return domain.Seedling{}, err
	}
	if err := tx.seedlingRefs(current); err != nil {
		return domain.Seedling{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.seedlings[id] = cloneSeedling(current)
	tx.recordChange(domain.Change{Entity: domain.EntitySeedling, Action: domain.ActionUpdate, Before: before, After: cloneSeedling(current)})
	return cloneSeedling(current), nil
}

// DeleteSeedling removes a seedling that never graduated.
func (tx *transaction) DeleteSeedling(id string) error {
	current, ok := tx.state.seedlings[id]
	if !ok {
		return domain.NotFound(domain.EntitySeedling, id)
	}
	if current.Graduated() {
		return domain.Conflict(domain.EntitySeedling, id, "seedling %s graduated to accession %s", current.Code, *current.GraduatedToAccessionID)
	}
	delete(tx.state.seedlings, id)
	tx.recordChange(domain.Change{Entity: domain.EntitySeedling, Action: domain.ActionDelete, Before: cloneSeedling(current)})
	return nil
}

// CreateCloneBatch stores a clone batch.
func (tx *transaction) CreateCloneBatch(b domain.CloneBatch) (domain.CloneBatch, error) {
	tx.stampNew(&b.Base)
	if _, exists := tx.state.cloneBatches[b.ID]; exists {
		return domain.CloneBatch{}, domain.Conflict(domain.EntityCloneBatch, b.ID, "clone batch %q already exists", b.ID)
	}
	if err := tx.requireCode(domain.EntityCloneBatch, b.ID, b.Code); err != nil {
		return domain.CloneBatch{}, err
	}
	if err := requireRef(tx.state.accessions, domain.EntityAccession, b.SourceAccessionID); err != nil {
		return domain.CloneBatch{}, err
	}
	tx.state.cloneBatches[b.ID] = cloneCloneBatch(b)
	tx.recordChange(domain.Change{Entity: domain.EntityCloneBatch, Action: domain.ActionCreate, After: cloneCloneBatch(b)})
	return cloneCloneBatch(b), nil
}

// UpdateCloneBatch mutates a clone batch.
func (tx *transaction) UpdateCloneBatch(id string, mutator func(*domain.CloneBatch) error) (domain.CloneBatch, error) {
	current, ok := tx.state.cloneBatches[id]
	if !ok {
		return domain.CloneBatch{}, domain.NotFound(domain.EntityCloneBatch, id)
	}
	before := cloneCloneBatch(current)
	if err := mutator(&current); err != nil {
		return domain.CloneBatch{}, err
	}
	if err := tx.requireCode(domain.EntityCloneBatch, id, current.Code); err != nil {
		return domain.CloneBatch{}, err
	}
	if err := requireRef(tx.state.accessions, domain.EntityAccession, current.SourceAccessionID); err != nil {
		return domain.CloneBatch{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	tx.state.cloneBatches[id] = cloneCloneBatch(current)
	tx.recordChange(domain.Change{Entity: domain.EntityCloneBatch, Action: domain.ActionUpdate, Before: before, After: cloneCloneBatch(current)})
	return cloneCloneBatch(current), nil
}

// DeleteCloneBatch removes a clone batch with no graduated accessions. Its
// care logs and photos are removed with it.
func (tx *transaction) DeleteCloneBatch(id string) error {
	current, ok := tx.state.cloneBatches[id]
	if !ok {
		return domain.NotFound(domain.EntityCloneBatch, id)
	}
	for _, a := range tx.state.accessions {
		if a.OriginCloneBatchID != nil && *a.OriginCloneBatchID == id {
			return domain.Conflict(domain.EntityCloneBatch, id, "clone batch %s still referenced by accession %s", current.Code, a.Code)
		}
	}
	owner := domain.OwnerRef{Kind: domain.EntityCloneBatch, ID: id}
	for logID, l := range tx.state.careLogs {
		if l.Owner == owner {
			delete(tx.state.careLogs, logID)
			tx.recordChange(domain.Change{Entity: domain.EntityCareLog, Action: domain.ActionDelete, Before: cloneCareLog(l)})
		}
	}
	for photoID, p := range tx.state.photos {
		if p.Owner == owner {
			delete(tx.state.photos, photoID)
			tx.recordChange(domain.Change{Entity: domain.EntityPhoto, Action: domain.ActionDelete, Before: clonePhoto(p)})
		}
	}
	delete(tx.state.cloneBatches, id)
	tx.recordChange(domain.Change{Entity: domain.EntityCloneBatch, Action: domain.ActionDelete, Before: cloneCloneBatch(current)})
	return nil
}

func (tx *transaction) requireOwner(owner domain.OwnerRef) error {
	switch owner.Kind {
	case domain.EntityAccession:
		if _, ok := tx.state.accessions[owner.ID]; ok {
			return nil
		}
	case domain.EntityCloneBatch:
		if _, ok := tx.state.cloneBatches[owner.ID]; ok {
			return nil
		}
	default:
		return domain.InvalidRequest(owner.Kind, owner.ID, "%s cannot own care history", owner.Kind)
	}
	return domain.NotFound(owner.Kind, owner.ID)
}

// CreateCareLog stores a care-history entry for an accession or clone batch.
func (tx *transaction) CreateCareLog(l domain.CareLog) (domain.CareLog, error) {
	tx.stampNew(&l.Base)
	if _, exists := tx.state.careLogs[l.ID]; exists {
		return domain.CareLog{}, domain.Conflict(domain.EntityCareLog, l.ID, "care log %q already exists", l.ID)
	}
	if err := tx.requireOwner(l.Owner); err != nil {
		return domain.CareLog{}, err
	}
	tx.state.careLogs[l.ID] = cloneCareLog(l)
	tx.recordChange(domain.Change{Entity: domain.EntityCareLog, Action: domain.ActionCreate, After: cloneCareLog(l)})
	return cloneCareLog(l), nil
}

// CreatePhoto stores a photograph record for an accession or clone batch.
func (tx *transaction) CreatePhoto(p domain.Photo) (domain.Photo, error) {
	tx.stampNew(&p.Base)
	if _, exists := tx.state.photos[p.ID]; exists {
		return domain.Photo{}, domain.Conflict(domain.EntityPhoto, p.ID, "photo %q already exists", p.ID)
	}
	if err := tx.requireOwner(p.Owner); err != nil {
		return domain.Photo{}, err
	}
	tx.state.photos[p.ID] = clonePhoto(p)
	tx.recordChange(domain.Change{Entity: domain.EntityPhoto, Action: domain.ActionCreate, After: clonePhoto(p)})
	return clonePhoto(p), nil
}
