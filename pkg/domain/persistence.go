package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Implementations enforce unique codes
// and referential integrity the way a relational store would: creates with a
// taken code fail with DuplicateIdentifier, dangling references fail with
// NotFound and deletes of referenced rows fail with Conflict.
type Transaction interface {
	Snapshot() TransactionView
	CreateAccession(Accession) (Accession, error)
	UpdateAccession(id string, mutator func(*Accession) error) (Accession, error)
	CreateCross(Cross) (Cross, error)
	UpdateCross(id string, mutator func(*Cross) error) (Cross, error)
	DeleteCross(id string) error
	CreateHarvest(Harvest) (Harvest, error)
	UpdateHarvest(id string, mutator func(*Harvest) error) (Harvest, error)
	DeleteHarvest(id string) error
	CreateSeedBatch(SeedBatch) (SeedBatch, error)
	UpdateSeedBatch(id string, mutator func(*SeedBatch) error) (SeedBatch, error)
	DeleteSeedBatch(id string) error
	CreateSeedling(Seedling) (Seedling, error)
	UpdateSeedling(id string, mutator func(*Seedling) error) (Seedling, error)
	DeleteSeedling(id string) error
	CreateCloneBatch(CloneBatch) (CloneBatch, error)
	UpdateCloneBatch(id string, mutator func(*CloneBatch) error) (CloneBatch, error)
	DeleteCloneBatch(id string) error
	CreateCareLog(CareLog) (CareLog, error)
	CreatePhoto(Photo) (Photo, error)
}

// TransactionView provides read-only access to snapshot data for rules and
// service-level validation.
type TransactionView interface {
	FindAccession(id string) (Accession, bool)
	FindCross(id string) (Cross, bool)
	FindHarvest(id string) (Harvest, bool)
	FindSeedBatch(id string) (SeedBatch, bool)
	FindSeedling(id string) (Seedling, bool)
	FindCloneBatch(id string) (CloneBatch, bool)
	ListAccessions() []Accession
	ListCrosses() []Cross
	ListHarvests() []Harvest
	ListSeedBatches() []SeedBatch
	ListSeedlings() []Seedling
	ListCloneBatches() []CloneBatch
	ListCareLogs(owner OwnerRef) []CareLog
	ListPhotos(owner OwnerRef) []Photo
	// CodeInUse reports whether a code is taken for the given entity type.
	CodeInUse(entity EntityType, code string) bool
	// CodesWithPrefix returns every code of the entity type starting with prefix.
	CodesWithPrefix(entity EntityType, prefix string) []string
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
}
