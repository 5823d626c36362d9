// Package domain defines the persistent lineage entities, their closed status
// vocabularies, and the rule evaluation primitives used by lineagecore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityAccession identifies a permanently tracked plant record.
	EntityAccession EntityType = "accession"
	// EntityCross identifies a controlled pollination record.
	EntityCross EntityType = "cross"
	// EntityHarvest identifies a seed/fruit collection event of a cross.
	EntityHarvest EntityType = "harvest"
	// EntitySeedBatch identifies a sowing event from one harvest.
	EntitySeedBatch EntityType = "seed_batch"
	// EntitySeedling identifies a pre-accession germinated individual.
	EntitySeedling EntityType = "seedling"
	// EntityCloneBatch identifies a batch of vegetatively propagated individuals.
	EntityCloneBatch EntityType = "clone_batch"
	// EntityCareLog identifies a care-history record.
	EntityCareLog EntityType = "care_log"
	// EntityPhoto identifies a photograph record.
	EntityPhoto EntityType = "photo"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Accession is the canonical plant record. Exactly one origin mode applies:
// direct entry, seed origin (parents plus originating cross) or clone origin
// (optional source accession plus originating clone batch).
type Accession struct {
	Base
	Code               string          `json:"code"`
	OwnerID            string          `json:"owner_id"`
	Genus              string          `json:"genus,omitempty"`
	Section            *string         `json:"section,omitempty"`
	Species            *string         `json:"species,omitempty"`
	DisplayName        *string         `json:"display_name,omitempty"`
	HealthStatus       string          `json:"health_status"`
	Origin             OriginMode      `json:"origin"`
	Generation         *Generation     `json:"generation,omitempty"`
	FemaleParentID     *string         `json:"female_parent_id,omitempty"`
	MaleParentID       *string         `json:"male_parent_id,omitempty"`
	OriginCrossID      *string         `json:"origin_cross_id,omitempty"`
	CloneSourceID      *string         `json:"clone_source_id,omitempty"`
	OriginCloneBatchID *string         `json:"origin_clone_batch_id,omitempty"`
	PropagationType    PropagationType `json:"propagation_type,omitempty"`
	AccessionDate      time.Time       `json:"accession_date"`
	Notes              string          `json:"notes,omitempty"`
	Archived           bool            `json:"archived"`
}

// Name returns the label used when synthesizing offspring names.
func (a Accession) Name() string {
	if a.DisplayName != nil && *a.DisplayName != "" {
		return *a.DisplayName
	}
	if a.Species != nil && *a.Species != "" {
		return *a.Species
	}
	return "Unknown"
}

// SelfPollinated reports whether the accession descends from a single parent
// used as both female and male.
func (a Accession) SelfPollinated() bool {
	return a.FemaleParentID != nil && a.MaleParentID != nil && *a.FemaleParentID == *a.MaleParentID
}

// Cross records a controlled pollination between two parent accessions. The
// parents may be identical, denoting self-pollination.
type Cross struct {
	Base
	Code              string    `json:"code"`
	OwnerID           string    `json:"owner_id"`
	FemaleParentID    string    `json:"female_parent_id"`
	MaleParentID      string    `json:"male_parent_id"`
	CrossDate         time.Time `json:"cross_date"`
	CrossType         string    `json:"cross_type"`
	PollinationMethod *string   `json:"pollination_method,omitempty"`
	Notes             string    `json:"notes,omitempty"`
	// OffspringCount is derived: the live number of accessions whose
	// OriginCrossID references this cross.
	OffspringCount int `json:"offspring_count"`
}

// SelfPollination reports whether both parents are the same accession.
func (c Cross) SelfPollination() bool { return c.FemaleParentID == c.MaleParentID }

// Harvest is a seed or berry collection event belonging to one cross.
type Harvest struct {
	Base
	CrossID       string    `json:"cross_id"`
	HarvestNumber int       `json:"harvest_number"`
	HarvestDate   time.Time `json:"harvest_date"`
	BerryCount    *int      `json:"berry_count,omitempty"`
	SeedCount     int       `json:"seed_count"`
	SeedViability *string   `json:"seed_viability,omitempty"`
	Notes         string    `json:"notes,omitempty"`
}

// SeedBatch is a sowing event of seeds from one harvest.
type SeedBatch struct {
	Base
	Code        string          `json:"code"`
	HarvestID   string          `json:"harvest_id"`
	SowDate     time.Time       `json:"sow_date"`
	SeedCount   int             `json:"seed_count"`
	Substrate   string          `json:"substrate"`
	Container   *string         `json:"container,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Humidity    *float64        `json:"humidity,omitempty"`
	Status      SeedBatchStatus `json:"status"`
	Notes       string          `json:"notes,omitempty"`
	// GerminatedCount and GerminationRate are derived from the seedlings of
	// the batch. GerminationRate is a percentage and nil when SeedCount is 0.
	GerminatedCount int        `json:"germinated_count"`
	GerminationRate *float64   `json:"germination_rate,omitempty"`
	FirstEmergence  *time.Time `json:"first_emergence,omitempty"`
}

// Seedling is an individual germinated plant within a seed batch.
type Seedling struct {
	Base
	Code                   string          `json:"code"`
	SeedBatchID            string          `json:"seed_batch_id"`
	PositionLabel          *string         `json:"position_label,omitempty"`
	EmergenceDate          time.Time       `json:"emergence_date"`
	LeafCount              *int            `json:"leaf_count,omitempty"`
	PotSize                *string         `json:"pot_size,omitempty"`
	HealthStatus           string          `json:"health_status"`
	SelectionStatus        SelectionStatus `json:"selection_status"`
	SelectionDate          *time.Time      `json:"selection_date,omitempty"`
	SelectionNotes         string          `json:"selection_notes,omitempty"`
	GraduatedToAccessionID *string         `json:"graduated_to_accession_id,omitempty"`
	GraduationDate         *time.Time      `json:"graduation_date,omitempty"`
	Notes                  string          `json:"notes,omitempty"`
	Photos                 []string        `json:"photos"`
}

// Graduated reports whether the seedling already produced an accession.
func (s Seedling) Graduated() bool {
	return s.GraduatedToAccessionID != nil && *s.GraduatedToAccessionID != ""
}

// CloneBatch tracks vegetatively propagated individuals from one source.
type CloneBatch struct {
	Base
	Code              string            `json:"code"`
	OwnerID           string            `json:"owner_id"`
	Method            PropagationMethod `json:"method"`
	SourceAccessionID *string           `json:"source_accession_id,omitempty"`
	ExternalSource    *string           `json:"external_source,omitempty"`
	Species           *string           `json:"species,omitempty"`
	CultivarName      *string           `json:"cultivar_name,omitempty"`
	AcquiredDate      time.Time         `json:"acquired_date"`
	AcquiredCount     int               `json:"acquired_count"`
	CurrentCount      *int              `json:"current_count,omitempty"`
	Status            CloneBatchStatus  `json:"status"`
	Notes             string            `json:"notes,omitempty"`
}

// Capacity returns the number of individuals the batch can graduate in total.
func (b CloneBatch) Capacity() int {
	if b.CurrentCount != nil {
		return *b.CurrentCount
	}
	return b.AcquiredCount
}

// OwnerRef points a care log or photo at the record it belongs to.
type OwnerRef struct {
	Kind EntityType `json:"kind"`
	ID   string     `json:"id"`
}

// CareLog is one care-history entry attached to a clone batch or accession.
type CareLog struct {
	Base
	Owner       OwnerRef  `json:"owner"`
	Date        time.Time `json:"date"`
	Action      string    `json:"action"`
	InputEC     *float64  `json:"input_ec,omitempty"`
	InputPH     *float64  `json:"input_ph,omitempty"`
	OutputEC    *float64  `json:"output_ec,omitempty"`
	OutputPH    *float64  `json:"output_ph,omitempty"`
	Dosage      *float64  `json:"dosage,omitempty"`
	Unit        *string   `json:"unit,omitempty"`
	Details     string    `json:"details,omitempty"`
	PerformedBy string    `json:"performed_by,omitempty"`
	// Provenance names the batch code a copied record came from.
	Provenance *string `json:"provenance,omitempty"`
}

// Photo is a photograph record attached to a clone batch or accession. Only
// the storage reference is tracked here; bytes live in the blob store.
type Photo struct {
	Base
	Owner         OwnerRef   `json:"owner"`
	UploadedBy    string     `json:"uploaded_by"`
	StoragePath   string     `json:"storage_path"`
	ThumbnailPath *string    `json:"thumbnail_path,omitempty"`
	DateTaken     *time.Time `json:"date_taken,omitempty"`
	PhotoType     string     `json:"photo_type,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	Provenance    *string    `json:"provenance,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations captured in audit trail.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return "transaction blocked by rules: " + v.Message
		}
	}
	return "transaction blocked by rules"
}
