package memory

import (
	"lineagecore/pkg/domain"
	"slices"
)

type memoryState struct {
	accessions   map[string]domain.Accession
	crosses      map[string]domain.Cross
	harvests     map[string]domain.Harvest
	seedBatches  map[string]domain.SeedBatch
	seedlings    map[string]domain.Seedling
	cloneBatches map[string]domain.CloneBatch
	careLogs     map[string]domain.CareLog
	photos       map[string]domain.Photo
}

// Snapshot captures a point-in-time clone of the store state. Each field is
// one persistence bucket.
type Snapshot struct {
	Accessions   map[string]domain.Accession  `json:"accessions"`
	Crosses      map[string]domain.Cross      `json:"crosses"`
	Harvests     map[string]domain.Harvest    `json:"harvests"`
	SeedBatches  map[string]domain.SeedBatch  `json:"seed_batches"`
	Seedlings    map[string]domain.Seedling   `json:"seedlings"`
	CloneBatches map[string]domain.CloneBatch `json:"clone_batches"`
	CareLogs     map[string]domain.CareLog    `json:"care_logs"`
	Photos       map[string]domain.Photo      `json:"photos"`
}

// BucketNames lists the snapshot buckets in a stable order.
var BucketNames = []string{
	"accessions",
	"crosses",
	"harvests",
	"seed_batches",
	"seedlings",
	"clone_batches",
	"care_logs",
	"photos",
}

// Buckets maps each bucket name onto a pointer to the matching snapshot
// field, suitable as a json.Marshal source or json.Unmarshal target.
func (s *Snapshot) Buckets() map[string]any {
	return map[string]any{
		"accessions":    &s.Accessions,
		"crosses":       &s.Crosses,
		"harvests":      &s.Harvests,
		"seed_batches":  &s.SeedBatches,
		"seedlings":     &s.Seedlings,
		"clone_batches": &s.CloneBatches,
		"care_logs":     &s.CareLogs,
		"photos":        &s.Photos,
	}
}

// Len returns the total number of records across all buckets.
func (s Snapshot) Len() int {
	return len(s.Accessions) + len(s.Crosses) + len(s.Harvests) + len(s.SeedBatches) +
		len(s.Seedlings) + len(s.CloneBatches) + len(s.CareLogs) + len(s.Photos)
}

func newMemoryState() memoryState {
	return memoryState{
		accessions:   make(map[string]domain.Accession),
		crosses:      make(map[string]domain.Cross),
		harvests:     make(map[string]domain.Harvest),
		seedBatches:  make(map[string]domain.SeedBatch),
		seedlings:    make(map[string]domain.Seedling),
		cloneBatches: make(map[string]domain.CloneBatch),
		careLogs:     make(map[string]domain.CareLog),
		photos:       make(map[string]domain.Photo),
	}
}

func (s memoryState) clone() memoryState {
	return memoryState{
		accessions:   cloneMap(s.accessions, cloneAccession),
		crosses:      cloneMap(s.crosses, cloneCross),
		harvests:     cloneMap(s.harvests, cloneHarvest),
		seedBatches:  cloneMap(s.seedBatches, cloneSeedBatch),
		seedlings:    cloneMap(s.seedlings, cloneSeedling),
		cloneBatches: cloneMap(s.cloneBatches, cloneCloneBatch),
		careLogs:     cloneMap(s.careLogs, cloneCareLog),
		photos:       cloneMap(s.photos, clonePhoto),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	c := state.clone()
	return Snapshot{
		Accessions:   c.accessions,
		Crosses:      c.crosses,
		Harvests:     c.harvests,
		SeedBatches:  c.seedBatches,
		Seedlings:    c.seedlings,
		CloneBatches: c.cloneBatches,
		CareLogs:     c.careLogs,
		Photos:       c.photos,
	}
}

// memoryStateFromSnapshot tolerates nil buckets, which older or partial
// snapshots leave behind.
func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := memoryState{
		accessions:   s.Accessions,
		crosses:      s.Crosses,
		harvests:     s.Harvests,
		seedBatches:  s.SeedBatches,
		seedlings:    s.Seedlings,
		cloneBatches: s.CloneBatches,
		careLogs:     s.CareLogs,
		photos:       s.Photos,
	}.clone()
	for id, seedling := range state.seedlings {
		if seedling.Photos == nil {
			seedling.Photos = []string{}
			state.seedlings[id] = seedling
		}
	}
	return state
}

func cloneMap[T any](in map[string]T, clone func(T) T) map[string]T {
	out := make(map[string]T, len(in))
	for k, v := range in {
		out[k] = clone(v)
	}
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneAccession(a domain.Accession) domain.Accession {
	a.Section = clonePtr(a.Section)
	a.Species = clonePtr(a.Species)
	a.DisplayName = clonePtr(a.DisplayName)
	a.Generation = clonePtr(a.Generation)
	a.FemaleParentID = clonePtr(a.FemaleParentID)
	a.MaleParentID = clonePtr(a.MaleParentID)
	a.OriginCrossID = clonePtr(a.OriginCrossID)
	a.CloneSourceID = clonePtr(a.CloneSourceID)
	a.OriginCloneBatchID = clonePtr(a.OriginCloneBatchID)
	return a
}

func cloneCross(c domain.Cross) domain.Cross {
	c.PollinationMethod = clonePtr(c.PollinationMethod)
	return c
}

func cloneHarvest(h domain.Harvest) domain.Harvest {
	h.BerryCount = clonePtr(h.BerryCount)
	h.SeedViability = clonePtr(h.SeedViability)
	return h
}

func cloneSeedBatch(b domain.SeedBatch) domain.SeedBatch {
	b.Container = clonePtr(b.Container)
	b.Temperature = clonePtr(b.Temperature)
	b.Humidity = clonePtr(b.Humidity)
	b.GerminationRate = clonePtr(b.GerminationRate)
	b.FirstEmergence = clonePtr(b.FirstEmergence)
	return b
}

func cloneSeedling(s domain.Seedling) domain.Seedling {
	s.PositionLabel = clonePtr(s.PositionLabel)
	s.LeafCount = clonePtr(s.LeafCount)
	s.PotSize = clonePtr(s.PotSize)
	s.SelectionDate = clonePtr(s.SelectionDate)
	s.GraduatedToAccessionID = clonePtr(s.GraduatedToAccessionID)
	s.GraduationDate = clonePtr(s.GraduationDate)
	s.Photos = slices.Clone(s.Photos)
	if s.Photos == nil {
		s.Photos = []string{}
	}
	return s
}

func cloneCloneBatch(b domain.CloneBatch) domain.CloneBatch {
	b.SourceAccessionID = clonePtr(b.SourceAccessionID)
	b.ExternalSource = clonePtr(b.ExternalSource)
	b.Species = clonePtr(b.Species)
	b.CultivarName = clonePtr(b.CultivarName)
	b.CurrentCount = clonePtr(b.CurrentCount)
	return b
}

func cloneCareLog(l domain.CareLog) domain.CareLog {
	l.InputEC = clonePtr(l.InputEC)
	l.InputPH = clonePtr(l.InputPH)
	l.OutputEC = clonePtr(l.OutputEC)
	l.OutputPH = clonePtr(l.OutputPH)
	l.Dosage = clonePtr(l.Dosage)
	l.Unit = clonePtr(l.Unit)
	l.Provenance = clonePtr(l.Provenance)
	return l
}

func clonePhoto(p domain.Photo) domain.Photo {
	p.ThumbnailPath = clonePtr(p.ThumbnailPath)
	p.DateTaken = clonePtr(p.DateTaken)
	p.Provenance = clonePtr(p.Provenance)
	return p
}
