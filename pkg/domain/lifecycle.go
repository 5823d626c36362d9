package domain

import "strings"

// SelectionStatus is an operator's disposition on a seedling.
type SelectionStatus string

// Canonical seedling selection states.
const (
	SelectionGrowing   SelectionStatus = "GROWING"
	SelectionKeeper    SelectionStatus = "KEEPER"
	SelectionHoldback  SelectionStatus = "HOLDBACK"
	SelectionCulled    SelectionStatus = "CULLED"
	SelectionGraduated SelectionStatus = "GRADUATED"
)

// SeedBatchStatus enumerates sowing progress.
type SeedBatchStatus string

// Canonical seed batch states.
const (
	SeedBatchSown        SeedBatchStatus = "SOWN"
	SeedBatchGerminating SeedBatchStatus = "GERMINATING"
	SeedBatchComplete    SeedBatchStatus = "COMPLETE"
	SeedBatchFailed      SeedBatchStatus = "FAILED"
)

// CloneBatchStatus enumerates clone batch progress.
type CloneBatchStatus string

// Canonical clone batch states.
const (
	CloneBatchGrowing  CloneBatchStatus = "GROWING"
	CloneBatchComplete CloneBatchStatus = "COMPLETE"
	CloneBatchFailed   CloneBatchStatus = "FAILED"
)

// PropagationMethod is the vegetative (or seed) method a clone batch used.
type PropagationMethod string

// Supported clone batch propagation methods.
const (
	MethodTissueCulture PropagationMethod = "TC"
	MethodCutting       PropagationMethod = "CUTTING"
	MethodDivision      PropagationMethod = "DIVISION"
	MethodOffset        PropagationMethod = "OFFSET"
	MethodSeed          PropagationMethod = "SEED"
)

// PropagationType is the accession-level propagation vocabulary.
type PropagationType string

// Accession propagation types. Offsets are recorded as divisions.
const (
	PropagationSeed          PropagationType = "seed"
	PropagationCutting       PropagationType = "cutting"
	PropagationTissueCulture PropagationType = "tissue_culture"
	PropagationDivision      PropagationType = "division"
	PropagationPurchase      PropagationType = "purchase"
)

// OriginMode says how an accession came into the collection.
type OriginMode string

// Accession origin modes.
const (
	OriginDirect OriginMode = "direct"
	OriginSeed   OriginMode = "seed"
	OriginClone  OriginMode = "clone"
)

// Generation is a lineage depth label such as F1, F2 or S1.
type Generation string

// Generation labels produced by inference.
const (
	GenerationF1 Generation = "F1"
	GenerationF2 Generation = "F2"
	GenerationS1 Generation = "S1"
)

var seedlingTransitions = map[SelectionStatus][]SelectionStatus{
	SelectionGrowing:   {SelectionKeeper, SelectionHoldback, SelectionCulled},
	SelectionKeeper:    {SelectionGrowing, SelectionHoldback, SelectionCulled, SelectionGraduated},
	SelectionHoldback:  {SelectionGrowing, SelectionKeeper, SelectionCulled, SelectionGraduated},
	SelectionCulled:    nil,
	SelectionGraduated: nil,
}

var seedBatchTransitions = map[SeedBatchStatus][]SeedBatchStatus{
	SeedBatchSown:        {SeedBatchGerminating, SeedBatchFailed},
	SeedBatchGerminating: {SeedBatchComplete, SeedBatchFailed},
	SeedBatchComplete:    nil,
	SeedBatchFailed:      nil,
}

var cloneBatchTransitions = map[CloneBatchStatus][]CloneBatchStatus{
	CloneBatchGrowing:  {CloneBatchComplete, CloneBatchFailed},
	CloneBatchComplete: {CloneBatchGrowing},
	CloneBatchFailed:   {CloneBatchGrowing},
}

// Valid reports whether s is a member of the closed selection vocabulary.
func (s SelectionStatus) Valid() bool {
	_, ok := seedlingTransitions[s]
	return ok
}

// CanTransition reports whether the seedling table allows from -> to. A
// same-state transition is always accepted for non-terminal states.
func (s SelectionStatus) CanTransition(to SelectionStatus) bool {
	return allowed(seedlingTransitions, s, to)
}

// Graduatable reports whether a seedling in this state may graduate.
func (s SelectionStatus) Graduatable() bool {
	return s.CanTransition(SelectionGraduated) && s != SelectionGraduated
}

// Valid reports whether s is a member of the closed seed batch vocabulary.
func (s SeedBatchStatus) Valid() bool {
	_, ok := seedBatchTransitions[s]
	return ok
}

// CanTransition reports whether the seed batch table allows from -> to.
func (s SeedBatchStatus) CanTransition(to SeedBatchStatus) bool {
	return allowed(seedBatchTransitions, s, to)
}

// Valid reports whether s is a member of the closed clone batch vocabulary.
func (s CloneBatchStatus) Valid() bool {
	_, ok := cloneBatchTransitions[s]
	return ok
}

// CanTransition reports whether the clone batch table allows from -> to.
func (s CloneBatchStatus) CanTransition(to CloneBatchStatus) bool {
	return allowed(cloneBatchTransitions, s, to)
}

func allowed[S comparable](table map[S][]S, from, to S) bool {
	next, ok := table[from]
	if !ok {
		return false
	}
	if from == to {
		return len(next) > 0
	}
	for _, candidate := range next {
		if candidate == to {
			return true
		}
	}
	return false
}

// Valid reports whether m is a supported propagation method.
func (m PropagationMethod) Valid() bool {
	switch m {
	case MethodTissueCulture, MethodCutting, MethodDivision, MethodOffset, MethodSeed:
		return true
	}
	return false
}

// AccessionPropagation maps a batch method onto the accession vocabulary.
// OFFSET collapses into the division category.
func (m PropagationMethod) AccessionPropagation() PropagationType {
	switch m {
	case MethodTissueCulture:
		return PropagationTissueCulture
	case MethodCutting:
		return PropagationCutting
	case MethodDivision, MethodOffset:
		return PropagationDivision
	case MethodSeed:
		return PropagationSeed
	}
	return PropagationType(strings.ToLower(string(m)))
}
