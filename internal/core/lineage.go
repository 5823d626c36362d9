package core

import (
	"context"
	"lineagecore/pkg/domain"
)

// Ancestor roles relative to the accession they were reached from.
const (
	RoleFemale      = "female"
	RoleMale        = "male"
	RoleCloneSource = "clone_source"
)

// Ancestor is one accession reached while walking up a lineage.
type Ancestor struct {
	Accession domain.Accession
	Depth     int
	Role      string
	ChildID   string
}

// Ancestors walks parent and clone-source references breadth first. Each
// accession is reported once, so self-pollination chains terminate. A
// maxDepth of zero or less walks the whole lineage.
func (s *Service) Ancestors(ctx context.Context, accessionID string, maxDepth int) ([]Ancestor, error) {
	var out []Ancestor
	err := s.view(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindAccession(accessionID); !ok {
			return domain.NotFound(domain.EntityAccession, accessionID)
		}
		visited := map[string]struct{}{accessionID: {}}
		frontier := []string{accessionID}
		for depth := 1; len(frontier) > 0 && (maxDepth <= 0 || depth <= maxDepth); depth++ {
			var next []string
			for _, childID := range frontier {
				child, _ := view.FindAccession(childID)
				for _, ref := range parentRefs(child) {
					if _, seen := visited[ref.id]; seen {
						continue
					}
					visited[ref.id] = struct{}{}
					parent, ok := view.FindAccession(ref.id)
					if !ok {
						continue
					}
					out = append(out, Ancestor{Accession: parent, Depth: depth, Role: ref.role, ChildID: childID})
					next = append(next, ref.id)
				}
			}
			frontier = next
		}
		return nil
	})
	return out, err
}

type parentRef struct {
	role string
	id   string
}

func parentRefs(a domain.Accession) []parentRef {
	var refs []parentRef
	if a.FemaleParentID != nil {
		refs = append(refs, parentRef{role: RoleFemale, id: *a.FemaleParentID})
	}
	if a.MaleParentID != nil {
		refs = append(refs, parentRef{role: RoleMale, id: *a.MaleParentID})
	}
	if a.CloneSourceID != nil {
		refs = append(refs, parentRef{role: RoleCloneSource, id: *a.CloneSourceID})
	}
	return refs
}

// PedigreeNode is one accession in a pedigree tree. Repeated marks an
// accession already expanded elsewhere in the tree; its parents are omitted.
type PedigreeNode struct {
	Accession   domain.Accession
	Repeated    bool
	Female      *PedigreeNode
	Male        *PedigreeNode
	CloneSource *PedigreeNode
}

// Pedigree builds the ancestry tree of an accession down to depth
// generations (unbounded when depth <= 0).
func (s *Service) Pedigree(ctx context.Context, accessionID string, depth int) (PedigreeNode, error) {
	var root PedigreeNode
	err := s.view(ctx, func(view domain.TransactionView) error {
		a, ok := view.FindAccession(accessionID)
		if !ok {
			return domain.NotFound(domain.EntityAccession, accessionID)
		}
		visited := make(map[string]struct{})
		root = *buildPedigree(view, a, depth, visited)
		return nil
	})
	return root, err
}

func buildPedigree(view domain.TransactionView, a domain.Accession, depth int, visited map[string]struct{}) *PedigreeNode {
	node := &PedigreeNode{Accession: a}
	if _, seen := visited[a.ID]; seen {
		node.Repeated = true
		return node
	}
	visited[a.ID] = struct{}{}
	if depth == 1 {
		return node
	}
	expand := func(id *string) *PedigreeNode {
		if id == nil {
			return nil
		}
		parent, ok := view.FindAccession(*id)
		if !ok {
			return nil
		}
		return buildPedigree(view, parent, depth-1, visited)
	}
	node.Female = expand(a.FemaleParentID)
	node.Male = expand(a.MaleParentID)
	node.CloneSource = expand(a.CloneSourceID)
	return node
}

// CrossOffspring returns the accessions graduated from a cross.
func (s *Service) CrossOffspring(ctx context.Context, crossID string) ([]domain.Accession, error) {
	var out []domain.Accession
	err := s.view(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindCross(crossID); !ok {
			return domain.NotFound(domain.EntityCross, crossID)
		}
		for _, a := range view.ListAccessions() {
			if a.OriginCrossID != nil && *a.OriginCrossID == crossID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out, err
}

// CloneBatchMembers returns the accessions graduated from a clone batch.
func (s *Service) CloneBatchMembers(ctx context.Context, batchID string) ([]domain.Accession, error) {
	var out []domain.Accession
	err := s.view(ctx, func(view domain.TransactionView) error {
		if _, ok := view.FindCloneBatch(batchID); !ok {
			return domain.NotFound(domain.EntityCloneBatch, batchID)
		}
		out = cloneMembers(view, batchID)
		return nil
	})
	return out, err
}

// CrossSummary aggregates the seed pipeline of one cross.
type CrossSummary struct {
	Cross          domain.Cross
	Harvests       int
	SeedsHarvested int
	SeedsSown      int
	SeedBatches    int
	Seedlings      int
	Graduated      int

	// GerminationRate is the percentage of sown seeds that produced a
	// seedling, nil when nothing was sown.
	GerminationRate *float64
}

// SummarizeCross counts harvests, seeds, seedlings and graduated offspring
// of a cross.
func (s *Service) SummarizeCross(ctx context.Context, crossID string) (CrossSummary, error) {
	var summary CrossSummary
	err := s.view(ctx, func(view domain.TransactionView) error {
		cross, ok := view.FindCross(crossID)
		if !ok {
			return domain.NotFound(domain.EntityCross, crossID)
		}
		summary = CrossSummary{Cross: cross, Graduated: countOffspring(view)[crossID]}
		for _, h := range harvestsOf(view, crossID) {
			summary.Harvests++
			summary.SeedsHarvested += h.SeedCount
			for _, b := range batchesOf(view, h.ID) {
				summary.SeedBatches++
				summary.SeedsSown += b.SeedCount
				summary.Seedlings += len(seedlingsOf(view, b.ID))
			}
		}
		summary.GerminationRate = germinationRate(summary.Seedlings, summary.SeedsSown)
		return nil
	})
	return summary, err
}
