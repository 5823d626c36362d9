// Package identifier allocates human-readable, year-scoped record codes such
// as ANT-2025-0042 and validates caller-supplied codes against the store.
package identifier

import (
	"fmt"
	"lineagecore/pkg/domain"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MaxAttempts bounds single-code allocation before IdentifierExhausted.
const MaxAttempts = 5

// Format describes the shape of one entity's codes: <Prefix>-<YEAR>-<seq>
// with the sequence zero padded to Width digits.
type Format struct {
	Prefix string
	Width  int
}

// DefaultFormats returns the code formats for every coded entity.
func DefaultFormats() map[domain.EntityType]Format {
	return map[domain.EntityType]Format{
		domain.EntityAccession:  {Prefix: "ANT", Width: 4},
		domain.EntityCross:      {Prefix: "CLX", Width: 3},
		domain.EntitySeedBatch:  {Prefix: "SDB", Width: 3},
		domain.EntitySeedling:   {Prefix: "SDL", Width: 4},
		domain.EntityCloneBatch: {Prefix: "CB", Width: 3},
	}
}

// Registry is the subset of a transaction view the generator consults.
type Registry interface {
	CodeInUse(entity domain.EntityType, code string) bool
	CodesWithPrefix(entity domain.EntityType, prefix string) []string
}

// Generator allocates codes. It is safe for concurrent use.
type Generator struct {
	formats map[domain.EntityType]Format

	mu     sync.Mutex
	scopes map[string]*sync.Mutex
}

// New constructs a Generator. Entries in overrides replace the defaults for
// their entity type.
func New(overrides map[domain.EntityType]Format) *Generator {
	formats := DefaultFormats()
	for entity, format := range overrides {
		if format.Prefix == "" {
			continue
		}
		if format.Width <= 0 {
			format.Width = formats[entity].Width
		}
		if format.Width <= 0 {
			format.Width = 4
		}
		formats[entity] = format
	}
	return &Generator{formats: formats, scopes: make(map[string]*sync.Mutex)}
}

// Format returns the configured format for entity.
func (g *Generator) Format(entity domain.EntityType) (Format, bool) {
	f, ok := g.formats[entity]
	return f, ok
}

// Scope returns the allocation scope key, e.g. ANT-2025.
func (g *Generator) Scope(entity domain.EntityType, at time.Time) (string, error) {
	f, ok := g.formats[entity]
	if !ok {
		return "", domain.InvalidRequest(entity, "", "no code format configured for %s", entity)
	}
	return fmt.Sprintf("%s-%d", f.Prefix, at.Year()), nil
}

// LockScope serializes allocations against one scope and returns the
// matching unlock function. Bulk allocation must run under this lock.
func (g *Generator) LockScope(entity domain.EntityType, at time.Time) func() {
	key := string(entity) + "/" + strconv.Itoa(at.Year())
	if f, ok := g.formats[entity]; ok {
		key = fmt.Sprintf("%s-%d", f.Prefix, at.Year())
	}
	g.mu.Lock()
	m, ok := g.scopes[key]
	if !ok {
		m = &sync.Mutex{}
		g.scopes[key] = m
	}
	g.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Next allocates one code for entity in the year of at. Each candidate is
// checked against the registry and the allocation gives up after MaxAttempts
// collisions.
func (g *Generator) Next(reg Registry, entity domain.EntityType, at time.Time) (string, error) {
	scope, err := g.Scope(entity, at)
	if err != nil {
		return "", err
	}
	f := g.formats[entity]
	seq := highestSequence(reg.CodesWithPrefix(entity, scope+"-"), scope+"-") + 1
	for attempt := 0; attempt < MaxAttempts; attempt++ {
		candidate := format(scope, f.Width, seq+attempt)
		if !reg.CodeInUse(entity, candidate) {
			return candidate, nil
		}
	}
	return "", domain.IdentifierExhausted(entity, scope, MaxAttempts)
}

// Reserve allocates n consecutive codes after the highest existing sequence
// of the scope. The registry is queried once; callers hold LockScope for the
// duration of the enclosing transaction so concurrent reservations cannot
// overlap.
func (g *Generator) Reserve(reg Registry, entity domain.EntityType, at time.Time, n int) ([]string, error) {
	if n <= 0 {
		return nil, domain.InvalidRequest(entity, "", "cannot reserve %d codes", n)
	}
	scope, err := g.Scope(entity, at)
	if err != nil {
		return nil, err
	}
	f := g.formats[entity]
	start := highestSequence(reg.CodesWithPrefix(entity, scope+"-"), scope+"-") + 1
	codes := make([]string, n)
	for i := range codes {
		codes[i] = format(scope, f.Width, start+i)
	}
	return codes, nil
}

// Validate checks caller-supplied codes: none may be blank, repeated within
// the request or already present in the registry. All codes are checked
// before the caller performs any write.
func (g *Generator) Validate(reg Registry, entity domain.EntityType, codes ...string) error {
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		code = strings.TrimSpace(code)
		if code == "" {
			return domain.InvalidRequest(entity, "", "%s code must not be blank", entity)
		}
		if _, dup := seen[code]; dup {
			return domain.DuplicateIdentifier(entity, code)
		}
		seen[code] = struct{}{}
		if reg.CodeInUse(entity, code) {
			return domain.DuplicateIdentifier(entity, code)
		}
	}
	return nil
}

func format(scope string, width, seq int) string {
	return fmt.Sprintf("%s-%0*d", scope, width, seq)
}

func highestSequence(codes []string, prefix string) int {
	highest := 0
	for _, code := range codes {
		n, err := strconv.Atoi(strings.TrimPrefix(code, prefix))
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}
