package identifier

import (
	"errors"
	"lineagecore/pkg/domain"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeRegistry struct {
	codes   map[string]bool
	lookups int
}

func newRegistry(codes ...string) *fakeRegistry {
	r := &fakeRegistry{codes: map[string]bool{}}
	for _, c := range codes {
		r.codes[c] = true
	}
	return r
}

func (r *fakeRegistry) CodeInUse(_ domain.EntityType, code string) bool { return r.codes[code] }

func (r *fakeRegistry) CodesWithPrefix(_ domain.EntityType, prefix string) []string {
	r.lookups++
	var out []string
	for c := range r.codes {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

var year2025 = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func TestNextContinuesHighestSequence(t *testing.T) {
	g := New(nil)
	reg := newRegistry("ANT-2025-0040", "ANT-2025-0041", "ANT-2024-0099", "ANT-2025-custom")
	code, err := g.Next(reg, domain.EntityAccession, year2025)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if code != "ANT-2025-0042" {
		t.Fatalf("expected ANT-2025-0042, got %s", code)
	}
}

func TestNextStartsFreshPerYear(t *testing.T) {
	g := New(nil)
	reg := newRegistry("CLX-2024-017")
	code, err := g.Next(reg, domain.EntityCross, year2025)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if code != "CLX-2025-001" {
		t.Fatalf("expected CLX-2025-001, got %s", code)
	}
}

type collidingRegistry struct{ *fakeRegistry }

func (collidingRegistry) CodeInUse(domain.EntityType, string) bool { return true }

func TestNextExhaustsAfterBoundedRetries(t *testing.T) {
	g := New(nil)
	_, err := g.Next(collidingRegistry{newRegistry()}, domain.EntitySeedling, year2025)
	if !errors.Is(err, domain.ErrIdentifierExhausted) {
		t.Fatalf("expected identifier exhausted, got %v", err)
	}
}

func TestReserveQueriesOnceAndAllocatesConsecutively(t *testing.T) {
	g := New(nil)
	reg := newRegistry("ANT-2025-0007")
	codes, err := g.Reserve(reg, domain.EntityAccession, year2025, 3)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	want := []string{"ANT-2025-0008", "ANT-2025-0009", "ANT-2025-0010"}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("code %d: got %s want %s", i, codes[i], want[i])
		}
	}
	if reg.lookups != 1 {
		t.Fatalf("expected a single prefix lookup, got %d", reg.lookups)
	}
	if _, err := g.Reserve(reg, domain.EntityAccession, year2025, 0); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for zero reservation, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	g := New(nil)
	reg := newRegistry("X-001")
	if err := g.Validate(reg, domain.EntityCross, "X-002", "X-003"); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := g.Validate(reg, domain.EntityCross, "X-001"); !errors.Is(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate identifier, got %v", err)
	}
	if err := g.Validate(reg, domain.EntityCross, "X-004", "X-004"); !errors.Is(err, domain.ErrDuplicateIdentifier) {
		t.Fatalf("expected duplicate within request, got %v", err)
	}
	if err := g.Validate(reg, domain.EntityCross, " "); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("expected invalid request for blank code, got %v", err)
	}
}

func TestFormatOverrides(t *testing.T) {
	g := New(map[domain.EntityType]Format{domain.EntityAccession: {Prefix: "PHI"}})
	code, err := g.Next(newRegistry(), domain.EntityAccession, year2025)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if code != "PHI-2025-0001" {
		t.Fatalf("expected override prefix with default width, got %s", code)
	}
	if _, err := g.Scope(domain.EntityHarvest, year2025); !errors.Is(err, domain.ErrInvalidRequest) {
		t.Fatalf("harvests are numbered, not coded; got %v", err)
	}
}

func TestLockScopeSerializesBulkAllocations(t *testing.T) {
	g := New(nil)
	reg := newRegistry()
	var regMu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := g.LockScope(domain.EntityAccession, year2025)
			defer unlock()
			regMu.Lock()
			defer regMu.Unlock()
			codes, err := g.Reserve(reg, domain.EntityAccession, year2025, 5)
			if err != nil {
				t.Errorf("reserve: %v", err)
				return
			}
			for _, c := range codes {
				if reg.codes[c] {
					t.Errorf("overlapping allocation %s", c)
				}
				reg.codes[c] = true
			}
		}()
	}
	wg.Wait()
	if len(reg.codes) != 40 {
		t.Fatalf("expected 40 distinct codes, got %d", len(reg.codes))
	}
}
