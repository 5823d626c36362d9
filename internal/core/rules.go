package core

import "lineagecore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	for _, rule := range defaultRules() {
		engine.Register(rule)
	}
	return engine
}

func defaultRules() []domain.Rule {
	return []domain.Rule{
		CloneCapacityRule(),
		SeedlingGraduationRule(),
		LineageIntegrityRule(),
		AggregateConsistencyRule(),
		GenerationAmbiguityRule(),
	}
}

// changePair is the typed before/after of one change. Either side is nil
// for creates and deletes.
type changePair[T any] struct {
	before *T
	after  *T
}

func changesOf[T any](changes []domain.Change, entity domain.EntityType) []changePair[T] {
	var out []changePair[T]
	for _, change := range changes {
		if change.Entity != entity {
			continue
		}
		var pair changePair[T]
		if v, ok := change.Before.(T); ok {
			pair.before = &v
		}
		if v, ok := change.After.(T); ok {
			pair.after = &v
		}
		if pair.before == nil && pair.after == nil {
			continue
		}
		out = append(out, pair)
	}
	return out
}

func blockViolation(rule string, entity domain.EntityType, id, message string) domain.Violation {
	return domain.Violation{
		Rule:     rule,
		Severity: domain.SeverityBlock,
		Message:  message,
		Entity:   entity,
		EntityID: id,
	}
}

func addRef(set map[string]struct{}, id *string) {
	if id != nil && *id != "" {
		set[*id] = struct{}{}
	}
}
