package core

import (
	"context"
	"errors"
	"lineagecore/internal/identifier"
	"lineagecore/internal/infra/persistence/memory"
	"lineagecore/pkg/domain"
	"time"
)

// DefaultGenus is recorded on accessions when no genus is configured.
const DefaultGenus = "Anthurium"

// Service exposes the transactional lineage operations: crosses, harvests,
// the seed pipeline, both graduation paths, clone batches and the lineage
// queries built on them.
type Service struct {
	store   domain.PersistentStore
	codes   *identifier.Generator
	genus   string
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
}

type serviceOptions struct {
	clock   Clock
	logger  Logger
	audit   AuditRecorder
	metrics MetricsRecorder
	tracer  Tracer
	formats map[domain.EntityType]identifier.Format
	genus   string
}

// Option configures a Service.
type Option func(*serviceOptions)

func defaultServiceOptions() serviceOptions {
	return serviceOptions{
		clock:   ClockFunc(func() time.Time { return time.Now().UTC() }),
		logger:  noopLogger{},
		audit:   noopAuditRecorder{},
		metrics: noopMetricsRecorder{},
		tracer:  noopTracer{},
		genus:   DefaultGenus,
	}
}

// WithClock overrides the time source used for defaults such as cross dates
// and code years.
func WithClock(clock Clock) Option {
	return func(o *serviceOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger installs a structured logger.
func WithLogger(logger Logger) Option {
	return func(o *serviceOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithAuditRecorder installs an audit sink for mutating operations.
func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.audit = recorder
		}
	}
}

// WithMetricsRecorder installs a metrics sink.
func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(o *serviceOptions) {
		if recorder != nil {
			o.metrics = recorder
		}
	}
}

// WithTracer installs a tracer.
func WithTracer(tracer Tracer) Option {
	return func(o *serviceOptions) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithCodeFormats overrides code prefixes or widths per entity type.
func WithCodeFormats(formats map[domain.EntityType]identifier.Format) Option {
	return func(o *serviceOptions) {
		o.formats = formats
	}
}

// WithGenus sets the genus recorded on graduated accessions.
func WithGenus(genus string) Option {
	return func(o *serviceOptions) {
		if genus != "" {
			o.genus = genus
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return newService(store, options)
}

// NewInMemoryService creates a service over a fresh in-memory store. A nil
// engine installs the default rule set.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	options := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if engine == nil {
		engine = NewDefaultRulesEngine()
	}
	store := memory.NewStore(engine, memory.WithClock(options.clock.Now))
	return newService(store, options)
}

func newService(store domain.PersistentStore, options serviceOptions) *Service {
	return &Service{
		store:   store,
		codes:   identifier.New(options.formats),
		genus:   options.genus,
		clock:   options.clock,
		logger:  options.logger,
		audit:   options.audit,
		metrics: options.metrics,
		tracer:  options.tracer,
	}
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// Codes returns the identifier generator shared by all operations.
func (s *Service) Codes() *identifier.Generator {
	return s.codes
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// run executes fn inside one store transaction and reports the outcome to
// the tracer, metrics, audit and logger. fn returns the identifier of the
// primary record it touched.
func (s *Service) run(ctx context.Context, op string, entity domain.EntityType, fn func(tx domain.Transaction) (string, error)) (domain.Result, error) {
	ctx, span := s.tracer.Start(ctx, op)
	start := time.Now()
	actor, _ := ActorFromContext(ctx)
	s.logger.Debug("operation started", "operation", op, "entity", entity, "actor", actor)

	var entityID string
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var err error
		entityID, err = fn(tx)
		return err
	})
	duration := time.Since(start)
	span.End(err)
	s.metrics.Observe(ctx, op, err == nil, duration)

	entry := AuditEntry{
		Operation: op,
		Entity:    string(entity),
		EntityID:  entityID,
		Actor:     actor,
		Status:    AuditStatusSuccess,
		Duration:  duration,
		At:        s.now(),
	}
	if err != nil {
		entry.Status = AuditStatusError
		entry.Error = err.Error()
	}
	s.audit.Record(ctx, entry)

	for _, v := range res.Violations {
		if v.Severity == domain.SeverityWarn {
			s.logger.Warn("rule warning", "operation", op, "rule", v.Rule, "entity", v.Entity, "entity_id", v.EntityID, "message", v.Message)
		}
	}

	fields := []any{"operation", op, "entity", entity, "entity_id", entityID, "duration_ms", duration.Milliseconds()}
	switch {
	case err == nil:
		s.logger.Debug("operation succeeded", fields...)
	case errors.Is(err, domain.ErrPersistence) || domain.KindOf(err) == "":
		s.logger.Error("operation failed", append(fields, "error", err)...)
	default:
		s.logger.Warn("operation rejected", append(fields, "kind", domain.KindOf(err), "error", err)...)
	}
	return res, err
}

// view runs a read-only query against the store.
func (s *Service) view(ctx context.Context, fn func(domain.TransactionView) error) error {
	return s.store.View(ctx, fn)
}
