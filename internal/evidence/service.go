package evidence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/roach88/custodian/internal/catalog"
	"github.com/roach88/custodian/internal/custody"
	"github.com/roach88/custodian/internal/integrity"
	"github.com/roach88/custodian/internal/metrics"
	"github.com/roach88/custodian/internal/reconcile"
	"github.com/roach88/custodian/internal/record"
)

// ErrNoBackup is returned by sync operations when no backup is configured.
var ErrNoBackup = errors.New("evidence: no backup configured")

// Service is the evidence store's user-facing surface.
type Service struct {
	catalog    *catalog.Catalog
	ledger     *custody.Ledger
	factory    *record.Factory
	reconciler *reconcile.Reconciler
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithReconciler enables sync operations.
func WithReconciler(r *reconcile.Reconciler) Option {
	return func(s *Service) { s.reconciler = r }
}

// WithMetrics records operation counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service. factory and ledger must share the same identity
// and clock.
func New(c *catalog.Catalog, ledger *custody.Ledger, factory *record.Factory, opts ...Option) *Service {
	s := &Service{
		catalog: c,
		ledger:  ledger,
		factory: factory,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Catalog returns the underlying catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Capture builds a record from a finished artifact and stores it. Nothing
// is stored when the source cannot be read.
func (s *Service) Capture(ctx context.Context, template record.Record, src record.Source) (record.Record, error) {
	r, err := s.factory.Create(ctx, template, src)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	if err := s.catalog.Save(ctx, r); err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	s.metrics.Capture(string(r.Kind()))
	s.metrics.CustodyEvent(string(custody.ActionCreated))
	s.logger.Info("record captured", "kind", r.Kind(), "id", record.ID(r), "size", r.Base().FileSize)
	return r, nil
}

// Lookup returns a stored record without recording a custody event.
func (s *Service) Lookup(ctx context.Context, kind record.Kind, id uuid.UUID) (record.Record, error) {
	if kind == "" {
		return s.catalog.Find(ctx, id)
	}
	return s.catalog.Fetch(ctx, kind, id)
}

// View returns the stored record after appending a "viewed" event.
func (s *Service) View(ctx context.Context, kind record.Kind, id uuid.UUID) (record.Record, error) {
	r, err := s.Lookup(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	return s.append(ctx, r, custody.ActionViewed)
}

// Verify re-hashes the artifact of a stored record. A "verified" event is
// appended only when the artifact still matches; the stored checksum is
// never modified.
func (s *Service) Verify(ctx context.Context, kind record.Kind, id uuid.UUID) (integrity.Result, record.Record, error) {
	r, err := s.Lookup(ctx, kind, id)
	if err != nil {
		return 0, nil, err
	}
	res, err := integrity.VerifyFile(r)
	if err != nil {
		return 0, r, err
	}
	s.metrics.Verification(res.String())
	if res != integrity.Match {
		s.logger.Warn("verification failed", "kind", r.Kind(), "id", record.ID(r), "result", res)
		return res, r, nil
	}
	updated, err := s.append(ctx, r, custody.ActionVerified)
	if err != nil {
		return res, r, err
	}
	return res, updated, nil
}

// VerifyAll verifies every stored record of kind and returns the results by
// record id.
func (s *Service) VerifyAll(ctx context.Context, kind record.Kind) (map[uuid.UUID]integrity.Result, error) {
	recs, err := s.catalog.FetchAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]integrity.Result, len(recs))
	for _, r := range recs {
		res, _, err := s.Verify(ctx, kind, record.ID(r))
		if err != nil {
			return out, err
		}
		out[record.ID(r)] = res
	}
	return out, nil
}

func (s *Service) append(ctx context.Context, r record.Record, action custody.Action) (record.Record, error) {
	updated, err := s.catalog.AppendCustody(ctx, r.Kind(), record.ID(r), s.ledger, action)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	s.metrics.CustodyEvent(string(action))
	return updated, nil
}
