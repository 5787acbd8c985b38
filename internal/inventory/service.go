package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, Store) error) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	Allocator Config
	Location  *time.Location
	Policy    shared.TxPolicy
}

// Service exposes read-only allocation previews and the expiry sweep.
type Service struct {
	repo      RepositoryPort
	audit     AuditPort
	allocator *Allocator
	clock     shared.Clock
	loc       *time.Location
	policy    shared.TxPolicy
	logger    *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, clock shared.Clock, cfg ServiceConfig, logger *slog.Logger) *Service {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		audit:     audit,
		allocator: NewAllocator(cfg.Allocator),
		clock:     clock,
		loc:       cfg.Location,
		policy:    cfg.Policy,
		logger:    logger,
	}
}

// AllocatePreview plans an allocation under the product lock and writes nothing.
func (s *Service) AllocatePreview(ctx context.Context, oc shared.OrgContext, productID, qty int64) ([]Allocation, error) {
	if err := oc.Validate(); err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, shared.ErrInvalidQuantity
	}
	today := shared.BusinessDate(s.clock.Now(), s.loc)
	var allocations []Allocation
	err := shared.RunTx(ctx, s.policy, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, store Store) error {
			var err error
			allocations, err = s.allocator.Begin(store, oc.OrgID, today).Preview(ctx, productID, qty)
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return allocations, nil
}

// ExpiredBatch describes one batch retired by the sweep.
type ExpiredBatch struct {
	BatchID     int64  `json:"batch_id"`
	ProductID   int64  `json:"product_id"`
	BatchNumber string `json:"batch_number"`
	WrittenOff  int64  `json:"written_off"`
}

// ExpiryReport summarises one sweep.
type ExpiryReport struct {
	AsOf       time.Time      `json:"as_of"`
	Batches    []ExpiredBatch `json:"batches"`
	WrittenOff int64          `json:"written_off"`
}

// ExpireBatches marks batches expiring on or before asOf as expired and
// writes residual stock off with an expiry movement.
func (s *Service) ExpireBatches(ctx context.Context, oc shared.OrgContext, asOf time.Time) (ExpiryReport, error) {
	if err := oc.Validate(); err != nil {
		return ExpiryReport{}, err
	}
	day := shared.BusinessDate(asOf, s.loc)
	var report ExpiryReport
	err := shared.RunTx(ctx, s.policy, func(ctx context.Context) error {
		report = ExpiryReport{AsOf: day}
		return s.repo.WithTx(ctx, func(ctx context.Context, store Store) error {
			candidates, err := store.ListExpiringBatches(ctx, oc.OrgID, day)
			if err != nil {
				return fmt.Errorf("inventory: list expiring batches: %w", err)
			}
			if len(candidates) == 0 {
				return nil
			}
			productIDs := make([]int64, 0, len(candidates))
			for _, c := range candidates {
				productIDs = append(productIDs, c.ProductID)
			}
			if err := s.allocator.Begin(store, oc.OrgID, day).Lock(ctx, productIDs...); err != nil {
				return err
			}
			for _, c := range candidates {
				b, err := store.GetBatchForUpdate(ctx, oc.OrgID, c.ID)
				if err != nil {
					return err
				}
				if !b.ExpiredOn(day) || (b.Status != BatchActive && b.Status != BatchExhausted) {
					continue
				}
				residue := b.QuantityAvailable
				b.QuantityDamaged += residue
				b.QuantityAvailable = 0
				b.Status = BatchExpired
				if err := store.SaveBatch(ctx, b); err != nil {
					return fmt.Errorf("inventory: save batch %d: %w", b.ID, err)
				}
				if residue > 0 {
					batchID := b.ID
					if _, err := store.InsertMovement(ctx, Movement{
						OrgID:         oc.OrgID,
						ProductID:     b.ProductID,
						BatchID:       &batchID,
						Type:          MovementExpiry,
						QuantityOut:   residue,
						ReferenceType: RefExpirySweep,
						ReferenceID:   b.ID,
						MovementDate:  s.clock.Now(),
						Notes:         "expired on " + b.ExpiryDate.Format(time.DateOnly),
					}); err != nil {
						return fmt.Errorf("inventory: insert movement: %w", err)
					}
				}
				report.Batches = append(report.Batches, ExpiredBatch{
					BatchID:     b.ID,
					ProductID:   b.ProductID,
					BatchNumber: b.BatchNumber,
					WrittenOff:  residue,
				})
				report.WrittenOff += residue
			}
			return nil
		})
	})
	if err != nil {
		return ExpiryReport{}, err
	}
	if len(report.Batches) > 0 {
		s.logger.Info("inventory: batches expired",
			slog.String("org_id", oc.OrgID.String()),
			slog.Int("batches", len(report.Batches)),
			slog.Int64("written_off", report.WrittenOff))
		if s.audit != nil {
			if err := s.audit.Record(ctx, shared.AuditLog{
				OrgID:    oc.OrgID,
				ActorID:  oc.UserID,
				Action:   "inventory:expiry_sweep",
				Entity:   "batches",
				EntityID: day.Format(time.DateOnly),
				Meta: map[string]any{
					"batches":     len(report.Batches),
					"written_off": report.WrittenOff,
				},
				At: s.clock.Now(),
			}); err != nil {
				s.logger.Warn("inventory: audit record failed",
					slog.String("action", "inventory:expiry_sweep"), slog.Any("error", err))
			}
		}
	}
	return report, nil
}
