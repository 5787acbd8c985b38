package inventory

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vikasgargbear/production-infra-sub000/internal/platform/db"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
)

const batchColumns = `id, org_id, product_id, batch_number, manufacturing_date, expiry_date, quantity_received,
quantity_available, quantity_sold, quantity_returned, quantity_damaged, cost_price, selling_price, mrp, supplier_id, status`

// Repository opens inventory transactions on a pool.
type Repository struct {
	pool db.Beginner
	iso  pgx.TxIsoLevel
}

// NewRepository constructs Repository.
func NewRepository(pool db.Beginner, iso pgx.TxIsoLevel) *Repository {
	return &Repository{pool: pool, iso: iso}
}

// WithTx runs fn inside a transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Store) error) error {
	return db.WithTx(ctx, r.pool, r.iso, func(tx pgx.Tx) error {
		return fn(ctx, NewPGStore(tx))
	})
}

// PGStore implements Store with SQL.
type PGStore struct {
	q db.Querier
}

// NewPGStore binds the store to q.
func NewPGStore(q db.Querier) *PGStore {
	return &PGStore{q: q}
}

func (s *PGStore) LockProduct(ctx context.Context, orgID uuid.UUID, productID int64) error {
	_, err := s.q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, shared.ProductLockKey(orgID, productID))
	return err
}

func (s *PGStore) ListAllocatableBatches(ctx context.Context, orgID uuid.UUID, productID int64, today time.Time) ([]Batch, error) {
	return s.queryBatches(ctx, `SELECT `+batchColumns+` FROM batches
WHERE org_id=$1 AND product_id=$2 AND status='active' AND quantity_available > 0
AND (expiry_date IS NULL OR expiry_date > $3)
ORDER BY id FOR UPDATE`, orgID, productID, civil(today))
}

func (s *PGStore) ListExpiringBatches(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]Batch, error) {
	return s.queryBatches(ctx, `SELECT `+batchColumns+` FROM batches
WHERE org_id=$1 AND status IN ('active','exhausted') AND expiry_date IS NOT NULL AND expiry_date <= $2
ORDER BY product_id, id`, orgID, civil(asOf))
}

func (s *PGStore) GetBatchForUpdate(ctx context.Context, orgID uuid.UUID, batchID int64) (Batch, error) {
	row := s.q.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE org_id=$1 AND id=$2 FOR UPDATE`, orgID, batchID)
	b, err := scanBatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, shared.ErrBatchNotFound.Withf("batch %d not found", batchID)
		}
		return Batch{}, err
	}
	return b, nil
}

func (s *PGStore) SaveBatch(ctx context.Context, b Batch) error {
	tag, err := s.q.Exec(ctx, `UPDATE batches SET quantity_available=$3, quantity_sold=$4, quantity_returned=$5,
quantity_damaged=$6, status=$7, updated_at=NOW() WHERE org_id=$1 AND id=$2`,
		b.OrgID, b.ID, b.QuantityAvailable, b.QuantitySold, b.QuantityReturned, b.QuantityDamaged, string(b.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrBatchNotFound.Withf("batch %d not found", b.ID)
	}
	return nil
}

func (s *PGStore) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	var id int64
	err := s.q.QueryRow(ctx, `INSERT INTO inventory_movements (org_id, product_id, batch_id, movement_type, quantity_in,
quantity_out, reference_type, reference_id, movement_date, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		m.OrgID, m.ProductID, m.BatchID, string(m.Type), m.QuantityIn, m.QuantityOut, m.ReferenceType, m.ReferenceID,
		m.MovementDate, m.Notes).Scan(&id)
	return id, err
}

func (s *PGStore) queryBatches(ctx context.Context, sql string, args ...any) ([]Batch, error) {
	rows, err := s.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var batches []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	var status string
	err := row.Scan(&b.ID, &b.OrgID, &b.ProductID, &b.BatchNumber, &b.ManufacturingDate, &b.ExpiryDate,
		&b.QuantityReceived, &b.QuantityAvailable, &b.QuantitySold, &b.QuantityReturned, &b.QuantityDamaged,
		&b.CostPrice, &b.SellingPrice, &b.MRP, &b.SupplierID, &status)
	b.Status = BatchStatus(status)
	return b, err
}
