// Package store persists classified feed records in PostgreSQL.
//
// Accepted records go to products, keyed by product id; rejects go to
// rejected_products with their original row and issues. The two tables are
// independent. Every save runs in its own transaction so a record is never
// half-written.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/feedwizard/internal/core"
	"github.com/JonMunkholm/feedwizard/internal/schema"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

var (
	// ErrConflict is returned by SaveAccepted when the id is already stored.
	ErrConflict = core.ErrConflict

	// ErrNotFound is returned by Get when no product has the id.
	ErrNotFound = core.ErrNotFound
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// DefaultRejectLimit caps ListRejected when no limit is given.
const DefaultRejectLimit = 200

// Store implements core.Store over any DBTX: a pool, a pooled connection,
// or a transaction.
type Store struct {
	db core.DBTX
}

// New creates a Store over db.
func New(db core.DBTX) *Store {
	return &Store{db: db}
}

// withTx runs fn in a transaction, rolling back on error or panic.
func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

const insertProduct = `
INSERT INTO products (
    id, title, price, brand, category, description, image_url,
    gtin, product_url, currency, enriched_fields, run_id, source_line,
    improved_title, marketing_copy, availability
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
ON CONFLICT (id) DO NOTHING`

// SaveAccepted inserts rec. Returns ErrConflict if a product with the same id
// already exists.
func (s *Store) SaveAccepted(ctx context.Context, rec core.ProductRecord) error {
	enriched := rec.EnrichedFields
	if enriched == nil {
		enriched = []string{}
	}
	availability := rec.Availability
	if availability == "" {
		availability = schema.AvailabilityUnknown
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, insertProduct,
			rec.ID,
			rec.Title,
			rec.Price,
			core.ToPgText(rec.Brand),
			core.ToPgText(rec.Category),
			core.ToPgText(rec.Description),
			core.ToPgText(rec.ImageURL),
			core.ToPgText(rec.GTIN),
			core.ToPgText(rec.ProductURL),
			rec.Currency,
			enriched,
			core.ToPgUUID(rec.RunID),
			pgtype.Int4{Int32: int32(rec.Line), Valid: rec.Line > 0},
			core.ToPgText(rec.ImprovedTitle),
			core.ToPgText(rec.MarketingCopy),
			availability,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrConflict
			}
			return fmt.Errorf("insert product %q: %w", rec.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return ErrConflict
		}
		return nil
	})
}

const insertRejected = `
INSERT INTO rejected_products (run_id, source_line, original_row, reasons, issues)
VALUES ($1, $2, $3, $4, $5)`

// SaveRejected inserts one reject row. Reasons are stored as a JSON array
// so their order survives.
func (s *Store) SaveRejected(ctx context.Context, rej core.RejectedRecord) error {
	original, err := json.Marshal(rej.Original)
	if err != nil {
		return fmt.Errorf("encode original row: %w", err)
	}
	reasons, err := json.Marshal(rej.Reasons())
	if err != nil {
		return fmt.Errorf("encode reasons: %w", err)
	}
	issues, err := json.Marshal(rej.Issues)
	if err != nil {
		return fmt.Errorf("encode issues: %w", err)
	}

	return s.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertRejected,
			core.ToPgUUID(rej.RunID),
			rej.Line,
			original,
			string(reasons),
			issues,
		); err != nil {
			return fmt.Errorf("insert rejected line %d: %w", rej.Line, err)
		}
		return nil
	})
}

// Exists reports whether a product with id is stored.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check product %q: %w", id, err)
	}
	return exists, nil
}

const selectProduct = `
SELECT id, title, price, brand, category, description, image_url,
       gtin, product_url, currency, enriched_fields, run_id, source_line,
       improved_title, marketing_copy, availability
FROM products
WHERE id = $1`

// Get returns the product with id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (core.ProductRecord, error) {
	var (
		rec                                       core.ProductRecord
		brand, category, description, image, gtin pgtype.Text
		productURL, improved, copyText            pgtype.Text
		runID                                     pgtype.UUID
		line                                      pgtype.Int4
	)

	err := s.db.QueryRow(ctx, selectProduct, id).Scan(
		&rec.ID,
		&rec.Title,
		&rec.Price,
		&brand,
		&category,
		&description,
		&image,
		&gtin,
		&productURL,
		&rec.Currency,
		&rec.EnrichedFields,
		&runID,
		&line,
		&improved,
		&copyText,
		&rec.Availability,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.ProductRecord{}, fmt.Errorf("get product %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return core.ProductRecord{}, fmt.Errorf("get product %q: %w", id, err)
	}

	rec.Brand = brand.String
	rec.Category = category.String
	rec.Description = description.String
	rec.ImageURL = image.String
	rec.GTIN = gtin.String
	rec.ProductURL = productURL.String
	rec.ImprovedTitle = improved.String
	rec.MarketingCopy = copyText.String
	rec.RunID = core.PgUUIDToString(runID)
	rec.Line = int(line.Int32)
	return rec, nil
}

const selectRejected = `
SELECT run_id, source_line, original_row, issues
FROM rejected_products
WHERE run_id = $1
ORDER BY source_line, id
LIMIT $2`

// ListRejected returns the rejects of a run in feed order.
func (s *Store) ListRejected(ctx context.Context, runID string, limit int) ([]core.RejectedRecord, error) {
	id := core.ToPgUUID(runID)
	if !id.Valid {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	if limit <= 0 {
		limit = DefaultRejectLimit
	}

	rows, err := s.db.Query(ctx, selectRejected, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list rejected for run %s: %w", runID, err)
	}
	defer rows.Close()

	var out []core.RejectedRecord
	for rows.Next() {
		var (
			rej              core.RejectedRecord
			rid              pgtype.UUID
			original, issues []byte
		)
		if err := rows.Scan(&rid, &rej.Line, &original, &issues); err != nil {
			return nil, fmt.Errorf("scan rejected row: %w", err)
		}
		if err := json.Unmarshal(original, &rej.Original); err != nil {
			return nil, fmt.Errorf("decode original row: %w", err)
		}
		if err := json.Unmarshal(issues, &rej.Issues); err != nil {
			return nil, fmt.Errorf("decode issues: %w", err)
		}
		rej.RunID = core.PgUUIDToString(rid)
		out = append(out, rej)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rejected for run %s: %w", runID, err)
	}
	return out, nil
}

// CountProducts returns the number of stored products.
func (s *Store) CountProducts(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT count(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
