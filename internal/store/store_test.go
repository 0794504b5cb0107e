package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/JonMunkholm/feedwizard/internal/core"
	"github.com/JonMunkholm/feedwizard/internal/schema"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"postgres://u:p@localhost:5432/feeds?sslmode=disable", "pgx5://u:p@localhost:5432/feeds?sslmode=disable"},
		{"postgresql://localhost/feeds", "pgx5://localhost/feeds"},
		{"pgx5://localhost/feeds", "pgx5://localhost/feeds"},
	}
	for _, tt := range tests {
		if got := migrateURL(tt.input); got != tt.want {
			t.Errorf("migrateURL(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

type countingReader struct {
	gets     int
	products map[string]core.ProductRecord
}

func (r *countingReader) Get(_ context.Context, id string) (core.ProductRecord, error) {
	r.gets++
	rec, ok := r.products[id]
	if !ok {
		return core.ProductRecord{}, fmt.Errorf("get product %q: %w", id, ErrNotFound)
	}
	return rec, nil
}

func (r *countingReader) ListRejected(context.Context, string, int) ([]core.RejectedRecord, error) {
	return nil, nil
}

func (r *countingReader) CountProducts(context.Context) (int64, error) {
	return int64(len(r.products)), nil
}

func TestCachedReader(t *testing.T) {
	inner := &countingReader{products: map[string]core.ProductRecord{
		"1": {ID: "1", Title: "Shoe"},
	}}
	c, err := NewCachedReader(inner, 8)
	if err != nil {
		t.Fatalf("NewCachedReader: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec, err := c.Get(ctx, "1")
		if err != nil || rec.Title != "Shoe" {
			t.Fatalf("Get = %+v, %v", rec, err)
		}
	}
	if inner.gets != 1 {
		t.Errorf("inner Get called %d times, want 1", inner.gets)
	}

	for i := 0; i < 2; i++ {
		if _, err := c.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
		}
	}
	if inner.gets != 3 {
		t.Errorf("misses were cached: inner Get called %d times, want 3", inner.gets)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}

	if n, _ := c.CountProducts(ctx); n != 1 {
		t.Errorf("CountProducts = %d, want 1", n)
	}
}

func TestNewCachedReaderRejectsBadSize(t *testing.T) {
	if _, err := NewCachedReader(&countingReader{}, 0); err == nil {
		t.Error("expected error for size 0")
	}
}

// Integration tests below need a disposable PostgreSQL database.
func testStore(t *testing.T) (*Store, *Pool) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	if err := Migrate(url); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	ctx := context.Background()
	pool, err := Connect(ctx, PoolConfig{URL: url, MaxConns: 2})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if _, err := pool.Exec(ctx, `TRUNCATE products, rejected_products`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	p := NewPool(pool)
	return p.Catalog(), p
}

func TestStore_SaveAcceptedConflict(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()

	var price pgtype.Numeric
	if err := price.Scan("29.99"); err != nil {
		t.Fatal(err)
	}
	rec := core.ProductRecord{
		ID: "1", Title: "Shoe", Price: price, Brand: "Nike",
		Currency: "SEK", RunID: uuid.NewString(), Line: 2,
		EnrichedFields: []string{"title"},
		ImprovedTitle:  "Nike Shoe", Availability: schema.InStock,
	}

	if err := s.SaveAccepted(ctx, rec); err != nil {
		t.Fatalf("SaveAccepted: %v", err)
	}
	if err := s.SaveAccepted(ctx, rec); !errors.Is(err, ErrConflict) {
		t.Fatalf("second SaveAccepted error = %v, want ErrConflict", err)
	}

	exists, err := s.Exists(ctx, "1")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v", exists, err)
	}

	got, err := s.Get(ctx, "1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != "Shoe" || got.Brand != "Nike" || got.Category != "" || got.RunID != rec.RunID {
		t.Errorf("Get = %+v", got)
	}
	if len(got.EnrichedFields) != 1 || got.EnrichedFields[0] != "title" {
		t.Errorf("EnrichedFields = %v", got.EnrichedFields)
	}
	if got.ImprovedTitle != "Nike Shoe" || got.MarketingCopy != "" || got.Availability != schema.InStock {
		t.Errorf("improved = %q, copy = %q, availability = %q", got.ImprovedTitle, got.MarketingCopy, got.Availability)
	}

	if _, err := s.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(nope) error = %v, want ErrNotFound", err)
	}
	if n, err := s.CountProducts(ctx); err != nil || n != 1 {
		t.Errorf("CountProducts = %d, %v", n, err)
	}
}

func TestStore_Rejected(t *testing.T) {
	s, _ := testStore(t)
	ctx := context.Background()
	runID := uuid.NewString()

	rej := core.RejectedRecord{
		RunID:    runID,
		Line:     3,
		Original: core.RawRow{"id": "2", "title": "", "price": "10"},
		Issues: []core.ValidationIssue{
			{Field: "title", Rule: "missing_title", Message: "required field is empty"},
		},
	}
	if err := s.SaveRejected(ctx, rej); err != nil {
		t.Fatalf("SaveRejected: %v", err)
	}

	got, err := s.ListRejected(ctx, runID, 10)
	if err != nil {
		t.Fatalf("ListRejected: %v", err)
	}
	if len(got) != 1 || got[0].Line != 3 || got[0].Original["id"] != "2" || got[0].Reasons()[0] != "missing_title" {
		t.Errorf("ListRejected = %+v", got)
	}

	if _, err := s.ListRejected(ctx, "not-a-uuid", 10); err == nil {
		t.Error("expected error for invalid run id")
	}
}

func TestPool_AcquireRelease(t *testing.T) {
	_, p := testStore(t)
	ctx := context.Background()

	st, release, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	if _, err := st.Exists(ctx, "1"); err != nil {
		t.Errorf("Exists on acquired store: %v", err)
	}
}
