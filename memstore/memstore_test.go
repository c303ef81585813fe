package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fluxori-systems/go-docstore-repository/docstore"
)

func TestGetMissingDocument(t *testing.T) {
	s := New()
	snap, err := s.Get(context.Background(), "widgets", "nope")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Exists {
		t.Fatal("missing document reported as existing")
	}
	if snap.ID != "nope" {
		t.Fatalf("snapshot ID = %q", snap.ID)
	}
}

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	doc := docstore.Document{"name": "widget", "tags": []any{"a", "b"}}
	if err := s.Set(ctx, "widgets", "w1", doc); err != nil {
		t.Fatal(err)
	}

	snap, err := s.Get(ctx, "widgets", "w1")
	if err != nil {
		t.Fatal(err)
	}
	if !snap.Exists || snap.Data["name"] != "widget" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	// The store must not alias caller or reader memory.
	snap.Data["name"] = "mutated"
	doc["name"] = "also mutated"
	again, _ := s.Get(ctx, "widgets", "w1")
	if again.Data["name"] != "widget" {
		t.Fatal("stored document aliased caller memory")
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Create(ctx, "widgets", "w1", docstore.Document{"n": 1}); err != nil {
		t.Fatal(err)
	}
	err := s.Create(ctx, "widgets", "w1", docstore.Document{"n": 2})
	if !errors.Is(err, docstore.ErrExists) {
		t.Fatalf("err = %v, want ErrExists", err)
	}
}

func TestUpdateMergesFields(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, "widgets", "w1", docstore.Document{"name": "widget", "price": 10.0}); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, "widgets", "w1", docstore.Document{"price": 12.5}); err != nil {
		t.Fatal(err)
	}

	snap, _ := s.Get(ctx, "widgets", "w1")
	if snap.Data["name"] != "widget" || snap.Data["price"] != 12.5 {
		t.Fatalf("merge lost fields: %+v", snap.Data)
	}
}

func TestUpdateMissingDocument(t *testing.T) {
	s := New()
	err := s.Update(context.Background(), "widgets", "nope", docstore.Document{"x": 1})
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Set(ctx, "widgets", "w1", docstore.Document{"n": 1})
	if err := s.Delete(ctx, "widgets", "w1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, "widgets", "w1"); err != nil {
		t.Fatal("second delete should be a no-op")
	}
	snap, _ := s.Get(ctx, "widgets", "w1")
	if snap.Exists {
		t.Fatal("document survived delete")
	}
}

func TestServerTimestampResolvedOnWrite(t *testing.T) {
	s := New()
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	_ = s.Set(context.Background(), "widgets", "w1", docstore.Document{"createdAt": docstore.ServerTimestamp})
	snap, _ := s.Get(context.Background(), "widgets", "w1")
	got, ok := snap.Data["createdAt"].(time.Time)
	if !ok || !got.Equal(fixed) {
		t.Fatalf("createdAt = %v, want %v", snap.Data["createdAt"], fixed)
	}
}

func TestQueryFiltersAndOrders(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Set(ctx, "widgets", "a", docstore.Document{"price": 30.0, "active": true})
	_ = s.Set(ctx, "widgets", "b", docstore.Document{"price": 10.0, "active": true})
	_ = s.Set(ctx, "widgets", "c", docstore.Document{"price": 20.0, "active": false})

	q := docstore.Query{OrderBy: "price", Direction: docstore.Descending}.
		Where("active", docstore.OpEqual, true)
	snaps, err := s.Query(ctx, "widgets", q)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 || snaps[0].ID != "a" || snaps[1].ID != "b" {
		t.Fatalf("unexpected result %+v", snaps)
	}
}

func TestCountIgnoresLimit(t *testing.T) {
	s := New()
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_ = s.Set(ctx, "widgets", id, docstore.Document{"active": true})
	}

	n, err := s.Count(ctx, "widgets", docstore.Query{
		Filters: []docstore.Filter{{Field: "active", Op: docstore.OpEqual, Value: true}},
		Limit:   1,
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("count = %d, want 3", n)
	}
}

func TestCollectionsPrefixAndEmpties(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Set(ctx, "products/p1/prices", "x", docstore.Document{"n": 1})
	_ = s.Set(ctx, "products/p1/insights", "y", docstore.Document{"n": 1})
	_ = s.Set(ctx, "orders", "z", docstore.Document{"n": 1})

	// Emptied collections must not be listed.
	_ = s.Set(ctx, "products/p1/history", "h", docstore.Document{"n": 1})
	_ = s.Delete(ctx, "products/p1/history", "h")

	names, err := s.Collections(ctx, "products/p1/")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"products/p1/insights", "products/p1/prices"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("collections = %v, want %v", names, want)
	}
}

func TestGenerateIDUnique(t *testing.T) {
	s := New()
	a, b := s.GenerateID(), s.GenerateID()
	if a == "" || a == b {
		t.Fatalf("expected distinct non-empty IDs, got %q %q", a, b)
	}
}

func TestTransactionCommitsBufferedWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "stock", "s1", docstore.Document{"qty": 10.0})

	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		snap, err := tx.Get(ctx, "stock", "s1")
		if err != nil {
			return err
		}
		qty := snap.Data["qty"].(float64)

		// Nothing is visible until commit.
		if err := tx.Update("stock", "s1", docstore.Document{"qty": qty - 3}); err != nil {
			return err
		}
		outside, _ := s.Get(ctx, "stock", "s1")
		if outside.Data["qty"] != 10.0 {
			t.Fatal("buffered write leaked before commit")
		}
		return nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	snap, _ := s.Get(ctx, "stock", "s1")
	if snap.Data["qty"] != 7.0 {
		t.Fatalf("qty = %v, want 7", snap.Data["qty"])
	}
}

func TestTransactionRetriesOnConflict(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "stock", "s1", docstore.Document{"qty": 10.0})

	attempts := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		attempts++
		if _, err := tx.Get(ctx, "stock", "s1"); err != nil {
			return err
		}
		if attempts == 1 {
			// A concurrent writer invalidates the read-set.
			if err := s.Set(ctx, "stock", "s1", docstore.Document{"qty": 99.0}); err != nil {
				return err
			}
		}
		return tx.Update("stock", "s1", docstore.Document{"qty": 5.0})
	}, &docstore.TxOptions{MaxAttempts: 3})
	if err != nil {
		t.Fatal(err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
	snap, _ := s.Get(ctx, "stock", "s1")
	if snap.Data["qty"] != 5.0 {
		t.Fatalf("qty = %v, want 5", snap.Data["qty"])
	}
}

func TestTransactionAbortsAfterAttemptBudget(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "stock", "s1", docstore.Document{"qty": 10.0})

	attempts := 0
	err := s.RunTransaction(ctx, func(ctx context.Context, tx docstore.Tx) error {
		attempts++
		if _, err := tx.Get(ctx, "stock", "s1"); err != nil {
			return err
		}
		// Invalidate the read-set on every attempt.
		return s.Set(ctx, "stock", "s1", docstore.Document{"qty": float64(attempts)})
	}, &docstore.TxOptions{MaxAttempts: 3})
	if !errors.Is(err, docstore.ErrAborted) {
		t.Fatalf("err = %v, want ErrAborted", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}
}

func TestTransactionCallbackErrorStopsRetries(t *testing.T) {
	s := New()
	boom := errors.New("boom")
	attempts := 0
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		attempts++
		return boom
	}, &docstore.TxOptions{MaxAttempts: 5})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want callback error", err)
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1", attempts)
	}
}

func TestTransactionUpdateMissingDocument(t *testing.T) {
	s := New()
	err := s.RunTransaction(context.Background(), func(ctx context.Context, tx docstore.Tx) error {
		return tx.Update("stock", "nope", docstore.Document{"qty": 1})
	}, nil)
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestBatchAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()

	b := s.Batch()
	b.Set("widgets", "w1", docstore.Document{"n": 1})
	b.Update("widgets", "missing", docstore.Document{"n": 2})
	if b.Len() != 2 {
		t.Fatalf("Len = %d", b.Len())
	}

	err := b.Commit(ctx)
	if !errors.Is(err, docstore.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	snap, _ := s.Get(ctx, "widgets", "w1")
	if snap.Exists {
		t.Fatal("failed batch applied a write")
	}
}

func TestBatchSetSatisfiesLaterUpdate(t *testing.T) {
	s := New()
	ctx := context.Background()

	b := s.Batch()
	b.Set("widgets", "w1", docstore.Document{"n": 1.0})
	b.Update("widgets", "w1", docstore.Document{"n": 2.0})
	if err := b.Commit(ctx); err != nil {
		t.Fatal(err)
	}

	snap, _ := s.Get(ctx, "widgets", "w1")
	if snap.Data["n"] != 2.0 {
		t.Fatalf("n = %v, want 2", snap.Data["n"])
	}
}

func TestBatchRejectsOversize(t *testing.T) {
	s := New()
	b := s.Batch()
	for i := 0; i <= docstore.MaxBatchSize; i++ {
		b.Set("widgets", s.GenerateID(), docstore.Document{"n": i})
	}
	if err := b.Commit(context.Background()); !errors.Is(err, docstore.ErrBatchSize) {
		t.Fatalf("err = %v, want ErrBatchSize", err)
	}
}
