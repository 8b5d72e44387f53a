package leaselock

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type row struct{ err error }

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*dest[0].(*string) = "key"
	return nil
}

// fakeDB grants the lock after busy failed attempts.
type fakeDB struct {
	mu       sync.Mutex
	busy     int
	acquires int
	released []string
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	f.mu.Lock()
	defer f.mu.Unlock()
	if strings.Contains(sql, "INSERT") {
		f.acquires++
		if f.acquires <= f.busy {
			return row{err: pgx.ErrNoRows}
		}
	}
	return row{}
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, args[0].(string))
	return pgconn.CommandTag{}, nil
}

func TestOptionsNormalize(t *testing.T) {
	o := Options{TTL: time.Minute, RenewEvery: 2 * time.Minute}.normalize()
	if o.RenewEvery != 30*time.Second {
		t.Fatalf("RenewEvery = %v, want 30s", o.RenewEvery)
	}
	o = Options{}.normalize()
	if o.TTL != 2*time.Minute || o.WaitInterval != 250*time.Millisecond {
		t.Fatalf("defaults = %+v", o)
	}
}

func TestWithLease(t *testing.T) {
	db := &fakeDB{}
	c := &Client{db: db, opts: Options{Owner: "worker-"}.normalize()}

	ran := false
	err := c.WithLease(context.Background(), "ingest:a1", func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("WithLease: %v", err)
	}
	if !ran {
		t.Fatal("fn was not called")
	}
	if len(db.released) != 1 || db.released[0] != "ingest:a1" {
		t.Fatalf("released = %v", db.released)
	}
}

func TestAcquire_Busy(t *testing.T) {
	db := &fakeDB{busy: 1}
	c := &Client{db: db, opts: Options{}.normalize()}
	if _, err := c.Acquire(context.Background(), "k"); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
}

func TestAcquire_Waits(t *testing.T) {
	db := &fakeDB{busy: 2}
	c := &Client{db: db, opts: Options{Wait: true, WaitInterval: time.Millisecond}.normalize()}
	l, err := c.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release(context.Background())
	if db.acquires != 3 {
		t.Fatalf("acquires = %d, want 3", db.acquires)
	}
}

func TestAcquire_EmptyKey(t *testing.T) {
	c := &Client{db: &fakeDB{}, opts: Options{}.normalize()}
	if _, err := c.Acquire(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty key")
	}
}
