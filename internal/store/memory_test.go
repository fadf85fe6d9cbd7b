package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/fastcrud/apiserver/types"
	"github.com/google/uuid"
)

func TestMemoryCreateAndLookup(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	created, err := repo.Create(ctx, types.User{Email: "a@b.com", Phone: "+1", IsActive: true})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if created.ID == uuid.Nil || created.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps: %+v", created)
	}

	for name, lookup := range map[string]func() (types.User, error){
		"id":    func() (types.User, error) { return repo.GetByID(ctx, created.ID) },
		"email": func() (types.User, error) { return repo.GetByEmail(ctx, "a@b.com") },
		"phone": func() (types.User, error) { return repo.GetByPhone(ctx, "+1") },
	} {
		got, err := lookup()
		if err != nil {
			t.Fatalf("lookup by %s: %v", name, err)
		}
		if got.ID != created.ID {
			t.Fatalf("lookup by %s returned %s", name, got.ID)
		}
	}

	if _, err := repo.GetByEmail(ctx, "A@b.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected case-sensitive email lookup, got %v", err)
	}
}

func TestMemoryCreateConflicts(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	if _, err := repo.Create(ctx, types.User{Email: "a@b.com", Phone: "+1"}); err != nil {
		t.Fatalf("Create error: %v", err)
	}

	_, err := repo.Create(ctx, types.User{Email: "a@b.com", Phone: "+2"})
	var conflict *ConflictError
	if !errors.As(err, &conflict) || conflict.Field != "email" {
		t.Fatalf("expected email conflict, got %v", err)
	}

	_, err = repo.Create(ctx, types.User{Email: "c@d.com", Phone: "+1"})
	if !errors.As(err, &conflict) || conflict.Field != "phone" {
		t.Fatalf("expected phone conflict, got %v", err)
	}

	if _, err := repo.Create(ctx, types.User{Email: "e@f.com"}); err != nil {
		t.Fatalf("Create without phone: %v", err)
	}
	if _, err := repo.Create(ctx, types.User{Email: "g@h.com"}); err != nil {
		t.Fatalf("second Create without phone: %v", err)
	}
}

func TestMemoryConcurrentCreateSameEmail(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	const workers = 32
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Create(ctx, types.User{Email: "race@b.com", Phone: fmt.Sprintf("+%d", i)})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrConflict):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
}

func TestMemoryUpdate(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	first, _ := repo.Create(ctx, types.User{Email: "a@b.com", Phone: "+1"})
	second, _ := repo.Create(ctx, types.User{Email: "c@d.com", Phone: "+2"})

	second.Email = "a@b.com"
	if _, err := repo.Update(ctx, second); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	first.Email = "z@b.com"
	first.Phone = ""
	updated, err := repo.Update(ctx, first)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}
	if !updated.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("created_at must not change")
	}
	if _, err := repo.GetByEmail(ctx, "a@b.com"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old email index should be released, got %v", err)
	}
	if _, err := repo.GetByPhone(ctx, "+1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old phone index should be released, got %v", err)
	}

	if _, err := repo.Update(ctx, types.User{ID: uuid.New()}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryDeleteAndList(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	var ids []uuid.UUID
	for i := 0; i < 5; i++ {
		u, err := repo.Create(ctx, types.User{Email: fmt.Sprintf("u%d@b.com", i)})
		if err != nil {
			t.Fatalf("Create error: %v", err)
		}
		ids = append(ids, u.ID)
	}

	page, err := repo.List(ctx, 3, 10)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected 2 users, got %d", len(page))
	}
	if empty, _ := repo.List(ctx, 10, 10); len(empty) != 0 {
		t.Fatalf("expected empty page, got %d", len(empty))
	}

	if err := repo.Delete(ctx, ids[0]); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if err := repo.Delete(ctx, ids[0]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := repo.Create(ctx, types.User{Email: "u0@b.com"}); err != nil {
		t.Fatalf("email should be reusable after delete: %v", err)
	}
}

func TestMemoryHonoursCanceledContext(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := repo.Create(ctx, types.User{Email: "a@b.com"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
