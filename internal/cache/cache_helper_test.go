package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHelper(t *testing.T) (*CacheHelper, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewCacheHelper(client, "test:"), mr
}

func TestCacheHelperSetGet(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	type payload struct {
		ID    uint   `json:"id"`
		Title string `json:"title"`
	}

	in := payload{ID: 42, Title: "weekly quiz"}
	if err := helper.Set(ctx, "quiz:42", in, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	var out payload
	if err := helper.Get(ctx, "quiz:42", &out); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if out != in {
		t.Errorf("Get() = %+v, want %+v", out, in)
	}
}

func TestCacheHelperGetMissing(t *testing.T) {
	helper, _ := newTestHelper(t)

	var out map[string]any
	err := helper.Get(context.Background(), "nope", &out)
	if err != ErrCacheNotFound {
		t.Errorf("Get() error = %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelperDelete(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		if err := helper.SetString(ctx, key, "v", time.Minute); err != nil {
			t.Fatalf("SetString(%q) error = %v", key, err)
		}
	}

	if err := helper.Delete(ctx, "a", "b"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := helper.GetString(ctx, "a"); err != ErrCacheNotFound {
		t.Errorf("deleted key still readable, err = %v", err)
	}
	if got, err := helper.GetString(ctx, "c"); err != nil || got != "v" {
		t.Errorf("untouched key = %q, err = %v", got, err)
	}
}

func TestCacheHelperExpiry(t *testing.T) {
	helper, mr := newTestHelper(t)
	ctx := context.Background()

	if err := helper.SetString(ctx, "attempt:1", "running", time.Minute); err != nil {
		t.Fatalf("SetString() error = %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := helper.GetString(ctx, "attempt:1"); err != ErrCacheNotFound {
		t.Errorf("expired key err = %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelperNilClient(t *testing.T) {
	helper := NewCacheHelper(nil, "test:")
	ctx := context.Background()

	// Writes degrade to no-ops, reads report the cache as unavailable.
	if err := helper.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Errorf("Set() with nil client error = %v", err)
	}
	var out string
	if err := helper.Get(ctx, "k", &out); err != ErrCacheNotAvailable {
		t.Errorf("Get() with nil client error = %v, want ErrCacheNotAvailable", err)
	}
}

func TestInvalidatePattern(t *testing.T) {
	helper, _ := newTestHelper(t)
	ctx := context.Background()

	keys := []string{"id:7", "id:7:questions", "id:8"}
	for _, key := range keys {
		if err := helper.SetString(ctx, key, "v", time.Minute); err != nil {
			t.Fatalf("SetString(%q) error = %v", key, err)
		}
	}

	if err := helper.InvalidatePattern(ctx, "id:7*"); err != nil {
		t.Fatalf("InvalidatePattern() error = %v", err)
	}

	if _, err := helper.GetString(ctx, "id:7"); err != ErrCacheNotFound {
		t.Errorf("id:7 should be invalidated, err = %v", err)
	}
	if _, err := helper.GetString(ctx, "id:7:questions"); err != ErrCacheNotFound {
		t.Errorf("id:7:questions should be invalidated, err = %v", err)
	}
	if got, err := helper.GetString(ctx, "id:8"); err != nil || got != "v" {
		t.Errorf("id:8 should survive, got %q err = %v", got, err)
	}
}
