package etcd

import (
	"context"
	"errors"
	"testing"
	"time"

	"offstream/internal/testutil"
	"offstream/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	endpoints := testutil.StartEmbeddedEtcd(t)
	st, err := New(store.Config{Endpoints: endpoints, DialTimeout: 3 * time.Second})
	if err != nil {
		t.Fatalf("connect store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestReadOffset_NotFound(t *testing.T) {
	st := newTestStore(t)
	_, err := st.ReadOffset(context.Background(), "g1", "events", 0)
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("read of uncommitted partition = %v, want ErrNotFound", err)
	}
}

func TestWriteOffset_RoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.WriteOffset(ctx, "g1", "events", 2, 41); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := st.ReadOffset(ctx, "g1", "events", 2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != 41 {
		t.Fatalf("read back %d, want 41", got)
	}

	// writes are upserts
	if err := st.WriteOffset(ctx, "g1", "events", 2, 42); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ = st.ReadOffset(ctx, "g1", "events", 2); got != 42 {
		t.Fatalf("read back %d after overwrite, want 42", got)
	}
}

func TestOffsets_IsolatedPerGroupTopicPartition(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.WriteOffset(ctx, "g1", "events", 0, 10); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := st.WriteOffset(ctx, "g2", "events", 0, 20); err != nil {
		t.Fatalf("write: %v", err)
	}

	if got, _ := st.ReadOffset(ctx, "g1", "events", 0); got != 10 {
		t.Fatalf("g1 offset = %d, want 10", got)
	}
	if _, err := st.ReadOffset(ctx, "g1", "events", 1); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("neighbouring partition = %v, want ErrNotFound", err)
	}
}
