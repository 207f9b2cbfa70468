package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"offstream/source/kafka"
)

type completion struct {
	id      int64
	offsets []int64
}

type fakeSource struct {
	lock sync.Mutex

	mu          sync.Mutex
	restored    []int64
	offsets     []int64
	completions []completion
	commitErr   error
	cancelled   bool
	closed      bool

	emitValues [][]byte
}

func (f *fakeSource) SetRestoredState(offsets []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restored = append([]int64(nil), offsets...)
	return nil
}

func (f *fakeSource) Open(context.Context) error { return nil }

func (f *fakeSource) Run(ctx context.Context, emit kafka.EmitFunc[[]byte]) error {
	for _, v := range f.emitValues {
		f.lock.Lock()
		err := emit(v)
		f.lock.Unlock()
		if err != nil {
			return err
		}
	}
	<-ctx.Done()
	return nil
}

func (f *fakeSource) Cancel() {
	f.mu.Lock()
	f.cancelled = true
	f.mu.Unlock()
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeSource) CheckpointLock() *sync.Mutex { return &f.lock }

func (f *fakeSource) SnapshotOffsets() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.offsets...)
}

func (f *fakeSource) OnCheckpointComplete(_ context.Context, id int64, snapshot []int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	f.completions = append(f.completions, completion{id: id, offsets: snapshot})
	return nil
}

func (f *fakeSource) completed() []completion {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completion(nil), f.completions...)
}

type fakeSink struct {
	mu     sync.Mutex
	got    [][]byte
	closed bool
}

func (s *fakeSink) Configure(any) error { return nil }

func (s *fakeSink) Push(v []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, append([]byte(nil), v...))
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestRunner_CheckpointsPeriodically(t *testing.T) {
	states, err := NewStateStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	src := &fakeSource{offsets: []int64{3, -1}}
	r := NewRunner(src, states, 10*time.Millisecond)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Close()

	waitFor(t, func() bool { return len(src.completed()) > 0 })

	first := src.completed()[0]
	if first.id != 1 {
		t.Fatalf("first checkpoint id = %d, want 1", first.id)
	}
	if len(first.offsets) != 2 || first.offsets[0] != 3 {
		t.Fatalf("completion carries %v, want the snapshot [3 -1]", first.offsets)
	}

	// the notification must follow a durable save of the same snapshot
	snap, ok, err := states.Load()
	if err != nil || !ok {
		t.Fatalf("state store after checkpoint: ok=%v err=%v", ok, err)
	}
	if snap.Offsets[0] != 3 {
		t.Fatalf("persisted offsets %v, want [3 -1]", snap.Offsets)
	}
}

func TestRunner_RestoresLatestCheckpoint(t *testing.T) {
	dir := t.TempDir()
	states, err := NewStateStore(dir)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	if err := states.Save(Snapshot{CheckpointID: 7, Offsets: []int64{5, 6}}); err != nil {
		t.Fatalf("seed state: %v", err)
	}

	src := &fakeSource{offsets: []int64{5, 6}}
	r := NewRunner(src, states, 10*time.Millisecond)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Close()

	src.mu.Lock()
	restored := append([]int64(nil), src.restored...)
	src.mu.Unlock()
	if len(restored) != 2 || restored[0] != 5 || restored[1] != 6 {
		t.Fatalf("source restored with %v, want [5 6]", restored)
	}

	// checkpoint numbering resumes after the restored one
	waitFor(t, func() bool { return len(src.completed()) > 0 })
	if id := src.completed()[0].id; id != 8 {
		t.Fatalf("first checkpoint after restore = %d, want 8", id)
	}
}

func TestRunner_CommitFailureFailsJob(t *testing.T) {
	states, err := NewStateStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	src := &fakeSource{offsets: []int64{1}, commitErr: errors.New("store down")}
	r := NewRunner(src, states, 10*time.Millisecond)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	<-r.Done()
	if r.Err() == nil {
		t.Fatal("a failed checkpoint commit must fail the job")
	}
	src.mu.Lock()
	cancelled := src.cancelled
	src.mu.Unlock()
	if !cancelled {
		t.Fatal("the runner must cancel the source when a commit fails")
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestRunner_EmitFansOutToSinks(t *testing.T) {
	states, err := NewStateStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	src := &fakeSource{offsets: []int64{0}, emitValues: [][]byte{[]byte("a"), []byte("b")}}
	r := NewRunner(src, states, time.Hour)
	s1, s2 := &fakeSink{}, &fakeSink{}
	r.AddSink(s1)
	r.AddSink(s2)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitFor(t, func() bool {
		s2.mu.Lock()
		defer s2.mu.Unlock()
		return len(s2.got) == 2
	})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	for _, s := range []*fakeSink{s1, s2} {
		if len(s.got) != 2 || string(s.got[0]) != "a" || string(s.got[1]) != "b" {
			t.Fatalf("sink received %q, want [a b]", s.got)
		}
		if !s.closed {
			t.Fatal("Close must close every sink")
		}
	}
}
