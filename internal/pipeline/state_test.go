package pipeline

import (
	"testing"
)

func TestStateStore_EmptyDir(t *testing.T) {
	st, err := NewStateStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	_, ok, err := st.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ok {
		t.Fatal("empty state dir must report no checkpoint")
	}
}

func TestStateStore_RoundTripAndLatestWins(t *testing.T) {
	st, err := NewStateStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}

	if err := st.Save(Snapshot{CheckpointID: 1, Offsets: []int64{5, -1}}); err != nil {
		t.Fatalf("save 1: %v", err)
	}
	if err := st.Save(Snapshot{CheckpointID: 2, Offsets: []int64{7, 2}}); err != nil {
		t.Fatalf("save 2: %v", err)
	}

	snap, ok, err := st.Load()
	if err != nil || !ok {
		t.Fatalf("Load: ok=%v err=%v", ok, err)
	}
	if snap.CheckpointID != 2 {
		t.Fatalf("loaded checkpoint %d, want the latest", snap.CheckpointID)
	}
	if len(snap.Offsets) != 2 || snap.Offsets[0] != 7 || snap.Offsets[1] != 2 {
		t.Fatalf("loaded offsets %v, want [7 2]", snap.Offsets)
	}
}
