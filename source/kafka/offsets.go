package kafka

// OffsetNone marks a partition from which nothing has been consumed yet.
const OffsetNone int64 = -1

// OffsetVector holds the last locally observed offset per partition, indexed
// by partition ID. The ingestion loop is its only writer; the host reads it
// through SnapshotOffsets while holding the checkpoint lock and never aliases
// the backing array across that boundary.
type OffsetVector []int64

func NewOffsetVector(n int32) OffsetVector {
	v := make(OffsetVector, n)
	for i := range v {
		v[i] = OffsetNone
	}
	return v
}

func (v OffsetVector) Clone() OffsetVector {
	return append(OffsetVector(nil), v...)
}

// commitTracker remembers the last offset already written to the coordination
// store per partition, to avoid committing the same value over and over. It
// is not checkpointed: on restart every partition starts unknown, so the
// first checkpoint after a restore rewrites everything non-sentinel.
type commitTracker struct {
	written []int64
}

func newCommitTracker(n int32) *commitTracker {
	return &commitTracker{written: NewOffsetVector(n)}
}

func (t *commitTracker) needsWrite(p int32, off int64) bool {
	return off != OffsetNone && off > t.written[p]
}

func (t *commitTracker) mark(p int32, off int64) {
	t.written[p] = off
}
